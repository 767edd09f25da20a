// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mlmodel holds the boundary contracts to the model runtime:
// inference, image-quality scoring, embedding extraction, and training.
// The process boundary keeps the Go service free of tensor runtimes;
// the local implementations shell out to the configured trainer CLI.
package mlmodel

import (
	"context"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

// Classifier scores one image against the fixed lesion class set.
// Predictions come back sorted by descending confidence.
type Classifier interface {
	Predict(ctx context.Context, image []byte) ([]datatypes.Prediction, error)
}

// BlurScorer rates image sharpness. Higher is sharper; scores under the
// configured threshold mark the upload as blurred.
type BlurScorer interface {
	Score(image []byte) (float64, error)
}

// EmbeddingExtractor computes L2-normalized feature vectors for images
// on disk. Paths that fail to embed are absent from the result rather
// than failing the batch.
type EmbeddingExtractor interface {
	Embed(ctx context.Context, paths []string) (map[string][]float32, error)
}

// TrainRequest describes one training run handed to the backend.
type TrainRequest struct {
	VersionID     string                     `json:"version_id"`
	Architecture  string                     `json:"architecture"`
	BaseModelPath string                     `json:"base_model_path,omitempty"`
	OutputDir     string                     `json:"output_dir"`
	Device        string                     `json:"device"`
	Config        datatypes.TrainingConfig   `json:"config"`
	TrainSamples  []datatypes.TrainingSample `json:"train_samples"`
	ValSamples    []datatypes.TrainingSample `json:"val_samples"`
	ReplaySamples []datatypes.TrainingSample `json:"replay_samples,omitempty"`
}

// TrainResult is what a completed run reports back.
type TrainResult struct {
	VersionID       string                  `json:"version_id"`
	WeightsPath     string                  `json:"weights_path"`
	TrainingLogPath string                  `json:"training_log_path,omitempty"`
	Metrics         map[string]any          `json:"metrics"`
	Epochs          []datatypes.EpochRecord `json:"epochs,omitempty"`
}

// TrainerBackend runs training jobs and lends out extractors bound to
// a checkpoint.
type TrainerBackend interface {
	Train(ctx context.Context, req TrainRequest) (*TrainResult, error)
	Extractor(checkpoint string) EmbeddingExtractor
}
