// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mlmodel

import (
	"context"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

// Unavailable is the backend used when no trainer command is
// configured: every call fails with ErrNoTrainerCommand so the HTTP
// layer can answer 503 instead of the process refusing to start.
type Unavailable struct{}

func (Unavailable) Predict(context.Context, []byte) ([]datatypes.Prediction, error) {
	return nil, ErrNoTrainerCommand
}

func (Unavailable) Train(context.Context, TrainRequest) (*TrainResult, error) {
	return nil, ErrNoTrainerCommand
}

func (Unavailable) Extractor(string) EmbeddingExtractor {
	return unavailableExtractor{}
}

type unavailableExtractor struct{}

func (unavailableExtractor) Embed(context.Context, []string) (map[string][]float32, error) {
	return nil, ErrNoTrainerCommand
}
