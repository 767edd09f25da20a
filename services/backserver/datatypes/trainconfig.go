// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// TrainingConfig is the validated hyperparameter bundle. Field ranges are
// enforced by the trainconfig package before any save.
type TrainingConfig struct {
	Epochs              int     `json:"epochs" validate:"min=1,max=100"`
	BatchSize           int     `json:"batch_size" validate:"min=1,max=128"`
	LearningRate        float64 `json:"learning_rate" validate:"min=0.000001,max=1.0"`
	Optimizer           string  `json:"optimizer" validate:"oneof=Adam SGD AdamW RMSprop"`
	Dropout             float64 `json:"dropout" validate:"min=0.0,max=0.9"`
	AugmentationApplied bool    `json:"augmentation_applied"`
}

// DefaultTrainingConfig returns the baseline hyperparameters.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Epochs:              10,
		BatchSize:           16,
		LearningRate:        1e-4,
		Optimizer:           "Adam",
		Dropout:             0.3,
		AugmentationApplied: true,
	}
}

// TrainingConfigPatch is a partial config; nil fields keep their current
// value on merge.
type TrainingConfigPatch struct {
	Epochs              *int     `json:"epochs,omitempty"`
	BatchSize           *int     `json:"batch_size,omitempty"`
	LearningRate        *float64 `json:"learning_rate,omitempty"`
	Optimizer           *string  `json:"optimizer,omitempty"`
	Dropout             *float64 `json:"dropout,omitempty"`
	AugmentationApplied *bool    `json:"augmentation_applied,omitempty"`
}

// ApplyTo merges the patch over base and returns the result.
func (p *TrainingConfigPatch) ApplyTo(base TrainingConfig) TrainingConfig {
	if p == nil {
		return base
	}
	if p.Epochs != nil {
		base.Epochs = *p.Epochs
	}
	if p.BatchSize != nil {
		base.BatchSize = *p.BatchSize
	}
	if p.LearningRate != nil {
		base.LearningRate = *p.LearningRate
	}
	if p.Optimizer != nil {
		base.Optimizer = *p.Optimizer
	}
	if p.Dropout != nil {
		base.Dropout = *p.Dropout
	}
	if p.AugmentationApplied != nil {
		base.AugmentationApplied = *p.AugmentationApplied
	}
	return base
}
