// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "encoding/json"

// ModelStatus is a model version's lifecycle state.
type ModelStatus string

const (
	StatusTraining   ModelStatus = "training"
	StatusEvaluating ModelStatus = "evaluating"
	StatusProduction ModelStatus = "production"
	StatusArchived   ModelStatus = "archived"
	StatusFailed     ModelStatus = "failed"
)

// ModelEntry is one version in the registry catalog.
type ModelEntry struct {
	VersionID    string         `json:"version_id"`
	Status       ModelStatus    `json:"status"`
	CreatedAt    string         `json:"created_at"`
	BaseModel    string         `json:"base_model,omitempty"`
	Architecture string         `json:"architecture,omitempty"`
	Metrics      map[string]any `json:"metrics,omitempty"`

	// TrainingConfig is the hyperparameter snapshot the version was
	// trained with.
	TrainingConfig *TrainingConfig `json:"training_config,omitempty"`

	// Path is the current weights location. ProductionPath is set when a
	// mirror copy exists under the production directory.
	Path           string `json:"path,omitempty"`
	ProductionPath string `json:"production_path,omitempty"`
}

// Metric returns a numeric metric by name, with ok=false when absent or
// non-numeric.
func (e *ModelEntry) Metric(name string) (float64, bool) {
	if e == nil || e.Metrics == nil {
		return 0, false
	}
	switch v := e.Metrics[name].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// RegistryDoc is the persisted registry document, rewritten whole under
// the registry lock on every mutation.
type RegistryDoc struct {
	Models map[string]*ModelEntry `json:"models"`

	// CurrentProduction names the single version with production status,
	// or "" when nothing has been promoted yet.
	CurrentProduction string `json:"current_production,omitempty"`

	// PendingPromotion is set while an evaluate-and-promote decision is
	// in flight.
	PendingPromotion string `json:"pending_promotion,omitempty"`

	// ActiveInference optionally pins the version serving inference when
	// an operator wants it to differ from production.
	ActiveInference string `json:"active_inference,omitempty"`
}

// EpochRecord is one row of a candidate's training log.
type EpochRecord struct {
	Epoch     int     `json:"epoch"`
	TrainLoss float64 `json:"train_loss"`
	TrainAcc  float64 `json:"train_acc"`
	ValLoss   float64 `json:"val_loss"`
	ValAcc    float64 `json:"val_acc"`
}
