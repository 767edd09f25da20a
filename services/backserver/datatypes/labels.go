// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// LabelRecord is one corrected-label record in the pool, keyed by case_id.
// Re-submitting the same case overwrites everything except CreatedAt and
// the used-tracking fields.
type LabelRecord struct {
	CaseID       string   `json:"case_id"`
	ImagePaths   []string `json:"image_paths"`
	CorrectLabel string   `json:"correct_label"`
	UserID       string   `json:"user_id"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`

	// UsedInModels lists, in order of first use, the version IDs that have
	// trained on this record.
	UsedInModels []string `json:"used_in_models"`

	// ImageRetrainHistory maps each image path to the version IDs that
	// trained on that image.
	ImageRetrainHistory map[string][]string `json:"image_retrain_history"`
}

// Used reports whether the record has fed any retrain run.
func (r *LabelRecord) Used() bool {
	return len(r.UsedInModels) > 0
}

// TrainingSample is one (image, label) pair handed to the trainer.
type TrainingSample struct {
	ImagePath string `json:"image_path"`
	Label     string `json:"label"`
	CaseID    string `json:"case_id,omitempty"`
}

// LabelStatistics is the admin-facing summary of pool state.
type LabelStatistics struct {
	TotalLabels      int  `json:"total_labels"`
	UnusedLabels     int  `json:"unused_labels"`
	UsedLabels       int  `json:"used_labels"`
	RetrainThreshold int  `json:"retrain_threshold"`
	ReadyForRetrain  bool `json:"ready_for_retrain"`
}
