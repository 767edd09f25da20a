// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package datatypes defines the wire and storage types shared across the
// backserver: ledger entries, label records, registry entries, events, and
// the HTTP request/response payloads.
package datatypes

import (
	"encoding/json"
	"time"
)

// EntryKind tags the variants that co-exist in a user's case ledger.
type EntryKind string

const (
	// KindImage is one uploaded image with its quality score and predictions.
	KindImage EntryKind = "image"
	// KindCase is a closed case summary.
	KindCase EntryKind = "case"
	// KindUncertain is a summary the model flagged for review.
	KindUncertain EntryKind = "uncertain"
	// KindReject is a summary the reviewer rejected, carrying the correction.
	KindReject EntryKind = "reject"
)

// IsSummary reports whether the kind is one of the case-summary variants.
func (k EntryKind) IsSummary() bool {
	return k == KindCase || k == KindUncertain || k == KindReject
}

// Prediction is one class probability from the classifier, ordered by
// descending confidence in every payload that carries a list of them.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// LedgerEntry is one line of a per-user metadata ledger. Image entries and
// case summaries share the struct; EntryType discriminates and unused
// fields stay empty on disk.
type LedgerEntry struct {
	EntryType EntryKind `json:"entry_type,omitempty"`
	CaseID    string    `json:"case_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	UserRole  string    `json:"user_role,omitempty"`
	Status    string    `json:"status,omitempty"`
	CreatedAt string    `json:"created_at,omitempty"`
	UpdatedAt string    `json:"updated_at,omitempty"`

	Predictions []Prediction `json:"predictions,omitempty"`

	// Image entry fields.
	ImageID   string  `json:"image_id,omitempty"`
	BlurScore float64 `json:"blur_score,omitempty"`

	// Denormalized summary context stamped onto image entries when their
	// case summary is upserted.
	CaseStatus    string    `json:"case_status,omitempty"`
	CaseEntryType EntryKind `json:"case_entry_type,omitempty"`
	CaseUpdatedAt string    `json:"case_updated_at,omitempty"`

	// Summary entry fields.
	Gender     string      `json:"gender,omitempty"`
	Age        json.Number `json:"age,omitempty"`
	Location   string      `json:"location,omitempty"`
	Symptoms   string      `json:"symptoms,omitempty"`
	ImageIDs   []string    `json:"image_ids,omitempty"`
	ImagePaths []string    `json:"image_paths,omitempty"`

	// Review fields, present once a reviewer has acted on the case.
	CorrectLabel string          `json:"correct_label,omitempty"`
	Annotations  json.RawMessage `json:"annotations,omitempty"`
	LabeledBy    string          `json:"labeled_by,omitempty"`
	LabeledAt    string          `json:"labeled_at,omitempty"`
	LabelNotes   string          `json:"label_notes,omitempty"`
	Notes        string          `json:"notes,omitempty"`

	// Annotation fields, present once a reviewer has drawn on the case.
	AnnotatedBy          string `json:"annotated_by,omitempty"`
	AnnotatedAt          string `json:"annotated_at,omitempty"`
	AnnotationImageIndex *int   `json:"annotation_image_index,omitempty"`
	AnnotationNotes      string `json:"annotation_notes,omitempty"`
}

// IsSummary reports whether the entry is a case summary.
func (e *LedgerEntry) IsSummary() bool {
	return e.EntryType.IsSummary()
}

// Timestamp returns the current time in the ledger's wire format
// (RFC 3339, UTC, microsecond precision).
func Timestamp() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000000Z07:00")
}
