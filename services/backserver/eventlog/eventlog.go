// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package eventlog is the append-only audit stream for the Active Learning
// control plane. Every retrain, promotion, rollback, and config change is
// recorded here regardless of what the HTTP response said.
package eventlog

import (
	"fmt"
	"sync"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

// Log is a handle to the event log file. Writes append one line each and
// are serialized by the handle's lock.
type Log struct {
	mu     sync.Mutex
	ledger *storage.Ledger
}

// New opens (or will lazily create) the event log at path.
func New(path string) *Log {
	return &Log{ledger: &storage.Ledger{Path: path}}
}

// Append records one event, stamping the timestamp if unset.
func (l *Log) Append(event datatypes.Event) error {
	if event.Timestamp == "" {
		event.Timestamp = datatypes.Timestamp()
	}
	if !datatypes.KnownEventType(event.Type) {
		return fmt.Errorf("unknown event type %q", event.Type)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ledger.Append(event)
}

// Recent returns up to limit events, newest first. limit <= 0 means all.
func (l *Log) Recent(limit int) ([]datatypes.Event, error) {
	return l.query(limit, func(datatypes.Event) bool { return true })
}

// ByType returns up to limit events of one type, newest first.
func (l *Log) ByType(t datatypes.EventType, limit int) ([]datatypes.Event, error) {
	return l.query(limit, func(e datatypes.Event) bool { return e.Type == t })
}

// Since returns up to limit events with timestamp >= ts, newest first.
// Timestamps are RFC 3339 so lexicographic comparison is chronological.
func (l *Log) Since(ts string, limit int) ([]datatypes.Event, error) {
	return l.query(limit, func(e datatypes.Event) bool { return e.Timestamp >= ts })
}

func (l *Log) query(limit int, keep func(datatypes.Event) bool) ([]datatypes.Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var matched []datatypes.Event
	err := storage.ScanInto(l.ledger, func(e datatypes.Event) error {
		if keep(e) {
			matched = append(matched, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// File order is oldest-first; reverse for newest-first.
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// =============================================================================
// Typed constructors
// =============================================================================

// RetrainTriggered records an admin or threshold-driven retrain request.
func (l *Log) RetrainTriggered(versionID, triggeredBy string, labelCount int) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventRetrainTriggered,
		Message: fmt.Sprintf("Retraining triggered for %s (%d new labels)", versionID, labelCount),
		Metadata: map[string]any{
			"version_id":   versionID,
			"triggered_by": triggeredBy,
			"label_count":  labelCount,
		},
	})
}

// TrainingStarted records the start of a training run.
func (l *Log) TrainingStarted(versionID, architecture string, sampleCount int) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventTrainingStarted,
		Message: fmt.Sprintf("Training started for %s (%s, %d samples)", versionID, architecture, sampleCount),
		Metadata: map[string]any{
			"version_id":   versionID,
			"architecture": architecture,
			"sample_count": sampleCount,
		},
	})
}

// TrainingCompleted records a successful run with its headline metrics.
func (l *Log) TrainingCompleted(versionID string, metrics map[string]any) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventTrainingCompleted,
		Message: fmt.Sprintf("Training completed for %s", versionID),
		Metadata: map[string]any{
			"version_id": versionID,
			"metrics":    metrics,
		},
	})
}

// TrainingFailed records a failed run with a short reason.
func (l *Log) TrainingFailed(versionID, reason string) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventTrainingFailed,
		Message: fmt.Sprintf("Training failed for %s: %s", versionID, reason),
		Metadata: map[string]any{
			"version_id": versionID,
			"reason":     reason,
		},
	})
}

// ModelPromoted records a promotion, including what it displaced.
func (l *Log) ModelPromoted(versionID, previous, reason string) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventModelPromoted,
		Message: fmt.Sprintf("Model %s promoted to production", versionID),
		Metadata: map[string]any{
			"version_id":          versionID,
			"previous_production": previous,
			"reason":              reason,
		},
	})
}

// ModelRollback records a rollback to an earlier version.
func (l *Log) ModelRollback(fromVersion, toVersion, reason string) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventModelRollback,
		Message: fmt.Sprintf("Rolled back from %s to %s", fromVersion, toVersion),
		Metadata: map[string]any{
			"from_version": fromVersion,
			"to_version":   toVersion,
			"reason":       reason,
		},
	})
}

// ConfigUpdated records a training-config change.
func (l *Log) ConfigUpdated(updatedBy string, config map[string]any) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventConfigUpdated,
		Message: "Training configuration updated",
		Metadata: map[string]any{
			"updated_by": updatedBy,
			"config":     config,
		},
	})
}

// LabelAdded records one corrected label entering the pool.
func (l *Log) LabelAdded(caseID, label, userID string) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventLabelAdded,
		Message: fmt.Sprintf("Label %s added for case %s", label, caseID),
		Metadata: map[string]any{
			"case_id":       caseID,
			"correct_label": label,
			"user_id":       userID,
		},
	})
}

// ThresholdReached records that the unused-label count crossed the
// retrain threshold.
func (l *Log) ThresholdReached(unusedCount, threshold int) error {
	return l.Append(datatypes.Event{
		Type:    datatypes.EventThresholdReached,
		Message: fmt.Sprintf("Retrain threshold reached (%d/%d unused labels)", unusedCount, threshold),
		Metadata: map[string]any{
			"unused_count": unusedCount,
			"threshold":    threshold,
		},
	})
}
