// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

// EventType is the closed set of audit event types.
type EventType string

const (
	EventRetrainTriggered  EventType = "retrain_triggered"
	EventTrainingStarted   EventType = "training_started"
	EventTrainingCompleted EventType = "training_completed"
	EventTrainingFailed    EventType = "training_failed"
	EventModelPromoted     EventType = "model_promoted"
	EventModelRollback     EventType = "model_rollback"
	EventConfigUpdated     EventType = "config_updated"
	EventLabelAdded        EventType = "label_added"
	EventThresholdReached  EventType = "threshold_reached"
)

// KnownEventType reports membership in the closed event-type set.
func KnownEventType(t EventType) bool {
	switch t {
	case EventRetrainTriggered, EventTrainingStarted, EventTrainingCompleted,
		EventTrainingFailed, EventModelPromoted, EventModelRollback,
		EventConfigUpdated, EventLabelAdded, EventThresholdReached:
		return true
	}
	return false
}

// Event is one audit record. The log is append-only; events are never
// edited or reordered.
type Event struct {
	Timestamp string         `json:"timestamp"`
	Type      EventType      `json:"type"`
	Message   string         `json:"message"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}
