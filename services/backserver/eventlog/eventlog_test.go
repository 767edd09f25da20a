// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package eventlog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "event_log.jsonl"))
}

func TestAppend_StampsTimestamp(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Append(datatypes.Event{
		Type:    datatypes.EventLabelAdded,
		Message: "Label nv added for case 10000",
	}))

	events, err := log.Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.NotEmpty(t, events[0].Timestamp)
}

func TestAppend_RejectsUnknownType(t *testing.T) {
	log := newTestLog(t)
	err := log.Append(datatypes.Event{Type: "made_up", Message: "x"})
	assert.Error(t, err)
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.TrainingStarted("v20260101_001", "resnet50", 10))
	require.NoError(t, log.TrainingCompleted("v20260101_001", map[string]any{"val_accuracy": 0.9}))
	require.NoError(t, log.ModelPromoted("v20260101_001", "", "first model"))

	events, err := log.Recent(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, datatypes.EventModelPromoted, events[0].Type)
	assert.Equal(t, datatypes.EventTrainingCompleted, events[1].Type)
}

func TestByType(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.TrainingFailed("v20260101_001", "no samples"))
	require.NoError(t, log.TrainingStarted("v20260101_002", "resnet50", 5))
	require.NoError(t, log.TrainingFailed("v20260101_002", "device lost"))

	events, err := log.ByType(datatypes.EventTrainingFailed, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "v20260101_002", events[0].Metadata["version_id"])
	assert.Equal(t, "v20260101_001", events[1].Metadata["version_id"])
}

func TestSince(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.Append(datatypes.Event{
		Timestamp: "2026-01-01T00:00:00Z",
		Type:      datatypes.EventConfigUpdated,
		Message:   "old",
	}))
	require.NoError(t, log.Append(datatypes.Event{
		Timestamp: "2026-06-01T00:00:00Z",
		Type:      datatypes.EventConfigUpdated,
		Message:   "new",
	}))

	events, err := log.Since("2026-03-01T00:00:00Z", 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "new", events[0].Message)
}

func TestTypedConstructors_MetadataShape(t *testing.T) {
	log := newTestLog(t)
	require.NoError(t, log.RetrainTriggered("v20260102_001", "admin", 7))
	require.NoError(t, log.ModelRollback("v20260102_001", "v20260101_001", "regression"))
	require.NoError(t, log.ThresholdReached(12, 10))
	require.NoError(t, log.LabelAdded("10000", "mel", "doctor-1"))
	require.NoError(t, log.ConfigUpdated("admin", map[string]any{"epochs": 20}))

	events, err := log.Recent(0)
	require.NoError(t, err)
	require.Len(t, events, 5)

	rollback, err := log.ByType(datatypes.EventModelRollback, 1)
	require.NoError(t, err)
	require.Len(t, rollback, 1)
	assert.Equal(t, "v20260102_001", rollback[0].Metadata["from_version"])
	assert.Equal(t, "v20260101_001", rollback[0].Metadata["to_version"])

	threshold, err := log.ByType(datatypes.EventThresholdReached, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 12, threshold[0].Metadata["unused_count"])
}

func TestRecent_EmptyLog(t *testing.T) {
	log := newTestLog(t)
	events, err := log.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, events)
}
