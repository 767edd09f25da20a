// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package trainconfig

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "config", "active_config.json"), nil)
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func strPtr(v string) *string     { return &v }

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	store := newTestStore(t)

	config, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultTrainingConfig(), config)
	assert.Equal(t, 10, config.Epochs)
	assert.Equal(t, 16, config.BatchSize)
	assert.InDelta(t, 1e-4, config.LearningRate, 1e-12)
	assert.Equal(t, "Adam", config.Optimizer)
	assert.InDelta(t, 0.3, config.Dropout, 1e-12)
	assert.True(t, config.AugmentationApplied)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	store := newTestStore(t)

	saved, errs, err := store.Save(datatypes.TrainingConfigPatch{
		Epochs:    intPtr(25),
		Optimizer: strPtr("SGD"),
	})
	require.NoError(t, err)
	require.Empty(t, errs)
	assert.Equal(t, 25, saved.Epochs)
	assert.Equal(t, "SGD", saved.Optimizer)
	// Untouched fields keep defaults.
	assert.Equal(t, 16, saved.BatchSize)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, saved, loaded)
}

func TestSave_ValidationRejectsOutOfRange(t *testing.T) {
	store := newTestStore(t)

	_, errs, err := store.Save(datatypes.TrainingConfigPatch{
		Epochs:       intPtr(0),
		BatchSize:    intPtr(500),
		LearningRate: floatPtr(2.0),
		Optimizer:    strPtr("Nadam"),
		Dropout:      floatPtr(0.95),
	})
	require.NoError(t, err)
	require.Len(t, errs, 5)
	assert.Contains(t, errs, "epochs must be between 1 and 100")
	assert.Contains(t, errs, "batch_size must be between 1 and 128")
	assert.Contains(t, errs, "learning_rate must be between 1e-6 and 1.0")
	assert.Contains(t, errs, "optimizer must be one of Adam, SGD, AdamW, RMSprop")
	assert.Contains(t, errs, "dropout must be between 0.0 and 0.9")

	// Nothing was written.
	config, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, datatypes.DefaultTrainingConfig(), config)
}

func TestValidate_BoundaryValues(t *testing.T) {
	store := newTestStore(t)

	config := datatypes.DefaultTrainingConfig()
	config.Epochs = 100
	config.BatchSize = 128
	config.LearningRate = 1.0
	config.Dropout = 0.9
	assert.Empty(t, store.Validate(config))

	config.Epochs = 101
	assert.NotEmpty(t, store.Validate(config))
}

func TestValidate_AllOptimizers(t *testing.T) {
	store := newTestStore(t)
	for _, opt := range []string{"Adam", "SGD", "AdamW", "RMSprop"} {
		config := datatypes.DefaultTrainingConfig()
		config.Optimizer = opt
		assert.Empty(t, store.Validate(config), "optimizer %s should validate", opt)
	}
}

func TestWatch_InvalidatesCacheOnExternalWrite(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Watch())
	defer store.Close()

	_, errs, err := store.Save(datatypes.TrainingConfigPatch{Epochs: intPtr(30)})
	require.NoError(t, err)
	require.Empty(t, errs)

	// Save through a second handle simulates an out-of-band edit.
	other := New(store.path, nil)
	_, errs, err = other.Save(datatypes.TrainingConfigPatch{Epochs: intPtr(40)})
	require.NoError(t, err)
	require.Empty(t, errs)

	// The watcher invalidates asynchronously; poll briefly.
	deadline := makeDeadline(t)
	for {
		config, err := store.Load()
		require.NoError(t, err)
		if config.Epochs == 40 {
			break
		}
		if deadline() {
			t.Fatalf("cache never picked up external write, still epochs=%d", config.Epochs)
		}
	}
}

// makeDeadline returns a poll helper that sleeps briefly and reports true
// once two seconds have elapsed.
func makeDeadline(t *testing.T) func() bool {
	t.Helper()
	end := time.Now().Add(2 * time.Second)
	return func() bool {
		time.Sleep(10 * time.Millisecond)
		return time.Now().After(end)
	}
}
