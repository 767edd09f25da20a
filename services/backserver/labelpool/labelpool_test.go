// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package labelpool

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "labels_pool.jsonl"))
}

func TestAddLabel_FreshRecord(t *testing.T) {
	pool := newTestPool(t)

	record, err := pool.AddLabel("10000", []string{"u1/a.jpg", "u1/b.jpg"}, "mel", "user1")
	require.NoError(t, err)
	assert.Equal(t, "mel", record.CorrectLabel)
	assert.NotEmpty(t, record.CreatedAt)
	assert.Empty(t, record.UsedInModels)
	assert.Len(t, record.ImageRetrainHistory, 2)
	assert.Empty(t, record.ImageRetrainHistory["u1/a.jpg"])
}

func TestAddLabel_LatestWins(t *testing.T) {
	pool := newTestPool(t)

	first, err := pool.AddLabel("10001", []string{"u1/a.jpg"}, "mel", "user1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)

	_, err = pool.AddLabel("10001", []string{"u1/a.jpg"}, "nv", "user2")
	require.NoError(t, err)

	all, err := pool.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "nv", all[0].CorrectLabel)
	assert.Equal(t, "user2", all[0].UserID)
	assert.Equal(t, first.CreatedAt, all[0].CreatedAt)
	assert.NotEqual(t, first.CreatedAt, all[0].UpdatedAt)
}

func TestAddLabel_ResubmitPreservesUsedTracking(t *testing.T) {
	pool := newTestPool(t)

	_, err := pool.AddLabel("10002", []string{"u1/a.jpg"}, "bkl", "user1")
	require.NoError(t, err)
	_, err = pool.MarkUsed("v20260101_001", nil)
	require.NoError(t, err)

	_, err = pool.AddLabel("10002", []string{"u1/a.jpg"}, "df", "user1")
	require.NoError(t, err)

	record, err := pool.GetByCase("10002")
	require.NoError(t, err)
	assert.Equal(t, "df", record.CorrectLabel)
	assert.Equal(t, []string{"v20260101_001"}, record.UsedInModels)
	assert.Equal(t, []string{"v20260101_001"}, record.ImageRetrainHistory["u1/a.jpg"])
}

func TestAddLabel_ResubmitWithNewPathsKeepsPriorHistory(t *testing.T) {
	pool := newTestPool(t)

	_, err := pool.AddLabel("10001", []string{"u1/a.jpg"}, "mel", "user1")
	require.NoError(t, err)
	_, err = pool.MarkUsed("v20260101_001", nil)
	require.NoError(t, err)

	// Correction swaps the image set entirely.
	_, err = pool.AddLabel("10001", []string{"u1/b.jpg"}, "nv", "user1")
	require.NoError(t, err)

	record, err := pool.GetByCase("10001")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1/b.jpg"}, record.ImagePaths)
	assert.Equal(t, []string{"v20260101_001"}, record.ImageRetrainHistory["u1/a.jpg"],
		"history for the original path must survive the overwrite")
	assert.Empty(t, record.ImageRetrainHistory["u1/b.jpg"])
	assert.Len(t, record.ImageRetrainHistory, 2)
}

func TestAddLabel_RequiresCaseID(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.AddLabel("", []string{"p"}, "nv", "u")
	assert.Error(t, err)
}

func TestMarkUsed_Idempotent(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.AddLabel("10003", []string{"u1/x.jpg"}, "vasc", "user1")
	require.NoError(t, err)

	n, err := pool.MarkUsed("v20260101_001", []string{"10003"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = pool.MarkUsed("v20260101_001", []string{"10003"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	record, err := pool.GetByCase("10003")
	require.NoError(t, err)
	assert.Equal(t, []string{"v20260101_001"}, record.UsedInModels)
	assert.Equal(t, []string{"v20260101_001"}, record.ImageRetrainHistory["u1/x.jpg"])
}

func TestMarkUsed_FiltersByCaseID(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.AddLabel("10004", []string{"a"}, "nv", "u")
	require.NoError(t, err)
	_, err = pool.AddLabel("10005", []string{"b"}, "mel", "u")
	require.NoError(t, err)

	n, err := pool.MarkUsed("v20260102_001", []string{"10005"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unused, err := pool.GetUnused()
	require.NoError(t, err)
	require.Len(t, unused, 1)
	assert.Equal(t, "10004", unused[0].CaseID)
}

func TestGetUnusedAndCount(t *testing.T) {
	pool := newTestPool(t)
	for _, id := range []string{"1", "2", "3"} {
		_, err := pool.AddLabel(id, []string{id + ".jpg"}, "nv", "u")
		require.NoError(t, err)
	}
	_, err := pool.MarkUsed("v20260103_001", []string{"2"})
	require.NoError(t, err)

	count, err := pool.UnusedCount()
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestGetByCase_NotFound(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.GetByCase("99999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetLabelsForTraining_FlattensPerImage(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.AddLabel("10006", []string{"u1/a.jpg", "u1/b.jpg"}, "akiec", "u")
	require.NoError(t, err)
	_, err = pool.AddLabel("10007", []string{"u2/c.jpg"}, "bcc", "u")
	require.NoError(t, err)

	samples, err := pool.GetLabelsForTraining()
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.Equal(t, "u1/a.jpg", samples[0].ImagePath)
	assert.Equal(t, "akiec", samples[0].Label)
	assert.Equal(t, "10006", samples[0].CaseID)
	assert.Equal(t, "bcc", samples[2].Label)
}

func TestGetLabelsSince(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.AddLabel("10008", []string{"a"}, "nv", "u")
	require.NoError(t, err)

	since, err := pool.GetLabelsSince("2000-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Len(t, since, 1)

	since, err = pool.GetLabelsSince("2999-01-01T00:00:00Z")
	require.NoError(t, err)
	assert.Empty(t, since)
}

func TestDelete(t *testing.T) {
	pool := newTestPool(t)
	_, err := pool.AddLabel("10009", []string{"a"}, "nv", "u")
	require.NoError(t, err)

	require.NoError(t, pool.Delete("10009"))
	assert.ErrorIs(t, pool.Delete("10009"), ErrNotFound)

	all, err := pool.GetAll()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStatistics(t *testing.T) {
	pool := newTestPool(t)
	for _, id := range []string{"1", "2", "3", "4"} {
		_, err := pool.AddLabel(id, []string{id + ".jpg"}, "nv", "u")
		require.NoError(t, err)
	}
	_, err := pool.MarkUsed("v20260104_001", []string{"1"})
	require.NoError(t, err)

	stats, err := pool.Statistics(3)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalLabels)
	assert.Equal(t, 1, stats.UsedLabels)
	assert.Equal(t, 3, stats.UnusedLabels)
	assert.True(t, stats.ReadyForRetrain)

	stats, err = pool.Statistics(5)
	require.NoError(t, err)
	assert.False(t, stats.ReadyForRetrain)
}
