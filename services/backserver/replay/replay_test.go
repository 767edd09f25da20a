// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package replay

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
)

// =============================================================================
// Quota allocation
// =============================================================================

func TestAllocateQuota_Proportional(t *testing.T) {
	alloc := AllocateQuota(map[int]int{0: 60, 1: 30, 2: 10}, 10)
	assert.Equal(t, 6, alloc[0])
	assert.Equal(t, 3, alloc[1])
	assert.Equal(t, 1, alloc[2])
}

func TestAllocateQuota_LargestRemainder(t *testing.T) {
	// Raw shares 3.33/3.33/3.33 floor to 3 each; one leftover goes to
	// the lowest class index on the remainder tie.
	alloc := AllocateQuota(map[int]int{0: 10, 1: 10, 2: 10}, 10)
	total := alloc[0] + alloc[1] + alloc[2]
	assert.Equal(t, 10, total)
	assert.Equal(t, 4, alloc[0])
}

func TestAllocateQuota_NeverExceedsClassSize(t *testing.T) {
	alloc := AllocateQuota(map[int]int{0: 2, 1: 100}, 50)
	assert.LessOrEqual(t, alloc[0], 2)
	assert.Equal(t, 50, alloc[0]+alloc[1])
}

func TestAllocateQuota_ZeroQuota(t *testing.T) {
	alloc := AllocateQuota(map[int]int{0: 5, 1: 5}, 0)
	assert.Equal(t, 0, alloc[0])
	assert.Equal(t, 0, alloc[1])
}

func TestAllocateQuota_Deterministic(t *testing.T) {
	sizes := map[int]int{0: 7, 1: 13, 2: 5, 3: 9}
	first := AllocateQuota(sizes, 11)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, AllocateQuota(sizes, 11))
	}
}

// =============================================================================
// Normalization
// =============================================================================

func TestNormalize(t *testing.T) {
	vec := Normalize([]float64{3, 4})
	assert.InDelta(t, 0.6, vec[0], 1e-9)
	assert.InDelta(t, 0.8, vec[1], 1e-9)

	zero := Normalize([]float64{0, 0})
	assert.Equal(t, []float64{0, 0}, zero)
}

// =============================================================================
// Selection
// =============================================================================

// clusteredSamples builds two classes whose embeddings cluster around
// distinct anchors, with one far outlier per class.
func clusteredSamples() ([]Sample, ExtractFunc) {
	var samples []Sample
	embeddings := map[string][]float64{}
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("a-%02d.jpg", i)
		samples = append(samples, Sample{Path: path, Label: 0})
		embeddings[path] = []float64{1, 0.01 * float64(i)}
	}
	for i := 0; i < 10; i++ {
		path := fmt.Sprintf("b-%02d.jpg", i)
		samples = append(samples, Sample{Path: path, Label: 1})
		embeddings[path] = []float64{0.01 * float64(i), 1}
	}
	embeddings["a-09.jpg"] = []float64{0.3, 0.95}
	embeddings["b-09.jpg"] = []float64{0.95, 0.3}

	extract := func(s Sample) ([]float64, error) {
		vec := embeddings[s.Path]
		out := make([]float64, len(vec))
		copy(out, vec)
		return out, nil
	}
	return samples, extract
}

func TestSelect_RespectsQuota(t *testing.T) {
	samples, extract := clusteredSamples()
	picked, stats := Select(samples, Options{Quota: 10, HerdingRatio: 0.8, RandomRatio: 0.2, Seed: 42}, extract)
	assert.Len(t, picked, 10)
	assert.Equal(t, 10, stats.OldSamplesSelected)
	assert.Equal(t, 8, stats.HerdingTarget)
	assert.Equal(t, 2, stats.RandomTarget)
	assert.Equal(t, 20, stats.OldSamplesTotal)
	assert.Equal(t, 20, stats.OldSamplesEmbedded)
}

func TestSelect_QuotaClampedToAvailable(t *testing.T) {
	samples, extract := clusteredSamples()
	picked, stats := Select(samples, Options{Quota: 500, HerdingRatio: 0.8, RandomRatio: 0.2, Seed: 42}, extract)
	assert.Len(t, picked, 20)
	assert.Equal(t, 20, stats.Quota)
}

func TestSelect_SameSeedSameSelection(t *testing.T) {
	samples, extract := clusteredSamples()
	opts := Options{Quota: 10, HerdingRatio: 0.8, RandomRatio: 0.2, Seed: 42}

	first, _ := Select(samples, opts, extract)
	second, _ := Select(samples, opts, extract)
	assert.Equal(t, first, second)
}

func TestSelect_DifferentSeedsMayDiffer(t *testing.T) {
	samples, extract := clusteredSamples()
	base := Options{Quota: 10, HerdingRatio: 0.5, RandomRatio: 0.5, Seed: 42}
	other := base
	other.Seed = 43

	a, _ := Select(samples, base, extract)
	b, _ := Select(samples, other, extract)
	// Both runs are valid selections of the same size.
	assert.Len(t, a, 10)
	assert.Len(t, b, 10)
}

func TestSelect_HerdingPrefersCentroidNeighbors(t *testing.T) {
	samples, extract := clusteredSamples()
	// Pure herding: the per-class outliers rank last and stay out.
	picked, _ := Select(samples, Options{Quota: 16, HerdingRatio: 1.0, RandomRatio: 0.0, Seed: 42}, extract)

	paths := map[string]bool{}
	for _, s := range picked {
		paths[s.Path] = true
	}
	assert.False(t, paths["a-09.jpg"])
	assert.False(t, paths["b-09.jpg"])
}

func TestSelect_RandomFallbackWithoutEmbeddings(t *testing.T) {
	samples, _ := clusteredSamples()
	picked, stats := Select(samples, Options{Quota: 5, Seed: 42}, nil)
	assert.Len(t, picked, 5)
	assert.Equal(t, "random_only_no_embeddings", stats.Fallback)
	assert.Equal(t, 5, stats.RandomSelected)
	assert.Equal(t, 0, stats.HerdingSelected)

	again, _ := Select(samples, Options{Quota: 5, Seed: 42}, nil)
	assert.Equal(t, picked, again)
}

func TestSelect_ZeroQuota(t *testing.T) {
	samples, extract := clusteredSamples()
	picked, stats := Select(samples, Options{Quota: 0, Seed: 42}, extract)
	assert.Empty(t, picked)
	assert.Equal(t, 0, stats.Quota)
}

func TestSelect_EmptyInput(t *testing.T) {
	picked, stats := Select(nil, Options{Quota: 10, Seed: 42}, nil)
	assert.Empty(t, picked)
	assert.Equal(t, 0, stats.OldSamplesTotal)
}

func TestSelect_RatiosNormalized(t *testing.T) {
	samples, extract := clusteredSamples()
	_, stats := Select(samples, Options{Quota: 10, HerdingRatio: 4, RandomRatio: 1, Seed: 42}, extract)
	assert.InDelta(t, 0.5, stats.HerdingRatio, 1e-9)
	assert.InDelta(t, 0.5, stats.RandomRatio, 1e-9)

	_, stats = Select(samples, Options{Quota: 10, Seed: 42}, extract)
	assert.InDelta(t, 0.8, stats.HerdingRatio, 1e-9)
	assert.InDelta(t, 0.2, stats.RandomRatio, 1e-9)
}

func TestSelect_FailedEmbeddingsDropFromPool(t *testing.T) {
	samples, extract := clusteredSamples()
	flaky := func(s Sample) ([]float64, error) {
		if s.Label == 1 {
			return nil, fmt.Errorf("decode failed")
		}
		return extract(s)
	}
	picked, stats := Select(samples, Options{Quota: 15, HerdingRatio: 0.8, RandomRatio: 0.2, Seed: 42}, flaky)
	assert.Len(t, picked, 10)
	assert.Equal(t, 10, stats.OldSamplesEmbedded)
	for _, s := range picked {
		assert.Equal(t, 0, s.Label)
	}
}

func TestL2Distance(t *testing.T) {
	assert.InDelta(t, 5.0, l2Distance([]float64{0, 0}, []float64{3, 4}), 1e-9)
	assert.True(t, math.Abs(l2Distance([]float64{1, 1}, []float64{1, 1})) < 1e-12)
}

// =============================================================================
// Old dataset collection
// =============================================================================

func writeOldDataset(t *testing.T, rows string, images ...string) *config.Settings {
	t.Helper()
	root := t.TempDir()
	datasetDir := filepath.Join(root, "dataset")
	require.NoError(t, os.MkdirAll(datasetDir, 0750))
	for _, name := range images {
		require.NoError(t, os.WriteFile(filepath.Join(datasetDir, name), []byte("img"), 0640))
	}
	csvPath := filepath.Join(root, "labels.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(rows), 0640))
	return &config.Settings{
		OldDataCSV:         csvPath,
		OldDatasetDir:      datasetDir,
		OldDataImageColumn: "image_id",
		OldDataLabelColumn: "dx",
	}
}

func TestCollectOldDataset(t *testing.T) {
	cfg := writeOldDataset(t,
		"image_id,dx\nISIC_01.jpg,mel\nISIC_02.jpg,nv\nISIC_03.jpg,unknown\nmissing.jpg,mel\n",
		"ISIC_01.jpg", "ISIC_02.jpg", "ISIC_03.jpg")

	samples, err := CollectOldDataset(cfg)
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, config.LabelMap["mel"], samples[0].Label)
	assert.Equal(t, config.LabelMap["nv"], samples[1].Label)
}

func TestCollectOldDataset_LabelMapTranslation(t *testing.T) {
	cfg := writeOldDataset(t, "image_id,dx\nISIC_01.jpg,MELANOMA\n", "ISIC_01.jpg")
	cfg.OldDataLabelMap = map[string]string{"MELANOMA": "mel"}

	samples, err := CollectOldDataset(cfg)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, config.LabelMap["mel"], samples[0].Label)
}

func TestCollectOldDataset_MissingInputsAreEmpty(t *testing.T) {
	samples, err := CollectOldDataset(&config.Settings{})
	require.NoError(t, err)
	assert.Empty(t, samples)

	samples, err = CollectOldDataset(&config.Settings{
		OldDataCSV:    "/nonexistent/labels.csv",
		OldDatasetDir: "/nonexistent/dataset",
	})
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestCollectOldDataset_BOMHeader(t *testing.T) {
	cfg := writeOldDataset(t, "\ufeffimage_id,dx\nISIC_01.jpg,bcc\n", "ISIC_01.jpg")
	samples, err := CollectOldDataset(cfg)
	require.NoError(t, err)
	require.Len(t, samples, 1)
}
