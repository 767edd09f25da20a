// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package replay picks old-dataset samples to mix into a retraining
// run so the model does not forget classes the new labels never touch.
// The majority of the quota is filled by herding (samples closest to
// their class centroid in embedding space), the rest at random with a
// fixed seed.
package replay

import (
	"math"
	"math/rand"
	"sort"
)

// Sample is one replay candidate: an image on disk and its class index.
type Sample struct {
	Path  string `json:"path"`
	Label int    `json:"label"`
}

// Options tunes one selection run. Ratios are normalized; when both are
// zero the 0.8/0.2 split applies.
type Options struct {
	Quota        int
	HerdingRatio float64
	RandomRatio  float64
	Seed         int64
}

// Stats describes what a selection run did, for the training log.
type Stats struct {
	Enabled            bool    `json:"enabled"`
	OldSamplesTotal    int     `json:"old_samples_total"`
	OldSamplesEmbedded int     `json:"old_samples_with_embeddings,omitempty"`
	OldSamplesSelected int     `json:"old_samples_selected"`
	Quota              int     `json:"quota"`
	HerdingTarget      int     `json:"herding_target,omitempty"`
	RandomTarget       int     `json:"random_target,omitempty"`
	HerdingSelected    int     `json:"herding_selected"`
	RandomSelected     int     `json:"random_selected"`
	HerdingRatio       float64 `json:"herding_ratio,omitempty"`
	RandomRatio        float64 `json:"random_ratio,omitempty"`
	Seed               int64   `json:"seed,omitempty"`
	Fallback           string  `json:"fallback,omitempty"`
}

// ExtractFunc computes the embedding of one sample. Returning an error
// drops the sample from herding without failing the run.
type ExtractFunc func(Sample) ([]float64, error)

// Normalize scales a vector to unit L2 norm in place and returns it.
// The zero vector stays zero.
func Normalize(vec []float64) []float64 {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// AllocateQuota splits totalQuota across classes proportionally to
// class size, floor first, then largest remainder. No class receives
// more than it has. Remainder ties break on the smaller class index so
// the split is stable.
func AllocateQuota(classSizes map[int]int, totalQuota int) map[int]int {
	alloc := make(map[int]int, len(classSizes))
	for k := range classSizes {
		alloc[k] = 0
	}
	if totalQuota <= 0 {
		return alloc
	}
	totalCount := 0
	for _, n := range classSizes {
		totalCount += n
	}
	if totalCount <= 0 {
		return alloc
	}

	raw := make(map[int]float64, len(classSizes))
	assigned := 0
	for k, n := range classSizes {
		raw[k] = float64(n) / float64(totalCount) * float64(totalQuota)
		alloc[k] = int(raw[k])
		if alloc[k] > n {
			alloc[k] = n
		}
		assigned += alloc[k]
	}

	order := make([]int, 0, len(classSizes))
	for k := range classSizes {
		order = append(order, k)
	}
	sort.Slice(order, func(i, j int) bool {
		ri := raw[order[i]] - math.Floor(raw[order[i]])
		rj := raw[order[j]] - math.Floor(raw[order[j]])
		if ri != rj {
			return ri > rj
		}
		return order[i] < order[j]
	})

	for i := 0; assigned < totalQuota && i <= totalQuota*4; i++ {
		k := order[i%len(order)]
		if alloc[k] < classSizes[k] {
			alloc[k]++
			assigned++
		}
	}
	return alloc
}

// Select picks up to opts.Quota samples: a herding share nearest each
// class centroid, topped up with seeded random picks. extract may be
// nil, which forces the random-only fallback. Identical inputs and seed
// give identical output.
func Select(samples []Sample, opts Options, extract ExtractFunc) ([]Sample, Stats) {
	stats := Stats{Enabled: true, OldSamplesTotal: len(samples), Seed: opts.Seed}
	if len(samples) == 0 {
		return nil, stats
	}

	quota := opts.Quota
	if quota <= 0 {
		return nil, stats
	}
	if quota > len(samples) {
		quota = len(samples)
	}
	stats.Quota = quota

	herdingRatio := clamp01(opts.HerdingRatio)
	randomRatio := clamp01(opts.RandomRatio)
	if herdingRatio+randomRatio <= 0 {
		herdingRatio, randomRatio = 0.8, 0.2
	}
	sum := herdingRatio + randomRatio
	herdingRatio /= sum
	randomRatio /= sum
	stats.HerdingRatio = herdingRatio
	stats.RandomRatio = randomRatio

	herdingTarget := int(math.Round(float64(quota) * herdingRatio))
	randomTarget := quota - herdingTarget

	rng := rand.New(rand.NewSource(opts.Seed))

	// Embed everything we can; samples that fail to embed drop out of
	// the herding pool.
	var valid []Sample
	var features [][]float64
	if extract != nil {
		for _, s := range samples {
			vec, err := extract(s)
			if err != nil || len(vec) == 0 {
				continue
			}
			valid = append(valid, s)
			features = append(features, Normalize(vec))
		}
	}
	if len(valid) == 0 {
		picked := randomSubset(rng, samples, quota)
		stats.OldSamplesSelected = len(picked)
		stats.RandomSelected = len(picked)
		stats.Fallback = "random_only_no_embeddings"
		return picked, stats
	}

	if quota > len(valid) {
		quota = len(valid)
	}
	if herdingTarget > quota {
		herdingTarget = quota
	}
	randomTarget = quota - herdingTarget
	stats.Quota = quota
	stats.HerdingTarget = herdingTarget
	stats.RandomTarget = randomTarget
	stats.OldSamplesEmbedded = len(valid)

	classIndices := map[int][]int{}
	for i, s := range valid {
		classIndices[s.Label] = append(classIndices[s.Label], i)
	}
	classSizes := make(map[int]int, len(classIndices))
	for k, idxs := range classIndices {
		classSizes[k] = len(idxs)
	}
	perClass := AllocateQuota(classSizes, herdingTarget)

	selected := map[int]bool{}
	classes := make([]int, 0, len(classIndices))
	for k := range classIndices {
		classes = append(classes, k)
	}
	sort.Ints(classes)
	for _, label := range classes {
		idxs := classIndices[label]
		targetK := perClass[label]
		if targetK <= 0 {
			continue
		}
		centroid := meanVector(features, idxs)
		type ranked struct {
			idx  int
			dist float64
		}
		order := make([]ranked, len(idxs))
		for i, idx := range idxs {
			order[i] = ranked{idx: idx, dist: l2Distance(features[idx], centroid)}
		}
		sort.SliceStable(order, func(i, j int) bool { return order[i].dist < order[j].dist })
		for _, r := range order[:min(targetK, len(order))] {
			selected[r.idx] = true
		}
	}

	// Herding can under-fill when a class allocation exceeds what the
	// centroid ranking yields; top up at random.
	remaining := unselected(len(valid), selected)
	if missing := herdingTarget - len(selected); missing > 0 && len(remaining) > 0 {
		for _, i := range randomIndices(rng, remaining, missing) {
			selected[i] = true
		}
		remaining = unselected(len(valid), selected)
	}

	if randomTarget > 0 && len(remaining) > 0 {
		for _, i := range randomIndices(rng, remaining, randomTarget) {
			selected[i] = true
		}
	}

	if len(selected) < quota {
		remaining = unselected(len(valid), selected)
		for _, i := range randomIndices(rng, remaining, quota-len(selected)) {
			selected[i] = true
		}
	}

	picked := make([]int, 0, len(selected))
	for i := range selected {
		picked = append(picked, i)
	}
	sort.Ints(picked)
	if len(picked) > quota {
		picked = picked[:quota]
	}

	out := make([]Sample, len(picked))
	for i, idx := range picked {
		out[i] = valid[idx]
	}
	stats.OldSamplesSelected = len(out)
	stats.HerdingSelected = min(len(out), herdingTarget)
	stats.RandomSelected = len(out) - stats.HerdingSelected
	return out, stats
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func meanVector(features [][]float64, idxs []int) []float64 {
	dim := len(features[idxs[0]])
	centroid := make([]float64, dim)
	for _, idx := range idxs {
		for d, v := range features[idx] {
			centroid[d] += v
		}
	}
	for d := range centroid {
		centroid[d] /= float64(len(idxs))
	}
	return centroid
}

func l2Distance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

func unselected(n int, selected map[int]bool) []int {
	var out []int
	for i := 0; i < n; i++ {
		if !selected[i] {
			out = append(out, i)
		}
	}
	return out
}

// randomIndices draws up to k distinct values from pool without
// replacement.
func randomIndices(rng *rand.Rand, pool []int, k int) []int {
	if k > len(pool) {
		k = len(pool)
	}
	shuffled := make([]int, len(pool))
	copy(shuffled, pool)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	return shuffled[:k]
}

func randomSubset(rng *rand.Rand, samples []Sample, k int) []Sample {
	if k >= len(samples) {
		out := make([]Sample, len(samples))
		copy(out, samples)
		return out
	}
	idxs := make([]int, len(samples))
	for i := range idxs {
		idxs[i] = i
	}
	picked := randomIndices(rng, idxs, k)
	sort.Ints(picked)
	out := make([]Sample, len(picked))
	for i, idx := range picked {
		out[i] = samples[idx]
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
