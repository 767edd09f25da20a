// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrain

import (
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

// CollectSamples gathers the labeled training set: the label pool
// first, then the legacy ledger scan for reject summaries carrying a
// correction. Samples with unknown labels or missing image files are
// dropped.
func (r *Runner) CollectSamples() ([]datatypes.TrainingSample, error) {
	samples, err := r.pool.GetLabelsForTraining()
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		samples, err = r.legacySamples()
		if err != nil {
			return nil, err
		}
	}
	return r.filterSamples(samples), nil
}

// legacySamples scans every ledger for reject summaries with a
// corrected label and image paths, for deployments predating the pool.
func (r *Runner) legacySamples() ([]datatypes.TrainingSample, error) {
	entries, err := r.cases.ReadAllEntriesGlobal()
	if err != nil {
		return nil, err
	}
	var samples []datatypes.TrainingSample
	for _, e := range entries {
		if e.EntryType != datatypes.KindReject || e.CorrectLabel == "" {
			continue
		}
		for _, imagePath := range e.ImagePaths {
			samples = append(samples, datatypes.TrainingSample{
				ImagePath: imagePath,
				Label:     e.CorrectLabel,
				CaseID:    e.CaseID,
			})
		}
	}
	return samples, nil
}

func (r *Runner) filterSamples(samples []datatypes.TrainingSample) []datatypes.TrainingSample {
	var kept []datatypes.TrainingSample
	for _, s := range samples {
		label := strings.ToLower(strings.TrimSpace(s.Label))
		if _, known := config.LabelMap[label]; !known {
			continue
		}
		resolved := s.ImagePath
		if !filepath.IsAbs(resolved) {
			resolved = filepath.Join(r.cfg.StorageRoot, resolved)
		}
		if _, err := os.Stat(resolved); err != nil {
			continue
		}
		kept = append(kept, datatypes.TrainingSample{
			ImagePath: resolved,
			Label:     label,
			CaseID:    s.CaseID,
		})
	}
	return kept
}

// StratifiedSplit shuffles under the seed and splits per class by
// trainRatio. Single-sample classes stay entirely in train; when the
// validation side ends up empty but train holds at least two samples,
// one moves over.
func StratifiedSplit(samples []datatypes.TrainingSample, trainRatio float64, seed int64) (train, val []datatypes.TrainingSample) {
	if len(samples) == 0 {
		return nil, nil
	}
	if trainRatio <= 0 || trainRatio >= 1 {
		trainRatio = 0.8
	}

	rng := rand.New(rand.NewSource(seed))
	shuffled := make([]datatypes.TrainingSample, len(samples))
	copy(shuffled, samples)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	byClass := map[string][]datatypes.TrainingSample{}
	for _, s := range shuffled {
		byClass[s.Label] = append(byClass[s.Label], s)
	}
	labels := make([]string, 0, len(byClass))
	for label := range byClass {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		group := byClass[label]
		if len(group) == 1 {
			train = append(train, group[0])
			continue
		}
		nTrain := int(float64(len(group)) * trainRatio)
		if nTrain < 1 {
			nTrain = 1
		}
		if nTrain >= len(group) {
			nTrain = len(group) - 1
		}
		train = append(train, group[:nTrain]...)
		val = append(val, group[nTrain:]...)
	}

	if len(val) == 0 && len(train) >= 2 {
		val = append(val, train[len(train)-1])
		train = train[:len(train)-1]
	}
	return train, val
}
