// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package labelpool maintains the corrected-label pool that feeds
// retraining. Records are keyed by case_id with latest-wins semantics;
// per-version usage tracking is append-only and deduplicated.
package labelpool

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

// ErrNotFound reports an unknown case_id.
var ErrNotFound = errors.New("label record not found")

// Pool is a handle to the label pool file. All operations load the file,
// mutate in memory, and rewrite atomically under the handle's lock.
type Pool struct {
	mu     sync.Mutex
	ledger *storage.Ledger
}

// New opens the pool at path.
func New(path string) *Pool {
	return &Pool{ledger: &storage.Ledger{Path: path}}
}

func (p *Pool) load() ([]datatypes.LabelRecord, error) {
	return storage.ReadAll[datatypes.LabelRecord](p.ledger)
}

func (p *Pool) rewrite(records []datatypes.LabelRecord) error {
	entries := make([]any, len(records))
	for i := range records {
		entries[i] = records[i]
	}
	return p.ledger.Rewrite(entries)
}

// AddLabel records a corrected label. Re-submitting a case_id overwrites
// every field except created_at and the used-tracking fields.
func (p *Pool) AddLabel(caseID string, imagePaths []string, label, userID string) (datatypes.LabelRecord, error) {
	if caseID == "" {
		return datatypes.LabelRecord{}, errors.New("case_id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return datatypes.LabelRecord{}, err
	}

	now := datatypes.Timestamp()
	record := datatypes.LabelRecord{
		CaseID:              caseID,
		ImagePaths:          imagePaths,
		CorrectLabel:        label,
		UserID:              userID,
		CreatedAt:           now,
		UpdatedAt:           now,
		UsedInModels:        []string{},
		ImageRetrainHistory: make(map[string][]string, len(imagePaths)),
	}
	for _, path := range imagePaths {
		record.ImageRetrainHistory[path] = []string{}
	}

	replaced := false
	for i := range records {
		if records[i].CaseID != caseID {
			continue
		}
		record.CreatedAt = records[i].CreatedAt
		record.UsedInModels = records[i].UsedInModels
		// Retrain history is append-only across corrections: every
		// prior path keeps its entry even when the new submission no
		// longer lists it; new paths start empty.
		for path, prior := range records[i].ImageRetrainHistory {
			record.ImageRetrainHistory[path] = prior
		}
		records[i] = record
		replaced = true
		break
	}
	if !replaced {
		records = append(records, record)
	}

	if err := p.rewrite(records); err != nil {
		return datatypes.LabelRecord{}, err
	}
	return record, nil
}

// GetAll returns every record in insertion order.
func (p *Pool) GetAll() ([]datatypes.LabelRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.load()
}

// GetUnused returns records no retrain run has consumed yet.
func (p *Pool) GetUnused() ([]datatypes.LabelRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return nil, err
	}
	var unused []datatypes.LabelRecord
	for _, r := range records {
		if !r.Used() {
			unused = append(unused, r)
		}
	}
	return unused, nil
}

// UnusedCount returns the number of unused records.
func (p *Pool) UnusedCount() (int, error) {
	unused, err := p.GetUnused()
	if err != nil {
		return 0, err
	}
	return len(unused), nil
}

// GetByCase returns the record for caseID, or ErrNotFound.
func (p *Pool) GetByCase(caseID string) (datatypes.LabelRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return datatypes.LabelRecord{}, err
	}
	for _, r := range records {
		if r.CaseID == caseID {
			return r, nil
		}
	}
	return datatypes.LabelRecord{}, fmt.Errorf("%w: %s", ErrNotFound, caseID)
}

// GetLabelsSince returns records updated at or after ts (RFC 3339).
func (p *Pool) GetLabelsSince(ts string) ([]datatypes.LabelRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return nil, err
	}
	var out []datatypes.LabelRecord
	for _, r := range records {
		if r.UpdatedAt >= ts {
			out = append(out, r)
		}
	}
	return out, nil
}

// GetLabelsForTraining flattens the pool to one sample per image, in
// record-insertion order.
func (p *Pool) GetLabelsForTraining() ([]datatypes.TrainingSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return nil, err
	}
	var samples []datatypes.TrainingSample
	for _, r := range records {
		for _, path := range r.ImagePaths {
			samples = append(samples, datatypes.TrainingSample{
				ImagePath: path,
				Label:     r.CorrectLabel,
				CaseID:    r.CaseID,
			})
		}
	}
	return samples, nil
}

// MarkUsed appends versionID to the used-tracking of every record (or,
// when caseIDs is non-nil, only the named ones). Idempotent per
// (version, case) pair. Returns the number of records updated.
func (p *Pool) MarkUsed(versionID string, caseIDs []string) (int, error) {
	if versionID == "" {
		return 0, errors.New("version_id is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return 0, err
	}

	var wanted map[string]bool
	if caseIDs != nil {
		wanted = make(map[string]bool, len(caseIDs))
		for _, id := range caseIDs {
			wanted[id] = true
		}
	}

	updated := 0
	for i := range records {
		if wanted != nil && !wanted[records[i].CaseID] {
			continue
		}
		changed := false
		if !contains(records[i].UsedInModels, versionID) {
			records[i].UsedInModels = append(records[i].UsedInModels, versionID)
			changed = true
		}
		if records[i].ImageRetrainHistory == nil {
			records[i].ImageRetrainHistory = make(map[string][]string)
		}
		for _, path := range records[i].ImagePaths {
			if !contains(records[i].ImageRetrainHistory[path], versionID) {
				records[i].ImageRetrainHistory[path] = append(records[i].ImageRetrainHistory[path], versionID)
				changed = true
			}
		}
		if changed {
			records[i].UpdatedAt = datatypes.Timestamp()
			updated++
		}
	}

	if updated == 0 {
		return 0, nil
	}
	if err := p.rewrite(records); err != nil {
		return 0, err
	}
	return updated, nil
}

// Delete removes the record for caseID. Returns ErrNotFound when absent.
func (p *Pool) Delete(caseID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return err
	}
	kept := records[:0]
	found := false
	for _, r := range records {
		if r.CaseID == caseID {
			found = true
			continue
		}
		kept = append(kept, r)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, caseID)
	}
	return p.rewrite(kept)
}

// Statistics summarizes pool state against the retrain threshold.
func (p *Pool) Statistics(threshold int) (datatypes.LabelStatistics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return datatypes.LabelStatistics{}, err
	}
	stats := datatypes.LabelStatistics{
		TotalLabels:      len(records),
		RetrainThreshold: threshold,
	}
	for _, r := range records {
		if r.Used() {
			stats.UsedLabels++
		} else {
			stats.UnusedLabels++
		}
	}
	stats.ReadyForRetrain = stats.UnusedLabels >= threshold
	return stats, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
