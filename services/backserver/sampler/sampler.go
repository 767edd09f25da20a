// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package sampler ranks cases for review by margin-based uncertainty:
// the smaller the gap between a classifier's top two confidences, the
// more a human label is worth.
package sampler

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

// CaseImage is the per-image view attached to a candidate, joined from
// the image entries of the same ledger.
type CaseImage struct {
	Path        string                 `json:"path"`
	ImageID     string                 `json:"image_id,omitempty"`
	Predictions []datatypes.Prediction `json:"predictions,omitempty"`
	BlurScore   float64                `json:"blur_score,omitempty"`
	Status      string                 `json:"status,omitempty"`
}

// Candidate is a case summary scored for labeling priority.
type Candidate struct {
	datatypes.LedgerEntry
	Images           []CaseImage `json:"images,omitempty"`
	Margin           float64     `json:"margin"`
	UncertaintyScore float64     `json:"uncertainty_score"`
}

// Result is the ranked candidate set.
type Result struct {
	Candidates      []Candidate `json:"candidates"`
	TotalCandidates int         `json:"total_candidates"`
	SelectionMethod string      `json:"selection_method"`
	Description     string      `json:"description"`
	Message         string      `json:"message,omitempty"`
}

// Options narrows which summaries are eligible before scoring.
type Options struct {
	// EntryType keeps only one summary kind when set.
	EntryType string
	// Status keeps only summaries with this status when set.
	Status string
	// IncludeLabeled keeps cases that already carry a corrected label.
	IncludeLabeled bool
}

// Margin is the confidence gap between the top two predictions. Fewer
// than two predictions means nothing to confuse, so maximum certainty.
func Margin(predictions []datatypes.Prediction) float64 {
	if len(predictions) < 2 {
		return 1.0
	}
	sorted := make([]datatypes.Prediction, len(predictions))
	copy(sorted, predictions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	return sorted[0].Confidence - sorted[1].Confidence
}

// CaseMargin is the minimum margin across the candidate's images; the
// most confusing image decides the case. Falls back to the summary's
// own predictions when no image carries any.
func CaseMargin(c Candidate) float64 {
	margins := make([]float64, 0, len(c.Images))
	for _, img := range c.Images {
		if len(img.Predictions) > 0 {
			margins = append(margins, Margin(img.Predictions))
		}
	}
	if len(margins) == 0 {
		if len(c.Predictions) > 0 {
			return Margin(c.Predictions)
		}
		return 1.0
	}
	min := margins[0]
	for _, m := range margins[1:] {
		if m < min {
			min = m
		}
	}
	return min
}

// BuildCandidates turns raw ledger entries into scoreable candidates:
// summaries pass the Options filters, and each summary's image_paths are
// joined back to the matching image entries for their predictions.
func BuildCandidates(entries []datatypes.LedgerEntry, opts Options) []Candidate {
	images := make(map[string]datatypes.LedgerEntry)
	for _, e := range entries {
		if e.ImageID != "" {
			images[e.ImageID] = e
		}
	}

	var candidates []Candidate
	for _, e := range entries {
		if !e.IsSummary() {
			continue
		}
		if !opts.IncludeLabeled && e.CorrectLabel != "" {
			continue
		}
		if opts.EntryType != "" && !strings.EqualFold(string(e.EntryType), opts.EntryType) {
			continue
		}
		if opts.Status != "" && !strings.EqualFold(e.Status, opts.Status) {
			continue
		}

		c := Candidate{LedgerEntry: e}
		for _, imagePath := range e.ImagePaths {
			img := CaseImage{Path: imagePath, ImageID: imageIDFromPath(imagePath)}
			if entry, ok := images[img.ImageID]; ok {
				img.Predictions = entry.Predictions
				img.BlurScore = entry.BlurScore
				img.Status = entry.Status
			}
			c.Images = append(c.Images, img)
		}
		candidates = append(candidates, c)
	}
	return candidates
}

// imageIDFromPath is the file stem of a stored image path.
func imageIDFromPath(imagePath string) string {
	base := path.Base(imagePath)
	return strings.TrimSuffix(base, path.Ext(base))
}

// SelectUncertain scores every candidate and returns the topK most
// uncertain, smallest margin first. Equal margins keep input order.
// topK <= 0 means no cap.
func SelectUncertain(candidates []Candidate, topK int) []Candidate {
	scored := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Margin = CaseMargin(c)
		c.UncertaintyScore = 1.0 - c.Margin
		scored[i] = c
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Margin < scored[j].Margin
	})
	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	return scored
}

// Select is the full candidate pipeline: filter, join images, score,
// and rank.
func Select(entries []datatypes.LedgerEntry, opts Options, topK int) Result {
	candidates := BuildCandidates(entries, opts)
	if len(candidates) == 0 {
		return Result{Candidates: []Candidate{}, Message: "No cases available"}
	}
	ranked := SelectUncertain(candidates, topK)
	return Result{
		Candidates:      ranked,
		TotalCandidates: len(ranked),
		SelectionMethod: "minimum_margin_case_sampling",
		Description: fmt.Sprintf(
			"Top %d most uncertain cases based on minimum prediction margins across all images", len(ranked)),
	}
}
