// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package promote decides whether trained candidates replace the
// production model, and handles manual promotion and rollback.
package promote

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
)

// ErrNoProduction blocks rollback when nothing is deployed.
var ErrNoProduction = errors.New("no production model registered")

// DefaultMetric is the comparison metric when the caller names none.
const DefaultMetric = "val_accuracy"

// Promoter evaluates candidates against production.
type Promoter struct {
	registry *registry.Registry
	events   *eventlog.Log
	logger   *logging.Logger
}

// New wires a promoter.
func New(reg *registry.Registry, events *eventlog.Log, logger *logging.Logger) *Promoter {
	if logger == nil {
		logger = logging.Default()
	}
	return &Promoter{registry: reg, events: events, logger: logger}
}

// Comparison is the outcome of one candidate-vs-production check.
type Comparison struct {
	ShouldPromote   bool    `json:"should_promote"`
	CandidateValue  float64 `json:"candidate_value"`
	ProductionValue float64 `json:"production_value"`
	HasProduction   bool    `json:"has_production"`
}

// Compare reads the candidate's metric and the production model's.
// With no production deployed, any candidate is promotable.
func (p *Promoter) Compare(candidateID, metric string, minImprovement float64) (Comparison, error) {
	if metric == "" {
		metric = DefaultMetric
	}
	candidate, err := p.registry.Get(candidateID)
	if err != nil {
		return Comparison{}, err
	}
	candidateValue, _ := candidate.Metric(metric)

	production, err := p.registry.GetProduction()
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return Comparison{ShouldPromote: true, CandidateValue: candidateValue}, nil
		}
		return Comparison{}, err
	}
	productionValue, _ := production.Metric(metric)

	return Comparison{
		ShouldPromote:   candidateValue-productionValue >= minImprovement,
		CandidateValue:  candidateValue,
		ProductionValue: productionValue,
		HasProduction:   true,
	}, nil
}

// Decision reports what EvaluateAndPromote did.
type Decision struct {
	VersionID       string  `json:"version_id"`
	Promoted        bool    `json:"promoted"`
	Archived        bool    `json:"archived"`
	Reason          string  `json:"reason"`
	CandidateValue  float64 `json:"candidate_value"`
	ProductionValue float64 `json:"production_value"`
	Previous        string  `json:"previous_production,omitempty"`
}

// EvaluateAndPromote compares and, when auto is set, acts: promotion on
// a sufficient improvement, archival otherwise. auto=false reports the
// decision without touching the registry.
func (p *Promoter) EvaluateAndPromote(versionID, metric string, minImprovement float64, auto bool) (Decision, error) {
	comparison, err := p.Compare(versionID, metric, minImprovement)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{
		VersionID:       versionID,
		CandidateValue:  comparison.CandidateValue,
		ProductionValue: comparison.ProductionValue,
	}

	if !comparison.ShouldPromote {
		decision.Reason = fmt.Sprintf("candidate %s did not improve on production (%.4f vs %.4f, need +%.4f)",
			versionID, comparison.CandidateValue, comparison.ProductionValue, minImprovement)
		if auto {
			if err := p.registry.Update(versionID, func(e *datatypes.ModelEntry) {
				e.Status = datatypes.StatusArchived
			}); err != nil {
				return decision, err
			}
			decision.Archived = true
		}
		return decision, nil
	}

	if !auto {
		decision.Reason = "candidate beats production; auto promotion disabled"
		return decision, nil
	}

	previous, err := p.registry.Promote(versionID)
	if err != nil {
		return decision, err
	}
	decision.Promoted = true
	decision.Previous = previous
	decision.Reason = fmt.Sprintf("promoted: %.4f over %.4f", comparison.CandidateValue, comparison.ProductionValue)

	if err := p.events.ModelPromoted(versionID, previous, decision.Reason); err != nil {
		p.logger.Warn("recording model_promoted failed", slog.Any("error", err))
	}
	return decision, nil
}

// ManualPromote promotes unconditionally, subject only to registry
// invariants, and logs the operator's reason.
func (p *Promoter) ManualPromote(versionID, reason string) (string, error) {
	previous, err := p.registry.Promote(versionID)
	if err != nil {
		return "", err
	}
	if reason == "" {
		reason = "manual promotion"
	}
	if err := p.events.ModelPromoted(versionID, previous, reason); err != nil {
		p.logger.Warn("recording model_promoted failed", slog.Any("error", err))
	}
	return previous, nil
}

// RollbackReport describes a completed rollback.
type RollbackReport struct {
	From string `json:"rolled_back_from"`
	To   string `json:"rolled_back_to"`
}

// Rollback reverts production to toVersion, or to the most recently
// archived model when toVersion is blank. Refuses when nothing is in
// production.
func (p *Promoter) Rollback(toVersion, reason string) (RollbackReport, error) {
	production, err := p.registry.GetProduction()
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return RollbackReport{}, ErrNoProduction
		}
		return RollbackReport{}, err
	}

	if toVersion == "" {
		newest, err := p.registry.MostRecentArchived()
		if err != nil {
			return RollbackReport{}, fmt.Errorf("no rollback target: %w", err)
		}
		toVersion = newest.VersionID
	}

	if _, err := p.registry.RollbackTo(toVersion); err != nil {
		return RollbackReport{}, err
	}

	if reason == "" {
		reason = "manual rollback"
	}
	if err := p.events.ModelRollback(production.VersionID, toVersion, reason); err != nil {
		p.logger.Warn("recording model_rollback failed", slog.Any("error", err))
	}
	return RollbackReport{From: production.VersionID, To: toVersion}, nil
}

// HealthReport is the deployment snapshot: registry state only, no
// online probing.
type HealthReport struct {
	HasProduction bool           `json:"has_production"`
	VersionID     string         `json:"version_id,omitempty"`
	Architecture  string         `json:"architecture,omitempty"`
	Metrics       map[string]any `json:"metrics,omitempty"`
	DeployedAt    string         `json:"deployed_at,omitempty"`
}

// Health reports whether a production model exists and its metrics.
func (p *Promoter) Health() (HealthReport, error) {
	production, err := p.registry.GetProduction()
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return HealthReport{}, nil
		}
		return HealthReport{}, err
	}
	return HealthReport{
		HasProduction: true,
		VersionID:     production.VersionID,
		Architecture:  production.Architecture,
		Metrics:       production.Metrics,
		DeployedAt:    production.CreatedAt,
	}, nil
}
