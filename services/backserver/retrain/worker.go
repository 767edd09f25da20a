// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package retrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
)

var (
	// ErrBusy means a retrain job already holds the device slot.
	ErrBusy = errors.New("retraining already in progress")
	// ErrThresholdNotMet means too few unused labels to justify a run.
	ErrThresholdNotMet = errors.New("not enough new labels for retraining")
)

// TriggerOutcome is the immediate acknowledgement of a trigger call.
type TriggerOutcome struct {
	VersionID   string  `json:"version_id"`
	Status      string  `json:"status"`
	UnusedCount int     `json:"unused_labels"`
	Result      *Result `json:"result,omitempty"`
}

// StatusReport is the synthesized retrain status.
type StatusReport struct {
	Status      string                `json:"status"`
	VersionID   string                `json:"version_id,omitempty"`
	LatestModel *datatypes.ModelEntry `json:"latest_model,omitempty"`
	LastEvents  []datatypes.Event     `json:"last_events,omitempty"`
	UnusedCount int                   `json:"unused_labels"`
	Threshold   int                   `json:"retrain_threshold"`
}

// Worker owns the single training slot. Triggers either start a
// background job and return immediately, or run synchronously when the
// caller asks to wait. Every successful run ends with the promotion
// decision, background or not.
type Worker struct {
	runner   *Runner
	promoter *promote.Promoter
	slot     *semaphore.Weighted

	mu         sync.Mutex
	current    string
	lastResult *Result
}

// NewWorker wraps a runner with the device slot. A nil promoter leaves
// candidates in evaluating for a manual decision.
func NewWorker(runner *Runner, promoter *promote.Promoter) *Worker {
	return &Worker{
		runner:   runner,
		promoter: promoter,
		slot:     semaphore.NewWeighted(1),
	}
}

// Trigger validates the request, claims the slot, and starts the job.
// force skips the unused-label threshold; wait blocks until the job
// finishes and attaches its result.
func (w *Worker) Trigger(ctx context.Context, req Request, force, wait bool) (*TriggerOutcome, error) {
	if _, err := w.runner.NormalizeArchitecture(req.Architecture); err != nil {
		return nil, err
	}

	unused, err := w.runner.pool.UnusedCount()
	if err != nil {
		return nil, fmt.Errorf("counting unused labels: %w", err)
	}
	if !force && unused < w.runner.cfg.RetrainMinNewLabels {
		return nil, fmt.Errorf("%w: have %d, need %d",
			ErrThresholdNotMet, unused, w.runner.cfg.RetrainMinNewLabels)
	}

	if !w.slot.TryAcquire(1) {
		return nil, ErrBusy
	}

	versionID, err := w.runner.registry.GenerateVersionID()
	if err != nil {
		w.slot.Release(1)
		return nil, fmt.Errorf("allocating version id: %w", err)
	}

	if err := w.runner.events.RetrainTriggered(versionID, req.TriggeredBy, unused); err != nil {
		w.runner.logger.Warn("recording retrain_triggered failed", slog.Any("error", err))
	}

	w.mu.Lock()
	w.current = versionID
	w.mu.Unlock()

	outcome := &TriggerOutcome{VersionID: versionID, Status: "started", UnusedCount: unused}
	if wait {
		outcome.Result = w.execute(ctx, versionID, req)
		if !outcome.Result.Success {
			outcome.Status = "failed"
		} else {
			outcome.Status = "completed"
		}
		return outcome, nil
	}

	go w.execute(context.WithoutCancel(ctx), versionID, req)
	return outcome, nil
}

func (w *Worker) execute(ctx context.Context, versionID string, req Request) *Result {
	defer func() {
		w.mu.Lock()
		w.current = ""
		w.mu.Unlock()
		w.slot.Release(1)
	}()

	result := w.runner.Run(ctx, versionID, req)

	if result.Success && w.promoter != nil {
		decision, err := w.promoter.EvaluateAndPromote(versionID, promote.DefaultMetric, 0, true)
		if err != nil {
			w.runner.logger.Warn("auto promotion failed",
				slog.String("version_id", versionID), slog.Any("error", err))
		} else {
			result.Promotion = &decision
		}
	}

	w.mu.Lock()
	w.lastResult = result
	w.mu.Unlock()

	w.runner.logger.Info("retrain job finished",
		slog.String("version_id", versionID),
		slog.Bool("success", result.Success),
		slog.String("reason", result.Reason),
	)
	return result
}

// Running reports the version ID of the in-flight job, if any.
func (w *Worker) Running() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, w.current != ""
}

// LastResult returns the most recent terminal result.
func (w *Worker) LastResult() *Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastResult
}

// Status synthesizes the retrain state from the worker, the registry,
// and the event log: "training" while a job runs (or a registry entry
// is mid-training), "not_started" before the first model exists,
// "idle" otherwise.
func (w *Worker) Status() (StatusReport, error) {
	report := StatusReport{Threshold: w.runner.cfg.RetrainMinNewLabels}

	if unused, err := w.runner.pool.UnusedCount(); err == nil {
		report.UnusedCount = unused
	}

	if versionID, running := w.Running(); running {
		report.Status = "training"
		report.VersionID = versionID
		return report, nil
	}

	models, err := w.runner.registry.List("")
	if err != nil {
		return report, err
	}
	for i := range models {
		if models[i].Status == datatypes.StatusTraining {
			report.Status = "training"
			report.VersionID = models[i].VersionID
			report.LatestModel = &models[i]
			return report, nil
		}
	}
	if len(models) == 0 {
		report.Status = "not_started"
		return report, nil
	}

	report.Status = "idle"
	report.LatestModel = &models[0]
	report.VersionID = models[0].VersionID
	if events, err := w.runner.events.Recent(5); err == nil {
		report.LastEvents = events
	}
	return report, nil
}
