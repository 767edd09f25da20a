// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package retrain orchestrates model retraining: dataset assembly,
// experience replay, the trainer invocation, registry bookkeeping, and
// label-usage marking. The single-slot worker keeps at most one job on
// the device.
package retrain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/mlmodel"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/replay"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/trainconfig"
)

// ErrUnknownArchitecture rejects architectures outside the closed set.
var ErrUnknownArchitecture = errors.New("unknown architecture")

// Request describes one retrain job.
type Request struct {
	Architecture string
	ConfigPatch  *datatypes.TrainingConfigPatch
	TriggeredBy  string
}

// Result is the terminal state of one retrain job. Promotion is filled
// by the worker after a successful run.
type Result struct {
	Success      bool              `json:"success"`
	Reason       string            `json:"reason,omitempty"`
	VersionID    string            `json:"version_id,omitempty"`
	Architecture string            `json:"architecture,omitempty"`
	Metrics      map[string]any    `json:"metrics,omitempty"`
	SamplesUsed  int               `json:"samples_used"`
	ReplayStats  *replay.Stats     `json:"replay,omitempty"`
	Promotion    *promote.Decision `json:"promotion,omitempty"`
}

// Runner executes retrain jobs end to end.
type Runner struct {
	cfg      *config.Settings
	pool     *labelpool.Pool
	cases    *casestore.Store
	registry *registry.Registry
	events   *eventlog.Log
	configs  *trainconfig.Store
	backend  mlmodel.TrainerBackend
	logger   *logging.Logger
}

// NewRunner wires the pipeline.
func NewRunner(cfg *config.Settings, pool *labelpool.Pool, cases *casestore.Store,
	reg *registry.Registry, events *eventlog.Log, configs *trainconfig.Store,
	backend mlmodel.TrainerBackend, logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.Default()
	}
	return &Runner{
		cfg:      cfg,
		pool:     pool,
		cases:    cases,
		registry: reg,
		events:   events,
		configs:  configs,
		backend:  backend,
		logger:   logger,
	}
}

// NormalizeArchitecture lowercases and validates against the closed
// architecture set, defaulting to the configured architecture when
// blank.
func (r *Runner) NormalizeArchitecture(arch string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(arch))
	if normalized == "" {
		normalized = strings.ToLower(r.cfg.DefaultArchitecture)
	}
	switch normalized {
	case config.ArchEfficientNetV2M, config.ArchResNet50, config.ArchMobileNetV3Large, config.ArchDetect:
		return normalized, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownArchitecture, arch)
}

// Run executes one job under the caller's version ID. Domain failures
// come back inside the Result; an error means the pipeline itself broke
// before it could record anything.
func (r *Runner) Run(ctx context.Context, versionID string, req Request) *Result {
	arch, err := r.NormalizeArchitecture(req.Architecture)
	if err != nil {
		return &Result{Success: false, Reason: err.Error(), VersionID: versionID}
	}
	result := &Result{VersionID: versionID, Architecture: arch}

	trainingConfig, err := r.configs.Load()
	if err != nil {
		result.Reason = fmt.Sprintf("loading training config: %v", err)
		return result
	}
	if req.ConfigPatch != nil {
		trainingConfig = req.ConfigPatch.ApplyTo(trainingConfig)
		if errs := r.configs.Validate(trainingConfig); len(errs) > 0 {
			result.Reason = "invalid training config: " + strings.Join(errs, "; ")
			return result
		}
	}

	samples, err := r.CollectSamples()
	if err != nil {
		result.Reason = fmt.Sprintf("collecting samples: %v", err)
		return result
	}
	if len(samples) < r.cfg.RetrainMinNewLabels {
		result.Reason = fmt.Sprintf("not enough labeled samples: have %d, need %d",
			len(samples), r.cfg.RetrainMinNewLabels)
		return result
	}
	result.SamplesUsed = len(samples)

	outputDir := r.registry.CandidateDir(versionID)
	if err := r.registry.Register(datatypes.ModelEntry{
		VersionID:      versionID,
		Status:         datatypes.StatusTraining,
		Architecture:   arch,
		TrainingConfig: &trainingConfig,
		Path:           outputDir,
	}); err != nil {
		result.Reason = fmt.Sprintf("registering model: %v", err)
		return result
	}

	if err := r.events.TrainingStarted(versionID, arch, len(samples)); err != nil {
		r.logger.Warn("recording training_started failed", slog.Any("error", err))
	}

	trainResult, replayStats, runErr := r.train(ctx, versionID, arch, outputDir, trainingConfig, samples)
	if runErr != nil {
		r.fail(versionID, runErr)
		result.Reason = runErr.Error()
		return result
	}
	result.ReplayStats = replayStats

	metrics := trainResult.Metrics
	if metrics == nil {
		metrics = map[string]any{}
	}
	if replayStats != nil {
		metrics["experience_replay"] = replayStats
	}

	logPath := trainResult.TrainingLogPath
	if logPath == "" && len(trainResult.Epochs) > 0 {
		logPath = filepath.Join(outputDir, "training_log.json")
		if err := storage.AtomicWriteJSON(logPath, trainResult.Epochs); err != nil {
			r.logger.Warn("writing training log failed", slog.Any("error", err))
			logPath = ""
		}
	}

	if err := r.registry.Update(versionID, func(e *datatypes.ModelEntry) {
		e.Status = datatypes.StatusEvaluating
		e.Path = trainResult.WeightsPath
		e.Metrics = metrics
		e.Architecture = arch
	}); err != nil {
		// Training produced weights but the candidate cannot reach
		// evaluating; the run is terminal and must say so in the log.
		updateErr := fmt.Errorf("updating registry: %w", err)
		r.fail(versionID, updateErr)
		result.Reason = updateErr.Error()
		return result
	}

	caseIDs := uniqueCaseIDs(samples)
	if _, err := r.pool.MarkUsed(versionID, caseIDs); err != nil {
		r.logger.Warn("marking labels used failed",
			slog.String("version_id", versionID), slog.Any("error", err))
	}

	if err := r.events.TrainingCompleted(versionID, metrics); err != nil {
		r.logger.Warn("recording training_completed failed", slog.Any("error", err))
	}

	result.Success = true
	result.Metrics = metrics
	return result
}

// train runs replay selection, the split, and the backend call.
func (r *Runner) train(ctx context.Context, versionID, arch, outputDir string,
	trainingConfig datatypes.TrainingConfig, samples []datatypes.TrainingSample,
) (*mlmodel.TrainResult, *replay.Stats, error) {
	basePath := r.resolveBaseModel(arch)

	var replaySamples []datatypes.TrainingSample
	var replayStats *replay.Stats
	if r.cfg.ExperienceReplayEnabled {
		selected, stats, err := r.selectReplay(ctx, basePath)
		if err != nil {
			r.logger.Warn("replay selection failed, continuing without replay",
				slog.Any("error", err))
		} else {
			replaySamples = selected
			replayStats = stats
		}
	}

	combined := append(append([]datatypes.TrainingSample{}, samples...), replaySamples...)
	train, val := StratifiedSplit(combined, r.cfg.SplitTrainRatio, r.cfg.SplitSeed)

	trainResult, err := r.backend.Train(ctx, mlmodel.TrainRequest{
		VersionID:     versionID,
		Architecture:  arch,
		BaseModelPath: basePath,
		OutputDir:     outputDir,
		Device:        r.cfg.RetrainDevice,
		Config:        trainingConfig,
		TrainSamples:  train,
		ValSamples:    val,
	})
	if err != nil {
		return nil, nil, err
	}
	return trainResult, replayStats, nil
}

// resolveBaseModel picks the transfer-learning starting point. With
// force_base_only the configured base checkpoint always wins; otherwise
// a production model of the same architecture is preferred. An empty
// path tells the backend to start from pretrained weights.
func (r *Runner) resolveBaseModel(arch string) string {
	base := r.cfg.BaseModels[arch]
	if r.cfg.ForceBaseModelOnly {
		return base
	}
	if prod, err := r.registry.GetProduction(); err == nil && prod.Architecture == arch {
		if prod.ProductionPath != "" {
			return prod.ProductionPath
		}
		if prod.Path != "" {
			return prod.Path
		}
	}
	return base
}

func (r *Runner) selectReplay(ctx context.Context, checkpoint string) ([]datatypes.TrainingSample, *replay.Stats, error) {
	oldSamples, err := replay.CollectOldDataset(r.cfg)
	if err != nil {
		return nil, nil, err
	}
	if len(oldSamples) == 0 {
		return nil, nil, nil
	}

	extractor := r.backend.Extractor(checkpoint)
	paths := make([]string, len(oldSamples))
	for i, s := range oldSamples {
		paths[i] = s.Path
	}
	embeddings, err := extractor.Embed(ctx, paths)
	if err != nil {
		return nil, nil, err
	}

	extract := func(s replay.Sample) ([]float64, error) {
		vec, ok := embeddings[s.Path]
		if !ok {
			return nil, fmt.Errorf("no embedding for %s", s.Path)
		}
		out := make([]float64, len(vec))
		for i, v := range vec {
			out[i] = float64(v)
		}
		return out, nil
	}

	picked, stats := replay.Select(oldSamples, replay.Options{
		Quota:        r.cfg.ReplayQuota,
		HerdingRatio: r.cfg.ReplayHerdingRatio,
		RandomRatio:  r.cfg.ReplayRandomRatio,
		Seed:         r.cfg.ReplaySeed,
	}, extract)

	out := make([]datatypes.TrainingSample, len(picked))
	for i, s := range picked {
		out[i] = datatypes.TrainingSample{
			ImagePath: s.Path,
			Label:     config.ReverseLabelMap[s.Label],
		}
	}
	return out, &stats, nil
}

func (r *Runner) fail(versionID string, cause error) {
	reason := cause.Error()
	if len(reason) > 512 {
		reason = reason[:512]
	}
	if err := r.registry.Update(versionID, func(e *datatypes.ModelEntry) {
		e.Status = datatypes.StatusFailed
	}); err != nil {
		r.logger.Error("marking model failed", slog.Any("error", err))
	}
	if err := r.events.TrainingFailed(versionID, reason); err != nil {
		r.logger.Warn("recording training_failed failed", slog.Any("error", err))
	}
}

// uniqueCaseIDs lists the case IDs behind the new samples, input order,
// replay samples (no case) excluded.
func uniqueCaseIDs(samples []datatypes.TrainingSample) []string {
	seen := map[string]bool{}
	var ids []string
	for _, s := range samples {
		if s.CaseID == "" || seen[s.CaseID] {
			continue
		}
		seen[s.CaseID] = true
		ids = append(ids, s.CaseID)
	}
	return ids
}
