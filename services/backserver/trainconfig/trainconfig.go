// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package trainconfig persists the validated hyperparameter bundle used by
// the retrainer. Load merges the stored file over defaults; Save validates
// a patch, merges it, and rewrites the whole file atomically. An optional
// fsnotify watcher keeps a cached copy fresh when operators edit the file
// out of band.
package trainconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

// Store is a handle to the active training config file.
type Store struct {
	mu       sync.Mutex
	path     string
	validate *validator.Validate
	logger   *logging.Logger

	cached  datatypes.TrainingConfig
	hasCach bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// New creates a Store for the config at path.
func New(path string, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		path:     path,
		validate: validator.New(),
		logger:   logger,
	}
}

// Load returns the persisted config merged over defaults. A missing file
// yields pure defaults; a corrupt file is reported.
func (s *Store) Load() (datatypes.TrainingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (datatypes.TrainingConfig, error) {
	if s.hasCach {
		return s.cached, nil
	}

	config := datatypes.DefaultTrainingConfig()
	var patch datatypes.TrainingConfigPatch
	err := storage.ReadJSONFile(s.path, &patch)
	switch {
	case err == nil:
		config = patch.ApplyTo(config)
	case os.IsNotExist(err):
		// Defaults.
	default:
		return config, fmt.Errorf("loading training config: %w", err)
	}

	s.cached = config
	s.hasCach = true
	return config, nil
}

// Save validates patch, merges it over defaults, and persists the result.
// Returns the saved config or the validation error list.
func (s *Store) Save(patch datatypes.TrainingConfigPatch) (datatypes.TrainingConfig, []string, error) {
	merged := patch.ApplyTo(datatypes.DefaultTrainingConfig())
	if errs := s.Validate(merged); len(errs) > 0 {
		return datatypes.TrainingConfig{}, errs, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := storage.AtomicWriteJSON(s.path, merged); err != nil {
		return datatypes.TrainingConfig{}, nil, err
	}
	s.cached = merged
	s.hasCach = true
	return merged, nil, nil
}

// Validate returns a human-readable error per out-of-range field; an
// empty list means the bundle is acceptable.
func (s *Store) Validate(config datatypes.TrainingConfig) []string {
	err := s.validate.Struct(config)
	if err == nil {
		return nil
	}

	var errs []string
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}
	for _, fe := range validationErrs {
		switch fe.Field() {
		case "Epochs":
			errs = append(errs, "epochs must be between 1 and 100")
		case "BatchSize":
			errs = append(errs, "batch_size must be between 1 and 128")
		case "LearningRate":
			errs = append(errs, "learning_rate must be between 1e-6 and 1.0")
		case "Optimizer":
			errs = append(errs, "optimizer must be one of Adam, SGD, AdamW, RMSprop")
		case "Dropout":
			errs = append(errs, "dropout must be between 0.0 and 0.9")
		default:
			errs = append(errs, fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag()))
		}
	}
	return errs
}

// Watch starts an fsnotify watcher that invalidates the cache whenever the
// config file changes on disk. Safe to call once; Close stops it.
func (s *Store) Watch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher != nil {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating config watcher: %w", err)
	}
	// Watch the directory: atomic rename replaces the file inode, so
	// watching the file itself would go stale after the first save.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		watcher.Close()
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop(watcher, s.done)
	return nil
}

func (s *Store) watchLoop(watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				s.mu.Lock()
				s.hasCach = false
				s.mu.Unlock()
				s.logger.Info("training config changed on disk, cache invalidated", "path", s.path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("config watcher error", "error", err.Error())
		case <-done:
			return
		}
	}
}

// Close stops the watcher, if running.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	err := s.watcher.Close()
	s.watcher = nil
	return err
}
