// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package registry is the model version catalog: one JSON document holding
// every version's lifecycle state, the production pointer, and an optional
// pinned inference version. All mutations are load-mutate-rewrite under a
// single lock; promotion and rollback hold the lock across the file moves
// they entail so readers never see a half-promoted registry.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

var (
	// ErrNotFound reports an unknown version_id.
	ErrNotFound = errors.New("model version not found")
	// ErrProductionProtected reports an attempt to delete the production
	// version.
	ErrProductionProtected = errors.New("cannot delete the production version")
	// ErrBadRollbackSource reports a rollback target that is neither
	// archived nor production.
	ErrBadRollbackSource = errors.New("rollback target must be archived or production")
)

// Registry is the handle to the version catalog.
type Registry struct {
	mu     sync.Mutex
	path   string
	logger *logging.Logger

	// Directory layout for model artifacts.
	productionDir string
	archiveDir    string
	candidatesDir string

	// now is swappable for deterministic version IDs in tests.
	now func() time.Time
}

// Config names the registry file and the artifact directories.
type Config struct {
	Path          string
	ProductionDir string
	ArchiveDir    string
	CandidatesDir string
}

// New creates a Registry handle. A missing registry file reads as empty.
func New(cfg Config, logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	return &Registry{
		path:          cfg.Path,
		logger:        logger,
		productionDir: cfg.ProductionDir,
		archiveDir:    cfg.ArchiveDir,
		candidatesDir: cfg.CandidatesDir,
		now:           time.Now,
	}
}

func (r *Registry) load() (*datatypes.RegistryDoc, error) {
	doc := &datatypes.RegistryDoc{Models: map[string]*datatypes.ModelEntry{}}
	err := storage.ReadJSONFile(r.path, doc)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading registry: %w", err)
	}
	if doc.Models == nil {
		doc.Models = map[string]*datatypes.ModelEntry{}
	}
	return doc, nil
}

func (r *Registry) save(doc *datatypes.RegistryDoc) error {
	return storage.AtomicWriteJSON(r.path, doc)
}

// CandidateDir returns the artifact directory for a candidate version.
func (r *Registry) CandidateDir(versionID string) string {
	return filepath.Join(r.candidatesDir, versionID)
}

// ProductionModelPath returns the canonical production weights path.
func (r *Registry) ProductionModelPath() string {
	return filepath.Join(r.productionDir, "model.pt")
}

// GenerateVersionID allocates the next v<YYYYMMDD>_<NNN> for today,
// strictly increasing within a day.
func (r *Registry) GenerateVersionID() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}
	return nextVersionID(doc, r.now()), nil
}

func nextVersionID(doc *datatypes.RegistryDoc, now time.Time) string {
	day := now.Format("20060102")
	prefix := "v" + day + "_"
	maxSeq := 0
	for id := range doc.Models {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > maxSeq {
			maxSeq = n
		}
	}
	return fmt.Sprintf("%s%03d", prefix, maxSeq+1)
}

// Register adds a version. VersionID and Status must be set by the
// caller; CreatedAt is stamped when absent.
func (r *Registry) Register(entry datatypes.ModelEntry) error {
	if entry.VersionID == "" {
		return errors.New("version_id is required")
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = datatypes.Timestamp()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	doc.Models[entry.VersionID] = &entry
	return r.save(doc)
}

// Update applies fn to the named entry and persists the result.
func (r *Registry) Update(versionID string, fn func(*datatypes.ModelEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	entry, ok := doc.Models[versionID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, versionID)
	}
	fn(entry)
	return r.save(doc)
}

// Get returns one version's entry.
func (r *Registry) Get(versionID string) (datatypes.ModelEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return datatypes.ModelEntry{}, err
	}
	entry, ok := doc.Models[versionID]
	if !ok {
		return datatypes.ModelEntry{}, fmt.Errorf("%w: %s", ErrNotFound, versionID)
	}
	return *entry, nil
}

// List returns versions sorted newest-first by version ID, optionally
// filtered by status.
func (r *Registry) List(status datatypes.ModelStatus) ([]datatypes.ModelEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	var out []datatypes.ModelEntry
	for _, entry := range doc.Models {
		if status != "" && entry.Status != status {
			continue
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].VersionID > out[j].VersionID
	})
	return out, nil
}

// GetProduction returns the current production entry, or ErrNotFound when
// nothing has been promoted.
func (r *Registry) GetProduction() (datatypes.ModelEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return datatypes.ModelEntry{}, err
	}
	if doc.CurrentProduction == "" {
		return datatypes.ModelEntry{}, fmt.Errorf("%w: no production model", ErrNotFound)
	}
	entry, ok := doc.Models[doc.CurrentProduction]
	if !ok {
		return datatypes.ModelEntry{}, fmt.Errorf("%w: production pointer %s dangles", ErrNotFound, doc.CurrentProduction)
	}
	return *entry, nil
}

// Promote makes versionID the single production version. The displaced
// production entry is archived and its weights file moves into the
// archive tree; the target's weights are mirrored to production/model.pt
// when they live elsewhere (the candidate copy stays for provenance).
// Returns the previous production version ID, "" when there was none.
func (r *Registry) Promote(versionID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}
	target, ok := doc.Models[versionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, versionID)
	}

	previous := doc.CurrentProduction
	if previous != "" && previous != versionID {
		if old, ok := doc.Models[previous]; ok {
			if err := r.archiveEntry(old); err != nil {
				return "", err
			}
		}
	}

	target.Status = datatypes.StatusProduction
	doc.CurrentProduction = versionID
	doc.PendingPromotion = ""

	if target.Path != "" && !strings.HasPrefix(filepath.Clean(target.Path), filepath.Clean(r.productionDir)) {
		prodPath := r.ProductionModelPath()
		if err := storage.CopyFile(target.Path, prodPath); err != nil {
			return "", fmt.Errorf("mirroring weights to production: %w", err)
		}
		target.ProductionPath = prodPath
	}

	if err := r.save(doc); err != nil {
		return "", err
	}
	r.logger.Info("model promoted", "version_id", versionID, "previous", previous)
	if previous == versionID {
		previous = ""
	}
	return previous, nil
}

// archiveEntry flips an entry to archived and moves its current weights
// file under archive/<version>/. Caller holds the lock.
func (r *Registry) archiveEntry(entry *datatypes.ModelEntry) error {
	entry.Status = datatypes.StatusArchived

	src := entry.ProductionPath
	if src == "" {
		src = entry.Path
	}
	if src == "" {
		return nil
	}
	if _, err := os.Stat(src); err != nil {
		// Weights already gone; archive the catalog entry anyway.
		r.logger.Warn("archiving entry with missing weights file", "version_id", entry.VersionID, "path", src)
		entry.ProductionPath = ""
		return nil
	}

	dst := filepath.Join(r.archiveDir, entry.VersionID, filepath.Base(entry.Path))
	if dst == src {
		return nil
	}
	if err := storage.CopyFile(src, dst); err != nil {
		return fmt.Errorf("archiving weights for %s: %w", entry.VersionID, err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("removing old weights %s: %w", src, err)
	}
	entry.Path = dst
	entry.ProductionPath = ""
	return nil
}

// RollbackTo re-promotes an archived (or the current production) version.
// Other states are rejected; promotion semantics apply unchanged.
func (r *Registry) RollbackTo(versionID string) (string, error) {
	entry, err := r.Get(versionID)
	if err != nil {
		return "", err
	}
	if entry.Status != datatypes.StatusArchived && entry.Status != datatypes.StatusProduction {
		return "", fmt.Errorf("%w: %s is %s", ErrBadRollbackSource, versionID, entry.Status)
	}
	return r.Promote(versionID)
}

// MostRecentArchived returns the newest archived version, for rollbacks
// with no explicit target.
func (r *Registry) MostRecentArchived() (datatypes.ModelEntry, error) {
	archived, err := r.List(datatypes.StatusArchived)
	if err != nil {
		return datatypes.ModelEntry{}, err
	}
	if len(archived) == 0 {
		return datatypes.ModelEntry{}, fmt.Errorf("%w: no archived models", ErrNotFound)
	}
	return archived[0], nil
}

// Delete removes a version from the catalog. The production version is
// protected. Artifact files are left on disk for out-of-band cleanup.
func (r *Registry) Delete(versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := doc.Models[versionID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, versionID)
	}
	if doc.CurrentProduction == versionID {
		return ErrProductionProtected
	}
	delete(doc.Models, versionID)
	if doc.ActiveInference == versionID {
		doc.ActiveInference = ""
	}
	return r.save(doc)
}

// SetActiveInference pins (or, with "", unpins) the inference version.
func (r *Registry) SetActiveInference(versionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return err
	}
	if versionID != "" {
		if _, ok := doc.Models[versionID]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, versionID)
		}
	}
	doc.ActiveInference = versionID
	return r.save(doc)
}

// ActiveInference resolves the version serving inference: the pinned
// version when set, otherwise current production. Empty when neither.
func (r *Registry) ActiveInference() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return "", err
	}
	if doc.ActiveInference != "" {
		return doc.ActiveInference, nil
	}
	return doc.CurrentProduction, nil
}

// Snapshot returns a copy of the whole document for admin listings.
func (r *Registry) Snapshot() (datatypes.RegistryDoc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load()
	if err != nil {
		return datatypes.RegistryDoc{}, err
	}
	out := datatypes.RegistryDoc{
		Models:            make(map[string]*datatypes.ModelEntry, len(doc.Models)),
		CurrentProduction: doc.CurrentProduction,
		PendingPromotion:  doc.PendingPromotion,
		ActiveInference:   doc.ActiveInference,
	}
	for id, entry := range doc.Models {
		copied := *entry
		out.Models[id] = &copied
	}
	return out, nil
}
