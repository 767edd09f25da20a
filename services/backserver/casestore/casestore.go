// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package casestore owns the per-user case ledgers: append-only JSONL
// files holding image entries and case summaries, plus the monotonic
// per-user case-ID allocator. Every write path runs under the user's
// ledger lock; cross-user operations iterate per user without a global
// lock.
package casestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

var (
	// ErrCaseNotFound reports an unknown case for the addressed user(s).
	ErrCaseNotFound = errors.New("case not found")
	// ErrAmbiguousCase reports that a cross-user search matched several
	// users' ledgers and needs a case_user_id disambiguator.
	ErrAmbiguousCase = errors.New("multiple rejected cases match; provide case_user_id")
	// ErrUserNotFound reports a missing per-user ledger.
	ErrUserNotFound = errors.New("user metadata not found")
)

// ReleaseResult is the outcome of a case-ID release attempt. Status is
// "ok" or "skipped"; Reason is set when skipped.
type ReleaseResult struct {
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	LastCaseID string `json:"last_case_id,omitempty"`
	CaseID     string `json:"case_id,omitempty"`
}

// Release reason codes.
const (
	ReasonMissingCounter  = "missing_counter"
	ReasonCounterMismatch = "counter_mismatch"
	ReasonCaseInUse       = "case_in_use"
)

// Filter narrows a case read.
type Filter struct {
	Kinds  map[datatypes.EntryKind]bool
	Status string
	Limit  int
}

// Store is the handle to all per-user ledgers.
type Store struct {
	cfg    *config.Settings
	cipher *storage.Cipher
	locks  *storage.KeyedMutex
	logger *logging.Logger
}

// New creates a Store. cipher may be nil when encryption is off.
func New(cfg *config.Settings, cipher *storage.Cipher, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		cfg:    cfg,
		cipher: cipher,
		locks:  storage.NewKeyedMutex(),
		logger: logger,
	}
}

func (s *Store) ledger(userID string) *storage.Ledger {
	return &storage.Ledger{Path: s.cfg.UserMetadataFile(userID), Cipher: s.cipher}
}

func (s *Store) legacyLedger() *storage.Ledger {
	return &storage.Ledger{Path: s.cfg.LegacyMetadataFile, Cipher: s.cipher}
}

func (s *Store) readEntries(userID string) ([]datatypes.LedgerEntry, error) {
	return storage.ReadAll[datatypes.LedgerEntry](s.ledger(userID))
}

func (s *Store) writeEntries(userID string, entries []datatypes.LedgerEntry) error {
	out := make([]any, len(entries))
	for i := range entries {
		out[i] = entries[i]
	}
	return s.ledger(userID).Rewrite(out)
}

// userIDs lists every user with a storage directory, sorted.
func (s *Store) userIDs() ([]string, error) {
	dirents, err := os.ReadDir(s.cfg.StorageRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing storage root: %w", err)
	}
	var ids []string
	for _, d := range dirents {
		if d.IsDir() {
			ids = append(ids, d.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================================================
// Case-ID allocator
// =============================================================================

type caseCounter struct {
	LastCaseID int `json:"last_case_id"`
}

// readCounter returns the persisted counter, ok=false when absent or
// unreadable.
func (s *Store) readCounter(userID string) (int, bool) {
	var c caseCounter
	if err := storage.ReadJSONFile(s.cfg.UserCounterFile(userID), &c); err != nil {
		return 0, false
	}
	return c.LastCaseID, true
}

func (s *Store) writeCounter(userID string, lastID int) error {
	return storage.AtomicWriteJSON(s.cfg.UserCounterFile(userID), caseCounter{LastCaseID: lastID})
}

// maxLedgerCaseID scans the user's ledger for the largest numeric case ID
// within the allocator's digit budget. Returns 0 when none.
func (s *Store) maxLedgerCaseID(userID string) int {
	maxID := 0
	_ = storage.ScanInto(s.ledger(userID), func(e datatypes.LedgerEntry) error {
		n, ok := numericCaseID(e.CaseID)
		if ok && n > maxID {
			maxID = n
		}
		return nil
	})
	return maxID
}

// numericCaseID parses an allocator-issued case ID: all digits, at most
// CaseIDMaxDigits long. Longer strings are legacy date-based IDs.
func numericCaseID(caseID string) (int, bool) {
	if caseID == "" || len(caseID) > config.CaseIDMaxDigits {
		return 0, false
	}
	n, err := strconv.Atoi(caseID)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// AllocateCaseID reserves and returns the next case ID for the user.
// The persisted counter is a cache of the ledger maximum; when the two
// disagree the ledger wins and the counter is rewritten.
func (s *Store) AllocateCaseID(userID string) (string, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	last, ok := s.readCounter(userID)
	ledgerMax := s.maxLedgerCaseID(userID)
	if !ok || ledgerMax > last {
		if ok {
			s.logger.Warn("case counter behind ledger, repairing",
				"user_id", userID, "counter", last, "ledger_max", ledgerMax)
		}
		last = ledgerMax
	}

	next := last + 1
	if next < s.cfg.CaseIDStart {
		next = s.cfg.CaseIDStart
	}
	if err := s.writeCounter(userID, next); err != nil {
		return "", err
	}
	return strconv.Itoa(next), nil
}

// ReleaseCaseID returns an unused allocation. The counter only moves when
// the released ID is exactly the last allocated one and no ledger entry
// references it; every other outcome reports a reason without mutating
// state.
func (s *Store) ReleaseCaseID(userID, caseID string) (ReleaseResult, error) {
	if _, ok := numericCaseID(caseID); !ok {
		return ReleaseResult{}, fmt.Errorf("invalid case_id %q", caseID)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	last, ok := s.readCounter(userID)
	if !ok {
		return ReleaseResult{Status: "skipped", Reason: ReasonMissingCounter}, nil
	}
	if strconv.Itoa(last) != caseID {
		return ReleaseResult{
			Status:     "skipped",
			Reason:     ReasonCounterMismatch,
			LastCaseID: strconv.Itoa(last),
		}, nil
	}

	inUse := false
	err := storage.ScanInto(s.ledger(userID), func(e datatypes.LedgerEntry) error {
		if e.CaseID == caseID {
			inUse = true
			return storage.ErrStopIteration
		}
		return nil
	})
	if err != nil {
		return ReleaseResult{}, err
	}
	if inUse {
		return ReleaseResult{Status: "skipped", Reason: ReasonCaseInUse}, nil
	}

	prev := last - 1
	if floor := s.cfg.CaseIDStart - 1; prev < floor {
		prev = floor
	}
	if err := s.writeCounter(userID, prev); err != nil {
		return ReleaseResult{}, err
	}
	return ReleaseResult{Status: "ok", CaseID: caseID}, nil
}

// =============================================================================
// Ledger writes
// =============================================================================

// RecordImage appends an image entry to the user's ledger. CreatedAt and
// UserID are stamped when absent.
func (s *Store) RecordImage(userID string, entry datatypes.LedgerEntry) error {
	entry.EntryType = datatypes.KindImage
	if entry.UserID == "" {
		entry.UserID = userID
	}
	if entry.CreatedAt == "" {
		entry.CreatedAt = datatypes.Timestamp()
	}

	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.ledger(userID).Append(entry)
}

// UpsertCaseSummary records (or replaces) the single summary for a case:
// prior summaries for the case are elided, image entries get the summary
// context denormalized onto them, and image_ids/image_paths are derived
// from the surviving image entries. A blank case_id allocates a fresh one.
func (s *Store) UpsertCaseSummary(userID, userRole string, payload datatypes.CasePayload, entryType datatypes.EntryKind, defaultStatus string) (datatypes.LedgerEntry, error) {
	if !entryType.IsSummary() {
		return datatypes.LedgerEntry{}, fmt.Errorf("entry type %q is not a summary kind", entryType)
	}

	caseID := payload.CaseID
	if caseID == "" {
		allocated, err := s.AllocateCaseID(userID)
		if err != nil {
			return datatypes.LedgerEntry{}, err
		}
		caseID = allocated
	}

	summary := datatypes.LedgerEntry{
		EntryType:   entryType,
		CaseID:      caseID,
		UserID:      userID,
		UserRole:    userRole,
		Status:      payload.Status,
		Gender:      payload.Gender,
		Age:         payload.Age,
		Location:    payload.Location,
		Symptoms:    payload.Symptoms,
		Predictions: payload.Predictions,
		Annotations: payload.Annotations,
		CreatedAt:   datatypes.Timestamp(),
	}
	if summary.Status == "" {
		summary.Status = defaultStatus
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	entries, err := s.readEntries(userID)
	if err != nil {
		return datatypes.LedgerEntry{}, err
	}

	kept := make([]datatypes.LedgerEntry, 0, len(entries)+1)
	for _, existing := range entries {
		if existing.CaseID == caseID {
			if existing.IsSummary() {
				// Idempotent replace; keep the original creation time.
				summary.CreatedAt = existing.CreatedAt
				continue
			}
			if existing.ImageID != "" {
				kept = append(kept, denormalizeOntoImage(existing, summary))
				continue
			}
		}
		kept = append(kept, existing)
	}

	imageIDs := collectImageIDs(kept, caseID)
	if len(imageIDs) > 0 {
		summary.ImageIDs = imageIDs
		summary.ImagePaths = make([]string, len(imageIDs))
		for i, id := range imageIDs {
			summary.ImagePaths[i] = userID + "/" + id + ".jpg"
		}
	}

	kept = append(kept, summary)
	if err := s.writeEntries(userID, kept); err != nil {
		return datatypes.LedgerEntry{}, err
	}
	return summary, nil
}

// denormalizeOntoImage stamps the summary's context onto an image entry.
func denormalizeOntoImage(image datatypes.LedgerEntry, summary datatypes.LedgerEntry) datatypes.LedgerEntry {
	image.CaseStatus = summary.Status
	image.CaseEntryType = summary.EntryType
	image.CaseUpdatedAt = summary.CreatedAt
	if summary.UserID != "" {
		image.UserID = summary.UserID
	}
	if summary.UserRole != "" {
		image.UserRole = summary.UserRole
	}
	if summary.Gender != "" {
		image.Gender = summary.Gender
	}
	if summary.Age != "" {
		image.Age = summary.Age
	}
	if summary.Location != "" {
		image.Location = summary.Location
	}
	if summary.Symptoms != "" {
		image.Symptoms = summary.Symptoms
	}
	return image
}

func collectImageIDs(entries []datatypes.LedgerEntry, caseID string) []string {
	seen := map[string]bool{}
	for _, e := range entries {
		if e.CaseID == caseID && e.ImageID != "" {
			seen[e.ImageID] = true
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CasePatch is the partial update applied by UpdateCase.
type CasePatch map[string]any

// UpdateCase rewrites the most recent case/uncertain summary for caseID,
// applying the patch fields and stamping updated_at. Reject summaries are
// never touched. adminScope widens the search to every user's ledger and
// the legacy single-file ledger.
func (s *Store) UpdateCase(userID, caseID string, patch CasePatch, adminScope bool, targetUserID string) (datatypes.LedgerEntry, error) {
	if len(patch) == 0 {
		return datatypes.LedgerEntry{}, errors.New("no fields to update")
	}

	if !adminScope {
		return s.updateCaseForUser(userID, caseID, patch)
	}
	if targetUserID != "" {
		return s.updateCaseForUser(targetUserID, caseID, patch)
	}

	ids, err := s.userIDs()
	if err != nil {
		return datatypes.LedgerEntry{}, err
	}
	for _, id := range ids {
		entry, err := s.updateCaseForUser(id, caseID, patch)
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, ErrCaseNotFound) {
			return datatypes.LedgerEntry{}, err
		}
	}
	return s.updateCaseInLegacyLedger(caseID, patch)
}

func (s *Store) updateCaseForUser(userID, caseID string, patch CasePatch) (datatypes.LedgerEntry, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	entries, err := s.readEntries(userID)
	if err != nil {
		return datatypes.LedgerEntry{}, err
	}
	idx := latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{
		datatypes.KindCase: true, datatypes.KindUncertain: true,
	})
	if idx < 0 {
		return datatypes.LedgerEntry{}, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	applyPatch(&entries[idx], patch)
	entries[idx].UpdatedAt = datatypes.Timestamp()
	if err := s.writeEntries(userID, entries); err != nil {
		return datatypes.LedgerEntry{}, err
	}
	return entries[idx], nil
}

func (s *Store) updateCaseInLegacyLedger(caseID string, patch CasePatch) (datatypes.LedgerEntry, error) {
	legacy := s.legacyLedger()
	if !legacy.Exists() {
		return datatypes.LedgerEntry{}, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	entries, err := storage.ReadAll[datatypes.LedgerEntry](legacy)
	if err != nil {
		return datatypes.LedgerEntry{}, err
	}
	idx := latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{
		datatypes.KindCase: true, datatypes.KindUncertain: true,
	})
	if idx < 0 {
		return datatypes.LedgerEntry{}, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	applyPatch(&entries[idx], patch)
	entries[idx].UpdatedAt = datatypes.Timestamp()

	out := make([]any, len(entries))
	for i := range entries {
		out[i] = entries[i]
	}
	if err := legacy.Rewrite(out); err != nil {
		return datatypes.LedgerEntry{}, err
	}
	return entries[idx], nil
}

// latestSummaryIndex finds the newest summary of an allowed kind for
// caseID, scanning from the tail.
func latestSummaryIndex(entries []datatypes.LedgerEntry, caseID string, kinds map[datatypes.EntryKind]bool) int {
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].CaseID == caseID && kinds[entries[i].EntryType] {
			return i
		}
	}
	return -1
}

func applyPatch(entry *datatypes.LedgerEntry, patch CasePatch) {
	for key, value := range patch {
		switch key {
		case "status":
			if v, ok := value.(string); ok {
				entry.Status = v
			}
		case "gender":
			if v, ok := value.(string); ok {
				entry.Gender = v
			}
		case "age":
			switch v := value.(type) {
			case string:
				entry.Age = json.Number(v)
			case float64:
				entry.Age = json.Number(strconv.FormatFloat(v, 'f', -1, 64))
			case json.Number:
				entry.Age = v
			}
		case "location":
			if v, ok := value.(string); ok {
				entry.Location = v
			}
		case "symptoms":
			if v, ok := value.(string); ok {
				entry.Symptoms = v
			}
		case "notes":
			if v, ok := value.(string); ok {
				entry.Notes = v
			}
		case "correct_label":
			if v, ok := value.(string); ok {
				entry.CorrectLabel = v
			}
		}
	}
}

// =============================================================================
// Reads
// =============================================================================

// ReadCases returns the user's summaries matching the filter, newest
// first (last N in file order, reversed).
func (s *Store) ReadCases(userID string, filter Filter) ([]datatypes.LedgerEntry, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	entries, err := s.readEntries(userID)
	if err != nil {
		return nil, err
	}
	return filterCases(entries, filter), nil
}

// ReadCasesGlobal concatenates every user's matching summaries, plus the
// legacy single-file ledger when present. Each user's ledger is read
// under its own lock.
func (s *Store) ReadCasesGlobal(filter Filter) ([]datatypes.LedgerEntry, error) {
	ids, err := s.userIDs()
	if err != nil {
		return nil, err
	}

	var all []datatypes.LedgerEntry
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		entries, err := s.readEntries(id)
		unlock()
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	legacy := s.legacyLedger()
	if legacy.Exists() {
		entries, err := storage.ReadAll[datatypes.LedgerEntry](legacy)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}

	return filterCases(all, filter), nil
}

// ReadAllEntries returns every raw entry (images included) for one user.
// The uncertainty sampler consumes this.
func (s *Store) ReadAllEntries(userID string) ([]datatypes.LedgerEntry, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.readEntries(userID)
}

// ReadAllEntriesGlobal returns every raw entry across all users.
func (s *Store) ReadAllEntriesGlobal() ([]datatypes.LedgerEntry, error) {
	ids, err := s.userIDs()
	if err != nil {
		return nil, err
	}
	var all []datatypes.LedgerEntry
	for _, id := range ids {
		unlock := s.locks.Lock(id)
		entries, err := s.readEntries(id)
		unlock()
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	return all, nil
}

func filterCases(entries []datatypes.LedgerEntry, filter Filter) []datatypes.LedgerEntry {
	kinds := filter.Kinds
	if len(kinds) == 0 {
		kinds = map[datatypes.EntryKind]bool{
			datatypes.KindCase: true, datatypes.KindUncertain: true, datatypes.KindReject: true,
		}
	}

	var matched []datatypes.LedgerEntry
	for _, e := range entries {
		if !kinds[e.EntryType] {
			continue
		}
		if filter.Status != "" && !strings.EqualFold(e.Status, filter.Status) {
			continue
		}
		matched = append(matched, e)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
		matched[i], matched[j] = matched[j], matched[i]
	}
	return matched
}

// =============================================================================
// Labels and annotations
// =============================================================================

// ApplyLabel records a reviewer's corrected label on the user's summary
// for caseID: the reject entry when one exists, otherwise the latest
// case/uncertain summary. Returns the updated summary.
func (s *Store) ApplyLabel(userID, caseID string, submission datatypes.LabelSubmission, labeledBy string) (datatypes.LedgerEntry, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if !s.ledger(userID).Exists() {
		return datatypes.LedgerEntry{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	entries, err := s.readEntries(userID)
	if err != nil {
		return datatypes.LedgerEntry{}, err
	}

	idx := latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{datatypes.KindReject: true})
	if idx < 0 {
		idx = latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{
			datatypes.KindCase: true, datatypes.KindUncertain: true,
		})
	}
	if idx < 0 {
		return datatypes.LedgerEntry{}, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	now := datatypes.Timestamp()
	entries[idx].CorrectLabel = submission.CorrectLabel
	entries[idx].LabeledBy = labeledBy
	entries[idx].LabeledAt = now
	entries[idx].LabelNotes = submission.Notes
	entries[idx].UpdatedAt = now

	if err := s.writeEntries(userID, entries); err != nil {
		return datatypes.LedgerEntry{}, err
	}
	return entries[idx], nil
}

// ApplyAnnotations records drawn annotations plus the corrected label on
// a reject summary. When the caller did not name a case_user_id and holds
// a cross-user role, every ledger is searched; two matches is a conflict.
func (s *Store) ApplyAnnotations(callerID string, crossUser bool, caseID string, submission datatypes.AnnotationSubmission) (datatypes.LedgerEntry, string, error) {
	targetUser := submission.CaseUserID
	if targetUser == "" {
		targetUser = callerID
	}

	ownerID, idx, entries, err := s.locateReject(targetUser, caseID)
	if err != nil && (errors.Is(err, ErrCaseNotFound) || errors.Is(err, ErrUserNotFound)) &&
		submission.CaseUserID == "" && crossUser {
		ownerID, idx, entries, err = s.searchRejectAcrossUsers(caseID)
	}
	if err != nil {
		return datatypes.LedgerEntry{}, "", err
	}

	unlock := s.locks.Lock(ownerID)
	defer unlock()

	// Re-read under the lock; the search pass ran without it.
	entries, err = s.readEntries(ownerID)
	if err != nil {
		return datatypes.LedgerEntry{}, "", err
	}
	idx = latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{datatypes.KindReject: true})
	if idx < 0 {
		return datatypes.LedgerEntry{}, "", fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}

	now := datatypes.Timestamp()
	entries[idx].CorrectLabel = submission.CorrectLabel
	entries[idx].Annotations = submission.Annotations
	entries[idx].AnnotatedBy = callerID
	if submission.AnnotatedAt != "" {
		entries[idx].AnnotatedAt = submission.AnnotatedAt
	} else {
		entries[idx].AnnotatedAt = now
	}
	imageIndex := submission.ImageIndex
	entries[idx].AnnotationImageIndex = &imageIndex
	if submission.Notes != "" {
		entries[idx].AnnotationNotes = submission.Notes
	}
	entries[idx].UpdatedAt = now

	if err := s.writeEntries(ownerID, entries); err != nil {
		return datatypes.LedgerEntry{}, "", err
	}
	return entries[idx], ownerID, nil
}

func (s *Store) locateReject(userID, caseID string) (string, int, []datatypes.LedgerEntry, error) {
	if !s.ledger(userID).Exists() {
		return "", -1, nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	entries, err := s.readEntries(userID)
	if err != nil {
		return "", -1, nil, err
	}
	idx := latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{datatypes.KindReject: true})
	if idx < 0 {
		return "", -1, nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	return userID, idx, entries, nil
}

func (s *Store) searchRejectAcrossUsers(caseID string) (string, int, []datatypes.LedgerEntry, error) {
	ids, err := s.userIDs()
	if err != nil {
		return "", -1, nil, err
	}
	foundUser := ""
	foundIdx := -1
	var foundEntries []datatypes.LedgerEntry
	for _, id := range ids {
		entries, err := s.readEntries(id)
		if err != nil {
			return "", -1, nil, err
		}
		idx := latestSummaryIndex(entries, caseID, map[datatypes.EntryKind]bool{datatypes.KindReject: true})
		if idx < 0 {
			continue
		}
		if foundIdx >= 0 {
			return "", -1, nil, ErrAmbiguousCase
		}
		foundUser, foundIdx, foundEntries = id, idx, entries
	}
	if foundIdx < 0 {
		return "", -1, nil, fmt.Errorf("%w: %s", ErrCaseNotFound, caseID)
	}
	return foundUser, foundIdx, foundEntries, nil
}

// ImagePath resolves an image file on disk, honoring the encrypted
// extension when encryption is on.
func (s *Store) ImagePath(userID, imageID string) string {
	ext := ".jpg"
	if s.cipher != nil {
		ext = ".bin"
	}
	return filepath.Join(s.cfg.UserDir(userID), imageID+ext)
}

// SaveImage persists uploaded image bytes, sealed when encryption is on,
// and returns the destination path.
func (s *Store) SaveImage(userID, imageID string, data []byte) (string, error) {
	dest := s.ImagePath(userID, imageID)
	if s.cipher != nil {
		sealed, err := s.cipher.EncryptBytes(data)
		if err != nil {
			return "", err
		}
		data = sealed
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", fmt.Errorf("creating user storage: %w", err)
	}
	if err := os.WriteFile(dest, data, 0640); err != nil {
		return "", fmt.Errorf("saving image: %w", err)
	}
	return dest, nil
}

// LoadImage reads an image back, unsealing when encryption is on.
func (s *Store) LoadImage(userID, imageID string) ([]byte, error) {
	data, err := os.ReadFile(s.ImagePath(userID, imageID))
	if err != nil {
		return nil, err
	}
	if s.cipher != nil {
		return s.cipher.DecryptBytes(data)
	}
	return data, nil
}
