// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/middleware"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
)

// SubmitLabel records a reviewer's corrected label: the ledger summary is
// updated and the label enters the pool as the training signal. The
// reject summary wins when one exists; otherwise the latest
// case/uncertain summary is labeled.
func SubmitLabel(cfg *config.Settings, cases *casestore.Store, pool *labelpool.Pool,
	events *eventlog.Log, metrics *observability.Metrics, logger *logging.Logger,
) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		caseID := c.Param("caseId")

		var submission datatypes.LabelSubmission
		if err := c.ShouldBindJSON(&submission); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "correct_label is required")
			return
		}
		if _, known := config.LabelMap[submission.CorrectLabel]; !known {
			respondKind(c, http.StatusBadRequest, kindBadInput,
				"unknown label "+submission.CorrectLabel)
			return
		}

		ownerID := user.UserID
		entry, err := cases.ApplyLabel(ownerID, caseID, submission, user.UserID)
		if err != nil && user.IsDoctor() &&
			(errors.Is(err, casestore.ErrCaseNotFound) || errors.Is(err, casestore.ErrUserNotFound)) {
			// Reviewers label cases that live in the submitting GP's ledger.
			if foundOwner, findErr := findCaseOwner(cases, caseID); findErr == nil {
				ownerID = foundOwner
				entry, err = cases.ApplyLabel(ownerID, caseID, submission, user.UserID)
			}
		}
		if err != nil {
			respondError(c, err)
			return
		}

		recordLabel(pool, events, metrics, logger, cfg, caseID, entry.ImagePaths,
			submission.CorrectLabel, user)

		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"case_id":       caseID,
			"correct_label": submission.CorrectLabel,
		})
	}
}

// SubmitAnnotations records drawn annotations plus the corrected label
// on a reject summary, searching across users for reviewers when
// case_user_id is not given. Ambiguity across ledgers is a 409.
func SubmitAnnotations(cfg *config.Settings, cases *casestore.Store, pool *labelpool.Pool,
	events *eventlog.Log, metrics *observability.Metrics, logger *logging.Logger,
) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		caseID := c.Param("caseId")

		var submission datatypes.AnnotationSubmission
		if err := c.ShouldBindJSON(&submission); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "correct_label is required")
			return
		}
		if _, known := config.LabelMap[submission.CorrectLabel]; !known {
			respondKind(c, http.StatusBadRequest, kindBadInput,
				"unknown label "+submission.CorrectLabel)
			return
		}

		entry, _, err := cases.ApplyAnnotations(user.UserID, user.IsDoctor(), caseID, submission)
		if err != nil {
			respondError(c, err)
			return
		}

		recordLabel(pool, events, metrics, logger, cfg, caseID, entry.ImagePaths,
			submission.CorrectLabel, user)

		c.JSON(http.StatusOK, gin.H{
			"status":        "success",
			"case_id":       caseID,
			"correct_label": submission.CorrectLabel,
		})
	}
}

// recordLabel feeds the pool and the audit trail after a ledger update
// succeeded. Pool and event failures are operator-log warnings, not
// request failures: the ledger is the source of truth and the retrainer
// falls back to scanning it.
func recordLabel(pool *labelpool.Pool, events *eventlog.Log,
	metrics *observability.Metrics, logger *logging.Logger, cfg *config.Settings,
	caseID string, imagePaths []string, label string, user middleware.UserContext,
) {
	if _, err := pool.AddLabel(caseID, imagePaths, label, user.UserID); err != nil {
		logger.Warn("adding label to pool failed",
			slog.String("case_id", caseID), slog.Any("error", err))
		return
	}
	if err := events.LabelAdded(caseID, label, user.UserID); err != nil {
		logger.Warn("recording label_added failed", slog.Any("error", err))
	}

	unused, err := pool.UnusedCount()
	if err != nil {
		logger.Warn("counting unused labels failed", slog.Any("error", err))
		return
	}
	metrics.ObserveLabel(unused)
	if unused >= cfg.RetrainMinNewLabels {
		if err := events.ThresholdReached(unused, cfg.RetrainMinNewLabels); err != nil {
			logger.Warn("recording threshold_reached failed", slog.Any("error", err))
		}
	}
}

// findCaseOwner locates which user's ledger holds caseID, preferring a
// reject summary over other summary kinds.
func findCaseOwner(cases *casestore.Store, caseID string) (string, error) {
	entries, err := cases.ReadAllEntriesGlobal()
	if err != nil {
		return "", err
	}
	owner := ""
	for _, e := range entries {
		if e.CaseID != caseID || !e.IsSummary() || e.UserID == "" {
			continue
		}
		if e.EntryType == datatypes.KindReject {
			return e.UserID, nil
		}
		if owner == "" {
			owner = e.UserID
		}
	}
	if owner == "" {
		return "", casestore.ErrCaseNotFound
	}
	return owner, nil
}
