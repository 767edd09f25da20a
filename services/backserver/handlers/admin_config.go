// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/trainconfig"
)

// GetTrainingConfig returns the active hyperparameter bundle beside the
// defaults so the admin UI can show what deviates.
func GetTrainingConfig(configs *trainconfig.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := configs.Load()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"config":   active,
			"defaults": datatypes.DefaultTrainingConfig(),
		})
	}
}

// UpdateTrainingConfig validates and persists a partial config. A
// non-empty validation error list is a 400 carrying every failure.
func UpdateTrainingConfig(configs *trainconfig.Store, events *eventlog.Log,
	logger *logging.Logger,
) gin.HandlerFunc {
	if logger == nil {
		logger = logging.Default()
	}
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		var patch datatypes.TrainingConfigPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "malformed config patch")
			return
		}

		saved, validationErrs, err := configs.Save(patch)
		if err != nil {
			respondError(c, err)
			return
		}
		if len(validationErrs) > 0 {
			respondKind(c, http.StatusBadRequest, kindBadInput,
				strings.Join(validationErrs, "; "))
			return
		}

		if err := events.ConfigUpdated(user.UserID, map[string]any{
			"epochs":        saved.Epochs,
			"batch_size":    saved.BatchSize,
			"learning_rate": saved.LearningRate,
			"optimizer":     saved.Optimizer,
			"dropout":       saved.Dropout,
		}); err != nil {
			logger.Warn("recording config_updated failed", slog.Any("error", err))
		}
		c.JSON(http.StatusOK, gin.H{"config": saved})
	}
}
