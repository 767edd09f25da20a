// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/storage"
)

// ListModels returns the registry catalog, optionally filtered by
// status, newest first.
func ListModels(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		models, err := reg.List(datatypes.ModelStatus(c.Query("status")))
		if err != nil {
			respondError(c, err)
			return
		}
		doc, err := reg.Snapshot()
		if err != nil {
			respondError(c, err)
			return
		}
		if models == nil {
			models = []datatypes.ModelEntry{}
		}
		c.JSON(http.StatusOK, gin.H{
			"models":             models,
			"current_production": doc.CurrentProduction,
			"total":              len(models),
		})
	}
}

// ProductionModel returns the current production entry.
func ProductionModel(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := reg.GetProduction()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"model": entry})
	}
}

// PromoteModel promotes a version unconditionally, recording the
// operator's reason.
func PromoteModel(promoter *promote.Promoter, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID := c.Param("versionId")
		var req datatypes.PromoteRequest
		_ = c.ShouldBindJSON(&req)

		previous, err := promoter.ManualPromote(versionID, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		metrics.ObservePromotion("manual")

		resp := gin.H{"status": "promoted", "version_id": versionID}
		if previous != "" {
			resp["previous_production"] = previous
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RollbackModel reverts production to the version named in the path.
func RollbackModel(promoter *promote.Promoter, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RollbackRequest
		_ = c.ShouldBindJSON(&req)
		req.ToVersion = c.Param("versionId")

		report, err := promoter.Rollback(req.ToVersion, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}
		metrics.ObservePromotion("rollback")
		c.JSON(http.StatusOK, gin.H{
			"status":       "rolled_back",
			"from_version": report.From,
			"to_version":   report.To,
		})
	}
}

// DeleteModel removes a version from the catalog. The production
// version is protected.
func DeleteModel(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID := c.Param("versionId")
		if err := reg.Delete(versionID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "deleted", "version_id": versionID})
	}
}

// ActiveInference reports which version serves inference when an
// operator has pinned one apart from production.
func ActiveInference(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID, err := reg.ActiveInference()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"active_inference": versionID})
	}
}

// SetActiveInference pins (or, with an empty version_id, unpins) the
// inference version.
func SetActiveInference(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			VersionID string `json:"version_id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "malformed body")
			return
		}
		if err := reg.SetActiveInference(req.VersionID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "active_inference": req.VersionID})
	}
}

// ModelTrainingLog serves a version's per-epoch training log in a
// plot-friendly shape: the raw epoch rows plus one series per curve.
func ModelTrainingLog(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		versionID := c.Param("versionId")
		entry, err := reg.Get(versionID)
		if err != nil {
			respondError(c, err)
			return
		}

		logPath := filepath.Join(filepath.Dir(entry.Path), "training_log.json")
		var epochs []datatypes.EpochRecord
		if err := storage.ReadJSONFile(logPath, &epochs); err != nil {
			respondKind(c, http.StatusNotFound, kindNotFound,
				"no training log recorded for "+versionID)
			return
		}

		numbers := make([]int, len(epochs))
		trainLoss := make([]float64, len(epochs))
		valLoss := make([]float64, len(epochs))
		trainAcc := make([]float64, len(epochs))
		valAcc := make([]float64, len(epochs))
		for i, e := range epochs {
			numbers[i] = e.Epoch
			trainLoss[i] = e.TrainLoss
			valLoss[i] = e.ValLoss
			trainAcc[i] = e.TrainAcc
			valAcc[i] = e.ValAcc
		}
		c.JSON(http.StatusOK, gin.H{
			"version_id": versionID,
			"log":        epochs,
			"series": gin.H{
				"epochs":     numbers,
				"train_loss": trainLoss,
				"val_loss":   valLoss,
				"train_acc":  trainAcc,
				"val_acc":    valAcc,
			},
		})
	}
}
