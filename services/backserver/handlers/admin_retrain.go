// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/retrain"
)

// TriggerRetrain starts a retrain job on the single worker slot. The
// default reply is an acknowledgement with the allocated version_id;
// wait=true blocks until the job finishes and attaches its metrics and
// the promotion decision. The worker runs auto-promotion either way.
func TriggerRetrain(worker *retrain.Worker, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		var req datatypes.RetrainTriggerRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondKind(c, http.StatusBadRequest, kindBadInput, "malformed retrain request")
				return
			}
		}

		outcome, err := worker.Trigger(c.Request.Context(), retrain.Request{
			Architecture: req.Architecture,
			TriggeredBy:  user.UserID,
		}, req.Force, req.Wait)
		if err != nil {
			respondError(c, err)
			return
		}

		resp := gin.H{
			"status":        outcome.Status,
			"version_id":    outcome.VersionID,
			"unused_labels": outcome.UnusedCount,
		}
		if outcome.Result != nil {
			resp["metrics"] = outcome.Result.Metrics
			if !outcome.Result.Success {
				resp["reason"] = outcome.Result.Reason
				metrics.ObserveRetrain("failed", 0)
			} else {
				metrics.ObserveRetrain("completed", 0)
				if decision := outcome.Result.Promotion; decision != nil {
					resp["promotion_result"] = decision
					if decision.Promoted {
						metrics.ObservePromotion("auto")
					} else if decision.Archived {
						metrics.ObservePromotion("archived")
					}
				}
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

// RetrainStatus synthesizes the control-plane status: the in-flight job
// if any, the latest registered model, recent training events, and the
// unused-label count against the threshold.
func RetrainStatus(worker *retrain.Worker) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := worker.Status()
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"retrain_status": report,
			"threshold":      report.Threshold,
		})
	}
}
