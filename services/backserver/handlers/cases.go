// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
)

// NextCaseID reserves the next case ID for the caller.
func NextCaseID(cases *casestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		caseID, err := cases.AllocateCaseID(user.UserID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"case_id": caseID})
	}
}

// ReleaseCaseID hands back an unused reservation. A release the
// allocator refuses is not an HTTP error; the reason rides in the body.
func ReleaseCaseID(cases *casestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		var req datatypes.ReleaseCaseIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "case_id is required")
			return
		}
		result, err := cases.ReleaseCaseID(user.UserID, req.CaseID)
		if err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, err.Error())
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ListCases returns the caller's case summaries, or every user's for
// doctors and admins. Both optional kinds default to included so the
// plain listing shows the full review queue.
func ListCases(cases *casestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}

		kinds := map[datatypes.EntryKind]bool{datatypes.KindCase: true}
		if queryBool(c, "include_uncertain", true) {
			kinds[datatypes.KindUncertain] = true
		}
		if queryBool(c, "include_rejected", true) {
			kinds[datatypes.KindReject] = true
		}
		filter := casestore.Filter{
			Kinds:  kinds,
			Status: c.Query("status"),
			Limit:  queryInt(c, "limit", 100),
		}

		var (
			entries []datatypes.LedgerEntry
			err     error
		)
		if user.IsDoctor() {
			entries, err = cases.ReadCasesGlobal(filter)
		} else {
			entries, err = cases.ReadCases(user.UserID, filter)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if entries == nil {
			entries = []datatypes.LedgerEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"cases": entries})
	}
}

// SubmitCase closes a case: upserts the single summary entry and
// denormalizes its context onto the case's image entries.
func SubmitCase(cases *casestore.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return submitSummary(cases, metrics, datatypes.KindCase, "pending")
}

// SubmitUncertain marks a case for review with an uncertain summary.
func SubmitUncertain(cases *casestore.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return submitSummary(cases, metrics, datatypes.KindUncertain, "pending")
}

// SubmitReject records a reviewer rejection; the correction itself
// arrives later through the label or annotation endpoints.
func SubmitReject(cases *casestore.Store, metrics *observability.Metrics) gin.HandlerFunc {
	return submitSummary(cases, metrics, datatypes.KindReject, "rejected")
}

func submitSummary(cases *casestore.Store, metrics *observability.Metrics,
	entryType datatypes.EntryKind, defaultStatus string,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		var payload datatypes.CasePayload
		if err := c.ShouldBindJSON(&payload); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "malformed case payload")
			return
		}
		if strings.TrimSpace(payload.CaseID) == "" {
			respondKind(c, http.StatusBadRequest, kindBadInput, "case_id must not be empty")
			return
		}

		entry, err := cases.UpsertCaseSummary(user.UserID, user.Role, payload, entryType, defaultStatus)
		if err != nil {
			respondError(c, err)
			return
		}
		metrics.ObserveCase(string(entryType))

		if entryType == datatypes.KindReject {
			c.JSON(http.StatusOK, gin.H{"status": "success"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":      "success",
			"case_id":     entry.CaseID,
			"case_status": entry.Status,
		})
	}
}

// updatableCaseFields are the patch keys PUT /cases/{id} accepts.
var updatableCaseFields = map[string]bool{
	"status": true, "gender": true, "age": true, "location": true,
	"symptoms": true, "notes": true, "correct_label": true,
}

// UpdateCase patches the most recent case/uncertain summary. Admins may
// address another user's ledger with ?user_id=; reject summaries are
// immutable through this route.
func UpdateCase(cases *casestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}
		caseID := c.Param("caseId")

		var raw map[string]any
		if err := c.ShouldBindJSON(&raw); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "malformed patch body")
			return
		}
		patch := casestore.CasePatch{}
		for k, v := range raw {
			if updatableCaseFields[k] {
				patch[k] = v
			}
		}
		if len(patch) == 0 {
			respondKind(c, http.StatusBadRequest, kindBadInput, "no updatable fields in patch")
			return
		}

		targetUser := c.Query("user_id")
		if targetUser != "" && targetUser != user.UserID && !user.IsAdmin() {
			respondKind(c, http.StatusForbidden, kindForbidden,
				"only admins may update another user's case")
			return
		}

		entry, err := cases.UpdateCase(user.UserID, caseID, patch, user.IsAdmin(), targetUser)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "case_id": entry.CaseID})
	}
}

func queryBool(c *gin.Context, key string, fallback bool) bool {
	v := strings.ToLower(c.Query(key))
	switch v {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return fallback
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
