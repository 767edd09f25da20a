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

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/sampler"
)

// Candidates runs uncertainty sampling over the caller's visible cases
// and returns the top-k least-confident ones for review.
func Candidates(cfg *config.Settings, cases *casestore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := mustUser(c)
		if !ok {
			return
		}

		req := datatypes.CandidatesRequest{
			TopK:           cfg.CandidatesTopK,
			EntryType:      cfg.CandidatesEntryType,
			Status:         cfg.CandidatesStatus,
			IncludeLabeled: cfg.CandidatesIncludeLabeled,
		}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondKind(c, http.StatusBadRequest, kindBadInput, "malformed candidates request")
				return
			}
		}
		if req.TopK <= 0 {
			req.TopK = cfg.CandidatesTopK
		}

		var (
			entries []datatypes.LedgerEntry
			err     error
		)
		if user.IsDoctor() {
			entries, err = cases.ReadAllEntriesGlobal()
		} else {
			entries, err = cases.ReadAllEntries(user.UserID)
		}
		if err != nil {
			respondError(c, err)
			return
		}

		result := sampler.Select(entries, sampler.Options{
			EntryType:      req.EntryType,
			Status:         req.Status,
			IncludeLabeled: req.IncludeLabeled,
		}, req.TopK)
		c.JSON(http.StatusOK, result)
	}
}
