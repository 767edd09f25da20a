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

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
)

// LabelCount returns the pool statistics the retrain trigger consults.
func LabelCount(cfg *config.Settings, pool *labelpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := pool.Statistics(cfg.RetrainMinNewLabels)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// ListLabels returns label records, optionally only the unused ones.
func ListLabels(cfg *config.Settings, pool *labelpool.Pool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			records []datatypes.LabelRecord
			err     error
		)
		if queryBool(c, "unused_only", false) {
			records, err = pool.GetUnused()
		} else {
			records, err = pool.GetAll()
		}
		if err != nil {
			respondError(c, err)
			return
		}
		if records == nil {
			records = []datatypes.LabelRecord{}
		}

		stats, err := pool.Statistics(cfg.RetrainMinNewLabels)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"labels":     records,
			"total":      len(records),
			"statistics": stats,
		})
	}
}
