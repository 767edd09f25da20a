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

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
)

// HealthCheck reports liveness plus whether a production model is
// deployed. No online probing of the model runtime happens here.
func HealthCheck(promoter *promote.Promoter) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := promoter.Health()
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "model": report})
	}
}
