// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func routeSet(router *gin.Engine) map[string]bool {
	set := map[string]bool{}
	for _, r := range router.Routes() {
		set[r.Method+" "+r.Path] = true
	}
	return set
}

func TestSetupRoutes_RegistersTheFullSurface(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, &Deps{Cfg: &config.Settings{APIKey: "k", ServeImages: true}})
	routes := routeSet(router)

	for _, want := range []string{
		"GET /health",
		"GET /metrics",
		"POST /auth/login",
		"POST /cases/next-id",
		"POST /cases/release-id",
		"POST /check-image",
		"GET /cases",
		"POST /cases",
		"PUT /cases/:caseId",
		"POST /cases/uncertain",
		"POST /cases/reject",
		"POST /active-learning/candidates",
		"GET /images/:userId/:imageId",
		"POST /cases/:caseId/label",
		"POST /cases/:caseId/annotations",
		"GET /admin/training-config",
		"POST /admin/training-config",
		"GET /admin/models",
		"GET /admin/models/production",
		"GET /admin/models/active-inference",
		"POST /admin/models/active-inference",
		"POST /admin/models/:versionId/promote",
		"POST /admin/models/:versionId/rollback",
		"GET /admin/models/:versionId/training-log",
		"DELETE /admin/models/:versionId",
		"POST /admin/retrain/trigger",
		"GET /admin/retrain/status",
		"GET /admin/events",
		"GET /admin/labels/count",
		"GET /admin/labels",
		"POST /model/retrain",
		"GET /model/retrain-status",
	} {
		assert.True(t, routes[want], "missing route %s", want)
	}
}

func TestSetupRoutes_ImageServingIsOptional(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, &Deps{Cfg: &config.Settings{APIKey: "k"}})
	assert.False(t, routeSet(router)["GET /images/:userId/:imageId"])
}

func TestSetupRoutes_APIKeyGateComesFirst(t *testing.T) {
	router := gin.New()
	SetupRoutes(router, &Deps{Cfg: &config.Settings{APIKey: "k"}})

	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
