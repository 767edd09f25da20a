// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the HTTP surface of the triage backend.
// Every handler is a gin.HandlerFunc closure over its injected
// dependencies; identity comes from the middleware-set UserContext.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/middleware"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/retrain"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/users"
)

// Error kinds of the uniform error envelope.
const (
	kindBadInput     = "bad_input"
	kindUnauthorized = "unauthorized"
	kindForbidden    = "forbidden"
	kindNotFound     = "not_found"
	kindConflict     = "conflict"
	kindUnavailable  = "unavailable"
	kindInternal     = "internal"
)

// respondKind writes the uniform error envelope.
func respondKind(c *gin.Context, status int, kind, message string) {
	c.JSON(status, datatypes.ErrorResponse{
		Error: datatypes.ErrorBody{Kind: kind, Message: message},
	})
}

// respondError maps a component error onto the HTTP taxonomy. Unmatched
// errors are internal; their message is surfaced (components never wrap
// stack traces into error strings).
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, casestore.ErrCaseNotFound),
		errors.Is(err, casestore.ErrUserNotFound),
		errors.Is(err, labelpool.ErrNotFound),
		errors.Is(err, registry.ErrNotFound),
		errors.Is(err, users.ErrUserNotFound):
		respondKind(c, http.StatusNotFound, kindNotFound, err.Error())
	case errors.Is(err, casestore.ErrAmbiguousCase):
		respondKind(c, http.StatusConflict, kindConflict, err.Error())
	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, users.ErrTokenExpired),
		errors.Is(err, users.ErrTokenInvalid):
		respondKind(c, http.StatusUnauthorized, kindUnauthorized, err.Error())
	case errors.Is(err, retrain.ErrUnknownArchitecture),
		errors.Is(err, retrain.ErrThresholdNotMet),
		errors.Is(err, registry.ErrProductionProtected),
		errors.Is(err, registry.ErrBadRollbackSource),
		errors.Is(err, promote.ErrNoProduction):
		respondKind(c, http.StatusBadRequest, kindBadInput, err.Error())
	case errors.Is(err, retrain.ErrBusy):
		respondKind(c, http.StatusConflict, kindConflict, err.Error())
	default:
		respondKind(c, http.StatusInternalServerError, kindInternal, err.Error())
	}
}

// mustUser pulls the identity set by middleware.RequireUser. A missing
// identity means the route was wired without the gate; treat it as 401
// rather than panicking.
func mustUser(c *gin.Context) (middleware.UserContext, bool) {
	user, ok := middleware.GetUserContext(c)
	if !ok {
		respondKind(c, http.StatusUnauthorized, kindUnauthorized, "not authenticated")
	}
	return user, ok
}
