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
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/users"
)

// Login authenticates a username/password pair and issues a bearer token.
func Login(store *users.Store, issuer *users.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondKind(c, http.StatusBadRequest, kindBadInput, "username and password are required")
			return
		}

		record, err := store.Authenticate(req.Username, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}

		token, err := issuer.Issue(users.Claims{
			UserID:    req.Username,
			Role:      record.Role,
			FirstName: record.FirstName,
			LastName:  record.LastName,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.LoginResponse{
			AccessToken: token,
			TokenType:   "bearer",
			User: datatypes.UserInfo{
				UserID:    req.Username,
				FirstName: record.FirstName,
				LastName:  record.LastName,
				Role:      record.Role,
			},
		})
	}
}
