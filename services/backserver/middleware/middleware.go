// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides the HTTP request gates: API key check,
// user identity extraction (JWT bearer with legacy header fallback),
// role requirements, and CORS.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/users"
)

// userContextKey is the gin context key holding the UserContext.
const userContextKey = "backserver_user_context"

// UserContext is the identity attached to every authenticated request.
type UserContext struct {
	UserID    string
	Role      string
	FirstName string
	LastName  string
}

// IsDoctor reports a doctor or admin identity; both may act across
// users for review workflows.
func (u UserContext) IsDoctor() bool {
	return u.Role == datatypes.RoleDoctor || u.Role == datatypes.RoleAdmin
}

// IsAdmin reports the admin role.
func (u UserContext) IsAdmin() bool {
	return u.Role == datatypes.RoleAdmin
}

// SetUserContext stores the identity for downstream handlers.
func SetUserContext(c *gin.Context, user UserContext) {
	c.Set(userContextKey, user)
}

// GetUserContext retrieves the identity set by RequireUser.
func GetUserContext(c *gin.Context) (UserContext, bool) {
	if v, exists := c.Get(userContextKey); exists {
		if user, ok := v.(UserContext); ok {
			return user, true
		}
	}
	return UserContext{}, false
}

func abortWith(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, datatypes.ErrorResponse{
		Error: datatypes.ErrorBody{Kind: kind, Message: message},
	})
}

// RequireAPIKey checks the X-API-Key header against the configured key.
// An empty configured key disables the check.
func RequireAPIKey(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}
		if c.GetHeader("X-API-Key") != apiKey {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "invalid or missing API key")
			return
		}
		c.Next()
	}
}

// RequireUser extracts the request identity. A bearer token wins when
// present; otherwise the legacy X-User-Id / X-User-Role headers are
// accepted for older clients. No identity at all is a 401.
func RequireUser(issuer *users.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		authorization := c.GetHeader("Authorization")
		if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			parts := strings.Fields(authorization)
			if len(parts) != 2 {
				abortWith(c, http.StatusUnauthorized, "unauthorized",
					"invalid Authorization header format, expected: Bearer <token>")
				return
			}
			claims, err := issuer.Verify(parts[1])
			if err != nil {
				if errors.Is(err, users.ErrTokenExpired) {
					abortWith(c, http.StatusUnauthorized, "unauthorized", "token has expired")
					return
				}
				abortWith(c, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			SetUserContext(c, UserContext{
				UserID:    claims.UserID,
				Role:      strings.ToLower(claims.Role),
				FirstName: claims.FirstName,
				LastName:  claims.LastName,
			})
			c.Next()
			return
		}

		userID := sanitizeUserID(c.GetHeader("X-User-Id"))
		if userID == "" {
			abortWith(c, http.StatusUnauthorized, "unauthorized",
				"missing Authorization header or X-User-Id header")
			return
		}
		SetUserContext(c, UserContext{
			UserID: userID,
			Role:   strings.ToLower(strings.TrimSpace(c.GetHeader("X-User-Role"))),
		})
		c.Next()
	}
}

// sanitizeUserID keeps user IDs path-safe; they name directories under
// the storage root.
func sanitizeUserID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" || strings.ContainsAny(id, "/\\") || id == "." || id == ".." {
		return ""
	}
	return id
}

// RequireRole gates a route to the listed roles. Runs after
// RequireUser.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[strings.ToLower(role)] = true
	}
	return func(c *gin.Context) {
		user, ok := GetUserContext(c)
		if !ok {
			abortWith(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
			return
		}
		if !allowed[user.Role] {
			abortWith(c, http.StatusForbidden, "forbidden",
				"role "+user.Role+" may not access this resource")
			return
		}
		c.Next()
	}
}

// RequireAdmin is the admin-only gate.
func RequireAdmin() gin.HandlerFunc {
	return RequireRole(datatypes.RoleAdmin)
}

// CORS answers preflights and stamps the allow headers. Origins not on
// the list get no allow header at all.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" && (allowAll || allowed[origin]) {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers",
				"Authorization, Content-Type, X-API-Key, X-User-Id, X-User-Role")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
