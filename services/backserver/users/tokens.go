// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package users

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenExpired reports a token past its exp claim.
	ErrTokenExpired = errors.New("token has expired")
	// ErrTokenInvalid covers every other verification failure.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the identity carried in an access token.
type Claims struct {
	UserID    string
	Role      string
	FirstName string
	LastName  string
}

// TokenIssuer signs and verifies HS256 access tokens. The signing
// secret lives in a memguard enclave and is only opened per operation.
type TokenIssuer struct {
	secret *memguard.Enclave
	expiry time.Duration
	now    func() time.Time
}

// NewTokenIssuer seals the secret. An empty secret is refused; token
// auth without one would be forgeable.
func NewTokenIssuer(secret string, expiry time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &TokenIssuer{
		secret: memguard.NewEnclave([]byte(secret)),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// Issue signs a token for the given identity.
func (t *TokenIssuer) Issue(claims Claims) (string, error) {
	key, err := t.secret.Open()
	if err != nil {
		return "", fmt.Errorf("opening signing key: %w", err)
	}
	defer key.Destroy()

	now := t.now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        claims.UserID,
		"role":       claims.Role,
		"first_name": claims.FirstName,
		"last_name":  claims.LastName,
		"iat":        now.Unix(),
		"exp":        now.Add(t.expiry).Unix(),
	})
	signed, err := token.SignedString(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token, returning its identity claims.
func (t *TokenIssuer) Verify(tokenString string) (Claims, error) {
	key, err := t.secret.Open()
	if err != nil {
		return Claims{}, fmt.Errorf("opening signing key: %w", err)
	}
	defer key.Destroy()

	parsed, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return key.Bytes(), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return t.now() }))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrTokenInvalid
	}
	return Claims{
		UserID:    stringClaim(mapClaims, "sub"),
		Role:      stringClaim(mapClaims, "role"),
		FirstName: stringClaim(mapClaims, "first_name"),
		LastName:  stringClaim(mapClaims, "last_name"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
