// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import "encoding/json"

// Roles recognized by the role gates.
const (
	RoleGP     = "gp"
	RoleDoctor = "doctor"
	RoleAdmin  = "admin"
)

// KnownRole reports whether the role is one the gates understand.
func KnownRole(role string) bool {
	return role == RoleGP || role == RoleDoctor || role == RoleAdmin
}

// LoginRequest is the POST /auth/login body.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserInfo is the public view of an account.
type UserInfo struct {
	UserID    string `json:"user_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

// LoginResponse carries the issued bearer token.
type LoginResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        UserInfo `json:"user"`
}

// ReleaseCaseIDRequest is the POST /cases/release-id body.
type ReleaseCaseIDRequest struct {
	CaseID string `json:"case_id" binding:"required"`
}

// CasePayload is the body of POST /cases, /cases/uncertain, /cases/reject
// and the patch body of PUT /cases/{id}. All fields are optional except
// case_id on create.
type CasePayload struct {
	CaseID      string          `json:"case_id"`
	Status      string          `json:"status"`
	Gender      string          `json:"gender"`
	Age         json.Number     `json:"age"`
	Location    string          `json:"location"`
	Symptoms    string          `json:"symptoms"`
	Predictions []Prediction    `json:"predictions"`
	Annotations json.RawMessage `json:"annotations"`
}

// LabelSubmission is the POST /cases/{id}/label body.
type LabelSubmission struct {
	CorrectLabel string `json:"correct_label" binding:"required"`
	Notes        string `json:"notes"`
}

// AnnotationSubmission is the POST /cases/{id}/annotations body. When a
// doctor annotates another user's rejected case, CaseUserID disambiguates
// among users whose ledgers contain the case.
type AnnotationSubmission struct {
	ImageIndex   int             `json:"image_index"`
	CorrectLabel string          `json:"correct_label" binding:"required"`
	Annotations  json.RawMessage `json:"annotations"`
	CaseUserID   string          `json:"case_user_id"`
	Notes        string          `json:"notes"`
	AnnotatedAt  string          `json:"annotated_at"`
}

// CandidatesRequest is the POST /active-learning/candidates body.
type CandidatesRequest struct {
	TopK           int    `json:"top_k"`
	EntryType      string `json:"entry_type"`
	Status         string `json:"status"`
	IncludeLabeled bool   `json:"include_labeled"`
}

// PromoteRequest is the POST /admin/models/{v}/promote body.
type PromoteRequest struct {
	Reason string `json:"reason"`
}

// RollbackRequest is the POST /admin/models/{v}/rollback body. ToVersion
// comes from the path; Reason is audit context.
type RollbackRequest struct {
	ToVersion string `json:"to_version"`
	Reason    string `json:"reason"`
}

// RetrainTriggerRequest is the POST /admin/retrain/trigger body.
type RetrainTriggerRequest struct {
	Architecture string `json:"architecture"`
	Force        bool   `json:"force"`
	Wait         bool   `json:"wait"`
}

// ErrorBody is the uniform error envelope: a machine-readable kind plus a
// human sentence, never a stack trace.
type ErrorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// ErrorResponse wraps ErrorBody at the top level.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}
