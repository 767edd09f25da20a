// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaseID_AllocateReleaseReallocate(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases/next-id", "alice", "gp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10000", decode(t, w)["case_id"])

	w = s.do(t, http.MethodPost, "/cases/release-id", "alice", "gp",
		map[string]string{"case_id": "10000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])

	// The released ID comes back on the next allocation.
	w = s.do(t, http.MethodPost, "/cases/next-id", "alice", "gp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10000", decode(t, w)["case_id"])
}

func TestReleaseCaseID_CounterMismatchLeavesStateAlone(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases/next-id", "alice", "gp", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/cases/release-id", "alice", "gp",
		map[string]string{"case_id": "10005"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "skipped", body["status"])
	assert.Equal(t, "counter_mismatch", body["reason"])

	w = s.do(t, http.MethodPost, "/cases/next-id", "alice", "gp", nil)
	assert.Equal(t, "10001", decode(t, w)["case_id"])
}

func TestSubmitCase_ThenRejectKeepsOneSummary(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases", "alice", "gp", map[string]any{
		"case_id": "10000",
		"status":  "pending",
		"predictions": []map[string]any{
			{"label": "nv", "confidence": 0.9},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodPost, "/cases/reject", "alice", "gp",
		map[string]any{"case_id": "10000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/cases", "alice", "gp", nil)
	require.Equal(t, http.StatusOK, w.Code)
	cases := decode(t, w)["cases"].([]any)
	require.Len(t, cases, 1)
	entry := cases[0].(map[string]any)
	assert.Equal(t, "10000", entry["case_id"])
	assert.Equal(t, "reject", entry["entry_type"])
	assert.Equal(t, "rejected", entry["status"])
}

func TestSubmitCase_EmptyCaseIDIsBadInput(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases", "alice", "gp", map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decode(t, w)["error"].(map[string]any)
	assert.Equal(t, "bad_input", errBody["kind"])
}

func TestListCases_GPSeesOnlyOwnCases(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases", "alice", "gp",
		map[string]any{"case_id": "10000"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/cases", "bob", "gp",
		map[string]any{"case_id": "10000"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/cases", "alice", "gp", nil)
	assert.Len(t, decode(t, w)["cases"].([]any), 1)

	// A doctor sees both users' cases.
	w = s.do(t, http.MethodGet, "/cases", "dana", "doctor", nil)
	assert.Len(t, decode(t, w)["cases"].([]any), 2)
}

func TestListCases_FilterByStatusAndKind(t *testing.T) {
	s := newServer(t)

	for caseID, status := range map[string]string{"10000": "pending", "10001": "closed"} {
		w := s.do(t, http.MethodPost, "/cases", "alice", "gp",
			map[string]any{"case_id": caseID, "status": status})
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.do(t, http.MethodPost, "/cases/reject", "alice", "gp",
		map[string]any{"case_id": "10002"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/cases?status=pending", "alice", "gp", nil)
	cases := decode(t, w)["cases"].([]any)
	require.Len(t, cases, 1)
	assert.Equal(t, "10000", cases[0].(map[string]any)["case_id"])

	w = s.do(t, http.MethodGet, "/cases?include_rejected=false", "alice", "gp", nil)
	for _, c := range decode(t, w)["cases"].([]any) {
		assert.NotEqual(t, "reject", c.(map[string]any)["entry_type"])
	}
}

func TestUpdateCase_PatchesSummary(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases", "alice", "gp",
		map[string]any{"case_id": "10000", "status": "pending"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/cases/10000", "alice", "gp",
		map[string]any{"status": "closed", "symptoms": "itching"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/cases?status=closed", "alice", "gp", nil)
	cases := decode(t, w)["cases"].([]any)
	require.Len(t, cases, 1)
	assert.Equal(t, "itching", cases[0].(map[string]any)["symptoms"])
}

func TestUpdateCase_RejectEntriesAreImmutable(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases/reject", "alice", "gp",
		map[string]any{"case_id": "10000"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/cases/10000", "alice", "gp",
		map[string]any{"status": "closed"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateCase_OtherUserRequiresAdmin(t *testing.T) {
	s := newServer(t)

	w := s.do(t, http.MethodPost, "/cases", "alice", "gp",
		map[string]any{"case_id": "10000"})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPut, "/cases/10000?user_id=alice", "bob", "gp",
		map[string]any{"status": "closed"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodPut, "/cases/10000?user_id=alice", "root", "admin",
		map[string]any{"status": "closed"})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRequests_RequireAPIKeyAndIdentity(t *testing.T) {
	s := newServer(t)

	// No identity headers at all.
	w := s.do(t, http.MethodGet, "/cases", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Wrong API key loses before identity is even read.
	req := httptest.NewRequest(http.MethodGet, "/cases", nil)
	req.Header.Set("X-API-Key", "wrong")
	req.Header.Set("X-User-Id", "alice")
	req.Header.Set("X-User-Role", "gp")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	w = s.do(t, http.MethodGet, "/cases", "alice", "gp", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
