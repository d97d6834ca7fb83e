// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatus struct{ resp StatusResponse }

func (f fakeStatus) Status() StatusResponse { return f.resp }

type fakeBlocklistProvider struct {
	entries    []BlockedEntry
	blocked    []string
	unblocked  []string
	blockErr   error
	unblockErr error
}

func (f fakeBlocklistProvider) ListBlocked() []BlockedEntry { return f.entries }

func (f *fakeBlocklistProvider) Block(addr, attackType string) error {
	if f.blockErr != nil {
		return f.blockErr
	}
	f.blocked = append(f.blocked, addr)
	return nil
}

func (f *fakeBlocklistProvider) Unblock(addr string) error {
	if f.unblockErr != nil {
		return f.unblockErr
	}
	f.unblocked = append(f.unblocked, addr)
	return nil
}

type fakeWhitelistProvider struct{ entries []string }

func (f *fakeWhitelistProvider) ListWhitelist() []string { return f.entries }

func (f *fakeWhitelistProvider) SetWhitelist(entries []string) error {
	f.entries = entries
	return nil
}

func TestHandleStatus_ReturnsJSON(t *testing.T) {
	s := NewServer(DefaultServerConfig(), fakeStatus{resp: StatusResponse{FlowsActive: 3, AttacksDetected: 1}}, &fakeBlocklistProvider{}, &fakeWhitelistProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.FlowsActive)
	assert.Equal(t, uint64(1), body.AttacksDetected)
}

func TestHandleBlocklist_ReturnsEntries(t *testing.T) {
	entries := []BlockedEntry{{Addr: "203.0.113.9", AttackType: "SYN Flood", BlockCount: 2}}
	s := NewServer(DefaultServerConfig(), fakeStatus{}, &fakeBlocklistProvider{entries: entries}, &fakeWhitelistProvider{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/blocklist", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []BlockedEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "203.0.113.9", body[0].Addr)
}

func TestHandleBlockAddr_InvokesProviderAndReturnsCreated(t *testing.T) {
	bl := &fakeBlocklistProvider{}
	s := NewServer(DefaultServerConfig(), fakeStatus{}, bl, &fakeWhitelistProvider{}, nil)

	body, _ := json.Marshal(BlockRequest{Addr: "203.0.113.9", AttackType: "SYN Flood"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/blocklist", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, []string{"203.0.113.9"}, bl.blocked)
}

func TestHandleBlockAddr_RejectsMissingAddr(t *testing.T) {
	s := NewServer(DefaultServerConfig(), fakeStatus{}, &fakeBlocklistProvider{}, &fakeWhitelistProvider{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/blocklist", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleUnblockAddr_InvokesProvider(t *testing.T) {
	bl := &fakeBlocklistProvider{}
	s := NewServer(DefaultServerConfig(), fakeStatus{}, bl, &fakeWhitelistProvider{}, nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/blocklist/203.0.113.9", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, []string{"203.0.113.9"}, bl.unblocked)
}

func TestHandleWhitelist_GetAndPutRoundtrip(t *testing.T) {
	wl := &fakeWhitelistProvider{entries: []string{"10.0.0.0/8"}}
	s := NewServer(DefaultServerConfig(), fakeStatus{}, &fakeBlocklistProvider{}, wl, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/whitelist", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []string{"10.0.0.0/8"}, got)

	putBody, _ := json.Marshal([]string{"203.0.113.0/24"})
	req = httptest.NewRequest(http.MethodPut, "/api/v1/whitelist", bytes.NewReader(putBody))
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"203.0.113.0/24"}, wl.entries)
}
