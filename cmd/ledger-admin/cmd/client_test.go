// ABOUTME: Tests for the ledger-admin HTTP client
// ABOUTME: Checks headers, error decoding and invite token extraction

package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/ledger-gateway/internal/gateway"
	"github.com/2389/ledger-gateway/internal/ledger"
)

func TestClient_SendsTokenAndIdempotencyKey(t *testing.T) {
	var gotAuth, gotKey, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get(gateway.IdempotencyHeader)
		gotMethod = r.Method
		_ = json.NewEncoder(w).Encode(gateway.OutcomeResponse{Result: ledger.Success})
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", "tok", time.Second)
	var resp gateway.OutcomeResponse
	require.NoError(t, c.send(context.Background(), http.MethodPost, "/api/categories",
		gateway.CategoryRequest{Name: "Food", Action: "add"}, &resp))

	assert.Equal(t, "Bearer tok", gotAuth)
	assert.NotEmpty(t, gotKey)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, ledger.Success, resp.Result)
}

func TestClient_GetHasNoIdempotencyKey(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get(gateway.IdempotencyHeader)
		assert.Equal(t, "Food", r.URL.Query().Get("category"))
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, "tok", time.Second)
	var txns []gateway.TransactionResponse
	require.NoError(t, c.get(context.Background(), "/api/transactions",
		map[string][]string{"category": {"Food"}}, &txns))
	assert.Empty(t, gotKey)
	assert.Empty(t, txns)
}

func TestClient_DecodesErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"admin role required"}`))
	}))
	defer srv.Close()

	c := newClient(srv.URL, "tok", time.Second)
	err := c.get(context.Background(), "/api/users", nil, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "admin role required", apiErr.Message)
}

func TestClient_RequiresToken(t *testing.T) {
	c := newClient("http://unused.invalid", "", time.Second)
	err := c.get(context.Background(), "/api/me", nil, nil)
	assert.ErrorContains(t, err, "no token")
}

func TestInviteToken(t *testing.T) {
	assert.Equal(t, "abc", inviteToken("abc"))
	assert.Equal(t, "abc", inviteToken("https://ledger.test/invite?token=abc"))
	assert.Equal(t, "https://ledger.test/other", inviteToken("https://ledger.test/other"))
}

func TestReportOutcome(t *testing.T) {
	assert.NoError(t, reportOutcome(ledger.Success, "ok"))

	err := reportOutcome(ledger.InvalidCategory, "ok")
	var outErr *ErrOutcome
	require.True(t, errors.As(err, &outErr))
	assert.Equal(t, ledger.InvalidCategory, outErr.Result)
}

func TestClient_Ready(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		if r.URL.Path != "/health/ready" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := newClient(srv.URL, "", time.Second).ready(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
}
