// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation, registry lookup, and the registered/admin gates

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

type mockUserLookup struct {
	users map[string]*store.User
	err   error
}

func (m *mockUserLookup) LookupUser(_ context.Context, principal string) (*store.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.users[principal], nil
}

func runMiddleware(t *testing.T, lookup UserLookup, header string, gates ...func(http.Handler) http.Handler) (*httptest.ResponseRecorder, *AuthContext) {
	t.Helper()
	verifier := newTestVerifier(t)

	var got *AuthContext
	var handler http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	for i := len(gates) - 1; i >= 0; i-- {
		handler = gates[i](handler)
	}
	handler = HTTPAuthMiddleware(lookup, verifier)(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, got
}

func bearer(t *testing.T, principal string) string {
	t.Helper()
	token, err := newTestVerifier(t).Generate(principal, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return "Bearer " + token
}

func TestHTTPAuthMiddleware_RegisteredUser(t *testing.T) {
	lookup := &mockUserLookup{users: map[string]*store.User{
		"user-123": {Principal: "user-123", Username: "alice", Role: store.RoleAdmin},
	}}

	rec, ac := runMiddleware(t, lookup, bearer(t, "user-123"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ac == nil || ac.PrincipalID != "user-123" || !ac.Registered || ac.Username != "alice" {
		t.Errorf("unexpected auth context %+v", ac)
	}
	if !ac.IsAdmin() {
		t.Error("expected admin")
	}
}

func TestHTTPAuthMiddleware_UnregisteredPassesThrough(t *testing.T) {
	rec, ac := runMiddleware(t, &mockUserLookup{}, bearer(t, "newcomer"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ac == nil || ac.Registered {
		t.Errorf("expected unregistered auth context, got %+v", ac)
	}
}

func TestHTTPAuthMiddleware_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		lookup  UserLookup
		status  int
		message string
	}{
		{name: "missing header", header: "", lookup: &mockUserLookup{}, status: http.StatusUnauthorized, message: "missing authorization header"},
		{name: "basic auth", header: "Basic abc", lookup: &mockUserLookup{}, status: http.StatusUnauthorized, message: "invalid authorization header format"},
		{name: "empty bearer", header: "Bearer ", lookup: &mockUserLookup{}, status: http.StatusUnauthorized, message: "empty token"},
		{name: "garbage token", header: "Bearer nope", lookup: &mockUserLookup{}, status: http.StatusUnauthorized, message: "invalid token"},
		{name: "lookup failure", header: "", lookup: &mockUserLookup{err: errors.New("db down")}, status: http.StatusInternalServerError, message: "failed to resolve principal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if tt.name == "lookup failure" {
				header = bearer(t, "p")
			}
			rec, ac := runMiddleware(t, tt.lookup, header)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if !strings.Contains(rec.Body.String(), tt.message) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.message)
			}
			if ac != nil {
				t.Error("handler should not run")
			}
		})
	}
}

func TestRequireRegisteredHTTP(t *testing.T) {
	revokedAt := time.Now()
	lookup := &mockUserLookup{users: map[string]*store.User{
		"editor":  {Principal: "editor", Role: store.RoleEditor},
		"revoked": {Principal: "revoked", Role: store.RoleEditor, RevokedAt: &revokedAt},
	}}

	tests := []struct {
		principal string
		status    int
	}{
		{"editor", http.StatusOK},
		{"revoked", http.StatusForbidden},
		{"stranger", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.principal, func(t *testing.T) {
			rec, _ := runMiddleware(t, lookup, bearer(t, tt.principal), RequireRegisteredHTTP())
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestRequireAdminHTTP(t *testing.T) {
	lookup := &mockUserLookup{users: map[string]*store.User{
		"admin":  {Principal: "admin", Role: store.RoleAdmin},
		"editor": {Principal: "editor", Role: store.RoleEditor},
	}}

	rec, _ := runMiddleware(t, lookup, bearer(t, "admin"), RequireAdminHTTP())
	if rec.Code != http.StatusOK {
		t.Errorf("admin status = %d, want 200", rec.Code)
	}

	rec, _ = runMiddleware(t, lookup, bearer(t, "editor"), RequireAdminHTTP())
	if rec.Code != http.StatusForbidden {
		t.Errorf("editor status = %d, want 403", rec.Code)
	}
}

func TestRequireAdminHTTP_NoAuthContext(t *testing.T) {
	handler := RequireAdminHTTP()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
