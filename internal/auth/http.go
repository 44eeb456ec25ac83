// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the caller's registry snapshot to context

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/2389/ledger-gateway/internal/store"
)

// UserLookup resolves a principal to its registry entry. It returns nil and
// no error when the principal has never been registered.
type UserLookup interface {
	LookupUser(ctx context.Context, principal string) (*store.User, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// buildAuthContext creates an AuthContext from a principal and its registry entry, if any.
func buildAuthContext(principalID string, user *store.User) *AuthContext {
	ac := &AuthContext{PrincipalID: principalID}
	if user != nil {
		ac.Username = user.Username
		ac.Role = user.Role
		ac.Registered = true
		ac.Revoked = !user.Active()
	}
	return ac
}

// HTTPAuthMiddleware creates an HTTP middleware that extracts and validates JWT tokens.
// Unregistered principals pass through so they can accept an invite; use
// RequireRegisteredHTTP on routes that need a registry entry.
func HTTPAuthMiddleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeAuthError(w, http.StatusUnauthorized, errMsg)
				return
			}

			principalID, err := verifier.Verify(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			user, err := users.LookupUser(r.Context(), principalID)
			if err != nil {
				writeAuthError(w, http.StatusInternalServerError, "failed to resolve principal")
				return
			}

			authCtx := buildAuthContext(principalID, user)
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}

// RequireRegisteredHTTP rejects callers without an active registry entry.
// Must be used after HTTPAuthMiddleware.
func RequireRegisteredHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			switch {
			case authCtx == nil:
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
			case !authCtx.Registered:
				writeAuthError(w, http.StatusForbidden, "principal is not registered")
			case authCtx.Revoked:
				writeAuthError(w, http.StatusForbidden, "principal has been revoked")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireAdminHTTP creates an HTTP middleware that requires the admin role.
// Must be used after HTTPAuthMiddleware.
func RequireAdminHTTP() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := FromContext(r.Context())
			if authCtx == nil {
				writeAuthError(w, http.StatusUnauthorized, "not authenticated")
				return
			}

			if !authCtx.IsAdmin() {
				writeAuthError(w, http.StatusForbidden, "admin role required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}`))
}
