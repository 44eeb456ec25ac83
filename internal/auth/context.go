// ABOUTME: Caller identity carried through request handlers in context.Context
// ABOUTME: A registry snapshot (username, role, revocation) taken when the request was authenticated

package auth

import (
	"context"

	"github.com/2389/ledger-gateway/internal/store"
)

// AuthContext holds the authenticated identity extracted from a request.
// Role and Registered are a snapshot taken by the middleware; the ledger
// re-resolves the caller inside each transaction before acting on it.
type AuthContext struct {
	PrincipalID string     // opaque caller identity, the token subject
	Username    string     // empty until the principal is registered
	Role        store.Role // zero when not registered
	Registered  bool
	Revoked     bool
}

// Active reports whether the caller is registered and not revoked.
func (a *AuthContext) Active() bool {
	return a.Registered && !a.Revoked
}

// Holds reports whether an active caller's role satisfies min.
func (a *AuthContext) Holds(min store.Role) bool {
	return a.Active() && a.Role.Satisfies(min)
}

// IsAdmin returns true if the principal is an active admin.
func (a *AuthContext) IsAdmin() bool {
	return a.Holds(store.RoleAdmin)
}

type ctxKey struct{}

// WithAuth returns a copy of ctx carrying ac.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, ctxKey{}, ac)
}

// WithPrincipal attaches a bare principal with no registry snapshot. Used by
// the CLI and tests, where the ledger resolves the role itself.
func WithPrincipal(ctx context.Context, principalID string) context.Context {
	return WithAuth(ctx, &AuthContext{PrincipalID: principalID})
}

// FromContext returns the caller, or nil for an unauthenticated context.
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(ctxKey{}).(*AuthContext)
	return ac
}

// MustFromContext is FromContext for handlers mounted behind the auth
// middleware. It panics when the middleware did not run.
func MustFromContext(ctx context.Context) *AuthContext {
	ac := FromContext(ctx)
	if ac == nil {
		panic("auth: AuthContext not found in context")
	}
	return ac
}
