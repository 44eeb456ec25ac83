// ABOUTME: Unit tests for authentication context functions
// ABOUTME: Tests role checks on AuthContext and context propagation helpers

package auth

import (
	"context"
	"testing"

	"github.com/2389/ledger-gateway/internal/store"
)

func TestAuthContext_IsAdmin(t *testing.T) {
	tests := []struct {
		name string
		ac   AuthContext
		want bool
	}{
		{name: "active admin", ac: AuthContext{Role: store.RoleAdmin, Registered: true}, want: true},
		{name: "editor", ac: AuthContext{Role: store.RoleEditor, Registered: true}, want: false},
		{name: "revoked admin", ac: AuthContext{Role: store.RoleAdmin, Registered: true, Revoked: true}, want: false},
		{name: "unregistered", ac: AuthContext{}, want: false},
		{name: "role without registration", ac: AuthContext{Role: store.RoleAdmin}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ac.IsAdmin(); got != tt.want {
				t.Errorf("IsAdmin() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAuthContext_Holds(t *testing.T) {
	editor := &AuthContext{Role: store.RoleEditor, Registered: true}
	if !editor.Holds(store.RoleEditor) {
		t.Error("editor should hold the editor role")
	}
	if editor.Holds(store.RoleAdmin) {
		t.Error("editor should not hold the admin role")
	}

	admin := &AuthContext{Role: store.RoleAdmin, Registered: true}
	if !admin.Holds(store.RoleEditor) {
		t.Error("admin should hold the editor role")
	}

	admin.Revoked = true
	if admin.Holds(store.RoleEditor) || admin.Active() {
		t.Error("revoked admin should hold no role")
	}

	unknown := &AuthContext{Role: store.Role(3), Registered: true}
	if unknown.Holds(store.RoleAdmin) || unknown.Holds(store.RoleEditor) || unknown.IsAdmin() {
		t.Error("an undeclared role should hold nothing")
	}
}

func TestWithAuth_FromContext(t *testing.T) {
	ac := &AuthContext{PrincipalID: "p-1", Role: store.RoleEditor, Registered: true}
	ctx := WithAuth(context.Background(), ac)

	got := FromContext(ctx)
	if got != ac {
		t.Errorf("FromContext() = %v, want %v", got, ac)
	}
}

func TestFromContext_Missing(t *testing.T) {
	if got := FromContext(context.Background()); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}

func TestWithPrincipal(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "p-7")
	got := MustFromContext(ctx)
	if got.PrincipalID != "p-7" || got.Registered {
		t.Errorf("WithPrincipal() = %+v", got)
	}
}

func TestMustFromContext_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustFromContext() should panic without AuthContext")
		}
	}()
	MustFromContext(context.Background())
}
