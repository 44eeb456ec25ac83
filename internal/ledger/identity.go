// ABOUTME: Identity registry and access control operations
// ABOUTME: Admin assertion, revocation, user listing, bootstrap, and the audit trail read

package ledger

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/2389/ledger-gateway/internal/store"
)

// AssertAdmin returns nil iff the caller is an active admin.
func (s *Service) AssertAdmin(ctx context.Context) error {
	return s.view(ctx, func(tx store.Tx) error {
		_, err := requireRole(ctx, tx, store.RoleAdmin)
		return err
	})
}

// RevokeAccess disables a non-admin user's access. The caller must be a
// registered user; whether it is an admin is a business outcome.
func (s *Service) RevokeAccess(ctx context.Context, principal string) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := resolveCaller(ctx, tx)
		if err != nil {
			return "", err
		}

		target, err := tx.GetUser(ctx, principal)
		if errors.Is(err, store.ErrUserNotFound) {
			return InvalidUser, nil
		}
		if err != nil {
			return "", fmt.Errorf("looking up user: %w", err)
		}

		if !caller.Role.Satisfies(store.RoleAdmin) {
			return UnauthorizedActivity, nil
		}
		switch target.Role {
		case store.RoleAdmin:
			return UnauthorizedActivity, nil
		case store.RoleEditor:
		default:
			return UnauthorizedActivity, nil
		}

		if !target.Active() {
			return Success, nil
		}

		if err := tx.RevokeUser(ctx, principal, s.now()); err != nil {
			return "", fmt.Errorf("revoking user: %w", err)
		}
		if err := s.audit(ctx, tx, caller.Principal, store.AuditRevokeAccess, "user", principal,
			map[string]any{"username": target.Username}); err != nil {
			return "", err
		}

		fx.emit(Event{Type: EventUserRevoked, Actor: caller.Principal, OccurredAt: s.now(), Principal: principal})
		return Success, nil
	})
}

// GetUsers returns every registered user, revoked ones included.
func (s *Service) GetUsers(ctx context.Context) ([]*store.User, error) {
	var users []*store.User
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		users, err = tx.ListUsers(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Me returns the caller's registry entry, or nil when the caller has not
// accepted an invite yet.
func (s *Service) Me(ctx context.Context) (*store.User, error) {
	principal, err := callerPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	return s.LookupUser(ctx, principal)
}

// LookupUser returns the registry entry for principal, or nil when absent.
func (s *Service) LookupUser(ctx context.Context, principal string) (*store.User, error) {
	var u *store.User
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		u, err = tx.GetUser(ctx, principal)
		if errors.Is(err, store.ErrUserNotFound) {
			u = nil
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return u, nil
}

// BootstrapAdmin registers the first admin. It succeeds only while the
// registry is empty.
func (s *Service) BootstrapAdmin(ctx context.Context, principal, username string) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		n, err := tx.CountUsers(ctx)
		if err != nil {
			return "", fmt.Errorf("counting users: %w", err)
		}
		if n > 0 {
			return AlreadyRegistered, nil
		}
		if utf8.RuneCountInString(username) < MinUsernameLength {
			return ShortUsername, nil
		}

		now := s.now()
		if err := tx.CreateUser(ctx, &store.User{
			Principal: principal,
			Username:  username,
			Role:      store.RoleAdmin,
			JoinedAt:  now,
		}); err != nil {
			return "", fmt.Errorf("creating admin: %w", err)
		}
		if err := s.audit(ctx, tx, principal, store.AuditBootstrapAdmin, "user", principal,
			map[string]any{"username": username}); err != nil {
			return "", err
		}

		fx.emit(Event{Type: EventUserRegistered, Actor: principal, OccurredAt: now, Principal: principal})
		return Success, nil
	})
}

// GetAuditLog returns audit entries matching f. Admin only.
func (s *Service) GetAuditLog(ctx context.Context, f store.AuditFilter) ([]store.AuditEntry, error) {
	var entries []store.AuditEntry
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := requireRole(ctx, tx, store.RoleAdmin); err != nil {
			return err
		}
		var err error
		entries, err = tx.ListAuditLog(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
