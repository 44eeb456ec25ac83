// ABOUTME: Store interfaces, sentinel errors, and the closed Role type for ledger persistence
// ABOUTME: Tx groups the per-entity interfaces so one call can commit all its writes at once

package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors returned by Tx methods.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrUserExists          = errors.New("user already registered")
	ErrUsernameExists      = errors.New("username already exists")
	ErrInviteNotFound      = errors.New("invite not found")
	ErrInviteUsed          = errors.New("invite already used")
	ErrInviteExists        = errors.New("invite already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrBudgetNotFound      = errors.New("budget not found")
	ErrCategoryExists      = errors.New("category already exists")
	ErrMethodExists        = errors.New("payment method already exists")
	ErrProfileNotFound     = errors.New("profile not found")
	ErrSettingsNotFound    = errors.New("notification settings not found")
	ErrInvalidRole         = errors.New("invalid role")
)

// Role is the closed set of registry roles. The zero value is not a valid role.
type Role int

const (
	RoleEditor Role = iota + 1
	RoleAdmin
)

// String returns the persisted name of the role.
func (r Role) String() string {
	switch r {
	case RoleEditor:
		return "editor"
	case RoleAdmin:
		return "admin"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	switch r {
	case RoleEditor, RoleAdmin:
		return true
	default:
		return false
	}
}

// Satisfies reports whether a user holding r meets a requirement of min.
// Every pair is matched explicitly; an undeclared role satisfies nothing.
func (r Role) Satisfies(min Role) bool {
	switch min {
	case RoleEditor:
		switch r {
		case RoleEditor, RoleAdmin:
			return true
		default:
			return false
		}
	case RoleAdmin:
		switch r {
		case RoleAdmin:
			return true
		case RoleEditor:
			return false
		default:
			return false
		}
	default:
		return false
	}
}

// ParseRole converts a persisted role name back into a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "editor":
		return RoleEditor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRole, int(r))
	}
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Store is the top-level persistence handle. Update runs fn inside a write
// transaction that commits only when fn returns nil; View runs fn against a
// consistent read snapshot that is always rolled back.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Tx exposes every entity collection within one SQL transaction.
type Tx interface {
	UserStore
	InviteStore
	RegistryStore
	TransactionStore
	BudgetStore
	ProfileStore
	AuditStore
}

// UserStore persists registered principals.
type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, principal string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	CountUsers(ctx context.Context) (int, error)
	RevokeUser(ctx context.Context, principal string, at time.Time) error
}

// InviteStore persists invite token digests.
type InviteStore interface {
	CreateInvite(ctx context.Context, inv *Invite) error
	GetInvite(ctx context.Context, digest string) (*Invite, error)
	UseInvite(ctx context.Context, digest, principal string, at time.Time) error
	ListInvites(ctx context.Context) ([]*Invite, error)
}

// RegistryStore persists the category and payment method sets.
type RegistryStore interface {
	AddCategory(ctx context.Context, name string, at time.Time) error
	DeleteCategory(ctx context.Context, name string) (bool, error)
	ListCategories(ctx context.Context) ([]string, error)
	AddPaymentMethod(ctx context.Context, name string, at time.Time) error
	DeletePaymentMethod(ctx context.Context, name string) (bool, error)
	ListPaymentMethods(ctx context.Context) ([]string, error)
}

// TransactionStore persists ledger entries.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, t *Transaction) (int64, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	UpdateTransaction(ctx context.Context, t *Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error)
}

// BudgetStore persists per-category limits.
type BudgetStore interface {
	UpsertBudget(ctx context.Context, b *Budget) error
	GetBudget(ctx context.Context, category string) (*Budget, error)
	DeleteBudget(ctx context.Context, category string) error
	ListBudgets(ctx context.Context) ([]*Budget, error)
}

// ProfileStore persists per-user preference records.
type ProfileStore interface {
	UpsertProfile(ctx context.Context, p *UserProfile) error
	GetProfile(ctx context.Context, principal string) (*UserProfile, error)
	UpsertNotificationSettings(ctx context.Context, s *NotificationSettings) error
	GetNotificationSettings(ctx context.Context, principal string) (*NotificationSettings, error)
	ListAlertSubscribers(ctx context.Context) ([]*NotificationSettings, error)
}

// AuditStore persists the administrative audit trail.
type AuditStore interface {
	AppendAuditLog(ctx context.Context, e *AuditEntry) error
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// toNanos converts a time to the integer nanosecond form used in every column.
func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

// fromNanos converts a stored nanosecond value back into a UTC time.
func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
