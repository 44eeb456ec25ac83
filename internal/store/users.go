// ABOUTME: Registered user entity and store methods for the identity registry
// ABOUTME: Users are never deleted; revocation stamps revoked_at instead

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// User is a registered principal.
type User struct {
	Principal string
	Username  string
	Role      Role
	JoinedAt  time.Time
	RevokedAt *time.Time
}

// Active reports whether the user still has access.
func (u *User) Active() bool {
	return u.RevokedAt == nil
}

// CreateUser inserts a new user. Returns ErrUserExists when the principal is
// already registered and ErrUsernameExists when the username is taken.
func (t *sqliteTx) CreateUser(ctx context.Context, u *User) error {
	if !u.Role.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidRole, int(u.Role))
	}

	query := `
		INSERT INTO users (principal, username, role, joined_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := t.tx.ExecContext(ctx, query,
		u.Principal,
		u.Username,
		u.Role.String(),
		toNanos(u.JoinedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return uniqueUserError(err)
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	t.logger.Info("created user", "principal", u.Principal, "username", u.Username, "role", u.Role)
	return nil
}

// uniqueUserError tells apart the two unique columns of users.
func uniqueUserError(err error) error {
	if strings.Contains(err.Error(), "users.username") {
		return ErrUsernameExists
	}
	return ErrUserExists
}

// GetUser retrieves a user by principal.
func (t *sqliteTx) GetUser(ctx context.Context, principal string) (*User, error) {
	query := `
		SELECT principal, username, role, joined_at, revoked_at
		FROM users
		WHERE principal = ?
	`
	u, err := scanUser(t.tx.QueryRowContext(ctx, query, principal))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return u, nil
}

// GetUserByUsername retrieves a user by username.
func (t *sqliteTx) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	query := `
		SELECT principal, username, role, joined_at, revoked_at
		FROM users
		WHERE username = ?
	`
	u, err := scanUser(t.tx.QueryRowContext(ctx, query, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user by username: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by join time.
func (t *sqliteTx) ListUsers(ctx context.Context) ([]*User, error) {
	query := `
		SELECT principal, username, role, joined_at, revoked_at
		FROM users
		ORDER BY joined_at ASC, username ASC
	`

	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}

	return users, nil
}

// CountUsers returns the number of registered users, revoked included.
func (t *sqliteTx) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := t.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

// RevokeUser stamps revoked_at on a user. Revoking twice keeps the first timestamp.
func (t *sqliteTx) RevokeUser(ctx context.Context, principal string, at time.Time) error {
	query := `UPDATE users SET revoked_at = COALESCE(revoked_at, ?) WHERE principal = ?`

	result, err := t.tx.ExecContext(ctx, query, toNanos(at), principal)
	if err != nil {
		return fmt.Errorf("revoking user: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}

	t.logger.Info("revoked user", "principal", principal)
	return nil
}

// scanUser scans a row into a User.
func scanUser(scanner interface{ Scan(dest ...any) error }) (*User, error) {
	var u User
	var roleStr string
	var joinedAt int64
	var revokedAt sql.NullInt64

	if err := scanner.Scan(&u.Principal, &u.Username, &roleStr, &joinedAt, &revokedAt); err != nil {
		return nil, err
	}

	role, err := ParseRole(roleStr)
	if err != nil {
		return nil, err
	}
	u.Role = role
	u.JoinedAt = fromNanos(joinedAt)
	u.RevokedAt = nullableNanos(revokedAt)
	return &u, nil
}
