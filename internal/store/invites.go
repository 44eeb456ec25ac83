// ABOUTME: Invite token entity and store methods for onboarding new editors
// ABOUTME: Only the token digest is persisted; consumption is a single guarded UPDATE

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Invite represents a one-time signup credential, keyed by the digest of its token.
type Invite struct {
	Digest    string
	IssuedBy  string
	IssuedAt  time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
	UsedBy    string
}

// Used reports whether the invite has been consumed.
func (i *Invite) Used() bool {
	return i.UsedAt != nil
}

// ExpiredAt reports whether the invite is past its window at now. The
// window is closed: an invite is still valid at exactly ExpiresAt.
func (i *Invite) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// CreateInvite stores a new invite.
func (t *sqliteTx) CreateInvite(ctx context.Context, inv *Invite) error {
	query := `
		INSERT INTO invites (digest, issued_by, issued_at, expires_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := t.tx.ExecContext(ctx, query,
		inv.Digest,
		inv.IssuedBy,
		toNanos(inv.IssuedAt),
		toNanos(inv.ExpiresAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrInviteExists
		}
		return fmt.Errorf("inserting invite: %w", err)
	}

	t.logger.Info("created invite", "issued_by", inv.IssuedBy, "expires_at", inv.ExpiresAt)
	return nil
}

// GetInvite retrieves an invite by token digest.
func (t *sqliteTx) GetInvite(ctx context.Context, digest string) (*Invite, error) {
	query := `
		SELECT digest, issued_by, issued_at, expires_at, used_at, used_by
		FROM invites
		WHERE digest = ?
	`

	inv, err := scanInvite(t.tx.QueryRowContext(ctx, query, digest))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invite: %w", err)
	}
	return inv, nil
}

// UseInvite marks an invite as used by principal. The UPDATE only matches an
// unused row, so the used flag flips exactly once. Returns ErrInviteUsed if it
// was already consumed or ErrInviteNotFound if it does not exist.
func (t *sqliteTx) UseInvite(ctx context.Context, digest, principal string, at time.Time) error {
	query := `
		UPDATE invites
		SET used_at = ?, used_by = ?
		WHERE digest = ?
		  AND used_at IS NULL
	`

	result, err := t.tx.ExecContext(ctx, query, toNanos(at), principal, digest)
	if err != nil {
		return fmt.Errorf("marking invite as used: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n > 0 {
		t.logger.Info("invite used", "principal", principal)
		return nil
	}

	// Zero rows: find out whether it is missing or already consumed.
	if _, err := t.GetInvite(ctx, digest); err != nil {
		return err
	}
	return ErrInviteUsed
}

// ListInvites returns all invites, newest first.
func (t *sqliteTx) ListInvites(ctx context.Context) ([]*Invite, error) {
	query := `
		SELECT digest, issued_by, issued_at, expires_at, used_at, used_by
		FROM invites
		ORDER BY issued_at DESC
	`

	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying invites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var invites []*Invite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning invite: %w", err)
		}
		invites = append(invites, inv)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating invites: %w", err)
	}

	return invites, nil
}

func scanInvite(scanner interface{ Scan(dest ...any) error }) (*Invite, error) {
	var inv Invite
	var issuedAt, expiresAt int64
	var usedAt sql.NullInt64
	var usedBy sql.NullString

	if err := scanner.Scan(&inv.Digest, &inv.IssuedBy, &issuedAt, &expiresAt, &usedAt, &usedBy); err != nil {
		return nil, err
	}

	inv.IssuedAt = fromNanos(issuedAt)
	inv.ExpiresAt = fromNanos(expiresAt)
	inv.UsedAt = nullableNanos(usedAt)
	inv.UsedBy = usedBy.String
	return &inv, nil
}
