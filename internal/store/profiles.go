// ABOUTME: Per-user preference records: display profile and notification settings
// ABOUTME: One row per principal, created on first write and overwritten after that

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UserProfile holds display preferences.
type UserProfile struct {
	Principal string
	Theme     string
	Currency  string
	UpdatedAt time.Time
}

// NotificationSettings holds alert toggles and the budget warning threshold
// as a percentage of the budget limit.
type NotificationSettings struct {
	Principal              string
	BudgetAlerts           bool
	TransactionAlerts      bool
	WeeklyDigest           bool
	BudgetWarningThreshold int
	MatrixRoom             string
	UpdatedAt              time.Time
}

// UpsertProfile writes a user's profile.
func (t *sqliteTx) UpsertProfile(ctx context.Context, p *UserProfile) error {
	query := `
		INSERT INTO user_profiles (principal, theme, currency, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(principal) DO UPDATE SET
			theme = excluded.theme,
			currency = excluded.currency,
			updated_at = excluded.updated_at
	`

	if _, err := t.tx.ExecContext(ctx, query, p.Principal, p.Theme, p.Currency, toNanos(p.UpdatedAt)); err != nil {
		return fmt.Errorf("upserting profile: %w", err)
	}

	t.logger.Debug("saved profile", "principal", p.Principal)
	return nil
}

// GetProfile retrieves a user's profile.
func (t *sqliteTx) GetProfile(ctx context.Context, principal string) (*UserProfile, error) {
	query := `SELECT principal, theme, currency, updated_at FROM user_profiles WHERE principal = ?`

	var p UserProfile
	var updatedAt int64
	err := t.tx.QueryRowContext(ctx, query, principal).Scan(&p.Principal, &p.Theme, &p.Currency, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	p.UpdatedAt = fromNanos(updatedAt)
	return &p, nil
}

// UpsertNotificationSettings writes a user's notification settings.
func (t *sqliteTx) UpsertNotificationSettings(ctx context.Context, s *NotificationSettings) error {
	query := `
		INSERT INTO notification_settings
			(principal, budget_alerts, transaction_alerts, weekly_digest, warning_threshold, matrix_room, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(principal) DO UPDATE SET
			budget_alerts = excluded.budget_alerts,
			transaction_alerts = excluded.transaction_alerts,
			weekly_digest = excluded.weekly_digest,
			warning_threshold = excluded.warning_threshold,
			matrix_room = excluded.matrix_room,
			updated_at = excluded.updated_at
	`

	_, err := t.tx.ExecContext(ctx, query,
		s.Principal,
		s.BudgetAlerts,
		s.TransactionAlerts,
		s.WeeklyDigest,
		s.BudgetWarningThreshold,
		s.MatrixRoom,
		toNanos(s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting notification settings: %w", err)
	}

	t.logger.Debug("saved notification settings", "principal", s.Principal)
	return nil
}

// GetNotificationSettings retrieves a user's notification settings.
func (t *sqliteTx) GetNotificationSettings(ctx context.Context, principal string) (*NotificationSettings, error) {
	query := settingsColumns + ` WHERE principal = ?`

	s, err := scanSettings(t.tx.QueryRowContext(ctx, query, principal))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSettingsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying notification settings: %w", err)
	}
	return s, nil
}

// ListAlertSubscribers returns the settings of every active user who wants
// budget alerts pushed to a Matrix room.
func (t *sqliteTx) ListAlertSubscribers(ctx context.Context) ([]*NotificationSettings, error) {
	query := `
		SELECT n.principal, n.budget_alerts, n.transaction_alerts, n.weekly_digest,
		       n.warning_threshold, n.matrix_room, n.updated_at
		FROM notification_settings n
		JOIN users u ON u.principal = n.principal
		WHERE n.budget_alerts = 1 AND n.matrix_room != '' AND u.revoked_at IS NULL
		ORDER BY n.principal ASC
	`

	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying alert subscribers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []*NotificationSettings
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert subscriber: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alert subscribers: %w", err)
	}
	return subs, nil
}

const settingsColumns = `
	SELECT principal, budget_alerts, transaction_alerts, weekly_digest, warning_threshold, matrix_room, updated_at
	FROM notification_settings`

func scanSettings(scanner interface{ Scan(dest ...any) error }) (*NotificationSettings, error) {
	var s NotificationSettings
	var updatedAt int64
	if err := scanner.Scan(
		&s.Principal,
		&s.BudgetAlerts,
		&s.TransactionAlerts,
		&s.WeeklyDigest,
		&s.BudgetWarningThreshold,
		&s.MatrixRoom,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	s.UpdatedAt = fromNanos(updatedAt)
	return &s, nil
}
