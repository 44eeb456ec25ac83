// ABOUTME: Self-service user profile and notification settings
// ABOUTME: Writes always target the caller's own record; missing records read as defaults

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/ledger-gateway/internal/store"
)

// ProfileInput holds the editable profile fields.
type ProfileInput struct {
	Theme    string
	Currency string
}

// NotificationInput holds the editable notification fields.
type NotificationInput struct {
	BudgetAlerts           bool
	TransactionAlerts      bool
	WeeklyDigest           bool
	BudgetWarningThreshold int
	MatrixRoom             string
}

// activeSelf returns the caller's entry, or nil when the caller is unknown
// or revoked. Only an unauthenticated caller is an error.
func activeSelf(ctx context.Context, tx store.Tx) (*store.User, error) {
	principal, err := callerPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	u, err := tx.GetUser(ctx, principal)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving caller: %w", err)
	}
	if !u.Active() {
		return nil, nil
	}
	return u, nil
}

// SetUserProfile writes the caller's profile.
func (s *Service) SetUserProfile(ctx context.Context, in ProfileInput) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		u, err := activeSelf(ctx, tx)
		if err != nil {
			return "", err
		}
		if u == nil {
			return InvalidUser, nil
		}

		err = tx.UpsertProfile(ctx, &store.UserProfile{
			Principal: u.Principal,
			Theme:     in.Theme,
			Currency:  in.Currency,
			UpdatedAt: s.now(),
		})
		if err != nil {
			return "", fmt.Errorf("saving profile: %w", err)
		}
		return Success, nil
	})
}

// SetNotificationSettings writes the caller's notification settings. A
// non-positive threshold is replaced by the policy default.
func (s *Service) SetNotificationSettings(ctx context.Context, in NotificationInput) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		u, err := activeSelf(ctx, tx)
		if err != nil {
			return "", err
		}
		if u == nil {
			return InvalidUser, nil
		}
		threshold := in.BudgetWarningThreshold
		if threshold <= 0 {
			threshold = s.policy.DefaultWarningThreshold
		}

		err = tx.UpsertNotificationSettings(ctx, &store.NotificationSettings{
			Principal:              u.Principal,
			BudgetAlerts:           in.BudgetAlerts,
			TransactionAlerts:      in.TransactionAlerts,
			WeeklyDigest:           in.WeeklyDigest,
			BudgetWarningThreshold: threshold,
			MatrixRoom:             in.MatrixRoom,
			UpdatedAt:              s.now(),
		})
		if err != nil {
			return "", fmt.Errorf("saving notification settings: %w", err)
		}
		return Success, nil
	})
}

// GetUserProfile returns the caller's profile or the configured defaults.
func (s *Service) GetUserProfile(ctx context.Context) (*store.UserProfile, error) {
	var p *store.UserProfile
	err := s.view(ctx, func(tx store.Tx) error {
		u, err := resolveCaller(ctx, tx)
		if err != nil {
			return err
		}
		p, err = tx.GetProfile(ctx, u.Principal)
		if errors.Is(err, store.ErrProfileNotFound) {
			p = &store.UserProfile{Principal: u.Principal, Theme: s.defaultTheme, Currency: s.defaultCurrency}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetNotificationSettings returns the caller's settings or the defaults.
func (s *Service) GetNotificationSettings(ctx context.Context) (*store.NotificationSettings, error) {
	var ns *store.NotificationSettings
	err := s.view(ctx, func(tx store.Tx) error {
		u, err := resolveCaller(ctx, tx)
		if err != nil {
			return err
		}
		ns, err = tx.GetNotificationSettings(ctx, u.Principal)
		if errors.Is(err, store.ErrSettingsNotFound) {
			ns = &store.NotificationSettings{
				Principal:              u.Principal,
				BudgetAlerts:           true,
				BudgetWarningThreshold: s.policy.DefaultWarningThreshold,
			}
			return nil
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return ns, nil
}
