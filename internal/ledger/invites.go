// ABOUTME: Invite ledger: issues single-use, time-boxed invite tokens and redeems them
// ABOUTME: Only a BLAKE2b digest of each token is persisted

package ledger

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/2389/ledger-gateway/internal/store"
)

// InviteResult is the outcome of GenerateInviteLink. Token and ExpiresAt are
// set only on Success.
type InviteResult struct {
	Outcome   Outcome
	Token     string
	ExpiresAt time.Time
}

// TokenDigest returns the hex BLAKE2b-256 digest under which a token is stored.
func TokenDigest(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// GenerateInviteLink issues a new invite token. Admin only.
func (s *Service) GenerateInviteLink(ctx context.Context) (InviteResult, error) {
	var res InviteResult
	out, err := s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := requireRole(ctx, tx, store.RoleAdmin)
		if err != nil {
			return "", err
		}

		id, err := uuid.NewRandom()
		if err != nil {
			s.logger.Error("failed to generate invite token", "error", err)
			return Failed, nil
		}
		token := id.String()
		digest := TokenDigest(token)

		now := s.now()
		inv := &store.Invite{
			Digest:    digest,
			IssuedBy:  caller.Principal,
			IssuedAt:  now,
			ExpiresAt: now.Add(s.policy.InviteTTL),
		}
		if err := tx.CreateInvite(ctx, inv); err != nil {
			s.logger.Error("failed to store invite", "error", err)
			return Failed, nil
		}
		if err := s.audit(ctx, tx, caller.Principal, store.AuditGenerateInvite, "invite", digest,
			map[string]any{"expires_at": inv.ExpiresAt.UnixNano()}); err != nil {
			return "", err
		}

		res.Token = token
		res.ExpiresAt = inv.ExpiresAt
		fx.emit(Event{Type: EventInviteIssued, Actor: caller.Principal, OccurredAt: now})
		return Success, nil
	})
	if err != nil {
		return InviteResult{}, err
	}
	if !out.OK() {
		return InviteResult{Outcome: out}, nil
	}
	res.Outcome = out
	return res, nil
}

// AcceptInvite redeems token and registers the caller as an editor named
// username. Checks run in a fixed order and the token is consumed only on
// Success.
func (s *Service) AcceptInvite(ctx context.Context, token, username string) (Outcome, error) {
	principal, err := callerPrincipal(ctx)
	if err != nil {
		return "", err
	}

	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		digest := TokenDigest(token)

		inv, err := tx.GetInvite(ctx, digest)
		if errors.Is(err, store.ErrInviteNotFound) {
			return InvalidToken, nil
		}
		if err != nil {
			return "", fmt.Errorf("looking up invite: %w", err)
		}

		now := s.now()
		switch {
		case inv.Used():
			return AlreadyUsedToken, nil
		case inv.ExpiredAt(now):
			return ExpiredToken, nil
		case utf8.RuneCountInString(username) < MinUsernameLength:
			return ShortUsername, nil
		}

		// A revoked principal still counts as registered.
		if _, err := tx.GetUser(ctx, principal); err == nil {
			return AlreadyRegistered, nil
		} else if !errors.Is(err, store.ErrUserNotFound) {
			return "", fmt.Errorf("looking up caller: %w", err)
		}
		if _, err := tx.GetUserByUsername(ctx, username); err == nil {
			return AlreadyRegistered, nil
		} else if !errors.Is(err, store.ErrUserNotFound) {
			return "", fmt.Errorf("looking up username: %w", err)
		}

		if err := tx.UseInvite(ctx, digest, principal, now); err != nil {
			if errors.Is(err, store.ErrInviteUsed) {
				return AlreadyUsedToken, nil
			}
			return "", fmt.Errorf("consuming invite: %w", err)
		}

		err = tx.CreateUser(ctx, &store.User{
			Principal: principal,
			Username:  username,
			Role:      store.RoleEditor,
			JoinedAt:  now,
		})
		if errors.Is(err, store.ErrUserExists) || errors.Is(err, store.ErrUsernameExists) {
			return AlreadyRegistered, nil
		}
		if err != nil {
			return "", fmt.Errorf("registering user: %w", err)
		}

		if err := s.audit(ctx, tx, principal, store.AuditAcceptInvite, "invite", digest,
			map[string]any{"username": username, "issued_by": inv.IssuedBy}); err != nil {
			return "", err
		}

		fx.emit(Event{Type: EventUserRegistered, Actor: principal, OccurredAt: now, Principal: principal})
		return Success, nil
	})
}

// ListInvites returns every issued invite by digest. Admin only.
func (s *Service) ListInvites(ctx context.Context) ([]*store.Invite, error) {
	var invites []*store.Invite
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := requireRole(ctx, tx, store.RoleAdmin); err != nil {
			return err
		}
		var err error
		invites, err = tx.ListInvites(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invites, nil
}
