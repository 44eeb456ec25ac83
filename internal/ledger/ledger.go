// ABOUTME: Ledger service: serialized mutations over a single SQL commit point
// ABOUTME: Resolves the calling principal and runs post-commit side effects

package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/store"
)

// sideEffectTimeout bounds each post-commit publish or notification.
const sideEffectTimeout = 5 * time.Second

// errDiscard rolls back a transaction whose outcome is not Success.
var errDiscard = errors.New("discard")

// Options configures a Service. Every field is optional.
type Options struct {
	Policy    Policy
	Now       func() time.Time
	Publisher EventPublisher
	Notifier  Notifier
	Logger    *slog.Logger

	// DefaultTheme and DefaultCurrency fill a missing user profile.
	DefaultTheme    string
	DefaultCurrency string
}

// Service implements the ledger operations over a store.
type Service struct {
	store     store.Store
	policy    Policy
	now       func() time.Time
	publisher EventPublisher
	notifier  Notifier
	logger    *slog.Logger

	defaultTheme    string
	defaultCurrency string

	// mu serializes every mutating call end to end.
	mu sync.Mutex
}

// New creates a Service over s.
func New(s store.Store, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.DefaultTheme == "" {
		opts.DefaultTheme = "system"
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = "USD"
	}

	return &Service{
		store:           s,
		policy:          opts.Policy.withDefaults(),
		now:             func() time.Time { return opts.Now().UTC() },
		publisher:       opts.Publisher,
		notifier:        opts.Notifier,
		logger:          opts.Logger.With("component", "ledger"),
		defaultTheme:    opts.DefaultTheme,
		defaultCurrency: opts.DefaultCurrency,
	}
}

// Policy returns the effective policy.
func (s *Service) Policy() Policy { return s.policy }

// DefaultCurrency is the currency reported for users without a stored profile.
func (s *Service) DefaultCurrency() string { return s.defaultCurrency }

// effects collects work to run once a mutation has committed.
type effects struct {
	events []Event
	alerts []pendingAlert
}

func (fx *effects) emit(e Event) { fx.events = append(fx.events, e) }

// update runs fn under the mutation lock inside one write transaction.
// A non-Success outcome or an error discards every write fn made.
func (s *Service) update(ctx context.Context, fn func(tx store.Tx, fx *effects) (Outcome, error)) (Outcome, error) {
	fx := &effects{}
	out, err := s.locked(ctx, fx, fn)
	if err != nil {
		return "", err
	}
	if out.OK() {
		s.afterCommit(ctx, fx)
	}
	return out, nil
}

func (s *Service) locked(ctx context.Context, fx *effects, fn func(tx store.Tx, fx *effects) (Outcome, error)) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out Outcome
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = fn(tx, fx)
		if err != nil {
			return err
		}
		if !out.OK() {
			return errDiscard
		}
		return nil
	})
	if errors.Is(err, errDiscard) {
		return out, nil
	}
	return out, err
}

// view runs fn against a consistent read snapshot without taking the lock.
func (s *Service) view(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.store.View(ctx, fn)
}

// callerPrincipal extracts the authenticated principal from ctx.
func callerPrincipal(ctx context.Context) (string, error) {
	ac := auth.FromContext(ctx)
	if ac == nil || ac.PrincipalID == "" {
		return "", ErrUnauthenticated
	}
	return ac.PrincipalID, nil
}

// resolveCaller loads the caller's registry entry and requires it to be active.
func resolveCaller(ctx context.Context, tx store.Tx) (*store.User, error) {
	principal, err := callerPrincipal(ctx)
	if err != nil {
		return nil, err
	}

	u, err := tx.GetUser(ctx, principal)
	if errors.Is(err, store.ErrUserNotFound) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("resolving caller: %w", err)
	}
	if !u.Active() {
		return nil, ErrAccessRevoked
	}
	return u, nil
}

// requireRole resolves the caller and checks it against min.
func requireRole(ctx context.Context, tx store.Tx, min store.Role) (*store.User, error) {
	u, err := resolveCaller(ctx, tx)
	if err != nil {
		return nil, err
	}
	if !u.Role.Satisfies(min) {
		return nil, ErrUnauthorized
	}
	return u, nil
}

// audit appends an entry in the mutation's own transaction.
func (s *Service) audit(ctx context.Context, tx store.Tx, actor string, action store.AuditAction, targetType, targetID string, detail map[string]any) error {
	err := tx.AppendAuditLog(ctx, &store.AuditEntry{
		Actor:      actor,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Timestamp:  s.now(),
		Detail:     detail,
	})
	if err != nil {
		return fmt.Errorf("appending audit log: %w", err)
	}
	return nil
}

// afterCommit publishes events and pushes budget alerts. Failures are logged
// and never change the result of the call.
func (s *Service) afterCommit(ctx context.Context, fx *effects) {
	base := context.WithoutCancel(ctx)

	if s.publisher != nil {
		for _, e := range fx.events {
			pctx, cancel := context.WithTimeout(base, sideEffectTimeout)
			if err := s.publisher.Publish(pctx, e); err != nil {
				s.logger.Warn("failed to publish ledger event", "type", e.Type, "error", err)
			}
			cancel()
		}
	}

	if s.notifier != nil {
		for _, a := range fx.alerts {
			nctx, cancel := context.WithTimeout(base, sideEffectTimeout)
			if err := s.notifier.NotifyBudgetAlert(nctx, a.room, a.alert); err != nil {
				s.logger.Warn("failed to push budget alert",
					"principal", a.principal,
					"category", a.alert.Category,
					"error", err,
				)
			}
			cancel()
		}
	}
}
