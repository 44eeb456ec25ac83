// ABOUTME: Ledger events, the publisher and notifier ports, and threshold-crossing alerts
// ABOUTME: Everything here is queued inside a mutation and delivered after it commits

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

// EventType names a committed change.
type EventType string

const (
	EventTransactionAdded     EventType = "transaction.added"
	EventTransactionUpdated   EventType = "transaction.updated"
	EventTransactionDeleted   EventType = "transaction.deleted"
	EventBudgetSet            EventType = "budget.set"
	EventBudgetDeleted        EventType = "budget.deleted"
	EventCategoryAdded        EventType = "category.added"
	EventCategoryDeleted      EventType = "category.deleted"
	EventPaymentMethodAdded   EventType = "payment_method.added"
	EventPaymentMethodDeleted EventType = "payment_method.deleted"
	EventUserRegistered       EventType = "user.registered"
	EventUserRevoked          EventType = "user.revoked"
	EventInviteIssued         EventType = "invite.issued"
)

// Event describes one committed change.
type Event struct {
	Type          EventType `json:"type"`
	Actor         string    `json:"actor"`
	OccurredAt    time.Time `json:"occurred_at"`
	TransactionID int64     `json:"transaction_id,omitempty"`
	Category      string    `json:"category,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	Amount        *int64    `json:"amount,omitempty"`
	Principal     string    `json:"principal,omitempty"`
}

// MarshalJSON writes OccurredAt as integer nanoseconds since the Unix epoch.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	return json.Marshal(struct {
		plain
		OccurredAt int64 `json:"occurred_at"`
	}{plain(e), e.OccurredAt.UnixNano()})
}

// EventPublisher delivers committed events to an external bus.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// Notifier pushes a budget alert to a user's room.
type Notifier interface {
	NotifyBudgetAlert(ctx context.Context, room string, alert BudgetAlert) error
}

// pendingAlert is a notification queued until commit.
type pendingAlert struct {
	principal string
	room      string
	alert     BudgetAlert
}

// alertBaseline is the line queueAlerts compares against. It is skipped
// entirely when no notifier is configured.
func (s *Service) alertBaseline(ctx context.Context, tx store.Tx, category string) (BudgetLine, error) {
	if s.notifier == nil {
		return BudgetLine{}, nil
	}
	return s.categoryLine(ctx, tx, category)
}

// categoryLine computes the all-time budget line for category inside tx.
func (s *Service) categoryLine(ctx context.Context, tx store.Tx, category string) (BudgetLine, error) {
	c := category
	txns, err := tx.ListTransactions(ctx, store.TransactionFilter{Category: &c})
	if err != nil {
		return BudgetLine{}, fmt.Errorf("listing category transactions: %w", err)
	}

	var budgets []*store.Budget
	b, err := tx.GetBudget(ctx, category)
	switch {
	case err == nil:
		budgets = append(budgets, b)
	case errors.Is(err, store.ErrBudgetNotFound):
	default:
		return BudgetLine{}, fmt.Errorf("loading budget: %w", err)
	}

	return BudgetStatus(category, txns, budgets), nil
}

// queueAlerts compares category's line before and after the mutation and
// queues a push for every subscriber whose threshold was crossed.
func (s *Service) queueAlerts(ctx context.Context, tx store.Tx, fx *effects, category string, before BudgetLine) error {
	if s.notifier == nil {
		return nil
	}

	after, err := s.categoryLine(ctx, tx, category)
	if err != nil {
		return err
	}
	if after.Limit == nil {
		return nil
	}

	subs, err := tx.ListAlertSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("listing alert subscribers: %w", err)
	}

	for _, sub := range subs {
		lvl, ok := Crossed(before, after, sub.BudgetWarningThreshold)
		if !ok {
			continue
		}
		fx.alerts = append(fx.alerts, pendingAlert{
			principal: sub.Principal,
			room:      sub.MatrixRoom,
			alert:     BudgetAlert{BudgetLine: after, Level: lvl, Threshold: sub.BudgetWarningThreshold},
		})
	}
	return nil
}
