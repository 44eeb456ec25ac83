// ABOUTME: Budget engine mutations: per-category limits upserted and removed by budget managers
// ABOUTME: Setting a limit re-evaluates threshold alerts for that category

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/ledger-gateway/internal/store"
)

// SetBudget creates or replaces the limit for category. Negative amounts are
// rejected with InvalidAmount.
func (s *Service) SetBudget(ctx context.Context, category string, amount int64) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := requireRole(ctx, tx, s.policy.BudgetManagers)
		if err != nil {
			return "", err
		}
		if category == "" {
			return CategoryEmpty, nil
		}
		if amount < 0 {
			return InvalidAmount, nil
		}

		before, err := s.alertBaseline(ctx, tx, category)
		if err != nil {
			return "", err
		}

		now := s.now()
		if err := tx.UpsertBudget(ctx, &store.Budget{Category: category, Amount: amount, UpdatedAt: now}); err != nil {
			return "", fmt.Errorf("saving budget: %w", err)
		}
		if err := s.audit(ctx, tx, caller.Principal, store.AuditSetBudget, "budget", category,
			map[string]any{"amount": amount}); err != nil {
			return "", err
		}
		if err := s.queueAlerts(ctx, tx, fx, category, before); err != nil {
			return "", err
		}

		limit := amount
		fx.emit(Event{Type: EventBudgetSet, Actor: caller.Principal, OccurredAt: now, Category: category, Amount: &limit})
		return Success, nil
	})
}

// DeleteBudget removes the limit for category. InvalidCategory when there is
// no budget to remove.
func (s *Service) DeleteBudget(ctx context.Context, category string) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := requireRole(ctx, tx, s.policy.BudgetManagers)
		if err != nil {
			return "", err
		}

		err = tx.DeleteBudget(ctx, category)
		if errors.Is(err, store.ErrBudgetNotFound) {
			return InvalidCategory, nil
		}
		if err != nil {
			return "", fmt.Errorf("deleting budget: %w", err)
		}
		if err := s.audit(ctx, tx, caller.Principal, store.AuditDeleteBudget, "budget", category, nil); err != nil {
			return "", err
		}

		fx.emit(Event{Type: EventBudgetDeleted, Actor: caller.Principal, OccurredAt: s.now(), Category: category})
		return Success, nil
	})
}

// GetBudgets returns every budget ordered by category.
func (s *Service) GetBudgets(ctx context.Context) ([]*store.Budget, error) {
	var budgets []*store.Budget
	err := s.view(ctx, func(tx store.Tx) error {
		if _, err := resolveCaller(ctx, tx); err != nil {
			return err
		}
		var err error
		budgets, err = tx.ListBudgets(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(budgets), nil
}
