// ABOUTME: Read-only budget and spending aggregates over one consistent snapshot
// ABOUTME: The dashboard fans its sections out with errgroup over the same snapshot

package ledger

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/2389/ledger-gateway/internal/store"
)

// snapshot is the state every aggregate is computed from. Budgets are shared,
// so transactions cover every owner. recent holds only what the caller may
// see individually.
type snapshot struct {
	caller       *store.User
	transactions []*store.Transaction
	recent       []*store.Transaction
	budgets      []*store.Budget
	threshold    int
}

// takeSnapshot reads everything an aggregate needs in one read transaction.
// With recent > 0 it also loads the caller's newest visible transactions.
func (s *Service) takeSnapshot(ctx context.Context, w Window, recent int) (*snapshot, error) {
	sn := &snapshot{}
	err := s.view(ctx, func(tx store.Tx) error {
		caller, err := resolveCaller(ctx, tx)
		if err != nil {
			return err
		}
		sn.caller = caller

		sn.transactions, err = tx.ListTransactions(ctx, store.TransactionFilter{
			Start:           w.Start,
			End:             w.End,
			ExclusiveBounds: !s.policy.InclusiveBounds,
		})
		if err != nil {
			return fmt.Errorf("listing transactions: %w", err)
		}

		if recent > 0 {
			sn.recent, err = tx.ListTransactions(ctx, store.TransactionFilter{
				Owner:           ownerScope(caller),
				Start:           w.Start,
				End:             w.End,
				ExclusiveBounds: !s.policy.InclusiveBounds,
				NewestFirst:     true,
				Limit:           recent,
			})
			if err != nil {
				return fmt.Errorf("listing recent transactions: %w", err)
			}
		}

		sn.budgets, err = tx.ListBudgets(ctx)
		if err != nil {
			return fmt.Errorf("listing budgets: %w", err)
		}

		sn.threshold = s.policy.DefaultWarningThreshold
		ns, err := tx.GetNotificationSettings(ctx, caller.Principal)
		switch {
		case err == nil:
			sn.threshold = ns.BudgetWarningThreshold
		case errors.Is(err, store.ErrSettingsNotFound):
		default:
			return fmt.Errorf("loading notification settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sn, nil
}

// GetBudgetSummary returns a line per budgeted or spent-in category.
func (s *Service) GetBudgetSummary(ctx context.Context, w Window) ([]BudgetLine, error) {
	sn, err := s.takeSnapshot(ctx, w, 0)
	if err != nil {
		return nil, err
	}
	return BudgetLines(sn.transactions, sn.budgets), nil
}

// GetBudgetAlerts returns the budget lines at or past the caller's warning
// threshold.
func (s *Service) GetBudgetAlerts(ctx context.Context, w Window) ([]BudgetAlert, error) {
	sn, err := s.takeSnapshot(ctx, w, 0)
	if err != nil {
		return nil, err
	}
	return Alerts(BudgetLines(sn.transactions, sn.budgets), sn.threshold), nil
}

// CheckBudgetStatus returns the line for one category.
func (s *Service) CheckBudgetStatus(ctx context.Context, category string, w Window) (BudgetLine, error) {
	sn, err := s.takeSnapshot(ctx, w, 0)
	if err != nil {
		return BudgetLine{}, err
	}
	return BudgetStatus(category, sn.transactions, sn.budgets), nil
}

// GetCategorySummary returns spending totals per category.
func (s *Service) GetCategorySummary(ctx context.Context, w Window) ([]Total, error) {
	sn, err := s.takeSnapshot(ctx, w, 0)
	if err != nil {
		return nil, err
	}
	return TotalsBy(sn.transactions, byCategory), nil
}

// GetPaymentMethodSummary returns spending totals per payment method.
func (s *Service) GetPaymentMethodSummary(ctx context.Context, w Window) ([]Total, error) {
	sn, err := s.takeSnapshot(ctx, w, 0)
	if err != nil {
		return nil, err
	}
	return TotalsBy(sn.transactions, byPaymentMethod), nil
}

// GetDashboardSummary returns every section at once, each computed from the
// same snapshot.
func (s *Service) GetDashboardSummary(ctx context.Context, w Window) (*Dashboard, error) {
	sn, err := s.takeSnapshot(ctx, w, s.policy.RecentTransactions)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		TransactionCount: len(sn.transactions),
		Recent:           sn.recent,
	}

	var g errgroup.Group
	g.Go(func() error {
		d.TotalSpent = SumAmounts(sn.transactions)
		d.TotalBudgeted = SumBudgets(sn.budgets)
		return nil
	})
	g.Go(func() error {
		d.Budgets = BudgetLines(sn.transactions, sn.budgets)
		d.Alerts = Alerts(d.Budgets, sn.threshold)
		return nil
	})
	g.Go(func() error {
		d.Categories = TotalsBy(sn.transactions, byCategory)
		return nil
	})
	g.Go(func() error {
		d.PaymentMethods = TotalsBy(sn.transactions, byPaymentMethod)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
