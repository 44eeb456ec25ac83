// ABOUTME: Per-category budget limits and their store methods
// ABOUTME: At most one budget per category, enforced by the primary key and upsert

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Budget is the spending limit for one category, in minor units.
type Budget struct {
	Category  string
	Amount    int64
	UpdatedAt time.Time
}

// UpsertBudget creates or replaces the budget for b.Category.
func (t *sqliteTx) UpsertBudget(ctx context.Context, b *Budget) error {
	query := `
		INSERT INTO budgets (category, amount, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(category) DO UPDATE SET
			amount = excluded.amount,
			updated_at = excluded.updated_at
	`

	if _, err := t.tx.ExecContext(ctx, query, b.Category, b.Amount, toNanos(b.UpdatedAt)); err != nil {
		return fmt.Errorf("upserting budget: %w", err)
	}

	t.logger.Info("set budget", "category", b.Category, "amount", b.Amount)
	return nil
}

// GetBudget retrieves the budget for a category.
func (t *sqliteTx) GetBudget(ctx context.Context, category string) (*Budget, error) {
	query := `SELECT category, amount, updated_at FROM budgets WHERE category = ?`

	b, err := scanBudget(t.tx.QueryRowContext(ctx, query, category))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBudgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying budget: %w", err)
	}
	return b, nil
}

// DeleteBudget removes the budget for a category.
func (t *sqliteTx) DeleteBudget(ctx context.Context, category string) error {
	result, err := t.tx.ExecContext(ctx, "DELETE FROM budgets WHERE category = ?", category)
	if err != nil {
		return fmt.Errorf("deleting budget: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBudgetNotFound
	}

	t.logger.Info("deleted budget", "category", category)
	return nil
}

// ListBudgets returns every budget ordered by category.
func (t *sqliteTx) ListBudgets(ctx context.Context) ([]*Budget, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT category, amount, updated_at FROM budgets ORDER BY category ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	budgets := []*Budget{}
	for rows.Next() {
		b, err := scanBudget(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning budget: %w", err)
		}
		budgets = append(budgets, b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating budgets: %w", err)
	}

	return budgets, nil
}

func scanBudget(scanner interface{ Scan(dest ...any) error }) (*Budget, error) {
	var b Budget
	var updatedAt int64
	if err := scanner.Scan(&b.Category, &b.Amount, &updatedAt); err != nil {
		return nil, err
	}
	b.UpdatedAt = fromNanos(updatedAt)
	return &b, nil
}
