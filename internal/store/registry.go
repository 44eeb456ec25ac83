// ABOUTME: Category and payment method registry tables
// ABOUTME: Two symmetric name sets with insert-unique and delete-if-present semantics

package store

import (
	"context"
	"fmt"
	"time"
)

// registryTable names one of the two registry tables.
type registryTable struct {
	name      string
	existsErr error
}

var (
	categoriesTable     = registryTable{name: "categories", existsErr: ErrCategoryExists}
	paymentMethodsTable = registryTable{name: "payment_methods", existsErr: ErrMethodExists}
)

// AddCategory registers a category. Returns ErrCategoryExists if present.
func (t *sqliteTx) AddCategory(ctx context.Context, name string, at time.Time) error {
	return t.addName(ctx, categoriesTable, name, at)
}

// DeleteCategory removes a category, reporting whether it existed.
func (t *sqliteTx) DeleteCategory(ctx context.Context, name string) (bool, error) {
	return t.deleteName(ctx, categoriesTable, name)
}

// ListCategories returns all category names in order.
func (t *sqliteTx) ListCategories(ctx context.Context) ([]string, error) {
	return t.listNames(ctx, categoriesTable)
}

// AddPaymentMethod registers a payment method. Returns ErrMethodExists if present.
func (t *sqliteTx) AddPaymentMethod(ctx context.Context, name string, at time.Time) error {
	return t.addName(ctx, paymentMethodsTable, name, at)
}

// DeletePaymentMethod removes a payment method, reporting whether it existed.
func (t *sqliteTx) DeletePaymentMethod(ctx context.Context, name string) (bool, error) {
	return t.deleteName(ctx, paymentMethodsTable, name)
}

// ListPaymentMethods returns all payment method names in order.
func (t *sqliteTx) ListPaymentMethods(ctx context.Context) ([]string, error) {
	return t.listNames(ctx, paymentMethodsTable)
}

func (t *sqliteTx) addName(ctx context.Context, tbl registryTable, name string, at time.Time) error {
	query := `INSERT INTO ` + tbl.name + ` (name, created_at) VALUES (?, ?)`

	if _, err := t.tx.ExecContext(ctx, query, name, toNanos(at)); err != nil {
		if isUniqueConstraintError(err) {
			return tbl.existsErr
		}
		return fmt.Errorf("inserting into %s: %w", tbl.name, err)
	}

	t.logger.Info("registry entry added", "table", tbl.name, "name", name)
	return nil
}

func (t *sqliteTx) deleteName(ctx context.Context, tbl registryTable, name string) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `DELETE FROM `+tbl.name+` WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("deleting from %s: %w", tbl.name, err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return false, err
	}
	if n > 0 {
		t.logger.Info("registry entry deleted", "table", tbl.name, "name", name)
	}
	return n > 0, nil
}

func (t *sqliteTx) listNames(ctx context.Context, tbl registryTable) ([]string, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT name FROM `+tbl.name+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", tbl.name, err)
	}
	defer func() { _ = rows.Close() }()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", tbl.name, err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", tbl.name, err)
	}

	return names, nil
}
