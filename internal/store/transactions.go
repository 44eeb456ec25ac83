// ABOUTME: Ledger transaction entity, filter, and store methods
// ABOUTME: Ids come from AUTOINCREMENT so a deleted id is never handed out again

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Transaction is a single ledger entry. Amount is in minor currency units.
type Transaction struct {
	ID            int64
	Owner         string
	Date          time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Category      string
	PaymentMethod string
	Amount        int64
	Notes         *string
}

// TransactionFilter narrows ListTransactions. Nil fields are unconstrained.
// Range bounds are inclusive unless ExclusiveBounds is set.
type TransactionFilter struct {
	Owner           *string
	Start           *time.Time
	End             *time.Time
	MinAmount       *int64
	MaxAmount       *int64
	Category        *string
	PaymentMethod   *string
	ExclusiveBounds bool
	Limit           int  // 0 means no limit
	NewestFirst     bool // default ordering is id ascending
}

// InsertTransaction stores t and returns the assigned id. t.ID is set too.
func (t *sqliteTx) InsertTransaction(ctx context.Context, txn *Transaction) (int64, error) {
	query := `
		INSERT INTO transactions (owner, date, created_at, updated_at, category, payment_method, amount, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := t.tx.ExecContext(ctx, query,
		txn.Owner,
		toNanos(txn.Date),
		toNanos(txn.CreatedAt),
		toNanos(txn.UpdatedAt),
		txn.Category,
		txn.PaymentMethod,
		txn.Amount,
		nullString(txn.Notes),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting transaction id: %w", err)
	}
	txn.ID = id

	t.logger.Debug("inserted transaction", "id", id, "owner", txn.Owner, "category", txn.Category)
	return id, nil
}

// GetTransaction retrieves a transaction by id.
func (t *sqliteTx) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	query := transactionColumns + ` WHERE id = ?`

	txn, err := scanTransaction(t.tx.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying transaction: %w", err)
	}
	return txn, nil
}

// UpdateTransaction rewrites the mutable fields of a transaction. The id,
// owner and created_at columns are never touched.
func (t *sqliteTx) UpdateTransaction(ctx context.Context, txn *Transaction) error {
	query := `
		UPDATE transactions
		SET date = ?, updated_at = ?, category = ?, payment_method = ?, amount = ?, notes = ?
		WHERE id = ?
	`

	result, err := t.tx.ExecContext(ctx, query,
		toNanos(txn.Date),
		toNanos(txn.UpdatedAt),
		txn.Category,
		txn.PaymentMethod,
		txn.Amount,
		nullString(txn.Notes),
		txn.ID,
	)
	if err != nil {
		return fmt.Errorf("updating transaction: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionNotFound
	}

	t.logger.Debug("updated transaction", "id", txn.ID)
	return nil
}

// DeleteTransaction removes a transaction.
func (t *sqliteTx) DeleteTransaction(ctx context.Context, id int64) error {
	result, err := t.tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}

	n, err := rowsAffected(result)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTransactionNotFound
	}

	t.logger.Debug("deleted transaction", "id", id)
	return nil
}

// ListTransactions returns the transactions matching f.
func (t *sqliteTx) ListTransactions(ctx context.Context, f TransactionFilter) ([]*Transaction, error) {
	query, args := buildTransactionQuery(f)

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	txns := []*Transaction{}
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}

	return txns, nil
}

const transactionColumns = `
	SELECT id, owner, date, created_at, updated_at, category, payment_method, amount, notes
	FROM transactions`

// buildTransactionQuery renders f into a WHERE clause.
func buildTransactionQuery(f TransactionFilter) (string, []any) {
	lower, upper := ">=", "<="
	if f.ExclusiveBounds {
		lower, upper = ">", "<"
	}

	var conds []string
	var args []any
	add := func(cond string, arg any) {
		conds = append(conds, cond)
		args = append(args, arg)
	}

	if f.Owner != nil {
		add("owner = ?", *f.Owner)
	}
	if f.Start != nil {
		add("date "+lower+" ?", toNanos(*f.Start))
	}
	if f.End != nil {
		add("date "+upper+" ?", toNanos(*f.End))
	}
	if f.MinAmount != nil {
		add("amount "+lower+" ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		add("amount "+upper+" ?", *f.MaxAmount)
	}
	if f.Category != nil {
		add("category = ?", *f.Category)
	}
	if f.PaymentMethod != nil {
		add("payment_method = ?", *f.PaymentMethod)
	}

	var b strings.Builder
	b.WriteString(transactionColumns)
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	if f.NewestFirst {
		b.WriteString(" ORDER BY date DESC, id DESC")
	} else {
		b.WriteString(" ORDER BY id ASC")
	}
	if f.Limit > 0 {
		b.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
	}
	return b.String(), args
}

func scanTransaction(scanner interface{ Scan(dest ...any) error }) (*Transaction, error) {
	var txn Transaction
	var date, createdAt, updatedAt int64
	var notes sql.NullString

	if err := scanner.Scan(
		&txn.ID,
		&txn.Owner,
		&date,
		&createdAt,
		&updatedAt,
		&txn.Category,
		&txn.PaymentMethod,
		&txn.Amount,
		&notes,
	); err != nil {
		return nil, err
	}

	txn.Date = fromNanos(date)
	txn.CreatedAt = fromNanos(createdAt)
	txn.UpdatedAt = fromNanos(updatedAt)
	if notes.Valid {
		n := notes.String
		txn.Notes = &n
	}
	return &txn, nil
}

// nullString maps an optional string to a nullable column value.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
