// ABOUTME: Transaction ledger operations with ownership checks and role-scoped reads
// ABOUTME: Committed changes emit events and may trigger budget threshold alerts

package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

// ErrDateRequired rejects a transaction input whose Date is the zero time.
// The zero time has no stored form, and no outcome variant covers it.
var ErrDateRequired = errors.New("transaction date is required")

// TransactionInput holds the caller-supplied fields of a transaction.
type TransactionInput struct {
	Date          time.Time
	Amount        int64
	Category      string
	PaymentMethod string
	Notes         *string
}

// validate returns the first failing field check, or Success.
func (in TransactionInput) validate() Outcome {
	if in.Category == "" {
		return CategoryEmpty
	}
	if in.PaymentMethod == "" {
		return PaymentMethodEmpty
	}
	return Success
}

// AddResult is the outcome of AddTransaction. ID is set only on Success.
type AddResult struct {
	Outcome Outcome
	ID      int64
}

// TransactionQuery holds the optional predicates of GetFilteredTransactions.
// A nil field is unconstrained.
type TransactionQuery struct {
	Start         *time.Time
	End           *time.Time
	MinAmount     *int64
	MaxAmount     *int64
	Category      *string
	PaymentMethod *string
}

// Empty reports whether no predicate is set.
func (q TransactionQuery) Empty() bool {
	return q.Start == nil && q.End == nil && q.MinAmount == nil && q.MaxAmount == nil &&
		q.Category == nil && q.PaymentMethod == nil
}

// AddTransaction records a transaction owned by the caller.
func (s *Service) AddTransaction(ctx context.Context, in TransactionInput) (AddResult, error) {
	var id int64
	out, err := s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := resolveCaller(ctx, tx)
		if err != nil {
			return "", err
		}
		if out := in.validate(); !out.OK() {
			return out, nil
		}
		if in.Date.IsZero() {
			return "", ErrDateRequired
		}

		before, err := s.alertBaseline(ctx, tx, in.Category)
		if err != nil {
			return "", err
		}

		now := s.now()
		id, err = tx.InsertTransaction(ctx, &store.Transaction{
			Owner:         caller.Principal,
			Date:          in.Date,
			CreatedAt:     now,
			UpdatedAt:     now,
			Category:      in.Category,
			PaymentMethod: in.PaymentMethod,
			Amount:        in.Amount,
			Notes:         in.Notes,
		})
		if err != nil {
			return "", fmt.Errorf("inserting transaction: %w", err)
		}

		if err := s.queueAlerts(ctx, tx, fx, in.Category, before); err != nil {
			return "", err
		}

		amount := in.Amount
		fx.emit(Event{
			Type:          EventTransactionAdded,
			Actor:         caller.Principal,
			OccurredAt:    now,
			TransactionID: id,
			Category:      in.Category,
			PaymentMethod: in.PaymentMethod,
			Amount:        &amount,
		})
		return Success, nil
	})
	if err != nil {
		return AddResult{}, err
	}
	if !out.OK() {
		return AddResult{Outcome: out}, nil
	}
	return AddResult{Outcome: out, ID: id}, nil
}

// UpdateTransaction replaces the mutable fields of transaction id. The
// existence and ownership check comes before field validation.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, in TransactionInput) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, existing, out, err := s.loadOwned(ctx, tx, id)
		if err != nil || !out.OK() {
			return out, err
		}
		if out := in.validate(); !out.OK() {
			return out, nil
		}
		if in.Date.IsZero() {
			return "", ErrDateRequired
		}

		before, err := s.alertBaseline(ctx, tx, in.Category)
		if err != nil {
			return "", err
		}

		now := s.now()
		err = tx.UpdateTransaction(ctx, &store.Transaction{
			ID:            existing.ID,
			Date:          in.Date,
			UpdatedAt:     now,
			Category:      in.Category,
			PaymentMethod: in.PaymentMethod,
			Amount:        in.Amount,
			Notes:         in.Notes,
		})
		if err != nil {
			return "", fmt.Errorf("updating transaction: %w", err)
		}

		if err := s.queueAlerts(ctx, tx, fx, in.Category, before); err != nil {
			return "", err
		}

		amount := in.Amount
		fx.emit(Event{
			Type:          EventTransactionUpdated,
			Actor:         caller.Principal,
			OccurredAt:    now,
			TransactionID: id,
			Category:      in.Category,
			PaymentMethod: in.PaymentMethod,
			Amount:        &amount,
		})
		return Success, nil
	})
}

// DeleteTransaction removes transaction id. Deleting an id that no longer
// exists returns InvalidTxn.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, existing, out, err := s.loadOwned(ctx, tx, id)
		if err != nil || !out.OK() {
			return out, err
		}

		if err := tx.DeleteTransaction(ctx, id); err != nil {
			return "", fmt.Errorf("deleting transaction: %w", err)
		}

		fx.emit(Event{
			Type:          EventTransactionDeleted,
			Actor:         caller.Principal,
			OccurredAt:    s.now(),
			TransactionID: id,
			Category:      existing.Category,
			PaymentMethod: existing.PaymentMethod,
		})
		return Success, nil
	})
}

// loadOwned resolves the caller and the transaction it wants to change.
// A missing transaction and one the caller may not touch look the same.
func (s *Service) loadOwned(ctx context.Context, tx store.Tx, id int64) (*store.User, *store.Transaction, Outcome, error) {
	caller, err := resolveCaller(ctx, tx)
	if err != nil {
		return nil, nil, "", err
	}

	existing, err := tx.GetTransaction(ctx, id)
	if errors.Is(err, store.ErrTransactionNotFound) {
		return caller, nil, InvalidTxn, nil
	}
	if err != nil {
		return nil, nil, "", fmt.Errorf("loading transaction: %w", err)
	}
	if !canAccess(caller, existing) {
		return caller, nil, InvalidTxn, nil
	}
	return caller, existing, Success, nil
}

// GetTransaction returns transaction id, or nil when it is absent or not
// visible to the caller.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*store.Transaction, error) {
	var txn *store.Transaction
	err := s.view(ctx, func(tx store.Tx) error {
		caller, err := resolveCaller(ctx, tx)
		if err != nil {
			return err
		}
		t, err := tx.GetTransaction(ctx, id)
		if errors.Is(err, store.ErrTransactionNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading transaction: %w", err)
		}
		if canAccess(caller, t) {
			txn = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// GetAllTransactions returns the full ledger to admins and the caller's own
// transactions to editors.
func (s *Service) GetAllTransactions(ctx context.Context) ([]*store.Transaction, error) {
	return s.GetFilteredTransactions(ctx, TransactionQuery{})
}

// GetFilteredTransactions applies every set predicate of q as a bound. Bounds
// are inclusive unless the policy says otherwise. Results are scoped like
// GetAllTransactions and ordered by id.
func (s *Service) GetFilteredTransactions(ctx context.Context, q TransactionQuery) ([]*store.Transaction, error) {
	var txns []*store.Transaction
	err := s.view(ctx, func(tx store.Tx) error {
		caller, err := resolveCaller(ctx, tx)
		if err != nil {
			return err
		}
		f := s.filterFor(q)
		f.Owner = ownerScope(caller)
		txns, err = tx.ListTransactions(ctx, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(txns), nil
}

// GetUserTransactionsByCaller returns only the caller's own transactions,
// whatever its role.
func (s *Service) GetUserTransactionsByCaller(ctx context.Context) ([]*store.Transaction, error) {
	var txns []*store.Transaction
	err := s.view(ctx, func(tx store.Tx) error {
		caller, err := resolveCaller(ctx, tx)
		if err != nil {
			return err
		}
		owner := caller.Principal
		txns, err = tx.ListTransactions(ctx, store.TransactionFilter{Owner: &owner})
		return err
	})
	if err != nil {
		return nil, err
	}
	return nonNil(txns), nil
}

func (s *Service) filterFor(q TransactionQuery) store.TransactionFilter {
	return store.TransactionFilter{
		Start:           q.Start,
		End:             q.End,
		MinAmount:       q.MinAmount,
		MaxAmount:       q.MaxAmount,
		Category:        q.Category,
		PaymentMethod:   q.PaymentMethod,
		ExclusiveBounds: !s.policy.InclusiveBounds,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
