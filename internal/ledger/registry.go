// ABOUTME: Category and payment method registry operations
// ABOUTME: Adds and deletes are gated by the registry manager role; reads are open

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/ledger-gateway/internal/store"
)

// CategoryAction selects what ManageCategory does.
type CategoryAction int

const (
	CategoryAdd CategoryAction = iota + 1
	CategoryDelete
)

// ParseCategoryAction converts "add" or "delete" into a CategoryAction.
func ParseCategoryAction(s string) (CategoryAction, error) {
	switch s {
	case "add":
		return CategoryAdd, nil
	case "delete":
		return CategoryDelete, nil
	default:
		return 0, fmt.Errorf("unknown category action %q", s)
	}
}

func (a CategoryAction) String() string {
	switch a {
	case CategoryAdd:
		return "add"
	case CategoryDelete:
		return "delete"
	default:
		return fmt.Sprintf("CategoryAction(%d)", int(a))
	}
}

// ManageCategory adds or deletes a category. Deleting an absent category
// succeeds without change.
func (s *Service) ManageCategory(ctx context.Context, name string, action CategoryAction) (Outcome, error) {
	if action != CategoryAdd && action != CategoryDelete {
		return "", fmt.Errorf("managing category: unknown action %d", int(action))
	}

	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := requireRole(ctx, tx, s.policy.RegistryManagers)
		if err != nil {
			return "", err
		}
		if name == "" {
			return InvalidCategory, nil
		}

		now := s.now()
		switch action {
		case CategoryAdd:
			err := tx.AddCategory(ctx, name, now)
			if errors.Is(err, store.ErrCategoryExists) {
				return CategoryExists, nil
			}
			if err != nil {
				return "", fmt.Errorf("adding category: %w", err)
			}
			if err := s.audit(ctx, tx, caller.Principal, store.AuditAddCategory, "category", name, nil); err != nil {
				return "", err
			}
			fx.emit(Event{Type: EventCategoryAdded, Actor: caller.Principal, OccurredAt: now, Category: name})

		case CategoryDelete:
			existed, err := tx.DeleteCategory(ctx, name)
			if err != nil {
				return "", fmt.Errorf("deleting category: %w", err)
			}
			if !existed {
				return Success, nil
			}
			if err := s.audit(ctx, tx, caller.Principal, store.AuditDeleteCategory, "category", name, nil); err != nil {
				return "", err
			}
			fx.emit(Event{Type: EventCategoryDeleted, Actor: caller.Principal, OccurredAt: now, Category: name})
		}
		return Success, nil
	})
}

// AddPaymentMethod registers a payment method.
func (s *Service) AddPaymentMethod(ctx context.Context, name string) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := requireRole(ctx, tx, s.policy.RegistryManagers)
		if err != nil {
			return "", err
		}
		if name == "" {
			return InvalidMethod, nil
		}

		now := s.now()
		err = tx.AddPaymentMethod(ctx, name, now)
		if errors.Is(err, store.ErrMethodExists) {
			return MethodExists, nil
		}
		if err != nil {
			return "", fmt.Errorf("adding payment method: %w", err)
		}
		if err := s.audit(ctx, tx, caller.Principal, store.AuditAddPaymentMethod, "payment_method", name, nil); err != nil {
			return "", err
		}

		fx.emit(Event{Type: EventPaymentMethodAdded, Actor: caller.Principal, OccurredAt: now, PaymentMethod: name})
		return Success, nil
	})
}

// DeletePaymentMethod removes a payment method. Deleting an absent method
// succeeds without change.
func (s *Service) DeletePaymentMethod(ctx context.Context, name string) (Outcome, error) {
	return s.update(ctx, func(tx store.Tx, fx *effects) (Outcome, error) {
		caller, err := requireRole(ctx, tx, s.policy.RegistryManagers)
		if err != nil {
			return "", err
		}
		if name == "" {
			return InvalidMethod, nil
		}

		existed, err := tx.DeletePaymentMethod(ctx, name)
		if err != nil {
			return "", fmt.Errorf("deleting payment method: %w", err)
		}
		if !existed {
			return Success, nil
		}
		if err := s.audit(ctx, tx, caller.Principal, store.AuditDeletePaymentMethod, "payment_method", name, nil); err != nil {
			return "", err
		}

		fx.emit(Event{Type: EventPaymentMethodDeleted, Actor: caller.Principal, OccurredAt: s.now(), PaymentMethod: name})
		return Success, nil
	})
}

// GetCategories returns the registered categories sorted by name.
func (s *Service) GetCategories(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		names, err = tx.ListCategories(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	return names, nil
}

// GetPaymentMethods returns the registered payment methods sorted by name.
func (s *Service) GetPaymentMethods(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(ctx, func(tx store.Tx) error {
		var err error
		names, err = tx.ListPaymentMethods(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}
	return names, nil
}

// SeedRegistry adds any missing categories and payment methods. Empty names
// are skipped. It bypasses access control and is meant for bootstrap.
func (s *Service) SeedRegistry(ctx context.Context, categories, methods []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.Update(ctx, func(tx store.Tx) error {
		now := s.now()
		for _, c := range categories {
			if c == "" {
				continue
			}
			if err := tx.AddCategory(ctx, c, now); err != nil && !errors.Is(err, store.ErrCategoryExists) {
				return fmt.Errorf("seeding category %q: %w", c, err)
			}
		}
		for _, m := range methods {
			if m == "" {
				continue
			}
			if err := tx.AddPaymentMethod(ctx, m, now); err != nil && !errors.Is(err, store.ErrMethodExists) {
				return fmt.Errorf("seeding payment method %q: %w", m, err)
			}
		}
		return nil
	})
}
