// ABOUTME: Tunable policy constants and the role checks every access decision goes through
// ABOUTME: Ownership and visibility checks are exhaustive switches over the closed store.Role type

package ledger

import (
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

// MinUsernameLength is the minimum username length in runes.
const MinUsernameLength = 3

// Policy holds the behaviour the call contract leaves open.
type Policy struct {
	// InclusiveBounds makes filter and window bounds closed intervals.
	InclusiveBounds bool
	// InviteTTL is how long an invite stays acceptable after issuance.
	InviteTTL time.Duration
	// BudgetManagers is the minimum role for SetBudget and DeleteBudget.
	BudgetManagers store.Role
	// RegistryManagers is the minimum role for category and payment method changes.
	RegistryManagers store.Role
	// DefaultWarningThreshold applies to users without notification settings.
	DefaultWarningThreshold int
	// RecentTransactions is the size of the dashboard's recent list.
	RecentTransactions int
}

// DefaultPolicy returns the documented defaults.
func DefaultPolicy() Policy {
	return Policy{
		InclusiveBounds:         true,
		InviteTTL:               72 * time.Hour,
		BudgetManagers:          store.RoleAdmin,
		RegistryManagers:        store.RoleAdmin,
		DefaultWarningThreshold: 80,
		RecentTransactions:      5,
	}
}

// withDefaults fills unset fields. InclusiveBounds has no unset state and is
// taken as given.
func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.InviteTTL <= 0 {
		p.InviteTTL = d.InviteTTL
	}
	if !p.BudgetManagers.Valid() {
		p.BudgetManagers = d.BudgetManagers
	}
	if !p.RegistryManagers.Valid() {
		p.RegistryManagers = d.RegistryManagers
	}
	if p.DefaultWarningThreshold <= 0 {
		p.DefaultWarningThreshold = d.DefaultWarningThreshold
	}
	if p.RecentTransactions <= 0 {
		p.RecentTransactions = d.RecentTransactions
	}
	return p
}

// canAccess reports whether u may read or modify t.
func canAccess(u *store.User, t *store.Transaction) bool {
	switch u.Role {
	case store.RoleAdmin:
		return true
	case store.RoleEditor:
		return t.Owner == u.Principal
	default:
		return false
	}
}

// ownerScope returns the owner filter for listing u's visible transactions,
// or nil when u sees the whole ledger.
func ownerScope(u *store.User) *string {
	switch u.Role {
	case store.RoleAdmin:
		return nil
	case store.RoleEditor:
		p := u.Principal
		return &p
	default:
		// Unknown roles see nothing rather than everything.
		none := ""
		return &none
	}
}
