// ABOUTME: JSON request and response bodies for the ledger HTTP API
// ABOUTME: Converts store entities and ledger summaries into wire shapes

package gateway

import (
	"time"

	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/money"
	"github.com/2389/ledger-gateway/internal/store"
)

// TransactionRequest is the JSON body for POST /api/transactions and PUT /api/transactions/{id}.
type TransactionRequest struct {
	Date          Timestamp `json:"date"`
	Amount        int64     `json:"amount"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	Notes         *string   `json:"notes,omitempty"`
}

func (r TransactionRequest) input() ledger.TransactionInput {
	return ledger.TransactionInput{
		Date:          r.Date.Time,
		Amount:        r.Amount,
		Category:      r.Category,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
	}
}

// AcceptInviteRequest is the JSON body for POST /api/invites/accept.
type AcceptInviteRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// CategoryRequest is the JSON body for POST /api/categories.
type CategoryRequest struct {
	Name   string `json:"name"`
	Action string `json:"action"` // "add" or "delete"
}

// PaymentMethodRequest is the JSON body for POST /api/payment-methods.
type PaymentMethodRequest struct {
	Name string `json:"name"`
}

// BudgetRequest is the JSON body for PUT /api/budgets/{category}.
type BudgetRequest struct {
	Amount int64 `json:"amount"`
}

// ProfileRequest is the JSON body for PUT /api/profile.
type ProfileRequest struct {
	Theme    string `json:"theme"`
	Currency string `json:"currency"`
}

// NotificationRequest is the JSON body for PUT /api/notifications.
type NotificationRequest struct {
	BudgetAlerts           bool   `json:"budget_alerts"`
	TransactionAlerts      bool   `json:"transaction_alerts"`
	WeeklyDigest           bool   `json:"weekly_digest"`
	BudgetWarningThreshold int    `json:"budget_warning_threshold"`
	MatrixRoom             string `json:"matrix_room,omitempty"`
}

// OutcomeResponse carries the business outcome of a mutating call.
type OutcomeResponse struct {
	Result ledger.Outcome `json:"result"`
}

// AddTransactionResponse is returned by POST /api/transactions. ID is only
// set on success.
type AddTransactionResponse struct {
	Result ledger.Outcome `json:"result"`
	ID     int64          `json:"id,omitempty"`
}

// InviteResponse is returned by POST /api/invites.
type InviteResponse struct {
	Result    ledger.Outcome `json:"result"`
	Token     string         `json:"token,omitempty"`
	Link      string         `json:"link,omitempty"`
	ExpiresAt *Timestamp     `json:"expires_at,omitempty"`
}

// TransactionResponse is the JSON shape of one ledger transaction.
type TransactionResponse struct {
	ID            int64     `json:"id"`
	Owner         string    `json:"owner"`
	Date          Timestamp `json:"date"`
	CreatedAt     Timestamp `json:"created_at"`
	UpdatedAt     Timestamp `json:"updated_at"`
	Category      string    `json:"category"`
	PaymentMethod string    `json:"payment_method"`
	Amount        int64     `json:"amount"`
	Display       string    `json:"display"`
	Notes         *string   `json:"notes,omitempty"`
}

// UserResponse is the JSON shape of a registry entry.
type UserResponse struct {
	Principal string     `json:"principal"`
	Username  string     `json:"username"`
	Role      store.Role `json:"role"`
	JoinedAt  Timestamp  `json:"joined_at"`
	RevokedAt *Timestamp `json:"revoked_at,omitempty"`
	Active    bool       `json:"active"`
}

// MeResponse is returned by GET /api/me. User is nil until the caller registers.
type MeResponse struct {
	Principal  string        `json:"principal"`
	Registered bool          `json:"registered"`
	User       *UserResponse `json:"user,omitempty"`
}

// InviteInfoResponse describes an issued invite. The token itself is never stored.
type InviteInfoResponse struct {
	Digest    string     `json:"digest"`
	IssuedBy  string     `json:"issued_by"`
	IssuedAt  Timestamp  `json:"issued_at"`
	ExpiresAt Timestamp  `json:"expires_at"`
	UsedAt    *Timestamp `json:"used_at,omitempty"`
	UsedBy    string     `json:"used_by,omitempty"`
}

// AuditEntryResponse is one audit log row.
type AuditEntryResponse struct {
	ID         string            `json:"id"`
	Actor      string            `json:"actor"`
	Action     store.AuditAction `json:"action"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Timestamp  Timestamp         `json:"timestamp"`
	Detail     map[string]any    `json:"detail,omitempty"`
}

// BudgetResponse is one configured budget limit.
type BudgetResponse struct {
	Category  string    `json:"category"`
	Amount    int64     `json:"amount"`
	Display   string    `json:"display"`
	UpdatedAt Timestamp `json:"updated_at"`
}

// BudgetLineResponse is the computed state of one category against its limit.
type BudgetLineResponse struct {
	Category   string   `json:"category"`
	Limit      *int64   `json:"limit"`
	Spent      int64    `json:"spent"`
	Remaining  *int64   `json:"remaining"`
	Percentage *float64 `json:"percentage"`
	OverBudget bool     `json:"over_budget"`
	Count      int      `json:"count"`
}

// BudgetAlertResponse is a budget line that reached the warning threshold.
type BudgetAlertResponse struct {
	BudgetLineResponse
	Level     ledger.AlertLevel `json:"level"`
	Threshold int               `json:"threshold"`
}

// TotalResponse is one row of a grouped spending summary.
type TotalResponse struct {
	Key    string  `json:"key"`
	Amount int64   `json:"amount"`
	Count  int     `json:"count"`
	Share  float64 `json:"share"`
}

// DashboardResponse is returned by GET /api/summary/dashboard.
type DashboardResponse struct {
	TotalSpent       int64                 `json:"total_spent"`
	TotalDisplay     string                `json:"total_display"`
	TransactionCount int                   `json:"transaction_count"`
	TotalBudgeted    int64                 `json:"total_budgeted"`
	Budgets          []BudgetLineResponse  `json:"budgets"`
	Alerts           []BudgetAlertResponse `json:"alerts"`
	Categories       []TotalResponse       `json:"categories"`
	PaymentMethods   []TotalResponse       `json:"payment_methods"`
	Recent           []TransactionResponse `json:"recent"`
}

// ProfileResponse is returned by GET /api/profile.
type ProfileResponse struct {
	Theme     string     `json:"theme"`
	Currency  string     `json:"currency"`
	UpdatedAt *Timestamp `json:"updated_at,omitempty"`
}

// NotificationResponse is returned by GET /api/notifications.
type NotificationResponse struct {
	BudgetAlerts           bool       `json:"budget_alerts"`
	TransactionAlerts      bool       `json:"transaction_alerts"`
	WeeklyDigest           bool       `json:"weekly_digest"`
	BudgetWarningThreshold int        `json:"budget_warning_threshold"`
	MatrixRoom             string     `json:"matrix_room,omitempty"`
	UpdatedAt              *Timestamp `json:"updated_at,omitempty"`
}

func toTransactionResponse(t *store.Transaction, currency string) TransactionResponse {
	return TransactionResponse{
		ID:            t.ID,
		Owner:         t.Owner,
		Date:          At(t.Date),
		CreatedAt:     At(t.CreatedAt),
		UpdatedAt:     At(t.UpdatedAt),
		Category:      t.Category,
		PaymentMethod: t.PaymentMethod,
		Amount:        t.Amount,
		Display:       money.Format(t.Amount, currency),
		Notes:         t.Notes,
	}
}

func toTransactionResponses(txns []*store.Transaction, currency string) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, toTransactionResponse(t, currency))
	}
	return out
}

func toUserResponse(u *store.User) *UserResponse {
	return &UserResponse{
		Principal: u.Principal,
		Username:  u.Username,
		Role:      u.Role,
		JoinedAt:  At(u.JoinedAt),
		RevokedAt: atPtr(u.RevokedAt),
		Active:    u.Active(),
	}
}

func toInviteInfo(inv *store.Invite) InviteInfoResponse {
	return InviteInfoResponse{
		Digest:    inv.Digest,
		IssuedBy:  inv.IssuedBy,
		IssuedAt:  At(inv.IssuedAt),
		ExpiresAt: At(inv.ExpiresAt),
		UsedAt:    atPtr(inv.UsedAt),
		UsedBy:    inv.UsedBy,
	}
}

func toAuditEntry(e store.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID,
		Actor:      e.Actor,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Timestamp:  At(e.Timestamp),
		Detail:     e.Detail,
	}
}

func toBudgetLine(l ledger.BudgetLine) BudgetLineResponse {
	return BudgetLineResponse{
		Category:   l.Category,
		Limit:      l.Limit,
		Spent:      l.Spent,
		Remaining:  l.Remaining,
		Percentage: l.Percentage,
		OverBudget: l.OverBudget,
		Count:      l.Count,
	}
}

func toBudgetLines(lines []ledger.BudgetLine) []BudgetLineResponse {
	out := make([]BudgetLineResponse, 0, len(lines))
	for _, l := range lines {
		out = append(out, toBudgetLine(l))
	}
	return out
}

func toBudgetAlerts(alerts []ledger.BudgetAlert) []BudgetAlertResponse {
	out := make([]BudgetAlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, BudgetAlertResponse{
			BudgetLineResponse: toBudgetLine(a.BudgetLine),
			Level:              a.Level,
			Threshold:          a.Threshold,
		})
	}
	return out
}

func toTotals(totals []ledger.Total) []TotalResponse {
	out := make([]TotalResponse, 0, len(totals))
	for _, t := range totals {
		out = append(out, TotalResponse{Key: t.Key, Amount: t.Amount, Count: t.Count, Share: t.Share})
	}
	return out
}

func toDashboard(d *ledger.Dashboard, currency string) DashboardResponse {
	return DashboardResponse{
		TotalSpent:       d.TotalSpent,
		TotalDisplay:     money.Format(d.TotalSpent, currency),
		TransactionCount: d.TransactionCount,
		TotalBudgeted:    d.TotalBudgeted,
		Budgets:          toBudgetLines(d.Budgets),
		Alerts:           toBudgetAlerts(d.Alerts),
		Categories:       toTotals(d.Categories),
		PaymentMethods:   toTotals(d.PaymentMethods),
		Recent:           toTransactionResponses(d.Recent, currency),
	}
}

// nonZeroTime returns nil for the zero time so that defaults without a
// stored row omit updated_at.
func nonZeroTime(t time.Time) *Timestamp {
	if t.IsZero() {
		return nil
	}
	ts := At(t)
	return &ts
}

func atPtr(t *time.Time) *Timestamp {
	if t == nil {
		return nil
	}
	ts := At(*t)
	return &ts
}
