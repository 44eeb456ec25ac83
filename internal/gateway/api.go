// ABOUTME: HTTP API handlers exposing ledger operations as JSON endpoints
// ABOUTME: Business outcomes return 200 with a result envelope; rejections map to 401/403

package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/money"
	"github.com/2389/ledger-gateway/internal/store"
)

// pinger reports whether the backing store is reachable.
type pinger interface {
	Ping(ctx context.Context) error
}

// api holds the dependencies shared by every HTTP handler.
type api struct {
	ledger *ledger.Service
	store  pinger
	logger *slog.Logger

	// currency formats display amounts for callers without a stored profile.
	currency string
	// baseURL prefixes invite links. Empty omits the link.
	baseURL string
}

// handleHealth returns 200 OK if the server is alive.
func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK if the store answers a ping.
func (a *api) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Ping(r.Context()); err != nil {
		a.logger.Warn("readiness check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("store unavailable"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// currencyFor returns the caller's display currency.
func (a *api) currencyFor(ctx context.Context) string {
	p, err := a.ledger.GetUserProfile(ctx)
	if err != nil || p == nil || p.Currency == "" {
		return a.currency
	}
	return p.Currency
}

func (a *api) inviteLink(token string) string {
	if a.baseURL == "" {
		return ""
	}
	return strings.TrimSuffix(a.baseURL, "/") + "/invite?token=" + url.QueryEscape(token)
}

// Identity

// handleMe handles GET /api/me. Unregistered principals get registered=false.
func (a *api) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := a.ledger.Me(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}

	resp := MeResponse{Principal: auth.MustFromContext(r.Context()).PrincipalID}
	if u != nil {
		resp.Registered = true
		resp.User = toUserResponse(u)
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.ledger.GetUsers(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	resp := make([]*UserResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, toUserResponse(u))
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleRevokeUser(w http.ResponseWriter, r *http.Request) {
	out, err := a.ledger.RevokeAccess(r.Context(), chi.URLParam(r, "principal"))
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

// handleAdminCheck handles GET /api/admin/check. Non-admins get 403.
func (a *api) handleAdminCheck(w http.ResponseWriter, r *http.Request) {
	if err := a.ledger.AssertAdmin(r.Context()); err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]bool{"admin": true})
}

func (a *api) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	f, err := parseAuditFilter(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.ledger.GetAuditLog(r.Context(), f)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	resp := make([]AuditEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toAuditEntry(e))
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// Invites

func (a *api) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	res, err := a.ledger.GenerateInviteLink(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	resp := InviteResponse{Result: res.Outcome}
	if res.Outcome.OK() {
		resp.Token = res.Token
		resp.Link = a.inviteLink(res.Token)
		expires := At(res.ExpiresAt)
		resp.ExpiresAt = &expires
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleListInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := a.ledger.ListInvites(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	resp := make([]InviteInfoResponse, 0, len(invites))
	for _, inv := range invites {
		resp = append(resp, toInviteInfo(inv))
	}
	a.writeJSON(w, http.StatusOK, resp)
}

// handleAcceptInvite handles POST /api/invites/accept. It is reachable by
// authenticated principals that are not registered yet.
func (a *api) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	var req AcceptInviteRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.ledger.AcceptInvite(r.Context(), req.Token, req.Username)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

// Registry

func (a *api) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := a.ledger.GetCategories(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, cats)
}

func (a *api) handleManageCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	action, err := ledger.ParseCategoryAction(req.Action)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.ledger.ManageCategory(r.Context(), req.Name, action)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

func (a *api) handleListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := a.ledger.GetPaymentMethods(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, methods)
}

func (a *api) handleAddPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var req PaymentMethodRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.ledger.AddPaymentMethod(r.Context(), req.Name)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

func (a *api) handleDeletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	out, err := a.ledger.DeletePaymentMethod(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

// Transactions

// handleListTransactions handles GET /api/transactions. Any filter parameter
// switches to the filtered query.
func (a *api) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := parseTransactionQuery(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	var txns []*store.Transaction
	if q.Empty() {
		txns, err = a.ledger.GetAllTransactions(ctx)
	} else {
		txns, err = a.ledger.GetFilteredTransactions(ctx, q)
	}
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toTransactionResponses(txns, a.currencyFor(ctx)))
}

func (a *api) handleMyTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	txns, err := a.ledger.GetUserTransactionsByCaller(ctx)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toTransactionResponses(txns, a.currencyFor(ctx)))
}

func (a *api) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeTransaction(w, r)
	if !ok {
		return
	}
	res, err := a.ledger.AddTransaction(r.Context(), req.input())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, AddTransactionResponse{Result: res.Outcome, ID: res.ID})
}

// decodeTransaction reads a transaction body, writing 400 when it is
// malformed or carries no date.
func (a *api) decodeTransaction(w http.ResponseWriter, r *http.Request) (TransactionRequest, bool) {
	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	if req.Date.IsZero() {
		a.sendJSONError(w, http.StatusBadRequest, "date is required")
		return req, false
	}
	return req, true
}

// transactionID parses the {id} path parameter, writing 400 when it is malformed.
func (a *api) transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, "invalid transaction id")
		return 0, false
	}
	return id, true
}

// handleGetTransaction handles GET /api/transactions/{id}. Absent and
// invisible transactions are both 404.
func (a *api) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := a.transactionID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	t, err := a.ledger.GetTransaction(ctx, id)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	if t == nil {
		a.sendJSONError(w, http.StatusNotFound, "transaction not found")
		return
	}
	a.writeJSON(w, http.StatusOK, toTransactionResponse(t, a.currencyFor(ctx)))
}

func (a *api) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := a.transactionID(w, r)
	if !ok {
		return
	}
	req, ok := a.decodeTransaction(w, r)
	if !ok {
		return
	}
	out, err := a.ledger.UpdateTransaction(r.Context(), id, req.input())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

func (a *api) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := a.transactionID(w, r)
	if !ok {
		return
	}
	out, err := a.ledger.DeleteTransaction(r.Context(), id)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

// Budgets

func (a *api) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	budgets, err := a.ledger.GetBudgets(ctx)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	currency := a.currencyFor(ctx)
	resp := make([]BudgetResponse, 0, len(budgets))
	for _, b := range budgets {
		resp = append(resp, BudgetResponse{
			Category:  b.Category,
			Amount:    b.Amount,
			Display:   money.Format(b.Amount, currency),
			UpdatedAt: At(b.UpdatedAt),
		})
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.ledger.SetBudget(r.Context(), chi.URLParam(r, "category"), req.Amount)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

func (a *api) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	out, err := a.ledger.DeleteBudget(r.Context(), chi.URLParam(r, "category"))
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

func (a *api) handleBudgetStatus(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	line, err := a.ledger.CheckBudgetStatus(r.Context(), chi.URLParam(r, "category"), win)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toBudgetLine(line))
}

// Aggregates

func (a *api) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	lines, err := a.ledger.GetBudgetSummary(r.Context(), win)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toBudgetLines(lines))
}

func (a *api) handleBudgetAlerts(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	alerts, err := a.ledger.GetBudgetAlerts(r.Context(), win)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toBudgetAlerts(alerts))
}

func (a *api) handleCategorySummary(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	totals, err := a.ledger.GetCategorySummary(r.Context(), win)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toTotals(totals))
}

func (a *api) handlePaymentMethodSummary(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	totals, err := a.ledger.GetPaymentMethodSummary(r.Context(), win)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toTotals(totals))
}

func (a *api) handleDashboard(w http.ResponseWriter, r *http.Request) {
	win, err := parseWindow(r)
	if err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	d, err := a.ledger.GetDashboardSummary(ctx, win)
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, toDashboard(d, a.currencyFor(ctx)))
}

// Profiles

func (a *api) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := a.ledger.GetUserProfile(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, ProfileResponse{
		Theme:     p.Theme,
		Currency:  p.Currency,
		UpdatedAt: nonZeroTime(p.UpdatedAt),
	})
}

func (a *api) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.ledger.SetUserProfile(r.Context(), ledger.ProfileInput{Theme: req.Theme, Currency: req.Currency})
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}

func (a *api) handleGetNotifications(w http.ResponseWriter, r *http.Request) {
	ns, err := a.ledger.GetNotificationSettings(r.Context())
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeJSON(w, http.StatusOK, NotificationResponse{
		BudgetAlerts:           ns.BudgetAlerts,
		TransactionAlerts:      ns.TransactionAlerts,
		WeeklyDigest:           ns.WeeklyDigest,
		BudgetWarningThreshold: ns.BudgetWarningThreshold,
		MatrixRoom:             ns.MatrixRoom,
		UpdatedAt:              nonZeroTime(ns.UpdatedAt),
	})
}

func (a *api) handleSetNotifications(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.ledger.SetNotificationSettings(r.Context(), ledger.NotificationInput{
		BudgetAlerts:           req.BudgetAlerts,
		TransactionAlerts:      req.TransactionAlerts,
		WeeklyDigest:           req.WeeklyDigest,
		BudgetWarningThreshold: req.BudgetWarningThreshold,
		MatrixRoom:             req.MatrixRoom,
	})
	if err != nil {
		a.writeLedgerError(w, r, err)
		return
	}
	a.writeOutcome(w, out)
}
