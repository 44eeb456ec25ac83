// ABOUTME: JSON response helpers and ledger error mapping for HTTP handlers
// ABOUTME: Parses optional query parameters into the pointer fields the ledger expects

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// writeJSON writes v with the given status code.
func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (a *api) sendJSONError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, map[string]string{"error": message})
}

// writeOutcome writes the result envelope of a mutating call.
func (a *api) writeOutcome(w http.ResponseWriter, out ledger.Outcome) {
	a.writeJSON(w, http.StatusOK, OutcomeResponse{Result: out})
}

// writeLedgerError maps a ledger error onto a status code. Caller rejections
// become 401/403; anything else is a fault and its detail stays in the log.
func (a *api) writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ledger.ErrUnauthenticated):
		a.sendJSONError(w, http.StatusUnauthorized, err.Error())
	case ledger.IsRejection(err):
		a.sendJSONError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, ledger.ErrDateRequired):
		a.sendJSONError(w, http.StatusBadRequest, err.Error())
	default:
		a.logger.Error("ledger call failed", "method", r.Method, "path", r.URL.Path, "error", err)
		a.sendJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a JSON body into dst. Unknown fields are rejected.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

// parseTimeParam reads an optional time query parameter in any form
// parseTimestamp accepts.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := parseTimestamp(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	return &t, nil
}

func parseInt64Param(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: expected an integer", name)
	}
	return &v, nil
}

func stringParam(r *http.Request, name string) *string {
	q := r.URL.Query()
	if !q.Has(name) {
		return nil
	}
	v := q.Get(name)
	return &v
}

// parseWindow reads the optional start and end query parameters.
func parseWindow(r *http.Request) (ledger.Window, error) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		return ledger.Window{}, err
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		return ledger.Window{}, err
	}
	return ledger.Window{Start: start, End: end}, nil
}

// parseTransactionQuery reads the transaction filter query parameters.
func parseTransactionQuery(r *http.Request) (ledger.TransactionQuery, error) {
	w, err := parseWindow(r)
	if err != nil {
		return ledger.TransactionQuery{}, err
	}
	minAmount, err := parseInt64Param(r, "min_amount")
	if err != nil {
		return ledger.TransactionQuery{}, err
	}
	maxAmount, err := parseInt64Param(r, "max_amount")
	if err != nil {
		return ledger.TransactionQuery{}, err
	}
	return ledger.TransactionQuery{
		Start:         w.Start,
		End:           w.End,
		MinAmount:     minAmount,
		MaxAmount:     maxAmount,
		Category:      stringParam(r, "category"),
		PaymentMethod: stringParam(r, "payment_method"),
	}, nil
}

// parseAuditFilter reads the audit log query parameters.
func parseAuditFilter(r *http.Request) (store.AuditFilter, error) {
	var f store.AuditFilter
	var err error
	if f.Since, err = parseTimeParam(r, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTimeParam(r, "until"); err != nil {
		return f, err
	}
	f.Actor = stringParam(r, "actor")
	f.TargetType = stringParam(r, "target_type")
	if action := stringParam(r, "action"); action != nil {
		a := store.AuditAction(*action)
		f.Action = &a
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return f, errors.New("invalid limit: expected an integer")
		}
		f.Limit = limit
	}
	return f, nil
}
