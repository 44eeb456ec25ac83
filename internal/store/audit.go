// ABOUTME: Audit log entity and store methods for tracking administrative actions
// ABOUTME: Entries are written in the same transaction as the change they describe

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditBootstrapAdmin      AuditAction = "bootstrap_admin"
	AuditGenerateInvite      AuditAction = "generate_invite"
	AuditAcceptInvite        AuditAction = "accept_invite"
	AuditRevokeAccess        AuditAction = "revoke_access"
	AuditAddCategory         AuditAction = "add_category"
	AuditDeleteCategory      AuditAction = "delete_category"
	AuditAddPaymentMethod    AuditAction = "add_payment_method"
	AuditDeletePaymentMethod AuditAction = "delete_payment_method"
	AuditSetBudget           AuditAction = "set_budget"
	AuditDeleteBudget        AuditAction = "delete_budget"
)

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID         string         // UUID v4
	Actor      string         // principal that performed the action
	Action     AuditAction    // what action was performed
	TargetType string         // "user", "invite", "category", "payment_method", "budget"
	TargetID   string         // ID of the affected resource
	Timestamp  time.Time      // when it happened
	Detail     map[string]any // additional context
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since      *time.Time   // entries at or after this time
	Until      *time.Time   // entries at or before this time
	Actor      *string      // filter by actor
	Action     *AuditAction // filter by action type
	TargetType *string      // filter by target type
	Limit      int          // max results (default 100, max 1000)
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (t *sqliteTx) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	var detailJSON *string
	if e.Detail != nil {
		data, err := json.Marshal(e.Detail)
		if err != nil {
			return fmt.Errorf("marshaling audit detail: %w", err)
		}
		str := string(data)
		detailJSON = &str
	}

	query := `
		INSERT INTO audit_log (audit_id, actor, action, target_type, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := t.tx.ExecContext(ctx, query,
		e.ID,
		e.Actor,
		e.Action,
		e.TargetType,
		e.TargetID,
		toNanos(e.Timestamp),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	t.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.Actor,
		"action", e.Action,
		"target", e.TargetType+"/"+e.TargetID,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const auditLogQuery = `
	SELECT audit_id, actor, action, target_type, target_id, ts, detail_json
	FROM audit_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR ts <= ?)
	  AND (? IS NULL OR actor = ?)
	  AND (? IS NULL OR action = ?)
	  AND (? IS NULL OR target_type = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListAuditLog returns audit entries matching the filter criteria, newest first.
func (t *sqliteTx) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	var since, until *int64
	if f.Since != nil {
		n := toNanos(*f.Since)
		since = &n
	}
	if f.Until != nil {
		n := toNanos(*f.Until)
		until = &n
	}
	var action *string
	if f.Action != nil {
		a := string(*f.Action)
		action = &a
	}

	rows, err := t.tx.QueryContext(ctx, auditLogQuery,
		since, since,
		until, until,
		f.Actor, f.Actor,
		action, action,
		f.TargetType, f.TargetType,
		normalizeAuditLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []AuditEntry{}
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	return entries, nil
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actionStr string
	var ts int64
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.Actor,
		&actionStr,
		&e.TargetType,
		&e.TargetID,
		&ts,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	e.Timestamp = fromNanos(ts)

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}
