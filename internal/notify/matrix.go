// ABOUTME: Matrix notifier that pushes budget alerts into a user's room
// ABOUTME: Alert bodies are written in Markdown and rendered to HTML with goldmark

// Package notify pushes budget alerts to chat rooms.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/money"
)

// sender is the part of *mautrix.Client the notifier needs.
type sender interface {
	SendMessageEvent(ctx context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, extra ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error)
}

// MatrixNotifier implements ledger.Notifier by sending m.notice messages.
type MatrixNotifier struct {
	client   sender
	currency string
	logger   *slog.Logger
}

var _ ledger.Notifier = (*MatrixNotifier)(nil)

// NewMatrixNotifier creates a notifier logged in with an access token.
// Amounts are rendered in currency.
func NewMatrixNotifier(homeserver, userID, accessToken, currency string, logger *slog.Logger) (*MatrixNotifier, error) {
	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	return newMatrixNotifier(client, currency, logger), nil
}

func newMatrixNotifier(client sender, currency string, logger *slog.Logger) *MatrixNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatrixNotifier{
		client:   client,
		currency: currency,
		logger:   logger.With("component", "notify.matrix"),
	}
}

// NotifyBudgetAlert sends alert to room.
func (n *MatrixNotifier) NotifyBudgetAlert(ctx context.Context, room string, alert ledger.BudgetAlert) error {
	md := RenderAlert(alert, n.currency)

	var html bytes.Buffer
	if err := goldmark.Convert([]byte(md), &html); err != nil {
		return fmt.Errorf("rendering alert: %w", err)
	}

	content := &event.MessageEventContent{
		MsgType:       event.MsgNotice,
		Body:          plain(md),
		Format:        event.FormatHTML,
		FormattedBody: strings.TrimSpace(html.String()),
	}

	resp, err := n.client.SendMessageEvent(ctx, id.RoomID(room), event.EventMessage, content)
	if err != nil {
		return fmt.Errorf("sending to %s: %w", room, err)
	}

	n.logger.Info("sent budget alert",
		"room", room,
		"category", alert.Category,
		"level", alert.Level,
		"event_id", resp.EventID,
	)
	return nil
}

// RenderAlert returns the Markdown body for alert.
func RenderAlert(alert ledger.BudgetAlert, currency string) string {
	var b strings.Builder

	switch alert.Level {
	case ledger.AlertExceeded:
		fmt.Fprintf(&b, "**Budget exceeded: %s**\n\n", alert.Category)
	default:
		fmt.Fprintf(&b, "**Budget warning: %s**\n\n", alert.Category)
	}

	limit := int64(0)
	if alert.Limit != nil {
		limit = *alert.Limit
	}
	fmt.Fprintf(&b, "Spent %s of %s", money.Format(alert.Spent, currency), money.Format(limit, currency))
	if alert.Percentage != nil {
		fmt.Fprintf(&b, " (%.0f%%)", *alert.Percentage)
	}
	b.WriteString(".\n\n")

	if alert.Remaining != nil {
		if *alert.Remaining < 0 {
			fmt.Fprintf(&b, "Over by %s.\n", money.Format(-*alert.Remaining, currency))
		} else {
			fmt.Fprintf(&b, "Remaining: %s. Your warning threshold is %d%%.\n",
				money.Format(*alert.Remaining, currency), alert.Threshold)
		}
	}
	return b.String()
}

// plain strips the emphasis markers used by RenderAlert.
func plain(md string) string {
	return strings.TrimSpace(strings.ReplaceAll(md, "**", ""))
}
