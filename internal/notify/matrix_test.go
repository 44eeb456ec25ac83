// ABOUTME: Tests for the Matrix budget alert notifier
// ABOUTME: Uses a fake sender in place of the homeserver client

package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/2389/ledger-gateway/internal/ledger"
)

type fakeSender struct {
	room    id.RoomID
	evtType event.Type
	content *event.MessageEventContent
	err     error
}

func (f *fakeSender) SendMessageEvent(_ context.Context, roomID id.RoomID, eventType event.Type, contentJSON any, _ ...mautrix.ReqSendEvent) (*mautrix.RespSendEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.room = roomID
	f.evtType = eventType
	f.content, _ = contentJSON.(*event.MessageEventContent)
	return &mautrix.RespSendEvent{EventID: "$evt"}, nil
}

func alertFor(limit, spent int64, level ledger.AlertLevel) ledger.BudgetAlert {
	return ledger.BudgetAlert{
		BudgetLine: ledger.NewBudgetLine("Food", &limit, spent, 1),
		Level:      level,
		Threshold:  80,
	}
}

func TestNotifyBudgetAlert_SendsNotice(t *testing.T) {
	fake := &fakeSender{}
	n := newMatrixNotifier(fake, "EUR", nil)

	err := n.NotifyBudgetAlert(context.Background(), "!room:example.org", alertFor(10000, 8500, ledger.AlertWarning))
	require.NoError(t, err)

	assert.Equal(t, id.RoomID("!room:example.org"), fake.room)
	assert.Equal(t, event.EventMessage, fake.evtType)
	require.NotNil(t, fake.content)
	assert.Equal(t, event.MsgNotice, fake.content.MsgType)
	assert.Equal(t, event.FormatHTML, fake.content.Format)
	assert.Contains(t, fake.content.FormattedBody, "<strong>Budget warning: Food</strong>")
	assert.NotContains(t, fake.content.Body, "**")
	assert.Contains(t, fake.content.Body, "Spent 85.00 EUR of 100.00 EUR (85%)")
}

func TestNotifyBudgetAlert_SendError(t *testing.T) {
	fake := &fakeSender{err: errors.New("M_FORBIDDEN")}
	n := newMatrixNotifier(fake, "USD", nil)

	err := n.NotifyBudgetAlert(context.Background(), "!room:example.org", alertFor(100, 200, ledger.AlertExceeded))
	assert.Error(t, err)
}

func TestRenderAlert(t *testing.T) {
	md := RenderAlert(alertFor(10000, 11000, ledger.AlertExceeded), "USD")
	assert.Contains(t, md, "**Budget exceeded: Food**")
	assert.Contains(t, md, "(110%)")
	assert.Contains(t, md, "Over by 10.00 USD.")

	md = RenderAlert(alertFor(10000, 9000, ledger.AlertWarning), "USD")
	assert.Contains(t, md, "Remaining: 10.00 USD. Your warning threshold is 80%.")

	md = RenderAlert(alertFor(0, 5, ledger.AlertExceeded), "USD")
	assert.NotContains(t, md, "%)", "zero limit has no percentage")
}
