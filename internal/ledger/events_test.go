// ABOUTME: Tests for post-commit event publication and threshold-crossing budget pushes
// ABOUTME: Uses the suite's recording publisher and notifier

package ledger

import (
	"errors"
)

func (s *LedgerSuite) TestEvents_OnlyAfterSuccessfulCommit() {
	ctx := s.admin()
	s.add(ctx, "Food", 100)

	_, err := s.svc.AddTransaction(ctx, TransactionInput{Category: "Food"})
	s.Require().NoError(err)

	_, err = s.svc.DeleteBudget(ctx, "Food")
	s.Require().NoError(err)

	s.Equal([]EventType{EventTransactionAdded}, s.publisher.types())
}

func (s *LedgerSuite) TestEvents_CarryActorAndIDs() {
	editor := s.register("ed-1", "editor")
	s.publisher.events = nil

	id := s.add(editor, "Food", 42)
	out, err := s.svc.DeleteTransaction(editor, id)
	s.Require().NoError(err)
	s.Require().Equal(Success, out)

	s.Require().Len(s.publisher.events, 2)
	added := s.publisher.events[0]
	s.Equal("ed-1", added.Actor)
	s.Equal(id, added.TransactionID)
	s.Require().NotNil(added.Amount)
	s.Equal(int64(42), *added.Amount)
	s.Equal(EventTransactionDeleted, s.publisher.events[1].Type)
}

func (s *LedgerSuite) TestEvents_PublisherFailureDoesNotChangeOutcome() {
	s.publisher.err = errors.New("broker down")

	res, err := s.svc.AddTransaction(s.admin(), TransactionInput{Date: s.clock.Now(), Category: "Food", PaymentMethod: "Card", Amount: 1})
	s.Require().NoError(err)
	s.Equal(Success, res.Outcome)

	txn, err := s.svc.GetTransaction(s.admin(), res.ID)
	s.Require().NoError(err)
	s.NotNil(txn)
}

func (s *LedgerSuite) TestEvents_Registration() {
	s.register("p-1", "alice")
	s.Equal([]EventType{EventInviteIssued, EventUserRegistered}, s.publisher.types())
}

func (s *LedgerSuite) subscribe(room string, threshold int) {
	out, err := s.svc.SetNotificationSettings(s.admin(), NotificationInput{
		BudgetAlerts:           true,
		BudgetWarningThreshold: threshold,
		MatrixRoom:             room,
	})
	s.Require().NoError(err)
	s.Require().Equal(Success, out)
}

func (s *LedgerSuite) TestBudgetPush_FiresOncePerCrossing() {
	s.subscribe("!room:example.org", 80)
	ctx := s.admin()
	_, err := s.svc.SetBudget(ctx, "Food", 1000)
	s.Require().NoError(err)

	s.add(ctx, "Food", 500)
	s.Empty(s.notifier.sent)

	s.add(ctx, "Food", 350)
	s.Require().Len(s.notifier.sent, 1)
	s.Equal("!room:example.org", s.notifier.sent[0].room)
	s.Equal(AlertWarning, s.notifier.sent[0].alert.Level)

	// Still in the warning band: no repeat.
	s.add(ctx, "Food", 50)
	s.Len(s.notifier.sent, 1)

	s.add(ctx, "Food", 200)
	s.Require().Len(s.notifier.sent, 2)
	s.Equal(AlertExceeded, s.notifier.sent[1].alert.Level)
	s.Equal(int64(1100), s.notifier.sent[1].alert.Spent)
}

func (s *LedgerSuite) TestBudgetPush_LoweringLimitCanCross() {
	s.subscribe("!room:example.org", 80)
	ctx := s.admin()
	_, err := s.svc.SetBudget(ctx, "Food", 10000)
	s.Require().NoError(err)
	s.add(ctx, "Food", 900)
	s.Empty(s.notifier.sent)

	_, err = s.svc.SetBudget(ctx, "Food", 800)
	s.Require().NoError(err)
	s.Require().Len(s.notifier.sent, 1)
	s.Equal(AlertExceeded, s.notifier.sent[0].alert.Level)
}

func (s *LedgerSuite) TestBudgetPush_NeedsRoomAndToggle() {
	out, err := s.svc.SetNotificationSettings(s.admin(), NotificationInput{
		BudgetAlerts:           false,
		BudgetWarningThreshold: 80,
		MatrixRoom:             "!room:example.org",
	})
	s.Require().NoError(err)
	s.Require().Equal(Success, out)

	ctx := s.admin()
	_, err = s.svc.SetBudget(ctx, "Food", 100)
	s.Require().NoError(err)
	s.add(ctx, "Food", 500)
	s.Empty(s.notifier.sent)

	// The pull-based alert feed is unaffected by the toggle.
	alerts, err := s.svc.GetBudgetAlerts(ctx, Window{})
	s.Require().NoError(err)
	s.Len(alerts, 1)
}

func (s *LedgerSuite) TestBudgetPush_NotifierFailureIsLogged() {
	s.subscribe("!room:example.org", 50)
	s.notifier.err = errors.New("homeserver unreachable")

	ctx := s.admin()
	_, err := s.svc.SetBudget(ctx, "Food", 100)
	s.Require().NoError(err)

	res, err := s.svc.AddTransaction(ctx, TransactionInput{Date: s.clock.Now(), Category: "Food", PaymentMethod: "Card", Amount: 90})
	s.Require().NoError(err)
	s.Equal(Success, res.Outcome)
	s.Len(s.notifier.sent, 1)
}
