// ABOUTME: Test suite scaffolding for the ledger service: fresh store, fake clock, recording ports
// ABOUTME: Every suite test starts with one bootstrapped admin

package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/store"
)

const adminPrincipal = "admin-1"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type sentAlert struct {
	room  string
	alert BudgetAlert
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentAlert
	err  error
}

func (n *recordingNotifier) NotifyBudgetAlert(_ context.Context, room string, alert BudgetAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentAlert{room: room, alert: alert})
	return n.err
}

// LedgerSuite runs each test against an isolated SQLite store.
type LedgerSuite struct {
	suite.Suite
	store     *store.SQLiteStore
	clock     *fakeClock
	publisher *recordingPublisher
	notifier  *recordingNotifier
	svc       *Service
	policy    Policy
}

// SetupTest runs before each test
func (s *LedgerSuite) SetupTest() {
	st, err := store.NewSQLiteStore(filepath.Join(s.T().TempDir(), "ledger.db"))
	require.NoError(s.T(), err)
	s.store = st

	s.clock = &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s.publisher = &recordingPublisher{}
	s.notifier = &recordingNotifier{}
	s.policy = DefaultPolicy()
	s.rebuild()

	out, err := s.svc.BootstrapAdmin(context.Background(), adminPrincipal, "root")
	require.NoError(s.T(), err)
	require.Equal(s.T(), Success, out)
	s.publisher.events = nil
}

// TearDownTest runs after each test
func (s *LedgerSuite) TearDownTest() {
	if s.store != nil {
		s.store.Close()
	}
}

// rebuild recreates the service over the same store, picking up s.policy.
func (s *LedgerSuite) rebuild() {
	s.svc = New(s.store, Options{
		Policy:    s.policy,
		Now:       s.clock.Now,
		Publisher: s.publisher,
		Notifier:  s.notifier,
	})
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerSuite))
}

// as returns a context authenticated as principal.
func as(principal string) context.Context {
	return auth.WithPrincipal(context.Background(), principal)
}

func (s *LedgerSuite) admin() context.Context { return as(adminPrincipal) }

// invite issues a fresh invite token as the admin.
func (s *LedgerSuite) invite() string {
	res, err := s.svc.GenerateInviteLink(s.admin())
	s.Require().NoError(err)
	s.Require().Equal(Success, res.Outcome)
	s.Require().NotEmpty(res.Token)
	return res.Token
}

// register onboards principal as an editor through an invite.
func (s *LedgerSuite) register(principal, username string) context.Context {
	out, err := s.svc.AcceptInvite(as(principal), s.invite(), username)
	s.Require().NoError(err)
	s.Require().Equal(Success, out)
	return as(principal)
}

// add records a transaction and returns its id.
func (s *LedgerSuite) add(ctx context.Context, category string, amount int64) int64 {
	res, err := s.svc.AddTransaction(ctx, TransactionInput{
		Date:          s.clock.Now(),
		Amount:        amount,
		Category:      category,
		PaymentMethod: "Card",
	})
	s.Require().NoError(err)
	s.Require().Equal(Success, res.Outcome)
	return res.ID
}

func (s *LedgerSuite) TestNew_FillsPolicyDefaults() {
	svc := New(s.store, Options{})
	p := svc.Policy()
	s.Equal(72*time.Hour, p.InviteTTL)
	s.Equal(store.RoleAdmin, p.BudgetManagers)
	s.Equal(store.RoleAdmin, p.RegistryManagers)
	s.Equal(80, p.DefaultWarningThreshold)
	s.Equal(5, p.RecentTransactions)
}

func (s *LedgerSuite) TestRejections_AreFatalNotOutcomes() {
	_, err := s.svc.AddTransaction(context.Background(), TransactionInput{Category: "a", PaymentMethod: "b"})
	s.ErrorIs(err, ErrUnauthenticated)
	s.True(IsRejection(err))

	_, err = s.svc.AddTransaction(as("stranger"), TransactionInput{Category: "a", PaymentMethod: "b"})
	s.ErrorIs(err, ErrNotRegistered)

	s.False(IsRejection(errors.New("disk full")))
}
