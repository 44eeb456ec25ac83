// ABOUTME: Tests for transaction add/update/delete, visibility, filtering, and id allocation
// ABOUTME: Includes the concurrent-arrival property over many goroutines

package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

func (s *LedgerSuite) TestAddTransaction_IDsStrictlyIncreaseAcrossDeletes() {
	ctx := s.admin()
	a := s.add(ctx, "Food", 1)
	b := s.add(ctx, "Food", 2)
	c := s.add(ctx, "Food", 3)
	s.Less(a, b)
	s.Less(b, c)

	out, err := s.svc.DeleteTransaction(ctx, c)
	s.Require().NoError(err)
	s.Require().Equal(Success, out)

	d := s.add(ctx, "Food", 4)
	s.Greater(d, c)
}

func (s *LedgerSuite) TestAddTransaction_Validation() {
	ctx := s.admin()

	res, err := s.svc.AddTransaction(ctx, TransactionInput{Category: "", PaymentMethod: ""})
	s.Require().NoError(err)
	s.Equal(CategoryEmpty, res.Outcome, "category is checked first")
	s.Zero(res.ID)

	res, err = s.svc.AddTransaction(ctx, TransactionInput{Category: "Food", PaymentMethod: ""})
	s.Require().NoError(err)
	s.Equal(PaymentMethodEmpty, res.Outcome)

	txns, err := s.svc.GetAllTransactions(ctx)
	s.Require().NoError(err)
	s.Empty(txns)
}

func (s *LedgerSuite) TestAddTransaction_RequiresDate() {
	ctx := s.admin()
	s.publisher.events = nil

	_, err := s.svc.AddTransaction(ctx, TransactionInput{Amount: 10, Category: "Food", PaymentMethod: "Card"})
	s.ErrorIs(err, ErrDateRequired)
	s.False(IsRejection(err))

	txns, err := s.svc.GetAllTransactions(ctx)
	s.Require().NoError(err)
	s.Empty(txns)
	s.Empty(s.publisher.events)

	id := s.add(ctx, "Food", 10)
	_, err = s.svc.UpdateTransaction(ctx, id, TransactionInput{Amount: 20, Category: "Food", PaymentMethod: "Card"})
	s.ErrorIs(err, ErrDateRequired)

	txn, err := s.svc.GetTransaction(ctx, id)
	s.Require().NoError(err)
	s.Require().NotNil(txn)
	s.Equal(int64(10), txn.Amount)
	s.True(txn.Date.Equal(s.clock.Now()))
}

func (s *LedgerSuite) TestAddTransaction_EpochDateRoundTrips() {
	ctx := s.admin()
	epoch := time.Unix(0, 0).UTC()

	res, err := s.svc.AddTransaction(ctx, TransactionInput{Date: epoch, Amount: 7, Category: "Food", PaymentMethod: "Card"})
	s.Require().NoError(err)
	s.Require().Equal(Success, res.Outcome)

	txn, err := s.svc.GetTransaction(ctx, res.ID)
	s.Require().NoError(err)
	s.Require().NotNil(txn)
	s.True(txn.Date.Equal(epoch), "stored date read back as %v", txn.Date)

	start := epoch
	got, err := s.svc.GetFilteredTransactions(ctx, TransactionQuery{Start: &start, End: &start})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(res.ID, got[0].ID)
}

func (s *LedgerSuite) TestAddTransaction_SetsOwnerAndTimestamps() {
	editor := s.register("ed-1", "editor")
	notes := "coffee"
	date := time.Date(2024, 5, 30, 0, 0, 0, 0, time.UTC)

	res, err := s.svc.AddTransaction(editor, TransactionInput{
		Date: date, Amount: 350, Category: "Food", PaymentMethod: "Cash", Notes: &notes,
	})
	s.Require().NoError(err)
	s.Require().Equal(Success, res.Outcome)

	txn, err := s.svc.GetTransaction(editor, res.ID)
	s.Require().NoError(err)
	s.Require().NotNil(txn)
	s.Equal("ed-1", txn.Owner)
	s.True(date.Equal(txn.Date))
	s.True(s.clock.Now().Equal(txn.CreatedAt))
	s.True(txn.CreatedAt.Equal(txn.UpdatedAt))
	s.Require().NotNil(txn.Notes)
	s.Equal("coffee", *txn.Notes)
}

func (s *LedgerSuite) TestUpdateTransaction() {
	editor := s.register("ed-1", "editor")
	id := s.add(editor, "Food", 100)
	created := s.clock.Now()

	s.clock.Advance(time.Hour)
	out, err := s.svc.UpdateTransaction(editor, id, TransactionInput{
		Date: created, Amount: 250, Category: "Travel", PaymentMethod: "Cash",
	})
	s.Require().NoError(err)
	s.Equal(Success, out)

	txn, err := s.svc.GetTransaction(s.admin(), id)
	s.Require().NoError(err)
	s.Equal(id, txn.ID)
	s.Equal("ed-1", txn.Owner)
	s.True(created.Equal(txn.CreatedAt))
	s.True(s.clock.Now().Equal(txn.UpdatedAt))
	s.Equal(int64(250), txn.Amount)
	s.Equal("Travel", txn.Category)
}

func (s *LedgerSuite) TestUpdateTransaction_InvalidTxnBeforeValidation() {
	editor := s.register("ed-1", "editor")

	for _, tc := range []struct {
		name string
		c    func() (Outcome, error)
	}{
		{"admin", func() (Outcome, error) { return s.svc.UpdateTransaction(s.admin(), 999, TransactionInput{}) }},
		{"editor", func() (Outcome, error) { return s.svc.UpdateTransaction(editor, 999, TransactionInput{}) }},
	} {
		out, err := tc.c()
		s.Require().NoError(err, tc.name)
		s.Equal(InvalidTxn, out, tc.name)
	}

	out, err := s.svc.DeleteTransaction(editor, 999)
	s.Require().NoError(err)
	s.Equal(InvalidTxn, out)
}

func (s *LedgerSuite) TestUpdateTransaction_FieldValidation() {
	id := s.add(s.admin(), "Food", 100)

	out, err := s.svc.UpdateTransaction(s.admin(), id, TransactionInput{Category: "", PaymentMethod: "Card"})
	s.Require().NoError(err)
	s.Equal(CategoryEmpty, out)

	out, err = s.svc.UpdateTransaction(s.admin(), id, TransactionInput{Category: "Food", PaymentMethod: ""})
	s.Require().NoError(err)
	s.Equal(PaymentMethodEmpty, out)

	txn, err := s.svc.GetTransaction(s.admin(), id)
	s.Require().NoError(err)
	s.Equal(int64(100), txn.Amount, "failed update must not mutate")
}

func (s *LedgerSuite) TestOwnership() {
	alice := s.register("alice", "alice")
	bob := s.register("bob", "bobby")
	id := s.add(alice, "Food", 100)

	out, err := s.svc.UpdateTransaction(bob, id, TransactionInput{Category: "Food", PaymentMethod: "Card", Amount: 1})
	s.Require().NoError(err)
	s.Equal(InvalidTxn, out)

	out, err = s.svc.DeleteTransaction(bob, id)
	s.Require().NoError(err)
	s.Equal(InvalidTxn, out)

	txn, err := s.svc.GetTransaction(bob, id)
	s.Require().NoError(err)
	s.Nil(txn)

	// Admin may touch anyone's transaction.
	out, err = s.svc.UpdateTransaction(s.admin(), id, TransactionInput{Date: s.clock.Now(), Category: "Food", PaymentMethod: "Card", Amount: 5})
	s.Require().NoError(err)
	s.Equal(Success, out)

	txn, err = s.svc.GetTransaction(alice, id)
	s.Require().NoError(err)
	s.Equal("alice", txn.Owner)
}

func (s *LedgerSuite) TestDeleteTransaction_Twice() {
	id := s.add(s.admin(), "Food", 100)

	out, err := s.svc.DeleteTransaction(s.admin(), id)
	s.Require().NoError(err)
	s.Equal(Success, out)

	out, err = s.svc.DeleteTransaction(s.admin(), id)
	s.Require().NoError(err)
	s.Equal(InvalidTxn, out)

	txn, err := s.svc.GetTransaction(s.admin(), id)
	s.Require().NoError(err)
	s.Nil(txn)
}

func (s *LedgerSuite) TestGetAllTransactions_RoleScoped() {
	alice := s.register("alice", "alice")
	s.add(alice, "Food", 1)
	s.add(s.admin(), "Food", 2)

	all, err := s.svc.GetAllTransactions(s.admin())
	s.Require().NoError(err)
	s.Len(all, 2)

	mine, err := s.svc.GetAllTransactions(alice)
	s.Require().NoError(err)
	s.Require().Len(mine, 1)
	s.Equal("alice", mine[0].Owner)

	own, err := s.svc.GetUserTransactionsByCaller(s.admin())
	s.Require().NoError(err)
	s.Require().Len(own, 1)
	s.Equal(adminPrincipal, own[0].Owner)
}

func (s *LedgerSuite) TestGetFilteredTransactions_InclusiveAmountBounds() {
	ctx := s.admin()
	for _, amt := range []int64{499, 500, 1000, 1500, 1501} {
		s.add(ctx, "Food", amt)
	}

	lo, hi := int64(500), int64(1500)
	txns, err := s.svc.GetFilteredTransactions(ctx, TransactionQuery{MinAmount: &lo, MaxAmount: &hi})
	s.Require().NoError(err)
	s.Equal([]int64{500, 1000, 1500}, amounts(txns))
}

func (s *LedgerSuite) TestGetFilteredTransactions_ExclusivePolicy() {
	s.policy.InclusiveBounds = false
	s.rebuild()

	ctx := s.admin()
	for _, amt := range []int64{500, 1000, 1500} {
		s.add(ctx, "Food", amt)
	}

	lo, hi := int64(500), int64(1500)
	txns, err := s.svc.GetFilteredTransactions(ctx, TransactionQuery{MinAmount: &lo, MaxAmount: &hi})
	s.Require().NoError(err)
	s.Equal([]int64{1000}, amounts(txns))
}

func (s *LedgerSuite) TestGetFilteredTransactions_DatesAndKeys() {
	ctx := s.admin()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	for i, in := range []TransactionInput{
		{Date: day(1), Amount: 1, Category: "Food", PaymentMethod: "Card"},
		{Date: day(2), Amount: 2, Category: "Travel", PaymentMethod: "Cash"},
		{Date: day(3), Amount: 3, Category: "Food", PaymentMethod: "Cash"},
		{Date: day(4), Amount: 4, Category: "Food", PaymentMethod: "Card"},
	} {
		res, err := s.svc.AddTransaction(ctx, in)
		s.Require().NoError(err, i)
		s.Require().Equal(Success, res.Outcome)
	}

	start, end := day(2), day(3)
	txns, err := s.svc.GetFilteredTransactions(ctx, TransactionQuery{Start: &start, End: &end})
	s.Require().NoError(err)
	s.Equal([]int64{2, 3}, amounts(txns))

	food, cash := "Food", "Cash"
	txns, err = s.svc.GetFilteredTransactions(ctx, TransactionQuery{Category: &food, PaymentMethod: &cash})
	s.Require().NoError(err)
	s.Equal([]int64{3}, amounts(txns))

	s.True(TransactionQuery{}.Empty())
	s.False(TransactionQuery{Category: &food}.Empty())
}

func (s *LedgerSuite) TestConcurrentAdds_SerializeWithoutLoss() {
	const workers = 8
	const perWorker = 10

	editors := make([]string, workers)
	for i := range editors {
		editors[i] = "ed-" + string(rune('a'+i))
		s.register(editors[i], "user-"+string(rune('a'+i)))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var ids []int64
	for _, p := range editors {
		wg.Add(1)
		go func(principal string) {
			defer wg.Done()
			ctx := as(principal)
			for j := 0; j < perWorker; j++ {
				res, err := s.svc.AddTransaction(ctx, TransactionInput{
					Date: s.clock.Now(), Amount: 10, Category: "Food", PaymentMethod: "Card",
				})
				if err != nil || res.Outcome != Success {
					s.T().Errorf("add failed: %v %v", res.Outcome, err)
					return
				}
				mu.Lock()
				ids = append(ids, res.ID)
				mu.Unlock()
			}
		}(p)
	}
	wg.Wait()

	s.Require().Len(ids, workers*perWorker)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for i := 1; i < len(ids); i++ {
		s.Equal(ids[i-1]+1, ids[i], "ids are dense and unique")
	}

	all, err := s.svc.GetAllTransactions(s.admin())
	s.Require().NoError(err)
	s.Len(all, workers*perWorker)

	line, err := s.svc.CheckBudgetStatus(s.admin(), "Food", Window{})
	s.Require().NoError(err)
	s.Equal(int64(workers*perWorker*10), line.Spent)
}

func amounts(txns []*store.Transaction) []int64 {
	out := make([]int64, 0, len(txns))
	for _, t := range txns {
		out = append(out, t.Amount)
	}
	return out
}
