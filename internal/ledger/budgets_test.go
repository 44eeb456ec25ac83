// ABOUTME: Tests for budget mutations, aggregate views, the registry, and profiles
// ABOUTME: Exercises the service end to end against a real SQLite store

package ledger

import (
	"context"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

func (s *LedgerSuite) TestBudgetSummary_OverBudgetScenario() {
	ctx := s.admin()

	out, err := s.svc.SetBudget(ctx, "Food", 10000)
	s.Require().NoError(err)
	s.Require().Equal(Success, out)

	s.add(ctx, "Food", 3000)
	s.add(ctx, "Food", 2500)
	s.add(ctx, "Food", 3500)

	lines, err := s.svc.GetBudgetSummary(ctx, Window{})
	s.Require().NoError(err)
	s.Require().Len(lines, 1)
	food := lines[0]
	s.Equal(int64(9000), food.Spent)
	s.Require().NotNil(food.Remaining)
	s.Equal(int64(1000), *food.Remaining)
	s.Require().NotNil(food.Percentage)
	s.InDelta(90.0, *food.Percentage, 1e-9)
	s.False(food.OverBudget)

	s.add(ctx, "Food", 2000)

	food, err = s.svc.CheckBudgetStatus(ctx, "Food", Window{})
	s.Require().NoError(err)
	s.Equal(int64(11000), food.Spent)
	s.Equal(int64(-1000), *food.Remaining)
	s.True(food.OverBudget)
	s.Equal(4, food.Count)
}

func (s *LedgerSuite) TestSetBudget_Validation() {
	ctx := s.admin()

	out, err := s.svc.SetBudget(ctx, "", 100)
	s.Require().NoError(err)
	s.Equal(CategoryEmpty, out)

	out, err = s.svc.SetBudget(ctx, "Food", -1)
	s.Require().NoError(err)
	s.Equal(InvalidAmount, out)

	budgets, err := s.svc.GetBudgets(ctx)
	s.Require().NoError(err)
	s.Empty(budgets)
}

func (s *LedgerSuite) TestSetBudget_UpsertsOnePerCategory() {
	ctx := s.admin()
	for _, amt := range []int64{100, 200} {
		out, err := s.svc.SetBudget(ctx, "Food", amt)
		s.Require().NoError(err)
		s.Require().Equal(Success, out)
	}

	budgets, err := s.svc.GetBudgets(ctx)
	s.Require().NoError(err)
	s.Require().Len(budgets, 1)
	s.Equal(int64(200), budgets[0].Amount)
}

func (s *LedgerSuite) TestDeleteBudget() {
	ctx := s.admin()

	out, err := s.svc.DeleteBudget(ctx, "Food")
	s.Require().NoError(err)
	s.Equal(InvalidCategory, out)

	_, err = s.svc.SetBudget(ctx, "Food", 100)
	s.Require().NoError(err)

	out, err = s.svc.DeleteBudget(ctx, "Food")
	s.Require().NoError(err)
	s.Equal(Success, out)
}

func (s *LedgerSuite) TestBudgetManagers_Policy() {
	editor := s.register("ed-1", "editor")

	_, err := s.svc.SetBudget(editor, "Food", 100)
	s.ErrorIs(err, ErrUnauthorized)
	_, err = s.svc.DeleteBudget(editor, "Food")
	s.ErrorIs(err, ErrUnauthorized)

	s.policy.BudgetManagers = store.RoleEditor
	s.rebuild()

	out, err := s.svc.SetBudget(editor, "Food", 100)
	s.Require().NoError(err)
	s.Equal(Success, out)
}

func (s *LedgerSuite) TestBudgetAlerts_UseCallerThreshold() {
	ctx := s.admin()
	_, err := s.svc.SetBudget(ctx, "Food", 1000)
	s.Require().NoError(err)
	_, err = s.svc.SetBudget(ctx, "Travel", 1000)
	s.Require().NoError(err)
	s.add(ctx, "Food", 850)
	s.add(ctx, "Travel", 1200)

	alerts, err := s.svc.GetBudgetAlerts(ctx, Window{})
	s.Require().NoError(err)
	s.Require().Len(alerts, 2)
	s.Equal("Food", alerts[0].Category)
	s.Equal(AlertWarning, alerts[0].Level)
	s.Equal(80, alerts[0].Threshold)
	s.Equal(AlertExceeded, alerts[1].Level)

	out, err := s.svc.SetNotificationSettings(ctx, NotificationInput{BudgetWarningThreshold: 90})
	s.Require().NoError(err)
	s.Require().Equal(Success, out)

	alerts, err = s.svc.GetBudgetAlerts(ctx, Window{})
	s.Require().NoError(err)
	s.Require().Len(alerts, 1)
	s.Equal("Travel", alerts[0].Category)
}

func (s *LedgerSuite) TestAggregates_Window() {
	ctx := s.admin()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }
	for _, in := range []TransactionInput{
		{Date: day(1), Amount: 100, Category: "Food", PaymentMethod: "Card"},
		{Date: day(10), Amount: 300, Category: "Food", PaymentMethod: "Cash"},
		{Date: day(20), Amount: 600, Category: "Travel", PaymentMethod: "Card"},
	} {
		res, err := s.svc.AddTransaction(ctx, in)
		s.Require().NoError(err)
		s.Require().Equal(Success, res.Outcome)
	}

	start, end := day(10), day(20)
	w := Window{Start: &start, End: &end}

	cats, err := s.svc.GetCategorySummary(ctx, w)
	s.Require().NoError(err)
	s.Require().Len(cats, 2)
	s.Equal("Travel", cats[0].Key)
	s.Equal(int64(600), cats[0].Amount)
	s.InDelta(66.666, cats[0].Share, 0.01)

	methods, err := s.svc.GetPaymentMethodSummary(ctx, Window{})
	s.Require().NoError(err)
	s.Require().Len(methods, 2)
	s.Equal("Card", methods[0].Key)
	s.Equal(int64(700), methods[0].Amount)
	s.Equal(2, methods[0].Count)
}

func (s *LedgerSuite) TestDashboard() {
	alice := s.register("alice", "alice")
	ctx := s.admin()
	_, err := s.svc.SetBudget(ctx, "Food", 1000)
	s.Require().NoError(err)

	first := s.clock.Now().Add(time.Minute)
	for i := 0; i < 6; i++ {
		s.clock.Advance(time.Minute)
		s.add(ctx, "Food", 100)
	}
	s.add(alice, "Food", 300)

	d, err := s.svc.GetDashboardSummary(ctx, Window{})
	s.Require().NoError(err)
	s.Equal(int64(900), d.TotalSpent)
	s.Equal(7, d.TransactionCount)
	s.Equal(int64(1000), d.TotalBudgeted)
	s.Require().Len(d.Budgets, 1)
	s.Require().Len(d.Alerts, 1)
	s.Equal(AlertWarning, d.Alerts[0].Level)
	s.Require().Len(d.Recent, 5)
	s.Equal(int64(300), d.Recent[0].Amount, "newest first")
	for i := 1; i < len(d.Recent); i++ {
		s.Greater(d.Recent[i-1].ID, d.Recent[i].ID)
	}

	d, err = s.svc.GetDashboardSummary(ctx, Window{End: &first})
	s.Require().NoError(err)
	s.Equal(1, d.TransactionCount)
	s.Len(d.Recent, 1)

	// Budgets are shared, but editors only see their own recent entries.
	d, err = s.svc.GetDashboardSummary(alice, Window{})
	s.Require().NoError(err)
	s.Equal(int64(900), d.Budgets[0].Spent)
	s.Len(d.Recent, 1)
}

func (s *LedgerSuite) TestAggregates_RequireRegisteredCaller() {
	_, err := s.svc.GetBudgetSummary(as("stranger"), Window{})
	s.ErrorIs(err, ErrNotRegistered)
	_, err = s.svc.GetDashboardSummary(context.Background(), Window{})
	s.ErrorIs(err, ErrUnauthenticated)
}

func (s *LedgerSuite) TestManageCategory() {
	ctx := s.admin()

	out, err := s.svc.ManageCategory(ctx, "Food", CategoryAdd)
	s.Require().NoError(err)
	s.Equal(Success, out)

	out, err = s.svc.ManageCategory(ctx, "Food", CategoryAdd)
	s.Require().NoError(err)
	s.Equal(CategoryExists, out)

	out, err = s.svc.ManageCategory(ctx, "", CategoryAdd)
	s.Require().NoError(err)
	s.Equal(InvalidCategory, out)

	out, err = s.svc.ManageCategory(ctx, "", CategoryDelete)
	s.Require().NoError(err)
	s.Equal(InvalidCategory, out)

	out, err = s.svc.ManageCategory(ctx, "Missing", CategoryDelete)
	s.Require().NoError(err)
	s.Equal(Success, out)

	out, err = s.svc.ManageCategory(ctx, "Food", CategoryDelete)
	s.Require().NoError(err)
	s.Equal(Success, out)

	cats, err := s.svc.GetCategories(context.Background())
	s.Require().NoError(err)
	s.Empty(cats)

	_, err = s.svc.ManageCategory(ctx, "Food", CategoryAction(0))
	s.Error(err)
}

func (s *LedgerSuite) TestPaymentMethods() {
	ctx := s.admin()

	out, err := s.svc.AddPaymentMethod(ctx, "Cash")
	s.Require().NoError(err)
	s.Equal(Success, out)

	out, err = s.svc.AddPaymentMethod(ctx, "Cash")
	s.Require().NoError(err)
	s.Equal(MethodExists, out)

	out, err = s.svc.AddPaymentMethod(ctx, "")
	s.Require().NoError(err)
	s.Equal(InvalidMethod, out)

	out, err = s.svc.DeletePaymentMethod(ctx, "")
	s.Require().NoError(err)
	s.Equal(InvalidMethod, out)

	out, err = s.svc.DeletePaymentMethod(ctx, "Cash")
	s.Require().NoError(err)
	s.Equal(Success, out)

	editor := s.register("ed-1", "editor")
	_, err = s.svc.AddPaymentMethod(editor, "Card")
	s.ErrorIs(err, ErrUnauthorized)
}

func (s *LedgerSuite) TestSeedRegistry() {
	s.Require().NoError(s.svc.SeedRegistry(context.Background(), []string{"Food", "", "Bills"}, []string{"Card"}))
	s.Require().NoError(s.svc.SeedRegistry(context.Background(), []string{"Food"}, []string{"Card", "Cash"}))

	cats, err := s.svc.GetCategories(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{"Bills", "Food"}, cats)

	methods, err := s.svc.GetPaymentMethods(context.Background())
	s.Require().NoError(err)
	s.Equal([]string{"Card", "Cash"}, methods)
}

func (s *LedgerSuite) TestProfiles() {
	editor := s.register("ed-1", "editor")

	p, err := s.svc.GetUserProfile(editor)
	s.Require().NoError(err)
	s.Equal("system", p.Theme)
	s.Equal("USD", p.Currency)

	out, err := s.svc.SetUserProfile(editor, ProfileInput{Theme: "dark", Currency: "EUR"})
	s.Require().NoError(err)
	s.Equal(Success, out)

	p, err = s.svc.GetUserProfile(editor)
	s.Require().NoError(err)
	s.Equal("dark", p.Theme)

	ns, err := s.svc.GetNotificationSettings(editor)
	s.Require().NoError(err)
	s.True(ns.BudgetAlerts)
	s.Equal(80, ns.BudgetWarningThreshold)

	out, err = s.svc.SetUserProfile(as("stranger"), ProfileInput{Theme: "dark"})
	s.Require().NoError(err)
	s.Equal(InvalidUser, out)

	_, err = s.svc.RevokeAccess(s.admin(), "ed-1")
	s.Require().NoError(err)
	out, err = s.svc.SetNotificationSettings(editor, NotificationInput{})
	s.Require().NoError(err)
	s.Equal(InvalidUser, out)
}
