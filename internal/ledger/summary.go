// ABOUTME: Pure budget and spending aggregation over a snapshot of transactions and budgets
// ABOUTME: No I/O here; every function recomputes from its inputs

package ledger

import (
	"sort"
	"time"

	"github.com/2389/ledger-gateway/internal/store"
)

// Window bounds aggregates by transaction date. Nil ends are open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// BudgetLine is the spend status of one category. Limit, Remaining and
// Percentage are nil when the category has no budget; Percentage is also nil
// for a zero limit.
type BudgetLine struct {
	Category   string
	Limit      *int64
	Spent      int64
	Remaining  *int64
	Percentage *float64
	OverBudget bool
	Count      int
}

// AlertLevel grades a budget alert.
type AlertLevel string

const (
	AlertWarning  AlertLevel = "warning"
	AlertExceeded AlertLevel = "exceeded"
)

// BudgetAlert is a budget line at or past the warning threshold.
type BudgetAlert struct {
	BudgetLine
	Level     AlertLevel
	Threshold int
}

// Total is an amount and count under one key, with its share of the grand
// total in percent.
type Total struct {
	Key    string
	Amount int64
	Count  int
	Share  float64
}

// Dashboard is the combined summary view.
type Dashboard struct {
	TotalSpent       int64
	TransactionCount int
	TotalBudgeted    int64
	Budgets          []BudgetLine
	Alerts           []BudgetAlert
	Categories       []Total
	PaymentMethods   []Total
	Recent           []*store.Transaction
}

// NewBudgetLine derives a line from a limit (nil for none) and the spend.
func NewBudgetLine(category string, limit *int64, spent int64, count int) BudgetLine {
	line := BudgetLine{Category: category, Spent: spent, Count: count}
	if limit == nil {
		return line
	}

	l := *limit
	remaining := l - spent
	line.Limit = &l
	line.Remaining = &remaining
	line.OverBudget = spent > l
	if l != 0 {
		pct := float64(spent) / float64(l) * 100
		line.Percentage = &pct
	}
	return line
}

// BudgetLines returns a line for every category that is budgeted or has
// spending, sorted by category.
func BudgetLines(txns []*store.Transaction, budgets []*store.Budget) []BudgetLine {
	type acc struct {
		spent int64
		count int
	}
	spend := make(map[string]*acc)
	for _, t := range txns {
		a, ok := spend[t.Category]
		if !ok {
			a = &acc{}
			spend[t.Category] = a
		}
		a.spent += t.Amount
		a.count++
	}

	limits := make(map[string]int64, len(budgets))
	for _, b := range budgets {
		limits[b.Category] = b.Amount
	}

	categories := make(map[string]struct{}, len(spend)+len(limits))
	for c := range spend {
		categories[c] = struct{}{}
	}
	for c := range limits {
		categories[c] = struct{}{}
	}

	lines := make([]BudgetLine, 0, len(categories))
	for c := range categories {
		var spent int64
		var count int
		if a, ok := spend[c]; ok {
			spent, count = a.spent, a.count
		}
		var limit *int64
		if l, ok := limits[c]; ok {
			limit = &l
		}
		lines = append(lines, NewBudgetLine(c, limit, spent, count))
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].Category < lines[j].Category })
	return lines
}

// BudgetStatus returns the line for a single category.
func BudgetStatus(category string, txns []*store.Transaction, budgets []*store.Budget) BudgetLine {
	var spent int64
	var count int
	for _, t := range txns {
		if t.Category == category {
			spent += t.Amount
			count++
		}
	}
	var limit *int64
	for _, b := range budgets {
		if b.Category == category {
			l := b.Amount
			limit = &l
			break
		}
	}
	return NewBudgetLine(category, limit, spent, count)
}

// Level returns the alert level of line against threshold, or "" when the
// line does not alert. Lines without a budget never alert.
func Level(line BudgetLine, threshold int) AlertLevel {
	if line.Limit == nil {
		return ""
	}
	if line.OverBudget {
		return AlertExceeded
	}
	if line.Percentage != nil && *line.Percentage >= float64(threshold) {
		return AlertWarning
	}
	return ""
}

// Alerts filters lines down to those at or past threshold.
func Alerts(lines []BudgetLine, threshold int) []BudgetAlert {
	alerts := []BudgetAlert{}
	for _, line := range lines {
		if lvl := Level(line, threshold); lvl != "" {
			alerts = append(alerts, BudgetAlert{BudgetLine: line, Level: lvl, Threshold: threshold})
		}
	}
	return alerts
}

// levelRank orders alert levels for crossing detection.
func levelRank(l AlertLevel) int {
	switch l {
	case AlertWarning:
		return 1
	case AlertExceeded:
		return 2
	default:
		return 0
	}
}

// Crossed reports whether moving from before to after raised the alert level
// for threshold, and the new level if so.
func Crossed(before, after BudgetLine, threshold int) (AlertLevel, bool) {
	now := Level(after, threshold)
	if levelRank(now) > levelRank(Level(before, threshold)) {
		return now, true
	}
	return "", false
}

// TotalsBy groups txns by key, largest amount first.
func TotalsBy(txns []*store.Transaction, key func(*store.Transaction) string) []Total {
	index := make(map[string]int)
	totals := []Total{}
	var grand int64
	for _, t := range txns {
		k := key(t)
		i, ok := index[k]
		if !ok {
			i = len(totals)
			index[k] = i
			totals = append(totals, Total{Key: k})
		}
		totals[i].Amount += t.Amount
		totals[i].Count++
		grand += t.Amount
	}

	if grand != 0 {
		for i := range totals {
			totals[i].Share = float64(totals[i].Amount) / float64(grand) * 100
		}
	}

	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Amount != totals[j].Amount {
			return totals[i].Amount > totals[j].Amount
		}
		return totals[i].Key < totals[j].Key
	})
	return totals
}

func byCategory(t *store.Transaction) string      { return t.Category }
func byPaymentMethod(t *store.Transaction) string { return t.PaymentMethod }

// SumAmounts returns the total amount of txns.
func SumAmounts(txns []*store.Transaction) int64 {
	var sum int64
	for _, t := range txns {
		sum += t.Amount
	}
	return sum
}

// SumBudgets returns the total of every limit.
func SumBudgets(budgets []*store.Budget) int64 {
	var sum int64
	for _, b := range budgets {
		sum += b.Amount
	}
	return sum
}
