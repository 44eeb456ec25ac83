// ABOUTME: ledger-admin budget commands
// ABOUTME: List, set and delete budgets, and show spend against them

package cmd

import (
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/ledger-gateway/internal/gateway"
	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/money"
)

var (
	flagWindowStart string
	flagWindowEnd   string
)

var budgetsCmd = &cobra.Command{
	Use:   "budgets",
	Short: "Show budgets with spend for a window",
	RunE:  runBudgetSummary,
}

var budgetSetCmd = &cobra.Command{
	Use:   "set <category> <amount>",
	Short: "Set the budget for a category",
	Args:  cobra.ExactArgs(2),
	RunE:  runSetBudget,
}

var budgetDeleteCmd = &cobra.Command{
	Use:   "delete <category>",
	Short: "Remove the budget for a category",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteBudget,
}

var budgetAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show categories past their warning threshold",
	RunE:  runBudgetAlerts,
}

// windowFlags registers --start and --end on c.
func windowFlags(c *cobra.Command) {
	c.Flags().StringVar(&flagWindowStart, "start", "", "Window start (YYYY-MM-DD)")
	c.Flags().StringVar(&flagWindowEnd, "end", "", "Window end (YYYY-MM-DD)")
}

func windowQuery() url.Values {
	q := url.Values{}
	if flagWindowStart != "" {
		q.Set("start", flagWindowStart)
	}
	if flagWindowEnd != "" {
		q.Set("end", flagWindowEnd)
	}
	return q
}

func init() {
	windowFlags(budgetsCmd)
	windowFlags(budgetAlertsCmd)
	budgetsCmd.AddCommand(budgetSetCmd, budgetDeleteCmd, budgetAlertsCmd)
	rootCmd.AddCommand(budgetsCmd)
}

func formatLimit(limit *int64, currency string) string {
	if limit == nil {
		return "-"
	}
	return money.Format(*limit, currency)
}

func runBudgetSummary(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := newClientFromFlags()

	var lines []gateway.BudgetLineResponse
	if err := c.get(ctx, "/api/budgets/summary", windowQuery(), &lines); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(lines)
	}
	if len(lines) == 0 {
		fmt.Println("  No categories.")
		return nil
	}

	currency, err := c.currency(ctx)
	if err != nil {
		return err
	}

	red := color.New(color.FgRed)
	w := newTable(os.Stdout)
	fmt.Fprintln(w, "  CATEGORY\tBUDGET\tSPENT\tREMAINING\tUSED\tCOUNT")
	fmt.Fprintln(w, "  --------\t------\t-----\t---------\t----\t-----")
	for _, l := range lines {
		used := "-"
		if l.Percentage != nil {
			used = fmt.Sprintf("%.0f%%", *l.Percentage)
			if l.OverBudget {
				used = red.Sprint(used)
			}
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%d\n",
			l.Category,
			formatLimit(l.Limit, currency),
			money.Format(l.Spent, currency),
			formatLimit(l.Remaining, currency),
			used,
			l.Count)
	}
	return w.Flush()
}

func runSetBudget(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := newClientFromFlags()
	currency, err := c.currency(ctx)
	if err != nil {
		return err
	}
	minor, err := money.Parse(args[1], currency)
	if err != nil {
		return fmt.Errorf("parsing amount: %w", err)
	}

	var resp gateway.OutcomeResponse
	path := "/api/budgets/" + url.PathEscape(args[0])
	if err := c.send(ctx, http.MethodPut, path, gateway.BudgetRequest{Amount: minor}, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, fmt.Sprintf("Budget for %s set to %s", args[0], money.Format(minor, currency)))
}

func runDeleteBudget(cmd *cobra.Command, args []string) error {
	c := newClientFromFlags()
	var resp gateway.OutcomeResponse
	path := "/api/budgets/" + url.PathEscape(args[0])
	if err := c.send(cmd.Context(), http.MethodDelete, path, nil, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, "Removed budget for "+args[0])
}

func runBudgetAlerts(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := newClientFromFlags()

	var alerts []gateway.BudgetAlertResponse
	if err := c.get(ctx, "/api/budgets/alerts", windowQuery(), &alerts); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(alerts)
	}
	if len(alerts) == 0 {
		color.Green("  ✓ All categories within budget")
		return nil
	}

	currency, err := c.currency(ctx)
	if err != nil {
		return err
	}
	for _, a := range alerts {
		pct := 0.0
		if a.Percentage != nil {
			pct = *a.Percentage
		}
		msg := fmt.Sprintf("  %s: %s of %s (%.0f%%)",
			a.Category, money.Format(a.Spent, currency), formatLimit(a.Limit, currency), pct)
		if a.Level == ledger.AlertExceeded {
			color.Red(msg)
		} else {
			color.Yellow(msg)
		}
	}
	return nil
}
