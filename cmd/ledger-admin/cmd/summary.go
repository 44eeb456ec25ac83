// ABOUTME: ledger-admin summary commands
// ABOUTME: Dashboard plus spend grouped by category and by payment method

package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/ledger-gateway/internal/gateway"
	"github.com/2389/ledger-gateway/internal/money"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show the spending dashboard",
	RunE:  runDashboard,
}

var summaryCategoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "Spend grouped by category",
	RunE:  runTotals("/api/summary/categories", "CATEGORY"),
}

var summaryMethodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "Spend grouped by payment method",
	RunE:  runTotals("/api/summary/payment-methods", "METHOD"),
}

func init() {
	windowFlags(summaryCmd)
	windowFlags(summaryCategoriesCmd)
	windowFlags(summaryMethodsCmd)
	summaryCmd.AddCommand(summaryCategoriesCmd, summaryMethodsCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := newClientFromFlags()

	var d gateway.DashboardResponse
	if err := c.get(ctx, "/api/summary/dashboard", windowQuery(), &d); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(d)
	}

	currency, err := c.currency(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Println("  Dashboard")
	cyan.Println("  ---------")
	fmt.Printf("  Spent:         %s across %d transactions\n", d.TotalDisplay, d.TransactionCount)
	fmt.Printf("  Budgeted:      %s\n", money.Format(d.TotalBudgeted, currency))

	if len(d.Alerts) > 0 {
		fmt.Println()
		color.Yellow("  Alerts")
		for _, a := range d.Alerts {
			fmt.Printf("    %s %s: %s of %s\n", a.Level, a.Category,
				money.Format(a.Spent, currency), formatLimit(a.Limit, currency))
		}
	}

	if len(d.Categories) > 0 {
		fmt.Println()
		cyan.Println("  Top categories")
		w := newTable(os.Stdout)
		for _, t := range d.Categories {
			fmt.Fprintf(w, "    %s\t%s\t%.0f%%\n", t.Key, money.Format(t.Amount, currency), t.Share)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(d.Recent) > 0 {
		fmt.Println()
		cyan.Println("  Recent")
		w := newTable(os.Stdout)
		for _, t := range d.Recent {
			fmt.Fprintf(w, "    %s\t%s\t%s\t%s\n", formatDate(t.Date), t.Display, t.Category, t.PaymentMethod)
		}
		return w.Flush()
	}
	return nil
}

func runTotals(path, keyHeader string) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		c := newClientFromFlags()

		var totals []gateway.TotalResponse
		if err := c.get(ctx, path, windowQuery(), &totals); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(totals)
		}
		if len(totals) == 0 {
			fmt.Println("  No spending in this window.")
			return nil
		}

		currency, err := c.currency(ctx)
		if err != nil {
			return err
		}

		w := newTable(os.Stdout)
		fmt.Fprintf(w, "  %s\tAMOUNT\tCOUNT\tSHARE\n", keyHeader)
		fmt.Fprintln(w, "  ---\t------\t-----\t-----")
		for _, t := range totals {
			fmt.Fprintf(w, "  %s\t%s\t%d\t%.0f%%\n", t.Key, money.Format(t.Amount, currency), t.Count, t.Share)
		}
		return w.Flush()
	}
}
