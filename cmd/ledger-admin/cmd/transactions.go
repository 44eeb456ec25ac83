// ABOUTME: ledger-admin transaction commands
// ABOUTME: List with filters, add, edit and delete transactions

package cmd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/2389/ledger-gateway/internal/gateway"
	"github.com/2389/ledger-gateway/internal/money"
)

var (
	flagTxnMine     bool
	flagTxnStart    string
	flagTxnEnd      string
	flagTxnCategory string
	flagTxnMethod   string
	flagTxnMin      string
	flagTxnMax      string

	flagTxnDate  string
	flagTxnNotes string
)

var transactionsCmd = &cobra.Command{
	Use:     "transactions",
	Aliases: []string{"tx", "txn"},
	Short:   "List transactions",
	RunE:    runListTransactions,
}

var txnAddCmd = &cobra.Command{
	Use:   "add <amount> <category> <payment-method>",
	Short: "Record a transaction",
	Args:  cobra.ExactArgs(3),
	RunE:  runAddTransaction,
}

var txnEditCmd = &cobra.Command{
	Use:   "edit <id> <amount> <category> <payment-method>",
	Short: "Replace the fields of a transaction",
	Args:  cobra.ExactArgs(4),
	RunE:  runEditTransaction,
}

var txnDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a transaction",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteTransaction,
}

func init() {
	f := transactionsCmd.Flags()
	f.BoolVar(&flagTxnMine, "mine", false, "Only your own transactions")
	f.StringVar(&flagTxnStart, "start", "", "Window start (YYYY-MM-DD)")
	f.StringVar(&flagTxnEnd, "end", "", "Window end (YYYY-MM-DD)")
	f.StringVar(&flagTxnCategory, "category", "", "Filter by category")
	f.StringVar(&flagTxnMethod, "method", "", "Filter by payment method")
	f.StringVar(&flagTxnMin, "min", "", "Minimum amount, e.g. 12.50")
	f.StringVar(&flagTxnMax, "max", "", "Maximum amount, e.g. 100")

	for _, c := range []*cobra.Command{txnAddCmd, txnEditCmd} {
		c.Flags().StringVar(&flagTxnDate, "date", "", "Transaction date (YYYY-MM-DD, default today)")
		c.Flags().StringVar(&flagTxnNotes, "notes", "", "Free-form notes")
	}

	transactionsCmd.AddCommand(txnAddCmd, txnEditCmd, txnDeleteCmd)
	rootCmd.AddCommand(transactionsCmd)
}

func runListTransactions(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	c := newClientFromFlags()

	q := url.Values{}
	for key, val := range map[string]string{
		"start":          flagTxnStart,
		"end":            flagTxnEnd,
		"category":       flagTxnCategory,
		"payment_method": flagTxnMethod,
	} {
		if val != "" {
			q.Set(key, val)
		}
	}

	if flagTxnMin != "" || flagTxnMax != "" {
		currency, err := c.currency(ctx)
		if err != nil {
			return err
		}
		for key, val := range map[string]string{"min_amount": flagTxnMin, "max_amount": flagTxnMax} {
			if val == "" {
				continue
			}
			minor, err := money.Parse(val, currency)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", key, err)
			}
			q.Set(key, strconv.FormatInt(minor, 10))
		}
	}

	path := "/api/transactions"
	if flagTxnMine {
		path = "/api/transactions/mine"
	}

	var txns []gateway.TransactionResponse
	if err := c.get(ctx, path, q, &txns); err != nil {
		return err
	}
	if flagJSON {
		return printJSON(txns)
	}
	if len(txns) == 0 {
		fmt.Println("  No transactions.")
		return nil
	}

	w := newTable(os.Stdout)
	fmt.Fprintln(w, "  ID\tDATE\tAMOUNT\tCATEGORY\tMETHOD\tOWNER\tNOTES")
	fmt.Fprintln(w, "  --\t----\t------\t--------\t------\t-----\t-----")
	for _, t := range txns {
		notes := ""
		if t.Notes != nil {
			notes = truncate(*t.Notes, 30)
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, formatDate(t.Date), t.Display, t.Category, t.PaymentMethod, truncate(t.Owner, 12), notes)
	}
	return w.Flush()
}

func transactionFromArgs(ctx context.Context, cmd *cobra.Command, c *client, amount, category, method string) (gateway.TransactionRequest, error) {
	currency, err := c.currency(ctx)
	if err != nil {
		return gateway.TransactionRequest{}, err
	}
	minor, err := money.Parse(amount, currency)
	if err != nil {
		return gateway.TransactionRequest{}, fmt.Errorf("parsing amount: %w", err)
	}

	date := time.Now()
	if flagTxnDate != "" {
		if date, err = parseDate(flagTxnDate); err != nil {
			return gateway.TransactionRequest{}, err
		}
	}

	req := gateway.TransactionRequest{
		Date:          gateway.At(date),
		Amount:        minor,
		Category:      category,
		PaymentMethod: method,
	}
	if cmd.Flags().Changed("notes") {
		notes := flagTxnNotes
		req.Notes = &notes
	}
	return req, nil
}

func runAddTransaction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	c := newClientFromFlags()
	req, err := transactionFromArgs(ctx, cmd, c, args[0], args[1], args[2])
	if err != nil {
		return err
	}

	var resp gateway.AddTransactionResponse
	if err := c.send(ctx, http.MethodPost, "/api/transactions", req, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, fmt.Sprintf("Recorded transaction %d", resp.ID))
}

func runEditTransaction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	c := newClientFromFlags()
	req, err := transactionFromArgs(ctx, cmd, c, args[1], args[2], args[3])
	if err != nil {
		return err
	}

	var resp gateway.OutcomeResponse
	if err := c.send(ctx, http.MethodPut, fmt.Sprintf("/api/transactions/%d", id), req, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, fmt.Sprintf("Updated transaction %d", id))
}

func runDeleteTransaction(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}
	c := newClientFromFlags()
	var resp gateway.OutcomeResponse
	if err := c.send(cmd.Context(), http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), nil, &resp); err != nil {
		return err
	}
	return reportOutcome(resp.Result, fmt.Sprintf("Deleted transaction %d", id))
}
