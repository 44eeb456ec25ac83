// ABOUTME: Output helpers shared by ledger-admin commands
// ABOUTME: Tables via tabwriter, colored outcomes, and raw JSON passthrough

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/ledger-gateway/internal/gateway"
	"github.com/2389/ledger-gateway/internal/ledger"
)

// ErrOutcome is returned when the gateway answered with a non-success result.
type ErrOutcome struct {
	Result ledger.Outcome
}

func (e *ErrOutcome) Error() string {
	return "rejected: " + string(e.Result)
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// reportOutcome prints msg on success and returns ErrOutcome otherwise.
func reportOutcome(result ledger.Outcome, msg string) error {
	if result != ledger.Success {
		return &ErrOutcome{Result: result}
	}
	color.Green("  ✓ %s", msg)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

func formatDate(t gateway.Timestamp) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 2006")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parseDate accepts YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD", s)
	}
	return t, nil
}
