// ABOUTME: Root cobra command and shared flags for ledger-admin
// ABOUTME: Resolves the gateway URL and bearer token used by every subcommand

package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	flagURL      string
	flagToken    string
	flagJSON     bool
	flagCurrency string
	flagTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ledger-admin",
	Short: "Command line client for ledger-gateway",
	Long: "Record transactions, manage budgets and administer users of a ledger-gateway.\n\n" +
		"The gateway URL comes from --url or LEDGER_URL. The bearer token comes from\n" +
		"--token, LEDGER_TOKEN, or the token file written by `ledger-gateway bootstrap`.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultURL := os.Getenv("LEDGER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	rootCmd.PersistentFlags().StringVar(&flagURL, "url", defaultURL, "Gateway base URL")
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "Bearer token (default: LEDGER_TOKEN or the bootstrap token file)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Print raw JSON responses")
	rootCmd.PersistentFlags().StringVar(&flagCurrency, "currency", "", "Currency for parsing amounts (default: your profile currency)")
	rootCmd.PersistentFlags().DurationVar(&flagTimeout, "timeout", 10*time.Second, "Request timeout")
}

// getToken resolves the bearer token.
// Priority: --token > LEDGER_TOKEN > <config dir>/ledger/token
func getToken() string {
	if flagToken != "" {
		return flagToken
	}
	if token := os.Getenv("LEDGER_TOKEN"); token != "" {
		return token
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	data, err := os.ReadFile(filepath.Join(configDir, "ledger", "token"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func newClientFromFlags() *client {
	return newClient(flagURL, getToken(), flagTimeout)
}
