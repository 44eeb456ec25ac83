// ABOUTME: Entry point for the ledger-gateway server
// ABOUTME: Dispatches serve, init, bootstrap, token and health subcommands

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/ledger-gateway/internal/config"
	"github.com/2389/ledger-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  _          _                                 _
 | | ___  __| | __ _  ___ _ __       __ _  __ _| |_ _____      ____ _ _   _
 | |/ _ \/ _' |/ _' |/ _ \ '__|____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
 | |  __/ (_| | (_| |  __/ | |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
 |_|\___|\__,_|\__, |\___|_|        \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
               |___/                |___/                             |___/
`

// getDataPath returns the path to the ledger data directory.
// Priority: XDG_DATA_HOME/ledger > ~/.local/share/ledger
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "ledger")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ledger-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                       Start the gateway server")
		fmt.Println("  init                        Create a new config file interactively")
		fmt.Println("  bootstrap --name USERNAME   Register the first admin and issue its token")
		fmt.Println("  token --principal ID        Issue a bearer token for a principal")
		fmt.Println("  health                      Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx, os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "health":
		err = runHealth(ctx)
	case "version", "--version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := config.DefaultPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	if cfg.Server.GRPCAddr != "" {
		green.Print("    ▶ ")
		fmt.Printf("Health:    %s (grpc)\n", cfg.Server.GRPCAddr)
	}
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s\n", cfg.Database.Path)

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Funnel {
			yellow.Print(" [funnel]")
		}
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	var channels []string
	if cfg.Events.Enabled {
		channels = append(channels, "rabbitmq")
	}
	if cfg.Notify.Matrix.Enabled {
		channels = append(channels, "matrix")
	}
	if len(channels) > 0 {
		green.Print("    ▶ ")
		fmt.Printf("Outbound:  %s\n", strings.Join(channels, ", "))
	}
	fmt.Println()

	logger.Info("starting ledger-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"grpc_addr", cfg.Server.GRPCAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}
