// ABOUTME: First-run setup: config with a random JWT secret, first admin, and its token
// ABOUTME: Also issues tokens for existing principals with the token subcommand

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/2389/ledger-gateway/internal/auth"
	"github.com/2389/ledger-gateway/internal/config"
	"github.com/2389/ledger-gateway/internal/gateway"
	"github.com/2389/ledger-gateway/internal/ledger"
	"github.com/2389/ledger-gateway/internal/store"
)

// parseFlag reads "--name value" or "--name=value" style flags from args.
// Only the listed flag names are accepted.
func parseFlags(args []string, names ...string) (map[string]string, error) {
	known := make(map[string]bool, len(names))
	for _, n := range names {
		known[n] = true
	}

	vals := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
		name, value, hasValue := strings.Cut(strings.TrimPrefix(arg, "--"), "=")
		if !known[name] {
			return nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("--%s requires a value", name)
			}
			value = args[i+1]
			i++
		}
		vals[name] = value
	}
	return vals, nil
}

// writeDefaultConfig creates a config file with a fresh JWT secret.
func writeDefaultConfig(configPath, dbPath string) error {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	content := fmt.Sprintf(`# ledger-gateway configuration
# Generated by ledger-gateway bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"

idempotency:
  enabled: true

defaults:
  currency: "USD"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// runBootstrap performs first-time setup of the gateway:
//  1. Creates the config file with a random JWT secret, if missing
//  2. Registers the first admin under a fresh principal
//  3. Issues a token for it and saves it next to the config
func runBootstrap(ctx context.Context, args []string) error {
	flags, err := parseFlags(args, "name")
	if err != nil {
		return err
	}
	username := strings.TrimSpace(flags["name"])
	if username == "" {
		return errors.New("--name flag is required")
	}

	configPath := config.DefaultPath()
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := writeDefaultConfig(configPath, filepath.Join(getDataPath(), "ledger.db")); err != nil {
			return err
		}
		green.Printf("  ✓ Created config: %s\n", configPath)
	} else {
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	svc := ledger.New(s, ledger.Options{
		Policy: gateway.PolicyFromConfig(cfg.Policy),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	principal := uuid.New().String()
	out, err := svc.BootstrapAdmin(ctx, principal, username)
	if err != nil {
		return fmt.Errorf("registering admin: %w", err)
	}
	switch out {
	case ledger.Success:
	case ledger.AlreadyRegistered:
		return errors.New("bootstrap already complete: the registry is not empty")
	case ledger.ShortUsername:
		return fmt.Errorf("username must be at least %d characters", ledger.MinUsernameLength)
	default:
		return fmt.Errorf("registering admin: %s", out)
	}
	green.Printf("  ✓ Registered admin: %s\n", username)

	if err := svc.SeedRegistry(ctx, cfg.Defaults.Categories, cfg.Defaults.PaymentMethods); err != nil {
		return fmt.Errorf("seeding registry: %w", err)
	}

	tokenPath, expiresAt, err := issueToken(cfg, principal, filepath.Dir(configPath))
	if err != nil {
		return err
	}
	green.Printf("  ✓ Saved token: %s\n", tokenPath)

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	cyan.Println("  Admin")
	cyan.Println("  -----")
	fmt.Printf("  Principal:  %s\n", principal)
	fmt.Printf("  Username:   %s\n", username)
	fmt.Printf("  Role:       admin\n")
	if expiresAt.IsZero() {
		fmt.Printf("  Token:      %s (no expiry)\n", tokenPath)
	} else {
		fmt.Printf("  Token:      %s (expires %s)\n", tokenPath, expiresAt.Format("Jan 02, 2006"))
	}
	fmt.Println()

	yellow.Println("  Ready to go:")
	fmt.Println("    ledger-gateway serve    # start the gateway")
	fmt.Println("    ledger-admin me         # verify your identity")
	fmt.Println()
	return nil
}

// issueToken signs a token for principal with the configured TTL and writes
// it to dir/token.
func issueToken(cfg *config.Config, principal, dir string) (string, time.Time, error) {
	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(principal, cfg.Auth.TokenTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generating token: %w", err)
	}

	var expiresAt time.Time
	if cfg.Auth.TokenTTL > 0 {
		expiresAt = time.Now().Add(cfg.Auth.TokenTTL).UTC()
	}

	tokenPath := filepath.Join(dir, "token")
	if err := os.WriteFile(tokenPath, []byte(token), 0600); err != nil {
		return "", time.Time{}, fmt.Errorf("writing token file: %w", err)
	}
	return tokenPath, expiresAt, nil
}

// runToken prints a fresh token for an existing principal, e.g. one that
// will accept an invite.
func runToken(args []string) error {
	flags, err := parseFlags(args, "principal", "ttl")
	if err != nil {
		return err
	}
	principal := flags["principal"]
	if principal == "" {
		principal = uuid.New().String()
		fmt.Fprintf(os.Stderr, "no --principal given, using new principal %s\n", principal)
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ttl := cfg.Auth.TokenTTL
	if raw, ok := flags["ttl"]; ok {
		ttl, err = time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parsing --ttl: %w", err)
		}
	}

	verifier, err := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	if err != nil {
		return fmt.Errorf("creating JWT verifier: %w", err)
	}
	token, err := verifier.Generate(principal, ttl)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}
	fmt.Println(token)
	return nil
}
