// ABOUTME: Interactive config file generator for ledger-gateway init
// ABOUTME: Prompts for addresses, storage, Tailscale, defaults and logging, then writes YAML

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("ledger-gateway configuration setup")
	fmt.Println("==================================")
	fmt.Println()

	defaultDbPath := filepath.Join(getDataPath(), "ledger.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath())

	if _, err := os.Stat(outputFile); err == nil {
		if !confirm(prompt(reader, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")
	grpcAddr := prompt(reader, "gRPC health address (leave empty to disable)", "")
	baseURL := prompt(reader, "External base URL for invite links", "http://"+httpAddr)

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Tailscale Configuration ---")
	tailscaleEnabled := confirm(prompt(reader, "Enable Tailscale?", "no"))

	var tsHostname, tsAuthKey string
	var tsEphemeral, tsHTTPS, tsFunnel bool
	if tailscaleEnabled {
		tsHostname = prompt(reader, "Tailscale hostname", "ledger")
		tsAuthKey = prompt(reader, "Tailscale auth key (leave empty for interactive)", "")
		tsEphemeral = confirm(prompt(reader, "Ephemeral node?", "no"))
		tsFunnel = confirm(prompt(reader, "Enable Funnel (public HTTPS)?", "no"))
		if !tsFunnel {
			tsHTTPS = confirm(prompt(reader, "Serve HTTPS on the tailnet?", "yes"))
		}
	}

	fmt.Println("\n--- Ledger Defaults ---")
	currency := strings.ToUpper(prompt(reader, "Default currency", "USD"))
	categories := splitList(prompt(reader, "Starter categories (comma separated)", "Groceries, Rent, Transport"))
	methods := splitList(prompt(reader, "Starter payment methods (comma separated)", "Cash, Card"))

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}

	var cfg strings.Builder
	cfg.WriteString("# ledger-gateway configuration\n")
	cfg.WriteString("# Generated by ledger-gateway init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n", httpAddr))
	if grpcAddr != "" {
		cfg.WriteString(fmt.Sprintf("  grpc_addr: %q\n", grpcAddr))
	}
	cfg.WriteString(fmt.Sprintf("  base_url: %q\n", baseURL))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: %q\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", base64.StdEncoding.EncodeToString(secretBytes)))
	cfg.WriteString("  token_ttl: \"720h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("tailscale:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", tailscaleEnabled))
	if tailscaleEnabled {
		cfg.WriteString(fmt.Sprintf("  hostname: %q\n", tsHostname))
		if tsAuthKey != "" {
			cfg.WriteString(fmt.Sprintf("  auth_key: %q\n", tsAuthKey))
		}
		cfg.WriteString(fmt.Sprintf("  ephemeral: %t\n", tsEphemeral))
		cfg.WriteString(fmt.Sprintf("  https: %t\n", tsHTTPS))
		cfg.WriteString(fmt.Sprintf("  funnel: %t\n", tsFunnel))
	}
	cfg.WriteString("\n")

	cfg.WriteString("idempotency:\n")
	cfg.WriteString("  enabled: true\n")
	cfg.WriteString("  ttl: \"24h\"\n")
	cfg.WriteString("\n")

	cfg.WriteString("defaults:\n")
	cfg.WriteString(fmt.Sprintf("  currency: %q\n", currency))
	writeList(&cfg, "categories", categories)
	writeList(&cfg, "payment_methods", methods)
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// The file carries the JWT secret.
	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nNext steps:")
	fmt.Println("  ledger-gateway bootstrap --name <username>")
	fmt.Println("  ledger-gateway serve")

	return nil
}

// defaultConfigPath mirrors config.DefaultPath but ignores LEDGER_CONFIG,
// which points at an existing file rather than a suggested location.
func defaultConfigPath() string {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "ledger", "gateway.yaml")
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal
	}
	return input
}

func confirm(answer string) bool {
	answer = strings.ToLower(answer)
	return answer == "yes" || answer == "y"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func writeList(b *strings.Builder, key string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("  %s:\n", key))
	for _, item := range items {
		b.WriteString(fmt.Sprintf("    - %q\n", item))
	}
}
