// ABOUTME: Configuration loading and parsing for ledger-gateway
// ABOUTME: Supports YAML or TOML files with .env loading, env var expansion, and duration parsing

package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/2389/ledger-gateway/internal/store"
)

// Config represents the complete ledger-gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server" toml:"server"`
	Tailscale   TailscaleConfig   `yaml:"tailscale" toml:"tailscale"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Auth        AuthConfig        `yaml:"auth" toml:"auth"`
	Policy      PolicyConfig      `yaml:"policy" toml:"policy"`
	Events      EventsConfig      `yaml:"events" toml:"events"`
	Notify      NotifyConfig      `yaml:"notify" toml:"notify"`
	Idempotency IdempotencyConfig `yaml:"idempotency" toml:"idempotency"`
	Defaults    DefaultsConfig    `yaml:"defaults" toml:"defaults"`
	Logging     LoggingConfig     `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
	// GRPCAddr serves grpc.health.v1 only. Empty disables it.
	GRPCAddr string `yaml:"grpc_addr" toml:"grpc_addr"`
	// BaseURL is the external URL used when building invite links
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // serve :443 with tailnet certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // public Funnel, implies HTTPS
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`

	// CacheSize bounds the verified-token cache. Zero disables caching.
	CacheSize int64 `yaml:"cache_size" toml:"cache_size"`

	TokenTTL time.Duration `yaml:"-" toml:"-"`
	CacheTTL time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TokenTTLRaw string `yaml:"token_ttl" toml:"token_ttl"`
	CacheTTLRaw string `yaml:"cache_ttl" toml:"cache_ttl"`
}

// PolicyConfig holds the tunable ledger policy. Unset fields keep the
// ledger defaults.
type PolicyConfig struct {
	// InclusiveBounds is a pointer so that an explicit false is distinguishable from unset
	InclusiveBounds         *bool `yaml:"inclusive_bounds" toml:"inclusive_bounds"`
	DefaultWarningThreshold int   `yaml:"default_warning_threshold" toml:"default_warning_threshold"`
	RecentTransactions      int   `yaml:"recent_transactions" toml:"recent_transactions"`

	InviteTTL        time.Duration `yaml:"-" toml:"-"`
	BudgetManagers   store.Role    `yaml:"-" toml:"-"`
	RegistryManagers store.Role    `yaml:"-" toml:"-"`

	InviteTTLRaw        string `yaml:"invite_ttl" toml:"invite_ttl"`
	BudgetManagersRaw   string `yaml:"budget_managers" toml:"budget_managers"`
	RegistryManagersRaw string `yaml:"registry_managers" toml:"registry_managers"`
}

// EventsConfig holds the RabbitMQ event publisher configuration
type EventsConfig struct {
	Enabled  bool   `yaml:"enabled" toml:"enabled"`
	URL      string `yaml:"url" toml:"url"`
	Exchange string `yaml:"exchange" toml:"exchange"`
}

// NotifyConfig groups push notification channels
type NotifyConfig struct {
	Matrix MatrixConfig `yaml:"matrix" toml:"matrix"`
}

// MatrixConfig holds the Matrix budget alert notifier configuration
type MatrixConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	Homeserver  string `yaml:"homeserver" toml:"homeserver"`
	UserID      string `yaml:"user_id" toml:"user_id"`
	AccessToken string `yaml:"access_token" toml:"access_token"`
}

// IdempotencyConfig holds the Idempotency-Key replay cache settings
type IdempotencyConfig struct {
	Enabled    bool          `yaml:"enabled" toml:"enabled"`
	MaxEntries int           `yaml:"max_entries" toml:"max_entries"`
	TTL        time.Duration `yaml:"-" toml:"-"`
	TTLRaw     string        `yaml:"ttl" toml:"ttl"`
}

// DefaultsConfig seeds new installations and fills missing profiles
type DefaultsConfig struct {
	Theme          string   `yaml:"theme" toml:"theme"`
	Currency       string   `yaml:"currency" toml:"currency"`
	Categories     []string `yaml:"categories" toml:"categories"`
	PaymentMethods []string `yaml:"payment_methods" toml:"payment_methods"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DefaultPath returns the config path to use when none is given.
// Priority: LEDGER_CONFIG env var > XDG_CONFIG_HOME/ledger/gateway.yaml > ~/.config/ledger/gateway.yaml
func DefaultPath() string {
	if envPath := os.Getenv("LEDGER_CONFIG"); envPath != "" {
		return envPath
	}

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

// Load reads a configuration file from the given path and returns a parsed Config.
// A .env file next to the config is loaded first; variables already set in
// the environment win. Environment variables in the format ${VAR_NAME} are
// expanded. Files ending in .toml are decoded as TOML, everything else as YAML.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".toml"))
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, expands, and validates raw configuration content.
func Parse(data []byte, isTOML bool) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if isTOML {
		if _, err := toml.Decode(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}
	if err := parseRoles(&cfg); err != nil {
		return nil, fmt.Errorf("parsing roles: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

func (c *Config) applyDefaults() {
	if c.Auth.TokenTTLRaw == "" {
		c.Auth.TokenTTLRaw = "720h"
	}
	if c.Auth.CacheTTLRaw == "" {
		c.Auth.CacheTTLRaw = "5m"
	}
	if c.Events.Exchange == "" {
		c.Events.Exchange = "ledger.events"
	}
	if c.Idempotency.TTLRaw == "" {
		c.Idempotency.TTLRaw = "24h"
	}
	if c.Idempotency.MaxEntries == 0 {
		c.Idempotency.MaxEntries = 10000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}

	if t := c.Policy.DefaultWarningThreshold; t < 0 || t > 100 {
		return fmt.Errorf("policy.default_warning_threshold must be between 0 and 100, got %d", t)
	}
	if c.Policy.RecentTransactions < 0 {
		return fmt.Errorf("policy.recent_transactions must not be negative")
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return fmt.Errorf("events.url is required when events are enabled")
	}

	if m := c.Notify.Matrix; m.Enabled {
		if m.Homeserver == "" {
			return fmt.Errorf("notify.matrix.homeserver is required when matrix is enabled")
		}
		if _, err := url.Parse(m.Homeserver); err != nil {
			return fmt.Errorf("notify.matrix.homeserver is not a valid URL: %w", err)
		}
		if m.UserID == "" || m.AccessToken == "" {
			return fmt.Errorf("notify.matrix.user_id and notify.matrix.access_token are required when matrix is enabled")
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"auth.token_ttl", cfg.Auth.TokenTTLRaw, &cfg.Auth.TokenTTL},
		{"auth.cache_ttl", cfg.Auth.CacheTTLRaw, &cfg.Auth.CacheTTL},
		{"policy.invite_ttl", cfg.Policy.InviteTTLRaw, &cfg.Policy.InviteTTL},
		{"idempotency.ttl", cfg.Idempotency.TTLRaw, &cfg.Idempotency.TTL},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		if d < 0 {
			return fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return nil
}

// parseRoles converts the raw policy role names. Empty leaves the role unset.
func parseRoles(cfg *Config) error {
	var err error
	if cfg.Policy.BudgetManagersRaw != "" {
		cfg.Policy.BudgetManagers, err = store.ParseRole(cfg.Policy.BudgetManagersRaw)
		if err != nil {
			return fmt.Errorf("policy.budget_managers: %w", err)
		}
	}
	if cfg.Policy.RegistryManagersRaw != "" {
		cfg.Policy.RegistryManagers, err = store.ParseRole(cfg.Policy.RegistryManagersRaw)
		if err != nil {
			return fmt.Errorf("policy.registry_managers: %w", err)
		}
	}
	return nil
}
