// Package config loads the tradehook configuration from a YAML file and
// applies environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the file and environment leave fields unset.
const (
	DefaultEquityFraction = 0.425
	DefaultTimeoutSecs    = 10
	DefaultPort           = 8080
)

// Sizing mode names accepted in the configuration file.
const (
	SizingEquityFraction = "equity_fraction"
	SizingFixedAmount    = "fixed_amount"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for tradehook.
type Config struct {
	Server  Server  `yaml:"server"`
	Alpaca  Alpaca  `yaml:"alpaca"`
	Sizing  Sizing  `yaml:"sizing"`
	Webhook Webhook `yaml:"webhook"`
	Journal Journal `yaml:"journal"`
	Trading Trading `yaml:"trading"`
	Logging Logging `yaml:"logging"`
}

// Server holds network listener configuration.
type Server struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`

	// RequestTimeoutSecs bounds every broker HTTP call. A timed-out call
	// surfaces as a failed outcome, never a hung webhook.
	RequestTimeoutSecs int `yaml:"request_timeout_secs"`
}

// Sizing selects how buy order quantities are computed. The mode is fixed at
// startup, not per request.
type Sizing struct {
	// Mode is "equity_fraction" (quantity = equity × fraction ÷ price) or
	// "fixed_amount" (quantity = amount ÷ price).
	Mode           string  `yaml:"mode"`
	EquityFraction float64 `yaml:"equity_fraction"`
	FixedAmount    float64 `yaml:"fixed_amount"`
}

// Webhook configures the inbound webhook endpoint.
type Webhook struct {
	// Token, when set, must accompany every webhook call (X-Webhook-Token
	// header or token query parameter).
	Token string `yaml:"token"`

	// RateLimitPerMin caps inbound webhook calls; zero disables limiting.
	RateLimitPerMin int `yaml:"rate_limit_per_min"`
	RateLimitBurst  int `yaml:"rate_limit_burst"`
}

// Journal configures the decision audit journal.
type Journal struct {
	// SQLitePath enables the SQLite journal when non-empty.
	SQLitePath string `yaml:"sqlite_path"`
}

// Trading selects between the live Alpaca broker and the in-memory paper
// broker.
type Trading struct {
	PaperMode   bool    `yaml:"paper_mode"`
	PaperEquity float64 `yaml:"paper_equity"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, fills defaults, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("WEBHOOK_TOKEN"); v != "" {
		cfg.Webhook.Token = v
	}
	if v := os.Getenv("JOURNAL_SQLITE_PATH"); v != "" {
		cfg.Journal.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}

// applyDefaults fills fields that have sensible defaults when the file and
// environment leave them unset.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultPort
	}
	if cfg.Alpaca.RequestTimeoutSecs == 0 {
		cfg.Alpaca.RequestTimeoutSecs = DefaultTimeoutSecs
	}
	if cfg.Sizing.Mode == "" {
		cfg.Sizing.Mode = SizingEquityFraction
	}
	if cfg.Sizing.EquityFraction == 0 {
		cfg.Sizing.EquityFraction = DefaultEquityFraction
	}
	if cfg.Webhook.RateLimitBurst == 0 {
		cfg.Webhook.RateLimitBurst = 1
	}
}

// Validate reports configuration combinations that cannot produce a working
// service.
func (cfg *Config) Validate() error {
	switch cfg.Sizing.Mode {
	case SizingEquityFraction:
		if cfg.Sizing.EquityFraction <= 0 || cfg.Sizing.EquityFraction > 1 {
			return fmt.Errorf("sizing.equity_fraction must be in (0, 1], got %v", cfg.Sizing.EquityFraction)
		}
	case SizingFixedAmount:
		if cfg.Sizing.FixedAmount <= 0 {
			return fmt.Errorf("sizing.fixed_amount must be positive, got %v", cfg.Sizing.FixedAmount)
		}
	default:
		return fmt.Errorf("unknown sizing.mode %q", cfg.Sizing.Mode)
	}

	if !cfg.Trading.PaperMode {
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return fmt.Errorf("alpaca.api_key and alpaca.api_secret are required outside paper mode")
		}
	}

	if cfg.Webhook.RateLimitPerMin < 0 {
		return fmt.Errorf("webhook.rate_limit_per_min must not be negative, got %d", cfg.Webhook.RateLimitPerMin)
	}

	return nil
}
