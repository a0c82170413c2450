// Package config loads server configuration from the environment.
package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

// Config is the full server configuration. Every field has a development
// default; production deployments set RECEIPT_SECRET at minimum.
type Config struct {
	Port       int    `env:"PORT" envDefault:"8080"`
	LedgerPath string `env:"LEDGER_PATH" envDefault:"economy.ledger"`
	AccountsDB string `env:"ACCOUNTS_DB" envDefault:"accounts.db"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	ReceiptSecret string `env:"RECEIPT_SECRET" envDefault:"dev-secret-change-me"`

	RateLimit   int `env:"RATE_LIMIT" envDefault:"10"`
	RateWindowS int `env:"RATE_WINDOW_S" envDefault:"60"`

	IntentExpiryMin int `env:"INTENT_EXPIRY_MIN" envDefault:"15"`
	CleanupEvery    int `env:"CLEANUP_EVERY" envDefault:"100"`
	SnapshotEvery   int `env:"SNAPSHOT_EVERY" envDefault:"1000"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// RateWindow returns the rate-limit window as a duration.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.RateWindowS) * time.Second
}

// IntentExpiry returns the pending-intent lifetime as a duration.
func (c *Config) IntentExpiry() time.Duration {
	return time.Duration(c.IntentExpiryMin) * time.Minute
}
