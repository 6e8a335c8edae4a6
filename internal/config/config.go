// Package config defines runtime configuration for the grid bot.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via GRID_* environment variables.
//
// This is distinct from internal/store's Config Store: that package
// persists per-account venue credentials (account_key -> record); this
// package configures the engine itself (venue endpoints, default strategy
// parameters, logging, dashboard).
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Strategy  StrategyDefaults `mapstructure:"strategy"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
}

// VenueConfig holds the Starknet perpetual venue's REST/WS endpoints and
// the default account to bootstrap when none is specified per request.
type VenueConfig struct {
	RESTBaseURL    string `mapstructure:"rest_base_url"`
	WSBookURL      string `mapstructure:"ws_book_url"`
	DefaultAccount string `mapstructure:"default_account"`
}

// StrategyDefaults seeds the sliding-window grid configuration table
// (spec.md §4.4) when a strategy is created without an explicit override.
type StrategyDefaults struct {
	TotalOrders       int           `mapstructure:"total_orders"`
	WindowPercent     float64       `mapstructure:"window_percent"`
	SellRatio         float64       `mapstructure:"sell_ratio"`
	BuyRatio          float64       `mapstructure:"buy_ratio"`
	BasePriceInterval float64       `mapstructure:"base_price_interval"`
	SafeGap           float64       `mapstructure:"safe_gap"`
	MaxDriftBuffer    float64       `mapstructure:"max_drift_buffer"`
	MinValidPrice     float64       `mapstructure:"min_valid_price"`
	MaxMultiplier     float64       `mapstructure:"max_multiplier"`
	OrderCooldown     time.Duration `mapstructure:"order_cooldown"`
	UpdateInterval    time.Duration `mapstructure:"update_interval"`
}

// StoreConfig sets where the Config Store's account records are persisted.
type StoreConfig struct {
	ConfigPath string `mapstructure:"config_path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the stub HTTP surface (spec.md §6 — interfaces only).
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load reads config from a YAML file with env var overrides.
// A key present in the file can be overridden by GRID_ plus its
// upper-cased path with "." replaced by "_" (e.g. GRID_LOGGING_LEVEL,
// GRID_DASHBOARD_PORT). LOG_LEVEL sets the log level, DEBUG=true|1 forces
// debug logging, and GRID_DRY_RUN=true|1 enables dry-run mode.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GRID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
	if os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1" {
		cfg.Logging.Level = "debug"
	}
	if os.Getenv("GRID_DRY_RUN") == "true" || os.Getenv("GRID_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills in the §4.4 config table's default column for any
// zero-valued strategy default left unset by the YAML file.
func (c *Config) applyDefaults() {
	d := &c.Strategy
	if d.TotalOrders == 0 {
		d.TotalOrders = 18
	}
	if d.WindowPercent == 0 {
		d.WindowPercent = 0.12
	}
	if d.SellRatio == 0 && d.BuyRatio == 0 {
		d.SellRatio, d.BuyRatio = 0.5, 0.5
	}
	if d.BasePriceInterval == 0 {
		d.BasePriceInterval = 10
	}
	if d.SafeGap == 0 {
		d.SafeGap = 20
	}
	if d.MaxDriftBuffer == 0 {
		d.MaxDriftBuffer = 2000
	}
	if d.MinValidPrice == 0 {
		d.MinValidPrice = 10000
	}
	if d.MaxMultiplier == 0 {
		d.MaxMultiplier = 15
	}
	if d.OrderCooldown == 0 {
		d.OrderCooldown = 1500 * time.Millisecond
	}
	if d.UpdateInterval == 0 {
		d.UpdateInterval = 3 * time.Second
	}
}

// Validate checks all required fields.
func (c *Config) Validate() error {
	if c.Venue.RESTBaseURL == "" {
		return fmt.Errorf("venue.rest_base_url is required")
	}
	if c.Store.ConfigPath == "" {
		return fmt.Errorf("store.config_path is required")
	}
	return nil
}
