// Package config loads the process-wide configuration (spec.md §6):
// store connection settings, the listener address, the dark-pool switch,
// and the risk gate's default limits. It follows the viper-based
// env-driven pattern from 0xtitan6-polymarket-mm/internal/config, adapted
// from a YAML-file-plus-overrides shape to pure environment variables
// since this domain has no secrets file to read (spec.md §6:
// "Configuration (environment variables or equivalent)").
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the full set of process configuration, read once at startup.
type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`

	Store StoreConfig `mapstructure:"store"`

	DarkPoolEnabled bool `mapstructure:"dark_pool_enabled"`

	MaxOrderSize       int64   `mapstructure:"max_order_size"`
	MinOrderSize       int64   `mapstructure:"min_order_size"`
	MaxPrice           float64 `mapstructure:"max_price"`
	MinPrice           float64 `mapstructure:"min_price"`
	PriceDeviationPct  float64 `mapstructure:"price_deviation_pct"`
	MaxOrderValue      float64 `mapstructure:"max_order_value"`

	MatchCycle       string `mapstructure:"match_cycle_ms"`
	EventBusBuffer   int    `mapstructure:"event_bus_buffer"`
}

// StoreConfig holds the external-store connection settings named in
// spec.md §6 ("store host/port/db/password"). The reference
// implementation's internal/store is in-process, so these are carried
// for wire-compatibility with a future out-of-process store and are
// otherwise unused — exactly the shape original_source's redis-backed
// store configured itself with.
type StoreConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// Load reads configuration from environment variables (prefix EXCHANGE_),
// falling back to the defaults below for anything unset. There is no
// required config file: every field in spec.md §6 has a sane default so
// the server can start with zero configuration, matching the teacher's
// "a config that runs out of the box" posture for its non-secret fields.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("EXCHANGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listen_addr", "0.0.0.0:9201")
	v.SetDefault("store.host", "127.0.0.1")
	v.SetDefault("store.port", 6379)
	v.SetDefault("store.db", 0)
	v.SetDefault("store.password", "")
	v.SetDefault("dark_pool_enabled", true)
	v.SetDefault("max_order_size", 100_000)
	v.SetDefault("min_order_size", 1)
	v.SetDefault("max_price", 1_000_000.0)
	v.SetDefault("min_price", 0.01)
	v.SetDefault("price_deviation_pct", 5.0)
	v.SetDefault("max_order_value", 100_000.0)
	v.SetDefault("match_cycle_ms", "50ms")
	v.SetDefault("event_bus_buffer", 1024)

	// Explicit binds so EXCHANGE_DARK_POOL_ENABLED etc. resolve even though
	// AutomaticEnv alone only catches keys already known to viper via a Get
	// or a default; SetDefault above already registers each key, but these
	// binds document the exact spec.md §6 env var this config knob is.
	for key, env := range map[string]string{
		"dark_pool_enabled":   "DARK_POOL_ENABLED",
		"max_order_size":      "MAX_ORDER_SIZE",
		"min_order_size":      "MIN_ORDER_SIZE",
		"max_price":           "MAX_PRICE",
		"min_price":           "MIN_PRICE",
		"price_deviation_pct": "PRICE_DEVIATION_PCT",
	} {
		if err := v.BindEnv(key, env, "EXCHANGE_"+env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// MaxPriceDecimal, MinPriceDecimal and MaxOrderValueDecimal adapt the
// float64 env-var-friendly fields above into the decimal.Decimal values
// internal/risk.Defaults needs, at the one boundary where configuration
// crosses from "human-editable env var" into "exact decimal arithmetic".
func (c *Config) MaxPriceDecimal() decimal.Decimal      { return decimal.NewFromFloat(c.MaxPrice) }
func (c *Config) MinPriceDecimal() decimal.Decimal      { return decimal.NewFromFloat(c.MinPrice) }
func (c *Config) MaxOrderValueDecimal() decimal.Decimal { return decimal.NewFromFloat(c.MaxOrderValue) }
func (c *Config) PriceDeviationPctDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.PriceDeviationPct)
}

// defaultMatchCycle is the fallback used when MatchCycle is unset or
// malformed (spec.md §4.5: "Cycle interval configurable; small (≈50 ms)
// to approximate continuous matching").
const defaultMatchCycle = 50 * time.Millisecond

// MatchCycleDuration parses MatchCycle, falling back to defaultMatchCycle
// on a malformed value rather than failing startup.
func (c *Config) MatchCycleDuration() time.Duration {
	d, err := time.ParseDuration(c.MatchCycle)
	if err != nil || d <= 0 {
		return defaultMatchCycle
	}
	return d
}
