// Package config loads the trade guard configuration from YAML.
package config

import (
	"strings"
	"time"

	"github.com/rickgao/kalshi-guard/internal/liquidity"
)

// Config is the root configuration.
type Config struct {
	Environment string         `yaml:"environment"` // demo or prod
	API         APIConfig      `yaml:"api"`
	Safety      SafetyConfig   `yaml:"safety"`
	Audit       AuditConfig    `yaml:"audit"`
	Database    DatabaseConfig `yaml:"database"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// APIConfig holds Kalshi API settings.
type APIConfig struct {
	RestURL        string        `yaml:"rest_url"`         // Derived from environment when empty
	WSURL          string        `yaml:"ws_url"`           // Derived from environment when empty
	APIKey         string        `yaml:"api_key"`          // API key ID (for KALSHI-ACCESS-KEY header)
	PrivateKeyPath string        `yaml:"private_key_path"` // Path to RSA private key PEM file
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
}

// SafetyConfig holds the guardrail limits. Zero disables an optional limit.
type SafetyConfig struct {
	Live                   bool               `yaml:"live"`
	AllowProduction        bool               `yaml:"allow_production"`
	KillSwitchEnv          string             `yaml:"kill_switch_env"`
	MaxOrderRiskUSD        float64            `yaml:"max_order_risk_usd"`
	MaxOrdersPerDay        int                `yaml:"max_orders_per_day"`
	MaxDailyLossUSD        float64            `yaml:"max_daily_loss_usd"`
	MaxNotionalUSD         float64            `yaml:"max_notional_usd"`
	MaxPositionContracts   int                `yaml:"max_position_contracts"`
	MaxPriceDeviationCents int                `yaml:"max_price_deviation_cents"`
	MaxSlippagePct         float64            `yaml:"max_slippage_pct"`
	MinLiquidityGrade      string             `yaml:"min_liquidity_grade"`
	LiquidityWeights       *liquidity.Weights `yaml:"liquidity_weights"`
	RequireConfirmation    bool               `yaml:"require_confirmation"`
	Timezone               string             `yaml:"timezone"` // IANA name for the daily order window
	ProviderTimeout        time.Duration      `yaml:"provider_timeout"`
	BudgetLookback         time.Duration      `yaml:"budget_lookback"` // Fill history read for cost basis

	// KillSwitch is resolved from KillSwitchEnv at load time.
	KillSwitch bool `yaml:"-"`
}

// AuditConfig controls the audit trail.
type AuditConfig struct {
	Path           string `yaml:"path"`
	PostgresMirror bool   `yaml:"postgres_mirror"`
}

// DatabaseConfig holds the optional Postgres connection used for the audit
// mirror.
type DatabaseConfig struct {
	Postgres DBConfig `yaml:"postgres"`
}

// Enabled reports whether a database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Postgres.Host != ""
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Format string `yaml:"format"` // text or json
	Level  string `yaml:"level"`  // debug, info, warn, error
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     int    `yaml:"port"`
	Path     string `yaml:"path"`
	Textfile string `yaml:"textfile"` // Written on exit for the node_exporter textfile collector
}

// EnvReader looks up an environment variable.
type EnvReader func(key string) string

// ResolveEnv reads the kill switch once through env.
func (c *Config) ResolveEnv(env EnvReader) {
	c.Safety.KillSwitch = Truthy(env(c.Safety.KillSwitchEnv))
}

// Truthy reports whether s is one of 1, true, yes, on (case-insensitive).
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
