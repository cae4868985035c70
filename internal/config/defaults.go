package config

import (
	"time"

	"github.com/rickgao/kalshi-guard/internal/api"
	"github.com/rickgao/kalshi-guard/internal/budget"
	"github.com/rickgao/kalshi-guard/internal/model"
	"github.com/rickgao/kalshi-guard/internal/stream"
)

// Default values for optional configuration fields.
const (
	DefaultEnvironment     = "demo"
	DefaultAPITimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultKillSwitchEnv   = "KALSHI_KILL_SWITCH"
	DefaultMaxOrderRiskUSD = 50.0
	DefaultProviderTimeout = 10 * time.Second
	DefaultAuditPath       = "data/audit/orders.jsonl"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 4
	DefaultMinConns        = 0
	DefaultLogFormat       = "text"
	DefaultLogLevel        = "info"
	DefaultMetricsPort     = 9090
	DefaultMetricsPath     = "/metrics"
)

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}

	if c.API.RestURL == "" {
		c.API.RestURL = api.DemoBaseURL
		if env, err := model.ParseEnvironment(c.Environment); err == nil && env == model.EnvProd {
			c.API.RestURL = api.ProdBaseURL
		}
	}
	if c.API.WSURL == "" {
		c.API.WSURL = stream.DemoURL
		if env, err := model.ParseEnvironment(c.Environment); err == nil && env == model.EnvProd {
			c.API.WSURL = stream.ProdURL
		}
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	if c.Safety.KillSwitchEnv == "" {
		c.Safety.KillSwitchEnv = DefaultKillSwitchEnv
	}
	if c.Safety.MaxOrderRiskUSD == 0 {
		c.Safety.MaxOrderRiskUSD = DefaultMaxOrderRiskUSD
	}
	if c.Safety.ProviderTimeout == 0 {
		c.Safety.ProviderTimeout = DefaultProviderTimeout
	}
	if c.Safety.BudgetLookback == 0 {
		c.Safety.BudgetLookback = budget.DefaultLookback
	}

	if c.Audit.Path == "" {
		c.Audit.Path = DefaultAuditPath
	}

	if c.Database.Enabled() {
		applyDBDefaults(&c.Database.Postgres)
	}

	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
