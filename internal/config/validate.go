package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if _, err := model.ParseEnvironment(c.Environment); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if err := c.Safety.validate(); err != nil {
		return err
	}

	if c.Audit.Path == "" {
		return errors.New("audit.path is required")
	}
	if c.Audit.PostgresMirror && !c.Database.Enabled() {
		return errors.New("audit.postgres_mirror requires database.postgres")
	}

	if c.Database.Enabled() {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	if _, err := c.Logging.SlogLevel(); err != nil {
		return err
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

// RequireCredentials checks that signed requests are possible.
func (c *Config) RequireCredentials() error {
	if c.API.APIKey == "" {
		return errors.New("api.api_key is required for live trading")
	}
	if c.API.PrivateKeyPath == "" {
		return errors.New("api.private_key_path is required for live trading")
	}
	return nil
}

func (s *SafetyConfig) validate() error {
	if s.MaxOrderRiskUSD <= 0 {
		return fmt.Errorf("safety.max_order_risk_usd must be > 0, got %v", s.MaxOrderRiskUSD)
	}

	nonNegative := []struct {
		name  string
		value float64
	}{
		{"safety.max_orders_per_day", float64(s.MaxOrdersPerDay)},
		{"safety.max_daily_loss_usd", s.MaxDailyLossUSD},
		{"safety.max_notional_usd", s.MaxNotionalUSD},
		{"safety.max_position_contracts", float64(s.MaxPositionContracts)},
		{"safety.max_price_deviation_cents", float64(s.MaxPriceDeviationCents)},
		{"safety.max_slippage_pct", s.MaxSlippagePct},
	}
	for _, f := range nonNegative {
		if f.value < 0 {
			return fmt.Errorf("%s must be >= 0, got %v", f.name, f.value)
		}
	}

	if s.MinLiquidityGrade != "" {
		if _, err := liquidity.ParseGrade(s.MinLiquidityGrade); err != nil {
			return fmt.Errorf("safety.min_liquidity_grade: %w", err)
		}
	}
	if s.LiquidityWeights != nil {
		if err := s.LiquidityWeights.Validate(); err != nil {
			return fmt.Errorf("safety.liquidity_weights: %w", err)
		}
	}
	if _, err := s.Location(); err != nil {
		return fmt.Errorf("safety.timezone: %w", err)
	}
	if s.ProviderTimeout < 0 {
		return errors.New("safety.provider_timeout must be >= 0")
	}
	if s.BudgetLookback < 0 {
		return errors.New("safety.budget_lookback must be >= 0")
	}
	return nil
}

// Location returns the time zone of the daily order window. Empty means
// the local zone.
func (s *SafetyConfig) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(s.Timezone)
}

// SlogLevel parses the configured level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
