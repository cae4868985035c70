package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-guard/internal/api"
	"github.com/rickgao/kalshi-guard/internal/budget"
	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/model"
	"github.com/rickgao/kalshi-guard/internal/stream"
)

func TestLoad(t *testing.T) {
	yaml := `
environment: prod
api:
  api_key: key-123
  private_key_path: /keys/kalshi.pem
safety:
  live: true
  allow_production: true
  max_order_risk_usd: 25
  max_orders_per_day: 10
  max_position_contracts: 200
  min_liquidity_grade: moderate
  liquidity_weights:
    spread: 0.4
    depth: 0.3
    volume: 0.2
    open_interest: 0.1
  timezone: America/New_York
audit:
  path: /var/log/kalshi/audit.jsonl
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Environment != "prod" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "prod")
	}
	if cfg.API.APIKey != "key-123" {
		t.Errorf("API.APIKey = %q, want %q", cfg.API.APIKey, "key-123")
	}
	if !cfg.Safety.Live || !cfg.Safety.AllowProduction {
		t.Errorf("Safety = %+v", cfg.Safety)
	}
	if cfg.Safety.MaxOrderRiskUSD != 25 || cfg.Safety.MaxOrdersPerDay != 10 {
		t.Errorf("Safety limits = %+v", cfg.Safety)
	}
	if cfg.Safety.LiquidityWeights == nil || cfg.Safety.LiquidityWeights.Spread != 0.4 {
		t.Errorf("LiquidityWeights = %+v", cfg.Safety.LiquidityWeights)
	}
	if cfg.Audit.Path != "/var/log/kalshi/audit.jsonl" {
		t.Errorf("Audit.Path = %q", cfg.Audit.Path)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_KALSHI_KEY", "abc")

	yaml := `
api:
  api_key: ${TEST_KALSHI_KEY}
database:
  postgres:
    host: localhost
    name: guard
    user: guard
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Postgres.Password != "secret123" {
		t.Errorf("Password = %q, want %q", cfg.Database.Postgres.Password, "secret123")
	}
	if cfg.API.APIKey != "abc" {
		t.Errorf("APIKey = %q, want %q", cfg.API.APIKey, "abc")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "safety:\n  live: false\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Environment != DefaultEnvironment {
		t.Errorf("Environment = %q, want %q", cfg.Environment, DefaultEnvironment)
	}
	if cfg.API.RestURL != api.DemoBaseURL {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, api.DemoBaseURL)
	}
	if cfg.API.WSURL != stream.DemoURL {
		t.Errorf("API.WSURL = %q, want %q", cfg.API.WSURL, stream.DemoURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Safety.KillSwitchEnv != DefaultKillSwitchEnv {
		t.Errorf("KillSwitchEnv = %q, want %q", cfg.Safety.KillSwitchEnv, DefaultKillSwitchEnv)
	}
	if cfg.Safety.MaxOrderRiskUSD != DefaultMaxOrderRiskUSD {
		t.Errorf("MaxOrderRiskUSD = %v, want %v", cfg.Safety.MaxOrderRiskUSD, DefaultMaxOrderRiskUSD)
	}
	if cfg.Safety.BudgetLookback != budget.DefaultLookback {
		t.Errorf("BudgetLookback = %v, want %v", cfg.Safety.BudgetLookback, budget.DefaultLookback)
	}
	if cfg.Audit.Path != DefaultAuditPath {
		t.Errorf("Audit.Path = %q, want %q", cfg.Audit.Path, DefaultAuditPath)
	}
	if cfg.Database.Postgres.Port != 0 {
		t.Errorf("unconfigured database got defaults: %+v", cfg.Database.Postgres)
	}
	if cfg.Metrics.Port != DefaultMetricsPort || cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults do not validate: %v", err)
	}
}

func TestProdDefaultURL(t *testing.T) {
	cfg := &Config{Environment: "production"}
	cfg.ApplyDefaults()
	if cfg.API.RestURL != api.ProdBaseURL {
		t.Errorf("RestURL = %q, want %q", cfg.API.RestURL, api.ProdBaseURL)
	}
	if cfg.API.WSURL != stream.ProdURL {
		t.Errorf("WSURL = %q, want %q", cfg.API.WSURL, stream.ProdURL)
	}
}

func TestResolveEnv(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"", false},
		{"0", false},
		{"false", false},
		{"1", true},
		{"true", true},
		{"TRUE", true},
		{" yes ", true},
		{"On", true},
		{"enabled", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			cfg.ResolveEnv(func(key string) string {
				if key != DefaultKillSwitchEnv {
					t.Errorf("read %q, want %q", key, DefaultKillSwitchEnv)
				}
				return tt.value
			})
			if cfg.Safety.KillSwitch != tt.want {
				t.Errorf("KillSwitch = %v, want %v", cfg.Safety.KillSwitch, tt.want)
			}
		})
	}
}

func TestLoadAndValidateReadsKillSwitch(t *testing.T) {
	t.Setenv("MY_HALT", "1")
	path := writeTempFile(t, "safety:\n  kill_switch_env: MY_HALT\n")

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if !cfg.Safety.KillSwitch {
		t.Error("KillSwitch = false, want true")
	}
}

func validConfig() Config {
	cfg := Config{}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	db := DBConfig{Host: "localhost", Name: "guard", User: "guard", MaxConns: 4}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "bad environment",
			mutate:  func(c *Config) { c.Environment = "staging" },
			wantErr: `environment: invalid environment "staging"`,
		},
		{
			name:    "non-positive order risk",
			mutate:  func(c *Config) { c.Safety.MaxOrderRiskUSD = -1 },
			wantErr: "safety.max_order_risk_usd must be > 0, got -1",
		},
		{
			name:    "negative position cap",
			mutate:  func(c *Config) { c.Safety.MaxPositionContracts = -5 },
			wantErr: "safety.max_position_contracts must be >= 0, got -5",
		},
		{
			name:    "negative budget lookback",
			mutate:  func(c *Config) { c.Safety.BudgetLookback = -time.Hour },
			wantErr: "safety.budget_lookback must be >= 0",
		},
		{
			name:    "mirror without database",
			mutate:  func(c *Config) { c.Audit.PostgresMirror = true },
			wantErr: "audit.postgres_mirror requires database.postgres",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Database.Postgres = db
				c.Database.Postgres.MinConns = 10
			},
			wantErr: "database.postgres.min_conns (10) cannot exceed max_conns (4)",
		},
		{
			name:    "loss cap without database",
			mutate:  func(c *Config) { c.Safety.MaxDailyLossUSD = 100 },
			wantErr: "",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
		{
			name: "bad metrics port",
			mutate: func(c *Config) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 70000
			},
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateRejectsBadSafetyValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad grade", func(c *Config) { c.Safety.MinLiquidityGrade = "superb" }},
		{"bad weights", func(c *Config) {
			c.Safety.LiquidityWeights = &liquidity.Weights{Spread: 1, Depth: 1}
		}},
		{"bad timezone", func(c *Config) { c.Safety.Timezone = "Mars/Olympus" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestRequireCredentials(t *testing.T) {
	cfg := validConfig()
	if err := cfg.RequireCredentials(); err == nil {
		t.Error("expected error without api key")
	}
	cfg.API.APIKey = "k"
	cfg.API.PrivateKeyPath = "/k.pem"
	if err := cfg.RequireCredentials(); err != nil {
		t.Errorf("RequireCredentials() = %v", err)
	}
}

func TestLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "prod"
	cfg.Safety.KillSwitch = true
	cfg.Safety.MaxOrderRiskUSD = 12.5
	cfg.Safety.MaxNotionalUSD = 500
	cfg.Safety.MinLiquidityGrade = "thin"
	cfg.Safety.ProviderTimeout = 3 * time.Second

	limits, err := cfg.Limits()
	if err != nil {
		t.Fatalf("Limits() error = %v", err)
	}
	if limits.Environment != model.EnvProd || !limits.KillSwitch {
		t.Errorf("limits = %+v", limits)
	}
	if !limits.MaxOrderRiskUSD.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("MaxOrderRiskUSD = %s", limits.MaxOrderRiskUSD)
	}
	if !limits.MaxNotionalUSD.Equal(decimal.NewFromInt(500)) || !limits.MaxDailyLossUSD.IsZero() {
		t.Errorf("budget limits = %s / %s", limits.MaxNotionalUSD, limits.MaxDailyLossUSD)
	}
	if limits.MinLiquidityGrade != liquidity.GradeThin {
		t.Errorf("MinLiquidityGrade = %q", limits.MinLiquidityGrade)
	}
	if limits.ProviderTimeout != 3*time.Second {
		t.Errorf("ProviderTimeout = %v", limits.ProviderTimeout)
	}
}

func TestLocation(t *testing.T) {
	s := SafetyConfig{}
	loc, err := s.Location()
	if err != nil || loc != time.Local {
		t.Errorf("Location() = %v, %v, want Local", loc, err)
	}

	s.Timezone = "America/New_York"
	loc, err = s.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
