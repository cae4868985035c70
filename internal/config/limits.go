package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// Limits converts the validated configuration into guardrail limits.
func (c *Config) Limits() (guardrail.Limits, error) {
	env, err := model.ParseEnvironment(c.Environment)
	if err != nil {
		return guardrail.Limits{}, fmt.Errorf("environment: %w", err)
	}

	var grade liquidity.Grade
	if c.Safety.MinLiquidityGrade != "" {
		grade, err = liquidity.ParseGrade(c.Safety.MinLiquidityGrade)
		if err != nil {
			return guardrail.Limits{}, fmt.Errorf("safety.min_liquidity_grade: %w", err)
		}
	}

	s := c.Safety
	return guardrail.Limits{
		Environment:            env,
		KillSwitch:             s.KillSwitch,
		AllowProduction:        s.AllowProduction,
		MaxOrderRiskUSD:        decimal.NewFromFloat(s.MaxOrderRiskUSD),
		MaxOrdersPerDay:        s.MaxOrdersPerDay,
		MaxDailyLossUSD:        decimal.NewFromFloat(s.MaxDailyLossUSD),
		MaxNotionalUSD:         decimal.NewFromFloat(s.MaxNotionalUSD),
		MaxPositionContracts:   s.MaxPositionContracts,
		MaxPriceDeviationCents: s.MaxPriceDeviationCents,
		MaxSlippagePct:         s.MaxSlippagePct,
		MinLiquidityGrade:      grade,
		LiquidityWeights:       s.LiquidityWeights,
		RequireConfirmation:    s.RequireConfirmation,
		ProviderTimeout:        s.ProviderTimeout,
	}, nil
}
