package guardrail

import "strings"

// FailureCode names a single guardrail violation.
type FailureCode string

// Common checks.
const (
	PriceOutOfBounds     FailureCode = "price_out_of_bounds"
	CountNotPositive     FailureCode = "count_not_positive"
	MaxOrderRiskExceeded FailureCode = "max_order_risk_exceeded"
	InvalidOrderIntent   FailureCode = "invalid_order_intent"
)

// Live checks, in evaluation order.
const (
	KillSwitchEnabled            FailureCode = "kill_switch_enabled"
	ProductionTradingDisabled    FailureCode = "production_trading_disabled"
	MaxOrdersPerDayExceeded      FailureCode = "max_orders_per_day_exceeded"
	DailyOrderCountFailed        FailureCode = "daily_order_count_failed"
	MaxDailyLossExceeded         FailureCode = "max_daily_loss_exceeded"
	MaxNotionalExceeded          FailureCode = "max_notional_exceeded"
	BudgetTrackerFailed          FailureCode = "budget_tracker_failed"
	MaxPositionContractsExceeded FailureCode = "max_position_contracts_exceeded"
	PositionProviderFailed       FailureCode = "position_provider_failed"
	OrderbookProviderFailed      FailureCode = "orderbook_provider_failed"
	FatFingerDeviationExceeded   FailureCode = "fat_finger_deviation_exceeded"
	SlippageLimitExceeded        FailureCode = "slippage_limit_exceeded"
	LiquidityGradeTooLow         FailureCode = "liquidity_grade_too_low"
	LiquidityCheckFailed         FailureCode = "liquidity_check_failed"
	MissingConfirmationCallback  FailureCode = "missing_confirmation_callback"
	ConfirmationDeclined         FailureCode = "confirmation_declined"
)

// Result is the outcome of a guardrail evaluation. Failures is an ordered
// set: the first occurrence of each code is kept.
type Result struct {
	Failures []FailureCode
}

// Passed reports whether no check failed.
func (r Result) Passed() bool {
	return len(r.Failures) == 0
}

// Has reports whether code was recorded.
func (r Result) Has(code FailureCode) bool {
	for _, f := range r.Failures {
		if f == code {
			return true
		}
	}
	return false
}

// Strings returns the codes as plain strings, never nil.
func (r Result) Strings() []string {
	out := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		out = append(out, string(f))
	}
	return out
}

// String joins the codes with ";".
func (r Result) String() string {
	return strings.Join(r.Strings(), ";")
}

func (r *Result) add(code FailureCode) {
	if !r.Has(code) {
		r.Failures = append(r.Failures, code)
	}
}
