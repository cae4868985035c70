package audit

import (
	"context"
	"time"

	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// Mode is dry_run or live.
type Mode string

const (
	ModeDryRun Mode = "dry_run"
	ModeLive   Mode = "live"
)

// ModeFor maps the live flag to a Mode.
func ModeFor(live bool) Mode {
	if live {
		return ModeLive
	}
	return ModeDryRun
}

// Operation is the kind of order mutation audited.
type Operation string

const (
	OpCreate Operation = "create"
	OpCancel Operation = "cancel"
	OpAmend  Operation = "amend"
)

// Checks is the serialized guardrail result.
type Checks struct {
	Passed   bool     `json:"passed"`
	Failures []string `json:"failures"`
}

// ChecksFrom converts a guardrail result.
func ChecksFrom(r guardrail.Result) Checks {
	return Checks{Passed: r.Passed(), Failures: r.Strings()}
}

// Event is one audit line. It is built once per attempt and never changed
// after it has been recorded.
type Event struct {
	Timestamp             time.Time         `json:"timestamp"`
	Operation             Operation         `json:"operation"`
	Mode                  Mode              `json:"mode"`
	Environment           model.Environment `json:"environment"`
	Ticker                string            `json:"ticker"`
	Side                  model.Side        `json:"side"`
	Action                model.Action      `json:"action"`
	Count                 int               `json:"count"`
	YesPriceCents         int               `json:"yes_price_cents"`
	MaxOrderRiskUSD       float64           `json:"max_order_risk_usd"`
	EstimatedOrderRiskUSD float64           `json:"estimated_order_risk_usd"`
	ClientOrderID         string            `json:"client_order_id"`
	ExpirationTS          *int64            `json:"expiration_ts,omitempty"`
	OrderID               *string           `json:"order_id"`
	Checks                Checks            `json:"checks"`
	Error                 *string           `json:"error"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// countsAsOrder reports whether a line should count toward the daily cap.
// Lines written before the operation field existed are creates.
func countsAsOrder(mode Mode, op Operation) bool {
	return mode == ModeLive && (op == OpCreate || op == "")
}
