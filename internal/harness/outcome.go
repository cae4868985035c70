package harness

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// Status is the terminal state of one call.
type Status string

const (
	StatusSubmitted Status = "submitted" // Sent live to the exchange
	StatusSimulated Status = "simulated" // Dry-run submission
	StatusRejected  Status = "rejected"  // Blocked by guardrails, nothing sent
	StatusFailed    Status = "failed"    // Submission or cancellation error
)

// Outcome is the tagged result of a harness call.
type Outcome struct {
	Status  Status
	Order   *model.OrderResponse // Set for submitted and simulated
	Checks  guardrail.Result
	RiskUSD decimal.Decimal
	Err     error // *SafetyError when rejected, the underlying error when failed
}

// ErrRejected matches any *SafetyError via errors.Is.
var ErrRejected = errors.New("order rejected by guardrails")

// SafetyError carries every failed guardrail code.
type SafetyError struct {
	Failures []guardrail.FailureCode
}

func (e *SafetyError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = string(f)
	}
	return strings.Join(parts, ";")
}

func (e *SafetyError) Is(target error) bool {
	return target == ErrRejected
}

// Has reports whether code is among the failures.
func (e *SafetyError) Has(code guardrail.FailureCode) bool {
	for _, f := range e.Failures {
		if f == code {
			return true
		}
	}
	return false
}
