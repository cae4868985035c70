// Package guardrail evaluates pre-trade safety checks.
//
// Common checks (price bounds, count, per-order risk ceiling) always run and
// perform no I/O. Live checks run only for live orders, in a fixed order, and
// are never short-circuited: every violation is recorded so one audit event
// explains everything that was wrong. Any failure of a risk-data provider is
// fail-closed and surfaces as its own failure code.
package guardrail
