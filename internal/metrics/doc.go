// Package metrics provides Prometheus metrics for the trade guard.
//
// Key metrics:
//   - kalshi_guard_orders_total{operation,mode,outcome}
//   - kalshi_guard_guardrail_failures_total{code}
//   - kalshi_guard_audit_write_errors_total
//   - kalshi_guard_liquidity_score{ticker}
//   - kalshi_guard_max_safe_size_contracts{ticker,side}
//   - kalshi_guard_build_info{version,commit}
package metrics
