// Package harness is the single entry point for order mutations.
//
// Every call moves through
//
//	received -> risk-estimated -> checks-evaluated -> {submitted | simulated | rejected | failed} -> audited
//
// in one step with no retries. Orders are dry-run unless the harness is
// configured live. Exactly one audit event is recorded per call, on every
// exit path, and audit failures never replace the call's own result.
package harness
