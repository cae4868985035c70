package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rickgao/kalshi-guard/internal/audit"
	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// OrderAPI submits order mutations. With dryRun set it must not place,
// cancel, or change a real order.
type OrderAPI interface {
	CreateOrder(ctx context.Context, intent model.OrderIntent, dryRun bool) (*model.OrderResponse, error)
	CancelOrder(ctx context.Context, orderID string, dryRun bool) (*model.OrderResponse, error)
	AmendOrder(ctx context.Context, req model.AmendRequest, dryRun bool) (*model.OrderResponse, error)
}

// Observer receives outcome metrics.
type Observer interface {
	ObserveOrder(operation, mode, status string)
	ObserveFailures(codes []guardrail.FailureCode)
	ObserveAuditError()
}

type nopObserver struct{}

func (nopObserver) ObserveOrder(string, string, string)     {}
func (nopObserver) ObserveFailures([]guardrail.FailureCode) {}
func (nopObserver) ObserveAuditError()                      {}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(h *Harness) {
		h.observer = o
	}
}

// Harness guards every order mutation.
type Harness struct {
	live     bool
	eval     *guardrail.Evaluator
	orders   OrderAPI
	audit    audit.Recorder
	observer Observer
	logger   *slog.Logger
}

// New creates a Harness. It is dry-run unless live is true.
func New(live bool, eval *guardrail.Evaluator, orders OrderAPI, recorder audit.Recorder, opts ...Option) *Harness {
	h := &Harness{
		live:     live,
		eval:     eval,
		orders:   orders,
		audit:    recorder,
		observer: nopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Live reports whether orders are sent for real.
func (h *Harness) Live() bool {
	return h.live
}

// Place evaluates and, if every check passes, submits intent.
func (h *Harness) Place(ctx context.Context, intent model.OrderIntent) (out Outcome) {
	out.RiskUSD = intent.EstimatedRiskUSD()
	ev := h.newEvent(audit.OpCreate)
	ev.Ticker = intent.Ticker
	ev.Side = intent.Side
	ev.Action = intent.Action
	ev.Count = intent.Count
	ev.YesPriceCents = intent.PriceCents
	ev.EstimatedOrderRiskUSD = out.RiskUSD.InexactFloat64()
	ev.ClientOrderID = intent.ClientOrderID
	ev.ExpirationTS = intent.ExpirationTS

	defer h.finish(ctx, &ev, &out)

	out.Checks = h.eval.Evaluate(ctx, intent, h.live)
	if !out.Checks.Passed() {
		out.Status = StatusRejected
		out.Err = &SafetyError{Failures: out.Checks.Failures}
		return out
	}

	return h.submit(ctx, &out, func() (*model.OrderResponse, error) {
		return h.orders.CreateOrder(ctx, intent, !h.live)
	})
}

// CreateOrder is Place with an error-returning boundary: a *SafetyError on
// rejection, the submission error on failure.
func (h *Harness) CreateOrder(ctx context.Context, intent model.OrderIntent) (*model.OrderResponse, error) {
	out := h.Place(ctx, intent)
	return out.Order, out.Err
}

// Cancel cancels orderID. Only the kill switch and production gate apply.
func (h *Harness) Cancel(ctx context.Context, orderID string) (out Outcome) {
	ev := h.newEvent(audit.OpCancel)
	ev.OrderID = &orderID

	defer h.finish(ctx, &ev, &out)

	out.Checks = h.eval.EvaluateMutation(orderID, h.live)
	if !out.Checks.Passed() {
		out.Status = StatusRejected
		out.Err = &SafetyError{Failures: out.Checks.Failures}
		return out
	}

	return h.submit(ctx, &out, func() (*model.OrderResponse, error) {
		return h.orders.CancelOrder(ctx, orderID, !h.live)
	})
}

// CancelOrder is Cancel with an error-returning boundary.
func (h *Harness) CancelOrder(ctx context.Context, orderID string) (*model.OrderResponse, error) {
	out := h.Cancel(ctx, orderID)
	return out.Order, out.Err
}

// Amend changes a resting order. Only the kill switch and production gate
// apply, even though an amend can increase exposure.
func (h *Harness) Amend(ctx context.Context, req model.AmendRequest) (out Outcome) {
	intent := model.OrderIntent{Count: req.Count, PriceCents: req.PriceCents}
	out.RiskUSD = intent.EstimatedRiskUSD()

	ev := h.newEvent(audit.OpAmend)
	ev.OrderID = &req.OrderID
	ev.Ticker = req.Ticker
	ev.Side = req.Side
	ev.Action = req.Action
	ev.Count = req.Count
	ev.YesPriceCents = req.PriceCents
	ev.EstimatedOrderRiskUSD = out.RiskUSD.InexactFloat64()
	ev.ClientOrderID = req.ClientOrderID

	defer h.finish(ctx, &ev, &out)

	out.Checks = h.eval.EvaluateMutation(req.OrderID, h.live)
	if !out.Checks.Passed() {
		out.Status = StatusRejected
		out.Err = &SafetyError{Failures: out.Checks.Failures}
		return out
	}

	return h.submit(ctx, &out, func() (*model.OrderResponse, error) {
		return h.orders.AmendOrder(ctx, req, !h.live)
	})
}

// AmendOrder is Amend with an error-returning boundary.
func (h *Harness) AmendOrder(ctx context.Context, req model.AmendRequest) (*model.OrderResponse, error) {
	out := h.Amend(ctx, req)
	return out.Order, out.Err
}

// submit performs the exchange call. A context cancelled before the call
// places nothing.
func (h *Harness) submit(ctx context.Context, out *Outcome, call func() (*model.OrderResponse, error)) Outcome {
	if err := ctx.Err(); err != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("cancelled before submission: %w", err)
		return *out
	}

	resp, err := call()
	if err != nil {
		out.Status = StatusFailed
		out.Err = err
		return *out
	}

	out.Order = resp
	out.Status = StatusSimulated
	if h.live {
		out.Status = StatusSubmitted
	}
	return *out
}

func (h *Harness) newEvent(op audit.Operation) audit.Event {
	limits := h.eval.Limits()
	return audit.Event{
		Timestamp:       h.eval.Now(),
		Operation:       op,
		Mode:            audit.ModeFor(h.live),
		Environment:     limits.Environment,
		MaxOrderRiskUSD: limits.MaxOrderRiskUSD.InexactFloat64(),
	}
}

// finish runs on every exit path of a call, including panics from
// collaborators, and records the audit event exactly once.
func (h *Harness) finish(ctx context.Context, ev *audit.Event, out *Outcome) {
	p := recover()
	if p != nil {
		out.Status = StatusFailed
		out.Err = fmt.Errorf("order call panicked: %v", p)
	}

	ev.Checks = audit.ChecksFrom(out.Checks)
	if ev.Operation == audit.OpCreate {
		ev.OrderID = nil
		if out.Order != nil && out.Order.OrderID != "" {
			id := out.Order.OrderID
			ev.OrderID = &id
		}
	}
	if out.Err != nil {
		msg := out.Err.Error()
		ev.Error = &msg
	}

	if err := h.audit.Record(context.WithoutCancel(ctx), *ev); err != nil {
		h.observer.ObserveAuditError()
		h.logger.Error("audit write failed",
			"operation", ev.Operation,
			"client_order_id", ev.ClientOrderID,
			"err", err,
		)
	}

	h.observer.ObserveOrder(string(ev.Operation), string(ev.Mode), string(out.Status))
	h.observer.ObserveFailures(out.Checks.Failures)
	h.log(ev, out)

	if p != nil {
		panic(p)
	}
}

func (h *Harness) log(ev *audit.Event, out *Outcome) {
	attrs := []any{
		"operation", ev.Operation,
		"mode", ev.Mode,
		"environment", ev.Environment,
		"ticker", ev.Ticker,
		"status", out.Status,
		"risk_usd", out.RiskUSD.StringFixed(2),
	}
	if ev.OrderID != nil {
		attrs = append(attrs, "order_id", *ev.OrderID)
	}

	switch out.Status {
	case StatusRejected:
		h.logger.Warn("order blocked by guardrails", append(attrs, "failures", out.Checks.String())...)
	case StatusFailed:
		level := slog.LevelError
		if errors.Is(out.Err, context.Canceled) {
			level = slog.LevelWarn
		}
		h.logger.Log(context.Background(), level, "order call failed", append(attrs, "err", out.Err)...)
	default:
		h.logger.Info("order call completed", attrs...)
	}
}
