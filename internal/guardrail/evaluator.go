package guardrail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// Limits are the configured thresholds. Zero values disable the
// corresponding optional check, except MaxOrderRiskUSD which is always applied.
type Limits struct {
	Environment     model.Environment
	KillSwitch      bool
	AllowProduction bool

	MaxOrderRiskUSD        decimal.Decimal
	MaxOrdersPerDay        int
	MaxDailyLossUSD        decimal.Decimal
	MaxNotionalUSD         decimal.Decimal
	MaxPositionContracts   int
	MaxPriceDeviationCents int
	MaxSlippagePct         float64

	MinLiquidityGrade liquidity.Grade    // Empty disables the grade check
	LiquidityWeights  *liquidity.Weights // Nil uses liquidity.DefaultWeights

	RequireConfirmation bool

	// ProviderTimeout bounds each collaborator call. Zero means no extra bound.
	ProviderTimeout time.Duration
}

// Deps are the injected collaborators. A nil provider disables only the
// check that depends on it.
type Deps struct {
	Clock      func() time.Time
	Orders     OrderCounter
	Budget     BudgetTracker
	Positions  PositionProvider
	Orderbooks OrderbookProvider
	Markets    MarketProvider
	Confirm    ConfirmFunc
}

// Evaluator runs the guardrail pipeline.
type Evaluator struct {
	limits Limits
	deps   Deps
	logger *slog.Logger
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(limits Limits, deps Deps, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Evaluator{limits: limits, deps: deps, logger: logger}
}

// Limits returns the configured limits.
func (e *Evaluator) Limits() Limits {
	return e.limits
}

// Now returns the evaluator clock's current time.
func (e *Evaluator) Now() time.Time {
	return e.deps.Clock()
}

// Common runs the synchronous, I/O-free checks.
func (e *Evaluator) Common(intent model.OrderIntent) Result {
	var r Result
	if intent.Ticker == "" || !intent.Side.Valid() || !intent.Action.Valid() {
		r.add(InvalidOrderIntent)
	}
	if intent.PriceCents < 1 || intent.PriceCents > 99 {
		r.add(PriceOutOfBounds)
	}
	if intent.Count <= 0 {
		r.add(CountNotPositive)
	}
	if intent.EstimatedRiskUSD().GreaterThan(e.limits.MaxOrderRiskUSD) {
		r.add(MaxOrderRiskExceeded)
	}
	return r
}

// Evaluate runs the common checks and, when live is set, every live check.
// A failed common check stops the pipeline after the gates, before any I/O.
func (e *Evaluator) Evaluate(ctx context.Context, intent model.OrderIntent, live bool) Result {
	r := e.Common(intent)
	if !live {
		return r
	}

	invalid := !r.Passed()
	e.checkGates(&r)
	if invalid {
		// An order that can never be sent reaches no provider and no operator.
		return r
	}

	e.checkDailyOrders(ctx, &r)
	e.checkBudget(ctx, intent, &r)
	e.checkPosition(ctx, intent, &r)

	book, bookOK := e.checkOrderbook(ctx, intent, &r)
	if bookOK {
		e.checkLiquidity(ctx, intent.Ticker, book, &r)
	}

	e.checkConfirmation(ctx, intent, &r)
	return r
}

// EvaluateMutation applies the checks used for cancel and amend: the order
// id must be set, and when live only the kill switch and the production gate
// apply.
func (e *Evaluator) EvaluateMutation(orderID string, live bool) Result {
	var r Result
	if orderID == "" {
		r.add(InvalidOrderIntent)
	}
	if live {
		e.checkGates(&r)
	}
	return r
}

func (e *Evaluator) checkGates(r *Result) {
	if e.limits.KillSwitch {
		r.add(KillSwitchEnabled)
	}
	if e.limits.Environment == model.EnvProd && !e.limits.AllowProduction {
		r.add(ProductionTradingDisabled)
	}
}

func (e *Evaluator) checkDailyOrders(ctx context.Context, r *Result) {
	if e.limits.MaxOrdersPerDay <= 0 || e.deps.Orders == nil {
		return
	}

	ctx, cancel := e.providerContext(ctx)
	defer cancel()

	var n int
	err := recovered(func() (err error) {
		n, err = e.deps.Orders.CountLiveOrders(ctx, e.deps.Clock())
		return err
	})
	if err != nil {
		e.providerFailed("order counter", err)
		r.add(DailyOrderCountFailed)
		return
	}
	if n >= e.limits.MaxOrdersPerDay {
		r.add(MaxOrdersPerDayExceeded)
	}
}

func (e *Evaluator) checkBudget(ctx context.Context, intent model.OrderIntent, r *Result) {
	checkLoss := e.limits.MaxDailyLossUSD.IsPositive()
	checkNotional := e.limits.MaxNotionalUSD.IsPositive()
	if e.deps.Budget == nil || (!checkLoss && !checkNotional) {
		return
	}

	ctx, cancel := e.providerContext(ctx)
	defer cancel()

	if checkLoss {
		var loss float64
		err := recovered(func() (err error) {
			loss, err = e.deps.Budget.DailyLossUSD(ctx)
			return err
		})
		switch {
		case err != nil:
			e.providerFailed("budget tracker", err)
			r.add(BudgetTrackerFailed)
		case decimal.NewFromFloat(loss).GreaterThanOrEqual(e.limits.MaxDailyLossUSD):
			r.add(MaxDailyLossExceeded)
		}
	}

	if checkNotional {
		var spend float64
		err := recovered(func() (err error) {
			spend, err = e.deps.Budget.DailySpendUSD(ctx)
			return err
		})
		switch {
		case err != nil:
			e.providerFailed("budget tracker", err)
			r.add(BudgetTrackerFailed)
		case decimal.NewFromFloat(spend).Add(intent.EstimatedRiskUSD()).GreaterThan(e.limits.MaxNotionalUSD):
			r.add(MaxNotionalExceeded)
		}
	}
}

func (e *Evaluator) checkPosition(ctx context.Context, intent model.OrderIntent, r *Result) {
	if e.limits.MaxPositionContracts <= 0 || e.deps.Positions == nil {
		return
	}

	ctx, cancel := e.providerContext(ctx)
	defer cancel()

	var current int
	err := recovered(func() (err error) {
		current, err = e.deps.Positions.GetQuantity(ctx, intent.Ticker, intent.Side)
		return err
	})
	if err != nil {
		e.providerFailed("position provider", err)
		r.add(PositionProviderFailed)
		return
	}

	next := current + intent.Count
	if intent.Action == model.ActionSell {
		next = current - intent.Count
	}
	if abs(next) > e.limits.MaxPositionContracts {
		r.add(MaxPositionContractsExceeded)
	}
}

// checkOrderbook fetches the book once and runs the fat-finger and slippage
// checks against it. It reports whether a book was obtained.
func (e *Evaluator) checkOrderbook(ctx context.Context, intent model.OrderIntent, r *Result) (model.Orderbook, bool) {
	if e.deps.Orderbooks == nil {
		return model.Orderbook{}, false
	}

	book, err := e.fetchOrderbook(ctx, intent.Ticker)
	if err != nil {
		e.providerFailed("orderbook provider", err)
		r.add(OrderbookProviderFailed)
		return model.Orderbook{}, false
	}

	if e.limits.MaxPriceDeviationCents > 0 {
		if mid, ok := book.Midpoint(); ok {
			if math.Abs(float64(intent.PriceCents)-mid) > float64(e.limits.MaxPriceDeviationCents) {
				r.add(FatFingerDeviationExceeded)
			}
		}
	}

	if e.limits.MaxSlippagePct > 0 {
		_, err := liquidity.EnforceMaxSlippage(book, intent.Side, intent.Action, intent.Count, e.limits.MaxSlippagePct)
		if err != nil {
			e.logger.Debug("slippage check failed", "ticker", intent.Ticker, "err", err)
			r.add(SlippageLimitExceeded)
		}
	}

	return book, true
}

// fetchOrderbook treats context expiry as a failure even when the provider
// returned a book.
func (e *Evaluator) fetchOrderbook(ctx context.Context, ticker string) (book model.Orderbook, err error) {
	ctx, cancel := e.providerContext(ctx)
	defer cancel()

	err = recovered(func() (err error) {
		book, err = e.deps.Orderbooks.GetOrderbook(ctx, ticker)
		return err
	})
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return book, err
}

func (e *Evaluator) checkLiquidity(ctx context.Context, ticker string, book model.Orderbook, r *Result) {
	if e.limits.MinLiquidityGrade == "" || e.deps.Markets == nil {
		return
	}

	ctx, cancel := e.providerContext(ctx)
	defer cancel()

	var stats model.MarketStats
	err := recovered(func() (err error) {
		stats, err = e.deps.Markets.GetMarketStats(ctx, ticker)
		return err
	})
	if err != nil {
		e.providerFailed("market provider", err)
		r.add(LiquidityCheckFailed)
		return
	}
	if stats.Ticker == "" {
		stats.Ticker = ticker
	}

	analysis, err := liquidity.Score(stats, book, e.limits.LiquidityWeights)
	if err != nil {
		e.providerFailed("liquidity score", err)
		r.add(LiquidityCheckFailed)
		return
	}

	if !analysis.Grade.AtLeast(e.limits.MinLiquidityGrade) {
		e.logger.Info("liquidity grade below minimum",
			"ticker", ticker,
			"grade", analysis.Grade,
			"score", analysis.Score,
			"min_grade", e.limits.MinLiquidityGrade,
		)
		r.add(LiquidityGradeTooLow)
	}
}

func (e *Evaluator) checkConfirmation(ctx context.Context, intent model.OrderIntent, r *Result) {
	if !e.limits.RequireConfirmation {
		return
	}
	if e.deps.Confirm == nil {
		r.add(MissingConfirmationCallback)
		return
	}

	var ok bool
	err := recovered(func() (err error) {
		ok, err = e.deps.Confirm(ctx, e.ConfirmationSummary(intent))
		return err
	})
	if err != nil {
		e.logger.Warn("confirmation failed", "ticker", intent.Ticker, "err", err)
		r.add(ConfirmationDeclined)
		return
	}
	if !ok {
		r.add(ConfirmationDeclined)
	}
}

// ConfirmationSummary is the text shown to the human approving an order.
func (e *Evaluator) ConfirmationSummary(intent model.OrderIntent) string {
	return fmt.Sprintf("%s | max risk $%s | env=%s mode=live",
		intent.Summary(),
		intent.EstimatedRiskUSD().StringFixed(2),
		e.limits.Environment,
	)
}

func (e *Evaluator) providerContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.limits.ProviderTimeout > 0 {
		return context.WithTimeout(ctx, e.limits.ProviderTimeout)
	}
	return context.WithCancel(ctx)
}

func (e *Evaluator) providerFailed(provider string, err error) {
	level := slog.LevelWarn
	if errors.Is(err, context.Canceled) {
		level = slog.LevelInfo
	}
	e.logger.Log(context.Background(), level, "risk provider failed, blocking order",
		"provider", provider,
		"err", err,
	)
}

// recovered runs a collaborator call, turning a panic into an error so the
// check it guards fails closed.
func recovered(call func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("provider panic: %v", p)
		}
	}()
	return call()
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
