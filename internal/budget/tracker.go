package budget

import (
	"context"
	"fmt"
	"time"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// DefaultLookback is how far back fills are read to build cost basis.
const DefaultLookback = 30 * 24 * time.Hour

// Source lists our portfolio activity. *api.Client implements it.
type Source interface {
	GetFills(ctx context.Context, start, end time.Time) ([]model.Fill, error)
	GetSettlements(ctx context.Context, start, end time.Time) ([]model.Settlement, error)
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLookback sets the cost-basis window before today.
func WithLookback(d time.Duration) Option {
	return func(t *Tracker) {
		if d >= 0 {
			t.lookback = d
		}
	}
}

// Tracker implements guardrail.BudgetTracker over a Source.
type Tracker struct {
	source   Source
	clock    func() time.Time
	lookback time.Duration
}

// NewTracker creates a tracker. clock determines "today" and its time zone;
// nil uses time.Now.
func NewTracker(source Source, clock func() time.Time, opts ...Option) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	t := &Tracker{source: source, clock: clock, lookback: DefaultLookback}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// DailySpendUSD returns the cost of today's buys.
func (t *Tracker) DailySpendUSD(ctx context.Context) (float64, error) {
	now := t.clock()
	start, end := model.DayBounds(now)

	fills, err := t.source.GetFills(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("list fills: %w", err)
	}
	return Spend(fills, now).InexactFloat64(), nil
}

// DailyLossUSD returns today's realized loss as a non-negative number.
func (t *Tracker) DailyLossUSD(ctx context.Context) (float64, error) {
	now := t.clock()
	start, end := model.DayBounds(now)

	fills, err := t.source.GetFills(ctx, start.Add(-t.lookback), end)
	if err != nil {
		return 0, fmt.Errorf("list fills: %w", err)
	}
	settlements, err := t.source.GetSettlements(ctx, start, end)
	if err != nil {
		return 0, fmt.Errorf("list settlements: %w", err)
	}

	pnl := RealizedPnL(fills, now).Add(SettledPnL(settlements, now))
	if pnl.IsNegative() {
		return pnl.Neg().InexactFloat64(), nil
	}
	return 0, nil
}
