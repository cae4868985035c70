package guardrail

import (
	"context"
	"time"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// OrderbookProvider fetches the current book for a market.
type OrderbookProvider interface {
	GetOrderbook(ctx context.Context, ticker string) (model.Orderbook, error)
}

// MarketProvider fetches market-level statistics.
type MarketProvider interface {
	GetMarketStats(ctx context.Context, ticker string) (model.MarketStats, error)
}

// PositionProvider returns the contracts currently held on one side of a market.
type PositionProvider interface {
	GetQuantity(ctx context.Context, ticker string, side model.Side) (int, error)
}

// BudgetTracker reports today's spend and realized loss in USD.
type BudgetTracker interface {
	DailySpendUSD(ctx context.Context) (float64, error)
	DailyLossUSD(ctx context.Context) (float64, error)
}

// OrderCounter counts live order submissions recorded on the calendar day of
// day, in day's location.
type OrderCounter interface {
	CountLiveOrders(ctx context.Context, day time.Time) (int, error)
}

// ConfirmFunc asks a human to approve an order. Returning an error is treated
// the same as declining.
type ConfirmFunc func(ctx context.Context, summary string) (bool, error)
