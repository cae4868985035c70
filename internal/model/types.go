package model

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Order Types
// -----------------------------------------------------------------------------

// Environment identifies which exchange deployment orders go to.
type Environment string

const (
	EnvDemo Environment = "demo"
	EnvProd Environment = "prod"
)

// ParseEnvironment accepts demo/prod (and "production" as an alias).
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "demo":
		return EnvDemo, nil
	case "prod", "production":
		return EnvProd, nil
	}
	return "", fmt.Errorf("invalid environment %q", s)
}

// Side is the contract side of an order.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Opposite returns the other contract side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// Valid reports whether s is yes or no.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Action is the direction of an order.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Valid reports whether a is buy or sell.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell
}

// ParseSide parses "yes"/"no" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideYes:
		return SideYes, nil
	case SideNo:
		return SideNo, nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// ParseAction parses "buy"/"sell" (case-insensitive).
func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionBuy:
		return ActionBuy, nil
	case ActionSell:
		return ActionSell, nil
	}
	return "", fmt.Errorf("invalid action %q", s)
}

// OrderIntent is a proposed limit order. It is passed by value and never
// modified after construction.
type OrderIntent struct {
	Ticker        string // Market ticker
	Side          Side   // yes or no
	Action        Action // buy or sell
	Count         int    // Number of contracts
	PriceCents    int    // Limit price on the YES axis (1-99)
	ClientOrderID string // Caller idempotency key
	ExpirationTS  *int64 // Optional expiry (unix seconds)
}

// NewClientOrderID returns a fresh client order id.
func NewClientOrderID() string {
	return uuid.NewString()
}

// EstimatedRiskUSD is the worst-case dollar loss of the order:
// count * max(price, 100-price) / 100.
func (o OrderIntent) EstimatedRiskUSD() decimal.Decimal {
	worst := max(o.PriceCents, 100-o.PriceCents)
	return decimal.NewFromInt(int64(o.Count)).
		Mul(decimal.NewFromInt(int64(worst))).
		Div(decimal.NewFromInt(100))
}

// Summary renders a one-line human readable description.
func (o OrderIntent) Summary() string {
	return fmt.Sprintf("%s %d %s %s @ %dc",
		strings.ToUpper(string(o.Action)),
		o.Count,
		strings.ToUpper(string(o.Side)),
		o.Ticker,
		o.PriceCents,
	)
}

// AmendRequest describes a change to a resting order.
type AmendRequest struct {
	OrderID       string
	Ticker        string
	Side          Side
	Action        Action
	Count         int
	PriceCents    int // YES axis
	ClientOrderID string
}

// OrderResponse is what the exchange (or the dry-run simulator) returned.
type OrderResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	DryRun  bool   `json:"dry_run"`
}

// -----------------------------------------------------------------------------
// Market Data Types
// -----------------------------------------------------------------------------

// PriceLevel represents a single bid level in an orderbook.
type PriceLevel struct {
	Price    int // Price in cents on this level's own side
	Quantity int // Contracts resting at this price
}

// Orderbook is a bid-only book: YES bids and NO bids, each in its own side's cents.
type Orderbook struct {
	Ticker    string
	YesLevels []PriceLevel
	NoLevels  []PriceLevel
}

// BestYesBid returns the highest YES bid.
func (b Orderbook) BestYesBid() (int, bool) {
	return bestBid(b.YesLevels)
}

// BestNoBid returns the highest NO bid.
func (b Orderbook) BestNoBid() (int, bool) {
	return bestBid(b.NoLevels)
}

// BestYesAsk is the YES ask implied by the best NO bid (100 - no_bid).
func (b Orderbook) BestYesAsk() (int, bool) {
	noBid, ok := b.BestNoBid()
	if !ok {
		return 0, false
	}
	return 100 - noBid, true
}

// Spread returns BestYesAsk - BestYesBid. Requires both sides.
func (b Orderbook) Spread() (int, bool) {
	bid, okBid := b.BestYesBid()
	ask, okAsk := b.BestYesAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// Midpoint returns the YES-axis midpoint. With one side present the best
// price of that side is used.
func (b Orderbook) Midpoint() (float64, bool) {
	bid, okBid := b.BestYesBid()
	ask, okAsk := b.BestYesAsk()
	switch {
	case okBid && okAsk:
		return float64(bid+ask) / 2, true
	case okBid:
		return float64(bid), true
	case okAsk:
		return float64(ask), true
	}
	return 0, false
}

// Empty reports whether the book has no resting quantity.
func (b Orderbook) Empty() bool {
	return totalQuantity(b.YesLevels) == 0 && totalQuantity(b.NoLevels) == 0
}

// SortedDesc returns a copy of levels sorted by price, highest first,
// with non-positive quantities dropped.
func SortedDesc(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	for _, l := range levels {
		if l.Quantity > 0 {
			out = append(out, l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}

func bestBid(levels []PriceLevel) (int, bool) {
	best, ok := 0, false
	for _, l := range levels {
		if l.Quantity <= 0 {
			continue
		}
		if !ok || l.Price > best {
			best, ok = l.Price, true
		}
	}
	return best, ok
}

func totalQuantity(levels []PriceLevel) int {
	total := 0
	for _, l := range levels {
		if l.Quantity > 0 {
			total += l.Quantity
		}
	}
	return total
}

// MarketStats holds the market-level inputs to liquidity scoring.
type MarketStats struct {
	Ticker       string
	Status       string
	Volume24h    int64 // 24-hour volume in contracts
	OpenInterest int64 // Open interest in contracts
}

// -----------------------------------------------------------------------------
// Portfolio Types
// -----------------------------------------------------------------------------

// Fill is one execution of one of our orders.
type Fill struct {
	TradeID       string
	OrderID       string
	Ticker        string
	Side          Side
	Action        Action
	Count         int
	YesPriceCents int
	CreatedAt     time.Time
}

// PriceCents is the price paid or received per contract on the fill's own side.
func (f Fill) PriceCents() int {
	if f.Side == SideNo {
		return 100 - f.YesPriceCents
	}
	return f.YesPriceCents
}

// Settlement is the payout of a position held when its market settled.
type Settlement struct {
	Ticker       string
	Result       string // yes, no, or void
	RevenueCents int64  // Payout received
	CostCents    int64  // Total cost of the YES and NO contracts held
	SettledAt    time.Time
}
