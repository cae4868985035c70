package liquidity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/rickgao/kalshi-guard/internal/model"
)

var (
	// ErrCannotFill means the book cannot absorb the full quantity.
	ErrCannotFill = errors.New("insufficient liquidity to fill order")

	// ErrSlippageExceeded means the fill would exceed the slippage budget.
	ErrSlippageExceeded = errors.New("slippage limit exceeded")
)

// SlippageEstimate is the result of walking the book for one order.
// Prices are in cents on the order's own side.
type SlippageEstimate struct {
	BestPrice         int     `json:"best_price"`
	AvgFillPrice      float64 `json:"avg_fill_price"`
	WorstPrice        int     `json:"worst_price"`
	SlippageCents     float64 `json:"slippage_cents"`
	SlippagePct       float64 `json:"slippage_pct"`
	FillableQuantity  int     `json:"fillable_quantity"`
	RemainingUnfilled int     `json:"remaining_unfilled"`
	LevelsCrossed     int     `json:"levels_crossed"`
}

// SlippageError is returned by EnforceMaxSlippage. It matches ErrCannotFill
// or ErrSlippageExceeded via errors.Is.
type SlippageError struct {
	Estimate SlippageEstimate
	MaxPct   float64
	reason   error
}

func (e *SlippageError) Error() string {
	if errors.Is(e.reason, ErrCannotFill) {
		return fmt.Sprintf("%v: %d of %d contracts unfilled",
			e.reason, e.Estimate.RemainingUnfilled, e.Estimate.FillableQuantity+e.Estimate.RemainingUnfilled)
	}
	return fmt.Sprintf("%v: %.2f%% > %.2f%%", e.reason, e.Estimate.SlippagePct, e.MaxPct)
}

func (e *SlippageError) Unwrap() error {
	return e.reason
}

// ExecutableLevels returns the levels an order would trade against, best first.
// Buys lift the implied asks from the opposite side's bids (ascending); sells
// hit the order side's own bids (descending).
func ExecutableLevels(book model.Orderbook, side model.Side, action model.Action) []model.PriceLevel {
	own, opposite := book.YesLevels, book.NoLevels
	if side == model.SideNo {
		own, opposite = book.NoLevels, book.YesLevels
	}

	if action == model.ActionSell {
		return model.SortedDesc(own)
	}

	asks := make([]model.PriceLevel, 0, len(opposite))
	for _, l := range opposite {
		if l.Quantity > 0 {
			asks = append(asks, model.PriceLevel{Price: 100 - l.Price, Quantity: l.Quantity})
		}
	}
	sort.SliceStable(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	return asks
}

// EstimateSlippage walks the executable levels until quantity is filled or
// the book is exhausted. Any unfilled remainder is reported.
func EstimateSlippage(book model.Orderbook, side model.Side, action model.Action, quantity int) SlippageEstimate {
	return walk(ExecutableLevels(book, side, action), action, quantity)
}

func walk(levels []model.PriceLevel, action model.Action, quantity int) SlippageEstimate {
	est := SlippageEstimate{RemainingUnfilled: max(quantity, 0)}
	if len(levels) == 0 {
		return est
	}

	est.BestPrice = levels[0].Price
	est.WorstPrice = levels[0].Price

	var cost int
	remaining := est.RemainingUnfilled
	for _, l := range levels {
		if remaining == 0 {
			break
		}
		take := min(remaining, l.Quantity)
		cost += take * l.Price
		est.FillableQuantity += take
		est.WorstPrice = l.Price
		est.LevelsCrossed++
		remaining -= take
	}
	est.RemainingUnfilled = remaining

	if est.FillableQuantity == 0 {
		return est
	}

	est.AvgFillPrice = float64(cost) / float64(est.FillableQuantity)
	if action == model.ActionSell {
		est.SlippageCents = float64(est.BestPrice) - est.AvgFillPrice
	} else {
		est.SlippageCents = est.AvgFillPrice - float64(est.BestPrice)
	}
	est.SlippageCents = max(est.SlippageCents, 0)
	if est.BestPrice > 0 {
		est.SlippagePct = est.SlippageCents / float64(est.BestPrice) * 100
	}
	return est
}

// EnforceMaxSlippage fails when the order cannot be filled in full or the
// average fill drifts more than maxSlippagePct from the best price.
func EnforceMaxSlippage(book model.Orderbook, side model.Side, action model.Action, quantity int, maxSlippagePct float64) (SlippageEstimate, error) {
	est := EstimateSlippage(book, side, action, quantity)
	if est.RemainingUnfilled > 0 {
		return est, &SlippageError{Estimate: est, MaxPct: maxSlippagePct, reason: ErrCannotFill}
	}
	if est.SlippagePct > maxSlippagePct {
		return est, &SlippageError{Estimate: est, MaxPct: maxSlippagePct, reason: ErrSlippageExceeded}
	}
	return est, nil
}

// MaxSafeOrderSize binary-searches the largest buy on side that fills in full
// with at most maxSlippageCents of slippage. Returns 0 when nothing is safe.
func MaxSafeOrderSize(book model.Orderbook, side model.Side, maxSlippageCents float64) int {
	levels := ExecutableLevels(book, side, model.ActionBuy)

	hi := 0
	for _, l := range levels {
		hi += l.Quantity
	}

	lo, best := 1, 0
	for lo <= hi {
		mid := lo + (hi-lo)/2
		est := walk(levels, model.ActionBuy, mid)
		if est.RemainingUnfilled == 0 && est.SlippageCents <= maxSlippageCents {
			best = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}
