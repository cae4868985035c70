package budget

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-guard/internal/model"
)

var hundred = decimal.NewFromInt(100)

// Spend sums count * own-side price over buys created on the calendar day
// of day, in USD.
func Spend(fills []model.Fill, day time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, f := range fills {
		if f.Action != model.ActionBuy || !model.OnDay(f.CreatedAt, day) {
			continue
		}
		total = total.Add(decimal.NewFromInt(int64(f.Count) * int64(f.PriceCents())))
	}
	return total.Div(hundred)
}

// position is a net YES position and its average YES price in cents.
type position struct {
	qty   int64 // > 0 long YES, < 0 long NO
	basis decimal.Decimal
}

// RealizedPnL replays fills in time order and sums, in USD, the profit of
// every contract closed by a fill created on the calendar day of day.
// Earlier fills only build the position and its basis.
func RealizedPnL(fills []model.Fill, day time.Time) decimal.Decimal {
	ordered := make([]model.Fill, len(fills))
	copy(ordered, fills)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].CreatedAt.Before(ordered[j].CreatedAt)
	})

	positions := make(map[string]*position)
	pnl := decimal.Zero

	for _, f := range ordered {
		if f.Count <= 0 {
			continue
		}
		p := positions[f.Ticker]
		if p == nil {
			p = &position{}
			positions[f.Ticker] = p
		}

		realized := p.apply(yesDelta(f), decimal.NewFromInt(int64(f.YesPriceCents)))
		if model.OnDay(f.CreatedAt, day) {
			pnl = pnl.Add(realized)
		}
	}

	return pnl.Div(hundred)
}

// apply adds delta YES contracts at price and returns the realized profit
// in cents of whatever it closed.
func (p *position) apply(delta int64, price decimal.Decimal) decimal.Decimal {
	if p.qty == 0 || (p.qty > 0) == (delta > 0) {
		held := decimal.NewFromInt(abs(p.qty))
		added := decimal.NewFromInt(abs(delta))
		p.basis = p.basis.Mul(held).Add(price.Mul(added)).Div(held.Add(added))
		p.qty += delta
		return decimal.Zero
	}

	closed := min(abs(delta), abs(p.qty))
	perContract := price.Sub(p.basis) // long YES sold at price
	if p.qty < 0 {
		perContract = p.basis.Sub(price) // long NO closed by buying YES at price
	}
	realized := perContract.Mul(decimal.NewFromInt(closed))

	remaining := abs(delta) - closed
	switch {
	case remaining > 0:
		p.qty = sign(delta) * remaining
		p.basis = price
	default:
		p.qty += delta
		if p.qty == 0 {
			p.basis = decimal.Zero
		}
	}
	return realized
}

// SettledPnL sums revenue minus cost of the day's settlements, in USD.
func SettledPnL(settlements []model.Settlement, day time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, s := range settlements {
		if !model.OnDay(s.SettledAt, day) {
			continue
		}
		total = total.Add(decimal.NewFromInt(s.RevenueCents - s.CostCents))
	}
	return total.Div(hundred)
}

// yesDelta maps a fill onto the YES axis: buying YES or selling NO adds YES.
func yesDelta(f model.Fill) int64 {
	n := int64(f.Count)
	if (f.Side == model.SideYes) == (f.Action == model.ActionBuy) {
		return n
	}
	return -n
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int64) int64 {
	if n < 0 {
		return -1
	}
	return 1
}
