package stream

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// Valid bid prices in cents.
const (
	minCents = 1
	maxCents = 99
)

// book is the live state of one market. ready is closed by the first
// snapshot; a stale book has been replaced and must be looked up again.
type book struct {
	ready  chan struct{}
	seeded bool
	stale  bool
	yes    map[int]int // cents -> contracts
	no     map[int]int
}

func newBook() *book {
	return &book{
		ready: make(chan struct{}),
		yes:   make(map[int]int),
		no:    make(map[int]int),
	}
}

func (b *book) seed(yes, no []model.PriceLevel) {
	b.yes = make(map[int]int, len(yes))
	b.no = make(map[int]int, len(no))
	for _, l := range yes {
		if l.Quantity > 0 {
			b.yes[l.Price] += l.Quantity
		}
	}
	for _, l := range no {
		if l.Quantity > 0 {
			b.no[l.Price] += l.Quantity
		}
	}
	if !b.seeded {
		b.seeded = true
		close(b.ready)
	}
}

func (b *book) apply(side model.Side, price, delta int) {
	levels := b.yes
	if side == model.SideNo {
		levels = b.no
	}
	qty := levels[price] + delta
	if qty <= 0 {
		delete(levels, price)
		return
	}
	levels[price] = qty
}

func (b *book) orderbook(ticker string) model.Orderbook {
	return model.Orderbook{
		Ticker:    ticker,
		YesLevels: sortedLevels(b.yes),
		NoLevels:  sortedLevels(b.no),
	}
}

func sortedLevels(levels map[int]int) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(levels))
	for p, q := range levels {
		out = append(out, model.PriceLevel{Price: p, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price > out[j].Price })
	return out
}

// dollarsToCents converts "0.52" to 52. Sub-penny prices round down, which
// keeps a bid at or below what is actually resting.
func dollarsToCents(s string) (int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", s, err)
	}
	cents := int(d.Shift(2).Floor().IntPart())
	if cents < minCents || cents > maxCents {
		return 0, fmt.Errorf("price %q out of range", s)
	}
	return cents, nil
}

// parseDollarLevels converts [["0.52", 100], ...]. Malformed levels are dropped.
func parseDollarLevels(raw [][]interface{}) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		dollars, _ := lvl[0].(string)
		qty, _ := lvl[1].(float64)
		cents, err := dollarsToCents(dollars)
		if err != nil {
			continue
		}
		levels = append(levels, model.PriceLevel{Price: cents, Quantity: int(qty)})
	}
	return levels
}

// parseCentLevels converts [[52, 100], ...]. Malformed levels are dropped.
func parseCentLevels(raw [][]int) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 || lvl[0] < minCents || lvl[0] > maxCents {
			continue
		}
		levels = append(levels, model.PriceLevel{Price: lvl[0], Quantity: lvl[1]})
	}
	return levels
}

// snapshotLevels prefers the dollar levels when the message carries them.
func snapshotLevels(dollars [][]interface{}, cents [][]int) []model.PriceLevel {
	if len(dollars) > 0 {
		return parseDollarLevels(dollars)
	}
	return parseCentLevels(cents)
}
