package api

import (
	"github.com/rickgao/kalshi-guard/internal/model"
)

// ToModel converts the wire orderbook. Malformed levels are dropped.
func (o *APIOrderbook) ToModel(ticker string) model.Orderbook {
	return model.Orderbook{
		Ticker:    ticker,
		YesLevels: toLevels(o.Yes),
		NoLevels:  toLevels(o.No),
	}
}

func toLevels(raw [][]int) []model.PriceLevel {
	levels := make([]model.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		levels = append(levels, model.PriceLevel{Price: lvl[0], Quantity: lvl[1]})
	}
	return levels
}

// ToStats extracts the liquidity inputs of a market.
func (m *APIMarket) ToStats() model.MarketStats {
	return model.MarketStats{
		Ticker:       m.Ticker,
		Status:       m.Status,
		Volume24h:    m.Volume24h,
		OpenInterest: m.OpenInterest,
	}
}

func (o *APIOrder) toResponse() *model.OrderResponse {
	return &model.OrderResponse{OrderID: o.OrderID, Status: o.Status}
}

// SideQuantity returns the contracts held on side given a signed position.
func SideQuantity(position int, side model.Side) int {
	switch {
	case side == model.SideYes && position > 0:
		return position
	case side == model.SideNo && position < 0:
		return -position
	}
	return 0
}

// ToModel converts a fill. The price is kept on the YES axis.
func (f *APIFill) ToModel() model.Fill {
	yes := f.YesPrice
	if yes == 0 && f.NoPrice > 0 {
		yes = 100 - f.NoPrice
	}
	return model.Fill{
		TradeID:       f.TradeID,
		OrderID:       f.OrderID,
		Ticker:        f.Ticker,
		Side:          model.Side(f.Side),
		Action:        model.Action(f.Action),
		Count:         f.Count,
		YesPriceCents: yes,
		CreatedAt:     f.CreatedTime,
	}
}

// ToModel converts a settlement.
func (s *APISettlement) ToModel() model.Settlement {
	return model.Settlement{
		Ticker:       s.Ticker,
		Result:       s.MarketResult,
		RevenueCents: s.Revenue,
		CostCents:    s.YesTotalCost + s.NoTotalCost,
		SettledAt:    s.SettledTime,
	}
}
