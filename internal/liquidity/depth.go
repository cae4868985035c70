package liquidity

import (
	"math"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// DefaultDepthRadiusCents is the radius around the midpoint used by Score.
const DefaultDepthRadiusCents = 10

// DepthAnalysis summarizes resting size near the midpoint.
type DepthAnalysis struct {
	TotalContracts int     `json:"total_contracts"` // Raw contracts within radius
	WeightedScore  float64 `json:"weighted_score"`  // Sum of quantity * weight
	YesSideDepth   int     `json:"yes_side_depth"`  // YES bids within radius
	NoSideDepth    int     `json:"no_side_depth"`   // NO bids (implied YES asks) within radius
	ImbalanceRatio float64 `json:"imbalance_ratio"` // (yes - no) / max(total, 1)
}

// DepthScore weights every level within radiusCents of the midpoint by
// 1 - distance/(radius+1). A zero radius counts only levels at the midpoint,
// each with weight 1.
func DepthScore(book model.Orderbook, radiusCents int) DepthAnalysis {
	var out DepthAnalysis

	mid, ok := book.Midpoint()
	if !ok || radiusCents < 0 {
		return out
	}

	accumulate := func(yesPrice, qty int) (counted bool) {
		dist := math.Abs(float64(yesPrice) - mid)
		if qty <= 0 || dist > float64(radiusCents) {
			return false
		}
		weight := 1.0
		if radiusCents > 0 {
			weight = 1 - dist/float64(radiusCents+1)
		}
		out.TotalContracts += qty
		out.WeightedScore += float64(qty) * weight
		return true
	}

	for _, l := range book.YesLevels {
		if accumulate(l.Price, l.Quantity) {
			out.YesSideDepth += l.Quantity
		}
	}
	for _, l := range book.NoLevels {
		if accumulate(100-l.Price, l.Quantity) {
			out.NoSideDepth += l.Quantity
		}
	}

	out.ImbalanceRatio = float64(out.YesSideDepth-out.NoSideDepth) / float64(max(out.TotalContracts, 1))
	return out
}
