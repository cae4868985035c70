package liquidity

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// DefaultSafeSlippageCents is the slippage budget used for MaxSafeSizeYes/No.
const DefaultSafeSlippageCents = 2

// Warning thresholds.
const (
	wideSpreadCents    = 10
	thinBookContracts  = 100
	imbalanceThreshold = 0.5
	lowVolume24h       = 1000
)

// ErrInvalidWeights is returned when score weights do not sum to 1.0.
var ErrInvalidWeights = errors.New("liquidity weights must sum to 1.0")

// Grade is a categorical liquidity bucket.
type Grade string

const (
	GradeIlliquid Grade = "illiquid"
	GradeThin     Grade = "thin"
	GradeModerate Grade = "moderate"
	GradeLiquid   Grade = "liquid"
)

// Rank orders grades from illiquid (0) to liquid (3). Unknown grades rank -1.
func (g Grade) Rank() int {
	switch g {
	case GradeIlliquid:
		return 0
	case GradeThin:
		return 1
	case GradeModerate:
		return 2
	case GradeLiquid:
		return 3
	}
	return -1
}

// AtLeast reports whether g is at least as liquid as floor.
func (g Grade) AtLeast(floor Grade) bool {
	return g.Rank() >= floor.Rank()
}

// ParseGrade parses a grade name (case-insensitive).
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToLower(strings.TrimSpace(s)))
	if g.Rank() < 0 {
		return "", fmt.Errorf("invalid liquidity grade %q", s)
	}
	return g, nil
}

// GradeForScore maps a 0-100 score to a grade.
func GradeForScore(score int) Grade {
	switch {
	case score >= 76:
		return GradeLiquid
	case score >= 51:
		return GradeModerate
	case score >= 26:
		return GradeThin
	}
	return GradeIlliquid
}

// Weights control the composite score. They must sum to 1.0.
type Weights struct {
	Spread       float64 `json:"spread" yaml:"spread"`
	Depth        float64 `json:"depth" yaml:"depth"`
	Volume       float64 `json:"volume" yaml:"volume"`
	OpenInterest float64 `json:"open_interest" yaml:"open_interest"`
}

// DefaultWeights returns 0.30/0.30/0.20/0.20.
func DefaultWeights() Weights {
	return Weights{Spread: 0.30, Depth: 0.30, Volume: 0.20, OpenInterest: 0.20}
}

// Validate checks that the weights are non-negative and sum to 1.0.
func (w Weights) Validate() error {
	if w.Spread < 0 || w.Depth < 0 || w.Volume < 0 || w.OpenInterest < 0 {
		return fmt.Errorf("%w: negative weight", ErrInvalidWeights)
	}
	sum := w.Spread + w.Depth + w.Volume + w.OpenInterest
	if math.Abs(sum-1) > 1e-6 {
		return fmt.Errorf("%w: got %.4f", ErrInvalidWeights, sum)
	}
	return nil
}

// Components are the 0-100 sub-scores behind a composite score.
type Components struct {
	Spread       float64 `json:"spread"`
	Depth        float64 `json:"depth"`
	Volume       float64 `json:"volume"`
	OpenInterest float64 `json:"open_interest"`
}

// Analysis is the full liquidity report for one market.
type Analysis struct {
	Ticker         string        `json:"ticker"`
	Score          int           `json:"score"`
	Grade          Grade         `json:"grade"`
	Components     Components    `json:"components"`
	Depth          DepthAnalysis `json:"depth"`
	MaxSafeSizeYes int           `json:"max_safe_size_yes"`
	MaxSafeSizeNo  int           `json:"max_safe_size_no"`
	Warnings       []string      `json:"warnings"`
}

// Score computes the composite liquidity score. A nil weights pointer uses
// DefaultWeights.
func Score(market model.MarketStats, book model.Orderbook, weights *Weights) (Analysis, error) {
	w := DefaultWeights()
	if weights != nil {
		w = *weights
	}
	if err := w.Validate(); err != nil {
		return Analysis{}, err
	}

	depth := DepthScore(book, DefaultDepthRadiusCents)
	spread, hasSpread := book.Spread()

	comp := Components{
		Spread:       spreadScore(spread, hasSpread),
		Depth:        math.Min(100, depth.WeightedScore/10),
		Volume:       logScore(market.Volume24h),
		OpenInterest: logScore(market.OpenInterest),
	}

	raw := w.Spread*comp.Spread + w.Depth*comp.Depth + w.Volume*comp.Volume + w.OpenInterest*comp.OpenInterest
	score := int(math.Max(0, math.Min(100, raw)))

	a := Analysis{
		Ticker:         market.Ticker,
		Score:          score,
		Grade:          GradeForScore(score),
		Components:     comp,
		Depth:          depth,
		MaxSafeSizeYes: MaxSafeOrderSize(book, model.SideYes, DefaultSafeSlippageCents),
		MaxSafeSizeNo:  MaxSafeOrderSize(book, model.SideNo, DefaultSafeSlippageCents),
		Warnings:       []string{},
	}

	switch {
	case !hasSpread:
		a.Warnings = append(a.Warnings, "one-sided or empty book: spread unavailable")
	case spread > wideSpreadCents:
		a.Warnings = append(a.Warnings, fmt.Sprintf("wide spread: %dc", spread))
	}
	if depth.TotalContracts < thinBookContracts {
		a.Warnings = append(a.Warnings, fmt.Sprintf("thin book: %d contracts within %dc of mid",
			depth.TotalContracts, DefaultDepthRadiusCents))
	}
	if math.Abs(depth.ImbalanceRatio) > imbalanceThreshold {
		toward := "YES"
		if depth.ImbalanceRatio < 0 {
			toward = "NO"
		}
		a.Warnings = append(a.Warnings, fmt.Sprintf("book imbalance %.2f toward %s", depth.ImbalanceRatio, toward))
	}
	if market.Volume24h < lowVolume24h {
		a.Warnings = append(a.Warnings, fmt.Sprintf("low 24h volume: %d", market.Volume24h))
	}
	if a.Grade == GradeIlliquid {
		a.Warnings = append(a.Warnings, "market graded illiquid")
	}

	return a, nil
}

// spreadScore is 100 at a 1c spread and loses 5 points per extra cent.
func spreadScore(spread int, ok bool) float64 {
	if !ok {
		return 0
	}
	if spread <= 1 {
		return 100
	}
	return math.Max(0, 100-float64(spread-1)*5)
}

// logScore maps 0 -> 0 and 100k+ -> 100 on a log10 scale.
func logScore(v int64) float64 {
	if v <= 0 {
		return 0
	}
	return math.Min(100, 20*math.Log10(float64(v)+1))
}
