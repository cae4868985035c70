// Package liquidity analyzes bid-only binary orderbooks.
//
// Both sides are projected onto a single YES-price axis before anything is
// measured: a NO bid at p is a YES ask at 100-p. Executable prices for an
// order are expressed on the order's own side.
//
// Operations:
//   - DepthScore: distance-weighted depth around the midpoint
//   - EstimateSlippage / EnforceMaxSlippage: walk levels for a given size
//   - MaxSafeOrderSize: largest fully fillable buy within a slippage budget
//   - Score: composite 0-100 score and grade
package liquidity
