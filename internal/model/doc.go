// Package model defines shared data types used across the trade guard.
//
// Conventions:
//   - Prices: integer cents on the YES axis (1-99); a NO bid at p implies a YES ask at 100-p
//   - Quantities: whole contracts
//   - USD amounts: shopspring/decimal in arithmetic, float64 at serialization edges
package model
