// Package budget reports today's spend and realized loss from the
// exchange's own record of our fills and settlements.
//
// Positions are tracked per market on the YES axis, as the exchange nets
// them: buying NO reduces a YES position and selling NO adds to it. Cost
// basis is the running average price, built from a lookback window of fills
// so that positions opened on earlier days close against a real basis.
package budget
