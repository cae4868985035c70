// Package api is the Kalshi REST client used by the trade guard.
//
// REST endpoints:
//   - Production: https://api.elections.kalshi.com/trade-api/v2
//   - Demo: https://demo-api.kalshi.co/trade-api/v2
//
// Market data reads are retried with backoff. Order mutations are sent at
// most once and are never sent at all when dryRun is set.
package api
