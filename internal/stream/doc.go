// Package stream keeps live orderbooks for a fixed set of markets from the
// Kalshi WebSocket feed.
//
// A Books subscribes to the orderbook_delta channel, seeds each market from
// its orderbook_snapshot and applies deltas in sequence order. A sequence gap
// or a dropped connection invalidates every book until the reconnect brings
// fresh snapshots, so readers never see a book that may have missed updates.
package stream
