// Package poller periodically scores a watch list of markets.
//
// Each cycle scores every ticker with bounded concurrency and hands the
// analysis to a handler, typically the Prometheus gauges and the CLI printer.
package poller
