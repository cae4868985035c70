package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/version"
)

// Metrics records harness outcomes and liquidity snapshots. It satisfies
// harness.Observer and poller.AnalysisHandler.
type Metrics struct {
	orders      *prometheus.CounterVec
	failures    *prometheus.CounterVec
	auditErrors prometheus.Counter
	buildInfo   *prometheus.GaugeVec
	liquidity   *prometheus.GaugeVec
	maxSafeSize *prometheus.GaugeVec
	registerer  prometheus.Registerer
	gatherer    prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) (*Metrics, error) {
	m := &Metrics{
		orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshi_guard_orders_total",
				Help: "Order mutations by operation, mode and outcome.",
			},
			[]string{"operation", "mode", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kalshi_guard_guardrail_failures_total",
				Help: "Guardrail failures by code.",
			},
			[]string{"code"},
		),
		auditErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kalshi_guard_audit_write_errors_total",
				Help: "Audit events that could not be recorded.",
			},
		),
		buildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kalshi_guard_build_info",
				Help: "Build version, always 1.",
			},
			[]string{"version", "commit"},
		),
		liquidity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kalshi_guard_liquidity_score",
				Help: "Latest composite liquidity score (0-100) per watched market.",
			},
			[]string{"ticker"},
		),
		maxSafeSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kalshi_guard_max_safe_size_contracts",
				Help: "Largest buy fillable within the default slippage budget.",
			},
			[]string{"ticker", "side"},
		),
		registerer: reg,
		gatherer:   reg,
	}

	collectors := []prometheus.Collector{m.orders, m.failures, m.auditErrors, m.buildInfo, m.liquidity, m.maxSafeSize}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	m.buildInfo.WithLabelValues(version.Version, version.Commit).Set(1)

	return m, nil
}

// ObserveOrder counts one harness call.
func (m *Metrics) ObserveOrder(operation, mode, status string) {
	m.orders.WithLabelValues(operation, mode, status).Inc()
}

// ObserveFailures counts each failed guardrail.
func (m *Metrics) ObserveFailures(codes []guardrail.FailureCode) {
	for _, c := range codes {
		m.failures.WithLabelValues(string(c)).Inc()
	}
}

// ObserveAuditError counts a failed audit write.
func (m *Metrics) ObserveAuditError() {
	m.auditErrors.Inc()
}

// HandleAnalysis publishes the latest liquidity analysis of a market.
func (m *Metrics) HandleAnalysis(a liquidity.Analysis) {
	m.liquidity.WithLabelValues(a.Ticker).Set(float64(a.Score))
	m.maxSafeSize.WithLabelValues(a.Ticker, "yes").Set(float64(a.MaxSafeSizeYes))
	m.maxSafeSize.WithLabelValues(a.Ticker, "no").Set(float64(a.MaxSafeSizeNo))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.gatherer)
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{Registry: m.registerer})
}
