package metrics

import (
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/liquidity"
)

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := New(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func TestObserveOrder(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveOrder("create", "live", "submitted")
	m.ObserveOrder("create", "live", "submitted")
	m.ObserveOrder("cancel", "dry_run", "simulated")

	if got := testutil.ToFloat64(m.orders.WithLabelValues("create", "live", "submitted")); got != 2 {
		t.Errorf("create/live/submitted = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.orders.WithLabelValues("cancel", "dry_run", "simulated")); got != 1 {
		t.Errorf("cancel/dry_run/simulated = %v, want 1", got)
	}
}

func TestObserveFailures(t *testing.T) {
	m := newTestMetrics(t)

	m.ObserveFailures([]guardrail.FailureCode{guardrail.KillSwitchEnabled, guardrail.ProductionTradingDisabled})
	m.ObserveFailures([]guardrail.FailureCode{guardrail.KillSwitchEnabled})
	m.ObserveFailures(nil)

	if got := testutil.ToFloat64(m.failures.WithLabelValues("kill_switch_enabled")); got != 2 {
		t.Errorf("kill_switch_enabled = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.failures); got != 2 {
		t.Errorf("series = %d, want 2", got)
	}
}

func TestObserveAuditError(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveAuditError()

	want := `
# HELP kalshi_guard_audit_write_errors_total Audit events that could not be recorded.
# TYPE kalshi_guard_audit_write_errors_total counter
kalshi_guard_audit_write_errors_total 1
`
	if err := testutil.CollectAndCompare(m.auditErrors, strings.NewReader(want)); err != nil {
		t.Error(err)
	}
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := New(reg); err != nil {
		t.Fatalf("first New() error = %v", err)
	}
	if _, err := New(reg); err == nil {
		t.Error("second New() on the same registry should fail")
	}
}

func TestHandler(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveOrder("create", "dry_run", "rejected")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`kalshi_guard_orders_total{mode="dry_run",operation="create",outcome="rejected"} 1`,
		`kalshi_guard_build_info{commit="unknown",version="dev"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestWriteTextfile(t *testing.T) {
	m := newTestMetrics(t)
	m.ObserveAuditError()

	path := filepath.Join(t.TempDir(), "guard.prom")
	if err := m.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "kalshi_guard_audit_write_errors_total 1") {
		t.Errorf("textfile = %s", data)
	}
}

func TestHandleAnalysis(t *testing.T) {
	m := newTestMetrics(t)
	m.HandleAnalysis(liquidity.Analysis{Ticker: "KXTEST-24", Score: 63, MaxSafeSizeYes: 120, MaxSafeSizeNo: 80})
	m.HandleAnalysis(liquidity.Analysis{Ticker: "KXTEST-24", Score: 70, MaxSafeSizeYes: 150, MaxSafeSizeNo: 80})

	if got := testutil.ToFloat64(m.liquidity.WithLabelValues("KXTEST-24")); got != 70 {
		t.Errorf("liquidity score = %v, want 70", got)
	}
	if got := testutil.ToFloat64(m.maxSafeSize.WithLabelValues("KXTEST-24", "yes")); got != 150 {
		t.Errorf("max safe yes = %v, want 150", got)
	}
}
