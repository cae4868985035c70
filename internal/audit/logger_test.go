package audit

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func testEvent(ts time.Time, mode Mode) Event {
	return Event{
		Timestamp:             ts,
		Operation:             OpCreate,
		Mode:                  mode,
		Environment:           "demo",
		Ticker:                "KXTEST-24",
		Side:                  "yes",
		Action:                "buy",
		Count:                 10,
		YesPriceCents:         45,
		MaxOrderRiskUSD:       50,
		EstimatedOrderRiskUSD: 5.5,
		ClientOrderID:         "cid-1",
		Checks:                Checks{Passed: true, Failures: []string{}},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read audit log: %v", err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRecordWritesOneObjectPerLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	l := NewLogger(path, nil)
	ctx := context.Background()

	ts := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	if err := l.Record(ctx, testEvent(ts, ModeDryRun)); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	orderID := "ord-1"
	ev := testEvent(ts, ModeLive)
	ev.OrderID = &orderID
	if err := l.Record(ctx, ev); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &raw); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	for _, key := range []string{
		"timestamp", "mode", "environment", "ticker", "side", "action", "count",
		"yes_price_cents", "max_order_risk_usd", "estimated_order_risk_usd",
		"client_order_id", "order_id", "checks", "error",
	} {
		if _, ok := raw[key]; !ok {
			t.Errorf("line missing key %q", key)
		}
	}
	if raw["order_id"] != nil {
		t.Errorf("order_id = %v, want null", raw["order_id"])
	}
	if raw["error"] != nil {
		t.Errorf("error = %v, want null", raw["error"])
	}
	if raw["mode"] != "dry_run" {
		t.Errorf("mode = %v, want dry_run", raw["mode"])
	}

	var second Event
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second line: %v", err)
	}
	if second.OrderID == nil || *second.OrderID != "ord-1" {
		t.Errorf("OrderID = %v, want ord-1", second.OrderID)
	}
}

func TestCountLiveOrders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path, nil)
	ctx := context.Background()

	est := time.FixedZone("EST", -5*3600)
	today := time.Date(2026, 3, 1, 12, 0, 0, 0, est)

	events := []Event{
		testEvent(time.Date(2026, 3, 1, 6, 0, 0, 0, est), ModeLive),    // counts
		testEvent(time.Date(2026, 3, 1, 23, 30, 0, 0, est), ModeLive),  // counts
		testEvent(time.Date(2026, 3, 1, 10, 0, 0, 0, est), ModeDryRun), // dry run
		testEvent(time.Date(2026, 2, 28, 23, 0, 0, 0, est), ModeLive),  // yesterday
		// 2026-03-02 03:00 UTC is 2026-03-01 22:00 EST: counts.
		testEvent(time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), ModeLive),
		// 2026-03-01 04:00 UTC is 2026-02-28 23:00 EST: does not count.
		testEvent(time.Date(2026, 3, 1, 4, 0, 0, 0, time.UTC), ModeLive),
	}
	cancel := testEvent(time.Date(2026, 3, 1, 8, 0, 0, 0, est), ModeLive)
	cancel.Operation = OpCancel
	events = append(events, cancel)

	for _, ev := range events {
		if err := l.Record(ctx, ev); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	n, err := l.CountLiveOrders(ctx, today)
	if err != nil {
		t.Fatalf("CountLiveOrders failed: %v", err)
	}
	if n != 3 {
		t.Errorf("CountLiveOrders = %d, want 3", n)
	}
}

func TestCountLiveOrdersSkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	content := strings.Join([]string{
		``,
		`not json at all`,
		`[1, 2, 3]`,
		`"a string"`,
		`42`,
		`null`,
		`{"mode": "live"}`,
		`{"timestamp": "yesterday", "mode": "live"}`,
		`{"timestamp": "2026-03-01T10:00:00Z", "mode": "live", "count": "ten"}`,
		`{"timestamp": "2026-03-01T11:00:00Z", "mode": "live"}`,
		`{"timestamp": "2026-03-01T12:00:00.123456Z", "mode": "live", "operation": "create"}`,
		`{"timestamp": "2026-03-01T12:00:00Z", "mode": "live", "operation": "amend"}`,
		`{"timestamp": "2026-03-01T13:00:00Z", "mode": "dry_run"}`,
		`   `,
		`{"timestamp": "2026-03-01T14:00:00Z", "mode": "live", "trunc`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	l := NewLogger(path, nil)
	n, err := l.CountLiveOrders(context.Background(), time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CountLiveOrders failed: %v", err)
	}
	// Only the count-typed field differs on the third valid line; it still counts.
	if n != 3 {
		t.Errorf("CountLiveOrders = %d, want 3", n)
	}

	var scanned int
	if err := l.Scan(context.Background(), func(Event) bool { scanned++; return true }); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	// Scan decodes whole events, so the bad timestamp and string count lines are skipped.
	if scanned != 5 {
		t.Errorf("Scan visited %d events, want 5", scanned)
	}
}

func TestCountLiveOrdersMissingFile(t *testing.T) {
	l := NewLogger(filepath.Join(t.TempDir(), "absent.jsonl"), nil)
	n, err := l.CountLiveOrders(context.Background(), time.Now())
	if err != nil || n != 0 {
		t.Errorf("CountLiveOrders = %d, %v, want 0, nil", n, err)
	}
}

func TestCountLiveOrdersRespectsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path, nil)
	if err := l.Record(context.Background(), testEvent(time.Now(), ModeLive)); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := l.CountLiveOrders(ctx, time.Now()); err == nil {
		t.Error("CountLiveOrders with cancelled context expected error")
	}
}

func TestConcurrentRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	l := NewLogger(path, nil)

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Record(context.Background(), testEvent(time.Now(), ModeLive)); err != nil {
				t.Errorf("Record failed: %v", err)
			}
		}()
	}
	wg.Wait()

	lines := readLines(t, path)
	if len(lines) != writers {
		t.Fatalf("got %d lines, want %d", len(lines), writers)
	}
	for i, line := range lines {
		if !json.Valid([]byte(line)) {
			t.Errorf("line %d is not valid JSON: %q", i, line)
		}
	}
}
