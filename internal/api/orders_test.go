package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rickgao/kalshi-guard/internal/model"
)

func testIntent() model.OrderIntent {
	exp := int64(1760000000)
	return model.OrderIntent{
		Ticker:        "KXTEST-24",
		Side:          model.SideNo,
		Action:        model.ActionBuy,
		Count:         3,
		PriceCents:    60,
		ClientOrderID: "cid-1",
		ExpirationTS:  &exp,
	}
}

func TestDryRunMakesNoRequests(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	ctx := context.Background()

	responses := []*model.OrderResponse{}
	resp, err := c.CreateOrder(ctx, testIntent(), true)
	if err != nil {
		t.Fatal(err)
	}
	responses = append(responses, resp)
	if resp, err = c.CancelOrder(ctx, "ord-1", true); err != nil {
		t.Fatal(err)
	}
	responses = append(responses, resp)
	if resp, err = c.AmendOrder(ctx, model.AmendRequest{OrderID: "ord-1"}, true); err != nil {
		t.Fatal(err)
	}
	responses = append(responses, resp)

	for i, r := range responses {
		if !r.DryRun || r.Status != "simulated" || r.OrderID != "" {
			t.Errorf("response %d = %+v", i, r)
		}
	}
	if hits.Load() != 0 {
		t.Errorf("hits = %d, want 0", hits.Load())
	}
}

func TestCreateOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/portfolio/orders" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if req.Ticker != "KXTEST-24" || req.Side != "no" || req.Action != "buy" || req.Count != 3 ||
			req.Type != "limit" || req.YesPrice != 60 || req.ClientOrderID != "cid-1" ||
			req.ExpirationTS == nil || *req.ExpirationTS != 1760000000 {
			t.Errorf("body = %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"order":{"order_id":"ord-9","status":"resting"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, &fakeSigner{})
	resp, err := c.CreateOrder(context.Background(), testIntent(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OrderID != "ord-9" || resp.Status != "resting" || resp.DryRun {
		t.Errorf("resp = %+v", resp)
	}
}

func TestCreateOrderIsNeverRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	_, err := c.CreateOrder(context.Background(), testIntent(), false)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("err = %v", err)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestCancelOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/portfolio/orders/ord-9" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"order":{"order_id":"ord-9","status":"canceled"},"reduced_by":3}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	resp, err := c.CancelOrder(context.Background(), "ord-9", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != "canceled" {
		t.Errorf("Status = %q", resp.Status)
	}
}

func TestAmendOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/portfolio/orders/ord-9/amend" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var req AmendOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if req.Count != 5 || req.YesPrice != 41 {
			t.Errorf("body = %+v", req)
		}
		w.Write([]byte(`{"old_order":{"order_id":"ord-9"},"order":{"order_id":"ord-10","status":"resting"}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	resp, err := c.AmendOrder(context.Background(), model.AmendRequest{
		OrderID: "ord-9", Ticker: "T", Side: model.SideYes, Action: model.ActionBuy, Count: 5, PriceCents: 41,
	}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.OrderID != "ord-10" {
		t.Errorf("OrderID = %q", resp.OrderID)
	}
}
