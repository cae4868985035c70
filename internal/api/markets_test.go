package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetOrderbook(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/KXTEST-24/orderbook" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("depth") != "" {
			t.Errorf("depth = %q, want unset", r.URL.Query().Get("depth"))
		}
		w.Write([]byte(`{"orderbook":{"yes":[[45,100],[44,50],[1]],"no":null}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	book, err := c.GetOrderbook(context.Background(), "KXTEST-24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if book.Ticker != "KXTEST-24" {
		t.Errorf("Ticker = %q", book.Ticker)
	}
	if len(book.YesLevels) != 2 || book.YesLevels[0].Price != 45 || book.YesLevels[0].Quantity != 100 {
		t.Errorf("YesLevels = %+v", book.YesLevels)
	}
	if len(book.NoLevels) != 0 {
		t.Errorf("NoLevels = %+v, want empty", book.NoLevels)
	}
	if _, ok := book.BestYesAsk(); ok {
		t.Error("BestYesAsk ok with no NO bids")
	}
}

func TestGetOrderbookSharesConcurrentFetches(t *testing.T) {
	var hits atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Write([]byte(`{"orderbook":{"yes":[[45,10]],"no":[[50,10]]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrderbook(context.Background(), "T"); err != nil {
				t.Errorf("GetOrderbook: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := hits.Load(); n < 1 || n > 5 {
		t.Errorf("hits = %d", n)
	}
}

func TestGetOrderbookCancelledCallerDoesNotFailOthers(t *testing.T) {
	var hits atomic.Int32
	arrived := make(chan struct{})
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			close(arrived)
			<-release
		}
		w.Write([]byte(`{"orderbook":{"yes":[[45,10]],"no":[[50,10]]}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrderbook(firstCtx, "T")
		firstErr <- err
	}()
	<-arrived

	second := make(chan error, 1)
	go func() {
		book, err := c.GetOrderbook(context.Background(), "T")
		if err == nil && len(book.YesLevels) != 1 {
			t.Errorf("YesLevels = %+v", book.YesLevels)
		}
		second <- err
	}()

	cancelFirst()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller err = %v, want context.Canceled", err)
	}

	close(release)
	if err := <-second; err != nil {
		t.Errorf("second caller err = %v, want nil", err)
	}
}

func TestGetMarketStats(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets/KXTEST-24" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"market":{"ticker":"KXTEST-24","status":"active","volume_24h":5000,"open_interest":1200}}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	stats, err := c.GetMarketStats(context.Background(), "KXTEST-24")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Ticker != "KXTEST-24" || stats.Status != "active" || stats.Volume24h != 5000 || stats.OpenInterest != 1200 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestGetExchangeStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"exchange_active":true,"trading_active":false}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	st, err := c.GetExchangeStatus(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !st.ExchangeActive || st.TradingActive {
		t.Errorf("status = %+v", st)
	}
}

func TestMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"market":`))
	}))
	defer server.Close()

	c := newTestClient(server.URL, nil)
	if _, err := c.GetMarketStats(context.Background(), "T"); err == nil {
		t.Error("expected unmarshal error")
	}
}
