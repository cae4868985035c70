package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// Books maintains live orderbooks for a fixed set of markets over one
// WebSocket connection. It satisfies poller.OrderbookSource.
type Books struct {
	cfg     Config
	signer  Signer
	tickers []string
	logger  *slog.Logger

	mu    sync.RWMutex
	books map[string]*book

	// Sequence tracking (per SID)
	seqMu   sync.Mutex
	lastSeq map[int64]int64

	// Command/response correlation
	pendingMu sync.Mutex
	pending   map[int64]chan Response
	cmdID     int64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBooks creates Books for tickers. Nothing is dialed until Start.
func NewBooks(cfg Config, signer Signer, tickers []string, logger *slog.Logger) *Books {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Client.URL == "" {
		cfg.Client.URL = def.Client.URL
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = def.SubscribeTimeout
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = max(def.ReconnectMaxWait, cfg.ReconnectBaseWait)
	}

	books := make(map[string]*book, len(tickers))
	for _, t := range tickers {
		books[t] = newBook()
	}
	return &Books{
		cfg:     cfg,
		signer:  signer,
		tickers: tickers,
		logger:  logger,
		books:   books,
		lastSeq: make(map[int64]int64),
		pending: make(map[int64]chan Response),
	}
}

// Start dials the feed and subscribes in the background. Only the first
// dial is reported; later failures reconnect with backoff.
func (b *Books) Start(ctx context.Context) error {
	client := b.newClient()
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect orderbook stream: %w", err)
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.wg.Add(1)
	go b.run(ctx, client)

	b.logger.Info("orderbook stream started", "url", b.cfg.Client.URL, "markets", len(b.tickers))
	return nil
}

// Stop closes the connection and waits for the background loop.
func (b *Books) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("orderbook stream stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// GetOrderbook returns the current book of a watched market. It waits for
// a fresh snapshot when the market has none yet or the stream is recovering.
func (b *Books) GetOrderbook(ctx context.Context, ticker string) (model.Orderbook, error) {
	for {
		b.mu.RLock()
		bk, ok := b.books[ticker]
		b.mu.RUnlock()
		if !ok {
			return model.Orderbook{}, fmt.Errorf("%w: %s", ErrNotWatched, ticker)
		}

		select {
		case <-ctx.Done():
			return model.Orderbook{}, fmt.Errorf("wait for %s snapshot: %w", ticker, ctx.Err())
		case <-bk.ready:
		}

		b.mu.RLock()
		if !bk.stale {
			ob := bk.orderbook(ticker)
			b.mu.RUnlock()
			return ob, nil
		}
		b.mu.RUnlock()
	}
}

func (b *Books) newClient() *Client {
	return NewClient(b.cfg.Client, b.signer, b.logger)
}

func (b *Books) run(ctx context.Context, client *Client) {
	defer b.wg.Done()

	for {
		err := b.serve(ctx, client)
		client.Close()
		b.invalidate()
		if ctx.Err() != nil {
			return
		}
		b.logger.Warn("orderbook stream interrupted", "error", err)

		if client = b.reconnect(ctx); client == nil {
			return
		}
	}
}

// serve subscribes on client and applies its messages until the connection
// fails or ctx ends.
func (b *Books) serve(ctx context.Context, client *Client) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		err := b.readLoop(ctx, client)
		cancel()
		errc <- err
	}()

	if err := b.subscribe(ctx, client); err != nil {
		cancel()
		if readErr := <-errc; readErr != nil {
			return readErr
		}
		return fmt.Errorf("subscribe: %w", err)
	}
	return <-errc
}

// reconnect dials until it succeeds or ctx ends, backing off exponentially.
func (b *Books) reconnect(ctx context.Context) *Client {
	wait := b.cfg.ReconnectBaseWait

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		b.logger.Info("attempting reconnection", "url", b.cfg.Client.URL)

		client := b.newClient()
		if err := client.Connect(ctx); err != nil {
			b.logger.Warn("reconnection failed", "error", err, "next_wait", wait*2)

			wait *= 2
			if wait > b.cfg.ReconnectMaxWait {
				wait = b.cfg.ReconnectMaxWait
			}
			continue
		}

		b.logger.Info("reconnected")
		return client
	}
}

func (b *Books) readLoop(ctx context.Context, client *Client) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-client.Errors():
			return err
		case msg := <-client.Messages():
			if err := b.handle(msg.Data); err != nil {
				return err
			}
		}
	}
}

// handle applies one message. Only a sequence gap is returned as an error;
// unparseable messages are logged and skipped.
func (b *Books) handle(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Warn("failed to parse message", "error", err)
		return nil
	}

	switch env.Type {
	case "subscribed", "unsubscribed", "error", "ok":
		var resp Response
		if err := json.Unmarshal(data, &resp); err == nil {
			b.routeResponse(resp)
		}
		return nil

	case "orderbook_snapshot":
		if b.checkSequence(env.SID, env.Seq) {
			return ErrSequenceGap
		}
		var wire snapshotWire
		if err := json.Unmarshal(data, &wire); err != nil {
			b.logger.Warn("failed to parse orderbook snapshot", "error", err)
			return nil
		}
		b.applySnapshot(wire)
		return nil

	case "orderbook_delta":
		if b.checkSequence(env.SID, env.Seq) {
			return ErrSequenceGap
		}
		var wire deltaWire
		if err := json.Unmarshal(data, &wire); err != nil {
			b.logger.Warn("failed to parse orderbook delta", "error", err)
			return nil
		}
		b.applyDelta(wire)
		return nil
	}

	b.logger.Debug("skipping message type", "type", env.Type)
	return nil
}

func (b *Books) applySnapshot(wire snapshotWire) {
	ticker := wire.Msg.MarketTicker
	yes := snapshotLevels(wire.Msg.YesDollars, wire.Msg.Yes)
	no := snapshotLevels(wire.Msg.NoDollars, wire.Msg.No)

	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.books[ticker]
	if !ok {
		b.logger.Debug("snapshot for unwatched market", "ticker", ticker)
		return
	}
	bk.seed(yes, no)
}

func (b *Books) applyDelta(wire deltaWire) {
	ticker := wire.Msg.MarketTicker
	side, err := model.ParseSide(wire.Msg.Side)
	if err != nil {
		b.logger.Warn("orderbook delta with bad side", "ticker", ticker, "error", err)
		return
	}
	price := wire.Msg.Price
	if wire.Msg.PriceDollars != "" {
		if price, err = dollarsToCents(wire.Msg.PriceDollars); err != nil {
			b.logger.Warn("orderbook delta with bad price", "ticker", ticker, "error", err)
			return
		}
	}
	if price < minCents || price > maxCents {
		b.logger.Warn("orderbook delta with bad price", "ticker", ticker, "price", price)
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	bk, ok := b.books[ticker]
	if !ok || !bk.seeded {
		b.logger.Debug("delta without snapshot", "ticker", ticker)
		return
	}
	bk.apply(side, price, wire.Msg.Delta)
}

// invalidate replaces every seeded book so readers wait for the snapshots
// of the next subscription.
func (b *Books) invalidate() {
	b.mu.Lock()
	for t, bk := range b.books {
		if bk.seeded {
			bk.stale = true
			b.books[t] = newBook()
		}
	}
	b.mu.Unlock()

	b.seqMu.Lock()
	b.lastSeq = make(map[int64]int64)
	b.seqMu.Unlock()
}

// checkSequence reports whether seq skips ahead of the last message on sid.
func (b *Books) checkSequence(sid, seq int64) bool {
	if seq == 0 {
		return false
	}

	b.seqMu.Lock()
	defer b.seqMu.Unlock()

	last, exists := b.lastSeq[sid]
	b.lastSeq[sid] = seq
	if !exists || seq == last+1 {
		return false
	}

	b.logger.Warn("sequence gap detected",
		"sid", sid,
		"expected", last+1,
		"got", seq,
	)
	return true
}

// subscribe sends the orderbook_delta subscription and waits for the reply.
func (b *Books) subscribe(ctx context.Context, client *Client) error {
	id := atomic.AddInt64(&b.cmdID, 1)
	respCh := make(chan Response, 1)

	b.pendingMu.Lock()
	b.pending[id] = respCh
	b.pendingMu.Unlock()

	defer func() {
		b.pendingMu.Lock()
		delete(b.pending, id)
		b.pendingMu.Unlock()
	}()

	cmd := Command{
		ID:  id,
		Cmd: "subscribe",
		Params: SubscribeParams{
			Channels:      []string{"orderbook_delta"},
			MarketTickers: b.tickers,
		},
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal subscribe: %w", err)
	}
	if err := client.Send(data); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(b.cfg.SubscribeTimeout):
		return ErrTimeout
	case resp := <-respCh:
		if resp.Type == "error" {
			var errMsg ErrorMsg
			json.Unmarshal(resp.Msg, &errMsg)
			return fmt.Errorf("subscribe rejected: code %d: %s", errMsg.Code, errMsg.Message)
		}

		var sub SubscribedMsg
		json.Unmarshal(resp.Msg, &sub)
		b.logger.Debug("subscribed",
			"channel", sub.Channel,
			"sid", sub.SID,
			"markets", len(b.tickers),
		)
		return nil
	}
}

// routeResponse sends a response to the waiting goroutine.
func (b *Books) routeResponse(resp Response) {
	b.pendingMu.Lock()
	ch, ok := b.pending[resp.ID]
	if ok {
		delete(b.pending, resp.ID)
	}
	b.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}
