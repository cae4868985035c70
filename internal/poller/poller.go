package poller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/model"
)

// OrderbookSource fetches orderbooks.
type OrderbookSource interface {
	GetOrderbook(ctx context.Context, ticker string) (model.Orderbook, error)
}

// MarketSource fetches market stats.
type MarketSource interface {
	GetMarketStats(ctx context.Context, ticker string) (model.MarketStats, error)
}

// AnalysisHandler receives each completed analysis. It may be called from
// several goroutines at once.
type AnalysisHandler interface {
	HandleAnalysis(a liquidity.Analysis)
}

// AnalysisHandlerFunc is a function adapter for AnalysisHandler.
type AnalysisHandlerFunc func(liquidity.Analysis)

func (f AnalysisHandlerFunc) HandleAnalysis(a liquidity.Analysis) {
	f(a)
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration      // Poll interval (default: 1m)
	Concurrency int                // Max concurrent tickers (default: 8)
	Timeout     time.Duration      // Per-ticker timeout (default: 10s)
	Weights     *liquidity.Weights // Nil uses liquidity.DefaultWeights
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    time.Minute,
		Concurrency: 8,
		Timeout:     10 * time.Second,
	}
}

// Poller periodically scores a fixed set of tickers.
type Poller struct {
	cfg     Config
	books   OrderbookSource
	markets MarketSource
	tickers []string
	handler AnalysisHandler
	logger  *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, books OrderbookSource, markets MarketSource, tickers []string, handler AnalysisHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		books:   books,
		markets: markets,
		tickers: tickers,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("liquidity poller started",
		"tickers", len(p.tickers),
		"interval", p.cfg.Interval,
		"concurrency", p.cfg.Concurrency,
	)
	return nil
}

// Stop cancels the loop and waits for the current cycle to finish.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("liquidity poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce scores every ticker once and reports how many succeeded and
// failed. A failing ticker never stops the others.
func (p *Poller) PollOnce(ctx context.Context) (scored, failed int) {
	start := time.Now()
	var ok, errs atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)

	for _, t := range p.tickers {
		if gctx.Err() != nil {
			break
		}
		t := t
		g.Go(func() error {
			a, err := p.pollMarket(gctx, t)
			if err != nil {
				p.logger.Warn("failed to score market",
					"ticker", t,
					"err", err,
				)
				errs.Add(1)
				return nil
			}
			ok.Add(1)
			if p.handler != nil {
				p.handler.HandleAnalysis(a)
			}
			return nil
		})
	}
	g.Wait()

	p.logger.Info("poll cycle complete",
		"tickers", len(p.tickers),
		"scored", ok.Load(),
		"errors", errs.Load(),
		"duration", time.Since(start),
	)
	return int(ok.Load()), int(errs.Load())
}

func (p *Poller) pollMarket(ctx context.Context, ticker string) (liquidity.Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	book, err := p.books.GetOrderbook(ctx, ticker)
	if err != nil {
		return liquidity.Analysis{}, fmt.Errorf("fetch orderbook: %w", err)
	}
	stats, err := p.markets.GetMarketStats(ctx, ticker)
	if err != nil {
		return liquidity.Analysis{}, fmt.Errorf("fetch market: %w", err)
	}
	if stats.Ticker == "" {
		stats.Ticker = ticker
	}

	return liquidity.Score(stats, book, p.cfg.Weights)
}
