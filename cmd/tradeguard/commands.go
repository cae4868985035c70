package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rickgao/kalshi-guard/internal/harness"
	"github.com/rickgao/kalshi-guard/internal/liquidity"
	"github.com/rickgao/kalshi-guard/internal/model"
	"github.com/rickgao/kalshi-guard/internal/poller"
	"github.com/rickgao/kalshi-guard/internal/stream"
)

type command func(ctx context.Context, a *app, args []string) int

var commands = map[string]command{
	"create":      runCreate,
	"cancel":      runCancel,
	"amend":       runAmend,
	"score":       runScore,
	"audit-count": runAuditCount,
	"watch":       runWatch,
}

// orderFlags are shared by create and amend.
type orderFlags struct {
	ticker        string
	side          string
	action        string
	count         int
	price         int
	clientOrderID string
}

func (f *orderFlags) register(fset *flag.FlagSet) {
	fset.StringVar(&f.ticker, "ticker", "", "market ticker")
	fset.StringVar(&f.side, "side", "yes", "contract side: yes or no")
	fset.StringVar(&f.action, "action", "buy", "buy or sell")
	fset.IntVar(&f.count, "count", 0, "number of contracts")
	fset.IntVar(&f.price, "price", 0, "limit price in cents on the YES axis (1-99)")
	fset.StringVar(&f.clientOrderID, "client-order-id", "", "client order id (generated when empty)")
}

func (f *orderFlags) parse() (model.Side, model.Action, error) {
	side, err := model.ParseSide(f.side)
	if err != nil {
		return "", "", err
	}
	action, err := model.ParseAction(f.action)
	if err != nil {
		return "", "", err
	}
	return side, action, nil
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fset := flag.NewFlagSet(name, flag.ContinueOnError)
	fset.SetOutput(a.std.err)
	return fset
}

// parseIntent builds an OrderIntent from create flags. Price and count are
// not range checked here so the guardrails see and audit them.
func parseIntent(args []string, a *app) (model.OrderIntent, error) {
	fset := newFlagSet(a, "create")
	var f orderFlags
	f.register(fset)
	expiration := fset.Int64("expiration-ts", 0, "unix expiration timestamp (0 for none)")
	if err := fset.Parse(args); err != nil {
		return model.OrderIntent{}, err
	}

	side, action, err := f.parse()
	if err != nil {
		return model.OrderIntent{}, err
	}

	intent := model.OrderIntent{
		Ticker:        f.ticker,
		Side:          side,
		Action:        action,
		Count:         f.count,
		PriceCents:    f.price,
		ClientOrderID: f.clientOrderID,
	}
	if intent.ClientOrderID == "" {
		intent.ClientOrderID = model.NewClientOrderID()
	}
	if *expiration > 0 {
		intent.ExpirationTS = expiration
	}
	return intent, nil
}

func runCreate(ctx context.Context, a *app, args []string) int {
	intent, err := parseIntent(args, a)
	if err != nil {
		fmt.Fprintf(a.std.err, "create: %v\n", err)
		return exitUsage
	}
	return a.report(a.harness.Place(ctx, intent))
}

func runCancel(ctx context.Context, a *app, args []string) int {
	fset := newFlagSet(a, "cancel")
	orderID := fset.String("order-id", "", "order to cancel")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	return a.report(a.harness.Cancel(ctx, *orderID))
}

func runAmend(ctx context.Context, a *app, args []string) int {
	fset := newFlagSet(a, "amend")
	var f orderFlags
	f.register(fset)
	orderID := fset.String("order-id", "", "order to amend")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	side, action, err := f.parse()
	if err != nil {
		fmt.Fprintf(a.std.err, "amend: %v\n", err)
		return exitUsage
	}

	return a.report(a.harness.Amend(ctx, model.AmendRequest{
		OrderID:       *orderID,
		Ticker:        f.ticker,
		Side:          side,
		Action:        action,
		Count:         f.count,
		PriceCents:    f.price,
		ClientOrderID: f.clientOrderID,
	}))
}

// report prints the outcome and maps it to an exit code.
func (a *app) report(out harness.Outcome) int {
	w := a.std.out
	fmt.Fprintf(w, "status: %s\n", out.Status)
	fmt.Fprintf(w, "mode: %s\n", modeName(a.live))
	fmt.Fprintf(w, "risk_usd: %s\n", out.RiskUSD.StringFixed(2))
	if out.Order != nil {
		if out.Order.OrderID != "" {
			fmt.Fprintf(w, "order_id: %s\n", out.Order.OrderID)
		}
		if out.Order.Status != "" {
			fmt.Fprintf(w, "exchange_status: %s\n", out.Order.Status)
		}
	}

	switch out.Status {
	case harness.StatusRejected:
		fmt.Fprintf(w, "failures: %s\n", out.Checks.String())
		return exitRejected
	case harness.StatusFailed:
		fmt.Fprintf(a.std.err, "error: %v\n", out.Err)
		return exitError
	}
	return exitOK
}

func modeName(live bool) string {
	if live {
		return "live"
	}
	return "dry_run"
}

func runScore(ctx context.Context, a *app, args []string) int {
	fset := newFlagSet(a, "score")
	ticker := fset.String("ticker", "", "market ticker")
	asJSON := fset.Bool("json", false, "print JSON")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if *ticker == "" {
		fmt.Fprintln(a.std.err, "score: -ticker is required")
		return exitUsage
	}

	book, err := a.client.GetOrderbook(ctx, *ticker)
	if err != nil {
		a.logger.Error("failed to fetch orderbook", "ticker", *ticker, "error", err)
		return exitError
	}
	stats, err := a.client.GetMarketStats(ctx, *ticker)
	if err != nil {
		a.logger.Error("failed to fetch market", "ticker", *ticker, "error", err)
		return exitError
	}

	analysis, err := liquidity.Score(stats, book, a.cfg.Safety.LiquidityWeights)
	if err != nil {
		a.logger.Error("failed to score market", "ticker", *ticker, "error", err)
		return exitError
	}

	if *asJSON {
		enc := json.NewEncoder(a.std.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(analysis); err != nil {
			return exitError
		}
		return exitOK
	}
	printAnalysis(a, analysis)
	return exitOK
}

func printAnalysis(a *app, an liquidity.Analysis) {
	w := a.std.out
	fmt.Fprintf(w, "%s  score %d (%s)\n", an.Ticker, an.Score, an.Grade)
	fmt.Fprintf(w, "  spread %.0f  depth %.0f  volume %.0f  open interest %.0f\n",
		an.Components.Spread, an.Components.Depth, an.Components.Volume, an.Components.OpenInterest)
	fmt.Fprintf(w, "  depth: %d contracts near mid (yes %d / no %d), imbalance %+.2f\n",
		an.Depth.TotalContracts, an.Depth.YesSideDepth, an.Depth.NoSideDepth, an.Depth.ImbalanceRatio)
	fmt.Fprintf(w, "  max safe size: yes %d, no %d\n", an.MaxSafeSizeYes, an.MaxSafeSizeNo)
	for _, warning := range an.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warning)
	}
}

func runAuditCount(ctx context.Context, a *app, args []string) int {
	fset := newFlagSet(a, "audit-count")
	date := fset.String("date", "", "day to count, YYYY-MM-DD (default today)")
	source := fset.String("source", "file", "file or postgres")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	day := time.Now().In(a.loc)
	if *date != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, *date, a.loc)
		if err != nil {
			fmt.Fprintf(a.std.err, "audit-count: %v\n", err)
			return exitUsage
		}
		day = parsed
	}

	var (
		n   int
		err error
	)
	switch strings.ToLower(*source) {
	case "file":
		n, err = a.auditLog.CountLiveOrders(ctx, day)
	case "postgres":
		if a.pgAudit == nil {
			err = errors.New("audit.postgres_mirror is not enabled")
			break
		}
		n, err = a.pgAudit.CountLiveOrders(ctx, day)
	default:
		fmt.Fprintf(a.std.err, "audit-count: unknown source %q\n", *source)
		return exitUsage
	}
	if err != nil {
		a.logger.Error("failed to count orders", "source", *source, "error", err)
		return exitError
	}

	fmt.Fprintf(a.std.out, "%s %d\n", day.Format(time.DateOnly), n)
	return exitOK
}

func runWatch(ctx context.Context, a *app, args []string) int {
	fset := newFlagSet(a, "watch")
	tickerList := fset.String("tickers", "", "comma separated market tickers")
	interval := fset.Duration("interval", time.Minute, "poll interval")
	concurrency := fset.Int("concurrency", 8, "markets scored in parallel")
	once := fset.Bool("once", false, "score every market once and exit")
	useStream := fset.Bool("stream", false, "read orderbooks from the WebSocket feed instead of REST")
	if err := fset.Parse(args); err != nil {
		return exitUsage
	}

	var tickers []string
	for _, t := range strings.Split(*tickerList, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}
	if len(tickers) == 0 {
		fmt.Fprintln(a.std.err, "watch: -tickers is required")
		return exitUsage
	}

	var mu sync.Mutex
	handler := poller.AnalysisHandlerFunc(func(an liquidity.Analysis) {
		mu.Lock()
		defer mu.Unlock()
		printAnalysis(a, an)
		if a.metrics != nil {
			a.metrics.HandleAnalysis(an)
		}
	})

	var books poller.OrderbookSource = a.client
	if *useStream {
		if a.signer == nil {
			fmt.Fprintln(a.std.err, "watch: -stream requires API credentials")
			return exitUsage
		}
		feed := stream.NewBooks(stream.Config{
			Client: stream.ClientConfig{URL: a.cfg.API.WSURL},
		}, a.signer, tickers, a.logger)
		if err := feed.Start(ctx); err != nil {
			a.logger.Error("failed to start orderbook stream", "error", err)
			return exitError
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := feed.Stop(stopCtx); err != nil {
				a.logger.Warn("orderbook stream did not stop cleanly", "error", err)
			}
		}()
		books = feed
	}

	p := poller.New(poller.Config{
		Interval:    *interval,
		Concurrency: *concurrency,
		Timeout:     a.cfg.Safety.ProviderTimeout,
		Weights:     a.cfg.Safety.LiquidityWeights,
	}, books, a.client, tickers, handler, a.logger)

	if *once {
		if _, failed := p.PollOnce(ctx); failed > 0 {
			return exitError
		}
		return exitOK
	}

	if err := p.Start(ctx); err != nil {
		a.logger.Error("failed to start poller", "error", err)
		return exitError
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		a.logger.Warn("poller did not stop cleanly", "error", err)
	}
	return exitOK
}
