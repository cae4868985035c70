package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/kalshi-guard/internal/api"
	"github.com/rickgao/kalshi-guard/internal/audit"
	"github.com/rickgao/kalshi-guard/internal/auth"
	"github.com/rickgao/kalshi-guard/internal/budget"
	"github.com/rickgao/kalshi-guard/internal/config"
	"github.com/rickgao/kalshi-guard/internal/database"
	"github.com/rickgao/kalshi-guard/internal/guardrail"
	"github.com/rickgao/kalshi-guard/internal/harness"
	"github.com/rickgao/kalshi-guard/internal/metrics"
)

// app holds everything a command needs.
type app struct {
	cfg      *config.Config
	live     bool
	loc      *time.Location
	logger   *slog.Logger
	std      stdio
	client   *api.Client
	signer   api.Signer
	auditLog *audit.Logger
	pgAudit  *audit.PGStore
	harness  *harness.Harness
	metrics  *metrics.Metrics

	pool          *pgxpool.Pool
	metricsServer *http.Server
}

func newApp(ctx context.Context, cfg *config.Config, live bool, logger *slog.Logger, std stdio) (*app, error) {
	loc, err := cfg.Safety.Location()
	if err != nil {
		return nil, fmt.Errorf("load timezone: %w", err)
	}
	clock := func() time.Time { return time.Now().In(loc) }

	a := &app{cfg: cfg, live: live, loc: loc, logger: logger, std: std}

	signer, err := loadSigner(cfg, live)
	if err != nil {
		return nil, err
	}
	a.signer = signer
	a.client = api.NewClient(cfg.API.RestURL, signer,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	limits, err := cfg.Limits()
	if err != nil {
		return nil, err
	}

	deps := guardrail.Deps{
		Clock:      clock,
		Orderbooks: a.client,
		Markets:    a.client,
	}
	if signer != nil {
		deps.Positions = a.client
		deps.Budget = budget.NewTracker(a.client, clock, budget.WithLookback(cfg.Safety.BudgetLookback))
	}
	if cfg.Safety.RequireConfirmation {
		deps.Confirm = stdinConfirm(std.in, std.err)
	}

	a.auditLog = audit.NewLogger(cfg.Audit.Path, logger)
	deps.Orders = a.auditLog
	var recorder audit.Recorder = a.auditLog

	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Postgres.Host,
			"port", cfg.Database.Postgres.Port,
			"database", cfg.Database.Postgres.Name,
		)
		a.pool, err = database.Connect(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}

		if cfg.Audit.PostgresMirror {
			a.pgAudit = audit.NewPGStore(a.pool)
			if err := a.pgAudit.EnsureSchema(ctx); err != nil {
				a.Close()
				return nil, err
			}
			recorder = audit.NewTee(a.auditLog, logger, a.pgAudit)
		}
	}

	opts := []harness.Option{harness.WithLogger(logger)}
	if cfg.Metrics.Enabled || cfg.Metrics.Textfile != "" {
		reg := prometheus.NewRegistry()
		a.metrics, err = metrics.New(reg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, harness.WithObserver(a.metrics))
		if cfg.Metrics.Enabled {
			a.serveMetrics()
		}
	}

	eval := guardrail.NewEvaluator(limits, deps, logger)
	a.harness = harness.New(live, eval, a.client, recorder, opts...)

	logger.Info("trade guard ready",
		"environment", limits.Environment,
		"live", live,
		"kill_switch", limits.KillSwitch,
		"api_url", cfg.API.RestURL,
		"audit_path", cfg.Audit.Path,
	)
	return a, nil
}

// loadSigner returns nil when no credentials are configured and the
// command runs in dry-run mode.
func loadSigner(cfg *config.Config, live bool) (api.Signer, error) {
	if err := cfg.RequireCredentials(); err != nil {
		if live {
			return nil, err
		}
		return nil, nil
	}
	creds, err := auth.LoadCredentials(cfg.API.APIKey, cfg.API.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return creds, nil
}

func (a *app) serveMetrics() {
	mux := http.NewServeMux()
	mux.Handle(a.cfg.Metrics.Path, a.metrics.Handler())

	a.metricsServer = &http.Server{
		Addr:              ":" + strconv.Itoa(a.cfg.Metrics.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("starting metrics server", "port", a.cfg.Metrics.Port)
		if err := a.metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()
}

// Close releases the database pool and flushes metrics.
func (a *app) Close() {
	if a.metrics != nil && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("failed to write metrics textfile", "path", a.cfg.Metrics.Textfile, "error", err)
		}
	}
	if a.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.metricsServer.Shutdown(shutdownCtx)
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
