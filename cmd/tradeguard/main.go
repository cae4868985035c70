// Command tradeguard places, cancels, and amends Kalshi orders behind the
// guardrail pipeline. Orders are simulated unless --live is given or
// safety.live is set in the config.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rickgao/kalshi-guard/internal/config"
	"github.com/rickgao/kalshi-guard/internal/version"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2
	exitUsage    = 64
)

const usage = `usage: tradeguard [flags] <command> [command flags]

commands:
  create       place a limit order
  cancel       cancel a resting order
  amend        change price and count of a resting order
  score        print the liquidity analysis of a market
  audit-count  count live orders in the audit log for a day
  watch        score a set of markets on an interval (-stream for live books)
  version      print build information

flags:
`

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

type stdio struct {
	in  io.Reader
	out io.Writer
	err io.Writer
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fset := flag.NewFlagSet("tradeguard", flag.ContinueOnError)
	fset.SetOutput(stderr)
	configPath := fset.String("config", "configs/tradeguard.yaml", "path to config file")
	envFile := fset.String("env-file", ".env", "dotenv file loaded before the config (missing is fine)")
	live := fset.Bool("live", false, "send orders to the exchange instead of simulating")
	fset.Usage = func() {
		fmt.Fprint(stderr, usage)
		fset.PrintDefaults()
	}

	if err := fset.Parse(args); err != nil {
		return exitUsage
	}
	if fset.NArg() == 0 {
		fset.Usage()
		return exitUsage
	}

	std := stdio{in: stdin, out: stdout, err: stderr}
	command, rest := fset.Arg(0), fset.Args()[1:]
	if command == "version" {
		fmt.Fprintln(stdout, version.String())
		return exitOK
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "load env file: %v\n", err)
		return exitError
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitError
	}

	logger, err := newLogger(cfg.Logging, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return exitError
	}
	slog.SetDefault(logger)

	logger.Debug("starting tradeguard",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"command", command,
	)

	cmd, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", command)
		fset.Usage()
		return exitUsage
	}

	a, err := newApp(ctx, cfg, *live || cfg.Safety.Live, logger, std)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return exitError
	}
	defer a.Close()

	return cmd(ctx, a, rest)
}

func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
