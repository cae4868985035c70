package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// Logger is the JSON Lines audit log.
type Logger struct {
	path   string
	logger *slog.Logger

	// Serializes writers within this process; O_APPEND covers other processes.
	mu sync.Mutex
}

// NewLogger creates a Logger writing to path. Parent directories are created
// on first write.
func NewLogger(path string, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{path: path, logger: logger}
}

// Path returns the log file path.
func (l *Logger) Path() string {
	return l.path
}

// Record appends ev as a single line.
func (l *Logger) Record(_ context.Context, ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}

	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append audit event: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync audit log: %w", err)
	}
	return f.Close()
}

// Scan calls fn for every well-formed event in the log, oldest first. Blank,
// non-JSON and non-object lines are skipped. A missing log is empty.
// Returning false from fn stops the scan.
func (l *Logger) Scan(ctx context.Context, fn func(Event) bool) error {
	return l.scanLines(ctx, func(line []byte) bool {
		var ev Event
		if !isObject(line) || json.Unmarshal(line, &ev) != nil {
			return true
		}
		return fn(ev)
	})
}

// countLine holds only the fields the daily count needs, so unrelated
// malformed fields do not hide a line.
type countLine struct {
	Timestamp string    `json:"timestamp"`
	Mode      Mode      `json:"mode"`
	Operation Operation `json:"operation"`
}

// CountLiveOrders counts live create events whose timestamp falls on the
// calendar day of day, in day's location. This is a full scan of the log.
func (l *Logger) CountLiveOrders(ctx context.Context, day time.Time) (int, error) {
	var n, skipped int
	err := l.scanLines(ctx, func(line []byte) bool {
		var cl countLine
		if !isObject(line) || json.Unmarshal(line, &cl) != nil {
			skipped++
			return true
		}
		if !countsAsOrder(cl.Mode, cl.Operation) {
			return true
		}
		ts, err := time.Parse(time.RFC3339, cl.Timestamp)
		if err != nil {
			skipped++
			return true
		}
		if model.OnDay(ts, day) {
			n++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if skipped > 0 {
		l.logger.Debug("skipped unreadable audit lines", "path", l.path, "count", skipped)
	}
	return n, nil
}

func (l *Logger) scanLines(ctx context.Context, fn func(line []byte) bool) error {
	f, err := os.Open(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			if !fn(trimmed) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read audit log: %w", err)
		}
	}
}

func isObject(line []byte) bool {
	return len(line) > 0 && line[0] == '{'
}
