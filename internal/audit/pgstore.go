package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rickgao/kalshi-guard/internal/model"
)

// DB is the subset of *pgxpool.Pool used by PGStore.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore mirrors audit events into Postgres. Rows are insert-only.
type PGStore struct {
	db DB
}

// NewPGStore creates a new PGStore.
func NewPGStore(db DB) *PGStore {
	return &PGStore{db: db}
}

const createAuditTable = `
CREATE TABLE IF NOT EXISTS order_audit (
	id                       BIGSERIAL PRIMARY KEY,
	ts                       TIMESTAMPTZ NOT NULL,
	operation                TEXT NOT NULL,
	mode                     TEXT NOT NULL,
	environment              TEXT NOT NULL,
	ticker                   TEXT NOT NULL,
	side                     TEXT NOT NULL,
	action                   TEXT NOT NULL,
	count                    INTEGER NOT NULL,
	yes_price_cents          INTEGER NOT NULL,
	max_order_risk_usd       DOUBLE PRECISION NOT NULL,
	estimated_order_risk_usd DOUBLE PRECISION NOT NULL,
	client_order_id          TEXT NOT NULL,
	expiration_ts            BIGINT,
	order_id                 TEXT,
	checks                   JSONB NOT NULL,
	error                    TEXT
);
CREATE INDEX IF NOT EXISTS order_audit_live_ts_idx ON order_audit (ts) WHERE mode = 'live' AND operation = 'create';
`

// EnsureSchema creates the audit table and its index if missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createAuditTable); err != nil {
		return fmt.Errorf("create order_audit: %w", err)
	}
	return nil
}

// Record inserts ev.
func (s *PGStore) Record(ctx context.Context, ev Event) error {
	checks, err := json.Marshal(ev.Checks)
	if err != nil {
		return fmt.Errorf("marshal checks: %w", err)
	}

	op := ev.Operation
	if op == "" {
		op = OpCreate
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO order_audit (
			ts, operation, mode, environment, ticker, side, action, count, yes_price_cents,
			max_order_risk_usd, estimated_order_risk_usd, client_order_id, expiration_ts,
			order_id, checks, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`,
		ev.Timestamp, string(op), string(ev.Mode), string(ev.Environment), ev.Ticker,
		string(ev.Side), string(ev.Action), ev.Count, ev.YesPriceCents,
		ev.MaxOrderRiskUSD, ev.EstimatedOrderRiskUSD, ev.ClientOrderID, ev.ExpirationTS,
		ev.OrderID, checks, ev.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// CountLiveOrders counts live creates on day's calendar date, in day's location.
func (s *PGStore) CountLiveOrders(ctx context.Context, day time.Time) (int, error) {
	start, end := model.DayBounds(day)

	var n int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM order_audit
		WHERE mode = 'live' AND operation = 'create' AND ts >= $1 AND ts < $2
	`, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count live orders: %w", err)
	}
	return n, nil
}
