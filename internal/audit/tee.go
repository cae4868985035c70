package audit

import (
	"context"
	"log/slog"
)

// Tee records to a primary store and best-effort mirrors. Only the primary's
// error is returned; mirror failures are logged.
type Tee struct {
	primary Recorder
	mirrors []Recorder
	logger  *slog.Logger
}

// NewTee creates a new Tee.
func NewTee(primary Recorder, logger *slog.Logger, mirrors ...Recorder) *Tee {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tee{primary: primary, mirrors: mirrors, logger: logger}
}

// Record writes ev to the primary, then to every mirror.
func (t *Tee) Record(ctx context.Context, ev Event) error {
	err := t.primary.Record(ctx, ev)

	for _, m := range t.mirrors {
		if merr := m.Record(ctx, ev); merr != nil {
			t.logger.Warn("audit mirror write failed",
				"client_order_id", ev.ClientOrderID,
				"err", merr,
			)
		}
	}

	return err
}
