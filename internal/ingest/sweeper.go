package ingest

import (
	"context"
	"log/slog"
	"time"
)

// StallLedger is the reaping slice of the document repository.
type StallLedger interface {
	FailStalled(ctx context.Context, now time.Time, message string) (int64, error)
}

// StallSweeper marks processing documents whose lease expired as failed with
// a timeout error. A crashed or wedged worker stops heartbeating, its lease
// runs out, and the next sweep turns the stuck processing row into a terminal
// failed one.
type StallSweeper struct {
	ledger StallLedger
	logger *slog.Logger
}

func NewStallSweeper(ledger StallLedger) *StallSweeper {
	return &StallSweeper{
		ledger: ledger,
		logger: slog.Default().With("component", "stall_sweeper"),
	}
}

func (s *StallSweeper) Name() string {
	return "ingest_stall_sweeper"
}

func (s *StallSweeper) Run(ctx context.Context) error {
	reaped, err := s.ledger.FailStalled(ctx, time.Now(), "processing lease expired: worker stalled or crashed")
	if err != nil {
		return err
	}
	if reaped > 0 {
		s.logger.Warn("reaped stalled documents", "count", reaped)
	}
	return nil
}
