package ingest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// PendingSource lists documents still waiting for a worker.
type PendingSource interface {
	PendingIDs(ctx context.Context) ([]uuid.UUID, error)
}

// Enqueuer hands a document to the worker pool.
type Enqueuer interface {
	Enqueue(id uuid.UUID) error
}

// PendingRequeuer re-enqueues documents still pending: submissions whose
// enqueue was rejected by a saturated pool, or backlog a startup seed did not
// fit. Runs on the scheduler alongside the stall sweeper. Re-enqueueing a
// document a worker already picked up is harmless, the lease claim rejects it.
type PendingRequeuer struct {
	source PendingSource
	ingest Enqueuer
	logger *slog.Logger
}

func NewPendingRequeuer(source PendingSource, ingest Enqueuer) *PendingRequeuer {
	return &PendingRequeuer{
		source: source,
		ingest: ingest,
		logger: slog.Default().With("component", "pending_requeuer"),
	}
}

func (r *PendingRequeuer) Name() string {
	return "ingest_pending_requeue"
}

func (r *PendingRequeuer) Run(ctx context.Context) error {
	ids, err := r.source.PendingIDs(ctx)
	if err != nil {
		return err
	}
	queued := 0
	for _, id := range ids {
		if err := r.ingest.Enqueue(id); err != nil {
			if errors.Is(err, ants.ErrPoolOverload) {
				// Pool is full again; the rest waits for the next cycle.
				break
			}
			return err
		}
		queued++
	}
	if queued > 0 {
		r.logger.Info("requeued pending documents", "count", queued)
	}
	return nil
}
