package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/tgo/mindvault/internal/apperr"
	"github.com/tgo/mindvault/internal/model"
)

// Ledger is the document repository surface the coordinator drives the state
// machine through. Every transition is a conditional write: the claim takes
// the lease, the terminal writes require it.
type Ledger interface {
	ClaimPending(ctx context.Context, id uuid.UUID, owner string, leaseTTL time.Duration) (*model.Document, bool, error)
	ExtendLease(ctx context.Context, id uuid.UUID, owner string, leaseTTL time.Duration) error
	CompleteWithChunks(ctx context.Context, id uuid.UUID, owner string, chunks []model.Chunk) error
	MarkFailed(ctx context.Context, id uuid.UUID, owner string, message string) error
	PendingIDs(ctx context.Context) ([]uuid.UUID, error)
}

const maxErrorMessageLen = 2000

// Coordinator owns document state transitions. Workers pull claimed documents
// through a pool; exactly one worker holds the processing lease for a given
// document at a time, duplicate dequeues no-op on the claim.
type Coordinator struct {
	ledger    Ledger
	processor Processor
	pool      *ants.Pool
	owner     string

	leaseTTL          time.Duration
	heartbeatInterval time.Duration
	processingTimeout time.Duration

	mu       sync.Mutex
	inflight map[uuid.UUID]context.CancelFunc

	baseCtx   context.Context
	cancelAll context.CancelFunc
	wg        sync.WaitGroup
	logger    *slog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithPoolSize sets the worker pool size. Default is 4.
func WithPoolSize(size int) Option {
	return func(c *Coordinator) error {
		if size < 1 {
			size = 1
		}
		if c.pool != nil {
			c.pool.Release()
		}
		pool, err := ants.NewPool(size, ants.WithNonblocking(true))
		if err != nil {
			return err
		}
		c.pool = pool
		return nil
	}
}

// WithLeaseTTL sets how long a claim stays valid between heartbeats.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(c *Coordinator) error {
		if ttl > 0 {
			c.leaseTTL = ttl
		}
		return nil
	}
}

// WithHeartbeatInterval sets the lease renewal cadence.
func WithHeartbeatInterval(interval time.Duration) Option {
	return func(c *Coordinator) error {
		if interval > 0 {
			c.heartbeatInterval = interval
		}
		return nil
	}
}

// WithProcessingTimeout bounds a single document's processing run.
func WithProcessingTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) error {
		if timeout > 0 {
			c.processingTimeout = timeout
		}
		return nil
	}
}

// WithLogger sets a custom logger. Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

func NewCoordinator(ledger Ledger, processor Processor, opts ...Option) (*Coordinator, error) {
	if ledger == nil {
		return nil, errors.New("ingest: ledger is required")
	}
	if processor == nil {
		return nil, errors.New("ingest: processor is required")
	}

	baseCtx, cancelAll := context.WithCancel(context.Background())
	c := &Coordinator{
		ledger:            ledger,
		processor:         processor,
		owner:             uuid.New().String(),
		leaseTTL:          60 * time.Second,
		heartbeatInterval: 20 * time.Second,
		processingTimeout: 5 * time.Minute,
		inflight:          make(map[uuid.UUID]context.CancelFunc),
		baseCtx:           baseCtx,
		cancelAll:         cancelAll,
		logger:            slog.Default().With("component", "ingest_coordinator"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			cancelAll()
			if c.pool != nil {
				c.pool.Release()
			}
			return nil, err
		}
	}

	if c.pool == nil {
		pool, err := ants.NewPool(4, ants.WithNonblocking(true))
		if err != nil {
			cancelAll()
			return nil, err
		}
		c.pool = pool
	}

	return c, nil
}

// Start requeues documents that were pending when the previous instance
// stopped. Stalled processing documents are the sweeper's job, not Start's.
// A backlog larger than the pool is seeded up to capacity; the requeue task
// drains the rest.
func (c *Coordinator) Start(ctx context.Context) error {
	ids, err := c.ledger.PendingIDs(ctx)
	if err != nil {
		return err
	}
	queued := 0
	for _, id := range ids {
		if err := c.Enqueue(id); err != nil {
			if errors.Is(err, ants.ErrPoolOverload) {
				break
			}
			return err
		}
		queued++
	}
	if queued > 0 {
		c.logger.Info("requeued pending documents", "count", queued)
	}
	return nil
}

// Enqueue schedules a document for processing. Safe to call multiple times
// for the same id; the lease claim rejects duplicates. The pool is
// non-blocking: a saturated pool returns ants.ErrPoolOverload immediately
// instead of stalling the caller, and the document stays pending for the
// requeue task.
func (c *Coordinator) Enqueue(id uuid.UUID) error {
	c.wg.Add(1)
	err := c.pool.Submit(func() {
		defer c.wg.Done()
		c.process(id)
	})
	if err != nil {
		c.wg.Done()
		return err
	}
	return nil
}

// Cancel abandons in-flight work for a document. Called on delete; the
// ledger's conditional terminal writes keep a late success from resurrecting
// the deleted record even if this races completion.
func (c *Coordinator) Cancel(id uuid.UUID) {
	c.mu.Lock()
	cancel, ok := c.inflight[id]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Close stops accepting work and waits for in-flight workers to wind down.
// Interrupted documents keep their lease and are reaped by the stall sweeper.
func (c *Coordinator) Close() {
	c.cancelAll()
	c.wg.Wait()
	c.pool.Release()
}

func (c *Coordinator) process(id uuid.UUID) {
	doc, claimed, err := c.ledger.ClaimPending(c.baseCtx, id, c.owner, c.leaseTTL)
	if err != nil {
		c.logger.Error("claim failed", "document_id", id, "error", err)
		return
	}
	if !claimed {
		// Already claimed, already terminal, or deleted.
		return
	}

	ctx, cancel := context.WithTimeout(c.baseCtx, c.processingTimeout)
	defer cancel()

	c.mu.Lock()
	c.inflight[id] = cancel
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
	}()

	stopHeartbeat := c.startHeartbeat(ctx, id)
	defer stopHeartbeat()

	started := time.Now()
	chunks, procErr := c.processor.Process(ctx, doc)

	switch {
	case procErr == nil && len(chunks) == 0:
		// Zero extracted chunks is a failure, not a vacuous completion.
		c.fail(id, "no chunks produced from document")
	case procErr == nil:
		if err := c.ledger.CompleteWithChunks(c.baseCtx, id, c.owner, chunks); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				c.logger.Info("document deleted during processing, outcome dropped", "document_id", id)
				return
			}
			c.logger.Error("completion write failed", "document_id", id, "error", err)
			return
		}
		c.logger.Info("document completed",
			"document_id", id,
			"chunks", len(chunks),
			"duration", time.Since(started))
	case errors.Is(procErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		c.fail(id, "processing deadline exceeded")
	case errors.Is(procErr, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		// Cancelled by delete or shutdown. Nothing to record: the row is
		// gone, or the sweeper reaps the lease after a shutdown.
		c.logger.Info("processing cancelled", "document_id", id)
	default:
		c.fail(id, truncate(procErr.Error(), maxErrorMessageLen))
	}
}

func (c *Coordinator) fail(id uuid.UUID, message string) {
	if err := c.ledger.MarkFailed(context.Background(), id, c.owner, message); err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return
		}
		c.logger.Error("failure write failed", "document_id", id, "error", err)
		return
	}
	c.logger.Warn("document failed", "document_id", id, "reason", message)
}

func (c *Coordinator) startHeartbeat(ctx context.Context, id uuid.UUID) func() {
	done := make(chan struct{})
	var once sync.Once
	go func() {
		ticker := time.NewTicker(c.heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if err := c.ledger.ExtendLease(ctx, id, c.owner, c.leaseTTL); err != nil {
					c.logger.Warn("heartbeat failed", "document_id", id, "error", err)
				}
			}
		}
	}()
	return func() { once.Do(func() { close(done) }) }
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
