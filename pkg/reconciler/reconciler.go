package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pixperk/lockttl/pkg/clock"
	"github.com/pixperk/lockttl/pkg/deadletter"
	"github.com/pixperk/lockttl/pkg/metrics"
	"github.com/pixperk/lockttl/pkg/stream"
	"github.com/pixperk/lockttl/pkg/types"
	"github.com/pixperk/lockttl/pkg/updater"
)

// how many times one event handling gets re-invoked after a panic before
// the event is forwarded to the failure sink
const invocationRetryAttempts = 2

// Reconciler tails the change stream and drives every event through the
// ttl updater
// one sequential worker per shard keeps per-key commit order; a semaphore
// caps how many shards process at once so the record store is not flooded
// with conditional writes
type Reconciler struct {
	stream        stream.ChangeStream
	updater       *updater.Updater
	sink          deadletter.Sink
	alarms        updater.ErrorRecorder
	batchSize     int
	concurrency   int
	pollInterval  time.Duration
	handleTimeout time.Duration
	refreshEvery  time.Duration
	clock         clock.Clock
	logger        *slog.Logger
}

type Config struct {
	Stream        stream.ChangeStream
	Updater       *updater.Updater
	Sink          deadletter.Sink
	Alarms        updater.ErrorRecorder
	BatchSize     int
	Concurrency   int
	PollInterval  time.Duration
	HandleTimeout time.Duration
	RefreshEvery  time.Duration
	Clock         clock.Clock
	Logger        *slog.Logger
}

func New(cfg Config) *Reconciler {
	r := &Reconciler{
		stream:        cfg.Stream,
		updater:       cfg.Updater,
		sink:          cfg.Sink,
		alarms:        cfg.Alarms,
		batchSize:     cfg.BatchSize,
		concurrency:   cfg.Concurrency,
		pollInterval:  cfg.PollInterval,
		handleTimeout: cfg.HandleTimeout,
		refreshEvery:  cfg.RefreshEvery,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
	if r.batchSize <= 0 {
		r.batchSize = 100
	}
	if r.concurrency <= 0 {
		r.concurrency = 2
	}
	if r.pollInterval <= 0 {
		r.pollInterval = time.Second
	}
	if r.handleTimeout <= 0 {
		r.handleTimeout = 30 * time.Second
	}
	if r.refreshEvery <= 0 {
		r.refreshEvery = 30 * time.Second
	}
	if r.clock == nil {
		r.clock = clock.System{}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Run discovers shards and processes them until the context is cancelled.
// New shards appearing mid-run are picked up on the next refresh.
func (r *Reconciler) Run(ctx context.Context) error {
	sem := make(chan struct{}, r.concurrency)
	started := make(map[string]struct{})
	var wg sync.WaitGroup

	startNew := func() error {
		shards, err := r.stream.Shards(ctx)
		if err != nil {
			return fmt.Errorf("list shards: %w", err)
		}
		for _, shardID := range shards {
			if _, ok := started[shardID]; ok {
				continue
			}
			started[shardID] = struct{}{}
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				r.runShard(ctx, id, sem)
			}(shardID)
		}
		return nil
	}

	if err := startNew(); err != nil {
		return err
	}
	r.logger.Info("reconciler started", "shards", len(started), "concurrency", r.concurrency)

	ticker := time.NewTicker(r.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			r.logger.Info("reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := startNew(); err != nil {
				r.logger.Warn("shard refresh failed", "error", err)
			}
		}
	}
}

// runShard polls one shard sequentially, preserving commit order.
// transient read failures back off and re-read from the same position,
// records are never skipped.
func (r *Reconciler) runShard(ctx context.Context, shardID string, sem chan struct{}) {
	position := ""
	readBackoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}
		metrics.ShardWorkersActive.Inc()

		idle, err := func() (bool, error) {
			defer func() {
				metrics.ShardWorkersActive.Dec()
				<-sem
			}()

			start := time.Now()
			events, next, err := r.stream.Read(ctx, shardID, position, r.batchSize)
			if err != nil {
				return false, err
			}
			if len(events) == 0 {
				return true, nil
			}

			failed := 0
			for _, ev := range events {
				res := r.process(ctx, ev)
				if res == updater.ResultInterrupted {
					// cancellation or handle timeout: keep the position so
					// the whole batch is redelivered, handling tolerates it
					return true, nil
				}
				if res == updater.ResultDeadLettered {
					failed++
				}
			}
			// the position only advances after the whole batch is resolved,
			// so a crash here means redelivery, which handling tolerates
			position = next

			metrics.PollDuration.WithLabelValues(shardID).Observe(time.Since(start).Seconds())
			r.logger.Info("batch resolved",
				"shard_id", shardID,
				"processed", len(events)-failed,
				"failed", failed)
			return false, nil
		}()

		switch {
		case err != nil:
			if ctx.Err() != nil {
				return
			}
			r.logger.Warn("stream read failed", "shard_id", shardID, "error", err)
			if !sleep(ctx, readBackoff) {
				return
			}
			readBackoff = min(readBackoff*2, 30*time.Second)
		case idle:
			readBackoff = time.Second
			if !sleep(ctx, r.pollInterval) {
				return
			}
		default:
			readBackoff = time.Second
			// yield between batches
			if !sleep(ctx, 0) {
				return
			}
		}
	}
}

// process resolves one event, surviving handler panics up to the invocation
// retry budget; past that the event goes to the failure sink.
func (r *Reconciler) process(ctx context.Context, ev types.ChangeEvent) updater.Result {
	for attempt := 1; attempt <= invocationRetryAttempts; attempt++ {
		res, panicked := r.invoke(ctx, ev)
		if !panicked {
			metrics.RecordsProcessedTotal.WithLabelValues(res.String()).Inc()
			return res
		}
		r.logger.Error("handler crashed",
			"lock_id", ev.LockID,
			"shard_id", ev.ShardID,
			"attempt", attempt)
		metrics.HandlerErrorsTotal.Inc()
		if r.alarms != nil {
			r.alarms.RecordError()
		}
	}

	entry := types.DeadLetterEntry{
		ID:       uuid.NewString(),
		Event:    ev,
		Reason:   "handler crashed repeatedly",
		FailedAt: r.clock.Now(),
	}
	if err := r.sink.Enqueue(ctx, entry); err != nil {
		r.logger.Error("failed to dead-letter crashed event",
			"lock_id", ev.LockID, "error", err)
	}
	metrics.RecordsProcessedTotal.WithLabelValues(updater.ResultDeadLettered.String()).Inc()
	return updater.ResultDeadLettered
}

func (r *Reconciler) invoke(ctx context.Context, ev types.ChangeEvent) (res updater.Result, panicked bool) {
	hctx, cancel := context.WithTimeout(ctx, r.handleTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			panicked = true
		}
	}()
	return r.updater.Handle(hctx, ev), false
}

// sleep waits for d unless the context ends first; returns false on cancel.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
