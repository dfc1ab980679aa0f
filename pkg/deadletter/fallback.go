package deadletter

import (
	"context"
	"log/slog"
	"time"

	"github.com/pixperk/lockttl/pkg/metrics"
	"github.com/pixperk/lockttl/pkg/types"
)

// FallbackSink tries the primary sink a bounded number of times, then falls
// back to the local spool. If the spool write fails too, the entry is dropped
// with a loud log - the acknowledged catastrophic-loss path.
type FallbackSink struct {
	primary  Sink
	spool    Sink
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

func NewFallbackSink(primary, spool Sink, attempts int, logger *slog.Logger) *FallbackSink {
	if attempts < 1 {
		attempts = 1
	}
	return &FallbackSink{
		primary:  primary,
		spool:    spool,
		attempts: attempts,
		backoff:  100 * time.Millisecond,
		logger:   logger,
	}
}

func (s *FallbackSink) Enqueue(ctx context.Context, entry types.DeadLetterEntry) error {
	var lastErr error
	for i := 0; i < s.attempts; i++ {
		if lastErr = s.primary.Enqueue(ctx, entry); lastErr == nil {
			metrics.DeadLettersTotal.WithLabelValues("queue").Inc()
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(s.backoff << i):
		case <-ctx.Done():
		}
	}

	s.logger.Warn("dead-letter queue unreachable, spooling locally",
		"entry_id", entry.ID,
		"lock_id", entry.Event.LockID,
		"error", lastErr)

	if s.spool != nil {
		err := s.spool.Enqueue(ctx, entry)
		if err == nil {
			metrics.DeadLettersTotal.WithLabelValues("spool").Inc()
			return nil
		}
		lastErr = err
	}

	// nothing durable accepted the entry, this loses data
	s.logger.Error("DROPPING dead-letter entry, all sinks failed",
		"entry_id", entry.ID,
		"lock_id", entry.Event.LockID,
		"reason", entry.Reason,
		"error", lastErr)
	metrics.DeadLettersTotal.WithLabelValues("dropped").Inc()
	return lastErr
}
