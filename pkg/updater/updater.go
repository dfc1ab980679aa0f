package updater

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pixperk/lockttl/pkg/clock"
	"github.com/pixperk/lockttl/pkg/deadletter"
	"github.com/pixperk/lockttl/pkg/metrics"
	"github.com/pixperk/lockttl/pkg/store"
	"github.com/pixperk/lockttl/pkg/types"
)

// outcome of handling one change event
type Result uint

const (
	// ResultUpdated - a new expiration was written
	ResultUpdated Result = iota + 1
	// ResultSkipped - the record still had enough time left, no write
	ResultSkipped
	// ResultNoop - nothing to do (REMOVE event, or another writer already
	// advanced the expiration further)
	ResultNoop
	// ResultDeadLettered - the event could not be processed and went to the
	// failure sink
	ResultDeadLettered
	// ResultInterrupted - the context ended before the event resolved;
	// the event stays at its stream position and will be redelivered
	ResultInterrupted
)

func (r Result) String() string {
	switch r {
	case ResultUpdated:
		return "updated"
	case ResultSkipped:
		return "skipped"
	case ResultNoop:
		return "noop"
	case ResultDeadLettered:
		return "dead_lettered"
	case ResultInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// RetryPolicy bounds how hard one event is retried
// explicit object, not ambient platform behavior
type RetryPolicy struct {
	MaxAttempts  int           // per-event attempt budget
	MaxRecordAge time.Duration // events older than this are dead-lettered, not attempted
	Backoff      time.Duration // base delay between attempts, doubles each retry
}

// ErrorRecorder receives one call per failed handling attempt.
// *alarm.Evaluator satisfies this.
type ErrorRecorder interface {
	RecordError()
}

// Updater decides whether a change event needs a new expiration written
// and performs the conditional write
// correctness rules:
// - only larger expirations ever win (monotonic, idempotent under redelivery)
// - conditional-check failures are benign, never errors
type Updater struct {
	store  store.RecordStore
	sink   deadletter.Sink
	policy RetryPolicy
	ttl    time.Duration
	grace  time.Duration
	clock  clock.Clock
	alarms ErrorRecorder
	logger *slog.Logger
}

type Config struct {
	Store  store.RecordStore
	Sink   deadletter.Sink
	Policy RetryPolicy
	TTL    time.Duration
	Grace  time.Duration
	Clock  clock.Clock
	Alarms ErrorRecorder
	Logger *slog.Logger
}

func New(cfg Config) *Updater {
	u := &Updater{
		store:  cfg.Store,
		sink:   cfg.Sink,
		policy: cfg.Policy,
		ttl:    cfg.TTL,
		grace:  cfg.Grace,
		clock:  cfg.Clock,
		alarms: cfg.Alarms,
		logger: cfg.Logger,
	}
	if u.clock == nil {
		u.clock = clock.System{}
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	if u.policy.MaxAttempts < 1 {
		u.policy.MaxAttempts = 1
	}
	if u.policy.Backoff <= 0 {
		u.policy.Backoff = 50 * time.Millisecond
	}
	return u
}

// Handle processes one change event to completion: success, benign no-op,
// or dead-letter. Recoverable errors are absorbed here; the only externally
// visible failures are the error metric and the dead-letter entry. A
// cancelled context is not a failure: the event is left untouched for the
// caller to redeliver.
func (u *Updater) Handle(ctx context.Context, ev types.ChangeEvent) Result {
	if ev.Type == types.EventTypeRemove {
		// record already gone, the store's TTL sweep or a client removed it
		return ResultNoop
	}

	if u.policy.MaxRecordAge > 0 && ev.Age(u.clock.Now()) > u.policy.MaxRecordAge {
		u.deadLetter(ctx, ev, types.ErrRecordAgeExceeded.Error(), types.ErrRecordAgeExceeded)
		return ResultDeadLettered
	}

	var lastErr error
	for attempt := 1; attempt <= u.policy.MaxAttempts; attempt++ {
		res, err := u.attempt(ctx, ev)
		if err == nil {
			return res
		}
		if ctx.Err() != nil {
			// cancellation, not a record fault: leave the event for redelivery
			return ResultInterrupted
		}
		lastErr = err
		u.recordError()
		u.logger.Warn("ttl update attempt failed",
			"lock_id", ev.LockID,
			"event", ev.Type.String(),
			"attempt", attempt,
			"error", err)

		// stop retrying once the record's age budget is spent
		if u.policy.MaxRecordAge > 0 && ev.Age(u.clock.Now()) > u.policy.MaxRecordAge {
			u.deadLetter(ctx, ev, types.ErrRecordAgeExceeded.Error(), lastErr)
			return ResultDeadLettered
		}
		if attempt < u.policy.MaxAttempts {
			select {
			case <-time.After(u.policy.Backoff << (attempt - 1)):
			case <-ctx.Done():
				return ResultInterrupted
			}
		}
	}

	u.deadLetter(ctx, ev, types.ErrRetriesExhausted.Error(), lastErr)
	return ResultDeadLettered
}

// one full attempt: freshness check, then the conditional write
func (u *Updater) attempt(ctx context.Context, ev types.ChangeEvent) (Result, error) {
	now := u.clock.Now()

	// prefer the stream's after-image; fall back to a read when the stream
	// was configured without images
	current := types.LockRecord{LockID: ev.LockID}
	if ev.NewImage != nil {
		current = *ev.NewImage
	} else {
		exp, found, err := u.store.GetExpiration(ctx, ev.LockID)
		if err != nil {
			return 0, fmt.Errorf("read current expiration: %w", err)
		}
		if found {
			current.ExpirationTime = exp
		}
	}

	if current.FreshAt(now, u.grace) {
		// still enough time left, nothing to write
		return ResultSkipped, nil
	}

	newExpiration := now.Add(u.ttl).Unix()
	applied, err := u.store.SetExpirationIfGreater(ctx, ev.LockID, newExpiration)
	if err != nil {
		return 0, err
	}
	if !applied {
		// another writer already advanced the expiration further
		metrics.ConditionalWritesTotal.WithLabelValues("lost").Inc()
		return ResultNoop, nil
	}
	metrics.ConditionalWritesTotal.WithLabelValues("applied").Inc()
	u.logger.Debug("expiration extended",
		"lock_id", ev.LockID,
		"expiration_time", newExpiration)
	return ResultUpdated, nil
}

func (u *Updater) deadLetter(ctx context.Context, ev types.ChangeEvent, reason string, cause error) {
	entry := types.DeadLetterEntry{
		ID:       uuid.NewString(),
		Event:    ev,
		Reason:   reason,
		FailedAt: u.clock.Now(),
	}
	if cause != nil {
		entry.LastError = cause.Error()
	}

	if err := u.sink.Enqueue(ctx, entry); err != nil {
		// the sink already exhausted its own fallbacks, nothing left to try
		u.logger.Error("failed to dead-letter event",
			"lock_id", ev.LockID,
			"reason", reason,
			"error", err)
	}
}

func (u *Updater) recordError() {
	metrics.HandlerErrorsTotal.Inc()
	if u.alarms != nil {
		u.alarms.RecordError()
	}
}
