package alarm

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pixperk/lockttl/pkg/metrics"
)

// alarm state over the error counter
// OK -> ALARM when the window sum crosses the threshold
// ALARM -> OK on a later window summing to zero
// single evaluation period, no further hysteresis
type State int

const (
	StateOK State = iota
	StateAlarm
)

func (s State) String() string {
	if s == StateAlarm {
		return "ALARM"
	}
	return "OK"
}

// Transition is one state change, pushed to the notifier.
type Transition struct {
	From      State
	To        State
	WindowSum int
	At        time.Time
}

// Notifier forwards alarm transitions to a notification channel.
type Notifier interface {
	Notify(ctx context.Context, t Transition)
}

// LogNotifier writes transitions to the structured log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, t Transition) {
	n.Logger.Warn("alarm state changed",
		"from", t.From.String(),
		"to", t.To.String(),
		"window_errors", t.WindowSum)
}

// Evaluator samples the handler error count over fixed windows.
type Evaluator struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	state     State
	errors    int // errors recorded in the current window
	notifier  Notifier
	now       func() time.Time
}

func NewEvaluator(window time.Duration, threshold int, notifier Notifier) *Evaluator {
	return &Evaluator{
		window:    window,
		threshold: threshold,
		notifier:  notifier,
		now:       time.Now,
	}
}

// RecordError counts one handler error into the current window.
func (e *Evaluator) RecordError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.errors++
}

// Evaluate closes the current window and applies the state machine.
func (e *Evaluator) Evaluate(ctx context.Context) {
	e.mu.Lock()
	sum := e.errors
	e.errors = 0
	from := e.state

	switch {
	case e.state == StateOK && sum >= e.threshold:
		e.state = StateAlarm
	case e.state == StateAlarm && sum == 0:
		e.state = StateOK
	}
	to := e.state
	e.mu.Unlock()

	if to == StateAlarm {
		metrics.AlarmState.Set(1)
	} else {
		metrics.AlarmState.Set(0)
	}

	if from != to && e.notifier != nil {
		e.notifier.Notify(ctx, Transition{From: from, To: to, WindowSum: sum, At: e.now()})
	}
}

// Run evaluates on every window tick until the context is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Evaluate(ctx)
		}
	}
}

func (e *Evaluator) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
