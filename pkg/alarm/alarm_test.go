package alarm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureNotifier struct {
	transitions []Transition
}

func (n *captureNotifier) Notify(_ context.Context, t Transition) {
	n.transitions = append(n.transitions, t)
}

// TestAlarmTransitionSeries verifies the [2,0,0] series: ALARM on the first
// window, OK on the second, no transition on the third
func TestAlarmTransitionSeries(t *testing.T) {
	n := &captureNotifier{}
	e := NewEvaluator(300*time.Second, 1, n)
	ctx := context.Background()

	// window 1: two errors
	e.RecordError()
	e.RecordError()
	e.Evaluate(ctx)
	assert.Equal(t, StateAlarm, e.State())

	// window 2: quiet
	e.Evaluate(ctx)
	assert.Equal(t, StateOK, e.State())

	// window 3: still quiet, no further transition
	e.Evaluate(ctx)
	assert.Equal(t, StateOK, e.State())

	require.Len(t, n.transitions, 2)
	assert.Equal(t, StateOK, n.transitions[0].From)
	assert.Equal(t, StateAlarm, n.transitions[0].To)
	assert.Equal(t, 2, n.transitions[0].WindowSum)
	assert.Equal(t, StateAlarm, n.transitions[1].From)
	assert.Equal(t, StateOK, n.transitions[1].To)
	assert.Equal(t, 0, n.transitions[1].WindowSum)
}

// TestAlarmBelowThreshold verifies errors under the threshold never alarm
func TestAlarmBelowThreshold(t *testing.T) {
	n := &captureNotifier{}
	e := NewEvaluator(300*time.Second, 3, n)
	ctx := context.Background()

	e.RecordError()
	e.RecordError()
	e.Evaluate(ctx)

	assert.Equal(t, StateOK, e.State())
	assert.Empty(t, n.transitions)
}

// TestAlarmWindowResets verifies each window is counted from zero
func TestAlarmWindowResets(t *testing.T) {
	e := NewEvaluator(300*time.Second, 2, &captureNotifier{})
	ctx := context.Background()

	e.RecordError()
	e.Evaluate(ctx)
	assert.Equal(t, StateOK, e.State())

	// one more error in the next window must not stack with the previous one
	e.RecordError()
	e.Evaluate(ctx)
	assert.Equal(t, StateOK, e.State())
}

// TestAlarmStaysRaisedWhileErrorsContinue verifies no flapping under load
func TestAlarmStaysRaisedWhileErrorsContinue(t *testing.T) {
	n := &captureNotifier{}
	e := NewEvaluator(300*time.Second, 1, n)
	ctx := context.Background()

	e.RecordError()
	e.Evaluate(ctx)
	e.RecordError()
	e.Evaluate(ctx)

	assert.Equal(t, StateAlarm, e.State())
	assert.Len(t, n.transitions, 1, "staying in ALARM is not a transition")
}
