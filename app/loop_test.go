package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/irq"
	"github.com/mklimuk/sensorcore/sleep"
)

type sleepRecorder struct {
	levels []sleep.Level
}

func (r *sleepRecorder) Sleep(level sleep.Level) {
	r.levels = append(r.levels, level)
}

func TestLoop_DispatchesAscendingAndClearsFirst(t *testing.T) {
	events := &event.Aggregator{}
	loop := NewLoop(events, sleep.NewArbiter(&sleepRecorder{}))

	var order []event.ID
	loop.Register(9, func() { order = append(order, 9) })
	loop.Register(2, func() {
		order = append(order, 2)
		assert.False(t, events.Peek().Has(2))
		events.Post(2)
	})

	events.Post(9)
	events.Post(2)
	events.Post(2)

	assert.Equal(t, 2, loop.Step())
	assert.Equal(t, []event.ID{2, 9}, order)
	assert.Equal(t, event.Set(0).With(2), events.Peek())

	assert.Equal(t, 1, loop.Step())
	assert.Equal(t, []event.ID{2, 9, 2}, order)
}

func TestLoop_SleepsWhenIdle(t *testing.T) {
	rec := &sleepRecorder{}
	arbiter := sleep.NewArbiter(rec)
	loop := NewLoop(&event.Aggregator{}, arbiter)

	assert.Zero(t, loop.Step())
	arbiter.Block(sleep.EM3)
	assert.Zero(t, loop.Step())
	arbiter.Block(sleep.EM1)
	assert.Zero(t, loop.Step())

	assert.Equal(t, []sleep.Level{sleep.EM3, sleep.EM2}, rec.levels)
	sleeps := loop.Sleeps()
	assert.Equal(t, 1, sleeps[sleep.EM3])
	assert.Equal(t, 1, sleeps[sleep.EM2])
	assert.Equal(t, 1, sleeps[sleep.EM0])
}

func TestLoop_MissingHandlerIsFatal(t *testing.T) {
	events := &event.Aggregator{}
	loop := NewLoop(events, sleep.NewArbiter(&sleepRecorder{}))
	events.Post(4)
	assertFault(t, func() { loop.Step() })
	assertFault(t, func() { loop.Register(event.None, func() {}) })
}

func TestLoop_RunWakesOnInterrupt(t *testing.T) {
	events := &event.Aggregator{}
	loop := NewLoop(events, sleep.NewArbiter(nil))
	got := make(chan struct{}, 1)
	loop.Register(6, func() { got <- struct{}{} })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	irq.Raise(func() { events.PostLocked(6) })
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("event not dispatched")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func assertFault(t *testing.T, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a fault")
		_, ok := r.(*sensorcore.Fault)
		assert.True(t, ok, "panic value %v is not a fault", r)
	}()
	fn()
}
