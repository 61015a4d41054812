// Package app runs the cooperative main loop and the sensor station built on
// top of the bus engine.
package app

import (
	"context"
	"log/slog"
	"runtime"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/irq"
	"github.com/mklimuk/sensorcore/sleep"
)

// Loop dispatches pending events and sleeps as deep as the arbiter allows
// when there are none. Handlers are registered before Run.
type Loop struct {
	events   *event.Aggregator
	arbiter  *sleep.Arbiter
	handlers [event.MaxID + 1]func()
	logger   *slog.Logger

	stopped bool
	sleeps  [sleep.NumLevels]int
	rounds  int
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

func NewLoop(events *event.Aggregator, arbiter *sleep.Arbiter, opts ...LoopOption) *Loop {
	l := &Loop{
		events:  events,
		arbiter: arbiter,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register binds handler to id, replacing any previous handler.
func (l *Loop) Register(id event.ID, handler func()) {
	sensorcore.Assert(id <= event.MaxID, "app", "cannot register event %d", id)
	l.handlers[id] = handler
}

// Step runs one iteration. With nothing pending it enters the best sleep
// inside the same critical section as the peek, so a post racing with the
// decision wakes the processor instead of being missed. Otherwise it
// dispatches every pending event once in ascending order, clearing each
// before its handler runs. It returns the number of handlers called.
func (l *Loop) Step() int {
	s := irq.Disable()
	if l.stopped {
		irq.Restore(s)
		return 0
	}
	pending := l.events.PeekLocked()
	if pending.Empty() {
		level := l.arbiter.EnterBestSleepLocked()
		l.sleeps[level]++
		irq.Restore(s)
		if level == sleep.EM0 {
			runtime.Gosched()
		}
		return 0
	}
	irq.Restore(s)

	l.rounds++
	for _, id := range pending.IDs() {
		l.events.Clear(id)
		handler := l.handlers[id]
		sensorcore.Assert(handler != nil, "app", "no handler for event %d", id)
		l.logger.Debug("dispatch", "event", id, "round", l.rounds)
		handler()
	}
	return pending.Len()
}

// Run steps until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	s := irq.Disable()
	l.stopped = false
	irq.Restore(s)
	// cancellation is delivered as an interrupt so a sleeping loop wakes
	stop := context.AfterFunc(ctx, func() {
		irq.Raise(func() {
			l.stopped = true
		})
	})
	defer stop()
	for ctx.Err() == nil {
		l.Step()
	}
	return ctx.Err()
}

// Sleeps returns how often each level was entered; EM0 counts the idle
// iterations that could not sleep.
func (l *Loop) Sleeps() [sleep.NumLevels]int {
	s := irq.Disable()
	defer irq.Restore(s)
	return l.sleeps
}
