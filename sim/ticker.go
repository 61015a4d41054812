package sim

import (
	"context"
	"time"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/irq"
)

// Ticker is a periodic interrupt source that posts an event, standing in for
// the low energy timer.
type Ticker struct {
	period time.Duration
	events *event.Aggregator
	id     event.ID
}

func NewTicker(period time.Duration, events *event.Aggregator, id event.ID) *Ticker {
	return &Ticker{period: period, events: events, id: id}
}

// Fire raises one tick.
func (t *Ticker) Fire() {
	irq.Raise(func() {
		t.events.PostLocked(t.id)
	})
}

// Run fires every period until ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	tick := time.NewTicker(t.period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			t.Fire()
		}
	}
}
