package i2c

import (
	"fmt"

	"github.com/mklimuk/sensorcore/irq"
)

// TraceSize is the number of handled conditions kept for post-mortem.
const TraceSize = 32

// TraceEntry records one handled interrupt condition.
type TraceEntry struct {
	Seq  uint32
	Cond Flags
	From PhaseKind
	To   PhaseKind
}

func (e TraceEntry) String() string {
	return fmt.Sprintf("#%d %s: %s -> %s", e.Seq, e.Cond, e.From, e.To)
}

// trace is written from the interrupt handler only.
type trace struct {
	ring [TraceSize]TraceEntry
	seq  uint32
}

func (t *trace) add(cond Flags, from, to PhaseKind) {
	t.seq++
	t.ring[t.seq%TraceSize] = TraceEntry{Seq: t.seq, Cond: cond, From: from, To: to}
}

func (t *trace) entries() []TraceEntry {
	n := t.seq
	if n > TraceSize {
		n = TraceSize
	}
	out := make([]TraceEntry, 0, n)
	for seq := t.seq - n + 1; seq <= t.seq; seq++ {
		out = append(out, t.ring[seq%TraceSize])
	}
	return out
}

// Trace returns the last handled conditions, oldest first.
func (e *Engine) Trace() []TraceEntry {
	s := irq.Disable()
	defer irq.Restore(s)
	return e.trace.entries()
}

// Conditions returns the condition of each traced entry, oldest first.
func (e *Engine) Conditions() []Flags {
	entries := e.Trace()
	out := make([]Flags, len(entries))
	for i, en := range entries {
		out[i] = en.Cond
	}
	return out
}

// ResetTrace drops the recorded history.
func (e *Engine) ResetTrace() {
	s := irq.Disable()
	e.trace = trace{}
	irq.Restore(s)
}
