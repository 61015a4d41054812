// Package event implements the level-triggered event aggregator that carries
// work detected in interrupt context over to the main loop.
package event

import (
	"math/bits"
	"strconv"
	"strings"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/irq"
)

// ID identifies one deferred piece of work. IDs are bit positions.
type ID uint8

// None is posted by transactions that need no completion handling.
const None ID = 0xFF

// MaxID is the highest usable ID.
const MaxID ID = 31

func (id ID) valid() bool {
	return id <= MaxID
}

// Set is a fixed-size set of IDs. Membership is a flag, not a count.
type Set uint32

func (s Set) Has(id ID) bool {
	return id.valid() && s&(1<<id) != 0
}

func (s Set) With(id ID) Set {
	if !id.valid() {
		return s
	}
	return s | 1<<id
}

func (s Set) Without(id ID) Set {
	if !id.valid() {
		return s
	}
	return s &^ (1 << id)
}

func (s Set) Empty() bool {
	return s == 0
}

func (s Set) Len() int {
	return bits.OnesCount32(uint32(s))
}

// IDs lists the members in ascending order.
func (s Set) IDs() []ID {
	ids := make([]ID, 0, s.Len())
	for v := uint32(s); v != 0; v &= v - 1 {
		ids = append(ids, ID(bits.TrailingZeros32(v)))
	}
	return ids
}

func (s Set) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, id := range s.IDs() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(int(id)))
	}
	b.WriteByte('}')
	return b.String()
}

// Aggregator holds the pending events. Producers may run in interrupt context;
// every read-modify-write runs inside an irq critical section.
type Aggregator struct {
	pending Set
}

// Reset drops every pending event. Boot only.
func (a *Aggregator) Reset() {
	s := irq.Disable()
	a.pending = 0
	irq.Restore(s)
}

// Post marks id pending. Posting an already pending event has no effect.
func (a *Aggregator) Post(id ID) {
	if id == None {
		return
	}
	checkPost(id)
	s := irq.Disable()
	a.post(id)
	irq.Restore(s)
}

// PostLocked is Post for callers already inside a critical section, such as
// interrupt handlers raised through irq.Raise.
func (a *Aggregator) PostLocked(id ID) {
	if id == None {
		return
	}
	checkPost(id)
	a.post(id)
}

func checkPost(id ID) {
	sensorcore.Assert(id.valid(), "event", "post of invalid id %d", uint8(id))
}

func (a *Aggregator) post(id ID) {
	a.pending = a.pending.With(id)
}

// Clear removes id. The consumer clears an event before running its handler.
func (a *Aggregator) Clear(id ID) {
	s := irq.Disable()
	a.pending = a.pending.Without(id)
	irq.Restore(s)
}

// Peek returns the pending events without clearing them.
func (a *Aggregator) Peek() Set {
	s := irq.Disable()
	defer irq.Restore(s)
	return a.pending
}

// PeekLocked is Peek for callers already inside a critical section.
func (a *Aggregator) PeekLocked() Set {
	return a.pending
}
