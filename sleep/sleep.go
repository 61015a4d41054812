// Package sleep arbitrates which low-power state the processor may enter.
//
// Peripherals hold a block on the shallowest level they cannot tolerate while
// they are active. The arbiter then lets the processor drop one level below the
// shallowest held block and no deeper.
package sleep

import (
	"fmt"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/irq"
)

// Level is a processor energy mode. EM0 is fully active; higher is deeper.
type Level uint8

const (
	EM0 Level = iota
	EM1
	EM2
	EM3
	EM4
)

// NumLevels is the number of energy modes.
const NumLevels = 5

// MaxHolds bounds the holders of one level; reaching it means a caller is
// blocking without unblocking.
const MaxHolds = 5

func (l Level) String() string {
	if l >= NumLevels {
		return fmt.Sprintf("EM?(%d)", uint8(l))
	}
	return fmt.Sprintf("EM%d", uint8(l))
}

// Sleeper executes the sleep instruction for an energy mode. It is called
// with interrupts masked and must return once an interrupt is pending.
type Sleeper interface {
	Sleep(level Level)
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(level Level)

func (f SleeperFunc) Sleep(level Level) {
	f(level)
}

// Arbiter counts the outstanding blocks per level.
type Arbiter struct {
	counts  [NumLevels]int
	sleeper Sleeper
}

// NewArbiter returns an opened arbiter. A nil sleeper selects the platform
// default.
func NewArbiter(sleeper Sleeper) *Arbiter {
	if sleeper == nil {
		sleeper = DefaultSleeper()
	}
	a := &Arbiter{sleeper: sleeper}
	a.Open()
	return a
}

// Open clears every block.
func (a *Arbiter) Open() {
	s := irq.Disable()
	a.counts = [NumLevels]int{}
	irq.Restore(s)
}

// Block forbids entering level until the matching Unblock.
func (a *Arbiter) Block(level Level) {
	s := irq.Disable()
	defer irq.Restore(s)
	a.BlockLocked(level)
}

// BlockLocked is Block for callers already inside a critical section.
func (a *Arbiter) BlockLocked(level Level) {
	checkLevel(level)
	sensorcore.Assert(a.counts[level] < MaxHolds-1, "sleep", "%s blocked %d times without unblock", level, a.counts[level]+1)
	a.counts[level]++
}

// Unblock releases one Block of level.
func (a *Arbiter) Unblock(level Level) {
	s := irq.Disable()
	defer irq.Restore(s)
	a.UnblockLocked(level)
}

// UnblockLocked is Unblock for callers already inside a critical section.
func (a *Arbiter) UnblockLocked(level Level) {
	checkLevel(level)
	sensorcore.Assert(a.counts[level] > 0, "sleep", "%s unblocked without a matching block", level)
	a.counts[level]--
}

// CurrentFloor returns the shallowest blocked level, or EM4 when nothing is
// blocked.
func (a *Arbiter) CurrentFloor() Level {
	s := irq.Disable()
	defer irq.Restore(s)
	return a.floor()
}

func (a *Arbiter) floor() Level {
	for l := EM0; l < NumLevels; l++ {
		if a.counts[l] > 0 {
			return l
		}
	}
	return EM4
}

// EnterBestSleep enters the deepest energy mode compatible with the held
// blocks and returns the mode entered, or EM0 if the processor stayed awake.
func (a *Arbiter) EnterBestSleep() Level {
	s := irq.Disable()
	defer irq.Restore(s)
	return a.EnterBestSleepLocked()
}

// EnterBestSleepLocked is EnterBestSleep for callers already inside a
// critical section. The main loop uses it to peek at pending events and sleep
// without a window in which a posted event could go unnoticed.
func (a *Arbiter) EnterBestSleepLocked() Level {
	level := a.bestSleep()
	if level != EM0 {
		a.sleeper.Sleep(level)
	}
	return level
}

func (a *Arbiter) bestSleep() Level {
	switch {
	case a.counts[EM0] > 0, a.counts[EM1] > 0:
		return EM0
	case a.counts[EM2] > 0:
		return EM1
	case a.counts[EM3] > 0:
		return EM2
	default:
		return EM3
	}
}

// Counts returns a snapshot of the block counts.
func (a *Arbiter) Counts() [NumLevels]int {
	s := irq.Disable()
	defer irq.Restore(s)
	return a.counts
}

func checkLevel(level Level) {
	sensorcore.Assert(level < NumLevels, "sleep", "invalid energy mode %d", uint8(level))
}
