//go:build !tinygo

package irq

import "sync"

// State is the interrupt mask saved by Disable.
type State uintptr

var (
	mu     sync.Mutex
	wake   = sync.NewCond(&mu)
	raised uint64
)

// Disable enters a critical section.
func Disable() State {
	mu.Lock()
	return 0
}

// Restore leaves the critical section entered by Disable.
func Restore(state State) {
	mu.Unlock()
}

// Wait parks the caller until the next interrupt is raised, the way WFI does
// with interrupts masked. It must be called inside a critical section; the
// section is released while waiting and held again on return.
func Wait() {
	seq := raised
	for raised == seq {
		wake.Wait()
	}
}

// Raise runs isr as an interrupt handler: atomically with respect to every
// critical section, then wakes any sleeper.
func Raise(isr func()) {
	mu.Lock()
	defer mu.Unlock()
	isr()
	raised++
	wake.Broadcast()
}
