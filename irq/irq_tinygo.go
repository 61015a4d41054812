//go:build tinygo

package irq

import "runtime/interrupt"

// State is the interrupt mask saved by Disable.
type State = interrupt.State

// Disable masks interrupts and returns the previous state.
func Disable() State {
	return interrupt.Disable()
}

// Restore restores the interrupt state saved by Disable.
func Restore(state State) {
	interrupt.Restore(state)
}

// Raise runs isr with interrupts masked. Hardware handlers are entered by the
// NVIC; this is for software-triggered work only.
func Raise(isr func()) {
	state := interrupt.Disable()
	isr()
	interrupt.Restore(state)
}
