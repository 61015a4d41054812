//go:build tinygo && cortexm

package sleep

import "device/arm"

const scrSleepDeep = 1 << 2

// CortexM sleeps with WFI. EM2 and EM3 set SLEEPDEEP; BeforeDeep lets board
// code gate the clocks that differ between the two deep modes.
type CortexM struct {
	BeforeDeep func(level Level)
}

func (c CortexM) Sleep(level Level) {
	if level >= EM2 {
		if c.BeforeDeep != nil {
			c.BeforeDeep(level)
		}
		arm.SCB.SCR.SetBits(scrSleepDeep)
	} else {
		arm.SCB.SCR.ClearBits(scrSleepDeep)
	}
	arm.Asm("wfi")
}

// DefaultSleeper returns a CortexM sleeper without clock hooks.
func DefaultSleeper() Sleeper {
	return CortexM{}
}
