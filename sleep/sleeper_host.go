//go:build !tinygo

package sleep

import "github.com/mklimuk/sensorcore/irq"

// DefaultSleeper parks the main loop until the next raised interrupt.
func DefaultSleeper() Sleeper {
	return SleeperFunc(func(Level) {
		irq.Wait()
	})
}
