// Package environment holds the event-driven sensor drivers. A driver only
// builds transactions; completion is reported through the event passed to
// each operation, after which the result accessors are valid.
package environment

import (
	"time"

	"github.com/mklimuk/sensorcore/i2c"
)

type config struct {
	bus     i2c.Bus
	address uint8
	delay   func(time.Duration)
}

// Option places a sensor.
type Option func(*config)

// WithBus selects the bus the sensor is wired to. The default is bus A.
func WithBus(bus i2c.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithAddress overrides the default device address.
func WithAddress(address uint8) Option {
	return func(c *config) {
		c.address = address
	}
}

// WithDelay replaces the wait used between commands.
func WithDelay(delay func(time.Duration)) Option {
	return func(c *config) {
		c.delay = delay
	}
}

func newConfig(address uint8, opts []Option) config {
	c := config{address: address, delay: time.Sleep}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
