package i2c

import "github.com/mklimuk/sensorcore"

// Starter begins transactions.
type Starter interface {
	Start(req Request)
}

// Buses routes requests to the engine of the selected bus.
type Buses struct {
	engines [NumBuses]*Engine
}

// NewBuses returns a router over the given engines. A nil engine marks a bus
// that was never opened.
func NewBuses(a, b *Engine) *Buses {
	return &Buses{engines: [NumBuses]*Engine{BusA: a, BusB: b}}
}

// Engine returns the engine of bus.
func (b *Buses) Engine(bus Bus) *Engine {
	sensorcore.Assert(bus < NumBuses && b.engines[bus] != nil, "i2c", "%s is not open", bus)
	return b.engines[bus]
}

func (b *Buses) Start(req Request) {
	b.Engine(req.Bus).Start(req)
}
