package accel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

const evDone event.ID = 2

type rig struct {
	engine *i2c.Engine
	bus    *sim.Bus
	events *event.Aggregator
}

func newRig(devices ...sim.Device) *rig {
	r := &rig{
		bus:    sim.NewBus("I2C0", sim.WithDevices(devices...)),
		events: &event.Aggregator{},
	}
	r.engine = i2c.Open(r.bus, i2c.DefaultConfig(), r.events, sleep.NewArbiter(sleep.SleeperFunc(func(sleep.Level) {})))
	r.bus.ResetWire()
	return r
}

func (r *rig) run(fn func()) {
	r.events.Clear(evDone)
	r.bus.ResetWire()
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	for {
		select {
		case <-done:
			r.bus.Drain()
			return
		default:
			r.bus.Step()
		}
	}
}

func TestBMA220_InitMotionDetection(t *testing.T) {
	device := sim.NewBMA220()
	r := newRig(device)
	b := NewBMA220(r.engine)

	assert.False(t, device.Shake(), "slope detection off after reset")

	r.run(func() { b.InitMotionDetection(evDone) })
	assert.Equal(t, "S 0A+W A 22 A 03 A P "+
		"S 0A+W A 1C A 70 A P "+
		"S 0A+W A 1A A 38 A P "+
		"S 0A+W A 12 A 45 A P "+
		"S 0A+W A 2E A 06 A P", r.bus.WireString())
	assert.True(t, r.events.Peek().Has(evDone))
	assert.Equal(t, byte(0x38), device.Register(0x1A))
	assert.Equal(t, byte(0x45), device.Register(0x12))
}

func TestBMA220_MotionInterrupt(t *testing.T) {
	device := sim.NewBMA220()
	r := newRig(device)
	b := NewBMA220(r.engine)
	r.run(func() { b.InitMotionDetection(event.None) })

	r.run(func() { b.CheckMotionInterrupt(evDone) })
	assert.True(t, r.events.Peek().Has(evDone))
	assert.False(t, b.Motion())

	assert.True(t, device.Shake())
	r.run(func() { b.CheckMotionInterrupt(evDone) })
	assert.Equal(t, "S 0A+W A 18 A Sr 0A+R A 01 A 00 N P", r.bus.WireString())
	assert.True(t, b.Motion())

	r.run(func() { b.ResetMotionInterrupt(evDone) })
	assert.Equal(t, "S 0A+W A 1C A F0 A P", r.bus.WireString())
	assert.Equal(t, byte(0x70), device.Register(0x1C))

	r.run(func() { b.CheckMotionInterrupt(evDone) })
	assert.False(t, b.Motion())
}

func TestBMA220_Options(t *testing.T) {
	b := NewBMA220(nil, WithBus(i2c.BusB), WithAddress(0x0B))
	assert.Equal(t, i2c.BusB, b.bus)
	assert.EqualValues(t, 0x0B, b.address)
}
