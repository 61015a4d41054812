// Package accel drives accelerometers through the transaction engine.
package accel

import (
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
)

const (
	regSlopeSettings = 0x12
	regInterrupts    = 0x18
	regSlopeDet      = 0x1A
	regLatch         = 0x1C
	regRange         = 0x22
	regWatchdog      = 0x2E
)

const DefaultAddress = 0x0A

// latchReset clears a latched interrupt and keeps the permanent latch.
const latchReset = 0b11110000

// motionSetup is written in order by InitMotionDetection.
var motionSetup = [...]struct {
	reg   uint32
	value uint64
}{
	{regRange, 0x03},          // sensitivity
	{regLatch, 0b01110000},    // permanent latch, lat_int = 111
	{regSlopeDet, 0b00111000}, // slope detection on x, y and z
	{regSlopeSettings, 0x45},  // threshold and duration, datasheet default
	{regWatchdog, 0x06},       // watchdog
}

type Option func(*BMA220)

func WithBus(bus i2c.Bus) Option {
	return func(b *BMA220) {
		b.bus = bus
	}
}

func WithAddress(address uint8) Option {
	return func(b *BMA220) {
		b.address = address
	}
}

// BMA220 is a Bosch accelerometer used as a slope (motion) detector.
type BMA220 struct {
	starter i2c.Starter
	bus     i2c.Bus
	address uint8

	setup      [len(motionSetup)]uint64
	reset      uint64
	interrupts uint64
}

func NewBMA220(starter i2c.Starter, opts ...Option) *BMA220 {
	b := &BMA220{
		starter: starter,
		address: DefaultAddress,
		reset:   latchReset,
	}
	for i, s := range motionSetup {
		b.setup[i] = s.value
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *BMA220) write(reg uint32, data *uint64, ev event.ID) {
	b.starter.Start(i2c.Request{
		Bus:           b.bus,
		Direction:     i2c.Write,
		Address:       b.address,
		Register:      reg,
		RegisterWidth: 1,
		Length:        1,
		Data:          data,
		Event:         ev,
	})
}

// InitMotionDetection enables latched slope interrupts on all axes. ev is
// posted after the last register is written.
func (b *BMA220) InitMotionDetection(ev event.ID) {
	for i, s := range motionSetup {
		done := event.None
		if i == len(motionSetup)-1 {
			done = ev
		}
		b.write(s.reg, &b.setup[i], done)
	}
}

// CheckMotionInterrupt reads the interrupt status; Motion decodes it once ev
// is posted.
func (b *BMA220) CheckMotionInterrupt(ev event.ID) {
	b.starter.Start(i2c.Request{
		Bus:           b.bus,
		Direction:     i2c.Read,
		Address:       b.address,
		Register:      regInterrupts,
		RegisterWidth: 1,
		Length:        1,
		Data:          &b.interrupts,
		Event:         ev,
	})
}

// Motion reports the slope interrupt flag, bit 0 of the status register.
func (b *BMA220) Motion() bool {
	return b.interrupts&0x01 != 0
}

func (b *BMA220) ResetMotionInterrupt(ev event.ID) {
	b.write(regLatch, &b.reset, ev)
}
