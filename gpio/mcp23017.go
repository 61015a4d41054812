// Package gpio drives I2C port expanders through the transaction engine.
package gpio

import (
	"fmt"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
)

const DefaultMCP23017Address = 0x21

// Port is one of the two 8-bit ports.
type Port uint8

const (
	PortA Port = iota
	PortB
)

func (p Port) String() string {
	if p == PortA {
		return "A"
	}
	return "B"
}

type registry int

const (
	IODIR registry = iota
	IPOL
	GPINTEN
	DEFVAL
	INTCON
	IOCON
	GPPU
	INTF
	INTCAP
	GPIO
	OLAT
	numRegistries
)

// bankAddr maps registries to addresses for IOCON.BANK = 0 (ports
// interleaved, power-on default) and IOCON.BANK = 1 (ports segregated).
var bankAddr = [2][2][numRegistries]uint32{
	{
		{0x00, 0x02, 0x04, 0x06, 0x08, 0x0A, 0x0C, 0x0E, 0x10, 0x12, 0x14},
		{0x01, 0x03, 0x05, 0x07, 0x09, 0x0B, 0x0D, 0x0F, 0x11, 0x13, 0x15},
	},
	{
		{0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A},
		{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1A},
	},
}

type Option func(*MCP23017)

func WithBus(bus i2c.Bus) Option {
	return func(m *MCP23017) {
		m.bus = bus
	}
}

func WithAddress(address uint8) Option {
	return func(m *MCP23017) {
		m.address = address
	}
}

// WithBank1 tells the driver IOCON.BANK has been set.
func WithBank1() Option {
	return func(m *MCP23017) {
		m.bank = 1
	}
}

// MCP23017 is a Microchip 16-bit I/O expander. Outputs are written from a
// shadow latch so single pins can be changed without a read back.
type MCP23017 struct {
	starter i2c.Starter
	bus     i2c.Bus
	address uint8
	bank    int

	dir    [2]uint64
	pullUp [2]uint64
	latch  [2]uint64
	input  [2]uint64
}

func NewMCP23017(starter i2c.Starter, opts ...Option) *MCP23017 {
	m := &MCP23017{
		starter: starter,
		address: DefaultMCP23017Address,
		dir:     [2]uint64{0xFF, 0xFF},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MCP23017) request(dir i2c.Direction, port Port, reg registry, data *uint64, ev event.ID) i2c.Request {
	sensorcore.Assert(port <= PortB, "gpio", "invalid port %d", uint8(port))
	return i2c.Request{
		Bus:           m.bus,
		Direction:     dir,
		Address:       m.address,
		Register:      bankAddr[m.bank][port][reg],
		RegisterWidth: 1,
		Length:        1,
		Data:          data,
		Event:         ev,
	}
}

// Init sets the direction of every pin of a port, 1 for input.
func (m *MCP23017) Init(port Port, inputs byte, ev event.ID) {
	m.dir[port] = uint64(inputs)
	m.starter.Start(m.request(i2c.Write, port, IODIR, &m.dir[port], ev))
}

// PullUp enables the 100kΩ pull-ups on the masked pins.
func (m *MCP23017) PullUp(port Port, mask byte, ev event.ID) {
	m.pullUp[port] = uint64(mask)
	m.starter.Start(m.request(i2c.Write, port, GPPU, &m.pullUp[port], ev))
}

// Write drives the output latch of a port.
func (m *MCP23017) Write(port Port, value byte, ev event.ID) {
	m.latch[port] = uint64(value)
	m.starter.Start(m.request(i2c.Write, port, OLAT, &m.latch[port], ev))
}

// SetPin changes one output pin, keeping the others.
func (m *MCP23017) SetPin(port Port, pin uint8, on bool, ev event.ID) {
	sensorcore.Assert(pin < 8, "gpio", "invalid pin %d", pin)
	value := byte(m.latch[port])
	if on {
		value |= 1 << pin
	} else {
		value &^= 1 << pin
	}
	m.Write(port, value, ev)
}

// Read samples a port; the value is available from Value once ev is posted.
func (m *MCP23017) Read(port Port, ev event.ID) {
	m.starter.Start(m.request(i2c.Read, port, GPIO, &m.input[port], ev))
}

// Value returns the last sampled port value.
func (m *MCP23017) Value(port Port) byte {
	return byte(m.input[port])
}

// Latch returns the output latch as last written.
func (m *MCP23017) Latch(port Port) byte {
	return byte(m.latch[port])
}

// LED is an output pin driven from the main loop. It satisfies the station
// indicator.
type LED struct {
	expander *MCP23017
	port     Port
	pin      uint8
}

// NewLED makes pin an output. The direction write is queued before any Set.
func NewLED(expander *MCP23017, port Port, pin uint8) *LED {
	sensorcore.Assert(pin < 8, "gpio", "invalid pin %d", pin)
	expander.Init(port, byte(expander.dir[port])&^(1<<pin), event.None)
	return &LED{expander: expander, port: port, pin: pin}
}

func (l *LED) Set(on bool) {
	l.expander.SetPin(l.port, l.pin, on, event.None)
}

func (l *LED) String() string {
	return fmt.Sprintf("MCP23017@%#x/%s%d", l.expander.address, l.port, l.pin)
}
