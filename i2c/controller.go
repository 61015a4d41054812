package i2c

import (
	"strings"

	"periph.io/x/conn/v3/physic"
)

// Cmd is a command written to the peripheral command register.
type Cmd uint32

const (
	CmdStart   Cmd = 1 << 0
	CmdStop    Cmd = 1 << 1
	CmdAck     Cmd = 1 << 2
	CmdNack    Cmd = 1 << 3
	CmdAbort   Cmd = 1 << 5
	CmdClearTX Cmd = 1 << 6
)

// Flags are interrupt conditions, laid out as in the peripheral IF register.
type Flags uint32

const (
	FlagRXDATAV Flags = 1 << 5
	FlagACK     Flags = 1 << 6
	FlagNACK    Flags = 1 << 7
	FlagMSTOP   Flags = 1 << 8

	// FlagsAll clears every condition.
	FlagsAll Flags = 0x7FFFF
	// FlagsEngine are the conditions the engine is driven by.
	FlagsEngine = FlagACK | FlagNACK | FlagRXDATAV | FlagMSTOP
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{FlagACK, "ACK"},
	{FlagNACK, "NACK"},
	{FlagRXDATAV, "RXDATAV"},
	{FlagMSTOP, "MSTOP"},
}

func (f Flags) String() string {
	var names []string
	for _, n := range flagNames {
		if f&n.flag != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "|")
}

// ClockRatio is the SCL low to high ratio.
type ClockRatio uint8

const (
	Ratio4to4 ClockRatio = iota
	Ratio6to3
	Ratio11to6
)

// Config is the one-time peripheral setup. Route locations are opaque to the
// engine.
type Config struct {
	Frequency physic.Frequency
	Ratio     ClockRatio
	SCLRoute  uint8
	SDARoute  uint8
}

// DefaultConfig is a 100kHz standard mode setup on route 0.
func DefaultConfig() Config {
	return Config{Frequency: 100 * physic.KiloHertz}
}

// Controller is the register interface of a bus peripheral.
type Controller interface {
	// Enable starts the peripheral clock, programs timing and routes the pins.
	Enable(cfg Config)
	Command(cmd Cmd)
	Transmit(b byte)
	Receive() byte
	Flags() Flags
	ClearFlags(f Flags)
	InterruptEnable() Flags
	SetInterruptEnable(f Flags)
	// Idle reports whether the bus lines are in the idle state.
	Idle() bool
}

// Attacher is implemented by controllers that dispatch their own interrupt.
// The handler is always run through irq.Raise.
type Attacher interface {
	Attach(isr func())
}
