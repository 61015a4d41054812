package i2c

import (
	"fmt"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/event"
)

// Bus selects one of the two bus peripherals.
type Bus uint8

const (
	BusA Bus = iota
	BusB
)

// NumBuses is the number of bus peripherals.
const NumBuses = 2

func (b Bus) String() string {
	switch b {
	case BusA:
		return "I2C0"
	case BusB:
		return "I2C1"
	}
	return fmt.Sprintf("I2C?(%d)", uint8(b))
}

// Direction of the payload phase.
type Direction uint8

const (
	Write Direction = iota
	Read
)

func (d Direction) String() string {
	if d == Read {
		return "read"
	}
	return "write"
}

const (
	// MaxAddress is the highest 7-bit device address.
	MaxAddress = 0x7F
	// MaxRegisterWidth is the longest register or command phase in bytes.
	MaxRegisterWidth = 4
	// MaxLength is the longest payload the accumulator holds.
	MaxLength = 8
)

// Request describes one bus transaction. The engine copies it at Start; Data
// stays caller-owned and must not be touched until Event is dispatched.
type Request struct {
	Bus       Bus
	Direction Direction
	Address   uint8
	// Register is sent most significant byte first. RegisterWidth 0 means
	// the payload follows the address directly.
	Register      uint32
	RegisterWidth uint8
	// Length is the payload size in bytes. A read stores them in Data most
	// significant byte first; a write sends the low Length bytes of Data the
	// same way.
	Length uint8
	Data   *uint64
	// Event is posted when STOP completes. event.None posts nothing.
	Event event.ID
}

func (r *Request) validate() {
	sensorcore.Assert(r.Bus < NumBuses, "i2c", "invalid bus %d", uint8(r.Bus))
	sensorcore.Assert(r.Address <= MaxAddress, "i2c", "address 0x%x is not 7-bit", r.Address)
	sensorcore.Assert(r.RegisterWidth <= MaxRegisterWidth, "i2c", "register width %d exceeds %d", r.RegisterWidth, MaxRegisterWidth)
	sensorcore.Assert(r.Length <= MaxLength, "i2c", "length %d exceeds %d", r.Length, MaxLength)
	sensorcore.Assert(r.Length == 0 || r.Data != nil, "i2c", "length %d without accumulator", r.Length)
	sensorcore.Assert(r.Direction == Write || r.RegisterWidth > 0, "i2c", "read from 0x%x without register phase", r.Address)
	sensorcore.Assert(r.Direction == Write || r.Data != nil, "i2c", "read from 0x%x without accumulator", r.Address)
	sensorcore.Assert(r.Event == event.None || r.Event <= event.MaxID, "i2c", "invalid completion event %d", uint8(r.Event))
}

func (r *Request) String() string {
	return fmt.Sprintf("%s %s 0x%02x reg=0x%0*x len=%d", r.Bus, r.Direction, r.Address, int(r.RegisterWidth)*2, r.Register, r.Length)
}

// byteAt returns byte n of v counting from 1 at the least significant end.
func byteAt(v uint64, n uint8) byte {
	return byte(v >> (8 * uint(n-1)))
}
