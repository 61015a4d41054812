package i2c

import (
	"errors"
	"fmt"
	"sync"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers"

	"github.com/mklimuk/sensorcore/event"
)

var (
	_ i2c.Bus     = (*Conn)(nil)
	_ drivers.I2C = (*Conn)(nil)
)

var (
	ErrTooLong    = errors.New("i2c: transfer does not fit the accumulator")
	ErrNoRegister = errors.New("i2c: read requires a register phase of 1 to 4 bytes")
	ErrAddress    = errors.New("i2c: address is not 7-bit")
	ErrFixedSpeed = errors.New("i2c: bus speed is fixed at open")
)

// Registrar binds a handler to a completion event. The main loop implements it.
type Registrar interface {
	Register(id event.ID, handler func())
}

// Conn is a blocking bus on top of the engine, so that stock periph and TinyGo
// drivers can run over it. Every transaction completes through ev, which must
// be reserved for this Conn. Tx must not be called from a main loop handler
// since it waits for the loop to dispatch ev.
type Conn struct {
	starter Starter
	bus     Bus
	event   event.ID

	mu   sync.Mutex
	acc  uint64
	done chan struct{}
}

// NewConn returns a Conn on bus and registers its completion handler.
func NewConn(starter Starter, bus Bus, ev event.ID, reg Registrar) *Conn {
	c := &Conn{
		starter: starter,
		bus:     bus,
		event:   ev,
		done:    make(chan struct{}, 1),
	}
	reg.Register(ev, c.complete)
	return c
}

func (c *Conn) complete() {
	select {
	case c.done <- struct{}{}:
	default:
	}
}

func (c *Conn) String() string {
	return fmt.Sprintf("%s(event %d)", c.bus, c.event)
}

// SetSpeed is not supported; the frequency is part of the open Config.
func (c *Conn) SetSpeed(f physic.Frequency) error {
	return ErrFixedSpeed
}

// Tx writes w then reads r. A write-only Tx sends w as payload; with a read,
// w is the register phase.
func (c *Conn) Tx(addr uint16, w, r []byte) error {
	if addr > MaxAddress {
		return fmt.Errorf("%w: 0x%x", ErrAddress, addr)
	}
	req := Request{
		Bus:     c.bus,
		Address: uint8(addr),
		Event:   c.event,
	}
	if len(r) == 0 {
		if len(w) > MaxLength {
			return fmt.Errorf("%w: write of %d bytes", ErrTooLong, len(w))
		}
		req.Direction = Write
		req.Length = uint8(len(w))
	} else {
		if len(w) == 0 || len(w) > MaxRegisterWidth {
			return fmt.Errorf("%w: got %d", ErrNoRegister, len(w))
		}
		if len(r) > MaxLength {
			return fmt.Errorf("%w: read of %d bytes", ErrTooLong, len(r))
		}
		req.Direction = Read
		req.RegisterWidth = uint8(len(w))
		req.Register = uint32(pack(w))
		req.Length = uint8(len(r))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.acc = pack(w)
	if req.Direction == Read {
		c.acc = 0
	}
	req.Data = &c.acc
	c.starter.Start(req)
	<-c.done
	unpack(c.acc, r)
	return nil
}

// pack packs b most significant byte first.
func pack(b []byte) uint64 {
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

func unpack(v uint64, b []byte) {
	for i := len(b) - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
