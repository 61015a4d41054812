// Package sim simulates the bus peripheral and the sensors behind it on a
// host, so the interrupt-driven engine runs unmodified outside the board.
package sim

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/irq"
)

var (
	_ i2c.Controller = (*Bus)(nil)
	_ i2c.Attacher   = (*Bus)(nil)
)

// Device is a target on a simulated bus.
type Device interface {
	Address() uint8
	// Start is called for an address byte. Returning false NACKs it.
	Start(read bool) bool
	// Write returns false to NACK the byte.
	Write(b byte) bool
	Read() byte
	Stop()
}

type opKind uint8

const (
	opAddress opKind = iota
	opWrite
	opRead
	opStop
)

type op struct {
	kind     opKind
	b        byte
	repeated bool
}

// Bus is a simulated peripheral. Commands and transmitted bytes are queued as
// bus operations; Step executes one against the devices and raises the
// resulting interrupt.
type Bus struct {
	name string

	mu      sync.Mutex
	devices map[uint8]Device
	flags   i2c.Flags
	ien     i2c.Flags
	ops     []op
	started bool
	active  bool
	rx      byte
	isr     func()
	cfg     i2c.Config
	enabled bool
	wire    []string
	kick    chan struct{}
	latency time.Duration
	target  Device
	reading bool
}

// Option configures a Bus.
type Option func(*Bus)

// WithLatency sets the delay Run waits between bus operations.
func WithLatency(d time.Duration) Option {
	return func(b *Bus) {
		b.latency = d
	}
}

// WithDevices attaches devices at creation.
func WithDevices(devices ...Device) Option {
	return func(b *Bus) {
		for _, d := range devices {
			b.devices[d.Address()] = d
		}
	}
}

func NewBus(name string, opts ...Option) *Bus {
	b := &Bus{
		name:    name,
		devices: make(map[uint8]Device),
		kick:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) String() string {
	return b.name
}

// AddDevice attaches d at its address, replacing any device there.
func (b *Bus) AddDevice(d Device) {
	b.mu.Lock()
	b.devices[d.Address()] = d
	b.mu.Unlock()
}

func (b *Bus) Attach(isr func()) {
	b.mu.Lock()
	b.isr = isr
	b.mu.Unlock()
}

func (b *Bus) Enable(cfg i2c.Config) {
	b.mu.Lock()
	b.cfg = cfg
	b.enabled = true
	b.mu.Unlock()
}

// Enabled reports whether Enable was called.
func (b *Bus) Enabled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.enabled
}

// Config returns the configuration passed to Enable.
func (b *Bus) Config() i2c.Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

func (b *Bus) Command(cmd i2c.Cmd) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if cmd&i2c.CmdStart != 0 && cmd&i2c.CmdStop != 0 {
		// simultaneous START and STOP releases the lines at once
		b.log("S", "P")
		b.flags |= i2c.FlagMSTOP
		return
	}
	if cmd&i2c.CmdAbort != 0 {
		b.ops = nil
		b.started = false
		b.active = false
		b.target = nil
		return
	}
	if cmd&i2c.CmdClearTX != 0 {
		kept := b.ops[:0]
		for _, o := range b.ops {
			if o.kind != opWrite {
				kept = append(kept, o)
			}
		}
		b.ops = kept
	}
	if cmd&i2c.CmdStart != 0 {
		b.started = true
	}
	if cmd&i2c.CmdAck != 0 {
		b.log("A")
		b.push(op{kind: opRead})
	}
	if cmd&i2c.CmdNack != 0 {
		b.log("N")
	}
	if cmd&i2c.CmdStop != 0 {
		b.push(op{kind: opStop})
	}
}

func (b *Bus) Transmit(v byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		b.started = false
		b.push(op{kind: opAddress, b: v, repeated: b.active})
		b.active = true
		return
	}
	b.push(op{kind: opWrite, b: v})
}

func (b *Bus) Receive() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rx
}

func (b *Bus) Flags() i2c.Flags {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flags
}

func (b *Bus) ClearFlags(f i2c.Flags) {
	b.mu.Lock()
	b.flags &^= f
	b.mu.Unlock()
}

func (b *Bus) InterruptEnable() i2c.Flags {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ien
}

func (b *Bus) SetInterruptEnable(f i2c.Flags) {
	b.mu.Lock()
	b.ien = f
	b.mu.Unlock()
}

func (b *Bus) Idle() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.active && len(b.ops) == 0
}

// push queues o. Callers hold mu.
func (b *Bus) push(o op) {
	b.ops = append(b.ops, o)
	select {
	case b.kick <- struct{}{}:
	default:
	}
}

// log appends wire tokens. Callers hold mu.
func (b *Bus) log(tokens ...string) {
	b.wire = append(b.wire, tokens...)
}

// Wire returns the bus activity so far: S, Sr, address bytes as 40+W,
// data bytes in hex, A and N for acknowledges and P for STOP.
func (b *Bus) Wire() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.wire...)
}

// WireString returns Wire joined by spaces.
func (b *Bus) WireString() string {
	return strings.Join(b.Wire(), " ")
}

// ResetWire drops the recorded activity.
func (b *Bus) ResetWire() {
	b.mu.Lock()
	b.wire = nil
	b.mu.Unlock()
}

// Pending returns the number of queued bus operations.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.ops)
}

// Step executes the next bus operation and raises the interrupt it causes.
// It reports false when nothing was queued. Step must not run concurrently
// with Run.
func (b *Bus) Step() bool {
	b.mu.Lock()
	if len(b.ops) == 0 {
		b.mu.Unlock()
		return false
	}
	o := b.ops[0]
	b.ops = b.ops[1:]
	target, reading := b.target, b.reading
	if o.kind == opAddress {
		target, reading = b.devices[o.b>>1], o.b&1 == 1
		b.target, b.reading = target, reading
	}
	b.mu.Unlock()

	// devices run outside both locks; a bridged device may block on I/O
	var set i2c.Flags
	var tokens []string
	var rx byte
	switch o.kind {
	case opAddress:
		dir := "W"
		if reading {
			dir = "R"
		}
		start := "S"
		if o.repeated {
			start = "Sr"
		}
		tokens = append(tokens, start, fmt.Sprintf("%02X+%s", o.b>>1, dir))
		if target != nil && target.Start(reading) {
			tokens = append(tokens, "A")
			set = i2c.FlagACK
		} else {
			tokens = append(tokens, "N")
			set = i2c.FlagNACK
		}
	case opWrite:
		tokens = append(tokens, fmt.Sprintf("%02X", o.b))
		if target != nil && target.Write(o.b) {
			tokens = append(tokens, "A")
			set = i2c.FlagACK
		} else {
			tokens = append(tokens, "N")
			set = i2c.FlagNACK
		}
	case opRead:
		rx = 0xFF
		if target != nil {
			rx = target.Read()
		}
		tokens = append(tokens, fmt.Sprintf("%02X", rx))
		set = i2c.FlagRXDATAV
	case opStop:
		if target != nil {
			target.Stop()
		}
		tokens = append(tokens, "P")
		set = i2c.FlagMSTOP
	}

	b.mu.Lock()
	b.log(tokens...)
	switch {
	case o.kind == opRead:
		b.rx = rx
	case o.kind == opStop:
		b.active = false
		b.target = nil
	case o.kind == opAddress && reading && set == i2c.FlagACK:
		// the device drives the first byte right after acknowledging
		b.ops = append([]op{{kind: opRead}}, b.ops...)
	}
	b.flags |= set
	isr := b.isr
	fire := isr != nil && b.flags&b.ien != 0
	b.mu.Unlock()

	if fire {
		irq.Raise(isr)
	}
	return true
}

// Drain steps until no operation is queued and returns the number executed.
func (b *Bus) Drain() int {
	n := 0
	for b.Step() {
		n++
	}
	return n
}

// Run executes queued operations as they arrive, waiting the configured
// latency between them, until ctx is done.
func (b *Bus) Run(ctx context.Context) error {
	for {
		if b.Step() {
			if b.latency > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(b.latency):
				}
			}
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.kick:
		}
	}
}
