package i2c

import (
	"runtime"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/irq"
	"github.com/mklimuk/sensorcore/sleep"
)

const (
	writeBit = 0
	readBit  = 1
)

// Engine runs one transaction at a time on a bus peripheral. Its state is
// mutated only by Start and by HandleInterrupt.
type Engine struct {
	ctrl    Controller
	events  *event.Aggregator
	arbiter *sleep.Arbiter
	level   sleep.Level

	busy  bool
	req   Request
	phase phase
	trace trace
}

// Option configures an Engine.
type Option func(*Engine)

// WithBlockLevel sets the energy mode blocked while a transaction is in
// flight. The peripheral loses its clock below EM1 so the default is EM2.
func WithBlockLevel(level sleep.Level) Option {
	return func(e *Engine) {
		e.level = level
	}
}

// Open brings up the peripheral, enables the engine's interrupt sources and
// resets the bus. The returned engine is idle.
func Open(ctrl Controller, cfg Config, events *event.Aggregator, arbiter *sleep.Arbiter, opts ...Option) *Engine {
	e := &Engine{
		ctrl:    ctrl,
		events:  events,
		arbiter: arbiter,
		level:   sleep.EM2,
		phase:   idle{},
	}
	for _, opt := range opts {
		opt(e)
	}
	ctrl.Enable(cfg)
	ctrl.SetInterruptEnable(ctrl.InterruptEnable() | FlagsEngine)
	if a, ok := ctrl.(Attacher); ok {
		a.Attach(e.HandleInterrupt)
	}
	resetBus(ctrl)
	return e
}

// resetBus forces the lines idle after an unclean shutdown.
func resetBus(ctrl Controller) {
	ien := ctrl.InterruptEnable()
	ctrl.SetInterruptEnable(0)
	ctrl.ClearFlags(FlagsAll)
	ctrl.Command(CmdClearTX)
	ctrl.Command(CmdStart | CmdStop)
	for ctrl.Flags()&FlagMSTOP == 0 {
		runtime.Gosched()
	}
	ctrl.ClearFlags(FlagsAll)
	ctrl.Command(CmdAbort)
	ctrl.SetInterruptEnable(ien)
}

// Start waits until the engine is free and begins req. Completion is
// signalled by posting req.Event.
func (e *Engine) Start(req Request) {
	req.validate()
	for !e.tryStart(&req) {
		runtime.Gosched()
	}
}

func (e *Engine) tryStart(req *Request) bool {
	s := irq.Disable()
	defer irq.Restore(s)
	if e.busy {
		return false
	}
	sensorcore.Assert(e.ctrl.Idle(), "i2c", "%s lines not idle at start", req.Bus)
	if req.Direction == Read {
		*req.Data = 0
	}
	e.arbiter.BlockLocked(e.level)
	e.busy = true
	e.req = *req
	e.phase = addressPhase{reg: req.RegisterWidth, payload: req.Length}
	e.ctrl.Command(CmdStart)
	e.ctrl.Transmit(req.Address<<1 | writeBit)
	return true
}

// Busy reports whether a transaction is in flight.
func (e *Engine) Busy() bool {
	s := irq.Disable()
	defer irq.Restore(s)
	return e.busy
}

// Phase returns the current phase.
func (e *Engine) Phase() PhaseKind {
	s := irq.Disable()
	defer irq.Restore(s)
	return e.phase.kind()
}

// HandleInterrupt is the peripheral interrupt handler. It must run through
// irq.Raise. Pending conditions are handled in the order ACK, NACK, RXDATAV,
// MSTOP.
func (e *Engine) HandleInterrupt() {
	flags := e.ctrl.Flags() & e.ctrl.InterruptEnable()
	e.ctrl.ClearFlags(flags)

	if flags&FlagACK != 0 {
		e.transition(FlagACK, e.onAck)
	}
	if flags&FlagNACK != 0 {
		e.transition(FlagNACK, e.onNack)
	}
	if flags&FlagRXDATAV != 0 {
		e.transition(FlagRXDATAV, e.onReceive)
	}
	if flags&FlagMSTOP != 0 {
		e.transition(FlagMSTOP, e.onStop)
	}
}

func (e *Engine) transition(cond Flags, handle func() phase) {
	from := e.phase.kind()
	e.phase = handle()
	e.trace.add(cond, from, e.phase.kind())
}

func (e *Engine) onAck() phase {
	switch p := e.phase.(type) {
	case addressPhase:
		if p.reg > 0 {
			e.ctrl.Transmit(byteAt(uint64(e.req.Register), p.reg))
			p.reg--
			if p.reg > 0 {
				return p
			}
			return addressSent{payload: p.payload}
		}
		// no register phase, the payload follows the address
		if p.payload == 0 {
			e.ctrl.Command(CmdStop)
			return stopPending{}
		}
		e.ctrl.Transmit(byteAt(*e.req.Data, p.payload))
		return addressSent{payload: p.payload - 1}
	case addressSent:
		if e.req.Direction == Read {
			e.ctrl.Command(CmdStart)
			e.ctrl.Transmit(e.req.Address<<1 | readBit)
			return awaitReadRestart{payload: p.payload}
		}
		if p.payload == 0 {
			e.ctrl.Command(CmdStop)
			return stopPending{}
		}
		e.ctrl.Transmit(byteAt(*e.req.Data, p.payload))
		return writeData{payload: p.payload - 1}
	case awaitReadRestart:
		return readData{payload: p.payload}
	case writeData:
		if p.payload > 0 {
			e.ctrl.Transmit(byteAt(*e.req.Data, p.payload))
			return writeData{payload: p.payload - 1}
		}
		e.ctrl.Command(CmdStop)
		return stopPending{}
	}
	sensorcore.Assert(false, "i2c", "%s: ACK in phase %s", e.req.Bus, e.phase.kind())
	return e.phase
}

// onNack polls a device that is still busy converting.
func (e *Engine) onNack() phase {
	sensorcore.Assert(e.phase.kind() == PhaseAwaitReadRestart, "i2c", "%s: NACK from 0x%02x in phase %s", e.req.Bus, e.req.Address, e.phase.kind())
	e.ctrl.Command(CmdStart)
	e.ctrl.Transmit(e.req.Address<<1 | readBit)
	return e.phase
}

// onReceive accumulates one byte. One byte past Length is read and dropped
// before the NACK that ends the transfer.
func (e *Engine) onReceive() phase {
	b := e.ctrl.Receive()
	p, ok := e.phase.(readData)
	sensorcore.Assert(ok, "i2c", "%s: RXDATAV in phase %s", e.req.Bus, e.phase.kind())
	if p.payload > 0 {
		*e.req.Data = *e.req.Data<<8 | uint64(b)
		e.ctrl.Command(CmdAck)
		return readData{payload: p.payload - 1}
	}
	e.ctrl.Command(CmdNack)
	e.ctrl.Command(CmdStop)
	return stopPending{}
}

func (e *Engine) onStop() phase {
	sensorcore.Assert(e.phase.kind() == PhaseStopPending, "i2c", "%s: MSTOP in phase %s", e.req.Bus, e.phase.kind())
	e.events.PostLocked(e.req.Event)
	e.busy = false
	e.arbiter.UnblockLocked(e.level)
	return idle{}
}
