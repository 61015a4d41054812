//go:build tinygo && cortexm

package i2c

import (
	"runtime/volatile"
	"unsafe"

	"periph.io/x/conn/v3/physic"
)

// Register block of the EFM32 series 1 I2C peripheral.
type efm32Regs struct {
	CTRL      volatile.Register32
	CMD       volatile.Register32
	STATE     volatile.Register32
	STATUS    volatile.Register32
	CLKDIV    volatile.Register32
	SADDR     volatile.Register32
	SADDRMASK volatile.Register32
	RXDATA    volatile.Register32
	RXDOUBLE  volatile.Register32
	RXDATAP   volatile.Register32
	RXDOUBLEP volatile.Register32
	TXDATA    volatile.Register32
	TXDOUBLE  volatile.Register32
	IF        volatile.Register32
	IFS       volatile.Register32
	IFC       volatile.Register32
	IEN       volatile.Register32
	ROUTEPEN  volatile.Register32
	ROUTELOC0 volatile.Register32
}

const (
	I2C0Base uintptr = 0x4000C000
	I2C1Base uintptr = 0x4000C400

	ctrlEN        = 1 << 0
	ctrlCLHRShift = 8
	stateMask     = 0xE0
	stateIdle     = 0x00
	routeSDAPEN   = 1 << 0
	routeSCLPEN   = 1 << 1
	routeSCLShift = 8
)

// EFM32 drives the on-chip peripheral. Enable leaves the NVIC line alone:
// tinygo binds vectors at compile time, so board code registers and enables
// it after Open.
//
//	engine := i2c.Open(i2c.NewEFM32(i2c.I2C0Base, refFreq, clockOn), cfg, events, arbiter)
//	intr := interrupt.New(efm32.IRQ_I2C0, func(interrupt.Interrupt) {
//		irq.Raise(engine.HandleInterrupt)
//	})
//	intr.SetPriority(0xC0)
//	intr.Enable()
type EFM32 struct {
	regs *efm32Regs
	// EnableClock gates the peripheral clock on.
	EnableClock func()
	// RefFreq is the peripheral clock in Hz.
	RefFreq uint32
}

// NewEFM32 maps the register block at base.
func NewEFM32(base uintptr, refFreq uint32, enableClock func()) *EFM32 {
	return &EFM32{
		regs:        (*efm32Regs)(unsafe.Pointer(base)),
		EnableClock: enableClock,
		RefFreq:     refFreq,
	}
}

func (c *EFM32) Enable(cfg Config) {
	if c.EnableClock != nil {
		c.EnableClock()
	}
	c.regs.CTRL.Set(uint32(cfg.Ratio) << ctrlCLHRShift)
	c.regs.CLKDIV.Set(clockDiv(c.RefFreq, uint32(cfg.Frequency/physic.Hertz), cfg.Ratio))
	c.regs.ROUTELOC0.SetBits(uint32(cfg.SDARoute) | uint32(cfg.SCLRoute)<<routeSCLShift)
	c.regs.ROUTEPEN.SetBits(routeSDAPEN | routeSCLPEN)
	c.regs.CTRL.SetBits(ctrlEN)
}

// clockDiv solves fSCL = fref / ((Nlow+Nhigh)*(DIV+1) + offset).
func clockDiv(ref, scl uint32, ratio ClockRatio) uint32 {
	n, offset := uint32(8), uint32(8)
	switch ratio {
	case Ratio6to3:
		n, offset = 9, 6
	case Ratio11to6:
		n, offset = 17, 3
	}
	if scl == 0 || ref/scl <= offset+n {
		return 0
	}
	return (ref/scl-offset)/n - 1
}

func (c *EFM32) Command(cmd Cmd) {
	c.regs.CMD.Set(uint32(cmd))
}

func (c *EFM32) Transmit(b byte) {
	c.regs.TXDATA.Set(uint32(b))
}

func (c *EFM32) Receive() byte {
	return byte(c.regs.RXDATA.Get())
}

func (c *EFM32) Flags() Flags {
	return Flags(c.regs.IF.Get())
}

func (c *EFM32) ClearFlags(f Flags) {
	c.regs.IFC.Set(uint32(f))
}

func (c *EFM32) InterruptEnable() Flags {
	return Flags(c.regs.IEN.Get())
}

func (c *EFM32) SetInterruptEnable(f Flags) {
	c.regs.IEN.Set(uint32(f))
}

func (c *EFM32) Idle() bool {
	return c.regs.STATE.Get()&stateMask == stateIdle
}
