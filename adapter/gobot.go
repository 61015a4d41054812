package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gobot.io/x/gobot/v2/drivers/i2c"
)

// Gobot reaches sensors through any gobot platform adaptor with I2C support,
// a NanoPi or Raspberry Pi for instance. Connections are opened lazily per
// device address and kept until Close.
type Gobot struct {
	mx        sync.Mutex
	connector i2c.Connector
	bus       int
	conns     map[byte]i2c.Connection
}

// NewGobot uses the given bus number, or the connector's default bus when
// bus is negative.
func NewGobot(connector i2c.Connector, bus int) *Gobot {
	if bus < 0 {
		bus = connector.DefaultI2cBus()
	}
	return &Gobot{
		connector: connector,
		bus:       bus,
		conns:     make(map[byte]i2c.Connection),
	}
}

func (g *Gobot) String() string {
	return fmt.Sprintf("gobot/i2c-%d", g.bus)
}

func (g *Gobot) connection(address byte) (i2c.Connection, error) {
	if c, ok := g.conns[address]; ok {
		return c, nil
	}
	c, err := g.connector.GetI2cConnection(int(address), g.bus)
	if err != nil {
		return nil, fmt.Errorf("connect to %#x on bus %d: %w", address, g.bus, err)
	}
	g.conns[address] = c
	return c, nil
}

func (g *Gobot) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.connection(address)
	if err != nil {
		return err
	}
	n, err := c.Write(buffer)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("write to %x: short write %d/%d", address, n, len(buffer))
	}
	return nil
}

func (g *Gobot) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mx.Lock()
	defer g.mx.Unlock()
	c, err := g.connection(address)
	if err != nil {
		return err
	}
	n, err := c.Read(buffer)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	if n != len(buffer) {
		return fmt.Errorf("read from %x: short read %d/%d", address, n, len(buffer))
	}
	return nil
}

// Release drops every open connection. The next transfer reconnects.
func (g *Gobot) Release(context.Context) error {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.closeAll()
}

func (g *Gobot) Close() error {
	g.mx.Lock()
	defer g.mx.Unlock()
	return g.closeAll()
}

func (g *Gobot) closeAll() error {
	var first error
	for addr, c := range g.conns {
		if err := c.Close(); err != nil {
			slog.Debug("closing gobot connection", "addr", addr, "error", err)
			if first == nil {
				first = fmt.Errorf("close %#x: %w", addr, err)
			}
		}
		delete(g.conns, addr)
	}
	return first
}
