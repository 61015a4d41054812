package i2c

import (
	"context"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/mklimuk/sensorcore"
)

var _ sensorcore.I2CBus = &GenericBus{}

// GenericBus is a host bus opened through periph, used as a bridge backend.
type GenericBus struct {
	bus i2c.BusCloser
}

// NewGenericBus initializes the periph host drivers and opens dev. An empty
// dev selects the first bus found.
func NewGenericBus(dev string) (*GenericBus, error) {
	state, err := host.Init()
	if err != nil {
		return nil, fmt.Errorf("could not init host: %w", err)
	}
	for _, driver := range state.Loaded {
		slog.Debug("host driver loaded", "driver", driver.String())
	}
	bus, err := i2creg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("could not open i2c bus: %w", err)
	}
	return NewBusFrom(bus), nil
}

// NewBusFrom wraps an already opened periph bus.
func NewBusFrom(bus i2c.BusCloser) *GenericBus {
	return &GenericBus{bus: bus}
}

// ReadFromAddr reads len(buffer) bytes in a single transfer.
func (b *GenericBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.tx(ctx, address, nil, buffer)
}

func (b *GenericBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	return b.tx(ctx, address, buffer, nil)
}

func (b *GenericBus) tx(ctx context.Context, address byte, w, r []byte) error {
	op := "write to"
	if r != nil {
		op = "read from"
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("could not %s %#x: %w", op, address, err)
	}
	if err := b.bus.Tx(uint16(address), w, r); err != nil {
		return fmt.Errorf("could not %s %#x on %s: %w", op, address, b.bus, err)
	}
	return nil
}

// SetSpeed clocks the host bus, when its driver allows it.
func (b *GenericBus) SetSpeed(f physic.Frequency) error {
	if f <= 0 {
		return fmt.Errorf("invalid bus speed %s", f)
	}
	if err := b.bus.SetSpeed(f); err != nil {
		return fmt.Errorf("could not set %s to %s: %w", b.bus, f, err)
	}
	return nil
}

// Release is a no-op: periph buses hold no adapter state between transfers.
func (b *GenericBus) Release(ctx context.Context) error {
	return nil
}

func (b *GenericBus) String() string {
	return b.bus.String()
}

func (b *GenericBus) Close() error {
	return b.bus.Close()
}
