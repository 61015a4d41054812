package sim

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mklimuk/sensorcore"
)

// DefaultBridgeReadLen covers the longest engine read plus the byte it
// discards.
const DefaultBridgeReadLen = 9

// Bridge forwards the transactions addressed to one device to a real bus.
// Writes are flushed as one transfer when the read address or STOP arrives,
// so a repeated START becomes STOP followed by a separate read. A failed read
// NACKs the address and the engine polls again.
type Bridge struct {
	bus     sensorcore.I2CBus
	address uint8
	readLen int
	timeout time.Duration

	mu      sync.Mutex
	pending []byte
	out     []byte
	errs    int
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithReadLen sets how many bytes one read transfer fetches.
func WithReadLen(n int) BridgeOption {
	return func(b *Bridge) {
		b.readLen = n
	}
}

// WithTimeout bounds each forwarded transfer.
func WithTimeout(d time.Duration) BridgeOption {
	return func(b *Bridge) {
		b.timeout = d
	}
}

func NewBridge(bus sensorcore.I2CBus, address uint8, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		bus:     bus,
		address: address,
		readLen: DefaultBridgeReadLen,
		timeout: time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bridge) Address() uint8 { return b.address }

// Errors returns the number of failed transfers.
func (b *Bridge) Errors() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.errs
}

func (b *Bridge) Start(read bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !read {
		b.pending = b.pending[:0]
		return true
	}
	if !b.flush() {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	buf := make([]byte, b.readLen)
	if err := b.bus.ReadFromAddr(ctx, b.address, buf); err != nil {
		b.errs++
		slog.Debug("bridge read failed", "address", b.address, "error", err)
		return false
	}
	b.out = buf
	return true
}

// flush writes the collected bytes. Callers hold mu.
func (b *Bridge) flush() bool {
	if len(b.pending) == 0 {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	err := b.bus.WriteToAddr(ctx, b.address, b.pending)
	b.pending = b.pending[:0]
	if err != nil {
		b.errs++
		slog.Warn("bridge write failed", "address", b.address, "error", err)
		return false
	}
	return true
}

func (b *Bridge) Write(v byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, v)
	return true
}

func (b *Bridge) Read() byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.out) == 0 {
		return 0xFF
	}
	v := b.out[0]
	b.out = b.out[1:]
	return v
}

func (b *Bridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flush()
	b.out = nil
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()
	if err := b.bus.Release(ctx); err != nil {
		slog.Warn("bridge release failed", "address", b.address, "error", err)
	}
}
