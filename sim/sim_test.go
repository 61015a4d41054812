package sim_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/i2c/i2ctest"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

const evDone event.ID = 1

func open(bus *sim.Bus) (*i2c.Engine, *event.Aggregator) {
	events := &event.Aggregator{}
	e := i2c.Open(bus, i2c.DefaultConfig(), events, sleep.NewArbiter(sleep.SleeperFunc(func(sleep.Level) {})))
	bus.ResetWire()
	return e, events
}

func TestBus_ResetReleasesLines(t *testing.T) {
	bus := sim.NewBus("I2C0")
	bus.Command(i2c.CmdStart | i2c.CmdStop)
	assert.Equal(t, i2c.FlagMSTOP, bus.Flags())
	assert.Equal(t, []string{"S", "P"}, bus.Wire())
	assert.True(t, bus.Idle())
	assert.False(t, bus.Step())
}

func TestBus_AbortDropsQueuedOperations(t *testing.T) {
	bus := sim.NewBus("I2C0")
	bus.Command(i2c.CmdStart)
	bus.Transmit(0x80)
	assert.False(t, bus.Idle())
	assert.Equal(t, 1, bus.Pending())
	bus.Command(i2c.CmdAbort)
	assert.True(t, bus.Idle())
	assert.Zero(t, bus.Pending())
}

func TestBus_UnknownAddressIsNacked(t *testing.T) {
	bus := sim.NewBus("I2C0")
	bus.Command(i2c.CmdStart)
	bus.Transmit(0x22 << 1)
	require.True(t, bus.Step())
	assert.Equal(t, i2c.FlagNACK, bus.Flags())
	assert.Equal(t, "S 22+W N", bus.WireString())
}

func TestBus_RunDeliversWithLatency(t *testing.T) {
	bus := sim.NewBus("I2C0",
		sim.WithDevices(sim.NewTC74(sim.Constant(sim.Celsius(25, 0)), 0)),
		sim.WithLatency(time.Millisecond),
	)
	e, events := open(bus)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	var data uint64
	e.Start(i2c.Request{Direction: i2c.Read, Address: 0x4D, RegisterWidth: 1, Length: 1, Data: &data, Event: evDone})
	require.Eventually(t, func() bool { return events.Peek().Has(evDone) }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(25), data)
	assert.Equal(t, "S 4D+W A 00 A Sr 4D+R A 19 A FF N P", bus.WireString())

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestVariable_FailureNacksReadAddress(t *testing.T) {
	env := sim.NewVariable(sim.Celsius(25, 40))
	tc74 := sim.NewTC74(env.Behavior(), 0)
	bus := sim.NewBus("I2C0", sim.WithDevices(tc74))
	e, events := open(bus)

	env.Fail(errors.New("converting"))
	var data uint64
	e.Start(i2c.Request{Direction: i2c.Read, Address: 0x4D, RegisterWidth: 1, Length: 1, Data: &data, Event: evDone})
	for i := 0; i < 10; i++ {
		require.True(t, bus.Step())
	}
	assert.Equal(t, i2c.PhaseAwaitReadRestart, e.Phase())

	env.Fail(nil)
	env.Set(sim.Celsius(-3, 40))
	bus.Drain()
	assert.True(t, events.Peek().Has(evDone))
	assert.Equal(t, int8(-3), int8(data))
}

func TestSequence_RepeatsLast(t *testing.T) {
	b := sim.Sequence(sim.Celsius(1, 10), sim.Celsius(2, 20))
	var got []float64
	for i := 0; i < 3; i++ {
		env, err := b(context.Background())
		require.NoError(t, err)
		got = append(got, env.Temperature.Celsius())
	}
	assert.InDeltaSlice(t, []float64{1, 2, 2}, got, 1e-9)
}

func TestBridge_ForwardsToGenericBus(t *testing.T) {
	playback := &i2ctest.Playback{
		Ops: []i2ctest.IO{
			{Addr: 0x40, W: []byte{0xF5}},
			{Addr: 0x40, R: []byte{0x72, 0xB0, 0x5C, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}},
			{Addr: 0x40, W: []byte{0xE6, 0x3B}},
		},
		DontPanic: true,
	}
	bridge := sim.NewBridge(i2c.NewBusFrom(playback), 0x40)
	bus := sim.NewBus("I2C0", sim.WithDevices(bridge))
	e, events := open(bus)

	var hum uint64
	e.Start(i2c.Request{Direction: i2c.Read, Address: 0x40, Register: 0xF5, RegisterWidth: 1, Length: 2, Data: &hum, Event: evDone})
	bus.Drain()
	assert.Equal(t, uint64(0x72B0), hum)
	assert.True(t, events.Peek().Has(evDone))

	settings := uint64(0x3B)
	e.Start(i2c.Request{Address: 0x40, Register: 0xE6, RegisterWidth: 1, Length: 1, Data: &settings, Event: event.None})
	bus.Drain()

	assert.Zero(t, bridge.Errors())
	require.NoError(t, playback.Close())
}

type flakyBus struct {
	failures int
	reads    int
	writes   [][]byte
}

func (f *flakyBus) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	f.reads++
	if f.failures > 0 {
		f.failures--
		return errors.New("nack")
	}
	copy(buffer, []byte{0x5F, 0x15, 0x49, 0x80, 0x00, 0xA2})
	return nil
}

func (f *flakyBus) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	f.writes = append(f.writes, append([]byte(nil), buffer...))
	return nil
}

func (f *flakyBus) Release(ctx context.Context) error { return nil }

func TestBridge_FailedReadIsPolled(t *testing.T) {
	backend := &flakyBus{failures: 2}
	bridge := sim.NewBridge(backend, 0x70, sim.WithReadLen(7), sim.WithTimeout(time.Second))
	bus := sim.NewBus("I2C1", sim.WithDevices(bridge))
	e, _ := open(bus)

	var raw uint64
	e.Start(i2c.Request{Direction: i2c.Read, Address: 0x70, Register: 0x7866, RegisterWidth: 2, Length: 6, Data: &raw, Event: evDone})
	bus.Drain()

	assert.Equal(t, uint64(0x5F1549_8000A2), raw)
	assert.Equal(t, 3, backend.reads)
	assert.Equal(t, [][]byte{{0x78, 0x66}}, backend.writes)
	assert.Equal(t, 2, bridge.Errors())
}

func TestTicker_PostsEvent(t *testing.T) {
	events := &event.Aggregator{}
	ticker := sim.NewTicker(time.Millisecond, events, 12)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ticker.Run(ctx) }()

	require.Eventually(t, func() bool { return events.Peek().Has(12) }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
