package i2c_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	periphi2c "periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/physic"
	"tinygo.org/x/drivers/shtc3"

	"github.com/mklimuk/sensorcore/app"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

const evConn event.ID = 9

type running struct {
	conn   *i2c.Conn
	bus    *sim.Bus
	engine *i2c.Engine
}

// startConn runs a main loop and a simulated bus in the background.
func startConn(t *testing.T, devices ...sim.Device) *running {
	t.Helper()
	events := &event.Aggregator{}
	arbiter := sleep.NewArbiter(nil)
	loop := app.NewLoop(events, arbiter)
	bus := sim.NewBus("I2C1", sim.WithDevices(devices...))
	engine := i2c.Open(bus, i2c.DefaultConfig(), events, arbiter)
	conn := i2c.NewConn(engine, i2c.BusA, evConn, loop)
	bus.ResetWire()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = loop.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = bus.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return &running{conn: conn, bus: bus, engine: engine}
}

func TestConn_StockSHTC3Driver(t *testing.T) {
	sensor := sim.NewSHTC3(sim.Constant(sim.Celsius(20, 50)), 0)
	r := startConn(t, sensor)

	dev := shtc3.New(r.conn)
	require.NoError(t, dev.WakeUp())
	assert.True(t, sensor.Awake())

	temp, hum, err := dev.ReadTemperatureHumidity()
	require.NoError(t, err)
	assert.InDelta(t, 20000, temp, 10)
	assert.Equal(t, int16(5000), hum)

	require.NoError(t, dev.Sleep())
	assert.False(t, sensor.Awake())
	assert.False(t, r.engine.Busy())
}

func TestConn_PeriphDev(t *testing.T) {
	sensor := sim.NewSI7021(sim.Constant(sim.Celsius(21, 50)))
	r := startConn(t, sensor)
	dev := &periphi2c.Dev{Bus: r.conn, Addr: 0x40}

	user := make([]byte, 1)
	require.NoError(t, dev.Tx([]byte{0xE7}, user))
	assert.Equal(t, byte(0x3A), user[0])

	_, err := dev.Write([]byte{0xE6, 0x3B})
	require.NoError(t, err)
	assert.Equal(t, byte(0x3B), sensor.UserSettings())

	raw := make([]byte, 2)
	require.NoError(t, dev.Tx([]byte{0xF5}, raw))
	assert.Equal(t, []byte{0x72, 0xB0}, raw)
	assert.Contains(t, r.bus.WireString(), "S 40+W A F5 A Sr 40+R A 72 A B0 A")
}

func TestConn_Errors(t *testing.T) {
	r := startConn(t)
	tests := []struct {
		name string
		addr uint16
		w, r []byte
		err  error
	}{
		{"ten bit address", 0x140, []byte{1}, nil, i2c.ErrAddress},
		{"read without register", 0x40, nil, make([]byte, 2), i2c.ErrNoRegister},
		{"register too wide", 0x40, make([]byte, 5), make([]byte, 2), i2c.ErrNoRegister},
		{"write too long", 0x40, make([]byte, 9), nil, i2c.ErrTooLong},
		{"read too long", 0x40, []byte{1}, make([]byte, 9), i2c.ErrTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.conn.Tx(tt.addr, tt.w, tt.r), tt.err)
		})
	}
	assert.ErrorIs(t, r.conn.SetSpeed(400*physic.KiloHertz), i2c.ErrFixedSpeed)
	assert.Equal(t, "I2C0(event 9)", r.conn.String())
	assert.Empty(t, r.bus.Wire())
}
