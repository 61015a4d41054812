package air

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

const evDone event.ID = 3

type rig struct {
	engine *i2c.Engine
	bus    *sim.Bus
	events *event.Aggregator
}

func newRig(devices ...sim.Device) *rig {
	r := &rig{
		bus:    sim.NewBus("I2C1", sim.WithDevices(devices...)),
		events: &event.Aggregator{},
	}
	cfg := i2c.DefaultConfig()
	cfg.Frequency = MaxFrequency
	r.engine = i2c.Open(r.bus, cfg, r.events, sleep.NewArbiter(sleep.SleeperFunc(func(sleep.Level) {})))
	r.bus.ResetWire()
	return r
}

func (r *rig) do(fn func(ev event.ID)) {
	r.events.Clear(evDone)
	r.bus.ResetWire()
	fn(evDone)
	r.bus.Drain()
}

func TestAGS02MA_TVOC(t *testing.T) {
	device := sim.NewAGS02MA(750)
	r := newRig(device)
	sensor := NewAGS02MA(r.engine)

	r.do(sensor.ReadTVOC)
	assert.True(t, r.events.Peek().Has(evDone))
	_, err := sensor.TVOC()
	assert.ErrorIs(t, err, ErrNotReady)

	device.Warm()
	r.do(sensor.ReadTVOC)
	assert.Equal(t, "S 1A+W A 00 A Sr 1A+R A 00 A 00 A 02 A EE A D0 A FF N P", r.bus.WireString())
	ppb, err := sensor.TVOC()
	require.NoError(t, err)
	assert.Equal(t, uint32(750), ppb)

	device.SetTVOC(0x012345)
	r.do(sensor.ReadTVOC)
	ppb, err = sensor.TVOC()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x012345), ppb)
}

func TestAGS02MA_ConfigureAndCalibrate(t *testing.T) {
	device := sim.NewAGS02MA(0)
	r := newRig(device)
	sensor := NewAGS02MA(r.engine)

	r.do(sensor.Configure)
	assert.Equal(t, "S 1A+W A 00 A 00 A FF A 00 A FF A 30 A P", r.bus.WireString())
	assert.True(t, device.Configured())
	assert.False(t, device.Calibrated())

	r.do(sensor.Calibrate)
	assert.Equal(t, "S 1A+W A 01 A 00 A 0C A FF A F3 A FC A P", r.bus.WireString())
	assert.True(t, device.Calibrated())
}

func TestAGS02MA_VersionAndResistance(t *testing.T) {
	r := newRig(sim.NewAGS02MA(0))
	sensor := NewAGS02MA(r.engine)

	r.do(sensor.ReadVersion)
	version, err := sensor.Version()
	require.NoError(t, err)
	assert.Equal(t, 0x76, version)

	r.do(sensor.ReadResistance)
	res, err := sensor.Resistance()
	require.NoError(t, err)
	assert.Equal(t, 250*physic.KiloOhm, res)
}

func TestAGS02MA_CRCMismatch(t *testing.T) {
	sensor := NewAGS02MA(nil)
	sensor.tvoc = 0x000002EE_00
	_, err := sensor.TVOC()
	assert.ErrorIs(t, err, ErrCRC)
	assert.Contains(t, err.Error(), "expected 0x0, got 0xd0")
}

func TestAGS02MA_Options(t *testing.T) {
	a := newRig()
	b := newRig(sim.NewAGS02MA(0))
	sensor := NewAGS02MA(i2c.NewBuses(a.engine, b.engine), WithBus(i2c.BusB))

	b.do(sensor.ReadVersion)
	assert.Contains(t, b.bus.WireString(), "S 1A+W A 11 A Sr 1A+R")
	assert.Empty(t, a.bus.Wire())

	moved := NewAGS02MA(nil, WithAddress(0x1B))
	assert.Equal(t, uint8(0x1B), moved.request(i2c.Read, regTVOC, &moved.tvoc, evDone).Address)
}

func TestCheckCRC(t *testing.T) {
	assert.Equal(t, byte(0x30), checkCRC(0x00, 0xFF, 0x00, 0xFF))
	assert.Equal(t, byte(0xFC), checkCRC(0x00, 0x0C, 0xFF, 0xF3))
}
