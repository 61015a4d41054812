package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore/accel"
	"github.com/mklimuk/sensorcore/air"
	"github.com/mklimuk/sensorcore/environment"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/gpio"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

type mockIndicator struct {
	mock.Mock
}

func (m *mockIndicator) Set(on bool) {
	m.Called(on)
}

type board struct {
	events  *event.Aggregator
	arbiter *sleep.Arbiter
	loop    *Loop
	busA    *sim.Bus
	busB    *sim.Bus
	si7021  *sim.SI7021
	shtc3   *sim.SHTC3
	buses   *i2c.Buses
}

func newBoard(sleeper sleep.Sleeper, env *sim.Variable) *board {
	b := &board{
		events:  &event.Aggregator{},
		arbiter: sleep.NewArbiter(sleeper),
		si7021:  sim.NewSI7021(env.Behavior()),
		shtc3:   sim.NewSHTC3(env.Behavior(), 2),
	}
	b.loop = NewLoop(b.events, b.arbiter)
	b.busA = sim.NewBus("I2C0", sim.WithDevices(b.si7021))
	b.busB = sim.NewBus("I2C1", sim.WithDevices(b.shtc3))
	b.buses = i2c.NewBuses(
		i2c.Open(b.busA, i2c.DefaultConfig(), b.events, b.arbiter),
		i2c.Open(b.busB, i2c.DefaultConfig(), b.events, b.arbiter),
	)
	return b
}

func (b *board) sensors() (*environment.SI7021, *environment.SHTC3) {
	noDelay := environment.WithDelay(func(time.Duration) {})
	return environment.NewSI7021(b.buses, environment.WithBus(i2c.BusA)),
		environment.NewSHTC3(b.buses, environment.WithBus(i2c.BusB), noDelay)
}

func (b *board) run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, fn := range []func(context.Context) error{b.loop.Run, b.busA.Run, b.busB.Run} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = fn(ctx)
		}()
	}
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
}

// drain runs fn while stepping both buses from the calling goroutine.
func (b *board) drain(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	for {
		select {
		case <-done:
			for b.busA.Drain()+b.busB.Drain() > 0 {
			}
			return
		default:
			b.busA.Step()
			b.busB.Step()
		}
	}
}

// settle dispatches pending events until none are left, stepping the buses
// for the transactions the handlers start.
func (b *board) settle() {
	for !b.events.Peek().Empty() {
		b.drain(func() { b.loop.Step() })
	}
}

func TestStation_TickSamplesAllSensors(t *testing.T) {
	env := sim.NewVariable(sim.Celsius(20, 50))
	b := newBoard(nil, env)
	si, sh := b.sensors()

	readings := make(chan Reading, 8)
	indicator := &mockIndicator{}
	indicator.On("Set", true).Return()
	station := NewStation(b.loop, b.arbiter, si, sh,
		WithReporter(ReporterFunc(func(r Reading) { readings <- r })),
		WithIndicator(indicator),
	)
	b.run(t)
	station.Start()

	sim.NewTicker(time.Hour, b.events, EvTick).Fire()

	got := map[string]Reading{}
	for len(got) < 3 {
		select {
		case r := <-readings:
			got[fmt.Sprintf("%s/%d", r.Sensor, r.Quantity)] = r
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d readings arrived", len(got))
		}
	}

	hum := got["si7021/1"]
	assert.InDelta(t, 50, float64(hum.Env.Humidity)/float64(physic.PercentRH), 0.01)
	temp := got["si7021/2"]
	assert.InDelta(t, 20, temp.Env.Temperature.Celsius(), 0.01)
	assert.InDelta(t, 68, temp.Fahrenheit(), 0.02)
	both := got["shtc3/3"]
	assert.InDelta(t, 20, both.Env.Temperature.Celsius(), 0.01)
	assert.Equal(t, 2, b.shtc3.Nacked())
	assert.False(t, b.shtc3.Awake())
	assert.Zero(t, station.CRCErrors())
	indicator.AssertExpectations(t)
}

func TestStation_IndicatorFollowsThreshold(t *testing.T) {
	env := sim.NewVariable(sim.Celsius(20, 20))
	b := newBoard(&sleepRecorder{}, env)
	si, _ := b.sensors()

	var states []bool
	station := NewStation(b.loop, b.arbiter, si, nil,
		WithReporter(ReporterFunc(func(Reading) {})),
		WithIndicator(IndicatorFunc(func(on bool) { states = append(states, on) })),
		WithHumidityThreshold(30),
	)
	b.drain(station.Start)
	require.Equal(t, 1, b.loop.Step())

	for _, rh := range []float64{20, 31, 29} {
		env.Set(sim.Celsius(20, rh))
		b.events.Post(EvTick)
		b.drain(func() { b.loop.Step() })
		for !b.events.Peek().Empty() {
			b.loop.Step()
		}
	}
	assert.Equal(t, []bool{false, true, false}, states)
}

func TestStation_ButtonsShiftOwnHold(t *testing.T) {
	b := newBoard(&sleepRecorder{}, sim.NewVariable(sim.Celsius(20, 50)))
	si, sh := b.sensors()
	station := NewStation(b.loop, b.arbiter, si, sh, WithReporter(ReporterFunc(func(Reading) {})))
	b.drain(station.Start)
	require.Equal(t, 1, b.loop.Step())
	assert.Equal(t, sleep.EM4, station.Hold())

	steps := []struct {
		event event.ID
		want  sleep.Level
	}{
		{EvButtonOdd, sleep.EM0},
		{EvButtonEven, sleep.EM4},
		{EvButtonEven, sleep.EM3},
		{EvButtonEven, sleep.EM2},
		{EvButtonOdd, sleep.EM3},
	}
	for _, s := range steps {
		b.events.Post(s.event)
		require.Equal(t, 1, b.loop.Step())
		assert.Equal(t, s.want, station.Hold())
		assert.Equal(t, s.want, b.arbiter.CurrentFloor())
		assert.Equal(t, 1, b.arbiter.Counts()[s.want])
	}

	station.Stop()
	assert.Equal(t, [sleep.NumLevels]int{}, b.arbiter.Counts())
}

func TestStation_DropsCorruptedMeasurement(t *testing.T) {
	b := newBoard(&sleepRecorder{}, sim.NewVariable(sim.Celsius(20, 50)))
	si, sh := b.sensors()
	var reported int
	station := NewStation(b.loop, b.arbiter, si, sh, WithReporter(ReporterFunc(func(Reading) { reported++ })))

	b.events.Post(EvSHTC3)
	require.Equal(t, 1, b.loop.Step())
	assert.Equal(t, 1, station.CRCErrors())
	assert.Zero(t, reported)
}

func TestStation_AirSensorAndExpanderLED(t *testing.T) {
	b := newBoard(&sleepRecorder{}, sim.NewVariable(sim.Celsius(20, 40)))
	voc := sim.NewAGS02MA(420)
	expander := sim.NewMCP23017(0)
	b.busA.AddDevice(expander)
	b.busB.AddDevice(voc)
	si, _ := b.sensors()

	var led *gpio.LED
	b.drain(func() { led = gpio.NewLED(gpio.NewMCP23017(b.buses), gpio.PortA, 0) })
	assert.Equal(t, byte(0xFE), expander.Direction(0))

	var tvoc []uint32
	station := NewStation(b.loop, b.arbiter, si, nil,
		WithReporter(ReporterFunc(func(r Reading) {
			if r.Quantity == QuantityTVOC {
				tvoc = append(tvoc, r.TVOC)
			}
		})),
		WithIndicator(led),
		WithAirSensor(air.NewAGS02MA(b.buses, air.WithBus(i2c.BusB)), 2),
	)
	b.drain(station.Start)
	b.settle()

	for i := 0; i < 4; i++ {
		if i == 2 {
			voc.Warm()
		}
		b.events.Post(EvTick)
		b.settle()
	}
	// read on ticks 0 and 2, the first one during pre-heat
	assert.Equal(t, []uint32{420}, tvoc)
	assert.Equal(t, byte(0x01), expander.Outputs(0))
	assert.Zero(t, station.CRCErrors())
}

func TestStation_MotionInterrupt(t *testing.T) {
	b := newBoard(&sleepRecorder{}, sim.NewVariable(sim.Celsius(20, 10)))
	device := sim.NewBMA220()
	b.busB.AddDevice(device)
	si, _ := b.sensors()

	motion := accel.NewBMA220(b.buses, accel.WithBus(i2c.BusB))
	b.drain(func() { motion.InitMotionDetection(event.None) })

	var moves int
	station := NewStation(b.loop, b.arbiter, si, nil,
		WithReporter(ReporterFunc(func(r Reading) {
			if r.Quantity == QuantityMotion && r.Motion {
				moves++
			}
		})),
		WithMotionSensor(motion),
	)
	b.drain(station.Start)
	b.settle()

	b.events.Post(EvTick)
	b.settle()
	assert.Zero(t, moves)

	require.True(t, device.Shake())
	b.events.Post(EvTick)
	b.settle()
	assert.Equal(t, 1, moves)
	// the latch was reset by the handler
	b.events.Post(EvTick)
	b.settle()
	assert.Equal(t, 1, moves)
}
