package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/mklimuk/sensorcore/accel"
	"github.com/mklimuk/sensorcore/air"
	"github.com/mklimuk/sensorcore/app"
	"github.com/mklimuk/sensorcore/config"
	"github.com/mklimuk/sensorcore/environment"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/gpio"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/irq"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "board description (YAML); built-in defaults when empty",
	EnvVars: []string{"SENSORS_CONFIG"},
}

func loadBoard(c *cli.Context) (*config.Board, error) {
	path := c.String(configFlag.Name)
	if path == "" {
		return config.Default(), nil
	}
	b, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("board loaded", "path", path)
	return b, nil
}

// board is the firmware image wired to simulated controllers.
type board struct {
	cfg     *config.Board
	events  *event.Aggregator
	arbiter *sleep.Arbiter
	loop    *app.Loop
	buses   [i2c.NumBuses]*sim.Bus
	engines *i2c.Buses
	si7021  *environment.SI7021
	shtc3   *environment.SHTC3
	ticker  *sim.Ticker

	// optional, nil unless enabled in the config
	voc      *air.AGS02MA
	motion   *accel.BMA220
	expander *gpio.MCP23017
	led      *gpio.LED
}

// tvocInterval is the shortest spacing between AGS02MA reads.
const tvocInterval = 1500 * time.Millisecond

// newBoard opens both controllers. Devices must be attached to the returned
// buses before start.
func newBoard(cfg *config.Board) (*board, error) {
	b := &board{
		cfg:     cfg,
		events:  &event.Aggregator{},
		arbiter: sleep.NewArbiter(nil),
	}
	b.loop = app.NewLoop(b.events, b.arbiter)
	var engines [i2c.NumBuses]*i2c.Engine
	for i, bc := range []config.Bus{cfg.Buses.I2C0, cfg.Buses.I2C1} {
		ccfg, err := bc.Config()
		if err != nil {
			return nil, fmt.Errorf("bus %s: %w", i2c.Bus(i), err)
		}
		b.buses[i] = sim.NewBus(i2c.Bus(i).String(), sim.WithLatency(cfg.Sim.Latency))
		engines[i] = i2c.Open(b.buses[i], ccfg, b.events, b.arbiter)
	}
	b.engines = i2c.NewBuses(engines[i2c.BusA], engines[i2c.BusB])
	b.si7021 = environment.NewSI7021(b.engines, cfg.Sensors.SI7021.Options()...)
	b.shtc3 = environment.NewSHTC3(b.engines, cfg.Sensors.SHTC3.Options()...)
	b.ticker = sim.NewTicker(cfg.Sampling.Period, b.events, app.EvTick)
	if s := cfg.Sensors.AGS02MA; !s.Disabled {
		bus, _ := config.ParseBus(s.Bus)
		b.voc = air.NewAGS02MA(b.engines, air.WithBus(bus), air.WithAddress(s.Address))
	}
	if s := cfg.Sensors.BMA220; !s.Disabled {
		bus, _ := config.ParseBus(s.Bus)
		b.motion = accel.NewBMA220(b.engines, accel.WithBus(bus), accel.WithAddress(s.Address))
	}
	if s := cfg.Sensors.Indicator; !s.Disabled {
		bus, _ := config.ParseBus(s.Bus)
		b.expander = gpio.NewMCP23017(b.engines, gpio.WithBus(bus), gpio.WithAddress(s.Address))
	}
	return b, nil
}

// start configures the optional peripherals. It needs the controllers live.
func (b *board) start() {
	if b.expander != nil {
		port, _ := config.ParsePort(b.cfg.Sensors.Indicator.Port)
		b.led = gpio.NewLED(b.expander, port, b.cfg.Sensors.Indicator.Pin)
		slog.Debug("indicator ready", "led", b.led)
	}
	if b.voc != nil {
		b.voc.Configure(event.None)
	}
	if b.motion != nil {
		b.motion.InitMotionDetection(event.None)
	}
}

// attach places a device on the bus the sensor is configured for.
func (b *board) attach(s config.Sensor, dev sim.Device) error {
	if s.Address != dev.Address() {
		return fmt.Errorf("device at %#x configured at %#x", dev.Address(), s.Address)
	}
	bus, err := config.ParseBus(s.Bus)
	if err != nil {
		return err
	}
	b.buses[bus].AddDevice(dev)
	return nil
}

func (b *board) station(opts ...app.StationOption) *app.Station {
	base := []app.StationOption{
		app.WithHumidityThreshold(b.cfg.Sampling.HumidityThreshold),
		app.WithIndicator(app.IndicatorFunc(b.indicate)),
	}
	if b.voc != nil {
		every := int((tvocInterval + b.cfg.Sampling.Period - 1) / b.cfg.Sampling.Period)
		base = append(base, app.WithAirSensor(b.voc, every))
	}
	if b.motion != nil {
		base = append(base, app.WithMotionSensor(b.motion))
	}
	return app.NewStation(b.loop, b.arbiter, b.si7021, b.shtc3, append(base, opts...)...)
}

// indicate runs on the main loop.
func (b *board) indicate(on bool) {
	slog.Debug("humidity indicator", "on", on)
	if b.led != nil {
		b.led.Set(on)
	}
}

// press raises a button interrupt.
func (b *board) press(id event.ID) {
	irq.Raise(func() {
		b.events.PostLocked(id)
	})
}

// run drives the loop, the controllers and the sampling timer until ctx is
// done. started runs once the controllers are live.
func (b *board) run(ctx context.Context, started func()) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.loop.Run(gctx) })
	for _, bus := range b.buses {
		g.Go(func() error { return bus.Run(gctx) })
	}
	g.Go(func() error {
		b.start()
		if started != nil {
			started()
		}
		return b.ticker.Run(gctx)
	})
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (b *board) summary(elapsed time.Duration) {
	sleeps := b.loop.Sleeps()
	args := []any{"elapsed", elapsed.Round(time.Millisecond)}
	for l := sleep.EM0; l < sleep.NumLevels; l++ {
		args = append(args, l.String(), sleeps[l])
	}
	slog.Info("loop sleeps", args...)
}
