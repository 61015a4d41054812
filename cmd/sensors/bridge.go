package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/urfave/cli/v2"
	"gobot.io/x/gobot/v2/platforms/friendlyelec/nanopi"
	"periph.io/x/conn/v3/physic"

	"github.com/mklimuk/sensorcore"
	"github.com/mklimuk/sensorcore/adapter"
	"github.com/mklimuk/sensorcore/app"
	"github.com/mklimuk/sensorcore/cmd/sensors/console"
	"github.com/mklimuk/sensorcore/config"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
)

var bridgeCmd = cli.Command{
	Name:  "bridge",
	Usage: "run the station with simulated controllers forwarding to real sensors",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Usage: "periph, mcp2221 or gobot (overrides config)"},
		&cli.StringFlag{Name: "device", Usage: "periph bus name, e.g. /dev/i2c-1 (overrides config)"},
		&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "stop after this long; 0 runs until interrupted"},
		&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadBoard(c)
		if err != nil {
			return console.Exit(1, "config error: %s", console.Red(err))
		}
		if c.IsSet("backend") {
			cfg.Bridge.Backend = c.String("backend")
		}
		if c.IsSet("device") {
			cfg.Bridge.Device = c.String("device")
		}
		if err := cfg.Validate(); err != nil {
			return console.Exit(1, "config error: %s", console.Red(err))
		}
		if !cfg.Bridge.Confirmed && !c.Bool("yes") {
			ok, err := console.Confirm(fmt.Sprintf("commands will be sent to real devices through %s, continue?", console.Bold(cfg.Bridge.Backend)))
			if err != nil {
				return console.Exit(1, "prompt error: %s", console.Red(err))
			}
			if !ok {
				console.Warnf("bridge aborted, nothing sent")
				return nil
			}
		}
		backend, closer, err := openBackend(cfg)
		if err != nil {
			return console.Exit(1, "backend error: %s", console.Red(err))
		}
		defer func() {
			if err := closer.Close(); err != nil {
				slog.Warn("closing backend", "error", err)
			}
		}()

		b, err := newBoard(cfg)
		if err != nil {
			return console.Exit(1, "board error: %s", console.Red(err))
		}
		opts := []sim.BridgeOption{sim.WithReadLen(cfg.Bridge.ReadLen), sim.WithTimeout(cfg.Bridge.Timeout)}
		bridges := map[string]*sim.Bridge{}
		for name, s := range map[string]config.Sensor{
			"SI7021":   cfg.Sensors.SI7021,
			"SHTC3":    cfg.Sensors.SHTC3,
			"AGS02MA":  cfg.Sensors.AGS02MA,
			"BMA220":   cfg.Sensors.BMA220,
			"MCP23017": cfg.Sensors.Indicator.Sensor,
		} {
			if s.Disabled && name != "SI7021" && name != "SHTC3" {
				continue
			}
			br := sim.NewBridge(backend, s.Address, opts...)
			if err := b.attach(s, br); err != nil {
				return console.Exit(1, "%s: %s", name, console.Red(err))
			}
			bridges[name] = br
		}
		station := b.station(app.WithReporter(app.LogReporter(slog.Default())))

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		if d := c.Duration("duration"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		console.PInfof(console.PictoPin, "bridging to %s", console.White(backend))
		begin := time.Now()
		err = b.run(ctx, station.Start)
		station.Stop()
		b.summary(time.Since(begin))
		for name, br := range bridges {
			slog.Info("bridge", "sensor", name, "errors", br.Errors())
		}
		if err != nil {
			return console.Exit(1, "bridge failed: %s", console.Red(err))
		}
		return nil
	},
}

type backendBus interface {
	sensorcore.I2CBus
	fmt.Stringer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// openBackend opens the adapter both simulated controllers forward to.
func openBackend(board *config.Board) (backendBus, io.Closer, error) {
	cfg := board.Bridge
	switch cfg.Backend {
	case config.BackendPeriph:
		bus, err := i2c.NewGenericBus(cfg.Device)
		if err != nil {
			return nil, nil, err
		}
		speed, err := bridgeSpeed(board.Buses)
		if err == nil {
			err = bus.SetSpeed(speed)
		}
		if err != nil {
			slog.Warn("keeping host bus speed", "bus", bus, "error", err)
		}
		return bus, bus, nil
	case config.BackendMCP2221:
		d := adapter.NewMCP2221()
		status, err := d.ReleaseBus(context.Background())
		if err != nil {
			return nil, nil, err
		}
		slog.Debug("adapter released", "speed_divider", status.I2CSpeedDivider, "address", status.CurrentAddress)
		return d, closerFunc(func() error { return nil }), nil
	case config.BackendGobot:
		npi := nanopi.NewNeoAdaptor()
		if err := npi.I2cBusAdaptor.Connect(); err != nil {
			return nil, nil, fmt.Errorf("adaptor connect error: %w", err)
		}
		g := adapter.NewGobot(npi, cfg.GobotBus)
		return g, closerFunc(func() error {
			err := g.Close()
			if ferr := npi.I2cBusAdaptor.Finalize(); err == nil {
				err = ferr
			}
			return err
		}), nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// bridgeSpeed is the slower of the two controller clocks; every sensor
// behind the bridge shares one host bus.
func bridgeSpeed(buses config.Buses) (physic.Frequency, error) {
	a, err := buses.I2C0.Config()
	if err != nil {
		return 0, err
	}
	b, err := buses.I2C1.Config()
	if err != nil {
		return 0, err
	}
	return min(a.Frequency, b.Frequency), nil
}
