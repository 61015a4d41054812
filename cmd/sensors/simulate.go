package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorcore/app"
	"github.com/mklimuk/sensorcore/cmd/sensors/console"
	"github.com/mklimuk/sensorcore/sim"
)

var simulateCmd = cli.Command{
	Name:  "simulate",
	Usage: "run the station against simulated SI7021 and SHTC3 sensors",
	Flags: []cli.Flag{
		&cli.DurationFlag{Name: "duration", Aliases: []string{"d"}, Usage: "stop after this long; 0 runs until interrupted"},
		&cli.Float64Flag{Name: "temperature", Usage: "ambient temperature in °C (overrides config)"},
		&cli.Float64Flag{Name: "humidity", Usage: "ambient relative humidity in % (overrides config)"},
		&cli.UintFlag{Name: "tvoc", Usage: "TVOC level in ppb seen by the AGS02MA (overrides config)"},
		&cli.BoolFlag{Name: "interactive", Aliases: []string{"i"}, Usage: "read button presses and ambient changes from the terminal"},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadBoard(c)
		if err != nil {
			return console.Exit(1, "config error: %s", console.Red(err))
		}
		if c.IsSet("temperature") {
			cfg.Sim.Temperature = c.Float64("temperature")
		}
		if c.IsSet("humidity") {
			cfg.Sim.Humidity = c.Float64("humidity")
		}
		if c.IsSet("tvoc") {
			cfg.Sim.TVOC = c.Uint("tvoc")
		}
		b, err := newBoard(cfg)
		if err != nil {
			return console.Exit(1, "board error: %s", console.Red(err))
		}
		ambient := sim.NewVariable(sim.Celsius(cfg.Sim.Temperature, cfg.Sim.Humidity))
		if err := b.attach(cfg.Sensors.SI7021, sim.NewSI7021(ambient.Behavior())); err != nil {
			return console.Exit(1, "SI7021: %s", console.Red(err))
		}
		if err := b.attach(cfg.Sensors.SHTC3, sim.NewSHTC3(ambient.Behavior(), cfg.Sim.SHTC3Polls)); err != nil {
			return console.Exit(1, "SHTC3: %s", console.Red(err))
		}
		var voc *sim.AGS02MA
		if s := cfg.Sensors.AGS02MA; !s.Disabled {
			voc = sim.NewAGS02MA(uint32(cfg.Sim.TVOC))
			if err := b.attach(s, voc); err != nil {
				return console.Exit(1, "AGS02MA: %s", console.Red(err))
			}
			// pre-heat is skipped on the host
			voc.Warm()
		}
		var accelerometer *sim.BMA220
		if s := cfg.Sensors.BMA220; !s.Disabled {
			accelerometer = sim.NewBMA220()
			if err := b.attach(s, accelerometer); err != nil {
				return console.Exit(1, "BMA220: %s", console.Red(err))
			}
		}
		if s := cfg.Sensors.Indicator; !s.Disabled {
			if err := b.attach(s.Sensor, sim.NewMCP23017(s.Address)); err != nil {
				return console.Exit(1, "MCP23017: %s", console.Red(err))
			}
		}
		station := b.station(app.WithReporter(app.LogReporter(slog.Default())))

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
		defer stop()
		if d := c.Duration("duration"); d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		if c.Bool("interactive") {
			go func() {
				if err := interact(ctx, b, ambient, voc, accelerometer); err != nil {
					slog.Warn("terminal input stopped", "error", err)
				}
				stop()
			}()
		}

		console.PInfof(console.PictoThermometer, "simulating %s every %s (threshold %.0f%%)",
			console.White(fmt.Sprintf("%.1f°C %.0f%%RH", cfg.Sim.Temperature, cfg.Sim.Humidity)),
			cfg.Sampling.Period, cfg.Sampling.HumidityThreshold)
		begin := time.Now()
		err = b.run(ctx, station.Start)
		station.Stop()
		b.summary(time.Since(begin))
		slog.Info("station stopped", "hold", station.Hold(), "crc_errors", station.CRCErrors())
		if err != nil {
			return console.Exit(1, "simulation failed: %s", console.Red(err))
		}
		return nil
	},
}

const interactiveHelp = `commands:
  e            press the even button (lighter sleep)
  o            press the odd button (deeper sleep)
  t <celsius>  change the ambient temperature
  h <percent>  change the ambient humidity
  v <ppb>      change the TVOC level (AGS02MA enabled)
  m            shake the board (BMA220 enabled)
  fail         make the sensors stop answering
  ok           make them answer again
  q            quit`

// interact maps terminal lines onto button interrupts and ambient changes.
func interact(ctx context.Context, b *board, ambient *sim.Variable, voc *sim.AGS02MA, accelerometer *sim.BMA220) error {
	rl, err := readline.New("> ")
	if err != nil {
		return err
	}
	defer func() { _ = rl.Close() }()
	go func() {
		<-ctx.Done()
		_ = rl.Close()
	}()
	console.Print(interactiveHelp)
	temp, hum := b.cfg.Sim.Temperature, b.cfg.Sim.Humidity
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "e":
			b.press(app.EvButtonEven)
		case "o":
			b.press(app.EvButtonOdd)
		case "t", "h":
			var v float64
			if len(fields) != 2 {
				console.Warnf("usage: %s <value>", fields[0])
				continue
			}
			if _, err := fmt.Sscanf(fields[1], "%g", &v); err != nil {
				console.Warnf("not a number: %s", fields[1])
				continue
			}
			if fields[0] == "t" {
				temp = v
			} else {
				hum = v
			}
			ambient.Set(sim.Celsius(temp, hum))
		case "v":
			var ppb uint32
			if voc == nil {
				console.Warnf("no AGS02MA configured")
				continue
			}
			if len(fields) != 2 {
				console.Warnf("usage: v <ppb>")
				continue
			}
			if _, err := fmt.Sscanf(fields[1], "%d", &ppb); err != nil {
				console.Warnf("not a number: %s", fields[1])
				continue
			}
			voc.SetTVOC(ppb)
		case "m":
			if accelerometer == nil || !accelerometer.Shake() {
				console.Warnf("no armed BMA220 configured")
			}
		case "fail":
			ambient.Fail(errors.New("sensor unplugged"))
		case "ok":
			ambient.Fail(nil)
		case "q":
			return nil
		default:
			console.Print(interactiveHelp)
		}
	}
}
