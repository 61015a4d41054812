package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/mklimuk/sensorcore/cmd/sensors/console"
	"github.com/mklimuk/sensorcore/event"
	"github.com/mklimuk/sensorcore/i2c"
	"github.com/mklimuk/sensorcore/sim"
	"github.com/mklimuk/sensorcore/sleep"
)

// traceStepLimit stops a transaction a device never completes, such as
// polling an SHTC3 that was never woken up.
const traceStepLimit = 1000

var traceCmd = cli.Command{
	Name:      "trace",
	Usage:     "run one transaction against simulated devices and print the wire log and engine trace",
	ArgsUsage: "<address>",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "write", Aliases: []string{"w"}, Usage: "write instead of read"},
		&cli.StringFlag{Name: "register", Aliases: []string{"r"}, Value: "0", Usage: "register or command (hex)"},
		&cli.UintFlag{Name: "width", Value: 1, Usage: "register width in bytes (0-4)"},
		&cli.UintFlag{Name: "length", Aliases: []string{"n"}, Value: 1, Usage: "payload length in bytes (0-8)"},
		&cli.StringFlag{Name: "payload", Aliases: []string{"p"}, Value: "0", Usage: "write payload (hex, sent MSB first)"},
		&cli.Float64Flag{Name: "temperature", Value: 21, Usage: "ambient temperature in °C"},
		&cli.Float64Flag{Name: "humidity", Value: 45, Usage: "ambient relative humidity in %"},
		&cli.IntFlag{Name: "polls", Value: 2, Usage: "SHTC3 NACKs before a measurement is ready"},
		&cli.UintFlag{Name: "tvoc", Value: 150, Usage: "AGS02MA TVOC level in ppb"},
	},
	Action: func(c *cli.Context) error {
		if c.NArg() != 1 {
			return console.Exit(1, "expected one device address, e.g. 0x40")
		}
		address, err := strconv.ParseUint(c.Args().First(), 0, 8)
		if err != nil {
			return console.Exit(1, "invalid address: %s", console.Red(err))
		}
		register, err := strconv.ParseUint(c.String("register"), 16, 32)
		if err != nil {
			return console.Exit(1, "invalid register: %s", console.Red(err))
		}
		data, err := strconv.ParseUint(c.String("payload"), 16, 64)
		if err != nil {
			return console.Exit(1, "invalid payload: %s", console.Red(err))
		}
		req := i2c.Request{
			Bus:           i2c.BusA,
			Direction:     i2c.Read,
			Address:       uint8(address),
			Register:      uint32(register),
			RegisterWidth: uint8(c.Uint("width")),
			Length:        uint8(c.Uint("length")),
			Data:          &data,
			Event:         event.None,
		}
		if c.Bool("write") {
			req.Direction = i2c.Write
		}
		if req.Address > i2c.MaxAddress || req.RegisterWidth > i2c.MaxRegisterWidth || req.Length > i2c.MaxLength {
			return console.Exit(1, "request out of range: %s", console.Red(req))
		}
		if req.Direction == i2c.Read && req.RegisterWidth == 0 {
			return console.Exit(1, "reads need a register phase")
		}

		ambient := sim.Constant(sim.Celsius(c.Float64("temperature"), c.Float64("humidity")))
		bus := sim.NewBus(i2c.BusA.String(), sim.WithDevices(
			sim.NewSI7021(ambient),
			sim.NewSHTC3(ambient, c.Int("polls")),
			sim.NewTC74(ambient, 0x4D),
			warmAGS02MA(c.Uint("tvoc")),
			sim.NewMCP23017(0),
			sim.NewBMA220(),
		))
		events := &event.Aggregator{}
		engine := i2c.Open(bus, i2c.DefaultConfig(), events, sleep.NewArbiter(nil))
		bus.ResetWire()
		engine.ResetTrace()

		engine.Start(req)
		steps := 0
		for engine.Busy() && steps < traceStepLimit {
			if !bus.Step() {
				break
			}
			steps++
		}

		console.PInfof(console.PictoPin, "%s", console.White(req))
		console.Printf("wire: %s\n", bus.WireString())
		w := tabwriter.NewWriter(os.Stdout, 4, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "SEQ\tCONDITION\tFROM\tTO\n")
		for _, e := range engine.Trace() {
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.Seq, e.Cond, e.From, e.To)
		}
		_ = w.Flush()
		if engine.Busy() {
			return console.Exit(1, "transaction did not complete after %d steps (phase %s)", steps, engine.Phase())
		}
		if req.Direction == i2c.Read {
			console.Printf("data: %s\n", console.Green(fmt.Sprintf("%#0*x", int(req.Length)*2+2, data)))
		}
		return nil
	},
}

func warmAGS02MA(ppb uint) *sim.AGS02MA {
	d := sim.NewAGS02MA(uint32(ppb))
	d.Warm()
	return d
}
