package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	version string
	commit  string
	date    string
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := cli.NewApp()
	app.Name = "sensors"
	app.EnableBashCompletion = true
	app.Version = fmt.Sprintf("%s-%s-%s", version, date, commit)
	app.Usage = "interrupt-driven sensor station: simulation, bridging and bus tracing"
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Usage: "enable verbose logging"},
		logFormatFlag,
		configFlag,
	}
	app.Before = func(c *cli.Context) error {
		return setupLogging(c.Bool("verbose"), c.String(logFormatFlag.Name))
	}
	app.Commands = cli.Commands{
		&simulateCmd,
		&bridgeCmd,
		&traceCmd,
		&boardCmd,
		&usbCmd,
		&mcp2221Cmd,
	}
	err := app.Run(args)
	if err == nil {
		return 0
	}
	var exerr cli.ExitCoder
	if errors.As(err, &exerr) {
		return exerr.ExitCode()
	}
	_, _ = fmt.Fprintln(os.Stderr, err)
	return 1
}
