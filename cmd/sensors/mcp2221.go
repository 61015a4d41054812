package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensorcore/adapter"
	"github.com/mklimuk/sensorcore/cmd/sensors/console"
)

var mcp2221Cmd = cli.Command{
	Name:  "mcp2221",
	Usage: "inspect the USB to I2C bridge adapter",
	Flags: []cli.Flag{
		&cli.IntFlag{Name: "id", Value: -1, Usage: "adapter index when several are attached"},
	},
	Subcommands: cli.Commands{
		&mcp2221StatusCmd,
		&mcp2221ReleaseCmd,
	},
}

func mcp2221From(c *cli.Context) *adapter.MCP2221 {
	if id := c.Int("id"); id >= 0 {
		return adapter.NewMCP2221(adapter.WithDeviceIndex(id))
	}
	return adapter.NewMCP2221()
}

func printStatus(status *adapter.MCP2221Status) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(status); err != nil {
		return console.Exit(1, "encoding error: %s", console.Red(err))
	}
	return nil
}

var mcp2221StatusCmd = cli.Command{
	Name:  "status",
	Usage: "print the adapter I2C engine status",
	Action: func(c *cli.Context) error {
		status, err := mcp2221From(c).Status(context.Background())
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printStatus(status)
	},
}

var mcp2221ReleaseCmd = cli.Command{
	Name:  "release",
	Usage: "cancel the transfer the adapter is stuck on",
	Action: func(c *cli.Context) error {
		status, err := mcp2221From(c).ReleaseBus(context.Background())
		if err != nil {
			return console.Exit(1, "adapter communication error: %s", console.Red(err))
		}
		return printStatus(status)
	},
}
