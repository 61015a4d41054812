package main

import (
	"os"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/mklimuk/sensorcore/cmd/sensors/console"
)

var boardCmd = cli.Command{
	Name:  "board",
	Usage: "print the effective board configuration",
	Action: func(c *cli.Context) error {
		cfg, err := loadBoard(c)
		if err != nil {
			return console.Exit(1, "config error: %s", console.Red(err))
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		if err := enc.Encode(cfg); err != nil {
			return console.Exit(1, "encoding error: %s", console.Red(err))
		}
		return nil
	},
}
