package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/mklimuk/sensorcore/cmd/dev/cmd"
)

func main() {
	var debug bool
	root := &cobra.Command{
		Use:          "dev",
		Short:        "build/test tool for the sensorcore project",
		Long:         "Builds the sensors CLI, runs tests and linters and maintains the changelog",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			level := log.InfoLevel
			if debug {
				level = log.DebugLevel
			}
			charm := log.NewWithOptions(os.Stdout, log.Options{
				ReportTimestamp: true,
				TimeFormat:      time.Kitchen,
				Prefix:          "dev",
				Level:           level,
			})
			charm.SetColorProfile(termenv.TrueColor)
			slog.SetDefault(slog.New(charm))
		},
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	root.AddCommand(
		cmd.BuildCmd(),
		cmd.ChangelogCmd(),
		cmd.TestCmd(),
		cmd.LintCmd(),
		cmd.IntegrationTestCmd(),
	)
	if err := root.Execute(); err != nil {
		slog.Error("dev failed", "error", err)
		os.Exit(1)
	}
}
