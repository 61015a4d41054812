package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"
)

var logFormatFlag = &cli.StringFlag{
	Name:  "log-format",
	Value: "text",
	Usage: "text, logfmt or json",
}

func newLogger(verbose bool, format string) (*chlog.Logger, error) {
	opts := chlog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           chlog.InfoLevel,
	}
	switch format {
	case "text":
		opts.Formatter = chlog.TextFormatter
	case "logfmt":
		opts.Formatter = chlog.LogfmtFormatter
	case "json":
		opts.Formatter = chlog.JSONFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	if verbose {
		opts.Level = chlog.DebugLevel
		opts.ReportCaller = true
	}
	charm := chlog.NewWithOptions(os.Stderr, opts)
	if format == "text" {
		charm.SetColorProfile(termenv.TrueColor)
	}
	return charm, nil
}

// setupLogging routes slog through charmbracelet/log. Station readings and
// engine diagnostics all go through slog.
func setupLogging(verbose bool, format string) error {
	charm, err := newLogger(verbose, format)
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(charm))
	return nil
}
