package cmd

import (
	"fmt"
	"log/slog"

	"github.com/gophertribe/devtool/test"
	"github.com/spf13/cobra"
)

// task wraps a devtool step. what names the step in errors and logs.
func task(use, short, what string, run func() error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			slog.Debug("running", "step", what)
			if err := run(); err != nil {
				return fmt.Errorf("%s failed: %w", what, err)
			}
			return nil
		},
	}
}

func TestCmd() *cobra.Command {
	return task("test", "Run unit tests, simulated buses included", "tests", test.Test)
}

func LintCmd() *cobra.Command {
	return task("lint", "Run linters", "linting", test.Lint)
}

// IntegrationTestCmd runs the tests tagged for real adapters; they expect an
// MCP2221 or a NanoPi I2C bus with the reference sensors attached.
func IntegrationTestCmd() *cobra.Command {
	return task("integration-test", "Run tests against attached hardware", "integration tests", test.Integ)
}
