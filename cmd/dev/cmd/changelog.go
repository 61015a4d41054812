package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

const defaultChangelog = "CHANGELOG.md"

type changelog struct {
	next   string
	output string
	tag    string
}

func (c changelog) args() []string {
	output := c.output
	if output == "" {
		output = defaultChangelog
	}
	args := []string{"--output", output}
	if c.next != "" {
		args = append(args, "--next-tag", c.next)
	}
	if c.tag != "" {
		args = append(args, c.tag)
	}
	return args
}

func ChangelogCmd() *cobra.Command {
	var c changelog
	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Generate or update CHANGELOG.md from git history",
		Long: `Generate CHANGELOG.md with git-chglog from conventional commits.
Scopes follow the packages: i2c, sleep, event, sim, app, adapter, cli.

  dev changelog --next v0.2.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := exec.LookPath("git-chglog"); err != nil {
				return fmt.Errorf("git-chglog not installed (go install github.com/git-chglog/git-chglog/cmd/git-chglog@latest): %w", err)
			}
			chglog := exec.CommandContext(cmd.Context(), "git-chglog", c.args()...)
			chglog.Stdout = os.Stdout
			chglog.Stderr = os.Stderr
			slog.Info("running git-chglog", "args", chglog.Args[1:])
			if err := chglog.Run(); err != nil {
				return fmt.Errorf("failed to generate changelog: %w", err)
			}
			slog.Info("changelog generated", "next", c.next, "tag", c.tag)
			return nil
		},
	}
	cmd.Flags().StringVar(&c.next, "next", "", "next version tag (e.g. v1.2.0)")
	cmd.Flags().StringVar(&c.output, "output", defaultChangelog, "output file path")
	cmd.Flags().StringVar(&c.tag, "tag", "", "generate changelog for a specific tag")
	return cmd
}
