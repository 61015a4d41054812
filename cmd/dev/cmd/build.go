package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gophertribe/devtool/build"
)

const builderImage = "gophertribe/gobuild:1.25-bookworm"

type buildTarget struct {
	output    string
	version   string
	os        string
	arch      string
	crossOS   string
	crossArch string
	hid       bool
	noCache   bool
}

func (t buildTarget) native() bool {
	return t.os == runtime.GOOS && t.arch == runtime.GOARCH
}

// goOpts resolves the cross target. The MCP2221 backend (karalabe/hid) is
// the only cgo user; without it the adapter reports no devices.
func (t buildTarget) goOpts() build.GoBuildOpts {
	goos, arch := t.os, t.arch
	if t.crossOS != "" && t.crossArch != "" {
		goos, arch = t.crossOS, t.crossArch
	}
	return build.GoBuildOpts{
		Version:       t.version,
		InjectVersion: true,
		ConfigPackage: "main",
		EnableCgo:     t.hid,
		Arch:          arch,
		OS:            goos,
	}
}

// dockerArgs re-runs this command inside the builder image.
func (t buildTarget) dockerArgs() []string {
	args := []string{"build", "--version", t.version, "--output", t.output, "--cross-os", t.crossOS, "--cross-arch", t.crossArch}
	if !t.hid {
		args = append(args, "--no-hid")
	}
	return args
}

func BuildCmd() *cobra.Command {
	var t buildTarget
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the sensors CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			noHID, err := cmd.Flags().GetBool("no-hid")
			if err != nil {
				return fmt.Errorf("could not get no-hid flag: %w", err)
			}
			t.hid = !noHID
			if t.native() {
				return build.GoBuild(t.output, "./cmd/sensors", t.goOpts())
			}
			return build.Docker(cmd.Context(), fmt.Sprintf("./dev-%s-%s", t.os, t.arch), t.dockerArgs(), build.DockerBuildOpts{
				NoCache: t.noCache,
				Image:   builderImage,
			})
		},
	}
	cmd.Flags().StringVar(&t.output, "output", "dist/sensors", "binary path")
	cmd.Flags().StringVar(&t.version, "version", "latest", "version of the cli")
	cmd.Flags().StringVar(&t.os, "os", runtime.GOOS, "os to build for")
	cmd.Flags().StringVar(&t.arch, "arch", runtime.GOARCH, "arch to build for")
	cmd.Flags().StringVar(&t.crossOS, "cross-os", "", "os to cross-compile for")
	cmd.Flags().StringVar(&t.crossArch, "cross-arch", "", "arch to cross-compile for")
	cmd.Flags().BoolVar(&t.noCache, "no-cache", false, "do not use cache when building the app")
	cmd.Flags().Bool("no-hid", false, "build without cgo, dropping the MCP2221 backend")
	return cmd
}
