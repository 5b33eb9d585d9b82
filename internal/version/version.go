// Package version holds build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version is the release tag.
	Version = "dev"
	// Commit is the short git SHA.
	Commit = "none"
	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns the release tag only.
func Short() string {
	return Version
}

// Full returns the release tag with commit, build time and Go version.
func Full() string {
	return fmt.Sprintf("light-orchestra %s (commit %s, built %s, %s)", Version, Commit, BuildTime, runtime.Version())
}

// NewCommand returns the `version` subcommand.
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), Full())
		},
	}
}
