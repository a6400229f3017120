package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/output"
	"github.com/willibrandon/pytoolchain/version"
)

// ErrNotInToolCache is returned by find when nothing installed matches.
var ErrNotInToolCache = errors.New("no matching installation in the tool cache")

// NewFindCommand creates the find command.
func NewFindCommand(console *output.Console) *cobra.Command {
	var allowPreReleases bool

	cmd := &cobra.Command{
		Use:   "find <VERSION>",
		Short: "Look up an installed Python version without downloading",
		Long: `Probes the tool cache for the best installation matching VERSION and
prints its location. Nothing is fetched or installed.

Examples:
  pytoolchain find 3.12
  pytoolchain find pypy3.10-v7.3.x
  pytoolchain find --arch arm64 graalpy24`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, console, func(ctx context.Context, a *app) error {
				return runFind(ctx, console, a, args[0], allowPreReleases)
			})
		},
	}

	cmd.Flags().BoolVar(&allowPreReleases, "allow-prereleases", false, "Let prerelease installations match")

	return cmd
}

func runFind(ctx context.Context, console *output.Console, a *app, raw string, allowPreReleases bool) error {
	spec, err := version.ParseSpec(raw, version.DetectRuntime(raw))
	if err != nil {
		return err
	}

	arch := a.resolver.Arch()

	lookup := a.resolver.Index().FindSpec(ctx, spec, arch, allowPreReleases)
	if !lookup.IsFound() {
		return fmt.Errorf("%w: %s %s (%s)", ErrNotInToolCache, spec.Runtime.ToolName(), spec.String(), arch)
	}

	console.Println(lookup.Path)
	console.Detail("  language version: %s", lookup.LanguageVersion)
	if lookup.RuntimeVersion != "" {
		console.Detail("  runtime version: %s", lookup.RuntimeVersion)
	}
	return nil
}
