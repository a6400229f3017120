package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/output"
	"github.com/willibrandon/pytoolchain/toolcache"
	"github.com/willibrandon/pytoolchain/version"
)

var listRuntimes = []version.RuntimeKind{version.CPython, version.PyPy, version.GraalPy}

// NewListCommand creates the list command.
func NewListCommand(console *output.Console) *cobra.Command {
	return &cobra.Command{
		Use:   "list [cpython|pypy|graalpy]",
		Short: "List installed Python versions",
		Long: `Lists the complete installations in the tool cache, newest first,
optionally limited to one runtime.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"cpython", "pypy", "graalpy"},
		RunE: func(cmd *cobra.Command, args []string) error {
			kinds := listRuntimes
			if len(args) == 1 {
				kind, err := parseRuntime(args[0])
				if err != nil {
					return err
				}
				kinds = []version.RuntimeKind{kind}
			}

			return withApp(cmd, console, func(ctx context.Context, a *app) error {
				runList(console, a, kinds)
				return nil
			})
		},
	}
}

func parseRuntime(name string) (version.RuntimeKind, error) {
	for _, kind := range listRuntimes {
		if strings.EqualFold(name, kind.String()) || strings.EqualFold(name, kind.ToolName()) {
			return kind, nil
		}
	}
	return version.CPython, fmt.Errorf("unknown runtime %q (expected cpython, pypy or graalpy)", name)
}

func runList(console *output.Console, a *app, kinds []version.RuntimeKind) {
	index := a.resolver.Index()
	console.Detail("Tool cache: %s", index.Root())

	for _, kind := range kinds {
		entries := index.Entries(kind.ToolName())
		console.Header("%s", kind.ToolName())
		if len(entries) == 0 {
			console.Info("  (none)")
			continue
		}
		for _, e := range entries {
			label := e.Version
			if kind == version.PyPy {
				if v := toolcache.ReadPyPyVersion(e.Path); v != "" {
					label += " (PyPy " + v + ")"
				}
			}
			console.Printf("  %-28s %s\n", label, e.Arch)
			console.Detail("    %s", e.Path)
		}
	}
}
