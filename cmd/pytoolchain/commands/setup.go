package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/output"
	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/versionfile"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/resolver"
	"github.com/willibrandon/pytoolchain/version"
)

type setupOptions struct {
	versionFile       string
	checkLatest       bool
	allowPreReleases  bool
	updateEnvironment bool
}

// NewSetupCommand creates the setup command.
func NewSetupCommand(console *output.Console) *cobra.Command {
	opts := &setupOptions{}

	cmd := &cobra.Command{
		Use:   "setup [<VERSION>...]",
		Short: "Resolve and install Python versions",
		Long: `Resolves each version against the tool cache and installs it from the
release manifest when the cache has no match. Versions are resolved in
order; the first failure stops the run.

Without arguments the versions are read from --python-version-file, or from
.python-version in the working directory.

Examples:
  pytoolchain setup 3.12
  pytoolchain setup 3.13t pypy3.10 graalpy24.1
  pytoolchain setup --check-latest ">=3.9 <3.13"
  pytoolchain setup --python-version-file pyproject.toml --update-environment`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, console, func(ctx context.Context, a *app) error {
				return runSetup(ctx, console, a, args, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.versionFile, "python-version-file", "", "Read versions from a .python-version or pyproject.toml file")
	cmd.Flags().BoolVar(&opts.checkLatest, "check-latest", false, "Prefer the newest manifest release over an older cached one")
	cmd.Flags().BoolVar(&opts.allowPreReleases, "allow-prereleases", false, "Fall back to prereleases when no stable release matches")
	cmd.Flags().BoolVar(&opts.updateEnvironment, "update-environment", false, "Print the PATH entries and variables to export")

	return cmd
}

func runSetup(ctx context.Context, console *output.Console, a *app, args []string, opts *setupOptions) error {
	versions, err := requestedVersions(console, a.logger, args, opts.versionFile)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		console.Warning("No Python version requested; nothing to set up")
		return nil
	}

	reqs := make([]resolver.Request, 0, len(versions))
	for _, v := range versions {
		reqs = append(reqs, resolver.Request{
			Version:           v,
			UpdateEnvironment: opts.updateEnvironment,
			CheckLatest:       opts.checkLatest,
			AllowPreReleases:  opts.allowPreReleases,
		})
	}

	results, err := a.resolver.ResolveAll(ctx, reqs)
	for _, res := range results {
		printResult(console, a, res)
	}
	return err
}

// requestedVersions picks the version source: arguments, then the version
// file, then .python-version if it exists.
func requestedVersions(console *output.Console, logger observability.Logger, args []string, file string) ([]string, error) {
	if len(args) > 0 {
		if file != "" {
			console.Warning("Both versions and --python-version-file are specified, only the versions will be used")
		}
		return args, nil
	}

	if file != "" {
		return versionfile.Read(file, logger)
	}

	console.Detail("No versions given; looking for %s", versionfile.DefaultFile)
	versions, err := versionfile.Read(versionfile.DefaultFile, logger)
	if errors.Is(err, versionfile.ErrNotExist) {
		console.Warning("%s doesn't exist", versionfile.DefaultFile)
		return nil, nil
	}
	return versions, err
}

func printResult(console *output.Console, a *app, res *resolver.Result) {
	console.Success("%s", successMessage(res))
	console.Printf("  python-version: %s\n", res.DisplayVersion())
	console.Printf("  python-path: %s\n", a.platform.PythonExecutable(res.Runtime, res.InstallDir))
	console.Detail("  location: %s", res.InstallDir)

	if len(res.Environment.Paths) == 0 && len(res.Environment.Variables) == 0 {
		return
	}
	console.Printf("  environment:\n")
	for _, line := range environmentLines(res) {
		console.Printf("    %s\n", line)
	}
}

func successMessage(res *resolver.Result) string {
	switch res.Runtime {
	case version.PyPy:
		return fmt.Sprintf("Successfully set up PyPy %s with Python (%s)", res.RuntimeVersion, res.LanguageVersion)
	case version.GraalPy:
		return fmt.Sprintf("Successfully set up GraalPy %s", res.RuntimeVersion)
	default:
		return fmt.Sprintf("Successfully set up CPython (%s)", res.LanguageVersion)
	}
}

// environmentLines renders PATH additions in Environment order, then
// variables sorted by name.
func environmentLines(res *resolver.Result) []string {
	lines := make([]string, 0, len(res.Environment.Paths)+len(res.Environment.Variables))
	for _, p := range res.Environment.Paths {
		lines = append(lines, "PATH+="+p)
	}

	names := make([]string, 0, len(res.Environment.Variables))
	for name := range res.Environment.Variables {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		lines = append(lines, name+"="+res.Environment.Variables[name])
	}
	return lines
}
