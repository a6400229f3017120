// Package cli holds the root command and the flags shared by every
// subcommand.
package cli

import (
	"github.com/spf13/cobra"
	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/output"
	"github.com/willibrandon/pytoolchain/observability"
)

var rootCmd = NewRootCommand()

// Console is the global console for CLI commands
var Console *output.Console

// NewRootCommand creates the root command with the shared persistent flags.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pytoolchain",
		Short: "Python interpreter installer for CPython, PyPy and GraalPy",
		Long: `pytoolchain resolves Python version requests against a tool cache and
installs missing CPython, PyPy and GraalPy interpreters from their release
manifests.

Settings come from flags, PYTOOLCHAIN_* environment variables and an
optional pytoolchain.yaml or pytoolchain.toml file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return applyVerbosity(cmd)
		},
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("config", "", "Configuration file (pytoolchain.yaml or pytoolchain.toml)")
	flags.String("verbosity", "normal", "Display verbosity: q[uiet], n[ormal], d[etailed] or diag[nostic]")
	flags.String("log-level", "warn", "Log level: verbose, debug, info, warn or error")
	flags.String("tool-cache", "", "Tool cache directory (default from AGENT_TOOLSDIRECTORY or RUNNER_TOOL_CACHE)")
	flags.String("arch", "", "Target architecture (default: host architecture)")
	flags.String("token", "", "GitHub token for manifest and release downloads")
	flags.String("trace-exporter", observability.ExporterNone, "Trace exporter: none, stdout or otlp")
	flags.String("otlp-endpoint", "", "OTLP gRPC collector address")
	flags.String("metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.String("manifest-cache-dir", "", "Directory for cached release manifests")
	flags.Bool("no-manifest-cache", false, "Always fetch release manifests")
	flags.Bool("http3", false, "Try HTTP/3 before HTTP/2 for https requests")

	return cmd
}

func applyVerbosity(cmd *cobra.Command) error {
	name, err := cmd.Flags().GetString("verbosity")
	if err != nil {
		return nil
	}
	v, err := output.ParseVerbosity(name)
	if err != nil {
		return err
	}
	Console.SetVerbosity(v)
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	Console = output.DefaultConsole()
}

// SetupVersion configures version information after variables are set
func SetupVersion() {
	rootCmd.SetVersionTemplate(GetFullVersion() + "\n")
	rootCmd.Version = GetVersion()
}

// AddCommand adds a command to the root command
func AddCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}
