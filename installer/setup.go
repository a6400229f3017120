package installer

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/willibrandon/pytoolchain/platform"
)

// Setup scripts shipped at the root of CPython archives. They copy the
// interpreter into the tool cache named by RUNNER_TOOL_CACHE.
const (
	setupShell      = "setup.sh"
	setupPowerShell = "setup.ps1"
)

// SetupRunner runs the setup script found in dir with env appended to the
// process environment.
type SetupRunner func(ctx context.Context, dir string, env []string) error

// setupScript returns the script a CPython archive uses on p.
func setupScript(p platform.Platform) string {
	if p.IsWindows() {
		return setupPowerShell
	}
	return setupShell
}

// setupEnv returns the variables the setup script needs: the tool cache
// root and, on Linux, the bundled libpython on the library path.
func (i *Installer) setupEnv(dir string) []string {
	root := i.index.Root()
	env := []string{
		"RUNNER_TOOL_CACHE=" + root,
		"AGENT_TOOLSDIRECTORY=" + root,
	}
	if i.platform.OS == platform.Linux {
		libDir := filepath.Join(dir, "lib")
		if i.platform.LibraryPath != "" {
			libDir += ":" + i.platform.LibraryPath
		}
		env = append(env, "LD_LIBRARY_PATH="+libDir)
	}
	return env
}

// runShellSetup interprets setup.sh in-process. External commands the
// script calls still run as child processes.
func runShellSetup(ctx context.Context, dir string, env []string) error {
	script := filepath.Join(dir, setupShell)
	f, err := os.Open(script)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	prog, err := syntax.NewParser().Parse(f, setupShell)
	if err != nil {
		return fmt.Errorf("parse %s: %w", setupShell, err)
	}

	var output bytes.Buffer
	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(append(os.Environ(), env...)...)),
		interp.StdIO(nil, &output, &output),
	)
	if err != nil {
		return fmt.Errorf("create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		return fmt.Errorf("%s failed: %w: %s", setupShell, err, lastLines(output.String(), 20))
	}
	return nil
}

// runPowerShellSetup runs setup.ps1 with powershell.
func runPowerShellSetup(ctx context.Context, dir string, env []string) error {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", "./"+setupPowerShell)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), env...)

	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s failed: %w: %s", setupPowerShell, err, lastLines(string(out), 20))
	}
	return nil
}

func defaultSetupRunner(p platform.Platform) SetupRunner {
	if p.IsWindows() {
		return runPowerShellSetup
	}
	return runShellSetup
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
