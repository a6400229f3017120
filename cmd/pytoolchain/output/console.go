package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Verbosity levels
type Verbosity int

const (
	// VerbosityQuiet shows errors only
	VerbosityQuiet Verbosity = iota
	// VerbosityNormal shows results and warnings (default)
	VerbosityNormal
	// VerbosityDetailed adds environment and lookup details
	VerbosityDetailed
	// VerbosityDiagnostic adds debug output
	VerbosityDiagnostic
)

var verbosityNames = map[string]Verbosity{
	"q":          VerbosityQuiet,
	"quiet":      VerbosityQuiet,
	"n":          VerbosityNormal,
	"normal":     VerbosityNormal,
	"d":          VerbosityDetailed,
	"detailed":   VerbosityDetailed,
	"diag":       VerbosityDiagnostic,
	"diagnostic": VerbosityDiagnostic,
}

// ParseVerbosity parses a verbosity name or its short form (q, n, d, diag).
func ParseVerbosity(s string) (Verbosity, error) {
	v, ok := verbosityNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return VerbosityNormal, fmt.Errorf("unknown verbosity %q", s)
	}
	return v, nil
}

// Console writes command output. It is safe for concurrent use.
type Console struct {
	out       io.Writer
	err       io.Writer
	verbosity Verbosity
	mu        sync.Mutex
	colors    bool
}

// NewConsole creates a new console
func NewConsole(out, err io.Writer, verbosity Verbosity) *Console {
	c := &Console{
		out:       out,
		err:       err,
		verbosity: verbosity,
		colors:    IsColorEnabled(),
	}

	if !c.colors {
		DisableColors()
	}

	return c
}

// DefaultConsole creates a console with stdout/stderr and normal verbosity
func DefaultConsole() *Console {
	return NewConsole(os.Stdout, os.Stderr, VerbosityNormal)
}

// SetVerbosity sets the verbosity level
func (c *Console) SetVerbosity(v Verbosity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verbosity = v
}

// GetVerbosity returns the current verbosity level
func (c *Console) GetVerbosity() Verbosity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verbosity
}

// SetColors enables or disables color output
func (c *Console) SetColors(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.colors = enabled
	if enabled {
		EnableColors()
	} else {
		DisableColors()
	}
}

// Err returns the error stream. Log output goes here.
func (c *Console) Err() io.Writer {
	return c.err
}

// Println writes line to output
func (c *Console) Println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintln(c.out, a...)
}

// Printf writes formatted output
func (c *Console) Printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, a...)
}

// Header writes a bold line.
func (c *Console) Header(format string, a ...any) {
	if c.GetVerbosity() < VerbosityNormal {
		return
	}
	c.write(c.out, ColorHeader, format, a...)
}

// Success writes a green line.
func (c *Console) Success(format string, a ...any) {
	if c.GetVerbosity() < VerbosityNormal {
		return
	}
	c.write(c.out, ColorSuccess, format, a...)
}

// Error writes a red line to the error stream at every verbosity.
func (c *Console) Error(format string, a ...any) {
	c.write(c.err, ColorError, "Error: "+format, a...)
}

// Warning writes a yellow line to the error stream.
func (c *Console) Warning(format string, a ...any) {
	if c.GetVerbosity() < VerbosityNormal {
		return
	}
	c.write(c.err, ColorWarning, "Warning: "+format, a...)
}

// Info writes a cyan line.
func (c *Console) Info(format string, a ...any) {
	if c.GetVerbosity() < VerbosityNormal {
		return
	}
	c.write(c.out, ColorInfo, format, a...)
}

// Detail writes an uncolored line at detailed verbosity.
func (c *Console) Detail(format string, a ...any) {
	if c.GetVerbosity() < VerbosityDetailed {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format+"\n", a...)
}

// Debug writes a line at diagnostic verbosity.
func (c *Console) Debug(format string, a ...any) {
	if c.GetVerbosity() < VerbosityDiagnostic {
		return
	}
	c.write(c.out, ColorDebug, "[DEBUG] "+format, a...)
}

func (c *Console) write(w io.Writer, col *color.Color, format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.colors {
		_, _ = col.Fprintf(w, format+"\n", a...)
		return
	}
	_, _ = fmt.Fprintf(w, format+"\n", a...)
}
