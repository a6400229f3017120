package version

import "strings"

// RuntimeKind identifies an interpreter runtime.
type RuntimeKind int

const (
	// CPython is the reference interpreter.
	CPython RuntimeKind = iota
	// PyPy versions its releases independently of the Python version it implements.
	PyPy
	// GraalPy is versioned by its own release tags.
	GraalPy
)

// String returns the display name of the runtime.
func (k RuntimeKind) String() string {
	switch k {
	case CPython:
		return "CPython"
	case PyPy:
		return "PyPy"
	case GraalPy:
		return "GraalPy"
	default:
		return "Unknown"
	}
}

// ToolName returns the directory name the runtime uses in the tool cache.
func (k RuntimeKind) ToolName() string {
	switch k {
	case CPython:
		return "Python"
	case PyPy:
		return "PyPy"
	case GraalPy:
		return "GraalPy"
	default:
		return ""
	}
}

// Prefix returns the spec prefix that selects the runtime.
func (k RuntimeKind) Prefix() string {
	switch k {
	case PyPy:
		return "pypy"
	case GraalPy:
		return "graalpy"
	default:
		return ""
	}
}

// DualAxis reports whether the runtime's own release version is independent
// of the language version.
func (k RuntimeKind) DualAxis() bool {
	return k == PyPy || k == GraalPy
}

// DetectRuntime selects the runtime from a raw version spec prefix.
func DetectRuntime(raw string) RuntimeKind {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "pypy"):
		return PyPy
	case strings.HasPrefix(raw, "graalpy"):
		return GraalPy
	default:
		return CPython
	}
}
