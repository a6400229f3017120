package version

import (
	"errors"
	"fmt"
)

// ErrInvalidSpecFormat is matched by every spec grammar error.
var ErrInvalidSpecFormat = errors.New("invalid version spec format")

// Reasons reported by InvalidSpecFormatError.
const (
	ReasonEmpty           = "Version should not be empty."
	ReasonCPythonRange    = "Python version should satisfy SemVer notation, e.g. '3.13', '3.13.1', '3.13t' or '3.14-dev'."
	ReasonPyPyPrefix      = "PyPy version should be specified as 'pypy<python-version>' or 'pypy-<python-version>[-<pypy-version>]'."
	ReasonPyPyRange       = "Both Python version and PyPy version should satisfy SemVer notation or be 'nightly'."
	ReasonPyPyMajorMinor  = "Python version for PyPy should be specified in format 'x.y'."
	ReasonGraalPyPrefix   = "GraalPy version should be specified as 'graalpy<graalpy-version>' or 'graalpy-<graalpy-version>'."
	ReasonGraalPyRange    = "GraalPy version should satisfy SemVer notation."
	ReasonUnknownRuntime  = "Unknown runtime."
	ReasonInvalidResolved = "Resolved release version is not a valid version."
)

// InvalidSpecFormatError reports a version spec that does not follow the
// runtime's grammar. It is never retried.
type InvalidSpecFormatError struct {
	Runtime RuntimeKind
	Input   string
	Reason  string
}

// Error implements the error interface.
func (e *InvalidSpecFormatError) Error() string {
	return fmt.Sprintf("Invalid 'version' property %q for %s. %s", e.Input, e.Runtime, e.Reason)
}

// Unwrap returns ErrInvalidSpecFormat so callers can use errors.Is.
func (e *InvalidSpecFormatError) Unwrap() error {
	return ErrInvalidSpecFormat
}

func invalidSpec(kind RuntimeKind, input, reason string) error {
	return &InvalidSpecFormatError{Runtime: kind, Input: input, Reason: reason}
}
