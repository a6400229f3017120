package resolver

import (
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/version"
)

// Config is fixed for the lifetime of a Resolver.
type Config struct {
	// ToolCacheRoot is the tool cache directory. See toolcache.DefaultRoot.
	ToolCacheRoot string

	Platform platform.Platform

	// Arch is used when a request names none. Empty means the host arch.
	Arch string
}

// Request is one version to resolve.
type Request struct {
	// Runtime selects the spec grammar. The zero value, CPython, is refined
	// by the spec prefix (pypy, graalpy).
	Runtime version.RuntimeKind

	Version string
	Arch    string

	// UpdateEnvironment asks for the Environment fragment in the result.
	UpdateEnvironment bool

	// CheckLatest consults the manifest before the cache, so a newer
	// release wins over an older cached one.
	CheckLatest bool

	// AllowPreReleases lets prereleases match when no stable release does.
	AllowPreReleases bool
}

// Installation is a resolved interpreter on disk.
type Installation struct {
	Runtime    version.RuntimeKind
	InstallDir string

	// LanguageVersion is the Python version. Empty for GraalPy.
	LanguageVersion string

	// RuntimeVersion is the PyPy or GraalPy release version. Empty for CPython.
	RuntimeVersion string

	Arch         string
	Freethreaded bool
}

// Result is the outcome of one resolution.
type Result struct {
	Installation

	// Environment is only computed when the request set UpdateEnvironment.
	Environment platform.Environment
}

// DisplayVersion returns the version users know the installation by:
// pypy<version> for PyPy, graalpy<version> for GraalPy.
func (i Installation) DisplayVersion() string {
	switch i.Runtime {
	case version.PyPy, version.GraalPy:
		return i.Runtime.Prefix() + i.RuntimeVersion
	default:
		return i.LanguageVersion
	}
}
