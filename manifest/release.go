// Package manifest lists the published releases of each interpreter runtime.
//
// Every runtime publishes its builds differently. CPython builds come from
// the actions/python-versions manifest, PyPy from downloads.python.org and
// GraalPy from the GitHub releases of oracle/graalpython. Decoders here map
// all three onto one Release/Asset model so the matcher can rank them the
// same way.
package manifest

import "github.com/willibrandon/pytoolchain/version"

// Release is one published version of a runtime.
type Release struct {
	Runtime version.RuntimeKind `json:"runtime"`

	// Tag is the version exactly as the listing spells it.
	Tag string `json:"tag"`

	// LanguageVersion is the Python language version. Empty for GraalPy,
	// whose listing does not carry it.
	LanguageVersion string `json:"languageVersion,omitempty"`

	// RuntimeVersion is the runtime's own semver version. Empty for CPython.
	RuntimeVersion string `json:"runtimeVersion,omitempty"`

	Stable bool    `json:"stable"`
	Assets []Asset `json:"assets"`
}

// Asset is one downloadable archive of a release.
type Asset struct {
	Name string `json:"name"`

	// Arch and Platform use the listing's own tokens: x64/win32 for CPython
	// and PyPy, amd64/linux for GraalPy.
	Arch     string `json:"arch"`
	Platform string `json:"platform"`

	// PlatformVersion is the OS release a CPython build targets (22.04).
	PlatformVersion string `json:"platformVersion,omitempty"`

	DownloadURL string `json:"downloadUrl"`
}

// IsNightly reports whether the release is a rolling build.
func (r Release) IsNightly() bool {
	return version.IsNightly(r.RuntimeVersion)
}

// PrimaryVersion returns the version the tool cache files the release
// under: the language version for CPython and PyPy, the runtime version
// for GraalPy.
func (r Release) PrimaryVersion() string {
	if r.Runtime == version.GraalPy {
		return r.RuntimeVersion
	}
	return r.LanguageVersion
}
