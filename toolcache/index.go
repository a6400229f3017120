// Package toolcache indexes interpreters already extracted on this machine.
//
// The layout is shared with the hosted runner images:
//
//	<root>/<Name>/<version>/<arch>/           the installation
//	<root>/<Name>/<version>/<arch>.complete   written last, marks it usable
//
// Name is Python, PyPy or GraalPy. PyPy and CPython installs are filed under
// the Python language version; GraalPy under its own release version. A PyPy
// install records its PyPy release version in a PYPY_VERSION file.
package toolcache

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/version"
)

// CompleteSuffix is appended to the arch directory name to form the
// completion marker.
const CompleteSuffix = ".complete"

// Entry is one installed interpreter.
type Entry struct {
	Name    string
	Version string
	Arch    string
	Path    string
}

// Lookup is the outcome of a cache probe: Found with a path, or NotFound.
type Lookup struct {
	found bool

	Path string

	// Versions re-derived from the installation. RuntimeVersion is empty
	// for CPython.
	LanguageVersion string
	RuntimeVersion  string
}

// NotFound is the empty lookup.
var NotFound = Lookup{}

// Found returns a lookup for path.
func Found(path string) Lookup {
	return Lookup{found: true, Path: path}
}

// IsFound reports whether the probe found an installation.
func (l Lookup) IsFound() bool {
	return l.found
}

// Index reads and writes one tool cache root.
type Index struct {
	root     string
	platform platform.Platform
	logger   observability.Logger
}

// NewIndex creates an index over root. A nil logger discards output.
func NewIndex(root string, p platform.Platform, logger observability.Logger) *Index {
	return &Index{root: root, platform: p, logger: observability.OrNull(logger)}
}

// Root returns the cache root directory.
func (ix *Index) Root() string {
	return ix.root
}

func (ix *Index) installPath(name, v, arch string) string {
	return filepath.Join(ix.root, name, v, arch)
}

// isComplete reports whether the install dir and its marker both exist.
func isComplete(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(path + CompleteSuffix)
	return err == nil
}

// Find returns the best installation of name satisfying versionSpec.
// An explicit version is checked directly; a range picks the highest
// satisfying installed version. An invalid range finds nothing.
func (ix *Index) Find(name, versionSpec, arch string, includePrerelease bool) Lookup {
	r, err := version.ParseRange(versionSpec)
	if err != nil {
		return NotFound
	}
	return ix.FindRange(name, r, arch, includePrerelease)
}

// FindRange is Find with a parsed range.
func (ix *Index) FindRange(name string, r *version.Range, arch string, includePrerelease bool) Lookup {
	if arch == "" {
		arch = platform.DefaultArch()
	}

	if exact, ok := r.Exact(); ok {
		path := ix.installPath(name, exact, arch)
		if isComplete(path) {
			return Found(path)
		}
		return NotFound
	}

	best, ok := r.FindBestMatch(ix.FindAll(name, arch), includePrerelease)
	if !ok {
		return NotFound
	}
	return Found(ix.installPath(name, best, arch))
}

// FindAll returns the complete installed versions of name for arch,
// highest first.
func (ix *Index) FindAll(name, arch string) []string {
	var versions []string
	for _, e := range ix.Entries(name) {
		if e.Arch == arch {
			versions = append(versions, e.Version)
		}
	}
	return versions
}

// Entries returns every complete installation of name, highest version
// first. Directories that are not explicit versions are ignored.
func (ix *Index) Entries(name string) []Entry {
	toolDir := filepath.Join(ix.root, name)
	versionDirs, err := os.ReadDir(toolDir)
	if err != nil {
		return nil
	}

	var entries []Entry
	for _, vd := range versionDirs {
		if !vd.IsDir() || !version.IsExact(vd.Name()) {
			continue
		}

		archDirs, err := os.ReadDir(filepath.Join(toolDir, vd.Name()))
		if err != nil {
			continue
		}
		for _, ad := range archDirs {
			if !ad.IsDir() {
				continue
			}
			path := filepath.Join(toolDir, vd.Name(), ad.Name())
			if isComplete(path) {
				entries = append(entries, Entry{Name: name, Version: vd.Name(), Arch: ad.Name(), Path: path})
			}
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if c := version.Compare(entries[i].Version, entries[j].Version); c != 0 {
			return c > 0
		}
		return entries[i].Arch < entries[j].Arch
	})
	return entries
}

// VersionFromPath returns the version component of an install path
// <root>/<Name>/<version>/<arch>.
func VersionFromPath(installDir string) string {
	return filepath.Base(filepath.Dir(filepath.Clean(installDir)))
}
