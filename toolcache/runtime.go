package toolcache

import (
	"context"

	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/version"
)

// FindSpec probes the cache for spec and re-derives the resolved versions
// from what is on disk. For PyPy and GraalPy the second version axis is
// re-validated; an install that does not satisfy it is reported as
// NotFound, never as an error.
func (ix *Index) FindSpec(ctx context.Context, spec *version.Spec, arch string, includePrerelease bool) Lookup {
	tool := spec.Runtime.ToolName()
	ctx, span := observability.StartToolCacheLookupSpan(ctx, tool, spec.String(), arch)
	defer span.End()

	var lookup Lookup
	var result string
	switch spec.Runtime {
	case version.CPython:
		lookup, result = ix.findCPython(spec, arch, includePrerelease)
	case version.PyPy:
		lookup, result = ix.findPyPy(spec, arch, includePrerelease)
	case version.GraalPy:
		lookup, result = ix.findGraalPy(spec, arch, includePrerelease)
	default:
		lookup, result = NotFound, "miss"
	}

	observability.ToolCacheLookupsTotal.WithLabelValues(tool, result).Inc()
	observability.RecordCacheHit(ctx, lookup.IsFound())

	if lookup.IsFound() {
		ix.logger.DebugContext(ctx, "Found {Tool} {Version} in tool cache at {Path}", tool, lookup.primaryVersion(), lookup.Path)
	} else {
		ix.logger.InfoContext(ctx, "{Tool} version {Spec} was not found in the local cache", tool, spec.String())
	}
	return lookup
}

func (l Lookup) primaryVersion() string {
	if l.LanguageVersion != "" {
		return l.LanguageVersion
	}
	return l.RuntimeVersion
}

func (ix *Index) findCPython(spec *version.Spec, arch string, includePrerelease bool) (Lookup, string) {
	if spec.Freethreaded {
		arch = platform.FreethreadedArch(arch)
	}

	lookup := ix.FindRange(spec.Runtime.ToolName(), spec.LanguageRange, arch, includePrerelease)
	if !lookup.IsFound() {
		return NotFound, "miss"
	}
	lookup.LanguageVersion = VersionFromPath(lookup.Path)
	return lookup, "hit"
}

// findPyPy probes the installs filed under the requested Python version
// and checks the recorded PyPy version against the request. On Windows
// both x86 and x64 installs are probed.
func (ix *Index) findPyPy(spec *version.Spec, arch string, includePrerelease bool) (Lookup, string) {
	lookup := NotFound
	for _, a := range ix.platform.PyPyCacheArchs(ix.platform.PyPyArch(arch)) {
		if lookup = ix.FindRange(spec.Runtime.ToolName(), spec.LanguageRange, a, includePrerelease); lookup.IsFound() {
			break
		}
	}
	if !lookup.IsFound() {
		return NotFound, "miss"
	}

	runtime := version.PyPyToSemantic(ReadPyPyVersion(lookup.Path))
	if runtime == "" || !spec.RuntimeRange.Satisfies(runtime, includePrerelease) {
		ix.logger.Debug("PyPy at {Path} is version {Installed}, which does not satisfy {Requested}",
			lookup.Path, runtime, spec.RuntimeRange.String())
		return NotFound, "mismatch"
	}

	lookup.LanguageVersion = VersionFromPath(lookup.Path)
	lookup.RuntimeVersion = runtime
	return lookup, "hit"
}

func (ix *Index) findGraalPy(spec *version.Spec, arch string, includePrerelease bool) (Lookup, string) {
	lookup := ix.FindRange(spec.Runtime.ToolName(), spec.RuntimeRange, arch, includePrerelease)
	if !lookup.IsFound() {
		return NotFound, "miss"
	}

	// The directory name is the only record of the release version.
	runtime := VersionFromPath(lookup.Path)
	if !spec.RuntimeRange.Satisfies(runtime, includePrerelease) {
		return NotFound, "mismatch"
	}

	lookup.RuntimeVersion = runtime
	return lookup, "hit"
}
