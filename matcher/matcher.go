// Package matcher selects the best published release for a version request.
//
// A release qualifies when its versions satisfy the request and it ships an
// archive for the host platform and requested architecture. Qualifying
// releases are ranked newest first, by runtime version and then by language
// version, using semver precedence.
package matcher

import (
	"sort"

	"github.com/willibrandon/pytoolchain/manifest"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/version"
)

// Match is a selected release and the archive to install.
type Match struct {
	Release manifest.Release
	Asset   manifest.Asset
}

// Matcher matches releases against requests for one platform.
type Matcher struct {
	platform platform.Platform
}

// New creates a matcher for p.
func New(p platform.Platform) *Matcher {
	return &Matcher{platform: p}
}

// Match returns the highest ranked qualifying release.
func (m *Matcher) Match(releases []manifest.Release, spec *version.Spec, arch string, includePrerelease bool) (Match, bool) {
	ranked := m.Rank(releases, spec, arch, includePrerelease)
	if len(ranked) == 0 {
		return Match{}, false
	}
	return ranked[0], true
}

// Rank returns every qualifying release with its selected asset, best first.
func (m *Matcher) Rank(releases []manifest.Release, spec *version.Spec, arch string, includePrerelease bool) []Match {
	var matches []Match
	for _, r := range releases {
		if !m.satisfies(r, spec, includePrerelease) {
			continue
		}
		asset, ok := m.selectAsset(r, spec, arch)
		if !ok {
			continue
		}
		matches = append(matches, Match{Release: r, Asset: asset})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].Release, matches[j].Release
		if c := version.Compare(a.RuntimeVersion, b.RuntimeVersion); c != 0 {
			return c > 0
		}
		return version.Compare(a.LanguageVersion, b.LanguageVersion) > 0
	})

	return matches
}

func (m *Matcher) satisfies(r manifest.Release, spec *version.Spec, includePrerelease bool) bool {
	switch spec.Runtime {
	case version.CPython:
		return spec.LanguageRange.Satisfies(r.LanguageVersion, includePrerelease)

	case version.PyPy:
		// python_version is often just X.Y.
		language, ok := version.Coerce(r.LanguageVersion)
		if !ok || !spec.LanguageRange.SatisfiesVersion(language, false) {
			return false
		}
		return spec.RuntimeRange.Satisfies(r.RuntimeVersion, includePrerelease)

	case version.GraalPy:
		return spec.RuntimeRange.Satisfies(r.RuntimeVersion, includePrerelease)
	}
	return false
}

func (m *Matcher) selectAsset(r manifest.Release, spec *version.Spec, arch string) (manifest.Asset, bool) {
	switch spec.Runtime {
	case version.CPython:
		if spec.Freethreaded {
			arch = platform.FreethreadedArch(arch)
		}
		return findAsset(r.Assets, func(a manifest.Asset) bool {
			return m.platform.MatchesCPythonAsset(a.Platform, a.PlatformVersion, a.Arch, arch)
		})

	case version.PyPy:
		for _, assetArch := range m.platform.PyPyAssetArchs(arch) {
			asset, ok := findAsset(r.Assets, func(a manifest.Asset) bool {
				return a.Arch == assetArch && m.platform.MatchesPyPyPlatform(a.Platform)
			})
			if ok {
				return asset, true
			}
		}
		return manifest.Asset{}, false

	case version.GraalPy:
		return findAsset(r.Assets, func(a manifest.Asset) bool {
			return m.platform.MatchesGraalPyAsset(a.Name, arch)
		})
	}
	return manifest.Asset{}, false
}

func findAsset(assets []manifest.Asset, match func(manifest.Asset) bool) (manifest.Asset, bool) {
	for _, a := range assets {
		if match(a) {
			return a, true
		}
	}
	return manifest.Asset{}, false
}
