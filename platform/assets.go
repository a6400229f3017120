package platform

import (
	"regexp"

	"github.com/willibrandon/pytoolchain/version"
)

// graalPyAssetRegex matches GraalPy archive names and captures the platform
// and architecture tokens: graalpy-24.1.0-linux-amd64.tar.gz.
var graalPyAssetRegex = regexp.MustCompile(`.*(macos|linux|windows)-(amd64|aarch64)\.(tar\.gz|zip)$`)

// ParseGraalPyAsset extracts the platform and architecture tokens from a
// GraalPy archive name.
func ParseGraalPyAsset(name string) (platform, arch string, ok bool) {
	m := graalPyAssetRegex.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// MatchesGraalPyAsset reports whether a GraalPy archive runs on this
// platform with the given architecture.
func (p Platform) MatchesGraalPyAsset(name, arch string) bool {
	assetPlatform, assetArch, ok := ParseGraalPyAsset(name)
	if !ok {
		return false
	}
	return assetPlatform == p.GraalPyPlatform() && assetArch == GraalPyArch(arch)
}

// MatchesCPythonAsset reports whether a CPython manifest file entry runs on
// this platform with the given architecture. An asset platform version is
// a range the host OS version must satisfy; a host whose OS version is
// unknown only takes assets that pin none.
func (p Platform) MatchesCPythonAsset(assetPlatform, assetPlatformVersion, assetArch, arch string) bool {
	if assetPlatform != p.ManifestPlatform() || assetArch != arch {
		return false
	}
	if assetPlatformVersion == "" || assetPlatformVersion == p.OSVersion {
		return true
	}
	if p.OSVersion == "" {
		return false
	}
	r, err := version.ParseRange(assetPlatformVersion)
	if err != nil {
		return false
	}
	return r.Satisfies(p.OSVersion, false)
}
