// Package platform captures the host OS and architecture quirks that affect
// interpreter selection and installation layout.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Operating systems as reported by runtime.GOOS.
const (
	Linux   = "linux"
	Darwin  = "darwin"
	Windows = "windows"
)

// windowsPyPyPlatforms are the platform values PyPy publishes for Windows builds.
var windowsPyPyPlatforms = []string{"win32", "win64"}

// windowsPyPyArchs is the probe order for cached PyPy installs on Windows.
var windowsPyPyArchs = []string{"x86", "x64"}

// Platform describes the machine interpreters are resolved for.
type Platform struct {
	// OS is a runtime.GOOS value.
	OS string

	// OSVersion is the distribution release (22.04 on Ubuntu). Empty when unknown.
	OSVersion string

	// AppData is %APPDATA% on Windows; used for the per-user scripts dir.
	AppData string

	// LibraryPath is the inherited LD_LIBRARY_PATH on Linux.
	LibraryPath string
}

// Current returns the Platform of the running process.
func Current() Platform {
	p := Platform{
		OS:      runtime.GOOS,
		AppData: os.Getenv("APPDATA"),
	}
	if p.OS == Linux {
		p.OSVersion = linuxOSVersion(osReleasePath)
		p.LibraryPath = os.Getenv("LD_LIBRARY_PATH")
	}
	return p
}

// IsWindows reports whether the platform is Windows.
func (p Platform) IsWindows() bool {
	return p.OS == Windows
}

// ManifestPlatform returns the platform name used by CPython and PyPy
// manifests: win32, darwin or linux.
func (p Platform) ManifestPlatform() string {
	if p.IsWindows() {
		return "win32"
	}
	return p.OS
}

// GraalPyPlatform returns the platform token used in GraalPy asset names.
func (p Platform) GraalPyPlatform() string {
	switch p.OS {
	case Windows:
		return "windows"
	case Darwin:
		return "macos"
	default:
		return p.OS
	}
}

// DefaultArch returns the architecture name of the running process.
func DefaultArch() string {
	return NormalizeArch(runtime.GOARCH)
}

// NormalizeArch maps Go architecture names to the names used by manifests
// and the tool cache. Unknown names are returned lower-cased.
func NormalizeArch(arch string) string {
	switch a := strings.ToLower(strings.TrimSpace(arch)); a {
	case "amd64", "x86_64":
		return "x64"
	case "386", "i386", "i686":
		return "x86"
	case "aarch64":
		return "arm64"
	default:
		return a
	}
}

// GraalPyArch maps an architecture to the token used in GraalPy asset names.
func GraalPyArch(arch string) string {
	switch arch {
	case "x64":
		return "amd64"
	case "arm64":
		return "aarch64"
	default:
		return arch
	}
}

// FreethreadedArch returns the arch key of a free-threaded CPython build.
func FreethreadedArch(arch string) string {
	return arch + "-freethreaded"
}

// PyPyArch remaps a PyPy request on Windows, where 32-bit hosts report x32
// and releases only publish x86.
func (p Platform) PyPyArch(arch string) string {
	if p.IsWindows() && arch == "x32" {
		return "x86"
	}
	return arch
}

// PyPyAssetArchs returns the asset architectures acceptable for a PyPy
// request, in preference order. On Windows a default x64 request also
// accepts the x86 build.
func (p Platform) PyPyAssetArchs(arch string) []string {
	arch = p.PyPyArch(arch)
	if p.IsWindows() && arch == "x64" {
		return []string{"x64", "x86"}
	}
	return []string{arch}
}

// PyPyCacheArchs returns the tool-cache architectures to probe for PyPy.
func (p Platform) PyPyCacheArchs(arch string) []string {
	if p.IsWindows() {
		return windowsPyPyArchs
	}
	return []string{arch}
}

// MatchesPyPyPlatform reports whether a PyPy asset platform runs here.
func (p Platform) MatchesPyPyPlatform(assetPlatform string) bool {
	if p.IsWindows() {
		for _, w := range windowsPyPyPlatforms {
			if assetPlatform == w {
				return true
			}
		}
		return false
	}
	return assetPlatform == p.OS
}

// ScriptsDir returns the directory CPython installs console scripts and pip into.
func (p Platform) ScriptsDir(installDir string) string {
	if p.IsWindows() {
		return filepath.Join(installDir, "Scripts")
	}
	return filepath.Join(installDir, "bin")
}

// BinaryDir returns the directory holding the PyPy or GraalPy interpreter:
// the install root on Windows, bin elsewhere.
func (p Platform) BinaryDir(installDir string) string {
	if p.IsWindows() {
		return installDir
	}
	return filepath.Join(installDir, "bin")
}

// ExecutableName returns name with the platform's executable suffix.
func (p Platform) ExecutableName(name string) string {
	if p.IsWindows() {
		return name + ".exe"
	}
	return name
}
