package toolcache

import (
	"os"
	"path/filepath"
	"strings"
)

// PyPyVersionFile holds the PyPy release version of an install.
const PyPyVersionFile = "PYPY_VERSION"

// ReadPyPyVersion returns the recorded PyPy version of installDir, or ""
// when the marker is missing.
func ReadPyPyVersion(installDir string) string {
	data, err := os.ReadFile(filepath.Join(installDir, PyPyVersionFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// WritePyPyVersion records v as the PyPy version of installDir.
func WritePyPyVersion(installDir, v string) error {
	return os.WriteFile(filepath.Join(installDir, PyPyVersionFile), []byte(v), 0o644)
}
