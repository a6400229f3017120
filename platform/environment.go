package platform

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/willibrandon/pytoolchain/version"
)

// Environment is what a caller must publish to use an installation:
// directories to prepend to PATH and variables to export. Computing it has
// no side effects.
type Environment struct {
	Paths     []string
	Variables map[string]string
}

// UserScriptsDir returns the Windows per-user scripts directory for a
// CPython language version, %APPDATA%\Python\PythonXY[t]\Scripts.
// Other platforms let pip manage the user directory and get false.
func (p Platform) UserScriptsDir(languageVersion string, freethreaded bool) (string, bool) {
	if !p.IsWindows() {
		return "", false
	}

	v, ok := version.Coerce(languageVersion)
	if !ok {
		return "", false
	}

	dir := fmt.Sprintf("Python%d%d", v.Major(), v.Minor())
	if freethreaded {
		dir += "t"
	}
	return filepath.Join(p.AppData, "Python", dir, "Scripts"), true
}

// Environment computes the PATH entries and variables for an installation.
func (p Platform) Environment(kind version.RuntimeKind, installDir, languageVersion string, freethreaded bool) Environment {
	env := Environment{
		Variables: map[string]string{
			"pythonLocation":   installDir,
			"Python_ROOT_DIR":  installDir,
			"Python2_ROOT_DIR": installDir,
			"Python3_ROOT_DIR": installDir,
			"PKG_CONFIG_PATH":  filepath.Join(installDir, "lib", "pkgconfig"),
		},
	}

	switch kind {
	case version.CPython:
		env.Paths = append(env.Paths, installDir, p.ScriptsDir(installDir))
		if dir, ok := p.UserScriptsDir(languageVersion, freethreaded); ok {
			env.Paths = append(env.Paths, dir)
		}
		if p.OS == Linux {
			env.Variables["LD_LIBRARY_PATH"] = p.libraryPath(filepath.Join(installDir, "lib"))
		}
	default:
		// PyPy and GraalPy keep pip in Scripts on Windows even though the
		// interpreter sits in the install root.
		env.Paths = append(env.Paths, p.BinaryDir(installDir), p.ScriptsDir(installDir))
	}

	return env
}

// libraryPath prepends libDir to the inherited LD_LIBRARY_PATH unless it is
// already listed.
func (p Platform) libraryPath(libDir string) string {
	if p.LibraryPath == "" {
		return libDir
	}
	for _, entry := range strings.Split(p.LibraryPath, ":") {
		if entry == libDir {
			return p.LibraryPath
		}
	}
	return libDir + ":" + p.LibraryPath
}

// PythonExecutable returns the interpreter path inside an installation.
func (p Platform) PythonExecutable(kind version.RuntimeKind, installDir string) string {
	if kind == version.CPython {
		if p.IsWindows() {
			return filepath.Join(installDir, "python.exe")
		}
		return filepath.Join(installDir, "bin", "python")
	}
	return filepath.Join(p.BinaryDir(installDir), p.ExecutableName("python"))
}
