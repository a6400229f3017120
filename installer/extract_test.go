package installer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOf(t *testing.T) {
	tests := []struct {
		name string
		want archiveFormat
		ext  string
	}{
		{"python-3.12.6-linux-22.04-x64.tar.gz", formatTarGz, ".tar.gz"},
		{"pypy3.10-v7.3.17-linux64.tar.bz2", formatTarBz2, ".tar.bz2"},
		{"PYPY3.10-V7.3.17-WIN64.ZIP", formatZip, ".zip"},
		{"graalpy.tgz", formatTarGz, ".tgz"},
		{"python-3.12.6-macos11.pkg", formatUnknown, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatOf(tt.name))
			assert.Equal(t, tt.ext, archiveExt(tt.name))
		})
	}
}

func TestSafeJoin(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out")

	tests := []struct {
		name    string
		wantErr bool
	}{
		{"bin/python", false},
		{"./lib/libpython.so", false},
		{"dir/../file", false},
		{"../evil", true},
		{"bin/../../evil", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := safeJoin(dest, tt.name)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtract_RejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.tar.gz")
	data := tarGz(t, []archiveFile{{name: "../evil", body: "x", mode: 0o644}})
	require.NoError(t, os.WriteFile(archive, data, 0o644))

	dest := filepath.Join(t.TempDir(), "out")
	err := extract(archive, formatTarGz, dest)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes")
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil"))
}

func TestExtract_Zip(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "graalpy.zip")
	data := zipArchive(t, []archiveFile{
		{name: "graalpy-24.1.0-windows-amd64/"},
		{name: "graalpy-24.1.0-windows-amd64/bin/graalpy.exe", body: "MZ", mode: 0o644},
	})
	require.NoError(t, os.WriteFile(archive, data, 0o644))

	dest := t.TempDir()
	require.NoError(t, extract(archive, formatZip, dest))

	root, err := rootDir(dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "graalpy-24.1.0-windows-amd64"), root)
	assert.FileExists(t, filepath.Join(root, "bin", "graalpy.exe"))
}

func TestRootDir_NoSingleRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.sh"), nil, 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "bin"), 0o755))

	got, err := rootDir(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}
