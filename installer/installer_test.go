package installer

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/manifest"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/toolcache"
	"github.com/willibrandon/pytoolchain/version"
)

var (
	linux   = platform.Platform{OS: platform.Linux}
	windows = platform.Platform{OS: platform.Windows}
)

type archiveFile struct {
	name string
	body string
	mode int64
	link string
}

func tarGz(t *testing.T, files []archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, f := range files {
		hdr := &tar.Header{Name: f.name, Mode: f.mode}
		switch {
		case f.link != "":
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = f.link
		case strings.HasSuffix(f.name, "/"):
			hdr.Typeflag = tar.TypeDir
		default:
			hdr.Typeflag = tar.TypeReg
			hdr.Size = int64(len(f.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(f.body))
			require.NoError(t, err)
		}
	}

	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func zipArchive(t *testing.T, files []archiveFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range files {
		hdr := &zip.FileHeader{Name: f.name, Method: zip.Deflate}
		if strings.HasSuffix(f.name, "/") {
			hdr.SetMode(os.ModeDir | 0o755)
		} else {
			hdr.SetMode(os.FileMode(f.mode))
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(f.body))
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// serve answers each path with its archive; unknown paths get 403.
func serve(t *testing.T, archives map[string][]byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := archives[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestInstaller(t *testing.T, p platform.Platform, opts ...Option) (*Installer, *toolcache.Index, string) {
	t.Helper()
	ix := toolcache.NewIndex(t.TempDir(), p, nil)
	tempDir := t.TempDir()
	client := toolhttp.NewClientWithOptions(toolhttp.WithMaxRetries(0))
	opts = append([]Option{WithTempDir(tempDir)}, opts...)
	return New(client, ix, p, opts...), ix, tempDir
}

var pypyFiles = []archiveFile{
	{name: "pypy3.10-v7.3.17-linux64/", mode: 0o755},
	{name: "pypy3.10-v7.3.17-linux64/bin/pypy3", body: "#!/bin/sh\n", mode: 0o755},
	{name: "pypy3.10-v7.3.17-linux64/bin/python", link: "pypy3", mode: 0o777},
}

func TestInstall_PyPy(t *testing.T) {
	server := serve(t, map[string][]byte{"/pypy.tar.gz": tarGz(t, pypyFiles)})
	inst, ix, _ := newTestInstaller(t, linux)

	release := manifest.Release{Runtime: version.PyPy, Tag: "7.3.17", LanguageVersion: "3.10.14", RuntimeVersion: "7.3.17"}
	asset := manifest.Asset{Name: "pypy3.10-v7.3.17-linux64.tar.gz", Arch: "x64", Platform: "linux", DownloadURL: server.URL + "/pypy.tar.gz"}

	dir, err := inst.Install(context.Background(), release, asset, "x64")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ix.Root(), "PyPy", "3.10.14", "x64"), dir)
	assert.Equal(t, "7.3.17", toolcache.ReadPyPyVersion(dir))
	assert.FileExists(t, dir+toolcache.CompleteSuffix)

	link, err := os.Readlink(filepath.Join(dir, "bin", "python"))
	require.NoError(t, err)
	assert.Equal(t, "pypy3", link)

	spec, err := version.ParseSpec("pypy3.10-v7.3.x", version.PyPy)
	require.NoError(t, err)
	lookup := ix.FindSpec(context.Background(), spec, "x64", false)
	require.True(t, lookup.IsFound())
	assert.Equal(t, "7.3.17", lookup.RuntimeVersion)
}

func TestInstall_PyPyNightlyNotCached(t *testing.T) {
	server := serve(t, map[string][]byte{"/nightly.tar.gz": tarGz(t, pypyFiles)})
	inst, ix, tempDir := newTestInstaller(t, linux)

	release := manifest.Release{Runtime: version.PyPy, Tag: "nightly", LanguageVersion: "3.10", RuntimeVersion: "nightly"}
	asset := manifest.Asset{Name: "pypy-c-jit-latest-linux64.tar.gz", Arch: "x64", Platform: "linux", DownloadURL: server.URL + "/nightly.tar.gz"}

	dir, err := inst.Install(context.Background(), release, asset, "x64")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dir, tempDir), "nightly stays in the temp dir, got %s", dir)
	assert.Equal(t, "nightly", toolcache.ReadPyPyVersion(dir))
	assert.Empty(t, ix.Entries("PyPy"))
}

func TestInstall_PyPyWindowsX86Fallback(t *testing.T) {
	files := []archiveFile{
		{name: "pypy3.9-v7.3.15-win32/python.exe", body: "MZ", mode: 0o644},
	}
	server := serve(t, map[string][]byte{"/pypy.zip": zipArchive(t, files)})
	inst, ix, _ := newTestInstaller(t, windows)

	release := manifest.Release{Runtime: version.PyPy, Tag: "7.3.15", LanguageVersion: "3.9.18", RuntimeVersion: "7.3.15"}
	asset := manifest.Asset{Name: "pypy3.9-v7.3.15-win32.zip", Arch: "x86", Platform: "win32", DownloadURL: server.URL + "/pypy.zip"}

	dir, err := inst.Install(context.Background(), release, asset, "x64")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ix.Root(), "PyPy", "3.9.18", "x86"), dir)
	assert.FileExists(t, filepath.Join(dir, "python.exe"))
}

func TestInstall_GraalPy(t *testing.T) {
	files := []archiveFile{
		{name: "graalpy-24.1.0-linux-amd64/bin/graalpy", body: "#!/bin/sh\n", mode: 0o755},
	}
	server := serve(t, map[string][]byte{"/graalpy.tar.gz": tarGz(t, files)})
	inst, ix, _ := newTestInstaller(t, linux)

	release := manifest.Release{Runtime: version.GraalPy, Tag: "graal-24.1.0", RuntimeVersion: "24.1.0", Stable: true}
	asset := manifest.Asset{Name: "graalpy-24.1.0-linux-amd64.tar.gz", Arch: "amd64", Platform: "linux", DownloadURL: server.URL + "/graalpy.tar.gz"}

	dir, err := inst.Install(context.Background(), release, asset, "x64")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ix.Root(), "GraalPy", "24.1.0", "x64"), dir)

	info, err := os.Stat(filepath.Join(dir, "bin", "graalpy"))
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	}
}

func TestInstall_CPythonWithoutScript(t *testing.T) {
	files := []archiveFile{
		{name: "bin/python3.13t", body: "#!/bin/sh\n", mode: 0o755},
		{name: "lib/libpython3.13t.so", body: "ELF", mode: 0o644},
	}
	server := serve(t, map[string][]byte{"/python.tar.gz": tarGz(t, files)})
	inst, ix, _ := newTestInstaller(t, linux)

	release := manifest.Release{Runtime: version.CPython, Tag: "3.13.2", LanguageVersion: "3.13.2", Stable: true}
	asset := manifest.Asset{Name: "python-3.13.2-linux-22.04-x64-freethreaded.tar.gz", Arch: "x64-freethreaded", Platform: "linux", DownloadURL: server.URL + "/python.tar.gz"}

	dir, err := inst.Install(context.Background(), release, asset, "x64")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ix.Root(), "Python", "3.13.2", "x64-freethreaded"), dir)
	assert.FileExists(t, filepath.Join(dir, "lib", "libpython3.13t.so"))
}

func TestInstall_CPythonSetupScript(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("setup.sh is not used on Windows")
	}

	script := `set -e
dest="$RUNNER_TOOL_CACHE/Python/3.12.6/x64"
mkdir -p "$dest"
cp -R bin "$dest/"
echo "$LD_LIBRARY_PATH" > "$dest/ld_library_path"
touch "$dest.complete"
`
	files := []archiveFile{
		{name: "setup.sh", body: script, mode: 0o755},
		{name: "bin/python3", body: "#!/bin/sh\n", mode: 0o755},
	}
	server := serve(t, map[string][]byte{"/python.tar.gz": tarGz(t, files)})
	inst, ix, _ := newTestInstaller(t, linux)

	release := manifest.Release{Runtime: version.CPython, Tag: "3.12.6", LanguageVersion: "3.12.6", Stable: true}
	asset := manifest.Asset{Name: "python-3.12.6-linux-22.04-x64.tar.gz", Arch: "x64", Platform: "linux", DownloadURL: server.URL + "/python.tar.gz"}

	dir, err := inst.Install(context.Background(), release, asset, "x64")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ix.Root(), "Python", "3.12.6", "x64"), dir)
	assert.FileExists(t, filepath.Join(dir, "bin", "python3"))

	libPath, err := os.ReadFile(filepath.Join(dir, "ld_library_path"))
	require.NoError(t, err)
	assert.Equal(t, "lib", filepath.Base(strings.TrimSpace(string(libPath))))
}

func TestInstall_CPythonSetupFailures(t *testing.T) {
	files := []archiveFile{{name: "setup.sh", body: "exit 0\n", mode: 0o755}}
	server := serve(t, map[string][]byte{"/python.tar.gz": tarGz(t, files)})

	release := manifest.Release{Runtime: version.CPython, Tag: "3.12.6", LanguageVersion: "3.12.6", Stable: true}
	asset := manifest.Asset{Name: "python-3.12.6-linux-22.04-x64.tar.gz", Arch: "x64", Platform: "linux", DownloadURL: server.URL + "/python.tar.gz"}

	tests := []struct {
		name    string
		runner  SetupRunner
		wantErr string
	}{
		{
			name:    "script fails",
			runner:  func(ctx context.Context, dir string, env []string) error { return errors.New("exit status 1") },
			wantErr: "exit status 1",
		},
		{
			name:    "script installs nothing",
			runner:  func(ctx context.Context, dir string, env []string) error { return nil },
			wantErr: "did not install Python 3.12.6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotEnv []string
			runner := func(ctx context.Context, dir string, env []string) error {
				gotEnv = env
				return tt.runner(ctx, dir, env)
			}
			inst, ix, _ := newTestInstaller(t, linux, WithSetupRunner(runner))

			_, err := inst.Install(context.Background(), release, asset, "x64")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInstallFailed)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, gotEnv, "RUNNER_TOOL_CACHE="+ix.Root())
		})
	}
}

func TestInstall_RateLimited(t *testing.T) {
	server := serve(t, nil)
	inst, _, _ := newTestInstaller(t, linux)

	before, _ := observability.GetCounterValue(observability.InstallsTotal, "PyPy", "rate_limited")

	release := manifest.Release{Runtime: version.PyPy, Tag: "7.3.17", LanguageVersion: "3.10.14", RuntimeVersion: "7.3.17"}
	asset := manifest.Asset{Name: "pypy3.10-v7.3.17-linux64.tar.bz2", Arch: "x64", Platform: "linux", DownloadURL: server.URL + "/missing.tar.bz2"}

	_, err := inst.Install(context.Background(), release, asset, "x64")
	require.Error(t, err)

	var installErr *InstallError
	require.ErrorAs(t, err, &installErr)
	assert.True(t, installErr.IsRateLimited())
	assert.Equal(t, http.StatusForbidden, installErr.StatusCode())
	assert.Equal(t, version.PyPy, installErr.Runtime)

	after, _ := observability.GetCounterValue(observability.InstallsTotal, "PyPy", "rate_limited")
	assert.Equal(t, before+1, after)
}

func TestInstall_UnsupportedFormat(t *testing.T) {
	inst, _, _ := newTestInstaller(t, linux)

	release := manifest.Release{Runtime: version.CPython, Tag: "3.12.6", LanguageVersion: "3.12.6"}
	asset := manifest.Asset{Name: "python-3.12.6-macos11.pkg", DownloadURL: "http://127.0.0.1/python.pkg"}

	_, err := inst.Install(context.Background(), release, asset, "x64")
	require.ErrorIs(t, err, ErrInstallFailed)
	assert.Contains(t, err.Error(), "unsupported archive format")
}
