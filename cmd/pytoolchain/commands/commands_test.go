package commands

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/cli"
	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/output"
	"github.com/willibrandon/pytoolchain/resolver"
	"github.com/willibrandon/pytoolchain/toolcache"
)

type harness struct {
	root      string
	out       bytes.Buffer
	errOut    bytes.Buffer
	console   *output.Console
	manifests *httptest.Server
	fetches   atomic.Int32
}

// newHarness points every command at a temporary tool cache and a manifest
// server that lists no releases.
func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Chdir(t.TempDir())

	h := &harness{root: t.TempDir()}
	h.console = output.NewConsole(&h.out, &h.errOut, output.VerbosityNormal)
	h.console.SetColors(false)

	h.manifests = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.fetches.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(h.manifests.Close)

	t.Setenv("PYTOOLCHAIN_CPYTHON_MANIFEST_URL", h.manifests.URL)
	t.Setenv("PYTOOLCHAIN_PYPY_MANIFEST_URL", h.manifests.URL)
	t.Setenv("PYTOOLCHAIN_GRAALPY_MANIFEST_URL", h.manifests.URL)
	return h
}

func (h *harness) seed(t *testing.T, name, v, arch string) string {
	t.Helper()
	dir := filepath.Join(h.root, name, v, arch)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(dir+toolcache.CompleteSuffix, nil, 0o644))
	return dir
}

func (h *harness) run(cmd *cobra.Command, args ...string) error {
	root := cli.NewRootCommand()
	root.AddCommand(cmd)
	root.SetArgs(append([]string{
		cmd.Name(),
		"--tool-cache", h.root,
		"--arch", "x64",
		"--no-manifest-cache",
	}, args...))
	return root.Execute()
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)

	cmd := NewVersionCommand(console)
	cmd.SetArgs(nil)
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "pytoolchain version")

	cmd.SetArgs([]string{"extra"})
	assert.Error(t, cmd.Execute())
}

func TestSetup_CacheHit(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.11.9", "x64")
	dir := h.seed(t, "Python", "3.12.6", "x64")

	require.NoError(t, h.run(NewSetupCommand(h.console), "3.12"))

	out := h.out.String()
	assert.Contains(t, out, "Successfully set up CPython (3.12.6)")
	assert.Contains(t, out, "python-version: 3.12.6")
	assert.Contains(t, out, "python-path: ")
	assert.NotContains(t, out, "environment:")
	assert.Contains(t, out, "python-path: "+dir)
	assert.NotContains(t, out, "3.11.9")
	assert.Zero(t, h.fetches.Load(), "a cache hit does not read the manifest")
}

func TestSetup_UpdateEnvironment(t *testing.T) {
	h := newHarness(t)
	dir := h.seed(t, "Python", "3.12.6", "x64")

	require.NoError(t, h.run(NewSetupCommand(h.console), "--update-environment", "3.12.6"))

	out := h.out.String()
	assert.Contains(t, out, "environment:")
	assert.Contains(t, out, "PATH+="+dir)
	assert.Contains(t, out, "pythonLocation="+dir)
}

func TestSetup_PyPyFromVersionFile(t *testing.T) {
	h := newHarness(t)
	dir := h.seed(t, "PyPy", "3.10.14", "x64")
	require.NoError(t, toolcache.WritePyPyVersion(dir, "7.3.17"))
	require.NoError(t, os.WriteFile(".python-version", []byte("pypy3.10\n"), 0o644))

	require.NoError(t, h.run(NewSetupCommand(h.console)))

	out := h.out.String()
	assert.Contains(t, out, "Successfully set up PyPy 7.3.17 with Python (3.10.14)")
	assert.Contains(t, out, "python-version: pypy7.3.17")
}

func TestSetup_NoVersionRequested(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run(NewSetupCommand(h.console)))
	assert.Contains(t, h.errOut.String(), ".python-version doesn't exist")
	assert.Contains(t, h.errOut.String(), "nothing to set up")
}

func TestSetup_ArgumentsWinOverVersionFile(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.12.6", "x64")
	require.NoError(t, os.WriteFile("pyproject.toml", []byte("[project]\nrequires-python = \">=3.13\"\n"), 0o644))

	require.NoError(t, h.run(NewSetupCommand(h.console), "--python-version-file", "pyproject.toml", "3.12"))
	assert.Contains(t, h.errOut.String(), "only the versions will be used")
	assert.Contains(t, h.out.String(), "3.12.6")
}

func TestSetup_NotFound(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.11.9", "x64")

	err := h.run(NewSetupCommand(h.console), "3.12")
	require.ErrorIs(t, err, resolver.ErrVersionNotFound)
	assert.Contains(t, err.Error(), "3.11.9 (x64)")
	assert.Equal(t, int32(1), h.fetches.Load())
}

func TestSetup_HTTP3ReachesPlainHTTPManifest(t *testing.T) {
	h := newHarness(t)

	err := h.run(NewSetupCommand(h.console), "--http3", "3.12")
	require.ErrorIs(t, err, resolver.ErrVersionNotFound)
	assert.Equal(t, int32(1), h.fetches.Load(), "http URLs skip QUIC and use the fallback transport")
}

func TestSetup_StopsAtFirstFailure(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.12.6", "x64")

	err := h.run(NewSetupCommand(h.console), "3.12", "3.9", "3.12.6")
	require.ErrorIs(t, err, resolver.ErrVersionNotFound)

	assert.Equal(t, 1, bytes.Count(h.out.Bytes(), []byte("Successfully set up")))
}

func TestSetup_InvalidSpec(t *testing.T) {
	h := newHarness(t)

	err := h.run(NewSetupCommand(h.console), "pypy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pypy")
	assert.Empty(t, h.out.String())
}

func TestSetup_MetricsFile(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.12.6", "x64")
	metrics := filepath.Join(t.TempDir(), "metrics.prom")

	require.NoError(t, h.run(NewSetupCommand(h.console), "--metrics-file", metrics, "3.12"))

	data, err := os.ReadFile(metrics)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pytoolchain_resolutions_total")
}

func TestFind(t *testing.T) {
	h := newHarness(t)
	dir := h.seed(t, "Python", "3.13.1", "x64")

	require.NoError(t, h.run(NewFindCommand(h.console), "3.13"))
	assert.Equal(t, dir+"\n", h.out.String())

	err := h.run(NewFindCommand(h.console), "3.14")
	assert.ErrorIs(t, err, ErrNotInToolCache)
}

func TestFind_NeverFetches(t *testing.T) {
	h := newHarness(t)

	err := h.run(NewFindCommand(h.console), "3.12")
	assert.ErrorIs(t, err, ErrNotInToolCache)
	assert.Zero(t, h.fetches.Load())
}

func TestList(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.12.6", "x64")
	h.seed(t, "Python", "3.13.1", "arm64")
	pypy := h.seed(t, "PyPy", "3.10.14", "x64")
	require.NoError(t, toolcache.WritePyPyVersion(pypy, "7.3.17"))

	require.NoError(t, h.run(NewListCommand(h.console)))

	out := h.out.String()
	assert.Contains(t, out, "Python\n")
	assert.Contains(t, out, "3.13.1")
	assert.Less(t, bytes.Index(h.out.Bytes(), []byte("3.13.1")), bytes.Index(h.out.Bytes(), []byte("3.12.6")))
	assert.Contains(t, out, "3.10.14 (PyPy 7.3.17)")
	assert.Contains(t, out, "GraalPy\n  (none)")
}

func TestList_OneRuntime(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "Python", "3.12.6", "x64")

	require.NoError(t, h.run(NewListCommand(h.console), "pypy"))
	assert.NotContains(t, h.out.String(), "3.12.6")

	err := h.run(NewListCommand(h.console), "jython")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown runtime")
}
