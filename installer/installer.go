// Package installer downloads interpreter archives and files them into the
// tool cache.
//
// PyPy and GraalPy archives are copied into the cache directly. CPython
// archives carry a setup script that performs the copy itself; archives
// without one are cached like the other runtimes. Nightly builds are left
// in the temp directory and never cached.
package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/manifest"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/toolcache"
	"github.com/willibrandon/pytoolchain/version"
)

// Installer installs releases into one tool cache.
type Installer struct {
	client   *toolhttp.Client
	index    *toolcache.Index
	platform platform.Platform
	tempDir  string
	setup    SetupRunner
	logger   observability.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithTempDir sets where archives are downloaded and extracted.
func WithTempDir(dir string) Option {
	return func(i *Installer) {
		i.tempDir = dir
	}
}

// WithSetupRunner replaces the runner for CPython setup scripts.
func WithSetupRunner(r SetupRunner) Option {
	return func(i *Installer) {
		i.setup = r
	}
}

// WithLogger sets the installer logger.
func WithLogger(logger observability.Logger) Option {
	return func(i *Installer) {
		i.logger = logger
	}
}

// New creates an installer writing into index.
func New(client *toolhttp.Client, index *toolcache.Index, p platform.Platform, opts ...Option) *Installer {
	i := &Installer{
		client:   client,
		index:    index,
		platform: p,
		tempDir:  os.TempDir(),
		setup:    defaultSetupRunner(p),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = observability.OrNull(i.logger)
	return i
}

// Install downloads asset and files it into the tool cache for arch,
// returning the install directory. Failures are *InstallError.
func (i *Installer) Install(ctx context.Context, release manifest.Release, asset manifest.Asset, arch string) (string, error) {
	runtime := release.Runtime.String()
	start := time.Now()

	ctx, span := observability.StartInstallSpan(ctx, runtime, release.LanguageVersion, release.RuntimeVersion, asset.DownloadURL)
	i.logger.InfoContext(ctx, "Downloading {Runtime} {Version} from {URL}", runtime, release.Tag, asset.DownloadURL)

	dir, err := i.install(ctx, release, asset, arch)
	observability.InstallDuration.WithLabelValues(runtime).Observe(time.Since(start).Seconds())

	if err != nil {
		installErr := &InstallError{Runtime: release.Runtime, Version: release.Tag, URL: asset.DownloadURL, Err: err}
		status := "failure"
		if installErr.IsRateLimited() {
			status = "rate_limited"
		}
		observability.InstallsTotal.WithLabelValues(runtime, status).Inc()
		observability.EndSpanWithError(span, installErr)
		return "", installErr
	}

	observability.InstallsTotal.WithLabelValues(runtime, "success").Inc()
	observability.EndSpanWithError(span, nil)
	i.logger.InfoContext(ctx, "Installed {Runtime} {Version} to {Path}", runtime, release.Tag, dir)
	return dir, nil
}

func (i *Installer) install(ctx context.Context, release manifest.Release, asset manifest.Asset, arch string) (string, error) {
	format := formatOf(asset.Name)
	if format == formatUnknown {
		format = formatOf(asset.DownloadURL)
	}
	if format == formatUnknown {
		return "", fmt.Errorf("unsupported archive format: %s", asset.Name)
	}

	if err := os.MkdirAll(i.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}

	archive, err := i.download(ctx, asset.DownloadURL, i.tempDir)
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(archive) }()
	observability.AddEvent(ctx, "downloaded", attribute.String("asset", asset.Name))

	extractDir := filepath.Join(i.tempDir, uuid.NewString())
	i.logger.DebugContext(ctx, "Extracting {Archive} to {Dir}", asset.Name, extractDir)
	if err := extract(archive, format, extractDir); err != nil {
		_ = os.RemoveAll(extractDir)
		return "", fmt.Errorf("extract %s: %w", asset.Name, err)
	}

	if release.IsNightly() {
		return i.installNightly(release, extractDir)
	}
	defer func() { _ = os.RemoveAll(extractDir) }()

	switch release.Runtime {
	case version.CPython:
		return i.installCPython(ctx, release, asset, extractDir)
	case version.PyPy:
		return i.installPyPy(ctx, release, asset, extractDir)
	case version.GraalPy:
		return i.installGraalPy(ctx, release, arch, extractDir)
	default:
		return "", fmt.Errorf("no installer for runtime %s", release.Runtime)
	}
}

// installNightly returns the extracted tree in place. Nightly builds
// change under the same version and would poison the cache.
func (i *Installer) installNightly(release manifest.Release, extractDir string) (string, error) {
	dir, err := rootDir(extractDir)
	if err != nil {
		return "", err
	}
	if release.Runtime == version.PyPy {
		if err := toolcache.WritePyPyVersion(dir, release.Tag); err != nil {
			return "", fmt.Errorf("write %s: %w", toolcache.PyPyVersionFile, err)
		}
	}
	return dir, nil
}

func (i *Installer) installCPython(ctx context.Context, release manifest.Release, asset manifest.Asset, extractDir string) (string, error) {
	name := version.CPython.ToolName()
	script := setupScript(i.platform)

	if _, err := os.Stat(filepath.Join(extractDir, script)); err != nil {
		dir, err := rootDir(extractDir)
		if err != nil {
			return "", err
		}
		return i.index.CacheDir(ctx, dir, name, release.LanguageVersion, asset.Arch)
	}

	i.logger.InfoContext(ctx, "Running {Script} for Python {Version}", script, release.LanguageVersion)
	err := i.index.WithInstallLock(ctx, name, release.LanguageVersion, asset.Arch, func() error {
		return i.setup(ctx, extractDir, i.setupEnv(extractDir))
	})
	if err != nil {
		return "", err
	}

	lookup := i.index.Find(name, release.LanguageVersion, asset.Arch, true)
	if !lookup.IsFound() {
		return "", fmt.Errorf("%s did not install Python %s (%s) into %s",
			script, release.LanguageVersion, asset.Arch, i.index.Root())
	}
	return lookup.Path, nil
}

// installPyPy files the tree under the Python version and records the PyPy
// version beside it. The asset arch is used so a Windows x86 build taken
// for an x64 request is filed as x86.
func (i *Installer) installPyPy(ctx context.Context, release manifest.Release, asset manifest.Asset, extractDir string) (string, error) {
	dir, err := rootDir(extractDir)
	if err != nil {
		return "", err
	}
	if err := toolcache.WritePyPyVersion(dir, release.Tag); err != nil {
		return "", fmt.Errorf("write %s: %w", toolcache.PyPyVersionFile, err)
	}
	return i.index.CacheDir(ctx, dir, version.PyPy.ToolName(), release.LanguageVersion, asset.Arch)
}

// installGraalPy files the tree under the GraalPy version. Asset arch
// tokens (amd64) differ from cache arch names, so the requested arch is used.
func (i *Installer) installGraalPy(ctx context.Context, release manifest.Release, arch, extractDir string) (string, error) {
	dir, err := rootDir(extractDir)
	if err != nil {
		return "", err
	}
	return i.index.CacheDir(ctx, dir, version.GraalPy.ToolName(), release.RuntimeVersion, arch)
}
