package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/willibrandon/pytoolchain/cache"
	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/cli"
	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/config"
	"github.com/willibrandon/pytoolchain/cmd/pytoolchain/output"
	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/installer"
	"github.com/willibrandon/pytoolchain/manifest"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/resolver"
	"github.com/willibrandon/pytoolchain/toolcache"
	"github.com/willibrandon/pytoolchain/version"
)

// Memory tier bounds for cached manifests. Three runtimes fit easily.
const (
	manifestMemoryEntries = 8
	manifestMemoryBytes   = 128 << 20
)

// app is the resolver stack one command invocation runs against.
type app struct {
	settings *config.Settings
	platform platform.Platform
	logger   observability.Logger
	resolver *resolver.Resolver
	tracer   *sdktrace.TracerProvider
}

// newApp loads settings for cmd and wires the HTTP client, manifest
// fetcher, installer and resolver. Callers must Close the app.
func newApp(cmd *cobra.Command, console *output.Console) (*app, error) {
	settings, err := config.Load(cmd.Flags(), flagString(cmd, "config"), os.Getenv)
	if err != nil {
		return nil, err
	}

	level, err := observability.ParseLogLevel(settings.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := observability.NewLogger(console.Err(), level)
	if settings.ConfigFile != "" {
		logger.Debug("Using configuration {File}", settings.ConfigFile)
	}

	a := &app{settings: settings, platform: platform.Current(), logger: logger}

	if settings.TraceExporter != observability.ExporterNone {
		tc := observability.DefaultTracerConfig()
		tc.ServiceVersion = cli.GetVersion()
		tc.ExporterType = settings.TraceExporter
		tc.OTLPEndpoint = settings.OTLPEndpoint
		if a.tracer, err = observability.SetupTracing(cmd.Context(), tc); err != nil {
			return nil, fmt.Errorf("failed to set up tracing: %w", err)
		}
	}

	httpCfg := toolhttp.DefaultConfig()
	httpCfg.UserAgent = "pytoolchain/" + cli.GetVersion()
	httpCfg.Token = settings.Token
	httpCfg.Logger = logger
	httpCfg.EnableTracing = a.tracer != nil
	httpCfg.Transport.EnableHTTP3 = settings.HTTP3
	client := toolhttp.NewClient(httpCfg)

	index := toolcache.NewIndex(settings.ToolCache, a.platform, logger)
	inst := installer.New(client, index, a.platform, installer.WithLogger(logger))

	a.resolver = resolver.New(resolver.Config{
		ToolCacheRoot: settings.ToolCache,
		Platform:      a.platform,
		Arch:          settings.Arch,
	}, a.fetcher(client), inst, logger)

	return a, nil
}

// fetcher returns the HTTP manifest fetcher, behind the tiered manifest
// cache unless caching is disabled.
func (a *app) fetcher(client *toolhttp.Client) manifest.Fetcher {
	opts := []manifest.FetcherOption{manifest.WithFetcherLogger(a.logger)}
	for kind, url := range map[version.RuntimeKind]string{
		version.CPython: a.settings.CPythonManifestURL,
		version.PyPy:    a.settings.PyPyManifestURL,
		version.GraalPy: a.settings.GraalPyManifestURL,
	} {
		if url != "" {
			opts = append(opts, manifest.WithURL(kind, url))
		}
	}
	httpFetcher := manifest.NewHTTPFetcher(client, opts...)

	if a.settings.NoManifestCache {
		return httpFetcher
	}

	var disk *cache.DiskCache
	if dir := a.settings.ManifestCacheDir; dir != "" {
		var err error
		if disk, err = cache.NewDiskCache(dir); err != nil {
			a.logger.Warn("Manifest disk cache disabled: {Error}", err)
			disk = nil
		}
	}
	tiered := cache.NewTiered(cache.NewMemoryCache(manifestMemoryEntries, manifestMemoryBytes), disk)
	return manifest.NewCachingFetcher(httpFetcher, tiered, a.logger)
}

// context attaches the manifest cache policy to ctx.
func (a *app) context(ctx context.Context) context.Context {
	return cache.WithPolicy(ctx, cache.Policy{
		MaxAge:  a.settings.ManifestMaxAge,
		NoCache: a.settings.NoManifestCache,
	})
}

// Close flushes spans and writes the metrics file.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.tracer != nil {
		errs = append(errs, observability.ShutdownTracing(ctx, a.tracer))
	}
	if a.settings.MetricsFile != "" {
		if err := observability.WriteMetricsFile(a.settings.MetricsFile); err != nil {
			errs = append(errs, fmt.Errorf("failed to write metrics: %w", err))
		}
	}
	return errors.Join(errs...)
}

// flagString returns a string flag, or "" when cmd does not have it.
func flagString(cmd *cobra.Command, name string) string {
	f := cmd.Flags().Lookup(name)
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// withApp runs fn against a fresh app and closes it afterwards.
func withApp(cmd *cobra.Command, console *output.Console, fn func(ctx context.Context, a *app) error) (err error) {
	a, err := newApp(cmd, console)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(context.WithoutCancel(cmd.Context())); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return fn(a.context(cmd.Context()), a)
}
