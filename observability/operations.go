package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the tracer name for resolution operations
const TracerName = "github.com/willibrandon/pytoolchain"

// Common attribute keys
const (
	AttrRuntime         = attribute.Key("python.runtime")
	AttrVersionSpec     = attribute.Key("python.version_spec")
	AttrArch            = attribute.Key("python.arch")
	AttrLanguageVersion = attribute.Key("python.language_version")
	AttrRuntimeVersion  = attribute.Key("python.runtime_version")
	AttrToolName        = attribute.Key("toolcache.tool")
	AttrCacheHit        = attribute.Key("toolcache.hit")
	AttrManifestURL     = attribute.Key("manifest.url")
	AttrReleaseCount    = attribute.Key("manifest.releases")
	AttrDownloadURL     = attribute.Key("install.download_url")
)

// StartResolveSpan starts a span covering one resolution.
func StartResolveSpan(ctx context.Context, runtime, spec, arch string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "python.resolve",
		trace.WithAttributes(
			AttrRuntime.String(runtime),
			AttrVersionSpec.String(spec),
			AttrArch.String(arch),
		),
	)
}

// StartToolCacheLookupSpan starts a span for a tool cache probe.
func StartToolCacheLookupSpan(ctx context.Context, tool, versionSpec, arch string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "toolcache.find",
		trace.WithAttributes(
			AttrToolName.String(tool),
			AttrVersionSpec.String(versionSpec),
			AttrArch.String(arch),
		),
	)
}

// RecordCacheHit records a tool cache hit or miss on the current span.
func RecordCacheHit(ctx context.Context, hit bool) {
	SetAttributes(ctx, AttrCacheHit.Bool(hit))
}

// StartManifestFetchSpan starts a span for a release manifest fetch.
func StartManifestFetchSpan(ctx context.Context, runtime, url string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "manifest.fetch",
		trace.WithAttributes(
			AttrRuntime.String(runtime),
			AttrManifestURL.String(url),
		),
	)
}

// StartInstallSpan starts a span for downloading and caching a release.
func StartInstallSpan(ctx context.Context, runtime, languageVersion, runtimeVersion, downloadURL string) (context.Context, trace.Span) {
	return StartSpan(ctx, TracerName, "python.install",
		trace.WithAttributes(
			AttrRuntime.String(runtime),
			AttrLanguageVersion.String(languageVersion),
			AttrRuntimeVersion.String(runtimeVersion),
			AttrDownloadURL.String(downloadURL),
		),
	)
}

// RecordResolved records the resolved versions on the current span.
func RecordResolved(ctx context.Context, languageVersion, runtimeVersion string) {
	SetAttributes(ctx,
		AttrLanguageVersion.String(languageVersion),
		AttrRuntimeVersion.String(runtimeVersion),
	)
}

// EndSpanWithError ends a span with an error status
func EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
