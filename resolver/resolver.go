// Package resolver turns a version request into an installed interpreter.
//
// A resolution parses the request, optionally pins it to the newest
// manifest release, probes the tool cache and, on a miss, installs the best
// manifest release before probing the cache again:
//
//	parse → [check latest] → cache probe → hit
//	                                     → miss → manifest (stable, then
//	                                       prerelease if allowed) → install → cache probe
//
// Manifest failures are soft; the cache alone can still satisfy a request.
package resolver

import (
	"context"
	"errors"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/manifest"
	"github.com/willibrandon/pytoolchain/matcher"
	"github.com/willibrandon/pytoolchain/observability"
	"github.com/willibrandon/pytoolchain/platform"
	"github.com/willibrandon/pytoolchain/toolcache"
	"github.com/willibrandon/pytoolchain/version"
)

// Installer downloads a release and files it into the tool cache.
type Installer interface {
	Install(ctx context.Context, release manifest.Release, asset manifest.Asset, arch string) (string, error)
}

// Resolver resolves requests against one tool cache.
type Resolver struct {
	config    Config
	index     *toolcache.Index
	matcher   *matcher.Matcher
	fetcher   manifest.Fetcher
	installer Installer
	logger    observability.Logger
}

// New creates a resolver. A nil logger discards output.
func New(cfg Config, fetcher manifest.Fetcher, installer Installer, logger observability.Logger) *Resolver {
	if cfg.Arch == "" {
		cfg.Arch = platform.DefaultArch()
	}
	logger = observability.OrNull(logger)

	return &Resolver{
		config:    cfg,
		index:     toolcache.NewIndex(cfg.ToolCacheRoot, cfg.Platform, logger),
		matcher:   matcher.New(cfg.Platform),
		fetcher:   fetcher,
		installer: installer,
		logger:    logger,
	}
}

// Index returns the tool cache the resolver reads.
func (r *Resolver) Index() *toolcache.Index {
	return r.index
}

// Arch returns the architecture used for requests that name none.
func (r *Resolver) Arch() string {
	return r.config.Arch
}

// Resolve runs one resolution. Errors are *version.InvalidSpecFormatError,
// *VersionNotFoundError, or the installer's error unchanged.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	kind := req.Runtime
	if kind == version.CPython {
		kind = version.DetectRuntime(req.Version)
	}
	arch := req.Arch
	if arch == "" {
		arch = r.config.Arch
	}

	ctx, span := observability.StartResolveSpan(ctx, kind.String(), req.Version, arch)

	res, outcome, err := r.resolve(ctx, kind, req, arch)
	observability.ResolutionsTotal.WithLabelValues(kind.String(), outcome).Inc()
	if err == nil {
		observability.RecordResolved(ctx, res.LanguageVersion, res.RuntimeVersion)
	}
	observability.EndSpanWithError(span, err)

	return res, err
}

// ResolveAll resolves requests one after another and stops at the first
// failure. Results already produced are returned with the error.
func (r *Resolver) ResolveAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, 0, len(reqs))
	for _, req := range reqs {
		res, err := r.Resolve(ctx, req)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// releaseSource fetches a runtime's manifest at most once per resolution.
type releaseSource struct {
	r        *Resolver
	kind     version.RuntimeKind
	fetched  bool
	releases []manifest.Release
}

func (s *releaseSource) get(ctx context.Context) []manifest.Release {
	if s.fetched {
		return s.releases
	}
	s.fetched = true

	releases, err := s.r.fetcher.Fetch(ctx, s.kind)
	if err != nil {
		s.r.logger.WarnContext(ctx, "{Error}", err)
		s.r.logRateLimit(ctx, err)
		return nil
	}
	s.releases = releases
	return releases
}

func (r *Resolver) resolve(ctx context.Context, kind version.RuntimeKind, req Request, arch string) (*Result, string, error) {
	spec, err := version.ParseSpec(req.Version, kind)
	if err != nil {
		return nil, "invalid_spec", err
	}

	if spec.IsPython2() {
		r.logger.WarnContext(ctx, "Python 2 is no longer supported; {Spec} resolves only from the tool cache or an old manifest entry", spec.String())
	}

	source := &releaseSource{r: r, kind: kind}
	working := spec

	if req.CheckLatest {
		working = r.checkLatest(ctx, source, spec, arch)
	}

	if lookup := r.index.FindSpec(ctx, working, arch, req.AllowPreReleases); lookup.IsFound() {
		return r.result(req, working, arch, lookup.Path, lookup.LanguageVersion, lookup.RuntimeVersion), "cache_hit", nil
	}

	releases := source.get(ctx)
	match, ok := r.matcher.Match(releases, working, arch, false)
	if !ok && req.AllowPreReleases {
		match, ok = r.matcher.Match(releases, working, arch, true)
	}
	if !ok {
		return nil, "not_found", &VersionNotFoundError{
			Runtime:   kind,
			Spec:      spec.String(),
			Arch:      arch,
			Available: r.index.Entries(kind.ToolName()),
		}
	}

	release := match.Release
	r.logger.InfoContext(ctx, "Installing {Runtime} {Version} ({Asset})", kind.String(), release.Tag, match.Asset.Name)

	installDir, err := r.installer.Install(ctx, release, match.Asset, arch)
	if err != nil {
		r.logRateLimit(ctx, err)
		return nil, "install_failed", err
	}

	// Pinned to the installed release, the probe finds exactly what the
	// installer wrote. Nightly builds are not cached and keep installDir.
	if installed, err := working.WithVersions(release.LanguageVersion, release.RuntimeVersion); err == nil {
		if lookup := r.index.FindSpec(ctx, installed, arch, true); lookup.IsFound() {
			installDir = lookup.Path
		}
	}

	return r.result(req, working, arch, installDir, release.LanguageVersion, release.RuntimeVersion), "installed", nil
}

// checkLatest pins spec to the best stable manifest release. No match
// keeps spec unchanged.
func (r *Resolver) checkLatest(ctx context.Context, source *releaseSource, spec *version.Spec, arch string) *version.Spec {
	match, ok := r.matcher.Match(source.get(ctx), spec, arch, false)
	if !ok {
		r.logger.InfoContext(ctx, "Failed to resolve {Runtime} version {Spec} from manifest", spec.Runtime.String(), spec.String())
		return spec
	}

	pinned, err := spec.WithVersions(match.Release.LanguageVersion, match.Release.RuntimeVersion)
	if err != nil {
		r.logger.WarnContext(ctx, "Ignoring manifest release {Tag}: {Error}", match.Release.Tag, err)
		return spec
	}

	r.logger.InfoContext(ctx, "Resolved as {Version}", match.Release.Tag)
	return pinned
}

func (r *Resolver) result(req Request, spec *version.Spec, arch, installDir, languageVersion, runtimeVersion string) *Result {
	res := &Result{
		Installation: Installation{
			Runtime:         spec.Runtime,
			InstallDir:      installDir,
			LanguageVersion: languageVersion,
			RuntimeVersion:  runtimeVersion,
			Arch:            arch,
			Freethreaded:    spec.Freethreaded,
		},
	}
	if req.UpdateEnvironment {
		res.Environment = r.config.Platform.Environment(spec.Runtime, installDir, languageVersion, spec.Freethreaded)
	}
	return res
}

// logRateLimit adds the rate limit hint for 403 and 429 answers.
func (r *Resolver) logRateLimit(ctx context.Context, err error) {
	var statusErr *toolhttp.StatusError
	if errors.As(err, &statusErr) && statusErr.IsRateLimited() {
		r.logger.InfoContext(ctx, "Received HTTP status code {StatusCode}. This usually indicates the rate limit has been exceeded", statusErr.StatusCode)
	}
}
