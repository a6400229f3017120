package version

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// NightlyKeyword is the rolling-build token. It bypasses semver and only
// matches an equally tagged release.
const NightlyKeyword = "nightly"

// majorMinorRegex matches a bare X.Y request.
var majorMinorRegex = regexp.MustCompile(`^(\d+)\.(\d+)$`)

// Range represents a range of acceptable versions.
//
// Syntax follows Masterminds/semver constraints:
//
//	3.13          3.13.x
//	~3.14.0-0     3.14.x including prereleases
//	>=3.9 <3.12   explicit bounds
//	v7.3.x        leading v allowed
//	x             any version
//	nightly       only the rolling build
type Range struct {
	raw         string
	constraints *semver.Constraints

	// widened is the prerelease-tier form of a bare X.Y request (~X.Y.0-0).
	widened *semver.Constraints
	nightly bool

	// long is set for an exact version with more than three components,
	// which semver constraints cannot express.
	long bool
}

// ParseRange parses a version range string.
func ParseRange(s string) (*Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("version range cannot be empty")
	}

	if IsNightly(s) {
		return &Range{raw: s, nightly: true}, nil
	}

	if _, extra := splitLong(s); len(extra) > 0 && IsExact(s) {
		return &Range{raw: s, long: true}, nil
	}

	c, err := semver.NewConstraint(s)
	if err != nil {
		return nil, fmt.Errorf("invalid version range %q: %w", s, err)
	}

	return &Range{raw: s, constraints: c}, nil
}

// MustParseRange parses a version range string and panics on error.
// Use this only when you know the range string is valid.
func MustParseRange(s string) *Range {
	r, err := ParseRange(s)
	if err != nil {
		panic(err)
	}
	return r
}

// parseWideningRange parses s and, for a bare X.Y request, also prepares
// the ~X.Y.0-0 form used when prereleases are allowed.
func parseWideningRange(s string) (*Range, error) {
	r, err := ParseRange(s)
	if err != nil {
		return nil, err
	}

	if m := majorMinorRegex.FindStringSubmatch(r.raw); m != nil {
		widened, err := semver.NewConstraint(fmt.Sprintf("~%s.%s.0-0", m[1], m[2]))
		if err == nil {
			r.widened = widened
		}
	}

	return r, nil
}

// ValidRange reports whether s is a valid range or the nightly keyword.
func ValidRange(s string) bool {
	_, err := ParseRange(s)
	return err == nil
}

// IsNightly reports whether s is the rolling-build keyword.
func IsNightly(s string) bool {
	return strings.TrimSpace(s) == NightlyKeyword
}

// String returns the range as written.
func (r *Range) String() string {
	return r.raw
}

// IsNightly reports whether the range is the rolling-build keyword.
func (r *Range) IsNightly() bool {
	return r.nightly
}

// IsWildcard reports whether the range accepts any version.
func (r *Range) IsWildcard() bool {
	switch r.raw {
	case "x", "X", "*":
		return true
	}
	return false
}

// Exact returns the single version the range names, if it is an explicit version.
func (r *Range) Exact() (string, bool) {
	if r.nightly || !IsExact(r.raw) {
		return "", false
	}
	return r.raw, true
}

// Satisfies returns true if the version string satisfies this range.
//
// Prerelease versions only match when includePrerelease is set or the range
// itself names a prerelease. With includePrerelease, a bare X.Y range is
// treated as ~X.Y.0-0 so that X.Y.0 prereleases qualify.
func (r *Range) Satisfies(v string, includePrerelease bool) bool {
	if r.nightly || IsNightly(v) {
		return r.nightly && IsNightly(v)
	}

	if r.long {
		return Compare(v, r.raw) == 0
	}

	parsed, ok := Parse(v)
	if !ok {
		return false
	}

	return r.SatisfiesVersion(parsed, includePrerelease)
}

// SatisfiesVersion is Satisfies for an already parsed version. A parsed
// version has no components past the patch, so it never satisfies an
// exact range that names some.
func (r *Range) SatisfiesVersion(v *semver.Version, includePrerelease bool) bool {
	if r.nightly || r.long || v == nil {
		return false
	}

	c := *r.constraints
	if includePrerelease && r.widened != nil {
		c = *r.widened
	}
	c.IncludePrerelease = includePrerelease

	return c.Check(v)
}

// FindBestMatch finds the highest version that satisfies this range.
//
// Returns false if no version satisfies the range.
func (r *Range) FindBestMatch(versions []string, includePrerelease bool) (string, bool) {
	var best string
	found := false

	for _, s := range versions {
		if !r.Satisfies(s, includePrerelease) {
			continue
		}
		if !found || Compare(s, best) > 0 {
			best, found = s, true
		}
	}

	return best, found
}
