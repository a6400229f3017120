package version

import (
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// freethreadedRegex matches a trailing t marker after the last digit,
	// optionally followed by -dev: 3.13t, 3.13.1t, 3.14t-dev.
	freethreadedRegex = regexp.MustCompile(`^(.*\d)t(-dev)?$`)

	// devRegex matches X.Y-dev.
	devRegex = regexp.MustCompile(`^(\d+)\.(\d+)-dev$`)

	// prereleaseSuffixRegex matches prerelease letters abutting the patch
	// digit: 3.13.0b2, 7.3.3rc1.
	prereleaseSuffixRegex = regexp.MustCompile(`(\d+\.\d+\.\d+)(a|b|rc)(\d*)`)

	// graalPyTagRegex extracts the release version from a tag: graal-24.1.0, graal-24.2.0a1.
	graalPyTagRegex = regexp.MustCompile(`.*-(\d+\.\d+\.\d+(?:\.\d+)?)(a|b|rc)?(\d*)`)
)

var pythonChannels = map[string]string{
	"a":  "alpha",
	"b":  "beta",
	"rc": "rc",
}

// Spec is a parsed version request. It is immutable after ParseSpec.
type Spec struct {
	Runtime RuntimeKind
	Raw     string

	// LanguageRange constrains the Python language version. Never nil.
	LanguageRange *Range

	// RuntimeRange constrains the runtime's own release version.
	// Nil for CPython.
	RuntimeRange *Range

	Freethreaded bool
	DevBuild     bool
}

// ParseSpec parses raw according to the grammar of kind.
func ParseSpec(raw string, kind RuntimeKind) (*Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, invalidSpec(kind, raw, ReasonEmpty)
	}

	switch kind {
	case CPython:
		return parseCPython(raw)
	case PyPy:
		return parsePyPy(raw)
	case GraalPy:
		return parseGraalPy(raw)
	default:
		return nil, invalidSpec(kind, raw, ReasonUnknownRuntime)
	}
}

func parseCPython(raw string) (*Spec, error) {
	spec := &Spec{Runtime: CPython, Raw: raw}

	text := raw
	if m := freethreadedRegex.FindStringSubmatch(text); m != nil {
		spec.Freethreaded = true
		text = m[1] + m[2]
	}

	if m := devRegex.FindStringSubmatch(text); m != nil {
		spec.DevBuild = true
		text = "~" + m[1] + "." + m[2] + ".0-0"
	}

	text = PythonToSemantic(text)
	if IsNightly(text) {
		return nil, invalidSpec(CPython, raw, ReasonCPythonRange)
	}

	r, err := parseWideningRange(text)
	if err != nil {
		return nil, invalidSpec(CPython, raw, ReasonCPythonRange)
	}
	spec.LanguageRange = r

	return spec, nil
}

// splitPrefixed splits raw on hyphens and separates a prefix concatenated
// with the first component: "pypy3.9-v7.3.x" becomes [pypy 3.9 v7.3.x].
func splitPrefixed(raw, prefix string) []string {
	var parts []string
	for _, p := range strings.Split(raw, "-") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	if len(parts) > 0 && parts[0] != prefix && strings.HasPrefix(parts[0], prefix) {
		rest := strings.TrimPrefix(parts[0], prefix)
		parts = append([]string{prefix, rest}, parts[1:]...)
	}

	return parts
}

func parsePyPy(raw string) (*Spec, error) {
	parts := splitPrefixed(raw, PyPy.Prefix())
	if len(parts) < 2 || len(parts) > 3 || parts[0] != PyPy.Prefix() {
		return nil, invalidSpec(PyPy, raw, ReasonPyPyPrefix)
	}

	language := parts[1]
	runtime := "x"
	if len(parts) == 3 {
		runtime = PyPyToSemantic(parts[2])
	}

	languageRange, err := ParseRange(language)
	if err != nil {
		return nil, invalidSpec(PyPy, raw, ReasonPyPyRange)
	}
	runtimeRange, err := ParseRange(runtime)
	if err != nil {
		return nil, invalidSpec(PyPy, raw, ReasonPyPyRange)
	}

	if !majorMinorRegex.MatchString(language) {
		return nil, invalidSpec(PyPy, raw, ReasonPyPyMajorMinor)
	}

	return &Spec{
		Runtime:       PyPy,
		Raw:           raw,
		LanguageRange: languageRange,
		RuntimeRange:  runtimeRange,
	}, nil
}

func parseGraalPy(raw string) (*Spec, error) {
	parts := splitPrefixed(raw, GraalPy.Prefix())
	if len(parts) != 2 || parts[0] != GraalPy.Prefix() {
		return nil, invalidSpec(GraalPy, raw, ReasonGraalPyPrefix)
	}

	runtimeRange, err := ParseRange(parts[1])
	if err != nil {
		return nil, invalidSpec(GraalPy, raw, ReasonGraalPyRange)
	}

	return &Spec{
		Runtime:       GraalPy,
		Raw:           raw,
		LanguageRange: MustParseRange("x"),
		RuntimeRange:  runtimeRange,
	}, nil
}

// PythonToSemantic rewrites Python-style prereleases to semver with a
// spelled-out channel: 3.13.0b2 becomes 3.13.0-beta.2.
func PythonToSemantic(s string) string {
	return prereleaseSuffixRegex.ReplaceAllStringFunc(s, func(m string) string {
		sub := prereleaseSuffixRegex.FindStringSubmatch(m)
		return sub[1] + "-" + pythonChannels[sub[2]] + "." + sub[3]
	})
}

// PyPyToSemantic rewrites PyPy prereleases: 7.3.3rc1 becomes 7.3.3-rc.1.
func PyPyToSemantic(s string) string {
	return prereleaseSuffixRegex.ReplaceAllString(s, "$1-$2.$3")
}

// GraalPyTagToVersion extracts the release version from a GraalPy tag:
// graal-24.1.0 becomes 24.1.0 and graal-24.2.0a1 becomes 24.2.0-a.1.
func GraalPyTagToVersion(tag string) string {
	m := graalPyTagRegex.FindStringSubmatch(tag)
	if m == nil {
		return tag
	}
	if m[2] == "" {
		return m[1]
	}
	return m[1] + "-" + m[2] + "." + m[3]
}

// lastPython2 is the final Python 2 release.
var lastPython2 = semver.New(2, 7, 18, "", "")

// IsPython2 reports whether the request admits a Python 2 release but not
// 3.0.0, so ">=2.7 <3" counts and ">=2.7" does not.
func (s *Spec) IsPython2() bool {
	if s.Runtime != CPython || s.LanguageRange.IsNightly() {
		return false
	}
	if s.LanguageRange.Satisfies("3.0.0", false) {
		return false
	}

	for minor := uint64(0); minor <= lastPython2.Minor(); minor++ {
		for patch := uint64(0); patch <= lastPython2.Patch(); patch++ {
			if s.LanguageRange.SatisfiesVersion(semver.New(2, minor, patch, "", ""), false) {
				return true
			}
		}
	}
	return false
}

// WithVersions returns a copy of s pinned to exact release versions.
// Architecture-related flags are kept. An empty runtime leaves RuntimeRange
// unchanged.
func (s *Spec) WithVersions(language, runtime string) (*Spec, error) {
	pinned := *s

	if language != "" {
		r, err := ParseRange(language)
		if err != nil {
			return nil, invalidSpec(s.Runtime, language, ReasonInvalidResolved)
		}
		pinned.LanguageRange = r
	}

	if runtime != "" && s.Runtime.DualAxis() {
		r, err := ParseRange(runtime)
		if err != nil {
			return nil, invalidSpec(s.Runtime, runtime, ReasonInvalidResolved)
		}
		pinned.RuntimeRange = r
	}

	return &pinned, nil
}

// String returns the spec as the user wrote it.
func (s *Spec) String() string {
	return s.Raw
}
