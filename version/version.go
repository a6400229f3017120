// Package version parses interpreter version specs and compares versions.
//
// Three runtimes are supported, each with its own spec grammar:
//
//	3.13, 3.13.1, 3.13t, 3.14-dev, >=3.9 <3.12   CPython
//	pypy3.10, pypy-3.9-v7.3.x, pypy3.10-nightly  PyPy
//	graalpy24.1, graalpy-24.1.0                  GraalPy
//
// Example:
//
//	spec, err := version.ParseSpec("pypy3.9-v7.3.x", version.PyPy)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(spec.LanguageRange, spec.RuntimeRange) // 3.9 v7.3.x
package version

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

var (
	// coerceRegex finds the first major[.minor[.patch]] run in a string.
	coerceRegex = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?`)

	// longVersionRegex splits 24.1.0.1-a.1 into 24.1.0, .1 and -a.1.
	longVersionRegex = regexp.MustCompile(`^(v?\d+\.\d+\.\d+)((?:\.\d+)+)([-+].*)?$`)
)

// Coerce extracts the first numeric version from s, dropping anything else.
//
// "3.9" becomes 3.9.0, "pypy-7.3.3rc1" becomes 7.3.3 and "24.1.0.1"
// becomes 24.1.0. Returns false when s contains no digits.
func Coerce(s string) (*semver.Version, bool) {
	m := coerceRegex.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}

	parts := [3]uint64{}
	for i := 0; i < 3; i++ {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseUint(m[i+1], 10, 64)
		if err != nil {
			return nil, false
		}
		parts[i] = n
	}

	return semver.New(parts[0], parts[1], parts[2], "", ""), true
}

// Parse parses s as a semantic version, keeping prerelease labels.
// Components past the patch are dropped here and only break ties in
// Compare. Other versions that are not valid semver fall back to Coerce.
func Parse(s string) (*semver.Version, bool) {
	if IsNightly(s) || s == "" {
		return nil, false
	}
	if v, err := semver.NewVersion(s); err == nil {
		return v, true
	}
	if head, extra := splitLong(s); len(extra) > 0 {
		if v, err := semver.NewVersion(head); err == nil {
			return v, true
		}
	}
	return Coerce(s)
}

// splitLong separates the components past the patch of a version such as
// 24.1.0.1. head keeps any prerelease or build suffix.
func splitLong(s string) (head string, extra []uint64) {
	m := longVersionRegex.FindStringSubmatch(s)
	if m == nil {
		return s, nil
	}
	for _, part := range strings.Split(strings.TrimPrefix(m[2], "."), ".") {
		n, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return s, nil
		}
		extra = append(extra, n)
	}
	return m[1] + m[3], extra
}

// compareExtra orders the components past the patch; missing ones are 0.
func compareExtra(a, b string) int {
	_, ea := splitLong(a)
	_, eb := splitLong(b)
	for i := 0; i < max(len(ea), len(eb)); i++ {
		var x, y uint64
		if i < len(ea) {
			x = ea[i]
		}
		if i < len(eb) {
			y = eb[i]
		}
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

// MustParse parses a version string and panics on error.
// Use this only when you know the version string is valid.
func MustParse(s string) *semver.Version {
	v, ok := Parse(s)
	if !ok {
		panic("invalid version: " + s)
	}
	return v
}

// Compare compares two version strings under semver precedence, then by
// any components past the patch: 24.1.0.1 is above 24.1.0.
// Unparseable versions sort below parseable ones.
func Compare(a, b string) int {
	va, okA := Parse(a)
	vb, okB := Parse(b)

	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	}

	if c := va.Compare(vb); c != 0 {
		return c
	}
	return compareExtra(a, b)
}

// IsExact reports whether s names a single explicit version rather than a
// range. Release versions with more than three components count.
func IsExact(s string) bool {
	if _, err := semver.StrictNewVersion(s); err == nil {
		return true
	}
	head, extra := splitLong(s)
	if len(extra) == 0 {
		return false
	}
	_, err := semver.StrictNewVersion(head)
	return err == nil
}
