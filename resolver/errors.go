package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/willibrandon/pytoolchain/toolcache"
	"github.com/willibrandon/pytoolchain/version"
)

// ErrVersionNotFound is matched by every VersionNotFoundError.
var ErrVersionNotFound = errors.New("version not found")

// VersionNotFoundError reports that neither the tool cache nor the
// manifest has a release for the request.
type VersionNotFoundError struct {
	Runtime version.RuntimeKind
	Spec    string
	Arch    string

	// Available lists what the tool cache holds for the runtime.
	Available []toolcache.Entry
}

func (e *VersionNotFoundError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s version %s with arch %s not found", e.Runtime, e.Spec, e.Arch)

	if len(e.Available) == 0 {
		sb.WriteString("; no versions are installed locally")
		return sb.String()
	}

	sb.WriteString("\nAvailable versions:")
	for _, entry := range e.Available {
		fmt.Fprintf(&sb, "\n  %s (%s)", entry.Version, entry.Arch)
	}
	return sb.String()
}

func (e *VersionNotFoundError) Unwrap() error {
	return ErrVersionNotFound
}
