package manifest

import (
	"errors"
	"fmt"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/version"
)

// ErrManifestUnavailable is matched by every FetchError.
var ErrManifestUnavailable = errors.New("release manifest unavailable")

// FetchError reports that a runtime's release listing could not be
// retrieved or decoded. Callers treat it as soft: a cached interpreter
// can still satisfy the request.
type FetchError struct {
	Runtime version.RuntimeKind
	URL     string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to retrieve the list of available %s versions from %q: %v",
		e.Runtime.ToolName(), e.URL, e.Err)
}

func (e *FetchError) Unwrap() []error {
	return []error{ErrManifestUnavailable, e.Err}
}

// IsRateLimited reports whether the listing host answered 403 or 429.
func (e *FetchError) IsRateLimited() bool {
	var statusErr *toolhttp.StatusError
	return errors.As(e.Err, &statusErr) && statusErr.IsRateLimited()
}
