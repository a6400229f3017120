package installer

import (
	"errors"
	"fmt"

	toolhttp "github.com/willibrandon/pytoolchain/http"
	"github.com/willibrandon/pytoolchain/version"
)

// ErrInstallFailed is matched by every InstallError.
var ErrInstallFailed = errors.New("install failed")

// InstallError reports a failed download, extraction or cache write.
type InstallError struct {
	Runtime version.RuntimeKind
	Version string
	URL     string
	Err     error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("failed to install %s %s from %s: %v", e.Runtime, e.Version, e.URL, e.Err)
}

func (e *InstallError) Unwrap() []error {
	return []error{ErrInstallFailed, e.Err}
}

// IsRateLimited reports whether the download host answered 403 or 429.
func (e *InstallError) IsRateLimited() bool {
	var statusErr *toolhttp.StatusError
	return errors.As(e.Err, &statusErr) && statusErr.IsRateLimited()
}

// StatusCode returns the HTTP status of a failed download, or 0.
func (e *InstallError) StatusCode() int {
	var statusErr *toolhttp.StatusError
	if errors.As(e.Err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
