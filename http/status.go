package http

import (
	"fmt"
	"io"
	"net/http"
)

// StatusError is returned for a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected HTTP status %d from %s", e.StatusCode, e.URL)
}

// IsRateLimited reports whether the status usually means a rate limit was
// exceeded (403 or 429).
func (e *StatusError) IsRateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// CheckStatus returns a *StatusError for non-2xx responses, draining and
// closing the body. A 2xx response is returned untouched.
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	return &StatusError{StatusCode: resp.StatusCode, URL: resp.Request.URL.String()}
}
