package analysisapi

import (
	"errors"
	"fmt"
)

var (
	// ErrNetwork covers transport failures: refused connections, DNS, timeouts.
	ErrNetwork = errors.New("analysis api unreachable")
	// ErrHTTP marks any failure reported by the API itself.
	ErrHTTP = errors.New("analysis api error")
	// ErrMalformedResponse is an ErrHTTP whose payload could not be used.
	ErrMalformedResponse = fmt.Errorf("%w: malformed response", ErrHTTP)
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("analysis api %s: status %d", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("analysis api %s: status %d: %s", e.Path, e.StatusCode, e.Body)
}

func (e *HTTPError) Unwrap() error { return ErrHTTP }
