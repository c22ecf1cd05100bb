package apiclient

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrSessionExpired is returned when a 401 could not be recovered by a
// refresh and the session was forcibly signed out.
var ErrSessionExpired = errors.New("session expired, please sign in again")

// HTTPError means the server was reached and rejected the request.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error %d: %s", e.Status, e.Body)
}

// TransportError means the request never reached the server. Classified
// distinctly from HTTPError so callers can tell "rejected" from
// "unreachable".
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
