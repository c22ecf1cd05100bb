package token

import (
	"fmt"
	"net"

	"github.com/jrsteele09/go-session-client/identity"
	"github.com/pkg/errors"
)

// ErrorKind classifies refresh failures so callers branch on an explicit tag
// rather than inspecting error text.
type ErrorKind int

const (
	// KindGeneric is any refresh failure not covered below. The session is
	// preserved but marked errored.
	KindGeneric ErrorKind = iota

	// KindInteractionRequired means silent refresh was insufficient. It is
	// recovered locally by one interactive attempt and only surfaces when
	// that also fails.
	KindInteractionRequired

	// KindLoginRequired means the session is unrecoverable without a fresh
	// sign-in. Fatal for the current session.
	KindLoginRequired

	// KindNetwork is a transient connectivity failure. The session state is
	// preserved and no sign-out is forced.
	KindNetwork
)

func (k ErrorKind) String() string {
	switch k {
	case KindInteractionRequired:
		return "interaction_required"
	case KindLoginRequired:
		return "login_required"
	case KindNetwork:
		return "network"
	default:
		return "generic"
	}
}

// RefreshError is a classified token refresh failure.
type RefreshError struct {
	Kind ErrorKind
	Err  error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("token refresh failed (%s): %v", e.Kind, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

// Classify maps an acquisition failure onto the refresh error taxonomy.
func Classify(err error) *RefreshError {
	switch {
	case errors.Is(err, identity.ErrLoginRequired):
		return &RefreshError{Kind: KindLoginRequired, Err: err}
	case errors.Is(err, identity.ErrInteractionRequired):
		return &RefreshError{Kind: KindInteractionRequired, Err: err}
	case isNetworkError(err):
		return &RefreshError{Kind: KindNetwork, Err: err}
	default:
		return &RefreshError{Kind: KindGeneric, Err: err}
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
