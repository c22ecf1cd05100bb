// Package identity defines the capability interface the session client uses
// to talk to a delegated identity provider. Any provider that can acquire
// tokens silently and interactively is substitutable.
package identity

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInteractionRequired signals that silent acquisition is insufficient
	// and the provider needs a user-facing challenge.
	ErrInteractionRequired = errors.New("interaction required")

	// ErrLoginRequired signals that the session is unrecoverable without a
	// fresh interactive sign-in.
	ErrLoginRequired = errors.New("user login required")
)

// Claims carries the identity information extracted from a verified token.
type Claims struct {
	Subject string   // Provider-side account identifier
	Email   string   // User's email address
	Name    string   // Display name
	Roles   []string // Application roles granted to the user
}

// AcquireResult is the raw output of a token acquisition.
type AcquireResult struct {
	AccessToken string
	ExpiresAt   time.Time
	Claims      Claims
}

// Client is the identity-provider collaborator. Implementations must return
// ErrInteractionRequired (possibly wrapped) from AcquireSilently when the
// provider demands user interaction, and ErrLoginRequired when no recoverable
// session exists at all.
type Client interface {
	// AcquireSilently obtains a token without user interaction, using the
	// provider session referenced by accountID.
	AcquireSilently(ctx context.Context, scopes []string, accountID string) (*AcquireResult, error)

	// AcquireInteractively obtains a token via a user-facing challenge.
	AcquireInteractively(ctx context.Context, scopes []string) (*AcquireResult, error)

	// SignIn performs a full interactive sign-in with the provider's
	// default scopes.
	SignIn(ctx context.Context) (*AcquireResult, error)

	// SignOut ends the provider session.
	SignOut(ctx context.Context) error
}
