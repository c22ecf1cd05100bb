// Package oidc implements identity.Client against any OIDC-compliant
// provider. Silent acquisition uses the refresh-token grant, interactive
// acquisition uses the device-authorization flow (RFC 8628).
package oidc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-session-client/identity"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var _ identity.Client = (*Client)(nil)

// DeviceAuthPrompt is called when the device flow needs the user to visit a
// verification URL and enter a code.
type DeviceAuthPrompt func(verificationURI, userCode string)

// Client holds the provider session (refresh token + account subject) for a
// single signed-in account.
type Client struct {
	conf     *oauth2.Config
	verifier *gooidc.IDTokenVerifier
	prompt   DeviceAuthPrompt
	nowFunc  func() time.Time

	lock         sync.Mutex
	refreshToken string
	accountID    string
}

type ClientOption func(*Client)

// WithDeviceAuthPrompt sets how the device-flow challenge is surfaced to the
// user. The default prints to stdout.
func WithDeviceAuthPrompt(prompt DeviceAuthPrompt) ClientOption {
	return func(c *Client) {
		c.prompt = prompt
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New discovers the provider's endpoints from issuerURL and returns a client
// ready to sign in.
func New(ctx context.Context, issuerURL, clientID string, scopes []string, options ...ClientOption) (*Client, error) {
	provider, err := gooidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, errors.Wrap(err, "[oidc.New] provider discovery")
	}

	c := &Client{
		conf: &oauth2.Config{
			ClientID: clientID,
			Endpoint: provider.Endpoint(),
			Scopes:   append([]string{gooidc.ScopeOpenID, "profile", "email", gooidc.ScopeOfflineAccess}, scopes...),
		},
		verifier: provider.Verifier(&gooidc.Config{ClientID: clientID}),
		prompt: func(verificationURI, userCode string) {
			fmt.Printf("To sign in, visit %s and enter the code %s\n", verificationURI, userCode)
		},
		nowFunc: time.Now,
	}

	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

// AcquireSilently redeems the held refresh token for a new access token.
// Returns identity.ErrInteractionRequired when no provider session exists
// for the requested account or the provider rejects the grant.
func (c *Client) AcquireSilently(ctx context.Context, scopes []string, accountID string) (*identity.AcquireResult, error) {
	c.lock.Lock()
	refreshToken := c.refreshToken
	heldAccount := c.accountID
	c.lock.Unlock()

	if refreshToken == "" {
		return nil, errors.Wrap(identity.ErrInteractionRequired, "[AcquireSilently] no refresh token held")
	}
	if accountID != "" && accountID != heldAccount {
		return nil, errors.Wrap(identity.ErrInteractionRequired, "[AcquireSilently] account mismatch")
	}

	ts := c.conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			switch retrieveErr.ErrorCode {
			case "invalid_grant", "interaction_required", "consent_required":
				// The refresh token is spent, revoked, or the provider
				// demands a user-facing challenge.
				log.Warn().Str("oauth_error", retrieveErr.ErrorCode).Msg("silent acquisition rejected by provider")
				return nil, errors.Wrap(identity.ErrInteractionRequired, retrieveErr.ErrorCode)
			case "login_required":
				log.Warn().Str("oauth_error", retrieveErr.ErrorCode).Msg("provider session gone, full sign-in needed")
				return nil, errors.Wrap(identity.ErrLoginRequired, retrieveErr.ErrorCode)
			}
			// server_error, temporarily_unavailable and the like are
			// transient provider failures, not a reason to challenge
			// the user.
		}
		return nil, errors.Wrap(err, "[AcquireSilently] token endpoint")
	}

	return c.resultFromToken(ctx, tok)
}

// AcquireInteractively runs the device-authorization flow once. Requested
// scopes are merged over the configured login scopes so a refresh token and
// ID token are always requested.
func (c *Client) AcquireInteractively(ctx context.Context, scopes []string) (*identity.AcquireResult, error) {
	conf := *c.conf
	conf.Scopes = mergeScopes(c.conf.Scopes, scopes)

	da, err := conf.DeviceAuth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "[AcquireInteractively] device authorization")
	}

	c.prompt(da.VerificationURI, da.UserCode)

	tok, err := conf.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, errors.Wrap(err, "[AcquireInteractively] device access token")
	}

	return c.resultFromToken(ctx, tok)
}

func mergeScopes(base, extra []string) []string {
	merged := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]bool)
	for _, s := range append(append([]string{}, base...), extra...) {
		if !seen[s] {
			seen[s] = true
			merged = append(merged, s)
		}
	}
	return merged
}

// SignIn performs a full interactive sign-in with the configured scopes.
func (c *Client) SignIn(ctx context.Context) (*identity.AcquireResult, error) {
	return c.AcquireInteractively(ctx, c.conf.Scopes)
}

// SignOut drops the held provider session. The provider's own end-session
// endpoint is not called; the local session simply becomes unusable.
func (c *Client) SignOut(_ context.Context) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.refreshToken = ""
	c.accountID = ""
	return nil
}

// resultFromToken verifies the ID token (when present), extracts claims and
// updates the held provider session.
func (c *Client) resultFromToken(ctx context.Context, tok *oauth2.Token) (*identity.AcquireResult, error) {
	claims := identity.Claims{}

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		idToken, err := c.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, errors.Wrap(err, "[resultFromToken] ID token verification")
		}

		var idClaims struct {
			Email string   `json:"email"`
			Name  string   `json:"name"`
			Roles []string `json:"roles"`
		}
		if err := idToken.Claims(&idClaims); err != nil {
			return nil, errors.Wrap(err, "[resultFromToken] ID token claims")
		}

		claims = identity.Claims{
			Subject: idToken.Subject,
			Email:   idClaims.Email,
			Name:    idClaims.Name,
			Roles:   idClaims.Roles,
		}
	}

	c.lock.Lock()
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	if claims.Subject != "" {
		c.accountID = claims.Subject
	}
	c.lock.Unlock()

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = c.nowFunc().Add(time.Hour)
	}

	return &identity.AcquireResult{
		AccessToken: tok.AccessToken,
		ExpiresAt:   expiresAt,
		Claims:      claims,
	}, nil
}

// HTTPClientContext returns a context carrying a custom HTTP client for the
// oauth2 transport, for callers that need timeouts or instrumentation on
// provider calls.
func HTTPClientContext(ctx context.Context, httpClient *http.Client) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, httpClient)
}
