// Package token owns the authoritative token lifecycle: acquisition results
// are normalized into TokenInfo, expiry is tracked against a refresh skew,
// and refresh falls back from silent to interactive acquisition exactly once.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/identity"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultRefreshSkew is the lead time before expiry at which a refresh
	// becomes necessary, chosen so refresh completes before the token
	// actually expires under normal network latency.
	DefaultRefreshSkew = 5 * time.Minute

	// defaultTokenLifetime is assumed when neither the acquisition result
	// nor the token's own exp claim carries an expiry.
	defaultTokenLifetime = time.Hour
)

// TokenInfo is the token value plus its issuing metadata. Immutable once
// constructed; replaced wholesale on refresh.
type TokenInfo struct {
	AccessToken string
	ExpiresAt   time.Time
	Scopes      []string
}

// Valid reports whether the token may still be attached to outgoing requests.
func (t TokenInfo) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt)
}

// Manager exclusively owns the current TokenInfo. Other components read
// snapshots through the accessors; nothing reaches into its storage directly.
type Manager struct {
	store       Store
	scopes      []string
	refreshSkew time.Duration
	nowFunc     func() time.Time

	lock    sync.RWMutex
	current *TokenInfo
}

type ManagerOption func(*Manager)

// WithRefreshSkew overrides the expiry lead time that triggers refresh.
func WithRefreshSkew(skew time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshSkew = skew
	}
}

// WithScopes sets the scopes requested on every acquisition.
func WithScopes(scopes []string) ManagerOption {
	return func(m *Manager) {
		m.scopes = scopes
	}
}

// WithNowFunc sets the now time function (primarily for testing)
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

func New(store Store, options ...ManagerOption) *Manager {
	m := &Manager{
		store:       store,
		refreshSkew: DefaultRefreshSkew,
		nowFunc:     time.Now,
	}

	for _, opt := range options {
		opt(m)
	}

	return m
}

// ShouldRefresh reports whether a refresh is necessary: no token is held, or
// the held token expires within the refresh skew.
func (m *Manager) ShouldRefresh() bool {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.current == nil {
		return true
	}
	return m.current.ExpiresAt.Sub(m.nowFunc()) <= m.refreshSkew
}

// SetTokenInfo normalizes an acquisition result into TokenInfo, stores it as
// current and persists the bearer string.
func (m *Manager) SetTokenInfo(res identity.AcquireResult) TokenInfo {
	expiresAt := res.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = m.expiryFromClaims(res.AccessToken)
	}

	info := TokenInfo{
		AccessToken: res.AccessToken,
		ExpiresAt:   expiresAt,
		Scopes:      m.scopes,
	}

	m.lock.Lock()
	m.current = &info
	m.lock.Unlock()

	m.store.Set(res.AccessToken)
	return info
}

// LoadFromStore rehydrates the current token from persistent storage, for
// the "checking for an existing session" path at startup. Returns false when
// nothing usable is stored or the stored token has already expired.
func (m *Manager) LoadFromStore() (TokenInfo, bool) {
	stored, ok := m.store.Get()
	if !ok {
		return TokenInfo{}, false
	}

	info := TokenInfo{
		AccessToken: stored,
		ExpiresAt:   m.expiryFromClaims(stored),
		Scopes:      m.scopes,
	}
	if !info.Valid(m.nowFunc()) {
		return TokenInfo{}, false
	}

	m.lock.Lock()
	m.current = &info
	m.lock.Unlock()
	return info, true
}

// TokenInfo returns a snapshot of the current token, or false when none is
// held.
func (m *Manager) TokenInfo() (TokenInfo, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.current == nil {
		return TokenInfo{}, false
	}
	return *m.current, true
}

// BearerToken returns the current token string only while it is still valid.
// Expired tokens are never attached to outgoing requests.
func (m *Manager) BearerToken() (string, bool) {
	m.lock.RLock()
	defer m.lock.RUnlock()

	if m.current == nil || !m.current.Valid(m.nowFunc()) {
		return "", false
	}
	return m.current.AccessToken, true
}

// Refresh attempts silent acquisition first and falls back to interactive
// acquisition exactly once when the provider signals interaction is required.
// On success the current TokenInfo and the store are updated. Failures are
// returned classified; network failures are never retried here, that policy
// belongs to the caller.
func (m *Manager) Refresh(ctx context.Context, client identity.Client, accountID string) (string, error) {
	res, err := client.AcquireSilently(ctx, m.scopes, accountID)
	if err != nil {
		classified := Classify(err)
		if classified.Kind != KindInteractionRequired {
			log.Warn().Str("kind", classified.Kind.String()).Err(err).Msg("silent token acquisition failed")
			return "", classified
		}

		log.Info().Msg("silent token acquisition requires interaction, attempting interactive flow")
		res, err = client.AcquireInteractively(ctx, m.scopes)
		if err != nil {
			classified = Classify(err)
			log.Warn().Str("kind", classified.Kind.String()).Err(err).Msg("interactive token acquisition failed")
			return "", classified
		}
	}

	info := m.SetTokenInfo(*res)
	log.Debug().Time("expires_at", info.ExpiresAt).Msg("token refreshed")
	return info.AccessToken, nil
}

// Clear drops the current TokenInfo and clears the store. Used on sign-out
// and on unrecoverable refresh failure.
func (m *Manager) Clear() {
	m.lock.Lock()
	m.current = nil
	m.lock.Unlock()

	m.store.Clear()
}

// expiryFromClaims extracts the exp claim from a JWT access token without
// verifying the signature; the token was just handed to us by the provider.
func (m *Manager) expiryFromClaims(accessToken string) time.Time {
	fallback := m.nowFunc().Add(defaultTokenLifetime)

	parsed, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return fallback
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return fallback
	}

	exp, ok := claims["exp"].(float64)
	if !ok {
		return fallback
	}
	return time.Unix(int64(exp), 0)
}
