package session

import (
	"time"

	"github.com/jrsteele09/go-session-client/identity"
	"github.com/jrsteele09/go-session-client/token"
)

// User is the signed-in user as consumers see it. Token and TokenExpiresAt
// are snapshots of the lifecycle manager's current token, not shared mutable
// state; staleness is expected and resolved by re-reading after a refresh.
type User struct {
	Email          string
	DisplayName    string
	Roles          []string
	Token          string
	TokenExpiresAt time.Time

	// AccountID is a non-owning reference into the identity provider's
	// account registry, looked up by identifier only.
	AccountID string
}

// HasRole reports whether the user holds the given application role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// NewUser builds a user snapshot from provider claims and the normalized
// token info.
func NewUser(claims identity.Claims, info token.TokenInfo) *User {
	return &User{
		Email:          claims.Email,
		DisplayName:    claims.Name,
		Roles:          claims.Roles,
		Token:          info.AccessToken,
		TokenExpiresAt: info.ExpiresAt,
		AccountID:      claims.Subject,
	}
}

// WithToken returns a copy of the user carrying a fresh token snapshot.
func (u *User) WithToken(info token.TokenInfo) *User {
	if u == nil {
		return nil
	}
	copied := *u
	copied.Token = info.AccessToken
	copied.TokenExpiresAt = info.ExpiresAt
	return &copied
}
