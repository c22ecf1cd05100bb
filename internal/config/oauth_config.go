package config

import "strings"

type OAuthConfig interface {
	GetIssuerURL() string
	GetClientID() string
	GetScopes() []string
}

type OAuth struct{}

var _ OAuthConfig = OAuth{}

func (OAuth) GetIssuerURL() string {
	return GetEnv("OIDC_ISSUER_URL", "http://localhost:8080")
}

func (OAuth) GetClientID() string {
	return GetEnv("OIDC_CLIENT_ID", "session-client")
}

// GetScopes returns the API scopes requested on every acquisition,
// space-separated in the environment as in an OAuth2 scope parameter.
func (OAuth) GetScopes() []string {
	raw := GetEnv("OIDC_SCOPES", "")
	if raw == "" {
		return nil
	}
	return strings.Fields(raw)
}
