package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/identity"
)

// ClaimsFromAccessToken extracts identity claims from a JWT access token
// without verifying the signature; it is used to rehydrate a session from a
// token the provider issued to us earlier. Opaque tokens yield empty claims.
func ClaimsFromAccessToken(raw string) identity.Claims {
	parsed, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return identity.Claims{}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return identity.Claims{}
	}

	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)

	var roles []string
	if claimRoles, ok := claims["roles"].([]interface{}); ok {
		roles = interfaceArrayToString(claimRoles)
	}

	return identity.Claims{
		Subject: sub,
		Email:   email,
		Name:    name,
		Roles:   roles,
	}
}

func interfaceArrayToString(iArray []interface{}) []string {
	stringSlice := make([]string, 0)
	for _, v := range iArray {
		if s, ok := v.(string); ok {
			stringSlice = append(stringSlice, s)
		}
	}
	return stringSlice
}
