// Package identity acquires identity tokens for the current user,
// preferring a silent path over an interactive one.
package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// expirySkew is subtracted from token expiry so a token about to lapse is
// not treated as usable.
const expirySkew = time.Minute

// Token is an identity token returned by the provider. It is owned by the
// caller that requested it and reused read-only for the rest of the session.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token is usable: non-empty and not expired.
// A zero Expiry means the provider did not report one; the token is
// assumed usable.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}
	if t.Expiry.IsZero() {
		return true
	}
	return time.Now().Before(t.Expiry.Add(-expirySkew))
}

// expiryFromAccessToken recovers the expiry claim from a JWT-shaped access
// token without validating the signature. Cryptographic validation belongs
// to the backend, not this client.
func expiryFromAccessToken(raw string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
