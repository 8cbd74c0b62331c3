package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// jwtExpiry recovers the expiry from a JWT-shaped access token for token
// endpoints that omit expires_in. The token is not validated here; it is
// only decoded for its exp claim, the server remains the authority.
func jwtExpiry(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	expiry, err := claims.GetExpirationTime()
	if err != nil || expiry == nil {
		return time.Time{}, false
	}
	return expiry.Time, true
}
