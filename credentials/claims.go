package credentials

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// expiryFromClaims reads the exp claim out of the access token without
// verifying the signature; the token came over TLS from the issuer and is
// only being inspected for its lifetime. The boolean is false whenever the
// token is not a decodable JWT or carries no exp claim, in which case the
// caller falls back to the issuer-declared lifetime.
func expiryFromClaims(accessToken string) (time.Time, bool) {
	claims := jwtlib.MapClaims{}
	if _, _, err := jwtlib.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}
