package session

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// bearerValue strips the auth scheme off an Authorization header value.
func bearerValue(token string) string {
	token = strings.TrimSpace(token)
	if i := strings.IndexByte(token, ' '); i > 0 && strings.EqualFold(token[:i], "bearer") {
		return strings.TrimSpace(token[i+1:])
	}
	return token
}

// NormalizeBearer returns token with a "Bearer " scheme, adding it when the
// caller passed a bare token.
func NormalizeBearer(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	value := bearerValue(token)
	if value == token {
		return "Bearer " + token
	}
	return token
}

// expired reports whether token is a JWT whose exp claim has passed. The
// signature is not checked here, the backend does that; non-JWT tokens are
// never considered expired locally.
func expired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(bearerValue(token), claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}
