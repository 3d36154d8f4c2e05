package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"nfaportal/internal/client"
	"nfaportal/internal/session"
	"nfaportal/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// SessionKey is the gin context key holding the *session.Session.
	SessionKey = "session"
	// AuthRejectedKey is set by handlers when the backend answered 401 to a
	// call made under the current session.
	AuthRejectedKey = "auth_rejected"

	cookieOptionsKey = "cookie_options"

	accessTokenCookie = "access_token"
	cookieMaxAge      = 3600 * 24
)

// SessionResolver turns a bearer token into a session and drops sessions the
// backend stopped accepting.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*session.Session, error)
	Expire(ctx context.Context, token string)
}

// CookieOptions controls the access_token cookie.
type CookieOptions struct {
	// Secure switches to SameSite=None; Secure for cross-origin deployments.
	Secure bool
}

// SetTokenCookie stores the bearer token (without its scheme) as an HttpOnly cookie.
func SetTokenCookie(c *gin.Context, opts CookieOptions, token string) {
	sameSite, secure := cookiePolicy(opts)
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, stripScheme(token), cookieMaxAge, "/", "", secure, true)
}

// ClearTokenCookie removes the access_token cookie.
func ClearTokenCookie(c *gin.Context, opts CookieOptions) {
	sameSite, secure := cookiePolicy(opts)
	c.SetSameSite(sameSite)
	c.SetCookie(accessTokenCookie, "", -1, "/", "", secure, true)
}

func cookiePolicy(opts CookieOptions) (http.SameSite, bool) {
	if opts.Secure {
		return http.SameSiteNoneMode, true
	}
	return http.SameSiteLaxMode, false
}

// BearerToken reads the caller's token: cookie first, then the Authorization
// header. The result always carries a scheme; "" means none was sent.
func BearerToken(c *gin.Context) (string, error) {
	if token, err := c.Cookie(accessTokenCookie); err == nil && token != "" {
		return session.NormalizeBearer(token), nil
	}

	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", nil
	}
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization format, expected 'Bearer <token>'")
	}
	return authHeader, nil
}

// RequireSession resolves the caller's session or aborts with 401. When a
// handler reports a backend 401 the session is expired after the handler ran.
func RequireSession(resolver SessionResolver, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(cookieOptionsKey, opts)
		token, err := BearerToken(c)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
			return
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authorization is missing"))
			return
		}

		s, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			status := http.StatusUnauthorized
			msg := "session expired, please sign in again"
			if !errors.Is(err, client.ErrAuth) && !errors.Is(err, session.ErrNoSession) {
				status = http.StatusBadGateway
				msg = "could not verify session"
			} else {
				ClearTokenCookie(c, opts)
			}
			c.AbortWithStatusJSON(status, response.Error(status, msg))
			return
		}

		c.Set(SessionKey, s)
		c.Next()

		if c.GetBool(AuthRejectedKey) {
			resolver.Expire(c.Request.Context(), s.Token)
		}
	}
}

// CookieOptionsFrom returns the options RequireSession was configured with.
func CookieOptionsFrom(c *gin.Context) CookieOptions {
	if v, ok := c.Get(cookieOptionsKey); ok {
		if opts, ok := v.(CookieOptions); ok {
			return opts
		}
	}
	return CookieOptions{}
}

// CurrentSession returns the session RequireSession stored, or nil.
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(SessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}

func stripScheme(token string) string {
	parts := strings.Fields(token)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return parts[1]
	}
	return strings.TrimSpace(token)
}
