package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"booking-api/internal/auth"
	"booking-api/internal/model"
)

const (
	CookieName  = "token"
	identityKey = "identity"
)

type Authenticator interface {
	Authenticate(raw string) (auth.Identity, error)
}

func bearer(h string) string {
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// Authenticate rejects requests without a valid session with 401. The token
// comes from the session cookie, or from Authorization: Bearer <jwt> when the
// cookie is absent or no longer valid.
func Authenticate(a Authenticator, secureCookie bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		cookie, _ := c.Cookie(CookieName)
		header := bearer(c.GetHeader("Authorization"))
		if cookie == "" && header == "" {
			abort(c, http.StatusUnauthorized, "unauthenticated", "no session")
			return
		}

		var cookieErr error
		if cookie != "" {
			id, err := a.Authenticate(cookie)
			if err == nil {
				c.Set(identityKey, id)
				c.Next()
				return
			}
			cookieErr = err
			if errors.Is(err, auth.ErrExpiredToken) {
				ClearSessionCookie(c, secureCookie)
			}
		}
		if header != "" {
			if id, err := a.Authenticate(header); err == nil {
				c.Set(identityKey, id)
				c.Next()
				return
			}
		} else if errors.Is(cookieErr, auth.ErrExpiredToken) {
			abort(c, http.StatusUnauthorized, "expired_token", "session expired")
			return
		}
		abort(c, http.StatusUnauthorized, "unauthenticated", "invalid session")
	}
}

// Identity returns the caller set by Authenticate.
func Identity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}

// RequireRoles must run after Authenticate.
func RequireRoles(roles ...model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := Identity(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "unauthenticated", "no session")
			return
		}
		if err := auth.Authorize(id, roles...); err != nil {
			abort(c, http.StatusForbidden, "forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}

// CronSecret guards machine triggers with a shared bearer secret.
func CronSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !SecretMatches(bearer(c.GetHeader("Authorization")), secret) {
			abort(c, http.StatusUnauthorized, "unauthenticated", "invalid cron secret")
			return
		}
		c.Next()
	}
}

// SecretMatches compares in constant time. An empty secret never matches.
func SecretMatches(got, want string) bool {
	if want == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// ----- cookies -----

// SetSessionCookie writes the token cookie. A zero expires makes it a
// browser-session cookie.
func SetSessionCookie(c *gin.Context, token string, expires time.Time, secure bool) {
	ck := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteNoneMode,
	}
	if !expires.IsZero() {
		ck.Expires = expires
		ck.MaxAge = int(time.Until(expires).Seconds())
	}
	http.SetCookie(c.Writer, ck)
}

func ClearSessionCookie(c *gin.Context, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteNoneMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}

func abort(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": code, "message": msg})
}
