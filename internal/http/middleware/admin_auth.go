// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements admin session enforcement. RequireAdmin extracts a
// session token from the request, validates its shape, and asks a
// caller-supplied lookup whether the token belongs to a live session. Valid
// tokens are stashed in the Gin context for handlers (see AdminToken).
//
// Persistence stays outside the HTTP layer: the lookup is a narrow function
// type, usually a closure over the admin service.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// HeaderAuthorization carries "Bearer <token>" for admin requests.
const HeaderAuthorization = "Authorization"

// ctxKeyAdminToken is the Gin context key holding the validated admin token.
const ctxKeyAdminToken = "admin.token"

// tokenPattern bounds what we forward to the session store.
var tokenPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-]{1,128}$`)

// SessionLookup reports whether token identifies a live admin session.
// Return an error only for lookup failures; unknown or expired tokens are
// (false, nil).
type SessionLookup func(ctx context.Context, token string) (ok bool, err error)

// BearerToken returns the admin token from the Authorization header
// ("Bearer <token>", scheme matched case-insensitively) or, failing that,
// the "token" query parameter. It returns "" when neither is present.
func BearerToken(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get(HeaderAuthorization)); h != "" {
		scheme, tok, found := strings.Cut(h, " ")
		if found && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

// AdminToken returns the token validated by RequireAdmin. The second return
// value is false on routes that are not behind RequireAdmin.
func AdminToken(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyAdminToken)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// RequireAdmin aborts with 401 unless the request carries a token that
// lookup accepts. Lookup failures abort with 500. Error bodies use the same
// envelope as the handlers package.
func RequireAdmin(lookup SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok := BearerToken(c.Request)
		if tok == "" || !tokenPattern.MatchString(tok) {
			adminAuthFailures.WithLabelValues("malformed").Inc()
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		ok, err := lookup(c.Request.Context(), tok)
		if err != nil {
			adminAuthFailures.WithLabelValues("lookup_error").Inc()
			LoggerFrom(c).Error().Err(err).Msg("admin session lookup failed")
			abortAuth(c, http.StatusInternalServerError, "internal_error", "internal server error")
			return
		}
		if !ok {
			adminAuthFailures.WithLabelValues("unknown_session").Inc()
			abortAuth(c, http.StatusUnauthorized, "unauthorized", "missing or invalid admin token")
			return
		}
		c.Set(ctxKeyAdminToken, tok)
		c.Next()
	}
}

func abortAuth(c *gin.Context, status int, code, msg string) {
	rid, _ := c.Get(requestIDKey)
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": asString(rid),
		"code":       code,
		"message":    msg,
	})
}
