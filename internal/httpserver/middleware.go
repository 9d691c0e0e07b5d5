package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"storefront/internal/domain"
	"storefront/internal/session"
)

type ctxKey string

const sessionCtxKey ctxKey = "sessionID"

// sessionMiddleware resolves the visitor's session id from the cookie, issuing
// a fresh one when it is missing or malformed.
func sessionMiddleware(cookieName string, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := ""
		if raw, err := c.Cookie(cookieName); err == nil {
			if parsed, err := uuid.Parse(raw); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cookieName, id, int(ttl/time.Second), "/", "", c.Request.TLS != nil, true)
		}
		ctx := context.WithValue(c.Request.Context(), sessionCtxKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func sessionID(c *gin.Context) string {
	id, _ := c.Request.Context().Value(sessionCtxKey).(string)
	return id
}

func (h *handlers) session(c *gin.Context) *session.Session {
	return h.deps.Sessions.Get(c.Request.Context(), sessionID(c))
}

func (h *handlers) requireLogin(c *gin.Context) {
	if !h.session(c).Credentials.IsLoggedIn(c.Request.Context()) {
		abortError(c, domain.ErrUnauthorized, "please log in")
		return
	}
	c.Next()
}

func (h *handlers) requireAdmin(c *gin.Context) {
	creds := h.session(c).Credentials
	ctx := c.Request.Context()
	if !creds.IsLoggedIn(ctx) {
		abortError(c, domain.ErrUnauthorized, "please log in")
		return
	}
	if !creds.IsAdmin(ctx) {
		abortError(c, domain.ErrForbidden, "administrator access required")
		return
	}
	c.Next()
}
