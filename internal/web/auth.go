package web

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"brandguard/internal/session"
)

const sessionKey = "session"

// lookupSession resolves the session cookie. A missing or unknown cookie is
// reported as session.ErrNotFound.
func (s *Server) lookupSession(c *gin.Context) (session.Session, error) {
	token, err := c.Cookie(s.opts.SessionCookie)
	if err != nil || token == "" {
		return session.Session{}, session.ErrNotFound
	}
	return s.sessions.Get(c.Request.Context(), token)
}

// requireSession rejects requests without a live session: API routes get a
// 401, pages are redirected to the login page.
func (s *Server) requireSession(api bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.lookupSession(c)
		switch {
		case err == nil:
			c.Set(sessionKey, sess)
			c.Next()
			return
		case !errors.Is(err, session.ErrNotFound):
			s.logger.Error("session lookup failed", zap.Error(err))
			if api {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		if api {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}

func currentSession(c *gin.Context) session.Session {
	return c.MustGet(sessionKey).(session.Session)
}

func (s *Server) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.SessionCookie, token, 0, "/", "", s.opts.SecureCookies, true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.opts.SessionCookie, "", -1, "/", "", s.opts.SecureCookies, true)
}
