package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FranksOps/quern/internal/auth"
	"github.com/FranksOps/quern/internal/session"
)

// sessionKey is the gin context key for the current session snapshot.
const sessionKey = "session"

// withSession resolves the signed cookie to a live session and aborts
// with 401 when the browser has none.
func (s *Server) withSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := c.Cookie(s.codec.Name())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no session; visit /auth/login"})
			return
		}

		id, err := s.codec.Verify(value)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session cookie"})
			return
		}

		sess, ok := s.sessions.Get(id)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired; visit /auth/login"})
			return
		}

		c.Set(sessionKey, sess)
		c.Next()
	}
}

// requireAuthorized gates endpoints that need Google credentials.
func (s *Server) requireAuthorized() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := currentSession(c)
		if sess.Stage != auth.StageAuthorized || sess.Token == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authorized with Google; visit /auth/login"})
			return
		}
		c.Next()
	}
}

// currentSession returns the snapshot set by withSession.
func currentSession(c *gin.Context) session.Session {
	return c.MustGet(sessionKey).(session.Session)
}
