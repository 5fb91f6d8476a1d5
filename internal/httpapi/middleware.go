package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"speed-dating-events/internal/session"
)

const sessionKey = "session"

// sessionMiddleware resolves the session cookie, starting a fresh
// session when it is missing or expired, and stores the session in the
// request context.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(g *gin.Context) {
		var sess session.Session
		id, err := g.Cookie(SessionCookie)
		if err == nil {
			sess, err = s.sessions.Get(id)
		}
		if err != nil {
			sess = s.sessions.Start()
			g.SetSameSite(http.SameSiteLaxMode)
			g.SetCookie(SessionCookie, sess.ID, 0, "/", "", false, true)
		}

		g.Set(sessionKey, sess)
		g.Request = g.Request.WithContext(session.WithSession(g.Request.Context(), sess))
		g.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(g *gin.Context) {
		if !session.IsAdmin(g.Request.Context()) {
			s.log.Warn().Str("path", g.Request.URL.Path).Msg("Unauthorized admin request")
			g.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "admin login required"})
			return
		}
		g.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(g *gin.Context) {
		start := time.Now()
		g.Next()
		s.log.Debug().
			Str("method", g.Request.Method).
			Str("path", g.Request.URL.Path).
			Int("status", g.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	}
}

func currentSession(g *gin.Context) session.Session {
	v, _ := g.Get(sessionKey)
	sess, _ := v.(session.Session)
	return sess
}
