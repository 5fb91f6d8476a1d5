package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"speed-dating-events/internal/session"
)

type loginRequest struct {
	Password string `json:"password"`
}

type eventRequest struct {
	Name string `json:"name"`
	Date string `json:"date"`
}

func (s *Server) registerAdminRoutes(engine *gin.Engine) {
	engine.POST("/api/admin/login", s.login)
	engine.POST("/api/admin/logout", s.logout)

	group := engine.Group("/api/admin", s.requireAdmin())
	group.GET("/events/:eventId/dashboard", s.dashboard)
	group.GET("/guests/:id/results", s.pollResults)
	group.POST("/events", s.createEvent)
	group.PATCH("/events/:eventId", s.editEvent)
	group.DELETE("/events/:eventId", s.deleteEvent)
}

func (s *Server) login(g *gin.Context) {
	var req loginRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		badRequest(g, "invalid request format")
		return
	}

	sess, err := s.sessions.Login(currentSession(g).ID, req.Password)
	if errors.Is(err, session.ErrBadSecret) {
		s.log.Warn().Msg("Admin login failed")
		g.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: "wrong password"})
		return
	}
	if err != nil {
		g.JSON(http.StatusUnauthorized, errorResponse{Code: "UNAUTHORIZED", Message: err.Error()})
		return
	}

	s.log.Info().Msg("Admin logged in")
	g.JSON(http.StatusOK, gin.H{"authenticated": sess.Authenticated})
}

func (s *Server) logout(g *gin.Context) {
	s.sessions.Logout(currentSession(g).ID)
	g.JSON(http.StatusOK, gin.H{"authenticated": false})
}

func (s *Server) dashboard(g *gin.Context) {
	d, err := s.reg.Dashboard(g.Param("eventId"))
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusOK, d)
}

func (s *Server) pollResults(g *gin.Context) {
	res, err := s.reg.PollResults(g.Param("id"))
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusOK, res)
}

func (s *Server) createEvent(g *gin.Context) {
	var req eventRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		badRequest(g, "invalid request format")
		return
	}
	event, err := s.reg.CreateEvent(g.Request.Context(), req.Name, req.Date)
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusCreated, event)
}

func (s *Server) editEvent(g *gin.Context) {
	var req eventRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		badRequest(g, "invalid request format")
		return
	}
	event, err := s.reg.EditEvent(g.Request.Context(), g.Param("eventId"), req.Name, req.Date)
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusOK, event)
}

// deleteEvent needs ?confirm=true since it also removes every guest and poll
func (s *Server) deleteEvent(g *gin.Context) {
	if g.Query("confirm") != "true" {
		badRequest(g, "deleting an event removes its guests and polls, repeat with confirm=true")
		return
	}

	id := g.Param("eventId")
	next, err := s.reg.DeleteEvent(g.Request.Context(), id)
	if err != nil && next == "" {
		s.writeError(g, err)
		return
	}
	if err != nil {
		s.log.Error().Err(err).Str("event_id", id).Msg("Event deleted with leftovers")
		g.JSON(http.StatusOK, gin.H{"deleted": id, "next": next, "warning": err.Error()})
		return
	}
	g.JSON(http.StatusOK, gin.H{"deleted": id, "next": next})
}
