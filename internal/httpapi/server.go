// Package httpapi is the web front of the registry: the guest QR
// landing page, registration and voting, and the organizer API.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"speed-dating-events/internal/logging"
	"speed-dating-events/internal/metrics"
	"speed-dating-events/internal/registry"
	"speed-dating-events/internal/session"
)

// SessionCookie carries the session id between requests
const SessionCookie = "eventreg_session"

// Options wires the server to its collaborators
type Options struct {
	Registry *registry.Registry
	Sessions *session.Manager
	Metrics  *metrics.Metrics
	Logger   zerolog.Logger
	BaseURL  string
	// GinMode is one of gin.DebugMode, gin.ReleaseMode or gin.TestMode
	GinMode string
}

// Server owns the gin engine
type Server struct {
	reg      *registry.Registry
	sessions *session.Manager
	metrics  *metrics.Metrics
	log      zerolog.Logger
	baseURL  string
	engine   *gin.Engine
}

// New builds the router with every route registered
func New(opts Options) *Server {
	mode := opts.GinMode
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)

	s := &Server{
		reg:      opts.Registry,
		sessions: opts.Sessions,
		metrics:  opts.Metrics,
		log:      logging.Component(opts.Logger, "HTTP"),
		baseURL:  opts.BaseURL,
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), s.requestLogger(), s.sessionMiddleware())
	engine.NoRoute(s.noRoute)

	engine.GET("/healthz", s.healthz)
	if s.metrics != nil {
		engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	s.registerGuestRoutes(engine)
	s.registerVoteRoutes(engine)
	s.registerAdminRoutes(engine)

	s.engine = engine
	return s
}

// Handler returns the http.Handler to serve
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) healthz(g *gin.Context) {
	status := http.StatusOK
	if !s.reg.Ready() {
		status = http.StatusServiceUnavailable
	}
	g.JSON(status, gin.H{"ready": s.reg.Ready()})
}

func (s *Server) noRoute(g *gin.Context) {
	s.log.Debug().Str("path", g.Request.URL.Path).Msg("No route")
	g.JSON(http.StatusNotFound, errorResponse{Code: "PAGE_NOT_FOUND", Message: "Page not found"})
}
