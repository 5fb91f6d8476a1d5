package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"speed-dating-events/internal/models"
	"speed-dating-events/internal/qr"
	"speed-dating-events/internal/registry"
)

type registerRequest struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Important string `json:"important"`
	Goal      string `json:"goal"`
}

type registerResponse struct {
	Guest       models.Guest `json:"guest"`
	Poll        models.Poll  `json:"poll"`
	QRURL       string       `json:"qrUrl"`
	SyncWarning string       `json:"syncWarning,omitempty"`
}

type pollView struct {
	models.Poll
	HasVoted bool `json:"hasVoted"`
}

type guestPage struct {
	Guest models.Guest `json:"guest"`
	Event models.Event `json:"event"`
	QRURL string       `json:"qrUrl"`
	Polls []pollView   `json:"polls"`
}

func (s *Server) registerGuestRoutes(engine *gin.Engine) {
	engine.GET(qr.PathPrefix+":guestId", s.guestLanding)
	engine.GET(qr.PathPrefix+":guestId/qr.png", s.guestQR)

	api := engine.Group("/api")
	api.GET("/events", s.listEvents)
	api.POST("/events/:eventId/guests", s.registerGuest)
	api.GET("/guests/:id/polls", s.guestPolls)
}

// guestLanding is where a scanned QR code leads. An unknown token is
// reported as retryable because the guest snapshot may still be loading.
func (s *Server) guestLanding(g *gin.Context) {
	token := g.Param("guestId")
	guest, err := s.reg.ResolveGuestByToken(token)
	if errors.Is(err, registry.ErrNotFound) {
		g.JSON(http.StatusNotFound, errorResponse{
			Code:      "GUEST_NOT_FOUND",
			Message:   "Guest not found yet, try again in a moment",
			Retryable: true,
		})
		return
	}
	if err != nil {
		s.writeError(g, err)
		return
	}

	page := guestPage{Guest: guest, QRURL: qr.GuestURL(s.baseURL, guest.GuestID)}
	if event, err := s.reg.Event(guest.EventID); err == nil {
		page.Event = event
	}
	page.Polls, err = s.pollViews(guest.ID)
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusOK, page)
}

func (s *Server) guestQR(g *gin.Context) {
	guest, err := s.reg.ResolveGuestByToken(g.Param("guestId"))
	if err != nil {
		s.writeError(g, err)
		return
	}
	png, err := qr.PNG(qr.GuestURL(s.baseURL, guest.GuestID), 256)
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.Header("Cache-Control", "public, max-age=86400")
	g.Data(http.StatusOK, "image/png", png)
}

func (s *Server) listEvents(g *gin.Context) {
	g.JSON(http.StatusOK, s.reg.Events())
}

func (s *Server) registerGuest(g *gin.Context) {
	var req registerRequest
	if err := g.ShouldBindJSON(&req); err != nil {
		badRequest(g, "invalid request format")
		return
	}

	res, err := s.reg.RegisterGuest(g.Request.Context(), currentSession(g).ID, registry.Registration{
		EventID:   g.Param("eventId"),
		Name:      req.Name,
		Age:       req.Age,
		Important: req.Important,
		Goal:      req.Goal,
	})
	if err != nil {
		s.writeError(g, err)
		return
	}

	resp := registerResponse{
		Guest: res.Guest,
		Poll:  res.Poll,
		QRURL: qr.GuestURL(s.baseURL, res.Guest.GuestID),
	}
	if res.SyncWarning != nil {
		resp.SyncWarning = res.SyncWarning.Error()
	}
	g.JSON(http.StatusCreated, resp)
}

func (s *Server) guestPolls(g *gin.Context) {
	views, err := s.pollViews(g.Param("id"))
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusOK, views)
}

func (s *Server) pollViews(guestID string) ([]pollView, error) {
	polls, err := s.reg.AvailablePolls(guestID)
	if err != nil {
		return nil, err
	}
	views := make([]pollView, 0, len(polls))
	for _, p := range polls {
		views = append(views, pollView{Poll: p, HasVoted: s.reg.HasVoted(p, guestID)})
	}
	return views, nil
}
