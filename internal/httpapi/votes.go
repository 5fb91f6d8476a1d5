package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type voteRequest struct {
	VoterID string `json:"voterId"`
	Option  string `json:"option"`
}

func (s *Server) registerVoteRoutes(engine *gin.Engine) {
	engine.POST("/api/polls/:pollId/votes", s.castVote)
}

func (s *Server) castVote(g *gin.Context) {
	var req voteRequest
	if err := g.ShouldBindJSON(&req); err != nil || req.VoterID == "" || req.Option == "" {
		badRequest(g, "invalid request, missing voterId or option")
		return
	}

	pollID := g.Param("pollId")
	if err := s.reg.CastVote(g.Request.Context(), pollID, req.VoterID, req.Option); err != nil {
		s.writeError(g, err)
		return
	}

	guest, err := s.reg.Guest(req.VoterID)
	if err != nil {
		s.writeError(g, err)
		return
	}
	g.JSON(http.StatusOK, gin.H{"pollId": pollID, "points": guest.Points})
}
