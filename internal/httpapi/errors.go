package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"speed-dating-events/internal/registry"
)

type errorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError maps registry errors to status codes. Validation is
// checked before NotFound since an unknown event in a form is a bad
// request, not a missing page.
func (s *Server) writeError(g *gin.Context, err error) {
	status, resp := http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: err.Error()}
	switch {
	case errors.Is(err, registry.ErrValidation):
		status, resp.Code = http.StatusBadRequest, "VALIDATION"
	case errors.Is(err, registry.ErrAlreadyInProgress):
		status, resp.Code, resp.Retryable = http.StatusConflict, "IN_PROGRESS", true
	case errors.Is(err, registry.ErrAlreadyVoted):
		status, resp.Code = http.StatusConflict, "ALREADY_VOTED"
	case errors.Is(err, registry.ErrOwnPoll):
		status, resp.Code = http.StatusForbidden, "OWN_POLL"
	case errors.Is(err, registry.ErrLastEvent):
		status, resp.Code = http.StatusConflict, "LAST_EVENT"
	case errors.Is(err, registry.ErrNotFound):
		status, resp.Code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, registry.ErrStore):
		status, resp.Code, resp.Retryable = http.StatusServiceUnavailable, "STORE_ERROR", true
	}

	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Str("path", g.Request.URL.Path).Msg("Request failed")
	}
	g.AbortWithStatusJSON(status, resp)
}

func badRequest(g *gin.Context, msg string) {
	g.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: msg})
}
