package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/pkg/response"
)

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Callers never see a raw internal error.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrSelfVote):
		response.Forbidden(c, "You cannot vote on your own report")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, service.ErrUpstreamUnavailable):
		response.Error(c, 503, "Upstream provider unavailable")
	default:
		response.InternalError(c, "Internal error")
	}
}
