package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/middleware"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/pkg/response"
)

// EventHandler handles HTTP requests for crowd-reported traffic events.
type EventHandler struct {
	events *service.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(events *service.EventService) *EventHandler {
	return &EventHandler{events: events}
}

// ListEvents handles GET /traffic/events
func (h *EventHandler) ListEvents(c *gin.Context) {
	var filter models.EventFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if !filter.IsZero() && !filter.Valid() {
		response.BadRequest(c, "Malformed bounding box")
		return
	}

	events := h.events.Query(filter.BBoxFilter, time.Now())

	response.Success(c, gin.H{
		"events": events,
		"count":  len(events),
	})
}

// reportRequest is the body for POST /traffic/events.
type reportRequest struct {
	Type        models.EventType     `json:"type" binding:"required"`
	Severity    models.EventSeverity `json:"severity" binding:"required"`
	Lat         float64              `json:"lat"`
	Lng         float64              `json:"lng"`
	Address     string               `json:"address"`
	Description string               `json:"description"`
}

// ReportEvent handles POST /traffic/events
func (h *EventHandler) ReportEvent(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	event, err := h.events.Report(c.Request.Context(), middleware.CourierID(c),
		req.Type, req.Severity, req.Lat, req.Lng, req.Address, req.Description)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, event)
}

// GetEvent handles GET /traffic/events/:id
func (h *EventHandler) GetEvent(c *gin.Context) {
	event, err := h.events.Get(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, event)
}

// voteRequest is the body for POST /traffic/events/:id/vote.
type voteRequest struct {
	Direction models.VoteDirection `json:"direction" binding:"required"`
}

// VoteEvent handles POST /traffic/events/:id/vote
func (h *EventHandler) VoteEvent(c *gin.Context) {
	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	confidence, err := h.events.Vote(c.Param("id"), middleware.CourierID(c), req.Direction)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"event_id":         c.Param("id"),
		"confidence_score": confidence,
	})
}

// DeleteEvent handles DELETE /traffic/events/:id
func (h *EventHandler) DeleteEvent(c *gin.Context) {
	if err := h.events.Delete(c.Param("id"), middleware.CourierID(c)); err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": c.Param("id")})
}
