package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/middleware"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/pkg/response"
)

// LocationHandler handles courier pings and multi-stop route planning.
type LocationHandler struct {
	ingest    *service.IngestService
	optimizer *service.OptimizerService
}

// NewLocationHandler creates a new location handler
func NewLocationHandler(ingest *service.IngestService, optimizer *service.OptimizerService) *LocationHandler {
	return &LocationHandler{ingest: ingest, optimizer: optimizer}
}

// locationUpdateRequest is the body for POST /mobile/location/update.
type locationUpdateRequest struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	SpeedKmh  float64 `json:"speed"`
	Timestamp int64   `json:"timestamp,omitempty"` // unix seconds, defaults to now
}

// UpdateLocation handles POST /mobile/location/update. The ack carries an
// optional slowdown prompt the client can confirm with one tap.
func (h *LocationHandler) UpdateLocation(c *gin.Context) {
	var req locationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	var ts time.Time
	if req.Timestamp > 0 {
		ts = time.Unix(req.Timestamp, 0)
	}

	alert, err := h.ingest.Ingest(middleware.CourierID(c), req.Lat, req.Lng, req.SpeedKmh, ts)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	body := gin.H{"accepted": true}
	if alert != nil {
		body["slowdown"] = alert
	}
	response.Success(c, body)
}

// optimizeRequest is the body for POST /mobile/route/optimize and
// /mobile/route/reorder.
type optimizeRequest struct {
	Current models.LatLng         `json:"current"`
	Stops   []models.DeliveryStop `json:"stops" binding:"required"`
}

// OptimizeRoute handles POST /mobile/route/optimize
func (h *LocationHandler) OptimizeRoute(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	plan, err := h.optimizer.Optimize(middleware.CourierID(c), req.Current, req.Stops)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, plan)
}

// ReorderRoute handles POST /mobile/route/reorder: a manual order from
// the courier that overrides the optimizer's output.
func (h *LocationHandler) ReorderRoute(c *gin.Context) {
	var req optimizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	plan, err := h.optimizer.Reorder(middleware.CourierID(c), req.Current, req.Stops)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	response.Success(c, plan)
}

// GetPlan handles GET /mobile/route/plan
func (h *LocationHandler) GetPlan(c *gin.Context) {
	plan := h.optimizer.Plan(middleware.CourierID(c))
	if plan == nil {
		response.NotFound(c, "No route plan for courier")
		return
	}
	response.Success(c, plan)
}
