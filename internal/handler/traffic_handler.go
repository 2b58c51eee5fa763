package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/pkg/response"
)

// TrafficHandler handles HTTP requests for the heatmap, city stats and
// route estimation endpoints.
type TrafficHandler struct {
	agg    *service.AggregatorService
	routes *service.RouteService
}

// NewTrafficHandler creates a new traffic handler
func NewTrafficHandler(agg *service.AggregatorService, routes *service.RouteService) *TrafficHandler {
	return &TrafficHandler{agg: agg, routes: routes}
}

// GetHeatmap handles GET /traffic/heatmap
func (h *TrafficHandler) GetHeatmap(c *gin.Context) {
	var filter models.HeatmapFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters")
		return
	}
	if !filter.IsZero() && !filter.Valid() {
		response.BadRequest(c, "Malformed bounding box")
		return
	}

	cells := h.agg.Snapshot(filter.BBoxFilter, time.Now())

	response.Success(c, gin.H{
		"cells": cells,
		"count": len(cells),
	})
}

// GetStats handles GET /traffic/stats
func (h *TrafficHandler) GetStats(c *gin.Context) {
	response.Success(c, h.agg.CityStats(time.Now()))
}

// routeSegmentsRequest is the body for POST /traffic/route.
type routeSegmentsRequest struct {
	Waypoints [][2]float64 `json:"waypoints" binding:"required"` // [lat, lng]
}

// PostRoute handles POST /traffic/route: traffic levels along a path.
func (h *TrafficHandler) PostRoute(c *gin.Context) {
	var req routeSegmentsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	waypoints := make([]models.LatLng, len(req.Waypoints))
	for i, w := range req.Waypoints {
		waypoints[i] = models.LatLng{Lat: w[0], Lng: w[1]}
	}

	segments, err := h.routes.PathSegments(waypoints, time.Now())
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, gin.H{
		"segments": segments,
		"count":    len(segments),
	})
}

// PostEstimate handles POST /traffic/estimate: the traffic-aware route
// cost for an origin/destination pair.
func (h *TrafficHandler) PostEstimate(c *gin.Context) {
	var req models.RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.routes.Estimate(c.Request.Context(), req)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	response.Success(c, result)
}
