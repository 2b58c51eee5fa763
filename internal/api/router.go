package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/handler"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/middleware"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
)

// SetupRouter wires all HTTP routes.
func SetupRouter(cfg *config.Config,
	agg *service.AggregatorService,
	events *service.EventService,
	routes *service.RouteService,
	ingest *service.IngestService,
	optimizer *service.OptimizerService) *gin.Engine {

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Courier-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.Use(middleware.CourierIdentity(cfg.JWTSecret))

	trafficHandler := handler.NewTrafficHandler(agg, routes)
	eventHandler := handler.NewEventHandler(events)
	locationHandler := handler.NewLocationHandler(ingest, optimizer)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "Traffic engine is running",
		})
	})

	traffic := r.Group("/traffic")
	{
		traffic.GET("/heatmap", trafficHandler.GetHeatmap)
		traffic.GET("/stats", trafficHandler.GetStats)
		traffic.POST("/route", trafficHandler.PostRoute)
		traffic.POST("/estimate", trafficHandler.PostEstimate)

		ev := traffic.Group("/events")
		{
			ev.GET("", eventHandler.ListEvents)
			ev.GET("/:id", eventHandler.GetEvent)

			// Writes require identity and sit behind the rate limiter.
			authed := ev.Group("")
			authed.Use(middleware.RequireCourier())
			authed.Use(middleware.RateLimit(30, time.Minute))
			{
				authed.POST("", eventHandler.ReportEvent)
				authed.POST("/:id/vote", eventHandler.VoteEvent)
				authed.DELETE("/:id", eventHandler.DeleteEvent)
			}
		}
	}

	mobile := r.Group("/mobile")
	mobile.Use(middleware.RequireCourier())
	{
		mobile.POST("/location/update", locationHandler.UpdateLocation)

		route := mobile.Group("/route")
		{
			route.POST("/optimize", locationHandler.OptimizeRoute)
			route.POST("/reorder", locationHandler.ReorderRoute)
			route.GET("/plan", locationHandler.GetPlan)
		}
	}

	return r
}
