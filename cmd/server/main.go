package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/analysis"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/api"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/database"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/repository"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/routing"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/service"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
)

func main() {
	cfg := config.Load()

	if err := database.Init(database.Config{Path: cfg.DBPath}); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}
	defer database.Close()

	if err := database.Migrate(database.GetDB()); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	grid := spatial.NewGrid(cfg.CellSizeDeg)
	presence := service.NewPresenceTracker(cfg.PresenceWindow)
	aggregator := service.NewAggregatorService(cfg, grid, presence)

	traces := analysis.NewTraceArena(16, 30*time.Minute)
	detector := analysis.NewSlowdownDetector(cfg.SlowdownRatio, cfg.SlowdownMinDuration, cfg.SlowdownMinSamples)
	ingest := service.NewIngestService(cfg, grid, aggregator, presence, traces, detector)

	eventRepo := repository.NewEventRepository(database.GetDB())
	geocoder := routing.NewGeocodeClient(cfg.GeocodingBaseURL, cfg.GeocodingTimeout)
	events := service.NewEventService(cfg, eventRepo, geocoder)
	if err := events.Load(); err != nil {
		log.Fatal("Failed to load events:", err)
	}

	provider := routing.NewClient(cfg.RoutingBaseURL, cfg.RoutingTimeout)
	routeSvc := service.NewRouteService(cfg, grid, aggregator, events, provider)
	optimizer := service.NewOptimizerService()

	// Background sweeps stop on SIGINT/SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go aggregator.Run(ctx)
	go events.Run(ctx)
	go ingest.Run(ctx)

	router := api.SetupRouter(cfg, aggregator, events, routeSvc, ingest, optimizer)

	log.Printf("Server starting on port %s", cfg.Port)
	if err := router.Run(cfg.Port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
