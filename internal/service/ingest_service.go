package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/analysis"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
)

// IngestService validates courier speed pings and feeds them into the
// aggregator, the presence tracker and the per-courier trace used by the
// slowdown detector. Amortized O(1) per sample; never blocks on reads.
type IngestService struct {
	cfg      *config.Config
	grid     *spatial.Grid
	agg      *AggregatorService
	presence *PresenceTracker
	traces   *analysis.TraceArena
	detector *analysis.SlowdownDetector
}

// NewIngestService creates a new ingest service
func NewIngestService(cfg *config.Config, grid *spatial.Grid, agg *AggregatorService,
	presence *PresenceTracker, traces *analysis.TraceArena, detector *analysis.SlowdownDetector) *IngestService {
	return &IngestService{
		cfg:      cfg,
		grid:     grid,
		agg:      agg,
		presence: presence,
		traces:   traces,
		detector: detector,
	}
}

// Ingest processes one position+speed ping. On success it returns the
// slowdown alert derived from the courier's updated trace, or nil when
// the trace looks normal.
func (s *IngestService) Ingest(courierID string, lat, lng, speedKmh float64, ts time.Time) (*analysis.SlowdownAlert, error) {
	if courierID == "" {
		return nil, fmt.Errorf("%w: missing courier id", ErrInvalidInput)
	}
	if !spatial.ValidCoordinate(lat, lng) {
		return nil, fmt.Errorf("%w: malformed coordinates", ErrInvalidInput)
	}
	if speedKmh < 0 {
		return nil, fmt.Errorf("%w: negative speed", ErrInvalidInput)
	}

	now := time.Now()
	if ts.IsZero() {
		ts = now
	}
	if now.Sub(ts) > s.cfg.SampleMaxAge {
		return nil, fmt.Errorf("%w: sample too old", ErrInvalidInput)
	}
	if !s.cfg.ServiceArea.Contains(lat, lng) {
		return nil, fmt.Errorf("%w: outside service area", ErrInvalidInput)
	}

	cellID := s.grid.CellID(lat, lng)
	s.agg.Update(cellID, speedKmh, ts)
	s.presence.Touch(courierID, ts)

	trace := s.traces.Push(courierID, analysis.TracePoint{
		SpeedKmh:  speedKmh,
		Lat:       lat,
		Lng:       lng,
		Timestamp: ts,
	})

	return s.detector.Analyze(courierID, trace, s.cfg.FreeFlowSpeedKmh), nil
}

// Run recycles idle courier trace buffers until the context is cancelled.
// Without it the arena would keep a buffer for every courier id it ever
// saw.
func (s *IngestService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CellSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.traces.Sweep(now); n > 0 {
				log.Printf("[Ingest] Recycled %d idle courier traces", n)
			}
		}
	}
}
