package service

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/stats"
)

// cellState is the mutable aggregation state of one grid cell. Each cell
// carries its own lock so concurrent writers to different cells never
// contend on anything global.
type cellState struct {
	mu         sync.Mutex
	avgSpeed   float64
	samples    int
	lastUpdate time.Time
}

// AggregatorService maintains per-cell rolling average speeds and derives
// traffic levels. Reads work on snapshot semantics: they see a consistent-
// enough view without blocking ingestion.
type AggregatorService struct {
	cfg      *config.Config
	grid     *spatial.Grid
	presence *PresenceTracker

	mu    sync.RWMutex
	cells map[string]*cellState
}

// NewAggregatorService creates a new aggregator service
func NewAggregatorService(cfg *config.Config, grid *spatial.Grid, presence *PresenceTracker) *AggregatorService {
	return &AggregatorService{
		cfg:      cfg,
		grid:     grid,
		presence: presence,
		cells:    make(map[string]*cellState),
	}
}

// Update folds a speed sample into the cell's rolling average.
func (s *AggregatorService) Update(cellID string, speedKmh float64, ts time.Time) {
	cell := s.getOrCreate(cellID)

	cell.mu.Lock()
	defer cell.mu.Unlock()

	if cell.samples == 0 {
		cell.avgSpeed = speedKmh
	} else {
		cell.avgSpeed = stats.EWMA(cell.avgSpeed, speedKmh, s.cfg.EWMAAlpha)
	}
	cell.samples++
	if ts.After(cell.lastUpdate) {
		cell.lastUpdate = ts
	}
}

func (s *AggregatorService) getOrCreate(cellID string) *cellState {
	s.mu.RLock()
	cell, ok := s.cells[cellID]
	s.mu.RUnlock()
	if ok {
		return cell
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if cell, ok = s.cells[cellID]; ok {
		return cell
	}
	cell = &cellState{}
	s.cells[cellID] = cell
	return cell
}

// Classify maps an average speed to a traffic level using the configured
// fractions of the free-flow reference.
func (s *AggregatorService) Classify(avgSpeedKmh float64) models.TrafficLevel {
	ratio := avgSpeedKmh / s.cfg.FreeFlowSpeedKmh
	switch {
	case ratio >= s.cfg.LevelFluideRatio:
		return models.LevelFluide
	case ratio >= s.cfg.LevelModereRatio:
		return models.LevelModere
	case ratio >= s.cfg.LevelDenseRatio:
		return models.LevelDense
	default:
		return models.LevelBloque
	}
}

// Snapshot returns all non-stale cells, optionally filtered to a bounding
// box, hottest (most sampled) first.
func (s *AggregatorService) Snapshot(filter models.BBoxFilter, now time.Time) []models.GridCell {
	cutoff := now.Add(-s.cfg.CellStaleAfter)

	s.mu.RLock()
	ids := make([]string, 0, len(s.cells))
	states := make([]*cellState, 0, len(s.cells))
	for id, cell := range s.cells {
		ids = append(ids, id)
		states = append(states, cell)
	}
	s.mu.RUnlock()

	out := make([]models.GridCell, 0, len(ids))
	for i, cell := range states {
		cell.mu.Lock()
		avg, samples, updated := cell.avgSpeed, cell.samples, cell.lastUpdate
		cell.mu.Unlock()

		if samples == 0 || updated.Before(cutoff) {
			continue
		}

		lat, lng, err := s.grid.CellCenter(ids[i])
		if err != nil {
			continue
		}
		if !filter.IsZero() && !filter.Contains(lat, lng) {
			continue
		}

		out = append(out, models.GridCell{
			CellID:   ids[i],
			Lat:      lat,
			Lng:      lng,
			AvgSpeed: avg,
			Level:    s.Classify(avg),
			Samples:  samples,
			Updated:  updated,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Samples > out[j].Samples })
	return out
}

// CellSpeed returns the rolling average and level for one cell, if the
// cell is fresh. ok is false for unknown or stale cells.
func (s *AggregatorService) CellSpeed(cellID string, now time.Time) (avg float64, level models.TrafficLevel, ok bool) {
	s.mu.RLock()
	cell, exists := s.cells[cellID]
	s.mu.RUnlock()
	if !exists {
		return 0, models.LevelUnknown, false
	}

	cell.mu.Lock()
	avg, samples, updated := cell.avgSpeed, cell.samples, cell.lastUpdate
	cell.mu.Unlock()

	if samples == 0 || updated.Before(now.Add(-s.cfg.CellStaleAfter)) {
		return 0, models.LevelUnknown, false
	}
	return avg, s.Classify(avg), true
}

// LevelAt resolves the traffic level at a point.
func (s *AggregatorService) LevelAt(lat, lng float64, now time.Time) (float64, models.TrafficLevel, bool) {
	return s.CellSpeed(s.grid.CellID(lat, lng), now)
}

// CityStats computes the city-wide summary over all non-stale cells.
// The city average weights each cell by its sample count, so one barely
// observed cell cannot skew the picture, and the overall level is derived
// from it the same way as a single virtual cell.
func (s *AggregatorService) CityStats(now time.Time) models.CityStats {
	cells := s.Snapshot(models.BBoxFilter{}, now)

	byLevel := map[models.TrafficLevel]int{
		models.LevelFluide: 0,
		models.LevelModere: 0,
		models.LevelDense:  0,
		models.LevelBloque: 0,
	}
	speeds := make([]float64, 0, len(cells))
	weights := make([]float64, 0, len(cells))
	for _, c := range cells {
		byLevel[c.Level]++
		speeds = append(speeds, c.AvgSpeed)
		weights = append(weights, float64(c.Samples))
	}

	st := models.CityStats{
		ActiveCells:    len(cells),
		OnlineCouriers: s.presence.OnlineCount(now),
		CellsByLevel:   byLevel,
		OverallLevel:   models.LevelUnknown,
		Updated:        now,
	}
	if len(speeds) > 0 {
		st.AvgCitySpeedKmh = stats.WeightedMean(speeds, weights)
		st.OverallLevel = s.Classify(st.AvgCitySpeedKmh)
	}
	return st
}

// SweepStale drops cells with no fresh sample inside the staleness window
// and returns how many were removed. Safe to run concurrently with reads.
func (s *AggregatorService) SweepStale(now time.Time) int {
	cutoff := now.Add(-s.cfg.CellStaleAfter)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, cell := range s.cells {
		cell.mu.Lock()
		stale := cell.lastUpdate.Before(cutoff)
		cell.mu.Unlock()
		if stale {
			delete(s.cells, id)
			removed++
		}
	}
	return removed
}

// Run executes the periodic staleness sweep until the context is cancelled.
func (s *AggregatorService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.CellSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.SweepStale(now); n > 0 {
				log.Printf("[Aggregator] Swept %d stale cells", n)
			}
			s.presence.Sweep(now)
		}
	}
}
