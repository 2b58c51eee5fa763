package service

import (
	"sync"
	"testing"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
)

func testConfig() *config.Config {
	return &config.Config{
		ServiceArea: config.BoundingBox{
			MinLat: 3.90, MinLng: 9.55, MaxLat: 4.20, MaxLng: 9.90,
		},
		CellSizeDeg:      0.0018,
		FreeFlowSpeedKmh: 50,
		LevelFluideRatio: 0.8,
		LevelModereRatio: 0.5,
		LevelDenseRatio:  0.2,
		EWMAAlpha:        0.3,
		SampleMaxAge:     2 * time.Minute,
		CellStaleAfter:   10 * time.Minute,
		CellSweepEvery:   2 * time.Minute,
		PresenceWindow:   3 * time.Minute,
		EventSweepEvery:  time.Minute,

		EarlyExpiryMargin:   3,
		ConfidenceSmoothing: 5,
		EventTTL: map[string]time.Duration{
			"accident":     2 * time.Hour,
			"police":       time.Hour,
			"road_closed":  6 * time.Hour,
			"flooding":     4 * time.Hour,
			"traffic_jam":  45 * time.Minute,
			"pothole":      12 * time.Hour,
			"roadwork":     3 * time.Hour,
			"hazard":       2 * time.Hour,
			"fuel_station": 24 * time.Hour,
			"other":        time.Hour,
		},

		SlowdownRatio:       0.4,
		SlowdownMinDuration: 90 * time.Second,
		SlowdownMinSamples:  3,

		RoutingTimeout:   time.Second,
		GeocodingTimeout: time.Second,
		CorridorWidthM:   300,
		DelayModereMinKm: 1.5,
		DelayDenseMinKm:  4,
		DelayBloqueMinKm: 8,
	}
}

func newTestAggregator(cfg *config.Config) *AggregatorService {
	grid := spatial.NewGrid(cfg.CellSizeDeg)
	presence := NewPresenceTracker(cfg.PresenceWindow)
	return NewAggregatorService(cfg, grid, presence)
}

func TestClassify(t *testing.T) {
	agg := newTestAggregator(testConfig())

	tests := []struct {
		speed float64
		want  models.TrafficLevel
	}{
		{45, models.LevelFluide}, // 90% of free-flow
		{40, models.LevelFluide}, // exactly 80%
		{30, models.LevelModere}, // 60%
		{25, models.LevelModere}, // exactly 50%
		{15, models.LevelDense},  // 30%
		{10, models.LevelDense},  // exactly 20%
		{5, models.LevelBloque},  // 10%
		{0, models.LevelBloque},
	}

	for _, tt := range tests {
		if got := agg.Classify(tt.speed); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.speed, got, tt.want)
		}
	}
}

func TestUpdateRollingAverage(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(cfg)
	now := time.Now()

	agg.Update("g2250_5426", 20, now)
	agg.Update("g2250_5426", 22, now.Add(10*time.Second))
	agg.Update("g2250_5426", 24, now.Add(20*time.Second))

	avg, level, ok := agg.CellSpeed("g2250_5426", now.Add(20*time.Second))
	if !ok {
		t.Fatal("cell not found")
	}

	// EWMA(alpha=0.3): 20 -> 20.6 -> 21.62
	if avg < 21.61 || avg > 21.63 {
		t.Errorf("avg = %f, want ~21.62", avg)
	}

	// ~43% of the 50 km/h free-flow reference classifies as DENSE.
	if level != models.LevelDense {
		t.Errorf("level = %v, want DENSE", level)
	}
}

func TestSnapshotOmitsStaleCells(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(cfg)
	now := time.Now()

	agg.Update("g100_100", 30, now.Add(-20*time.Minute)) // stale
	agg.Update("g200_200", 30, now.Add(-time.Minute))    // fresh

	cells := agg.Snapshot(models.BBoxFilter{}, now)
	if len(cells) != 1 {
		t.Fatalf("snapshot has %d cells, want 1", len(cells))
	}
	if cells[0].CellID != "g200_200" {
		t.Errorf("surviving cell = %s, want g200_200", cells[0].CellID)
	}
}

func TestSnapshotBBoxFilter(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(cfg)
	grid := spatial.NewGrid(cfg.CellSizeDeg)
	now := time.Now()

	agg.Update(grid.CellID(4.05, 9.76), 30, now)
	agg.Update(grid.CellID(4.15, 9.85), 30, now)

	cells := agg.Snapshot(models.BBoxFilter{
		MinLat: 4.04, MinLng: 9.75, MaxLat: 4.06, MaxLng: 9.77,
	}, now)
	if len(cells) != 1 {
		t.Fatalf("filtered snapshot has %d cells, want 1", len(cells))
	}
}

func TestSweepStale(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(cfg)
	now := time.Now()

	agg.Update("g1_1", 30, now.Add(-20*time.Minute))
	agg.Update("g2_2", 30, now)

	if n := agg.SweepStale(now); n != 1 {
		t.Errorf("swept %d cells, want 1", n)
	}
	// Sweeping again is a no-op.
	if n := agg.SweepStale(now); n != 0 {
		t.Errorf("second sweep removed %d cells, want 0", n)
	}
}

func TestCityStats(t *testing.T) {
	cfg := testConfig()
	grid := spatial.NewGrid(cfg.CellSizeDeg)
	presence := NewPresenceTracker(cfg.PresenceWindow)
	agg := NewAggregatorService(cfg, grid, presence)
	now := time.Now()

	agg.Update("g1_1", 45, now) // FLUIDE
	agg.Update("g2_2", 10, now) // DENSE
	presence.Touch("courier-1", now)
	presence.Touch("courier-2", now)
	presence.Touch("courier-3", now.Add(-10*time.Minute)) // offline

	st := agg.CityStats(now)
	if st.ActiveCells != 2 {
		t.Errorf("active cells = %d, want 2", st.ActiveCells)
	}
	if st.OnlineCouriers != 2 {
		t.Errorf("online couriers = %d, want 2", st.OnlineCouriers)
	}
	if st.AvgCitySpeedKmh != 27.5 {
		t.Errorf("avg speed = %f, want 27.5", st.AvgCitySpeedKmh)
	}
	// 27.5 km/h is 55% of free-flow: MODERE overall.
	if st.OverallLevel != models.LevelModere {
		t.Errorf("overall = %v, want MODERE", st.OverallLevel)
	}
	if st.CellsByLevel[models.LevelFluide] != 1 || st.CellsByLevel[models.LevelDense] != 1 {
		t.Errorf("cells by level = %v", st.CellsByLevel)
	}
}

func TestCityStatsWeightsBySamples(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(cfg)
	now := time.Now()

	// A well observed cell at 40 km/h and a single stray sample at 10.
	agg.Update("g1_1", 40, now)
	agg.Update("g1_1", 40, now)
	agg.Update("g2_2", 10, now)

	st := agg.CityStats(now)
	// (40*2 + 10*1) / 3 = 30, not the unweighted 25.
	if st.AvgCitySpeedKmh != 30 {
		t.Errorf("avg speed = %v, want sample-weighted 30", st.AvgCitySpeedKmh)
	}
}

func TestCityStatsEmpty(t *testing.T) {
	agg := newTestAggregator(testConfig())

	st := agg.CityStats(time.Now())
	if st.OverallLevel != models.LevelUnknown {
		t.Errorf("overall = %v, want UNKNOWN", st.OverallLevel)
	}
	if st.AvgCitySpeedKmh != 0 {
		t.Errorf("avg speed = %f, want 0", st.AvgCitySpeedKmh)
	}
}

func TestConcurrentUpdates(t *testing.T) {
	cfg := testConfig()
	agg := newTestAggregator(cfg)
	now := time.Now()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				agg.Update("g1_1", 30, now)
				agg.Update("g2_2", 40, now)
			}
		}()
	}
	wg.Wait()

	_, _, ok := agg.CellSpeed("g1_1", now)
	if !ok {
		t.Fatal("cell g1_1 missing after concurrent updates")
	}
	cells := agg.Snapshot(models.BBoxFilter{}, now)
	if len(cells) != 2 {
		t.Fatalf("snapshot has %d cells, want 2", len(cells))
	}
	for _, c := range cells {
		if c.Samples != 5000 {
			t.Errorf("cell %s samples = %d, want 5000", c.CellID, c.Samples)
		}
	}
}
