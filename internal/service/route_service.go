package service

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/routing"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
)

// RouteService estimates traffic-aware route costs. The base path comes
// from the external routing provider; this service overlays the cell
// aggregator's congestion delays and corridor warnings from active
// events. Provider failures degrade to a direct-distance estimate.
type RouteService struct {
	cfg      *config.Config
	grid     *spatial.Grid
	agg      *AggregatorService
	events   *EventService
	provider routing.Provider
}

// NewRouteService creates a new route service
func NewRouteService(cfg *config.Config, grid *spatial.Grid, agg *AggregatorService,
	events *EventService, provider routing.Provider) *RouteService {
	return &RouteService{
		cfg:      cfg,
		grid:     grid,
		agg:      agg,
		events:   events,
		provider: provider,
	}
}

// Estimate computes the traffic-aware route result for a request.
// Never errors on provider failure: it falls back to a degraded
// direct-distance estimate so the caller can still offer navigation.
func (s *RouteService) Estimate(ctx context.Context, req models.RouteRequest) (*models.RouteResult, error) {
	if !spatial.ValidCoordinate(req.Origin.Lat, req.Origin.Lng) ||
		!spatial.ValidCoordinate(req.Destination.Lat, req.Destination.Lng) {
		return nil, fmt.Errorf("%w: malformed coordinates", ErrInvalidInput)
	}

	now := time.Now()

	provCtx, cancel := context.WithTimeout(ctx, s.cfg.RoutingTimeout)
	defer cancel()

	base, err := s.provider.Route(provCtx, req.Origin, req.Destination)
	if err != nil {
		log.Printf("[Route] Provider unavailable, degrading: %v", err)
		return s.degradedEstimate(req, now), nil
	}

	path := base.Geometry
	if len(path) < 2 {
		path = []models.LatLng{req.Origin, req.Destination}
	}

	delayMin := s.trafficDelay(path, now)
	warnings := s.corridorWarnings(path, now)

	duration := base.DurationSeconds + delayMin*60

	return &models.RouteResult{
		DistanceMeters:      base.DistanceMeters,
		DurationSeconds:     duration,
		ETA:                 now.Add(time.Duration(duration * float64(time.Second))),
		TrafficDelayMinutes: delayMin,
		Waypoints:           path,
		Warnings:            warnings,
		Degraded:            false,
	}, nil
}

// degradedEstimate is the fallback when the provider is down: direct
// distance at free-flow speed, no traffic overlay.
func (s *RouteService) degradedEstimate(req models.RouteRequest, now time.Time) *models.RouteResult {
	distance := spatial.HaversineDistance(
		req.Origin.Lat, req.Origin.Lng,
		req.Destination.Lat, req.Destination.Lng)
	duration := distance / 1000 / s.cfg.FreeFlowSpeedKmh * 3600

	return &models.RouteResult{
		DistanceMeters:      distance,
		DurationSeconds:     duration,
		ETA:                 now.Add(time.Duration(duration * float64(time.Second))),
		TrafficDelayMinutes: 0,
		Waypoints:           []models.LatLng{req.Origin, req.Destination},
		Warnings:            nil,
		Degraded:            true,
	}
}

// trafficDelay sums per-cell penalties over the cells the path crosses.
// Each segment is sampled at roughly cell-size granularity and the
// distance attributed to the sampled cell's level.
func (s *RouteService) trafficDelay(path []models.LatLng, now time.Time) float64 {
	perLevelMinPerKm := map[models.TrafficLevel]float64{
		models.LevelFluide: 0,
		models.LevelModere: s.cfg.DelayModereMinKm,
		models.LevelDense:  s.cfg.DelayDenseMinKm,
		models.LevelBloque: s.cfg.DelayBloqueMinKm,
	}

	// Sample step ~ the cell edge length.
	stepM := s.grid.CellSizeDeg() * 111000

	var delayMin float64
	for i := 0; i < len(path)-1; i++ {
		a, b := path[i], path[i+1]
		segM := spatial.HaversineDistance(a.Lat, a.Lng, b.Lat, b.Lng)
		if segM == 0 {
			continue
		}

		steps := int(math.Ceil(segM / stepM))
		if steps < 1 {
			steps = 1
		}
		perStepKm := segM / float64(steps) / 1000

		for k := 0; k < steps; k++ {
			t := (float64(k) + 0.5) / float64(steps)
			lat, lng := spatial.Interpolate(t, a.Lat, a.Lng, b.Lat, b.Lng)
			if _, level, ok := s.agg.LevelAt(lat, lng, now); ok {
				delayMin += perLevelMinPerKm[level] * perStepKm
			}
		}
	}
	return delayMin
}

// corridorWarnings builds one warning per active event inside the buffer
// around the path, ordered by descending severity then penalty.
// Low-confidence events are de-emphasized, never dropped.
func (s *RouteService) corridorWarnings(path []models.LatLng, now time.Time) []models.RouteWarning {
	events := s.events.Near(path, s.cfg.CorridorWidthM, now)

	warnings := make([]models.RouteWarning, 0, len(events))
	for _, e := range events {
		warnings = append(warnings, models.RouteWarning{
			Message:        warningMessage(e),
			Severity:       warningSeverity(e),
			PenaltyMinutes: warningPenalty(e),
			EventID:        e.ID,
		})
	}

	rank := map[models.WarningSeverity]int{
		models.WarningDanger: 2,
		models.WarningNotice: 1,
		models.WarningInfo:   0,
	}
	sort.Slice(warnings, func(i, j int) bool {
		if rank[warnings[i].Severity] != rank[warnings[j].Severity] {
			return rank[warnings[i].Severity] > rank[warnings[j].Severity]
		}
		return warnings[i].PenaltyMinutes > warnings[j].PenaltyMinutes
	})
	return warnings
}

func warningMessage(e models.TrafficEvent) string {
	where := e.Address
	if where == "" {
		where = fmt.Sprintf("%.4f, %.4f", e.Lat, e.Lng)
	}
	return fmt.Sprintf("%s reported near %s", eventLabel(e.Type), where)
}

func eventLabel(t models.EventType) string {
	switch t {
	case models.EventAccident:
		return "Accident"
	case models.EventPolice:
		return "Police checkpoint"
	case models.EventRoadClosed:
		return "Road closed"
	case models.EventFlooding:
		return "Flooding"
	case models.EventTrafficJam:
		return "Heavy traffic"
	case models.EventPothole:
		return "Pothole"
	case models.EventRoadwork:
		return "Roadwork"
	case models.EventHazard:
		return "Road hazard"
	case models.EventFuelStation:
		return "Fuel station"
	default:
		return "Incident"
	}
}

// warningSeverity derives the display tag from the event severity, then
// demotes one notch when community confidence is low.
func warningSeverity(e models.TrafficEvent) models.WarningSeverity {
	var tag models.WarningSeverity
	switch e.Severity {
	case models.SeverityCritical, models.SeverityHigh:
		tag = models.WarningDanger
	case models.SeverityMedium:
		tag = models.WarningNotice
	default:
		tag = models.WarningInfo
	}

	if e.Confidence < 30 {
		switch tag {
		case models.WarningDanger:
			tag = models.WarningNotice
		case models.WarningNotice:
			tag = models.WarningInfo
		}
	}
	return tag
}

// warningPenalty estimates extra minutes for passing the event, scaled
// by community confidence.
func warningPenalty(e models.TrafficEvent) float64 {
	base := map[models.EventSeverity]float64{
		models.SeverityLow:      1,
		models.SeverityMedium:   3,
		models.SeverityHigh:     6,
		models.SeverityCritical: 10,
	}[e.Severity]

	scaled := base * (0.5 + e.Confidence/200)
	return math.Round(scaled*10) / 10
}

// PathSegments annotates each leg of a client-supplied path with the
// traffic level at its midpoint.
func (s *RouteService) PathSegments(waypoints []models.LatLng, now time.Time) ([]models.PathSegment, error) {
	if len(waypoints) < 2 {
		return nil, fmt.Errorf("%w: at least two waypoints required", ErrInvalidInput)
	}
	for _, p := range waypoints {
		if !spatial.ValidCoordinate(p.Lat, p.Lng) {
			return nil, fmt.Errorf("%w: malformed coordinates", ErrInvalidInput)
		}
	}

	segments := make([]models.PathSegment, 0, len(waypoints)-1)
	for i := 0; i < len(waypoints)-1; i++ {
		a, b := waypoints[i], waypoints[i+1]
		midLat, midLng := spatial.Midpoint(a.Lat, a.Lng, b.Lat, b.Lng)

		seg := models.PathSegment{From: a, To: b, Level: models.LevelUnknown}
		if avg, level, ok := s.agg.LevelAt(midLat, midLng, now); ok {
			seg.Level = level
			seg.AvgSpeed = avg
		}
		segments = append(segments, seg)
	}
	return segments, nil
}
