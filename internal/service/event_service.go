package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/rtree"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/config"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/repository"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/routing"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/stats"
)

// retention keeps expired events queryable by id for a while after they
// drop out of area results, so voters can see why a report disappeared.
const expiredRetention = 24 * time.Hour

// EventService owns crowd-reported traffic events: reporting, area
// queries, voting with confidence scoring, reporter-only deletion and
// TTL-based expiry. The active working set lives in memory under an
// R-tree for bbox queries; sqlite is the durable record.
type EventService struct {
	cfg      *config.Config
	repo     *repository.EventRepository
	geocoder routing.Geocoder

	mu     sync.RWMutex
	active map[string]*models.TrafficEvent
	tree   rtree.RTreeG[string]
}

// NewEventService creates a new event service
func NewEventService(cfg *config.Config, repo *repository.EventRepository, geocoder routing.Geocoder) *EventService {
	return &EventService{
		cfg:      cfg,
		repo:     repo,
		geocoder: geocoder,
		active:   make(map[string]*models.TrafficEvent),
	}
}

// Load rebuilds the in-memory index from the durable store. Called once
// at startup.
func (s *EventService) Load() error {
	events, err := s.repo.ListActive(time.Now())
	if err != nil {
		return fmt.Errorf("failed to load active events: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		s.active[e.ID] = e
		s.tree.Insert(pointOf(e), pointOf(e), e.ID)
	}
	log.Printf("[Events] Loaded %d active events", len(events))
	return nil
}

func pointOf(e *models.TrafficEvent) [2]float64 {
	return [2]float64{e.Lng, e.Lat}
}

// Report records a new traffic event. The expiry is type-dependent and
// the confidence score starts at the neutral baseline. When no address is
// supplied, reverse geocoding is attempted best-effort; a provider
// failure never fails the report.
func (s *EventService) Report(ctx context.Context, reporterID string, typ models.EventType,
	severity models.EventSeverity, lat, lng float64, address, description string) (*models.TrafficEvent, error) {

	if reporterID == "" {
		return nil, fmt.Errorf("%w: missing reporter id", ErrInvalidInput)
	}
	if !models.ValidEventType(typ) {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, typ)
	}
	if !models.ValidEventSeverity(severity) {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrInvalidInput, severity)
	}
	if !spatial.ValidCoordinate(lat, lng) {
		return nil, fmt.Errorf("%w: malformed coordinates", ErrInvalidInput)
	}

	if address == "" && s.geocoder != nil {
		geoCtx, cancel := context.WithTimeout(ctx, s.cfg.GeocodingTimeout)
		resolved, err := s.geocoder.ReverseGeocode(geoCtx, lat, lng)
		cancel()
		if err != nil {
			log.Printf("[Events] Reverse geocode failed: %v", err)
		} else {
			address = resolved
		}
	}

	now := time.Now()
	ttl, ok := s.cfg.EventTTL[string(typ)]
	if !ok {
		ttl = s.cfg.EventTTL[string(models.EventOther)]
	}

	event := &models.TrafficEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		Severity:    severity,
		Lat:         lat,
		Lng:         lng,
		Address:     address,
		Description: description,
		ReporterID:  reporterID,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Confidence:  50,
	}

	if err := s.repo.Create(event); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.active[event.ID] = event
	s.tree.Insert(pointOf(event), pointOf(event), event.ID)
	s.mu.Unlock()

	log.Printf("[Events] Reported %s (%s/%s) at %.5f,%.5f, expires %s",
		event.ID, typ, severity, lat, lng, event.ExpiresAt.Format(time.RFC3339))
	return event, nil
}

// Query returns active events intersecting the bounding box, newest
// first. A zero filter returns all active events.
func (s *EventService) Query(filter models.BBoxFilter, now time.Time) []models.TrafficEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TrafficEvent
	collect := func(id string) {
		e, ok := s.active[id]
		if !ok || !e.Active(now) {
			return
		}
		out = append(out, *e)
	}

	if filter.IsZero() {
		for id := range s.active {
			collect(id)
		}
	} else {
		s.tree.Search(
			[2]float64{filter.MinLng, filter.MinLat},
			[2]float64{filter.MaxLng, filter.MaxLat},
			func(min, max [2]float64, id string) bool {
				collect(id)
				return true
			},
		)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Near returns active events within radiusM of the polyline. Used by the
// route estimator to build corridor warnings.
func (s *EventService) Near(path []models.LatLng, radiusM float64, now time.Time) []models.TrafficEvent {
	if len(path) == 0 {
		return nil
	}

	// Expand the path's bbox by the corridor radius before the precise
	// point-to-segment pass.
	pad := radiusM / 111000.0
	minLat, minLng := path[0].Lat, path[0].Lng
	maxLat, maxLng := minLat, minLng
	for _, p := range path[1:] {
		if p.Lat < minLat {
			minLat = p.Lat
		}
		if p.Lat > maxLat {
			maxLat = p.Lat
		}
		if p.Lng < minLng {
			minLng = p.Lng
		}
		if p.Lng > maxLng {
			maxLng = p.Lng
		}
	}

	candidates := s.Query(models.BBoxFilter{
		MinLat: minLat - pad,
		MinLng: minLng - pad,
		MaxLat: maxLat + pad,
		MaxLng: maxLng + pad,
	}, now)

	poly := make([][2]float64, len(path))
	for i, p := range path {
		poly[i] = [2]float64{p.Lat, p.Lng}
	}

	var out []models.TrafficEvent
	for _, e := range candidates {
		if spatial.DistanceToPath(e.Lat, e.Lng, poly) <= radiusM {
			out = append(out, e)
		}
	}
	return out
}

// Get returns an event by id, expired ones included.
func (s *EventService) Get(id string) (*models.TrafficEvent, error) {
	s.mu.RLock()
	e, ok := s.active[id]
	s.mu.RUnlock()
	if ok {
		snapshot := *e
		return &snapshot, nil
	}

	stored, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, fmt.Errorf("%w: event %s", ErrNotFound, id)
	}
	return stored, nil
}

// Delete removes an event. Only the original reporter may delete it.
func (s *EventService) Delete(id, requesterID string) error {
	event, err := s.Get(id)
	if err != nil {
		return err
	}
	if event.ReporterID != requesterID {
		return fmt.Errorf("%w: only the reporter can delete an event", ErrForbidden)
	}

	if err := s.repo.MarkDeleted(id); err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}

	s.mu.Lock()
	if e, ok := s.active[id]; ok {
		s.tree.Delete(pointOf(e), pointOf(e), id)
		delete(s.active, id)
	}
	s.mu.Unlock()
	return nil
}

// Vote casts or changes a voter's vote on an event and returns the
// updated confidence score. Repeating the same direction is a no-op;
// flipping direction replaces the prior vote, so the net count moves by
// two. A large downvote margin advances the effective expiry to now.
func (s *EventService) Vote(eventID, voterID string, direction models.VoteDirection) (float64, error) {
	if direction != models.VoteUp && direction != models.VoteDown {
		return 0, fmt.Errorf("%w: direction must be up or down", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event, ok := s.active[eventID]
	if !ok {
		return 0, fmt.Errorf("%w: event %s", ErrNotFound, eventID)
	}
	if event.ReporterID == voterID {
		return 0, ErrSelfVote
	}

	existing, err := s.repo.GetVote(eventID, voterID)
	if err != nil {
		return 0, err
	}
	if existing != nil && existing.Direction == direction {
		return event.Confidence, nil
	}

	now := time.Now()
	up, down := event.Upvotes, event.Downvotes
	if existing != nil {
		// Flip: retract the previous vote first.
		if existing.Direction == models.VoteUp {
			up--
		} else {
			down--
		}
	}
	if direction == models.VoteUp {
		up++
	} else {
		down++
	}

	confidence := s.confidence(up, down)

	expiresAt := event.ExpiresAt
	if down-up >= s.cfg.EarlyExpiryMargin && expiresAt.After(now) {
		// Community-confirmed false report: expire now, keep the record.
		expiresAt = now
	}

	vote := &models.Vote{
		EventID:   eventID,
		VoterID:   voterID,
		Direction: direction,
		CastAt:    now,
	}

	// Persist first. The in-memory event only moves once the store has,
	// so a failed write leaves no phantom vote behind.
	if err := s.repo.ApplyVote(vote, up, down, confidence, expiresAt); err != nil {
		return 0, err
	}

	event.Upvotes, event.Downvotes = up, down
	event.Confidence = confidence
	if expiresAt.Before(event.ExpiresAt) {
		event.ExpiresAt = expiresAt
		log.Printf("[Events] Early expiry of %s (net %d downvotes)", eventID, down-up)
	}

	return confidence, nil
}

// confidence maps the vote balance to [0,100]. The smoothing constant
// keeps young events near the neutral baseline of 50 so a single vote
// cannot swing the score to an extreme.
func (s *EventService) confidence(up, down int) float64 {
	net := float64(up - down)
	total := float64(up + down)
	score := 50 + 50*net/(total+s.cfg.ConfidenceSmoothing)
	return stats.Clamp(score, 0, 100)
}

// Sweep drops expired events from the in-memory index and garbage
// collects long-expired rows. Idempotent and safe alongside reads.
func (s *EventService) Sweep(now time.Time) int {
	s.mu.Lock()
	removed := 0
	for id, e := range s.active {
		if !e.Active(now) {
			s.tree.Delete(pointOf(e), pointOf(e), id)
			delete(s.active, id)
			removed++
		}
	}
	s.mu.Unlock()

	if purged, err := s.repo.PurgeExpired(now.Add(-expiredRetention)); err != nil {
		log.Printf("[Events] Purge failed: %v", err)
	} else if purged > 0 {
		log.Printf("[Events] Purged %d long-expired events", purged)
	}
	return removed
}

// Run executes the periodic expiry sweep until the context is cancelled.
func (s *EventService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.EventSweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.Sweep(now); n > 0 {
				log.Printf("[Events] Swept %d expired events", n)
			}
		}
	}
}
