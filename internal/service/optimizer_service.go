package service

import (
	"fmt"
	"math"
	"sync"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/spatial"
)

// OptimizerService orders a courier's open delivery stops. The invariant
// is precedence: a delivery's pickup always comes before its dropoff.
// Plans are kept per courier so a manual reorder survives until the next
// explicit optimize call.
type OptimizerService struct {
	mu    sync.RWMutex
	plans map[string]*models.RoutePlan
}

// NewOptimizerService creates a new optimizer service
func NewOptimizerService() *OptimizerService {
	return &OptimizerService{plans: make(map[string]*models.RoutePlan)}
}

// Optimize computes the visiting order with a greedy nearest-feasible
// heuristic from the courier's current position: at each step the closest
// stop whose precedence constraint is already satisfied is chosen.
func (s *OptimizerService) Optimize(courierID string, current models.LatLng, stops []models.DeliveryStop) (*models.RoutePlan, error) {
	if err := validateStops(stops); err != nil {
		return nil, err
	}

	remaining := make([]models.DeliveryStop, len(stops))
	copy(remaining, stops)

	ordered := make([]models.DeliveryStop, 0, len(stops))
	pickedUp := make(map[string]bool)
	pos := current

	for len(remaining) > 0 {
		bestIdx := -1
		bestDist := math.Inf(1)
		for i, stop := range remaining {
			if stop.Role == models.RoleDropoff && !pickedUp[stop.DeliveryID] {
				continue
			}
			d := spatial.HaversineDistance(pos.Lat, pos.Lng, stop.Lat, stop.Lng)
			if d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}

		// A pickup is always feasible, so a feasible stop always exists.
		next := remaining[bestIdx]
		ordered = append(ordered, next)
		if next.Role == models.RolePickup {
			pickedUp[next.DeliveryID] = true
		}
		pos = models.LatLng{Lat: next.Lat, Lng: next.Lng}
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	plan := &models.RoutePlan{
		CourierID:      courierID,
		Stops:          ordered,
		TotalDistanceM: TotalDistance(&current, ordered),
		Optimized:      true,
	}

	s.mu.Lock()
	s.plans[courierID] = plan
	s.mu.Unlock()
	return plan, nil
}

// Reorder installs a courier's manual stop order. The plan is marked not
// optimized; the optimizer never runs implicitly behind a manual order.
func (s *OptimizerService) Reorder(courierID string, current models.LatLng, stops []models.DeliveryStop) (*models.RoutePlan, error) {
	if err := validateStops(stops); err != nil {
		return nil, err
	}
	if err := validatePrecedence(stops); err != nil {
		return nil, err
	}

	plan := &models.RoutePlan{
		CourierID:      courierID,
		Stops:          stops,
		TotalDistanceM: TotalDistance(&current, stops),
		Optimized:      false,
	}

	s.mu.Lock()
	s.plans[courierID] = plan
	s.mu.Unlock()
	return plan, nil
}

// Plan returns the courier's current plan, or nil.
func (s *OptimizerService) Plan(courierID string) *models.RoutePlan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plans[courierID]
}

// TotalDistance sums straight-line distances over consecutive stops,
// starting from the optional current position.
func TotalDistance(from *models.LatLng, stops []models.DeliveryStop) float64 {
	if len(stops) == 0 {
		return 0
	}

	var total float64
	pos := models.LatLng{Lat: stops[0].Lat, Lng: stops[0].Lng}
	if from != nil {
		total += spatial.HaversineDistance(from.Lat, from.Lng, stops[0].Lat, stops[0].Lng)
	}
	for _, stop := range stops[1:] {
		total += spatial.HaversineDistance(pos.Lat, pos.Lng, stop.Lat, stop.Lng)
		pos = models.LatLng{Lat: stop.Lat, Lng: stop.Lng}
	}
	return total
}

// validateStops checks coordinates and that every delivery contributes
// exactly one pickup and one dropoff.
func validateStops(stops []models.DeliveryStop) error {
	if len(stops) == 0 {
		return fmt.Errorf("%w: no stops", ErrInvalidInput)
	}

	pickups := make(map[string]int)
	dropoffs := make(map[string]int)
	for _, stop := range stops {
		if stop.DeliveryID == "" {
			return fmt.Errorf("%w: stop missing delivery id", ErrInvalidInput)
		}
		if !spatial.ValidCoordinate(stop.Lat, stop.Lng) {
			return fmt.Errorf("%w: malformed coordinates for delivery %s", ErrInvalidInput, stop.DeliveryID)
		}
		switch stop.Role {
		case models.RolePickup:
			pickups[stop.DeliveryID]++
		case models.RoleDropoff:
			dropoffs[stop.DeliveryID]++
		default:
			return fmt.Errorf("%w: unknown stop role %q", ErrInvalidInput, stop.Role)
		}
	}

	for id, n := range pickups {
		if n != 1 || dropoffs[id] != 1 {
			return fmt.Errorf("%w: delivery %s must have exactly one pickup and one dropoff", ErrInvalidInput, id)
		}
	}
	for id := range dropoffs {
		if pickups[id] == 0 {
			return fmt.Errorf("%w: delivery %s has a dropoff but no pickup", ErrInvalidInput, id)
		}
	}
	return nil
}

// validatePrecedence rejects orders that visit a dropoff before its pickup.
func validatePrecedence(stops []models.DeliveryStop) error {
	seen := make(map[string]bool)
	for _, stop := range stops {
		switch stop.Role {
		case models.RolePickup:
			seen[stop.DeliveryID] = true
		case models.RoleDropoff:
			if !seen[stop.DeliveryID] {
				return fmt.Errorf("%w: dropoff before pickup for delivery %s", ErrInvalidInput, stop.DeliveryID)
			}
		}
	}
	return nil
}
