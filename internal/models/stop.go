package models

// StopRole marks a delivery stop as the pickup or the dropoff leg.
type StopRole string

const (
	RolePickup  StopRole = "pickup"
	RoleDropoff StopRole = "dropoff"
)

// DeliveryStop is one pickup or dropoff point of a delivery. Each delivery
// contributes exactly one pickup and one dropoff stop.
type DeliveryStop struct {
	DeliveryID string   `json:"delivery_id"`
	Role       StopRole `json:"role"`
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	Contact    string   `json:"contact,omitempty"`
}

// RoutePlan is the current visiting order for a courier's open deliveries.
// Optimized is cleared whenever the courier reorders stops manually.
type RoutePlan struct {
	CourierID      string         `json:"courier_id"`
	Stops          []DeliveryStop `json:"stops"`
	TotalDistanceM float64        `json:"total_distance_m"`
	Optimized      bool           `json:"optimized"`
}
