package models

import "time"

// LatLng is a geographic point in request/response bodies.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// RouteRequest is a routing query from origin to destination.
type RouteRequest struct {
	Origin          LatLng   `json:"origin"`
	Destination     LatLng   `json:"destination"`
	CurrentSpeedKmh *float64 `json:"current_speed_kmh,omitempty"`
}

// WarningSeverity tags how strongly a route warning should be surfaced.
type WarningSeverity string

const (
	WarningInfo   WarningSeverity = "info"
	WarningNotice WarningSeverity = "warning"
	WarningDanger WarningSeverity = "danger"
)

// RouteWarning is one incident-derived advisory attached to a route.
type RouteWarning struct {
	Message        string          `json:"message"`
	Severity       WarningSeverity `json:"severity"`
	PenaltyMinutes float64         `json:"penalty_minutes"`
	EventID        string          `json:"event_id,omitempty"`
}

// RouteResult is the traffic-aware estimate for a route request.
// Degraded is set when the external routing provider was unavailable and
// the estimate fell back to direct distance with no traffic overlay.
type RouteResult struct {
	DistanceMeters      float64        `json:"distance_meters"`
	DurationSeconds     float64        `json:"duration_seconds"`
	ETA                 time.Time      `json:"eta"`
	TrafficDelayMinutes float64        `json:"traffic_delay_minutes"`
	Waypoints           []LatLng       `json:"waypoints"`
	Warnings            []RouteWarning `json:"warnings"`
	Degraded            bool           `json:"degraded"`
}

// PathSegment is the traffic level over one leg of a client-supplied path.
type PathSegment struct {
	From     LatLng       `json:"from"`
	To       LatLng       `json:"to"`
	Level    TrafficLevel `json:"level"`
	AvgSpeed float64      `json:"avg_speed,omitempty"`
}
