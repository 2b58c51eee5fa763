package models

import "time"

// EventType is the kind of road incident a courier can report.
type EventType string

const (
	EventAccident    EventType = "accident"
	EventPolice      EventType = "police"
	EventRoadClosed  EventType = "road_closed"
	EventFlooding    EventType = "flooding"
	EventTrafficJam  EventType = "traffic_jam"
	EventPothole     EventType = "pothole"
	EventRoadwork    EventType = "roadwork"
	EventHazard      EventType = "hazard"
	EventFuelStation EventType = "fuel_station"
	EventOther       EventType = "other"
)

// ValidEventType reports whether t is a known event type.
func ValidEventType(t EventType) bool {
	switch t {
	case EventAccident, EventPolice, EventRoadClosed, EventFlooding,
		EventTrafficJam, EventPothole, EventRoadwork, EventHazard,
		EventFuelStation, EventOther:
		return true
	}
	return false
}

// EventSeverity grades an incident's impact.
type EventSeverity string

const (
	SeverityLow      EventSeverity = "low"
	SeverityMedium   EventSeverity = "medium"
	SeverityHigh     EventSeverity = "high"
	SeverityCritical EventSeverity = "critical"
)

// ValidEventSeverity reports whether s is a known severity.
func ValidEventSeverity(s EventSeverity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// TrafficEvent is a crowd-reported (or detector-confirmed) road incident.
type TrafficEvent struct {
	ID          string        `json:"id" db:"id"`
	Type        EventType     `json:"type" db:"type"`
	Severity    EventSeverity `json:"severity" db:"severity"`
	Lat         float64       `json:"lat" db:"lat"`
	Lng         float64       `json:"lng" db:"lng"`
	Address     string        `json:"address,omitempty" db:"address"`
	Description string        `json:"description,omitempty" db:"description"`
	ReporterID  string        `json:"reporter_id" db:"reporter_id"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at" db:"expires_at"`
	Upvotes     int           `json:"upvotes" db:"upvotes"`
	Downvotes   int           `json:"downvotes" db:"downvotes"`
	Confidence  float64       `json:"confidence_score" db:"confidence_score"` // 0-100
}

// Active reports whether the event should appear in area queries at t.
func (e *TrafficEvent) Active(t time.Time) bool {
	return t.Before(e.ExpiresAt)
}

// VoteDirection is a community vote on an event.
type VoteDirection string

const (
	VoteUp   VoteDirection = "up"
	VoteDown VoteDirection = "down"
)

// Vote is one voter's current position on an event. A voter has at most
// one active vote per event; a new vote replaces the previous one.
type Vote struct {
	EventID   string        `json:"event_id" db:"event_id"`
	VoterID   string        `json:"voter_id" db:"voter_id"`
	Direction VoteDirection `json:"direction" db:"direction"`
	CastAt    time.Time     `json:"cast_at" db:"cast_at"`
}
