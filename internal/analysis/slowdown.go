package analysis

import (
	"time"

	"github.com/astauriabidco-maker/Delivr-cm-sub000/internal/models"
)

// SlowdownAlert describes a sustained, unexplained drop in a courier's
// speed. It backs the one-tap confirmation prompt: if the courier confirms
// a cause, the alert becomes a traffic event report with severity and
// location pre-filled.
type SlowdownAlert struct {
	CourierID    string               `json:"courier_id"`
	Severity     models.EventSeverity `json:"severity"`
	AvgSpeedKmh  float64              `json:"avg_speed_kmh"`
	FreeFlowKmh  float64              `json:"free_flow_kmh"`
	Lat          float64              `json:"lat"`
	Lng          float64              `json:"lng"`
	StartedAt    time.Time            `json:"started_at"`
	DurationSecs float64              `json:"duration_secs"`
}

// SlowdownDetector infers slowdowns from a courier's recent speed trace
// against a free-flow reference. Pure computation, no state of its own.
type SlowdownDetector struct {
	ratio       float64       // trigger fraction of free-flow speed
	minDuration time.Duration // sustained time below threshold
	minSamples  int           // guards against a single red light
}

// NewSlowdownDetector creates a detector with the given trigger policy.
func NewSlowdownDetector(ratio float64, minDuration time.Duration, minSamples int) *SlowdownDetector {
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.4
	}
	if minSamples < 2 {
		minSamples = 2
	}
	return &SlowdownDetector{ratio: ratio, minDuration: minDuration, minSamples: minSamples}
}

// Analyze scans the trace (oldest first) for a trailing run of samples
// below the threshold. Returns nil when no sustained slowdown is present.
// Only the trailing run counts: the courier must still be slowed down now
// for a prompt to make sense.
func (d *SlowdownDetector) Analyze(courierID string, trace []TracePoint, freeFlowKmh float64) *SlowdownAlert {
	if len(trace) < d.minSamples || freeFlowKmh <= 0 {
		return nil
	}

	threshold := freeFlowKmh * d.ratio

	// Walk backwards collecting the run of consecutive slow samples.
	runStart := len(trace)
	for i := len(trace) - 1; i >= 0; i-- {
		if trace[i].SpeedKmh >= threshold {
			break
		}
		runStart = i
	}

	run := trace[runStart:]
	if len(run) < d.minSamples {
		return nil
	}

	first, last := run[0], run[len(run)-1]
	duration := last.Timestamp.Sub(first.Timestamp)
	if duration < d.minDuration {
		return nil
	}

	var sum float64
	for _, p := range run {
		sum += p.SpeedKmh
	}
	avg := sum / float64(len(run))

	return &SlowdownAlert{
		CourierID:    courierID,
		Severity:     d.SeverityForSpeed(avg, freeFlowKmh),
		AvgSpeedKmh:  avg,
		FreeFlowKmh:  freeFlowKmh,
		Lat:          last.Lat,
		Lng:          last.Lng,
		StartedAt:    first.Timestamp,
		DurationSecs: duration.Seconds(),
	}
}

// SeverityForSpeed grades a slowdown: the lower the speed relative to
// free-flow, the higher the severity. Monotonic by construction.
func (d *SlowdownDetector) SeverityForSpeed(currentKmh, freeFlowKmh float64) models.EventSeverity {
	if freeFlowKmh <= 0 {
		return models.SeverityLow
	}
	ratio := currentKmh / freeFlowKmh
	switch {
	case ratio < 0.08:
		return models.SeverityCritical
	case ratio < 0.2:
		return models.SeverityHigh
	case ratio < 0.32:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
