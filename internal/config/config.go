package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the traffic engine.
// Every tunable the classification, TTL and anomaly policies depend on
// lives here so the services never hard-code thresholds.
type Config struct {
	Port      string
	DBPath    string
	JWTSecret string

	// Service area bounding box. Samples outside it are rejected.
	// Defaults cover the Douala metropolitan area.
	ServiceArea BoundingBox

	// Grid cell size in degrees per axis (~200m at the operating latitude).
	CellSizeDeg float64

	// Free-flow reference speed used as the congestion denominator.
	FreeFlowSpeedKmh float64

	// Level classification thresholds as fractions of free-flow speed.
	LevelFluideRatio float64
	LevelModereRatio float64
	LevelDenseRatio  float64

	// Rolling average smoothing factor for cell speed updates.
	EWMAAlpha float64

	// Sample older than this is rejected at ingest.
	SampleMaxAge time.Duration

	// Cell with no sample within this window is stale and dropped.
	CellStaleAfter time.Duration
	CellSweepEvery time.Duration

	// Courier counts as online if it pinged within this window.
	PresenceWindow time.Duration

	// Event expiry sweep cadence.
	EventSweepEvery time.Duration

	// Net downvotes at or below -EarlyExpiryMargin force an event's
	// effective expiry to now.
	EarlyExpiryMargin int

	// Confidence smoothing constant; higher values keep young events
	// closer to the neutral baseline.
	ConfidenceSmoothing float64

	// TTL per reported event type.
	EventTTL map[string]time.Duration

	// Slowdown detection: sustained speed below SlowdownRatio of
	// free-flow for at least SlowdownMinDuration over SlowdownMinSamples.
	SlowdownRatio       float64
	SlowdownMinDuration time.Duration
	SlowdownMinSamples  int

	// Route estimation.
	RoutingBaseURL    string
	RoutingTimeout    time.Duration
	GeocodingBaseURL  string
	GeocodingTimeout  time.Duration
	CorridorWidthM    float64
	DelayModereMinKm  float64
	DelayDenseMinKm   float64
	DelayBloqueMinKm  float64
}

// BoundingBox is a lat/lng axis-aligned box.
type BoundingBox struct {
	MinLat float64
	MinLng float64
	MaxLat float64
	MaxLng float64
}

// Contains reports whether the point lies inside the box.
func (b BoundingBox) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// Load reads configuration from environment variables with defaults.
// A .env file is honoured when present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded configuration from .env")
	}

	cfg := &Config{
		Port:      getEnv("PORT", ":8080"),
		DBPath:    getEnv("DB_PATH", "./data/traffic.db"),
		JWTSecret: getEnv("JWT_SECRET", ""),

		ServiceArea: BoundingBox{
			MinLat: getEnvFloat("AREA_MIN_LAT", 3.90),
			MinLng: getEnvFloat("AREA_MIN_LNG", 9.55),
			MaxLat: getEnvFloat("AREA_MAX_LAT", 4.20),
			MaxLng: getEnvFloat("AREA_MAX_LNG", 9.90),
		},

		CellSizeDeg:      getEnvFloat("CELL_SIZE_DEG", 0.0018),
		FreeFlowSpeedKmh: getEnvFloat("FREE_FLOW_SPEED_KMH", 50),

		LevelFluideRatio: getEnvFloat("LEVEL_FLUIDE_RATIO", 0.8),
		LevelModereRatio: getEnvFloat("LEVEL_MODERE_RATIO", 0.5),
		LevelDenseRatio:  getEnvFloat("LEVEL_DENSE_RATIO", 0.2),

		EWMAAlpha: getEnvFloat("EWMA_ALPHA", 0.3),

		SampleMaxAge:   getEnvDuration("SAMPLE_MAX_AGE", 2*time.Minute),
		CellStaleAfter: getEnvDuration("CELL_STALE_AFTER", 10*time.Minute),
		CellSweepEvery: getEnvDuration("CELL_SWEEP_EVERY", 2*time.Minute),
		PresenceWindow: getEnvDuration("PRESENCE_WINDOW", 3*time.Minute),

		EventSweepEvery:     getEnvDuration("EVENT_SWEEP_EVERY", time.Minute),
		EarlyExpiryMargin:   getEnvInt("EARLY_EXPIRY_MARGIN", 3),
		ConfidenceSmoothing: getEnvFloat("CONFIDENCE_SMOOTHING", 5),

		EventTTL: map[string]time.Duration{
			"accident":     getEnvDuration("TTL_ACCIDENT", 2*time.Hour),
			"police":       getEnvDuration("TTL_POLICE", time.Hour),
			"road_closed":  getEnvDuration("TTL_ROAD_CLOSED", 6*time.Hour),
			"flooding":     getEnvDuration("TTL_FLOODING", 4*time.Hour),
			"traffic_jam":  getEnvDuration("TTL_TRAFFIC_JAM", 45*time.Minute),
			"pothole":      getEnvDuration("TTL_POTHOLE", 12*time.Hour),
			"roadwork":     getEnvDuration("TTL_ROADWORK", 3*time.Hour),
			"hazard":       getEnvDuration("TTL_HAZARD", 2*time.Hour),
			"fuel_station": getEnvDuration("TTL_FUEL_STATION", 24*time.Hour),
			"other":        getEnvDuration("TTL_OTHER", time.Hour),
		},

		SlowdownRatio:       getEnvFloat("SLOWDOWN_RATIO", 0.4),
		SlowdownMinDuration: getEnvDuration("SLOWDOWN_MIN_DURATION", 90*time.Second),
		SlowdownMinSamples:  getEnvInt("SLOWDOWN_MIN_SAMPLES", 3),

		RoutingBaseURL:   getEnv("ROUTING_BASE_URL", "http://localhost:5000"),
		RoutingTimeout:   getEnvDuration("ROUTING_TIMEOUT", 5*time.Second),
		GeocodingBaseURL: getEnv("GEOCODING_BASE_URL", ""),
		GeocodingTimeout: getEnvDuration("GEOCODING_TIMEOUT", 3*time.Second),
		CorridorWidthM:   getEnvFloat("CORRIDOR_WIDTH_M", 300),
		DelayModereMinKm: getEnvFloat("DELAY_MODERE_MIN_KM", 1.5),
		DelayDenseMinKm:  getEnvFloat("DELAY_DENSE_MIN_KM", 4),
		DelayBloqueMinKm: getEnvFloat("DELAY_BLOQUE_MIN_KM", 8),
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		log.Printf("Invalid int for %s, using default %d", key, fallback)
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("Invalid float for %s, using default %v", key, fallback)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s, using default %s", key, fallback)
	}
	return fallback
}
