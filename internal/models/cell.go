package models

import "time"

// TrafficLevel classifies a cell's average speed against the free-flow
// reference. Values follow the client's French labels.
type TrafficLevel string

const (
	LevelFluide  TrafficLevel = "FLUIDE"
	LevelModere  TrafficLevel = "MODERE"
	LevelDense   TrafficLevel = "DENSE"
	LevelBloque  TrafficLevel = "BLOQUE"
	LevelUnknown TrafficLevel = "UNKNOWN"
)

// GridCell is the snapshot view of one aggregation cell for the heatmap API.
type GridCell struct {
	CellID   string       `json:"cell_id"`
	Lat      float64      `json:"lat"` // cell center
	Lng      float64      `json:"lng"`
	AvgSpeed float64      `json:"avg_speed"` // km/h, rolling average
	Level    TrafficLevel `json:"level"`
	Samples  int          `json:"samples"`
	Updated  time.Time    `json:"updated"`
}

// CityStats is the city-wide traffic summary.
type CityStats struct {
	ActiveCells     int                  `json:"active_cells"`
	OnlineCouriers  int                  `json:"online_couriers"`
	AvgCitySpeedKmh float64              `json:"avg_city_speed_kmh"`
	OverallLevel    TrafficLevel         `json:"overall_level"`
	CellsByLevel    map[TrafficLevel]int `json:"cells_by_level"`
	Updated         time.Time            `json:"updated"`
}
