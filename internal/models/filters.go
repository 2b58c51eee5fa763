package models

// BBoxFilter is the optional bounding-box query for heatmap and event
// listings. All four fields must be provided together.
type BBoxFilter struct {
	MinLat float64 `form:"min_lat"`
	MinLng float64 `form:"min_lng"`
	MaxLat float64 `form:"max_lat"`
	MaxLng float64 `form:"max_lng"`
}

// IsZero reports whether no bounding box was supplied.
func (f BBoxFilter) IsZero() bool {
	return f.MinLat == 0 && f.MinLng == 0 && f.MaxLat == 0 && f.MaxLng == 0
}

// Valid reports whether the box is well-formed.
func (f BBoxFilter) Valid() bool {
	return f.MinLat <= f.MaxLat && f.MinLng <= f.MaxLng
}

// Contains reports whether the point lies inside the box.
func (f BBoxFilter) Contains(lat, lng float64) bool {
	return lat >= f.MinLat && lat <= f.MaxLat && lng >= f.MinLng && lng <= f.MaxLng
}

// HeatmapFilter selects cells for the heatmap endpoint. Cells with no
// samples are never listed, so there is no UNKNOWN row to filter.
type HeatmapFilter struct {
	BBoxFilter
}

// EventFilter selects events for the listing endpoint. Listings only ever
// serve active events; expired ones remain reachable by id.
type EventFilter struct {
	BBoxFilter
}
