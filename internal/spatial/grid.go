package spatial

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultCellSizeDeg is ~200m per axis at the operating latitude (~4°N).
const DefaultCellSizeDeg = 0.0018

// Grid quantizes coordinates into fixed-size cells. It is a pure mapping:
// two points in the same physical area always resolve to the same cell id.
type Grid struct {
	cellSizeDeg float64
}

// NewGrid creates a grid with the given cell size in degrees per axis.
func NewGrid(cellSizeDeg float64) *Grid {
	if cellSizeDeg <= 0 {
		cellSizeDeg = DefaultCellSizeDeg
	}
	return &Grid{cellSizeDeg: cellSizeDeg}
}

// CellID returns the cell identifier for a point. Format: "g{latIdx}_{lngIdx}".
func (g *Grid) CellID(lat, lng float64) string {
	latIdx := int(math.Floor(lat / g.cellSizeDeg))
	lngIdx := int(math.Floor(lng / g.cellSizeDeg))
	return fmt.Sprintf("g%d_%d", latIdx, lngIdx)
}

// CellCenter returns the center point of the cell identified by id.
func (g *Grid) CellCenter(id string) (lat, lng float64, err error) {
	latIdx, lngIdx, err := parseCellID(id)
	if err != nil {
		return 0, 0, err
	}
	lat = (float64(latIdx) + 0.5) * g.cellSizeDeg
	lng = (float64(lngIdx) + 0.5) * g.cellSizeDeg
	return lat, lng, nil
}

// CellSizeDeg returns the configured cell size.
func (g *Grid) CellSizeDeg() float64 {
	return g.cellSizeDeg
}

func parseCellID(id string) (latIdx, lngIdx int, err error) {
	if !strings.HasPrefix(id, "g") {
		return 0, 0, fmt.Errorf("malformed cell id %q", id)
	}
	parts := strings.SplitN(id[1:], "_", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cell id %q", id)
	}
	latIdx, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cell id %q", id)
	}
	lngIdx, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed cell id %q", id)
	}
	return latIdx, lngIdx, nil
}
