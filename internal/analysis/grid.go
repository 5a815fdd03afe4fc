package analysis

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadius = 6378137.0 // meters, matches orb/geo

// ProximityGrid buckets participant positions into square cells of a local
// planar projection so close pairs can be found without comparing everyone
// with everyone. Positions are stored as indices, not pointers.
//
// Cell size should equal the query radius: a pair within the radius is then
// always in the same or a neighboring cell.
type ProximityGrid struct {
	origin      orb.Point
	cosLat      float64
	cellSize    float64
	invCellSize float64
	cells       map[cellKey][]uint32
	scratch     []uint32
}

type cellKey struct {
	col, row int
}

// NewProximityGrid creates a grid projected around origin (lon, lat)
func NewProximityGrid(origin orb.Point, cellSize float64) *ProximityGrid {
	if cellSize <= 0 {
		cellSize = 1
	}
	return &ProximityGrid{
		origin:      origin,
		cosLat:      math.Cos(origin[1] * math.Pi / 180),
		cellSize:    cellSize,
		invCellSize: 1 / cellSize,
		cells:       make(map[cellKey][]uint32),
		scratch:     make([]uint32, 0, 16),
	}
}

// Clear empties all cells but keeps their memory
func (g *ProximityGrid) Clear() {
	for k, cell := range g.cells {
		g.cells[k] = cell[:0]
	}
}

// project maps a point to meters east/north of the origin
func (g *ProximityGrid) project(p orb.Point) (x, y float64) {
	x = (p[0] - g.origin[0]) * math.Pi / 180 * earthRadius * g.cosLat
	y = (p[1] - g.origin[1]) * math.Pi / 180 * earthRadius
	return x, y
}

func (g *ProximityGrid) key(x, y float64) cellKey {
	return cellKey{
		col: int(math.Floor(x * g.invCellSize)),
		row: int(math.Floor(y * g.invCellSize)),
	}
}

// Insert adds entity id at point p
func (g *ProximityGrid) Insert(id uint32, p orb.Point) {
	k := g.key(g.project(p))
	g.cells[k] = append(g.cells[k], id)
}

// QueryRadius returns candidate ids that may lie within radius meters of p.
//
// The returned slice is reused by the next call. Candidates can be farther
// than radius; callers do the exact distance check.
func (g *ProximityGrid) QueryRadius(p orb.Point, radius float64) []uint32 {
	g.scratch = g.scratch[:0]

	x, y := g.project(p)
	lo := g.key(x-radius, y-radius)
	hi := g.key(x+radius, y+radius)

	for row := lo.row; row <= hi.row; row++ {
		for col := lo.col; col <= hi.col; col++ {
			g.scratch = append(g.scratch, g.cells[cellKey{col, row}]...)
		}
	}
	return g.scratch
}

// gridStats contains grid statistics for debugging
type gridStats struct {
	NonEmptyCells int
	TotalEntities int
	MaxInCell     int
}

// stats returns occupancy figures
func (g *ProximityGrid) stats() gridStats {
	var s gridStats
	for _, cell := range g.cells {
		if len(cell) == 0 {
			continue
		}
		s.NonEmptyCells++
		s.TotalEntities += len(cell)
		if len(cell) > s.MaxInCell {
			s.MaxInCell = len(cell)
		}
	}
	return s
}
