// Package world provides the hex board: coordinates, pixel layout,
// line drawing, and the fixed-radius cell grid.
// Uses axial coordinates (q, r) for the hex grid.
package world

import "fmt"

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q" yaml:"q"`
	R int `json:"r" yaml:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Add returns the coordinate-wise sum.
func (h HexCoord) Add(o HexCoord) HexCoord {
	return HexCoord{Q: h.Q + o.Q, R: h.R + o.R}
}

// Sub returns the coordinate-wise difference.
func (h HexCoord) Sub(o HexCoord) HexCoord {
	return HexCoord{Q: h.Q - o.Q, R: h.R - o.R}
}

// Scale multiplies both axes by k.
func (h HexCoord) Scale(k int) HexCoord {
	return HexCoord{Q: h.Q * k, R: h.R * k}
}

func (h HexCoord) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// Direction names one of the six hex neighbors.
type Direction uint8

const (
	NE Direction = iota
	E
	SE
	SW
	W
	NW
)

// HexNeighborDirections defines the six neighbor offsets in axial coordinates,
// indexed by Direction.
var HexNeighborDirections = [6]HexCoord{
	NE: {Q: 1, R: -1},
	E:  {Q: 1, R: 0},
	SE: {Q: 0, R: 1},
	SW: {Q: -1, R: 1},
	W:  {Q: -1, R: 0},
	NW: {Q: 0, R: -1},
}

var directionNames = [6]string{"NE", "E", "SE", "SW", "W", "NW"}

// Offset returns the unit step for d.
func (d Direction) Offset() HexCoord {
	return HexNeighborDirections[d%6]
}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "?"
}

// Neighbor returns the adjacent coordinate in direction d.
func (h HexCoord) Neighbor(d Direction) HexCoord {
	return h.Add(d.Offset())
}

// Neighbors returns the six adjacent hex coordinates, in Direction order.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range HexNeighborDirections {
		result[i] = h.Add(dir)
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	d := a.Sub(b)
	return (abs(d.Q) + abs(d.Q+d.R) + abs(d.R)) / 2
}

// Distance returns the hex distance from h to o.
func (h HexCoord) Distance(o HexCoord) int {
	return Distance(h, o)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
