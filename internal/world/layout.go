package world

import "math"

// HexSize is the distance in pixels from a hex center to any corner.
// Hexes are pointy-top.
const HexSize = 32.0

var sqrt3 = math.Sqrt(3)

// Pixel returns the pixel position of the hex center.
func (h HexCoord) Pixel() (x, y float64) {
	q, r := float64(h.Q), float64(h.R)
	x = HexSize * (sqrt3*q + sqrt3/2*r)
	y = HexSize * (3.0 / 2.0 * r)
	return x, y
}

// FromPixel returns the hex containing the pixel position (x, y).
func FromPixel(x, y float64) HexCoord {
	q := (sqrt3/3*x - 1.0/3*y) / HexSize
	r := (2.0 / 3 * y) / HexSize
	rq, rr, _ := CubeRound(q, r, -q-r)
	return HexCoord{Q: rq, R: rr}
}

// CubeRound snaps fractional cube coordinates to the nearest hex.
// The axis with the largest rounding error is rebuilt from the other two so
// that q + r + s == 0 holds exactly. Ties go to s, then r.
func CubeRound(qf, rf, sf float64) (q, r, s int) {
	rq := math.Round(qf)
	rr := math.Round(rf)
	rs := math.Round(sf)

	qDiff := math.Abs(rq - qf)
	rDiff := math.Abs(rr - rf)
	sDiff := math.Abs(rs - sf)

	if qDiff > rDiff && qDiff > sDiff {
		rq = -rr - rs
	} else if rDiff > sDiff {
		rr = -rq - rs
	} else {
		rs = -rq - rr
	}
	return int(rq), int(rr), int(rs)
}
