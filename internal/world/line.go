package world

import "github.com/talgya/hexfront/internal/control"

// cubeLerp interpolates the cube coordinates of a and b by t.
func cubeLerp(a, b HexCoord, t float64) (q, r, s float64) {
	q = control.Lerp(float64(a.Q), float64(b.Q), t)
	r = control.Lerp(float64(a.R), float64(b.R), t)
	s = control.Lerp(float64(a.S()), float64(b.S()), t)
	return q, r, s
}

func roundedLerp(a, b HexCoord, t float64) HexCoord {
	q, r, _ := CubeRound(cubeLerp(a, b, t))
	return HexCoord{Q: q, R: r}
}

// Line returns the hexes on the straight line from a to b, both inclusive.
// The result has Distance(a, b)+1 entries.
func Line(a, b HexCoord) []HexCoord {
	return LineRange(a, b, 0, Distance(a, b))
}

// LineRange returns the hexes of Line(a, b) at steps from through to, both
// inclusive and clipped to the line. Samples still divide the full line, so
// the result matches the same stretch of Line exactly.
func LineRange(a, b HexCoord, from, to int) []HexCoord {
	n := Distance(a, b)
	from, to = max(from, 0), min(to, n)
	if from > to {
		return nil
	}
	if n == 0 {
		return []HexCoord{a}
	}
	line := make([]HexCoord, 0, to-from+1)
	for i := from; i <= to; i++ {
		line = append(line, roundedLerp(a, b, float64(i)/float64(n)))
	}
	return line
}

// DirectionTo returns the direction of the first step on the line from a to b.
// Identical coordinates face E.
func DirectionTo(a, b HexCoord) Direction {
	n := Distance(a, b)
	if n == 0 {
		return E
	}
	step := roundedLerp(a, b, 1/float64(n)).Sub(a)
	for d, off := range HexNeighborDirections {
		if off == step {
			return Direction(d)
		}
	}
	return E
}
