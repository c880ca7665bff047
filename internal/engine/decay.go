package engine

import (
	"math"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

// Decay moves every channel of every cell toward its resting value by the
// fraction rate. Factional channels rest at zero; neutral rests at
// neutralBaseline.
func Decay(g *world.Grid, rate, neutralBaseline float64) {
	cells := g.Cells()
	for i := range cells {
		cells[i].Control = decayVector(cells[i].Control, rate, neutralBaseline)
	}
}

func decayVector(v control.Vector, rate, neutralBaseline float64) control.Vector {
	return control.Vector{
		A:       decayChannel(v.A, 0, rate),
		B:       decayChannel(v.B, 0, rate),
		Neutral: decayChannel(v.Neutral, neutralBaseline, rate),
	}.Clamp()
}

// decayChannel lerps toward target and snaps once within MinValue of it,
// so channels do not drift asymptotically forever.
func decayChannel(v, target, rate float64) float64 {
	next := control.Lerp(v, target, rate)
	if math.Abs(next-target) <= control.MinValue {
		return target
	}
	return next
}
