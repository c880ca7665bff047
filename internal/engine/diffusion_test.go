package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

func totalChannel(g *world.Grid, f control.Faction) float64 {
	var sum float64
	for _, c := range g.Cells() {
		sum += c.Control.Get(f)
	}
	return sum
}

func TestDecayMonotonic(t *testing.T) {
	g := world.NewGrid(0)
	cell := g.MustCell(world.HexCoord{})
	cell.Control = control.Vector{A: 400, B: 3}

	prevA, prevB := cell.Control.A, cell.Control.B
	for i := 0; i < 100; i++ {
		Decay(g, 0.25, 0)
		a, b := cell.Control.A, cell.Control.B
		if prevA > 0 {
			require.Less(t, a, prevA, "pass %d", i)
		} else {
			require.Zero(t, a)
		}
		if prevB > 0 {
			require.Less(t, b, prevB)
		} else {
			require.Zero(t, b)
		}
		prevA, prevB = a, b
	}
	assert.Zero(t, cell.Control.A)
	assert.Zero(t, cell.Control.B)
}

func TestDecayFloorsAtMinValue(t *testing.T) {
	assert.Equal(t, 0.0, decayChannel(0.12, 0, 0.25))
	assert.Equal(t, 75.0, decayChannel(100, 0, 0.25))
}

func TestDecayNeutralTowardBaseline(t *testing.T) {
	g := world.NewGrid(0)
	cell := g.MustCell(world.HexCoord{})
	cell.Control = control.Vector{Neutral: 0}

	for i := 0; i < 60; i++ {
		Decay(g, 0.25, 100)
	}
	assert.Equal(t, 100.0, cell.Control.Neutral)

	cell.Control.Neutral = 300
	for i := 0; i < 60; i++ {
		Decay(g, 0.25, 100)
	}
	assert.Equal(t, 100.0, cell.Control.Neutral)
}

func TestDiffusionFairness(t *testing.T) {
	g := world.NewGrid(1)
	src := g.MustCell(world.HexCoord{})
	dst := g.MustCell(world.HexCoord{Q: 1})
	src.Control.A = 100

	Diffuse(g, 1.0)

	assert.Greater(t, dst.Control.A, 0.0)
	assert.Less(t, src.Control.A, 100.0)
	assert.LessOrEqual(t, src.Control.A+dst.Control.A, 100.0)
	assert.InDelta(t, 100.0, totalChannel(g, control.FactionA), 1e-9)
}

func TestDiffusionPairTransfer(t *testing.T) {
	g := world.NewGrid(1)
	center := g.MustCell(world.HexCoord{})
	ring := g.MustCell(world.HexCoord{Q: 0, R: 1})
	center.Control.B = 40
	ring.Control.B = 10

	Diffuse(g, 0.5)

	// Ring cell has 3 neighbors: share 1/6 of 10 flows to each empty ring neighbor.
	// Center has 6 neighbors: (40-10)/40 * 40/12 * 0.5 flows to the ring cell,
	// 40/12 * 0.5 to each of the other five.
	toRing := 40.0 / 12 * (30.0 / 40) * 0.5
	toEmpty := 40.0 / 12 * 0.5
	assert.InDelta(t, 40-toRing-5*toEmpty, center.Control.B, 1e-9)
	ringOut := 10.0 / 6 * 0.5 * 2
	assert.InDelta(t, 10+toRing-ringOut, ring.Control.B, 1e-9)
}

func TestDiffusionNeverTouchesNeutral(t *testing.T) {
	g := world.NewGrid(1)
	g.MustCell(world.HexCoord{}).Control.Neutral = 300
	Diffuse(g, 1.0)
	assert.Equal(t, 300.0, g.MustCell(world.HexCoord{}).Control.Neutral)
	assert.Zero(t, g.MustCell(world.HexCoord{Q: 1}).Control.Neutral)
}

func TestDiffusionDoesNotIncreaseTotal(t *testing.T) {
	g := world.NewGrid(3)
	for i, c := range g.Cells() {
		cell := g.CellAt(i)
		cell.Control = control.Vector{
			A: float64((c.Coord.Q*37 + c.Coord.R*11 + 500) % 500),
			B: float64((c.Coord.R*53 - c.Coord.Q*7 + 500) % 500),
		}
	}
	// Pin a few cells at the ceiling so receiving clamps are exercised.
	g.MustCell(world.HexCoord{Q: 1, R: 1}).Control.A = control.MaxValue
	g.MustCell(world.HexCoord{Q: 1, R: 0}).Control.A = control.MaxValue - 1

	for pass := 0; pass < 20; pass++ {
		beforeA := totalChannel(g, control.FactionA)
		beforeB := totalChannel(g, control.FactionB)
		Diffuse(g, 1.0)
		require.LessOrEqual(t, totalChannel(g, control.FactionA), beforeA+1e-9)
		require.LessOrEqual(t, totalChannel(g, control.FactionB), beforeB+1e-9)
		for _, c := range g.Cells() {
			for _, ch := range c.Control.Channels() {
				require.GreaterOrEqual(t, ch, 0.0)
				require.LessOrEqual(t, ch, control.MaxValue)
			}
		}
	}
}

func TestDiffusionUniformBoardIsStable(t *testing.T) {
	g := world.NewGrid(2)
	for i := range g.Cells() {
		g.CellAt(i).Control = control.Vector{A: 50, B: 20}
	}
	assert.Zero(t, Diffuse(g, 1.0))
	for _, c := range g.Cells() {
		assert.Equal(t, control.Vector{A: 50, B: 20}, c.Control)
	}
}
