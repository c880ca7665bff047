package engine

import (
	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

// Diffuse runs one diffusion pass: for every adjacent pair of cells, each
// competing channel flows from the richer cell to the poorer one.
//
// The pass is two-phase. All transfers are computed from a snapshot of the
// board taken before the pass, then committed together, so no transfer sees
// another transfer's effect. Returns the total amount moved.
func Diffuse(g *world.Grid, efficiency float64) float64 {
	cells := g.Cells()
	snapshot := make([][3]float64, len(cells))
	for i := range cells {
		snapshot[i] = cells[i].Control.Channels()
	}
	next := make([][3]float64, len(cells))
	copy(next, snapshot)

	var moved float64
	for i := range cells {
		for _, j := range g.Neighbors(i) {
			if j < i {
				continue // each unordered pair once
			}
			for _, f := range control.Competing {
				src, dst := i, j
				switch {
				case snapshot[j][f] > snapshot[i][f]:
					src, dst = j, i
				case snapshot[j][f] == snapshot[i][f]:
					continue
				}
				amount := transferAmount(snapshot[src][f], snapshot[dst][f], g.NeighborCount(src), efficiency)
				next[src][f] -= amount
				next[dst][f] += amount
				moved += amount
			}
		}
	}

	for i := range cells {
		cells[i].Control = control.FromChannels(next[i])
	}
	return moved
}

// transferAmount is what a cell holding from passes to a neighbor holding to.
// The share is split across all of the source's neighbors, so at most half of
// the source can leave it in one pass.
func transferAmount(from, to float64, neighbors int, efficiency float64) float64 {
	if from <= 0 || from <= to || neighbors == 0 {
		return 0
	}
	fraction := (from - to) / from
	maxShare := 1 / (2 * float64(neighbors))
	return from * maxShare * fraction * efficiency
}
