// Board generation: builds the grid and seeds its initial control state.
package world

import (
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/hexfront/internal/control"
)

// GenConfig holds board generation parameters.
type GenConfig struct {
	Radius       int     // Board radius in hexes (4 gives 61 cells)
	Seed         int64   // Noise seed (0 = random)
	NeutralNoise float64 // Peak neutral influence seeded by noise (0 = flat, empty board)
	NoiseScale   float64 // Spatial frequency of the neutral noise
}

// DefaultGenConfig returns the board used by the original game.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:       4,
		Seed:         0,
		NeutralNoise: 0,
		NoiseScale:   0.35,
	}
}

// Generate creates a board and seeds each cell's neutral channel.
func Generate(cfg GenConfig) *Grid {
	g := NewGrid(cfg.Radius)
	if cfg.NeutralNoise <= 0 {
		resolveAll(g)
		return g
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	noise := opensimplex.NewNormalized(seed)

	for i := range g.cells {
		c := &g.cells[i]
		// Hex axial → cartesian: x = q + r*0.5, y = r * sqrt(3)/2
		x := float64(c.Coord.Q) + float64(c.Coord.R)*0.5
		y := float64(c.Coord.R) * math.Sqrt(3.0) / 2.0
		n := noise.Eval2(x*cfg.NoiseScale, y*cfg.NoiseScale)
		c.Control.Set(control.FactionNeutral, n*cfg.NeutralNoise)
	}
	resolveAll(g)
	return g
}

func resolveAll(g *Grid) {
	for i := range g.cells {
		g.cells[i].Faction = g.cells[i].Control.MaxStatus()
	}
}
