package engine

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

// TerritoryStats summarizes board ownership after a step.
type TerritoryStats struct {
	CellsA       int     `json:"cells_a"`
	CellsB       int     `json:"cells_b"`
	CellsNeutral int     `json:"cells_neutral"`
	TotalA       float64 `json:"total_a"`
	TotalB       float64 `json:"total_b"`
	TotalNeutral float64 `json:"total_neutral"`
	Sources      int     `json:"sources"`
	Rays         int     `json:"rays"`
}

// Cells returns how many cells f holds.
func (t TerritoryStats) Cells(f control.Faction) int {
	switch f {
	case control.FactionA:
		return t.CellsA
	case control.FactionB:
		return t.CellsB
	default:
		return t.CellsNeutral
	}
}

// resolve recomputes every cell's dominant faction, drops references to
// structures that no longer exist, and refreshes the stats.
// Caller holds the write lock.
func (s *Simulation) resolve() {
	var st TerritoryStats
	cells := s.Grid.Cells()
	for i := range cells {
		c := &cells[i]
		c.Faction = c.Control.MaxStatus()
		if c.Occupied() {
			if _, live := s.sources[c.Structure]; !live {
				c.Structure = uuid.Nil
			}
		}

		switch c.Faction {
		case control.FactionA:
			st.CellsA++
		case control.FactionB:
			st.CellsB++
		default:
			st.CellsNeutral++
		}
		st.TotalA += c.Control.A
		st.TotalB += c.Control.B
		st.TotalNeutral += c.Control.Neutral
	}
	st.Sources = len(s.sources)
	st.Rays = len(s.rays)
	s.Stats = st
}

// CurrentStats returns the territory stats of the last resolved step.
func (s *Simulation) CurrentStats() TerritoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Stats
}

// FactionAt returns the dominant faction at coord as of the last step.
func (s *Simulation) FactionAt(coord world.HexCoord) (control.Faction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.Grid.Lookup(coord)
	if !ok {
		return control.FactionNeutral, false
	}
	return c.Faction, true
}

// Ownership returns one faction byte per cell, in grid order.
func (s *Simulation) Ownership() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cells := s.Grid.Cells()
	out := make([]byte, len(cells))
	for i, c := range cells {
		out[i] = byte(c.Faction)
	}
	return out
}

// LogTerritory writes a territory summary for the last resolved step.
func (s *Simulation) LogTerritory(stepSize time.Duration) {
	s.mu.RLock()
	st := s.Stats
	tick := s.LastTick
	s.mu.RUnlock()

	slog.Info("territory report",
		"tick", humanize.Comma(int64(tick)),
		"time", SimTime(tick, stepSize),
		"cells_a", st.CellsA,
		"cells_b", st.CellsB,
		"cells_neutral", st.CellsNeutral,
		"total_a", humanize.Commaf(roundTo(st.TotalA, 1)),
		"total_b", humanize.Commaf(roundTo(st.TotalB, 1)),
		"total_neutral", humanize.Commaf(roundTo(st.TotalNeutral, 1)),
		"sources", st.Sources,
		"rays", st.Rays,
		"share_a", fmt.Sprintf("%.3f", share(st.CellsA, st)),
		"share_b", fmt.Sprintf("%.3f", share(st.CellsB, st)),
	)
}

func share(n int, st TerritoryStats) float64 {
	total := st.CellsA + st.CellsB + st.CellsNeutral
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
