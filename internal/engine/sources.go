package engine

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

// StructureID identifies a structure standing on the board.
type StructureID = uuid.UUID

// Source is a point injector: a structure that adds a fixed control vector
// to the cell it stands on every Interval, like an energy source or factory.
type Source struct {
	ID       StructureID    `json:"id"`
	Coord    world.HexCoord `json:"coord"`
	Delta    control.Vector `json:"delta"`
	Interval time.Duration  `json:"interval"`

	reload *Timer
}

// CanPlace reports why a structure cannot stand at coord, or nil if it can.
func (s *Simulation) CanPlace(coord world.HexCoord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.canPlace(coord)
}

func (s *Simulation) canPlace(coord world.HexCoord) error {
	c, ok := s.Grid.Lookup(coord)
	if !ok {
		return fmt.Errorf("place at %s: %w", coord, ErrOffGrid)
	}
	if c.Occupied() {
		if _, live := s.sources[c.Structure]; live {
			return fmt.Errorf("place at %s: %w", coord, ErrOccupied)
		}
	}
	return nil
}

// PlaceSource puts a point injector on the board.
func (s *Simulation) PlaceSource(coord world.HexCoord, delta control.Vector, interval time.Duration) (StructureID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.canPlace(coord); err != nil {
		return uuid.Nil, err
	}

	src := &Source{
		ID:       uuid.New(),
		Coord:    coord,
		Delta:    delta.Clamp(),
		Interval: interval,
		reload:   NewRepeatingTimer(interval),
	}
	s.sources[src.ID] = src
	s.sourceOrder = append(s.sourceOrder, src.ID)
	s.Grid.MustCell(coord).Structure = src.ID

	s.record("structure", fmt.Sprintf("source %s placed at %s injecting %s every %s",
		shortID(src.ID), coord, src.Delta, interval))
	return src.ID, nil
}

// RemoveSource takes a point injector off the board. The cell's reference to
// it is cleared at the end of the next step.
func (s *Simulation) RemoveSource(id StructureID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	src, ok := s.sources[id]
	if !ok {
		return fmt.Errorf("remove %s: %w", id, ErrUnknownStructure)
	}
	delete(s.sources, id)
	s.sourceOrder = slices.DeleteFunc(s.sourceOrder, func(o StructureID) bool { return o == id })

	s.record("structure", fmt.Sprintf("source %s removed from %s", shortID(id), src.Coord))
	return nil
}

// Sources returns a copy of every live source in placement order.
func (s *Simulation) Sources() []Source {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Source, 0, len(s.sourceOrder))
	for _, id := range s.sourceOrder {
		src := *s.sources[id]
		src.reload = nil
		out = append(out, src)
	}
	return out
}

// updateSources fires every source whose reload timer completed during dt.
func (s *Simulation) updateSources(dt time.Duration) {
	for _, id := range s.sourceOrder {
		src := s.sources[id]
		for n := src.reload.Tick(dt); n > 0; n-- {
			s.inject(src.Coord, src.Delta)
		}
	}
}

func shortID(id uuid.UUID) string {
	return id.String()[:8]
}
