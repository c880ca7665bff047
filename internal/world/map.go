package world

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"github.com/talgya/hexfront/internal/control"
)

// Cell is a single hex on the board.
type Cell struct {
	Coord   HexCoord        `json:"coord"`   // Fixed for the cell's lifetime
	Control control.Vector  `json:"control"` // Mutated by injection, decay and diffusion
	Faction control.Faction `json:"faction"` // Dominant faction as of the last resolve

	// Structure standing on this cell, if any. Relation only: the structure's
	// lifecycle is owned elsewhere. uuid.Nil when empty.
	Structure uuid.UUID `json:"structure"`
}

// Occupied reports whether a structure stands on the cell.
func (c *Cell) Occupied() bool {
	return c.Structure != uuid.Nil
}

// Grid holds every cell of a fixed-radius board.
// Cells live in a flat slice addressed by index; the coordinate index and the
// adjacency lists are built once and never change.
type Grid struct {
	Radius int

	cells     []Cell
	index     map[HexCoord]int
	adjacency [][]int
}

// NewGrid creates a board containing every hex within cube distance radius
// of the origin. Cells are ordered by q, then r.
func NewGrid(radius int) *Grid {
	if radius < 0 {
		radius = 0
	}
	count := 3*radius*(radius+1) + 1
	g := &Grid{
		Radius: radius,
		cells:  make([]Cell, 0, count),
		index:  make(map[HexCoord]int, count),
	}

	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			coord := HexCoord{Q: q, R: r}
			if !g.InBounds(coord) {
				continue
			}
			g.index[coord] = len(g.cells)
			g.cells = append(g.cells, Cell{Coord: coord})
		}
	}

	g.adjacency = make([][]int, len(g.cells))
	for i, c := range g.cells {
		for _, n := range c.Coord.Neighbors() {
			if j, ok := g.index[n]; ok {
				g.adjacency[i] = append(g.adjacency[i], j)
			}
		}
	}
	return g
}

// InBounds returns true if the coordinate is within the board radius.
func (g *Grid) InBounds(coord HexCoord) bool {
	return Distance(coord, HexCoord{}) <= g.Radius
}

// Contains reports whether coord has a cell.
func (g *Grid) Contains(coord HexCoord) bool {
	_, ok := g.index[coord]
	return ok
}

// Index returns the slot of coord in Cells.
func (g *Grid) Index(coord HexCoord) (int, bool) {
	i, ok := g.index[coord]
	return i, ok
}

// Lookup returns the cell at coord, or false if coord is off the board.
func (g *Grid) Lookup(coord HexCoord) (*Cell, bool) {
	i, ok := g.index[coord]
	if !ok {
		return nil, false
	}
	return &g.cells[i], true
}

// Get returns the cell at coord, or nil if out of bounds.
func (g *Grid) Get(coord HexCoord) *Cell {
	c, _ := g.Lookup(coord)
	return c
}

// MustCell returns the cell at coord and panics if it is missing.
// Use only for coordinates that came from the grid itself.
func (g *Grid) MustCell(coord HexCoord) *Cell {
	c, ok := g.Lookup(coord)
	if !ok {
		panic(fmt.Sprintf("world: grid of radius %d has no cell at %s", g.Radius, coord))
	}
	return c
}

// Cells returns the backing cell slice. Callers may mutate control state
// but must not reorder it.
func (g *Grid) Cells() []Cell {
	return g.cells
}

// CellAt returns the cell in slot i.
func (g *Grid) CellAt(i int) *Cell {
	return &g.cells[i]
}

// Neighbors returns the slots of the on-board neighbors of slot i.
func (g *Grid) Neighbors(i int) []int {
	return g.adjacency[i]
}

// NeighborCount returns how many on-board neighbors slot i has.
func (g *Grid) NeighborCount(i int) int {
	return len(g.adjacency[i])
}

// RandomCoord picks a populated coordinate.
func (g *Grid) RandomCoord(rng *rand.Rand) HexCoord {
	return g.cells[rng.Intn(len(g.cells))].Coord
}

// CellCount returns the total number of cells in the grid.
func (g *Grid) CellCount() int {
	return len(g.cells)
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(radius=%d, cells=%d)", g.Radius, g.CellCount())
}
