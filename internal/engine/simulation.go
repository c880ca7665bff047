// Simulation ties the board, its injectors and the control systems together
// and runs them each fixed step.
package engine

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"lukechampine.com/blake3"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

var (
	ErrOffGrid          = errors.New("coordinate is off the board")
	ErrOccupied         = errors.New("cell already holds a structure")
	ErrUnknownStructure = errors.New("no such structure")
)

const maxEvents = 1000

// Params tunes the control systems.
type Params struct {
	DecayRate           float64       // Fraction of each channel lost per decay pass (ρ)
	DecayInterval       time.Duration // Simulated time between decay passes
	DiffusionEfficiency float64       // Scales every diffusion transfer, (0, 1]
	DiffusionInterval   time.Duration // Simulated time between diffusion passes
	NeutralBaseline     float64       // Resting value of the neutral channel
}

// DefaultParams returns the tuning used by the original game.
func DefaultParams() Params {
	return Params{
		DecayRate:           0.25,
		DecayInterval:       100 * time.Millisecond,
		DiffusionEfficiency: 0.5,
		DiffusionInterval:   time.Second,
		NeutralBaseline:     0,
	}
}

// Event is a notable occurrence on the board.
type Event struct {
	Seq         uint64 `json:"seq"`
	Tick        uint64 `json:"tick"`
	Description string `json:"description"`
	Category    string `json:"category"` // "ray", "structure", "injection"
}

// Simulation holds the complete board state.
// Every exported method is safe for concurrent use; Step holds the write lock
// for the whole tick, so readers never observe a half-diffused board.
type Simulation struct {
	Grid     *world.Grid
	Params   Params
	LastTick uint64
	Stats    TerritoryStats

	mu sync.RWMutex

	sources     map[StructureID]*Source
	sourceOrder []StructureID
	rays        []*ControlRay

	decayTimer     *Timer
	diffusionTimer *Timer

	events  []Event
	nextSeq uint64
}

// NewSimulation creates a Simulation over an already generated grid.
func NewSimulation(g *world.Grid, p Params) *Simulation {
	s := &Simulation{
		Grid:           g,
		Params:         p,
		sources:        make(map[StructureID]*Source),
		decayTimer:     NewRepeatingTimer(p.DecayInterval),
		diffusionTimer: NewRepeatingTimer(p.DiffusionInterval),
	}
	s.resolve()
	return s
}

// Step advances the board by one fixed step of simulated duration dt.
func (s *Simulation) Step(tick uint64, dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.LastTick = tick
	s.updateSources(dt)
	s.updateRays(dt)

	for n := s.decayTimer.Tick(dt); n > 0; n-- {
		s.decay()
	}
	for n := s.diffusionTimer.Tick(dt); n > 0; n-- {
		Diffuse(s.Grid, s.Params.DiffusionEfficiency)
	}

	s.resolve()
}

// Tick runs exactly one decay pass and one diffusion pass, then resolves
// factions. Injectors and timers are left untouched.
func (s *Simulation) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.decay()
	Diffuse(s.Grid, s.Params.DiffusionEfficiency)
	s.resolve()
}

func (s *Simulation) decay() {
	Decay(s.Grid, s.Params.DecayRate, s.Params.NeutralBaseline)
	for _, ray := range s.rays {
		ray.Delta = decayVector(ray.Delta, s.Params.DecayRate, 0)
	}
}

// InjectAt adds delta to the cell at coord. Off-board coordinates are
// ignored and reported with false.
func (s *Simulation) InjectAt(coord world.HexCoord, delta control.Vector) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inject(coord, delta)
}

func (s *Simulation) inject(coord world.HexCoord, delta control.Vector) bool {
	c, ok := s.Grid.Lookup(coord)
	if !ok {
		return false
	}
	c.Control = c.Control.Add(delta)
	return true
}

// CurrentTick returns the most recently processed tick number.
func (s *Simulation) CurrentTick() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastTick
}

// Cell returns a copy of the cell at coord.
func (s *Simulation) Cell(coord world.HexCoord) (world.Cell, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.Grid.Lookup(coord)
	if !ok {
		return world.Cell{}, false
	}
	return *c, true
}

// Cells returns a copy of every cell in grid order.
func (s *Simulation) Cells() []world.Cell {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]world.Cell(nil), s.Grid.Cells()...)
}

// Digest hashes the control state of every cell. Two boards with the same
// digest hold bit-identical control vectors.
func (s *Simulation) Digest() [32]byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.digest()
}

// DigestHex returns Digest as a hex string.
func (s *Simulation) DigestHex() string {
	d := s.Digest()
	return hex.EncodeToString(d[:])
}

// Observation is the tick, stats and digest of the board read together.
type Observation struct {
	Tick   uint64         `json:"tick"`
	Stats  TerritoryStats `json:"stats"`
	Digest string         `json:"digest"`
}

// Observe reads the tick, stats and digest under one lock, so no injection or
// step can land between them.
func (s *Simulation) Observe() Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d := s.digest()
	return Observation{
		Tick:   s.LastTick,
		Stats:  s.Stats,
		Digest: hex.EncodeToString(d[:]),
	}
}

func (s *Simulation) digest() [32]byte {
	cells := s.Grid.Cells()
	buf := make([]byte, 0, len(cells)*40)
	for _, c := range cells {
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(c.Coord.Q)))
		buf = binary.LittleEndian.AppendUint64(buf, uint64(int64(c.Coord.R)))
		for _, ch := range c.Control.Channels() {
			buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(ch))
		}
	}
	return blake3.Sum256(buf)
}

// RecentEvents returns up to limit of the newest events, oldest first.
func (s *Simulation) RecentEvents(limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start := 0
	if limit > 0 && len(s.events) > limit {
		start = len(s.events) - limit
	}
	return append([]Event(nil), s.events[start:]...)
}

// EventsSince returns the retained events with Seq greater than seq.
func (s *Simulation) EventsSince(seq uint64) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}

// record appends an event. Caller holds the write lock.
func (s *Simulation) record(category, description string) {
	s.nextSeq++
	s.events = append(s.events, Event{
		Seq:         s.nextSeq,
		Tick:        s.LastTick,
		Description: description,
		Category:    category,
	})
	// Trim old events to prevent unbounded growth.
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
	slog.Debug("event", "category", category, "description", description, "tick", s.LastTick)
}
