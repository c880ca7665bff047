package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/world"
)

// RayID identifies a control ray.
type RayID = uuid.UUID

// ControlRay is a beam fired by a directed structure. Its path is computed
// once and holds only the on-board hexes of the line from Origin to Target;
// while its TTL runs it adds Delta to each of them on every step.
type ControlRay struct {
	ID     RayID
	Origin world.HexCoord
	Target world.HexCoord
	Path   []world.HexCoord
	Delta  control.Vector

	ttl *Timer
}

// RayInfo is a read-only view of a live ray.
type RayInfo struct {
	ID        RayID            `json:"id"`
	Origin    world.HexCoord   `json:"origin"`
	Target    world.HexCoord   `json:"target"`
	Facing    string           `json:"facing"`
	Path      []world.HexCoord `json:"path"`
	Delta     control.Vector   `json:"delta"`
	Remaining time.Duration    `json:"remaining"`
}

// NewControlRay builds a ray from origin to target living for ttl on board g.
func NewControlRay(g *world.Grid, origin, target world.HexCoord, delta control.Vector, ttl time.Duration) *ControlRay {
	return &ControlRay{
		ID:     uuid.New(),
		Origin: origin,
		Target: target,
		Path:   boardPath(g, origin, target),
		Delta:  delta.Clamp(),
		ttl:    NewOnceTimer(ttl),
	}
}

// boardPath returns the on-board hexes of the line from origin to target.
// The hex at step i lies within D-i and D+i of the center, where D is the
// origin's distance from it, so only steps D-Radius through D+Radius can be
// on the board however far away either end lies.
func boardPath(g *world.Grid, origin, target world.HexCoord) []world.HexCoord {
	d := world.Distance(origin, world.HexCoord{})
	var path []world.HexCoord
	for _, h := range world.LineRange(origin, target, d-g.Radius, d+g.Radius) {
		if g.Contains(h) {
			path = append(path, h)
		}
	}
	return path
}

// FireControlRay starts a beam from origin to target.
func (s *Simulation) FireControlRay(origin, target world.HexCoord, delta control.Vector, ttl time.Duration) RayID {
	ray := NewControlRay(s.Grid, origin, target, delta, ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.rays = append(s.rays, ray)
	s.record("ray", fmt.Sprintf("ray %s fired %s→%s (%d hexes) carrying %s for %s",
		shortID(ray.ID), origin, target, len(ray.Path), ray.Delta, ttl))
	return ray.ID
}

// FireControlRayFromPixels starts a beam between two pixel positions.
func (s *Simulation) FireControlRayFromPixels(ox, oy, tx, ty float64, delta control.Vector, ttl time.Duration) RayID {
	return s.FireControlRay(world.FromPixel(ox, oy), world.FromPixel(tx, ty), delta, ttl)
}

// Rays returns a view of every live ray.
func (s *Simulation) Rays() []RayInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RayInfo, 0, len(s.rays))
	for _, r := range s.rays {
		out = append(out, RayInfo{
			ID:        r.ID,
			Origin:    r.Origin,
			Target:    r.Target,
			Facing:    world.DirectionTo(r.Origin, r.Target).String(),
			Path:      append([]world.HexCoord(nil), r.Path...),
			Delta:     r.Delta,
			Remaining: r.ttl.Remaining(),
		})
	}
	return out
}

// updateRays ages every ray, drops the expired and the spent ones, and
// applies the survivors along their paths.
func (s *Simulation) updateRays(dt time.Duration) {
	live := s.rays[:0]
	for _, r := range s.rays {
		if r.ttl.Tick(dt) > 0 {
			s.record("ray", fmt.Sprintf("ray %s expired", shortID(r.ID)))
			continue
		}
		if r.Delta.Empty() {
			s.record("ray", fmt.Sprintf("ray %s faded out", shortID(r.ID)))
			continue
		}
		for _, h := range r.Path {
			s.inject(h, r.Delta)
		}
		live = append(live, r)
	}
	clear(s.rays[len(live):])
	s.rays = live
}
