// Package engine provides the fixed-timestep simulation loop and the
// control systems it drives: injection, decay, diffusion and faction resolution.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultFixedStep is the simulated duration of one tick.
const DefaultFixedStep = 100 * time.Millisecond

// Engine drives the simulation forward in fixed steps. Simulated time per
// tick is always FixedStep; Speed only changes how fast ticks happen in real
// time, so the board evolves the same way at any frame or playback rate.
type Engine struct {
	Tick      uint64        // Current tick counter (monotonic, never resets)
	FixedStep time.Duration // Simulated duration of one tick

	// Callbacks, populated during setup.
	OnStep func(tick uint64, dt time.Duration) // Advances the simulation
	OnTick func(tick uint64)                   // After every step

	schedules []schedule
	running   atomic.Bool

	mu    sync.Mutex
	speed float64 // Multiplier: 1.0 = real-time, 0 = paused
}

type schedule struct {
	every uint64
	fn    func(tick uint64)
}

// NewEngine creates a simulation engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		FixedStep: DefaultFixedStep,
		speed:     1.0,
	}
}

// Every registers fn to run after each step whose tick is a multiple of n.
func (e *Engine) Every(n uint64, fn func(tick uint64)) {
	if n == 0 || fn == nil {
		return
	}
	e.schedules = append(e.schedules, schedule{every: n, fn: fn})
}

// Speed returns the real-time multiplier.
func (e *Engine) Speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.speed
}

// SetSpeed changes the real-time multiplier. 0 pauses.
func (e *Engine) SetSpeed(speed float64) {
	if speed < 0 {
		speed = 0
	}
	e.mu.Lock()
	e.speed = speed
	e.mu.Unlock()
}

// Running reports whether Run is looping.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Run starts the simulation loop. Blocks until Stop is called or ctx ends.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	defer e.running.Store(false)
	slog.Info("simulation engine started", "tick", e.Tick, "speed", e.Speed(), "fixed_step", e.FixedStep)

	for e.running.Load() {
		speed := e.Speed()
		if speed <= 0 {
			// Paused: sleep briefly and check again.
			if !sleepCtx(ctx, 100*time.Millisecond) {
				break
			}
			continue
		}

		start := time.Now()

		e.step()

		// Sleep for the remainder of the tick interval, adjusted for speed.
		elapsed := time.Since(start)
		target := time.Duration(float64(e.FixedStep) / speed)
		if elapsed < target {
			if !sleepCtx(ctx, target-elapsed) {
				break
			}
		} else if ctx.Err() != nil {
			break
		}
	}

	slog.Info("simulation engine stopped", "tick", e.Tick)
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Advance runs n steps immediately, without pacing.
func (e *Engine) Advance(n int) {
	for i := 0; i < n; i++ {
		e.step()
	}
}

// step advances the simulation by one tick.
func (e *Engine) step() {
	e.Tick++

	if e.OnStep != nil {
		e.OnStep(e.Tick, e.FixedStep)
	}
	if e.OnTick != nil {
		e.OnTick(e.Tick)
	}
	for _, s := range e.schedules {
		if e.Tick%s.every == 0 {
			s.fn(e.Tick)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// SimTime returns a human-readable simulated time for a tick number.
func SimTime(tick uint64, step time.Duration) string {
	total := time.Duration(tick) * step
	minutes := int(total / time.Minute)
	seconds := total % time.Minute
	return fmt.Sprintf("%02d:%06.3f", minutes, seconds.Seconds())
}
