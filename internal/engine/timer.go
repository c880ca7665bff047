package engine

import "time"

// Timer counts simulated time. A repeating timer wraps around and may finish
// several times in one Tick; a one-shot timer finishes once and stays finished.
type Timer struct {
	Duration  time.Duration
	Repeating bool

	elapsed  time.Duration
	finished bool
}

// NewRepeatingTimer returns a timer that fires every d.
func NewRepeatingTimer(d time.Duration) *Timer {
	return &Timer{Duration: d, Repeating: true}
}

// NewOnceTimer returns a timer that fires once after d.
func NewOnceTimer(d time.Duration) *Timer {
	return &Timer{Duration: d}
}

// Tick advances the timer by dt and returns how many times it finished.
// A non-positive Duration finishes once per Tick.
func (t *Timer) Tick(dt time.Duration) int {
	if !t.Repeating && t.finished {
		return 0
	}
	if t.Duration <= 0 {
		t.finished = true
		return 1
	}

	t.elapsed += dt
	if t.elapsed < t.Duration {
		return 0
	}
	t.finished = true
	if !t.Repeating {
		t.elapsed = t.Duration
		return 1
	}
	n := int(t.elapsed / t.Duration)
	t.elapsed %= t.Duration
	return n
}

// Finished reports whether the timer has completed at least once.
func (t *Timer) Finished() bool {
	return t.finished
}

// Remaining returns the simulated time left until the next completion.
func (t *Timer) Remaining() time.Duration {
	if !t.Repeating && t.finished {
		return 0
	}
	return t.Duration - t.elapsed
}
