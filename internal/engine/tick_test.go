package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineAdvanceAndSchedules(t *testing.T) {
	e := NewEngine()
	var steps []uint64
	var stepDt time.Duration
	e.OnStep = func(tick uint64, dt time.Duration) {
		steps = append(steps, tick)
		stepDt = dt
	}
	var fired []uint64
	e.Every(10, func(tick uint64) { fired = append(fired, tick) })
	e.Every(0, func(uint64) { t.Fatal("zero period must never run") })

	e.Advance(25)

	assert.Equal(t, uint64(25), e.Tick)
	assert.Len(t, steps, 25)
	assert.Equal(t, DefaultFixedStep, stepDt)
	assert.Equal(t, []uint64{10, 20}, fired)
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	e := NewEngine()
	e.FixedStep = time.Millisecond
	e.SetSpeed(4)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()

	require.Eventually(t, e.Running, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, e.Running())
	assert.Greater(t, e.Tick, uint64(0))
}

func TestEngineSpeed(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 1.0, e.Speed())
	e.SetSpeed(-3)
	assert.Zero(t, e.Speed())
	e.SetSpeed(2.5)
	assert.Equal(t, 2.5, e.Speed())
}

func TestSimTime(t *testing.T) {
	assert.Equal(t, "01:00.000", SimTime(600, 100*time.Millisecond))
	assert.Equal(t, "00:01.500", SimTime(15, 100*time.Millisecond))
	assert.Equal(t, "00:00.000", SimTime(0, DefaultFixedStep))
}
