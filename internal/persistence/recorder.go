package persistence

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/talgya/hexfront/internal/engine"
)

// Recorder writes the history of one simulation run. Each run gets its own
// id so ticks from separate runs never collide.
type Recorder struct {
	db  *DB
	Run string

	mu      sync.Mutex
	lastSeq uint64
}

// NewRecorder starts a new run and stores its id as the last_run meta key.
func NewRecorder(db *DB) (*Recorder, error) {
	r := &Recorder{db: db, Run: uuid.NewString()}
	if err := db.SaveMeta("last_run", r.Run); err != nil {
		return nil, fmt.Errorf("save meta: %w", err)
	}
	return r, nil
}

// Record stores the territory summary of the last resolved step and any
// events raised since the previous call.
func (r *Recorder) Record(sim *engine.Simulation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obs := sim.Observe()
	st := obs.Stats
	row := HistoryRow{
		Run:          r.Run,
		Tick:         obs.Tick,
		CellsA:       st.CellsA,
		CellsB:       st.CellsB,
		CellsNeutral: st.CellsNeutral,
		TotalA:       st.TotalA,
		TotalB:       st.TotalB,
		TotalNeutral: st.TotalNeutral,
		Sources:      st.Sources,
		Rays:         st.Rays,
		Digest:       obs.Digest,
	}
	if err := r.db.SaveHistory(row); err != nil {
		return fmt.Errorf("save history: %w", err)
	}

	events := sim.EventsSince(r.lastSeq)
	if err := r.db.SaveEvents(r.Run, events); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if n := len(events); n > 0 {
		r.lastSeq = events[n-1].Seq
	}
	if err := r.db.SaveMeta("last_tick", fmt.Sprintf("%d", row.Tick)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Debug("history recorded", "run", r.Run[:8], "tick", row.Tick, "events", len(events))
	return nil
}

// Snapshot stores the current ownership map.
func (r *Recorder) Snapshot(sim *engine.Simulation) error {
	return r.db.SaveSnapshot(Snapshot{
		Run:       r.Run,
		Tick:      sim.CurrentTick(),
		Radius:    sim.Grid.Radius,
		Ownership: sim.Ownership(),
	})
}

// LatestSnapshot returns the newest ownership map of this run, or
// sql.ErrNoRows when none has been stored.
func (r *Recorder) LatestSnapshot() (*Snapshot, error) {
	return r.db.LatestSnapshot(r.Run)
}

// SnapshotAt returns the ownership map of this run taken at tick.
func (r *Recorder) SnapshotAt(tick uint64) (*Snapshot, error) {
	return r.db.LoadSnapshot(r.Run, tick)
}

// History returns up to limit of the newest rows of this run, oldest first.
func (r *Recorder) History(limit int) ([]HistoryRow, error) {
	return r.db.History(r.Run, limit)
}

// Close closes the underlying database.
func (r *Recorder) Close() error {
	return r.db.Close()
}
