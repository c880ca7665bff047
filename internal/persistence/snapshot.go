package persistence

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Snapshot is the ownership map of a board at one tick: one faction byte per
// cell in grid order.
type Snapshot struct {
	Run       string
	Tick      uint64
	Radius    int
	Ownership []byte
}

type snapshotRow struct {
	Run    string `db:"run"`
	Tick   uint64 `db:"tick"`
	Radius int    `db:"radius"`
	Cells  int    `db:"cells"`
	Data   []byte `db:"data"`
}

// SaveSnapshot stores an lz4-compressed ownership map.
func (db *DB) SaveSnapshot(s Snapshot) error {
	data, err := compressLZ4(s.Ownership)
	if err != nil {
		return fmt.Errorf("compress snapshot tick %d: %w", s.Tick, err)
	}
	_, err = db.conn.Exec(
		"INSERT OR REPLACE INTO ownership_snapshots (run, tick, radius, cells, data) VALUES (?, ?, ?, ?, ?)",
		s.Run, s.Tick, s.Radius, len(s.Ownership), data,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot tick %d: %w", s.Tick, err)
	}
	return nil
}

// LoadSnapshot reads the snapshot of a run at tick.
func (db *DB) LoadSnapshot(run string, tick uint64) (*Snapshot, error) {
	var row snapshotRow
	err := db.conn.Get(&row,
		"SELECT run, tick, radius, cells, data FROM ownership_snapshots WHERE run = ? AND tick = ?",
		run, tick,
	)
	if err != nil {
		return nil, err
	}
	return row.decode()
}

// LatestSnapshot reads the newest snapshot of a run.
func (db *DB) LatestSnapshot(run string) (*Snapshot, error) {
	var row snapshotRow
	err := db.conn.Get(&row,
		"SELECT run, tick, radius, cells, data FROM ownership_snapshots WHERE run = ? ORDER BY tick DESC LIMIT 1",
		run,
	)
	if err != nil {
		return nil, err
	}
	return row.decode()
}

func (r snapshotRow) decode() (*Snapshot, error) {
	own, err := decompressLZ4(r.Data)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot tick %d: %w", r.Tick, err)
	}
	if len(own) != r.Cells {
		return nil, fmt.Errorf("snapshot tick %d: %d cells stored, %d decoded", r.Tick, r.Cells, len(own))
	}
	return &Snapshot{Run: r.Run, Tick: r.Tick, Radius: r.Radius, Ownership: own}, nil
}

func compressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompressLZ4(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	zr := lz4.NewReader(bytes.NewReader(src))
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
