package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/engine"
	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/world"
)

const testKey = "test-admin-key"

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	sim := engine.NewSimulation(world.NewGrid(2), engine.DefaultParams())
	s := &Server{
		Sim:      sim,
		Eng:      engine.NewEngine(),
		AdminKey: testKey,
		Rate:     100,
		Burst:    100,
	}
	return s, s.Handler()
}

func do(t *testing.T, h http.Handler, method, path, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if admin {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestStatus(t *testing.T) {
	s, h := newTestServer(t)
	s.Sim.Step(600, 100*time.Millisecond)

	rec := do(t, h, http.MethodGet, "/api/v1/status", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	decode(t, rec, &got)
	assert.Equal(t, "01:00.000", got["sim_time"])
	assert.EqualValues(t, 19, got["cells"])
	assert.Len(t, got["digest"], 64)
}

func TestMapAndHexDetail(t *testing.T) {
	s, h := newTestServer(t)
	s.Sim.InjectAt(world.HexCoord{Q: 1, R: -1}, control.Vector{B: 50})
	s.Sim.Step(1, 100*time.Millisecond)

	var m struct {
		Radius int        `json:"radius"`
		Cells  []cellJSON `json:"cells"`
	}
	decode(t, do(t, h, http.MethodGet, "/api/v1/map", "", false), &m)
	assert.Equal(t, 2, m.Radius)
	assert.Len(t, m.Cells, 19)

	rec := do(t, h, http.MethodGet, "/api/v1/map/1/-1", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		Cell      cellJSON         `json:"cell"`
		S         int              `json:"s"`
		Neighbors []world.HexCoord `json:"neighbors"`
	}
	decode(t, rec, &detail)
	assert.Equal(t, "b", detail.Cell.Faction)
	assert.Equal(t, 1.0, detail.Cell.Tint.B)
	assert.Equal(t, 0, detail.S)
	assert.Len(t, detail.Neighbors, 6)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/map/7/0", "", false).Code)
}

func TestPixelLookup(t *testing.T) {
	_, h := newTestServer(t)
	x, y := world.HexCoord{Q: -1, R: 2}.Pixel()

	var got struct {
		Coord   world.HexCoord `json:"coord"`
		OnBoard bool           `json:"on_board"`
	}
	path := "/api/v1/pixel?x=" + jsonNumber(x+4) + "&y=" + jsonNumber(y-3)
	decode(t, do(t, h, http.MethodGet, path, "", false), &got)
	assert.Equal(t, world.HexCoord{Q: -1, R: 2}, got.Coord)
	assert.True(t, got.OnBoard)

	decode(t, do(t, h, http.MethodGet, "/api/v1/pixel?x=5000&y=0", "", false), &got)
	assert.False(t, got.OnBoard)

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/pixel?x=a", "", false).Code)
	for _, q := range []string{"x=NaN&y=0", "x=0&y=Inf", "x=-Inf&y=-Inf", "x=1e400&y=0"} {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/v1/pixel?"+q, "", false).Code, q)
	}
}

func jsonNumber(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestAdminAuth(t *testing.T) {
	s, h := newTestServer(t)
	body := `{"q":0,"r":0,"delta":{"a":10}}`

	assert.Equal(t, http.StatusUnauthorized, do(t, h, http.MethodPost, "/api/v1/inject", body, false).Code)

	s.AdminKey = ""
	assert.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/api/v1/inject", body, true).Code)

	c, _ := s.Sim.Cell(world.HexCoord{})
	assert.Zero(t, c.Control.A)
}

func TestInject(t *testing.T) {
	s, h := newTestServer(t)

	var got map[string]bool
	decode(t, do(t, h, http.MethodPost, "/api/v1/inject", `{"q":0,"r":1,"delta":{"a":700}}`, true), &got)
	assert.True(t, got["applied"])
	c, _ := s.Sim.Cell(world.HexCoord{R: 1})
	assert.Equal(t, control.MaxValue, c.Control.A)

	decode(t, do(t, h, http.MethodPost, "/api/v1/inject", `{"q":9,"r":0,"delta":{"a":1}}`, true), &got)
	assert.False(t, got["applied"])

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/inject", `{`, true).Code)
}

func TestFireRay(t *testing.T) {
	s, h := newTestServer(t)
	ox, oy := world.HexCoord{Q: -2}.Pixel()
	tx, ty := world.HexCoord{Q: 2}.Pixel()
	body, _ := json.Marshal(map[string]any{
		"origin": map[string]float64{"x": ox, "y": oy},
		"target": map[string]float64{"x": tx, "y": ty},
		"delta":  map[string]float64{"a": 25},
		"ttl_ms": 500,
	})

	rec := do(t, h, http.MethodPost, "/api/v1/ray", string(body), true)
	require.Equal(t, http.StatusCreated, rec.Code)

	rays := s.Sim.Rays()
	require.Len(t, rays, 1)
	assert.Len(t, rays[0].Path, 5)
	assert.Equal(t, 500*time.Millisecond, rays[0].Remaining)

	var listed []map[string]any
	decode(t, do(t, h, http.MethodGet, "/api/v1/rays", "", false), &listed)
	require.Len(t, listed, 1)
	assert.Equal(t, "E", listed[0]["facing"])
}

func TestSourceLifecycle(t *testing.T) {
	s, h := newTestServer(t)

	rec := do(t, h, http.MethodPost, "/api/v1/source", `{"q":1,"r":0,"delta":{"b":40},"interval_ms":200}`, true)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	decode(t, rec, &created)

	assert.Equal(t, http.StatusConflict,
		do(t, h, http.MethodPost, "/api/v1/source", `{"q":1,"r":0,"delta":{"b":1}}`, true).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodPost, "/api/v1/source", `{"q":5,"r":0,"delta":{"b":1}}`, true).Code)

	var sources []engine.Source
	decode(t, do(t, h, http.MethodGet, "/api/v1/sources", "", false), &sources)
	require.Len(t, sources, 1)
	assert.Equal(t, created.ID, sources[0].ID.String())

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/api/v1/source/"+created.ID, "", true).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/api/v1/source/"+created.ID, "", true).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/api/v1/source/nope", "", true).Code)
	assert.Empty(t, s.Sim.Sources())
}

func TestSpeed(t *testing.T) {
	s, h := newTestServer(t)

	var got map[string]float64
	decode(t, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":4}`, true), &got)
	assert.Equal(t, 4.0, got["speed"])
	assert.Equal(t, 4.0, s.Eng.Speed())

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/api/v1/speed", `{"speed":-1}`, true).Code)

	decode(t, do(t, h, http.MethodGet, "/api/v1/speed", "", false), &got)
	assert.Equal(t, 4.0, got["speed"])
}

func TestEventsFilter(t *testing.T) {
	s, h := newTestServer(t)
	s.Sim.FireControlRay(world.HexCoord{}, world.HexCoord{Q: 1}, control.Vector{A: 1}, time.Second)
	_, err := s.Sim.PlaceSource(world.HexCoord{Q: -1}, control.Vector{A: 1}, time.Second)
	require.NoError(t, err)

	var all, rays []engine.Event
	decode(t, do(t, h, http.MethodGet, "/api/v1/events", "", false), &all)
	decode(t, do(t, h, http.MethodGet, "/api/v1/events?category=ray", "", false), &rays)
	assert.Len(t, all, 2)
	require.Len(t, rays, 1)
	assert.Equal(t, "ray", rays[0].Category)

	var none []engine.Event
	rec := do(t, h, http.MethodGet, "/api/v1/events?category=nothing", "", false)
	decode(t, rec, &none)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func attachHistory(t *testing.T, s *Server) {
	t.Helper()
	db, err := persistence.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s.History, err = persistence.NewRecorder(db)
	require.NoError(t, err)
}

func TestStatsHistory(t *testing.T) {
	s, h := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/v1/stats/history", "", false).Code)
	attachHistory(t, s)

	for tick := uint64(1); tick <= 3; tick++ {
		s.Sim.Step(tick, 100*time.Millisecond)
		require.NoError(t, s.History.Record(s.Sim))
	}

	var rows []persistence.HistoryRow
	decode(t, do(t, h, http.MethodGet, "/api/v1/stats/history?limit=2", "", false), &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(2), rows[0].Tick)
	assert.Equal(t, uint64(3), rows[1].Tick)
}

func TestLatestSnapshot(t *testing.T) {
	s, h := newTestServer(t)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/api/v1/snapshots/latest", "", false).Code)

	attachHistory(t, s)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/snapshots/latest", "", false).Code)

	s.Sim.InjectAt(world.HexCoord{Q: 1, R: -1}, control.Vector{B: 50})
	s.Sim.InjectAt(world.HexCoord{R: 2}, control.Vector{Neutral: 50})
	s.Sim.Step(4, 100*time.Millisecond)
	require.NoError(t, s.History.Snapshot(s.Sim))

	rec := do(t, h, http.MethodGet, "/api/v1/snapshots/latest", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var got struct {
		Run    string      `json:"run"`
		Tick   uint64      `json:"tick"`
		Radius int         `json:"radius"`
		Cells  []ownerJSON `json:"cells"`
	}
	decode(t, rec, &got)
	assert.Equal(t, s.History.Run, got.Run)
	assert.Equal(t, uint64(4), got.Tick)
	assert.Equal(t, 2, got.Radius)
	require.Len(t, got.Cells, 19)

	factions := make(map[world.HexCoord]string, len(got.Cells))
	for _, c := range got.Cells {
		factions[world.HexCoord{Q: c.Q, R: c.R}] = c.Faction
	}
	for _, c := range s.Sim.Cells() {
		assert.Equal(t, c.Faction.String(), factions[c.Coord], "hex %s", c.Coord)
	}
	assert.Equal(t, "b", factions[world.HexCoord{Q: 1, R: -1}])
	assert.Equal(t, "neutral", factions[world.HexCoord{R: 2}])

	s.Sim.Step(5, 100*time.Millisecond)
	require.NoError(t, s.History.Snapshot(s.Sim))
	decode(t, do(t, h, http.MethodGet, "/api/v1/snapshots/latest", "", false), &got)
	assert.Equal(t, uint64(5), got.Tick)
	decode(t, do(t, h, http.MethodGet, "/api/v1/snapshots/4", "", false), &got)
	assert.Equal(t, uint64(4), got.Tick)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/v1/snapshots/9", "", false).Code)
	assert.Equal(t, http.StatusBadRequest,
		do(t, h, http.MethodGet, "/api/v1/snapshots/99999999999999999999999", "", false).Code)
}

func TestLimiterCleanupStops(t *testing.T) {
	s, _ := newTestServer(t)
	s.limiter.Allow("10.0.0.1")

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		s.cleanupLimiter(done, time.Millisecond)
		close(stopped)
	}()
	require.Eventually(t, func() bool { return s.limiter.Clients() == 0 }, time.Second, time.Millisecond)

	close(done)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("cleanup loop still running after done closed")
	}
}

func TestShutdownStopsBackgroundWork(t *testing.T) {
	s, _ := newTestServer(t)
	s.Port = 0
	s.Start()
	require.NotNil(t, s.done)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	select {
	case <-s.done:
	default:
		t.Fatal("done channel left open")
	}
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/inject", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}
