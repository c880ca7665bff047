// Package api provides the HTTP API for observing a running board.
// GET endpoints are public (read-only observation).
// POST and DELETE endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/engine"
	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/world"
)

const (
	defaultRayTTL         = 3 * time.Second
	defaultSourceInterval = 5 * time.Second
	maxSpeed              = 1000
)

// Server serves the board over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Eng      *engine.Engine
	History  *persistence.Recorder // nil = history endpoints unavailable
	Port     int
	AdminKey string  // Bearer token for admin endpoints. Empty = admin disabled.
	Rate     float64 // Admin requests per second per client
	Burst    int

	limiter  *RateLimiter
	srv      *http.Server
	done     chan struct{}
	stopOnce sync.Once
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	if s.limiter == nil {
		s.limiter = NewRateLimiter(s.Rate, s.Burst)
	}
	admin := func(h http.HandlerFunc) http.HandlerFunc {
		return s.adminOnly(RateLimitMiddleware(s.limiter, h))
	}

	r := mux.NewRouter()
	v1 := r.PathPrefix("/api/v1").Subrouter()

	// Public endpoints (GET, read-only).
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	v1.HandleFunc("/map", s.handleMap).Methods(http.MethodGet)
	v1.HandleFunc("/map/{q:-?[0-9]+}/{r:-?[0-9]+}", s.handleHexDetail).Methods(http.MethodGet)
	v1.HandleFunc("/pixel", s.handlePixel).Methods(http.MethodGet)
	v1.HandleFunc("/rays", s.handleRays).Methods(http.MethodGet)
	v1.HandleFunc("/sources", s.handleSources).Methods(http.MethodGet)
	v1.HandleFunc("/events", s.handleEvents).Methods(http.MethodGet)
	v1.HandleFunc("/stats/history", s.handleStatsHistory).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/latest", s.handleSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/snapshots/{tick:[0-9]+}", s.handleSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/speed", s.handleSpeed).Methods(http.MethodGet)

	// Admin endpoints (require bearer token).
	v1.HandleFunc("/inject", admin(s.handleInject)).Methods(http.MethodPost)
	v1.HandleFunc("/ray", admin(s.handleRay)).Methods(http.MethodPost)
	v1.HandleFunc("/source", admin(s.handlePlaceSource)).Methods(http.MethodPost)
	v1.HandleFunc("/source/{id}", admin(s.handleRemoveSource)).Methods(http.MethodDelete)
	v1.HandleFunc("/speed", admin(s.handleSpeed)).Methods(http.MethodPost)

	return corsMiddleware(r)
}

// Start begins serving the HTTP API in a goroutine.
func (s *Server) Start() {
	addr := fmt.Sprintf(":%d", s.Port)
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	s.done = make(chan struct{})
	go s.cleanupLimiter(s.done, time.Hour)
}

// cleanupLimiter drops idle rate limit buckets every interval until done closes.
func (s *Server) cleanupLimiter(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			s.limiter.Cleanup(interval)
		}
	}
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	s.stopOnce.Do(func() { close(s.done) })
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS env var to a comma-separated list of allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on mutating requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no HEXFRONT_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

type tintJSON struct {
	A       float64 `json:"a"`
	Neutral float64 `json:"neutral"`
	B       float64 `json:"b"`
}

type cellJSON struct {
	Q         int            `json:"q"`
	R         int            `json:"r"`
	Control   control.Vector `json:"control"`
	Faction   string         `json:"faction"`
	Tint      tintJSON       `json:"tint"`
	Structure *uuid.UUID     `json:"structure,omitempty"`
}

func toCellJSON(c world.Cell) cellJSON {
	a, n, b := c.Control.Tint()
	out := cellJSON{
		Q:       c.Coord.Q,
		R:       c.Coord.R,
		Control: c.Control,
		Faction: c.Faction.String(),
		Tint:    tintJSON{A: a, Neutral: n, B: b},
	}
	if c.Occupied() {
		id := c.Structure
		out.Structure = &id
	}
	return out
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	obs := s.Sim.Observe()
	status := map[string]any{
		"name":     "hexfront",
		"tick":     obs.Tick,
		"sim_time": engine.SimTime(obs.Tick, s.Eng.FixedStep),
		"speed":    s.Eng.Speed(),
		"running":  s.Eng.Running(),
		"radius":   s.Sim.Grid.Radius,
		"cells":    s.Sim.Grid.CellCount(),
		"stats":    obs.Stats,
		"digest":   obs.Digest,
	}
	if s.History != nil {
		status["run"] = s.History.Run
	}
	writeJSON(w, status)
}

// handleMap returns every cell for the hex map renderer.
func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	cells := s.Sim.Cells()
	out := make([]cellJSON, 0, len(cells))
	for _, c := range cells {
		out = append(out, toCellJSON(c))
	}
	writeJSON(w, map[string]any{
		"radius":   s.Sim.Grid.Radius,
		"hex_size": world.HexSize,
		"cells":    out,
	})
}

func (s *Server) handleHexDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	q, err1 := strconv.Atoi(vars["q"])
	rr, err2 := strconv.Atoi(vars["r"])
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid coordinates", http.StatusBadRequest)
		return
	}

	coord := world.HexCoord{Q: q, R: rr}
	cell, ok := s.Sim.Cell(coord)
	if !ok {
		http.Error(w, "hex not found", http.StatusNotFound)
		return
	}

	neighbors := make([]world.HexCoord, 0, 6)
	for _, n := range coord.Neighbors() {
		if s.Sim.Grid.Contains(n) {
			neighbors = append(neighbors, n)
		}
	}
	x, y := coord.Pixel()
	writeJSON(w, map[string]any{
		"cell":      toCellJSON(cell),
		"s":         coord.S(),
		"pixel":     map[string]float64{"x": x, "y": y},
		"neighbors": neighbors,
	})
}

// handlePixel maps a screen position to the hex under it.
func (s *Server) handlePixel(w http.ResponseWriter, r *http.Request) {
	x, err1 := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	y, err2 := strconv.ParseFloat(r.URL.Query().Get("y"), 64)
	if err1 != nil || err2 != nil {
		http.Error(w, "usage: /api/v1/pixel?x=&y=", http.StatusBadRequest)
		return
	}
	if !finite(x) || !finite(y) {
		http.Error(w, "x and y must be finite", http.StatusBadRequest)
		return
	}

	coord := world.FromPixel(x, y)
	resp := map[string]any{"coord": coord, "on_board": false}
	if cell, ok := s.Sim.Cell(coord); ok {
		resp["on_board"] = true
		resp["cell"] = toCellJSON(cell)
	}
	writeJSON(w, resp)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func (s *Server) handleRays(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Rays())
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Sources())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	events := s.Sim.RecentEvents(limit)

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events)
}

func (s *Server) handleStatsHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}

	limit := 30
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	rows, err := s.History.History(limit)
	if err != nil {
		slog.Error("stats history query failed", "error", err)
		// Return empty array instead of error: table may not have data yet.
		writeJSON(w, []persistence.HistoryRow{})
		return
	}
	if rows == nil {
		rows = []persistence.HistoryRow{}
	}
	writeJSON(w, rows)
}

type ownerJSON struct {
	Q       int    `json:"q"`
	R       int    `json:"r"`
	Faction string `json:"faction"`
}

// handleSnapshot returns a stored ownership map of this run: the newest one,
// or the one taken at the tick in the path.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		http.Error(w, "history not available", http.StatusServiceUnavailable)
		return
	}

	var snap *persistence.Snapshot
	var err error
	if t, ok := mux.Vars(r)["tick"]; ok {
		tick, perr := strconv.ParseUint(t, 10, 64)
		if perr != nil {
			http.Error(w, "invalid tick", http.StatusBadRequest)
			return
		}
		snap, err = s.History.SnapshotAt(tick)
	} else {
		snap, err = s.History.LatestSnapshot()
	}
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "snapshot not found", http.StatusNotFound)
		return
	}
	if err != nil {
		slog.Error("snapshot query failed", "error", err)
		http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
		return
	}

	var cells []world.Cell
	if snap.Radius == s.Sim.Grid.Radius {
		cells = s.Sim.Cells()
	} else {
		cells = world.NewGrid(snap.Radius).Cells()
	}
	if len(cells) != len(snap.Ownership) {
		slog.Error("snapshot size mismatch", "tick", snap.Tick, "cells", len(cells), "bytes", len(snap.Ownership))
		http.Error(w, "snapshot corrupt", http.StatusInternalServerError)
		return
	}
	owners := make([]ownerJSON, len(cells))
	for i, c := range cells {
		owners[i] = ownerJSON{Q: c.Coord.Q, R: c.Coord.R, Faction: control.Faction(snap.Ownership[i]).String()}
	}
	writeJSON(w, map[string]any{
		"run":    snap.Run,
		"tick":   snap.Tick,
		"radius": snap.Radius,
		"cells":  owners,
	})
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > maxSpeed {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleInject adds a control vector to one hex. Off-board coordinates are
// accepted and ignored.
func (s *Server) handleInject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q     int            `json:"q"`
		R     int            `json:"r"`
		Delta control.Vector `json:"delta"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	applied := s.Sim.InjectAt(world.HexCoord{Q: req.Q, R: req.R}, req.Delta)
	slog.Info("admin injection", "q", req.Q, "r", req.R, "delta", req.Delta.String(), "applied", applied)
	writeJSON(w, map[string]bool{"applied": applied})
}

type pointJSON struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// handleRay fires a control ray between two pixel positions.
func (s *Server) handleRay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Origin pointJSON      `json:"origin"`
		Target pointJSON      `json:"target"`
		Delta  control.Vector `json:"delta"`
		TTLMs  int64          `json:"ttl_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	ttl := defaultRayTTL
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}

	id := s.Sim.FireControlRayFromPixels(req.Origin.X, req.Origin.Y, req.Target.X, req.Target.Y, req.Delta, ttl)
	writeJSONStatus(w, http.StatusCreated, map[string]any{"id": id, "ttl_ms": ttl.Milliseconds()})
}

// handlePlaceSource puts a point injector on the board.
func (s *Server) handlePlaceSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Q          int            `json:"q"`
		R          int            `json:"r"`
		Delta      control.Vector `json:"delta"`
		IntervalMs int64          `json:"interval_ms"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	interval := defaultSourceInterval
	if req.IntervalMs > 0 {
		interval = time.Duration(req.IntervalMs) * time.Millisecond
	}

	id, err := s.Sim.PlaceSource(world.HexCoord{Q: req.Q, R: req.R}, req.Delta, interval)
	switch {
	case errors.Is(err, engine.ErrOffGrid):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, engine.ErrOccupied):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSONStatus(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid source id", http.StatusBadRequest)
		return
	}
	if err := s.Sim.RemoveSource(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
