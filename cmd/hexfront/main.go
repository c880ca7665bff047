// Command hexfront runs the territorial control simulation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexfront/internal/api"
	"github.com/talgya/hexfront/internal/config"
	"github.com/talgya/hexfront/internal/engine"
	"github.com/talgya/hexfront/internal/persistence"
	"github.com/talgya/hexfront/internal/world"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults when empty)")
	debug := flag.Bool("debug", false, "log ray and structure events")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	slog.Info("hexfront: territorial control simulation",
		"radius", cfg.Board.Radius,
		"decay_rate", cfg.Control.DecayRate,
		"diffusion_efficiency", cfg.Control.DiffusionEfficiency,
		"fixed_step", cfg.Engine.FixedStep,
	)

	// ── Board ─────────────────────────────────────────────────────────
	grid := world.Generate(cfg.GenConfig())
	sim := engine.NewSimulation(grid, cfg.Params())
	slog.Info("board generated", "cells", humanize.Comma(int64(grid.CellCount())), "grid", grid.String())

	for _, sc := range cfg.Sources {
		id, err := sim.PlaceSource(sc.HexCoord, sc.Delta, sc.Interval)
		if err != nil {
			slog.Warn("source not placed", "at", sc.HexCoord.String(), "error", err)
			continue
		}
		slog.Info("source placed", "id", id, "at", sc.HexCoord.String(), "delta", sc.Delta.String(), "every", sc.Interval)
	}

	// ── History ───────────────────────────────────────────────────────
	var rec *persistence.Recorder
	if cfg.History.DBPath != "" {
		rec, err = openHistory(cfg)
		if err != nil {
			slog.Error("failed to open history", "error", err)
			os.Exit(1)
		}
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.NewEngine()
	eng.FixedStep = cfg.Engine.FixedStep
	eng.SetSpeed(cfg.Engine.Speed)
	eng.OnStep = sim.Step

	// Territory summary every simulated minute.
	logEvery := uint64(time.Minute / cfg.Engine.FixedStep)
	if logEvery == 0 {
		logEvery = 1
	}
	eng.Every(logEvery, func(uint64) { sim.LogTerritory(eng.FixedStep) })

	if rec != nil {
		eng.Every(cfg.History.RecordEvery, func(tick uint64) {
			if err := rec.Record(sim); err != nil {
				slog.Error("history record failed", "tick", tick, "error", err)
			}
		})
		eng.Every(cfg.History.SnapshotEvery, func(tick uint64) {
			if err := rec.Snapshot(sim); err != nil {
				slog.Error("ownership snapshot failed", "tick", tick, "error", err)
			}
		})
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	var apiServer *api.Server
	if cfg.API.Port > 0 {
		if cfg.API.AdminKey == "" {
			slog.Warn(config.AdminKeyEnv + " not set, admin endpoints will be disabled")
		}
		apiServer = &api.Server{
			Sim:      sim,
			Eng:      eng,
			History:  rec,
			Port:     cfg.API.Port,
			AdminKey: cfg.API.AdminKey,
			Rate:     cfg.API.Rate,
			Burst:    cfg.API.Burst,
		}
		apiServer.Start()
	}

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st := sim.CurrentStats()
	fmt.Printf("\nhexfront is running: %d cells, %d sources.\n", grid.CellCount(), st.Sources)
	if apiServer != nil {
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.API.Port)
	}
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)

	// ── Shutdown ──────────────────────────────────────────────────────
	if apiServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("API shutdown failed", "error", err)
		}
		cancel()
	}
	sim.LogTerritory(eng.FixedStep)
	if rec != nil {
		if err := errors.Join(rec.Record(sim), rec.Snapshot(sim)); err != nil {
			slog.Error("final record failed", "error", err)
		}
		if err := rec.Close(); err != nil {
			slog.Error("close history", "error", err)
		}
	}

	fmt.Printf("Simulation stopped at tick %s (%s), board digest %s.\n",
		humanize.Comma(int64(eng.Tick)), engine.SimTime(eng.Tick, eng.FixedStep), sim.DigestHex()[:16])
}

// openHistory opens the history database and starts a new recorded run.
func openHistory(cfg config.Config) (*persistence.Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.History.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := persistence.Open(cfg.History.DBPath)
	if err != nil {
		return nil, err
	}
	rec, err := persistence.NewRecorder(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	meta := map[string]string{
		"radius":     strconv.Itoa(cfg.Board.Radius),
		"seed":       strconv.FormatInt(cfg.Board.Seed, 10),
		"fixed_step": cfg.Engine.FixedStep.String(),
		"decay_rate": strconv.FormatFloat(cfg.Control.DecayRate, 'g', -1, 64),
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range meta {
		if err := db.SaveMeta(k, v); err != nil {
			db.Close()
			return nil, fmt.Errorf("save meta %s: %w", k, err)
		}
	}
	slog.Info("history opened", "path", cfg.History.DBPath, "run", rec.Run)
	return rec, nil
}
