package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/engine"
	"github.com/talgya/hexfront/internal/world"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hexfront.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, engine.DefaultParams(), cfg.Params())
	assert.Equal(t, world.DefaultGenConfig(), cfg.GenConfig())
	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, world.HexCoord{Q: -3, R: 2}, cfg.Sources[0].HexCoord)
	assert.Equal(t, control.Vector{B: 100}, cfg.Sources[1].Delta)
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	t.Setenv(AdminKeyEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv(AdminKeyEnv, "")
	path := writeConfig(t, `
board:
  radius: 6
control:
  decay_interval: 250ms
  neutral_baseline: 100
sources:
  - q: 1
    r: -1
    delta: {a: 40, neutral: 5}
    interval: 2s
api:
  admin_key: from-file
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 6, cfg.Board.Radius)
	assert.Equal(t, 0.35, cfg.Board.NoiseScale, "unset keys keep defaults")
	assert.Equal(t, 250*time.Millisecond, cfg.Control.DecayInterval)
	assert.Equal(t, 0.25, cfg.Control.DecayRate)
	assert.Equal(t, 100.0, cfg.Params().NeutralBaseline)

	require.Len(t, cfg.Sources, 1, "a sources list replaces the defaults")
	assert.Equal(t, world.HexCoord{Q: 1, R: -1}, cfg.Sources[0].HexCoord)
	assert.Equal(t, control.Vector{A: 40, Neutral: 5}, cfg.Sources[0].Delta)
	assert.Equal(t, 2*time.Second, cfg.Sources[0].Interval)
	assert.Equal(t, "from-file", cfg.API.AdminKey)
}

func TestAdminKeyFromEnv(t *testing.T) {
	t.Setenv(AdminKeyEnv, "secret")
	cfg, err := Load(writeConfig(t, "api:\n  admin_key: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.API.AdminKey)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeConfig(t, "board: [not, a, map]\n"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "control:\n  decay_rate: 1.5\n"))
	assert.ErrorContains(t, err, "decay_rate")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Board.Radius = -1
	cfg.Control.DiffusionEfficiency = 0
	cfg.Control.DiffusionInterval = 0
	cfg.Engine.Speed = -1
	cfg.Sources[0].Interval = 0

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"board.radius", "diffusion_efficiency", "diffusion_interval", "engine.speed", "sources[0]"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestExampleConfigLoads(t *testing.T) {
	t.Setenv(AdminKeyEnv, "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "hexfront.yaml"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), cfg.Board.Seed)
	assert.Equal(t, 100.0, cfg.Board.NeutralNoise)
	assert.Len(t, cfg.Sources, 2)
}

func TestExampleBoardStartsNeutral(t *testing.T) {
	t.Setenv(AdminKeyEnv, "")
	cfg, err := Load(filepath.Join("..", "..", "configs", "hexfront.yaml"))
	require.NoError(t, err)

	g := world.Generate(cfg.GenConfig())
	sim := engine.NewSimulation(g, cfg.Params())
	sim.Step(1, cfg.Engine.FixedStep)

	st := sim.CurrentStats()
	assert.Equal(t, g.CellCount(), st.CellsNeutral, "no faction holds an untouched cell")
	assert.Zero(t, st.CellsA)
	assert.Zero(t, st.CellsB)
}
