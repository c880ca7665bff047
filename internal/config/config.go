// Package config loads the hexfront configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/hexfront/internal/control"
	"github.com/talgya/hexfront/internal/engine"
	"github.com/talgya/hexfront/internal/world"
)

// AdminKeyEnv overrides api.admin_key when set.
const AdminKeyEnv = "HEXFRONT_ADMIN_KEY"

// Config is the complete runtime configuration.
type Config struct {
	Board   BoardConfig    `yaml:"board"`
	Control ControlConfig  `yaml:"control"`
	Engine  EngineConfig   `yaml:"engine"`
	Sources []SourceConfig `yaml:"sources"`
	History HistoryConfig  `yaml:"history"`
	API     APIConfig      `yaml:"api"`
}

// BoardConfig shapes the generated board.
type BoardConfig struct {
	Radius       int     `yaml:"radius"`
	Seed         int64   `yaml:"seed"`
	NeutralNoise float64 `yaml:"neutral_noise"`
	NoiseScale   float64 `yaml:"noise_scale"`
}

// ControlConfig tunes decay and diffusion.
type ControlConfig struct {
	DecayRate           float64       `yaml:"decay_rate"`
	DecayInterval       time.Duration `yaml:"decay_interval"`
	DiffusionEfficiency float64       `yaml:"diffusion_efficiency"`
	DiffusionInterval   time.Duration `yaml:"diffusion_interval"`
	NeutralBaseline     float64       `yaml:"neutral_baseline"`
}

// EngineConfig paces the simulation loop.
type EngineConfig struct {
	FixedStep time.Duration `yaml:"fixed_step"`
	Speed     float64       `yaml:"speed"`
}

// SourceConfig is a point injector placed at startup.
type SourceConfig struct {
	world.HexCoord `yaml:",inline"`
	Delta          control.Vector `yaml:"delta"`
	Interval       time.Duration  `yaml:"interval"`
}

// HistoryConfig controls the territory recorder. An empty DBPath disables it.
type HistoryConfig struct {
	DBPath        string `yaml:"db_path"`
	RecordEvery   uint64 `yaml:"record_every"`   // ticks between history rows
	SnapshotEvery uint64 `yaml:"snapshot_every"` // ticks between ownership snapshots
}

// APIConfig configures the HTTP surface. Port 0 disables it.
type APIConfig struct {
	Port     int     `yaml:"port"`
	AdminKey string  `yaml:"admin_key"`
	Rate     float64 `yaml:"rate"`  // requests per second per client
	Burst    int     `yaml:"burst"` // bucket size per client
}

// Default returns the configuration of the original game.
func Default() Config {
	gen := world.DefaultGenConfig()
	p := engine.DefaultParams()
	return Config{
		Board: BoardConfig{
			Radius:       gen.Radius,
			Seed:         gen.Seed,
			NeutralNoise: gen.NeutralNoise,
			NoiseScale:   gen.NoiseScale,
		},
		Control: ControlConfig{
			DecayRate:           p.DecayRate,
			DecayInterval:       p.DecayInterval,
			DiffusionEfficiency: p.DiffusionEfficiency,
			DiffusionInterval:   p.DiffusionInterval,
			NeutralBaseline:     p.NeutralBaseline,
		},
		Engine: EngineConfig{
			FixedStep: engine.DefaultFixedStep,
			Speed:     1.0,
		},
		Sources: []SourceConfig{
			{HexCoord: world.HexCoord{Q: -3, R: 2}, Delta: control.Vector{A: 100}, Interval: 5 * time.Second},
			{HexCoord: world.HexCoord{Q: 2, R: -3}, Delta: control.Vector{B: 100}, Interval: 5 * time.Second},
		},
		History: HistoryConfig{
			DBPath:        "data/hexfront.db",
			RecordEvery:   10,
			SnapshotEvery: 100,
		},
		API: APIConfig{
			Port:  8080,
			Rate:  10,
			Burst: 20,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path yields the
// defaults. The admin key environment override is applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if key := os.Getenv(AdminKeyEnv); key != "" {
		cfg.API.AdminKey = key
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every out-of-range setting.
func (c Config) Validate() error {
	var errs []error
	if c.Board.Radius < 0 {
		errs = append(errs, fmt.Errorf("board.radius %d is negative", c.Board.Radius))
	}
	if c.Board.NeutralNoise < 0 || c.Board.NeutralNoise > control.MaxValue {
		errs = append(errs, fmt.Errorf("board.neutral_noise %g outside [0, %g]", c.Board.NeutralNoise, control.MaxValue))
	}
	if c.Control.DecayRate < 0 || c.Control.DecayRate > 1 {
		errs = append(errs, fmt.Errorf("control.decay_rate %g outside [0, 1]", c.Control.DecayRate))
	}
	if c.Control.DiffusionEfficiency <= 0 || c.Control.DiffusionEfficiency > 1 {
		errs = append(errs, fmt.Errorf("control.diffusion_efficiency %g outside (0, 1]", c.Control.DiffusionEfficiency))
	}
	if c.Control.DecayInterval <= 0 {
		errs = append(errs, errors.New("control.decay_interval must be positive"))
	}
	if c.Control.DiffusionInterval <= 0 {
		errs = append(errs, errors.New("control.diffusion_interval must be positive"))
	}
	if c.Control.NeutralBaseline < 0 || c.Control.NeutralBaseline > control.MaxValue {
		errs = append(errs, fmt.Errorf("control.neutral_baseline %g outside [0, %g]", c.Control.NeutralBaseline, control.MaxValue))
	}
	if c.Engine.FixedStep <= 0 {
		errs = append(errs, errors.New("engine.fixed_step must be positive"))
	}
	if c.Engine.Speed < 0 {
		errs = append(errs, fmt.Errorf("engine.speed %g is negative", c.Engine.Speed))
	}
	for i, s := range c.Sources {
		if s.Interval <= 0 {
			errs = append(errs, fmt.Errorf("sources[%d].interval must be positive", i))
		}
	}
	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Errorf("api.port %d out of range", c.API.Port))
	}
	if c.API.Port > 0 && (c.API.Rate <= 0 || c.API.Burst <= 0) {
		errs = append(errs, errors.New("api.rate and api.burst must be positive"))
	}
	return errors.Join(errs...)
}

// GenConfig converts the board section for world.Generate.
func (c Config) GenConfig() world.GenConfig {
	return world.GenConfig{
		Radius:       c.Board.Radius,
		Seed:         c.Board.Seed,
		NeutralNoise: c.Board.NeutralNoise,
		NoiseScale:   c.Board.NoiseScale,
	}
}

// Params converts the control section for engine.NewSimulation.
func (c Config) Params() engine.Params {
	return engine.Params{
		DecayRate:           c.Control.DecayRate,
		DecayInterval:       c.Control.DecayInterval,
		DiffusionEfficiency: c.Control.DiffusionEfficiency,
		DiffusionInterval:   c.Control.DiffusionInterval,
		NeutralBaseline:     c.Control.NeutralBaseline,
	}
}
