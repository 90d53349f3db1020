// Package config loads fishschool run and sweep settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"fishschool/internal/kernel"
	"fishschool/internal/logging"
	"fishschool/internal/schedule"
	"fishschool/internal/school"
	"fishschool/internal/sim"
)

type Config struct {
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`
	Sweep      SweepConfig      `json:"sweep" yaml:"sweep"`
	Store      StoreConfig      `json:"store" yaml:"store"`
	Logging    LoggingConfig    `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
}

// SimulationConfig describes one run. Schedule is used by `run`; a sweep
// replaces it point by point.
type SimulationConfig struct {
	Agents       int             `json:"agents" yaml:"agents"`
	Rounds       int             `json:"rounds" yaml:"rounds"`
	Seed         int64           `json:"seed" yaml:"seed"`
	Reduction    string          `json:"reduction" yaml:"reduction"`
	MemoryBudget int64           `json:"memory_budget,omitempty" yaml:"memory_budget,omitempty"`
	Params       school.Params   `json:"params" yaml:"params"`
	Schedule     schedule.Config `json:"schedule" yaml:"schedule"`
}

type SweepConfig struct {
	Workers       []int             `json:"workers" yaml:"workers"`
	Policies      []schedule.Policy `json:"policies" yaml:"policies"`
	StaticChunks  []int             `json:"static_chunks" yaml:"static_chunks"`
	DynamicChunks []int             `json:"dynamic_chunks" yaml:"dynamic_chunks"`
	GuidedChunks  []int             `json:"guided_chunks" yaml:"guided_chunks"`
	// Repeats runs every point this many times with distinct seeds.
	Repeats      int    `json:"repeats" yaml:"repeats"`
	ArtifactsDir string `json:"artifacts_dir,omitempty" yaml:"artifacts_dir,omitempty"`
}

type StoreConfig struct {
	// Kind is "memory" or "sqlite"; empty selects the build default.
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

type LoggingConfig struct {
	// Level is "info", "debug" or "trace".
	Level string `json:"level" yaml:"level"`
	// Format is "auto", "text" or "json".
	Format string `json:"format" yaml:"format"`
}

type MetricsConfig struct {
	File string `json:"file,omitempty" yaml:"file,omitempty"`
}

// Default is a 30M fish school over ten rounds, swept over 28 worker counts
// from 1 to 256 and per-policy chunk menus from 1 up to 20000.
func Default() *Config {
	return &Config{
		Simulation: SimulationConfig{
			Agents:    30_000_000,
			Rounds:    10,
			Reduction: kernel.ReducerReduction,
			Params: school.Params{
				DomainHalfWidth: 100,
				BaseWeight:      5,
				WeightJitter:    0.1,
				MaxWeight:       10,
			},
			Schedule: schedule.Config{Workers: 1, Policy: schedule.PolicyStatic, Chunk: 1},
		},
		Sweep: SweepConfig{
			Workers:       []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 18, 20, 24, 30, 36, 48, 64, 72, 96, 128, 200, 256},
			Policies:      slices.Clone(schedule.Policies),
			StaticChunks:  []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048},
			DynamicChunks: []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048, 4096, 8192, 10000, 15000, 20000},
			GuidedChunks:  []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 2048},
			Repeats:       1,
		},
		Logging: LoggingConfig{Level: "info", Format: logging.FormatAuto},
	}
}

// LoadFromFile overlays a YAML file on the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

func (c *Config) WriteFile(path string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) Validate() error {
	if err := c.Simulation.RunConfig().Validate(); err != nil {
		return fmt.Errorf("simulation: %w", err)
	}
	if err := c.Sweep.Validate(); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	switch c.Store.Kind {
	case "", "memory", "sqlite":
	default:
		return fmt.Errorf("unsupported store backend: %s", c.Store.Kind)
	}
	validLevels := map[string]bool{"": true, "info": true, "debug": true, "trace": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", c.Logging.Level)
	}
	return logging.ValidateFormat(c.Logging.Format)
}

// RunConfig converts the simulation section into a round driver config.
func (s SimulationConfig) RunConfig() sim.Config {
	return sim.Config{
		Schedule:     s.Schedule,
		Reduction:    s.Reduction,
		Agents:       s.Agents,
		Rounds:       s.Rounds,
		Seed:         s.Seed,
		Params:       s.Params,
		MemoryBudget: s.MemoryBudget,
	}
}

// Chunks returns the chunk menu of one policy.
func (s SweepConfig) Chunks(p schedule.Policy) []int {
	switch p {
	case schedule.PolicyStatic:
		return s.StaticChunks
	case schedule.PolicyDynamic:
		return s.DynamicChunks
	case schedule.PolicyGuided:
		return s.GuidedChunks
	default:
		return nil
	}
}

// Points expands the sweep with worker count outermost, then policy, then
// chunk size.
func (s SweepConfig) Points() []schedule.Config {
	var points []schedule.Config
	for _, workers := range s.Workers {
		for _, policy := range s.Policies {
			for _, chunk := range s.Chunks(policy) {
				points = append(points, schedule.Config{Workers: workers, Policy: policy, Chunk: chunk})
			}
		}
	}
	return points
}

func (s SweepConfig) Validate() error {
	if len(s.Workers) == 0 {
		return errors.New("at least one worker count is required")
	}
	if len(s.Policies) == 0 {
		return errors.New("at least one policy is required")
	}
	if s.Repeats <= 0 {
		return errors.New("repeats must be > 0")
	}
	for _, p := range s.Policies {
		if _, err := schedule.ParsePolicy(string(p)); err != nil {
			return err
		}
		if len(s.Chunks(p)) == 0 {
			return fmt.Errorf("policy %s has no chunk sizes", p)
		}
	}
	for _, point := range s.Points() {
		if err := point.Validate(); err != nil {
			return fmt.Errorf("point %s: %w", point, err)
		}
	}
	return nil
}
