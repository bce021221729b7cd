// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/physarum/device"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all application configuration parameters.
type Config struct {
	Screen     ScreenConfig     `yaml:"screen"`
	Simulation SimulationConfig `yaml:"simulation"`
	Device     DeviceConfig     `yaml:"device"`
	Retry      RetryConfig      `yaml:"retry"`
	Palette    PaletteConfig    `yaml:"palette"`
	UI         UIConfig         `yaml:"ui"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Tune       TuneConfig       `yaml:"tune"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// ScreenConfig holds window settings.
type ScreenConfig struct {
	Width     int    `yaml:"width"`
	Height    int    `yaml:"height"`
	TargetFPS int    `yaml:"target_fps"`
	Title     string `yaml:"title"`
}

// SimulationConfig holds the starting simulation shape.
type SimulationConfig struct {
	ParticleCount  int   `yaml:"particle_count"`
	NumPopulations int   `yaml:"num_populations"`
	Seed           int64 `yaml:"seed"`          // 0 = time-based
	StepsPerFrame  int   `yaml:"steps_per_frame"` // Simulation ticks per rendered frame
}

// DeviceConfig holds compute device settings.
// The raylib backend cannot query storage limits, so the reported limits come from here.
type DeviceConfig struct {
	Backend                     string `yaml:"backend"` // "raylib" or "software"
	MaxStorageBufferBindingSize uint64 `yaml:"max_storage_buffer_binding_size"`
	MaxWorkgroupsPerDimension   uint32 `yaml:"max_workgroups_per_dimension"`
}

// Limits returns the device limits described by c.
func (c DeviceConfig) Limits() device.Limits {
	return device.Limits{
		MaxStorageBufferBindingSize:      c.MaxStorageBufferBindingSize,
		MaxComputeWorkgroupsPerDimension: c.MaxWorkgroupsPerDimension,
	}
}

// RetryConfig holds the resource-limit fallback parameters.
type RetryConfig struct {
	MaxParticles int `yaml:"max_particles"` // Cap applied to the halved particle count
}

// PaletteConfig holds the startup palette.
type PaletteConfig struct {
	Initial string `yaml:"initial"`
}

// UIConfig holds control panel parameters.
type UIConfig struct {
	PanelWidth     int `yaml:"panel_width"`
	ResizeSettleMS int `yaml:"resize_settle_ms"`
	MinParticles   int `yaml:"min_particles"`
	MaxParticles   int `yaml:"max_particles"`
	ParticleStep   int `yaml:"particle_step"`
	MaxPopulations int `yaml:"max_populations"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsWindow       float64 `yaml:"stats_window"`       // Seconds between trail stat samples
	PerfWindow        int     `yaml:"perf_window"`        // Frames in the perf rolling window
	CoverageThreshold float64 `yaml:"coverage_threshold"` // Trail value counted as covered
}

// TuneConfig holds parameters for the offline tuner.
type TuneConfig struct {
	Ticks          int     `yaml:"ticks"`
	Width          int     `yaml:"width"`
	Height         int     `yaml:"height"`
	ParticleCount  int     `yaml:"particle_count"`
	CoverageTarget float64 `yaml:"coverage_target"` // Fraction of cells with visible trail
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ResizeSettle time.Duration
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Simulation.ParticleCount <= 0 {
		return fmt.Errorf("simulation.particle_count must be positive, got %d", c.Simulation.ParticleCount)
	}
	if c.Simulation.NumPopulations < 1 || c.Simulation.NumPopulations > c.UI.MaxPopulations {
		return fmt.Errorf("simulation.num_populations must be in [1, %d], got %d",
			c.UI.MaxPopulations, c.Simulation.NumPopulations)
	}
	if c.Device.MaxStorageBufferBindingSize == 0 {
		return fmt.Errorf("device.max_storage_buffer_binding_size must be positive")
	}
	switch c.Device.Backend {
	case "raylib", "software":
	default:
		return fmt.Errorf("device.backend must be \"raylib\" or \"software\", got %q", c.Device.Backend)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Simulation.StepsPerFrame < 1 {
		c.Simulation.StepsPerFrame = 1
	}
	if c.Device.MaxWorkgroupsPerDimension == 0 {
		c.Device.MaxWorkgroupsPerDimension = 65535
	}
	if c.Retry.MaxParticles <= 0 {
		c.Retry.MaxParticles = 1_000_000
	}
	c.Derived.ResizeSettle = time.Duration(c.UI.ResizeSettleMS) * time.Millisecond
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
