// Package game owns the active simulation and everything the window loop and
// control panel need around it: configuration, palette, retry policy,
// resize debouncing and telemetry.
package game

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/palette"
	"github.com/pthm-cable/physarum/population"
	"github.com/pthm-cable/physarum/simulation"
	"github.com/pthm-cable/physarum/telemetry"
)

// engineFactory matches simulation.New.
type engineFactory func(device.Device, population.MultiPopulationConfig, ...simulation.Option) (*simulation.Engine, error)

// Game holds the complete application state.
type Game struct {
	dev  device.Device
	cfg  *config.Config
	opts Options
	rng  *rand.Rand
	log  *slog.Logger

	sim     population.MultiPopulationConfig
	engine  *simulation.Engine
	palette *palette.Manager

	newEngine     engineFactory
	retryMax      int
	maxPopulation int

	paused    bool
	lastError string
	resize    *ResizeDebouncer

	// Telemetry
	perf         *telemetry.PerfCollector
	sampler      *telemetry.TrailSampler
	output       *telemetry.OutputManager
	trailBuf     []float32
	statsEvery   uint64
	lastStats    uint64
	lastTrail    telemetry.TrailStats
	frameStarted bool
}

// NewGame creates the initial random configuration and tries to build an
// engine for it. A failed build is not an error: the game starts without an
// engine and LastError holds the message. Errors are returned only for
// output setup.
func NewGame(dev device.Device, cfg *config.Config, opts Options) (*Game, error) {
	opts = opts.withDefaults(cfg)

	g := &Game{
		dev:           dev,
		cfg:           cfg,
		opts:          opts,
		rng:           rand.New(rand.NewSource(opts.Seed)),
		log:           opts.Logger,
		palette:       palette.NewManager(cfg.Palette.Initial),
		newEngine:     simulation.New,
		retryMax:      cfg.Retry.MaxParticles,
		maxPopulation: min(cfg.UI.MaxPopulations, population.MaxPopulations),
		resize:        NewResizeDebouncer(cfg.Derived.ResizeSettle, opts.Clock),
		perf:          telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		sampler:       telemetry.NewTrailSampler(cfg.Telemetry.CoverageThreshold),
		statsEvery:    opts.statsEveryTicks(),
	}

	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	g.output = output
	if err := g.output.WriteConfig(cfg); err != nil {
		g.output.Close()
		return nil, fmt.Errorf("output: %w", err)
	}

	g.sim = population.CreateMultiPopulationConfig(g.rng,
		cfg.Simulation.ParticleCount, cfg.Simulation.NumPopulations, opts.Width, opts.Height)
	_ = g.Rebuild(g.sim)

	g.log.Info("game created",
		"seed", opts.Seed,
		"particles", g.sim.ParticleCount,
		"populations", g.sim.NumPopulations(),
		"width", g.sim.Width,
		"height", g.sim.Height,
		"engine", g.engine != nil,
	)
	return g, nil
}

// Rebuild replaces the engine with one built for cfg. If creation fails on a
// resource limit it is retried exactly once with min(count/2, retry cap)
// particles, and the reduced count is adopted. Any other failure, or a failed
// retry, leaves the previous engine (if any) installed and sets LastError.
func (g *Game) Rebuild(cfg population.MultiPopulationConfig) error {
	var next *simulation.Engine
	count, err := g.withRetry(cfg.ParticleCount, func(n int) error {
		e, err := g.newEngine(g.dev, cfg.WithParticleCount(n),
			simulation.WithRand(g.rng), simulation.WithLogger(g.log))
		if err != nil {
			return err
		}
		next = e
		return nil
	})
	if err != nil {
		return g.fail("rebuild", err)
	}

	if g.engine != nil {
		g.engine.Release()
	}
	g.engine = next
	g.sim = cfg.WithParticleCount(count)
	g.lastError = ""
	g.lastStats = 0
	g.perf.Reset()
	return nil
}

// withRetry runs attempt with count, and once more with the reduced count if
// the first attempt hit a resource limit. Returns the count that succeeded.
func (g *Game) withRetry(count int, attempt func(n int) error) (int, error) {
	err := attempt(count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, simulation.ErrResourceLimit) {
		return 0, err
	}

	reduced := min(count/2, g.retryMax)
	g.log.Warn("resource limit exceeded, retrying with fewer particles",
		"requested", count,
		"particles", reduced,
		"error", err,
	)
	if err := attempt(reduced); err != nil {
		return 0, &RetryError{Requested: count, Retried: reduced, Err: err}
	}
	return reduced, nil
}

// fail records err for the UI and returns it.
func (g *Game) fail(op string, err error) error {
	g.lastError = userMessage(err)
	g.log.Error("simulation "+op+" failed", "error", err)
	return err
}

// LastError returns the most recent user-visible error, or "".
func (g *Game) LastError() string { return g.lastError }

// ClearError dismisses the current error.
func (g *Game) ClearError() { g.lastError = "" }

// Config returns a copy of the active population configuration.
func (g *Game) Config() population.MultiPopulationConfig { return g.sim.Clone() }

// AppConfig returns the application configuration.
func (g *Game) AppConfig() *config.Config { return g.cfg }

// HasEngine reports whether a simulation is installed.
func (g *Game) HasEngine() bool { return g.engine != nil }

// Tick returns the engine tick, or 0 without an engine.
func (g *Game) Tick() uint64 {
	if g.engine == nil {
		return 0
	}
	return g.engine.Tick()
}

// Paused reports whether Update skips simulation steps.
func (g *Game) Paused() bool { return g.paused }

// TogglePause pauses or resumes stepping.
func (g *Game) TogglePause() { g.paused = !g.paused }

// StepsPerFrame returns the number of ticks run per Update.
func (g *Game) StepsPerFrame() int { return g.opts.StepsPerFrame }

// SetStepsPerFrame clamps n to [1, 10].
func (g *Game) SetStepsPerFrame(n int) { g.opts.StepsPerFrame = max(1, min(n, 10)) }

// PaletteName returns the active palette name.
func (g *Game) PaletteName() string { return g.palette.CurrentName() }

// PaletteIndex returns the active palette's index in palette.Names.
func (g *Game) PaletteIndex() int { return g.palette.CurrentIndex() }

// PaletteColors returns the active palette colors.
func (g *Game) PaletteColors() []string { return g.palette.CurrentColors() }

// MaxPopulations returns the largest species count the UI may select.
func (g *Game) MaxPopulations() int { return g.maxPopulation }

// Unload releases the engine and closes output files.
func (g *Game) Unload() {
	if g.engine != nil {
		g.engine.Release()
		g.engine = nil
	}
	if err := g.output.Close(); err != nil {
		g.log.Error("closing output", "error", err)
	}
}
