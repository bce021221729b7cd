package game

import (
	"log/slog"
	"time"

	"github.com/pthm-cable/physarum/config"
)

// Options holds per-run settings that are not part of config.yaml.
type Options struct {
	Seed           int64   // 0 = time-based
	LogStats       bool    // log trail and perf stats every stats window
	StatsWindowSec float64 // 0 = use config
	SnapshotDir    string  // empty = <OutputDir>/snapshots when output is enabled
	OutputDir      string  // empty = no CSV output
	StepsPerFrame  int     // 0 = use config
	SampleTrails   bool    // compute trail stats every window even when nothing logs them

	// Width and Height of the simulation grid. 0 = screen size from config.
	Width, Height int

	Logger *slog.Logger
	Clock  func() time.Time
}

// ticksPerSecond converts the stats window from seconds to ticks.
const ticksPerSecond = 60

// withDefaults fills unset options from cfg.
func (o Options) withDefaults(cfg *config.Config) Options {
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.StatsWindowSec <= 0 {
		o.StatsWindowSec = cfg.Telemetry.StatsWindow
	}
	if o.StepsPerFrame <= 0 {
		o.StepsPerFrame = cfg.Simulation.StepsPerFrame
	}
	if o.Width <= 0 {
		o.Width = cfg.Screen.Width
	}
	if o.Height <= 0 {
		o.Height = cfg.Screen.Height
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

func (o Options) statsEveryTicks() uint64 {
	n := uint64(o.StatsWindowSec * ticksPerSecond)
	if n == 0 {
		n = 1
	}
	return n
}
