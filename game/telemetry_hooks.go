package game

import (
	"image"
	"path/filepath"

	"github.com/pthm-cable/physarum/telemetry"
)

// flushTelemetry samples the trail maps once per stats window and logs or
// writes the result. Trail readback is skipped when nothing consumes it.
func (g *Game) flushTelemetry() {
	tick := g.engine.Tick()
	if tick-g.lastStats < g.statsEvery {
		return
	}
	g.lastStats = tick

	perfStats := g.perf.Stats()
	particles := g.engine.ParticleCount()

	if g.opts.LogStats || g.opts.SampleTrails || g.output != nil {
		trails, err := g.engine.ReadTrails(g.trailBuf)
		if err != nil {
			g.log.Error("failed to read trails", "error", err)
			return
		}
		g.trailBuf = trails
		g.lastTrail = g.sampler.Compute(tick, particles, trails, g.sim.NumPopulations())
	}

	if g.opts.LogStats {
		g.log.Info("trails", "stats", g.lastTrail)
		g.log.Info("perf", "stats", perfStats)
	}

	if g.output != nil {
		if err := g.output.WriteTrails(g.lastTrail); err != nil {
			g.log.Error("failed to write trails", "error", err)
		}
		if err := g.output.WritePerf(perfStats, tick, particles); err != nil {
			g.log.Error("failed to write perf", "error", err)
		}
	}
}

// LastTrailStats returns the most recent trail sample.
func (g *Game) LastTrailStats() telemetry.TrailStats { return g.lastTrail }

// snapshotDir resolves where snapshots go, or "" when disabled.
func (g *Game) snapshotDir() string {
	if g.opts.SnapshotDir != "" {
		return g.opts.SnapshotDir
	}
	if g.output != nil {
		return filepath.Join(g.output.Dir(), "snapshots")
	}
	return ""
}

// SaveSnapshot writes the current parameters, and img if non-nil. Returns
// the JSON path, or "" when snapshots are disabled.
func (g *Game) SaveSnapshot(img image.Image) (string, error) {
	dir := g.snapshotDir()
	if dir == "" {
		return "", nil
	}
	snap := &telemetry.Snapshot{
		Seed:    g.opts.Seed,
		Tick:    g.Tick(),
		Palette: g.palette.CurrentName(),
		Colors:  g.palette.CurrentColors(),
		Config:  g.sim.Clone(),
	}
	path, err := telemetry.SaveSnapshot(snap, dir, img)
	if err != nil {
		g.log.Error("failed to save snapshot", "error", err)
		return "", err
	}
	g.log.Info("snapshot saved", "path", path, "tick", snap.Tick)
	return path, nil
}

// LoadParameters replaces the configuration with the one in a snapshot,
// keeping the current grid size, and selects its palette.
func (g *Game) LoadParameters(path string) error {
	snap, err := telemetry.LoadSnapshot(path)
	if err != nil {
		return g.fail("load parameters", err)
	}
	g.palette.SelectName(snap.Palette)
	for i, c := range snap.Colors {
		g.palette.SetColor(i, c)
	}
	return g.Rebuild(snap.Config.Resized(g.sim.Width, g.sim.Height))
}
