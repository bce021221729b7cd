package game

import (
	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/telemetry"
)

// Update runs one frame of simulation: a pending resize, then
// StepsPerFrame ticks, then telemetry if a stats window has elapsed.
// A failed resize is reported through LastError; a failed step is returned.
func (g *Game) Update() error {
	g.beginFrame()

	if w, h, ok := g.resize.Poll(); ok {
		_ = g.Resize(w, h)
	}
	if g.engine == nil || g.paused {
		return nil
	}

	g.perf.Phase(telemetry.PhaseStep)
	for i := 0; i < g.opts.StepsPerFrame; i++ {
		if err := g.engine.Step(); err != nil {
			return g.fail("step", err)
		}
	}

	g.perf.Phase(telemetry.PhaseStats)
	g.flushTelemetry()
	return nil
}

// Draw renders the simulation onto target with the current palette.
func (g *Game) Draw(target device.Surface) {
	g.beginFrame()
	if g.engine == nil {
		return
	}
	g.perf.Phase(telemetry.PhaseRender)
	colors := g.palette.Float32Colors(g.sim.NumPopulations())
	if err := g.engine.Render(target, colors[:]); err != nil {
		g.fail("render", err)
	}
}

// TimeUI runs fn in the UI phase of the current frame.
func (g *Game) TimeUI(fn func()) {
	g.beginFrame()
	g.perf.Time(telemetry.PhaseUI, fn)
}

// EndFrame closes the frame's timing. Call once per frame after presenting.
func (g *Game) EndFrame() {
	if !g.frameStarted {
		return
	}
	g.perf.EndFrame()
	g.perf.Present()
	g.frameStarted = false
}

func (g *Game) beginFrame() {
	if !g.frameStarted {
		g.perf.BeginFrame()
		g.frameStarted = true
	}
}

// PerfStats returns the rolling frame timings.
func (g *Game) PerfStats() telemetry.PerfStats {
	return g.perf.Stats()
}
