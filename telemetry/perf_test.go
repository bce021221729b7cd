package telemetry

import (
	"testing"
	"time"
)

// fakeClock advances by a fixed step every time it is read.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestCollector(window int, step time.Duration) *PerfCollector {
	pc := NewPerfCollector(window)
	clk := &fakeClock{t: time.Unix(0, 0), step: step}
	pc.now = clk.now
	return pc
}

func TestPerfCollectorPhases(t *testing.T) {
	pc := newTestCollector(10, time.Millisecond)

	for i := 0; i < 3; i++ {
		pc.BeginFrame()       // t=1
		pc.Phase(PhaseStep)   // t=2
		pc.Phase(PhaseRender) // t=3, step took 1ms
		pc.EndFrame()         // t=4, render took 1ms, frame took 3ms
	}

	s := pc.Stats()
	if s.Frames != 3 {
		t.Fatalf("frames = %d, want 3", s.Frames)
	}
	if s.AvgFrame != 3*time.Millisecond {
		t.Errorf("avg frame = %v, want 3ms", s.AvgFrame)
	}
	if s.PhaseAvg[PhaseStep] != time.Millisecond || s.PhaseAvg[PhaseRender] != time.Millisecond {
		t.Errorf("phase avg = %v", s.PhaseAvg)
	}
	if s.PhaseAvg[PhaseUI] != 0 {
		t.Errorf("ui should be untimed, got %v", s.PhaseAvg[PhaseUI])
	}
	pct := s.PhasePct[PhaseStep]
	if pct < 33 || pct > 34 {
		t.Errorf("step pct = %v, want ~33.3", pct)
	}
}

func TestPerfCollectorTime(t *testing.T) {
	pc := newTestCollector(4, time.Millisecond)

	pc.BeginFrame()
	called := false
	pc.Time(PhaseStats, func() { called = true })
	pc.EndFrame()

	if !called {
		t.Fatal("Time did not run fn")
	}
	s := pc.Stats()
	if s.PhaseAvg[PhaseStats] != time.Millisecond {
		t.Errorf("stats phase = %v, want 1ms", s.PhaseAvg[PhaseStats])
	}
}

func TestPerfCollectorRollingWindow(t *testing.T) {
	pc := newTestCollector(5, time.Millisecond)

	for i := 0; i < 12; i++ {
		pc.BeginFrame()
		pc.Phase(PhaseStep)
		pc.EndFrame()
	}

	s := pc.Stats()
	if s.Frames != 5 {
		t.Errorf("frames = %d, want window size 5", s.Frames)
	}
	if s.FramesPerSecond <= 0 {
		t.Error("expected positive frames per second")
	}
	if s.MinFrame != s.MaxFrame {
		t.Errorf("uniform frames should have min == max, got %v/%v", s.MinFrame, s.MaxFrame)
	}
}

func TestPerfCollectorEmpty(t *testing.T) {
	pc := NewPerfCollector(0)
	s := pc.Stats()
	if s.Frames != 0 || s.AvgFrame != 0 || s.FPS != 0 {
		t.Errorf("expected zero stats, got %+v", s)
	}
}

func TestPerfCollectorPresent(t *testing.T) {
	pc := newTestCollector(10, 20*time.Millisecond)

	pc.Present()
	pc.Present()

	s := pc.Stats()
	if s.FPS != 50 {
		t.Errorf("fps = %v, want 50", s.FPS)
	}

	pc.Reset()
	if pc.Stats().FPS != 0 {
		t.Error("Reset should clear present timing")
	}
}

func TestPerfStatsToCSV(t *testing.T) {
	pc := newTestCollector(10, time.Millisecond)
	pc.BeginFrame()
	pc.Phase(PhaseStep)
	pc.EndFrame()

	row := pc.Stats().ToCSV(42, 50_000)
	if row.Tick != 42 || row.Particles != 50_000 {
		t.Errorf("row = %+v", row)
	}
	if row.StepPct != 50 {
		t.Errorf("step pct = %v, want 50", row.StepPct)
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseRender.String() != "render" {
		t.Errorf("got %q", PhaseRender.String())
	}
	if Phase(99).String() != "unknown" {
		t.Errorf("got %q", Phase(99).String())
	}
}
