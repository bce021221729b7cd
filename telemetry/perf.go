package telemetry

import (
	"log/slog"
	"time"
)

// Phase identifies one timed section of a frame.
type Phase int

// Frame phases, in the order they run.
const (
	PhaseStep   Phase = iota // engine.Step: upload, combine, agents, diffuse
	PhaseStats               // trail readback and statistics
	PhaseRender              // render pass and presentation
	PhaseUI
	numPhases
)

var phaseNames = [numPhases]string{"step", "stats", "render", "ui"}

func (p Phase) String() string {
	if p < 0 || p >= numPhases {
		return "unknown"
	}
	return phaseNames[p]
}

type frameSample struct {
	total  time.Duration
	phases [numPhases]time.Duration
}

// PerfCollector keeps frame timings over a rolling window.
type PerfCollector struct {
	samples []frameSample
	next    int
	count   int

	current    frameSample
	frameStart time.Time
	phaseStart time.Time
	active     Phase
	running    bool

	lastPresent time.Time
	presentGap  time.Duration

	now func() time.Time
}

// NewPerfCollector creates a collector averaging over window frames.
func NewPerfCollector(window int) *PerfCollector {
	if window < 1 {
		window = 60
	}
	return &PerfCollector{
		samples: make([]frameSample, window),
		now:     time.Now,
	}
}

// BeginFrame starts timing a frame.
func (p *PerfCollector) BeginFrame() {
	p.frameStart = p.now()
	p.current = frameSample{}
	p.running = false
}

// Phase closes the running phase, if any, and starts ph.
func (p *PerfCollector) Phase(ph Phase) {
	t := p.now()
	p.closePhase(t)
	p.active = ph
	p.phaseStart = t
	p.running = true
}

// Time runs fn as phase ph. The previously running phase is closed.
func (p *PerfCollector) Time(ph Phase, fn func()) {
	p.Phase(ph)
	fn()
	p.closePhase(p.now())
}

func (p *PerfCollector) closePhase(t time.Time) {
	if p.running && p.active >= 0 && p.active < numPhases {
		p.current.phases[p.active] += t.Sub(p.phaseStart)
	}
	p.running = false
}

// EndFrame closes the frame and records it in the window.
func (p *PerfCollector) EndFrame() {
	t := p.now()
	p.closePhase(t)
	p.current.total = t.Sub(p.frameStart)

	p.samples[p.next] = p.current
	p.next = (p.next + 1) % len(p.samples)
	if p.count < len(p.samples) {
		p.count++
	}
}

// Present records a buffer swap for FPS.
func (p *PerfCollector) Present() {
	t := p.now()
	if !p.lastPresent.IsZero() {
		p.presentGap = t.Sub(p.lastPresent)
	}
	p.lastPresent = t
}

// Reset drops all recorded samples.
func (p *PerfCollector) Reset() {
	p.next, p.count = 0, 0
	p.running = false
	p.lastPresent = time.Time{}
	p.presentGap = 0
}

// PerfStats aggregates the window.
type PerfStats struct {
	Frames   int
	AvgFrame time.Duration
	MinFrame time.Duration
	MaxFrame time.Duration

	PhaseAvg [numPhases]time.Duration
	PhasePct [numPhases]float64 // share of the average frame, 0-100

	FramesPerSecond float64 // from frame work time
	FPS             float64 // from present-to-present gap
}

// Stats computes aggregates over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.presentGap > 0 {
		s.FPS = float64(time.Second) / float64(p.presentGap)
	}
	if p.count == 0 {
		return s
	}
	s.Frames = p.count

	var total time.Duration
	var phaseSum [numPhases]time.Duration
	for i := 0; i < p.count; i++ {
		f := p.samples[i]
		total += f.total
		if i == 0 || f.total < s.MinFrame {
			s.MinFrame = f.total
		}
		if f.total > s.MaxFrame {
			s.MaxFrame = f.total
		}
		for ph := range phaseSum {
			phaseSum[ph] += f.phases[ph]
		}
	}

	n := time.Duration(p.count)
	s.AvgFrame = total / n
	for ph := range phaseSum {
		s.PhaseAvg[ph] = phaseSum[ph] / n
		if s.AvgFrame > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgFrame) * 100
		}
	}
	if s.AvgFrame > 0 {
		s.FramesPerSecond = float64(time.Second) / float64(s.AvgFrame)
	}
	return s
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_frame_us", s.AvgFrame.Microseconds()),
		slog.Int64("min_frame_us", s.MinFrame.Microseconds()),
		slog.Int64("max_frame_us", s.MaxFrame.Microseconds()),
		slog.Int("frames_per_sec", int(s.FramesPerSecond)),
	}
	if s.FPS > 0 {
		attrs = append(attrs, slog.Int("fps", int(s.FPS)))
	}
	for ph := Phase(0); ph < numPhases; ph++ {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			attrs = append(attrs, slog.Float64(ph.String()+"_pct", float64(int(pct*10))/10))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is a flat row for perf.csv.
type PerfStatsCSV struct {
	Tick         uint64  `csv:"tick"`
	Particles    int     `csv:"particles"`
	AvgFrameUS   int64   `csv:"avg_frame_us"`
	MinFrameUS   int64   `csv:"min_frame_us"`
	MaxFrameUS   int64   `csv:"max_frame_us"`
	FramesPerSec float64 `csv:"frames_per_sec"`
	FPS          float64 `csv:"fps"`
	StepPct      float64 `csv:"step_pct"`
	StatsPct     float64 `csv:"stats_pct"`
	RenderPct    float64 `csv:"render_pct"`
	UIPct        float64 `csv:"ui_pct"`
}

// ToCSV flattens s for the given engine tick and particle count.
func (s PerfStats) ToCSV(tick uint64, particles int) PerfStatsCSV {
	return PerfStatsCSV{
		Tick:         tick,
		Particles:    particles,
		AvgFrameUS:   s.AvgFrame.Microseconds(),
		MinFrameUS:   s.MinFrame.Microseconds(),
		MaxFrameUS:   s.MaxFrame.Microseconds(),
		FramesPerSec: s.FramesPerSecond,
		FPS:          s.FPS,
		StepPct:      s.PhasePct[PhaseStep],
		StatsPct:     s.PhasePct[PhaseStats],
		RenderPct:    s.PhasePct[PhaseRender],
		UIPct:        s.PhasePct[PhaseUI],
	}
}
