package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SpeciesStats summarizes one species' trail map.
type SpeciesStats struct {
	Species  int
	Mass     float64 // sum over cells
	Mean     float64
	StdDev   float64
	Max      float64
	P90      float64
	Coverage float64 // fraction of cells above the coverage threshold
}

// TrailStats summarizes all trail maps at one tick.
type TrailStats struct {
	Tick      uint64
	Particles int
	Species   []SpeciesStats
}

// TotalMass returns the summed mass of every species.
func (s TrailStats) TotalMass() float64 {
	var m float64
	for _, sp := range s.Species {
		m += sp.Mass
	}
	return m
}

// MeanCoverage returns the average coverage across species.
func (s TrailStats) MeanCoverage() float64 {
	if len(s.Species) == 0 {
		return 0
	}
	var c float64
	for _, sp := range s.Species {
		c += sp.Coverage
	}
	return c / float64(len(s.Species))
}

// TrailSampler computes TrailStats, reusing its scratch buffers.
type TrailSampler struct {
	// Threshold is the trail value above which a cell counts as covered.
	Threshold float64

	values []float64
	sorted []float64
}

// NewTrailSampler returns a sampler with the given coverage threshold.
func NewTrailSampler(threshold float64) *TrailSampler {
	return &TrailSampler{Threshold: threshold}
}

// Compute summarizes trails laid out [species][cell].
func (ts *TrailSampler) Compute(tick uint64, particles int, trails []float32, numPopulations int) TrailStats {
	out := TrailStats{Tick: tick, Particles: particles}
	if numPopulations <= 0 || len(trails) == 0 {
		return out
	}
	cells := len(trails) / numPopulations
	if cap(ts.values) < cells {
		ts.values = make([]float64, cells)
		ts.sorted = make([]float64, cells)
	}
	values := ts.values[:cells]
	sorted := ts.sorted[:cells]

	out.Species = make([]SpeciesStats, numPopulations)
	for s := 0; s < numPopulations; s++ {
		covered := 0
		for i, v := range trails[s*cells : (s+1)*cells] {
			values[i] = float64(v)
			if values[i] > ts.Threshold {
				covered++
			}
		}
		mean, std := stat.PopMeanStdDev(values, nil)
		copy(sorted, values)
		sort.Float64s(sorted)

		out.Species[s] = SpeciesStats{
			Species:  s,
			Mass:     floats.Sum(values),
			Mean:     mean,
			StdDev:   std,
			Max:      floats.Max(values),
			P90:      stat.Quantile(0.9, stat.Empirical, sorted, nil),
			Coverage: float64(covered) / float64(cells),
		}
	}
	return out
}

// LogValue implements slog.LogValuer for structured logging.
func (s TrailStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Uint64("tick", s.Tick),
		slog.Int("particles", s.Particles),
		slog.Float64("mass", s.TotalMass()),
		slog.Float64("coverage", s.MeanCoverage()),
	}
	for _, sp := range s.Species {
		attrs = append(attrs, slog.Group("species"+itoa(sp.Species),
			slog.Float64("mass", sp.Mass),
			slog.Float64("max", sp.Max),
			slog.Float64("coverage", sp.Coverage),
		))
	}
	return slog.GroupValue(attrs...)
}

func itoa(i int) string {
	if i >= 0 && i < 10 {
		return string(rune('0' + i))
	}
	return "n"
}

// TrailRecordCSV is one CSV row: one species at one tick.
type TrailRecordCSV struct {
	Tick      uint64  `csv:"tick"`
	Particles int     `csv:"particles"`
	Species   int     `csv:"species"`
	Mass      float64 `csv:"mass"`
	Mean      float64 `csv:"mean"`
	StdDev    float64 `csv:"stddev"`
	Max       float64 `csv:"max"`
	P90       float64 `csv:"p90"`
	Coverage  float64 `csv:"coverage"`
}

// ToCSV flattens the stats into one row per species.
func (s TrailStats) ToCSV() []TrailRecordCSV {
	rows := make([]TrailRecordCSV, len(s.Species))
	for i, sp := range s.Species {
		rows[i] = TrailRecordCSV{
			Tick:      s.Tick,
			Particles: s.Particles,
			Species:   sp.Species,
			Mass:      sp.Mass,
			Mean:      sp.Mean,
			StdDev:    sp.StdDev,
			Max:       sp.Max,
			P90:       sp.P90,
			Coverage:  sp.Coverage,
		}
	}
	return rows
}
