package telemetry

import (
	"math"
	"testing"
)

func TestTrailSamplerCompute(t *testing.T) {
	// Two species on a 2x2 grid.
	trails := []float32{
		0, 1, 2, 5, // species 0
		0, 0, 0, 0, // species 1
	}
	ts := NewTrailSampler(0.5)
	stats := ts.Compute(12, 100, trails, 2)

	if stats.Tick != 12 || stats.Particles != 100 {
		t.Errorf("tick/particles = %d/%d", stats.Tick, stats.Particles)
	}
	if len(stats.Species) != 2 {
		t.Fatalf("species = %d, want 2", len(stats.Species))
	}

	s0 := stats.Species[0]
	if s0.Mass != 8 {
		t.Errorf("mass = %v, want 8", s0.Mass)
	}
	if s0.Mean != 2 {
		t.Errorf("mean = %v, want 2", s0.Mean)
	}
	// population stddev of {0,1,2,5} = sqrt(3.5)
	if math.Abs(s0.StdDev-math.Sqrt(3.5)) > 1e-9 {
		t.Errorf("stddev = %v, want %v", s0.StdDev, math.Sqrt(3.5))
	}
	if s0.Max != 5 {
		t.Errorf("max = %v, want 5", s0.Max)
	}
	if s0.P90 != 5 {
		t.Errorf("p90 = %v, want 5", s0.P90)
	}
	if s0.Coverage != 0.75 {
		t.Errorf("coverage = %v, want 0.75", s0.Coverage)
	}

	if stats.Species[1].Mass != 0 || stats.Species[1].Coverage != 0 {
		t.Errorf("empty species: %+v", stats.Species[1])
	}
	if stats.TotalMass() != 8 {
		t.Errorf("total mass = %v", stats.TotalMass())
	}
	if stats.MeanCoverage() != 0.375 {
		t.Errorf("mean coverage = %v", stats.MeanCoverage())
	}
}

func TestTrailSamplerEmpty(t *testing.T) {
	ts := NewTrailSampler(0)
	stats := ts.Compute(0, 0, nil, 3)
	if len(stats.Species) != 0 || stats.MeanCoverage() != 0 {
		t.Errorf("expected empty stats, got %+v", stats)
	}
}

func TestTrailStatsToCSV(t *testing.T) {
	ts := NewTrailSampler(0)
	rows := ts.Compute(7, 10, []float32{1, 1, 2, 2, 3, 3}, 3).ToCSV()
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	for i, r := range rows {
		if r.Tick != 7 || r.Species != i {
			t.Errorf("row %d: tick=%d species=%d", i, r.Tick, r.Species)
		}
		if r.Mass != float64(2*(i+1)) {
			t.Errorf("row %d mass = %v", i, r.Mass)
		}
	}
}
