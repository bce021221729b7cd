package main

import (
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/device/software"
	"github.com/pthm-cable/physarum/population"
	"github.com/pthm-cable/physarum/simulation"
	"github.com/pthm-cable/physarum/telemetry"
)

// Structure weight: how much trail contrast (stddev/mean) is rewarded
// relative to the squared coverage error.
const contrastWeight = 0.02

// FitnessEvaluator runs headless simulations and computes fitness.
type FitnessEvaluator struct {
	params    *ParamVector
	base      population.MultiPopulationConfig
	ticks     int
	seeds     []int64
	target    float64
	threshold float64
	limits    device.Limits
	workers   int

	mu       sync.Mutex
	lastRuns []runResult
}

// NewFitnessEvaluator creates a new evaluator. base supplies the grid,
// particle count and attraction table; the parameters come from x.
func NewFitnessEvaluator(params *ParamVector, base population.MultiPopulationConfig, ticks int, seeds []int64, target, threshold float64) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:    params,
		base:      base,
		ticks:     ticks,
		seeds:     seeds,
		target:    target,
		threshold: threshold,
		limits:    device.DefaultLimits(),
		workers:   1,
	}
}

// runResult holds the results from a single simulation run.
type runResult struct {
	seed    int64
	stats   telemetry.TrailStats
	fitness float64
	err     error
}

// LastCoverage returns the mean coverage of the most recent evaluation.
func (fe *FitnessEvaluator) LastCoverage() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	cov := make([]float64, 0, len(fe.lastRuns))
	for _, r := range fe.lastRuns {
		cov = append(cov, r.stats.MeanCoverage())
	}
	if len(cov) == 0 {
		return 0
	}
	return floats.Sum(cov) / float64(len(cov))
}

// Evaluate computes fitness for a parameter vector (lower = better).
// Seeds run in parallel, each on its own single-worker CPU device.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.params.Apply(fe.base, x)

	results := make([]runResult, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(cfg, s)
		}(i, seed)
	}
	wg.Wait()

	fit := make([]float64, len(results))
	for i, r := range results {
		if r.err != nil {
			slog.Error("evaluation run failed", "seed", r.seed, "error", r.err)
			fit[i] = math.Inf(1)
			continue
		}
		fit[i] = r.fitness
	}

	fe.mu.Lock()
	fe.lastRuns = results
	fe.mu.Unlock()

	return floats.Sum(fit) / float64(len(fit))
}

// runSimulation executes a single headless run and scores the final trails.
func (fe *FitnessEvaluator) runSimulation(cfg population.MultiPopulationConfig, seed int64) runResult {
	res := runResult{seed: seed}

	dev := software.New(fe.limits, software.WithWorkers(fe.workers))
	defer dev.Close()

	engine, err := simulation.New(dev, cfg,
		simulation.WithRand(rand.New(rand.NewSource(seed))),
		simulation.WithLogger(slog.New(slog.DiscardHandler)))
	if err != nil {
		res.err = err
		return res
	}
	defer engine.Release()

	for i := 0; i < fe.ticks; i++ {
		if err := engine.Step(); err != nil {
			res.err = err
			return res
		}
	}

	trails, err := engine.ReadTrails(nil)
	if err != nil {
		res.err = err
		return res
	}
	res.stats = telemetry.NewTrailSampler(fe.threshold).Compute(engine.Tick(), engine.ParticleCount(), trails, cfg.NumPopulations())
	res.fitness = scoreTrails(res.stats, fe.target)
	return res
}

// scoreTrails penalizes each species' distance from the coverage target
// and rewards contrast, so a network of veins beats a uniform haze.
func scoreTrails(s telemetry.TrailStats, target float64) float64 {
	if len(s.Species) == 0 {
		return math.Inf(1)
	}
	var score float64
	for _, sp := range s.Species {
		d := sp.Coverage - target
		score += d * d
		if sp.Mean > 0 {
			score -= contrastWeight * min(sp.StdDev/sp.Mean, 3)
		}
	}
	return score / float64(len(s.Species))
}
