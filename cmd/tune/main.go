// Package main provides CMA-ES optimization of per-species movement
// parameters toward a target trail coverage.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/device/software"
	"github.com/pthm-cable/physarum/palette"
	"github.com/pthm-cable/physarum/population"
	"github.com/pthm-cable/physarum/simulation"
	"github.com/pthm-cable/physarum/telemetry"
)

// formatDuration formats a duration as HhMMmSSs or MmSSs for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Base config YAML file (empty = use defaults)")
	species := flag.Int("species", 0, "Number of species (0 = simulation.num_populations)")
	ticks := flag.Int("ticks", 0, "Ticks per run (0 = tune.ticks)")
	seeds := flag.Int("seeds", 3, "Number of seeds per evaluation")
	maxEvals := flag.Int("max-evals", 200, "Maximum number of evaluations")
	popSizeFlag := flag.Int("population", 0, "CMA-ES population size (0 = auto)")
	baseSeed := flag.Int64("base-seed", 1, "Seed for the starting config and attraction table")
	outputDir := flag.String("output", "", "Output directory for results")
	flag.Parse()

	if *outputDir == "" {
		log.Fatal("--output is required")
	}
	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		log.Fatalf("failed to create output directory: %v", err)
	}

	if err := config.Init(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Cfg()
	tc := cfg.Tune

	n := *species
	if n <= 0 {
		n = cfg.Simulation.NumPopulations
	}
	runTicks := *ticks
	if runTicks <= 0 {
		runTicks = tc.Ticks
	}

	rng := rand.New(rand.NewSource(*baseSeed))
	base := population.CreateMultiPopulationConfig(rng, tc.ParticleCount, n, tc.Width, tc.Height)
	if err := base.Validate(); err != nil {
		log.Fatalf("invalid tune settings: %v", err)
	}

	params := NewParamVector(n)

	evalSeeds := make([]int64, *seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}

	evaluator := NewFitnessEvaluator(params, base, runTicks, evalSeeds,
		tc.CoverageTarget, cfg.Telemetry.CoverageThreshold)

	dim := params.Dim()
	initX := params.Normalize(params.FromConfig(base))

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			return evaluator.Evaluate(params.Denormalize(x))
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: *maxEvals,
		Concurrent:      0, // Sequential; seeds already run in parallel
	}

	popSize := *popSizeFlag
	if popSize == 0 {
		popSize = 4 + int(3.0*float64(dim)/2.0)
	}

	method := &optimize.CmaEsChol{
		InitStepSize: 0.3,
		Population:   popSize,
	}

	logPath := filepath.Join(*outputDir, "tune_log.csv")
	logFile, err := os.Create(logPath)
	if err != nil {
		log.Fatalf("failed to create log file: %v", err)
	}
	defer logFile.Close()

	logWriter := csv.NewWriter(logFile)
	defer logWriter.Flush()

	header := []string{"eval", "fitness", "coverage"}
	for _, spec := range params.Specs {
		header = append(header, spec.Name)
	}
	logWriter.Write(header)

	evalCount := 0
	bestFitness := 1e9
	var bestParams []float64
	startTime := time.Now()

	originalFunc := problem.Func
	problem.Func = func(x []float64) float64 {
		fitness := originalFunc(x)
		evalCount++

		clamped := params.Clamp(params.Denormalize(x))
		if fitness < bestFitness {
			bestFitness = fitness
			bestParams = clamped
		}

		coverage := evaluator.LastCoverage()
		row := []string{strconv.Itoa(evalCount), fmt.Sprintf("%.6f", fitness), fmt.Sprintf("%.4f", coverage)}
		for _, v := range clamped {
			row = append(row, fmt.Sprintf("%.6f", v))
		}
		logWriter.Write(row)
		logWriter.Flush()

		elapsed := time.Since(startTime)
		avgPerEval := elapsed / time.Duration(evalCount)
		remaining := time.Duration(*maxEvals-evalCount) * avgPerEval

		fmt.Printf("Eval %d/%d: fitness=%.5f coverage=%.3f (best=%.5f) | elapsed: %s, ETA: %s\n",
			evalCount, *maxEvals, fitness, coverage, bestFitness,
			formatDuration(elapsed), formatDuration(remaining))

		return fitness
	}

	fmt.Printf("Starting CMA-ES optimization with %d parameters, population=%d, max_evals=%d\n",
		dim, popSize, *maxEvals)
	fmt.Printf("Species: %d, grid: %dx%d, particles: %d, ticks per run: %d, target coverage: %.2f\n",
		n, tc.Width, tc.Height, tc.ParticleCount, runTicks, tc.CoverageTarget)

	result, err := optimize.Minimize(problem, initX, settings, method)
	if err != nil {
		log.Printf("optimization ended: %v", err)
	}
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		log.Fatal("no evaluation completed")
	}

	fmt.Printf("\nOptimization complete after %d evaluations in %s\n", evalCount, formatDuration(time.Since(startTime)))
	fmt.Printf("Best fitness: %.5f\n", bestFitness)

	fmt.Println("\nBest parameters:")
	for i, spec := range params.Specs {
		fmt.Printf("  %s: %.6f\n", spec.Name, bestParams[i])
	}

	best := params.Apply(base, bestParams)
	path, err := saveBest(best, cfg, *baseSeed, *outputDir)
	if err != nil {
		log.Printf("failed to write best snapshot: %v", err)
		return
	}
	fmt.Printf("\nBest parameters saved to: %s (load with --params)\n", path)
}

// saveBest renders one run of the best parameters and saves it as a
// snapshot the main binary can load.
func saveBest(best population.MultiPopulationConfig, cfg *config.Config, seed int64, dir string) (string, error) {
	dev := software.New(cfg.Device.Limits())
	defer dev.Close()

	engine, err := simulation.New(dev, best, simulation.WithRand(rand.New(rand.NewSource(seed))))
	if err != nil {
		return "", err
	}
	defer engine.Release()
	for i := 0; i < cfg.Tune.Ticks; i++ {
		if err := engine.Step(); err != nil {
			return "", err
		}
	}

	pal := palette.NewManager(cfg.Palette.Initial)
	colors := pal.Float32Colors(best.NumPopulations())
	pm := software.NewPixmap(best.Width, best.Height)
	if err := engine.Render(pm, colors[:]); err != nil {
		return "", err
	}

	snap := &telemetry.Snapshot{
		Seed:    seed,
		Tick:    engine.Tick(),
		Palette: pal.CurrentName(),
		Colors:  pal.CurrentColors(),
		Config:  best,
	}
	return telemetry.SaveSnapshot(snap, dir, pm.Image)
}
