// Shader debug tool - runs the compute kernels on the GPU for a few ticks,
// renders the result to a PNG and prints trail statistics next to the same
// run on the CPU device.
//
// Usage: go run -tags opengl43 ./cmd/shaderdebug -ticks 200 -out debug.png
package main

import (
	"flag"
	"fmt"
	"image/png"
	"log/slog"
	"math/rand"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/device/software"
	"github.com/pthm-cable/physarum/palette"
	"github.com/pthm-cable/physarum/population"
	"github.com/pthm-cable/physarum/renderer"
	"github.com/pthm-cable/physarum/simulation"
	"github.com/pthm-cable/physarum/telemetry"
)

func main() {
	outPath := flag.String("out", "debug.png", "Output PNG path")
	width := flag.Int("width", 512, "Grid and render width")
	height := flag.Int("height", 512, "Grid and render height")
	particles := flag.Int("particles", 100000, "Particle count")
	species := flag.Int("species", 3, "Number of species")
	ticks := flag.Int("ticks", 200, "Ticks to run before rendering")
	seed := flag.Int64("seed", 42, "RNG seed")
	compare := flag.Bool("compare", true, "Run the same config on the CPU device and print both stats")
	flag.Parse()

	if err := config.Init(""); err != nil {
		fail("config", err)
	}
	cfg := config.Cfg()

	// Initialize raylib with hidden window
	rl.SetConfigFlags(rl.FlagWindowHidden)
	rl.InitWindow(int32(*width), int32(*height), "Shader Debug")
	defer rl.CloseWindow()

	gpu, err := renderer.New(cfg.Device.Limits(), slog.Default())
	if err != nil {
		fail("gpu device", err)
	}

	sim := population.CreateMultiPopulationConfig(rand.New(rand.NewSource(*seed)), *particles, *species, *width, *height)
	pal := palette.NewManager(cfg.Palette.Initial)
	colors := pal.Float32Colors(sim.NumPopulations())

	target := renderer.NewTextureSurface(*width, *height)
	defer target.Unload()

	gpuStats, err := run(gpu, sim, *seed, *ticks, func(e *simulation.Engine) error {
		return e.Render(target, colors[:])
	})
	if err != nil {
		fail("gpu run", err)
	}

	f, err := os.Create(*outPath)
	if err != nil {
		fail("output", err)
	}
	if err := png.Encode(f, target.Image()); err != nil {
		f.Close()
		fail("encode", err)
	}
	if err := f.Close(); err != nil {
		fail("output", err)
	}
	fmt.Printf("Kernels rendered to: %s (%dx%d, %d ticks)\n", *outPath, *width, *height, *ticks)
	printStats("gpu", gpuStats)

	if *compare {
		cpu := software.New(cfg.Device.Limits())
		defer cpu.Close()
		cpuStats, err := run(cpu, sim, *seed, *ticks, nil)
		if err != nil {
			fail("cpu run", err)
		}
		printStats("cpu", cpuStats)
	}
}

// run builds an engine on dev, steps it and samples the trail maps.
func run(dev device.Device, sim population.MultiPopulationConfig, seed int64, ticks int, after func(*simulation.Engine) error) (telemetry.TrailStats, error) {
	engine, err := simulation.New(dev, sim, simulation.WithRand(rand.New(rand.NewSource(seed))))
	if err != nil {
		return telemetry.TrailStats{}, err
	}
	defer engine.Release()

	for i := 0; i < ticks; i++ {
		if err := engine.Step(); err != nil {
			return telemetry.TrailStats{}, err
		}
	}
	if after != nil {
		if err := after(engine); err != nil {
			return telemetry.TrailStats{}, err
		}
	}
	trails, err := engine.ReadTrails(nil)
	if err != nil {
		return telemetry.TrailStats{}, err
	}
	return telemetry.NewTrailSampler(1).Compute(engine.Tick(), engine.ParticleCount(), trails, sim.NumPopulations()), nil
}

func printStats(label string, s telemetry.TrailStats) {
	for _, sp := range s.Species {
		fmt.Printf("  %s species %d: mass=%.4g mean=%.4f stddev=%.4f max=%.3f p90=%.3f coverage=%.3f\n",
			label, sp.Species+1, sp.Mass, sp.Mean, sp.StdDev, sp.Max, sp.P90, sp.Coverage)
	}
}

func fail(what string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	os.Exit(1)
}
