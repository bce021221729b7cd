package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/game"
)

var (
	configPath  string  // Path to config.yaml (empty = embedded defaults)
	seed        int64   // RNG seed (0 = config, then time-based)
	logStats    bool    // Log trail and perf stats each window
	statsWindow float64 // Stats window in seconds (0 = config)
	outputDir   string  // CSV and config output (empty = disabled)
	snapshotDir string  // Snapshot directory
	paramsPath  string  // Snapshot JSON to load parameters from
	steps       int     // Ticks per frame (0 = config)
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:           "physarum",
	Short:         "Multi-species Physarum slime mold simulation",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	pf.Int64Var(&seed, "seed", 0, "RNG seed (0 = config value, then time-based)")
	pf.BoolVar(&logStats, "log-stats", false, "Output trail and perf stats via slog")
	pf.Float64Var(&statsWindow, "stats-window", 0, "Stats window size in seconds (0 = use config)")
	pf.StringVar(&outputDir, "output-dir", "", "Output directory for CSV logs and config snapshot")
	pf.StringVar(&snapshotDir, "snapshot-dir", "", "Directory for snapshot files")
	pf.StringVar(&paramsPath, "params", "", "Load population parameters from a snapshot JSON")
	pf.IntVar(&steps, "steps-per-frame", 0, "Simulation ticks per frame (0 = use config)")

	rootCmd.AddCommand(runCmd, headlessCmd)
}

func main() {
	// Set up slog (JSON to stdout for structured logging)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := rootCmd.Execute(); err != nil {
		slog.Error("physarum failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig initializes the global config and resolves the seed.
func loadConfig() (*config.Config, int64, error) {
	if err := config.Init(configPath); err != nil {
		return nil, 0, err
	}
	cfg := config.Cfg()

	rngSeed := seed
	if rngSeed == 0 {
		rngSeed = cfg.Simulation.Seed
	}
	if rngSeed == 0 {
		rngSeed = time.Now().UnixNano()
	}
	return cfg, rngSeed, nil
}

// gameOptions builds the options shared by both subcommands.
func gameOptions(rngSeed int64, width, height int) game.Options {
	return game.Options{
		Seed:           rngSeed,
		LogStats:       logStats,
		StatsWindowSec: statsWindow,
		SnapshotDir:    snapshotDir,
		OutputDir:      outputDir,
		StepsPerFrame:  steps,
		Width:          width,
		Height:         height,
		Logger:         slog.Default(),
	}
}

// loadParams applies --params if given.
func loadParams(g *game.Game) error {
	if paramsPath == "" {
		return nil
	}
	return g.LoadParameters(paramsPath)
}
