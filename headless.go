package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/physarum/device/software"
	"github.com/pthm-cable/physarum/game"
)

var (
	maxTicks      uint64 // Stop after N ticks (0 = until interrupted)
	gridWidth     int    // Grid width (0 = screen width)
	gridHeight    int    // Grid height (0 = screen height)
	finalSnapshot bool   // Render and save a snapshot when the run ends
)

// headlessCmd runs the simulation on the CPU device without a window.
var headlessCmd = &cobra.Command{
	Use:   "headless",
	Short: "Run the simulation on the CPU without graphics",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, rngSeed, err := loadConfig()
		if err != nil {
			return err
		}

		dev := software.New(cfg.Device.Limits())
		defer dev.Close()

		g, err := game.NewGame(dev, cfg, gameOptions(rngSeed, gridWidth, gridHeight))
		if err != nil {
			return err
		}
		defer g.Unload()
		if err := loadParams(g); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := g.RunHeadless(ctx, maxTicks); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		if finalSnapshot {
			cur := g.Config()
			pm := software.NewPixmap(cur.Width, cur.Height)
			g.Draw(pm)
			path, err := g.SaveSnapshot(pm.Image)
			if err != nil {
				return err
			}
			if path == "" {
				slog.Warn("snapshot skipped: no --snapshot-dir or --output-dir")
			}
		}
		slog.Info("headless run finished", "tick", g.Tick(), "perf", g.PerfStats())
		return nil
	},
}

func init() {
	headlessCmd.Flags().Uint64Var(&maxTicks, "max-ticks", 0, "Stop after N ticks (0 = unlimited)")
	headlessCmd.Flags().IntVar(&gridWidth, "width", 0, "Grid width (0 = screen width from config)")
	headlessCmd.Flags().IntVar(&gridHeight, "height", 0, "Grid height (0 = screen height from config)")
	headlessCmd.Flags().BoolVar(&finalSnapshot, "snapshot", false, "Render and save a snapshot when the run ends")
}
