package main

import (
	"log/slog"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/physarum/camera"
	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/game"
	"github.com/pthm-cable/physarum/ui"
)

// runCmd opens the window and runs the interactive simulation.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the simulation in a window with the control panel",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, rngSeed, err := loadConfig()
		if err != nil {
			return err
		}

		rl.SetConfigFlags(rl.FlagWindowResizable)
		rl.InitWindow(int32(cfg.Screen.Width), int32(cfg.Screen.Height), cfg.Screen.Title)
		defer rl.CloseWindow()
		rl.SetTargetFPS(int32(cfg.Screen.TargetFPS))

		dev, pres, err := openBackend(cfg, slog.Default())
		if err != nil {
			return err
		}
		defer pres.Unload()

		if snapshotDir == "" {
			snapshotDir = "snapshots"
		}
		opts := gameOptions(rngSeed, rl.GetScreenWidth(), rl.GetScreenHeight())
		opts.SampleTrails = true
		g, err := game.NewGame(dev, cfg, opts)
		if err != nil {
			return err
		}
		defer g.Unload()
		if err := loadParams(g); err != nil {
			slog.Error("failed to load parameters", "path", paramsPath, "error", err)
		}

		newWindow(cfg, g, pres).loop()
		return nil
	},
}

// window ties the game to the raylib frame loop.
type window struct {
	game  *game.Game
	pres  presenter
	cam   *camera.Camera
	panel *ui.Panel
	hud   *ui.HUD

	snapshot bool
}

func newWindow(cfg *config.Config, g *game.Game, pres presenter) *window {
	ui.DefaultTheme().Apply()
	cur := g.Config()
	return &window{
		game: g,
		pres: pres,
		cam: camera.New(float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight()),
			float32(cur.Width), float32(cur.Height)),
		panel: ui.NewPanel(cfg.UI),
		hud:   ui.NewHUD(),
	}
}

func (w *window) loop() {
	g := w.game
	for !rl.WindowShouldClose() {
		w.handleInput()

		if err := g.Update(); err != nil && !g.Paused() {
			// A failing step would fail again next frame.
			g.TogglePause()
		}

		cur := g.Config()
		w.cam.SetWorld(float32(cur.Width), float32(cur.Height))

		rl.BeginDrawing()
		rl.ClearBackground(rl.Black)
		g.Draw(w.pres.Surface(cur.Width, cur.Height))
		w.pres.Present(w.cam.Source())

		if w.snapshot {
			w.snapshot = false
			if _, err := g.SaveSnapshot(w.pres.Screenshot()); err != nil {
				slog.Error("snapshot failed", "error", err)
			}
		}

		g.TimeUI(w.drawUI)
		rl.EndDrawing()
		g.EndFrame()
	}
}

func (w *window) drawUI() {
	g := w.game
	cur := g.Config()
	mouse := rl.GetMousePosition()
	cx, cy := w.cam.ScreenToWorld(mouse.X, mouse.Y)
	w.hud.Draw(ui.HUDData{
		FPS:           rl.GetFPS(),
		Tick:          g.Tick(),
		Particles:     cur.ParticleCount,
		Populations:   cur.NumPopulations(),
		StepsPerFrame: g.StepsPerFrame(),
		Paused:        g.Paused(),
		Perf:          g.PerfStats(),
		Trail:         g.LastTrailStats(),
		Colors:        g.PaletteColors(),
		Zoom:          w.cam.Zoom,
		CellX:         int(cx),
		CellY:         int(cy),
	})
	left := int32(0)
	if w.panel.Visible() {
		left = w.panel.Width()
	}
	w.hud.DrawLegend(left)
	w.panel.Draw(g)
}

// handleInput processes window and keyboard input.
func (w *window) handleInput() {
	g := w.game

	if rl.IsWindowResized() {
		g.RequestResize(rl.GetScreenWidth(), rl.GetScreenHeight())
	}
	w.cam.Resize(float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight()))
	if rl.IsKeyPressed(rl.KeyF11) {
		rl.ToggleFullscreen()
		g.RequestResize(rl.GetScreenWidth(), rl.GetScreenHeight())
	}

	if rl.IsKeyPressed(rl.KeySpace) {
		g.TogglePause()
	}
	// Steps-per-frame control with < > keys (comma and period)
	if rl.IsKeyPressed(rl.KeyComma) {
		g.SetStepsPerFrame(g.StepsPerFrame() - 1)
	}
	if rl.IsKeyPressed(rl.KeyPeriod) {
		g.SetStepsPerFrame(g.StepsPerFrame() + 1)
	}

	if rl.IsKeyPressed(rl.KeyS) {
		w.snapshot = true
	}
	if rl.IsKeyPressed(rl.KeyTab) {
		w.panel.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyH) {
		w.hud.Toggle()
	}
	if rl.IsKeyPressed(rl.KeyR) {
		_ = g.ResetParticles()
	}

	w.handleCamera()
}

// handleCamera zooms with the wheel and pans with a right-button drag.
// Input over the panel is left to the panel.
func (w *window) handleCamera() {
	mouse := rl.GetMousePosition()
	if w.panel.Visible() && mouse.X < float32(w.panel.Width()) {
		return
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		factor := float32(1.1)
		if wheel < 0 {
			factor = 1 / factor
		}
		w.cam.ZoomAt(mouse.X, mouse.Y, factor)
	}
	if rl.IsMouseButtonDown(rl.MouseButtonRight) {
		d := rl.GetMouseDelta()
		w.cam.Pan(-d.X, -d.Y)
	}
	if rl.IsKeyPressed(rl.KeyZero) {
		w.cam.Reset()
	}
}
