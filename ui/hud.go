package ui

import (
	"fmt"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/telemetry"
)

// HUDData holds everything the heads-up display shows.
type HUDData struct {
	FPS           int32
	Tick          uint64
	Particles     int
	Populations   int
	StepsPerFrame int
	Paused        bool
	Perf          telemetry.PerfStats
	Trail         telemetry.TrailStats
	Colors        []string
	Zoom          float32
	CellX, CellY  int // grid cell under the cursor
}

// HUD renders frame stats in the top-right corner.
type HUD struct {
	renderer *Renderer
	width    int32
	visible  bool
}

// NewHUD creates a visible HUD.
func NewHUD() *HUD {
	return &HUD{renderer: NewRenderer(), width: 230, visible: true}
}

// Toggle switches HUD visibility.
func (h *HUD) Toggle() bool {
	h.visible = !h.visible
	return h.visible
}

// Draw renders the HUD.
func (h *HUD) Draw(data HUDData) {
	if !h.visible {
		return
	}
	r := h.renderer
	th := r.Theme

	rows := int32(7 + len(data.Trail.Species))
	height := rows*th.LineHeight + 3*th.Padding
	x := int32(rl.GetScreenWidth()) - h.width - th.Padding
	y := th.Padding
	r.DrawPanel(x, y, h.width, height)

	x += th.Padding
	y += th.Padding
	inner := h.width - 2*th.Padding

	status := "running"
	if data.Paused {
		status = "PAUSED"
	}
	y = r.DrawLabelValue(x, y, "Status", fmt.Sprintf("%s  %dx", status, data.StepsPerFrame))
	y = r.DrawLabelValue(x, y, "FPS", fmt.Sprintf("%d (%.1f ms)", data.FPS, float64(data.Perf.AvgFrame.Microseconds())/1000))
	y = r.DrawLabelValue(x, y, "Tick", fmt.Sprintf("%d", data.Tick))
	y = r.DrawLabelValue(x, y, "Particles", fmt.Sprintf("%s / %d species", formatCount(data.Particles), data.Populations))
	y = r.DrawLabelValue(x, y, "Step / render", fmt.Sprintf("%.0f%% / %.0f%%",
		data.Perf.PhasePct[telemetry.PhaseStep], data.Perf.PhasePct[telemetry.PhaseRender]))
	y = r.DrawLabelValue(x, y, "View", fmt.Sprintf("%.1fx  cell %d,%d", data.Zoom, data.CellX, data.CellY))
	y = r.DrawLabelValue(x, y, "Trail mass", fmt.Sprintf("%.3g", data.Trail.TotalMass()))

	y += th.Padding / 2
	for i, s := range data.Trail.Species {
		fill := th.BarFill
		if i < len(data.Colors) {
			fill = hexColor(data.Colors[i])
		}
		y = r.DrawBar(x, y, fmt.Sprintf("coverage %d", s.Species+1), float32(s.Coverage), inner, fill)
	}
}

// DrawLegend prints the key bindings along the bottom edge.
func (h *HUD) DrawLegend(left int32) {
	th := h.renderer.Theme
	rl.DrawText("[Space] pause  [,/.] speed  [R] reset  [S] snapshot  [Tab] panel  [H] hud  [wheel/RMB/0] view  [F11] fullscreen",
		left+th.Padding, int32(rl.GetScreenHeight())-20, th.FontSize, rl.Gray)
}
