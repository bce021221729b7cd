package ui

import (
	"fmt"
	"strings"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/palette"
	"github.com/pthm-cable/physarum/population"
)

// Controller is the set of operations the panel drives. *game.Game
// implements it.
type Controller interface {
	Config() population.MultiPopulationConfig
	MaxPopulations() int
	PaletteIndex() int
	PaletteColors() []string
	LastError() string
	ClearError()

	ResetParticles() error
	RegenerateConfig() error
	SetPopulationCount(n int) error
	SetParticleCount(n int) error
	SetPopulationParam(i int, p population.Param, v float32) error
	SetAttraction(i, j int, v float32) error
	SelectPaletteIndex(i int)
}

// Panel is the control panel docked on the left edge.
type Panel struct {
	renderer *Renderer
	ui       config.UIConfig
	visible  bool

	species   int32 // selected species for the parameter sliders
	count     int32 // population spinner value
	paletteIx int32

	paletteEdit bool
	countEdit   bool
	speciesEdit bool

	// Particle slider value while dragging; applied on release.
	dragging  bool
	particles float32

	paletteText string
}

// NewPanel creates a visible panel.
func NewPanel(ui config.UIConfig) *Panel {
	return &Panel{
		renderer:    NewRenderer(),
		ui:          ui,
		visible:     true,
		paletteText: strings.Join(palette.Names(), ";"),
	}
}

// Toggle switches panel visibility.
func (p *Panel) Toggle() bool {
	p.visible = !p.visible
	return p.visible
}

// Visible reports whether the panel is drawn.
func (p *Panel) Visible() bool { return p.visible }

// Width returns the panel width.
func (p *Panel) Width() int32 { return int32(p.ui.PanelWidth) }

// Draw renders the panel and applies any control the user changed.
func (p *Panel) Draw(c Controller) {
	msg := c.LastError()
	if msg != "" {
		gui.Lock()
	}
	if p.visible {
		p.drawControls(c, msg != "")
	}
	gui.Unlock()
	if msg != "" {
		p.drawError(c, msg)
	}
}

func (p *Panel) drawControls(c Controller, locked bool) {
	r := p.renderer
	th := r.Theme
	cfg := c.Config()
	n := cfg.NumPopulations()
	p.species = min(p.species, int32(n-1))
	if !p.countEdit {
		p.count = int32(n)
	}
	if !p.paletteEdit {
		p.paletteIx = int32(c.PaletteIndex())
	}

	width := p.Width()
	x := th.Padding
	inner := width - 2*th.Padding
	r.DrawPanel(0, 0, width, int32(rl.GetScreenHeight()))

	if p.paletteEdit {
		gui.Lock()
	}

	y := th.Padding
	rl.DrawText("Physarum", x, y, 18, rl.White)
	y += 26

	half := (inner - th.Padding) / 2
	if gui.Button(rect(x, y, half, th.RowHeight), "Reset particles") {
		_ = c.ResetParticles()
	}
	if gui.Button(rect(x+half+th.Padding, y, half, th.RowHeight), "Regenerate") {
		_ = c.RegenerateConfig()
	}
	y += th.RowHeight + th.Padding

	y = r.DrawSectionHeader(x, y, "Simulation")
	y = p.drawParticles(c, cfg, x, y, inner)

	rl.DrawText("Populations", x, y+4, th.FontSize, th.LabelColor)
	if gui.Spinner(rect(x+th.LabelWidth, y, inner-th.LabelWidth, th.RowHeight), "", &p.count, 1, c.MaxPopulations(), p.countEdit) != 0 {
		p.countEdit = !p.countEdit
	}
	if !p.countEdit && int(p.count) != n {
		_ = c.SetPopulationCount(int(p.count))
		cfg = c.Config()
		n = cfg.NumPopulations()
		p.species = min(p.species, int32(n-1))
	}
	y += th.RowHeight + 4

	paletteY := y
	y += th.RowHeight + 4
	y = p.drawSwatches(c, x, y, n)
	y += th.Padding

	y = r.DrawSectionHeader(x, y, "Species")
	rl.DrawText("Edit species", x, y+4, th.FontSize, th.LabelColor)
	sel := p.species + 1
	if gui.Spinner(rect(x+th.LabelWidth, y, inner-th.LabelWidth, th.RowHeight), "", &sel, 1, n, p.speciesEdit) != 0 {
		p.speciesEdit = !p.speciesEdit
	}
	p.species = max(0, min(sel-1, int32(n-1)))
	y += th.RowHeight + 4

	y = p.drawParams(c, cfg, int(p.species), x, y, inner)
	y += th.Padding

	y = r.DrawSectionHeader(x, y, "Attraction")
	p.drawAttraction(c, cfg, int(p.species), x, y, inner)

	if !locked {
		gui.Unlock()
	}

	// Drawn last so the open list covers the controls below it.
	rl.DrawText("Palette", x, paletteY+4, th.FontSize, th.LabelColor)
	if gui.DropdownBox(rect(x+th.LabelWidth, paletteY, inner-th.LabelWidth, th.RowHeight), p.paletteText, &p.paletteIx, p.paletteEdit) {
		p.paletteEdit = !p.paletteEdit
		if !p.paletteEdit {
			c.SelectPaletteIndex(int(p.paletteIx))
		}
	}
}

func (p *Panel) drawParticles(c Controller, cfg population.MultiPopulationConfig, x, y, width int32) int32 {
	th := p.renderer.Theme
	lo, hi := float32(p.ui.MinParticles), float32(p.ui.MaxParticles)

	if !p.dragging {
		p.particles = float32(cfg.ParticleCount)
	}
	target := snapParticles(p.particles, p.ui.MinParticles, p.ui.MaxParticles, p.ui.ParticleStep)

	rl.DrawText("Particles", x, y+4, th.FontSize, th.LabelColor)
	bounds := rect(x+th.LabelWidth, y, width-th.LabelWidth-48, th.RowHeight)
	p.particles = gui.SliderBar(bounds, "", formatCount(target), p.particles, lo, hi)

	if rl.CheckCollisionPointRec(rl.GetMousePosition(), bounds) && rl.IsMouseButtonPressed(rl.MouseButtonLeft) {
		p.dragging = true
	}
	if p.dragging && rl.IsMouseButtonReleased(rl.MouseButtonLeft) {
		p.dragging = false
		if target != cfg.ParticleCount {
			_ = c.SetParticleCount(target)
		}
	}
	return y + th.RowHeight + 4
}

func (p *Panel) drawSwatches(c Controller, x, y int32, n int) int32 {
	th := p.renderer.Theme
	colors := c.PaletteColors()
	step := th.BarHeight + 6
	for i := 0; i < n && i < len(colors); i++ {
		p.renderer.DrawSwatch(x+th.LabelWidth+int32(i)*step, y, hexColor(colors[i]))
	}
	return y + th.LineHeight
}

func (p *Panel) drawParams(c Controller, cfg population.MultiPopulationConfig, species int, x, y, width int32) int32 {
	th := p.renderer.Theme
	pop := cfg.Populations[species]
	for _, spec := range population.ParameterRanges {
		cur := displayValue(spec, pop.Get(spec.Param))
		bounds := rect(x+th.LabelWidth, y, width-th.LabelWidth-48, th.RowHeight)
		rl.DrawText(spec.Name, x, y+4, th.FontSize, th.LabelColor)
		next := gui.SliderBar(bounds, "", formatParam(spec, cur), cur, spec.Range.Min, spec.Range.Max)
		if changed(next, cur) {
			_ = c.SetPopulationParam(species, spec.Param, storedValue(spec, next))
		}
		y += th.RowHeight + 4
	}
	return y
}

func (p *Panel) drawAttraction(c Controller, cfg population.MultiPopulationConfig, species int, x, y, width int32) int32 {
	th := p.renderer.Theme
	rg := attractionRange()
	colors := c.PaletteColors()
	for j := 0; j < cfg.NumPopulations(); j++ {
		cur := cfg.Attraction.At(species, j)
		label := fmt.Sprintf("senses %d", j+1)
		rl.DrawText(label, x, y+4, th.FontSize, th.LabelColor)
		if j < len(colors) {
			p.renderer.DrawSwatch(x+th.LabelWidth-th.BarHeight-8, y+3, hexColor(colors[j]))
		}
		bounds := rect(x+th.LabelWidth, y, width-th.LabelWidth-48, th.RowHeight)
		next := gui.SliderBar(bounds, "", fmt.Sprintf("%+.2f", cur), cur, rg.Min, rg.Max)
		if changed(next, cur) {
			_ = c.SetAttraction(species, j, next)
		}
		y += th.RowHeight + 4
	}
	return y
}

// drawError shows a modal box until the user dismisses it.
func (p *Panel) drawError(c Controller, msg string) {
	sw, sh := int32(rl.GetScreenWidth()), int32(rl.GetScreenHeight())
	w, h := min(int32(420), sw-20), int32(140)
	rl.DrawRectangle(0, 0, sw, sh, rl.Fade(rl.Black, 0.4))
	if gui.MessageBox(rect((sw-w)/2, (sh-h)/2, w, h), "Error", msg, "OK") >= 0 {
		c.ClearError()
	}
}
