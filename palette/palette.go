// Package palette maps species indices to display colors.
package palette

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pthm-cable/physarum/kernels"
)

// Palette is a named list of hex colors.
type Palette struct {
	Name   string
	Colors []string
}

// Palettes lists the built-in palettes. The first is the default.
var Palettes = []Palette{
	{"Membrane Flare", []string{"#FA2B31", "#FFBF1F", "#FFF146", "#ABE319", "#00C481"}},
	{"Stained Slide", []string{"#8FB2F7", "#1F8A70", "#BEDB39", "#FFE11A", "#FD7400"}},
	{"Cytoplasmic Pulse", []string{"#FAC287", "#9D1DF2", "#BEDB39", "#FFE11A", "#FD7400"}},
	{"Osmotic Pop", []string{"#4DC6EB", "#3BE36B", "#BEDB39", "#FFE11A", "#FD7400"}},
	{"Nucleus Grid", []string{"#334D5C", "#45B29D", "#EFC94C", "#E27A3F", "#DF5A49"}},
	{"Signal Bloom", []string{"#FF8000", "#FFD933", "#CCCC52", "#8FB359", "#192B33"}},
	{"Chromatin Flame", []string{"#730046", "#BFBB11", "#FFC200", "#E88801", "#C93C00"}},
	{"Microtubule Echo", []string{"#E6DD00", "#8CB302", "#008C74", "#004C66", "#332B40"}},
	{"Vesicle Flash", []string{"#F15A5A", "#F0C419", "#4EBA6F", "#2D95BF", "#955BA5"}},
	{"Cosmic Cytoplasm", []string{"#F41C54", "#FF9F00", "#FBD506", "#A8BF12", "#00AAB5"}},
}

// Names returns the palette names in order.
func Names() []string {
	names := make([]string, len(Palettes))
	for i, p := range Palettes {
		names[i] = p.Name
	}
	return names
}

// Manager tracks the selected palette and any per-slot color overrides.
type Manager struct {
	index  int
	colors []string
}

// NewManager starts on the named palette, or the first one if name is unknown.
func NewManager(name string) *Manager {
	m := &Manager{}
	m.SelectIndex(0)
	m.SelectName(name)
	return m
}

// CurrentColors returns a copy of the active colors.
func (m *Manager) CurrentColors() []string {
	return append([]string(nil), m.colors...)
}

// CurrentIndex returns the selected palette index.
func (m *Manager) CurrentIndex() int { return m.index }

// CurrentName returns the selected palette name.
func (m *Manager) CurrentName() string { return Palettes[m.index].Name }

// SelectIndex switches palettes, discarding overrides. Out-of-range indices
// are ignored. Returns the active colors.
func (m *Manager) SelectIndex(i int) []string {
	if i >= 0 && i < len(Palettes) {
		m.index = i
		m.colors = append([]string(nil), Palettes[i].Colors...)
	}
	return m.CurrentColors()
}

// SelectName switches to the named palette. Unknown names are ignored.
func (m *Manager) SelectName(name string) []string {
	for i, p := range Palettes {
		if p.Name == name {
			return m.SelectIndex(i)
		}
	}
	return m.CurrentColors()
}

// SetColor overrides one slot of the active palette. Out-of-range slots are ignored.
func (m *Manager) SetColor(i int, hex string) {
	if i >= 0 && i < len(m.colors) {
		m.colors[i] = hex
	}
}

// Float32Colors packs RGBA for up to eight species. Species i uses color
// i mod len(colors); alpha and unused slots are zero.
func (m *Manager) Float32Colors(numPopulations int) [kernels.ColorWords]float32 {
	var out [kernels.ColorWords]float32
	if len(m.colors) == 0 {
		return out
	}
	n := min(numPopulations, kernels.ColorWords/4)
	for i := 0; i < n; i++ {
		r, g, b := HexToRGB(m.colors[i%len(m.colors)])
		out[i*4+0] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = 0
	}
	return out
}

// HexToRGB parses "#RRGGBB" (the # is optional, case-insensitive) into
// channels in [0,1]. Anything else yields white.
func HexToRGB(hex string) (r, g, b float32) {
	s := strings.TrimPrefix(hex, "#")
	if len(s) != 6 {
		return 1, 1, 1
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 1, 1, 1
	}
	return float32(v>>16&0xFF) / 255, float32(v>>8&0xFF) / 255, float32(v&0xFF) / 255
}

// RGBToHex formats channels in [0,1] as lowercase "#rrggbb".
func RGBToHex(r, g, b float32) string {
	return fmt.Sprintf("#%02x%02x%02x", toByte(r), toByte(g), toByte(b))
}

func toByte(v float32) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, float64(v))) * 255))
}
