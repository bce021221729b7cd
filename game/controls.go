package game

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/physarum/population"
	"github.com/pthm-cable/physarum/simulation"
)

// Operations bound to the control panel. Each one either applies fully or
// leaves the running simulation as it was and sets LastError.

// ResetParticles reseeds particles and clears the trail maps.
func (g *Game) ResetParticles() error {
	if g.engine == nil {
		return g.Rebuild(g.sim)
	}
	if err := g.engine.Reset(); err != nil {
		return g.fail("reset", err)
	}
	return nil
}

// RegenerateConfig samples fresh parameters and attraction for the current
// particle count, species count and grid.
func (g *Game) RegenerateConfig() error {
	next := population.CreateMultiPopulationConfig(g.rng,
		g.sim.ParticleCount, g.sim.NumPopulations(), g.sim.Width, g.sim.Height)
	return g.Rebuild(next)
}

// SetPopulationCount regenerates the configuration with n species.
func (g *Game) SetPopulationCount(n int) error {
	if n < 1 || n > g.maxPopulation {
		return g.fail("set population count", &simulation.ValidationError{
			Field: "num_populations", Value: n, Reason: fmt.Sprintf("must be in [1, %d]", g.maxPopulation),
		})
	}
	next := population.CreateMultiPopulationConfig(g.rng,
		g.sim.ParticleCount, n, g.sim.Width, g.sim.Height)
	return g.Rebuild(next)
}

// SetParticleCount resizes the particle buffer to n. The trail maps keep
// their contents. The resource-limit retry applies here as in Rebuild.
func (g *Game) SetParticleCount(n int) error {
	if n <= 0 {
		return g.fail("set particle count", &simulation.ValidationError{
			Field: "particle_count", Value: n, Reason: "must be greater than 0",
		})
	}
	if g.engine == nil {
		return g.Rebuild(g.sim.WithParticleCount(n))
	}
	count, err := g.withRetry(n, g.engine.UpdateParticleCount)
	if err != nil {
		return g.fail("set particle count", err)
	}
	g.sim.ParticleCount = count
	g.lastError = ""
	return nil
}

// SetPopulationParam edits one parameter of species i. Takes effect next tick.
func (g *Game) SetPopulationParam(i int, p population.Param, v float32) error {
	if i < 0 || i >= g.sim.NumPopulations() {
		return g.fail("set population param", &simulation.ValidationError{
			Field: "population", Value: i, Reason: fmt.Sprintf("must be in [0, %d)", g.sim.NumPopulations()),
		})
	}
	next := g.sim.Clone()
	next.Populations[i].Set(p, v)
	return g.applyLive(next)
}

// SetAttraction edits the weight of species j as sensed by species i.
func (g *Game) SetAttraction(i, j int, v float32) error {
	n := g.sim.NumPopulations()
	if i < 0 || i >= n || j < 0 || j >= n {
		return g.fail("set attraction", &simulation.ValidationError{
			Field: "attraction", Value: fmt.Sprintf("(%d,%d)", i, j), Reason: fmt.Sprintf("indices must be in [0, %d)", n),
		})
	}
	next := g.sim.Clone()
	next.Attraction.Set(i, j, v)
	return g.applyLive(next)
}

func (g *Game) applyLive(next population.MultiPopulationConfig) error {
	if g.engine != nil {
		if err := g.engine.SetConfig(next); err != nil {
			return g.fail("update config", err)
		}
	}
	g.sim = next
	return nil
}

// SelectPalette switches the palette by name. Unknown names are ignored.
func (g *Game) SelectPalette(name string) {
	g.palette.SelectName(name)
}

// SelectPaletteIndex switches the palette by index.
func (g *Game) SelectPaletteIndex(i int) {
	g.palette.SelectIndex(i)
}

// SetColor overrides one palette slot with a hex color.
func (g *Game) SetColor(i int, hex string) {
	g.palette.SetColor(i, hex)
}

// Resize moves the simulation to a new grid size. A running engine swaps
// in a complete resource set for the new size; if that hits a resource
// limit, or there is no engine, the grid goes through Rebuild and its
// reduced-count retry. Window loops should go through RequestResize so a
// drag produces one rebuild.
func (g *Game) Resize(width, height int) error {
	if width == g.sim.Width && height == g.sim.Height && g.engine != nil {
		return nil
	}
	next := g.sim.Resized(width, height)
	if g.engine == nil {
		return g.Rebuild(next)
	}

	err := g.engine.Resize(width, height)
	switch {
	case err == nil:
		g.sim = next
		g.lastError = ""
		g.lastStats = 0
		g.perf.Reset()
		return nil
	case errors.Is(err, simulation.ErrResourceLimit):
		return g.Rebuild(next)
	default:
		return g.fail("resize", err)
	}
}

// RequestResize schedules a resize once the size stops changing.
func (g *Game) RequestResize(width, height int) {
	g.resize.Request(width, height)
}
