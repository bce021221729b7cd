package ui

import (
	"fmt"
	"math"

	"github.com/pthm-cable/physarum/population"
)

// snapParticles rounds a slider value to the nearest step inside [lo, hi].
func snapParticles(v float32, lo, hi, step int) int {
	if step <= 0 {
		step = 1
	}
	n := int(math.Round(float64(v)/float64(step))) * step
	return max(lo, min(n, hi))
}

// displayValue converts a stored parameter to slider units.
func displayValue(spec population.ParamSpec, stored float32) float32 {
	if spec.Degrees {
		return float32(float64(stored) * 180 / math.Pi)
	}
	return stored
}

// storedValue converts a slider value back to stored units.
func storedValue(spec population.ParamSpec, display float32) float32 {
	if spec.Degrees {
		return float32(float64(display) * math.Pi / 180)
	}
	return display
}

// formatParam renders a slider value for the label beside it.
func formatParam(spec population.ParamSpec, display float32) string {
	switch {
	case spec.Degrees:
		return fmt.Sprintf("%.1f°", display)
	case spec.Range.Max <= 1:
		return fmt.Sprintf("%.3f", display)
	}
	return fmt.Sprintf("%.2f", display)
}

// formatCount prints large counts as 1.2M or 350k.
func formatCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%dk", n/1000)
	}
	return fmt.Sprintf("%d", n)
}

// attractionRange spans both sampling ranges so any generated weight fits.
func attractionRange() population.Range {
	return population.Range{
		Min: min(population.SelfAttraction.Min, population.CrossAttraction.Min),
		Max: max(population.SelfAttraction.Max, population.CrossAttraction.Max),
	}
}

// changed reports whether a slider moved enough to be worth applying.
func changed(a, b float32) bool {
	return math.Abs(float64(a-b)) > 1e-6
}
