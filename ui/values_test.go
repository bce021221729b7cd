package ui

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pthm-cable/physarum/population"
)

func TestSnapParticles(t *testing.T) {
	assert.Equal(t, 1_000_000, snapParticles(1_030_000, 10_000, 20_000_000, 100_000))
	assert.Equal(t, 1_100_000, snapParticles(1_060_000, 10_000, 20_000_000, 100_000))
	assert.Equal(t, 10_000, snapParticles(0, 10_000, 20_000_000, 100_000), "clamped to min")
	assert.Equal(t, 20_000_000, snapParticles(30_000_000, 10_000, 20_000_000, 100_000), "clamped to max")
	assert.Equal(t, 42, snapParticles(42, 1, 100, 0), "zero step means no snapping")
}

func TestDegreeConversionRoundTrips(t *testing.T) {
	angle := population.ParameterRanges[population.ParamSensorAngle]
	assert.True(t, angle.Degrees)

	assert.InDelta(t, 45, displayValue(angle, math.Pi/4), 1e-4)
	assert.InDelta(t, math.Pi/4, storedValue(angle, 45), 1e-6)
	assert.InDelta(t, 0.3, storedValue(angle, displayValue(angle, 0.3)), 1e-6)

	dist := population.ParameterRanges[population.ParamSensorDistance]
	assert.Equal(t, float32(22.5), displayValue(dist, 22.5))
	assert.Equal(t, float32(22.5), storedValue(dist, 22.5))
}

func TestFormatParam(t *testing.T) {
	angle := population.ParameterRanges[population.ParamSensorAngle]
	decay := population.ParameterRanges[population.ParamDecayFactor]
	dist := population.ParameterRanges[population.ParamSensorDistance]

	assert.Equal(t, "30.0°", formatParam(angle, 30))
	assert.Equal(t, "0.825", formatParam(decay, 0.825))
	assert.Equal(t, "17.25", formatParam(dist, 17.25))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "2.5M", formatCount(2_500_000))
	assert.Equal(t, "350k", formatCount(350_000))
	assert.Equal(t, "9999", formatCount(9999))
}

func TestAttractionRangeCoversSampling(t *testing.T) {
	r := attractionRange()
	assert.LessOrEqual(t, r.Min, population.CrossAttraction.Min)
	assert.GreaterOrEqual(t, r.Max, population.SelfAttraction.Max)
}
