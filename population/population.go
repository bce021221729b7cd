// Package population generates per-species movement parameters and the
// cross-species attraction table that drive a multi-population simulation.
package population

import (
	"fmt"
	"math"
	"math/rand"
)

// MaxPopulations is the largest species count the render stage can color.
const MaxPopulations = 8

// ParamsPerPopulation is the number of float32 words packed per species.
const ParamsPerPopulation = 6

// PopulationConfig holds the movement parameters for one species.
// Angles are in radians.
type PopulationConfig struct {
	SensorDistance   float32 `yaml:"sensor_distance" json:"sensor_distance"`
	StepDistance     float32 `yaml:"step_distance" json:"step_distance"`
	SensorAngle      float32 `yaml:"sensor_angle" json:"sensor_angle"`
	RotationAngle    float32 `yaml:"rotation_angle" json:"rotation_angle"`
	DecayFactor      float32 `yaml:"decay_factor" json:"decay_factor"`
	DepositionAmount float32 `yaml:"deposition_amount" json:"deposition_amount"`
}

// Param identifies one field of PopulationConfig.
type Param int

const (
	ParamSensorDistance Param = iota
	ParamStepDistance
	ParamSensorAngle
	ParamRotationAngle
	ParamDecayFactor
	ParamDepositionAmount
)

// Range is a closed sampling interval.
type Range struct {
	Min, Max float32
}

// ParamSpec describes how a parameter is generated and presented.
type ParamSpec struct {
	Param   Param
	Name    string
	Range   Range // in display units
	Degrees bool  // Range is in degrees; stored value is radians
}

// ParameterRanges lists the generation range of every per-species parameter.
// The UI sliders and the tuner use the same table.
var ParameterRanges = []ParamSpec{
	{ParamSensorDistance, "sensor_distance", Range{15, 40}, false},
	{ParamStepDistance, "step_distance", Range{1, 3}, false},
	{ParamSensorAngle, "sensor_angle", Range{10, 50}, true},
	{ParamRotationAngle, "rotation_angle", Range{10, 50}, true},
	{ParamDecayFactor, "decay_factor", Range{0.80, 0.85}, false},
	{ParamDepositionAmount, "deposition_amount", Range{5, 10}, false},
}

const degToRad = math.Pi / 180.0

// StoredRange returns the spec's range in stored units (radians for angles).
func (s ParamSpec) StoredRange() Range {
	if s.Degrees {
		return Range{float32(float64(s.Range.Min) * degToRad), float32(float64(s.Range.Max) * degToRad)}
	}
	return s.Range
}

func (r Range) sample(rng *rand.Rand) float32 {
	return r.Min + rng.Float32()*(r.Max-r.Min)
}

// Get returns the value of parameter p.
func (c PopulationConfig) Get(p Param) float32 {
	switch p {
	case ParamSensorDistance:
		return c.SensorDistance
	case ParamStepDistance:
		return c.StepDistance
	case ParamSensorAngle:
		return c.SensorAngle
	case ParamRotationAngle:
		return c.RotationAngle
	case ParamDecayFactor:
		return c.DecayFactor
	case ParamDepositionAmount:
		return c.DepositionAmount
	}
	return 0
}

// Set assigns parameter p.
func (c *PopulationConfig) Set(p Param, v float32) {
	switch p {
	case ParamSensorDistance:
		c.SensorDistance = v
	case ParamStepDistance:
		c.StepDistance = v
	case ParamSensorAngle:
		c.SensorAngle = v
	case ParamRotationAngle:
		c.RotationAngle = v
	case ParamDecayFactor:
		c.DecayFactor = v
	case ParamDepositionAmount:
		c.DepositionAmount = v
	}
}

// CreateRandomConfig samples a PopulationConfig tuned for large emergent structures:
// long sensors and steps explore wide areas, narrow angles form thick veins,
// and low decay with high deposition keeps trails broad.
func CreateRandomConfig(rng *rand.Rand) PopulationConfig {
	var c PopulationConfig
	for _, spec := range ParameterRanges {
		c.Set(spec.Param, spec.StoredRange().sample(rng))
	}
	return c
}

// MultiPopulationConfig aggregates everything needed to size and run a simulation.
type MultiPopulationConfig struct {
	ParticleCount int                `yaml:"particle_count" json:"particle_count"`
	Populations   []PopulationConfig `yaml:"populations" json:"populations"`
	Attraction    AttractionTable    `yaml:"attraction" json:"attraction"`
	Width         int                `yaml:"width" json:"width"`
	Height        int                `yaml:"height" json:"height"`
}

// CreateMultiPopulationConfig builds numPopulations random species and an attraction table.
func CreateMultiPopulationConfig(rng *rand.Rand, particleCount, numPopulations, width, height int) MultiPopulationConfig {
	pops := make([]PopulationConfig, numPopulations)
	for i := range pops {
		pops[i] = CreateRandomConfig(rng)
	}
	return MultiPopulationConfig{
		ParticleCount: particleCount,
		Populations:   pops,
		Attraction:    NewAttractionTable(rng, numPopulations),
		Width:         width,
		Height:        height,
	}
}

// NumPopulations returns the species count.
func (c MultiPopulationConfig) NumPopulations() int {
	return len(c.Populations)
}

// ParticlesPerPopulation returns floor(ParticleCount / NumPopulations).
func (c MultiPopulationConfig) ParticlesPerPopulation() int {
	return ParticlesPerPopulation(c.ParticleCount, c.NumPopulations())
}

// Validate checks the structural invariants of the config.
func (c MultiPopulationConfig) Validate() error {
	n := c.NumPopulations()
	if c.ParticleCount <= 0 {
		return &ValidationError{Field: "particle_count", Value: c.ParticleCount, Reason: "must be greater than 0"}
	}
	if n < 1 || n > MaxPopulations {
		return &ValidationError{Field: "num_populations", Value: n, Reason: fmt.Sprintf("must be in [1, %d]", MaxPopulations)}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return &ValidationError{Field: "grid", Value: fmt.Sprintf("%dx%d", c.Width, c.Height), Reason: "dimensions must be positive"}
	}
	if c.Attraction.Side() != n || len(c.Attraction.Values) != n*n {
		return &ValidationError{Field: "attraction", Value: c.Attraction.Side(), Reason: fmt.Sprintf("table must be %dx%d", n, n)}
	}
	return nil
}

// Clone returns a deep copy.
func (c MultiPopulationConfig) Clone() MultiPopulationConfig {
	out := c
	out.Populations = append([]PopulationConfig(nil), c.Populations...)
	out.Attraction = c.Attraction.Clone()
	return out
}

// Resized returns a copy with a new grid size.
func (c MultiPopulationConfig) Resized(width, height int) MultiPopulationConfig {
	out := c.Clone()
	out.Width = width
	out.Height = height
	return out
}

// WithParticleCount returns a copy with a new particle count.
func (c MultiPopulationConfig) WithParticleCount(n int) MultiPopulationConfig {
	out := c.Clone()
	out.ParticleCount = n
	return out
}

// PackParameters returns the per-species parameters as 6 floats per species,
// in field declaration order.
func (c MultiPopulationConfig) PackParameters() []float32 {
	out := make([]float32, 0, len(c.Populations)*ParamsPerPopulation)
	for _, p := range c.Populations {
		out = append(out,
			p.SensorDistance,
			p.StepDistance,
			p.SensorAngle,
			p.RotationAngle,
			p.DecayFactor,
			p.DepositionAmount,
		)
	}
	return out
}

// PackAttraction returns the attraction table row-major as float32.
func (c MultiPopulationConfig) PackAttraction() []float32 {
	out := make([]float32, len(c.Attraction.Values))
	copy(out, c.Attraction.Values)
	return out
}

// ParticlesPerPopulation returns floor(particleCount / numPopulations).
func ParticlesPerPopulation(particleCount, numPopulations int) int {
	if numPopulations <= 0 {
		return 0
	}
	return particleCount / numPopulations
}

// SpeciesForIndex maps particle i to its species. The final group absorbs the
// remainder when particleCount is not evenly divisible. With fewer particles
// than species (ppp == 0) particle i gets species min(i, n-1).
func SpeciesForIndex(i, particlesPerPopulation, numPopulations int) int {
	var s int
	if particlesPerPopulation <= 0 {
		s = i
	} else {
		s = i / particlesPerPopulation
	}
	if s > numPopulations-1 {
		s = numPopulations - 1
	}
	if s < 0 {
		s = 0
	}
	return s
}
