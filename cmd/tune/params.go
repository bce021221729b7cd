package main

import (
	"fmt"

	"github.com/pthm-cable/physarum/population"
)

// ParamSpec defines a single optimizable parameter.
type ParamSpec struct {
	Name    string           // Human-readable name
	Species int              // Species the value belongs to
	Param   population.Param // Field within the species config
	Min     float64          // Lower bound, stored units
	Max     float64          // Upper bound, stored units
	Default float64
}

// ParamVector holds the set of all optimizable parameters: every field of
// every species, in species-major order.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the parameter set for n species. Bounds are the
// generation ranges in stored units (radians for angles).
func NewParamVector(n int) *ParamVector {
	pv := &ParamVector{}
	for s := 0; s < n; s++ {
		for _, spec := range population.ParameterRanges {
			r := spec.StoredRange()
			pv.Specs = append(pv.Specs, ParamSpec{
				Name:    fmt.Sprintf("s%d_%s", s+1, spec.Name),
				Species: s,
				Param:   spec.Param,
				Min:     float64(r.Min),
				Max:     float64(r.Max),
				Default: float64(r.Min+r.Max) / 2,
			})
		}
	}
	return pv
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// FromConfig reads the current values out of cfg.
func (pv *ParamVector) FromConfig(cfg population.MultiPopulationConfig) []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = float64(cfg.Populations[spec.Species].Get(spec.Param))
	}
	return v
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = max(spec.Min, min(v[i], spec.Max))
	}
	return clamped
}

// Apply returns a copy of cfg with the clamped values written in.
func (pv *ParamVector) Apply(cfg population.MultiPopulationConfig, values []float64) population.MultiPopulationConfig {
	out := cfg.Clone()
	for i, v := range pv.Clamp(values) {
		spec := pv.Specs[i]
		out.Populations[spec.Species].Set(spec.Param, float32(v))
	}
	return out
}
