package simulation

import "github.com/pthm-cable/physarum/device"

// Bytes per particle: x, y, heading, species.
const particleStride = 16

// Sizes are the byte sizes of the limit-checked buffers.
type Sizes struct {
	Particles uint64
	TrailMaps uint64 // also the combined map size
}

// BufferSizes computes buffer sizes for a configuration.
func BufferSizes(particleCount, width, height, numPopulations int) Sizes {
	particles := uint64(max(particleCount, 0)) * particleStride
	return Sizes{
		Particles: max(particles, particleStride),
		TrailMaps: uint64(width) * uint64(height) * uint64(numPopulations) * 4,
	}
}

// CheckLimits returns a *ResourceLimitError for the first buffer over the
// storage binding limit. Trail maps are checked first.
func CheckLimits(s Sizes, limits device.Limits) error {
	if s.TrailMaps > limits.MaxStorageBufferBindingSize {
		return &ResourceLimitError{Buffer: BufferTrailMaps, Requested: s.TrailMaps, Limit: limits.MaxStorageBufferBindingSize}
	}
	if s.Particles > limits.MaxStorageBufferBindingSize {
		return &ResourceLimitError{Buffer: BufferParticles, Requested: s.Particles, Limit: limits.MaxStorageBufferBindingSize}
	}
	return nil
}
