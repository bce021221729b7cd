package device

import "math"

// Workgroup sizes the kernels are compiled with.
const (
	GridWorkgroupSize     = 8  // 8×8 cells per workgroup
	ParticleWorkgroupSize = 64 // 64 particles per workgroup
)

// GridDispatch returns the workgroup counts covering a width×height grid.
func GridDispatch(width, height int) (x, y uint32) {
	return ceilDiv(width, GridWorkgroupSize), ceilDiv(height, GridWorkgroupSize)
}

// ParticleDispatch returns the workgroup counts covering count particles.
// A 1-D layout is used while it fits the per-dimension limit; beyond that the
// groups are reshaped to x×y with x*y >= total.
func ParticleDispatch(count int, maxPerDim uint32) (x, y uint32) {
	total := ceilDiv(count, ParticleWorkgroupSize)
	if total == 0 {
		return 0, 1
	}
	if maxPerDim == 0 || total <= maxPerDim {
		return total, 1
	}
	x = uint32(math.Ceil(math.Sqrt(float64(total))))
	if x > maxPerDim {
		x = maxPerDim
	}
	y = (total + x - 1) / x
	return x, y
}

func ceilDiv(n, d int) uint32 {
	if n <= 0 {
		return 0
	}
	return uint32((n + d - 1) / d)
}
