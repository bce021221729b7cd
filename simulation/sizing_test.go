package simulation

import (
	"testing"

	"github.com/pthm-cable/physarum/device"
)

func TestBufferSizes(t *testing.T) {
	tests := []struct {
		name                string
		particles, w, h, n  int
		wantParticles, want uint64
	}{
		{"default start", 50_000, 1280, 800, 3, 800_000, 1280 * 800 * 3 * 4},
		{"single particle", 1, 4, 4, 1, 16, 64},
		{"zero clamps to one slot", 0, 1, 1, 1, 16, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := BufferSizes(tt.particles, tt.w, tt.h, tt.n)
			if s.Particles != tt.wantParticles {
				t.Errorf("particles = %d, want %d", s.Particles, tt.wantParticles)
			}
			if s.TrailMaps != tt.want {
				t.Errorf("trail maps = %d, want %d", s.TrailMaps, tt.want)
			}
		})
	}
}

func TestCheckLimits(t *testing.T) {
	limits := device.Limits{MaxStorageBufferBindingSize: 1000}

	if err := CheckLimits(Sizes{Particles: 1000, TrailMaps: 1000}, limits); err != nil {
		t.Errorf("sizes at the limit rejected: %v", err)
	}

	err := CheckLimits(Sizes{Particles: 1001, TrailMaps: 1001}, limits)
	rle, ok := err.(*ResourceLimitError)
	if !ok {
		t.Fatalf("expected *ResourceLimitError, got %T", err)
	}
	if rle.Buffer != BufferTrailMaps {
		t.Errorf("buffer = %q, want trail maps reported first", rle.Buffer)
	}
}
