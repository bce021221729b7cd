package simulation

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/physarum/population"
)

// ValidationError is returned for rejected inputs. The engine is unchanged.
type ValidationError = population.ValidationError

var (
	// ErrResourceLimit matches any *ResourceLimitError with errors.Is.
	ErrResourceLimit = errors.New("resource limit exceeded")
	// ErrReleased is returned by operations on a released engine.
	ErrReleased = errors.New("simulation: engine released")
)

// Buffer names reported in ResourceLimitError.
const (
	BufferParticles = "particles"
	BufferTrailMaps = "trail_maps"
)

// ResourceLimitError reports a buffer that would exceed the device's storage
// binding limit. It is returned before anything is allocated.
type ResourceLimitError struct {
	Buffer    string
	Requested uint64
	Limit     uint64
}

func (e *ResourceLimitError) Error() string {
	name, hint := "Particle buffer", "Try reducing particle count."
	if e.Buffer == BufferTrailMaps {
		name, hint = "Trail map buffer", "Try reducing canvas size or number of populations."
	}
	return fmt.Sprintf("%s size (%.1f MB) exceeds device limit (%.1f MB). %s",
		name, megabytes(e.Requested), megabytes(e.Limit), hint)
}

// Is reports whether target is ErrResourceLimit.
func (e *ResourceLimitError) Is(target error) bool {
	return target == ErrResourceLimit
}

func megabytes(b uint64) float64 {
	return float64(b) / 1024 / 1024
}

// AllocationError wraps a device failure after validation passed. Anything
// allocated by the failed operation has been released.
type AllocationError struct {
	Resource string
	Err      error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("allocating %s: %v", e.Resource, e.Err)
}

func (e *AllocationError) Unwrap() error { return e.Err }
