//go:build !opengl43

package renderer

import (
	"errors"
	"log/slog"

	"github.com/pthm-cable/physarum/device"
)

// ErrNoCompute is returned when the binary was built without GL 4.3 support.
var ErrNoCompute = errors.New("renderer: compute shaders need a build with -tags opengl43")

// Device is unavailable in this build.
type Device struct {
	device.Device
}

// New always fails without the opengl43 build tag.
func New(limits device.Limits, log *slog.Logger) (*Device, error) {
	return nil, ErrNoCompute
}
