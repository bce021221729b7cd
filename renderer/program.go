package renderer

import (
	"fmt"

	"github.com/pthm-cable/physarum/device"
)

// programLoader is the slice of GL needed to build a compute program.
type programLoader interface {
	compileShader(code string, kind int32) uint32
	linkComputeProgram(shader uint32) uint32
	deleteShader(shader uint32)
}

// glComputeShader is GL_COMPUTE_SHADER.
const glComputeShader = 0x91B9

// loadComputeProgram compiles code and links it into a program. The shader
// object is deleted once linking has been attempted; a linked program keeps
// its own copy.
func loadComputeProgram(gl programLoader, label, code string) (uint32, error) {
	shader := gl.compileShader(code, glComputeShader)
	if shader == 0 {
		return 0, fmt.Errorf("%w: compiling %s", device.ErrAllocation, label)
	}
	program := gl.linkComputeProgram(shader)
	gl.deleteShader(shader)
	if program == 0 {
		return 0, fmt.Errorf("%w: linking %s", device.ErrAllocation, label)
	}
	return program, nil
}
