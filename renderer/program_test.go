package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/physarum/device"
)

type fakeLoader struct {
	shader, program uint32
	deleted         []uint32
}

func (f *fakeLoader) compileShader(code string, kind int32) uint32 { return f.shader }
func (f *fakeLoader) linkComputeProgram(shader uint32) uint32 { return f.program }
func (f *fakeLoader) deleteShader(shader uint32) { f.deleted = append(f.deleted, shader) }

func TestLoadComputeProgramDeletesShader(t *testing.T) {
	gl := &fakeLoader{shader: 3, program: 9}
	program, err := loadComputeProgram(gl, "diffuse", "")
	require.NoError(t, err)
	assert.Equal(t, uint32(9), program)
	assert.Equal(t, []uint32{3}, gl.deleted)
}

func TestLoadComputeProgramLinkFailure(t *testing.T) {
	gl := &fakeLoader{shader: 4}
	_, err := loadComputeProgram(gl, "diffuse", "")
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.Equal(t, []uint32{4}, gl.deleted, "shader must not leak when linking fails")
}

func TestLoadComputeProgramCompileFailure(t *testing.T) {
	gl := &fakeLoader{}
	_, err := loadComputeProgram(gl, "diffuse", "")
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.Empty(t, gl.deleted)
}
