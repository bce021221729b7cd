package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBarrierBetweenComputeStages(t *testing.T) {
	var b barrierTracker

	assert.Zero(t, b.before(accessShader), "nothing written yet")
	b.dispatched() // combine
	assert.Equal(t, barrierShaderStorage, b.before(accessShader))
	b.dispatched() // agents
	assert.Equal(t, barrierShaderStorage, b.before(accessShader))
	b.dispatched() // diffuse
	assert.Equal(t, barrierShaderStorage, b.before(accessShader), "render reads what the last pass wrote")
	assert.Zero(t, b.before(accessShader), "one barrier covers every earlier write")
}

func TestBarrierBeforeClientAccess(t *testing.T) {
	var b barrierTracker
	assert.Zero(t, b.before(accessClient))

	b.dispatched()
	assert.Equal(t, barrierShaderStorage, b.before(accessShader))
	assert.Equal(t, barrierBufferUpdate, b.before(accessClient), "a shader barrier does not cover readback")
	assert.Zero(t, b.before(accessClient))
	assert.Zero(t, b.before(accessShader))
}
