package renderer

// glMemoryBarrier bits.
const (
	barrierBufferUpdate  uint32 = 0x00000200 // GL_BUFFER_UPDATE_BARRIER_BIT
	barrierShaderStorage uint32 = 0x00002000 // GL_SHADER_STORAGE_BARRIER_BIT
)

// access is how an operation touches storage buffers.
type access int

const (
	// accessShader is a dispatch or draw reading or writing SSBOs.
	accessShader access = iota
	// accessClient is glBufferSubData or glGetBufferSubData.
	accessClient
)

// barrierTracker records storage writes made by compute dispatches, which
// GL does not order against later operations, and reports the
// glMemoryBarrier bits the next operation has to wait on.
type barrierTracker struct {
	pending uint32
}

// dispatched records that a compute dispatch wrote storage buffers.
func (b *barrierTracker) dispatched() {
	b.pending = barrierShaderStorage | barrierBufferUpdate
}

// before returns the barrier bits to issue ahead of an operation with
// access a, or 0 when none is needed.
func (b *barrierTracker) before(a access) uint32 {
	need := barrierShaderStorage
	if a == accessClient {
		need = barrierBufferUpdate
	}
	bits := b.pending & need
	b.pending &^= bits
	return bits
}
