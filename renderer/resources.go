//go:build opengl43

package renderer

import (
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/device"
)

// Buffer is a GL shader storage buffer.
type Buffer struct {
	dev       *Device
	id        uint32
	label     string
	size      uint64
	usage     device.BufferUsage
	destroyed bool
}

func (b *Buffer) Label() string             { return b.label }
func (b *Buffer) Size() uint64              { return b.size }
func (b *Buffer) Usage() device.BufferUsage { return b.usage }

// Destroy implements device.Buffer.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	rl.UnloadShaderBuffer(b.id)
	b.dev.liveBuffers--
	b.dev.liveBytes -= b.size
}

// Pipeline is a linked compute program or the render shader.
type Pipeline struct {
	label    string
	kernel   string
	bindings int
	released bool

	program uint32 // compute

	render  bool
	shader  rl.Shader
	sizeLoc int32
}

func (p *Pipeline) Label() string { return p.label }

// Release implements device.Pipeline.
func (p *Pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	if p.render {
		rl.UnloadShader(p.shader)
		return
	}
	rl.UnloadShaderProgram(p.program)
}

type binding struct {
	slot uint32
	buf  *Buffer
}

// BindGroup is the buffer set bound before a dispatch or draw.
type BindGroup struct {
	label    string
	pipeline *Pipeline
	entries  []binding
	released bool
}

func (g *BindGroup) Label() string { return g.label }

// Release implements device.BindGroup. GL has no bind group object.
func (g *BindGroup) Release() {
	g.released = true
	g.entries = nil
}

func (g *BindGroup) bind() {
	for _, e := range g.entries {
		rl.BindShaderBuffer(e.buf.id, e.slot)
	}
}

func (g *BindGroup) usable() bool {
	if g.released || g.pipeline.released {
		return false
	}
	for _, e := range g.entries {
		if e.buf.destroyed {
			return false
		}
	}
	return true
}
