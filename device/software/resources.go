package software

import (
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/physarum/device"
)

// Buffer is a device buffer backed by a float32 slice. Integer words are
// stored by bit pattern.
type Buffer struct {
	dev       *Device
	entity    ecs.Entity
	label     string
	usage     device.BufferUsage
	data      []float32
	destroyed bool
}

func (b *Buffer) Label() string             { return b.label }
func (b *Buffer) Size() uint64              { return uint64(len(b.data)) * 4 }
func (b *Buffer) Usage() device.BufferUsage { return b.usage }

// Destroy implements device.Buffer.
func (b *Buffer) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	b.data = nil
	b.dev.unregister(b.entity)
}

// kernelFunc executes one compute dispatch over the bound buffers.
type kernelFunc func(d *Device, bufs []*Buffer, groups [3]uint32) error

// Pipeline is a compute or render stage resolved to a CPU kernel.
type Pipeline struct {
	dev      *Device
	entity   ecs.Entity
	label    string
	kernel   string
	compute  kernelFunc
	render   bool
	bindings int
	released bool
}

func (p *Pipeline) Label() string { return p.label }

// Release implements device.Pipeline.
func (p *Pipeline) Release() {
	if p.released {
		return
	}
	p.released = true
	p.dev.unregister(p.entity)
}

// BindGroup binds buffers to a pipeline's slots.
type BindGroup struct {
	dev      *Device
	entity   ecs.Entity
	label    string
	pipeline *Pipeline
	buffers  []*Buffer
	released bool
}

func (g *BindGroup) Label() string { return g.label }

// Release implements device.BindGroup. Bound buffers are not destroyed.
func (g *BindGroup) Release() {
	if g.released {
		return
	}
	g.released = true
	g.buffers = nil
	g.dev.unregister(g.entity)
}
