//go:build opengl43

package renderer

import (
	"errors"
	"fmt"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/pthm-cable/physarum/device"
)

// op is one recorded dispatch or draw.
type op struct {
	pipeline *Pipeline
	group    *BindGroup
	groups   [3]uint32

	draw  bool
	pass  device.RenderPassDescriptor
	count uint32
}

type encoder struct {
	ops      []op
	err      error
	finished bool
}

type commandBuffer struct {
	ops []op
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) BeginComputePass() device.ComputePass {
	return &pass{enc: e}
}

func (e *encoder) BeginRenderPass(desc device.RenderPassDescriptor) device.RenderPass {
	return &pass{enc: e, render: true, desc: desc}
}

func (e *encoder) Finish() (device.CommandBuffer, error) {
	if e.finished {
		return nil, errors.New("renderer: encoder already finished")
	}
	e.finished = true
	if e.err != nil {
		return nil, e.err
	}
	return &commandBuffer{ops: e.ops}, nil
}

// pass serves as both compute and render pass.
type pass struct {
	enc      *encoder
	render   bool
	desc     device.RenderPassDescriptor
	pipeline *Pipeline
	group    *BindGroup
}

func (p *pass) SetPipeline(pl device.Pipeline) {
	gp, ok := pl.(*Pipeline)
	if !ok || gp.render != p.render {
		p.enc.fail(fmt.Errorf("%w: pipeline %q does not fit this pass", device.ErrBindingMismatch, pl.Label()))
		return
	}
	p.pipeline = gp
}

func (p *pass) SetBindGroup(index uint32, g device.BindGroup) {
	gg, ok := g.(*BindGroup)
	if !ok || index != 0 {
		p.enc.fail(fmt.Errorf("%w: bind group %d", device.ErrBindingMismatch, index))
		return
	}
	p.group = gg
}

func (p *pass) record(o op) {
	if p.pipeline == nil || p.group == nil {
		p.enc.fail(errors.New("renderer: pipeline and bind group must be set before recording"))
		return
	}
	if p.group.pipeline != p.pipeline {
		p.enc.fail(fmt.Errorf("%w: %q was created for %q", device.ErrBindingMismatch, p.group.label, p.group.pipeline.label))
		return
	}
	o.pipeline, o.group = p.pipeline, p.group
	p.enc.ops = append(p.enc.ops, o)
}

func (p *pass) DispatchWorkgroups(x, y, z uint32) {
	p.record(op{groups: [3]uint32{x, y, z}})
}

func (p *pass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.record(op{draw: true, pass: p.desc, count: vertexCount * instanceCount})
}

func (p *pass) End() {}

// Queue uploads through glBufferSubData and executes ops in recording order.
// A memory barrier follows every dispatch before anything reads its output.
type Queue struct {
	dev      *Device
	barriers barrierTracker
}

// sync issues the memory barrier an operation with access a must wait on.
func (q *Queue) sync(a access) {
	if bits := q.barriers.before(a); bits != 0 {
		gl.MemoryBarrier(bits)
	}
}

func (q *Queue) buffer(b device.Buffer, offset uint64, n int) (*Buffer, error) {
	gb, ok := b.(*Buffer)
	if !ok || gb.dev != q.dev {
		return nil, fmt.Errorf("%w: foreign buffer", device.ErrBindingMismatch)
	}
	if gb.destroyed {
		return nil, fmt.Errorf("%w: %s", device.ErrDestroyed, gb.label)
	}
	if offset%4 != 0 || offset+uint64(n)*4 > gb.size {
		return nil, fmt.Errorf("%w: %s offset %d len %d size %d", device.ErrOutOfRange, gb.label, offset, n*4, gb.size)
	}
	return gb, nil
}

// WriteFloat32 implements device.Queue.
func (q *Queue) WriteFloat32(b device.Buffer, offset uint64, data []float32) error {
	gb, err := q.buffer(b, offset, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	q.sync(accessClient)
	rl.UpdateShaderBuffer(gb.id, unsafe.Pointer(&data[0]), uint32(len(data)*4), uint32(offset))
	return nil
}

// WriteUint32 implements device.Queue.
func (q *Queue) WriteUint32(b device.Buffer, offset uint64, data []uint32) error {
	gb, err := q.buffer(b, offset, len(data))
	if err != nil || len(data) == 0 {
		return err
	}
	q.sync(accessClient)
	rl.UpdateShaderBuffer(gb.id, unsafe.Pointer(&data[0]), uint32(len(data)*4), uint32(offset))
	return nil
}

// ReadFloat32 implements device.Queue.
func (q *Queue) ReadFloat32(b device.Buffer, offset uint64, dst []float32) error {
	gb, err := q.buffer(b, offset, len(dst))
	if err != nil || len(dst) == 0 {
		return err
	}
	q.sync(accessClient)
	rl.ReadShaderBuffer(gb.id, unsafe.Pointer(&dst[0]), uint32(len(dst)*4), uint32(offset))
	return nil
}

// Submit implements device.Queue.
func (q *Queue) Submit(cmds ...device.CommandBuffer) error {
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return fmt.Errorf("%w: foreign command buffer", device.ErrBindingMismatch)
		}
		for _, o := range cb.ops {
			if !o.group.usable() {
				return fmt.Errorf("%w: %s", device.ErrDestroyed, o.group.label)
			}
			if o.draw {
				if err := q.draw(o); err != nil {
					return err
				}
				continue
			}
			q.dispatch(o)
		}
	}
	return nil
}

func (q *Queue) dispatch(o op) {
	if o.groups[0] == 0 || o.groups[1] == 0 || o.groups[2] == 0 {
		return
	}
	q.sync(accessShader)
	rl.EnableShader(o.pipeline.program)
	o.group.bind()
	rl.ComputeShaderDispatch(o.groups[0], o.groups[1], o.groups[2])
	rl.DisableShader()
	q.barriers.dispatched()
}

func (q *Queue) draw(o op) error {
	target, ok := o.pass.Target.(Target)
	if !ok {
		return fmt.Errorf("%w: render target %T is not a GL surface", device.ErrBindingMismatch, o.pass.Target)
	}
	w, h := target.Size()
	c := o.pass.ClearColor
	q.sync(accessShader)

	target.begin()
	defer target.end()
	rl.ClearBackground(rl.NewColor(toByte(c[0]), toByte(c[1]), toByte(c[2]), toByte(c[3])))
	if o.count == 0 {
		return nil
	}

	shader := o.pipeline.shader
	rl.BeginShaderMode(shader)
	rl.SetShaderValue(shader, o.pipeline.sizeLoc, []float32{float32(w), float32(h)}, rl.ShaderUniformVec2)
	o.group.bind()
	rl.DrawRectangle(0, 0, int32(w), int32(h), rl.White)
	rl.EndShaderMode()
	return nil
}

func toByte(v float32) uint8 {
	return uint8(max(0, min(1, v))*255 + 0.5)
}
