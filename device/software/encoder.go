package software

import (
	"errors"
	"fmt"
	"math"

	"github.com/pthm-cable/physarum/device"
)

var errEncoderFinished = errors.New("software: encoder already finished")

// command is one recorded dispatch or draw.
type command struct {
	pipeline *Pipeline
	group    *BindGroup
	groups   [3]uint32

	draw  bool
	pass  device.RenderPassDescriptor
	count uint32
}

// encoder records commands; the first recording error is reported by Finish.
type encoder struct {
	cmds     []command
	err      error
	finished bool
}

type commandBuffer struct {
	cmds []command
}

func (e *encoder) fail(err error) {
	if e.err == nil {
		e.err = err
	}
}

func (e *encoder) BeginComputePass() device.ComputePass {
	return &computePass{passState{enc: e}}
}

func (e *encoder) BeginRenderPass(desc device.RenderPassDescriptor) device.RenderPass {
	return &renderPass{passState: passState{enc: e}, desc: desc}
}

func (e *encoder) Finish() (device.CommandBuffer, error) {
	if e.finished {
		return nil, errEncoderFinished
	}
	e.finished = true
	if e.err != nil {
		return nil, e.err
	}
	return &commandBuffer{cmds: e.cmds}, nil
}

// passState is the pipeline/bind group pair shared by both pass kinds.
type passState struct {
	enc      *encoder
	pipeline *Pipeline
	group    *BindGroup
	ended    bool
}

func (s *passState) SetPipeline(p device.Pipeline) {
	sp, ok := p.(*Pipeline)
	if !ok {
		s.enc.fail(fmt.Errorf("%w: foreign pipeline", device.ErrBindingMismatch))
		return
	}
	s.pipeline = sp
}

func (s *passState) SetBindGroup(index uint32, g device.BindGroup) {
	sg, ok := g.(*BindGroup)
	if !ok || index != 0 {
		s.enc.fail(fmt.Errorf("%w: bind group %d", device.ErrBindingMismatch, index))
		return
	}
	s.group = sg
}

func (s *passState) ready() bool {
	if s.ended {
		s.enc.fail(errors.New("software: pass already ended"))
		return false
	}
	if s.pipeline == nil || s.group == nil {
		s.enc.fail(errors.New("software: pipeline and bind group must be set before recording"))
		return false
	}
	if s.group.pipeline != s.pipeline {
		s.enc.fail(fmt.Errorf("%w: %q was created for %q", device.ErrBindingMismatch, s.group.label, s.group.pipeline.label))
		return false
	}
	return true
}

func (s *passState) End() { s.ended = true }

type computePass struct {
	passState
}

func (p *computePass) DispatchWorkgroups(x, y, z uint32) {
	if !p.ready() {
		return
	}
	if p.pipeline.render {
		p.enc.fail(fmt.Errorf("%w: %q is a render pipeline", device.ErrBindingMismatch, p.pipeline.label))
		return
	}
	p.enc.cmds = append(p.enc.cmds, command{pipeline: p.pipeline, group: p.group, groups: [3]uint32{x, y, z}})
}

type renderPass struct {
	passState
	desc device.RenderPassDescriptor
}

func (p *renderPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	if !p.ready() {
		return
	}
	if !p.pipeline.render {
		p.enc.fail(fmt.Errorf("%w: %q is a compute pipeline", device.ErrBindingMismatch, p.pipeline.label))
		return
	}
	p.enc.cmds = append(p.enc.cmds, command{
		pipeline: p.pipeline,
		group:    p.group,
		draw:     true,
		pass:     p.desc,
		count:    vertexCount * instanceCount,
	})
}

// Queue executes submissions synchronously, in order.
type Queue struct {
	dev *Device
}

func checkRange(b *Buffer, offset uint64, n int) error {
	if b.destroyed {
		return fmt.Errorf("%w: %s", device.ErrDestroyed, b.label)
	}
	if offset%4 != 0 || offset/4+uint64(n) > uint64(len(b.data)) {
		return fmt.Errorf("%w: %s offset %d len %d size %d", device.ErrOutOfRange, b.label, offset, n*4, b.Size())
	}
	return nil
}

func asBuffer(b device.Buffer) (*Buffer, error) {
	sb, ok := b.(*Buffer)
	if !ok {
		return nil, fmt.Errorf("%w: foreign buffer", device.ErrBindingMismatch)
	}
	return sb, nil
}

// WriteFloat32 implements device.Queue.
func (q *Queue) WriteFloat32(b device.Buffer, offset uint64, data []float32) error {
	sb, err := asBuffer(b)
	if err != nil {
		return err
	}
	if err := checkRange(sb, offset, len(data)); err != nil {
		return err
	}
	copy(sb.data[offset/4:], data)
	return nil
}

// WriteUint32 implements device.Queue.
func (q *Queue) WriteUint32(b device.Buffer, offset uint64, data []uint32) error {
	sb, err := asBuffer(b)
	if err != nil {
		return err
	}
	if err := checkRange(sb, offset, len(data)); err != nil {
		return err
	}
	dst := sb.data[offset/4:]
	for i, v := range data {
		dst[i] = math.Float32frombits(v)
	}
	return nil
}

// ReadFloat32 implements device.Queue.
func (q *Queue) ReadFloat32(b device.Buffer, offset uint64, dst []float32) error {
	sb, err := asBuffer(b)
	if err != nil {
		return err
	}
	if err := checkRange(sb, offset, len(dst)); err != nil {
		return err
	}
	copy(dst, sb.data[offset/4:])
	return nil
}

// Submit implements device.Queue. Each command completes before the next starts.
func (q *Queue) Submit(cmds ...device.CommandBuffer) error {
	for _, c := range cmds {
		cb, ok := c.(*commandBuffer)
		if !ok {
			return fmt.Errorf("%w: foreign command buffer", device.ErrBindingMismatch)
		}
		for _, cmd := range cb.cmds {
			if err := q.execute(cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (q *Queue) execute(cmd command) error {
	if cmd.pipeline.released || cmd.group.released {
		return fmt.Errorf("%w: %s", device.ErrDestroyed, cmd.group.label)
	}
	for i, b := range cmd.group.buffers {
		if b.destroyed {
			return fmt.Errorf("%w: %s binding %d (%s)", device.ErrDestroyed, cmd.group.label, i, b.label)
		}
	}
	if cmd.draw {
		if cmd.count == 0 {
			return nil
		}
		return renderKernel(q.dev, cmd.group.buffers, cmd.pass)
	}
	if cmd.groups[0] == 0 || cmd.groups[1] == 0 || cmd.groups[2] == 0 {
		return nil
	}
	return cmd.pipeline.compute(q.dev, cmd.group.buffers, cmd.groups)
}
