// Package software implements the compute device boundary on the CPU.
//
// Buffers are float32 slices. Every live buffer, pipeline and bind group is an
// entity in an ark world, so callers can audit what is allocated at any time.
// Dispatches run to completion on a worker pool before the next one starts.
package software

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/kernels"
)

// Kind classifies a live resource.
type Kind uint8

const (
	KindBuffer Kind = iota
	KindPipeline
	KindBindGroup
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "buffer"
	case KindPipeline:
		return "pipeline"
	case KindBindGroup:
		return "bind_group"
	}
	return "unknown"
}

// Resource is the registry record for one live allocation.
type Resource struct {
	Kind  Kind
	Label string
	Bytes uint64
}

// Option configures a Device.
type Option func(*Device)

// WithWorkers sets the worker pool size. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(d *Device) {
		if n > 0 {
			d.pool = newWorkerPool(n)
		}
	}
}

// WithAllocationBudget makes buffer creation fail with ErrAllocation once n
// buffers have been created. Negative means unlimited.
func WithAllocationBudget(n int) Option {
	return func(d *Device) { d.allocBudget = n }
}

// Device is a CPU compute device.
type Device struct {
	limits device.Limits

	mu        sync.Mutex
	world     *ecs.World
	resources *ecs.Map1[Resource]
	live      *ecs.Filter1[Resource]

	allocBudget int
	allocated   int

	queue *Queue
	pool  *workerPool
}

// New creates a device reporting the given limits.
func New(limits device.Limits, opts ...Option) *Device {
	world := ecs.NewWorld()
	d := &Device{
		limits:      limits,
		world:       world,
		resources:   ecs.NewMap1[Resource](world),
		live:        ecs.NewFilter1[Resource](world),
		allocBudget: -1,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.pool == nil {
		d.pool = newWorkerPool(runtime.GOMAXPROCS(0))
	}
	d.queue = &Queue{dev: d}
	return d
}

// NewDefault creates a device with device.DefaultLimits.
func NewDefault(opts ...Option) *Device {
	return New(device.DefaultLimits(), opts...)
}

// Close stops the worker pool. Resources stay readable.
func (d *Device) Close() {
	d.pool.stop()
}

// Limits implements device.Device.
func (d *Device) Limits() device.Limits { return d.limits }

// Queue implements device.Device.
func (d *Device) Queue() device.Queue { return d.queue }

func (d *Device) register(r Resource) ecs.Entity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resources.NewEntity(&r)
}

func (d *Device) unregister(e ecs.Entity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.world.Alive(e) {
		d.world.RemoveEntity(e)
	}
}

// LiveResources returns a snapshot of every live allocation.
func (d *Device) LiveResources() []Resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []Resource
	query := d.live.Query()
	for query.Next() {
		out = append(out, *query.Get())
	}
	return out
}

// LiveCount returns the number of live resources of a kind.
func (d *Device) LiveCount(kind Kind) int {
	n := 0
	for _, r := range d.LiveResources() {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

// LiveBytes returns the total size of live buffers.
func (d *Device) LiveBytes() uint64 {
	var total uint64
	for _, r := range d.LiveResources() {
		total += r.Bytes
	}
	return total
}

// CreateBuffer implements device.Device. Contents start zeroed.
func (d *Device) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if desc.Size == 0 || desc.Size%4 != 0 {
		return nil, fmt.Errorf("%w: buffer %q size %d is not a positive multiple of 4", device.ErrAllocation, desc.Label, desc.Size)
	}
	if desc.Usage.Has(device.UsageStorage) && desc.Size > d.limits.MaxStorageBufferBindingSize {
		return nil, fmt.Errorf("%w: buffer %q size %d exceeds storage binding limit %d",
			device.ErrAllocation, desc.Label, desc.Size, d.limits.MaxStorageBufferBindingSize)
	}

	d.mu.Lock()
	if d.allocBudget >= 0 && d.allocated >= d.allocBudget {
		d.mu.Unlock()
		return nil, fmt.Errorf("%w: buffer %q: out of device memory", device.ErrAllocation, desc.Label)
	}
	d.allocated++
	d.mu.Unlock()

	b := &Buffer{
		dev:   d,
		label: desc.Label,
		usage: desc.Usage,
		data:  make([]float32, desc.Size/4),
	}
	b.entity = d.register(Resource{Kind: KindBuffer, Label: desc.Label, Bytes: desc.Size})
	return b, nil
}

// CreateComputePipeline implements device.Device.
func (d *Device) CreateComputePipeline(desc device.ComputePipelineDescriptor) (device.Pipeline, error) {
	fn, ok := computeKernels[desc.Compute.Label]
	if !ok {
		return nil, fmt.Errorf("%w: compute %q", device.ErrUnknownKernel, desc.Compute.Label)
	}
	p := &Pipeline{
		dev:      d,
		label:    desc.Label,
		kernel:   desc.Compute.Label,
		compute:  fn,
		bindings: kernels.Bindings[desc.Compute.Label],
	}
	p.entity = d.register(Resource{Kind: KindPipeline, Label: desc.Label})
	return p, nil
}

// CreateRenderPipeline implements device.Device.
func (d *Device) CreateRenderPipeline(desc device.RenderPipelineDescriptor) (device.Pipeline, error) {
	if desc.Fragment.Label != kernels.Render {
		return nil, fmt.Errorf("%w: fragment %q", device.ErrUnknownKernel, desc.Fragment.Label)
	}
	p := &Pipeline{
		dev:      d,
		label:    desc.Label,
		kernel:   kernels.Render,
		render:   true,
		bindings: kernels.Bindings[kernels.Render],
	}
	p.entity = d.register(Resource{Kind: KindPipeline, Label: desc.Label})
	return p, nil
}

// CreateBindGroup implements device.Device.
func (d *Device) CreateBindGroup(desc device.BindGroupDescriptor) (device.BindGroup, error) {
	p, ok := desc.Pipeline.(*Pipeline)
	if !ok || p.dev != d || p.released {
		return nil, fmt.Errorf("%w: %q: pipeline not owned by this device", device.ErrBindingMismatch, desc.Label)
	}
	if len(desc.Entries) != p.bindings {
		return nil, fmt.Errorf("%w: %q: %s expects %d bindings, got %d",
			device.ErrBindingMismatch, desc.Label, p.kernel, p.bindings, len(desc.Entries))
	}
	bufs := make([]*Buffer, p.bindings)
	for _, e := range desc.Entries {
		b, ok := e.Buffer.(*Buffer)
		if !ok || b.dev != d {
			return nil, fmt.Errorf("%w: %q: binding %d is not a buffer of this device", device.ErrBindingMismatch, desc.Label, e.Binding)
		}
		if b.destroyed {
			return nil, fmt.Errorf("%w: %q: binding %d (%s)", device.ErrDestroyed, desc.Label, e.Binding, b.label)
		}
		if int(e.Binding) >= len(bufs) || bufs[e.Binding] != nil {
			return nil, fmt.Errorf("%w: %q: binding %d out of range or repeated", device.ErrBindingMismatch, desc.Label, e.Binding)
		}
		bufs[e.Binding] = b
	}
	g := &BindGroup{dev: d, label: desc.Label, pipeline: p, buffers: bufs}
	g.entity = d.register(Resource{Kind: KindBindGroup, Label: desc.Label})
	return g, nil
}

// CreateCommandEncoder implements device.Device.
func (d *Device) CreateCommandEncoder() device.CommandEncoder {
	return &encoder{}
}
