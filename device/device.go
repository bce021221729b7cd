// Package device defines the compute device boundary the simulation engine is
// written against: sized buffers with usage flags, compute and render
// pipelines built from kernel source, bind groups, a command encoder with
// scoped passes, and a submission queue.
//
// Two implementations exist: device/software (CPU, used headless and in tests)
// and renderer (OpenGL 4.3 compute through raylib).
package device

import "errors"

// BufferUsage is a bit set of the ways a buffer will be bound.
type BufferUsage uint32

const (
	UsageStorage BufferUsage = 1 << iota
	UsageUniform
	UsageCopyDst
	UsageCopySrc
)

// Has reports whether all bits of u2 are set.
func (u BufferUsage) Has(u2 BufferUsage) bool {
	return u&u2 == u2
}

// Limits are the capacities a device reports.
type Limits struct {
	MaxStorageBufferBindingSize      uint64
	MaxComputeWorkgroupsPerDimension uint32
}

// DefaultLimits mirrors the baseline limits of common desktop adapters.
func DefaultLimits() Limits {
	return Limits{
		MaxStorageBufferBindingSize:      128 << 20,
		MaxComputeWorkgroupsPerDimension: 65535,
	}
}

// BufferDescriptor describes a buffer to allocate.
type BufferDescriptor struct {
	Label string
	Size  uint64 // bytes, multiple of 4
	Usage BufferUsage
}

// Buffer is a device-resident allocation.
type Buffer interface {
	Label() string
	Size() uint64
	Usage() BufferUsage
	// Destroy releases the allocation. Destroying twice is a no-op.
	Destroy()
}

// ShaderModule is kernel source plus the entry point to run.
type ShaderModule struct {
	Label      string
	Code       string
	EntryPoint string
}

// ComputePipelineDescriptor describes a compute stage.
type ComputePipelineDescriptor struct {
	Label   string
	Compute ShaderModule
}

// RenderPipelineDescriptor describes a full-screen draw stage.
type RenderPipelineDescriptor struct {
	Label    string
	Vertex   ShaderModule
	Fragment ShaderModule
}

// Pipeline is a compiled compute or render stage.
type Pipeline interface {
	Label() string
	Release()
}

// BindGroupEntry binds a buffer at a binding slot.
type BindGroupEntry struct {
	Binding uint32
	Buffer  Buffer
}

// BindGroupDescriptor is an ordered list of bindings for one pipeline.
type BindGroupDescriptor struct {
	Label    string
	Pipeline Pipeline
	Entries  []BindGroupEntry
}

// BindGroup ties a pipeline layout to concrete buffers.
type BindGroup interface {
	Label() string
	Release()
}

// Surface is a render target.
type Surface interface {
	Size() (width, height int)
}

// RenderPassDescriptor describes a render pass.
type RenderPassDescriptor struct {
	Target     Surface
	ClearColor [4]float32
}

// ComputePass records dispatches. Dispatches within one pass and across
// passes of the same command buffer execute in recording order.
type ComputePass interface {
	SetPipeline(p Pipeline)
	SetBindGroup(index uint32, g BindGroup)
	DispatchWorkgroups(x, y, z uint32)
	End()
}

// RenderPass records draws.
type RenderPass interface {
	SetPipeline(p Pipeline)
	SetBindGroup(index uint32, g BindGroup)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	End()
}

// CommandBuffer is a finished, submittable recording.
type CommandBuffer interface{}

// CommandEncoder records passes into a command buffer.
type CommandEncoder interface {
	BeginComputePass() ComputePass
	BeginRenderPass(desc RenderPassDescriptor) RenderPass
	Finish() (CommandBuffer, error)
}

// Queue uploads data and submits work. Writes are ordered before any later submission.
type Queue interface {
	WriteFloat32(b Buffer, offset uint64, data []float32) error
	WriteUint32(b Buffer, offset uint64, data []uint32) error
	Submit(cmds ...CommandBuffer) error
	// ReadFloat32 blocks until prior submissions finish and copies buffer
	// contents starting at offset into dst.
	ReadFloat32(b Buffer, offset uint64, dst []float32) error
}

// Device allocates resources and exposes the queue and limits.
type Device interface {
	Limits() Limits
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	CreateComputePipeline(desc ComputePipelineDescriptor) (Pipeline, error)
	CreateRenderPipeline(desc RenderPipelineDescriptor) (Pipeline, error)
	CreateBindGroup(desc BindGroupDescriptor) (BindGroup, error)
	CreateCommandEncoder() CommandEncoder
	Queue() Queue
}

// Errors shared by device implementations.
var (
	ErrDestroyed       = errors.New("device: resource destroyed")
	ErrOutOfRange      = errors.New("device: write out of buffer range")
	ErrUnknownKernel   = errors.New("device: unknown kernel")
	ErrBindingMismatch = errors.New("device: bind group does not match pipeline layout")
	ErrAllocation      = errors.New("device: allocation failed")
)
