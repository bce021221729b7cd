//go:build opengl43

package renderer

import (
	"fmt"
	"log/slog"
	"math"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/go-gl/gl/v4.3-core/gl"

	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/kernels"
)

// GL_DYNAMIC_COPY; rlgl does not export it.
const glDynamicCopy = 0x88EA

// Device runs the kernels as OpenGL 4.3 compute programs through rlgl.
// The window (and its GL context) must exist before New is called, and
// every call must come from the thread that created it.
type Device struct {
	limits device.Limits
	queue  *Queue
	log    *slog.Logger

	liveBuffers int
	liveBytes   uint64
}

// New creates a device on the current GL context. rlgl cannot query
// storage limits, so they are taken from limits. The GL entry points rlgl
// does not wrap (memory barriers, shader deletion) are loaded from the same
// context.
func New(limits device.Limits, log *slog.Logger) (*Device, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("loading GL entry points: %w", err)
	}
	if limits.MaxStorageBufferBindingSize > math.MaxUint32 {
		limits.MaxStorageBufferBindingSize = math.MaxUint32
	}
	d := &Device{limits: limits, log: log}
	d.queue = &Queue{dev: d}
	log.Info("gl compute device ready",
		"max_storage_mb", float64(limits.MaxStorageBufferBindingSize)/1024/1024,
		"max_workgroups", limits.MaxComputeWorkgroupsPerDimension,
	)
	return d, nil
}

// Limits implements device.Device.
func (d *Device) Limits() device.Limits { return d.limits }

// Queue implements device.Device.
func (d *Device) Queue() device.Queue { return d.queue }

// LiveBuffers returns the number and total size of undestroyed buffers.
func (d *Device) LiveBuffers() (count int, bytes uint64) { return d.liveBuffers, d.liveBytes }

// CreateBuffer allocates a shader storage buffer.
func (d *Device) CreateBuffer(desc device.BufferDescriptor) (device.Buffer, error) {
	if desc.Size == 0 || desc.Size%4 != 0 {
		return nil, fmt.Errorf("%w: %s size %d must be a positive multiple of 4", device.ErrAllocation, desc.Label, desc.Size)
	}
	if desc.Usage.Has(device.UsageStorage) && desc.Size > d.limits.MaxStorageBufferBindingSize {
		return nil, fmt.Errorf("%w: %s size %d exceeds storage limit %d",
			device.ErrAllocation, desc.Label, desc.Size, d.limits.MaxStorageBufferBindingSize)
	}
	id := rl.LoadShaderBuffer(uint32(desc.Size), nil, glDynamicCopy)
	if id == 0 {
		return nil, fmt.Errorf("%w: %s (%d bytes)", device.ErrAllocation, desc.Label, desc.Size)
	}
	d.liveBuffers++
	d.liveBytes += desc.Size
	return &Buffer{dev: d, id: id, label: desc.Label, size: desc.Size, usage: desc.Usage}, nil
}

// CreateComputePipeline compiles and links a compute program.
func (d *Device) CreateComputePipeline(desc device.ComputePipelineDescriptor) (device.Pipeline, error) {
	bindings, ok := kernels.Bindings[desc.Compute.Label]
	if !ok || desc.Compute.Label == kernels.Render {
		return nil, fmt.Errorf("%w: %q", device.ErrUnknownKernel, desc.Compute.Label)
	}
	program, err := loadComputeProgram(rlglLoader{}, desc.Compute.Label, desc.Compute.Code)
	if err != nil {
		return nil, err
	}
	return &Pipeline{label: desc.Label, kernel: desc.Compute.Label, program: program, bindings: bindings}, nil
}

// rlglLoader builds compute programs through rlgl. Shader objects are
// deleted with go-gl since rlgl only unloads whole programs.
type rlglLoader struct{}

func (rlglLoader) compileShader(code string, kind int32) uint32 { return rl.CompileShader(code, kind) }
func (rlglLoader) linkComputeProgram(shader uint32) uint32 { return rl.LoadComputeShaderProgram(shader) }
func (rlglLoader) deleteShader(shader uint32) { gl.DeleteShader(shader) }

// CreateRenderPipeline builds the full-screen fragment stage. An empty
// vertex module uses raylib's default vertex shader.
func (d *Device) CreateRenderPipeline(desc device.RenderPipelineDescriptor) (device.Pipeline, error) {
	if desc.Fragment.Label != kernels.Render {
		return nil, fmt.Errorf("%w: %q", device.ErrUnknownKernel, desc.Fragment.Label)
	}
	shader := rl.LoadShaderFromMemory(desc.Vertex.Code, desc.Fragment.Code)
	if !rl.IsShaderValid(shader) || shader.ID == rl.GetShaderIdDefault() {
		return nil, fmt.Errorf("%w: compiling %s", device.ErrAllocation, desc.Fragment.Label)
	}
	return &Pipeline{
		label:    desc.Label,
		kernel:   kernels.Render,
		render:   true,
		shader:   shader,
		sizeLoc:  rl.GetShaderLocation(shader, "surfaceSize"),
		bindings: kernels.Bindings[kernels.Render],
	}, nil
}

// CreateBindGroup checks the entries against the pipeline layout.
func (d *Device) CreateBindGroup(desc device.BindGroupDescriptor) (device.BindGroup, error) {
	p, ok := desc.Pipeline.(*Pipeline)
	if !ok || p.released {
		return nil, fmt.Errorf("%w: %s has no usable pipeline", device.ErrBindingMismatch, desc.Label)
	}
	if len(desc.Entries) != p.bindings {
		return nil, fmt.Errorf("%w: %s has %d entries, %s wants %d",
			device.ErrBindingMismatch, desc.Label, len(desc.Entries), p.kernel, p.bindings)
	}
	g := &BindGroup{label: desc.Label, pipeline: p, entries: make([]binding, len(desc.Entries))}
	seen := make(map[uint32]bool, len(desc.Entries))
	for i, e := range desc.Entries {
		b, ok := e.Buffer.(*Buffer)
		if !ok || b.dev != d {
			return nil, fmt.Errorf("%w: %s entry %d is a foreign buffer", device.ErrBindingMismatch, desc.Label, i)
		}
		if b.destroyed {
			return nil, fmt.Errorf("%w: %s", device.ErrDestroyed, b.label)
		}
		if seen[e.Binding] {
			return nil, fmt.Errorf("%w: %s binds slot %d twice", device.ErrBindingMismatch, desc.Label, e.Binding)
		}
		seen[e.Binding] = true
		g.entries[i] = binding{slot: e.Binding, buf: b}
	}
	return g, nil
}

// CreateCommandEncoder implements device.Device.
func (d *Device) CreateCommandEncoder() device.CommandEncoder {
	return &encoder{}
}
