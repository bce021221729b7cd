package simulation

import (
	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/kernels"
	"github.com/pthm-cable/physarum/population"
)

// resourceSet is every device object one engine configuration needs. Bind
// groups reference specific buffers, so a set is replaced as a unit.
type resourceSet struct {
	width, height, numPopulations int
	capacity                      int // particles the particle buffer holds

	particles  device.Buffer
	trails     device.Buffer
	deposits   device.Buffer // trails plus this tick's deposits, before diffuse
	combined   device.Buffer
	simConfig  device.Buffer
	popParams  device.Buffer
	attraction device.Buffer
	colors     device.Buffer

	combinePipeline device.Pipeline
	agentsPipeline  device.Pipeline
	diffusePipeline device.Pipeline
	renderPipeline  device.Pipeline

	combineGroup device.BindGroup
	agentsGroup  device.BindGroup
	diffuseGroup device.BindGroup
	renderGroup  device.BindGroup
}

func (r *resourceSet) mapLen() int {
	return r.width * r.height * r.numPopulations
}

// release frees everything in the set. Safe on partially built sets.
func (r *resourceSet) release() {
	for _, g := range []device.BindGroup{r.combineGroup, r.agentsGroup, r.diffuseGroup, r.renderGroup} {
		if g != nil {
			g.Release()
		}
	}
	for _, p := range []device.Pipeline{r.combinePipeline, r.agentsPipeline, r.diffusePipeline, r.renderPipeline} {
		if p != nil {
			p.Release()
		}
	}
	for _, b := range []device.Buffer{r.particles, r.trails, r.deposits, r.combined, r.simConfig, r.popParams, r.attraction, r.colors} {
		if b != nil {
			b.Destroy()
		}
	}
}

const (
	storageUsage = device.UsageStorage | device.UsageCopyDst | device.UsageCopySrc
	uniformUsage = device.UsageUniform | device.UsageCopyDst
)

func createBuffer(dev device.Device, label string, size uint64, usage device.BufferUsage) (device.Buffer, error) {
	b, err := dev.CreateBuffer(device.BufferDescriptor{Label: label, Size: size, Usage: usage})
	if err != nil {
		return nil, &AllocationError{Resource: label, Err: err}
	}
	return b, nil
}

func createParticleBuffer(dev device.Device, count int) (device.Buffer, error) {
	size := BufferSizes(count, 0, 0, 0).Particles
	return createBuffer(dev, BufferParticles, size, storageUsage)
}

func createComputePipeline(dev device.Device, kernel string) (device.Pipeline, error) {
	mod, err := kernels.Module(kernel)
	if err != nil {
		return nil, &AllocationError{Resource: kernel + " pipeline", Err: err}
	}
	p, err := dev.CreateComputePipeline(device.ComputePipelineDescriptor{Label: kernel, Compute: mod})
	if err != nil {
		return nil, &AllocationError{Resource: kernel + " pipeline", Err: err}
	}
	return p, nil
}

func createRenderPipeline(dev device.Device) (device.Pipeline, error) {
	mod, err := kernels.Module(kernels.Render)
	if err != nil {
		return nil, &AllocationError{Resource: "render pipeline", Err: err}
	}
	p, err := dev.CreateRenderPipeline(device.RenderPipelineDescriptor{
		Label:    kernels.Render,
		Vertex:   device.ShaderModule{Label: kernels.Render, EntryPoint: kernels.EntryPoint},
		Fragment: mod,
	})
	if err != nil {
		return nil, &AllocationError{Resource: "render pipeline", Err: err}
	}
	return p, nil
}

func createBindGroup(dev device.Device, label string, p device.Pipeline, bufs ...device.Buffer) (device.BindGroup, error) {
	entries := make([]device.BindGroupEntry, len(bufs))
	for i, b := range bufs {
		entries[i] = device.BindGroupEntry{Binding: uint32(i), Buffer: b}
	}
	g, err := dev.CreateBindGroup(device.BindGroupDescriptor{Label: label, Pipeline: p, Entries: entries})
	if err != nil {
		return nil, &AllocationError{Resource: label + " bind group", Err: err}
	}
	return g, nil
}

// buildResources validates sizes against the device limits, then allocates
// a complete set. On any failure nothing stays allocated.
func buildResources(dev device.Device, cfg population.MultiPopulationConfig, particleCount int) (_ *resourceSet, err error) {
	n := cfg.NumPopulations()
	sizes := BufferSizes(particleCount, cfg.Width, cfg.Height, n)
	if err := CheckLimits(sizes, dev.Limits()); err != nil {
		return nil, err
	}

	r := &resourceSet{width: cfg.Width, height: cfg.Height, numPopulations: n, capacity: max(particleCount, 1)}
	defer func() {
		if err != nil {
			r.release()
		}
	}()

	if r.particles, err = createParticleBuffer(dev, particleCount); err != nil {
		return nil, err
	}
	if r.trails, err = createBuffer(dev, BufferTrailMaps, sizes.TrailMaps, storageUsage); err != nil {
		return nil, err
	}
	if r.deposits, err = createBuffer(dev, "deposit_maps", sizes.TrailMaps, storageUsage); err != nil {
		return nil, err
	}
	if r.combined, err = createBuffer(dev, "combined_maps", sizes.TrailMaps, storageUsage); err != nil {
		return nil, err
	}
	if r.simConfig, err = createBuffer(dev, "sim_config", kernels.SimConfigWords*4, uniformUsage); err != nil {
		return nil, err
	}
	if r.popParams, err = createBuffer(dev, "population_params", uint64(n*population.ParamsPerPopulation*4), storageUsage); err != nil {
		return nil, err
	}
	if r.attraction, err = createBuffer(dev, "attraction", uint64(n*n*4), storageUsage); err != nil {
		return nil, err
	}
	if r.colors, err = createBuffer(dev, "colors", kernels.ColorWords*4, uniformUsage); err != nil {
		return nil, err
	}

	if r.combinePipeline, err = createComputePipeline(dev, kernels.Combine); err != nil {
		return nil, err
	}
	if r.agentsPipeline, err = createComputePipeline(dev, kernels.Agents); err != nil {
		return nil, err
	}
	if r.diffusePipeline, err = createComputePipeline(dev, kernels.Diffuse); err != nil {
		return nil, err
	}
	if r.renderPipeline, err = createRenderPipeline(dev); err != nil {
		return nil, err
	}

	if r.combineGroup, err = createBindGroup(dev, kernels.Combine, r.combinePipeline,
		r.trails, r.combined, r.simConfig, r.attraction, r.deposits); err != nil {
		return nil, err
	}
	if r.agentsGroup, err = createBindGroup(dev, kernels.Agents, r.agentsPipeline,
		r.particles, r.deposits, r.combined, r.simConfig, r.popParams); err != nil {
		return nil, err
	}
	if r.diffuseGroup, err = createBindGroup(dev, kernels.Diffuse, r.diffusePipeline,
		r.deposits, r.trails, r.simConfig, r.popParams); err != nil {
		return nil, err
	}
	if r.renderGroup, err = createBindGroup(dev, kernels.Render, r.renderPipeline,
		r.combined, r.simConfig, r.colors); err != nil {
		return nil, err
	}
	return r, nil
}

// particleReplacement is a new particle buffer and the agent bind group that
// references it, built against an existing set.
type particleReplacement struct {
	particles   device.Buffer
	agentsGroup device.BindGroup
	capacity    int
}

func buildParticleReplacement(dev device.Device, r *resourceSet, count int) (*particleReplacement, error) {
	if err := CheckLimits(Sizes{Particles: BufferSizes(count, 0, 0, 0).Particles}, dev.Limits()); err != nil {
		return nil, err
	}
	particles, err := createParticleBuffer(dev, count)
	if err != nil {
		return nil, err
	}
	group, err := createBindGroup(dev, kernels.Agents, r.agentsPipeline,
		particles, r.deposits, r.combined, r.simConfig, r.popParams)
	if err != nil {
		particles.Destroy()
		return nil, err
	}
	return &particleReplacement{particles: particles, agentsGroup: group, capacity: max(count, 1)}, nil
}

// swapParticles installs the replacement and releases what it replaced.
func (r *resourceSet) swapParticles(p *particleReplacement) {
	oldParticles, oldGroup := r.particles, r.agentsGroup
	r.particles, r.agentsGroup, r.capacity = p.particles, p.agentsGroup, p.capacity
	oldGroup.Release()
	oldParticles.Destroy()
}
