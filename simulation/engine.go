// Package simulation owns the device-resident state of a multi-species
// Physarum simulation and advances it one tick at a time.
//
// Each tick records three compute passes into one command buffer:
// combine (attraction-weighted trail aggregate), agents (sense, rotate, move,
// deposit) and diffuse (3x3 blur then decay).
package simulation

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/kernels"
	"github.com/pthm-cable/physarum/population"
)

// Option configures an Engine.
type Option func(*Engine)

// WithRand sets the random source used for particle seeding.
func WithRand(rng *rand.Rand) Option {
	return func(e *Engine) { e.rng = rng }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine runs a simulation on a compute device.
type Engine struct {
	dev device.Device
	cfg population.MultiPopulationConfig

	particleCount          int
	particlesPerPopulation int

	res  *resourceSet
	rng  *rand.Rand
	log  *slog.Logger
	tick uint64
}

// New validates cfg, checks buffer sizes against the device limits and
// allocates every buffer, pipeline and bind group. Particles are seeded and
// maps start at zero. On failure nothing is left allocated.
func New(dev device.Device, cfg population.MultiPopulationConfig, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		dev:           dev,
		cfg:           cfg.Clone(),
		particleCount: cfg.ParticleCount,
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(rand.Int63()))
	}
	e.particlesPerPopulation = population.ParticlesPerPopulation(e.particleCount, e.cfg.NumPopulations())

	res, err := buildResources(dev, e.cfg, e.particleCount)
	if err != nil {
		return nil, err
	}
	e.res = res
	if err := e.InitializeParticles(); err != nil {
		e.Release()
		return nil, err
	}

	e.log.Debug("simulation created",
		"particles", e.particleCount,
		"populations", e.cfg.NumPopulations(),
		"width", e.cfg.Width,
		"height", e.cfg.Height,
	)
	return e, nil
}

// Config returns a copy of the active configuration.
func (e *Engine) Config() population.MultiPopulationConfig {
	return e.cfg.Clone()
}

// ParticleCount returns the configured particle count.
func (e *Engine) ParticleCount() int { return e.particleCount }

// ParticlesPerPopulation returns floor(ParticleCount / populations).
func (e *Engine) ParticlesPerPopulation() int { return e.particlesPerPopulation }

// Tick returns the number of completed steps.
func (e *Engine) Tick() uint64 { return e.tick }

// MapLen returns the float count of the trail and combined maps.
func (e *Engine) MapLen() int {
	if e.res == nil {
		return 0
	}
	return e.res.mapLen()
}

// Release frees all device resources. Further operations return ErrReleased.
func (e *Engine) Release() {
	if e.res == nil {
		return
	}
	e.res.release()
	e.res = nil
}

// InitializeParticles reseeds every particle and zeroes both maps.
func (e *Engine) InitializeParticles() error {
	if e.res == nil {
		return ErrReleased
	}
	if err := e.seedParticles(); err != nil {
		return err
	}
	zero := make([]float32, e.res.mapLen())
	q := e.dev.Queue()
	if err := q.WriteFloat32(e.res.trails, 0, zero); err != nil {
		return fmt.Errorf("clearing trail maps: %w", err)
	}
	if err := q.WriteFloat32(e.res.combined, 0, zero); err != nil {
		return fmt.Errorf("clearing combined maps: %w", err)
	}
	if err := q.WriteFloat32(e.res.deposits, 0, zero); err != nil {
		return fmt.Errorf("clearing deposit maps: %w", err)
	}
	return nil
}

// Reset is InitializeParticles.
func (e *Engine) Reset() error {
	return e.InitializeParticles()
}

// seedParticles writes uniformly random positions and headings. Species
// follow particle index in contiguous groups.
func (e *Engine) seedParticles() error {
	n := e.res.capacity
	w, h := float32(e.res.width), float32(e.res.height)
	pops := e.cfg.NumPopulations()
	data := make([]float32, n*4)
	for i := 0; i < n; i++ {
		p := data[i*4 : i*4+4]
		p[0] = below(float32(e.rng.Float64()*float64(w)), w)
		p[1] = below(float32(e.rng.Float64()*float64(h)), h)
		p[2] = below(float32(e.rng.Float64()*2*math.Pi), 2*math.Pi)
		p[3] = float32(population.SpeciesForIndex(i, e.particlesPerPopulation, pops))
	}
	if err := e.dev.Queue().WriteFloat32(e.res.particles, 0, data); err != nil {
		return fmt.Errorf("seeding particles: %w", err)
	}
	return nil
}

// below clamps float32 rounding of a sample in [0,limit) back under limit.
func below(v, limit float32) float32 {
	if v >= limit {
		return math.Nextafter32(limit, 0)
	}
	return v
}

// uploadParameters writes the global, per-species and attraction blocks.
func (e *Engine) uploadParameters() error {
	q := e.dev.Queue()
	sim := []uint32{uint32(e.res.width), uint32(e.res.height), uint32(e.res.numPopulations)}
	if err := q.WriteUint32(e.res.simConfig, 0, sim); err != nil {
		return fmt.Errorf("uploading sim config: %w", err)
	}
	if err := q.WriteFloat32(e.res.popParams, 0, e.cfg.PackParameters()); err != nil {
		return fmt.Errorf("uploading population params: %w", err)
	}
	if err := q.WriteFloat32(e.res.attraction, 0, e.cfg.PackAttraction()); err != nil {
		return fmt.Errorf("uploading attraction: %w", err)
	}
	return nil
}

// Step advances the simulation one tick: combine, agents, diffuse, in that
// order, in a single submission.
func (e *Engine) Step() error {
	if e.res == nil {
		return ErrReleased
	}
	if err := e.uploadParameters(); err != nil {
		return err
	}

	gx, gy := device.GridDispatch(e.res.width, e.res.height)
	active := min(e.particleCount, e.res.capacity)
	px, py := device.ParticleDispatch(active, e.dev.Limits().MaxComputeWorkgroupsPerDimension)

	enc := e.dev.CreateCommandEncoder()
	stages := []struct {
		pipeline device.Pipeline
		group    device.BindGroup
		x, y     uint32
	}{
		{e.res.combinePipeline, e.res.combineGroup, gx, gy},
		{e.res.agentsPipeline, e.res.agentsGroup, px, py},
		{e.res.diffusePipeline, e.res.diffuseGroup, gx, gy},
	}
	for _, s := range stages {
		pass := enc.BeginComputePass()
		pass.SetPipeline(s.pipeline)
		pass.SetBindGroup(0, s.group)
		pass.DispatchWorkgroups(s.x, s.y, 1)
		pass.End()
	}
	cmd, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("encoding step: %w", err)
	}
	if err := e.dev.Queue().Submit(cmd); err != nil {
		return fmt.Errorf("submitting step: %w", err)
	}
	e.tick++
	return nil
}

// Render draws the combined maps onto target. colors holds RGBA for up to
// eight species (kernels.ColorWords floats). Simulation state is not touched.
func (e *Engine) Render(target device.Surface, colors []float32) error {
	if e.res == nil {
		return ErrReleased
	}
	if len(colors) != kernels.ColorWords {
		return &ValidationError{Field: "colors", Value: len(colors), Reason: fmt.Sprintf("must hold %d floats", kernels.ColorWords)}
	}
	q := e.dev.Queue()
	if err := q.WriteFloat32(e.res.colors, 0, colors); err != nil {
		return fmt.Errorf("uploading colors: %w", err)
	}
	sim := []uint32{uint32(e.res.width), uint32(e.res.height), uint32(e.res.numPopulations)}
	if err := q.WriteUint32(e.res.simConfig, 0, sim); err != nil {
		return fmt.Errorf("uploading sim config: %w", err)
	}

	enc := e.dev.CreateCommandEncoder()
	pass := enc.BeginRenderPass(device.RenderPassDescriptor{Target: target, ClearColor: [4]float32{0, 0, 0, 1}})
	pass.SetPipeline(e.res.renderPipeline)
	pass.SetBindGroup(0, e.res.renderGroup)
	pass.Draw(6, 1, 0, 0)
	pass.End()
	cmd, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("encoding render: %w", err)
	}
	if err := q.Submit(cmd); err != nil {
		return fmt.Errorf("submitting render: %w", err)
	}
	return nil
}

func validateParticleCount(n int) error {
	if n <= 0 {
		return &ValidationError{Field: "particle_count", Value: n, Reason: "must be greater than 0"}
	}
	return nil
}

// SetParticleCount is UpdateParticleCount. The particle buffer always holds
// exactly ParticleCount particles.
func (e *Engine) SetParticleCount(n int) error {
	return e.UpdateParticleCount(n)
}

// setCount records n and recomputes the per-population split.
func (e *Engine) setCount(n int) {
	e.particleCount = n
	e.particlesPerPopulation = population.ParticlesPerPopulation(n, e.cfg.NumPopulations())
	e.cfg.ParticleCount = n
}

// UpdateParticleCount replaces the particle buffer and its bind group with
// ones sized for n, then reseeds the particles. Trail and combined maps are
// left untouched. On error the engine is unchanged.
func (e *Engine) UpdateParticleCount(n int) error {
	if err := validateParticleCount(n); err != nil {
		return err
	}
	if e.res == nil {
		return ErrReleased
	}
	repl, err := buildParticleReplacement(e.dev, e.res, n)
	if err != nil {
		return err
	}
	e.res.swapParticles(repl)
	e.setCount(n)
	if err := e.seedParticles(); err != nil {
		return err
	}
	e.log.Info("particle count updated", "particles", n, "per_population", e.particlesPerPopulation)
	return nil
}

// Resize rebuilds every resource for a new grid size and reseeds. The
// replacement set is complete before the old one is released; on error the
// engine keeps running at the old size.
func (e *Engine) Resize(width, height int) error {
	if e.res == nil {
		return ErrReleased
	}
	next := e.cfg.Resized(width, height)
	if err := next.Validate(); err != nil {
		return err
	}
	res, err := buildResources(e.dev, next, e.particleCount)
	if err != nil {
		return err
	}
	old := e.res
	e.res = res
	e.cfg = next
	old.release()

	if err := e.InitializeParticles(); err != nil {
		return err
	}
	e.log.Info("simulation resized", "width", width, "height", height)
	return nil
}

// SetConfig replaces the per-species parameters and attraction table. The
// species count and grid must match the running configuration. Changes
// apply from the next Step.
func (e *Engine) SetConfig(cfg population.MultiPopulationConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NumPopulations() != e.cfg.NumPopulations() {
		return &ValidationError{Field: "num_populations", Value: cfg.NumPopulations(),
			Reason: fmt.Sprintf("live update requires %d populations", e.cfg.NumPopulations())}
	}
	if cfg.Width != e.cfg.Width || cfg.Height != e.cfg.Height {
		return &ValidationError{Field: "grid", Value: fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
			Reason: "use Resize to change the grid"}
	}
	next := cfg.Clone()
	next.ParticleCount = e.particleCount
	e.cfg = next
	return nil
}

func (e *Engine) read(b func(*resourceSet) device.Buffer, words int, dst []float32) ([]float32, error) {
	if e.res == nil {
		return dst, ErrReleased
	}
	if cap(dst) < words {
		dst = make([]float32, words)
	}
	dst = dst[:words]
	if err := e.dev.Queue().ReadFloat32(b(e.res), 0, dst); err != nil {
		return dst, fmt.Errorf("reading back: %w", err)
	}
	return dst, nil
}

// ReadTrails copies the trail maps ([species][y][x]) into dst, growing it as needed.
func (e *Engine) ReadTrails(dst []float32) ([]float32, error) {
	return e.read(func(r *resourceSet) device.Buffer { return r.trails }, e.MapLen(), dst)
}

// ReadCombined copies the combined maps ([species][y][x]) into dst.
func (e *Engine) ReadCombined(dst []float32) ([]float32, error) {
	return e.read(func(r *resourceSet) device.Buffer { return r.combined }, e.MapLen(), dst)
}

// ReadParticles copies particles (x, y, heading, species) into dst.
func (e *Engine) ReadParticles(dst []float32) ([]float32, error) {
	words := 0
	if e.res != nil {
		words = e.res.capacity * 4
	}
	return e.read(func(r *resourceSet) device.Buffer { return r.particles }, words, dst)
}
