package software

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/kernels"
)

func newTestDevice(t *testing.T, opts ...Option) *Device {
	t.Helper()
	d := NewDefault(opts...)
	t.Cleanup(d.Close)
	return d
}

func mustBuffer(t *testing.T, d *Device, label string, words int) device.Buffer {
	t.Helper()
	b, err := d.CreateBuffer(device.BufferDescriptor{
		Label: label,
		Size:  uint64(words) * 4,
		Usage: device.UsageStorage | device.UsageCopyDst,
	})
	require.NoError(t, err)
	return b
}

type stage struct {
	pipeline device.Pipeline
	group    device.BindGroup
}

func newStage(t *testing.T, d *Device, kernel string, bufs ...device.Buffer) stage {
	t.Helper()
	var p device.Pipeline
	var err error
	if kernel == kernels.Render {
		p, err = d.CreateRenderPipeline(device.RenderPipelineDescriptor{Label: kernel, Fragment: kernels.MustModule(kernel)})
	} else {
		p, err = d.CreateComputePipeline(device.ComputePipelineDescriptor{Label: kernel, Compute: kernels.MustModule(kernel)})
	}
	require.NoError(t, err)
	entries := make([]device.BindGroupEntry, len(bufs))
	for i, b := range bufs {
		entries[i] = device.BindGroupEntry{Binding: uint32(i), Buffer: b}
	}
	g, err := d.CreateBindGroup(device.BindGroupDescriptor{Label: kernel, Pipeline: p, Entries: entries})
	require.NoError(t, err)
	return stage{pipeline: p, group: g}
}

func dispatch(t *testing.T, d *Device, s stage, x, y uint32) {
	t.Helper()
	enc := d.CreateCommandEncoder()
	pass := enc.BeginComputePass()
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.group)
	pass.DispatchWorkgroups(x, y, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Queue().Submit(cmd))
}

func simConfig(t *testing.T, d *Device, w, h, n int) device.Buffer {
	t.Helper()
	b := mustBuffer(t, d, "sim", kernels.SimConfigWords)
	require.NoError(t, d.Queue().WriteUint32(b, 0, []uint32{uint32(w), uint32(h), uint32(n)}))
	return b
}

func read(t *testing.T, d *Device, b device.Buffer) []float32 {
	t.Helper()
	out := make([]float32, b.Size()/4)
	require.NoError(t, d.Queue().ReadFloat32(b, 0, out))
	return out
}

func TestRegistryTracksLifetimes(t *testing.T) {
	d := newTestDevice(t)
	a := mustBuffer(t, d, "a", 16)
	b := mustBuffer(t, d, "b", 4)

	assert.Equal(t, 2, d.LiveCount(KindBuffer))
	assert.Equal(t, uint64(80), d.LiveBytes())

	a.Destroy()
	a.Destroy()
	assert.Equal(t, 1, d.LiveCount(KindBuffer))
	assert.Equal(t, uint64(16), d.LiveBytes())

	s := newStage(t, d, kernels.Diffuse, mustBuffer(t, d, "deposits", 1), b, simConfig(t, d, 1, 1, 1), mustBuffer(t, d, "params", 6))
	assert.Equal(t, 1, d.LiveCount(KindPipeline))
	assert.Equal(t, 1, d.LiveCount(KindBindGroup))
	s.group.Release()
	s.pipeline.Release()
	assert.Zero(t, d.LiveCount(KindPipeline))
	assert.Zero(t, d.LiveCount(KindBindGroup))
}

func TestCreateBufferRejectsOversize(t *testing.T) {
	d := New(device.Limits{MaxStorageBufferBindingSize: 1024, MaxComputeWorkgroupsPerDimension: 65535})
	t.Cleanup(d.Close)

	_, err := d.CreateBuffer(device.BufferDescriptor{Label: "big", Size: 2048, Usage: device.UsageStorage})
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.Empty(t, d.LiveResources())
}

func TestAllocationBudget(t *testing.T) {
	d := newTestDevice(t, WithAllocationBudget(2))
	mustBuffer(t, d, "a", 1)
	mustBuffer(t, d, "b", 1)
	_, err := d.CreateBuffer(device.BufferDescriptor{Label: "c", Size: 4, Usage: device.UsageStorage})
	assert.ErrorIs(t, err, device.ErrAllocation)
	assert.Equal(t, 2, d.LiveCount(KindBuffer))
}

func TestQueueRangeChecks(t *testing.T) {
	d := newTestDevice(t)
	b := mustBuffer(t, d, "b", 4)
	q := d.Queue()

	require.NoError(t, q.WriteFloat32(b, 8, []float32{1, 2}))
	assert.Equal(t, []float32{0, 0, 1, 2}, read(t, d, b))

	assert.ErrorIs(t, q.WriteFloat32(b, 12, []float32{1, 2}), device.ErrOutOfRange)
	assert.ErrorIs(t, q.WriteFloat32(b, 2, []float32{1}), device.ErrOutOfRange)

	b.Destroy()
	assert.ErrorIs(t, q.WriteFloat32(b, 0, []float32{1}), device.ErrDestroyed)
}

func TestBindGroupLayoutMismatch(t *testing.T) {
	d := newTestDevice(t)
	p, err := d.CreateComputePipeline(device.ComputePipelineDescriptor{Label: "c", Compute: kernels.MustModule(kernels.Combine)})
	require.NoError(t, err)

	_, err = d.CreateBindGroup(device.BindGroupDescriptor{
		Pipeline: p,
		Entries:  []device.BindGroupEntry{{Binding: 0, Buffer: mustBuffer(t, d, "x", 1)}},
	})
	assert.ErrorIs(t, err, device.ErrBindingMismatch)
}

func TestUnknownComputeKernel(t *testing.T) {
	d := newTestDevice(t)
	_, err := d.CreateComputePipeline(device.ComputePipelineDescriptor{Compute: device.ShaderModule{Label: "blur"}})
	assert.ErrorIs(t, err, device.ErrUnknownKernel)
}

func TestSubmitAfterBufferDestroyed(t *testing.T) {
	d := newTestDevice(t)
	trails := mustBuffer(t, d, "trails", 4)
	s := newStage(t, d, kernels.Diffuse, mustBuffer(t, d, "deposits", 4), trails, simConfig(t, d, 2, 2, 1), mustBuffer(t, d, "params", 6))

	enc := d.CreateCommandEncoder()
	pass := enc.BeginComputePass()
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.group)
	pass.DispatchWorkgroups(1, 1, 1)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)

	trails.Destroy()
	assert.ErrorIs(t, d.Queue().Submit(cmd), device.ErrDestroyed)
}

func TestCombineMatchesWeightedSum(t *testing.T) {
	d := newTestDevice(t)
	const w, h, n = 5, 3, 2
	cells := w * h

	trailData := make([]float32, n*cells)
	for i := range trailData {
		trailData[i] = float32(i%7) + 0.5
	}
	attraction := []float32{1.1, -0.3, 0.6, 1.0}

	trails := mustBuffer(t, d, "trails", n*cells)
	combined := mustBuffer(t, d, "combined", n*cells)
	attr := mustBuffer(t, d, "attraction", n*n)
	deposits := mustBuffer(t, d, "deposits", n*cells)
	require.NoError(t, d.Queue().WriteFloat32(trails, 0, trailData))
	require.NoError(t, d.Queue().WriteFloat32(attr, 0, attraction))

	s := newStage(t, d, kernels.Combine, trails, combined, simConfig(t, d, w, h, n), attr, deposits)
	gx, gy := device.GridDispatch(w, h)
	dispatch(t, d, s, gx, gy)

	assert.Equal(t, trailData, read(t, d, deposits), "deposit maps start as a copy of the trail maps")

	got := read(t, d, combined)
	for i := 0; i < n; i++ {
		for c := 0; c < cells; c++ {
			var want float32
			for j := 0; j < n; j++ {
				want += attraction[i*n+j] * trailData[j*cells+c]
			}
			assert.InDelta(t, want, got[i*cells+c], 1e-5, "species %d cell %d", i, c)
		}
	}
}

func TestDiffuseSpreadsAndDecays(t *testing.T) {
	d := newTestDevice(t)
	const w, h = 6, 5
	deposits := mustBuffer(t, d, "deposits", w*h)
	trails := mustBuffer(t, d, "trails", w*h)
	params := mustBuffer(t, d, "params", 6)
	require.NoError(t, d.Queue().WriteFloat32(params, 0, []float32{0, 0, 0, 0, 0.5, 0}))

	spike := make([]float32, w*h)
	spike[0] = 9 // corner, so the blur wraps on both axes
	require.NoError(t, d.Queue().WriteFloat32(deposits, 0, spike))
	stale := make([]float32, w*h)
	for i := range stale {
		stale[i] = 100
	}
	require.NoError(t, d.Queue().WriteFloat32(trails, 0, stale))

	s := newStage(t, d, kernels.Diffuse, deposits, trails, simConfig(t, d, w, h, 1), params)
	dispatch(t, d, s, 1, 1)

	assert.Equal(t, spike, read(t, d, deposits), "diffuse must not write its source")

	got := read(t, d, trails)
	var total float32
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := got[y*w+x]
			total += v
			near := (x == 0 || x == 1 || x == w-1) && (y == 0 || y == 1 || y == h-1)
			if near {
				assert.InDelta(t, 0.5, v, 1e-6, "cell (%d,%d)", x, y)
			} else {
				assert.Zero(t, v, "cell (%d,%d)", x, y)
			}
		}
	}
	assert.InDelta(t, 4.5, total, 1e-5)
}

func TestDiffuseMatchesBlurOfSource(t *testing.T) {
	d := newTestDevice(t, WithWorkers(4))
	const w, h, n = 9, 7, 2
	cells := w * h

	src := make([]float32, n*cells)
	for i := range src {
		src[i] = float32((i*37)%11) + 0.25
	}
	decay := []float32{0.8, 0.5}
	deposits := mustBuffer(t, d, "deposits", n*cells)
	trails := mustBuffer(t, d, "trails", n*cells)
	params := mustBuffer(t, d, "params", n*6)
	require.NoError(t, d.Queue().WriteFloat32(deposits, 0, src))
	require.NoError(t, d.Queue().WriteFloat32(params, 0, []float32{0, 0, 0, 0, decay[0], 0, 0, 0, 0, 0, decay[1], 0}))

	s := newStage(t, d, kernels.Diffuse, deposits, trails, simConfig(t, d, w, h, n), params)
	gx, gy := device.GridDispatch(w, h)
	dispatch(t, d, s, gx, gy)

	got := read(t, d, trails)
	for sp := 0; sp < n; sp++ {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var sum float32
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						sum += src[sp*cells+modInt(y+dy, h)*w+modInt(x+dx, w)]
					}
				}
				assert.InDelta(t, sum/9*decay[sp], got[sp*cells+y*w+x], 1e-4, "species %d cell (%d,%d)", sp, x, y)
			}
		}
	}
}

func agentFixture(t *testing.T, d *Device, w, h int, particles, params []float32) (pb, trails, combined device.Buffer, s stage) {
	t.Helper()
	pb = mustBuffer(t, d, "particles", len(particles))
	trails = mustBuffer(t, d, "trails", w*h)
	combined = mustBuffer(t, d, "combined", w*h)
	prm := mustBuffer(t, d, "params", 6)
	require.NoError(t, d.Queue().WriteFloat32(pb, 0, particles))
	require.NoError(t, d.Queue().WriteFloat32(prm, 0, params))
	s = newStage(t, d, kernels.Agents, pb, trails, combined, simConfig(t, d, w, h, 1), prm)
	return pb, trails, combined, s
}

func TestAgentForwardWinsTie(t *testing.T) {
	d := newTestDevice(t)
	// sensor 3, step 1, sensor angle 45°, rotation 30°, decay, deposit 5
	params := []float32{3, 1, math.Pi / 4, math.Pi / 6, 0.8, 5}
	pb, trails, _, s := agentFixture(t, d, 16, 16, []float32{5.5, 5.5, 0, 0}, params)

	dispatch(t, d, s, 1, 1)

	p := read(t, d, pb)
	assert.InDelta(t, 6.5, p[0], 1e-5)
	assert.InDelta(t, 5.5, p[1], 1e-5)
	assert.InDelta(t, 0, p[2], 1e-6)
	assert.Equal(t, float32(0), p[3])
	assert.Equal(t, float32(5), read(t, d, trails)[5*16+6])
}

func TestAgentTurnsTowardStrongerSide(t *testing.T) {
	d := newTestDevice(t)
	const w = 32
	sensorAngle := float32(math.Pi / 2)
	rotation := float32(0.25)
	params := []float32{4, 1, sensorAngle, rotation, 0.8, 1}
	pb, _, combined, s := agentFixture(t, d, w, w, []float32{10.5, 10.5, 0, 0}, params)

	// heading+90° samples (10.5, 14.5)
	field := make([]float32, w*w)
	field[14*w+10] = 3
	require.NoError(t, d.Queue().WriteFloat32(combined, 0, field))

	dispatch(t, d, s, 1, 1)
	p := read(t, d, pb)
	assert.InDelta(t, rotation, p[2], 1e-6)
}

func TestAgentWrapsToroidally(t *testing.T) {
	d := newTestDevice(t)
	params := []float32{1, 2, 0.3, 0.3, 0.8, 1}
	pb, trails, _, s := agentFixture(t, d, 8, 8, []float32{7.5, 3.5, 0, 0}, params)

	dispatch(t, d, s, 1, 1)
	p := read(t, d, pb)
	assert.InDelta(t, 1.5, p[0], 1e-5)
	assert.Equal(t, float32(1), read(t, d, trails)[3*8+1])
}

func TestConcurrentDepositsAccumulate(t *testing.T) {
	d := newTestDevice(t, WithWorkers(4))
	const count = 10000
	particles := make([]float32, count*4)
	for i := 0; i < count; i++ {
		particles[i*4+0] = 2.5
		particles[i*4+1] = 2.5
	}
	params := []float32{1, 0, 0.3, 0.3, 0.8, 1}
	_, trails, _, s := agentFixture(t, d, 4, 4, particles, params)

	gx, gy := device.ParticleDispatch(count, 65535)
	dispatch(t, d, s, gx, gy)
	assert.Equal(t, float32(count), read(t, d, trails)[2*4+2])
}

func TestRenderBlendsSpeciesColors(t *testing.T) {
	d := newTestDevice(t)
	const w, h = 4, 2
	combined := mustBuffer(t, d, "combined", w*h)
	colors := mustBuffer(t, d, "colors", kernels.ColorWords)
	field := make([]float32, w*h)
	field[1] = 1e6 // saturates
	require.NoError(t, d.Queue().WriteFloat32(combined, 0, field))
	require.NoError(t, d.Queue().WriteFloat32(colors, 0, []float32{1, 0.5, 0, 0}))

	s := newStage(t, d, kernels.Render, combined, simConfig(t, d, w, h, 1), colors)
	target := NewPixmap(w, h)

	enc := d.CreateCommandEncoder()
	pass := enc.BeginRenderPass(device.RenderPassDescriptor{Target: target})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.group)
	pass.Draw(6, 1, 0, 0)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)
	require.NoError(t, d.Queue().Submit(cmd))

	lit := target.Image.RGBAAt(1, 0)
	assert.Equal(t, uint8(255), lit.R)
	assert.Equal(t, uint8(128), lit.G)
	assert.Equal(t, uint8(0), lit.B)
	dark := target.Image.RGBAAt(0, 0)
	assert.Equal(t, uint8(0), dark.R)
	assert.Equal(t, uint8(255), dark.A)
}

func TestRenderRejectsForeignSurface(t *testing.T) {
	d := newTestDevice(t)
	s := newStage(t, d, kernels.Render, mustBuffer(t, d, "combined", 1), simConfig(t, d, 1, 1, 1), mustBuffer(t, d, "colors", kernels.ColorWords))

	enc := d.CreateCommandEncoder()
	pass := enc.BeginRenderPass(device.RenderPassDescriptor{Target: fakeSurface{}})
	pass.SetPipeline(s.pipeline)
	pass.SetBindGroup(0, s.group)
	pass.Draw(6, 1, 0, 0)
	pass.End()
	cmd, err := enc.Finish()
	require.NoError(t, err)
	assert.Error(t, d.Queue().Submit(cmd))
}

type fakeSurface struct{}

func (fakeSurface) Size() (int, int) { return 1, 1 }

func TestIntensity(t *testing.T) {
	assert.Zero(t, Intensity(-3))
	assert.Zero(t, Intensity(0))
	assert.InDelta(t, 1-math.Exp(-1), Intensity(10), 1e-6)
	assert.Less(t, Intensity(1000), float32(1.0000001))
}
