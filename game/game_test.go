package game

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/device/software"
	"github.com/pthm-cable/physarum/population"
	"github.com/pthm-cable/physarum/simulation"
)

const mib = 1 << 20

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func testAppConfig(t *testing.T, particles int) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Simulation.ParticleCount = particles
	cfg.Simulation.NumPopulations = 3
	return cfg
}

func newTestGame(t *testing.T, limit uint64, particles int, opts Options) *Game {
	t.Helper()
	dev := software.New(device.Limits{MaxStorageBufferBindingSize: limit, MaxComputeWorkgroupsPerDimension: 65535})
	t.Cleanup(dev.Close)

	if opts.Seed == 0 {
		opts.Seed = 7
	}
	if opts.Width == 0 {
		opts.Width, opts.Height = 16, 16
	}
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	g, err := NewGame(dev, testAppConfig(t, particles), opts)
	require.NoError(t, err)
	t.Cleanup(g.Unload)
	return g
}

// countAttempts wraps the engine factory and counts calls.
func countAttempts(g *Game) *int {
	n := 0
	inner := g.newEngine
	g.newEngine = func(d device.Device, c population.MultiPopulationConfig, o ...simulation.Option) (*simulation.Engine, error) {
		n++
		return inner(d, c, o...)
	}
	return &n
}

func TestRebuildRetriesOnceAtHalf(t *testing.T) {
	g := newTestGame(t, 20*mib, 10_000, Options{})
	attempts := countAttempts(g)

	err := g.Rebuild(g.Config().WithParticleCount(2_000_000))
	require.NoError(t, err)

	assert.Equal(t, 2, *attempts)
	assert.Equal(t, 1_000_000, g.Config().ParticleCount)
	assert.Equal(t, 1_000_000, g.engine.ParticleCount())
	assert.Empty(t, g.LastError())
}

func TestRebuildGivesUpAfterOneRetry(t *testing.T) {
	g := newTestGame(t, 1*mib, 10_000, Options{})
	before := g.engine
	attempts := countAttempts(g)

	err := g.Rebuild(g.Config().WithParticleCount(4_000_000))
	require.Error(t, err)

	assert.Equal(t, 2, *attempts, "exactly one retry")
	assert.True(t, errors.Is(err, simulation.ErrResourceLimit))
	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 1_000_000, re.Retried)

	assert.Same(t, before, g.engine, "previous engine stays installed")
	assert.Equal(t, 10_000, g.Config().ParticleCount)
	assert.Equal(t, CreationFailedMessage, g.LastError())
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	g := newTestGame(t, 1*mib, 10_000, Options{})
	n := 0
	g.newEngine = func(device.Device, population.MultiPopulationConfig, ...simulation.Option) (*simulation.Engine, error) {
		n++
		return nil, errors.New("device lost")
	}

	err := g.RegenerateConfig()
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "Error: device lost", g.LastError())
	assert.True(t, g.HasEngine())
}

func TestStartsWithoutEngineWhenNothingFits(t *testing.T) {
	g := newTestGame(t, 1*mib, 4_000_000, Options{})

	assert.False(t, g.HasEngine())
	assert.Equal(t, CreationFailedMessage, g.LastError())
	assert.Zero(t, g.Tick())

	err := g.RunHeadless(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoSimulation)

	// A smaller count recovers.
	require.NoError(t, g.SetParticleCount(1000))
	assert.True(t, g.HasEngine())
	assert.Empty(t, g.LastError())
}

func TestSetParticleCountRetriesAndKeepsTrails(t *testing.T) {
	g := newTestGame(t, 1*mib, 10_000, Options{})
	for i := 0; i < 3; i++ {
		require.NoError(t, g.Update())
		g.EndFrame()
	}
	before, err := g.engine.ReadTrails(nil)
	require.NoError(t, err)

	// 100k particles need 1.6 MB; the retry at 50k fits.
	require.NoError(t, g.SetParticleCount(100_000))
	assert.Equal(t, 50_000, g.Config().ParticleCount)
	assert.Equal(t, 50_000, g.engine.ParticleCount())

	after, err := g.engine.ReadTrails(nil)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	err = g.SetParticleCount(0)
	var ve *simulation.ValidationError
	assert.ErrorAs(t, err, &ve)
	assert.Equal(t, 50_000, g.Config().ParticleCount)
}

func TestSetPopulationCount(t *testing.T) {
	g := newTestGame(t, 128*mib, 3000, Options{})
	before := g.engine

	for _, n := range []int{0, g.MaxPopulations() + 1} {
		err := g.SetPopulationCount(n)
		var ve *simulation.ValidationError
		require.ErrorAs(t, err, &ve, "n=%d", n)
		assert.Same(t, before, g.engine)
	}

	require.NoError(t, g.SetPopulationCount(2))
	assert.Equal(t, 2, g.Config().NumPopulations())
	assert.Equal(t, 2, g.engine.Config().NumPopulations())
	assert.Equal(t, 2, g.Config().Attraction.Side())
	assert.Equal(t, 3000, g.Config().ParticleCount)
}

func TestLiveParameterEdits(t *testing.T) {
	g := newTestGame(t, 128*mib, 3000, Options{})

	require.NoError(t, g.SetPopulationParam(1, population.ParamStepDistance, 2.5))
	assert.Equal(t, float32(2.5), g.Config().Populations[1].StepDistance)
	assert.Equal(t, float32(2.5), g.engine.Config().Populations[1].StepDistance)

	require.NoError(t, g.SetAttraction(0, 2, -0.3))
	assert.Equal(t, float32(-0.3), g.engine.Config().Attraction.At(0, 2))

	assert.Error(t, g.SetPopulationParam(3, population.ParamStepDistance, 1))
	assert.Error(t, g.SetAttraction(0, 3, 1))
	assert.Equal(t, float32(2.5), g.Config().Populations[1].StepDistance)
}

func TestPaletteOperations(t *testing.T) {
	g := newTestGame(t, 128*mib, 300, Options{})

	g.SelectPalette("Vesicle Flash")
	assert.Equal(t, "Vesicle Flash", g.PaletteName())
	g.SetColor(0, "#000000")
	assert.Equal(t, "#000000", g.PaletteColors()[0])
	g.SelectPalette("nope")
	assert.Equal(t, "Vesicle Flash", g.PaletteName())
}

func TestResizeDebouncer(t *testing.T) {
	clk := &fakeClock{t: time.Unix(100, 0)}
	d := NewResizeDebouncer(300*time.Millisecond, clk.Now)

	_, _, ok := d.Poll()
	assert.False(t, ok)

	d.Request(100, 80)
	clk.Advance(200 * time.Millisecond)
	d.Request(120, 90) // restarts the timer
	clk.Advance(200 * time.Millisecond)
	_, _, ok = d.Poll()
	assert.False(t, ok)

	d.Request(120, 90) // same size does not restart
	clk.Advance(100 * time.Millisecond)
	w, h, ok := d.Poll()
	require.True(t, ok)
	assert.Equal(t, 120, w)
	assert.Equal(t, 90, h)

	_, _, ok = d.Poll()
	assert.False(t, ok, "delivered once")
	assert.False(t, d.Pending())
}

func TestUpdateAppliesSettledResize(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	g := newTestGame(t, 128*mib, 1000, Options{Clock: clk.Now})

	g.RequestResize(32, 24)
	require.NoError(t, g.Update())
	g.EndFrame()
	assert.Equal(t, 16, g.Config().Width)

	clk.Advance(time.Second)
	require.NoError(t, g.Update())
	g.EndFrame()
	assert.Equal(t, 32, g.Config().Width)
	assert.Equal(t, 24, g.Config().Height)
	assert.Equal(t, 32*24*3, g.engine.MapLen())
}

func TestResizeKeepsEngine(t *testing.T) {
	g := newTestGame(t, 128*mib, 1000, Options{})
	attempts := countAttempts(g)
	engine := g.engine

	require.NoError(t, g.Resize(32, 24))
	assert.Zero(t, *attempts, "a resize that fits needs no new engine")
	assert.Same(t, engine, g.engine)
	assert.Equal(t, 32, g.Config().Width)
	assert.Equal(t, 24, g.Config().Height)
	assert.Equal(t, 32*24*3, g.engine.MapLen())
	assert.Empty(t, g.LastError())
	require.NoError(t, g.Update())
}

func TestResizeOverLimitGoesThroughRetry(t *testing.T) {
	g := newTestGame(t, 128<<10, 1000, Options{})
	attempts := countAttempts(g)
	require.NotNil(t, g.engine)

	err := g.Resize(128, 128)
	var re *RetryError
	require.ErrorAs(t, err, &re)
	assert.ErrorIs(t, err, simulation.ErrResourceLimit)
	assert.Equal(t, 2, *attempts, "one rebuild and one retry")
	assert.Equal(t, CreationFailedMessage, g.LastError())

	assert.Equal(t, 16, g.Config().Width)
	assert.Equal(t, 16*16*3, g.engine.MapLen())
	require.NoError(t, g.Update())
}

func TestRunHeadless(t *testing.T) {
	g := newTestGame(t, 128*mib, 1000, Options{})
	require.NoError(t, g.RunHeadless(context.Background(), 5))
	assert.Equal(t, uint64(5), g.Tick())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := g.RunHeadless(ctx, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint64(5), g.Tick())
}

func TestPauseSkipsSteps(t *testing.T) {
	g := newTestGame(t, 128*mib, 1000, Options{})
	g.TogglePause()
	require.NoError(t, g.Update())
	g.EndFrame()
	assert.Zero(t, g.Tick())
	g.TogglePause()
	g.SetStepsPerFrame(3)
	require.NoError(t, g.Update())
	g.EndFrame()
	assert.Equal(t, uint64(3), g.Tick())
}

func TestDrawRendersTrails(t *testing.T) {
	g := newTestGame(t, 128*mib, 5000, Options{})
	require.NoError(t, g.RunHeadless(context.Background(), 10))

	pix := software.NewPixmap(16, 16)
	g.Draw(pix)
	g.TimeUI(func() {})
	g.EndFrame()
	require.Empty(t, g.LastError())

	lit := 0
	for i := 0; i < len(pix.Image.Pix); i += 4 {
		if pix.Image.Pix[i]|pix.Image.Pix[i+1]|pix.Image.Pix[i+2] != 0 {
			lit++
		}
	}
	assert.Positive(t, lit)
	assert.Positive(t, g.PerfStats().Frames)
}

func TestTelemetryOutputAndSnapshots(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "run")
	g := newTestGame(t, 128*mib, 2000, Options{OutputDir: dir, StatsWindowSec: 0.05})

	require.NoError(t, g.RunHeadless(context.Background(), 6))
	stats := g.LastTrailStats()
	assert.Equal(t, uint64(6), stats.Tick)
	assert.Len(t, stats.Species, 3)
	assert.Positive(t, stats.TotalMass())

	pix := software.NewPixmap(16, 16)
	g.Draw(pix)
	g.EndFrame()
	path, err := g.SaveSnapshot(pix.Image)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "snapshots", "snapshot_6.json"), path)

	want := g.Config().Populations
	require.NoError(t, g.RegenerateConfig())
	require.NoError(t, g.LoadParameters(path))
	assert.Equal(t, want, g.Config().Populations)

	g.Unload()
	data, err := os.ReadFile(filepath.Join(dir, "trails.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, 1+2*3, len(lines), "header plus two windows of three species")
	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	assert.NoError(t, err)
}
