package software

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"unsafe"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/kernels"
)

var errShortBinding = errors.New("software: binding too small for grid")

var computeKernels = map[string]kernelFunc{
	kernels.Combine: combineKernel,
	kernels.Agents:  agentsKernel,
	kernels.Diffuse: diffuseKernel,
}

// grid is the decoded global parameter block.
type grid struct {
	w, h, n int
}

func (g grid) cells() int { return g.w * g.h }

func readGrid(sim []float32) (grid, error) {
	if len(sim) < kernels.SimConfigWords {
		return grid{}, fmt.Errorf("%w: sim config has %d words", errShortBinding, len(sim))
	}
	g := grid{
		w: int(math.Float32bits(sim[0])),
		h: int(math.Float32bits(sim[1])),
		n: int(math.Float32bits(sim[2])),
	}
	if g.w <= 0 || g.h <= 0 || g.n <= 0 {
		return grid{}, fmt.Errorf("software: invalid sim config %dx%d with %d populations", g.w, g.h, g.n)
	}
	return g, nil
}

func requireLen(b *Buffer, words int) error {
	if len(b.data) < words {
		return fmt.Errorf("%w: %s has %d words, need %d", errShortBinding, b.label, len(b.data), words)
	}
	return nil
}

// coverage clips the grid to the cells a dispatch reaches.
func coverage(g grid, groups [3]uint32) (xmax, ymax int) {
	xmax = min(int(groups[0])*device.GridWorkgroupSize, g.w)
	ymax = min(int(groups[1])*device.GridWorkgroupSize, g.h)
	return xmax, ymax
}

func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// wrapFloat maps v into [0,size).
func wrapFloat(v, size float32) float32 {
	r := float32(float64(v) - math.Floor(float64(v)/float64(size))*float64(size))
	if r < 0 || r >= size {
		return 0
	}
	return r
}

// positionHash mixes a position's bit patterns; used to break left/right ties.
func positionHash(x, y float32) uint32 {
	h := math.Float32bits(x)*374761393 + math.Float32bits(y)*668265263
	h = (h ^ (h >> 13)) * 1274126177
	return h ^ (h >> 16)
}

// atomicAddFloat32 adds v to *addr with a CAS loop.
func atomicAddFloat32(addr *float32, v float32) {
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		next := math.Float32bits(math.Float32frombits(old) + v)
		if atomic.CompareAndSwapUint32(p, old, next) {
			return
		}
	}
}

// combineKernel computes combined = attraction × trails, with trails viewed
// as an n×cells matrix, and copies trails into deposits.
// Bindings: trails, combined, sim config, attraction, deposits.
func combineKernel(d *Device, bufs []*Buffer, groups [3]uint32) error {
	trails, combined, sim, attraction, deposits := bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]
	g, err := readGrid(sim.data)
	if err != nil {
		return err
	}
	n, cells := g.n, g.cells()
	for _, c := range []struct {
		b *Buffer
		n int
	}{{trails, n * cells}, {combined, n * cells}, {attraction, n * n}, {deposits, n * cells}} {
		if err := requireLen(c.b, c.n); err != nil {
			return err
		}
	}

	a := blas32.General{Rows: n, Cols: n, Stride: n, Data: attraction.data[:n*n]}
	slab := func(c0, c1 int) {
		b := blas32.General{Rows: n, Cols: c1 - c0, Stride: cells, Data: trails.data[c0:]}
		c := blas32.General{Rows: n, Cols: c1 - c0, Stride: cells, Data: combined.data[c0:]}
		blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, a, b, 0, c)
		for s := 0; s < n; s++ {
			off := s * cells
			copy(deposits.data[off+c0:off+c1], trails.data[off+c0:off+c1])
		}
	}

	xmax, ymax := coverage(g, groups)
	if xmax == g.w {
		d.pool.run(ymax*g.w, slab)
		return nil
	}
	d.pool.run(ymax, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			slab(y*g.w, y*g.w+xmax)
		}
	})
	return nil
}

// agentsKernel runs sense, rotate, move and deposit for every covered
// particle. Bindings: particles, deposits, combined, sim config, population params.
func agentsKernel(d *Device, bufs []*Buffer, groups [3]uint32) error {
	particles, deposits, combined, sim, params := bufs[0], bufs[1], bufs[2], bufs[3], bufs[4]
	g, err := readGrid(sim.data)
	if err != nil {
		return err
	}
	cells := g.cells()
	for _, c := range []struct {
		b *Buffer
		n int
	}{{deposits, g.n * cells}, {combined, g.n * cells}, {params, g.n * 6}} {
		if err := requireLen(c.b, c.n); err != nil {
			return err
		}
	}

	covered := int(groups[0]) * int(groups[1]) * int(groups[2]) * device.ParticleWorkgroupSize
	count := min(len(particles.data)/4, covered)

	d.pool.run(count, func(start, end int) {
		for i := start; i < end; i++ {
			stepAgent(particles.data[i*4:i*4+4], deposits.data, combined.data, params.data, g)
		}
	})
	return nil
}

func stepAgent(p, deposits, combined, params []float32, g grid) {
	cells := g.cells()
	fw, fh := float32(g.w), float32(g.h)

	s := int(max(p[3], 0))
	if s > g.n-1 {
		s = g.n - 1
	}
	prm := params[s*6 : s*6+6]
	sensorDistance, stepDistance := prm[0], prm[1]
	sensorAngle, rotationAngle := prm[2], prm[3]
	deposition := prm[5]

	x, y, heading := p[0], p[1], p[2]
	field := combined[s*cells : (s+1)*cells]
	sense := func(angle float32) float32 {
		sx := wrapFloat(x+float32(math.Cos(float64(angle)))*sensorDistance, fw)
		sy := wrapFloat(y+float32(math.Sin(float64(angle)))*sensorDistance, fh)
		return field[cellIndex(sx, sy, g)]
	}
	f := sense(heading)
	l := sense(heading + sensorAngle)
	r := sense(heading - sensorAngle)

	switch {
	case f >= l && f >= r:
		// forward wins any tie involving forward
	case l > r:
		heading += rotationAngle
	case r > l:
		heading -= rotationAngle
	case positionHash(x, y)&1 == 0:
		heading += rotationAngle
	default:
		heading -= rotationAngle
	}
	heading = wrapFloat(heading, 2*math.Pi)

	x = wrapFloat(x+float32(math.Cos(float64(heading)))*stepDistance, fw)
	y = wrapFloat(y+float32(math.Sin(float64(heading)))*stepDistance, fh)
	p[0], p[1], p[2] = x, y, heading

	atomicAddFloat32(&deposits[s*cells+cellIndex(x, y, g)], deposition)
}

// cellIndex maps a wrapped position to its cell within one species map.
func cellIndex(x, y float32, g grid) int {
	ix := min(int(x), g.w-1)
	iy := min(int(y), g.h-1)
	return iy*g.w + ix
}

// diffuseKernel applies a 3x3 toroidal box blur to the deposit maps, scales
// by each species' decay factor and writes the result to the trail maps.
// Bindings: deposits, trails, sim config, population params.
func diffuseKernel(d *Device, bufs []*Buffer, groups [3]uint32) error {
	deposits, trails, sim, params := bufs[0], bufs[1], bufs[2], bufs[3]
	g, err := readGrid(sim.data)
	if err != nil {
		return err
	}
	w, h, cells := g.w, g.h, g.cells()
	if err := requireLen(deposits, g.n*cells); err != nil {
		return err
	}
	if err := requireLen(trails, g.n*cells); err != nil {
		return err
	}
	if err := requireLen(params, g.n*6); err != nil {
		return err
	}

	xmax, ymax := coverage(g, groups)
	d.pool.run(g.n*ymax, func(r0, r1 int) {
		for r := r0; r < r1; r++ {
			s, y := r/ymax, r%ymax
			src := deposits.data[s*cells : (s+1)*cells]
			dst := trails.data[s*cells+y*w : s*cells+y*w+xmax]
			yN := modInt(y-1, h) * w
			yC := y * w
			yS := modInt(y+1, h) * w
			for x := 0; x < xmax; x++ {
				xW := modInt(x-1, w)
				xE := modInt(x+1, w)
				sum := src[yN+xW] + src[yN+x] + src[yN+xE] +
					src[yC+xW] + src[yC+x] + src[yC+xE] +
					src[yS+xW] + src[yS+x] + src[yS+xE]
				dst[x] = sum / 9
			}
			blas32.Scal(params.data[s*6+4], blas32.Vector{N: xmax, Inc: 1, Data: dst})
		}
	})
	return nil
}

// Intensity maps a combined-map value to [0,1).
func Intensity(v float32) float32 {
	if v <= 0 {
		return 0
	}
	return float32(1 - math.Exp(-0.1*float64(v)))
}

// renderKernel maps each surface pixel to its grid cell and blends every
// species' color by intensity over the clear color.
// Bindings: combined, sim config, colors.
func renderKernel(d *Device, bufs []*Buffer, pass device.RenderPassDescriptor) error {
	pm, ok := pass.Target.(*Pixmap)
	if !ok {
		return fmt.Errorf("software: render target %T is not a *Pixmap", pass.Target)
	}
	combined, sim, colors := bufs[0], bufs[1], bufs[2]
	g, err := readGrid(sim.data)
	if err != nil {
		return err
	}
	cells := g.cells()
	if err := requireLen(combined, g.n*cells); err != nil {
		return err
	}
	if err := requireLen(colors, kernels.ColorWords); err != nil {
		return err
	}

	sw, sh := pm.Size()
	if sw == 0 || sh == 0 {
		return nil
	}
	n := min(g.n, kernels.ColorWords/4)
	clear := pass.ClearColor
	img := pm.Image

	d.pool.run(sh, func(y0, y1 int) {
		for py := y0; py < y1; py++ {
			gy := py * g.h / sh
			row := img.Pix[py*img.Stride : py*img.Stride+sw*4]
			for px := 0; px < sw; px++ {
				cell := gy*g.w + px*g.w/sw
				rgb := [3]float32{clear[0], clear[1], clear[2]}
				for i := 0; i < n; i++ {
					k := Intensity(combined.data[i*cells+cell])
					c := colors.data[i*4 : i*4+3]
					rgb[0] += c[0] * k
					rgb[1] += c[1] * k
					rgb[2] += c[2] * k
				}
				o := px * 4
				row[o+0] = toByte(rgb[0])
				row[o+1] = toByte(rgb[1])
				row[o+2] = toByte(rgb[2])
				row[o+3] = 255
			}
		}
	})
	return nil
}

func toByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}
