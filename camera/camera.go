// Package camera maps the window onto the toroidal simulation grid for
// pan and zoom.
package camera

import "math"

// Camera controls the viewport into the simulation grid. The grid wraps on
// both axes, so the view may straddle an edge.
type Camera struct {
	// Position is the camera center in grid coordinates
	X, Y float32

	// Zoom level (1.0 = the grid fills the viewport, 2.0 = 2x magnification)
	Zoom float32

	// Viewport dimensions (screen size)
	ViewportW, ViewportH float32

	// Grid dimensions
	WorldW, WorldH float32

	MaxZoom float32
}

// Rect is an axis-aligned region in grid coordinates. X and Y may lie
// outside [0, size) when the view wraps.
type Rect struct {
	X, Y, W, H float32
}

// New creates a camera centered on the grid at zoom 1.
func New(viewportW, viewportH, worldW, worldH float32) *Camera {
	return &Camera{
		X:         worldW / 2,
		Y:         worldH / 2,
		Zoom:      1.0,
		ViewportW: viewportW,
		ViewportH: viewportH,
		WorldW:    worldW,
		WorldH:    worldH,
		MaxZoom:   8.0,
	}
}

// scale is viewport pixels per grid cell on each axis.
func (c *Camera) scale() (sx, sy float32) {
	return c.Zoom * c.ViewportW / c.WorldW, c.Zoom * c.ViewportH / c.WorldH
}

// ScreenToWorld converts screen coordinates to grid coordinates.
func (c *Camera) ScreenToWorld(sx, sy float32) (wx, wy float32) {
	kx, ky := c.scale()
	wx = mod(c.X+(sx-c.ViewportW/2)/kx, c.WorldW)
	wy = mod(c.Y+(sy-c.ViewportH/2)/ky, c.WorldH)
	return wx, wy
}

// Source returns the grid region shown in the viewport.
func (c *Camera) Source() Rect {
	w := c.WorldW / c.Zoom
	h := c.WorldH / c.Zoom
	return Rect{X: c.X - w/2, Y: c.Y - h/2, W: w, H: h}
}

// Resize updates viewport dimensions.
func (c *Camera) Resize(viewportW, viewportH float32) {
	c.ViewportW = viewportW
	c.ViewportH = viewportH
}

// SetWorld adopts a new grid size, keeping the center at the same
// relative position.
func (c *Camera) SetWorld(worldW, worldH float32) {
	if worldW == c.WorldW && worldH == c.WorldH {
		return
	}
	if c.WorldW > 0 && c.WorldH > 0 {
		c.X *= worldW / c.WorldW
		c.Y *= worldH / c.WorldH
	}
	c.WorldW = worldW
	c.WorldH = worldH
}

// Pan moves the camera by the given delta in screen pixels, wrapping
// around the grid.
func (c *Camera) Pan(dx, dy float32) {
	kx, ky := c.scale()
	c.X = mod(c.X+dx/kx, c.WorldW)
	c.Y = mod(c.Y+dy/ky, c.WorldH)
}

// SetZoom sets the zoom level, clamped to [1, MaxZoom].
func (c *Camera) SetZoom(zoom float32) {
	c.Zoom = clamp(zoom, 1, c.MaxZoom)
}

// ZoomAt multiplies the zoom by factor, keeping the grid point under
// (sx, sy) fixed on screen.
func (c *Camera) ZoomAt(sx, sy, factor float32) {
	wx, wy := c.ScreenToWorld(sx, sy)
	c.SetZoom(c.Zoom * factor)
	kx, ky := c.scale()
	c.X = mod(wx-(sx-c.ViewportW/2)/kx, c.WorldW)
	c.Y = mod(wy-(sy-c.ViewportH/2)/ky, c.WorldH)
}

// Reset returns the camera to the default position and zoom.
func (c *Camera) Reset() {
	c.X = c.WorldW / 2
	c.Y = c.WorldH / 2
	c.Zoom = 1.0
}

// mod computes the positive modulo (Go's % can return negative).
func mod(x, m float32) float32 {
	r := float32(math.Mod(float64(x), float64(m)))
	if r < 0 {
		r += m
	}
	return r
}

func clamp(x, lo, hi float32) float32 {
	return max(lo, min(x, hi))
}
