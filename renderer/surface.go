package renderer

import (
	"image"

	rl "github.com/gen2brain/raylib-go/raylib"
)

// Target is a surface the GL device can draw into.
type Target interface {
	Size() (width, height int)
	begin()
	end()
}

// TextureSurface is an offscreen render target.
type TextureSurface struct {
	Texture rl.RenderTexture2D
}

// NewTextureSurface allocates a w×h render texture. Sampling repeats past
// the edges, matching the wrapped grid.
func NewTextureSurface(w, h int) *TextureSurface {
	t := rl.LoadRenderTexture(int32(w), int32(h))
	rl.SetTextureWrap(t.Texture, rl.WrapRepeat)
	return &TextureSurface{Texture: t}
}

// Size implements device.Surface.
func (s *TextureSurface) Size() (width, height int) {
	return int(s.Texture.Texture.Width), int(s.Texture.Texture.Height)
}

func (s *TextureSurface) begin() { rl.BeginTextureMode(s.Texture) }
func (s *TextureSurface) end()   { rl.EndTextureMode() }

// Image reads the texture back, flipped to top-down row order.
func (s *TextureSurface) Image() image.Image {
	img := rl.LoadImageFromTexture(s.Texture.Texture)
	defer rl.UnloadImage(img)
	rl.ImageFlipVertical(img)
	return img.ToImage()
}

// Unload releases the render texture.
func (s *TextureSurface) Unload() {
	rl.UnloadRenderTexture(s.Texture)
}
