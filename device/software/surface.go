package software

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
)

// Pixmap is an in-memory render target.
type Pixmap struct {
	Image *image.RGBA
}

// NewPixmap allocates a w×h RGBA surface.
func NewPixmap(w, h int) *Pixmap {
	return &Pixmap{Image: image.NewRGBA(image.Rect(0, 0, w, h))}
}

// Size implements device.Surface.
func (p *Pixmap) Size() (width, height int) {
	b := p.Image.Bounds()
	return b.Dx(), b.Dy()
}

// Resize reallocates the surface if its size changed.
func (p *Pixmap) Resize(w, h int) {
	if cw, ch := p.Size(); cw == w && ch == h {
		return
	}
	p.Image = image.NewRGBA(image.Rect(0, 0, w, h))
}

// EncodePNG writes the surface as PNG.
func (p *Pixmap) EncodePNG(w io.Writer) error {
	return png.Encode(w, p.Image)
}

// SavePNG writes the surface to a PNG file.
func (p *Pixmap) SavePNG(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := p.EncodePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return f.Close()
}
