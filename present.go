package main

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"unsafe"

	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/physarum/camera"
	"github.com/pthm-cable/physarum/config"
	"github.com/pthm-cable/physarum/device"
	"github.com/pthm-cable/physarum/device/software"
	"github.com/pthm-cable/physarum/renderer"
)

// presenter owns the offscreen target the simulation renders into and
// draws the camera's view of it over the window.
type presenter interface {
	Surface(width, height int) device.Surface
	Present(src camera.Rect)
	Screenshot() image.Image
	Unload()
}

// openBackend creates the configured device and its presenter. Must be
// called after rl.InitWindow.
func openBackend(cfg *config.Config, log *slog.Logger) (device.Device, presenter, error) {
	switch cfg.Device.Backend {
	case "raylib":
		dev, err := renderer.New(cfg.Device.Limits(), log)
		if err != nil {
			return nil, nil, err
		}
		return dev, &glPresenter{}, nil
	case "software":
		dev := software.New(cfg.Device.Limits())
		return dev, &pixmapPresenter{dev: dev}, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", cfg.Device.Backend)
}

func screenRect() rl.Rectangle {
	return rl.Rectangle{Width: float32(rl.GetScreenWidth()), Height: float32(rl.GetScreenHeight())}
}

// glPresenter renders on the GPU into a render texture.
type glPresenter struct {
	target *renderer.TextureSurface
}

func (p *glPresenter) Surface(w, h int) device.Surface {
	if p.target != nil {
		if cw, ch := p.target.Size(); cw == w && ch == h {
			return p.target
		}
		p.target.Unload()
	}
	p.target = renderer.NewTextureSurface(w, h)
	return p.target
}

func (p *glPresenter) Present(src camera.Rect) {
	if p.target == nil {
		return
	}
	tex := p.target.Texture.Texture
	// Render textures are stored bottom-up.
	flipped := rl.Rectangle{X: src.X, Y: float32(tex.Height) - src.Y - src.H, Width: src.W, Height: -src.H}
	rl.DrawTexturePro(tex, flipped, screenRect(), rl.Vector2{}, 0, rl.White)
}

func (p *glPresenter) Screenshot() image.Image {
	if p.target == nil {
		return nil
	}
	return p.target.Image()
}

func (p *glPresenter) Unload() {
	if p.target != nil {
		p.target.Unload()
		p.target = nil
	}
}

// pixmapPresenter renders on the CPU and uploads the result as a texture.
type pixmapPresenter struct {
	dev    *software.Device
	pixmap *software.Pixmap
	tex    rl.Texture2D
	loaded bool
}

func (p *pixmapPresenter) Surface(w, h int) device.Surface {
	if p.pixmap == nil {
		p.pixmap = software.NewPixmap(w, h)
	} else {
		p.pixmap.Resize(w, h)
	}
	return p.pixmap
}

func (p *pixmapPresenter) Present(src camera.Rect) {
	if p.pixmap == nil {
		return
	}
	w, h := p.pixmap.Size()
	if w == 0 || h == 0 {
		return
	}
	if !p.loaded || int(p.tex.Width) != w || int(p.tex.Height) != h {
		if p.loaded {
			rl.UnloadTexture(p.tex)
		}
		img := rl.GenImageColor(w, h, rl.Black)
		p.tex = rl.LoadTextureFromImage(img)
		rl.UnloadImage(img)
		rl.SetTextureWrap(p.tex, rl.WrapRepeat)
		p.loaded = true
	}
	pix := p.pixmap.Image.Pix
	rl.UpdateTexture(p.tex, unsafe.Slice((*color.RGBA)(unsafe.Pointer(&pix[0])), w*h))
	rl.DrawTexturePro(p.tex, rl.Rectangle{X: src.X, Y: src.Y, Width: src.W, Height: src.H},
		screenRect(), rl.Vector2{}, 0, rl.White)
}

func (p *pixmapPresenter) Screenshot() image.Image {
	if p.pixmap == nil {
		return nil
	}
	return p.pixmap.Image
}

func (p *pixmapPresenter) Unload() {
	if p.loaded {
		rl.UnloadTexture(p.tex)
		p.loaded = false
	}
	p.dev.Close()
}
