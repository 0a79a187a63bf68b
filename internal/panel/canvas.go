package panel

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/smartpanel/marquee/internal/render"
)

// Canvas is an off-screen RGBA frame buffer.
type Canvas struct {
	img *image.RGBA
}

// NewCanvas creates a blank canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Clear blanks the canvas.
func (c *Canvas) Clear() {
	clear(c.img.Pix)
}

// DrawText draws text with its baseline at (x, y) and returns the advance
// width in pixels, including glyphs that fall outside the canvas.
func (c *Canvas) DrawText(f render.Font, x, y int, col color.RGBA, text string) int {
	pf, ok := f.(*Font)
	if !ok || pf == nil || text == "" {
		return 0
	}
	d := font.Drawer{
		Dst:  c.img,
		Src:  image.NewUniform(col),
		Face: pf.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
	return (d.Dot.X - fixed.I(x)).Ceil()
}

// Width returns the canvas width in pixels.
func (c *Canvas) Width() int {
	return c.img.Bounds().Dx()
}

// Image returns the underlying image.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}
