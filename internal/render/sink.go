package render

import "image/color"

// Font is a loaded font resource.
type Font interface {
	Name() string
}

// Buffer is an off-screen frame buffer.
type Buffer interface {
	// Clear blanks the buffer.
	Clear()

	// DrawText draws text with its baseline at (x, y) and returns the drawn
	// width in pixels.
	DrawText(f Font, x, y int, c color.RGBA, text string) int

	// Width returns the buffer width in pixels.
	Width() int
}

// Sink is the pixel sink driving the physical panel. It is not safe for
// concurrent use; only the render loop calls it.
type Sink interface {
	// NewBuffer returns the initial off-screen buffer.
	NewBuffer() Buffer

	// Swap shows b and returns the buffer to draw the next frame into.
	Swap(b Buffer) Buffer

	// LoadFont loads a font by path or identifier.
	LoadFont(id string) (Font, error)
}
