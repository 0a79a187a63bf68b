package panel

import (
	"image"
	"log/slog"
	"sync"

	"github.com/smartpanel/marquee/internal/render"
)

// Output receives finished frames.
type Output interface {
	Show(frame *image.RGBA) error
	Close() error
}

// Matrix is a double-buffered render.Sink. Only the render loop may call
// NewBuffer, Swap and LoadFont; Snapshot is safe from any goroutine.
type Matrix struct {
	out    Output
	fonts  *FontLoader
	logger *slog.Logger

	buffers [2]*Canvas
	failing bool

	mu   sync.Mutex
	last *image.RGBA
}

// NewMatrix creates a Matrix of the given size writing to out.
func NewMatrix(width, height int, out Output, fonts *FontLoader, logger *slog.Logger) *Matrix {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matrix{
		out:     out,
		fonts:   fonts,
		logger:  logger,
		buffers: [2]*Canvas{NewCanvas(width, height), NewCanvas(width, height)},
		last:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// NewBuffer returns the first off-screen buffer.
func (m *Matrix) NewBuffer() render.Buffer {
	return m.buffers[0]
}

// Swap shows b and returns the other buffer for the next frame. Output
// errors are logged once per failure streak.
func (m *Matrix) Swap(b render.Buffer) render.Buffer {
	c := b.(*Canvas)

	m.mu.Lock()
	copy(m.last.Pix, c.img.Pix)
	m.mu.Unlock()

	if err := m.out.Show(c.img); err != nil {
		if !m.failing {
			m.logger.Error("panel output failed", "error", err)
			m.failing = true
		}
	} else if m.failing {
		m.logger.Info("panel output recovered")
		m.failing = false
	}

	if c == m.buffers[0] {
		return m.buffers[1]
	}
	return m.buffers[0]
}

// LoadFont loads a font through the matrix's font loader.
func (m *Matrix) LoadFont(id string) (render.Font, error) {
	f, err := m.fonts.Load(id)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Snapshot returns a copy of the frame currently shown.
func (m *Matrix) Snapshot() *image.RGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	img := image.NewRGBA(m.last.Rect)
	copy(img.Pix, m.last.Pix)
	return img
}

// Close closes the output.
func (m *Matrix) Close() error {
	return m.out.Close()
}

// Headless is an Output for hosts without a panel. Frames are counted and
// discarded.
type Headless struct {
	mu     sync.Mutex
	frames int64
}

// Show counts the frame.
func (h *Headless) Show(*image.RGBA) error {
	h.mu.Lock()
	h.frames++
	h.mu.Unlock()
	return nil
}

// Frames returns the number of frames shown.
func (h *Headless) Frames() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.frames
}

// Close does nothing.
func (h *Headless) Close() error { return nil }
