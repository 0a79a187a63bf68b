package render

import (
	"context"
	"fmt"
	"image/color"
	"log/slog"
	"time"

	"github.com/smartpanel/marquee/internal/display"
)

// Config holds render loop settings.
type Config struct {
	FrameInterval time.Duration // Time between frames (default: 50ms)
	Step          int           // Pixels scrolled per frame (default: 1)
	Baseline      int           // Text baseline y (default: 10)
}

// DefaultConfig returns the 20fps, one pixel per frame marquee.
func DefaultConfig() Config {
	return Config{
		FrameInterval: 50 * time.Millisecond,
		Step:          1,
		Baseline:      10,
	}
}

// Loop is the render loop. It is single-threaded: Step and Run must not be
// called concurrently.
type Loop struct {
	cfg    Config
	sink   Sink
	state  *display.State
	logger *slog.Logger

	buf      Buffer
	font     Font
	fontName string
	color    color.RGBA
	offset   int

	frames int64
	now    func() time.Time
}

// NewLoop creates a render loop and loads the state's current font. A font
// that cannot be loaded at startup is an error.
func NewLoop(cfg Config, sink Sink, state *display.State, logger *slog.Logger) (*Loop, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = DefaultConfig().FrameInterval
	}
	if cfg.Step <= 0 {
		cfg.Step = DefaultConfig().Step
	}

	frame := state.Frame(time.Now())
	font, err := sink.LoadFont(frame.Font)
	if err != nil {
		return nil, fmt.Errorf("load font %q: %w", frame.Font, err)
	}
	state.FontApplied(frame.Font)
	state.ColorApplied(frame.Color)

	buf := sink.NewBuffer()

	return &Loop{
		cfg:      cfg,
		sink:     sink,
		state:    state,
		logger:   logger,
		buf:      buf,
		font:     font,
		fontName: frame.Font,
		color:    frame.Color.RGBA(),
		offset:   buf.Width(),
		now:      time.Now,
	}, nil
}

// Run renders frames until ctx is cancelled, then blanks the panel.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.FrameInterval)
	defer ticker.Stop()

	l.logger.Info("render loop started",
		"frame_interval", l.cfg.FrameInterval,
		"width", l.buf.Width(),
	)

	for {
		l.Step(l.now())

		select {
		case <-ctx.Done():
			l.Blank()
			l.logger.Info("render loop stopped", "frames", l.frames)
			return nil
		case <-ticker.C:
		}
	}
}

// Step renders one frame.
func (l *Loop) Step(now time.Time) {
	frame := l.state.Frame(now)

	l.buf.Clear()

	if frame.FontDirty {
		l.reloadFont(frame.Font)
	}
	if frame.ColorDirty {
		l.color = frame.Color.RGBA()
		l.state.ColorApplied(frame.Color)
	}

	width := l.buf.DrawText(l.font, l.offset, l.cfg.Baseline, l.color, frame.Text)

	l.offset -= l.cfg.Step
	if l.offset+width < 0 {
		l.offset = l.buf.Width()
	}

	l.buf = l.sink.Swap(l.buf)
	l.frames++
}

// Blank clears the panel.
func (l *Loop) Blank() {
	l.buf.Clear()
	l.buf = l.sink.Swap(l.buf)
}

// Offset returns the x position the next frame draws at.
func (l *Loop) Offset() int {
	return l.offset
}

// Frames returns the number of frames rendered.
func (l *Loop) Frames() int64 {
	return l.frames
}

// FontName returns the identifier of the font currently in use.
func (l *Loop) FontName() string {
	return l.fontName
}

// Color returns the text color currently in use.
func (l *Loop) Color() color.RGBA {
	return l.color
}

// reloadFont loads name and acknowledges it. On failure the previous font
// stays in use and the change is still acknowledged so the load is not
// retried every frame.
func (l *Loop) reloadFont(name string) {
	defer l.state.FontApplied(name)

	font, err := l.sink.LoadFont(name)
	if err != nil {
		l.logger.Error("font reload failed, keeping previous font",
			"font", name,
			"previous", l.fontName,
			"error", err,
		)
		return
	}
	l.font = font
	l.fontName = name
	l.logger.Info("font reloaded", "font", name)
}
