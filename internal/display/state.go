package display

import (
	"sync"
	"time"

	"github.com/smartpanel/marquee/internal/control"
)

// DefaultStaleAfter is how long text stays on the panel without new control
// traffic.
const DefaultStaleAfter = 2 * time.Hour

// Config holds the initial display values.
type Config struct {
	BootText   string
	Font       string
	Color      control.RGB
	StaleAfter time.Duration
}

// Frame is a consistent view of the state taken for one rendered frame.
type Frame struct {
	Text       string // empty when stale
	Font       string
	Color      control.RGB
	FontDirty  bool
	ColorDirty bool
	Stale      bool
}

// Snapshot is a read-only view of the state for status reporting.
type Snapshot struct {
	Text        string
	Font        string
	Color       control.RGB
	Status      string
	Brightness  int
	LastMessage time.Time
	FontDirty   bool
	ColorDirty  bool
	Applied     int64
}

// State is the display state shared between the supervisor and the render
// loop. The zero value is not usable; use New.
type State struct {
	mu sync.RWMutex

	text        string
	font        string
	color       control.RGB
	status      string
	brightness  int
	lastMessage time.Time
	fontDirty   bool
	colorDirty  bool
	applied     int64

	staleAfter time.Duration
}

// New creates a State seeded with the boot text and defaults. The staleness
// clock starts at now.
func New(cfg Config, now time.Time) *State {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	return &State{
		text:        cfg.BootText,
		font:        cfg.Font,
		color:       cfg.Color,
		brightness:  control.DefaultBrightness,
		lastMessage: now,
		staleAfter:  cfg.StaleAfter,
	}
}

// Apply merges msg into the state under a single lock.
//
// Text and font change only when the message carries a non-empty value, color
// only when present. The dirty flags are raised only when the value differs.
// The last message timestamp is always updated.
func (s *State) Apply(msg control.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg.Text != "" && msg.Text != s.text {
		s.text = msg.Text
	}
	if msg.Font != "" && msg.Font != s.font {
		s.font = msg.Font
		s.fontDirty = true
	}
	if msg.Color != nil && *msg.Color != s.color {
		s.color = *msg.Color
		s.colorDirty = true
	}
	s.status = msg.Status
	s.brightness = msg.Brightness
	s.lastMessage = msg.Timestamp
	s.applied++
}

// SetStatus replaces the text with a connection status message. The staleness
// clock is left alone.
func (s *State) SetStatus(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

// IsStale reports whether no control message has arrived within the stale
// window before now.
func (s *State) IsStale(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isStale(now)
}

func (s *State) isStale(now time.Time) bool {
	return now.After(s.lastMessage.Add(s.staleAfter))
}

// Frame returns the values the render loop needs for one frame.
func (s *State) Frame(now time.Time) Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f := Frame{
		Text:       s.text,
		Font:       s.font,
		Color:      s.color,
		FontDirty:  s.fontDirty,
		ColorDirty: s.colorDirty,
		Stale:      s.isStale(now),
	}
	if f.Stale {
		f.Text = ""
	}
	return f
}

// FontApplied clears the font dirty flag if font is still the current font.
// A newer font set in the meantime stays dirty.
func (s *State) FontApplied(font string) {
	s.mu.Lock()
	if s.font == font {
		s.fontDirty = false
	}
	s.mu.Unlock()
}

// ColorApplied clears the color dirty flag if c is still the current color.
func (s *State) ColorApplied(c control.RGB) {
	s.mu.Lock()
	if s.color == c {
		s.colorDirty = false
	}
	s.mu.Unlock()
}

// Snapshot returns the current state for reporting.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Text:        s.text,
		Font:        s.font,
		Color:       s.color,
		Status:      s.status,
		Brightness:  s.brightness,
		LastMessage: s.lastMessage,
		FontDirty:   s.fontDirty,
		ColorDirty:  s.colorDirty,
		Applied:     s.applied,
	}
}
