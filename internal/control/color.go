package control

import (
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// RGB is a 24-bit text color.
type RGB struct {
	R, G, B uint8
}

// Yellow is the panel's default text color.
var Yellow = RGB{R: 255, G: 255}

// RGBA returns the opaque color.RGBA for c.
func (c RGB) RGBA() color.RGBA {
	return color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff}
}

// String formats c as the wire literal, e.g. "[255,0,0]".
func (c RGB) String() string {
	return fmt.Sprintf("[%d,%d,%d]", c.R, c.G, c.B)
}

// ParseRGB parses a three-integer literal such as "[255,0,0]" or "(0, 255, 0)".
// Each component must be a base-10 integer in [0,255].
func ParseRGB(s string) (RGB, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return RGB{}, fmt.Errorf("color %q: too short", s)
	}
	open, closing := s[0], s[len(s)-1]
	if !(open == '[' && closing == ']') && !(open == '(' && closing == ')') {
		return RGB{}, fmt.Errorf("color %q: expected [r,g,b]", s)
	}

	parts := strings.Split(s[1:len(s)-1], ",")
	if len(parts) != 3 {
		return RGB{}, fmt.Errorf("color %q: expected 3 components, got %d", s, len(parts))
	}

	var out [3]uint8
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return RGB{}, fmt.Errorf("color %q: component %d: %w", s, i, err)
		}
		c, err := component(v)
		if err != nil {
			return RGB{}, fmt.Errorf("color %q: component %d: %w", s, i, err)
		}
		out[i] = c
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

func rgbFromInts(v []int) (RGB, error) {
	if len(v) != 3 {
		return RGB{}, fmt.Errorf("expected 3 components, got %d", len(v))
	}
	var out [3]uint8
	for i, n := range v {
		c, err := component(n)
		if err != nil {
			return RGB{}, fmt.Errorf("component %d: %w", i, err)
		}
		out[i] = c
	}
	return RGB{R: out[0], G: out[1], B: out[2]}, nil
}

var errComponentRange = errors.New("out of range [0,255]")

func component(v int) (uint8, error) {
	if v < 0 || v > 255 {
		return 0, fmt.Errorf("%d %w", v, errComponentRange)
	}
	return uint8(v), nil
}
