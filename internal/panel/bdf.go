package panel

import (
	"errors"
	"fmt"

	"github.com/zachomedia/go-bdf"
	"golang.org/x/image/font"
)

var errNoGlyphs = errors.New("font has no glyphs")

// parseBDF loads a BDF bitmap font, the format used by LED matrix fonts such
// as 7x13.bdf.
func parseBDF(data []byte) (face font.Face, err error) {
	// The parser indexes fields without bounds checks on truncated lines.
	defer func() {
		if r := recover(); r != nil {
			face, err = nil, fmt.Errorf("malformed bdf: %v", r)
		}
	}()

	f, err := bdf.Parse(data)
	if err != nil {
		return nil, err
	}
	if len(f.Characters) == 0 {
		return nil, errNoGlyphs
	}
	return f.NewFace(), nil
}
