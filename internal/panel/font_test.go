package panel

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/image/math/fixed"
)

var yellowRGBA = color.RGBA{255, 255, 0, 255}

// testBDF has two 4x4 glyphs: 'A' is a filled square, 'B' only its top row.
const testBDF = `STARTFONT 2.1
FONT -test-4x4
SIZE 4 75 75
FONTBOUNDINGBOX 4 4 0 -1
STARTPROPERTIES 1
FONT_ASCENT 3
ENDPROPERTIES
CHARS 2
STARTCHAR B
ENCODING 66
SWIDTH 500 0
DWIDTH 5 0
BBX 4 4 0 -1
BITMAP
F0
00
00
00
ENDCHAR
STARTCHAR A
ENCODING 65
SWIDTH 500 0
DWIDTH 5 0
BBX 4 4 0 -1
BITMAP
F0
F0
F0
F0
ENDCHAR
ENDFONT
`

func writeFont(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write font: %v", err)
	}
	return path
}

func litPixels(c *Canvas) int {
	n := 0
	img := c.Image()
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).A != 0 {
				n++
			}
		}
	}
	return n
}

func TestParseBDF(t *testing.T) {
	face, err := parseBDF([]byte(testBDF))
	if err != nil {
		t.Fatalf("parseBDF() error = %v", err)
	}

	for _, r := range []rune{'A', 'B'} {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			t.Errorf("GlyphAdvance(%q) not found", r)
			continue
		}
		if adv != fixed.I(5) {
			t.Errorf("GlyphAdvance(%q) = %v, want 5px", r, adv)
		}
	}

	// 'A' is a filled 4x4 square, 'B' only its top row.
	f := &Font{name: "tiny", face: face}
	a := NewCanvas(8, 8)
	a.DrawText(f, 0, 4, yellowRGBA, "A")
	b := NewCanvas(8, 8)
	b.DrawText(f, 0, 4, yellowRGBA, "B")
	if got := litPixels(a); got != 16 {
		t.Errorf("A lit pixels = %d, want 16", got)
	}
	if got := litPixels(b); got != 4 {
		t.Errorf("B lit pixels = %d, want 4", got)
	}
}

func TestParseBDF_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no glyphs", "STARTFONT 2.1\nFONTBOUNDINGBOX 4 4 0 0\nENDFONT\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseBDF([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFontLoader_Builtin(t *testing.T) {
	l := NewFontLoader(t.TempDir(), 10)

	for _, id := range []string{"", "7x13", "7x13.bdf", "fonts/7x13.bdf"} {
		f, err := l.Load(id)
		if err != nil {
			t.Errorf("Load(%q) error = %v", id, err)
			continue
		}
		if w := NewCanvas(16, 16).DrawText(f, 0, 10, yellowRGBA, "ab"); w != 14 {
			t.Errorf("Load(%q) width of %q = %d, want 14", id, "ab", w)
		}
	}
}

func TestFontLoader_BareIdentifier(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "tiny.bdf", testBDF)

	l := NewFontLoader(dir, 10)
	f, err := l.Load("tiny")
	if err != nil {
		t.Fatalf("Load(tiny) error = %v", err)
	}
	if f.Name() != "tiny" {
		t.Errorf("Name() = %q, want tiny", f.Name())
	}
	if w := NewCanvas(16, 8).DrawText(f, 0, 3, yellowRGBA, "AB"); w != 10 {
		t.Errorf("width = %d, want 10", w)
	}
}

func TestFontLoader_StaysInFontsDir(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "tiny.bdf", testBDF)
	outside := t.TempDir()
	writeFont(t, outside, "other.bdf", testBDF)

	l := NewFontLoader(dir, 10)

	for _, id := range []string{"nowhere/tiny.bdf", "../tiny.bdf", "/usr/share/fonts/tiny.bdf"} {
		if _, err := l.Load(id); err != nil {
			t.Errorf("Load(%q) error = %v, want it resolved in the fonts dir", id, err)
		}
	}

	for _, id := range []string{filepath.Join(outside, "other.bdf"), "../" + filepath.Base(outside) + "/other"} {
		if _, err := l.Load(id); !errors.Is(err, ErrFontNotFound) {
			t.Errorf("Load(%q) error = %v, want ErrFontNotFound", id, err)
		}
	}
}

func TestFontLoader_SizeLimit(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "tiny.bdf", testBDF)

	l := NewFontLoader(dir, 10)
	l.maxSize = 16

	_, err := l.Load("tiny")
	if err == nil {
		t.Fatal("expected error for oversized font")
	}
	if errors.Is(err, ErrFontNotFound) {
		t.Errorf("error = %v, want a size error", err)
	}
}

func TestFontLoader_Cache(t *testing.T) {
	dir := t.TempDir()
	path := writeFont(t, dir, "tiny.bdf", testBDF)

	l := NewFontLoader(dir, 10)
	first, err := l.Load("tiny")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	second, err := l.Load("tiny")
	if err != nil {
		t.Fatalf("cached Load() error = %v", err)
	}
	if first != second {
		t.Error("expected cached font")
	}
}

func TestFontLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFont(t, dir, "broken.bdf", "STARTFONT 2.1\nENDFONT\n")
	writeFont(t, dir, "font.pcf", "x")
	writeFont(t, dir, "bad.ttf", "not a font")

	l := NewFontLoader(dir, 10)

	if _, err := l.Load("missing"); !errors.Is(err, ErrFontNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrFontNotFound", err)
	}
	for _, id := range []string{"broken", filepath.Join(dir, "font.pcf"), filepath.Join(dir, "bad.ttf")} {
		if _, err := l.Load(id); err == nil {
			t.Errorf("Load(%q) expected error", id)
		}
	}
}
