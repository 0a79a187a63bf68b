package panel

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// ErrFontNotFound is returned when an identifier resolves to no file and no
// built-in face.
var ErrFontNotFound = errors.New("font not found")

// BuiltinFont is the face used when no font file is available.
const BuiltinFont = "7x13"

// Font files larger than this are rejected.
const maxFontFileSize = 8 << 20

// Font is a loaded face implementing render.Font.
type Font struct {
	name string
	face font.Face
}

// Name returns the identifier the font was loaded with.
func (f *Font) Name() string { return f.name }

// Face returns the underlying face.
func (f *Font) Face() font.Face { return f.face }

// FontLoader resolves font identifiers and caches loaded faces.
type FontLoader struct {
	dir     string
	size    float64
	maxSize int64

	mu    sync.Mutex
	cache map[string]*Font
}

// NewFontLoader creates a loader that resolves bare identifiers in dir and
// rasterises scalable fonts at size points.
func NewFontLoader(dir string, size float64) *FontLoader {
	if size <= 0 {
		size = 10
	}
	return &FontLoader{
		dir:     dir,
		size:    size,
		maxSize: maxFontFileSize,
		cache:   make(map[string]*Font),
	}
}

// Load returns the font for id, loading it on first use.
func (l *FontLoader) Load(id string) (*Font, error) {
	if id == "" {
		id = BuiltinFont
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.cache[id]; ok {
		return f, nil
	}

	face, err := l.load(id)
	if err != nil {
		return nil, err
	}
	f := &Font{name: id, face: face}
	l.cache[id] = f
	return f, nil
}

func (l *FontLoader) load(id string) (font.Face, error) {
	path := l.resolve(id)
	data, err := l.read(path)
	if errors.Is(err, fs.ErrNotExist) {
		if stem(id) == BuiltinFont {
			return basicfont.Face7x13, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrFontNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return l.parse(path, data)
}

// resolve maps id to a file in the fonts directory. Identifiers arrive on the
// control feed, so any directory part is dropped and lookups never leave dir.
func (l *FontLoader) resolve(id string) string {
	name := filepath.Base(filepath.Clean("/" + filepath.ToSlash(id)))
	if filepath.Ext(name) == "" {
		name += ".bdf"
	}
	return filepath.Join(l.dir, name)
}

func (l *FontLoader) read(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("stat font %s: %w", path, err)
	}
	if !fi.Mode().IsRegular() {
		return nil, fmt.Errorf("font %s is not a regular file", path)
	}
	if fi.Size() > l.maxSize {
		return nil, fmt.Errorf("font %s is %d bytes, limit %d", path, fi.Size(), l.maxSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read font %s: %w", path, err)
	}
	return data, nil
}

func (l *FontLoader) parse(path string, data []byte) (font.Face, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bdf":
		face, err := parseBDF(data)
		if err != nil {
			return nil, fmt.Errorf("parse bdf %s: %w", path, err)
		}
		return face, nil
	case ".ttf", ".otf":
		f, err := opentype.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("parse opentype %s: %w", path, err)
		}
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    l.size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err != nil {
			return nil, fmt.Errorf("create face %s: %w", path, err)
		}
		return face, nil
	default:
		return nil, fmt.Errorf("unsupported font format %q", filepath.Ext(path))
	}
}

func stem(id string) string {
	base := filepath.Base(id)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
