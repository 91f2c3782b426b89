package text

import (
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"github.com/pkg/errors"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
)

// FontConfig holds paths to font files. Empty paths use the bundled Go
// fonts.
type FontConfig struct {
	Regular    string `toml:"regular"`
	Bold       string `toml:"bold"`
	Italic     string `toml:"italic"`
	BoldItalic string `toml:"bold_italic"`
	Monospace  string `toml:"monospace"`
	MonoBold   string `toml:"mono_bold"`
}

type variant int

const (
	regular variant = iota
	bold
	italic
	boldItalic
	mono
	monoBold
	numVariants
)

func variantOf(f Font) variant {
	switch {
	case f.Monospace() && f.Bold():
		return monoBold
	case f.Monospace():
		return mono
	case f.Bold() && f.Italic:
		return boldItalic
	case f.Bold():
		return bold
	case f.Italic:
		return italic
	}
	return regular
}

func (fc FontConfig) path(v variant) string {
	return [...]string{fc.Regular, fc.Bold, fc.Italic, fc.BoldItalic, fc.Monospace, fc.MonoBold}[v]
}

var builtin = [numVariants][]byte{
	goregular.TTF, gobold.TTF, goitalic.TTF, gobolditalic.TTF, gomono.TTF, gomonobold.TTF,
}

type faceKey struct {
	v    variant
	size float64
}

// TrueTypeShaper measures with real glyph advances. Faces are created per
// size and cached; font.Face is not safe for concurrent use, so
// measurement is serialized.
type TrueTypeShaper struct {
	fonts [numVariants]*truetype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face
}

// NewTrueTypeShaper loads the configured fonts. A path that cannot be read
// or parsed is an error; an empty path selects the bundled face.
func NewTrueTypeShaper(fc FontConfig) (*TrueTypeShaper, error) {
	s := &TrueTypeShaper{faces: map[faceKey]font.Face{}}
	for v := variant(0); v < numVariants; v++ {
		data := builtin[v]
		if p := fc.path(v); p != "" {
			b, err := os.ReadFile(p)
			if err != nil {
				return nil, errors.Wrapf(err, "load font %s", p)
			}
			data = b
		}
		f, err := truetype.Parse(data)
		if err != nil {
			return nil, errors.Wrapf(err, "parse font %q", fc.path(v))
		}
		s.fonts[v] = f
	}
	return s, nil
}

// DefaultShaper returns a TrueTypeShaper over the bundled Go fonts.
func DefaultShaper() *TrueTypeShaper {
	s, err := NewTrueTypeShaper(FontConfig{})
	if err != nil {
		// the bundled fonts are compiled in
		panic(err)
	}
	return s
}

func (s *TrueTypeShaper) face(f Font) font.Face {
	k := faceKey{variantOf(f), f.Size}
	face, ok := s.faces[k]
	if !ok {
		face = truetype.NewFace(s.fonts[k.v], &truetype.Options{Size: f.Size, DPI: 72, Hinting: font.HintingNone})
		s.faces[k] = face
	}
	return face
}

// NewFace returns an unshared face for drawing.
func (s *TrueTypeShaper) NewFace(f Font) font.Face {
	return truetype.NewFace(s.fonts[variantOf(f)], &truetype.Options{Size: f.Size, DPI: 72, Hinting: font.HintingNone})
}

func (s *TrueTypeShaper) Advance(f Font, str string) float64 {
	if f.Size <= 0 || str == "" {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return float64(font.MeasureString(s.face(f), str)) / 64
}

func (s *TrueTypeShaper) Metrics(f Font) Metrics {
	if f.Size <= 0 {
		return Metrics{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.face(f).Metrics()
	return Metrics{Ascent: float64(m.Ascent) / 64, Descent: float64(m.Descent) / 64}
}
