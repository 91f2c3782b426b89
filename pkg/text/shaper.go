// Package text measures runs of text for layout. Layout only ever sees
// the Shaper interface; the fixed-advance shaper keeps tests exact and the
// TrueType shaper gives real glyph metrics.
package text

import (
	"strings"
	"sync"
	"unicode/utf8"
)

// Font selects a face.
type Font struct {
	Family string
	Size   float64
	Weight int
	Italic bool
}

// Bold reports whether the weight selects a bold face.
func (f Font) Bold() bool { return f.Weight >= 600 }

// Monospace reports whether the family list asks for a fixed-pitch face.
func (f Font) Monospace() bool {
	fam := strings.ToLower(f.Family)
	return strings.Contains(fam, "monospace") || strings.Contains(fam, "courier") || strings.Contains(fam, "mono")
}

// Metrics are vertical font metrics in px.
type Metrics struct {
	Ascent  float64
	Descent float64
}

// Shaper measures text. Implementations must be safe for concurrent use.
type Shaper interface {
	// Advance returns the width of s in px.
	Advance(f Font, s string) float64
	Metrics(f Font) Metrics
}

// FixedShaper gives every rune the same advance, Ratio*Size. A zero Ratio
// means 0.5, so at 20px each character is 10px wide.
type FixedShaper struct {
	Ratio float64
}

func (s FixedShaper) ratio() float64 {
	if s.Ratio <= 0 {
		return 0.5
	}
	return s.Ratio
}

func (s FixedShaper) Advance(f Font, str string) float64 {
	return float64(utf8.RuneCountInString(str)) * s.ratio() * f.Size
}

func (s FixedShaper) Metrics(f Font) Metrics {
	return Metrics{Ascent: 0.8 * f.Size, Descent: 0.2 * f.Size}
}

type measureKey struct {
	font Font
	text string
}

// Cached memoizes advances of another shaper. Words repeat heavily in
// documents, and relayout measures the same runs again.
type Cached struct {
	Shaper Shaper
	cache  sync.Map // measureKey -> float64
}

func NewCached(s Shaper) *Cached { return &Cached{Shaper: s} }

func (c *Cached) Advance(f Font, s string) float64 {
	k := measureKey{f, s}
	if v, ok := c.cache.Load(k); ok {
		return v.(float64)
	}
	w := c.Shaper.Advance(f, s)
	c.cache.Store(k, w)
	return w
}

func (c *Cached) Metrics(f Font) Metrics { return c.Shaper.Metrics(f) }
