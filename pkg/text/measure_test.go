package text

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedShaper(t *testing.T) {
	s := FixedShaper{}
	f := Font{Size: 20}
	assert.Equal(t, 50.0, s.Advance(f, "Hello"))
	assert.Equal(t, 10.0, s.Advance(f, " "))
	assert.Equal(t, 30.0, s.Advance(f, "ünï"), "advance counts runes, not bytes")
	assert.Equal(t, Metrics{Ascent: 16, Descent: 4}, s.Metrics(f))
	assert.Equal(t, 8.0, FixedShaper{Ratio: 0.4}.Advance(f, "x"))
}

func TestTrueTypeShaper_Measures(t *testing.T) {
	s := DefaultShaper()
	f := Font{Family: "serif", Size: 16, Weight: 400}

	w := s.Advance(f, "Hello")
	assert.Greater(t, w, 0.0)
	assert.InDelta(t, w*2, s.Advance(f.withSize(32), "Hello"), 1, "advance scales with size")
	assert.Greater(t, s.Advance(f, "Hello world"), w)
	assert.Zero(t, s.Advance(f, ""))

	m := s.Metrics(f)
	assert.Greater(t, m.Ascent, 0.0)
	assert.Greater(t, m.Descent, 0.0)
	assert.Less(t, m.Ascent+m.Descent, 2*f.Size)
}

func TestTrueTypeShaper_Variants(t *testing.T) {
	s := DefaultShaper()
	mono := Font{Family: "monospace", Size: 16}
	assert.InDelta(t, s.Advance(mono, "iiii"), s.Advance(mono, "WWWW"), 0.01, "mono faces have fixed pitch")

	regular := Font{Size: 16, Weight: 400}
	boldFont := Font{Size: 16, Weight: 700}
	assert.NotEqual(t, s.Advance(regular, "Bold text"), s.Advance(boldFont, "Bold text"))
}

func TestTrueTypeShaper_MissingFontFile(t *testing.T) {
	_, err := NewTrueTypeShaper(FontConfig{Regular: "/nonexistent/font.ttf"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nonexistent/font.ttf")
}

func TestTrueTypeShaper_Concurrent(t *testing.T) {
	s := DefaultShaper()
	want := s.Advance(Font{Size: 14}, "concurrent")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, want, s.Advance(Font{Size: 14}, "concurrent"))
			}
		}()
	}
	wg.Wait()
}

type countingShaper struct {
	FixedShaper
	mu    sync.Mutex
	calls int
}

func (c *countingShaper) Advance(f Font, s string) float64 {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.FixedShaper.Advance(f, s)
}

func TestCached(t *testing.T) {
	inner := &countingShaper{}
	c := NewCached(inner)
	f := Font{Size: 10}
	for i := 0; i < 5; i++ {
		assert.Equal(t, 15.0, c.Advance(f, "abc"))
	}
	assert.Equal(t, 1, inner.calls)
	c.Advance(Font{Size: 12}, "abc")
	assert.Equal(t, 2, inner.calls, "different fonts are cached separately")
}

func (f Font) withSize(size float64) Font {
	f.Size = size
	return f
}
