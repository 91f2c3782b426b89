package render

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/layout"
	"lithium/pkg/paint"
	"lithium/pkg/text"
)

var (
	white = color.RGBA{255, 255, 255, 255}
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	green = color.RGBA{0, 255, 0, 255}
)

type imageMap map[string]image.Image

func (m imageMap) Get(src string) (image.Image, bool) {
	img, ok := m[src]
	return img, ok
}

func rasterize(t *testing.T, l paint.List, images ImageSource) (*image.RGBA, diag.List) {
	t.Helper()
	img, diags, err := Rasterize(context.Background(), l, Surface{Width: 64, Height: 64}, nil, images)
	require.NoError(t, err)
	return img, diags
}

func at(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func rect(x, y, w, h float64) layout.Rect {
	return layout.Rect{X: x, Y: y, Width: w, Height: h}
}

func TestRender_FillRect(t *testing.T) {
	img, diags := rasterize(t, paint.List{paint.FillRect{Rect: rect(10, 10, 20, 20), Color: red}}, nil)
	assert.Empty(t, diags)
	assert.Equal(t, red, at(img, 15, 15))
	assert.Equal(t, white, at(img, 5, 5))
	assert.Equal(t, white, at(img, 35, 35))
}

func TestRender_ClipRestoredOnPop(t *testing.T) {
	img, _ := rasterize(t, paint.List{
		paint.PushClip{Rect: rect(0, 0, 30, 30)},
		paint.PushClip{Rect: rect(0, 0, 10, 10)},
		paint.FillRect{Rect: rect(0, 0, 64, 64), Color: blue},
		paint.PopClip{},
		paint.FillRect{Rect: rect(20, 20, 40, 40), Color: red},
		paint.PopClip{},
		paint.FillRect{Rect: rect(50, 50, 10, 10), Color: green},
	}, nil)
	assert.Equal(t, blue, at(img, 5, 5))
	assert.Equal(t, white, at(img, 15, 15), "inner clip")
	assert.Equal(t, red, at(img, 25, 25), "outer clip still applies")
	assert.Equal(t, white, at(img, 35, 35), "outer clip")
	assert.Equal(t, green, at(img, 55, 55), "no clip after the last pop")
}

func TestRender_SolidBorder(t *testing.T) {
	solid := [4]css.BorderStyle{css.BorderSolid, css.BorderSolid, css.BorderSolid, css.BorderSolid}
	img, _ := rasterize(t, paint.List{paint.DrawBorder{
		Rect:   rect(0, 0, 20, 20),
		Widths: layout.Edges{Top: 4, Right: 4, Bottom: 4, Left: 4},
		Colors: [4]color.RGBA{red, red, red, red},
		Styles: solid,
	}}, nil)
	assert.Equal(t, red, at(img, 1, 10))
	assert.Equal(t, red, at(img, 10, 1))
	assert.Equal(t, red, at(img, 18, 10))
	assert.Equal(t, red, at(img, 10, 18))
	assert.Equal(t, white, at(img, 10, 10))
}

func TestRender_HiddenBorderSideSkipped(t *testing.T) {
	img, _ := rasterize(t, paint.List{paint.DrawBorder{
		Rect:   rect(0, 0, 20, 20),
		Widths: layout.Edges{Top: 4, Right: 4, Bottom: 4, Left: 4},
		Colors: [4]color.RGBA{red, red, red, red},
		Styles: [4]css.BorderStyle{css.BorderSolid, css.BorderNone, css.BorderSolid, css.BorderHidden},
	}}, nil)
	assert.Equal(t, red, at(img, 10, 1))
	assert.Equal(t, white, at(img, 18, 10))
	assert.Equal(t, white, at(img, 1, 10))
}

func TestRender_Image(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			src.Set(x, y, blue)
		}
	}
	img, diags := rasterize(t, paint.List{paint.DrawImage{Rect: rect(10, 10, 20, 20), Src: "a.png"}}, imageMap{"a.png": src})
	assert.Empty(t, diags)
	assert.Equal(t, blue, at(img, 20, 20))
	assert.Equal(t, white, at(img, 5, 5))
}

func TestRender_MissingImagePlaceholder(t *testing.T) {
	img, diags := rasterize(t, paint.List{paint.DrawImage{Rect: rect(10, 10, 20, 20), Src: "gone.png"}}, imageMap{})
	require.Len(t, diags, 1)
	assert.True(t, errors.Is(diags[0], diag.ErrRaster))
	px := at(img, 12, 20)
	assert.InDelta(t, 230, float64(px.R), 2, "light gray placeholder")
	assert.Equal(t, px.R, px.B)
}

func TestRender_Text(t *testing.T) {
	img, diags := rasterize(t, paint.List{paint.DrawText{
		X: 4, Y: 40, Text: "HH", Font: text.Font{Family: "sans-serif", Size: 32, Weight: 700}, Color: color.RGBA{0, 0, 0, 255},
	}}, nil)
	assert.Empty(t, diags)
	dark := 0
	for y := 10; y < 42; y++ {
		for x := 4; x < 60; x++ {
			if at(img, x, y).R < 128 {
				dark++
			}
		}
	}
	assert.Greater(t, dark, 50, "glyphs should be drawn above the baseline")
	for x := 0; x < 64; x++ {
		assert.Equal(t, white, at(img, x, 50), "nothing below the baseline for H")
	}
}

func TestRender_Errors(t *testing.T) {
	_, err := NewRenderer(Surface{Width: 0, Height: 10}, nil, nil)
	assert.True(t, errors.Is(err, diag.ErrRaster))

	_, _, err = Rasterize(context.Background(), paint.List{paint.PushClip{}}, Surface{Width: 4, Height: 4}, nil, nil)
	assert.True(t, diag.IsFatal(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = Rasterize(ctx, paint.List{paint.FillRect{Rect: rect(0, 0, 1, 1), Color: red}}, Surface{Width: 4, Height: 4}, nil, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRender_EncodePNG(t *testing.T) {
	r, err := NewRenderer(Surface{Width: 8, Height: 4, Background: blue}, nil, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, r.EncodePNG(&buf))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), img.Bounds())
	rr, gg, bb, _ := img.At(3, 3).RGBA()
	assert.Equal(t, []uint32{0, 0, 0xffff}, []uint32{rr, gg, bb})
}
