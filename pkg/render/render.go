// Package render rasterizes a display list onto an RGBA image with gg.
package render

import (
	"context"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/layout"
	"lithium/pkg/paint"
	"lithium/pkg/text"
)

// FaceSource creates font faces for drawing. *text.TrueTypeShaper
// implements it.
type FaceSource interface {
	NewFace(f text.Font) font.Face
}

// ImageSource looks up decoded images by URL. *images.Cache implements it.
type ImageSource interface {
	Get(src string) (image.Image, bool)
}

// Surface describes the target image.
type Surface struct {
	Width, Height int
	// Background fills the surface before drawing. Nil means white.
	Background color.Color
}

type Renderer struct {
	context *gg.Context
	faces   FaceSource
	images  ImageSource
	log     *logrus.Entry

	clips     []layout.Rect
	faceCache map[text.Font]font.Face
	diags     diag.Collector
}

// NewRenderer creates a renderer for s. A nil faces uses the bundled
// fonts; a nil images draws every image as a placeholder.
func NewRenderer(s Surface, faces FaceSource, images ImageSource) (*Renderer, error) {
	if s.Width <= 0 || s.Height <= 0 || s.Width > 1<<14 || s.Height > 1<<14 {
		return nil, diag.New(diag.ErrRaster, diag.StageRaster, "bad surface size %dx%d", s.Width, s.Height)
	}
	if faces == nil {
		faces = text.DefaultShaper()
	}
	r := &Renderer{
		context:   gg.NewContext(s.Width, s.Height),
		faces:     faces,
		images:    images,
		log:       logrus.WithField("component", "render"),
		faceCache: map[text.Font]font.Face{},
	}
	bg := s.Background
	if bg == nil {
		bg = color.White
	}
	r.context.SetColor(bg)
	r.context.Clear()
	return r, nil
}

// Render draws l. An unbalanced list is rejected before anything is drawn.
// Commands that cannot be drawn are skipped and recorded as RasterError
// diagnostics.
func (r *Renderer) Render(ctx context.Context, l paint.List) error {
	if err := l.Validate(); err != nil {
		return err
	}
	for i, c := range l {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		switch c := c.(type) {
		case paint.FillRect:
			r.fillRect(c)
		case paint.DrawBorder:
			r.drawBorder(c)
		case paint.DrawText:
			r.drawText(c)
		case paint.DrawImage:
			r.drawImage(c)
		case paint.PushClip:
			r.pushClip(c.Rect)
		case paint.PopClip:
			r.popClip()
		}
	}
	r.log.WithField("commands", len(l)).Debug("rasterized display list")
	return nil
}

// Rasterize renders l onto a new surface and returns the image with the
// diagnostics recorded while drawing.
func Rasterize(ctx context.Context, l paint.List, s Surface, faces FaceSource, images ImageSource) (*image.RGBA, diag.List, error) {
	r, err := NewRenderer(s, faces, images)
	if err != nil {
		return nil, nil, err
	}
	if err := r.Render(ctx, l); err != nil {
		return nil, r.Diagnostics(), err
	}
	return r.Image(), r.Diagnostics(), nil
}

func (r *Renderer) Image() *image.RGBA {
	if im, ok := r.context.Image().(*image.RGBA); ok {
		return im
	}
	b := r.context.Image().Bounds()
	im := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			im.Set(x, y, r.context.Image().At(x, y))
		}
	}
	return im
}

func (r *Renderer) Diagnostics() diag.List { return r.diags.List() }

func (r *Renderer) SavePNG(filename string) error {
	return errors.Wrap(r.context.SavePNG(filename), "save png")
}

func (r *Renderer) EncodePNG(w io.Writer) error {
	return errors.Wrap(r.context.EncodePNG(w), "encode png")
}

func (r *Renderer) fail(format string, args ...interface{}) {
	d := diag.New(diag.ErrRaster, diag.StageRaster, format, args...)
	r.log.Warn(d.Detail)
	r.diags.Add(d)
}

func finiteRect(rc layout.Rect) bool {
	for _, v := range []float64{rc.X, rc.Y, rc.Width, rc.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (r *Renderer) pushClip(rc layout.Rect) {
	r.clips = append(r.clips, rc)
	r.context.DrawRectangle(rc.X, rc.Y, rc.Width, rc.Height)
	r.context.Clip()
}

// popClip rebuilds the clip mask from the remaining stack; gg keeps the
// mask across Push and Pop.
func (r *Renderer) popClip() {
	r.clips = r.clips[:len(r.clips)-1]
	r.context.ResetClip()
	for _, rc := range r.clips {
		r.context.DrawRectangle(rc.X, rc.Y, rc.Width, rc.Height)
		r.context.Clip()
	}
}

func (r *Renderer) fillRect(c paint.FillRect) {
	if !finiteRect(c.Rect) {
		r.fail("fill with non-finite rect %v", c.Rect)
		return
	}
	r.context.SetColor(c.Color)
	r.context.DrawRectangle(c.Rect.X, c.Rect.Y, c.Rect.Width, c.Rect.Height)
	r.context.Fill()
}

// drawBorder draws each side as a mitered trapezoid between the border box
// and the padding box. Styled sides are drawn over the side's strip.
func (r *Renderer) drawBorder(c paint.DrawBorder) {
	if !finiteRect(c.Rect) {
		r.fail("border with non-finite rect %v", c.Rect)
		return
	}
	w := c.Widths
	outerLeft, outerTop := c.Rect.X, c.Rect.Y
	outerRight, outerBottom := c.Rect.X+c.Rect.Width, c.Rect.Y+c.Rect.Height
	innerLeft, innerTop := outerLeft+w.Left, outerTop+w.Top
	innerRight, innerBottom := outerRight-w.Right, outerBottom-w.Bottom

	widths := [4]float64{w.Top, w.Right, w.Bottom, w.Left}
	for side := 0; side < 4; side++ {
		style := c.Styles[side]
		col := c.Colors[side]
		if widths[side] <= 0 || col.A == 0 || style == css.BorderNone || style == css.BorderHidden {
			continue
		}
		r.context.SetColor(shade(col, style, side))
		switch style {
		case css.BorderDashed, css.BorderDotted, css.BorderDouble:
			switch side {
			case css.Top:
				r.drawBorderSide(outerLeft, outerTop, c.Rect.Width, w.Top, style, true)
			case css.Bottom:
				r.drawBorderSide(outerLeft, innerBottom, c.Rect.Width, w.Bottom, style, true)
			case css.Left:
				r.drawBorderSide(outerLeft, outerTop, w.Left, c.Rect.Height, style, false)
			case css.Right:
				r.drawBorderSide(innerRight, outerTop, w.Right, c.Rect.Height, style, false)
			}
			continue
		}
		switch side {
		case css.Top:
			r.context.MoveTo(outerLeft, outerTop)
			r.context.LineTo(outerRight, outerTop)
			r.context.LineTo(innerRight, innerTop)
			r.context.LineTo(innerLeft, innerTop)
		case css.Right:
			r.context.MoveTo(outerRight, outerTop)
			r.context.LineTo(outerRight, outerBottom)
			r.context.LineTo(innerRight, innerBottom)
			r.context.LineTo(innerRight, innerTop)
		case css.Bottom:
			r.context.MoveTo(outerLeft, outerBottom)
			r.context.LineTo(outerRight, outerBottom)
			r.context.LineTo(innerRight, innerBottom)
			r.context.LineTo(innerLeft, innerBottom)
		case css.Left:
			r.context.MoveTo(outerLeft, outerTop)
			r.context.LineTo(outerLeft, outerBottom)
			r.context.LineTo(innerLeft, innerBottom)
			r.context.LineTo(innerLeft, innerTop)
		}
		r.context.ClosePath()
		r.context.Fill()
	}
}

// drawBorderSide draws a single border side with a specific style
func (r *Renderer) drawBorderSide(x, y, width, height float64, style css.BorderStyle, horizontal bool) {
	thickness := height
	if !horizontal {
		thickness = width
	}
	switch style {
	case css.BorderDashed, css.BorderDotted:
		r.context.SetLineWidth(thickness)
		if style == css.BorderDashed {
			r.context.SetDash(3*thickness, 3*thickness)
		} else {
			r.context.SetLineCap(gg.LineCapRound)
			r.context.SetDash(0.01, 2*thickness)
		}
		if horizontal {
			r.context.DrawLine(x, y+height/2, x+width, y+height/2)
		} else {
			r.context.DrawLine(x+width/2, y, x+width/2, y+height)
		}
		r.context.Stroke()
		r.context.SetDash()
		r.context.SetLineCap(gg.LineCapButt)

	case css.BorderDouble:
		// two parallel lines with a gap of the same width
		spacing := thickness / 3
		if horizontal {
			r.context.DrawRectangle(x, y, width, spacing)
			r.context.DrawRectangle(x, y+height-spacing, width, spacing)
		} else {
			r.context.DrawRectangle(x, y, spacing, height)
			r.context.DrawRectangle(x+width-spacing, y, spacing, height)
		}
		r.context.Fill()
	}
}

// shade darkens or lightens the 3D border styles. Top and left sides are
// the lit ones for outset and ridge.
func shade(c color.RGBA, style css.BorderStyle, side int) color.RGBA {
	lit := side == css.Top || side == css.Left
	switch style {
	case css.BorderInset, css.BorderGroove:
		lit = !lit
	case css.BorderOutset, css.BorderRidge:
	default:
		return c
	}
	if lit {
		return c
	}
	return color.RGBA{c.R / 2, c.G / 2, c.B / 2, c.A}
}

func (r *Renderer) face(f text.Font) font.Face {
	if face, ok := r.faceCache[f]; ok {
		return face
	}
	face := r.faces.NewFace(f)
	if face == nil {
		r.fail("no face for %s %gpx, using fallback", f.Family, f.Size)
		face = basicfont.Face7x13
	}
	r.faceCache[f] = face
	return face
}

func (r *Renderer) drawText(c paint.DrawText) {
	if c.Font.Size <= 0 || strings.TrimSpace(c.Text) == "" {
		return
	}
	if math.IsNaN(c.X) || math.IsNaN(c.Y) {
		r.fail("text %q at non-finite position", c.Text)
		return
	}
	r.context.SetFontFace(r.face(c.Font))
	r.context.SetColor(c.Color)
	r.context.DrawString(c.Text, c.X, c.Y)
}

// drawImage scales the decoded image into the content box, or draws a
// placeholder when the image is not available.
func (r *Renderer) drawImage(c paint.DrawImage) {
	box := c.Rect
	if box.Empty() || !finiteRect(box) {
		return
	}
	var img image.Image
	if r.images != nil {
		img, _ = r.images.Get(c.Src)
	}
	if img == nil || img.Bounds().Empty() {
		if c.Src != "" {
			r.fail("image %q not available", abbreviate(c.Src))
		}
		// Light gray background with an X to indicate a broken image
		r.context.SetRGB(0.9, 0.9, 0.9)
		r.context.DrawRectangle(box.X, box.Y, box.Width, box.Height)
		r.context.Fill()
		r.context.SetRGB(0.5, 0.5, 0.5)
		r.context.SetLineWidth(2)
		r.context.DrawLine(box.X, box.Y, box.X+box.Width, box.Y+box.Height)
		r.context.DrawLine(box.X+box.Width, box.Y, box.X, box.Y+box.Height)
		r.context.Stroke()
		return
	}

	bounds := img.Bounds()
	r.context.Push()
	r.context.Translate(box.X, box.Y)
	r.context.Scale(box.Width/float64(bounds.Dx()), box.Height/float64(bounds.Dy()))
	r.context.DrawImage(img, -bounds.Min.X, -bounds.Min.Y)
	r.context.Pop()
}

func abbreviate(s string) string {
	if len(s) > 48 {
		return s[:45] + "..."
	}
	return s
}
