// Package paint flattens a laid-out fragment tree into a display list of
// drawing commands.
//
// Each box paints its background, then its border, then its own content
// (text or image), then its children in tree order. A box whose overflow
// clips brackets its children with PushClip and PopClip.
//
// Stacking is simplified to tree order: z-index and positioning do not
// reorder painting. A later sibling always paints over an earlier one.
package paint

import (
	"fmt"
	"image/color"
	"strings"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/html"
	"lithium/pkg/layout"
	"lithium/pkg/text"
)

// Command is one entry of a display list.
type Command interface {
	fmt.Stringer
	command()
}

// FillRect fills a rectangle with a solid color.
type FillRect struct {
	Rect  layout.Rect
	Color color.RGBA
}

// DrawBorder strokes the border area between Rect and Rect shrunk by
// Widths, one side at a time.
type DrawBorder struct {
	Rect   layout.Rect
	Widths layout.Edges
	Colors [4]color.RGBA
	Styles [4]css.BorderStyle
}

// DrawText draws a run of text with its baseline starting at X, Y.
type DrawText struct {
	X, Y  float64
	Text  string
	Font  text.Font
	Color color.RGBA
}

// DrawImage draws the image of a replaced element scaled to Rect.
type DrawImage struct {
	Rect layout.Rect
	Src  string
	Node html.NodeID
}

// PushClip intersects the clip region with Rect until the matching
// PopClip.
type PushClip struct {
	Rect layout.Rect
}

// PopClip restores the clip region saved by the matching PushClip.
type PopClip struct{}

func (FillRect) command()   {}
func (DrawBorder) command() {}
func (DrawText) command()   {}
func (DrawImage) command()  {}
func (PushClip) command()   {}
func (PopClip) command()    {}

func rect(r layout.Rect) string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.Width, r.Height)
}

func (c FillRect) String() string {
	return fmt.Sprintf("FillRect %s %s", rect(c.Rect), css.FormatColor(c.Color))
}

func (c DrawBorder) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "DrawBorder %s", rect(c.Rect))
	w := [4]float64{c.Widths.Top, c.Widths.Right, c.Widths.Bottom, c.Widths.Left}
	for side := 0; side < 4; side++ {
		fmt.Fprintf(&sb, " %g %s %s", w[side], c.Styles[side], css.FormatColor(c.Colors[side]))
	}
	return sb.String()
}

func (c DrawText) String() string {
	return fmt.Sprintf("DrawText (%g,%g) %q %gpx %s", c.X, c.Y, c.Text, c.Font.Size, css.FormatColor(c.Color))
}

func (c DrawImage) String() string {
	return fmt.Sprintf("DrawImage %s %q", rect(c.Rect), c.Src)
}

func (c PushClip) String() string { return "PushClip " + rect(c.Rect) }
func (PopClip) String() string    { return "PopClip" }

// List is a display list in paint order.
type List []Command

func (l List) String() string {
	var sb strings.Builder
	for _, c := range l {
		sb.WriteString(c.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Validate checks that clips are balanced. An unbalanced list is an
// invariant violation.
func (l List) Validate() error {
	depth := 0
	for i, c := range l {
		switch c.(type) {
		case PushClip:
			depth++
		case PopClip:
			depth--
			if depth < 0 {
				return diag.Invariant("PopClip at %d without PushClip", i)
			}
		}
	}
	if depth != 0 {
		return diag.Invariant("%d clips left open", depth)
	}
	return nil
}

// Build produces the display list of a fragment tree.
func Build(root *layout.Fragment) List {
	var b builder
	if root != nil {
		b.fragment(root, 0, 0)
	}
	return b.list
}

type builder struct {
	list List
}

func (b *builder) emit(c Command) { b.list = append(b.list, c) }

func (b *builder) fragment(f *layout.Fragment, ox, oy float64) {
	abs := f.At(ox, oy)
	s := f.Box.Style
	if f.IsText() {
		if s.Visible() && f.Text != "" {
			b.emit(DrawText{
				X:     abs.Content.X,
				Y:     abs.Content.Y + f.Baseline,
				Text:  f.Text,
				Font:  f.Box.Font(),
				Color: s.Color,
			})
		}
		return
	}

	if s.Visible() {
		if s.BackgroundColor.A > 0 {
			b.emit(FillRect{Rect: abs.BorderBox(), Color: s.BackgroundColor})
		}
		if w := abs.Border; w.Top > 0 || w.Right > 0 || w.Bottom > 0 || w.Left > 0 {
			b.emit(DrawBorder{Rect: abs.BorderBox(), Widths: w, Colors: s.BorderColor, Styles: s.BorderStyle})
		}
		if f.Box.Kind == layout.ReplacedBox {
			b.emit(DrawImage{Rect: abs.Content, Src: f.Box.Src, Node: f.Box.Node})
		}
	}

	clip := f.Clips()
	if clip {
		b.emit(PushClip{Rect: abs.PaddingBox()})
	}
	for _, c := range f.Children {
		b.fragment(c, abs.Content.X, abs.Content.Y)
	}
	if clip {
		b.emit(PopClip{})
	}
}

// Optimize drops commands that cannot change any pixel: fills and borders
// without area or color, and clips with nothing between them.
func Optimize(l List) List {
	out := make(List, 0, len(l))
	for _, c := range l {
		switch c := c.(type) {
		case FillRect:
			if c.Rect.Empty() || c.Color.A == 0 {
				continue
			}
		case DrawBorder:
			if c.Rect.Empty() || !anyVisible(c) {
				continue
			}
		case DrawText:
			if c.Color.A == 0 || strings.TrimSpace(c.Text) == "" {
				continue
			}
		case PopClip:
			if n := len(out); n > 0 {
				if _, ok := out[n-1].(PushClip); ok {
					out = out[:n-1]
					continue
				}
			}
		}
		out = append(out, c)
	}
	return out
}

func anyVisible(c DrawBorder) bool {
	w := [4]float64{c.Widths.Top, c.Widths.Right, c.Widths.Bottom, c.Widths.Left}
	for side := 0; side < 4; side++ {
		if w[side] > 0 && c.Colors[side].A > 0 && c.Styles[side] != css.BorderNone && c.Styles[side] != css.BorderHidden {
			return true
		}
	}
	return false
}
