package layout

import (
	"lithium/pkg/css"
	"lithium/pkg/html"
	"lithium/pkg/text"
)

// BoxKind classifies a box in the box tree.
type BoxKind int

const (
	// BlockBox is a block-level element box.
	BlockBox BoxKind = iota
	// InlineBox is a non-atomic inline element box; it splits across lines.
	InlineBox
	// InlineBlockBox is an atomic inline that contains its own block
	// formatting context.
	InlineBlockBox
	// ReplacedBox is an element whose content comes from outside the
	// document (img, canvas). It is sized from its intrinsic dimensions.
	ReplacedBox
	// AnonymousBox wraps a run of inline-level boxes that sits between
	// block-level siblings.
	AnonymousBox
	// TextRunBox holds the text of one DOM text node.
	TextRunBox
	// LineBreakBox is a forced break (<br>).
	LineBreakBox
)

var boxKindNames = [...]string{"block", "inline", "inline-block", "replaced", "anonymous", "text", "br"}

func (k BoxKind) String() string {
	if int(k) < len(boxKindNames) {
		return boxKindNames[k]
	}
	return "unknown"
}

// Box is a node of the box tree. The tree is built once per pass from the
// DOM and computed styles and is not modified by layout.
type Box struct {
	Kind BoxKind
	// Node is the DOM node that generated the box, or html.NoNode for
	// anonymous boxes.
	Node  html.NodeID
	Style *css.Style
	// Text is the whitespace-processed content of a TextRunBox.
	Text string
	// Intrinsic is the natural size of a ReplacedBox.
	Intrinsic Size
	// Src is the image URL of a replaced element, if any.
	Src      string
	Children []*Box
}

// IsBlockLevel reports whether the box takes part in block layout of its
// parent.
func (b *Box) IsBlockLevel() bool {
	switch b.Kind {
	case BlockBox, AnonymousBox:
		return true
	case ReplacedBox:
		return b.Style.Display.IsBlockLevel()
	}
	return false
}

// IsAtomicInline reports whether the box is laid out as one unbreakable
// piece of a line.
func (b *Box) IsAtomicInline() bool {
	return b.Kind == InlineBlockBox || (b.Kind == ReplacedBox && !b.Style.Display.IsBlockLevel())
}

// font returns the face the box's text is shaped with.
func (b *Box) font() text.Font {
	s := b.Style
	return text.Font{
		Family: s.FontFamily,
		Size:   s.FontSize,
		Weight: s.FontWeight,
		Italic: s.FontStyle != css.FontStyleNormal,
	}
}

// Font returns the face for drawing the box's text.
func (b *Box) Font() text.Font { return b.font() }

// Size represents dimensions (width and height)
type Size struct {
	Width  float64
	Height float64
}

// Rect represents a rectangular region
type Rect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Offset returns r moved by dx, dy.
func (r Rect) Offset(dx, dy float64) Rect {
	r.X += dx
	r.Y += dy
	return r
}

// Empty reports whether r has no area.
func (r Rect) Empty() bool { return r.Width <= 0 || r.Height <= 0 }

// Edges holds per-side widths in top, right, bottom, left order.
type Edges struct {
	Top, Right, Bottom, Left float64
}

func edgesOf(v [4]float64) Edges {
	return Edges{Top: v[css.Top], Right: v[css.Right], Bottom: v[css.Bottom], Left: v[css.Left]}
}

func (e Edges) horizontal() float64 { return e.Left + e.Right }
func (e Edges) vertical() float64   { return e.Top + e.Bottom }

func (r Rect) expand(e Edges) Rect {
	return Rect{
		X:      r.X - e.Left,
		Y:      r.Y - e.Top,
		Width:  r.Width + e.horizontal(),
		Height: r.Height + e.vertical(),
	}
}

// Dimensions are the used box-model values of a fragment.
type Dimensions struct {
	Content Rect
	Padding Edges
	Border  Edges
	Margin  Edges
}

// PaddingBox returns the content rect grown by the padding.
func (d Dimensions) PaddingBox() Rect { return d.Content.expand(d.Padding) }

// BorderBox returns the padding box grown by the border.
func (d Dimensions) BorderBox() Rect { return d.PaddingBox().expand(d.Border) }

// MarginBox returns the border box grown by the margin.
func (d Dimensions) MarginBox() Rect { return d.BorderBox().expand(d.Margin) }

// Fragment is the laid-out form of a box. A block produces one fragment;
// an inline box produces one per line it spans; a text run produces one
// per line segment.
//
// Content.X and Content.Y are relative to the content-box origin of the
// parent fragment. Fragments are immutable once returned, so a cached
// subtree can be shared between passes and placed again by copying.
type Fragment struct {
	Box        *Box
	Dimensions Dimensions
	// Text is the content of a text fragment.
	Text string
	// Baseline is the distance from the top of the content box to the
	// alphabetic baseline, for text and inline fragments.
	Baseline float64
	Children []*Fragment
	// Lines is the number of line boxes in an inline formatting context.
	Lines int

	// vertical margins as seen by the parent, after collapsing through
	margins     blockMargins
	collapseThr bool
	// distance from the border-box top to the last line's baseline
	lastBaseline float64
	hasBaseline  bool
}

// Clips reports whether painting of the fragment's descendants is clipped
// to its padding box.
func (f *Fragment) Clips() bool {
	return f.Box != nil && f.Box.Style != nil && f.Box.Style.Overflow.Clips() && f.Box.Kind != TextRunBox
}

// IsText reports whether f is a text fragment.
func (f *Fragment) IsText() bool { return f.Box != nil && f.Box.Kind == TextRunBox }

// placed returns a copy of f positioned at content origin x, y.
func (f *Fragment) placed(x, y float64) *Fragment {
	c := *f
	c.Dimensions.Content.X = x
	c.Dimensions.Content.Y = y
	return &c
}

// InlineItemType represents the type of an inline item
type InlineItemType int

const (
	InlineItemText InlineItemType = iota
	InlineItemSpace
	InlineItemOpenTag
	InlineItemCloseTag
	InlineItemAtomic
	InlineItemBreak
)

// InlineItem is one piece of the flattened inline content of a block
// container: a word, a space, an inline box edge, an atomic inline or a
// forced break. Width is the item's advance; for tags it is the margin,
// border and padding on that side.
type InlineItem struct {
	Type  InlineItemType
	Box   *Box
	Text  string
	Width float64
	// Breakable marks a space where a line may wrap.
	Breakable bool
	// Collapsible marks a space that is removed at the start or end of a
	// line.
	Collapsible bool

	// pre-laid-out atomic inline
	atomic *Fragment
}

// LineInfo is the output of BreakLines for one line.
type LineInfo struct {
	Items []InlineItem
	// Width is the advance of the items, not counting collapsible spaces
	// at the end of the line.
	Width float64
	// Forced is true when the line ended at a forced break.
	Forced bool
}
