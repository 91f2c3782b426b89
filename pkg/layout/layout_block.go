package layout

import (
	"context"
	"math"

	"lithium/pkg/css"
)

// layoutBlock computes the fragment of a block container, a block-level
// replaced element or, when atomic is set, an inline-block or inline
// replaced element.
func (l *layouter) layoutBlock(ctx context.Context, box *Box, cs ConstraintSpace, atomic bool) (*Fragment, error) {
	s := box.Style
	cw := cs.AvailableWidth
	if !finite(cw) || cw < 0 {
		l.violation(box, "available width %g clamped to 0", cw)
		cw = 0
		cs = cs.WithAvailableWidth(0)
	}

	f := &Fragment{Box: box}
	d := &f.Dimensions
	d.Padding = resolveEdges(s.Padding, cw)
	d.Border = edgesOf(s.BorderWidth)
	d.Margin.Top = resolveMargin(s.Margin[css.Top], cw)
	d.Margin.Bottom = resolveMargin(s.Margin[css.Bottom], cw)
	d.Content.Width = l.usedWidth(box, cs, d, atomic)

	var replaced Size
	if box.Kind == ReplacedBox {
		replaced = replacedSize(box, cs)
	}

	height, definite := specifiedHeight(s, cs)
	childCS := NewConstraintSpace(d.Content.Width, -1)
	if definite {
		childCS = childCS.WithPercentHeight(clampSize(height, s.MinHeight, s.MaxHeight, cs.PercentHeight))
	}

	var contentHeight float64
	var topThrough, bottomThrough collapsedMargins
	inFlow := false
	switch {
	case box.Kind == ReplacedBox:
		contentHeight = replaced.Height
		inFlow = true
	case len(box.Children) > 0 && box.Children[0].IsBlockLevel():
		bfc := l.establishesContext(box, atomic)
		st := stacker{
			collapseTop:    !bfc && d.Border.Top == 0 && d.Padding.Top == 0,
			collapseBottom: !bfc && d.Border.Bottom == 0 && d.Padding.Bottom == 0 && !definite && clampSize(0, s.MinHeight, css.None, cs.PercentHeight) == 0,
		}
		frags, err := l.layoutChildren(ctx, box.Children, childCS)
		if err != nil {
			return nil, err
		}
		for _, cf := range frags {
			st.add(cf, childCS)
		}
		st.finish()
		f.Children = st.children
		contentHeight = st.height
		topThrough, bottomThrough = st.topThrough, st.bottomThrough
		inFlow = st.inFlow
		if st.hasBaseline {
			f.lastBaseline, f.hasBaseline = d.Border.Top+d.Padding.Top+st.lastBaseline, true
		}
	case len(box.Children) > 0:
		il, err := l.layoutInline(ctx, box, d.Content.Width)
		if err != nil {
			return nil, err
		}
		f.Children = il.fragments
		f.Lines = il.lines
		contentHeight = il.height
		inFlow = il.height > 0
		if il.lines > 0 {
			f.lastBaseline, f.hasBaseline = d.Border.Top+d.Padding.Top+il.lastBaseline, true
		}
	}

	h := contentHeight
	if definite {
		h = height
	}
	h = clampSize(h, s.MinHeight, s.MaxHeight, cs.PercentHeight)
	if h < 0 {
		l.violation(box, "negative height %g clamped to 0", h)
		h = 0
	}
	d.Content.Height = h

	if atomic {
		return f, nil
	}
	own := collapsedMargins{}.add(d.Margin.Top)
	ownBottom := collapsedMargins{}.add(d.Margin.Bottom)
	if !inFlow && h == 0 && d.Border.vertical() == 0 && d.Padding.vertical() == 0 && !l.establishesContext(box, false) {
		all := own.join(ownBottom).join(topThrough).join(bottomThrough)
		f.margins = blockMargins{top: all, bottom: all}
		f.collapseThr = true
		return f, nil
	}
	f.margins = blockMargins{top: own.join(topThrough), bottom: ownBottom.join(bottomThrough)}
	return f, nil
}

// establishesContext reports whether box starts a new block formatting
// context, which stops margins from collapsing with its children.
func (l *layouter) establishesContext(box *Box, atomic bool) bool {
	s := box.Style
	if atomic || box == l.root || box.Kind == InlineBlockBox || s.Overflow.Clips() {
		return true
	}
	switch s.Display {
	case css.DisplayFlex, css.DisplayGrid, css.DisplayTable, css.DisplayTableCell:
		return true
	}
	return s.Float != css.FloatNone || s.Position == css.PositionAbsolute || s.Position == css.PositionFixed
}

// stacker places block-level children top to bottom, collapsing adjoining
// margins.
type stacker struct {
	collapseTop, collapseBottom bool

	children []*Fragment
	y        float64
	pending  collapsedMargins
	inFlow   bool

	topThrough    collapsedMargins
	bottomThrough collapsedMargins
	height        float64

	lastBaseline float64
	hasBaseline  bool
}

func (st *stacker) add(cf *Fragment, cs ConstraintSpace) {
	m := cf.margins
	if cf.collapseThr {
		top := st.y
		if st.inFlow || !st.collapseTop {
			top += st.pending.value()
		}
		st.children = append(st.children, placeBlock(cf, top, cs))
		st.pending = st.pending.join(m.top)
		return
	}
	st.pending = st.pending.join(m.top)
	top := st.y
	if !st.inFlow && st.collapseTop {
		st.topThrough = st.pending
	} else {
		top += st.pending.value()
	}
	placed := placeBlock(cf, top, cs)
	st.children = append(st.children, placed)
	st.y = top + cf.Dimensions.BorderBox().Height
	st.pending = m.bottom
	st.inFlow = true
	if cf.hasBaseline {
		st.lastBaseline, st.hasBaseline = top+cf.lastBaseline, true
	}
}

func (st *stacker) finish() {
	if !st.inFlow && st.collapseTop {
		// nothing separated the margins from the top edge
		st.topThrough = st.topThrough.join(st.pending)
		st.pending = collapsedMargins{}
		st.height = 0
		return
	}
	if st.collapseBottom {
		st.bottomThrough = st.pending
		st.pending = collapsedMargins{}
		st.height = st.y
		return
	}
	st.height = st.y + st.pending.value()
	st.pending = collapsedMargins{}
}

// placeBlock positions a child whose border box starts at top, applying a
// relative offset.
func placeBlock(cf *Fragment, top float64, cs ConstraintSpace) *Fragment {
	d := cf.Dimensions
	x := d.Margin.Left + d.Border.Left + d.Padding.Left
	y := top + d.Border.Top + d.Padding.Top
	dx, dy := relativeOffset(cf.Box.Style, cs)
	return cf.placed(x+dx, y+dy)
}

func relativeOffset(s *css.Style, cs ConstraintSpace) (dx, dy float64) {
	if s.Position != css.PositionRelative {
		return 0, 0
	}
	switch o := s.Offset; {
	case !o[css.Left].IsAuto():
		dx = o[css.Left].Resolve(cs.AvailableWidth)
	case !o[css.Right].IsAuto():
		dx = -o[css.Right].Resolve(cs.AvailableWidth)
	}
	resolvable := func(v css.Length) bool {
		return !v.IsAuto() && (!v.IsPercent() || cs.HasDefiniteHeight())
	}
	switch o := s.Offset; {
	case resolvable(o[css.Top]):
		dy = o[css.Top].Resolve(cs.PercentHeight)
	case resolvable(o[css.Bottom]):
		dy = -o[css.Bottom].Resolve(cs.PercentHeight)
	}
	return dx, dy
}

// usedWidth resolves the content width and the horizontal margins of a
// block in its containing block. Auto margins of a block with a definite
// width center it; an over-constrained block gives up its right margin.
func (l *layouter) usedWidth(box *Box, cs ConstraintSpace, d *Dimensions, atomic bool) float64 {
	s := box.Style
	cw := cs.AvailableWidth
	bp := d.Padding.horizontal() + d.Border.horizontal()
	autoL, autoR := s.Margin[css.Left].IsAuto(), s.Margin[css.Right].IsAuto()
	ml, mr := resolveMargin(s.Margin[css.Left], cw), resolveMargin(s.Margin[css.Right], cw)
	d.Margin.Left, d.Margin.Right = ml, mr

	auto := s.Width.IsAuto()
	var w float64
	switch {
	case box.Kind == ReplacedBox:
		w, auto = replacedSize(box, cs).Width, false
	case !auto:
		w = s.Width.Resolve(cw)
	case atomic:
		mm := l.contentSizes(box)
		w = math.Min(math.Max(mm.Min, cw-ml-mr-bp), mm.Max)
	default:
		w = cw - ml - mr - bp
	}
	if box.Kind != ReplacedBox {
		if c := clampSize(w, s.MinWidth, s.MaxWidth, cw); c != w {
			w, auto = c, false
		}
	}
	if w < 0 {
		l.violation(box, "negative width %g clamped to 0", w)
		w = 0
	}
	if atomic || auto {
		return w
	}

	rest := cw - w - bp - ml - mr
	switch {
	case autoL && autoR:
		if rest > 0 {
			d.Margin.Left, d.Margin.Right = rest/2, rest/2
		} else {
			d.Margin.Right = rest
		}
	case autoL:
		d.Margin.Left = rest
	default:
		d.Margin.Right = mr + rest
	}
	return w
}

// specifiedHeight returns the used value of the height property when it
// does not depend on content.
func specifiedHeight(s *css.Style, cs ConstraintSpace) (float64, bool) {
	if s.Height.IsAuto() || (s.Height.IsPercent() && !cs.HasDefiniteHeight()) {
		return 0, false
	}
	return s.Height.Resolve(cs.PercentHeight), true
}

// replacedSize returns the used content size of a replaced element: the
// specified width and height, with a missing one derived from the
// intrinsic aspect ratio.
func replacedSize(box *Box, cs ConstraintSpace) Size {
	s := box.Style
	in := box.Intrinsic
	wAuto := s.Width.IsAuto()
	hAuto := s.Height.IsAuto() || (s.Height.IsPercent() && !cs.HasDefiniteHeight())
	w, h := in.Width, in.Height
	switch {
	case !wAuto && !hAuto:
		w, h = s.Width.Resolve(cs.AvailableWidth), s.Height.Resolve(cs.PercentHeight)
	case !wAuto:
		w = s.Width.Resolve(cs.AvailableWidth)
		if in.Width > 0 {
			h = w * in.Height / in.Width
		}
	case !hAuto:
		h = s.Height.Resolve(cs.PercentHeight)
		if in.Height > 0 {
			w = h * in.Width / in.Height
		}
	}
	w = clampSize(w, s.MinWidth, s.MaxWidth, cs.AvailableWidth)
	h = clampSize(h, s.MinHeight, s.MaxHeight, cs.PercentHeight)
	return Size{Width: math.Max(w, 0), Height: math.Max(h, 0)}
}

// clampSize applies min and max constraints; min wins over max. Percentages
// against an indefinite base are ignored.
func clampSize(v float64, min, max css.Length, base float64) float64 {
	usable := func(x css.Length) bool { return !x.IsPercent() || base >= 0 }
	if !max.IsNone() && !max.IsAuto() && usable(max) {
		v = math.Min(v, max.Resolve(base))
	}
	if !min.IsAuto() && usable(min) {
		v = math.Max(v, min.Resolve(base))
	}
	return v
}

func resolveMargin(v css.Length, base float64) float64 {
	if v.IsAuto() {
		return 0
	}
	return v.Resolve(base)
}

func resolveEdges(v [4]css.Length, base float64) Edges {
	return Edges{
		Top:    math.Max(v[css.Top].Resolve(base), 0),
		Right:  math.Max(v[css.Right].Resolve(base), 0),
		Bottom: math.Max(v[css.Bottom].Resolve(base), 0),
		Left:   math.Max(v[css.Left].Resolve(base), 0),
	}
}
