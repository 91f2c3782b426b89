package layout

import (
	"context"
	"math"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/text"
)

// Inline layout runs in three phases: CollectInlineItems flattens the
// inline content of a block container into measured items, BreakLines
// assigns the items to lines, and the line placer positions each line's
// fragments around a common baseline.

type segment struct {
	typ  InlineItemType
	text string
}

// splitText cuts whitespace-processed text into words, single spaces and
// forced breaks.
func splitText(s string) []segment {
	var out []segment
	start := 0
	word := func(end int) {
		if end > start {
			out = append(out, segment{InlineItemText, s[start:end]})
		}
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ':
			word(i)
			out = append(out, segment{InlineItemSpace, " "})
			start = i + 1
		case '\n':
			word(i)
			out = append(out, segment{InlineItemBreak, ""})
			start = i + 1
		}
	}
	word(len(s))
	return out
}

type itemCollector struct {
	ctx   context.Context
	l     *layouter
	width float64
	items []InlineItem
}

// collectInlineItems flattens the inline content of box. Atomic inlines
// are laid out here so that their size is known to the line breaker.
func (l *layouter) collectInlineItems(ctx context.Context, box *Box, width float64) ([]InlineItem, error) {
	c := &itemCollector{ctx: ctx, l: l, width: width}
	if err := c.collect(box.Children); err != nil {
		return nil, err
	}
	return c.items, nil
}

func (c *itemCollector) collect(boxes []*Box) error {
	for _, b := range boxes {
		switch {
		case b.Kind == TextRunBox:
			f := b.font()
			ws := b.Style.WhiteSpace
			for _, seg := range splitText(b.Text) {
				it := InlineItem{Type: seg.typ, Box: b, Text: seg.text}
				if seg.typ != InlineItemBreak {
					it.Width = c.l.shaper.Advance(f, seg.text)
				}
				if seg.typ == InlineItemSpace {
					it.Breakable = ws.Wraps()
					it.Collapsible = ws.CollapsesSpaces()
				}
				c.items = append(c.items, it)
			}
		case b.Kind == LineBreakBox:
			c.items = append(c.items, InlineItem{Type: InlineItemBreak, Box: b})
		case b.Kind == InlineBox:
			c.items = append(c.items, InlineItem{Type: InlineItemOpenTag, Box: b, Width: inlineEdge(b.Style, css.Left, c.width)})
			if err := c.collect(b.Children); err != nil {
				return err
			}
			c.items = append(c.items, InlineItem{Type: InlineItemCloseTag, Box: b, Width: inlineEdge(b.Style, css.Right, c.width)})
		case b.IsAtomicInline():
			f, err := c.l.layoutBox(c.ctx, b, NewConstraintSpace(c.width, -1), true)
			if err != nil {
				return err
			}
			c.items = append(c.items, InlineItem{Type: InlineItemAtomic, Box: b, Width: f.Dimensions.MarginBox().Width, atomic: f})
		default:
			return diag.Invariant("%s box %d inside inline content", b.Kind, b.Node)
		}
	}
	return nil
}

// inlineEdge is the margin, border and padding of an inline box on one
// horizontal side.
func inlineEdge(s *css.Style, side int, base float64) float64 {
	return resolveMargin(s.Margin[side], base) + s.BorderWidth[side] + math.Max(s.Padding[side].Resolve(base), 0)
}

// BreakLines greedily assigns items to lines no wider than width. A line
// ends at the last breakable space before the item that would overflow;
// an item with no earlier break opportunity overflows on its own line.
// Collapsible spaces at the start of a line are dropped and trailing
// spaces hang, so they do not count toward the line width.
func BreakLines(items []InlineItem, width float64) []LineInfo {
	var lines []LineInfo
	var cur []InlineItem
	x := 0.0
	lastBreak := -1
	flush := func(forced bool) {
		lines = append(lines, newLine(cur, forced))
		cur, x, lastBreak = nil, 0, -1
	}
	for _, it := range items {
		switch it.Type {
		case InlineItemBreak:
			cur = append(cur, it)
			flush(true)
			continue
		case InlineItemSpace:
			if it.Collapsible && atLineStart(cur) {
				continue
			}
			cur = append(cur, it)
			x += it.Width
			if it.Breakable {
				lastBreak = len(cur) - 1
			}
			continue
		case InlineItemText, InlineItemAtomic:
			if x+it.Width > width+1e-9 && lastBreak >= 0 {
				tail := append([]InlineItem(nil), cur[lastBreak+1:]...)
				cur = cur[:lastBreak+1]
				// closing tags stay with the text they close
				for len(tail) > 0 && tail[0].Type == InlineItemCloseTag {
					cur = append(cur, tail[0])
					tail = tail[1:]
				}
				flush(false)
				cur = tail
				for _, t := range tail {
					x += t.Width
				}
			}
		}
		cur = append(cur, it)
		x += it.Width
	}
	if len(cur) > 0 {
		flush(false)
	}
	return lines
}

func atLineStart(items []InlineItem) bool {
	for _, it := range items {
		if it.Type == InlineItemText || it.Type == InlineItemAtomic || it.Type == InlineItemSpace {
			return false
		}
	}
	return true
}

// newLine drops hanging spaces at the end of the line and sums the rest.
func newLine(items []InlineItem, forced bool) LineInfo {
	hang := map[int]bool{}
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if it.Type == InlineItemCloseTag || it.Type == InlineItemBreak {
			continue
		}
		if it.Type == InlineItemSpace && (it.Collapsible || it.Breakable) {
			hang[i] = true
			continue
		}
		break
	}
	line := LineInfo{Forced: forced}
	for i, it := range items {
		if hang[i] {
			continue
		}
		line.Items = append(line.Items, it)
		line.Width += it.Width
	}
	return line
}

// extent is the room an inline needs above and below the baseline.
type extent struct {
	above, below float64
}

func (e extent) union(o extent) extent {
	return extent{math.Max(e.above, o.above), math.Max(e.below, o.below)}
}

// strut returns the extent of a line-height box for style s, with the
// leading split evenly above and below the glyphs.
func (l *layouter) strut(s *css.Style, f text.Font) (extent, text.Metrics) {
	m := l.shaper.Metrics(f)
	half := (s.UsedLineHeight() - (m.Ascent + m.Descent)) / 2
	return extent{m.Ascent + half, m.Descent + half}, m
}

type inlineResult struct {
	fragments    []*Fragment
	lines        int
	height       float64
	lastBaseline float64
}

// layoutInline lays out the inline formatting context of box in the given
// content width.
func (l *layouter) layoutInline(ctx context.Context, box *Box, width float64) (inlineResult, error) {
	items, err := l.collectInlineItems(ctx, box, width)
	if err != nil {
		return inlineResult{}, err
	}
	p := &linePlacer{l: l, container: box, width: width}
	for _, line := range BreakLines(items, width) {
		p.place(line)
	}
	return p.out, nil
}

type linePlacer struct {
	l         *layouter
	container *Box
	width     float64
	y         float64
	// inline boxes left open by the previous line
	open []*Box
	out  inlineResult
}

// vfrag is a fragment waiting for the line's baseline; its content top
// goes at baseline+off.
type vfrag struct {
	f   *Fragment
	off float64
}

type lineState struct {
	p       *linePlacer
	x       float64
	ext     extent
	frags   []vfrag
	stack   []*Fragment
	content bool
}

func (ls *lineState) openInline(b *Box, first bool) {
	s := b.Style
	e, m := ls.p.l.strut(s, b.font())
	ls.ext = ls.ext.union(e)
	f := &Fragment{Box: b, Baseline: m.Ascent}
	d := &f.Dimensions
	pad := resolveEdges(s.Padding, ls.p.width)
	d.Padding.Top, d.Padding.Bottom = pad.Top, pad.Bottom
	d.Border.Top, d.Border.Bottom = s.BorderWidth[css.Top], s.BorderWidth[css.Bottom]
	if first {
		d.Margin.Left = resolveMargin(s.Margin[css.Left], ls.p.width)
		d.Border.Left = s.BorderWidth[css.Left]
		d.Padding.Left = pad.Left
	}
	ls.x += d.Margin.Left + d.Border.Left + d.Padding.Left
	d.Content.X = ls.x
	d.Content.Height = m.Ascent + m.Descent
	ls.frags = append(ls.frags, vfrag{f, -m.Ascent})
	ls.stack = append(ls.stack, f)
}

func (ls *lineState) closeInline(last bool) {
	f := ls.stack[len(ls.stack)-1]
	ls.stack = ls.stack[:len(ls.stack)-1]
	d := &f.Dimensions
	d.Content.Width = ls.x - d.Content.X
	if last {
		s := f.Box.Style
		d.Padding.Right = math.Max(s.Padding[css.Right].Resolve(ls.p.width), 0)
		d.Border.Right = s.BorderWidth[css.Right]
		d.Margin.Right = resolveMargin(s.Margin[css.Right], ls.p.width)
		ls.x += d.Padding.Right + d.Border.Right + d.Margin.Right
	}
}

func (p *linePlacer) alignOffset(lineWidth float64) float64 {
	free := p.width - lineWidth
	if free <= 0 {
		return 0
	}
	switch p.container.Style.TextAlign {
	case css.TextAlignRight:
		return free
	case css.TextAlignCenter:
		return free / 2
	}
	return 0
}

func (p *linePlacer) place(line LineInfo) {
	strut, _ := p.l.strut(p.container.Style, p.container.font())
	ls := &lineState{p: p, x: p.alignOffset(line.Width), ext: strut}
	for _, b := range p.open {
		ls.openInline(b, false)
	}

	var run *Fragment
	for _, it := range line.Items {
		switch it.Type {
		case InlineItemOpenTag:
			ls.openInline(it.Box, true)
			ls.content = ls.content || it.Width > 0
			run = nil
		case InlineItemCloseTag:
			if len(ls.stack) == 0 {
				continue
			}
			ls.closeInline(true)
			ls.content = ls.content || it.Width > 0
			run = nil
		case InlineItemText, InlineItemSpace:
			ls.content = true
			if run != nil && run.Box == it.Box {
				run.Text += it.Text
				run.Dimensions.Content.Width += it.Width
			} else {
				e, m := p.l.strut(it.Box.Style, it.Box.font())
				ls.ext = ls.ext.union(e)
				run = &Fragment{Box: it.Box, Text: it.Text, Baseline: m.Ascent}
				run.Dimensions.Content = Rect{X: ls.x, Width: it.Width, Height: m.Ascent + m.Descent}
				ls.frags = append(ls.frags, vfrag{run, -m.Ascent})
			}
			ls.x += it.Width
		case InlineItemAtomic:
			ls.content = true
			run = nil
			af := it.atomic
			d := af.Dimensions
			height := d.MarginBox().Height
			above := height
			if af.hasBaseline {
				above = d.Margin.Top + af.lastBaseline
			}
			ls.ext = ls.ext.union(extent{above, height - above})
			dx, dy := relativeOffset(it.Box.Style, NewConstraintSpace(p.width, -1))
			placed := af.placed(ls.x+d.Margin.Left+d.Border.Left+d.Padding.Left+dx, 0)
			ls.frags = append(ls.frags, vfrag{placed, -above + d.Margin.Top + d.Border.Top + d.Padding.Top + dy})
			ls.x += it.Width
		case InlineItemBreak:
			ls.content = true
			run = nil
		}
	}

	// boxes still open continue on the next line without their end edges
	p.open = p.open[:0]
	for _, f := range ls.stack {
		p.open = append(p.open, f.Box)
	}
	for len(ls.stack) > 0 {
		ls.closeInline(false)
	}

	baseline, height := p.y, 0.0
	if ls.content {
		baseline = p.y + ls.ext.above
		height = ls.ext.above + ls.ext.below
		p.out.lines++
		p.out.lastBaseline = baseline
	}
	for _, v := range ls.frags {
		v.f.Dimensions.Content.Y = baseline + v.off
		p.out.fragments = append(p.out.fragments, v.f)
	}
	p.y += height
	p.out.height = p.y
}
