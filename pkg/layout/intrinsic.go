package layout

import (
	"math"

	"lithium/pkg/css"
)

// MinMaxSizes holds the min-content and max-content widths of a box: the
// narrowest it can be without overflowing, and its width when no line
// wraps.
type MinMaxSizes struct {
	Min float64
	Max float64
}

// contentSizes returns the intrinsic widths of box's content box. They
// drive shrink-to-fit sizing of inline-blocks.
func (l *layouter) contentSizes(box *Box) MinMaxSizes {
	if box.Kind == ReplacedBox {
		w := replacedSize(box, NewConstraintSpace(0, -1)).Width
		return MinMaxSizes{w, w}
	}
	if len(box.Children) == 0 {
		return MinMaxSizes{}
	}
	if box.Children[0].IsBlockLevel() {
		var mm MinMaxSizes
		for _, c := range box.Children {
			o := l.outerSizes(c)
			mm.Min = math.Max(mm.Min, o.Min)
			mm.Max = math.Max(mm.Max, o.Max)
		}
		return mm
	}
	z := &inlineSizer{l: l}
	z.walk(box.Children)
	z.endLine()
	return MinMaxSizes{z.min, z.max}
}

// outerSizes returns the intrinsic contribution of box to its parent:
// a fixed width if one is set, plus margins, borders and padding.
// Percentages count as zero since the containing block is unknown.
func (l *layouter) outerSizes(box *Box) MinMaxSizes {
	s := box.Style
	var mm MinMaxSizes
	if box.Kind != ReplacedBox && !s.Width.IsAuto() && !s.Width.IsPercent() {
		w := s.Width.Resolve(0)
		mm = MinMaxSizes{w, w}
	} else {
		mm = l.contentSizes(box)
	}
	mm.Min = clampSize(mm.Min, s.MinWidth, s.MaxWidth, -1)
	mm.Max = clampSize(mm.Max, s.MinWidth, s.MaxWidth, -1)
	edges := fixedPx(s.Margin[css.Left]) + fixedPx(s.Margin[css.Right]) +
		fixedPx(s.Padding[css.Left]) + fixedPx(s.Padding[css.Right]) +
		s.BorderWidth[css.Left] + s.BorderWidth[css.Right]
	return MinMaxSizes{mm.Min + edges, mm.Max + edges}
}

func fixedPx(v css.Length) float64 {
	if v.IsAuto() || v.IsPercent() {
		return 0
	}
	return v.Resolve(0)
}

// inlineSizer measures inline content without breaking it into lines.
// word is the current unbreakable run, line the current unwrapped line,
// and hang the trailing spaces of that line.
type inlineSizer struct {
	l                *layouter
	min, max         float64
	word, line, hang float64
}

func (z *inlineSizer) endWord() {
	z.min = math.Max(z.min, z.word)
	z.word = 0
}

func (z *inlineSizer) endLine() {
	z.endWord()
	z.max = math.Max(z.max, z.line-z.hang)
	z.line, z.hang = 0, 0
}

func (z *inlineSizer) add(w float64) {
	z.word += w
	z.line += w
	z.hang = 0
}

func (z *inlineSizer) walk(boxes []*Box) {
	for _, b := range boxes {
		switch {
		case b.Kind == TextRunBox:
			f := b.font()
			ws := b.Style.WhiteSpace
			for _, seg := range splitText(b.Text) {
				switch seg.typ {
				case InlineItemBreak:
					z.endLine()
				case InlineItemSpace:
					w := z.l.shaper.Advance(f, seg.text)
					if !ws.Wraps() {
						z.add(w)
						continue
					}
					z.endWord()
					z.line += w
					z.hang += w
				default:
					z.add(z.l.shaper.Advance(f, seg.text))
				}
			}
		case b.Kind == LineBreakBox:
			z.endLine()
		case b.Kind == InlineBox:
			z.add(fixedPx(b.Style.Margin[css.Left]) + b.Style.BorderWidth[css.Left] + fixedPx(b.Style.Padding[css.Left]))
			z.walk(b.Children)
			z.add(fixedPx(b.Style.Padding[css.Right]) + b.Style.BorderWidth[css.Right] + fixedPx(b.Style.Margin[css.Right]))
		default:
			o := z.l.outerSizes(b)
			z.word += o.Min
			z.line += o.Max
			z.hang = 0
		}
	}
}
