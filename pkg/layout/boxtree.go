package layout

import (
	"strconv"
	"strings"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/html"
)

// DefaultReplacedSize is the size of a replaced element that has neither
// natural dimensions nor size attributes.
var DefaultReplacedSize = Size{Width: 300, Height: 150}

var replacedElements = map[string]bool{
	"img": true, "canvas": true, "video": true, "iframe": true, "embed": true, "object": true,
}

// IsReplacedElement reports whether tag is laid out from intrinsic
// dimensions instead of its children.
func IsReplacedElement(tag string) bool { return replacedElements[tag] }

// BuildOptions tune box generation.
type BuildOptions struct {
	// Intrinsic returns the natural size of a replaced element's content,
	// such as a decoded image. It may be nil.
	Intrinsic func(id html.NodeID) (Size, bool)
}

type builder struct {
	doc    *html.Document
	styles *css.StyleMap
	opts   BuildOptions
}

// BuildBoxTree generates the box tree for doc. Elements with display:none
// produce no boxes, runs of inline content next to blocks are wrapped in
// anonymous boxes, and text is whitespace-processed into TextRunBoxes.
// A missing computed style is an invariant violation.
func BuildBoxTree(doc *html.Document, styles *css.StyleMap, opts BuildOptions) (*Box, error) {
	b := &builder{doc: doc, styles: styles, opts: opts}
	root, err := b.build(doc.Root)
	if err != nil {
		return nil, err
	}
	if root == nil {
		// display:none on the root still leaves an initial containing block
		root = &Box{Kind: BlockBox, Node: doc.Root, Style: css.Initial()}
	}
	root.Kind = BlockBox
	return root, nil
}

func (b *builder) build(id html.NodeID) (*Box, error) {
	n := b.doc.Node(id)
	s := b.styles.Get(id)
	switch n.Type {
	case html.CommentNode:
		return nil, nil
	case html.TextNode:
		if n.Text == "" {
			return nil, nil
		}
		if s == nil {
			s = b.styles.Get(n.Parent)
		}
		if s == nil {
			return nil, diag.Invariant("text node %d has no computed style", id)
		}
		return &Box{Kind: TextRunBox, Node: id, Style: s, Text: n.Text}, nil
	}
	if s == nil {
		return nil, diag.Invariant("%s node %d has no computed style", n.Type, id)
	}
	if s.Display == css.DisplayNone {
		return nil, nil
	}

	box := &Box{Node: id, Style: s}
	switch {
	case n.TagName == "br":
		box.Kind = LineBreakBox
		return box, nil
	case replacedElements[n.TagName]:
		box.Kind = ReplacedBox
		box.Intrinsic = b.intrinsic(id, n)
		src, _ := n.Attr("src")
		box.Src = strings.TrimSpace(src)
		return box, nil
	case n.Type == html.DocumentNode || s.Display.IsBlockLevel():
		box.Kind = BlockBox
	case s.Display == css.DisplayInlineBlock:
		box.Kind = InlineBlockBox
	default:
		box.Kind = InlineBox
	}

	for _, c := range n.Children {
		cb, err := b.build(c)
		if err != nil {
			return nil, err
		}
		if cb != nil {
			box.Children = append(box.Children, cb)
		}
	}

	if box.Kind == InlineBox {
		if !hasBlockLevel(box.Children) {
			return box, nil
		}
		// An inline that contains blocks is laid out as a block.
		box.Kind = BlockBox
	}
	box.Children = fixupContainer(box)
	return box, nil
}

func hasBlockLevel(boxes []*Box) bool {
	for _, c := range boxes {
		if c.IsBlockLevel() {
			return true
		}
	}
	return false
}

// fixupContainer gives a block container children that are either all
// block-level or all inline-level.
func fixupContainer(box *Box) []*Box {
	if !hasBlockLevel(box.Children) {
		return collapseWhitespace(box.Children)
	}
	var out, run []*Box
	flush := func() {
		if len(run) > 0 && !onlyCollapsibleSpace(run) {
			anon := &Box{Kind: AnonymousBox, Node: html.NoNode, Style: css.AnonymousStyle(box.Style), Children: run}
			anon.Children = collapseWhitespace(anon.Children)
			if len(anon.Children) > 0 {
				out = append(out, anon)
			}
		}
		run = nil
	}
	for _, c := range box.Children {
		if c.IsBlockLevel() {
			flush()
			out = append(out, c)
			continue
		}
		run = append(run, c)
	}
	flush()
	return out
}

func onlyCollapsibleSpace(run []*Box) bool {
	for _, c := range run {
		if c.Kind != TextRunBox || !c.Style.WhiteSpace.CollapsesSpaces() {
			return false
		}
		if strings.TrimLeft(c.Text, " \t\n\r\f") != "" {
			return false
		}
	}
	return true
}

// collapseWhitespace processes the text runs of one inline formatting
// context in order. Collapsing carries across element boundaries, and a
// space at the start of the context is dropped.
func collapseWhitespace(boxes []*Box) []*Box {
	space := true
	return collapseRun(boxes, &space)
}

func collapseRun(boxes []*Box, space *bool) []*Box {
	out := boxes[:0]
	for _, c := range boxes {
		switch c.Kind {
		case TextRunBox:
			ws := c.Style.WhiteSpace
			if ws.CollapsesSpaces() {
				c.Text = collapseSpaces(c.Text, ws.PreservesNewlines(), space)
			} else {
				c.Text = strings.ReplaceAll(strings.ReplaceAll(c.Text, "\r\n", "\n"), "\t", "    ")
				*space = strings.HasSuffix(c.Text, "\n")
			}
			if c.Text == "" {
				continue
			}
		case InlineBox:
			c.Children = collapseRun(c.Children, space)
		case LineBreakBox:
			*space = true
		default:
			*space = false
		}
		out = append(out, c)
	}
	return out
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f'
}

func collapseSpaces(s string, keepNewlines bool, space *bool) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case keepNewlines && r == '\n':
			out := strings.TrimRight(sb.String(), " ")
			sb.Reset()
			sb.WriteString(out)
			sb.WriteByte('\n')
			*space = true
		case isSpace(r):
			if !*space {
				sb.WriteByte(' ')
				*space = true
			}
		default:
			sb.WriteRune(r)
			*space = false
		}
	}
	return sb.String()
}

func (b *builder) intrinsic(id html.NodeID, n *html.Node) Size {
	base, natural := DefaultReplacedSize, false
	if b.opts.Intrinsic != nil {
		if sz, ok := b.opts.Intrinsic(id); ok && sz.Width > 0 && sz.Height > 0 {
			base, natural = sz, true
		}
	}
	w, hasW := attrSize(n, "width")
	h, hasH := attrSize(n, "height")
	switch {
	case hasW && hasH:
		return Size{w, h}
	case hasW && natural:
		return Size{w, w * base.Height / base.Width}
	case hasH && natural:
		return Size{h * base.Width / base.Height, h}
	case hasW:
		return Size{w, base.Height}
	case hasH:
		return Size{base.Width, h}
	}
	return base
}

func attrSize(n *html.Node, name string) (float64, bool) {
	v, ok := n.Attr(name)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(v), "px"), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
