package html

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"
)

// Serialize returns the markup of the children of the document root.
func (d *Document) Serialize() string {
	return d.SerializeInner(d.Root)
}

// SerializeInner returns the markup of id's children.
func (d *Document) SerializeInner(id NodeID) string {
	var sb strings.Builder
	for _, c := range d.Nodes[id].Children {
		d.serializeNode(&sb, c)
	}
	return sb.String()
}

// SerializeOuter returns the markup of id including its own tags.
func (d *Document) SerializeOuter(id NodeID) string {
	var sb strings.Builder
	d.serializeNode(&sb, id)
	return sb.String()
}

func (d *Document) serializeNode(sb *strings.Builder, id NodeID) {
	n := &d.Nodes[id]
	switch n.Type {
	case DocumentNode:
		for _, c := range n.Children {
			d.serializeNode(sb, c)
		}
		return
	case TextNode:
		if p := n.Parent; p != NoNode && isRawTextElement(d.Nodes[p].TagName) {
			sb.WriteString(n.Text)
			return
		}
		sb.WriteString(escapeText(n.Text))
		return
	case CommentNode:
		sb.WriteString("<!--")
		sb.WriteString(n.Text)
		sb.WriteString("-->")
		return
	}

	sb.WriteByte('<')
	sb.WriteString(n.TagName)
	// Attributes keep their insertion order.
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		sb.WriteString(a.Name)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Value))
		sb.WriteByte('"')
	}
	sb.WriteByte('>')
	if isVoidElement(n.TagName) {
		return
	}
	for _, c := range n.Children {
		d.serializeNode(sb, c)
	}
	sb.WriteString("</")
	sb.WriteString(n.TagName)
	sb.WriteByte('>')
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\u00a0", "&nbsp;")
	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;", "\u00a0", "&nbsp;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }

// Dump renders the tree under id for debugging.
func (d *Document) Dump(id NodeID) string {
	tree := treeprint.NewWithRoot(d.label(id))
	d.dumpChildren(tree, id)
	return tree.String()
}

func (d *Document) dumpChildren(tree treeprint.Tree, id NodeID) {
	for _, c := range d.Nodes[id].Children {
		if len(d.Nodes[c].Children) == 0 {
			tree.AddNode(d.label(c))
			continue
		}
		d.dumpChildren(tree.AddBranch(d.label(c)), c)
	}
}

func (d *Document) label(id NodeID) string {
	n := &d.Nodes[id]
	switch n.Type {
	case TextNode:
		return fmt.Sprintf("#text %q", n.Text)
	case CommentNode:
		return fmt.Sprintf("#comment %q", n.Text)
	case DocumentNode:
		return "#document"
	}
	var sb strings.Builder
	sb.WriteString(n.TagName)
	for _, a := range n.Attrs {
		fmt.Fprintf(&sb, " %s=%q", a.Name, a.Value)
	}
	return sb.String()
}
