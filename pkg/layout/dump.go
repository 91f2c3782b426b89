package layout

import (
	"fmt"
	"strings"

	"github.com/xlab/treeprint"

	"lithium/pkg/html"
)

// Dump renders the fragment tree with absolute content rectangles for
// debugging.
func Dump(doc *html.Document, root *Fragment) string {
	abs := root.At(0, 0)
	tree := treeprint.NewWithRoot(fragmentLabel(doc, root, abs))
	dumpFragments(doc, tree, root, abs)
	return tree.String()
}

func dumpFragments(doc *html.Document, tree treeprint.Tree, f *Fragment, abs Dimensions) {
	for _, c := range f.Children {
		cabs := c.At(abs.Content.X, abs.Content.Y)
		if len(c.Children) == 0 {
			tree.AddNode(fragmentLabel(doc, c, cabs))
			continue
		}
		dumpFragments(doc, tree.AddBranch(fragmentLabel(doc, c, cabs)), c, cabs)
	}
}

func fragmentLabel(doc *html.Document, f *Fragment, abs Dimensions) string {
	r := abs.Content
	pos := fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.Width, r.Height)
	if f.IsText() {
		return fmt.Sprintf("text %q %s", f.Text, pos)
	}
	return fmt.Sprintf("%s %s", boxLabel(doc, f.Box), pos)
}

// DumpBoxes renders the box tree for debugging.
func DumpBoxes(doc *html.Document, root *Box) string {
	tree := treeprint.NewWithRoot(boxLabel(doc, root))
	dumpBoxes(doc, tree, root)
	return tree.String()
}

func dumpBoxes(doc *html.Document, tree treeprint.Tree, b *Box) {
	for _, c := range b.Children {
		if len(c.Children) == 0 {
			tree.AddNode(boxLabel(doc, c))
			continue
		}
		dumpBoxes(doc, tree.AddBranch(boxLabel(doc, c)), c)
	}
}

func boxLabel(doc *html.Document, b *Box) string {
	if b.Kind == TextRunBox {
		return fmt.Sprintf("text %q", b.Text)
	}
	if b.Node == html.NoNode || doc == nil || !doc.Valid(b.Node) {
		return b.Kind.String()
	}
	n := doc.Node(b.Node)
	var sb strings.Builder
	sb.WriteString(b.Kind.String())
	sb.WriteString(" <")
	if n.Type == html.DocumentNode {
		sb.WriteString("#document")
	} else {
		sb.WriteString(n.TagName)
	}
	if id := doc.ID(b.Node); id != "" {
		sb.WriteString("#" + id)
	}
	sb.WriteString(">")
	return sb.String()
}
