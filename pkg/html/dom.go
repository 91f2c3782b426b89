package html

import (
	"strings"

	"lithium/pkg/diag"
)

// NodeID addresses a node in its Document's arena.
type NodeID int

// NoNode is the parent of the document root and of detached nodes.
const NoNode NodeID = -1

type NodeType int

const (
	DocumentNode NodeType = iota
	ElementNode
	TextNode
	CommentNode
)

func (t NodeType) String() string {
	switch t {
	case DocumentNode:
		return "document"
	case ElementNode:
		return "element"
	case TextNode:
		return "text"
	case CommentNode:
		return "comment"
	}
	return "unknown"
}

type Attribute struct {
	Name  string
	Value string
}

type Node struct {
	ID       NodeID
	Type     NodeType
	TagName  string
	Attrs    []Attribute
	Text     string // character data of text and comment nodes
	Parent   NodeID
	Children []NodeID
}

// StyleSourceKind tells an inline <style> block apart from a linked sheet.
type StyleSourceKind int

const (
	InlineStyle StyleSourceKind = iota
	LinkedStyle
)

// StyleSource is a stylesheet reference found in the markup, in document order.
type StyleSource struct {
	Kind StyleSourceKind
	Text string // inline CSS text
	Href string // linked stylesheet URL
	Node NodeID
}

// Document owns every node of one page. Nodes are never freed individually;
// removing a subtree only detaches it.
type Document struct {
	Nodes        []Node
	Root         NodeID
	StyleSources []StyleSource
	Diagnostics  diag.List
}

func NewDocument() *Document {
	d := &Document{}
	d.Root = d.newNode(Node{Type: DocumentNode, TagName: "#document", Parent: NoNode})
	return d
}

func (d *Document) newNode(n Node) NodeID {
	n.ID = NodeID(len(d.Nodes))
	d.Nodes = append(d.Nodes, n)
	return n.ID
}

// Node returns the node with the given id. The pointer is invalidated by the
// next node creation.
func (d *Document) Node(id NodeID) *Node {
	return &d.Nodes[id]
}

// Valid reports whether id addresses a node in this document.
func (d *Document) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(d.Nodes)
}

// Len returns the arena size.
func (d *Document) Len() int { return len(d.Nodes) }

// CreateElement creates a detached element.
func (d *Document) CreateElement(tag string, attrs ...Attribute) NodeID {
	n := Node{Type: ElementNode, TagName: strings.ToLower(tag), Parent: NoNode}
	for _, a := range attrs {
		n.setAttr(a.Name, a.Value)
	}
	return d.newNode(n)
}

// CreateText creates a detached text node.
func (d *Document) CreateText(text string) NodeID {
	return d.newNode(Node{Type: TextNode, Text: text, Parent: NoNode})
}

// CreateComment creates a detached comment node.
func (d *Document) CreateComment(text string) NodeID {
	return d.newNode(Node{Type: CommentNode, Text: text, Parent: NoNode})
}

// AppendChild moves child to the end of parent's children. Appending a node
// under itself or one of its descendants is an invariant violation.
func (d *Document) AppendChild(parent, child NodeID) error {
	return d.InsertBefore(parent, child, NoNode)
}

// InsertBefore inserts child before ref among parent's children; a ref of
// NoNode (or one not found) appends.
func (d *Document) InsertBefore(parent, child, ref NodeID) error {
	if !d.Valid(parent) || !d.Valid(child) {
		return diag.Invariant("insert of unknown node %d under %d", child, parent)
	}
	if child == d.Root {
		return diag.Invariant("document root cannot be a child")
	}
	p := d.Node(parent)
	if p.Type == TextNode || p.Type == CommentNode {
		return diag.Invariant("%s node %d cannot have children", p.Type, parent)
	}
	if d.IsAncestor(child, parent) {
		return diag.Invariant("node %d is an ancestor of %d", child, parent)
	}
	if d.Nodes[child].Parent != NoNode {
		d.RemoveChild(d.Nodes[child].Parent, child)
	}
	p = d.Node(parent)
	idx := -1
	if ref != NoNode {
		idx = indexOf(p.Children, ref)
	}
	if idx < 0 {
		p.Children = append(p.Children, child)
	} else {
		p.Children = append(p.Children, 0)
		copy(p.Children[idx+1:], p.Children[idx:])
		p.Children[idx] = child
	}
	d.Nodes[child].Parent = parent
	return nil
}

// RemoveChild detaches child from parent. It reports whether child was found.
func (d *Document) RemoveChild(parent, child NodeID) bool {
	p := d.Node(parent)
	i := indexOf(p.Children, child)
	if i < 0 {
		return false
	}
	p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
	d.Nodes[child].Parent = NoNode
	return true
}

func indexOf(ids []NodeID, id NodeID) int {
	for i, c := range ids {
		if c == id {
			return i
		}
	}
	return -1
}

// IsAncestor reports whether a is b or an ancestor of b.
func (d *Document) IsAncestor(a, b NodeID) bool {
	for steps := 0; b != NoNode; steps++ {
		if b == a {
			return true
		}
		if steps > len(d.Nodes) {
			return false
		}
		b = d.Nodes[b].Parent
	}
	return false
}

// Attr returns the value of the named attribute.
func (d *Document) Attr(id NodeID, name string) (string, bool) {
	return d.Nodes[id].Attr(name)
}

func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

func (n *Node) setAttr(name, value string) {
	name = strings.ToLower(name)
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attribute{Name: name, Value: value})
}

// SetAttribute sets or replaces an attribute, keeping the original position
// of an existing name.
func (d *Document) SetAttribute(id NodeID, name, value string) {
	d.Nodes[id].setAttr(name, value)
}

// RemoveAttribute deletes the named attribute.
func (d *Document) RemoveAttribute(id NodeID, name string) bool {
	n := d.Node(id)
	for i, a := range n.Attrs {
		if a.Name == name {
			n.Attrs = append(n.Attrs[:i:i], n.Attrs[i+1:]...)
			return true
		}
	}
	return false
}

// ID returns the element's id attribute.
func (d *Document) ID(id NodeID) string {
	v, _ := d.Attr(id, "id")
	return v
}

// Classes returns the whitespace-separated class list.
func (d *Document) Classes(id NodeID) []string {
	v, ok := d.Attr(id, "class")
	if !ok {
		return nil
	}
	return strings.Fields(v)
}

// HasClass reports whether the element carries the class.
func (d *Document) HasClass(id NodeID, class string) bool {
	for _, c := range d.Classes(id) {
		if c == class {
			return true
		}
	}
	return false
}

// ElementChildren returns the element children of id in order.
func (d *Document) ElementChildren(id NodeID) []NodeID {
	var out []NodeID
	for _, c := range d.Nodes[id].Children {
		if d.Nodes[c].Type == ElementNode {
			out = append(out, c)
		}
	}
	return out
}

// PrevElementSibling returns the closest preceding element sibling or NoNode.
func (d *Document) PrevElementSibling(id NodeID) NodeID {
	parent := d.Nodes[id].Parent
	if parent == NoNode {
		return NoNode
	}
	siblings := d.Nodes[parent].Children
	for i := indexOf(siblings, id) - 1; i >= 0; i-- {
		if d.Nodes[siblings[i]].Type == ElementNode {
			return siblings[i]
		}
	}
	return NoNode
}

// NextElementSibling returns the closest following element sibling or NoNode.
func (d *Document) NextElementSibling(id NodeID) NodeID {
	parent := d.Nodes[id].Parent
	if parent == NoNode {
		return NoNode
	}
	siblings := d.Nodes[parent].Children
	i := indexOf(siblings, id)
	if i < 0 {
		return NoNode
	}
	for i++; i < len(siblings); i++ {
		if d.Nodes[siblings[i]].Type == ElementNode {
			return siblings[i]
		}
	}
	return NoNode
}

// Ancestors returns the parent chain of id, nearest first.
func (d *Document) Ancestors(id NodeID) []NodeID {
	var out []NodeID
	for p := d.Nodes[id].Parent; p != NoNode; p = d.Nodes[p].Parent {
		out = append(out, p)
	}
	return out
}

// Walk visits id and its descendants in document order. Returning false
// from fn skips the node's children.
func (d *Document) Walk(id NodeID, fn func(id NodeID) bool) {
	if !fn(id) {
		return
	}
	for _, c := range d.Nodes[id].Children {
		d.Walk(c, fn)
	}
}

// FindElement returns the first element with the given tag in document order.
func (d *Document) FindElement(tag string) NodeID {
	found := NoNode
	d.Walk(d.Root, func(id NodeID) bool {
		if found != NoNode {
			return false
		}
		n := &d.Nodes[id]
		if n.Type == ElementNode && n.TagName == tag {
			found = id
			return false
		}
		return true
	})
	return found
}

// ElementByID returns the first element with the given id attribute.
func (d *Document) ElementByID(value string) NodeID {
	found := NoNode
	d.Walk(d.Root, func(id NodeID) bool {
		if found != NoNode {
			return false
		}
		if d.Nodes[id].Type == ElementNode && d.ID(id) == value {
			found = id
			return false
		}
		return true
	})
	return found
}

// TextContent concatenates the character data of every text node under id.
func (d *Document) TextContent(id NodeID) string {
	var sb strings.Builder
	d.Walk(id, func(c NodeID) bool {
		if d.Nodes[c].Type == TextNode {
			sb.WriteString(d.Nodes[c].Text)
		}
		return true
	})
	return sb.String()
}

// Clone returns a deep copy of the arena.
func (d *Document) Clone() *Document {
	c := &Document{
		Nodes:        make([]Node, len(d.Nodes)),
		Root:         d.Root,
		StyleSources: append([]StyleSource(nil), d.StyleSources...),
		Diagnostics:  append(diag.List(nil), d.Diagnostics...),
	}
	for i, n := range d.Nodes {
		n.Attrs = append([]Attribute(nil), n.Attrs...)
		n.Children = append([]NodeID(nil), n.Children...)
		c.Nodes[i] = n
	}
	return c
}

// Validate checks the tree invariants: one parentless root, consistent
// parent links and no cycles. A failure is always fatal.
func (d *Document) Validate() error {
	if len(d.Nodes) == 0 || d.Nodes[d.Root].Type != DocumentNode {
		return diag.Invariant("document has no root")
	}
	if d.Nodes[d.Root].Parent != NoNode {
		return diag.Invariant("document root has parent %d", d.Nodes[d.Root].Parent)
	}
	seen := make([]bool, len(d.Nodes))
	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if seen[id] {
			return diag.Invariant("node %d reached twice", id)
		}
		seen[id] = true
		for _, c := range d.Nodes[id].Children {
			if !d.Valid(c) {
				return diag.Invariant("node %d has unknown child %d", id, c)
			}
			if c == d.Root || d.Nodes[c].Type == DocumentNode {
				return diag.Invariant("node %d has a document child", id)
			}
			if d.Nodes[c].Parent != id {
				return diag.Invariant("node %d lists child %d whose parent is %d", id, c, d.Nodes[c].Parent)
			}
			if err := visit(c); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(d.Root)
}

func isVoidElement(tag string) bool {
	switch tag {
	case "br", "hr", "img", "input", "meta", "link", "area", "base",
		"col", "embed", "param", "source", "track", "wbr":
		return true
	}
	return false
}

// IsVoidElement reports whether the tag can never have children.
func IsVoidElement(tag string) bool { return isVoidElement(tag) }
