package engine

import (
	"fmt"

	"lithium/pkg/html"
	"lithium/pkg/layout"
)

// stage is the earliest pipeline stage a pass must re-run. Later values
// re-run more.
type stage int

const (
	stageNone stage = iota
	stageLayout
	stageSubtree
	stageStyle
	stageParse
)

var stageNames = [...]string{"none", "layout", "style-subtree", "style", "parse"}

func (s stage) String() string { return stageNames[s] }

// Event tells the pipeline that one of its inputs changed.
type Event interface {
	fmt.Stringer
	stage() stage
}

// MarkupChanged replaces the document source. Everything is rebuilt,
// including resource loading.
type MarkupChanged struct {
	Markup string
}

// StyleChanged re-runs the cascade for the whole document with the current
// stylesheets.
type StyleChanged struct{}

// ViewportChanged re-runs layout at a new viewport size.
type ViewportChanged struct {
	Size layout.Size
}

// AttributeChanged re-resolves the style of Node and its subtree, and
// re-lays out the boxes whose geometry may depend on it.
type AttributeChanged struct {
	Node html.NodeID
}

func (MarkupChanged) stage() stage    { return stageParse }
func (StyleChanged) stage() stage     { return stageStyle }
func (ViewportChanged) stage() stage  { return stageLayout }
func (AttributeChanged) stage() stage { return stageSubtree }

func (e MarkupChanged) String() string { return fmt.Sprintf("MarkupChanged(%d bytes)", len(e.Markup)) }
func (StyleChanged) String() string    { return "StyleChanged" }
func (e ViewportChanged) String() string {
	return fmt.Sprintf("ViewportChanged(%gx%g)", e.Size.Width, e.Size.Height)
}
func (e AttributeChanged) String() string { return fmt.Sprintf("AttributeChanged(%d)", e.Node) }
