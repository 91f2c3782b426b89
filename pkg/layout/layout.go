// Package layout turns a styled document into positioned fragments.
//
// Layout happens in two steps. BuildBoxTree generates boxes from the DOM
// and computed styles. Layout then places the boxes inside the viewport:
// block-level boxes stack vertically with collapsing margins, and inline
// content is flattened into items, broken greedily into lines and aligned
// on a shared baseline.
//
// Layout is a pure function of the box tree, the viewport and the shaper.
// Fragments carry positions relative to their parent, which lets the Cache
// reuse a subtree when only an unrelated part of the document changed.
package layout

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"lithium/pkg/diag"
	"lithium/pkg/html"
	"lithium/pkg/text"
)

// Config holds the inputs of a layout pass besides the box tree.
type Config struct {
	Viewport Size
	// Shaper measures text. Nil selects text.FixedShaper.
	Shaper text.Shaper
	// Cache, if set, is consulted and filled during the pass.
	Cache *Cache
	// Parallelism bounds the goroutines laying out sibling subtrees. Zero
	// means GOMAXPROCS; one disables fan-out.
	Parallelism int
	// OnLayout is called for every element box laid out from scratch, that
	// is, not served from the Cache. It must be safe for concurrent use.
	OnLayout func(node html.NodeID)
}

// Stats count the work done by one pass.
type Stats struct {
	// Blocks is the number of block and atomic boxes laid out from scratch.
	Blocks int64
	// CacheHits is the number of subtrees reused from the Cache.
	CacheHits int64
}

// Result is the output of a layout pass.
type Result struct {
	Root        *Fragment
	Diagnostics diag.List
	Stats       Stats
}

type layouter struct {
	cfg    Config
	root   *Box
	shaper text.Shaper
	cache  *Cache
	diags  diag.Collector
	sem    chan struct{}

	blocks atomic.Int64
	hits   atomic.Int64
}

// Layout lays out the box tree rooted at root. Constraint problems such as
// a negative available width are clamped to zero and reported as
// diagnostics; an error is returned only for cancellation and invariant
// violations.
func Layout(ctx context.Context, root *Box, cfg Config) (*Result, error) {
	if root == nil {
		return nil, diag.Invariant("layout of a nil box tree")
	}
	l := &layouter{cfg: cfg, root: root, shaper: cfg.Shaper, cache: cfg.Cache}
	if l.shaper == nil {
		l.shaper = text.FixedShaper{}
	}
	p := cfg.Parallelism
	if p == 0 {
		p = runtime.GOMAXPROCS(0)
	}
	if p > 1 {
		l.sem = make(chan struct{}, p-1)
	}

	vw, vh := cfg.Viewport.Width, cfg.Viewport.Height
	if !finite(vw) || vw < 0 {
		l.violation(root, "viewport width %g clamped to 0", vw)
		vw = 0
	}
	if !finite(vh) || vh < 0 {
		l.violation(root, "viewport height %g clamped to 0", vh)
		vh = 0
	}

	f, err := l.layoutBox(ctx, root, NewConstraintSpace(vw, vh), false)
	if err != nil {
		return nil, err
	}
	d := f.Dimensions
	f = f.placed(d.Margin.Left+d.Border.Left+d.Padding.Left, d.Margin.Top+d.Border.Top+d.Padding.Top)
	return &Result{
		Root:        f,
		Diagnostics: l.diags.List(),
		Stats:       Stats{Blocks: l.blocks.Load(), CacheHits: l.hits.Load()},
	}, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (l *layouter) violation(box *Box, format string, args ...interface{}) {
	d := diag.New(diag.ErrLayoutConstraint, diag.StageLayout, format, args...)
	if box != nil {
		d.WithNode(int(box.Node))
	}
	l.diags.Add(d)
}

// layoutBox lays out a block-level box, or an atomic inline when atomic is
// set, consulting the cache first. The fragment is unplaced.
func (l *layouter) layoutBox(ctx context.Context, box *Box, cs ConstraintSpace, atomic bool) (*Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cacheable := l.cache != nil && box.Node != html.NoNode
	if cacheable {
		if f, ok := l.cache.get(box, cs, atomic); ok {
			l.hits.Add(1)
			return f, nil
		}
	}
	l.blocks.Add(1)
	if l.cfg.OnLayout != nil && box.Node != html.NoNode {
		l.cfg.OnLayout(box.Node)
	}
	f, err := l.layoutBlock(ctx, box, cs, atomic)
	if err != nil {
		return nil, err
	}
	if cacheable {
		l.cache.put(box, cs, atomic, f)
	}
	return f, nil
}

// layoutChildren lays out block-level siblings. Each sibling depends only
// on the constraint space, so subtrees run concurrently while workers are
// free; the caller stacks the results in order.
func (l *layouter) layoutChildren(ctx context.Context, children []*Box, cs ConstraintSpace) ([]*Fragment, error) {
	out := make([]*Fragment, len(children))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range children {
		i, c := i, c // per-iteration copies (go 1.21 loop-variable semantics)
		if !c.IsBlockLevel() {
			_ = g.Wait()
			return nil, diag.Invariant("inline %s box %d among block-level siblings", c.Kind, c.Node)
		}
		select {
		case l.sem <- struct{}{}:
			g.Go(func() error {
				defer func() { <-l.sem }()
				f, err := l.layoutBox(gctx, c, cs, false)
				out[i] = f
				return err
			})
		default:
			f, err := l.layoutBox(gctx, c, cs, false)
			if err != nil {
				_ = g.Wait()
				return nil, err
			}
			out[i] = f
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// At returns f's dimensions in the coordinate space where its parent's
// content box starts at ox, oy.
func (f *Fragment) At(ox, oy float64) Dimensions {
	d := f.Dimensions
	d.Content.X += ox
	d.Content.Y += oy
	return d
}

// Walk visits the fragment tree in paint order with absolute dimensions.
// Returning false from fn skips the fragment's children.
func Walk(root *Fragment, fn func(f *Fragment, abs Dimensions) bool) {
	walk(root, 0, 0, fn)
}

func walk(f *Fragment, ox, oy float64, fn func(*Fragment, Dimensions) bool) {
	abs := f.At(ox, oy)
	if !fn(f, abs) {
		return
	}
	for _, c := range f.Children {
		walk(c, abs.Content.X, abs.Content.Y, fn)
	}
}

// Find returns the absolute dimensions of the first fragment generated by
// node.
func (r *Result) Find(node html.NodeID) (Dimensions, bool) {
	all := r.FindAll(node)
	if len(all) == 0 {
		return Dimensions{}, false
	}
	return all[0], true
}

// FindAll returns the absolute dimensions of every fragment generated by
// node, such as the per-line pieces of an inline element.
func (r *Result) FindAll(node html.NodeID) []Dimensions {
	var out []Dimensions
	Walk(r.Root, func(f *Fragment, abs Dimensions) bool {
		if f.Box != nil && f.Box.Node == node {
			out = append(out, abs)
		}
		return true
	})
	return out
}
