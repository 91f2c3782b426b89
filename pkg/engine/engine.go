// Package engine drives the rendering pipeline: markup is parsed into a
// document, resources are loaded, styles are resolved, boxes are laid out
// and a display list is produced.
//
// A Pipeline keeps the results of its last complete pass and re-runs only
// the stages an invalidation requires. Document mutations are queued and
// applied at the start of the next pass, so a running pass always sees one
// snapshot of the document. An invalidation arriving while a pass runs
// makes that pass fail with ErrSuperseded; its partial results are
// discarded and the queued work is kept for the next Run.
package engine

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"lithium/pkg/css"
	"lithium/pkg/diag"
	"lithium/pkg/html"
	"lithium/pkg/images"
	"lithium/pkg/layout"
	"lithium/pkg/paint"
	"lithium/pkg/resource"
	"lithium/pkg/text"
)

var (
	// ErrSuperseded is returned by Run when an invalidation arrived during
	// the pass.
	ErrSuperseded = errors.New("pass superseded by a newer invalidation")
	// ErrNoDocument is returned by Run before any markup was loaded.
	ErrNoDocument = errors.New("no document loaded")
)

// Options configure a Pipeline.
type Options struct {
	Viewport layout.Size
	// Shaper measures text. Nil selects text.FixedShaper.
	Shaper text.Shaper
	// Fetcher loads linked stylesheets and images. Nil allows data: URIs
	// and local files relative to the working directory.
	Fetcher resource.Fetcher
	// Images caches decoded images. Nil creates a private cache.
	Images *images.Cache
	// UserAgent replaces the built-in user agent stylesheet when non-nil.
	UserAgent *css.Stylesheet
	// Parallelism bounds the goroutines of each stage. Zero lets every
	// stage pick its own default.
	Parallelism int
	Log         logrus.FieldLogger
	// OnLayout is called for every box laid out from scratch. It must be
	// safe for concurrent use.
	OnLayout func(html.NodeID)
}

// Mutation changes the document and returns the nodes whose subtree it
// touched. A mutation that inserts or removes children returns the
// parent.
type Mutation func(doc *html.Document) []html.NodeID

// Frame is the complete result of one pass. It is never modified after
// Run returns it.
type Frame struct {
	Generation  uint64
	Document    *html.Document
	Styles      *css.StyleMap
	Boxes       *layout.Box
	Layout      *layout.Result
	Display     paint.List
	Diagnostics diag.List
	Stats       Stats
}

// Stats describe the work done by the pass that produced a Frame.
type Stats struct {
	// Rerun names the earliest stage the pass had to re-run.
	Rerun string
	// Restyled counts the nodes whose style was recomputed.
	Restyled int
	Layout   layout.Stats
	Elapsed  time.Duration
}

// work is the invalidation state queued between passes.
type work struct {
	dirty     stage
	markup    *string
	viewport  *layout.Size
	mutations []Mutation
	nodes     []html.NodeID
}

func (w *work) empty() bool {
	return w.dirty == stageNone && len(w.mutations) == 0
}

// then returns w followed by the newer work n.
func (w work) then(n work) work {
	if n.markup != nil {
		w.mutations, w.nodes = nil, nil
		w.markup = n.markup
	}
	if n.viewport != nil {
		w.viewport = n.viewport
	}
	if n.dirty > w.dirty {
		w.dirty = n.dirty
	}
	w.mutations = append(w.mutations, n.mutations...)
	w.nodes = append(w.nodes, n.nodes...)
	return w
}

// state is what a committed pass leaves for the next one.
type state struct {
	markup     string
	loaded     bool
	viewport   layout.Size
	doc        *html.Document
	parseDiags diag.List
	resources  *resource.Result
	styles     *css.StyleMap
	styleDiags diag.List
}

type Pipeline struct {
	opts   Options
	log    logrus.FieldLogger
	loader *resource.Loader
	cache  *layout.Cache

	mu      sync.Mutex
	gen     uint64
	pending work
	frame   *Frame

	// runMu serializes passes; cur is only touched while it is held.
	runMu sync.Mutex
	cur   state
}

func New(opts Options) *Pipeline {
	if opts.Shaper == nil {
		opts.Shaper = text.FixedShaper{}
	}
	if opts.Images == nil {
		opts.Images = images.NewCache()
	}
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("component", "engine")
	return &Pipeline{
		opts: opts,
		log:  log,
		loader: &resource.Loader{
			Fetcher:     opts.Fetcher,
			Images:      opts.Images,
			Parallelism: opts.Parallelism,
			Log:         log.WithField("component", "resource"),
		},
		cache: layout.NewCache(),
		cur:   state{viewport: opts.Viewport},
	}
}

// Images returns the cache holding the document's decoded images.
func (p *Pipeline) Images() *images.Cache { return p.opts.Images }

// Load replaces the document with markup.
func (p *Pipeline) Load(markup string) {
	p.Invalidate(MarkupChanged{Markup: markup})
}

// Invalidate records that an input changed. A pass running concurrently
// will fail with ErrSuperseded.
func (p *Pipeline) Invalidate(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	n := work{dirty: ev.stage()}
	switch ev := ev.(type) {
	case MarkupChanged:
		n.markup = &ev.Markup
	case ViewportChanged:
		size := ev.Size
		n.viewport = &size
	case AttributeChanged:
		n.nodes = []html.NodeID{ev.Node}
	}
	p.pending = p.pending.then(n)
	p.log.WithField("event", ev.String()).Debug("invalidated")
}

// Mutate queues fn to run against the document at the start of the next
// pass. Mutations run in the order they were queued.
func (p *Pipeline) Mutate(fn Mutation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.pending = p.pending.then(work{dirty: stageSubtree, mutations: []Mutation{fn}})
}

// SetAttribute queues an attribute change on node.
func (p *Pipeline) SetAttribute(node html.NodeID, name, value string) {
	p.Mutate(func(doc *html.Document) []html.NodeID {
		if !doc.Valid(node) || doc.Node(node).Type != html.ElementNode {
			return nil
		}
		doc.SetAttribute(node, name, value)
		return []html.NodeID{node}
	})
}

// Generation counts invalidations. A Frame carries the generation it was
// built for.
func (p *Pipeline) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// Frame returns the last committed frame, or nil.
func (p *Pipeline) Frame() *Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frame
}

// Run brings the pipeline up to date and returns the resulting frame. When
// nothing changed since the last pass the committed frame is returned.
// Run fails with ErrSuperseded if an invalidation arrives before the pass
// completes, with the context's error if ctx ends, and with an invariant
// error on engine defects. Problems in the input never fail a pass; they
// are reported in Frame.Diagnostics.
func (p *Pipeline) Run(ctx context.Context) (*Frame, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	p.mu.Lock()
	w, gen := p.pending, p.gen
	if w.empty() && p.frame != nil {
		f := p.frame
		p.mu.Unlock()
		return f, nil
	}
	p.pending = work{}
	p.mu.Unlock()

	start := time.Now()
	next, f, err := p.pass(ctx, w, gen)
	if err == nil {
		p.mu.Lock()
		if p.gen != gen {
			err = ErrSuperseded
		} else {
			f.Stats.Elapsed = time.Since(start)
			p.frame = f
			p.cur = next
		}
		p.mu.Unlock()
	}
	if err != nil {
		p.mu.Lock()
		p.pending = w.then(p.pending)
		p.mu.Unlock()
		p.log.WithError(err).WithField("generation", gen).Debug("pass abandoned")
		return nil, err
	}
	p.log.WithFields(logrus.Fields{
		"generation":  gen,
		"rerun":       f.Stats.Rerun,
		"restyled":    f.Stats.Restyled,
		"blocks":      f.Stats.Layout.Blocks,
		"cache_hits":  f.Stats.Layout.CacheHits,
		"commands":    len(f.Display),
		"diagnostics": len(f.Diagnostics),
		"elapsed":     f.Stats.Elapsed,
	}).Debug("pass complete")
	return f, nil
}

// pass runs the stages w requires on a copy of the committed state.
func (p *Pipeline) pass(ctx context.Context, w work, gen uint64) (state, *Frame, error) {
	next := p.cur
	check := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.Generation() != gen {
			return ErrSuperseded
		}
		return nil
	}

	if w.markup != nil {
		next.markup, next.loaded = *w.markup, true
	}
	if w.viewport != nil {
		next.viewport = *w.viewport
	}
	if !next.loaded {
		return next, nil, ErrNoDocument
	}
	dirty := w.dirty
	if next.doc == nil {
		dirty = stageParse
	}
	stats := Stats{Rerun: dirty.String()}

	if dirty >= stageParse {
		doc, err := html.Parse(next.markup)
		if err != nil && diag.IsFatal(err) {
			return next, nil, err
		}
		next.doc, next.parseDiags = doc, doc.Diagnostics
		if err := check(); err != nil {
			return next, nil, err
		}
		res, err := p.loader.Load(ctx, doc)
		if err != nil {
			return next, nil, err
		}
		next.resources = res
	}

	nodes := w.nodes
	if len(w.mutations) > 0 {
		if dirty < stageParse {
			next.doc = next.doc.Clone()
		}
		for _, m := range w.mutations {
			nodes = append(nodes, m(next.doc)...)
		}
		if err := next.doc.Validate(); err != nil {
			return next, nil, err
		}
	}
	if err := check(); err != nil {
		return next, nil, err
	}

	cssOpts := css.Options{UserAgent: p.opts.UserAgent, Parallelism: p.opts.Parallelism}
	switch {
	case dirty >= stageStyle:
		r := css.NewResolver(next.doc, next.resources.Sheets, cssOpts)
		styles, err := r.Resolve(ctx)
		if err != nil {
			return next, nil, err
		}
		next.styles, next.styleDiags = styles, r.Diagnostics()
		stats.Restyled = styles.Len()
		p.cache.Clear()
	case dirty == stageSubtree:
		r := css.NewResolver(next.doc, next.resources.Sheets, cssOpts)
		styles := next.styles.Clone()
		for _, n := range dedupe(nodes) {
			if !next.doc.Valid(n) {
				p.log.WithField("node", n).Debug("skipping invalid node")
				continue
			}
			res, err := r.ResolveSubtree(ctx, styles, n)
			if err != nil {
				return next, nil, err
			}
			stats.Restyled += len(res.Recomputed)
			p.cache.Invalidate(next.doc, n)
			for _, c := range res.Changed {
				p.cache.Invalidate(next.doc, c)
			}
		}
		next.styles = styles
		next.styleDiags = union(next.styleDiags, r.Diagnostics())
	}
	if err := check(); err != nil {
		return next, nil, err
	}

	boxes, err := layout.BuildBoxTree(next.doc, next.styles, layout.BuildOptions{Intrinsic: p.intrinsic(next.doc)})
	if err != nil {
		return next, nil, err
	}
	lres, err := layout.Layout(ctx, boxes, layout.Config{
		Viewport:    next.viewport,
		Shaper:      p.opts.Shaper,
		Cache:       p.cache,
		Parallelism: p.opts.Parallelism,
		OnLayout:    p.opts.OnLayout,
	})
	if err != nil {
		return next, nil, err
	}
	stats.Layout = lres.Stats
	if err := check(); err != nil {
		return next, nil, err
	}

	list := paint.Optimize(paint.Build(lres.Root))
	if err := list.Validate(); err != nil {
		return next, nil, err
	}

	var all diag.Collector
	all.Merge(next.parseDiags)
	all.Merge(next.resources.Diagnostics)
	all.Merge(next.styleDiags)
	all.Merge(lres.Diagnostics)
	return next, &Frame{
		Generation:  gen,
		Document:    next.doc,
		Styles:      next.styles,
		Boxes:       boxes,
		Layout:      lres,
		Display:     list,
		Diagnostics: all.List(),
		Stats:       stats,
	}, nil
}

// intrinsic reports the natural size of loaded images.
func (p *Pipeline) intrinsic(doc *html.Document) func(html.NodeID) (layout.Size, bool) {
	return func(id html.NodeID) (layout.Size, bool) {
		src, ok := doc.Attr(id, "src")
		if !ok {
			return layout.Size{}, false
		}
		w, h, ok := p.opts.Images.Size(strings.TrimSpace(src))
		if !ok {
			return layout.Size{}, false
		}
		return layout.Size{Width: float64(w), Height: float64(h)}, true
	}
}

func dedupe(ids []html.NodeID) []html.NodeID {
	out := append([]html.NodeID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, id := range out {
		if i == 0 || id != out[n-1] {
			out[n] = id
			n++
		}
	}
	return out[:n]
}

// union appends the diagnostics of b not already in a.
func union(a, b diag.List) diag.List {
	seen := make(map[string]bool, len(a))
	for _, d := range a {
		seen[d.Error()] = true
	}
	out := append(diag.List(nil), a...)
	for _, d := range b {
		if !seen[d.Error()] {
			seen[d.Error()] = true
			out = append(out, d)
		}
	}
	return out
}
