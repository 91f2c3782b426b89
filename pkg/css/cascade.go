package css

import (
	"context"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"lithium/pkg/diag"
	"lithium/pkg/html"
)

// cascade buckets, lowest precedence first
const (
	bucketUANormal = iota
	bucketUserNormal
	bucketAuthorNormal
	bucketInlineNormal
	bucketAuthorImportant
	bucketInlineImportant
	bucketUserImportant
	bucketUAImportant
)

func bucketFor(origin Origin, important bool) int {
	switch origin {
	case OriginUserAgent:
		if important {
			return bucketUAImportant
		}
		return bucketUANormal
	case OriginUser:
		if important {
			return bucketUserImportant
		}
		return bucketUserNormal
	}
	if important {
		return bucketAuthorImportant
	}
	return bucketAuthorNormal
}

// inlineSpecificity sorts style attributes above every selector within
// their bucket.
var inlineSpecificity = Specificity{A: 1 << 20}

// candidate is one longhand competing in the cascade for one element.
type candidate struct {
	property    string
	value       string
	bucket      int
	specificity Specificity
	order       int
	// key identifies the source declaration for diagnostics.
	key declKey
}

type declKey struct {
	rule *Rule
	decl int
	node html.NodeID
}

func (a *candidate) less(b *candidate) bool {
	if a.bucket != b.bucket {
		return a.bucket < b.bucket
	}
	if a.specificity != b.specificity {
		return a.specificity.Less(b.specificity)
	}
	return a.order < b.order
}

// StyleMap holds the computed style of every node, indexed by NodeID.
// Comment nodes have no style.
type StyleMap struct {
	styles []*Style
}

// Get returns the style of id, or nil.
func (m *StyleMap) Get(id html.NodeID) *Style {
	if m == nil || id < 0 || int(id) >= len(m.styles) {
		return nil
	}
	return m.styles[id]
}

func (m *StyleMap) Len() int { return len(m.styles) }

// Clone copies the map. Styles are immutable once computed, so the
// pointers are shared.
func (m *StyleMap) Clone() *StyleMap {
	out := &StyleMap{styles: make([]*Style, len(m.styles))}
	copy(out.styles, m.styles)
	return out
}

func (m *StyleMap) grow(n int) {
	if n > len(m.styles) {
		m.styles = append(m.styles, make([]*Style, n-len(m.styles))...)
	}
}

// Options configure a Resolver.
type Options struct {
	// UserAgent replaces the built-in user agent stylesheet when non-nil.
	UserAgent *Stylesheet
	// RootFontSize is what rem resolves against. Defaults to 16.
	RootFontSize float64
	// Parallelism bounds the goroutines used for sibling subtrees. Values
	// below 2 resolve sequentially.
	Parallelism int
}

// Resolver computes styles for a document against a fixed set of
// stylesheets. It may be reused across passes while the sheets are
// unchanged; the document may be mutated between calls.
type Resolver struct {
	doc      *html.Document
	index    *ruleIndex
	opts     Options
	diags    *diag.Collector
	reported sync.Map // declKey -> struct{}
	// inline caches parsed style attributes by their text.
	inline sync.Map // string -> []Declaration
}

func NewResolver(doc *html.Document, sheets []*Stylesheet, opts Options) *Resolver {
	ua := opts.UserAgent
	if ua == nil {
		ua = UserAgentStylesheet()
	}
	if opts.RootFontSize <= 0 {
		opts.RootFontSize = initialStyle.FontSize
	}
	all := append([]*Stylesheet{ua}, sheets...)
	return &Resolver{
		doc:   doc,
		index: newRuleIndex(all),
		opts:  opts,
		diags: &diag.Collector{},
	}
}

// Diagnostics returns the UnresolvedProperty and MalformedDeclaration
// diagnostics found so far. Each source declaration is reported once.
func (r *Resolver) Diagnostics() diag.List { return r.diags.List() }

// Resolve computes a style for every element and text node, top-down.
// Sibling subtrees may be resolved concurrently; the result does not
// depend on scheduling.
func (r *Resolver) Resolve(ctx context.Context) (*StyleMap, error) {
	m := &StyleMap{}
	m.grow(r.doc.Len())
	root := initialStyle
	root.Display = DisplayBlock
	root.finish()
	m.styles[r.doc.Root] = &root
	if err := r.resolveChildren(ctx, m, r.doc.Root, &root, nil, true); err != nil {
		return nil, err
	}
	return m, nil
}

// SubtreeResult reports the effect of an incremental resolve.
type SubtreeResult struct {
	// Recomputed lists every node whose style was recomputed.
	Recomputed []html.NodeID
	// Changed lists the nodes whose computed style differs from before.
	Changed []html.NodeID
}

// ResolveSubtree recomputes node and its descendants in m, leaving the
// rest of the document alone. When selectors depend on siblings the
// parent's subtree is recomputed instead.
func (r *Resolver) ResolveSubtree(ctx context.Context, m *StyleMap, node html.NodeID) (SubtreeResult, error) {
	var res SubtreeResult
	if !r.doc.Valid(node) {
		return res, diag.Invariant("resolve subtree: invalid node %d", node)
	}
	m.grow(r.doc.Len())
	start := node
	if r.index.sibling && r.doc.Nodes[node].Parent != html.NoNode && r.doc.Nodes[node].Parent != r.doc.Root {
		start = r.doc.Nodes[node].Parent
	}
	if start == r.doc.Root {
		full, err := r.Resolve(ctx)
		if err != nil {
			return res, err
		}
		for id := range full.styles {
			if full.styles[id] == nil && m.styles[id] == nil {
				continue
			}
			res.Recomputed = append(res.Recomputed, html.NodeID(id))
			if !sameStyle(full.styles[id], m.styles[id]) {
				res.Changed = append(res.Changed, html.NodeID(id))
			}
		}
		m.styles = full.styles
		return res, nil
	}

	parent := m.Get(r.doc.Nodes[start].Parent)
	if parent == nil {
		return res, diag.Invariant("resolve subtree: parent of %d has no style", start)
	}
	var mu sync.Mutex
	track := func(id html.NodeID, old, now *Style) {
		mu.Lock()
		res.Recomputed = append(res.Recomputed, id)
		if !sameStyle(old, now) {
			res.Changed = append(res.Changed, id)
		}
		mu.Unlock()
	}
	if err := r.resolveNode(ctx, m, start, parent, track, true); err != nil {
		return res, err
	}
	sort.Slice(res.Recomputed, func(i, j int) bool { return res.Recomputed[i] < res.Recomputed[j] })
	sort.Slice(res.Changed, func(i, j int) bool { return res.Changed[i] < res.Changed[j] })
	return res, nil
}

func sameStyle(a, b *Style) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type trackFunc func(id html.NodeID, old, now *Style)

// resolveNode computes id's style and then its children's. fanout allows
// the children to be spread over goroutines.
func (r *Resolver) resolveNode(ctx context.Context, m *StyleMap, id html.NodeID, parent *Style, track trackFunc, fanout bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n := &r.doc.Nodes[id]
	var s *Style
	switch n.Type {
	case html.ElementNode:
		s = r.computeElement(id, parent)
	case html.TextNode:
		s = parent.inherit()
		s.finish()
	default:
		return nil
	}
	if track != nil {
		old := m.styles[id]
		track(id, old, s)
		// unchanged styles keep their identity so cached layout stays valid
		if sameStyle(old, s) {
			s = old
		}
	}
	m.styles[id] = s
	return r.resolveChildren(ctx, m, id, s, track, fanout)
}

// resolveChildren fans out at the first level with several children; the
// subtrees below it run sequentially inside their goroutine.
func (r *Resolver) resolveChildren(ctx context.Context, m *StyleMap, id html.NodeID, s *Style, track trackFunc, fanout bool) error {
	children := r.doc.Nodes[id].Children
	if !fanout || r.opts.Parallelism < 2 || len(children) < 2 {
		for _, c := range children {
			if err := r.resolveNode(ctx, m, c, s, track, fanout); err != nil {
				return err
			}
		}
		return nil
	}
	// Each child subtree writes disjoint entries of m.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Parallelism)
	for _, c := range children {
		c := c
		g.Go(func() error { return r.resolveNode(gctx, m, c, s, track, false) })
	}
	return g.Wait()
}

// computeElement runs the cascade for one element.
func (r *Resolver) computeElement(id html.NodeID, parent *Style) *Style {
	var cands []candidate
	for _, ir := range r.index.match(r.doc, id) {
		for i, d := range ir.rule.Declarations {
			key := declKey{rule: ir.rule, decl: i, node: html.NoNode}
			cands = r.appendDeclaration(cands, d, bucketFor(ir.origin, d.Important), ir.specificity, ir.order, key)
		}
	}
	if text, ok := r.doc.Attr(id, "style"); ok && strings.TrimSpace(text) != "" {
		for i, d := range r.inlineDeclarations(id, text) {
			b := bucketInlineNormal
			if d.Important {
				b = bucketInlineImportant
			}
			cands = r.appendDeclaration(cands, d, b, inlineSpecificity, 0, declKey{decl: i, node: id})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].less(&cands[j]) })

	winners := make(map[string]*candidate, len(cands))
	for i := range cands {
		winners[cands[i].property] = &cands[i]
	}

	s := parent.inherit()
	cx := &computeContext{parent: parent, rootFontSize: r.opts.RootFontSize}
	// font-size first so em resolves; color before anything using currentcolor.
	for _, name := range []string{"font-size", "color"} {
		if c, ok := winners[name]; ok {
			r.applyValue(s, c, cx, id)
			delete(winners, name)
		}
	}
	names := make([]string, 0, len(winners))
	for name := range winners {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r.applyValue(s, winners[name], cx, id)
	}
	s.finish()
	return s
}

func (r *Resolver) inlineDeclarations(id html.NodeID, text string) []Declaration {
	if v, ok := r.inline.Load(text); ok {
		return v.([]Declaration)
	}
	decls, errs := ParseDeclarations(text)
	for _, d := range errs {
		d.Stage = diag.StageStyle
		r.diags.Add(d.WithNode(int(id)))
	}
	r.inline.Store(text, decls)
	return decls
}

// appendDeclaration expands shorthands and reports unknown properties.
func (r *Resolver) appendDeclaration(cands []candidate, d Declaration, bucket int, sp Specificity, order int, key declKey) []candidate {
	longhands, ok := Expand(d.Property, d.Value)
	if !ok {
		r.report(key, d, "invalid value %q for %s", d.Value, d.Property)
	}
	for _, lh := range longhands {
		if _, known := properties[lh.Property]; !known {
			r.report(key, d, "unknown property %s", lh.Property)
			continue
		}
		cands = append(cands, candidate{
			property:    lh.Property,
			value:       lh.Value,
			bucket:      bucket,
			specificity: sp,
			order:       order,
			key:         key,
		})
	}
	return cands
}

func (r *Resolver) report(key declKey, d Declaration, format string, args ...interface{}) {
	if _, dup := r.reported.LoadOrStore(key, struct{}{}); dup {
		return
	}
	dg := diag.At(diag.ErrUnresolvedProperty, diag.StageStyle, d.Line, d.Column, format, args...)
	if key.node != html.NoNode {
		dg.WithNode(int(key.node))
	}
	r.diags.Add(dg)
}

// applyValue sets one winning longhand. Global keywords are handled here;
// an invalid value falls back to the property's initial value.
func (r *Resolver) applyValue(s *Style, c *candidate, cx *computeContext, id html.NodeID) {
	p := properties[c.property]
	switch strings.ToLower(c.value) {
	case "inherit":
		p.copy(s, cx.parent)
		return
	case "initial":
		p.copy(s, &initialStyle)
		return
	case "unset":
		if p.inherited {
			p.copy(s, cx.parent)
		} else {
			p.copy(s, &initialStyle)
		}
		return
	}
	if !p.apply(s, c.value, cx) {
		p.copy(s, &initialStyle)
		d := Declaration{Property: c.property, Value: c.value}
		key := c.key
		if key.node == html.NoNode && key.rule != nil {
			decl := key.rule.Declarations[key.decl]
			d.Line, d.Column = decl.Line, decl.Column
		}
		r.report(key, d, "invalid value %q for %s", c.value, c.property)
	}
}

// Resolve computes styles for doc in one call.
func Resolve(ctx context.Context, doc *html.Document, sheets []*Stylesheet, opts Options) (*StyleMap, diag.List, error) {
	r := NewResolver(doc, sheets, opts)
	m, err := r.Resolve(ctx)
	return m, r.Diagnostics(), err
}
