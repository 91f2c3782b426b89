package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/png"
	"io"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"lithium/pkg/diag"
	"lithium/pkg/html"
	"lithium/pkg/layout"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newPipeline(opts Options) *Pipeline {
	if opts.Viewport == (layout.Size{}) {
		opts.Viewport = layout.Size{Width: 400, Height: 300}
	}
	opts.Log = quietLogger()
	return New(opts)
}

func run(t *testing.T, p *Pipeline) *Frame {
	t.Helper()
	f, err := p.Run(context.Background())
	require.NoError(t, err)
	return f
}

func byID(t *testing.T, f *Frame, id string) html.NodeID {
	t.Helper()
	n := f.Document.ElementByID(id)
	require.NotEqual(t, html.NoNode, n, "no element #%s", id)
	return n
}

func TestRun_StackedParagraphs(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<div style="width:100"><p>Hello</p><p>World</p></div>`)
	f := run(t, p)

	div := f.Document.FindElement("div")
	ps := f.Document.ElementChildren(div)
	require.Len(t, ps, 2)
	first, ok := f.Layout.Find(ps[0])
	require.True(t, ok)
	second, ok := f.Layout.Find(ps[1])
	require.True(t, ok)

	assert.Equal(t, 100.0, first.Content.Width)
	assert.Equal(t, 100.0, second.Content.Width)
	assert.Equal(t, first.Content.X, second.Content.X)
	assert.InDelta(t, first.MarginBox().Y+first.MarginBox().Height, second.MarginBox().Y, 1e-9, "no gap between the paragraphs")
	assert.Greater(t, first.Content.Height, 0.0)
	assert.Empty(t, f.Diagnostics)
	assert.NotEmpty(t, f.Display)
	assert.Equal(t, "parse", f.Stats.Rerun)
}

func TestRun_NoDocument(t *testing.T) {
	p := newPipeline(Options{})
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Nil(t, p.Frame())
}

func TestRun_CleanPipelineReturnsCommittedFrame(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<p>hi</p>`)
	f1 := run(t, p)
	f2 := run(t, p)
	assert.Same(t, f1, f2)
	assert.Same(t, f1, p.Frame())
	assert.Equal(t, p.Generation(), f1.Generation)
}

// recorder collects the nodes laid out from scratch.
type recorder struct {
	mu    sync.Mutex
	nodes map[html.NodeID]bool
}

func (r *recorder) record(n html.NodeID) {
	r.mu.Lock()
	r.nodes[n] = true
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.nodes = map[html.NodeID]bool{}
	r.mu.Unlock()
}

func (r *recorder) saw(n html.NodeID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nodes[n]
}

func TestAttributeChanged_DoesNotRelayoutSiblings(t *testing.T) {
	rec := &recorder{}
	rec.reset()
	p := newPipeline(Options{OnLayout: rec.record, Parallelism: 4})
	p.Load(`<style>.wide { width: 50px }</style>
<div id="a"><p id="pa">left</p></div>
<div id="b"><p id="pb">right</p></div>`)
	f1 := run(t, p)
	pa, pb, b := byID(t, f1, "pa"), byID(t, f1, "pb"), byID(t, f1, "b")
	require.True(t, rec.saw(pb))

	rec.reset()
	p.SetAttribute(pa, "class", "wide")
	f2 := run(t, p)

	assert.Equal(t, "style-subtree", f2.Stats.Rerun)
	assert.False(t, rec.saw(b), "sibling subtree was laid out again")
	assert.False(t, rec.saw(pb), "sibling leaf was laid out again")
	assert.True(t, rec.saw(pa))
	assert.Greater(t, f2.Stats.Layout.CacheHits, int64(0))

	got, _ := f2.Layout.Find(pa)
	assert.Equal(t, 50.0, got.Content.Width)
	before, _ := f1.Layout.Find(pb)
	after, _ := f2.Layout.Find(pb)
	assert.Equal(t, before, after)
}

func TestAttributeChanged_SiblingSelectorsWidenScope(t *testing.T) {
	rec := &recorder{}
	rec.reset()
	p := newPipeline(Options{OnLayout: rec.record})
	p.Load(`<style>.x + p { width: 30px }</style><div><p id="a">a</p><p id="b">b</p></div>`)
	f1 := run(t, p)
	a, b := byID(t, f1, "a"), byID(t, f1, "b")

	rec.reset()
	p.SetAttribute(a, "class", "x")
	f2 := run(t, p)
	got, _ := f2.Layout.Find(b)
	assert.Equal(t, 30.0, got.Content.Width)
	assert.True(t, rec.saw(b))
}

func TestMutate_IsFenced(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<div id="d">x</div>`)
	f1 := run(t, p)
	d := byID(t, f1, "d")

	p.Mutate(func(doc *html.Document) []html.NodeID {
		child := doc.CreateElement("p", html.Attribute{Name: "id", Value: "new"})
		doc.AppendChild(child, doc.CreateText("added"))
		doc.AppendChild(d, child)
		return []html.NodeID{d}
	})
	p.SetAttribute(d, "style", "width: 120px")

	assert.Same(t, f1, p.Frame(), "queued mutations are not visible before the next pass")
	assert.Equal(t, html.NoNode, f1.Document.ElementByID("new"))

	f2 := run(t, p)
	assert.NotEqual(t, html.NoNode, f2.Document.ElementByID("new"))
	assert.Equal(t, "xadded", f2.Document.TextContent(d))
	assert.Equal(t, "x", f1.Document.TextContent(d), "committed frames are never modified")

	dim, _ := f2.Layout.Find(d)
	assert.Equal(t, 120.0, dim.Content.Width)
	_, ok := f2.Layout.Find(f2.Document.ElementByID("new"))
	assert.True(t, ok)
}

func TestViewportChanged(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<div id="d">x</div>`)
	f1 := run(t, p)
	d := byID(t, f1, "d")

	p.Invalidate(ViewportChanged{Size: layout.Size{Width: 200, Height: 100}})
	f2 := run(t, p)
	assert.Equal(t, "layout", f2.Stats.Rerun)
	assert.Equal(t, 0, f2.Stats.Restyled)
	assert.Same(t, f1.Styles, f2.Styles)
	dim, _ := f2.Layout.Find(d)
	assert.Equal(t, 200.0, dim.Content.Width)
}

func TestStyleChanged(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<p>a</p>`)
	f1 := run(t, p)
	p.Invalidate(StyleChanged{})
	f2 := run(t, p)
	assert.Equal(t, "style", f2.Stats.Rerun)
	assert.Same(t, f1.Document, f2.Document, "style changes do not re-parse")
	assert.Empty(t, cmp.Diff(f1.Display.String(), f2.Display.String()))
}

func TestMarkupChanged_DropsQueuedMutations(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<p id="a">a</p>`)
	f1 := run(t, p)
	p.SetAttribute(byID(t, f1, "a"), "id", "renamed")
	p.Load(`<p id="a">b</p>`)
	f2 := run(t, p)
	assert.NotEqual(t, html.NoNode, f2.Document.ElementByID("a"))
	assert.Equal(t, html.NoNode, f2.Document.ElementByID("renamed"))
}

func TestRun_Superseded(t *testing.T) {
	var p *Pipeline
	var once sync.Once
	armed := true
	var mu sync.Mutex
	p = newPipeline(Options{OnLayout: func(html.NodeID) {
		mu.Lock()
		defer mu.Unlock()
		if armed {
			once.Do(func() { p.Invalidate(StyleChanged{}) })
		}
	}})
	p.Load(`<div><p>a</p><p>b</p></div>`)

	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Nil(t, p.Frame(), "partial results are never exposed")

	mu.Lock()
	armed = false
	mu.Unlock()
	f := run(t, p)
	assert.Equal(t, p.Generation(), f.Generation)
	assert.Equal(t, "parse", f.Stats.Rerun, "abandoned work is kept for the next pass")
}

func TestRun_Canceled(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<p>a</p>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, p.Frame())
	run(t, p)
}

func TestRun_Diagnostics(t *testing.T) {
	p := newPipeline(Options{})
	p.Load(`<style>p { color: nonsense } q { width: ; }</style>
<p>styled</p>
<div><span>text</div></em>
<img src="missing-file.png">
<div style="width: -10px"></div>`)
	f := run(t, p)
	for _, kind := range []error{diag.ErrMalformedMarkup, diag.ErrMalformedDeclaration, diag.ErrUnresolvedProperty, diag.ErrFetch} {
		assert.Greater(t, f.Diagnostics.Count(kind), 0, "missing %v in %v", kind, f.Diagnostics)
	}
	img := f.Document.FindElement("img")
	dim, ok := f.Layout.Find(img)
	require.True(t, ok)
	assert.Equal(t, layout.DefaultReplacedSize.Width, dim.Content.Width, "missing image falls back to the default size")
}

func TestRun_ImageIntrinsicSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 7, 5))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())

	p := newPipeline(Options{})
	p.Load(`<p><img src="` + uri + `"></p>`)
	f := run(t, p)
	dim, ok := f.Layout.Find(f.Document.FindElement("img"))
	require.True(t, ok)
	assert.Equal(t, 7.0, dim.Content.Width)
	assert.Equal(t, 5.0, dim.Content.Height)
	_, ok = p.Images().Get(uri)
	assert.True(t, ok)
}

func TestRun_ConcurrentInvalidation(t *testing.T) {
	p := newPipeline(Options{Parallelism: 2})
	p.Load(`<div id="d"><p>a</p><p>b</p></div>`)
	f := run(t, p)
	d := byID(t, f, "d")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if j%2 == 0 {
					p.SetAttribute(d, "class", "c")
				} else {
					p.Invalidate(ViewportChanged{Size: layout.Size{Width: float64(200 + i), Height: 100}})
				}
			}
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 20; j++ {
			p.Run(context.Background())
		}
	}()
	wg.Wait()

	final := run(t, p)
	assert.Equal(t, p.Generation(), final.Generation)
	assert.NoError(t, final.Document.Validate())
}
