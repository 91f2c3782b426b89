package css

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lithium/pkg/diag"
	"lithium/pkg/html"
)

func resolve(t *testing.T, src string, sheets ...string) (*html.Document, *StyleMap, diag.List) {
	t.Helper()
	doc := parseDoc(t, src)
	var parsed []*Stylesheet
	for _, s := range sheets {
		sheet, err := ParseStylesheet(s)
		require.NoError(t, err)
		parsed = append(parsed, sheet)
	}
	m, diags, err := Resolve(context.Background(), doc, parsed, Options{})
	require.NoError(t, err)
	return doc, m, diags
}

var (
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	green = color.RGBA{0, 128, 0, 255}
)

func TestResolve_ElementSelector(t *testing.T) {
	doc, m, _ := resolve(t, `<div>x</div>`, `div { color: red; }`)
	assert.Equal(t, red, m.Get(doc.FindElement("div")).Color)
}

// #id beats .class beats type regardless of source order.
func TestResolve_SpecificityIndependentOfOrder(t *testing.T) {
	rules := []string{`#a { color: red }`, `.b { color: blue }`, `div { color: green }`}
	orders := [][]int{{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0}}
	for _, order := range orders {
		src := ""
		for _, i := range order {
			src += rules[i] + "\n"
		}
		doc, m, _ := resolve(t, `<div id="a" class="b"></div><div class="b"></div><div></div>`, src)
		divs := doc.ElementChildren(doc.Root)
		assert.Equal(t, red, m.Get(divs[0]).Color, "order %v", order)
		assert.Equal(t, blue, m.Get(divs[1]).Color, "order %v", order)
		assert.Equal(t, green, m.Get(divs[2]).Color, "order %v", order)
	}
}

func TestResolve_SourceOrderBreaksTies(t *testing.T) {
	doc, m, _ := resolve(t, `<p class="a b"></p>`, `.a { color: red } .b { color: blue }`)
	assert.Equal(t, blue, m.Get(doc.FindElement("p")).Color)

	doc, m, _ = resolve(t, `<p class="a b"></p>`, `.b { color: blue } .a { color: red }`)
	assert.Equal(t, red, m.Get(doc.FindElement("p")).Color)
}

func TestResolve_LaterSheetWinsTie(t *testing.T) {
	doc, m, _ := resolve(t, `<p></p>`, `p { color: red }`, `p { color: blue }`)
	assert.Equal(t, blue, m.Get(doc.FindElement("p")).Color)
}

func TestResolve_InlineAndImportant(t *testing.T) {
	doc, m, _ := resolve(t,
		`<p id="x" style="color: blue; width: 10px">a</p><p id="y" style="color: blue">b</p>`,
		`#x { color: red; width: 20px !important } p { color: green !important }`)
	x, y := doc.ElementByID("x"), doc.ElementByID("y")
	assert.Equal(t, green, m.Get(x).Color, "author !important beats inline normal")
	assert.Equal(t, Px(20), m.Get(x).Width)
	assert.Equal(t, green, m.Get(y).Color)

	doc, m, _ = resolve(t, `<p style="color: blue !important"></p>`, `p { color: red !important }`)
	assert.Equal(t, blue, m.Get(doc.FindElement("p")).Color, "inline !important beats author !important")
}

func TestResolve_Inheritance(t *testing.T) {
	doc, m, _ := resolve(t, `<div><p><span>t</span></p></div>`,
		`div { color: red; font-size: 20px; width: 100px; border: 2px solid blue }`)
	span := doc.FindElement("span")
	s := m.Get(span)
	assert.Equal(t, red, s.Color)
	assert.Equal(t, 20.0, s.FontSize)
	assert.True(t, s.Width.IsAuto(), "width is not inherited")
	assert.Zero(t, s.BorderWidth[Top], "border is not inherited")

	text := doc.Nodes[span].Children[0]
	assert.Equal(t, red, m.Get(text).Color, "text nodes inherit")
	assert.Equal(t, DisplayInline, m.Get(text).Display)
}

func TestResolve_ExplicitInheritAndInitial(t *testing.T) {
	doc, m, _ := resolve(t, `<div><p id="a"></p><p id="b"></p></div>`,
		`div { width: 50px; color: red } #a { width: inherit } #b { color: initial }`)
	assert.Equal(t, Px(50), m.Get(doc.ElementByID("a")).Width)
	assert.Equal(t, color.RGBA{A: 255}, m.Get(doc.ElementByID("b")).Color)
}

func TestResolve_InvalidValueFallsBackToInitial(t *testing.T) {
	doc, m, diags := resolve(t, `<div><p>x</p></div>`,
		`div { color: red } p { color: notacolor; width: -5px; display: sideways; colour: blue }`)
	s := m.Get(doc.FindElement("p"))
	assert.Equal(t, color.RGBA{A: 255}, s.Color, "invalid inherited property resets to initial, not the parent")
	assert.True(t, s.Width.IsAuto())
	assert.Equal(t, DisplayInline, s.Display, "invalid value falls back to the initial value, not the UA value")
	assert.Equal(t, 4, diags.Count(diag.ErrUnresolvedProperty), "%v", diags)
}

func TestResolve_UnresolvedReportedOncePerDeclaration(t *testing.T) {
	_, _, diags := resolve(t, `<p></p><p></p><p></p>`, `p { colr: red }`)
	assert.Equal(t, 1, diags.Count(diag.ErrUnresolvedProperty))
	err := diags.Err()
	assert.True(t, errors.Is(err, diag.ErrUnresolvedProperty))
}

func TestResolve_Shorthands(t *testing.T) {
	doc, m, _ := resolve(t, `<div></div>`, `div {
		margin: 1px 2px 3px;
		padding: 4px 5px;
		border: 3px dashed #00f;
		border-left: none;
		background: url(x.png) #ff0000 no-repeat;
		font: italic bold 10px/2 Georgia, serif;
	}`)
	s := m.Get(doc.FindElement("div"))
	assert.Equal(t, [4]Length{Px(1), Px(2), Px(3), Px(2)}, s.Margin)
	assert.Equal(t, [4]Length{Px(4), Px(5), Px(4), Px(5)}, s.Padding)
	assert.Equal(t, [4]float64{3, 3, 3, 0}, s.BorderWidth)
	assert.Equal(t, BorderDashed, s.BorderStyle[Top])
	assert.Equal(t, blue, s.BorderColor[Right])
	assert.Equal(t, red, s.BackgroundColor)
	assert.Equal(t, FontStyleItalic, s.FontStyle)
	assert.Equal(t, 700, s.FontWeight)
	assert.Equal(t, 10.0, s.FontSize)
	assert.Equal(t, 20.0, s.UsedLineHeight())
	assert.Equal(t, "Georgia, serif", s.FontFamily)
}

func TestResolve_LonghandAfterShorthand(t *testing.T) {
	doc, m, _ := resolve(t, `<div></div>`, `div { margin: 5px; margin-top: auto }`)
	s := m.Get(doc.FindElement("div"))
	assert.True(t, s.Margin[Top].IsAuto())
	assert.Equal(t, Px(5), s.Margin[Bottom])
}

func TestResolve_RelativeUnits(t *testing.T) {
	doc, m, _ := resolve(t, `<div><p>x</p></div>`,
		`div { font-size: 20px } p { font-size: 1.5em; width: 2em; padding-left: 1rem; height: 50%; line-height: 150% }`)
	s := m.Get(doc.FindElement("p"))
	assert.Equal(t, 30.0, s.FontSize)
	assert.Equal(t, Px(60), s.Width)
	assert.Equal(t, Px(16), s.Padding[Left])
	assert.Equal(t, Percent(50), s.Height, "percentages stay unresolved until layout")
	assert.Equal(t, 45.0, s.UsedLineHeight())
}

func TestResolve_CurrentColor(t *testing.T) {
	doc, m, _ := resolve(t, `<div></div>`, `div { border-style: solid; color: red; background-color: currentColor }`)
	s := m.Get(doc.FindElement("div"))
	assert.Equal(t, red, s.BorderColor[Left])
	assert.Equal(t, red, s.BackgroundColor)
}

func TestResolve_UserAgentDefaults(t *testing.T) {
	doc, m, _ := resolve(t, `<head><title>t</title></head><div><h1>x</h1><span>s</span><b>b</b><p hidden>h</p></div>`)
	assert.Equal(t, DisplayNone, m.Get(doc.FindElement("head")).Display)
	assert.Equal(t, DisplayBlock, m.Get(doc.FindElement("div")).Display)
	assert.Equal(t, DisplayInline, m.Get(doc.FindElement("span")).Display)
	assert.Equal(t, 32.0, m.Get(doc.FindElement("h1")).FontSize)
	assert.Equal(t, 700, m.Get(doc.FindElement("b")).FontWeight)
	assert.Equal(t, DisplayNone, m.Get(doc.FindElement("p")).Display)
	assert.Equal(t, [4]Length{}, m.Get(doc.FindElement("div")).Margin, "no default margins")
}

func TestResolve_FloatBlockified(t *testing.T) {
	doc, m, _ := resolve(t, `<span>x</span>`, `span { float: left }`)
	assert.Equal(t, DisplayBlock, m.Get(doc.FindElement("span")).Display)
}

// The computed styles are identical across runs and across parallelism
// settings.
func TestResolve_Deterministic(t *testing.T) {
	src := `<div id="root" class="c">` +
		`<ul><li class="a">1</li><li class="b">2</li><li>3</li></ul>` +
		`<p style="margin: 1px 2px">para <em>em</em> <b>bold</b></p>` +
		`<section><h2>t</h2><div class="a b"><span>deep</span></div></section>` +
		`</div>`
	sheet, err := ParseStylesheet(`
		.a { color: red; padding: 1em } .b { color: blue; margin: 2px }
		li + li { font-size: 20px } #root > ul { border: 1px solid }
		section .a.b span { font-weight: bold } * { line-height: 1.4 }
		p em { color: green !important } .c { font: 12px sans-serif }`)
	require.NoError(t, err)

	doc := parseDoc(t, src)
	first, _, err := Resolve(context.Background(), doc, []*Stylesheet{sheet}, Options{})
	require.NoError(t, err)
	for _, par := range []int{0, 1, 4, 16} {
		for run := 0; run < 3; run++ {
			m, _, err := Resolve(context.Background(), doc, []*Stylesheet{sheet}, Options{Parallelism: par})
			require.NoError(t, err)
			if diff := cmp.Diff(first.styles, m.styles, cmp.AllowUnexported(Style{})); diff != "" {
				t.Fatalf("parallelism %d run %d differs (-first +got):\n%s", par, run, diff)
			}
		}
	}
}

func TestResolve_Cancelled(t *testing.T) {
	doc := parseDoc(t, `<div><p>x</p></div>`)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Resolve(ctx, doc, nil, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolveSubtree_ScopedToNode(t *testing.T) {
	doc := parseDoc(t, `<div id="a"><p id="p1">x</p></div><div id="b"><p id="p2">y</p></div>`)
	sheet, _ := ParseStylesheet(`.hot { color: red } .hot p { width: 10px }`)
	r := NewResolver(doc, []*Stylesheet{sheet}, Options{})
	m, err := r.Resolve(context.Background())
	require.NoError(t, err)
	before := m.Clone()

	a := doc.ElementByID("a")
	doc.SetAttribute(a, "class", "hot")
	res, err := r.ResolveSubtree(context.Background(), m, a)
	require.NoError(t, err)

	for _, id := range res.Recomputed {
		assert.True(t, id == a || doc.IsAncestor(a, id), "node %d outside the subtree was recomputed", id)
	}
	assert.Contains(t, res.Changed, a)
	assert.Contains(t, res.Changed, doc.ElementByID("p1"))
	assert.Same(t, before.Get(doc.ElementByID("b")), m.Get(doc.ElementByID("b")))
	assert.Same(t, before.Get(doc.ElementByID("p2")), m.Get(doc.ElementByID("p2")))
	assert.Equal(t, Px(10), m.Get(doc.ElementByID("p1")).Width)
}

func TestResolveSubtree_SiblingSelectorsWiden(t *testing.T) {
	doc := parseDoc(t, `<ul><li id="one">1</li><li id="two">2</li></ul>`)
	sheet, _ := ParseStylesheet(`.x + li { color: red }`)
	r := NewResolver(doc, []*Stylesheet{sheet}, Options{})
	m, err := r.Resolve(context.Background())
	require.NoError(t, err)

	one := doc.ElementByID("one")
	doc.SetAttribute(one, "class", "x")
	res, err := r.ResolveSubtree(context.Background(), m, one)
	require.NoError(t, err)
	assert.Contains(t, res.Changed, doc.ElementByID("two"))
	assert.Equal(t, red, m.Get(doc.ElementByID("two")).Color)
}
