package css

import (
	"testing"

	"lithium/pkg/html"
)

func parseDoc(t *testing.T, src string) *html.Document {
	t.Helper()
	doc, err := html.Parse(src)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return doc
}

func mustSelector(t *testing.T, text string) *Selector {
	t.Helper()
	sels, err := ParseSelector(text)
	if err != nil || len(sels) != 1 {
		t.Fatalf("ParseSelector(%q) = %v, %v", text, sels, err)
	}
	return &sels[0]
}

func TestMatches_Simple(t *testing.T) {
	doc := parseDoc(t, `<div id="main" class="a b" lang="en-US" data-x="one two"><p>x</p></div>`)
	div := doc.FindElement("div")
	tests := []struct {
		sel  string
		want bool
	}{
		{"div", true},
		{"p", false},
		{"*", true},
		{"#main", true},
		{"#other", false},
		{".a", true},
		{".a.b", true},
		{".a.c", false},
		{"div#main.b", true},
		{"[lang]", true},
		{"[title]", false},
		{`[lang="en-US"]`, true},
		{"[lang|=en]", true},
		{"[lang^=en]", true},
		{`[lang$="US"]`, true},
		{"[lang*=n-U]", true},
		{"[data-x~=two]", true},
		{"[data-x~=tw]", false},
		{"div:hover", false},
		{"div::before", false},
		{":root", true},
		{"div:first-child", true},
		{"#a#b", false},
	}
	for _, tt := range tests {
		if got := mustSelector(t, tt.sel).Matches(doc, div); got != tt.want {
			t.Errorf("%s matches div = %v, want %v", tt.sel, got, tt.want)
		}
	}
}

func TestMatches_Combinators(t *testing.T) {
	doc := parseDoc(t, `<section><div class="outer"><ul><li id="one">1</li><li id="two">2</li><li id="three">3</li></ul></div></section>`)
	one, two, three := doc.ElementByID("one"), doc.ElementByID("two"), doc.ElementByID("three")
	tests := []struct {
		sel  string
		id   html.NodeID
		want bool
	}{
		{"section li", one, true},
		{".outer li", two, true},
		{"section > li", one, false},
		{"ul > li", one, true},
		{"div > ul > li", three, true},
		{"li + li", one, false},
		{"li + li", two, true},
		{"#one + li", three, false},
		{"#one ~ li", three, true},
		{"#three ~ li", one, false},
		{"section .outer ul li#two", two, true},
		{"li:first-child", one, true},
		{"li:first-child", two, false},
		{"li:last-child", three, true},
		{"article li", one, false},
	}
	for _, tt := range tests {
		if got := mustSelector(t, tt.sel).Matches(doc, tt.id); got != tt.want {
			t.Errorf("%s on #%s = %v, want %v", tt.sel, doc.ID(tt.id), got, tt.want)
		}
	}
}

func TestMatches_NoMatchTextNode(t *testing.T) {
	doc := parseDoc(t, `<p>text</p>`)
	text := doc.Nodes[doc.FindElement("p")].Children[0]
	if mustSelector(t, "*").Matches(doc, text) {
		t.Error("selectors must not match text nodes")
	}
}

func TestMatches_Empty(t *testing.T) {
	doc := parseDoc(t, `<p id="a"></p><p id="b"><!--c--></p><p id="c"> </p>`)
	sel := mustSelector(t, "p:empty")
	if !sel.Matches(doc, doc.ElementByID("a")) || !sel.Matches(doc, doc.ElementByID("b")) {
		t.Error(":empty should ignore comments")
	}
	if sel.Matches(doc, doc.ElementByID("c")) {
		t.Error("whitespace text is content")
	}
}

func TestSpecificity(t *testing.T) {
	tests := []struct {
		sel  string
		want Specificity
	}{
		{"*", Specificity{0, 0, 0}},
		{"li", Specificity{0, 0, 1}},
		{"ul li", Specificity{0, 0, 2}},
		{"ul ol+li", Specificity{0, 0, 3}},
		{"h1 + *[rel=up]", Specificity{0, 1, 1}},
		{"ul ol li.red", Specificity{0, 1, 3}},
		{"li.red.level", Specificity{0, 2, 1}},
		{"#x34y", Specificity{1, 0, 0}},
		{"p::before", Specificity{0, 0, 2}},
		{"a:hover", Specificity{0, 1, 1}},
	}
	for _, tt := range tests {
		if got := mustSelector(t, tt.sel).Specificity(); got != tt.want {
			t.Errorf("%s: specificity %v, want %v", tt.sel, got, tt.want)
		}
	}
	if !(Specificity{0, 9, 9}).Less(Specificity{1, 0, 0}) {
		t.Error("one id must beat any number of classes")
	}
}

func TestRuleIndex_CandidatesMatchFullScan(t *testing.T) {
	doc := parseDoc(t, `<div id="a" class="x y"><p class="y">t</p><span>s</span></div>`)
	sheet, _ := ParseStylesheet(`#a { color: red } .y { color: blue } p { color: green } * { margin: 0 } div .y { padding: 0 } .x.y { width: 1px }`)
	ix := newRuleIndex([]*Stylesheet{sheet})
	doc.Walk(doc.Root, func(id html.NodeID) bool {
		if doc.Nodes[id].Type != html.ElementNode {
			return true
		}
		want := 0
		for _, r := range sheet.Rules {
			for i := range r.Selectors {
				if r.Selectors[i].Matches(doc, id) {
					want++
				}
			}
		}
		if got := len(ix.match(doc, id)); got != want {
			t.Errorf("<%s>: index found %d rules, full scan %d", doc.Nodes[id].TagName, got, want)
		}
		return true
	})
}
