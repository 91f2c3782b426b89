package html

import (
	"strings"

	"lithium/pkg/diag"
)

// closeRule says which open elements a start tag implicitly closes.
type closeRule struct {
	closes map[string]bool
	// currentOnly limits the rule to the current node.
	currentOnly bool
}

func set(tags ...string) map[string]bool {
	m := make(map[string]bool, len(tags))
	for _, t := range tags {
		m[t] = true
	}
	return m
}

var (
	headings = set("h1", "h2", "h3", "h4", "h5", "h6")

	// pClosers are block starters that end an open <p>.
	pClosers = set("address", "article", "aside", "blockquote", "center", "details",
		"dialog", "dir", "div", "dl", "fieldset", "figcaption", "figure", "footer",
		"form", "h1", "h2", "h3", "h4", "h5", "h6", "header", "hgroup", "hr", "main",
		"menu", "nav", "ol", "p", "pre", "section", "summary", "table", "ul", "li",
		"dd", "dt", "listing", "xmp")

	autoCloseRules = map[string][]closeRule{
		"li":       {{closes: set("li")}},
		"dt":       {{closes: set("dt", "dd")}},
		"dd":       {{closes: set("dt", "dd")}},
		"tr":       {{closes: set("tr", "td", "th")}},
		"td":       {{closes: set("td", "th")}},
		"th":       {{closes: set("td", "th")}},
		"thead":    {{closes: set("thead", "tbody", "tfoot", "tr", "td", "th")}},
		"tbody":    {{closes: set("thead", "tbody", "tfoot", "tr", "td", "th")}},
		"tfoot":    {{closes: set("thead", "tbody", "tfoot", "tr", "td", "th")}},
		"option":   {{closes: set("option")}},
		"optgroup": {{closes: set("option", "optgroup")}},
		"h1":       {{closes: headings, currentOnly: true}},
		"h2":       {{closes: headings, currentOnly: true}},
		"h3":       {{closes: headings, currentOnly: true}},
		"h4":       {{closes: headings, currentOnly: true}},
		"h5":       {{closes: headings, currentOnly: true}},
		"h6":       {{closes: headings, currentOnly: true}},
	}

	// scopeBoundary elements stop the search for an element to auto-close.
	scopeBoundary = set("html", "body", "table", "td", "th", "caption", "button",
		"object", "template", "marquee", "ul", "ol", "dl", "select")

	// impliedEndTags may be left open without a diagnostic.
	impliedEndTags = set("dd", "dt", "li", "optgroup", "option", "p", "rb", "rp",
		"rt", "rtc", "tbody", "td", "tfoot", "th", "thead", "tr", "html", "head", "body")
)

// Parser builds a Document from tokens with an explicit stack of open
// elements.
type Parser struct {
	tokenizer *Tokenizer
	doc       *Document
	stack     []NodeID
	errs      diag.List
	fatal     error
}

func NewParser(input string) *Parser {
	return &Parser{
		tokenizer: NewTokenizer(input),
		doc:       NewDocument(),
	}
}

// Parse builds the document. The returned document is never nil; the error
// is non-nil when the markup needed recovery and matches
// diag.ErrMalformedMarkup. A diag.InvariantError means the builder itself
// produced a broken tree.
func Parse(input string) (*Document, error) {
	return NewParser(input).Parse()
}

func (p *Parser) Parse() (*Document, error) {
	p.stack = []NodeID{p.doc.Root}

	for {
		tok := p.tokenizer.Next()
		if tok.Type == TokenEOF {
			p.finish(tok)
			break
		}
		switch tok.Type {
		case TokenStartTag:
			p.startTag(tok)
		case TokenEndTag:
			p.endTag(tok)
		case TokenText:
			p.insert(p.doc.CreateText(tok.Text))
		case TokenComment:
			p.insert(p.doc.CreateComment(tok.Text))
		case TokenDoctype:
			if len(p.stack) > 1 || len(p.doc.Nodes[p.doc.Root].Children) > 0 {
				p.errorf(tok, "misplaced doctype")
			}
		}
	}

	p.doc.Diagnostics = append(p.tokenizer.Diagnostics(), p.errs...)
	if p.fatal != nil {
		return p.doc, p.fatal
	}
	return p.doc, p.doc.Diagnostics.Err()
}

func (p *Parser) errorf(tok Token, format string, args ...interface{}) {
	p.errs = append(p.errs, diag.At(diag.ErrMalformedMarkup, diag.StageParse, tok.Line, tok.Column, format, args...))
}

func (p *Parser) current() NodeID {
	return p.stack[len(p.stack)-1]
}

func (p *Parser) tagAt(i int) string {
	return p.doc.Nodes[p.stack[i]].TagName
}

// insert appends a node to the current element. The stack only ever holds
// elements created by this parser, so failure means the builder is broken.
func (p *Parser) insert(id NodeID) {
	if err := p.doc.AppendChild(p.current(), id); err != nil && p.fatal == nil {
		p.fatal = err
	}
}

func (p *Parser) startTag(tok Token) {
	p.autoClose(tok.TagName)

	id := p.doc.CreateElement(tok.TagName, tok.Attrs...)
	p.insert(id)

	if tok.TagName == "link" {
		p.linkStylesheet(id)
	}
	if isVoidElement(tok.TagName) || tok.SelfClosing {
		return
	}
	p.stack = append(p.stack, id)
}

// autoClose pops elements that the incoming start tag implicitly ends,
// following the rule table.
func (p *Parser) autoClose(tag string) {
	rules := autoCloseRules[tag]
	if pClosers[tag] {
		rules = append(rules, closeRule{closes: set("p")})
	}
	for _, rule := range rules {
		if rule.currentOnly {
			if len(p.stack) > 1 && rule.closes[p.tagAt(len(p.stack)-1)] {
				p.stack = p.stack[:len(p.stack)-1]
			}
			continue
		}
		// The outermost match inside the scope wins, so <tr> inside an open
		// cell closes both the cell and its row.
		match := -1
		for i := len(p.stack) - 1; i >= 1; i-- {
			name := p.tagAt(i)
			if rule.closes[name] {
				match = i
				continue
			}
			if scopeBoundary[name] {
				break
			}
		}
		if match > 0 {
			p.stack = p.stack[:match]
		}
	}
}

func (p *Parser) endTag(tok Token) {
	tag := tok.TagName
	if tag == "br" {
		p.errorf(tok, "end tag </br> treated as <br>")
		p.insert(p.doc.CreateElement("br"))
		return
	}

	idx := -1
	for i := len(p.stack) - 1; i >= 1; i-- {
		if p.tagAt(i) == tag {
			idx = i
			break
		}
	}
	if idx < 0 {
		if tag == "p" {
			p.errorf(tok, "end tag </p> without open <p>")
			p.insert(p.doc.CreateElement("p"))
			return
		}
		p.errorf(tok, "stray end tag </%s>", tag)
		return
	}

	for i := len(p.stack) - 1; i > idx; i-- {
		if name := p.tagAt(i); !impliedEndTags[name] {
			p.errorf(tok, "end tag </%s> closes unclosed <%s>", tag, name)
		}
	}
	closed := p.stack[idx]
	p.stack = p.stack[:idx]
	if tag == "style" {
		p.styleElement(closed)
	}
}

func (p *Parser) finish(tok Token) {
	for i := len(p.stack) - 1; i >= 1; i-- {
		name := p.tagAt(i)
		if !impliedEndTags[name] {
			p.errorf(tok, "unclosed <%s> at end of input", name)
		}
		if name == "style" {
			p.styleElement(p.stack[i])
		}
	}
	p.stack = p.stack[:1]
}

// styleElement records the text of a closed <style> element. id may be any
// node inside it; the enclosing style element is looked up.
func (p *Parser) styleElement(id NodeID) {
	for id != NoNode && p.doc.Nodes[id].TagName != "style" {
		id = p.doc.Nodes[id].Parent
	}
	if id == NoNode {
		return
	}
	for _, s := range p.doc.StyleSources {
		if s.Node == id {
			return
		}
	}
	if media, ok := p.doc.Attr(id, "media"); ok && !mediaApplies(media) {
		return
	}
	p.doc.StyleSources = append(p.doc.StyleSources, StyleSource{
		Kind: InlineStyle,
		Text: p.doc.TextContent(id),
		Node: id,
	})
}

func (p *Parser) linkStylesheet(id NodeID) {
	rel, _ := p.doc.Attr(id, "rel")
	isSheet := false
	for _, r := range strings.Fields(strings.ToLower(rel)) {
		if r == "stylesheet" {
			isSheet = true
		}
	}
	href, ok := p.doc.Attr(id, "href")
	if !isSheet || !ok || strings.TrimSpace(href) == "" {
		return
	}
	if media, ok := p.doc.Attr(id, "media"); ok && !mediaApplies(media) {
		return
	}
	p.doc.StyleSources = append(p.doc.StyleSources, StyleSource{
		Kind: LinkedStyle,
		Href: strings.TrimSpace(href),
		Node: id,
	})
}

// mediaApplies accepts the media types a screen renderer honours.
func mediaApplies(media string) bool {
	for _, m := range strings.Split(media, ",") {
		switch strings.ToLower(strings.TrimSpace(m)) {
		case "", "all", "screen":
			return true
		}
	}
	return false
}
