package css

import (
	"strings"

	"github.com/gorilla/css/scanner"

	"lithium/pkg/diag"
)

// Origin is where a stylesheet comes from. It decides the cascade bucket
// before specificity is considered.
type Origin int

const (
	OriginUserAgent Origin = iota
	OriginUser
	OriginAuthor
)

func (o Origin) String() string {
	switch o {
	case OriginUserAgent:
		return "user-agent"
	case OriginUser:
		return "user"
	}
	return "author"
}

// Declaration is one property: value pair. Value is the source text with
// whitespace collapsed.
type Declaration struct {
	Property  string
	Value     string
	Important bool
	Line      int
	Column    int
}

func (d Declaration) String() string {
	if d.Important {
		return d.Property + ": " + d.Value + " !important"
	}
	return d.Property + ": " + d.Value
}

// Rule is a selector list with its declaration block.
type Rule struct {
	Selectors    []Selector
	Declarations []Declaration
	// Order is the rule's position in its stylesheet.
	Order int
	Line  int
}

func (r *Rule) String() string {
	sels := make([]string, len(r.Selectors))
	for i := range r.Selectors {
		sels[i] = r.Selectors[i].String()
	}
	var b strings.Builder
	b.WriteString(strings.Join(sels, ", "))
	b.WriteString(" {")
	for _, d := range r.Declarations {
		b.WriteString(" ")
		b.WriteString(d.String())
		b.WriteString(";")
	}
	b.WriteString(" }")
	return b.String()
}

// Stylesheet is an ordered list of rules.
type Stylesheet struct {
	Rules  []*Rule
	Origin Origin
	// Href is the URL the sheet was loaded from, if any.
	Href        string
	Diagnostics diag.List
}

// String re-serializes the stylesheet, one rule per line. Parsing the
// output yields the same rules in the same order.
func (s *Stylesheet) String() string {
	lines := make([]string, len(s.Rules))
	for i, r := range s.Rules {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// lex runs the gorilla scanner to completion, dropping comments. An
// unterminated string or comment ends the token stream early with an error.
func lex(text string) ([]*scanner.Token, *diag.Diagnostic) {
	s := scanner.New(text)
	var toks []*scanner.Token
	for {
		t := s.Next()
		switch t.Type {
		case scanner.TokenEOF:
			return toks, nil
		case scanner.TokenError:
			return toks, diag.At(diag.ErrMalformedStyleRule, diag.StageStylesheet, t.Line, t.Column,
				"unterminated string or comment")
		case scanner.TokenComment, scanner.TokenBOM:
			continue
		}
		toks = append(toks, t)
	}
}

func isChar(t *scanner.Token, c string) bool {
	return t.Type == scanner.TokenChar && t.Value == c
}

func trimSpace(toks []*scanner.Token) []*scanner.Token {
	for len(toks) > 0 && toks[0].Type == scanner.TokenS {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].Type == scanner.TokenS {
		toks = toks[:len(toks)-1]
	}
	return toks
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

// ParseStylesheet parses an author stylesheet. Bad declarations and bad
// rules are skipped one at a time; each skip is recorded in
// Stylesheet.Diagnostics and reflected in the returned error, which matches
// diag.ErrMalformedStyleRule or diag.ErrMalformedDeclaration. The
// stylesheet is never nil.
func ParseStylesheet(text string) (*Stylesheet, error) {
	p := &sheetParser{sheet: &Stylesheet{Origin: OriginAuthor}}
	toks, lexErr := lex(text)
	p.toks = toks
	p.parse()
	if lexErr != nil {
		p.sheet.Diagnostics = append(p.sheet.Diagnostics, lexErr)
	}
	return p.sheet, p.sheet.Diagnostics.Err()
}

// ParseDeclarations parses the body of a style attribute.
func ParseDeclarations(text string) ([]Declaration, diag.List) {
	toks, lexErr := lex(text)
	p := &sheetParser{sheet: &Stylesheet{}}
	decls := p.declarations(toks)
	if lexErr != nil {
		p.sheet.Diagnostics = append(p.sheet.Diagnostics, lexErr)
	}
	return decls, p.sheet.Diagnostics
}

type sheetParser struct {
	toks  []*scanner.Token
	pos   int
	sheet *Stylesheet
}

func (p *sheetParser) errorAt(kind error, t *scanner.Token, format string, args ...interface{}) {
	line, col := 0, 0
	if t != nil {
		line, col = t.Line, t.Column
	}
	p.sheet.Diagnostics = append(p.sheet.Diagnostics,
		diag.At(kind, diag.StageStylesheet, line, col, format, args...))
}

func (p *sheetParser) parse() {
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		switch {
		case t.Type == scanner.TokenS || t.Type == scanner.TokenCDO || t.Type == scanner.TokenCDC:
			p.pos++
		case t.Type == scanner.TokenAtKeyword:
			p.skipAtRule()
		default:
			p.qualifiedRule()
		}
	}
}

// skipAtRule drops an at-rule: everything up to a top-level ';' or through
// a balanced block.
func (p *sheetParser) skipAtRule() {
	start := p.toks[p.pos]
	p.pos++
	for p.pos < len(p.toks) {
		t := p.toks[p.pos]
		if isChar(t, ";") {
			p.pos++
			break
		}
		if isChar(t, "{") {
			p.block()
			break
		}
		p.pos++
	}
	p.errorAt(diag.ErrMalformedStyleRule, start, "unsupported at-rule %s skipped", start.Value)
}

// block consumes a {...} block starting at p.pos and returns its inner
// tokens. closed is false when input ended first.
func (p *sheetParser) block() (inner []*scanner.Token, closed bool) {
	p.pos++ // '{'
	start := p.pos
	depth := 1
	for ; p.pos < len(p.toks); p.pos++ {
		t := p.toks[p.pos]
		if isChar(t, "{") {
			depth++
		} else if isChar(t, "}") {
			depth--
			if depth == 0 {
				inner = p.toks[start:p.pos]
				p.pos++
				return inner, true
			}
		}
	}
	return p.toks[start:], false
}

func (p *sheetParser) qualifiedRule() {
	first := p.toks[p.pos]
	start := p.pos
	for p.pos < len(p.toks) && !isChar(p.toks[p.pos], "{") {
		p.pos++
	}
	if p.pos >= len(p.toks) {
		p.errorAt(diag.ErrMalformedStyleRule, first, "rule without a declaration block")
		return
	}
	prelude := trimSpace(p.toks[start:p.pos])
	body, closed := p.block()
	if !closed {
		p.errorAt(diag.ErrMalformedStyleRule, first, "unterminated declaration block")
		return
	}
	sels, err := parseSelectorList(prelude)
	if err != nil {
		p.errorAt(diag.ErrMalformedStyleRule, first, "invalid selector %q: %v", joinTokens(prelude), err)
		return
	}
	p.sheet.Rules = append(p.sheet.Rules, &Rule{
		Selectors:    sels,
		Declarations: p.declarations(body),
		Order:        len(p.sheet.Rules),
		Line:         first.Line,
	})
}

// declarations splits a block body on top-level semicolons and parses each
// piece, skipping the malformed ones.
func (p *sheetParser) declarations(toks []*scanner.Token) []Declaration {
	var out []Declaration
	depth := 0
	start := 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) {
			t := toks[i]
			switch {
			case isChar(t, "(") || isChar(t, "[") || isChar(t, "{") || t.Type == scanner.TokenFunction:
				depth++
				continue
			case isChar(t, ")") || isChar(t, "]") || isChar(t, "}"):
				if depth > 0 {
					depth--
				}
				continue
			case !isChar(t, ";") || depth > 0:
				continue
			}
		}
		piece := trimSpace(toks[start:i])
		start = i + 1
		if len(piece) == 0 {
			continue
		}
		if d, ok := p.declaration(piece); ok {
			out = append(out, d)
		}
	}
	return out
}

func (p *sheetParser) declaration(toks []*scanner.Token) (Declaration, bool) {
	name := toks[0]
	if name.Type != scanner.TokenIdent {
		p.errorAt(diag.ErrMalformedDeclaration, name, "expected property name, got %q", joinTokens(toks))
		return Declaration{}, false
	}
	pos := 1
	for pos < len(toks) && toks[pos].Type == scanner.TokenS {
		pos++
	}
	if pos >= len(toks) || !isChar(toks[pos], ":") {
		p.errorAt(diag.ErrMalformedDeclaration, name, "missing ':' after %q", name.Value)
		return Declaration{}, false
	}
	value := trimSpace(toks[pos+1:])

	important := false
	if n := len(value); n >= 2 && value[n-1].Type == scanner.TokenIdent &&
		strings.EqualFold(value[n-1].Value, "important") {
		rest := trimSpace(value[:n-1])
		if len(rest) > 0 && isChar(rest[len(rest)-1], "!") {
			important = true
			value = trimSpace(rest[:len(rest)-1])
		}
	}
	for _, t := range value {
		if isChar(t, "{") || isChar(t, "}") || isChar(t, "!") {
			p.errorAt(diag.ErrMalformedDeclaration, t, "unexpected %q in value of %s", t.Value, name.Value)
			return Declaration{}, false
		}
	}
	if len(value) == 0 {
		p.errorAt(diag.ErrMalformedDeclaration, name, "empty value for %s", name.Value)
		return Declaration{}, false
	}
	return Declaration{
		Property:  strings.ToLower(name.Value),
		Value:     joinTokens(value),
		Important: important,
		Line:      name.Line,
		Column:    name.Column,
	}, true
}

// joinTokens rebuilds source text, collapsing whitespace runs to a space.
func joinTokens(toks []*scanner.Token) string {
	var b strings.Builder
	for _, t := range toks {
		if t.Type == scanner.TokenS {
			b.WriteByte(' ')
			continue
		}
		b.WriteString(t.Value)
	}
	return b.String()
}
