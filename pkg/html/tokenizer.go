package html

import (
	gohtml "html"
	"strconv"
	"strings"
	"unicode/utf8"

	"lithium/pkg/diag"
)

type TokenType int

const (
	TokenStartTag TokenType = iota
	TokenEndTag
	TokenText
	TokenComment
	TokenDoctype
	TokenEOF
)

func (t TokenType) String() string {
	switch t {
	case TokenStartTag:
		return "StartTag"
	case TokenEndTag:
		return "EndTag"
	case TokenText:
		return "Text"
	case TokenComment:
		return "Comment"
	case TokenDoctype:
		return "Doctype"
	case TokenEOF:
		return "EOF"
	}
	return "Unknown"
}

type Token struct {
	Type        TokenType
	TagName     string
	Attrs       []Attribute
	Text        string
	SelfClosing bool // tag ended with "/>"
	Line        int
	Column      int
}

// Attr returns the value of the named attribute on a tag token.
func (t Token) Attr(name string) (string, bool) {
	for _, a := range t.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

type tokenizerState int

const (
	dataState tokenizerState = iota
	tagOpenState
	endTagOpenState
	tagNameState
	beforeAttributeNameState
	attributeNameState
	afterAttributeNameState
	beforeAttributeValueState
	attributeValueDoubleQuotedState
	attributeValueSingleQuotedState
	attributeValueUnquotedState
	afterAttributeValueQuotedState
	selfClosingStartTagState
	markupDeclarationOpenState
	commentStartState
	commentStartDashState
	commentState
	commentEndDashState
	commentEndState
	bogusCommentState
	doctypeState
	rawTextState
)

// Tokenizer is an explicit state machine over the input characters. Each
// call to step consumes at most one character, except in the raw text and
// markup declaration states which look ahead for a fixed string.
type Tokenizer struct {
	input string
	pos   int
	line  int
	col   int

	// position before the last consume, for reconsume
	prevPos  int
	prevLine int
	prevCol  int

	state   tokenizerState
	rawTag  string
	text    strings.Builder
	textPos [2]int
	tag     Token
	attr    *Attribute
	comment strings.Builder
	queue   []Token
	done    bool

	errs diag.List
}

func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{input: input, line: 1, col: 1}
}

// Diagnostics returns the problems found so far.
func (t *Tokenizer) Diagnostics() diag.List { return t.errs }

// Next returns the next token. After the input is exhausted it keeps
// returning TokenEOF.
func (t *Tokenizer) Next() Token {
	for len(t.queue) == 0 {
		if t.done {
			return Token{Type: TokenEOF, Line: t.line, Column: t.col}
		}
		t.step()
	}
	tok := t.queue[0]
	t.queue = t.queue[1:]
	return tok
}

func (t *Tokenizer) consume() (rune, bool) {
	t.prevPos, t.prevLine, t.prevCol = t.pos, t.line, t.col
	if t.pos >= len(t.input) {
		return 0, false
	}
	r, size := utf8.DecodeRuneInString(t.input[t.pos:])
	t.pos += size
	if r == '\n' {
		t.line++
		t.col = 1
	} else {
		t.col++
	}
	return r, true
}

func (t *Tokenizer) reconsume() {
	t.pos, t.line, t.col = t.prevPos, t.prevLine, t.prevCol
}

func (t *Tokenizer) errorf(format string, args ...interface{}) {
	t.errs = append(t.errs, diag.At(diag.ErrMalformedMarkup, diag.StageParse, t.line, t.col, format, args...))
}

func (t *Tokenizer) appendText(s string) {
	if t.text.Len() == 0 {
		t.textPos = [2]int{t.prevLine, t.prevCol}
	}
	t.text.WriteString(s)
}

func (t *Tokenizer) flushText() {
	if t.text.Len() == 0 {
		return
	}
	t.queue = append(t.queue, Token{Type: TokenText, Text: t.text.String(), Line: t.textPos[0], Column: t.textPos[1]})
	t.text.Reset()
}

func (t *Tokenizer) emitEOF() {
	t.flushText()
	t.done = true
}

func (t *Tokenizer) startTag(typ TokenType) {
	t.flushText()
	t.tag = Token{Type: typ, Line: t.prevLine, Column: t.prevCol - 1}
	t.attr = nil
}

func (t *Tokenizer) startAttr() {
	t.finishAttr()
	t.tag.Attrs = append(t.tag.Attrs, Attribute{})
	t.attr = &t.tag.Attrs[len(t.tag.Attrs)-1]
}

// finishAttr drops a duplicate of an earlier attribute; the first one wins.
func (t *Tokenizer) finishAttr() {
	if t.attr == nil {
		return
	}
	n := len(t.tag.Attrs)
	name := t.tag.Attrs[n-1].Name
	for _, a := range t.tag.Attrs[:n-1] {
		if a.Name == name {
			t.errorf("duplicate attribute %q", name)
			t.tag.Attrs = t.tag.Attrs[:n-1]
			break
		}
	}
	t.attr = nil
}

func (t *Tokenizer) emitTag() {
	t.finishAttr()
	tok := t.tag
	if tok.Type == TokenEndTag {
		if len(tok.Attrs) > 0 {
			t.errorf("end tag </%s> has attributes", tok.TagName)
			tok.Attrs = nil
		}
		if tok.SelfClosing {
			t.errorf("self-closing end tag </%s/>", tok.TagName)
			tok.SelfClosing = false
		}
	}
	t.queue = append(t.queue, tok)
	t.state = dataState
	if tok.Type == TokenStartTag && !tok.SelfClosing && isRawTextElement(tok.TagName) {
		t.state = rawTextState
		t.rawTag = tok.TagName
	}
}

func (t *Tokenizer) emitComment() {
	t.queue = append(t.queue, Token{Type: TokenComment, Text: t.comment.String(), Line: t.tag.Line, Column: t.tag.Column})
	t.comment.Reset()
	t.state = dataState
}

func isRawTextElement(tag string) bool {
	switch tag {
	case "style", "script", "textarea", "title":
		return true
	}
	return false
}

func isASCIIAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f':
		return true
	}
	return false
}

func toLower(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}

func (t *Tokenizer) step() {
	switch t.state {
	case markupDeclarationOpenState:
		t.markupDeclarationOpen()
		return
	case rawTextState:
		t.rawText()
		return
	}

	r, ok := t.consume()
	switch t.state {
	case dataState:
		switch {
		case !ok:
			t.emitEOF()
		case r == '<':
			t.state = tagOpenState
		case r == '&':
			t.appendText(t.charRef(false))
		default:
			t.appendText(string(r))
		}

	case tagOpenState:
		switch {
		case !ok:
			t.errorf("eof before tag name")
			t.appendText("<")
			t.emitEOF()
		case r == '!':
			t.state = markupDeclarationOpenState
		case r == '/':
			t.state = endTagOpenState
		case isASCIIAlpha(r):
			t.startTag(TokenStartTag)
			t.reconsume()
			t.state = tagNameState
		case r == '?':
			t.errorf("unexpected question mark instead of tag name")
			t.startTag(TokenComment)
			t.reconsume()
			t.state = bogusCommentState
		default:
			t.errorf("invalid first character of tag name %q", r)
			t.appendText("<")
			t.reconsume()
			t.state = dataState
		}

	case endTagOpenState:
		switch {
		case !ok:
			t.errorf("eof before tag name")
			t.appendText("</")
			t.emitEOF()
		case isASCIIAlpha(r):
			t.startTag(TokenEndTag)
			t.reconsume()
			t.state = tagNameState
		case r == '>':
			t.errorf("missing end tag name")
			t.state = dataState
		default:
			t.errorf("invalid first character of tag name %q", r)
			t.startTag(TokenComment)
			t.reconsume()
			t.state = bogusCommentState
		}

	case tagNameState:
		switch {
		case !ok:
			t.errorf("eof in tag")
			t.emitEOF()
		case isSpace(r):
			t.state = beforeAttributeNameState
		case r == '/':
			t.state = selfClosingStartTagState
		case r == '>':
			t.emitTag()
		default:
			t.tag.TagName += string(toLower(r))
		}

	case beforeAttributeNameState:
		switch {
		case ok && isSpace(r):
		case !ok || r == '/' || r == '>':
			t.reconsume()
			t.state = afterAttributeNameState
		case r == '=':
			t.errorf("unexpected equals sign before attribute name")
			t.startAttr()
			t.attr.Name = "="
			t.state = attributeNameState
		default:
			t.startAttr()
			t.reconsume()
			t.state = attributeNameState
		}

	case attributeNameState:
		switch {
		case !ok || isSpace(r) || r == '/' || r == '>':
			t.reconsume()
			t.state = afterAttributeNameState
		case r == '=':
			t.state = beforeAttributeValueState
		default:
			if r == '"' || r == '\'' || r == '<' {
				t.errorf("unexpected character %q in attribute name", r)
			}
			t.attr.Name += string(toLower(r))
		}

	case afterAttributeNameState:
		switch {
		case !ok:
			t.errorf("eof in tag")
			t.emitEOF()
		case isSpace(r):
		case r == '/':
			t.state = selfClosingStartTagState
		case r == '=':
			t.state = beforeAttributeValueState
		case r == '>':
			t.emitTag()
		default:
			t.startAttr()
			t.reconsume()
			t.state = attributeNameState
		}

	case beforeAttributeValueState:
		switch {
		case ok && isSpace(r):
		case ok && r == '"':
			t.state = attributeValueDoubleQuotedState
		case ok && r == '\'':
			t.state = attributeValueSingleQuotedState
		case ok && r == '>':
			t.errorf("missing attribute value")
			t.emitTag()
		default:
			t.reconsume()
			t.state = attributeValueUnquotedState
		}

	case attributeValueDoubleQuotedState, attributeValueSingleQuotedState:
		quote := '"'
		if t.state == attributeValueSingleQuotedState {
			quote = '\''
		}
		switch {
		case !ok:
			t.errorf("eof in tag")
			t.emitEOF()
		case r == quote:
			t.state = afterAttributeValueQuotedState
		case r == '&':
			t.attr.Value += t.charRef(true)
		default:
			t.attr.Value += string(r)
		}

	case attributeValueUnquotedState:
		switch {
		case !ok:
			t.errorf("eof in tag")
			t.emitEOF()
		case isSpace(r):
			t.state = beforeAttributeNameState
		case r == '&':
			t.attr.Value += t.charRef(true)
		case r == '>':
			t.emitTag()
		default:
			if r == '"' || r == '\'' || r == '<' || r == '=' || r == '`' {
				t.errorf("unexpected character %q in unquoted attribute value", r)
			}
			t.attr.Value += string(r)
		}

	case afterAttributeValueQuotedState:
		switch {
		case !ok:
			t.errorf("eof in tag")
			t.emitEOF()
		case isSpace(r):
			t.state = beforeAttributeNameState
		case r == '/':
			t.state = selfClosingStartTagState
		case r == '>':
			t.emitTag()
		default:
			t.errorf("missing whitespace between attributes")
			t.reconsume()
			t.state = beforeAttributeNameState
		}

	case selfClosingStartTagState:
		switch {
		case !ok:
			t.errorf("eof in tag")
			t.emitEOF()
		case r == '>':
			t.tag.SelfClosing = true
			t.emitTag()
		default:
			t.errorf("unexpected solidus in tag")
			t.reconsume()
			t.state = beforeAttributeNameState
		}

	case commentStartState:
		switch {
		case ok && r == '-':
			t.state = commentStartDashState
		case ok && r == '>':
			t.errorf("abrupt closing of empty comment")
			t.emitComment()
		default:
			t.reconsume()
			t.state = commentState
		}

	case commentStartDashState:
		switch {
		case !ok:
			t.errorf("eof in comment")
			t.emitComment()
			t.emitEOF()
		case r == '-':
			t.state = commentEndState
		case r == '>':
			t.errorf("abrupt closing of empty comment")
			t.emitComment()
		default:
			t.comment.WriteByte('-')
			t.reconsume()
			t.state = commentState
		}

	case commentState:
		switch {
		case !ok:
			t.errorf("eof in comment")
			t.emitComment()
			t.emitEOF()
		case r == '-':
			t.state = commentEndDashState
		default:
			t.comment.WriteRune(r)
		}

	case commentEndDashState:
		switch {
		case !ok:
			t.errorf("eof in comment")
			t.emitComment()
			t.emitEOF()
		case r == '-':
			t.state = commentEndState
		default:
			t.comment.WriteByte('-')
			t.reconsume()
			t.state = commentState
		}

	case commentEndState:
		switch {
		case !ok:
			t.errorf("eof in comment")
			t.emitComment()
			t.emitEOF()
		case r == '>':
			t.emitComment()
		case r == '-':
			t.comment.WriteByte('-')
		default:
			t.comment.WriteString("--")
			t.reconsume()
			t.state = commentState
		}

	case bogusCommentState:
		switch {
		case !ok:
			t.emitComment()
			t.emitEOF()
		case r == '>':
			t.emitComment()
		default:
			t.comment.WriteRune(r)
		}

	case doctypeState:
		switch {
		case !ok:
			t.errorf("eof in doctype")
			t.emitEOF()
		case r == '>':
			t.queue = append(t.queue, Token{
				Type:   TokenDoctype,
				Text:   strings.ToLower(strings.TrimSpace(t.comment.String())),
				Line:   t.tag.Line,
				Column: t.tag.Column,
			})
			t.comment.Reset()
			t.state = dataState
		default:
			t.comment.WriteRune(r)
		}
	}
}

// markupDeclarationOpen runs after "<!" and decides between a comment, a
// doctype and a bogus comment by looking ahead.
func (t *Tokenizer) markupDeclarationOpen() {
	rest := t.input[t.pos:]
	t.startTag(TokenComment)
	switch {
	case strings.HasPrefix(rest, "--"):
		t.pos += 2
		t.col += 2
		t.state = commentStartState
	case len(rest) >= 7 && strings.EqualFold(rest[:7], "doctype"):
		t.pos += 7
		t.col += 7
		t.state = doctypeState
	default:
		t.errorf("incorrectly opened comment")
		t.state = bogusCommentState
	}
}

// rawText consumes everything up to the matching end tag of a raw text
// element without interpreting markup or character references.
func (t *Tokenizer) rawText() {
	rest := t.input[t.pos:]
	end := findRawEnd(rest, t.rawTag)
	if end < 0 {
		t.errorf("eof in <%s>", t.rawTag)
		end = len(rest)
	}
	if end > 0 {
		t.prevLine, t.prevCol = t.line, t.col
		t.appendText(rest[:end])
		for _, r := range rest[:end] {
			if r == '\n' {
				t.line++
				t.col = 1
			} else {
				t.col++
			}
		}
		t.pos += end
	}
	t.state = dataState
	if t.pos >= len(t.input) {
		t.emitEOF()
	}
}

func findRawEnd(s, tag string) int {
	from := 0
	for {
		i := strings.Index(s[from:], "</")
		if i < 0 {
			return -1
		}
		i += from
		j := i + 2 + len(tag)
		if j <= len(s) && strings.EqualFold(s[i+2:j], tag) {
			if j == len(s) || isSpace(rune(s[j])) || s[j] == '>' || s[j] == '/' {
				return i
			}
		}
		from = i + 2
	}
}

// charRef decodes a character reference after '&'. On failure the '&' is
// kept literally and the input position is left untouched.
func (t *Tokenizer) charRef(inAttr bool) string {
	rest := t.input[t.pos:]
	if strings.HasPrefix(rest, "#") {
		return t.numericCharRef(rest)
	}
	n := 0
	for n < len(rest) && n < 32 && (isASCIIAlpha(rune(rest[n])) || (rest[n] >= '0' && rest[n] <= '9')) {
		n++
	}
	if n == 0 {
		return "&"
	}
	name := rest[:n]
	if n < len(rest) && rest[n] == ';' {
		if decoded := gohtml.UnescapeString("&" + name + ";"); decoded != "&"+name+";" {
			t.advance(n + 1)
			return decoded
		}
		t.errorf("unknown named character reference &%s;", name)
		return "&"
	}
	// Legacy references without a semicolon, outside attribute values.
	if !inAttr {
		switch name {
		case "amp", "lt", "gt", "quot", "nbsp":
			t.errorf("missing semicolon after character reference &%s", name)
			t.advance(n)
			return gohtml.UnescapeString("&" + name + ";")
		}
	}
	return "&"
}

func (t *Tokenizer) numericCharRef(rest string) string {
	i := 1
	base := 10
	if i < len(rest) && (rest[i] == 'x' || rest[i] == 'X') {
		base = 16
		i++
	}
	start := i
	for i < len(rest) && isDigit(rest[i], base) {
		i++
	}
	if i == start {
		t.errorf("absence of digits in numeric character reference")
		return "&"
	}
	v, err := strconv.ParseUint(rest[start:i], base, 32)
	if i < len(rest) && rest[i] == ';' {
		i++
	} else {
		t.errorf("missing semicolon after character reference")
	}
	t.advance(i)
	if err != nil || v == 0 || v > utf8.MaxRune || (v >= 0xD800 && v <= 0xDFFF) {
		t.errorf("invalid character reference value")
		return "\uFFFD"
	}
	return string(rune(v))
}

func isDigit(c byte, base int) bool {
	if c >= '0' && c <= '9' {
		return true
	}
	if base == 16 {
		return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
	}
	return false
}

// advance skips n ASCII bytes that were examined by lookahead.
func (t *Tokenizer) advance(n int) {
	t.pos += n
	t.col += n
}
