package html

import (
	"testing"
)

func collect(src string) ([]Token, *Tokenizer) {
	tz := NewTokenizer(src)
	var out []Token
	for {
		tok := tz.Next()
		if tok.Type == TokenEOF {
			return out, tz
		}
		out = append(out, tok)
	}
}

func TestTokenizer_SimpleStartTag(t *testing.T) {
	tokens, _ := collect("<DIV>")
	if len(tokens) != 1 {
		t.Fatalf("expected 1 token, got %d", len(tokens))
	}
	if tokens[0].Type != TokenStartTag {
		t.Errorf("expected TokenStartTag, got %v", tokens[0].Type)
	}
	if tokens[0].TagName != "div" {
		t.Errorf("expected tag name 'div', got '%s'", tokens[0].TagName)
	}
}

func TestTokenizer_TagWithAttributes(t *testing.T) {
	tokens, tz := collect(`<div style="color: red" id='main' checked data-n=3>`)
	tok := tokens[0]
	if v, _ := tok.Attr("style"); v != "color: red" {
		t.Errorf("expected style='color: red', got '%s'", v)
	}
	if v, _ := tok.Attr("id"); v != "main" {
		t.Errorf("expected id='main', got '%s'", v)
	}
	if v, ok := tok.Attr("checked"); !ok || v != "" {
		t.Errorf("expected empty checked attribute, got %q %v", v, ok)
	}
	if v, _ := tok.Attr("data-n"); v != "3" {
		t.Errorf("expected data-n=3, got %q", v)
	}
	if len(tz.Diagnostics()) != 0 {
		t.Errorf("unexpected diagnostics: %v", tz.Diagnostics())
	}
}

func TestTokenizer_CompleteSequence(t *testing.T) {
	tokens, _ := collect("<!DOCTYPE html><div>Hello</div><!--c-->")
	want := []TokenType{TokenDoctype, TokenStartTag, TokenText, TokenEndTag, TokenComment}
	if len(tokens) != len(want) {
		t.Fatalf("expected %d tokens, got %+v", len(want), tokens)
	}
	for i, typ := range want {
		if tokens[i].Type != typ {
			t.Errorf("token %d: got %v, want %v", i, tokens[i].Type, typ)
		}
	}
	if tokens[0].Text != "html" {
		t.Errorf("doctype name = %q", tokens[0].Text)
	}
	if tokens[2].Text != "Hello" {
		t.Errorf("text = %q", tokens[2].Text)
	}
	if tokens[4].Text != "c" {
		t.Errorf("comment = %q", tokens[4].Text)
	}
}

func TestTokenizer_SelfClosing(t *testing.T) {
	tokens, _ := collect(`<br/><img src="a.png" />`)
	if !tokens[0].SelfClosing || !tokens[1].SelfClosing {
		t.Errorf("self-closing flags: %v %v", tokens[0].SelfClosing, tokens[1].SelfClosing)
	}
	if v, _ := tokens[1].Attr("src"); v != "a.png" {
		t.Errorf("src = %q", v)
	}
}

func TestTokenizer_CharacterReferences(t *testing.T) {
	tests := []struct {
		src  string
		want string
		errs int
	}{
		{"a &amp; b", "a & b", 0},
		{"&#65;&#x42;", "AB", 0},
		{"&copy; 2024", "© 2024", 0},
		{"AT&T", "AT&T", 0},
		{"&bogus;", "&bogus;", 1},
		{"&amp no semicolon", "& no semicolon", 1},
		{"&#;", "&#;", 1},
		{"&#0;", "\uFFFD", 1},
	}
	for _, tt := range tests {
		tokens, tz := collect(tt.src)
		if len(tokens) != 1 || tokens[0].Text != tt.want {
			t.Errorf("%q: got %+v, want text %q", tt.src, tokens, tt.want)
		}
		if got := len(tz.Diagnostics()); got != tt.errs {
			t.Errorf("%q: %d diagnostics, want %d: %v", tt.src, got, tt.errs, tz.Diagnostics())
		}
	}
}

func TestTokenizer_AttributeCharacterReference(t *testing.T) {
	tokens, _ := collect(`<a href="?a=1&amp;b=2&c=3">`)
	if v, _ := tokens[0].Attr("href"); v != "?a=1&b=2&c=3" {
		t.Errorf("href = %q", v)
	}
}

func TestTokenizer_RawText(t *testing.T) {
	tokens, _ := collect(`<style>a < b { x: "</p>" }</style ><p>`)
	if len(tokens) != 4 {
		t.Fatalf("expected 4 tokens, got %+v", tokens)
	}
	if tokens[1].Type != TokenText || tokens[1].Text != `a < b { x: "</p>" }` {
		t.Errorf("raw text = %+v", tokens[1])
	}
	if tokens[2].Type != TokenEndTag || tokens[2].TagName != "style" {
		t.Errorf("expected </style>, got %+v", tokens[2])
	}
	if tokens[3].TagName != "p" {
		t.Errorf("expected <p> after raw text, got %+v", tokens[3])
	}
}

func TestTokenizer_LessThanInText(t *testing.T) {
	tokens, tz := collect("1 < 2")
	if len(tokens) != 1 || tokens[0].Text != "1 < 2" {
		t.Errorf("got %+v", tokens)
	}
	if len(tz.Diagnostics()) != 1 {
		t.Errorf("expected one diagnostic, got %v", tz.Diagnostics())
	}
}

func TestTokenizer_DuplicateAttribute(t *testing.T) {
	tokens, tz := collect(`<p class="a" class="b">`)
	if len(tokens[0].Attrs) != 1 {
		t.Fatalf("expected duplicate to be dropped, got %v", tokens[0].Attrs)
	}
	if v, _ := tokens[0].Attr("class"); v != "a" {
		t.Errorf("first attribute should win, got %q", v)
	}
	if len(tz.Diagnostics()) != 1 {
		t.Errorf("expected a diagnostic")
	}
}

func TestTokenizer_EOFInTag(t *testing.T) {
	tokens, tz := collect(`text<div class="x`)
	if len(tokens) != 1 || tokens[0].Type != TokenText {
		t.Errorf("unterminated tag should be dropped, got %+v", tokens)
	}
	if len(tz.Diagnostics()) == 0 {
		t.Error("expected eof-in-tag diagnostic")
	}
}

func TestTokenizer_Positions(t *testing.T) {
	tokens, _ := collect("<p>\n  <b>x</b>")
	var b Token
	for _, tok := range tokens {
		if tok.Type == TokenStartTag && tok.TagName == "b" {
			b = tok
		}
	}
	if b.Line != 2 || b.Column != 3 {
		t.Errorf("<b> at %d:%d, want 2:3", b.Line, b.Column)
	}
}
