package css

import (
	"fmt"
	"strings"

	"github.com/gorilla/css/scanner"
)

// Combinator joins two compound selectors.
type Combinator int

const (
	DescendantCombinator      Combinator = iota // A B
	ChildCombinator                             // A > B
	AdjacentSiblingCombinator                   // A + B
	GeneralSiblingCombinator                    // A ~ B
)

var combinatorText = [...]string{" ", " > ", " + ", " ~ "}

// AttributeSelector is [name], [name=value] or [name<op>value].
type AttributeSelector struct {
	Name     string
	Operator string // "", "=", "~=", "|=", "^=", "$=", "*="
	Value    string
}

func (a AttributeSelector) String() string {
	if a.Operator == "" {
		return "[" + a.Name + "]"
	}
	return fmt.Sprintf("[%s%s%q]", a.Name, a.Operator, a.Value)
}

// Compound is a sequence of simple selectors with no combinator between
// them, e.g. div.note#main[lang].
type Compound struct {
	Tag            string // "" or "*" for any
	ID             string
	Classes        []string
	Attributes     []AttributeSelector
	PseudoClasses  []string
	PseudoElements []string
}

func (c *Compound) String() string {
	var b strings.Builder
	b.WriteString(c.Tag)
	if c.ID != "" {
		b.WriteString("#" + c.ID)
	}
	for _, cl := range c.Classes {
		b.WriteString("." + cl)
	}
	for _, a := range c.Attributes {
		b.WriteString(a.String())
	}
	for _, p := range c.PseudoClasses {
		b.WriteString(":" + p)
	}
	for _, p := range c.PseudoElements {
		b.WriteString("::" + p)
	}
	if b.Len() == 0 {
		return "*"
	}
	return b.String()
}

// Selector is a complex selector. Combinators[i] joins Compounds[i] and
// Compounds[i+1]; the last compound is the subject.
type Selector struct {
	Compounds   []Compound
	Combinators []Combinator
}

func (s *Selector) String() string {
	var b strings.Builder
	for i := range s.Compounds {
		if i > 0 {
			b.WriteString(combinatorText[s.Combinators[i-1]])
		}
		b.WriteString(s.Compounds[i].String())
	}
	return b.String()
}

// Subject returns the rightmost compound.
func (s *Selector) Subject() *Compound {
	return &s.Compounds[len(s.Compounds)-1]
}

// Specificity is the (a, b, c) triple: ids, then classes, attributes and
// pseudo-classes, then types and pseudo-elements.
type Specificity struct {
	A, B, C int
}

// Less compares lexicographically.
func (s Specificity) Less(o Specificity) bool {
	if s.A != o.A {
		return s.A < o.A
	}
	if s.B != o.B {
		return s.B < o.B
	}
	return s.C < o.C
}

func (s Specificity) String() string {
	return fmt.Sprintf("(%d,%d,%d)", s.A, s.B, s.C)
}

func (s *Selector) Specificity() Specificity {
	var sp Specificity
	for i := range s.Compounds {
		c := &s.Compounds[i]
		if c.ID != "" {
			sp.A++
		}
		sp.B += len(c.Classes) + len(c.Attributes) + len(c.PseudoClasses)
		if c.Tag != "" && c.Tag != "*" {
			sp.C++
		}
		sp.C += len(c.PseudoElements)
	}
	return sp
}

// hasSiblingCombinator reports whether matching depends on siblings.
func (s *Selector) hasSiblingCombinator() bool {
	for _, c := range s.Combinators {
		if c == AdjacentSiblingCombinator || c == GeneralSiblingCombinator {
			return true
		}
	}
	for i := range s.Compounds {
		for _, p := range s.Compounds[i].PseudoClasses {
			if structuralPseudo[p] {
				return true
			}
		}
	}
	return false
}

// ParseSelector parses a comma separated selector list.
func ParseSelector(text string) ([]Selector, error) {
	toks, err := lex(text)
	if err != nil {
		return nil, err
	}
	return parseSelectorList(toks)
}

func parseSelectorList(toks []*scanner.Token) ([]Selector, error) {
	var out []Selector
	start := 0
	for i := 0; i <= len(toks); i++ {
		if i < len(toks) && !isChar(toks[i], ",") {
			continue
		}
		sel, err := parseComplex(trimSpace(toks[start:i]))
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
		start = i + 1
	}
	return out, nil
}

func parseComplex(toks []*scanner.Token) (Selector, error) {
	var sel Selector
	if len(toks) == 0 {
		return sel, fmt.Errorf("empty selector")
	}
	pos := 0
	for {
		c, n, err := parseCompound(toks[pos:])
		if err != nil {
			return sel, err
		}
		sel.Compounds = append(sel.Compounds, c)
		pos += n
		if pos >= len(toks) {
			return sel, nil
		}

		sawSpace := false
		for pos < len(toks) && toks[pos].Type == scanner.TokenS {
			sawSpace = true
			pos++
		}
		comb := DescendantCombinator
		if pos < len(toks) && toks[pos].Type == scanner.TokenChar {
			switch toks[pos].Value {
			case ">":
				comb = ChildCombinator
			case "+":
				comb = AdjacentSiblingCombinator
			case "~":
				comb = GeneralSiblingCombinator
			default:
				if !sawSpace {
					return sel, fmt.Errorf("unexpected %q in selector", toks[pos].Value)
				}
			}
			if comb != DescendantCombinator {
				pos++
				for pos < len(toks) && toks[pos].Type == scanner.TokenS {
					pos++
				}
			}
		}
		if pos >= len(toks) {
			return sel, fmt.Errorf("selector ends with a combinator")
		}
		sel.Combinators = append(sel.Combinators, comb)
	}
}

// parseCompound consumes simple selectors up to whitespace or a
// combinator and returns how many tokens it used.
func parseCompound(toks []*scanner.Token) (Compound, int, error) {
	var c Compound
	pos := 0
	simple := 0
	for pos < len(toks) {
		t := toks[pos]
		switch {
		case t.Type == scanner.TokenIdent:
			if simple > 0 {
				return c, pos, fmt.Errorf("type selector %q must come first", t.Value)
			}
			c.Tag = strings.ToLower(t.Value)
			pos++
		case isChar(t, "*"):
			if simple > 0 {
				return c, pos, fmt.Errorf("universal selector must come first")
			}
			c.Tag = "*"
			pos++
		case t.Type == scanner.TokenHash:
			name := t.Value[1:]
			if name == "" || name[0] >= '0' && name[0] <= '9' {
				return c, pos, fmt.Errorf("invalid id selector %q", t.Value)
			}
			if c.ID != "" && c.ID != name {
				// Two different ids can never match; keep the selector so
				// specificity stays right but make it unmatchable.
				c.PseudoClasses = append(c.PseudoClasses, "-never")
			}
			c.ID = name
			pos++
		case isChar(t, "."):
			if pos+1 >= len(toks) || toks[pos+1].Type != scanner.TokenIdent {
				return c, pos, fmt.Errorf("expected class name after '.'")
			}
			c.Classes = append(c.Classes, toks[pos+1].Value)
			pos += 2
		case isChar(t, "["):
			a, n, err := parseAttribute(toks[pos:])
			if err != nil {
				return c, pos, err
			}
			c.Attributes = append(c.Attributes, a)
			pos += n
		case isChar(t, ":"):
			if pos+1 < len(toks) && isChar(toks[pos+1], ":") {
				if pos+2 >= len(toks) || toks[pos+2].Type != scanner.TokenIdent {
					return c, pos, fmt.Errorf("expected pseudo-element name")
				}
				c.PseudoElements = append(c.PseudoElements, strings.ToLower(toks[pos+2].Value))
				pos += 3
				break
			}
			if pos+1 >= len(toks) {
				return c, pos, fmt.Errorf("expected pseudo-class name")
			}
			next := toks[pos+1]
			if next.Type == scanner.TokenFunction {
				return c, pos, fmt.Errorf("unsupported functional pseudo-class %s)", next.Value)
			}
			if next.Type != scanner.TokenIdent {
				return c, pos, fmt.Errorf("expected pseudo-class name")
			}
			name := strings.ToLower(next.Value)
			switch name {
			case "before", "after", "first-line", "first-letter":
				c.PseudoElements = append(c.PseudoElements, name)
			default:
				c.PseudoClasses = append(c.PseudoClasses, name)
			}
			pos += 2
		case t.Type == scanner.TokenS || isChar(t, ">") || isChar(t, "+") || isChar(t, "~"):
			if simple == 0 {
				return c, pos, fmt.Errorf("expected selector before combinator")
			}
			return c, pos, nil
		default:
			return c, pos, fmt.Errorf("unexpected %q in selector", t.Value)
		}
		simple++
	}
	if simple == 0 {
		return c, pos, fmt.Errorf("empty compound selector")
	}
	return c, pos, nil
}

var attrOperators = map[any]string{ // scanner token type is unexported; keys are scanner.Token*
	scanner.TokenIncludes:       "~=",
	scanner.TokenDashMatch:      "|=",
	scanner.TokenPrefixMatch:    "^=",
	scanner.TokenSuffixMatch:    "$=",
	scanner.TokenSubstringMatch: "*=",
}

func parseAttribute(toks []*scanner.Token) (AttributeSelector, int, error) {
	var a AttributeSelector
	pos := 1
	skip := func() {
		for pos < len(toks) && toks[pos].Type == scanner.TokenS {
			pos++
		}
	}
	skip()
	if pos >= len(toks) || toks[pos].Type != scanner.TokenIdent {
		return a, pos, fmt.Errorf("expected attribute name")
	}
	a.Name = strings.ToLower(toks[pos].Value)
	pos++
	skip()
	if pos >= len(toks) {
		return a, pos, fmt.Errorf("unterminated attribute selector")
	}
	if isChar(toks[pos], "]") {
		return a, pos + 1, nil
	}
	if op, ok := attrOperators[toks[pos].Type]; ok {
		a.Operator = op
	} else if isChar(toks[pos], "=") {
		a.Operator = "="
	} else {
		return a, pos, fmt.Errorf("bad attribute operator %q", toks[pos].Value)
	}
	pos++
	skip()
	if pos >= len(toks) {
		return a, pos, fmt.Errorf("missing attribute value")
	}
	switch toks[pos].Type {
	case scanner.TokenIdent:
		a.Value = toks[pos].Value
	case scanner.TokenString:
		a.Value = unquote(toks[pos].Value)
	case scanner.TokenNumber:
		a.Value = toks[pos].Value
	default:
		return a, pos, fmt.Errorf("bad attribute value %q", toks[pos].Value)
	}
	pos++
	skip()
	if pos >= len(toks) || !isChar(toks[pos], "]") {
		return a, pos, fmt.Errorf("unterminated attribute selector")
	}
	return a, pos + 1, nil
}
