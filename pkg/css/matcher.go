package css

import (
	"strings"

	"lithium/pkg/html"
)

// structuralPseudo are the pseudo-classes a static document can answer.
// They depend on siblings, so a change can affect the parent's subtree.
var structuralPseudo = map[string]bool{
	"first-child": true,
	"last-child":  true,
	"only-child":  true,
	"empty":       true,
}

// Matches reports whether the element id is matched by the selector.
// Matching runs right to left: the subject first, then each combinator
// walks to the candidate parent or sibling.
func (s *Selector) Matches(doc *html.Document, id html.NodeID) bool {
	if !isElement(doc, id) || len(s.Compounds) == 0 {
		return false
	}
	return s.matchFrom(doc, id, len(s.Compounds)-1)
}

func isElement(doc *html.Document, id html.NodeID) bool {
	return doc.Valid(id) && doc.Nodes[id].Type == html.ElementNode
}

// matchFrom checks compound i against id and everything left of it.
func (s *Selector) matchFrom(doc *html.Document, id html.NodeID, i int) bool {
	if !matchCompound(doc, id, &s.Compounds[i]) {
		return false
	}
	if i == 0 {
		return true
	}

	switch s.Combinators[i-1] {
	case DescendantCombinator:
		for a := doc.Nodes[id].Parent; isElement(doc, a); a = doc.Nodes[a].Parent {
			if s.matchFrom(doc, a, i-1) {
				return true
			}
		}
	case ChildCombinator:
		if parent := doc.Nodes[id].Parent; isElement(doc, parent) {
			return s.matchFrom(doc, parent, i-1)
		}
	case AdjacentSiblingCombinator:
		if prev := doc.PrevElementSibling(id); prev != html.NoNode {
			return s.matchFrom(doc, prev, i-1)
		}
	case GeneralSiblingCombinator:
		for prev := doc.PrevElementSibling(id); prev != html.NoNode; prev = doc.PrevElementSibling(prev) {
			if s.matchFrom(doc, prev, i-1) {
				return true
			}
		}
	}
	return false
}

// matchCompound checks every simple selector of c against a single element.
func matchCompound(doc *html.Document, id html.NodeID, c *Compound) bool {
	n := &doc.Nodes[id]
	if c.Tag != "" && c.Tag != "*" && n.TagName != c.Tag {
		return false
	}
	if c.ID != "" && doc.ID(id) != c.ID {
		return false
	}
	for _, cl := range c.Classes {
		if !doc.HasClass(id, cl) {
			return false
		}
	}
	for _, a := range c.Attributes {
		if !matchAttribute(n, a) {
			return false
		}
	}
	for _, p := range c.PseudoClasses {
		if !matchPseudoClass(doc, id, p) {
			return false
		}
	}
	// Pseudo-elements generate no boxes here, so a selector targeting one
	// never applies to the element itself.
	return len(c.PseudoElements) == 0
}

// matchPseudoClass answers structural pseudo-classes. Dynamic ones (hover,
// focus, visited...) never match in a static render.
func matchPseudoClass(doc *html.Document, id html.NodeID, name string) bool {
	switch name {
	case "root":
		return doc.Nodes[id].Parent == doc.Root
	case "first-child":
		return doc.PrevElementSibling(id) == html.NoNode
	case "last-child":
		return doc.NextElementSibling(id) == html.NoNode
	case "only-child":
		return doc.PrevElementSibling(id) == html.NoNode && doc.NextElementSibling(id) == html.NoNode
	case "empty":
		for _, c := range doc.Nodes[id].Children {
			switch doc.Nodes[c].Type {
			case html.ElementNode:
				return false
			case html.TextNode:
				if doc.Nodes[c].Text != "" {
					return false
				}
			}
		}
		return true
	case "link", "any-link":
		_, ok := doc.Nodes[id].Attr("href")
		return doc.Nodes[id].TagName == "a" && ok
	}
	return false
}

// matchAttribute checks an attribute selector against a node.
func matchAttribute(n *html.Node, a AttributeSelector) bool {
	value, ok := n.Attr(a.Name)
	if !ok {
		return false
	}
	switch a.Operator {
	case "":
		return true
	case "=":
		return value == a.Value
	case "^=":
		return a.Value != "" && strings.HasPrefix(value, a.Value)
	case "$=":
		return a.Value != "" && strings.HasSuffix(value, a.Value)
	case "*=":
		return a.Value != "" && strings.Contains(value, a.Value)
	case "~=":
		for _, w := range strings.Fields(value) {
			if w == a.Value {
				return true
			}
		}
		return false
	case "|=":
		return value == a.Value || strings.HasPrefix(value, a.Value+"-")
	}
	return false
}

// indexedRule is one selector of one rule, flattened for the cascade.
type indexedRule struct {
	sel         *Selector
	rule        *Rule
	origin      Origin
	specificity Specificity
	// order is global across all sheets, in cascade order.
	order int
}

// ruleIndex buckets selectors by the most selective key of their subject
// so that only plausible rules are matched against each element.
type ruleIndex struct {
	byID      map[string][]*indexedRule
	byClass   map[string][]*indexedRule
	byTag     map[string][]*indexedRule
	universal []*indexedRule
	// sibling is set when any selector depends on sibling structure.
	sibling bool
}

func newRuleIndex(sheets []*Stylesheet) *ruleIndex {
	ix := &ruleIndex{
		byID:    map[string][]*indexedRule{},
		byClass: map[string][]*indexedRule{},
		byTag:   map[string][]*indexedRule{},
	}
	order := 0
	for _, sheet := range sheets {
		if sheet == nil {
			continue
		}
		for _, rule := range sheet.Rules {
			for i := range rule.Selectors {
				sel := &rule.Selectors[i]
				ir := &indexedRule{
					sel:         sel,
					rule:        rule,
					origin:      sheet.Origin,
					specificity: sel.Specificity(),
					order:       order,
				}
				order++
				if sel.hasSiblingCombinator() {
					ix.sibling = true
				}
				subj := sel.Subject()
				switch {
				case subj.ID != "":
					ix.byID[subj.ID] = append(ix.byID[subj.ID], ir)
				case len(subj.Classes) > 0:
					ix.byClass[subj.Classes[0]] = append(ix.byClass[subj.Classes[0]], ir)
				case subj.Tag != "" && subj.Tag != "*":
					ix.byTag[subj.Tag] = append(ix.byTag[subj.Tag], ir)
				default:
					ix.universal = append(ix.universal, ir)
				}
			}
		}
	}
	return ix
}

// match returns every indexed selector matching id, in no particular order.
func (ix *ruleIndex) match(doc *html.Document, id html.NodeID) []*indexedRule {
	var out []*indexedRule
	try := func(list []*indexedRule) {
		for _, ir := range list {
			if ir.sel.Matches(doc, id) {
				out = append(out, ir)
			}
		}
	}
	if v := doc.ID(id); v != "" {
		try(ix.byID[v])
	}
	seen := map[string]bool{}
	for _, cl := range doc.Classes(id) {
		if !seen[cl] {
			seen[cl] = true
			try(ix.byClass[cl])
		}
	}
	try(ix.byTag[doc.Nodes[id].TagName])
	try(ix.universal)
	return out
}
