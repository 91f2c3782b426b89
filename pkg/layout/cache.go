package layout

import (
	"sync"

	"lithium/pkg/css"
	"lithium/pkg/html"
)

// maxEntriesPerNode bounds how many constraint spaces are remembered for
// one node.
const maxEntriesPerNode = 4

type cacheEntry struct {
	cs     ConstraintSpace
	atomic bool
	style  *css.Style
	frag   *Fragment
}

// Cache keeps the fragments of element subtrees between layout passes,
// keyed by node and constraint space. A subtree stays valid until its node
// or one of its descendants changes; Invalidate drops the entries of a
// changed node and its ancestors, leaving sibling subtrees to be reused.
// It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[html.NodeID][]cacheEntry
}

func NewCache() *Cache {
	return &Cache{entries: map[html.NodeID][]cacheEntry{}}
}

func (c *Cache) get(box *Box, cs ConstraintSpace, atomic bool) (*Fragment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries[box.Node] {
		if e.cs == cs && e.atomic == atomic && e.style == box.Style && e.frag.Box.Kind == box.Kind {
			return e.frag, true
		}
	}
	return nil, false
}

func (c *Cache) put(box *Box, cs ConstraintSpace, atomic bool, f *Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	list := c.entries[box.Node]
	if len(list) >= maxEntriesPerNode {
		list = list[1:]
	}
	c.entries[box.Node] = append(list, cacheEntry{cs: cs, atomic: atomic, style: box.Style, frag: f})
}

// Invalidate drops the cached layout of node and of every ancestor of node
// in doc.
func (c *Cache) Invalidate(doc *html.Document, node html.NodeID) {
	if !doc.Valid(node) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, node)
	for _, a := range doc.Ancestors(node) {
		delete(c.entries, a)
	}
}

// Clear drops every entry, for changes such as a new viewport that affect
// the whole document.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = map[html.NodeID][]cacheEntry{}
	c.mu.Unlock()
}

// Len returns the number of cached subtrees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, l := range c.entries {
		n += len(l)
	}
	return n
}
