// Package diag holds the error taxonomy shared by every pipeline stage.
//
// Input-driven problems are recorded as Diagnostics and never stop a pass.
// The only fatal class is InvariantError, which signals a defect in the
// engine itself.
package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Diagnostic kinds. A Diagnostic unwraps to exactly one of these.
var (
	ErrMalformedMarkup      = errors.New("malformed markup")
	ErrMalformedStyleRule   = errors.New("malformed style rule")
	ErrMalformedDeclaration = errors.New("malformed declaration")
	ErrUnresolvedProperty   = errors.New("unresolved property")
	ErrLayoutConstraint     = errors.New("layout constraint violation")
	ErrFetch                = errors.New("fetch error")
	ErrRaster               = errors.New("raster error")
)

// Stage identifies the pipeline stage that produced a diagnostic.
type Stage int

const (
	StageParse Stage = iota
	StageStylesheet
	StageStyle
	StageBoxTree
	StageLayout
	StagePaint
	StageFetch
	StageRaster
)

var stageNames = [...]string{"parse", "stylesheet", "style", "boxtree", "layout", "paint", "fetch", "raster"}

func (s Stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Diagnostic is a recovered, non-fatal problem.
type Diagnostic struct {
	Kind   error
	Stage  Stage
	Line   int
	Column int
	// Node is the DOM node the problem relates to, or -1.
	Node   int
	Detail string
	cause  error
}

// New creates a diagnostic without position information.
func New(kind error, stage Stage, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Stage: stage, Node: -1, Detail: fmt.Sprintf(format, args...)}
}

// At creates a diagnostic at a source position.
func At(kind error, stage Stage, line, col int, format string, args ...interface{}) *Diagnostic {
	d := New(kind, stage, format, args...)
	d.Line, d.Column = line, col
	return d
}

// WithNode attaches a DOM node id.
func (d *Diagnostic) WithNode(id int) *Diagnostic {
	d.Node = id
	return d
}

// WithCause attaches the underlying error, e.g. a transport failure.
func (d *Diagnostic) WithCause(err error) *Diagnostic {
	d.cause = err
	return d
}

// Cause returns the underlying error, if any.
func (d *Diagnostic) Cause() error { return d.cause }

func (d *Diagnostic) Error() string {
	var b strings.Builder
	b.WriteString(d.Stage.String())
	if d.Line > 0 {
		fmt.Fprintf(&b, " %d:%d", d.Line, d.Column)
	}
	if d.Node >= 0 {
		fmt.Fprintf(&b, " node=%d", d.Node)
	}
	b.WriteString(": ")
	b.WriteString(d.Kind.Error())
	if d.Detail != "" {
		b.WriteString(": ")
		b.WriteString(d.Detail)
	}
	if d.cause != nil {
		b.WriteString(": ")
		b.WriteString(d.cause.Error())
	}
	return b.String()
}

func (d *Diagnostic) Unwrap() error { return d.Kind }

// List is an ordered set of diagnostics.
type List []*Diagnostic

// Err folds the list into a single error, or nil when empty.
// errors.Is on the result matches the kind of any contained diagnostic.
func (l List) Err() error {
	if len(l) == 0 {
		return nil
	}
	out := make(List, len(l))
	copy(out, l)
	return &Errors{List: out}
}

// Count returns how many diagnostics have the given kind.
func (l List) Count(kind error) int {
	n := 0
	for _, d := range l {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Errors is the error form of a non-empty List.
type Errors struct {
	List List
}

func (e *Errors) Error() string {
	if len(e.List) == 1 {
		return e.List[0].Error()
	}
	return fmt.Sprintf("%s (and %d more)", e.List[0].Error(), len(e.List)-1)
}

// Is reports whether any contained diagnostic has the target kind.
func (e *Errors) Is(target error) bool {
	for _, d := range e.List {
		if d.Kind == target {
			return true
		}
	}
	return false
}

// Collector accumulates diagnostics from concurrent workers.
type Collector struct {
	mu    sync.Mutex
	items List
}

// Add records d. A nil collector discards it.
func (c *Collector) Add(d *Diagnostic) {
	if c == nil || d == nil {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Addf records a new diagnostic.
func (c *Collector) Addf(kind error, stage Stage, format string, args ...interface{}) {
	c.Add(New(kind, stage, format, args...))
}

// Merge records every diagnostic in l.
func (c *Collector) Merge(l List) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.items = append(c.items, l...)
	c.mu.Unlock()
}

// List returns the collected diagnostics sorted by node, position and text,
// so that output does not depend on worker scheduling.
func (c *Collector) List() List {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	out := make(List, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Node != b.Node {
			return a.Node < b.Node
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Error() < b.Error()
	})
	return out
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
