package css

import (
	"image/color"
)

type Display int

const (
	DisplayInline Display = iota
	DisplayBlock
	DisplayInlineBlock
	DisplayListItem
	DisplayNone
	DisplayFlex
	DisplayGrid
	DisplayTable
	DisplayTableRow
	DisplayTableCell
)

var displayNames = map[string]Display{
	"inline":       DisplayInline,
	"block":        DisplayBlock,
	"inline-block": DisplayInlineBlock,
	"list-item":    DisplayListItem,
	"none":         DisplayNone,
	"flex":         DisplayFlex,
	"grid":         DisplayGrid,
	"table":        DisplayTable,
	"table-row":    DisplayTableRow,
	"table-cell":   DisplayTableCell,
}

// IsBlockLevel reports whether the element takes part in a block
// formatting context. Flex, grid and table containers are laid out as
// plain blocks.
func (d Display) IsBlockLevel() bool {
	switch d {
	case DisplayInline, DisplayInlineBlock, DisplayNone:
		return false
	}
	return true
}

func (d Display) String() string { return nameOf(displayNames, d) }

type Position int

const (
	PositionStatic Position = iota
	PositionRelative
	PositionAbsolute
	PositionFixed
	PositionSticky
)

var positionNames = map[string]Position{
	"static":   PositionStatic,
	"relative": PositionRelative,
	"absolute": PositionAbsolute,
	"fixed":    PositionFixed,
	"sticky":   PositionSticky,
}

func (p Position) String() string { return nameOf(positionNames, p) }

type Float int

const (
	FloatNone Float = iota
	FloatLeft
	FloatRight
)

var floatNames = map[string]Float{"none": FloatNone, "left": FloatLeft, "right": FloatRight}

func (f Float) String() string { return nameOf(floatNames, f) }

type Overflow int

const (
	OverflowVisible Overflow = iota
	OverflowHidden
	OverflowScroll
	OverflowAuto
	OverflowClip
)

var overflowNames = map[string]Overflow{
	"visible": OverflowVisible,
	"hidden":  OverflowHidden,
	"scroll":  OverflowScroll,
	"auto":    OverflowAuto,
	"clip":    OverflowClip,
}

// Clips reports whether content outside the padding box is cut off.
func (o Overflow) Clips() bool { return o != OverflowVisible }

func (o Overflow) String() string { return nameOf(overflowNames, o) }

type Visibility int

const (
	VisibilityVisible Visibility = iota
	VisibilityHidden
	VisibilityCollapse
)

var visibilityNames = map[string]Visibility{
	"visible":  VisibilityVisible,
	"hidden":   VisibilityHidden,
	"collapse": VisibilityCollapse,
}

func (v Visibility) String() string { return nameOf(visibilityNames, v) }

type BorderStyle int

const (
	BorderNone BorderStyle = iota
	BorderHidden
	BorderSolid
	BorderDashed
	BorderDotted
	BorderDouble
	BorderGroove
	BorderRidge
	BorderInset
	BorderOutset
)

var borderStyleNames = map[string]BorderStyle{
	"none":   BorderNone,
	"hidden": BorderHidden,
	"solid":  BorderSolid,
	"dashed": BorderDashed,
	"dotted": BorderDotted,
	"double": BorderDouble,
	"groove": BorderGroove,
	"ridge":  BorderRidge,
	"inset":  BorderInset,
	"outset": BorderOutset,
}

func (b BorderStyle) String() string { return nameOf(borderStyleNames, b) }

type TextAlign int

const (
	TextAlignLeft TextAlign = iota
	TextAlignRight
	TextAlignCenter
	TextAlignJustify
)

var textAlignNames = map[string]TextAlign{
	"left":    TextAlignLeft,
	"right":   TextAlignRight,
	"center":  TextAlignCenter,
	"justify": TextAlignJustify,
}

func (t TextAlign) String() string { return nameOf(textAlignNames, t) }

type WhiteSpace int

const (
	WhiteSpaceNormal WhiteSpace = iota
	WhiteSpaceNoWrap
	WhiteSpacePre
	WhiteSpacePreWrap
	WhiteSpacePreLine
)

var whiteSpaceNames = map[string]WhiteSpace{
	"normal":   WhiteSpaceNormal,
	"nowrap":   WhiteSpaceNoWrap,
	"pre":      WhiteSpacePre,
	"pre-wrap": WhiteSpacePreWrap,
	"pre-line": WhiteSpacePreLine,
}

// CollapsesSpaces reports whether runs of spaces collapse to one.
func (w WhiteSpace) CollapsesSpaces() bool {
	return w == WhiteSpaceNormal || w == WhiteSpaceNoWrap || w == WhiteSpacePreLine
}

// PreservesNewlines reports whether a newline forces a line break.
func (w WhiteSpace) PreservesNewlines() bool {
	return w == WhiteSpacePre || w == WhiteSpacePreWrap || w == WhiteSpacePreLine
}

// Wraps reports whether lines may break at soft opportunities.
func (w WhiteSpace) Wraps() bool {
	return w != WhiteSpaceNoWrap && w != WhiteSpacePre
}

func (w WhiteSpace) String() string { return nameOf(whiteSpaceNames, w) }

type FontStyle int

const (
	FontStyleNormal FontStyle = iota
	FontStyleItalic
	FontStyleOblique
)

var fontStyleNames = map[string]FontStyle{
	"normal":  FontStyleNormal,
	"italic":  FontStyleItalic,
	"oblique": FontStyleOblique,
}

func (f FontStyle) String() string { return nameOf(fontStyleNames, f) }

func nameOf[T comparable](m map[string]T, v T) string {
	for k, x := range m {
		if x == v {
			return k
		}
	}
	return "?"
}

// Box sides, in CSS shorthand order.
const (
	Top = iota
	Right
	Bottom
	Left
)

// Style is the computed style of a node. All fields are comparable so two
// styles can be compared with ==.
type Style struct {
	Display    Display
	Position   Position
	Float      Float
	Overflow   Overflow
	Visibility Visibility
	ZIndex     int
	ZIndexAuto bool

	Width     Length
	Height    Length
	MinWidth  Length
	MinHeight Length
	MaxWidth  Length
	MaxHeight Length

	Margin      [4]Length
	Padding     [4]Length
	BorderWidth [4]float64
	BorderStyle [4]BorderStyle
	BorderColor [4]color.RGBA
	// Offset holds top, right, bottom, left for positioned elements.
	Offset [4]Length

	Color           color.RGBA
	BackgroundColor color.RGBA

	FontFamily string
	FontSize   float64
	FontWeight int
	FontStyle  FontStyle
	// LineHeight is auto for "normal", a number for multipliers, or px.
	LineHeight Length
	TextAlign  TextAlign
	WhiteSpace WhiteSpace

	// set during computation, resolved in finish
	borderColorCurrent [4]bool
}

// UsedLineHeight returns the line height in px.
func (s *Style) UsedLineHeight() float64 {
	switch s.LineHeight.Unit {
	case UnitNumber:
		return s.LineHeight.Value * s.FontSize
	case UnitPx:
		return s.LineHeight.Value
	}
	return s.FontSize * 1.2
}

// Visible reports whether the node paints.
func (s *Style) Visible() bool { return s.Visibility == VisibilityVisible }

// Value returns the computed value of a longhand property as CSS text.
func (s *Style) Value(property string) (string, bool) {
	p, ok := properties[property]
	if !ok {
		return "", false
	}
	return p.get(s), true
}

// PropertyNames lists every supported longhand property, sorted.
func PropertyNames() []string {
	return sortedPropertyNames
}

// Initial returns the style every property's initial value produces.
func Initial() *Style {
	s := initialStyle
	s.finish()
	return &s
}

// inherit derives a child's starting style: inherited properties come from
// the parent, the rest are initial.
func (s *Style) inherit() *Style {
	c := initialStyle
	for _, name := range inheritedNames {
		properties[name].copy(&c, s)
	}
	return &c
}

// finish resolves values that depend on other properties of the same
// element.
func (s *Style) finish() {
	for side := 0; side < 4; side++ {
		if s.borderColorCurrent[side] {
			s.BorderColor[side] = s.Color
			s.borderColorCurrent[side] = false
		}
		if s.BorderStyle[side] == BorderNone || s.BorderStyle[side] == BorderHidden {
			s.BorderWidth[side] = 0
		}
	}
	if s.Display == DisplayNone {
		return
	}
	// Floated and absolutely positioned elements are blockified.
	if s.Float != FloatNone || s.Position == PositionAbsolute || s.Position == PositionFixed {
		if s.Display == DisplayInline || s.Display == DisplayInlineBlock {
			s.Display = DisplayBlock
		}
	}
}

// AnonymousStyle returns the style of an anonymous block generated inside
// an element with style parent.
func AnonymousStyle(parent *Style) *Style {
	s := parent.inherit()
	s.Display = DisplayBlock
	s.finish()
	return s
}
