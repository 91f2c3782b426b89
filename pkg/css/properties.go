package css

import (
	"image/color"
	"sort"
	"strconv"
	"strings"
)

// computeContext carries what relative values resolve against.
type computeContext struct {
	parent       *Style
	rootFontSize float64
}

// property describes one longhand. apply returns false when the value is
// not valid for the property; the caller then falls back to the initial
// value.
type property struct {
	inherited bool
	apply     func(s *Style, v string, cx *computeContext) bool
	get       func(s *Style) string
	copy      func(dst, src *Style)
}

var initialStyle = Style{
	ZIndexAuto:         true,
	Width:              Auto,
	Height:             Auto,
	MinWidth:           Px(0),
	MinHeight:          Px(0),
	MaxWidth:           None,
	MaxHeight:          None,
	Offset:             [4]Length{Auto, Auto, Auto, Auto},
	BorderWidth:        [4]float64{3, 3, 3, 3},
	borderColorCurrent: [4]bool{true, true, true, true},
	Color:              color.RGBA{A: 255},
	FontFamily:         "serif",
	FontSize:           16,
	FontWeight:         400,
	LineHeight:         Auto,
}

func keyword[T comparable](inherited bool, field func(*Style) *T, names map[string]T) *property {
	return &property{
		inherited: inherited,
		apply: func(s *Style, v string, _ *computeContext) bool {
			k, ok := names[strings.ToLower(v)]
			if ok {
				*field(s) = k
			}
			return ok
		},
		get:  func(s *Style) string { return nameOf(names, *field(s)) },
		copy: func(dst, src *Style) { *field(dst) = *field(src) },
	}
}

type lengthRule struct {
	auto, none, negative, percent bool
}

// toPx resolves font-relative units against the element's own font size.
func toPx(l Length, s *Style, cx *computeContext) Length {
	switch l.Unit {
	case UnitEm:
		return Px(l.Value * s.FontSize)
	case UnitRem:
		return Px(l.Value * cx.rootFontSize)
	}
	return l
}

func lengthProp(inherited bool, field func(*Style) *Length, r lengthRule) *property {
	return &property{
		inherited: inherited,
		apply: func(s *Style, v string, cx *computeContext) bool {
			switch strings.ToLower(v) {
			case "auto":
				if r.auto {
					*field(s) = Auto
				}
				return r.auto
			case "none":
				if r.none {
					*field(s) = None
				}
				return r.none
			}
			l, ok := ParseLength(v)
			if !ok || (l.IsPercent() && !r.percent) {
				return false
			}
			l = toPx(l, s, cx)
			if l.Value < 0 && !r.negative {
				return false
			}
			*field(s) = l
			return true
		},
		get:  func(s *Style) string { return field(s).String() },
		copy: func(dst, src *Style) { *field(dst) = *field(src) },
	}
}

var borderWidthKeywords = map[string]float64{"thin": 1, "medium": 3, "thick": 5}

func borderWidthProp(side int) *property {
	return &property{
		apply: func(s *Style, v string, cx *computeContext) bool {
			if w, ok := borderWidthKeywords[strings.ToLower(v)]; ok {
				s.BorderWidth[side] = w
				return true
			}
			l, ok := ParseLength(v)
			if !ok || l.IsPercent() {
				return false
			}
			l = toPx(l, s, cx)
			if l.Value < 0 {
				return false
			}
			s.BorderWidth[side] = l.Value
			return true
		},
		get:  func(s *Style) string { return formatNumber(s.BorderWidth[side]) + "px" },
		copy: func(dst, src *Style) { dst.BorderWidth[side] = src.BorderWidth[side] },
	}
}

func borderColorProp(side int) *property {
	return &property{
		apply: func(s *Style, v string, _ *computeContext) bool {
			if strings.EqualFold(v, "currentcolor") {
				s.borderColorCurrent[side] = true
				return true
			}
			c, ok := ParseColor(v)
			if ok {
				s.BorderColor[side] = c
				s.borderColorCurrent[side] = false
			}
			return ok
		},
		get: func(s *Style) string { return FormatColor(s.BorderColor[side]) },
		copy: func(dst, src *Style) {
			dst.BorderColor[side] = src.BorderColor[side]
			dst.borderColorCurrent[side] = src.borderColorCurrent[side]
		},
	}
}

var fontSizeKeywords = map[string]float64{
	"xx-small": 9, "x-small": 10, "small": 13, "medium": 16,
	"large": 18, "x-large": 24, "xx-large": 32, "xxx-large": 48,
}

func parentFontSize(cx *computeContext) float64 {
	if cx.parent == nil {
		return initialStyle.FontSize
	}
	return cx.parent.FontSize
}

var properties = map[string]*property{
	"display":     keyword(false, func(s *Style) *Display { return &s.Display }, displayNames),
	"position":    keyword(false, func(s *Style) *Position { return &s.Position }, positionNames),
	"float":       keyword(false, func(s *Style) *Float { return &s.Float }, floatNames),
	"overflow":    keyword(false, func(s *Style) *Overflow { return &s.Overflow }, overflowNames),
	"visibility":  keyword(true, func(s *Style) *Visibility { return &s.Visibility }, visibilityNames),
	"white-space": keyword(true, func(s *Style) *WhiteSpace { return &s.WhiteSpace }, whiteSpaceNames),
	"font-style":  keyword(true, func(s *Style) *FontStyle { return &s.FontStyle }, fontStyleNames),

	"width":      lengthProp(false, func(s *Style) *Length { return &s.Width }, lengthRule{auto: true, percent: true}),
	"height":     lengthProp(false, func(s *Style) *Length { return &s.Height }, lengthRule{auto: true, percent: true}),
	"min-width":  lengthProp(false, func(s *Style) *Length { return &s.MinWidth }, lengthRule{percent: true}),
	"min-height": lengthProp(false, func(s *Style) *Length { return &s.MinHeight }, lengthRule{percent: true}),
	"max-width":  lengthProp(false, func(s *Style) *Length { return &s.MaxWidth }, lengthRule{none: true, percent: true}),
	"max-height": lengthProp(false, func(s *Style) *Length { return &s.MaxHeight }, lengthRule{none: true, percent: true}),

	"text-align": {
		inherited: true,
		apply: func(s *Style, v string, _ *computeContext) bool {
			switch strings.ToLower(v) {
			case "start":
				v = "left"
			case "end":
				v = "right"
			}
			t, ok := textAlignNames[strings.ToLower(v)]
			if ok {
				s.TextAlign = t
			}
			return ok
		},
		get:  func(s *Style) string { return s.TextAlign.String() },
		copy: func(dst, src *Style) { dst.TextAlign = src.TextAlign },
	},

	"z-index": {
		apply: func(s *Style, v string, _ *computeContext) bool {
			if strings.EqualFold(v, "auto") {
				s.ZIndex, s.ZIndexAuto = 0, true
				return true
			}
			n, err := strconv.Atoi(v)
			if err != nil {
				return false
			}
			s.ZIndex, s.ZIndexAuto = n, false
			return true
		},
		get: func(s *Style) string {
			if s.ZIndexAuto {
				return "auto"
			}
			return strconv.Itoa(s.ZIndex)
		},
		copy: func(dst, src *Style) { dst.ZIndex, dst.ZIndexAuto = src.ZIndex, src.ZIndexAuto },
	},

	"color": {
		inherited: true,
		apply: func(s *Style, v string, cx *computeContext) bool {
			if strings.EqualFold(v, "currentcolor") {
				if cx.parent != nil {
					s.Color = cx.parent.Color
				}
				return true
			}
			c, ok := ParseColor(v)
			if ok {
				s.Color = c
			}
			return ok
		},
		get:  func(s *Style) string { return FormatColor(s.Color) },
		copy: func(dst, src *Style) { dst.Color = src.Color },
	},

	"background-color": {
		apply: func(s *Style, v string, _ *computeContext) bool {
			if strings.EqualFold(v, "currentcolor") {
				s.BackgroundColor = s.Color
				return true
			}
			c, ok := ParseColor(v)
			if ok {
				s.BackgroundColor = c
			}
			return ok
		},
		get:  func(s *Style) string { return FormatColor(s.BackgroundColor) },
		copy: func(dst, src *Style) { dst.BackgroundColor = src.BackgroundColor },
	},

	"font-family": {
		inherited: true,
		apply: func(s *Style, v string, _ *computeContext) bool {
			v = strings.TrimSpace(v)
			if v == "" {
				return false
			}
			s.FontFamily = v
			return true
		},
		get:  func(s *Style) string { return s.FontFamily },
		copy: func(dst, src *Style) { dst.FontFamily = src.FontFamily },
	},

	"font-size": {
		inherited: true,
		apply: func(s *Style, v string, cx *computeContext) bool {
			lv := strings.ToLower(v)
			base := parentFontSize(cx)
			if px, ok := fontSizeKeywords[lv]; ok {
				s.FontSize = px
				return true
			}
			switch lv {
			case "smaller":
				s.FontSize = base / 1.2
				return true
			case "larger":
				s.FontSize = base * 1.2
				return true
			}
			l, ok := ParseLength(v)
			if !ok || l.Value < 0 {
				return false
			}
			switch l.Unit {
			case UnitEm:
				s.FontSize = l.Value * base
			case UnitPercent:
				s.FontSize = l.Value * base / 100
			case UnitRem:
				s.FontSize = l.Value * cx.rootFontSize
			default:
				s.FontSize = l.Value
			}
			return true
		},
		get:  func(s *Style) string { return formatNumber(s.FontSize) + "px" },
		copy: func(dst, src *Style) { dst.FontSize = src.FontSize },
	},

	"font-weight": {
		inherited: true,
		apply: func(s *Style, v string, cx *computeContext) bool {
			parent := initialStyle.FontWeight
			if cx.parent != nil {
				parent = cx.parent.FontWeight
			}
			switch strings.ToLower(v) {
			case "normal":
				s.FontWeight = 400
			case "bold":
				s.FontWeight = 700
			case "bolder":
				switch {
				case parent < 350:
					s.FontWeight = 400
				case parent < 550:
					s.FontWeight = 700
				default:
					s.FontWeight = 900
				}
			case "lighter":
				switch {
				case parent < 550:
					s.FontWeight = 100
				case parent < 750:
					s.FontWeight = 400
				default:
					s.FontWeight = 700
				}
			default:
				n, err := strconv.Atoi(v)
				if err != nil || n < 1 || n > 1000 {
					return false
				}
				s.FontWeight = n
			}
			return true
		},
		get:  func(s *Style) string { return strconv.Itoa(s.FontWeight) },
		copy: func(dst, src *Style) { dst.FontWeight = src.FontWeight },
	},

	"line-height": {
		inherited: true,
		apply: func(s *Style, v string, cx *computeContext) bool {
			if strings.EqualFold(v, "normal") {
				s.LineHeight = Auto
				return true
			}
			n, unit, ok := parseDimension(v)
			if !ok || n < 0 {
				return false
			}
			if unit == "" {
				s.LineHeight = Length{Value: n, Unit: UnitNumber}
				return true
			}
			l, ok := ParseLength(v)
			if !ok {
				return false
			}
			if l.IsPercent() {
				l = Px(l.Value * s.FontSize / 100)
			}
			s.LineHeight = toPx(l, s, cx)
			return true
		},
		get:  func(s *Style) string { return s.LineHeight.String() },
		copy: func(dst, src *Style) { dst.LineHeight = src.LineHeight },
	},
}

var sideNames = [4]string{"top", "right", "bottom", "left"}

var (
	sortedPropertyNames []string
	inheritedNames      []string
)

func init() {
	for side := 0; side < 4; side++ {
		side := side
		name := sideNames[side]
		properties["margin-"+name] = lengthProp(false, func(s *Style) *Length { return &s.Margin[side] },
			lengthRule{auto: true, negative: true, percent: true})
		properties["padding-"+name] = lengthProp(false, func(s *Style) *Length { return &s.Padding[side] },
			lengthRule{percent: true})
		properties[name] = lengthProp(false, func(s *Style) *Length { return &s.Offset[side] },
			lengthRule{auto: true, negative: true, percent: true})
		properties["border-"+name+"-width"] = borderWidthProp(side)
		properties["border-"+name+"-style"] = keyword(false, func(s *Style) *BorderStyle { return &s.BorderStyle[side] }, borderStyleNames)
		properties["border-"+name+"-color"] = borderColorProp(side)
	}

	for name, p := range properties {
		sortedPropertyNames = append(sortedPropertyNames, name)
		if p.inherited {
			inheritedNames = append(inheritedNames, name)
		}
	}
	sort.Strings(sortedPropertyNames)
	sort.Strings(inheritedNames)
}

// IsInherited reports whether a longhand inherits by default.
func IsInherited(property string) bool {
	p, ok := properties[property]
	return ok && p.inherited
}
