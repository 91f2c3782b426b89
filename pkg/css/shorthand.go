package css

import (
	"fmt"
	"strings"
)

// longhand is one expanded property.
type longhand struct {
	Property string
	Value    string
}

var globalKeywords = map[string]bool{"inherit": true, "initial": true, "unset": true}

// shorthandLonghands lists what each shorthand sets, in order.
var shorthandLonghands = map[string][]string{
	"margin":        sides("margin-%s"),
	"padding":       sides("padding-%s"),
	"inset":         sides("%s"),
	"border-width":  sides("border-%s-width"),
	"border-style":  sides("border-%s-style"),
	"border-color":  sides("border-%s-color"),
	"border":        append(append(sides("border-%s-width"), sides("border-%s-style")...), sides("border-%s-color")...),
	"border-top":    {"border-top-width", "border-top-style", "border-top-color"},
	"border-right":  {"border-right-width", "border-right-style", "border-right-color"},
	"border-bottom": {"border-bottom-width", "border-bottom-style", "border-bottom-color"},
	"border-left":   {"border-left-width", "border-left-style", "border-left-color"},
	"background":    {"background-color"},
	"font":          {"font-style", "font-weight", "font-size", "line-height", "font-family"},
}

func sides(pattern string) []string {
	out := make([]string, 4)
	for i, s := range sideNames {
		out[i] = fmt.Sprintf(pattern, s)
	}
	return out
}

// IsShorthand reports whether name expands to several longhands.
func IsShorthand(name string) bool {
	_, ok := shorthandLonghands[name]
	return ok
}

// Expand turns a declaration into longhands. Longhand declarations are
// returned unchanged. ok is false when a shorthand value cannot be split;
// the longhands are then reset to their initial values.
func Expand(property, value string) (out []longhand, ok bool) {
	names, isShort := shorthandLonghands[property]
	if !isShort {
		return []longhand{{property, value}}, true
	}
	if globalKeywords[strings.ToLower(value)] {
		return fill(names, strings.ToLower(value)), true
	}
	parts := splitValue(value)
	switch property {
	case "margin", "padding", "inset", "border-width", "border-style", "border-color":
		vals, ok := fourSides(parts)
		if !ok {
			return fill(names, "initial"), false
		}
		for i, n := range names {
			out = append(out, longhand{n, vals[i]})
		}
		return out, true
	case "border", "border-top", "border-right", "border-bottom", "border-left":
		w, s, c, ok := borderParts(parts)
		if !ok {
			return fill(names, "initial"), false
		}
		per := len(names) / 3
		for i := 0; i < per; i++ {
			out = append(out, longhand{names[i], w})
		}
		for i := 0; i < per; i++ {
			out = append(out, longhand{names[per+i], s})
		}
		for i := 0; i < per; i++ {
			out = append(out, longhand{names[2*per+i], c})
		}
		return out, true
	case "background":
		return backgroundParts(parts)
	case "font":
		return fontParts(parts)
	}
	return nil, false
}

func fill(names []string, value string) []longhand {
	out := make([]longhand, len(names))
	for i, n := range names {
		out[i] = longhand{n, value}
	}
	return out
}

// fourSides applies the 1-to-4 value rule: top, right, bottom, left.
func fourSides(p []string) ([4]string, bool) {
	switch len(p) {
	case 1:
		return [4]string{p[0], p[0], p[0], p[0]}, true
	case 2:
		return [4]string{p[0], p[1], p[0], p[1]}, true
	case 3:
		return [4]string{p[0], p[1], p[2], p[1]}, true
	case 4:
		return [4]string{p[0], p[1], p[2], p[3]}, true
	}
	return [4]string{}, false
}

// borderParts sorts up to three tokens into width, style and color, in
// any order. Missing parts take their initial values.
func borderParts(parts []string) (width, style, color string, ok bool) {
	if len(parts) == 0 || len(parts) > 3 {
		return "", "", "", false
	}
	for _, p := range parts {
		lp := strings.ToLower(p)
		_, isStyle := borderStyleNames[lp]
		_, isWidthKeyword := borderWidthKeywords[lp]
		_, isLength := ParseLength(p)
		_, isColor := ParseColor(p)
		switch {
		case isStyle && style == "":
			style = lp
		case (isWidthKeyword || isLength) && width == "":
			width = p
		case (isColor || lp == "currentcolor") && color == "":
			color = p
		default:
			return "", "", "", false
		}
	}
	if width == "" {
		width = "medium"
	}
	if style == "" {
		style = "none"
	}
	if color == "" {
		color = "currentcolor"
	}
	return width, style, color, true
}

// backgroundParts keeps the color layer; images and positions are not
// rendered and are ignored.
func backgroundParts(parts []string) ([]longhand, bool) {
	bg := "transparent"
	for _, p := range parts {
		if _, ok := ParseColor(p); ok || strings.EqualFold(p, "currentcolor") {
			bg = p
		}
	}
	return []longhand{{"background-color", bg}}, len(parts) > 0
}

var fontWeightKeywords = map[string]bool{"bold": true, "bolder": true, "lighter": true}

// fontParts parses [style] [variant] [weight] size[/line-height] family.
func fontParts(parts []string) ([]longhand, bool) {
	style, weight, lineHeight := "normal", "normal", "normal"
	i := 0
	for ; i < len(parts); i++ {
		lp := strings.ToLower(parts[i])
		if lp == "normal" || lp == "small-caps" {
			continue
		}
		if lp == "italic" || lp == "oblique" {
			style = lp
			continue
		}
		if fontWeightKeywords[lp] {
			weight = lp
			continue
		}
		if n, unit, ok := parseDimension(lp); ok && unit == "" && n >= 1 && n <= 1000 && !strings.Contains(lp, ".") {
			weight = lp
			continue
		}
		break
	}
	if i >= len(parts)-1 {
		return fill(shorthandLonghands["font"], "initial"), false
	}
	size := parts[i]
	if slash := strings.IndexByte(size, '/'); slash >= 0 {
		lineHeight = size[slash+1:]
		size = size[:slash]
		if lineHeight == "" && i+1 < len(parts)-1 {
			i++
			lineHeight = parts[i]
		}
	} else if i+1 < len(parts)-1 && strings.HasPrefix(parts[i+1], "/") {
		i++
		lineHeight = strings.TrimPrefix(parts[i], "/")
		if lineHeight == "" {
			i++
			lineHeight = parts[i]
		}
	}
	family := strings.Join(parts[i+1:], " ")
	if family == "" || size == "" || lineHeight == "" {
		return fill(shorthandLonghands["font"], "initial"), false
	}
	return []longhand{
		{"font-style", style},
		{"font-weight", weight},
		{"font-size", size},
		{"line-height", lineHeight},
		{"font-family", family},
	}, true
}
