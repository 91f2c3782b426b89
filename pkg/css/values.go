package css

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

type Unit int

const (
	UnitPx Unit = iota
	UnitPercent
	UnitAuto
	UnitNone   // max-width / max-height: none
	UnitNumber // unitless line-height multiplier
	UnitEm     // only before computation
	UnitRem    // only before computation
)

// Length is a computed length. Only px, percent, auto, none and number
// survive computation; percentages are resolved at layout time against the
// containing block.
type Length struct {
	Value float64
	Unit  Unit
}

var (
	Auto = Length{Unit: UnitAuto}
	None = Length{Unit: UnitNone}
)

func Px(v float64) Length      { return Length{Value: v, Unit: UnitPx} }
func Percent(v float64) Length { return Length{Value: v, Unit: UnitPercent} }

func (l Length) IsAuto() bool    { return l.Unit == UnitAuto }
func (l Length) IsNone() bool    { return l.Unit == UnitNone }
func (l Length) IsPercent() bool { return l.Unit == UnitPercent }

// Resolve returns the used pixel value; percentages are taken of base.
// auto and none resolve to 0.
func (l Length) Resolve(base float64) float64 {
	switch l.Unit {
	case UnitPx:
		return l.Value
	case UnitPercent:
		return l.Value * base / 100
	}
	return 0
}

func (l Length) String() string {
	switch l.Unit {
	case UnitAuto:
		return "auto"
	case UnitNone:
		return "none"
	case UnitPercent:
		return formatNumber(l.Value) + "%"
	case UnitNumber:
		return formatNumber(l.Value)
	case UnitEm:
		return formatNumber(l.Value) + "em"
	case UnitRem:
		return formatNumber(l.Value) + "rem"
	}
	return formatNumber(l.Value) + "px"
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// absoluteUnits converts physical units to px at 96dpi.
var absoluteUnits = map[string]float64{
	"px": 1,
	"pt": 96.0 / 72.0,
	"pc": 16,
	"in": 96,
	"cm": 96 / 2.54,
	"mm": 96 / 25.4,
	"q":  96 / 101.6,
}

// parseDimension splits "12.5px" into 12.5 and "px". A bare number returns
// an empty unit.
func parseDimension(s string) (float64, string, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, "", false
	}
	i := 0
	if s[0] == '+' || s[0] == '-' {
		i++
	}
	digits := false
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		if s[i] != '.' {
			digits = true
		}
		i++
	}
	if !digits {
		return 0, "", false
	}
	if i < len(s) && s[i] == 'e' && i+1 < len(s) && (s[i+1] >= '0' && s[i+1] <= '9' || s[i+1] == '-' || s[i+1] == '+') {
		j := i + 1
		if s[j] == '-' || s[j] == '+' {
			j++
		}
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		i = j
	}
	v, err := strconv.ParseFloat(s[:i], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, "", false
	}
	return v, s[i:], true
}

// ParseLength parses a length or percentage. Unitless numbers are taken as
// px. Relative units are returned unresolved.
func ParseLength(s string) (Length, bool) {
	v, unit, ok := parseDimension(s)
	if !ok {
		return Length{}, false
	}
	switch unit {
	case "", "px":
		return Px(v), true
	case "%":
		return Percent(v), true
	case "em":
		return Length{Value: v, Unit: UnitEm}, true
	case "rem":
		return Length{Value: v, Unit: UnitRem}, true
	case "ex", "ch":
		return Length{Value: v / 2, Unit: UnitEm}, true
	}
	if f, ok := absoluteUnits[unit]; ok {
		return Px(v * f), true
	}
	return Length{}, false
}

// ParseColor parses named, hex, rgb() and rgba() colors.
func ParseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return color.RGBA{}, false
	}
	if s == "transparent" {
		return color.RGBA{}, true
	}
	if c, ok := colornames.Map[s]; ok {
		return c, true
	}
	if strings.HasPrefix(s, "#") {
		return parseHexColor(s[1:])
	}
	if strings.HasPrefix(s, "rgb(") || strings.HasPrefix(s, "rgba(") {
		if !strings.HasSuffix(s, ")") {
			return color.RGBA{}, false
		}
		return parseRGBFunction(s[strings.IndexByte(s, '(')+1 : len(s)-1])
	}
	return color.RGBA{}, false
}

func parseHexColor(h string) (color.RGBA, bool) {
	for _, r := range h {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			return color.RGBA{}, false
		}
	}
	expand := func(c byte) uint8 {
		v, _ := strconv.ParseUint(string([]byte{c, c}), 16, 8)
		return uint8(v)
	}
	pair := func(s string) uint8 {
		v, _ := strconv.ParseUint(s, 16, 8)
		return uint8(v)
	}
	switch len(h) {
	case 3:
		return color.RGBA{expand(h[0]), expand(h[1]), expand(h[2]), 255}, true
	case 4:
		return premultiply(expand(h[0]), expand(h[1]), expand(h[2]), expand(h[3])), true
	case 6:
		return color.RGBA{pair(h[0:2]), pair(h[2:4]), pair(h[4:6]), 255}, true
	case 8:
		return premultiply(pair(h[0:2]), pair(h[2:4]), pair(h[4:6]), pair(h[6:8])), true
	}
	return color.RGBA{}, false
}

// premultiply converts straight alpha to the alpha-premultiplied form that
// color.RGBA requires.
func premultiply(r, g, b, a uint8) color.RGBA {
	m := func(c uint8) uint8 { return uint8((uint32(c)*uint32(a) + 127) / 255) }
	return color.RGBA{m(r), m(g), m(b), a}
}

func parseRGBFunction(args string) (color.RGBA, bool) {
	var parts []string
	if strings.Contains(args, ",") {
		parts = strings.Split(args, ",")
	} else {
		// Space syntax: rgb(255 0 0 / 50%)
		slash := strings.Split(args, "/")
		parts = strings.Fields(slash[0])
		if len(slash) == 2 {
			parts = append(parts, slash[1])
		} else if len(slash) > 2 {
			return color.RGBA{}, false
		}
	}
	if len(parts) != 3 && len(parts) != 4 {
		return color.RGBA{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		v, unit, ok := parseDimension(parts[i])
		if !ok || (unit != "" && unit != "%") {
			return color.RGBA{}, false
		}
		if unit == "%" {
			v = v * 255 / 100
		}
		ch[i] = clampByte(v)
	}
	alpha := uint8(255)
	if len(parts) == 4 {
		v, unit, ok := parseDimension(parts[3])
		if !ok || (unit != "" && unit != "%") {
			return color.RGBA{}, false
		}
		if unit == "%" {
			v /= 100
		}
		alpha = clampByte(v * 255)
	}
	return premultiply(ch[0], ch[1], ch[2], alpha), true
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(math.Round(v))
}

// FormatColor serializes a color as #rrggbb, or rgba() when translucent.
func FormatColor(c color.RGBA) string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	if c.A == 0 {
		return "transparent"
	}
	// un-premultiply for display
	un := func(v uint8) uint8 { return uint8((uint32(v)*255 + uint32(c.A)/2) / uint32(c.A)) }
	return fmt.Sprintf("rgba(%d, %d, %d, %s)", un(c.R), un(c.G), un(c.B), formatNumber(math.Round(float64(c.A)/255*100)/100))
}

// splitValue splits a declaration value on whitespace outside parentheses
// and quotes.
func splitValue(s string) []string {
	var out []string
	depth := 0
	var quote byte
	start := -1
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth == 0 && (c == ' ' || c == '\t' || c == '\n'):
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
