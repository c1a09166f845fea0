package render

import (
	"fmt"
	"image/color"
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

// ColorTheme selects how signal strength maps to a bar colour.
//   - SolidTheme: every bar uses the style's bar colour
//   - QualityTheme: red for weak signals through yellow to green for strong ones
//   - ThermalTheme: dark blue through red to yellow
//   - GrayscaleTheme: dark grey to white
type ColorTheme string

const (
	SolidTheme     ColorTheme = "solid"
	QualityTheme   ColorTheme = "quality"
	ThermalTheme   ColorTheme = "thermal"
	GrayscaleTheme ColorTheme = "grayscale"

	DefaultColorMapSize = 64 // Default number of colors in the map
)

// ParseColorTheme parses a theme name, the empty string selects SolidTheme.
func ParseColorTheme(s string) (ColorTheme, error) {
	switch theme := ColorTheme(s); theme {
	case "":
		return SolidTheme, nil
	case SolidTheme, QualityTheme, ThermalTheme, GrayscaleTheme:
		return theme, nil
	default:
		return "", fmt.Errorf("unknown color theme: %s", s)
	}
}

// SignalBounds is the C/N0 range spread over the whole colour map, in dB-Hz.
type SignalBounds struct {
	Min, Max float64
}

// DefaultSignalBounds covers the C/N0 values seen from a typical patch antenna.
var DefaultSignalBounds = SignalBounds{Min: 10, Max: 50}

// ColorMapper maps C/N0 values onto a pre-computed colour gradient.
type ColorMapper struct {
	colorMap       []color.Color
	bounds         SignalBounds
	signalPerIndex float64
}

// NewColorMapper creates a mapper for the theme. SolidTheme has no gradient,
// so it maps every value to fallback.
func NewColorMapper(theme ColorTheme, bounds SignalBounds, fallback color.Color) *ColorMapper {
	if bounds.Max <= bounds.Min {
		bounds = DefaultSignalBounds
	}

	size := DefaultColorMapSize
	fn := themeFunc(theme, fallback)

	cm := &ColorMapper{
		colorMap:       make([]color.Color, size),
		bounds:         bounds,
		signalPerIndex: (bounds.Max - bounds.Min) / float64(size-1),
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(size-1))
	}
	return cm
}

// Color returns the colour for a C/N0 value. Values outside the bounds get
// the colour of the nearest bound.
func (cm *ColorMapper) Color(signal float64) color.Color {
	signal = math.Max(cm.bounds.Min, math.Min(signal, cm.bounds.Max))

	index := int((signal - cm.bounds.Min) / cm.signalPerIndex)
	if index < 0 {
		index = 0
	} else if index >= len(cm.colorMap) {
		index = len(cm.colorMap) - 1
	}
	return cm.colorMap[index]
}

func themeFunc(theme ColorTheme, fallback color.Color) func(float64) color.Color {
	switch theme {
	case QualityTheme: // Red -> Yellow -> Green
		return func(v float64) color.Color {
			return colorful.Hsv(v*120, 0.85, 0.85).Clamped()
		}

	case ThermalTheme: // Dark blue -> Red -> Yellow
		low := colorful.MustParseHex("#1a237e")
		mid := colorful.MustParseHex("#d32f2f")
		high := colorful.MustParseHex("#ffeb3b")
		return func(v float64) color.Color {
			if v < 0.5 {
				return low.BlendLab(mid, v*2).Clamped()
			}
			return mid.BlendLab(high, (v-0.5)*2).Clamped()
		}

	case GrayscaleTheme: // Dark grey -> White
		return func(v float64) color.Color {
			g := 0.2 + math.Pow(v, 0.7)*0.8
			return colorful.Color{R: g, G: g, B: g}
		}

	default:
		return func(float64) color.Color {
			return fallback
		}
	}
}

// Palette assigns a marker colour to every constellation.
type Palette struct {
	GPS     color.Color
	GLONASS color.Color
	Galileo color.Color
	Other   color.Color
}

// DefaultPalette keeps Other in the plain red used for all markers when no
// palette is configured.
func DefaultPalette() Palette {
	return Palette{
		GPS:     colorful.MustParseHex("#e53935"),
		GLONASS: colorful.MustParseHex("#8e24aa"),
		Galileo: colorful.MustParseHex("#fb8c00"),
		Other:   colorful.MustParseHex("#ff0000"),
	}
}

// For returns the colour of the constellation, falling back to Other.
func (p Palette) For(c gnss.Constellation) color.Color {
	var col color.Color
	switch c {
	case gnss.ConstellationGPS:
		col = p.GPS
	case gnss.ConstellationGLONASS:
		col = p.GLONASS
	case gnss.ConstellationGalileo:
		col = p.Galileo
	}
	if col == nil {
		col = p.Other
	}
	if col == nil {
		col = color.RGBA{R: 0xff, A: 0xff}
	}
	return col
}

func (p Palette) withDefaults(def Palette) Palette {
	if p.GPS == nil {
		p.GPS = def.GPS
	}
	if p.GLONASS == nil {
		p.GLONASS = def.GLONASS
	}
	if p.Galileo == nil {
		p.Galileo = def.Galileo
	}
	if p.Other == nil {
		p.Other = def.Other
	}
	return p
}

// ParseColor parses a "#rrggbb" colour. The empty string yields nil so that
// style defaults apply.
func ParseColor(s string) (color.Color, error) {
	if s == "" {
		return nil, nil
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return nil, fmt.Errorf("parsing color %q: %w", s, err)
	}
	return c, nil
}
