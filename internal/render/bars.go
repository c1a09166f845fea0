package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

// MaxSignal is the C/N0 value, in dB-Hz, that fills the full surface height.
const MaxSignal = 100.0

// Bar is the layout of one signal bar.
type Bar struct {
	Satellite gnss.Satellite
	Signal    float64         // Signal strength clamped to [0, MaxSignal]
	Rect      image.Rectangle // Bar area on the surface
}

// BarLayout partitions the surface width into one slot per satellite, a
// quarter of each slot is left as spacing and bar heights are proportional to
// signal strength. No satellites yields no bars.
func BarLayout(width, height int, satellites []gnss.Satellite) []Bar {
	count := len(satellites)
	slot := width / max(count, 1)
	spacing := slot / 4
	barWidth := slot - spacing

	bars := make([]Bar, 0, count)
	for i, s := range satellites {
		signal := clampSignal(s.SignalDBHz)
		barHeight := int(signal / MaxSignal * float64(height))
		x := i * (barWidth + spacing)

		bars = append(bars, Bar{
			Satellite: s,
			Signal:    signal,
			Rect:      image.Rect(x, height-barHeight, x+barWidth, height),
		})
	}
	return bars
}

// MeanSignal returns the mean clamped signal strength, or zero without satellites.
func MeanSignal(satellites []gnss.Satellite) float64 {
	if len(satellites) == 0 {
		return 0
	}

	signals := make([]float64, len(satellites))
	for i, s := range satellites {
		signals[i] = clampSignal(s.SignalDBHz)
	}
	return stat.Mean(signals, nil)
}

// SignalBarStyle holds every visual parameter of the signal chart. Zero
// values are replaced with defaults by NewSignalBarRenderer.
type SignalBarStyle struct {
	Background color.Color  // Surface colour
	Bar        color.Color  // Bar colour for SolidTheme
	Theme      ColorTheme   // Bar colour by signal strength
	Bounds     SignalBounds // C/N0 range spread over the theme gradient
	Label      color.Color  // Satellite id colour
	LabelSize  float64      // Maximum satellite id size in pixels
	MeanLine   bool         // Draw a horizontal line at the mean signal strength
	Mean       color.Color  // Mean line colour
}

// DefaultSignalBarStyle returns solid blue bars with white ids on a white surface.
func DefaultSignalBarStyle() SignalBarStyle {
	return SignalBarStyle{
		Background: color.White,
		Bar:        color.RGBA{B: 0xff, A: 0xff},
		Theme:      SolidTheme,
		Bounds:     DefaultSignalBounds,
		Label:      color.White,
		LabelSize:  defaultLabelSize,
		Mean:       color.RGBA{R: 0x60, G: 0x60, B: 0x60, A: 0xff},
	}
}

// SignalBarRenderer draws one bar per satellite with its height scaled by
// signal strength.
type SignalBarRenderer struct {
	style    SignalBarStyle
	colorMap *ColorMapper
}

// NewSignalBarRenderer creates a renderer, filling unset style fields with defaults.
func NewSignalBarRenderer(style SignalBarStyle) *SignalBarRenderer {
	def := DefaultSignalBarStyle()

	if style.Background == nil {
		style.Background = def.Background
	}
	if style.Bar == nil {
		style.Bar = def.Bar
	}
	if style.Theme == "" {
		style.Theme = def.Theme
	}
	if style.Bounds.Max <= style.Bounds.Min {
		style.Bounds = def.Bounds
	}
	if style.Label == nil {
		style.Label = def.Label
	}
	if style.LabelSize <= 0 {
		style.LabelSize = def.LabelSize
	}
	if style.Mean == nil {
		style.Mean = def.Mean
	}

	return &SignalBarRenderer{
		style:    style,
		colorMap: NewColorMapper(style.Theme, style.Bounds, style.Bar),
	}
}

// Style returns the effective style.
func (r *SignalBarRenderer) Style() SignalBarStyle {
	return r.style
}

// Render draws the satellites onto a new image of the given size.
func (r *SignalBarRenderer) Render(size image.Point, satellites []gnss.Satellite) (*image.RGBA, error) {
	c := newCanvas(max(size.X, 0), max(size.Y, 0), r.style.Background)
	if size.X <= 0 || size.Y <= 0 {
		return c.img, nil
	}

	ann, err := newAnnotator(c.img)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	for _, bar := range BarLayout(size.X, size.Y, satellites) {
		c.fillRect(bar.Rect, r.colorMap.Color(bar.Signal))

		// Satellite id centered inside the bar
		label := fmt.Sprint(bar.Satellite.ID)
		labelSize := ann.fit(label, r.style.LabelSize, bar.Rect.Dx())
		cx := bar.Rect.Min.X + bar.Rect.Dx()/2
		y := size.Y - bar.Rect.Dy()/2

		if err = ann.drawCentered(label, cx, y, labelSize, r.style.Label); err != nil {
			return nil, fmt.Errorf("drawing satellite id: %w", err)
		}
	}

	if r.style.MeanLine && len(satellites) > 0 {
		y := float64(size.Y) - MeanSignal(satellites)/MaxSignal*float64(size.Y)
		c.strokeLine(0, y, float64(size.X), y, 2, r.style.Mean)
	}

	return c.img, nil
}

func clampSignal(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(math.Max(v, 0), MaxSignal)
}
