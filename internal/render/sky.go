package render

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/projection"
)

const (
	defaultLineWidth     = 5
	defaultMarkerRadius  = 10
	defaultLabelSize     = 30
	defaultLocationSize  = 40
	defaultCardinalSize  = 24
	defaultLabelOffset   = 10
	defaultLocationSpace = 50
)

// RingElevations are the elevations, in degrees, of the concentric rings.
var RingElevations = []float64{0, 45, 60}

// SkyPlotStyle holds every visual parameter of the sky-plot. Zero values are
// replaced with defaults by NewSkyPlotRenderer.
type SkyPlotStyle struct {
	Background    color.Color // Surface colour
	Grid          color.Color // Rings and axes
	LineWidth     float64     // Ring and axis stroke width in pixels
	Palette       Palette     // Marker and label colour per constellation
	MarkerRadius  float64     // Satellite marker radius in pixels
	LabelSize     float64     // Maximum satellite label size in pixels
	Location      color.Color // Location text colour
	LocationSize  float64     // Maximum location text size in pixels
	Cardinals     bool        // Draw N, E, S and W around the horizon ring
	CardinalSize  float64     // Cardinal label size in pixels
	LocationSpace int         // Distance between the horizon ring and the location text baseline
}

// DefaultSkyPlotStyle returns blue grid lines, red markers and green
// location text on a white surface.
func DefaultSkyPlotStyle() SkyPlotStyle {
	return SkyPlotStyle{
		Background:    color.White,
		Grid:          color.RGBA{B: 0xff, A: 0xff},
		LineWidth:     defaultLineWidth,
		Palette:       DefaultPalette(),
		MarkerRadius:  defaultMarkerRadius,
		LabelSize:     defaultLabelSize,
		Location:      color.RGBA{G: 0xff, A: 0xff},
		LocationSize:  defaultLocationSize,
		Cardinals:     true,
		CardinalSize:  defaultCardinalSize,
		LocationSpace: defaultLocationSpace,
	}
}

// SkyPlotRenderer draws satellites on a polar projection of the sky.
type SkyPlotRenderer struct {
	style SkyPlotStyle
}

// NewSkyPlotRenderer creates a renderer, filling unset style fields with defaults.
func NewSkyPlotRenderer(style SkyPlotStyle) *SkyPlotRenderer {
	def := DefaultSkyPlotStyle()

	if style.Background == nil {
		style.Background = def.Background
	}
	if style.Grid == nil {
		style.Grid = def.Grid
	}
	if style.LineWidth <= 0 {
		style.LineWidth = def.LineWidth
	}
	style.Palette = style.Palette.withDefaults(def.Palette)
	if style.MarkerRadius <= 0 {
		style.MarkerRadius = def.MarkerRadius
	}
	if style.LabelSize <= 0 {
		style.LabelSize = def.LabelSize
	}
	if style.Location == nil {
		style.Location = def.Location
	}
	if style.LocationSize <= 0 {
		style.LocationSize = def.LocationSize
	}
	if style.CardinalSize <= 0 {
		style.CardinalSize = def.CardinalSize
	}
	if style.LocationSpace <= 0 {
		style.LocationSpace = def.LocationSpace
	}

	return &SkyPlotRenderer{style: style}
}

// Style returns the effective style.
func (r *SkyPlotRenderer) Style() SkyPlotStyle {
	return r.style
}

// Render draws the satellites and the location text onto a new image of the
// given size. An empty locationText draws no position.
func (r *SkyPlotRenderer) Render(size image.Point, satellites []gnss.Satellite, locationText string) (*image.RGBA, error) {
	c := newCanvas(max(size.X, 0), max(size.Y, 0), r.style.Background)
	if size.X <= 0 || size.Y <= 0 {
		return c.img, nil
	}

	plane := projection.Plane{Width: size.X, Height: size.Y}

	ann, err := newAnnotator(c.img)
	if err != nil {
		return nil, fmt.Errorf("creating annotator: %w", err)
	}
	defer ann.Close()

	r.drawGrid(c, plane)

	if r.style.Cardinals {
		if err = r.drawCardinals(ann, plane); err != nil {
			return nil, fmt.Errorf("drawing cardinal labels: %w", err)
		}
	}
	if err = r.drawSatellites(c, ann, plane, satellites); err != nil {
		return nil, fmt.Errorf("drawing satellites: %w", err)
	}
	if err = r.drawLocation(ann, plane, locationText); err != nil {
		return nil, fmt.Errorf("drawing location: %w", err)
	}

	return c.img, nil
}

func (r *SkyPlotRenderer) drawGrid(c *canvas, plane projection.Plane) {
	radius := plane.Radius()
	cx, cy := plane.Center()

	for _, el := range RingElevations {
		c.strokeCircle(cx, cy, projection.RingRadius(radius, el), r.style.LineWidth, r.style.Grid)
	}

	// North-South and East-West axes across the full diameter
	c.strokeLine(plane.ToScreenX(0), plane.ToScreenY(-radius), plane.ToScreenX(0), plane.ToScreenY(radius), r.style.LineWidth, r.style.Grid)
	c.strokeLine(plane.ToScreenX(-radius), plane.ToScreenY(0), plane.ToScreenX(radius), plane.ToScreenY(0), r.style.LineWidth, r.style.Grid)
}

func (r *SkyPlotRenderer) drawCardinals(ann *annotator, plane projection.Plane) error {
	radius := plane.Radius()
	size := r.style.CardinalSize
	ascent, descent := ann.extent(size)
	gap := r.style.LineWidth + 4

	labels := []struct {
		text    string
		azimuth float64
	}{
		{"N", 0},
		{"E", 90},
		{"S", 180},
		{"W", 270},
	}

	for _, l := range labels {
		pt := projection.Project(l.azimuth, 0, radius+gap+float64(ascent)/2)
		x, y := plane.ToScreen(pt)

		// Keep the label inside the surface on tight layouts
		w := ann.measure(l.text, size)
		tx := clampInt(int(math.Round(x))-w/2, 0, plane.Width-w)
		ty := clampInt(int(math.Round(y))+ascent/2, ascent, plane.Height-descent)

		if err := ann.drawString(l.text, tx, ty, size, r.style.Grid); err != nil {
			return err
		}
	}
	return nil
}

func (r *SkyPlotRenderer) drawSatellites(c *canvas, ann *annotator, plane projection.Plane, satellites []gnss.Satellite) error {
	for _, s := range satellites {
		x, y := plane.Locate(s.Azimuth, clampElevation(s.Elevation))
		col := r.style.Palette.For(s.Constellation)

		c.fillCircle(x, y, r.style.MarkerRadius, col)

		label := s.Label()
		size := ann.fit(label, r.style.LabelSize, plane.Width)

		lx := int(math.Round(x)) + defaultLabelOffset
		ly := int(math.Round(y)) + defaultLabelOffset
		if err := ann.drawString(label, lx, ly, size, col); err != nil {
			return err
		}
	}
	return nil
}

// drawLocation centers the text below the plot, or above it when there is no
// room below.
func (r *SkyPlotRenderer) drawLocation(ann *annotator, plane projection.Plane, text string) error {
	if text == "" {
		return nil
	}

	size := ann.fit(text, r.style.LocationSize, plane.Width)
	if size <= 0 {
		return nil
	}

	ascent, descent := ann.extent(size)
	radius := plane.Radius()
	space := float64(r.style.LocationSpace)

	y := int(math.Round(plane.ToScreenY(-radius - space)))
	if y+descent > plane.Height {
		y = int(math.Round(plane.ToScreenY(radius+space))) + ascent
		y = clampInt(y, ascent, plane.Height-descent)
	}

	return ann.drawCentered(text, int(math.Round(plane.ToScreenX(0))), y, size, r.style.Location)
}

// clampElevation keeps satellites below the horizon on the horizon ring.
func clampElevation(el float64) float64 {
	return math.Min(math.Max(el, 0), 90)
}

func clampInt(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
