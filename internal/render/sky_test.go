package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/projection"
)

func closeTo(a, b color.RGBA, tolerance uint8) bool {
	diff := func(x, y uint8) uint8 {
		if x > y {
			return x - y
		}
		return y - x
	}
	return diff(a.R, b.R) <= tolerance && diff(a.G, b.G) <= tolerance &&
		diff(a.B, b.B) <= tolerance && diff(a.A, b.A) <= tolerance
}

func TestSkyPlotRenderer_Grid(t *testing.T) {
	r := NewSkyPlotRenderer(SkyPlotStyle{})

	img, err := r.Render(image.Pt(600, 600), nil, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if img.Bounds() != image.Rect(0, 0, 600, 600) {
		t.Fatalf("Unexpected bounds %v", img.Bounds())
	}

	blue := color.RGBA{B: 0xff, A: 0xff}

	// The axes cross in the middle of the surface
	if got := img.RGBAAt(300, 300); !closeTo(got, blue, 2) {
		t.Errorf("Expected grid colour at the center, got %v", got)
	}

	// Horizon ring, 0.9 * 300 = 270 px from the center, on the diagonal
	if got := img.RGBAAt(300+191, 300+191); !closeTo(got, blue, 2) {
		t.Errorf("Expected grid colour on the horizon ring, got %v", got)
	}

	// Outside the horizon, away from labels
	if got := img.RGBAAt(5, 5); got != (color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}) {
		t.Errorf("Expected background in the corner, got %v", got)
	}
}

func TestSkyPlotRenderer_Markers(t *testing.T) {
	style := DefaultSkyPlotStyle()
	style.Cardinals = false
	r := NewSkyPlotRenderer(style)

	sats := []gnss.Satellite{
		{ID: 7, Constellation: gnss.ConstellationGalileo, Azimuth: 135, Elevation: 30, SignalDBHz: 35},
		{ID: 70, Constellation: gnss.ConstellationGLONASS, Azimuth: 315, Elevation: 20, SignalDBHz: 28},
	}

	size := image.Pt(800, 600)
	img, err := r.Render(size, sats, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	plane := projection.Plane{Width: size.X, Height: size.Y}
	for _, s := range sats {
		x, y := plane.Locate(s.Azimuth, s.Elevation)
		expected := color.RGBAModel.Convert(style.Palette.For(s.Constellation)).(color.RGBA)

		if got := img.RGBAAt(int(x), int(y)); !closeTo(got, expected, 2) {
			t.Errorf("satellite %d: expected marker colour %v at %.0f,%.0f, got %v", s.ID, expected, x, y, got)
		}
	}
}

func TestSkyPlotRenderer_BelowHorizonSitsOnHorizon(t *testing.T) {
	style := DefaultSkyPlotStyle()
	style.Cardinals = false
	style.Grid = color.White
	r := NewSkyPlotRenderer(style)

	sat := gnss.Satellite{ID: 3, Constellation: gnss.ConstellationOther, Azimuth: 90, Elevation: -30}

	img, err := r.Render(image.Pt(400, 400), []gnss.Satellite{sat}, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	// East on the horizon: center + 0.9 * 200
	red := color.RGBA{R: 0xff, A: 0xff}
	if got := img.RGBAAt(380, 200); !closeTo(got, red, 2) {
		t.Errorf("Expected marker on the horizon, got %v", got)
	}
}

func TestSkyPlotRenderer_LocationText(t *testing.T) {
	style := DefaultSkyPlotStyle()
	style.Cardinals = false
	r := NewSkyPlotRenderer(style)

	size := image.Pt(600, 800)
	countGreen := func(img *image.RGBA) int {
		var n int
		for y := 680; y < size.Y; y++ {
			for x := 0; x < size.X; x++ {
				c := img.RGBAAt(x, y)
				if c.G > 0x80 && c.R < 0x80 && c.B < 0x80 {
					n++
				}
			}
		}
		return n
	}

	withText, err := r.Render(size, nil, "Lat: -33.85678, Long: 151.21311, Alt: 12.34")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if n := countGreen(withText); n == 0 {
		t.Error("Expected location text below the plot")
	}

	withoutText, err := r.Render(size, nil, "")
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if n := countGreen(withoutText); n != 0 {
		t.Errorf("Expected no location text, found %d text pixels", n)
	}
}

func TestSkyPlotRenderer_TinySurface(t *testing.T) {
	r := NewSkyPlotRenderer(SkyPlotStyle{})
	sats := []gnss.Satellite{{ID: 1, Azimuth: 10, Elevation: 10}}

	for _, size := range []image.Point{{0, 0}, {1, 1}, {3, 40}, {-5, 10}} {
		img, err := r.Render(size, sats, "Lat: 1.00000, Long: 2.00000, Alt: 3.00")
		if err != nil {
			t.Errorf("%v: Render() error = %v", size, err)
			continue
		}
		if img == nil {
			t.Errorf("%v: expected an image", size)
		}
	}
}

func TestNewSkyPlotRenderer_Defaults(t *testing.T) {
	style := NewSkyPlotRenderer(SkyPlotStyle{Palette: Palette{GPS: color.Black}}).Style()

	if style.LocationSize != 40 || style.LabelSize != 30 || style.MarkerRadius != 10 {
		t.Errorf("Unexpected defaults %+v", style)
	}
	if style.Palette.GPS != color.Black {
		t.Error("Expected configured GPS colour to be kept")
	}
	if style.Palette.Other == nil {
		t.Error("Expected missing palette entries to be filled")
	}
}
