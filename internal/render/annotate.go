package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

// At 72 DPI one point is one pixel, so text sizes are given in pixels.
const dpi = 72.0

var loadFont = sync.OnceValues(func() (*truetype.Font, error) {
	return freetype.ParseFont(goregular.TTF)
})

// annotator draws text onto a single image. It is created per render and
// must be closed to release the font faces.
type annotator struct {
	context *freetype.Context
	font    *truetype.Font
	faces   map[float64]font.Face
}

func newAnnotator(img *image.RGBA) (*annotator, error) {
	parsedFont, err := loadFont()
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetHinting(font.HintingNone)
	ctx.SetClip(img.Bounds())
	ctx.SetDst(img)

	return &annotator{
		context: ctx,
		font:    parsedFont,
		faces:   make(map[float64]font.Face),
	}, nil
}

func (a *annotator) Close() error {
	var firstErr error
	for size, face := range a.faces {
		if err := face.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(a.faces, size)
	}
	return firstErr
}

func (a *annotator) face(size float64) font.Face {
	if face, ok := a.faces[size]; ok {
		return face
	}

	face := truetype.NewFace(a.font, &truetype.Options{
		Size:    size,
		DPI:     dpi,
		Hinting: font.HintingNone,
	})
	a.faces[size] = face
	return face
}

// measure returns the advance width of text in pixels.
func (a *annotator) measure(text string, size float64) int {
	if size <= 0 {
		return 0
	}
	return font.MeasureString(a.face(size), text).Ceil()
}

// extent returns the ascent and descent of the font at the given size in pixels.
func (a *annotator) extent(size float64) (ascent, descent int) {
	if size <= 0 {
		return 0, 0
	}
	metrics := a.face(size).Metrics()
	return metrics.Ascent.Ceil(), metrics.Descent.Ceil()
}

// fit returns the largest size, starting from maxSize and decreasing in
// whole steps, at which text is no wider than width.
func (a *annotator) fit(text string, maxSize float64, width int) float64 {
	return fitFontSize(maxSize, width, func(size float64) int {
		return a.measure(text, size)
	})
}

// drawString draws text with its baseline starting at (x, y).
func (a *annotator) drawString(text string, x, y int, size float64, c color.Color) error {
	if size <= 0 || text == "" {
		return nil
	}

	a.context.SetFontSize(size)
	a.context.SetSrc(image.NewUniform(c))

	if _, err := a.context.DrawString(text, freetype.Pt(x, y)); err != nil {
		return fmt.Errorf("drawing %q: %w", text, err)
	}
	return nil
}

// drawCentered draws text horizontally centered on cx with its baseline at y.
func (a *annotator) drawCentered(text string, cx, y int, size float64, c color.Color) error {
	return a.drawString(text, cx-a.measure(text, size)/2, y, size, c)
}

// fitFontSize implements a linear shrink-to-fit: it decrements size by one
// until measure reports a width that fits, stopping at zero.
func fitFontSize(maxSize float64, width int, measure func(size float64) int) float64 {
	size := maxSize
	for size > 0 && measure(size) > width {
		size--
	}
	return max(size, 0)
}
