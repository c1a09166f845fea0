package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

// Number of segments used to approximate a full circle.
const circleSegments = 96

// canvas wraps an RGBA image with an anti-aliasing rasterizer. All path
// coordinates are clamped to the image bounds.
type canvas struct {
	img *image.RGBA
	z   *vector.Rasterizer
}

func newCanvas(width, height int, background color.Color) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	return &canvas{
		img: img,
		z:   vector.NewRasterizer(width, height),
	}
}

func (c *canvas) clamp(x, y float64) (float32, float32) {
	size := c.img.Bounds().Size()
	x = math.Min(math.Max(x, 0), float64(size.X))
	y = math.Min(math.Max(y, 0), float64(size.Y))
	return float32(x), float32(y)
}

func (c *canvas) moveTo(x, y float64) {
	c.z.MoveTo(c.clamp(x, y))
}

func (c *canvas) lineTo(x, y float64) {
	c.z.LineTo(c.clamp(x, y))
}

// circlePath adds a closed circle to the current path. Reversed circles
// subtract from forward ones, which is how rings get their hole.
func (c *canvas) circlePath(cx, cy, r float64, reversed bool) {
	for i := 0; i <= circleSegments; i++ {
		a := 2 * math.Pi * float64(i) / circleSegments
		if reversed {
			a = -a
		}

		x, y := cx+r*math.Cos(a), cy+r*math.Sin(a)
		if i == 0 {
			c.moveTo(x, y)
		} else {
			c.lineTo(x, y)
		}
	}
	c.z.ClosePath()
}

// fill paints the current path and starts a new one.
func (c *canvas) fill(col color.Color) {
	size := c.img.Bounds().Size()
	c.z.Draw(c.img, c.img.Bounds(), image.NewUniform(col), image.Point{})
	c.z.Reset(size.X, size.Y)
}

func (c *canvas) fillCircle(cx, cy, r float64, col color.Color) {
	if r <= 0 {
		return
	}
	c.circlePath(cx, cy, r, false)
	c.fill(col)
}

// strokeCircle draws a circle outline of the given line width centered on radius r.
func (c *canvas) strokeCircle(cx, cy, r, width float64, col color.Color) {
	outer, inner := r+width/2, r-width/2
	if outer <= 0 {
		return
	}

	c.circlePath(cx, cy, outer, false)
	if inner > 0 {
		c.circlePath(cx, cy, inner, true)
	}
	c.fill(col)
}

func (c *canvas) strokeLine(x0, y0, x1, y1, width float64, col color.Color) {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 || width <= 0 {
		return
	}

	// half-width normal
	nx, ny := -dy/length*width/2, dx/length*width/2

	c.moveTo(x0+nx, y0+ny)
	c.lineTo(x1+nx, y1+ny)
	c.lineTo(x1-nx, y1-ny)
	c.lineTo(x0-nx, y0-ny)
	c.z.ClosePath()
	c.fill(col)
}

func (c *canvas) fillRect(r image.Rectangle, col color.Color) {
	draw.Draw(c.img, r.Intersect(c.img.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}
