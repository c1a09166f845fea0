// Package projection maps azimuth/elevation angles onto a planar sky-plot.
//
// The plot plane has its origin at the plot center (zenith), +x pointing East
// and +y pointing North. Screen coordinates have their origin in the top-left
// corner with y growing downwards, so Plane flips the y axis.
package projection

import "math"

// RadiusFactor is the share of the half of the shorter surface side used by the horizon ring.
const RadiusFactor = 0.9

// Point is a planar offset from the plot center.
type Point struct {
	X, Y float64
}

// Project maps a direction onto the plot plane. Elevation 90 maps to the
// center, elevation 0 to the circle of the given radius. Azimuth is measured
// clockwise from North. Angles are not validated.
func Project(azimuthDeg, elevationDeg, radius float64) Point {
	az := azimuthDeg * math.Pi / 180
	r := RingRadius(radius, elevationDeg)

	return Point{
		X: r * math.Sin(az),
		Y: r * math.Cos(az),
	}
}

// RingRadius returns the distance from the center at which the given
// elevation is drawn.
func RingRadius(radius, elevationDeg float64) float64 {
	return radius * math.Cos(elevationDeg*math.Pi/180)
}

// Radius returns the horizon radius for a surface of the given size, or zero
// when the surface is empty.
func Radius(width, height int) float64 {
	side := min(width, height)
	if side <= 0 {
		return 0
	}
	return RadiusFactor * float64(side) / 2
}

// Plane centers the plot inside a drawing surface.
type Plane struct {
	Width, Height int
}

// Radius returns the horizon radius of the plane.
func (p Plane) Radius() float64 {
	return Radius(p.Width, p.Height)
}

// Center returns the screen coordinates of the plot center.
func (p Plane) Center() (x, y float64) {
	return float64(p.Width) / 2, float64(p.Height) / 2
}

// ToScreenX converts a planar x offset into a screen x coordinate.
func (p Plane) ToScreenX(offsetX float64) float64 {
	return offsetX + float64(p.Width)/2
}

// ToScreenY converts a planar y offset into a screen y coordinate.
func (p Plane) ToScreenY(offsetY float64) float64 {
	return -offsetY + float64(p.Height)/2
}

// ToScreen converts a planar point into screen coordinates.
func (p Plane) ToScreen(pt Point) (x, y float64) {
	return p.ToScreenX(pt.X), p.ToScreenY(pt.Y)
}

// Locate projects a direction straight into screen coordinates using the plane radius.
func (p Plane) Locate(azimuthDeg, elevationDeg float64) (x, y float64) {
	return p.ToScreen(Project(azimuthDeg, elevationDeg, p.Radius()))
}
