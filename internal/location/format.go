// Package location renders position fixes as human-readable text.
package location

import (
	"fmt"
	"math"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

// Format renders the location in the given display format. Unknown formats
// fall back to decimal degrees.
func Format(loc gnss.Location, mode gnss.DisplayFormat) string {
	switch mode {
	case gnss.FormatDegreesMinutes:
		return fmt.Sprintf("Lat: %s, Long: %s, Alt: %.2f",
			formatDegreesMinutes(loc.Latitude), formatDegreesMinutes(loc.Longitude), loc.Altitude)

	case gnss.FormatDegreesMinutesSeconds:
		return fmt.Sprintf("Lat: %s, Long: %s, Alt: %.2f",
			formatDegreesMinutesSeconds(loc.Latitude), formatDegreesMinutesSeconds(loc.Longitude), loc.Altitude)

	default:
		return fmt.Sprintf("Lat: %.5f, Long: %.5f, Alt: %.2f", loc.Latitude, loc.Longitude, loc.Altitude)
	}
}

// DegreesMinutes splits a decimal angle into whole degrees, truncated toward
// zero, and unsigned fractional minutes.
func DegreesMinutes(value float64) (degrees int, minutes float64) {
	whole := math.Trunc(value)
	return int(whole), math.Abs(value-whole) * 60
}

// DegreesMinutesSeconds splits a decimal angle into whole degrees, truncated
// toward zero, unsigned whole minutes and unsigned fractional seconds.
func DegreesMinutesSeconds(value float64) (degrees, minutes int, seconds float64) {
	degrees, fm := DegreesMinutes(value)
	wm := math.Trunc(fm)
	return degrees, int(wm), math.Abs(fm-wm) * 60
}

func formatDegreesMinutes(value float64) string {
	d, m := DegreesMinutes(value)
	return fmt.Sprintf("%d°%.5f'", d, m)
}

func formatDegreesMinutesSeconds(value float64) string {
	d, m, s := DegreesMinutesSeconds(value)
	return fmt.Sprintf("%d°%d'%.2f\"", d, m, s)
}
