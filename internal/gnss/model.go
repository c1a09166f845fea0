package gnss

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrUnknownConstellation is returned when a constellation filter name cannot be parsed
	ErrUnknownConstellation = errors.New("unknown constellation")

	// ErrUnknownFormat is returned when a display format name cannot be parsed
	ErrUnknownFormat = errors.New("unknown display format")
)

// Constellation identifies the satellite system a space vehicle belongs to.
type Constellation int

const (
	ConstellationOther Constellation = iota
	ConstellationGPS
	ConstellationGLONASS
	ConstellationGalileo
)

// Constellations lists the known constellations in display order.
var Constellations = []Constellation{
	ConstellationGPS,
	ConstellationGLONASS,
	ConstellationGalileo,
	ConstellationOther,
}

func (c Constellation) String() string {
	switch c {
	case ConstellationGPS:
		return "GPS"
	case ConstellationGLONASS:
		return "Glonass"
	case ConstellationGalileo:
		return "Galileo"
	default:
		return "Other"
	}
}

func (c Constellation) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Constellation) UnmarshalText(text []byte) error {
	*c = ParseConstellation(string(text))
	return nil
}

// ParseConstellation is the inverse of Constellation.String. Unknown names
// map to ConstellationOther.
func ParseConstellation(s string) Constellation {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GPS":
		return ConstellationGPS
	case "GLONASS":
		return ConstellationGLONASS
	case "GALILEO":
		return ConstellationGalileo
	default:
		return ConstellationOther
	}
}

// Satellite is a single space vehicle as reported by one satellite status update.
type Satellite struct {
	ID            int           `json:"id"`            // Space vehicle identifier (SVID / PRN)
	Constellation Constellation `json:"constellation"` // Satellite system
	UsedInFix     bool          `json:"usedInFix"`     // Whether the signal contributed to the position solution
	Azimuth       float64       `json:"azimuth"`       // Degrees clockwise from North, [0, 360)
	Elevation     float64       `json:"elevation"`     // Degrees above the horizon, [-90, 90]
	SignalDBHz    float64       `json:"cn0"`           // Carrier-to-noise density in dB-Hz, typically [0, 100]
}

// UsageLabel returns "Used" or "Not Used".
func (s Satellite) UsageLabel() string {
	if s.UsedInFix {
		return "Used"
	}
	return "Not Used"
}

// Label returns the sky-plot label of the satellite, e.g. "12 (GPS) Used".
func (s Satellite) Label() string {
	return fmt.Sprintf("%d (%s) %s", s.ID, s.Constellation, s.UsageLabel())
}

// Location is a single position fix of the device.
type Location struct {
	Timestamp time.Time `json:"timestamp"` // Time of the fix
	Latitude  float64   `json:"latitude"`  // Decimal degrees, [-90, 90]
	Longitude float64   `json:"longitude"` // Decimal degrees, [-180, 180]
	Altitude  float64   `json:"altitude"`  // Meters
}

// ConstellationFilter selects which constellation is displayed.
type ConstellationFilter string

const (
	FilterAll     ConstellationFilter = "ALL"
	FilterGPS     ConstellationFilter = "GPS"
	FilterGLONASS ConstellationFilter = "GLONASS"
	FilterGalileo ConstellationFilter = "GALILEO"

	// FilterCurrent keeps whatever constellation filter is already active.
	FilterCurrent ConstellationFilter = "CURRENT"
)

// Matches reports whether the constellation passes the filter. FilterCurrent
// must be resolved before matching and matches nothing on its own.
func (f ConstellationFilter) Matches(c Constellation) bool {
	switch f {
	case FilterAll:
		return true
	case FilterGPS:
		return c == ConstellationGPS
	case FilterGLONASS:
		return c == ConstellationGLONASS
	case FilterGalileo:
		return c == ConstellationGalileo
	default:
		return false
	}
}

// ParseConstellationFilter parses a case-insensitive filter name.
func ParseConstellationFilter(s string) (ConstellationFilter, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL":
		return FilterAll, nil
	case "GPS":
		return FilterGPS, nil
	case "GLONASS":
		return FilterGLONASS, nil
	case "GALILEO":
		return FilterGalileo, nil
	case "CURRENT":
		return FilterCurrent, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConstellation, s)
	}
}

// Filter is the active satellite selection. Both conditions must hold.
type Filter struct {
	Constellation ConstellationFilter `json:"constellation"`
	UsedInFixOnly bool                `json:"usedInFixOnly"`
}

// DefaultFilter shows every satellite.
func DefaultFilter() Filter {
	return Filter{Constellation: FilterAll}
}

// Matches reports whether the satellite passes the filter.
func (f Filter) Matches(s Satellite) bool {
	return f.Constellation.Matches(s.Constellation) && (!f.UsedInFixOnly || s.UsedInFix)
}

// DisplayFormat selects the textual rendering of a Location.
type DisplayFormat string

const (
	FormatDegrees               DisplayFormat = "degrees"
	FormatDegreesMinutes        DisplayFormat = "degrees-minutes"
	FormatDegreesMinutesSeconds DisplayFormat = "degrees-minutes-seconds"
)

func (f DisplayFormat) String() string {
	return string(f)
}

// ParseDisplayFormat accepts the canonical names and the short forms d, dm and dms.
func ParseDisplayFormat(s string) (DisplayFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "deg", string(FormatDegrees):
		return FormatDegrees, nil
	case "dm", string(FormatDegreesMinutes):
		return FormatDegreesMinutes, nil
	case "dms", string(FormatDegreesMinutesSeconds):
		return FormatDegreesMinutesSeconds, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Session describes one recording of receiver output.
type Session struct {
	ID        int64     `json:"id"`                      // Unique identifier for the session
	StartTime time.Time `json:"startTime"`               // When the recording began
	Source    string    `json:"source"`                  // Receiver source, e.g. "gpspipe"
	Config    *string   `json:"config,string,omitempty"` // Optional receiver configuration in JSON format
}

// Epoch is a stored satellite snapshot with the location known at that time.
type Epoch struct {
	ID         int64       `json:"id"`
	SessionID  int64       `json:"sessionID"`
	Timestamp  time.Time   `json:"timestamp"`
	Location   *Location   `json:"location,omitempty"`
	Satellites []Satellite `json:"satellites"`
}
