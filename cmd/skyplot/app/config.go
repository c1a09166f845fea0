package app

import (
	"errors"
	"flag"
	"fmt"
	"image"
	"os"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/render"
)

const (
	defaultWidth        = 1000
	defaultHeight       = 1200
	defaultSignalHeight = 400
)

type Config struct {
	DBPath        string
	SessionID     int64
	ListSessions  bool
	OutputFile    string
	Format        render.ImageFormat
	At            *time.Time
	From          *time.Time
	To            *time.Time
	Filter        gnss.Filter
	DisplayFormat *gnss.DisplayFormat
	Theme         render.ColorTheme
	Width         int
	Height        int
	SignalHeight  int
	NoCardinals   bool
	MeanLine      bool
	Verbose       bool
}

func NewConfig() *Config {
	return &Config{
		SessionID:    1,
		Format:       render.ImagePNG,
		Filter:       gnss.DefaultFilter(),
		Theme:        render.SolidTheme,
		Width:        defaultWidth,
		Height:       defaultHeight,
		SignalHeight: defaultSignalHeight,
	}
}

// Series reports whether a time range was requested, in which case every
// epoch of the range is rendered instead of a single one.
func (c *Config) Series() bool {
	return c.From != nil || c.To != nil
}

// SkyPlotSize returns the sky-plot image size.
func (c *Config) SkyPlotSize() image.Point {
	return image.Pt(c.Width, c.Height)
}

// SignalSize returns the signal chart image size.
func (c *Config) SignalSize() image.Point {
	return image.Pt(c.Width, c.SignalHeight)
}

// OutputPath returns the file name of one chart: <output>-<chart>.<format>,
// with a zero-padded sequence number in series mode.
func (c *Config) OutputPath(chart string, seq int) string {
	if seq > 0 {
		return fmt.Sprintf("%s-%s-%04d.%s", c.OutputFile, chart, seq, c.Format)
	}
	return fmt.Sprintf("%s-%s.%s", c.OutputFile, chart, c.Format)
}

func NewConfigFromCLI() (*Config, error) {
	return parseConfig(flag.CommandLine, os.Args[1:])
}

func parseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, theme, constellation, displayFormat, at, from, to string
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.BoolVar(&c.ListSessions, "list", false, "List recorded sessions and exit")
	fs.StringVar(&c.OutputFile, "o", "", "Output file prefix")
	fs.StringVar(&imageFormat, "f", string(render.ImagePNG), "Output image format. [png, jpeg]")
	fs.StringVar(&at, "at", "", "Render the epoch recorded at or before this time (RFC 3339), latest when empty")
	fs.StringVar(&from, "from", "", "Render every epoch from this time (RFC 3339)")
	fs.StringVar(&to, "to", "", "Render every epoch up to this time (RFC 3339)")
	fs.StringVar(&constellation, "constellation", string(gnss.FilterAll), "Constellation filter. [all, gps, glonass, galileo]")
	fs.BoolVar(&c.Filter.UsedInFixOnly, "used", false, "Only show satellites used in the position fix")
	fs.StringVar(&displayFormat, "format", "", "Location format. [d, dm, dms], stored preference when empty")
	fs.StringVar(&theme, "theme", string(render.SolidTheme), "Signal bar colour theme. [solid, quality, thermal, grayscale]")
	fs.IntVar(&c.Width, "width", defaultWidth, "Image width in pixels")
	fs.IntVar(&c.Height, "height", defaultHeight, "Sky-plot height in pixels")
	fs.IntVar(&c.SignalHeight, "signal-height", defaultSignalHeight, "Signal chart height in pixels")
	fs.BoolVar(&c.NoCardinals, "no-cardinals", false, "Do not draw the N, E, S and W labels")
	fs.BoolVar(&c.MeanLine, "mean-line", false, "Draw the mean signal strength across the bars")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := c.apply(imageFormat, theme, constellation, displayFormat, at, from, to); err != nil {
		fs.Usage()
		return nil, err
	}
	return c, nil
}

func (c *Config) apply(imageFormat, theme, constellation, displayFormat, at, from, to string) (err error) {
	switch {
	case c.DBPath == "":
		return errors.New("db path is required")
	case c.ListSessions:
		return nil
	case c.SessionID <= 0:
		return errors.New("session id is required")
	case c.OutputFile == "":
		return errors.New("output file is required")
	case c.Width <= 0 || c.Height <= 0 || c.SignalHeight <= 0:
		return fmt.Errorf("invalid image size: %dx%d, signal height %d", c.Width, c.Height, c.SignalHeight)
	case at != "" && (from != "" || to != ""):
		return errors.New("-at cannot be combined with -from or -to")
	}

	if c.Format, err = render.ParseImageFormat(imageFormat); err != nil {
		return err
	}
	if c.Theme, err = render.ParseColorTheme(theme); err != nil {
		return err
	}
	if c.Filter.Constellation, err = gnss.ParseConstellationFilter(constellation); err != nil {
		return err
	}
	if c.Filter.Constellation == gnss.FilterCurrent {
		return errors.New("constellation filter CURRENT is only valid for a running sky view")
	}

	if displayFormat != "" {
		format, err := gnss.ParseDisplayFormat(displayFormat)
		if err != nil {
			return err
		}
		c.DisplayFormat = &format
	}

	times := []struct {
		name  string
		value string
		dst   **time.Time
	}{
		{"at", at, &c.At},
		{"from", from, &c.From},
		{"to", to, &c.To},
	}
	for _, t := range times {
		if t.value == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, t.value)
		if err != nil {
			return fmt.Errorf("invalid -%s time: %w", t.name, err)
		}
		*t.dst = &parsed
	}

	if c.From != nil && c.To != nil && c.From.After(*c.To) {
		return fmt.Errorf("-from %s is after -to %s", c.From.Format(time.RFC3339), c.To.Format(time.RFC3339))
	}
	return nil
}
