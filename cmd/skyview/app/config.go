package app

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/sky-view/internal/receiver"
	"github.com/roman-kulish/sky-view/internal/receiver/nmea"
	"github.com/roman-kulish/sky-view/internal/render"
)

const (
	defaultListen = "localhost:8080"

	defaultSkyPlotWidth  = 1000
	defaultSkyPlotHeight = 1200
	defaultSignalWidth   = 1000
	defaultSignalHeight  = 400
)

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Receiver ReceiverConfig `yaml:"receiver"`
	Storage  StorageConfig  `yaml:"storage"`
	Render   RenderConfig   `yaml:"render"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
	Listen   string `yaml:"listen"` // HTTP listen address (default: localhost:8080)
}

// Level returns the parsed log level, slog.LevelInfo when unset.
func (s *Settings) Level() (slog.Level, error) {
	var level slog.Level
	if s.LogLevel == "" {
		return level, nil
	}
	if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", s.LogLevel, err)
	}
	return level, nil
}

// ReceiverConfig selects the satellite data source: a live gpsd instance
// through gpspipe, or a recorded NMEA log when ReplayFile is set.
type ReceiverConfig struct {
	GPSD                 nmea.Config           `yaml:"gpsd"`
	ReplayFile           string                `yaml:"replayFile"`
	ReplayDelay          receiver.TimeDuration `yaml:"replayDelay"` // Pause after each replayed satellite snapshot
	ParseErrorsThreshold uint8                 `yaml:"parseErrorsThreshold"`
	StaleAfter           receiver.TimeDuration `yaml:"staleAfter"` // Drop a talker's satellites after this long without updates
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Path      string `yaml:"path"`      // Sqlite database file; preferences are kept in memory when empty
	Record    bool   `yaml:"record"`    // Record every satellite snapshot as an epoch
	BatchSize int    `yaml:"batchSize"` // Epochs stored per transaction (default: 10)
}

// ImageSize is the pixel size of a chart.
type ImageSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

func (s ImageSize) Point() image.Point {
	return image.Pt(s.Width, s.Height)
}

// PaletteConfig holds "#rrggbb" marker colours per constellation.
type PaletteConfig struct {
	GPS     string `yaml:"gps"`
	GLONASS string `yaml:"glonass"`
	Galileo string `yaml:"galileo"`
	Other   string `yaml:"other"`
}

// RenderConfig represents chart settings. Colours are "#rrggbb"; empty
// values keep the renderer defaults.
type RenderConfig struct {
	SkyPlot ImageSize `yaml:"skyPlot"`
	Signal  ImageSize `yaml:"signal"`

	Background   string        `yaml:"background"`
	Grid         string        `yaml:"grid"`
	Location     string        `yaml:"location"`
	Palette      PaletteConfig `yaml:"palette"`
	MarkerRadius float64       `yaml:"markerRadius"`
	LabelSize    float64       `yaml:"labelSize"`
	Cardinals    *bool         `yaml:"cardinals"`

	Bar      string  `yaml:"bar"`
	Theme    string  `yaml:"theme"` // solid, quality, thermal or grayscale
	MinCN0   float64 `yaml:"minCN0"`
	MaxCN0   float64 `yaml:"maxCN0"`
	MeanLine bool    `yaml:"meanLine"`
}

// LoadConfig reads, parses and validates the YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err = yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	c.setDefaults()
	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) setDefaults() {
	if c.Settings.Listen == "" {
		c.Settings.Listen = defaultListen
	}
	if c.Receiver.StaleAfter == 0 {
		c.Receiver.StaleAfter = receiver.NewTimeDuration(nmea.DefaultStaleAfter)
	}
	if c.Render.SkyPlot == (ImageSize{}) {
		c.Render.SkyPlot = ImageSize{Width: defaultSkyPlotWidth, Height: defaultSkyPlotHeight}
	}
	if c.Render.Signal == (ImageSize{}) {
		c.Render.Signal = ImageSize{Width: defaultSignalWidth, Height: defaultSignalHeight}
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.Settings.Level(); err != nil {
		errs = append(errs, err)
	}

	if c.Receiver.ReplayFile == "" {
		if err := c.Receiver.GPSD.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Receiver.ReplayDelay.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("receiver.replayDelay: %w", err))
	}
	if err := c.Receiver.StaleAfter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("receiver.staleAfter: %w", err))
	}

	if c.Storage.Record && c.Storage.Path == "" {
		errs = append(errs, errors.New("storage.record requires storage.path"))
	}
	if c.Storage.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("storage.batchSize: invalid size %d", c.Storage.BatchSize))
	}

	if c.Render.SkyPlot.Width <= 0 || c.Render.SkyPlot.Height <= 0 {
		errs = append(errs, fmt.Errorf("render.skyPlot: invalid size %dx%d", c.Render.SkyPlot.Width, c.Render.SkyPlot.Height))
	}
	if c.Render.Signal.Width <= 0 || c.Render.Signal.Height <= 0 {
		errs = append(errs, fmt.Errorf("render.signal: invalid size %dx%d", c.Render.Signal.Width, c.Render.Signal.Height))
	}
	if _, err := c.Render.SkyPlotStyle(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Render.SignalBarStyle(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SkyPlotStyle builds the sky-plot renderer style.
func (r *RenderConfig) SkyPlotStyle() (render.SkyPlotStyle, error) {
	style := render.SkyPlotStyle{
		MarkerRadius: r.MarkerRadius,
		LabelSize:    r.LabelSize,
		Cardinals:    r.Cardinals == nil || *r.Cardinals,
	}

	colors := []struct {
		name  string
		value string
		dst   *color.Color
	}{
		{"render.background", r.Background, &style.Background},
		{"render.grid", r.Grid, &style.Grid},
		{"render.location", r.Location, &style.Location},
		{"render.palette.gps", r.Palette.GPS, &style.Palette.GPS},
		{"render.palette.glonass", r.Palette.GLONASS, &style.Palette.GLONASS},
		{"render.palette.galileo", r.Palette.Galileo, &style.Palette.Galileo},
		{"render.palette.other", r.Palette.Other, &style.Palette.Other},
	}
	for _, c := range colors {
		col, err := render.ParseColor(c.value)
		if err != nil {
			return style, fmt.Errorf("%s: %w", c.name, err)
		}
		*c.dst = col
	}

	return style, nil
}

// SignalBarStyle builds the signal chart renderer style.
func (r *RenderConfig) SignalBarStyle() (render.SignalBarStyle, error) {
	style := render.SignalBarStyle{
		MeanLine: r.MeanLine,
	}

	theme, err := render.ParseColorTheme(r.Theme)
	if err != nil {
		return style, fmt.Errorf("render.theme: %w", err)
	}
	style.Theme = theme

	if r.MinCN0 != 0 || r.MaxCN0 != 0 {
		if r.MaxCN0 <= r.MinCN0 {
			return style, fmt.Errorf("render: maxCN0 %.1f must be greater than minCN0 %.1f", r.MaxCN0, r.MinCN0)
		}
		style.Bounds = render.SignalBounds{Min: r.MinCN0, Max: r.MaxCN0}
	}

	if style.Background, err = render.ParseColor(r.Background); err != nil {
		return style, fmt.Errorf("render.background: %w", err)
	}
	if style.Bar, err = render.ParseColor(r.Bar); err != nil {
		return style, fmt.Errorf("render.bar: %w", err)
	}

	return style, nil
}
