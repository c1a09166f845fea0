package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/sky-view/internal/render"
	"github.com/roman-kulish/sky-view/internal/skyview"
)

const (
	chartSkyPlot = "skyplot"
	chartSignal  = "signal"
)

// RenderedFrame holds the encoded charts of one hub frame.
type RenderedFrame struct {
	SkyPlot  []byte
	Signal   []byte
	Frame    skyview.Frame
	Rendered time.Time
}

// FrameRenderer redraws both charts whenever the hub signals a change and
// keeps the latest encoded images for the HTTP server.
type FrameRenderer struct {
	hub     *skyview.Hub
	sky     *render.SkyPlotRenderer
	signal  *render.SignalBarRenderer
	metrics *skyview.Metrics
	logger  *slog.Logger

	skySize    image.Point
	signalSize image.Point

	latest atomic.Pointer[RenderedFrame]
}

// NewFrameRenderer creates a FrameRenderer from the render configuration.
func NewFrameRenderer(hub *skyview.Hub, config *RenderConfig, metrics *skyview.Metrics, logger *slog.Logger) (*FrameRenderer, error) {
	skyStyle, err := config.SkyPlotStyle()
	if err != nil {
		return nil, err
	}
	signalStyle, err := config.SignalBarStyle()
	if err != nil {
		return nil, err
	}

	return &FrameRenderer{
		hub:        hub,
		sky:        render.NewSkyPlotRenderer(skyStyle),
		signal:     render.NewSignalBarRenderer(signalStyle),
		metrics:    metrics,
		logger:     logger,
		skySize:    config.SkyPlot.Point(),
		signalSize: config.Signal.Point(),
	}, nil
}

// Run renders the current frame, then one frame per redraw request until ctx is done.
func (fr *FrameRenderer) Run(ctx context.Context) error {
	if err := fr.RenderFrame(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-fr.hub.Redraw():
			if err := fr.RenderFrame(); err != nil {
				fr.logger.Error(err.Error())
			}
		}
	}
}

// RenderFrame draws both charts from the hub's current frame.
func (fr *FrameRenderer) RenderFrame() error {
	frame := fr.hub.Frame()

	skyImg, err := fr.sky.Render(fr.skySize, frame.Satellites, frame.LocationText)
	if err != nil {
		return fmt.Errorf("rendering sky plot: %w", err)
	}
	var sky bytes.Buffer
	if err = render.Encode(&sky, skyImg, render.ImagePNG); err != nil {
		return fmt.Errorf("encoding sky plot: %w", err)
	}
	fr.metrics.FrameRendered(chartSkyPlot)

	signalImg, err := fr.signal.Render(fr.signalSize, frame.Satellites)
	if err != nil {
		return fmt.Errorf("rendering signal chart: %w", err)
	}
	var signal bytes.Buffer
	if err = render.Encode(&signal, signalImg, render.ImagePNG); err != nil {
		return fmt.Errorf("encoding signal chart: %w", err)
	}
	fr.metrics.FrameRendered(chartSignal)

	fr.latest.Store(&RenderedFrame{
		SkyPlot:  sky.Bytes(),
		Signal:   signal.Bytes(),
		Frame:    frame,
		Rendered: time.Now(),
	})

	fr.logger.Debug("frame rendered",
		slog.Int("satellites", len(frame.Satellites)),
		slog.String("skyplot", humanize.Bytes(uint64(sky.Len()))),
		slog.String("signal", humanize.Bytes(uint64(signal.Len()))))

	return nil
}

// Latest returns the most recently rendered frame, nil before the first one.
func (fr *FrameRenderer) Latest() *RenderedFrame {
	return fr.latest.Load()
}
