package app

import (
	"bufio"
	"fmt"
	"image"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/location"
	"github.com/roman-kulish/sky-view/internal/render"
	"github.com/roman-kulish/sky-view/internal/skyview"
)

const (
	chartSkyPlot = "skyplot"
	chartSignal  = "signal"
)

// EpochRenderer draws stored epochs through the same filter and renderers as
// the live sky view and writes the charts to files.
type EpochRenderer struct {
	config *Config
	format gnss.DisplayFormat
	model  *skyview.Model
	sky    *render.SkyPlotRenderer
	signal *render.SignalBarRenderer
}

func NewEpochRenderer(config *Config, format gnss.DisplayFormat) (*EpochRenderer, error) {
	format, err := gnss.ParseDisplayFormat(string(format))
	if err != nil {
		return nil, err
	}

	model := skyview.NewModel()
	model.SetFilter(config.Filter)

	return &EpochRenderer{
		config: config,
		format: format,
		model:  model,
		sky: render.NewSkyPlotRenderer(render.SkyPlotStyle{
			Cardinals: !config.NoCardinals,
		}),
		signal: render.NewSignalBarRenderer(render.SignalBarStyle{
			Theme:    config.Theme,
			MeanLine: config.MeanLine,
		}),
	}, nil
}

// Render draws both charts of the epoch.
func (er *EpochRenderer) Render(epoch *gnss.Epoch) (sky, signal image.Image, err error) {
	er.model.ReplaceSnapshot(epoch.Satellites)
	satellites := er.model.FilteredView()

	var text string
	if epoch.Location != nil {
		text = location.Format(*epoch.Location, er.format)
	}

	if sky, err = er.sky.Render(er.config.SkyPlotSize(), satellites, text); err != nil {
		return nil, nil, fmt.Errorf("rendering sky plot: %w", err)
	}
	if signal, err = er.signal.Render(er.config.SignalSize(), satellites); err != nil {
		return nil, nil, fmt.Errorf("rendering signal chart: %w", err)
	}
	return sky, signal, nil
}

// WriteEpoch renders the epoch and writes both charts. A positive seq numbers
// the files of a series.
func (er *EpochRenderer) WriteEpoch(epoch *gnss.Epoch, seq int, logger *slog.Logger) error {
	sky, signal, err := er.Render(epoch)
	if err != nil {
		return err
	}

	charts := []struct {
		name string
		img  image.Image
	}{
		{chartSkyPlot, sky},
		{chartSignal, signal},
	}
	for _, c := range charts {
		path := er.config.OutputPath(c.name, seq)

		size, err := writeImage(path, c.img, er.config.Format)
		if err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}

		if er.config.Verbose || seq == 0 {
			logger.Info("chart written",
				slog.String("destination", path),
				slog.String("size", humanize.Bytes(uint64(size))),
				slog.Int("satellites", er.model.FilteredCount()))
		}
	}
	return nil
}

func writeImage(path string, img image.Image, format render.ImageFormat) (size int64, err error) {
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cErr := out.Close(); cErr != nil && err == nil {
			err = cErr
		}
	}()

	w := bufio.NewWriter(out)
	if err = render.Encode(w, img, format); err != nil {
		return 0, err
	}
	if err = w.Flush(); err != nil {
		return 0, err
	}

	info, err := out.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
