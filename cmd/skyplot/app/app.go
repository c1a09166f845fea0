package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/storage"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	if config.ListSessions {
		return listSessions(ctx, store, logger)
	}

	format, err := displayFormat(ctx, store, config)
	if err != nil {
		return err
	}

	renderer, err := NewEpochRenderer(config, format)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering configuration",
		slog.Int64("session", config.SessionID),
		slog.String("filter", string(config.Filter.Constellation)),
		slog.Bool("usedInFixOnly", config.Filter.UsedInFixOnly),
		slog.String("format", string(format)),
		slog.String("theme", string(config.Theme)))

	if config.Series() {
		return renderSeries(ctx, store, renderer, config, logger)
	}
	return renderEpoch(ctx, store, renderer, config, logger)
}

func listSessions(ctx context.Context, store storage.Store, logger *slog.Logger) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		logger.Info("no recorded sessions")
		return nil
	}

	for _, s := range sessions {
		attrs := []any{
			slog.Int64("id", s.ID),
			slog.String("source", s.Source),
			slog.String("started", s.StartTime.Local().Format(time.DateTime)),
			slog.String("age", humanize.Time(s.StartTime)),
		}
		if s.Config != nil {
			attrs = append(attrs, slog.String("config", *s.Config))
		}
		logger.Info("session", attrs...)
	}
	return nil
}

// displayFormat returns the format given on the command line, falling back to
// the preference stored by the sky view.
func displayFormat(ctx context.Context, store storage.Store, config *Config) (gnss.DisplayFormat, error) {
	if config.DisplayFormat != nil {
		return *config.DisplayFormat, nil
	}

	format, err := store.DisplayFormat(ctx)
	if err != nil {
		return "", fmt.Errorf("loading display format: %w", err)
	}
	return format, nil
}

func renderEpoch(ctx context.Context, store storage.Store, renderer *EpochRenderer, config *Config, logger *slog.Logger) error {
	var at time.Time
	if config.At != nil {
		at = *config.At
	}

	epoch, err := store.Epoch(ctx, config.SessionID, at)
	if errors.Is(err, storage.ErrNoEpoch) {
		return fmt.Errorf("session %d has no epoch at or before %s", config.SessionID, describeTime(config.At))
	}
	if err != nil {
		return err
	}

	logger.Info("rendering epoch",
		slog.Int64("id", epoch.ID),
		slog.String("timestamp", epoch.Timestamp.Local().Format(time.DateTime)),
		slog.Int("satellites", len(epoch.Satellites)))

	return renderer.WriteEpoch(epoch, 0, logger)
}

func renderSeries(ctx context.Context, store *storage.SqliteStore, renderer *EpochRenderer, config *Config, logger *slog.Logger) error {
	var opts []storage.ReaderOption
	switch {
	case config.From != nil && config.To != nil:
		opts = append(opts, storage.WithTimeRange(*config.From, *config.To))
	case config.From != nil:
		opts = append(opts, storage.WithStartTime(*config.From))
	case config.To != nil:
		opts = append(opts, storage.WithEndTime(*config.To))
	}

	iter, err := store.ReadEpochs(ctx, config.SessionID, opts...)
	if err != nil {
		return err
	}
	defer iter.Close()

	startTime, endTime := iter.TimeRange()
	logger.Info("reader configuration",
		slog.String("source", iter.Session().Source),
		slog.String("minTimestamp", startTime.Local().Format(time.DateTime)),
		slog.String("maxTimestamp", endTime.Local().Format(time.DateTime)),
		slog.Duration("span", endTime.Sub(startTime)))

	var seq int
	for iter.Next(ctx) {
		seq++
		if err = renderer.WriteEpoch(iter.Current(), seq, logger); err != nil {
			return fmt.Errorf("epoch %d: %w", iter.Current().ID, err)
		}
	}
	if err = iter.Error(); err != nil {
		return err
	}

	if seq == 0 {
		return fmt.Errorf("session %d has no epochs in the requested range", config.SessionID)
	}

	logger.Info("finished rendering epochs", slog.Int("epochs", seq))
	return nil
}

func describeTime(t *time.Time) string {
	if t == nil {
		return "now"
	}
	return t.Format(time.RFC3339)
}
