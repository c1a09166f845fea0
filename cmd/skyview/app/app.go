package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/sky-view/internal/receiver"
	"github.com/roman-kulish/sky-view/internal/receiver/nmea"
	"github.com/roman-kulish/sky-view/internal/skyview"
	"github.com/roman-kulish/sky-view/internal/storage"
)

const shutdownTimeout = 5 * time.Second

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	var hubOptions []func(*skyview.Hub)

	var store *storage.SqliteStore
	if config.Storage.Path != "" {
		store = storage.NewSqliteStore(config.Storage.Path)
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error(fmt.Sprintf("closing storage: %s", err))
			}
		}()

		hubOptions = append(hubOptions, skyview.WithPreferences(store))
	}

	metrics, err := skyview.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("failed to create metrics: %w", err)
	}
	hubOptions = append(hubOptions, skyview.WithMetrics(metrics))

	hub, err := skyview.NewHub(ctx, hubOptions...)
	if err != nil {
		return fmt.Errorf("failed to create hub: %w", err)
	}

	orchestrator, closeRecording, err := createOrchestrator(config, hub, store, logger)
	if err != nil {
		return fmt.Errorf("failed to create receiver: %w", err)
	}
	defer closeRecording()

	frames, err := NewFrameRenderer(hub, &config.Render, metrics, logger)
	if err != nil {
		return fmt.Errorf("failed to create renderer: %w", err)
	}

	server := &http.Server{
		Addr:              config.Settings.Listen,
		Handler:           NewServer(hub, frames, metrics, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := orchestrator.Run(ctx); err != nil {
			errs <- fmt.Errorf("receiver: %w", err)
			cancel()
		}
		logger.Info("receiver finished, charts stay available until interrupted")
	}()

	go func() {
		defer wg.Done()
		if err := frames.Run(ctx); err != nil {
			errs <- fmt.Errorf("renderer: %w", err)
			cancel()
		}
	}()

	go func() {
		defer wg.Done()
		logger.Info("serving charts", slog.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("http server: %w", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err = server.Shutdown(shutdownCtx); err != nil {
		logger.Error(fmt.Sprintf("shutting down http server: %s", err))
	}

	wg.Wait()
	close(errs)

	var runErrs []error
	for err := range errs {
		runErrs = append(runErrs, err)
	}
	return errors.Join(runErrs...)
}

func createOrchestrator(config *Config, hub *skyview.Hub, store *storage.SqliteStore, logger *slog.Logger) (*Orchestrator, func(), error) {
	closeRecording := func() {}

	assemblerOptions := []func(*nmea.Assembler){
		nmea.WithStaleAfter(config.Receiver.StaleAfter.Duration()),
	}

	var (
		handler         *nmea.Handler
		orchestratorOpt []func(*Orchestrator)
		sessionConfig   any
	)

	if config.Receiver.ReplayFile != "" {
		f, err := os.Open(config.Receiver.ReplayFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening replay file: %w", err)
		}
		closeRecording = func() { _ = f.Close() }

		handler = nmea.NewReplay(assemblerOptions...)
		orchestratorOpt = append(orchestratorOpt, WithReplay(f, config.Receiver.ReplayDelay.Duration()))
		sessionConfig = map[string]string{"replayFile": config.Receiver.ReplayFile}

		logger.Info("replaying recording", slog.String("path", config.Receiver.ReplayFile))
	} else {
		var err error
		if handler, err = nmea.New(&config.Receiver.GPSD, assemblerOptions...); err != nil {
			return nil, nil, fmt.Errorf("creating gpsd receiver: %w", err)
		}
		sessionConfig = &config.Receiver.GPSD

		logger.Info("sampling gpsd", slog.String("command", config.Receiver.GPSD.String()))
	}

	if config.Storage.Record {
		orchestratorOpt = append(orchestratorOpt, WithRecorder(store, sessionConfig))
		if config.Storage.BatchSize > 0 {
			orchestratorOpt = append(orchestratorOpt, WithMaxBatchSize(config.Storage.BatchSize))
		}
	}

	r := receiver.New(handler,
		receiver.WithLogger(logger),
		receiver.WithParseErrorsThreshold(config.Receiver.ParseErrorsThreshold))

	return NewOrchestrator(r, hub, logger, orchestratorOpt...), closeRecording, nil
}
