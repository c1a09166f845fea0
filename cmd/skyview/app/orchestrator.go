package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/receiver"
	"github.com/roman-kulish/sky-view/internal/skyview"
	"github.com/roman-kulish/sky-view/internal/storage"
)

const maxBatchSize = 10

// WithMaxBatchSize sets the maximum number of recorded epochs to store
// within a single database transaction.
func WithMaxBatchSize(size int) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.maxBatchSize = size
	}
}

// WithRecorder records every satellite snapshot as an epoch of a new
// session in the store.
func WithRecorder(store storage.Store, config any) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.sessionConfig = config
	}
}

// WithReplay replays a recording instead of running the receiver command.
func WithReplay(recording io.Reader, delay time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.recording = recording
		o.replayDelay = delay
	}
}

// Orchestrator moves receiver events into the hub and, optionally, records
// satellite snapshots in a database.
type Orchestrator struct {
	receiver *receiver.Receiver
	hub      *skyview.Hub
	logger   *slog.Logger

	store         storage.Store
	sessionConfig any
	sessionID     int64
	maxBatchSize  int
	batch         *storage.EpochBuffer

	recording   io.Reader
	replayDelay time.Duration

	mu       sync.Mutex
	location *gnss.Location
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(r *receiver.Receiver, hub *skyview.Hub, logger *slog.Logger, options ...func(*Orchestrator)) *Orchestrator {
	o := Orchestrator{
		receiver:     r,
		hub:          hub,
		logger:       logger,
		maxBatchSize: maxBatchSize,
	}

	for _, option := range options {
		option(&o)
	}

	return &o
}

// Run samples the receiver until ctx is done, the recording is exhausted or
// the receiver fails.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.store != nil {
		batch, err := storage.NewEpochBuffer(o.maxBatchSize, o.maxBatchSize)
		if err != nil {
			return fmt.Errorf("creating epoch buffer: %w", err)
		}
		o.batch = batch

		sessionID, err := o.store.CreateSession(ctx, o.receiver.Source(), o.sessionConfig)
		if err != nil {
			return fmt.Errorf("creating session: %w", err)
		}
		o.sessionID = sessionID
		o.logger.Info("recording session", slog.Int64("sessionID", sessionID), slog.Int("batchSize", o.maxBatchSize))
	}

	events := make(chan receiver.Event)
	handled := make(chan struct{})

	go func() {
		defer close(handled)
		o.handleEvents(ctx, events)
	}()

	err := o.sample(ctx, events)
	close(events)
	<-handled

	if sErr := o.storeBatch(context.WithoutCancel(ctx), o.drain()); sErr != nil {
		o.logger.Error(sErr.Error())
	}

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (o *Orchestrator) sample(ctx context.Context, events chan<- receiver.Event) error {
	if o.recording != nil {
		return o.receiver.Replay(ctx, o.recording, events)
	}

	done, err := o.receiver.BeginSampling(ctx, events)
	if err != nil {
		return fmt.Errorf("starting receiver: %w", err)
	}

	select {
	case err = <-done: // receiver stopped on its own
		return err
	case <-ctx.Done():
		o.receiver.Stop()
		return nil
	}
}

func (o *Orchestrator) handleEvents(ctx context.Context, events <-chan receiver.Event) {
	for event := range events {
		switch event.Kind {
		case receiver.SatelliteStatus:
			o.hub.UpdateSatellites(event.Satellites)

			if err := o.record(ctx, event); err != nil {
				o.logger.Error(err.Error())
			}

			if o.recording != nil && o.replayDelay > 0 {
				select {
				case <-time.After(o.replayDelay):
				case <-ctx.Done():
				}
			}

		case receiver.LocationFix:
			if event.Location == nil {
				continue
			}

			o.mu.Lock()
			loc := *event.Location
			o.location = &loc
			o.mu.Unlock()

			o.hub.UpdateLocation(loc)
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, event receiver.Event) error {
	if o.batch == nil || o.sessionID == 0 {
		return nil
	}

	o.mu.Lock()
	loc := o.location
	o.mu.Unlock()

	err := o.batch.Insert(&gnss.Epoch{
		SessionID:  o.sessionID,
		Timestamp:  event.Timestamp,
		Location:   loc,
		Satellites: event.Satellites,
	})
	if err != nil {
		return err
	}

	if o.batch.IsFull() {
		return o.storeBatch(ctx, o.batch.Flush())
	}
	return nil
}

func (o *Orchestrator) drain() []*gnss.Epoch {
	if o.batch == nil {
		return nil
	}
	return o.batch.DrainAll()
}

func (o *Orchestrator) storeBatch(ctx context.Context, epochs []*gnss.Epoch) error {
	if len(epochs) == 0 {
		return nil
	}
	if err := o.store.StoreEpochs(ctx, o.sessionID, epochs); err != nil {
		return fmt.Errorf("storing %d epochs: %w", len(epochs), err)
	}
	return nil
}

// SessionID returns the recording session, zero when not recording.
func (o *Orchestrator) SessionID() int64 {
	return o.sessionID
}
