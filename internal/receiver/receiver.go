// Package receiver runs a GNSS receiver front-end, such as gpspipe, and turns
// its line-oriented output into satellite status and location events.
package receiver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

const (
	// ParseErrorsThreshold defines the number of consecutive parse errors allowed
	ParseErrorsThreshold = 5
)

var (
	// ErrTooManyParseErrors is returned when the number of consecutive parse errors exceeds the threshold
	ErrTooManyParseErrors = errors.New("too many consecutive parse errors")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")

	// ErrAlreadySampling is returned when sampling is started twice
	ErrAlreadySampling = errors.New("receiver is already sampling")
)

// EventKind distinguishes the payload of an Event.
type EventKind int

const (
	// SatelliteStatus carries a full satellite snapshot, replacing the previous one.
	SatelliteStatus EventKind = iota + 1

	// LocationFix carries a position fix.
	LocationFix
)

func (k EventKind) String() string {
	switch k {
	case SatelliteStatus:
		return "satellite-status"
	case LocationFix:
		return "location-fix"
	default:
		return "unknown"
	}
}

// Event is a single update produced by a receiver.
type Event struct {
	Kind       EventKind
	Timestamp  time.Time
	Source     string
	Satellites []gnss.Satellite // Set for SatelliteStatus
	Location   *gnss.Location   // Set for LocationFix
}

// Handler knows how to start a receiver front-end and how to parse its output.
type Handler interface {
	Cmd(ctx context.Context) *exec.Cmd
	Parse(line string, events chan<- Event) error
	Source() string
}

// WithLogger sets the logger for the receiver
func WithLogger(logger *slog.Logger) func(r *Receiver) {
	return func(r *Receiver) {
		r.logger = logger.With(slog.String("source", r.handler.Source()))
	}
}

// WithParseErrorsThreshold sets the threshold for consecutive parse errors
func WithParseErrorsThreshold(threshold uint8) func(r *Receiver) {
	return func(r *Receiver) {
		if threshold > 0 {
			r.parseErrorsThreshold = threshold
		}
	}
}

// Receiver runs a Handler's command, or replays a recording, and delivers
// parsed events to a channel.
type Receiver struct {
	handler Handler

	isSampling atomic.Bool
	cancel     context.CancelFunc
	wg         sync.WaitGroup

	parseErrorsThreshold uint8
	logger               *slog.Logger
}

// New creates a new Receiver instance with a discard logger
func New(h Handler, options ...func(r *Receiver)) *Receiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	r := Receiver{
		handler:              h,
		logger:               logger,
		parseErrorsThreshold: ParseErrorsThreshold,
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// Source returns the name of the receiver front-end.
func (r *Receiver) Source() string {
	return r.handler.Source()
}

// BeginSampling starts the receiver command and sends parsed events to the
// events channel. The returned channel is closed once sampling stops and
// carries the error that stopped it, if any.
func (r *Receiver) BeginSampling(ctx context.Context, events chan<- Event) (<-chan error, error) {
	if !r.isSampling.CompareAndSwap(false, true) {
		return nil, ErrAlreadySampling
	}

	ctx, r.cancel = context.WithCancel(ctx)
	cmd := r.handler.Cmd(ctx)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		r.isSampling.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.isSampling.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		r.isSampling.Store(false) // Reset running state on error
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	samplingStopped := make(chan error, 1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(samplingStopped)

		r.logger.Info("starting receiver...")

		done := make(chan error, 3) // expects three results from three goroutines

		go func() { done <- r.scan(stdout, events) }()
		go r.handleStderr(stderr, done)
		go r.handleCmdWait(ctx, cmd, done)

		var errs []error
		for i := 0; i < cap(done); i++ {
			if err := <-done; err != nil {
				r.cancel() // cancel context on error
				r.logger.Error(err.Error())

				errs = append(errs, err)
			}
		}

		r.logger.Info("receiver stopped")
		r.isSampling.Store(false)

		if len(errs) > 0 {
			samplingStopped <- errors.Join(errs...)
		}
	}()

	return samplingStopped, nil
}

// Replay parses a recording of receiver output, such as an NMEA log, and
// sends the events to the events channel. It returns when the recording is
// exhausted or ctx is done.
func (r *Receiver) Replay(ctx context.Context, recording io.Reader, events chan<- Event) error {
	if !r.isSampling.CompareAndSwap(false, true) {
		return ErrAlreadySampling
	}
	defer r.isSampling.Store(false)

	r.logger.Info("replaying recording...")

	lines := &contextReader{ctx: ctx, r: recording}
	if err := r.scan(lines, events); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}

	r.logger.Info("recording replayed")
	return nil
}

// Stop cancels sampling and waits for the receiver to wind down.
func (r *Receiver) Stop() {
	if !r.isSampling.Load() {
		return // already stopped
	}

	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
	r.isSampling.Store(false)
}

// IsSampling returns true if the receiver is running
func (r *Receiver) IsSampling() bool {
	return r.isSampling.Load()
}

// scan reads lines and hands them to the handler.
func (r *Receiver) scan(output io.Reader, events chan<- Event) error {
	var parseErrors uint8

	scanner := bufio.NewScanner(output)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if err := r.handler.Parse(line, events); err != nil {
			parseErrors++
			r.logger.Warn(fmt.Sprintf("error parsing output: %s", err.Error()), slog.String("line", line))

			if parseErrors >= r.parseErrorsThreshold {
				return ErrTooManyParseErrors
			}

			continue
		}

		parseErrors = 0 // reset counter
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		return fmt.Errorf("%w: error reading output: %w", ErrBrokenPipe, err)
	}

	return nil
}

// handleStderr reads from stderr and logs errors.
func (r *Receiver) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		r.logger.Warn(fmt.Sprintf("%s >> %s", r.handler.Source(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}

// handleCmdWait waits for the command to exit and sends the error to the error channel
func (r *Receiver) handleCmdWait(ctx context.Context, cmd *exec.Cmd, done chan<- error) {
	if err := cmd.Wait(); err != nil && ctx.Err() == nil {
		done <- fmt.Errorf("command exited with error: %w", err)
		return
	}

	done <- nil
}

// contextReader stops a replay once the context is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
