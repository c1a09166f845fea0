// Package storage records receiver sessions and satellite epochs, and keeps
// the user's display preferences.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

// ErrNoEpoch is returned when a session has no epoch at or before the requested time.
var ErrNoEpoch = errors.New("no epoch recorded")

// Store provides an interface for recording and reading back satellite snapshots.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new recording session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - source: Name of the receiver front-end (e.g., "gpsd", "nmea-replay")
	//   - config: Optional receiver configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error)

	// Session retrieves a specific recording session by its ID.
	Session(ctx context.Context, id int64) (session *gnss.Session, err error)

	// Sessions returns all recording sessions ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*gnss.Session, err error)

	// StoreEpoch saves a satellite snapshot, with the location known at that
	// time, in a single atomic transaction. Satellites are read back in the
	// order they were stored.
	//
	// Returns:
	//   - epochID: Unique identifier for the stored epoch
	//   - error: If storage fails or context is cancelled
	StoreEpoch(ctx context.Context, sessionID int64, timestamp time.Time, loc *gnss.Location, satellites []gnss.Satellite) (epochID int64, err error)

	// StoreEpochs saves a batch of epochs in a single atomic transaction.
	// Epoch and session IDs of the batch are ignored.
	StoreEpochs(ctx context.Context, sessionID int64, epochs []*gnss.Epoch) error

	// Epoch returns the latest epoch of the session recorded at or before at.
	// A zero at selects the latest epoch of the session. ErrNoEpoch is
	// returned when there is none.
	Epoch(ctx context.Context, sessionID int64, at time.Time) (epoch *gnss.Epoch, err error)

	// DisplayFormat returns the stored display format, gnss.FormatDegrees if none was stored.
	DisplayFormat(ctx context.Context) (gnss.DisplayFormat, error)

	// SetDisplayFormat stores the display format.
	SetDisplayFormat(ctx context.Context, format gnss.DisplayFormat) error

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}
