package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

// EpochReader provides an iterator-based interface for reading the epochs of
// a recording session in time order, with optional time filtering.
type EpochReader interface {
	// Session returns metadata about the recording session this reader is accessing.
	Session() *gnss.Session

	// Next advances the iterator and returns true if there is another epoch
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current epoch in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *gnss.Epoch

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	// After Close is called, the reader should not be used.
	Close() error
}

// ReaderOption configures an EpochReader with specific filtering criteria.
type ReaderOption func(*SqliteEpochReader)

// WithStartTime skips epochs recorded before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(er *SqliteEpochReader) {
		t = t.UTC()
		er.startTime = &t
	}
}

// WithEndTime skips epochs recorded after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(er *SqliteEpochReader) {
		t = t.UTC()
		er.endTime = &t
	}
}

// WithTimeRange sets both ends of the time filter, inclusive.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(er *SqliteEpochReader) {
		WithStartTime(startTime)(er)
		WithEndTime(endTime)(er)
	}
}

// ReadEpochs creates a new EpochReader over the epochs of a session.
//
// The returned EpochReader must be closed after use to release database resources.
// Each reader instance should only be used from a single goroutine.
//
// Returns error if reader creation fails or session doesn't exist.
func (s *SqliteStore) ReadEpochs(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteEpochReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteEpochReader(ctx, db, sessionID, opts...)
}

func newSqliteEpochReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteEpochReader, error) {
	er := &SqliteEpochReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(er)
	}
	if err := er.init(ctx); err != nil {
		_ = er.Close()
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return er, nil
}

// SqliteEpochReader implements EpochReader for SQLite database backend.
type SqliteEpochReader struct {
	db *sql.DB

	sessionID int64
	session   *gnss.Session

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	satellites *sql.Stmt
	rows       *sql.Rows
	current    *gnss.Epoch
	err        error
}

var _ EpochReader = (*SqliteEpochReader)(nil)

func (er *SqliteEpochReader) init(ctx context.Context) error {
	if er.db == nil {
		return errors.New("database connection required")
	}
	if er.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: er.loadSession},
		{msg: "initializing filters", fn: er.initFilters},
		{msg: "initializing query", fn: er.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (er *SqliteEpochReader) loadSession(ctx context.Context) (err error) {
	stmt, err := er.db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if er.session, err = scanSession(stmt.QueryRowContext(ctx, er.sessionID)); err != nil {
		return fmt.Errorf("querying session: %w", err)
	}
	return
}

func (er *SqliteEpochReader) initFilters(ctx context.Context) (err error) {
	if er.startTime != nil && er.endTime != nil {
		if er.startTime.After(*er.endTime) {
			return fmt.Errorf("start time %s is after end time %s", er.startTime, er.endTime)
		}
		return nil
	}

	var startTime, endTime sqliteDatetime
	if err = er.db.QueryRowContext(ctx, selectEpochBoundsSQL, er.sessionID).Scan(&startTime, &endTime); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}

	if er.startTime == nil {
		er.startTime = &startTime.Datetime
	}
	if er.endTime == nil {
		er.endTime = &endTime.Datetime
	}
	return nil
}

func (er *SqliteEpochReader) initQuery(ctx context.Context) (err error) {
	if er.satellites, err = er.db.PrepareContext(ctx, selectEpochSatellitesSQL); err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}

	if er.rows, err = er.db.QueryContext(ctx, selectEpochsSQL, er.sessionID, *er.startTime, *er.endTime); err != nil {
		return fmt.Errorf("querying epochs: %w", err)
	}
	return nil
}

func (er *SqliteEpochReader) Session() *gnss.Session {
	return er.session
}

// TimeRange returns the time filter in effect. Unset ends are resolved to
// the first and last epoch of the session.
func (er *SqliteEpochReader) TimeRange() (startTime, endTime time.Time) {
	if er.startTime != nil {
		startTime = *er.startTime
	}
	if er.endTime != nil {
		endTime = *er.endTime
	}
	return
}

func (er *SqliteEpochReader) Next(ctx context.Context) bool {
	if er.err != nil || er.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		er.err = ctx.Err()
		return false
	default:
	}

	if !er.rows.Next() {
		er.current = nil
		return false
	}

	var data epochData
	if err := data.scan(er.rows); err != nil {
		er.err = fmt.Errorf("scanning epoch: %w", err)
		return false
	}

	epoch := data.toEpoch()
	if epoch.Satellites, er.err = er.loadSatellites(ctx, epoch.ID); er.err != nil {
		return false
	}

	er.current = epoch
	return true
}

func (er *SqliteEpochReader) loadSatellites(ctx context.Context, epochID int64) (satellites []gnss.Satellite, err error) {
	rows, err := er.satellites.QueryContext(ctx, epochID)
	if err != nil {
		return nil, fmt.Errorf("querying satellites: %w", err)
	}
	defer closeWithError(rows, &err)

	satellites = []gnss.Satellite{}
	for rows.Next() {
		var sat gnss.Satellite
		if sat, err = scanSatellite(rows); err != nil {
			return nil, fmt.Errorf("scanning satellite: %w", err)
		}
		satellites = append(satellites, sat)
	}
	return satellites, rows.Err()
}

func (er *SqliteEpochReader) Current() *gnss.Epoch {
	return er.current
}

func (er *SqliteEpochReader) Error() error {
	if er.err != nil {
		return er.err
	}
	if er.rows != nil {
		return er.rows.Err()
	}
	return nil
}

func (er *SqliteEpochReader) Close() error {
	var rowsErr, stmtErr error

	if er.rows != nil {
		rowsErr = er.rows.Close()
		er.rows = nil
	}
	if er.satellites != nil {
		stmtErr = er.satellites.Close()
		er.satellites = nil
	}
	er.current = nil

	return errors.Join(rowsErr, stmtErr)
}

// sqliteDatetime scans aggregated DATETIME columns. Sqlite drops the
// declared column type on MIN/MAX, so the driver hands back text.
type sqliteDatetime struct {
	Datetime time.Time
	Valid    bool
}

func (d *sqliteDatetime) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		d.Datetime, d.Valid = time.Time{}, false
		return nil

	case time.Time:
		d.Datetime, d.Valid = v.UTC(), true
		return nil

	case []byte:
		return d.parse(string(v))

	case string:
		return d.parse(v)
	}

	return fmt.Errorf("unsupported datetime type %T", value)
}

func (d *sqliteDatetime) parse(s string) error {
	for _, layout := range sqlite3.SQLiteTimestampFormats {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			d.Datetime, d.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("parsing datetime %q", s)
}
