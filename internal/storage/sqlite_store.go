package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

const displayFormatKey = "displayFormat"

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

var _ Store = (*SqliteStore)(nil)

// NewSqliteStore creates a new store backed by the Sqlite database at dbPath.
// Connections are opened lazily; the schema is created with the first write
// connection.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // sqlite allows a single writer

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

// DisplayFormat goes through the write connection so that a fresh database
// gets its schema before the first read.
func (s *SqliteStore) DisplayFormat(ctx context.Context) (format gnss.DisplayFormat, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	var value string
	if err = db.QueryRowContext(ctx, selectPreferenceSQL, displayFormatKey).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return gnss.FormatDegrees, nil
		}
		err = fmt.Errorf("querying display format: %w", err)
		return
	}

	if format, err = gnss.ParseDisplayFormat(value); err != nil {
		return gnss.FormatDegrees, nil // stored by an incompatible version, start over
	}
	return format, nil
}

func (s *SqliteStore) SetDisplayFormat(ctx context.Context, format gnss.DisplayFormat) error {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	if _, err = db.ExecContext(ctx, upsertPreferenceSQL, displayFormatKey, format.String()); err != nil {
		return fmt.Errorf("storing display format: %w", err)
	}
	return nil
}

func (s *SqliteStore) CreateSession(ctx context.Context, source string, config any) (sessionID int64, err error) {
	configData, err := toConfigData(config)
	if err != nil {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, time.Now().UTC(), source, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *gnss.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	if session, err = scanSession(stmt.QueryRowContext(ctx, id)); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
	}
	return
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*gnss.Session, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess *gnss.Session
		if sess, err = scanSession(rows); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		sessions = append(sessions, sess)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating sessions: %w", err)
	}
	return
}

func (s *SqliteStore) StoreEpoch(ctx context.Context, sessionID int64, timestamp time.Time, loc *gnss.Location, satellites []gnss.Satellite) (epochID int64, err error) {
	err = s.inTx(ctx, func(ins *epochInserter) (err error) {
		epochID, err = ins.insert(ctx, sessionID, timestamp, loc, satellites)
		return
	})
	return
}

func (s *SqliteStore) StoreEpochs(ctx context.Context, sessionID int64, epochs []*gnss.Epoch) error {
	if len(epochs) == 0 {
		return nil
	}

	return s.inTx(ctx, func(ins *epochInserter) error {
		for _, e := range epochs {
			if _, err := ins.insert(ctx, sessionID, e.Timestamp, e.Location, e.Satellites); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SqliteStore) inTx(ctx context.Context, fn func(*epochInserter) error) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	ins := epochInserter{}
	if ins.epochs, err = tx.PrepareContext(ctx, insertEpochSQL); err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(ins.epochs, &err)

	if ins.satellites, err = tx.PrepareContext(ctx, insertSatelliteSQL); err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(ins.satellites, &err)

	if err = fn(&ins); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type epochInserter struct {
	epochs     *sql.Stmt
	satellites *sql.Stmt
}

func (ins *epochInserter) insert(ctx context.Context, sessionID int64, timestamp time.Time, loc *gnss.Location, satellites []gnss.Satellite) (int64, error) {
	data := toEpochData(sessionID, timestamp, loc)

	result, err := ins.epochs.ExecContext(ctx,
		data.SessionID,
		data.Timestamp,
		data.FixTime,
		data.Latitude,
		data.Longitude,
		data.Altitude,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting epoch: %w", err)
	}

	epochID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("getting epoch ID: %w", err)
	}

	for i, sat := range satellites {
		_, err = ins.satellites.ExecContext(ctx,
			epochID,
			i,
			sat.ID,
			sat.Constellation.String(),
			sat.UsedInFix,
			sat.Azimuth,
			sat.Elevation,
			sat.SignalDBHz,
		)
		if err != nil {
			return 0, fmt.Errorf("inserting satellite: %w", err)
		}
	}

	return epochID, nil
}

func (s *SqliteStore) Epoch(ctx context.Context, sessionID int64, at time.Time) (epoch *gnss.Epoch, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	var row *sql.Row
	if at.IsZero() {
		row = db.QueryRowContext(ctx, selectLatestEpochSQL, sessionID)
	} else {
		row = db.QueryRowContext(ctx, selectEpochAtSQL, sessionID, at.UTC())
	}

	var data epochData
	if err = data.scan(row); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNoEpoch
			return
		}
		err = fmt.Errorf("scanning epoch: %w", err)
		return
	}

	epoch = data.toEpoch()
	if epoch.Satellites, err = s.epochSatellites(ctx, db, epoch.ID); err != nil {
		epoch = nil
	}
	return
}

func (s *SqliteStore) epochSatellites(ctx context.Context, db *sql.DB, epochID int64) (satellites []gnss.Satellite, err error) {
	rows, err := db.QueryContext(ctx, selectEpochSatellitesSQL, epochID)
	if err != nil {
		err = fmt.Errorf("querying satellites: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	satellites = []gnss.Satellite{}
	for rows.Next() {
		var sat gnss.Satellite
		if sat, err = scanSatellite(rows); err != nil {
			err = fmt.Errorf("scanning satellite: %w", err)
			return
		}
		satellites = append(satellites, sat)
	}
	if err = rows.Err(); err != nil {
		err = fmt.Errorf("iterating satellites: %w", err)
	}
	return
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}
