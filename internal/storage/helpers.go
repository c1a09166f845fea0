package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

func toConfigData(config any) (sql.NullString, error) {
	var configData sql.NullString

	switch c := config.(type) {
	case nil:
		return configData, nil

	case string:
		configData.String = c

	case []byte:
		configData.String = string(c)

	default:
		p, err := json.Marshal(config)
		if err != nil {
			return configData, fmt.Errorf("marshaling config: %w", err)
		}
		configData.String = string(p)
	}

	configData.Valid = true
	return configData, nil
}

// epochData is an epochs row.
type epochData struct {
	ID        int64
	SessionID int64
	Timestamp time.Time
	FixTime   sql.NullTime
	Latitude  sql.NullFloat64
	Longitude sql.NullFloat64
	Altitude  sql.NullFloat64
}

func toEpochData(sessionID int64, timestamp time.Time, loc *gnss.Location) *epochData {
	data := epochData{
		SessionID: sessionID,
		Timestamp: timestamp.UTC(),
	}

	if loc != nil {
		data.FixTime = sql.NullTime{Time: loc.Timestamp.UTC(), Valid: !loc.Timestamp.IsZero()}
		data.Latitude = sql.NullFloat64{Float64: loc.Latitude, Valid: true}
		data.Longitude = sql.NullFloat64{Float64: loc.Longitude, Valid: true}
		data.Altitude = sql.NullFloat64{Float64: loc.Altitude, Valid: true}
	}

	return &data
}

func (d *epochData) scan(row interface{ Scan(...any) error }) error {
	return row.Scan(&d.ID, &d.SessionID, &d.Timestamp, &d.FixTime, &d.Latitude, &d.Longitude, &d.Altitude)
}

func (d *epochData) toEpoch() *gnss.Epoch {
	epoch := gnss.Epoch{
		ID:        d.ID,
		SessionID: d.SessionID,
		Timestamp: d.Timestamp.UTC(),
	}

	if d.Latitude.Valid && d.Longitude.Valid {
		epoch.Location = &gnss.Location{
			Latitude:  d.Latitude.Float64,
			Longitude: d.Longitude.Float64,
			Altitude:  d.Altitude.Float64,
		}
		if d.FixTime.Valid {
			epoch.Location.Timestamp = d.FixTime.Time.UTC()
		}
	}

	return &epoch
}

func scanSatellite(rows *sql.Rows) (gnss.Satellite, error) {
	var (
		s             gnss.Satellite
		constellation string
	)

	if err := rows.Scan(&s.ID, &constellation, &s.UsedInFix, &s.Azimuth, &s.Elevation, &s.SignalDBHz); err != nil {
		return s, err
	}
	s.Constellation = gnss.ParseConstellation(constellation)

	return s, nil
}

func scanSession(row interface{ Scan(...any) error }) (*gnss.Session, error) {
	var (
		sess   gnss.Session
		config sql.NullString
	)

	if err := row.Scan(&sess.ID, &sess.StartTime, &sess.Source, &config); err != nil {
		return nil, err
	}
	if config.Valid {
		sess.Config = &config.String
	}
	sess.StartTime = sess.StartTime.UTC()

	return &sess, nil
}
