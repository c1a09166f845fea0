package storage

import (
	_ "embed"
)

const (
	selectPreferenceSQL = `
SELECT value
FROM preferences
WHERE key = ?`

	upsertPreferenceSQL = `
INSERT INTO preferences (key, value)
VALUES (?, ?)
ON CONFLICT (key) DO UPDATE SET value = excluded.value`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      source,
                      config)
VALUES (?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    source,
    config
FROM sessions
ORDER BY start_time, id`

	insertEpochSQL = `
INSERT INTO epochs (session_id,
                    timestamp,
                    fix_time,
                    latitude,
                    longitude,
                    altitude)
VALUES (?, ?, ?, ?, ?, ?)`

	insertSatelliteSQL = `
INSERT INTO satellites (epoch_id,
                        position,
                        svid,
                        constellation,
                        used_in_fix,
                        azimuth,
                        elevation,
                        cn0)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectEpochAtSQL = `
SELECT
    id,
    session_id,
    timestamp,
    fix_time,
    latitude,
    longitude,
    altitude
FROM epochs
WHERE
    session_id = ?
    AND timestamp <= ?
ORDER BY timestamp DESC, id DESC
LIMIT 1`

	selectLatestEpochSQL = `
SELECT
    id,
    session_id,
    timestamp,
    fix_time,
    latitude,
    longitude,
    altitude
FROM epochs
WHERE
    session_id = ?
ORDER BY timestamp DESC, id DESC
LIMIT 1`

	selectEpochsSQL = `
SELECT
    id,
    session_id,
    timestamp,
    fix_time,
    latitude,
    longitude,
    altitude
FROM epochs
WHERE
    session_id = ?
    AND timestamp >= ?
    AND timestamp <= ?
ORDER BY timestamp, id`

	selectEpochBoundsSQL = `
SELECT
    MIN(timestamp),
    MAX(timestamp)
FROM epochs
WHERE
    session_id = ?`

	selectEpochSatellitesSQL = `
SELECT
    svid,
    constellation,
    used_in_fix,
    azimuth,
    elevation,
    cn0
FROM satellites
WHERE
    epoch_id = ?
ORDER BY position`
)

//go:embed schema.sql
var initSchemaSQL string
