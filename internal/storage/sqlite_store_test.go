package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
)

var epochStart = time.Date(2026, time.March, 16, 12, 35, 0, 0, time.UTC)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()

	s := NewSqliteStore(filepath.Join(t.TempDir(), "skyview.db"))
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func testSatellites() []gnss.Satellite {
	return []gnss.Satellite{
		{ID: 5, Constellation: gnss.ConstellationGPS, UsedInFix: true, Azimuth: 40, Elevation: 60, SignalDBHz: 41},
		{ID: 67, Constellation: gnss.ConstellationGLONASS, Azimuth: 310, Elevation: 35, SignalDBHz: 33},
		{ID: 3, Constellation: gnss.ConstellationGalileo, UsedInFix: true, Azimuth: 95, Elevation: 72, SignalDBHz: 29.5},
		{ID: 133, Constellation: gnss.ConstellationOther, Azimuth: 180, Elevation: 30, SignalDBHz: 30},
	}
}

func storeEpochs(t *testing.T, s *SqliteStore, sessionID int64, n int) {
	t.Helper()

	ctx := context.Background()
	for i := 0; i < n; i++ {
		loc := &gnss.Location{
			Timestamp: epochStart.Add(time.Duration(i) * time.Second),
			Latitude:  48.1173,
			Longitude: 11.516667 + float64(i),
			Altitude:  545.4,
		}

		sats := testSatellites()[:i+1]
		if _, err := s.StoreEpoch(ctx, sessionID, epochStart.Add(time.Duration(i)*time.Second), loc, sats); err != nil {
			t.Fatalf("StoreEpoch() error = %v", err)
		}
	}
}

func TestSqliteStore_DisplayFormat(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	format, err := s.DisplayFormat(ctx)
	if err != nil {
		t.Fatalf("DisplayFormat() error = %v", err)
	}
	if format != gnss.FormatDegrees {
		t.Errorf("Expected default %s, got %s", gnss.FormatDegrees, format)
	}

	for _, f := range []gnss.DisplayFormat{gnss.FormatDegreesMinutes, gnss.FormatDegreesMinutesSeconds} {
		if err = s.SetDisplayFormat(ctx, f); err != nil {
			t.Fatalf("SetDisplayFormat() error = %v", err)
		}
		if format, err = s.DisplayFormat(ctx); err != nil {
			t.Fatalf("DisplayFormat() error = %v", err)
		}
		if format != f {
			t.Errorf("Expected %s, got %s", f, format)
		}
	}
}

func TestSqliteStore_DisplayFormatSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "skyview.db")
	ctx := context.Background()

	s := NewSqliteStore(path)
	if err := s.SetDisplayFormat(ctx, gnss.FormatDegreesMinutes); err != nil {
		t.Fatalf("SetDisplayFormat() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s = NewSqliteStore(path)
	defer s.Close()

	format, err := s.DisplayFormat(ctx)
	if err != nil {
		t.Fatalf("DisplayFormat() error = %v", err)
	}
	if format != gnss.FormatDegreesMinutes {
		t.Errorf("Expected %s, got %s", gnss.FormatDegreesMinutes, format)
	}
}

func TestSqliteStore_Sessions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.CreateSession(ctx, "gpsd", map[string]any{"host": "pi.local", "port": 2947})
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}
	second, err := s.CreateSession(ctx, "nmea-replay", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	sess, err := s.Session(ctx, first)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	if sess.Source != "gpsd" {
		t.Errorf("Expected source gpsd, got %s", sess.Source)
	}
	if sess.Config == nil || *sess.Config != `{"host":"pi.local","port":2947}` {
		t.Errorf("Unexpected config %v", sess.Config)
	}
	if time.Since(sess.StartTime) > time.Minute {
		t.Errorf("Unexpected start time %s", sess.StartTime)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != first || sessions[1].ID != second {
		t.Fatalf("Unexpected sessions %+v", sessions)
	}
	if sessions[1].Config != nil {
		t.Errorf("Expected no config, got %s", *sessions[1].Config)
	}
}

func TestSqliteStore_EpochRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessionID, err := s.CreateSession(ctx, "gpsd", "raw config")
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	loc := &gnss.Location{Timestamp: epochStart, Latitude: -33.8688, Longitude: 151.2093, Altitude: 58}
	if _, err = s.StoreEpoch(ctx, sessionID, epochStart, loc, testSatellites()); err != nil {
		t.Fatalf("StoreEpoch() error = %v", err)
	}

	epoch, err := s.Epoch(ctx, sessionID, time.Time{})
	if err != nil {
		t.Fatalf("Epoch() error = %v", err)
	}

	if !epoch.Timestamp.Equal(epochStart) {
		t.Errorf("Expected timestamp %s, got %s", epochStart, epoch.Timestamp)
	}
	if epoch.Location == nil {
		t.Fatal("Expected location, got nil")
	}
	got := epoch.Location
	if !got.Timestamp.Equal(loc.Timestamp) || got.Latitude != loc.Latitude || got.Longitude != loc.Longitude || got.Altitude != loc.Altitude {
		t.Errorf("Expected location %+v, got %+v", loc, got)
	}

	expected := testSatellites()
	if len(epoch.Satellites) != len(expected) {
		t.Fatalf("Expected %d satellites, got %d", len(expected), len(epoch.Satellites))
	}
	for i := range expected {
		if epoch.Satellites[i] != expected[i] {
			t.Errorf("satellite %d: expected %+v, got %+v", i, expected[i], epoch.Satellites[i])
		}
	}
}

func TestSqliteStore_EpochWithoutLocation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessionID, _ := s.CreateSession(ctx, "gpsd", nil)
	if _, err := s.StoreEpoch(ctx, sessionID, epochStart, nil, nil); err != nil {
		t.Fatalf("StoreEpoch() error = %v", err)
	}

	epoch, err := s.Epoch(ctx, sessionID, epochStart)
	if err != nil {
		t.Fatalf("Epoch() error = %v", err)
	}
	if epoch.Location != nil {
		t.Errorf("Expected no location, got %+v", epoch.Location)
	}
	if epoch.Satellites == nil || len(epoch.Satellites) != 0 {
		t.Errorf("Expected empty satellite list, got %v", epoch.Satellites)
	}
}

func TestSqliteStore_StoreEpochs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessionID, _ := s.CreateSession(ctx, "gpsd", nil)
	sats := testSatellites()
	loc := &gnss.Location{Timestamp: epochStart, Latitude: 48.1173, Longitude: 11.516667, Altitude: 545.4}

	batch := []*gnss.Epoch{
		{Timestamp: epochStart, Satellites: sats[:1]},
		{Timestamp: epochStart.Add(time.Second), Location: loc, Satellites: sats},
	}
	if err := s.StoreEpochs(ctx, sessionID, batch); err != nil {
		t.Fatalf("StoreEpochs() error = %v", err)
	}
	if err := s.StoreEpochs(ctx, sessionID, nil); err != nil {
		t.Errorf("StoreEpochs() with empty batch error = %v", err)
	}

	first, err := s.Epoch(ctx, sessionID, epochStart)
	if err != nil {
		t.Fatalf("Epoch() error = %v", err)
	}
	if first.Location != nil || len(first.Satellites) != 1 {
		t.Errorf("Unexpected first epoch %+v", first)
	}

	last, err := s.Epoch(ctx, sessionID, time.Time{})
	if err != nil {
		t.Fatalf("Epoch() error = %v", err)
	}
	if last.Location == nil || last.Location.Altitude != 545.4 || len(last.Satellites) != len(sats) {
		t.Errorf("Unexpected last epoch %+v", last)
	}
}

func TestSqliteStore_StoreEpochsRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessionID, _ := s.CreateSession(ctx, "gpsd", nil)
	batch := []*gnss.Epoch{
		{Timestamp: epochStart, Satellites: testSatellites()},
		{Timestamp: epochStart.Add(time.Second)},
	}

	// Unknown session violates the foreign key
	if err := s.StoreEpochs(ctx, sessionID+1, batch); err == nil {
		t.Fatal("Expected error for unknown session")
	}
	if _, err := s.Epoch(ctx, sessionID+1, time.Time{}); !errors.Is(err, ErrNoEpoch) {
		t.Errorf("Expected nothing stored, got %v", err)
	}
}

func TestSqliteStore_EpochAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sessionID, _ := s.CreateSession(ctx, "nmea-replay", nil)
	storeEpochs(t, s, sessionID, 3)

	tests := []struct {
		name       string
		at         time.Time
		satellites int
	}{
		{"exact", epochStart.Add(time.Second), 2},
		{"between", epochStart.Add(1500 * time.Millisecond), 2},
		{"after last", epochStart.Add(time.Hour), 3},
		{"latest", time.Time{}, 3},
		{"other time zone", epochStart.In(time.FixedZone("AEDT", 11*3600)), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			epoch, err := s.Epoch(ctx, sessionID, tt.at)
			if err != nil {
				t.Fatalf("Epoch() error = %v", err)
			}
			if len(epoch.Satellites) != tt.satellites {
				t.Errorf("Expected %d satellites, got %d", tt.satellites, len(epoch.Satellites))
			}
		})
	}

	if _, err := s.Epoch(ctx, sessionID, epochStart.Add(-time.Second)); !errors.Is(err, ErrNoEpoch) {
		t.Errorf("Expected ErrNoEpoch before the first epoch, got %v", err)
	}
	if _, err := s.Epoch(ctx, sessionID+1, time.Time{}); !errors.Is(err, ErrNoEpoch) {
		t.Errorf("Expected ErrNoEpoch for unknown session, got %v", err)
	}
}

func TestSqliteStore_CloseTwice(t *testing.T) {
	s := NewSqliteStore(filepath.Join(t.TempDir(), "skyview.db"))
	if _, err := s.DisplayFormat(context.Background()); err != nil {
		t.Fatalf("DisplayFormat() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}
