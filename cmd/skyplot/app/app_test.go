package app

import (
	"context"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/render"
	"github.com/roman-kulish/sky-view/internal/storage"
)

var (
	discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	epochStart    = time.Date(2026, time.March, 16, 12, 35, 0, 0, time.UTC)
)

func newRecording(t *testing.T, epochs int) (string, int64) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "skyview.sqlite")
	store := storage.NewSqliteStore(path)
	defer store.Close()

	ctx := context.Background()
	sessionID, err := store.CreateSession(ctx, "gpspipe", nil)
	if err != nil {
		t.Fatalf("CreateSession() error = %v", err)
	}

	satellites := []gnss.Satellite{
		{ID: 5, Constellation: gnss.ConstellationGPS, UsedInFix: true, Azimuth: 40, Elevation: 60, SignalDBHz: 41},
		{ID: 67, Constellation: gnss.ConstellationGLONASS, Azimuth: 310, Elevation: 35, SignalDBHz: 33},
		{ID: 3, Constellation: gnss.ConstellationGalileo, UsedInFix: true, Azimuth: 95, Elevation: 72, SignalDBHz: 29},
	}
	loc := &gnss.Location{Timestamp: epochStart, Latitude: -33.8688, Longitude: 151.2093, Altitude: 58}

	for i := 0; i < epochs; i++ {
		if _, err = store.StoreEpoch(ctx, sessionID, epochStart.Add(time.Duration(i)*time.Minute), loc, satellites); err != nil {
			t.Fatalf("StoreEpoch() error = %v", err)
		}
	}
	if err = store.SetDisplayFormat(ctx, gnss.FormatDegreesMinutes); err != nil {
		t.Fatalf("SetDisplayFormat() error = %v", err)
	}
	return path, sessionID
}

func testConfig(dbPath string, sessionID int64, output string) *Config {
	c := NewConfig()
	c.DBPath = dbPath
	c.SessionID = sessionID
	c.OutputFile = output
	c.Width, c.Height, c.SignalHeight = 200, 240, 80
	return c
}

func decodeImage(t *testing.T, path string) image.Image {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		t.Fatalf("decoding %s: %v", path, err)
	}
	return img
}

func TestRun_LatestEpoch(t *testing.T) {
	dbPath, sessionID := newRecording(t, 3)
	output := filepath.Join(t.TempDir(), "chart")

	c := testConfig(dbPath, sessionID, output)
	c.Format = render.ImageJPEG

	if err := Run(context.Background(), c, discardLogger); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if b := decodeImage(t, output+"-skyplot.jpeg").Bounds(); b.Dx() != 200 || b.Dy() != 240 {
		t.Errorf("Unexpected sky plot bounds %v", b)
	}
	if b := decodeImage(t, output+"-signal.jpeg").Bounds(); b.Dx() != 200 || b.Dy() != 80 {
		t.Errorf("Unexpected signal chart bounds %v", b)
	}
}

func TestRun_Series(t *testing.T) {
	dbPath, sessionID := newRecording(t, 4)
	output := filepath.Join(t.TempDir(), "chart")

	c := testConfig(dbPath, sessionID, output)
	from, to := epochStart.Add(time.Minute), epochStart.Add(2*time.Minute)
	c.From, c.To = &from, &to

	if err := Run(context.Background(), c, discardLogger); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	for _, name := range []string{"chart-skyplot-0001.png", "chart-signal-0002.png"} {
		decodeImage(t, filepath.Join(filepath.Dir(output), name))
	}
	if _, err := os.Stat(output + "-skyplot-0003.png"); !os.IsNotExist(err) {
		t.Errorf("Expected only two epochs to be rendered, got %v", err)
	}
}

func TestRun_Errors(t *testing.T) {
	dbPath, sessionID := newRecording(t, 1)
	output := filepath.Join(t.TempDir(), "chart")

	before := epochStart.Add(-time.Hour)
	tests := []struct {
		name   string
		config func(*Config)
	}{
		{"missing database", func(c *Config) { c.DBPath = filepath.Join(t.TempDir(), "missing.sqlite") }},
		{"no epoch before", func(c *Config) { c.At = &before }},
		{"unknown session", func(c *Config) { c.SessionID = sessionID + 1; c.From = &before }},
		{"empty range", func(c *Config) { c.To = &before }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(dbPath, sessionID, output)
			tt.config(c)
			if err := Run(context.Background(), c, discardLogger); err == nil {
				t.Error("Expected error")
			}
		})
	}
}

func TestRun_ListSessions(t *testing.T) {
	dbPath, _ := newRecording(t, 1)

	c := NewConfig()
	c.DBPath = dbPath
	c.ListSessions = true

	if err := Run(context.Background(), c, discardLogger); err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

func TestEpochRenderer_StoredFormat(t *testing.T) {
	dbPath, sessionID := newRecording(t, 1)
	store := storage.NewSqliteStore(dbPath)
	defer store.Close()

	format, err := displayFormat(context.Background(), store, testConfig(dbPath, sessionID, "x"))
	if err != nil {
		t.Fatalf("displayFormat() error = %v", err)
	}
	if format != gnss.FormatDegreesMinutes {
		t.Errorf("Expected stored degrees-minutes format, got %s", format)
	}

	c := testConfig(dbPath, sessionID, "x")
	c.Filter = gnss.Filter{Constellation: gnss.FilterAll, UsedInFixOnly: true}

	renderer, err := NewEpochRenderer(c, format)
	if err != nil {
		t.Fatalf("NewEpochRenderer() error = %v", err)
	}

	epoch, err := store.Epoch(context.Background(), sessionID, time.Time{})
	if err != nil {
		t.Fatalf("Epoch() error = %v", err)
	}
	if _, _, err = renderer.Render(epoch); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if got := renderer.model.FilteredCount(); got != 2 {
		t.Errorf("Expected 2 satellites used in fix, got %d", got)
	}
}

func TestEpochRenderer_ShortFormatName(t *testing.T) {
	renderer, err := NewEpochRenderer(NewConfig(), "dms")
	if err != nil {
		t.Fatalf("NewEpochRenderer() error = %v", err)
	}
	if renderer.format != gnss.FormatDegreesMinutesSeconds {
		t.Errorf("Expected %s, got %s", gnss.FormatDegreesMinutesSeconds, renderer.format)
	}

	if _, err = NewEpochRenderer(NewConfig(), "utm"); err == nil {
		t.Error("Expected error for unknown format")
	}
}
