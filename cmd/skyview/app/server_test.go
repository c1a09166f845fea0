package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/skyview"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type staticFrames struct {
	frame *RenderedFrame
}

func (s *staticFrames) Latest() *RenderedFrame {
	return s.frame
}

type failingPreferences struct{}

func (failingPreferences) DisplayFormat(context.Context) (gnss.DisplayFormat, error) {
	return gnss.FormatDegrees, nil
}

func (failingPreferences) SetDisplayFormat(context.Context, gnss.DisplayFormat) error {
	return errors.New("disk full")
}

func newTestHub(t *testing.T, options ...func(*skyview.Hub)) *skyview.Hub {
	t.Helper()

	hub, err := skyview.NewHub(context.Background(), options...)
	if err != nil {
		t.Fatalf("NewHub() error = %v", err)
	}

	hub.UpdateSatellites([]gnss.Satellite{
		{ID: 5, Constellation: gnss.ConstellationGPS, UsedInFix: true, Azimuth: 40, Elevation: 60, SignalDBHz: 41},
		{ID: 12, Constellation: gnss.ConstellationGPS, Azimuth: 200, Elevation: 10, SignalDBHz: 18},
		{ID: 67, Constellation: gnss.ConstellationGLONASS, UsedInFix: true, Azimuth: 310, Elevation: 35, SignalDBHz: 33},
	})
	hub.UpdateLocation(gnss.Location{Latitude: 48.1173, Longitude: 11.516667, Altitude: 545.4})
	return hub
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

func decodeStatus(t *testing.T, rec *httptest.ResponseRecorder) statusResponse {
	t.Helper()

	var status statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding status: %v", err)
	}
	return status
}

func TestServer_Images(t *testing.T) {
	frames := &staticFrames{}
	h := NewServer(newTestHub(t), frames, nil, discardLogger).Handler()

	if rec := doRequest(t, h, http.MethodGet, "/skyplot.png", ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 before the first frame, got %d", rec.Code)
	}

	frames.frame = &RenderedFrame{
		SkyPlot:  []byte("sky"),
		Signal:   []byte("bars"),
		Rendered: time.Date(2026, time.March, 16, 12, 35, 20, 0, time.UTC),
	}

	tests := map[string]string{
		"/skyplot.png": "sky",
		"/signal.png":  "bars",
	}
	for path, expected := range tests {
		rec := doRequest(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
			t.Errorf("%s: expected image/png, got %s", path, ct)
		}
		if got := rec.Body.String(); got != expected {
			t.Errorf("%s: expected %q, got %q", path, expected, got)
		}
	}

	if rec := doRequest(t, h, http.MethodPost, "/skyplot.png", ""); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestServer_Status(t *testing.T) {
	h := NewServer(newTestHub(t), &staticFrames{}, nil, discardLogger).Handler()

	rec := doRequest(t, h, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	status := decodeStatus(t, rec)
	if status.FilteredSatellites != 3 || len(status.Satellites) != 3 {
		t.Errorf("Expected 3 satellites, got %d", status.FilteredSatellites)
	}
	if status.Satellites[2].Constellation != gnss.ConstellationGLONASS {
		t.Errorf("Expected GLONASS, got %s", status.Satellites[2].Constellation)
	}
	if status.Filter.Constellation != gnss.FilterAll {
		t.Errorf("Expected ALL filter, got %s", status.Filter.Constellation)
	}
	if status.Format != gnss.FormatDegrees || status.LocationText == "" {
		t.Errorf("Unexpected format %s with text %q", status.Format, status.LocationText)
	}
	if status.Rendered != nil {
		t.Errorf("Expected no render time, got %s", status.Rendered)
	}
}

func TestServer_Filter(t *testing.T) {
	hub := newTestHub(t)
	h := NewServer(hub, &staticFrames{}, nil, discardLogger).Handler()

	rec := doRequest(t, h, http.MethodPost, "/filter", `{"constellation":"gps","usedInFixOnly":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body)
	}

	status := decodeStatus(t, rec)
	if status.FilteredSatellites != 1 || status.Satellites[0].ID != 5 {
		t.Errorf("Expected satellite 5 only, got %+v", status.Satellites)
	}

	rec = doRequest(t, h, http.MethodPost, "/filter", `{"constellation":"CURRENT"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if got := hub.CurrentConstellationFilter(); got != gnss.FilterGPS {
		t.Errorf("Expected CURRENT to keep GPS, got %s", got)
	}
	if got := hub.FilteredSatelliteCount(); got != 2 {
		t.Errorf("Expected 2 satellites, got %d", got)
	}
}

func TestServer_FilterRejectsBadInput(t *testing.T) {
	hub := newTestHub(t)
	h := NewServer(hub, &staticFrames{}, nil, discardLogger).Handler()

	for _, body := range []string{`{"constellation":"beidou"}`, `not json`, `{"colour":"red"}`} {
		rec := doRequest(t, h, http.MethodPost, "/filter", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", body, rec.Code)
		}
	}

	if got := hub.FilteredSatelliteCount(); got != 3 {
		t.Errorf("Expected filter to stay unchanged, got %d satellites", got)
	}
}

func TestServer_Format(t *testing.T) {
	hub := newTestHub(t)
	h := NewServer(hub, &staticFrames{}, nil, discardLogger).Handler()

	rec := doRequest(t, h, http.MethodPost, "/format", `{"format":"dms"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	status := decodeStatus(t, rec)
	if status.Format != gnss.FormatDegreesMinutesSeconds {
		t.Errorf("Expected dms format, got %s", status.Format)
	}
	if !strings.Contains(status.LocationText, "\"") {
		t.Errorf("Expected seconds in location text, got %q", status.LocationText)
	}

	if rec = doRequest(t, h, http.MethodPost, "/format", `{"format":"utm"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestServer_FormatStoreFailure(t *testing.T) {
	hub := newTestHub(t, skyview.WithPreferences(failingPreferences{}))
	h := NewServer(hub, &staticFrames{}, nil, discardLogger).Handler()

	rec := doRequest(t, h, http.MethodPost, "/format", `{"format":"dm"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", rec.Code)
	}
	if got := hub.DisplayFormat(); got != gnss.FormatDegreesMinutes {
		t.Errorf("Expected format to be applied anyway, got %s", got)
	}
}

func TestServer_Metrics(t *testing.T) {
	metrics, err := skyview.NewMetrics(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	hub := newTestHub(t, skyview.WithMetrics(metrics))
	h := NewServer(hub, &staticFrames{}, metrics, discardLogger).Handler()

	rec := doRequest(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("skyview_satellites 3")) {
		t.Errorf("Expected satellite gauge in metrics output")
	}
}
