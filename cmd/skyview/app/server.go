package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/render"
	"github.com/roman-kulish/sky-view/internal/skyview"
)

const maxRequestBody = 1 << 10

type frameSource interface {
	Latest() *RenderedFrame
}

// Server exposes the rendered charts, the hub state and the user controls over HTTP.
type Server struct {
	hub     *skyview.Hub
	frames  frameSource
	metrics *skyview.Metrics
	logger  *slog.Logger
}

// NewServer creates a new Server. metrics may be nil.
func NewServer(hub *skyview.Hub, frames frameSource, metrics *skyview.Metrics, logger *slog.Logger) *Server {
	return &Server{
		hub:     hub,
		frames:  frames,
		metrics: metrics,
		logger:  logger,
	}
}

// Handler returns the HTTP routes:
//
//	GET  /skyplot.png  latest sky-plot
//	GET  /signal.png   latest signal chart
//	GET  /status       hub state as JSON
//	POST /filter       {"constellation": "GPS", "usedInFixOnly": true}
//	POST /format       {"format": "dms"}
//	GET  /metrics      Prometheus metrics
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /skyplot.png", s.handleImage(func(f *RenderedFrame) []byte { return f.SkyPlot }))
	mux.HandleFunc("GET /signal.png", s.handleImage(func(f *RenderedFrame) []byte { return f.Signal }))
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /filter", s.handleFilter)
	mux.HandleFunc("POST /format", s.handleFormat)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

type statusResponse struct {
	Filter             gnss.Filter        `json:"filter"`
	Format             gnss.DisplayFormat `json:"format"`
	FilteredSatellites int                `json:"filteredSatellites"`
	Satellites         []gnss.Satellite   `json:"satellites"`
	Location           *gnss.Location     `json:"location,omitempty"`
	LocationText       string             `json:"locationText,omitempty"`
	Rendered           *time.Time         `json:"rendered,omitempty"`
}

type filterRequest struct {
	Constellation string `json:"constellation"`
	UsedInFixOnly bool   `json:"usedInFixOnly"`
}

type formatRequest struct {
	Format string `json:"format"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleImage(chart func(*RenderedFrame) []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame := s.frames.Latest()
		if frame == nil {
			s.writeError(w, http.StatusServiceUnavailable, errors.New("no frame rendered yet"))
			return
		}

		w.Header().Set("Content-Type", render.ImagePNG.ContentType())
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Last-Modified", frame.Rendered.UTC().Format(http.TimeFormat))
		if _, err := w.Write(chart(frame)); err != nil {
			s.logger.Warn(fmt.Sprintf("writing image: %s", err), slog.String("path", r.URL.Path))
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleFilter(w http.ResponseWriter, r *http.Request) {
	var req filterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	constellation, err := gnss.ParseConstellationFilter(req.Constellation)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.hub.UpdateFilter(gnss.Filter{
		Constellation: constellation,
		UsedInFixOnly: req.UsedInFixOnly,
	})

	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleFormat(w http.ResponseWriter, r *http.Request) {
	var req formatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	format, err := gnss.ParseDisplayFormat(req.Format)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	if err = s.hub.UpdateDisplayFormat(r.Context(), format); err != nil {
		s.logger.Error(err.Error())
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) status() statusResponse {
	frame := s.hub.Frame()

	resp := statusResponse{
		Filter:             frame.Filter,
		Format:             frame.Format,
		FilteredSatellites: len(frame.Satellites),
		Satellites:         frame.Satellites,
		Location:           frame.Location,
		LocationText:       frame.LocationText,
	}
	if resp.Satellites == nil {
		resp.Satellites = []gnss.Satellite{}
	}
	if latest := s.frames.Latest(); latest != nil {
		rendered := latest.Rendered
		resp.Rendered = &rendered
	}
	return resp
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn(fmt.Sprintf("writing response: %s", err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, err error) {
	s.writeJSON(w, code, errorResponse{Error: err.Error()})
}
