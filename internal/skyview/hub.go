// Package skyview keeps the state behind the sky-plot and signal charts: the
// latest satellite snapshot, the active filter, the last position fix and the
// selected coordinate display format.
package skyview

import (
	"context"
	"fmt"
	"sync"

	"github.com/roman-kulish/sky-view/internal/gnss"
	"github.com/roman-kulish/sky-view/internal/location"
)

// Preferences persists the user's display format choice across restarts.
type Preferences interface {
	// DisplayFormat returns the stored display format, or gnss.FormatDegrees
	// when nothing has been stored yet.
	DisplayFormat(ctx context.Context) (gnss.DisplayFormat, error)

	// SetDisplayFormat stores the display format.
	SetDisplayFormat(ctx context.Context, format gnss.DisplayFormat) error
}

// Frame is everything the renderers need for one draw.
type Frame struct {
	Satellites   []gnss.Satellite   // Satellites passing the filter, in snapshot order
	Filter       gnss.Filter        // Filter the satellites were selected with
	Location     *gnss.Location     // Last position fix, nil when none was received
	LocationText string             // Location rendered in Format, empty when Location is nil
	Format       gnss.DisplayFormat // Active display format
}

// WithPreferences sets the display format preference store.
func WithPreferences(prefs Preferences) func(*Hub) {
	return func(h *Hub) {
		h.prefs = prefs
	}
}

// WithMetrics sets the Prometheus collectors updated on every change.
func WithMetrics(m *Metrics) func(*Hub) {
	return func(h *Hub) {
		h.metrics = m
	}
}

// Hub receives sensor and user updates, applies them to the Model and
// signals that the charts need a redraw. Redraw requests coalesce: any number
// of updates before the consumer reads Redraw results in one notification.
type Hub struct {
	model   *Model
	prefs   Preferences
	metrics *Metrics

	mu       sync.RWMutex
	location *gnss.Location
	format   gnss.DisplayFormat

	redraw chan struct{}
}

// NewHub creates a Hub and loads the stored display format, if a preference
// store is configured.
func NewHub(ctx context.Context, options ...func(*Hub)) (*Hub, error) {
	h := Hub{
		model:  NewModel(),
		format: gnss.FormatDegrees,
		redraw: make(chan struct{}, 1),
	}

	for _, option := range options {
		option(&h)
	}

	if h.prefs != nil {
		format, err := h.prefs.DisplayFormat(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading display format: %w", err)
		}
		h.format = format
	}

	return &h, nil
}

// UpdateSatellites replaces the satellite snapshot.
func (h *Hub) UpdateSatellites(snapshot []gnss.Satellite) {
	h.model.ReplaceSnapshot(snapshot)
	h.metrics.update("satellites", len(snapshot), h.model.FilteredCount())
	h.invalidate()
}

// UpdateLocation replaces the last position fix.
func (h *Hub) UpdateLocation(loc gnss.Location) {
	h.mu.Lock()
	h.location = &loc
	h.mu.Unlock()

	h.metrics.update("location", h.model.Len(), h.model.FilteredCount())
	h.invalidate()
}

// UpdateFilter replaces the active filter.
func (h *Hub) UpdateFilter(filter gnss.Filter) {
	h.model.SetFilter(filter)
	h.metrics.update("filter", h.model.Len(), h.model.FilteredCount())
	h.invalidate()
}

// UpdateDisplayFormat switches the display format and persists the choice.
// The new format is applied even if persisting fails.
func (h *Hub) UpdateDisplayFormat(ctx context.Context, format gnss.DisplayFormat) error {
	format, err := gnss.ParseDisplayFormat(string(format))
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.format = format
	h.mu.Unlock()

	h.metrics.update("format", h.model.Len(), h.model.FilteredCount())
	h.invalidate()

	if h.prefs != nil {
		if err = h.prefs.SetDisplayFormat(ctx, format); err != nil {
			return fmt.Errorf("storing display format: %w", err)
		}
	}
	return nil
}

// FilteredSatelliteCount returns the number of satellites passing the active filter.
func (h *Hub) FilteredSatelliteCount() int {
	return h.model.FilteredCount()
}

// CurrentConstellationFilter returns the active constellation filter.
func (h *Hub) CurrentConstellationFilter() gnss.ConstellationFilter {
	return h.model.CurrentConstellationFilter()
}

// DisplayFormat returns the active display format.
func (h *Hub) DisplayFormat() gnss.DisplayFormat {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.format
}

// Frame returns the current state for rendering.
func (h *Hub) Frame() Frame {
	var f Frame
	f.Satellites, f.Filter = h.model.View()

	h.mu.RLock()
	defer h.mu.RUnlock()

	f.Format = h.format
	if h.location != nil {
		loc := *h.location
		f.Location = &loc
		f.LocationText = location.Format(loc, h.format)
	}
	return f
}

// Redraw returns the channel notified when the charts need to be redrawn.
func (h *Hub) Redraw() <-chan struct{} {
	return h.redraw
}

func (h *Hub) invalidate() {
	select {
	case h.redraw <- struct{}{}:
	default: // a redraw is already pending
	}
}
