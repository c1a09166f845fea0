package skyview

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors updated by the Hub.
type Metrics struct {
	gatherer prometheus.Gatherer

	Updates            *prometheus.CounterVec
	VisibleSatellites  prometheus.Gauge
	FilteredSatellites prometheus.Gauge
	FramesRendered     *prometheus.CounterVec
}

// NewMetrics registers the sky view collectors against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	updates, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyview_updates_total",
		Help: "Total number of updates applied to the sky view, labeled by kind.",
	}, []string{"kind"}), "skyview_updates_total")
	if err != nil {
		return nil, err
	}

	visible, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyview_satellites",
		Help: "Number of satellites in the latest status snapshot.",
	}), "skyview_satellites")
	if err != nil {
		return nil, err
	}

	filtered, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "skyview_filtered_satellites",
		Help: "Number of satellites passing the active filter.",
	}), "skyview_filtered_satellites")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "skyview_frames_rendered_total",
		Help: "Total number of rendered images, labeled by chart.",
	}, []string{"chart"}), "skyview_frames_rendered_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		gatherer:           gatherer,
		Updates:            updates,
		VisibleSatellites:  visible,
		FilteredSatellites: filtered,
		FramesRendered:     frames,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (m *Metrics) Handler() http.Handler {
	gatherer := m.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// FrameRendered counts one rendered image of the given chart.
func (m *Metrics) FrameRendered(chart string) {
	if m == nil {
		return
	}
	m.FramesRendered.WithLabelValues(chart).Inc()
}

func (m *Metrics) update(kind string, total, filtered int) {
	if m == nil {
		return
	}
	m.Updates.WithLabelValues(kind).Inc()
	m.VisibleSatellites.Set(float64(total))
	m.FilteredSatellites.Set(float64(filtered))
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
