// Package metrics provides Prometheus metrics for the player.
package metrics

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/osa030/tunedeck/internal/app/playback"
)

const namespace = "tunedeck"

// Metrics holds the player collectors.
type Metrics struct {
	registry *prometheus.Registry

	events           *prometheus.CounterVec
	tracksLoaded     prometheus.Counter
	playbackFailures prometheus.Counter
	uploads          *prometheus.CounterVec
	playlistLength   prometheus.Gauge
	playlistBytes    prometheus.Gauge
	playing          prometheus.Gauge
	volume           prometheus.Gauge
	subscribers      prometheus.Gauge
}

// New creates the collectors and registers them on a dedicated registry.
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "events_total", Help: "Controller events by type"},
			[]string{"type"},
		),
		tracksLoaded: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "tracks_loaded_total", Help: "Tracks loaded into the media player"},
		),
		playbackFailures: prometheus.NewCounter(
			prometheus.CounterOpts{Namespace: namespace, Name: "playback_failures_total", Help: "Failed play requests"},
		),
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{Namespace: namespace, Name: "uploads_total", Help: "Picked files by outcome"},
			[]string{"origin", "result"},
		),
		playlistLength: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "playlist_length", Help: "Tracks in the playlist"},
		),
		playlistBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "playlist_bytes", Help: "Summed payload size of the playlist"},
		),
		playing: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "playing", Help: "1 while playing, 0 otherwise"},
		),
		volume: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "volume", Help: "Output volume in [0, 1]"},
		),
		subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{Namespace: namespace, Name: "subscribers", Help: "Active event stream subscribers"},
		),
	}

	cs := []prometheus.Collector{
		m.events, m.tracksLoaded, m.playbackFailures, m.uploads,
		m.playlistLength, m.playlistBytes, m.playing, m.volume, m.subscribers,
		collectors.NewGoCollector(),
	}
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register collector")
		}
	}
	return m, nil
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveEvent records a controller event.
func (m *Metrics) ObserveEvent(e playback.Event) {
	m.events.WithLabelValues(e.Type.String()).Inc()

	switch e.Type {
	case playback.EventTrackLoaded:
		m.tracksLoaded.Inc()
	case playback.EventPlaybackFailed:
		m.playbackFailures.Inc()
	}

	if e.State == playback.StatePlaying {
		m.playing.Set(1)
	} else {
		m.playing.Set(0)
	}
}

// ObserveStatus records gauges from a status snapshot.
func (m *Metrics) ObserveStatus(s playback.Status) {
	m.playlistLength.Set(float64(s.PlaylistLength))
	m.playlistBytes.Set(float64(s.PlaylistBytes))
	m.volume.Set(s.Volume)
}

// ObserveUploads records the outcome of an import.
func (m *Metrics) ObserveUploads(origin string, accepted, rejected int) {
	m.uploads.WithLabelValues(origin, "accepted").Add(float64(accepted))
	m.uploads.WithLabelValues(origin, "rejected").Add(float64(rejected))
}

// SetSubscribers records the number of stream subscribers.
func (m *Metrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}
