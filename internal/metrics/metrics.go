// Package metrics exposes Prometheus instrumentation for the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the tracker's Prometheus metrics on an own
// registry.
type Collector struct {
	reg *prometheus.Registry

	ActiveTrips prometheus.Gauge

	TripsStarted   prometheus.Counter
	TripsCompleted prometheus.Counter
	TripsCancelled prometheus.Counter

	FixesProcessed   prometheus.Counter
	StaleFixes       prometheus.Counter
	LowAccuracyFixes prometheus.Counter
	LegsCompleted    prometheus.Counter

	AlertsEmitted *prometheus.CounterVec // kind label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	EvaluateDuration prometheus.Histogram
}

// NewCollector creates and registers all tracker metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveTrips: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_trips",
			Help: "Number of trips currently in progress.",
		}),
		TripsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_started_total",
			Help: "Total trips started.",
		}),
		TripsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_completed_total",
			Help: "Total trips that reached their destination.",
		}),
		TripsCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_cancelled_total",
			Help: "Total trips cancelled.",
		}),
		FixesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_location_fixes_total",
			Help: "Total location fixes evaluated.",
		}),
		StaleFixes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_stale_fixes_total",
			Help: "Total out-of-order fixes dropped.",
		}),
		LowAccuracyFixes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_low_accuracy_fixes_total",
			Help: "Total fixes excluded from completion logic for bad accuracy.",
		}),
		LegsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_legs_completed_total",
			Help: "Total route legs completed by geofence.",
		}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_alerts_emitted_total",
			Help: "Total guidance alerts emitted.",
		}, []string{"kind"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		EvaluateDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_evaluate_duration_seconds",
			Help:    "Duration of progress evaluation per fix.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
	}

	reg.MustRegister(
		c.ActiveTrips,
		c.TripsStarted, c.TripsCompleted, c.TripsCancelled,
		c.FixesProcessed, c.StaleFixes, c.LowAccuracyFixes, c.LegsCompleted,
		c.AlertsEmitted,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.EvaluateDuration,
	)

	return c
}

// Handler returns the /metrics HTTP handler.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}
