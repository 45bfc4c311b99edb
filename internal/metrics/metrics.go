package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/balloon-tracker/internal/tracker"
)

// Collector bundles the service's Prometheus metrics. It satisfies
// tracker.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	ProxyRequests   *prometheus.CounterVec
	RefreshCycles   prometheus.Counter
	RefreshDuration prometheus.Histogram
	HoursSkipped    *prometheus.CounterVec
	EntriesSkipped  prometheus.Counter
	Enrichments     *prometheus.CounterVec

	Tracks   prometheus.Gauge
	Arcs     prometheus.Gauge
	Balloons prometheus.Gauge
}

// NewCollector registers metrics against reg, defaulting to the global
// registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{
		gatherer: gatherer,
		ProxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proxy_requests_total",
			Help: "Proxied gateway requests, labeled by outcome (ok, upstream_error, bad_request, internal_error).",
		}, []string{"outcome"}),
		RefreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "refresh_cycles_total",
			Help: "Completed refresh cycles.",
		}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "refresh_cycle_duration_seconds",
			Help:    "Wall time of a refresh cycle in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}),
		HoursSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "snapshot_files_skipped_total",
			Help: "Hourly snapshot files skipped during aggregation, labeled by reason.",
		}, []string{"reason"}),
		EntriesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "snapshot_entries_skipped_total",
			Help: "Malformed entries dropped from otherwise usable snapshot files.",
		}),
		Enrichments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "weather_enrichments_total",
			Help: "Weather enrichment attempts, labeled by target and outcome.",
		}, []string{"target", "outcome"}),
		Tracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "balloon_tracks",
			Help: "Tracks built by the last refresh cycle.",
		}),
		Arcs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arc_segments",
			Help: "Arc segments built by the last refresh cycle.",
		}),
		Balloons: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "current_balloons",
			Help: "Live balloons in the newest snapshot.",
		}),
	}

	collectors := []prometheus.Collector{
		c.ProxyRequests, c.RefreshCycles, c.RefreshDuration, c.HoursSkipped,
		c.EntriesSkipped, c.Enrichments, c.Tracks, c.Arcs, c.Balloons,
	}
	for _, col := range collectors {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return c, nil
}

// CycleCompleted records a finished refresh cycle.
func (c *Collector) CycleCompleted(report tracker.CycleReport) {
	c.RefreshCycles.Inc()
	c.RefreshDuration.Observe((time.Duration(report.DurationMs) * time.Millisecond).Seconds())
	for _, h := range report.Hours {
		if h.Status == tracker.HourSkipped {
			c.HoursSkipped.WithLabelValues(string(h.Reason)).Inc()
		}
	}
	c.EntriesSkipped.Add(float64(report.EntriesSkipped()))
	c.Tracks.Set(float64(report.TrackCount))
	c.Arcs.Set(float64(report.ArcCount))
	c.Balloons.Set(float64(report.BalloonCount))
}

// EnrichmentCompleted records one enrichment attempt.
func (c *Collector) EnrichmentCompleted(target string, enriched bool) {
	outcome := "skipped"
	if enriched {
		outcome = "enriched"
	}
	c.Enrichments.WithLabelValues(target, outcome).Inc()
}

// ProxyOutcome records one proxied request.
func (c *Collector) ProxyOutcome(outcome string) {
	if c == nil {
		return
	}
	c.ProxyRequests.WithLabelValues(outcome).Inc()
}

// Handler exposes the gathered metrics.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}
