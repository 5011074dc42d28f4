package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	resolutions         *prometheus.CounterVec
	polls               *prometheus.CounterVec
	pollDuration        prometheus.Histogram
	eventsEmitted       *prometheus.CounterVec
	eventsLagged        *prometheus.CounterVec
	decodeErrors        *prometheus.CounterVec
	activeSubscriptions prometheus.Gauge
	sessionHealthy      prometheus.Gauge
}

// NewCollector creates a new Prometheus metrics collector registered on reg
func NewCollector(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		resolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepoll_resolutions_total",
				Help: "Total number of session metadata resolutions",
			},
			[]string{"result"},
		),
		polls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepoll_polls_total",
				Help: "Total number of chat update polls",
			},
			[]string{"status"},
		),
		pollDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "livepoll_poll_duration_seconds",
				Help:    "Chat update poll duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		),
		eventsEmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepoll_events_emitted_total",
				Help: "Total number of events emitted on the bus",
			},
			[]string{"event"},
		),
		eventsLagged: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepoll_events_lagged_total",
				Help: "Total number of events evicted from slow subscribers",
			},
			[]string{"event"},
		),
		decodeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepoll_decode_errors_total",
				Help: "Total number of event payloads subscribers failed to decode",
			},
			[]string{"event"},
		),
		activeSubscriptions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepoll_active_subscriptions",
				Help: "Number of live event bus subscriptions",
			},
		),
		sessionHealthy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepoll_session_healthy",
				Help: "1 when the session poller is healthy",
			},
		),
	}
}

// RecordResolution records a metadata resolution attempt
func (c *Collector) RecordResolution(result string) {
	c.resolutions.WithLabelValues(result).Inc()
}

// RecordPoll records a single poll tick
func (c *Collector) RecordPoll(status string, duration time.Duration) {
	c.polls.WithLabelValues(status).Inc()
	c.pollDuration.Observe(duration.Seconds())
}

// RecordEventEmitted records an emitted event
func (c *Collector) RecordEventEmitted(event string) {
	c.eventsEmitted.WithLabelValues(event).Inc()
}

// RecordEventLagged records events evicted from a subscriber buffer
func (c *Collector) RecordEventLagged(event string, count int) {
	c.eventsLagged.WithLabelValues(event).Add(float64(count))
}

// RecordDecodeError records a subscriber decode failure
func (c *Collector) RecordDecodeError(event string) {
	c.decodeErrors.WithLabelValues(event).Inc()
}

// SetActiveSubscriptions sets the number of live subscriptions
func (c *Collector) SetActiveSubscriptions(count int) {
	c.activeSubscriptions.Set(float64(count))
}

// SetSessionHealthy sets the session health gauge
func (c *Collector) SetSessionHealthy(healthy bool) {
	if healthy {
		c.sessionHealthy.Set(1)
		return
	}
	c.sessionHealthy.Set(0)
}
