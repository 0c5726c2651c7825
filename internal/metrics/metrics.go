package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels shared by the hold, release and booking counters
const (
	OutcomeOK          = "ok"
	OutcomeRefreshed   = "refreshed"
	OutcomeConflict    = "conflict"
	OutcomeUnavailable = "unavailable"
	OutcomeNotFound    = "not_found"
	OutcomeNoop        = "noop"
	OutcomeError       = "error"
)

// Metrics groups the Prometheus collectors of the reservation service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	holds           *prometheus.CounterVec
	releases        *prometheus.CounterVec
	consumed        prometheus.Counter
	bookings        *prometheus.CounterVec
	streams         prometheus.Gauge
	requestDuration *prometheus.HistogramVec
}

// New registers the service collectors on a fresh registry
func New(serviceName string) *Metrics {
	registry := prometheus.NewRegistry()
	labels := prometheus.Labels{"service": serviceName}

	m := &Metrics{
		registry: registry,
		holds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "table_hold_requests_total",
			Help:        "Table hold attempts by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		releases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "table_release_requests_total",
			Help:        "Table release requests by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "table_holds_consumed_total",
			Help:        "Holds turned into bookings.",
			ConstLabels: labels,
		}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "booking_submissions_total",
			Help:        "Booking submissions by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		streams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "hold_stream_subscribers",
			Help:        "Open realtime hold streams.",
			ConstLabels: labels,
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by route and status.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	registry.MustRegister(
		m.holds,
		m.releases,
		m.consumed,
		m.bookings,
		m.streams,
		m.requestDuration,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) ObserveHold(outcome string) {
	if m == nil {
		return
	}
	m.holds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveRelease(outcome string) {
	if m == nil {
		return
	}
	m.releases.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveConsumed(n int) {
	if m == nil {
		return
	}
	m.consumed.Add(float64(n))
}

func (m *Metrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookings.WithLabelValues(outcome).Inc()
}

// StreamOpened tracks a realtime subscriber; call the returned func on close
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.streams.Inc()
	return m.streams.Dec
}

// Middleware records request latency by matched route
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
