package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry with the service's bridge and routing metrics.
type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	RouteRequests   *prometheus.CounterVec // mode, outcome: ok|error|stale
	RouteDuration   prometheus.Histogram
	RoutePoints     prometheus.Histogram
	RendererEvents  *prometheus.CounterVec // type
	RendererPanics  prometheus.Counter
	PushesSkipped   prometheus.Counter
	GeocodeFailures prometheus.Counter
}

// NewCollector registers all metrics.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "routemap_active_sessions",
			Help: "Number of mounted map sessions.",
		}),
		RouteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routemap_route_requests_total",
			Help: "Routing provider requests by transport mode and outcome.",
		}, []string{"mode", "outcome"}),
		RouteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "routemap_route_request_duration_seconds",
			Help:    "Routing provider round-trip time.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		RoutePoints: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "routemap_route_points",
			Help:    "Number of points in accepted route paths.",
			Buckets: prometheus.ExponentialBuckets(2, 2, 12),
		}),
		RendererEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "routemap_renderer_events_total",
			Help: "Renderer events received by the host, by type.",
		}, []string{"type"}),
		RendererPanics: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routemap_renderer_panics_total",
			Help: "Renderer command panics recovered.",
		}),
		PushesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routemap_route_pushes_skipped_total",
			Help: "Route pushes skipped because the route was unchanged.",
		}),
		GeocodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "routemap_geocode_failures_total",
			Help: "POI lookups that fell back to the zero coordinate.",
		}),
	}

	reg.MustRegister(
		c.ActiveSessions,
		c.RouteRequests, c.RouteDuration, c.RoutePoints,
		c.RendererEvents, c.RendererPanics, c.PushesSkipped,
		c.GeocodeFailures,
	)
	return c
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// ObserveRoute records one provider call.
func (c *Collector) ObserveRoute(mode, outcome string, d time.Duration, points int) {
	c.RouteRequests.WithLabelValues(mode, outcome).Inc()
	c.RouteDuration.Observe(d.Seconds())
	if outcome == "ok" {
		c.RoutePoints.Observe(float64(points))
	}
}

func (c *Collector) SessionOpened() { c.ActiveSessions.Inc() }
func (c *Collector) SessionClosed() { c.ActiveSessions.Dec() }

func (c *Collector) RendererEvent(eventType string) {
	c.RendererEvents.WithLabelValues(eventType).Inc()
}

func (c *Collector) RendererPanic()  { c.RendererPanics.Inc() }
func (c *Collector) PushSkipped()    { c.PushesSkipped.Inc() }
func (c *Collector) GeocodeFailure() { c.GeocodeFailures.Inc() }
