// Package metrics holds the Prometheus collectors of the planner.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry so tests can create as many as they like.
// All methods are safe on a nil *Collector.
type Collector struct {
	registry *prometheus.Registry

	HolidayCacheHits   prometheus.Counter
	HolidayCacheMisses prometheus.Counter
	HolidayFetchErrors prometheus.Counter
	HolidayFetchTime   prometheus.Histogram

	SchedulesCreated prometheus.Counter
	SchedulesDeleted prometheus.Counter

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New creates a collector with all planner metrics registered under namespace
func New(namespace string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		HolidayCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holiday_cache_hits_total",
			Help:      "Holiday lookups served from the persisted cache",
		}),
		HolidayCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holiday_cache_misses_total",
			Help:      "Holiday lookups that went to the remote source",
		}),
		HolidayFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "holiday_fetch_errors_total",
			Help:      "Failed fetches from the remote holiday source",
		}),
		HolidayFetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "holiday_fetch_duration_seconds",
			Help:      "Duration of remote holiday fetches",
			Buckets:   prometheus.DefBuckets,
		}),
		SchedulesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_created_total",
			Help:      "Schedules created",
		}),
		SchedulesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedules_deleted_total",
			Help:      "Schedules deleted",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	c.registry.MustRegister(
		c.HolidayCacheHits,
		c.HolidayCacheMisses,
		c.HolidayFetchErrors,
		c.HolidayFetchTime,
		c.SchedulesCreated,
		c.SchedulesDeleted,
		c.HTTPRequests,
		c.HTTPDuration,
	)
	return c
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) CacheHit() {
	if c != nil {
		c.HolidayCacheHits.Inc()
	}
}

func (c *Collector) CacheMiss() {
	if c != nil {
		c.HolidayCacheMisses.Inc()
	}
}

// ObserveFetch records one remote fetch
func (c *Collector) ObserveFetch(start time.Time, err error) {
	if c == nil {
		return
	}
	c.HolidayFetchTime.Observe(time.Since(start).Seconds())
	if err != nil {
		c.HolidayFetchErrors.Inc()
	}
}

func (c *Collector) ScheduleCreated() {
	if c != nil {
		c.SchedulesCreated.Inc()
	}
}

func (c *Collector) ScheduleDeleted() {
	if c != nil {
		c.SchedulesDeleted.Inc()
	}
}

// ObserveHTTP records one served request
func (c *Collector) ObserveHTTP(method, route string, status int, start time.Time) {
	if c == nil {
		return
	}
	c.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}
