package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/git-pkgs/crateview"
)

// metrics exposes cache gauges and request counters on /metrics.
type metrics struct {
	registry      *prometheus.Registry
	requestsTotal *prometheus.CounterVec
}

func newMetrics(stats func() crateview.Stats) *metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "crateview_http_requests_total",
		Help: "HTTP requests by method, route, and status.",
	}, []string{"method", "route", "status"})
	registry.MustRegister(requestsTotal)
	registry.MustRegister(&cacheCollector{stats: stats})

	return &metrics{registry: registry, requestsTotal: requestsTotal}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			m.requestsTotal.WithLabelValues(
				c.Request().Method,
				c.Path(),
				strconv.Itoa(c.Response().Status),
			).Inc()
			return err
		}
	}
}

// cacheCollector reads the explorer's cache counters on scrape.
type cacheCollector struct {
	stats func() crateview.Stats
}

var (
	descCacheHits = prometheus.NewDesc(
		"crateview_cache_hits_total", "Snapshot cache hits.", nil, nil)
	descCacheMisses = prometheus.NewDesc(
		"crateview_cache_misses_total", "Snapshot cache misses.", nil, nil)
	descCacheEvictions = prometheus.NewDesc(
		"crateview_cache_evictions_total", "Snapshots evicted from the cache.", nil, nil)
	descCacheEntries = prometheus.NewDesc(
		"crateview_cache_entries", "Snapshots currently cached.", nil, nil)
	descCacheBytes = prometheus.NewDesc(
		"crateview_cache_bytes", "Decompressed bytes currently cached.", nil, nil)
)

func (c *cacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descCacheHits
	ch <- descCacheMisses
	ch <- descCacheEvictions
	ch <- descCacheEntries
	ch <- descCacheBytes
}

func (c *cacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(descCacheHits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(descCacheMisses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(descCacheEvictions, prometheus.CounterValue, float64(s.Evictions))
	ch <- prometheus.MustNewConstMetric(descCacheEntries, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(descCacheBytes, prometheus.GaugeValue, float64(s.Bytes))
}
