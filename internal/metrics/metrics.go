// Package metrics exposes Prometheus counters for table checks and changes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "schema_drift"

// Collector owns a private registry. All methods are safe on a nil receiver.
type Collector struct {
	registry *prometheus.Registry

	ChecksTotal   *prometheus.CounterVec
	CheckDuration *prometheus.HistogramVec
	ChangesTotal  *prometheus.CounterVec
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		ChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "table_checks_total",
			Help:      "Total number of table checks by outcome",
		}, []string{"table", "outcome"}),
		CheckDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "table_check_duration_seconds",
			Help:      "Duration of table checks in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"table"}),
		ChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "changes_total",
			Help:      "Total number of column changes by kind and result",
		}, []string{"table", "change_type", "result"}),
	}

	reg.MustRegister(c.ChecksTotal, c.CheckDuration, c.ChangesTotal)
	return c
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) RecordCheck(table, outcome string, duration time.Duration) {
	if c == nil {
		return
	}
	c.ChecksTotal.WithLabelValues(table, outcome).Inc()
	c.CheckDuration.WithLabelValues(table).Observe(duration.Seconds())
}

// RecordChange counts one change; result is detected, applied, skipped or failed.
func (c *Collector) RecordChange(table, changeType, result string) {
	if c == nil {
		return
	}
	c.ChangesTotal.WithLabelValues(table, changeType, result).Inc()
}
