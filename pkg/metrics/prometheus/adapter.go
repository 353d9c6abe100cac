// Package prometheus adapts the SLine metrics.Collector interface to the Prometheus client.
package prometheus

import (
	"errors"
	"maps"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Suhaibinator/SLine/pkg/common"
	sline_metrics "github.com/Suhaibinator/SLine/pkg/metrics"
)

// Collector records SLine events as Prometheus metrics.
type Collector struct {
	activeConnections   prometheus.Gauge
	connectionsTotal    prometheus.Counter
	rejectedConnections prometheus.Counter
	closedConnections   *prometheus.CounterVec
	connectionLifetime  prometheus.Histogram
	messagesTotal       *prometheus.CounterVec
	messageDuration     prometheus.Histogram
}

// NewCollector creates the SLine metrics and registers them with registry.
// Metrics that are already registered under the same descriptor are reused, so two servers
// may share one registry.
func NewCollector(registry prometheus.Registerer, namespace, subsystem string, tags sline_metrics.Tags) *Collector {
	if registry == nil {
		panic("prometheus registry cannot be nil")
	}
	labels := prometheus.Labels{}
	maps.Copy(labels, tags)

	c := &Collector{}
	c.activeConnections = register(registry, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name: "active_connections",
		Help: "Number of connections currently open.",
	}))
	c.connectionsTotal = register(registry, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name: "connections_total",
		Help: "Total number of accepted and authorized connections.",
	}))
	c.rejectedConnections = register(registry, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name: "rejected_connections_total",
		Help: "Total number of connections closed by client verification.",
	}))
	c.closedConnections = register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name: "closed_connections_total",
		Help: "Total number of closed connections by reason.",
	}, []string{"reason"}))
	c.connectionLifetime = register(registry, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name:    "connection_lifetime_seconds",
		Help:    "How long connections stayed open.",
		Buckets: []float64{0.1, 1, 5, 15, 60, 300, 900, 3600},
	}))
	c.messagesTotal = register(registry, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name: "messages_total",
		Help: "Total number of messages dispatched through the pipeline by result.",
	}, []string{"result"}))
	c.messageDuration = register(registry, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: subsystem, ConstLabels: labels,
		Name:    "message_duration_seconds",
		Help:    "Time spent running the pipeline for one message.",
		Buckets: prometheus.DefBuckets,
	}))
	return c
}

// register registers m, returning the existing collector if one with the same descriptor is
// already registered. Any other registration error panics.
func register[M prometheus.Collector](registry prometheus.Registerer, m M) M {
	if err := registry.Register(m); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(M); ok {
				return existing
			}
		}
		panic(err)
	}
	return m
}

// ConnectionOpened implements metrics.Collector.
func (c *Collector) ConnectionOpened() {
	c.activeConnections.Inc()
	c.connectionsTotal.Inc()
}

// ConnectionRejected implements metrics.Collector.
func (c *Collector) ConnectionRejected() {
	c.rejectedConnections.Inc()
	c.closedConnections.WithLabelValues(string(sline_metrics.CloseUnauthorized)).Inc()
}

// ConnectionClosed implements metrics.Collector.
func (c *Collector) ConnectionClosed(reason sline_metrics.CloseReason, lifetime time.Duration) {
	c.activeConnections.Dec()
	c.closedConnections.WithLabelValues(string(reason)).Inc()
	c.connectionLifetime.Observe(lifetime.Seconds())
}

// MessageHandled implements metrics.Collector.
func (c *Collector) MessageHandled(duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = common.KindOf(err).String()
	}
	c.messagesTotal.WithLabelValues(result).Inc()
	c.messageDuration.Observe(duration.Seconds())
}

var _ sline_metrics.Collector = (*Collector)(nil)
