// Package metrics exposes workflow counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Side-effect channels counted by SideEffectFailed.
const (
	ChannelNotification = "notification"
	ChannelEmail        = "email"
	ChannelBroadcast    = "broadcast"
)

type Metrics struct {
	registry      *prometheus.Registry
	handler       http.Handler
	transitions   *prometheus.CounterVec
	sideEffects   *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New builds a private registry with the Go runtime collectors attached.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_request_transitions_total",
			Help: "Request state transitions by kind.",
		}, []string{"transition"}),
		sideEffects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "workflow_side_effect_failures_total",
			Help: "Failed best-effort side effects by channel.",
		}, []string{"channel"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "workflow_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	registry.MustRegister(
		m.transitions,
		m.sideEffects,
		m.httpDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	return m
}

// WatchConnections exports the value of count as the websocket client gauge.
func (m *Metrics) WatchConnections(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "workflow_websocket_clients",
		Help: "Connected websocket clients.",
	}, func() float64 { return float64(count()) }))
}

func (m *Metrics) Transition(kind string) {
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) SideEffectFailed(channel string) {
	m.sideEffects.WithLabelValues(channel).Inc()
}

// Middleware records the latency of every routed request.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpDurations.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() gin.HandlerFunc {
	return gin.WrapH(m.handler)
}

// Registry is exposed for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
