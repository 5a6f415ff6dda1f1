// File: wsmetrics/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Collector holds the Prometheus instruments wsconn.Conn traffic is
// recorded against, grounded on the promauto.With(registry)/Options-struct
// pattern in vango-go-vango's pkg/middleware/metrics.go, instantiated per
// Collector (rather than that file's package-level sync.Once singleton)
// since one process can host more than one wscore listener, each wanting
// its own namespace (set through WithNamespace) without
// colliding on the default registry.

package wsmetrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/momentics/wscore/wsconn"
	"github.com/momentics/wscore/wsmsg"
)

// Config configures a Collector's namespace and target registry.
type Config struct {
	Namespace string // default "wscore"
	Subsystem string // default ""

	// Registry receives the collectors; defaults to
	// prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Option configures a Config.
type Option func(*Config)

// WithNamespace overrides the default "wscore" namespace.
func WithNamespace(ns string) Option { return func(c *Config) { c.Namespace = ns } }

// WithRegistry targets a specific Prometheus registry instead of the
// global default (useful for tests, or for hosting several Collectors in
// one process).
func WithRegistry(r prometheus.Registerer) Option { return func(c *Config) { c.Registry = r } }

func defaultConfig() Config {
	return Config{Namespace: "wscore", Registry: prometheus.DefaultRegisterer}
}

// Collector is the set of Prometheus instruments one wscore listener
// reports through.
type Collector struct {
	framesReceived  *prometheus.CounterVec
	framesSent      prometheus.Counter
	messagesTotal   *prometheus.CounterVec
	closeTotal      *prometheus.CounterVec
	protocolErrors  prometheus.Counter
	activeConns     prometheus.Gauge
	sendQueueBytes  prometheus.Histogram
}

// New builds a Collector and registers its instruments against opts'
// registry (prometheus.DefaultRegisterer unless overridden).
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_received_total",
			Help:      "Total WebSocket frames received, by opcode.",
		}, []string{"opcode"}),

		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_sent_total",
			Help:      "Total WebSocket frames written to the wire.",
		}),

		messagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "messages_total",
			Help:      "Total whole messages delivered to the application, by kind.",
		}, []string{"kind"}),

		closeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "close_total",
			Help:      "Total connections closed, by close code.",
		}, []string{"code"}),

		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "protocol_errors_total",
			Help:      "Total errors reported through a connection's OnError callback.",
		}),

		activeConns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_connections",
			Help:      "Number of currently open WebSocket connections.",
		}),

		sendQueueBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "send_queue_bytes",
			Help:      "Outbound queue depth in bytes observed at connection close.",
			Buckets:   []float64{0, 1024, 16384, 65536, 262144, 1048576},
		}),
	}
}

// Callbacks wraps cb so every event it already handles also updates this
// Collector's instruments, then delegates to cb's own callback (if set).
// Intended to wrap the Callbacks a wshandshake.CallbacksFunc builds before
// handing them to wsconn.Conn.SetCallbacks.
func (c *Collector) Callbacks(cb wsconn.Callbacks) wsconn.Callbacks {
	c.activeConns.Inc()

	userOnMessage := cb.OnMessage
	cb.OnMessage = func(payload []byte, kind wsmsg.Kind) {
		c.RecordMessage(kindLabel(kind))
		if userOnMessage != nil {
			userOnMessage(payload, kind)
		}
	}

	userOnClose := cb.OnClose
	cb.OnClose = func(code uint16, reason string) {
		c.activeConns.Dec()
		c.closeTotal.WithLabelValues(closeCodeLabel(code)).Inc()
		if userOnClose != nil {
			userOnClose(code, reason)
		}
	}

	userOnError := cb.OnError
	cb.OnError = func(err error) {
		c.protocolErrors.Inc()
		if userOnError != nil {
			userOnError(err)
		}
	}

	return cb
}

// RecordFrame increments the received-frame counter for opcode.
func (c *Collector) RecordFrame(opcodeName string) {
	c.framesReceived.WithLabelValues(opcodeName).Inc()
}

// RecordFrameSent increments the sent-frame counter.
func (c *Collector) RecordFrameSent() {
	c.framesSent.Inc()
}

// RecordMessage increments the whole-message counter for kind ("text" or
// "binary").
func (c *Collector) RecordMessage(kind string) {
	c.messagesTotal.WithLabelValues(kind).Inc()
}

// RecordSendQueueBytes observes the outbound queue depth at some point in
// a connection's lifetime (typically at close).
func (c *Collector) RecordSendQueueBytes(n uint64) {
	c.sendQueueBytes.Observe(float64(n))
}

func closeCodeLabel(code uint16) string {
	return strconv.Itoa(int(code))
}

func kindLabel(k wsmsg.Kind) string {
	if k == wsmsg.KindText {
		return "text"
	}
	return "binary"
}
