// SPDX-FileCopyrightText: © 2026 CATS Authors
// SPDX-License-Identifier: AGPL-3.0-only

package conn

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus instrumentation. A nil
// *Metrics pointer is valid everywhere it's consulted; every method on
// it below is a nil-receiver no-op, so callers never need a
// conditional around each observation site.
type Metrics struct {
	ConnectionsOpened  prometheus.Counter
	ConnectionsClosed  prometheus.Counter
	ActionsSent        *prometheus.CounterVec // labels: kind
	ActionsReceived    *prometheus.CounterVec // labels: kind
	HandlerDuration    *prometheus.HistogramVec // labels: handler_id
	HandlerErrors      *prometheus.CounterVec   // labels: handler_id
	BytesSent          prometheus.Counter
	BytesReceived      prometheus.Counter
}

// NewMetrics registers the engine's collectors on reg and returns the
// handle. Pass a dedicated prometheus.Registry (or
// prometheus.DefaultRegisterer) per process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cats", Name: "connections_opened_total",
			Help: "Connections that completed the preamble and reached RUNNING.",
		}),
		ConnectionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cats", Name: "connections_closed_total",
			Help: "Connections that reached CLOSED.",
		}),
		ActionsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cats", Name: "actions_sent_total",
			Help: "Actions written to the wire, by kind.",
		}, []string{"kind"}),
		ActionsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cats", Name: "actions_received_total",
			Help: "Actions read off the wire, by kind.",
		}, []string{"kind"}),
		HandlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cats", Name: "handler_duration_seconds",
			Help:    "Handler.Handle wall time, by handler_id.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler_id"}),
		HandlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cats", Name: "handler_errors_total",
			Help: "Handler.Prepare/Handle errors, by handler_id.",
		}, []string{"handler_id"}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cats", Name: "bytes_sent_total",
			Help: "Raw wire bytes written.",
		}),
		BytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cats", Name: "bytes_received_total",
			Help: "Raw wire bytes read.",
		}),
	}
	reg.MustRegister(
		m.ConnectionsOpened, m.ConnectionsClosed,
		m.ActionsSent, m.ActionsReceived,
		m.HandlerDuration, m.HandlerErrors,
		m.BytesSent, m.BytesReceived,
	)
	return m
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.ConnectionsOpened.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.ConnectionsClosed.Inc()
}

func (m *Metrics) actionSent(kind string) {
	if m == nil {
		return
	}
	m.ActionsSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) actionReceived(kind string) {
	if m == nil {
		return
	}
	m.ActionsReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) handlerDuration(handlerID string, seconds float64) {
	if m == nil {
		return
	}
	m.HandlerDuration.WithLabelValues(handlerID).Observe(seconds)
}

func (m *Metrics) handlerError(handlerID string) {
	if m == nil {
		return
	}
	m.HandlerErrors.WithLabelValues(handlerID).Inc()
}

func (m *Metrics) bytesSent(n int) {
	if m == nil {
		return
	}
	m.BytesSent.Add(float64(n))
}

func (m *Metrics) bytesReceived(n int) {
	if m == nil {
		return
	}
	m.BytesReceived.Add(float64(n))
}
