// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatdesk"

// Generation outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
	OutcomeFailed    = "failed"
)

// Persist statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Metrics holds the chatdesk collectors.
type Metrics struct {
	registry *prometheus.Registry

	GenerationsTotal   *prometheus.CounterVec
	TokensStreamed     prometheus.Counter
	GenerationDuration prometheus.Histogram
	PersistTotal       *prometheus.CounterVec
	Conversations      prometheus.Gauge
}

// NewMetrics registers the collectors on a fresh registry, together with
// the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		GenerationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "generations_total",
				Help:      "Assistant replies by outcome",
			},
			[]string{"outcome"},
		),

		TokensStreamed: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tokens_streamed_total",
				Help:      "Text deltas appended to assistant messages",
			},
		),

		GenerationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "generation_duration_seconds",
				Help:      "Time from placeholder to final assistant message",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),

		PersistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persist_total",
				Help:      "Saves of the conversation mapping by status",
			},
			[]string{"status"},
		),

		Conversations: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "conversations",
				Help:      "Conversations currently held by the store",
			},
		),
	}
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler returns the /metrics HTTP handler.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration counts a finished reply.
func (m *Metrics) RecordGeneration(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
	m.GenerationDuration.Observe(elapsed.Seconds())
}

// RecordToken counts one streamed delta.
func (m *Metrics) RecordToken() {
	if m == nil {
		return
	}
	m.TokensStreamed.Inc()
}

// RecordPersist counts a save attempt.
func (m *Metrics) RecordPersist(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.PersistTotal.WithLabelValues(status).Inc()
}

// SetConversations sets the conversation gauge.
func (m *Metrics) SetConversations(n int) {
	if m == nil {
		return
	}
	m.Conversations.Set(float64(n))
}
