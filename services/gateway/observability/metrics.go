// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability holds the gateway's Prometheus instrumentation.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// StreamingMetrics tracks chat and embedding traffic through the gateway.
type StreamingMetrics struct {
	RequestsTotal         *prometheus.CounterVec
	TokensTotal           *prometheus.CounterVec
	StreamDurationSeconds *prometheus.HistogramVec
	ActiveStreams         prometheus.Gauge
	ErrorsTotal           *prometheus.CounterVec
}

// NewStreamingMetrics registers the gateway metric set on the default
// registry. Call once at startup.
func NewStreamingMetrics() *StreamingMetrics {
	return &StreamingMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "threatgate_requests_total",
			Help: "Requests handled, by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		TokensTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "threatgate_tokens_total",
			Help: "Token fragments streamed to clients, by endpoint.",
		}, []string{"endpoint"}),
		StreamDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threatgate_stream_duration_seconds",
			Help:    "Wall time of completed streams.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"endpoint"}),
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "threatgate_active_streams",
			Help: "Streams currently open.",
		}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "threatgate_errors_total",
			Help: "Failures by endpoint and kind.",
		}, []string{"endpoint", "kind"}),
	}
}
