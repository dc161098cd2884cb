// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	encoreRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ad_normalizer_encore_request_duration_seconds",
		Help:    "Encore API request latency, by operation and result.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"operation", "result"})

	encoreRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_normalizer_encore_retries_total",
		Help: "Retried Encore API attempts, by operation.",
	}, []string{"operation"})
)

// ObserveEncoreRequest records one Encore API attempt.
func ObserveEncoreRequest(operation, result string, d time.Duration) {
	encoreRequestDuration.WithLabelValues(operation, result).Observe(d.Seconds())
}

// RecordEncoreRetry counts a retried Encore attempt.
func RecordEncoreRetry(operation string) {
	encoreRetriesTotal.WithLabelValues(operation).Inc()
}
