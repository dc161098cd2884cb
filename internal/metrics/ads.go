// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package metrics provides Prometheus metrics for the ad normalizer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low cardinality: document kind, outcome and reason only.
// Subdomains are reported through the KPI collector instead.

var (
	// AdsTotal counts creatives seen per document kind and partition outcome
	// (ready, missing, in_flight, blocked).
	AdsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_normalizer_ads_total",
		Help: "Creatives processed, by document kind and partition outcome.",
	}, []string{"kind", "outcome"})

	// DocumentsTotal counts normalized documents by kind and parse result.
	DocumentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_normalizer_documents_total",
		Help: "Ad documents normalized, by kind and result (ok, empty_substituted).",
	}, []string{"kind", "result"})

	// FallbacksTotal counts degraded renderings.
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_normalizer_fallbacks_total",
		Help: "Degraded renderings, by stage (extract, rewrite, assetlist, upstream).",
	}, []string{"stage"})

	// DispatchTotal counts transcode dispatch attempts by result.
	DispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_normalizer_dispatch_total",
		Help: "Transcode dispatches for missing creatives, by result (submitted, shared, failed, panic).",
	}, []string{"result"})

	// DispatchInFlight tracks background dispatch goroutines.
	DispatchInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ad_normalizer_dispatch_in_flight",
		Help: "Background transcode dispatches currently running.",
	})

	// CallbacksTotal counts Encore and packager callbacks by source and status.
	CallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ad_normalizer_callbacks_total",
		Help: "Lifecycle callbacks received, by source (encore, packager) and status.",
	}, []string{"source", "status"})

	// UpstreamDuration observes ad server round trips.
	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ad_normalizer_upstream_duration_seconds",
		Help:    "Ad server request latency, by document kind and result.",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "result"})
)

// RecordAds adds n creatives to the given outcome.
func RecordAds(kind, outcome string, n int) {
	if n <= 0 {
		return
	}
	AdsTotal.WithLabelValues(kind, outcome).Add(float64(n))
}

// RecordDocument counts one normalized document.
func RecordDocument(kind string, substituted bool) {
	result := "ok"
	if substituted {
		result = "empty_substituted"
	}
	DocumentsTotal.WithLabelValues(kind, result).Inc()
}

// RecordFallback counts a degraded rendering at stage.
func RecordFallback(stage string) {
	FallbacksTotal.WithLabelValues(stage).Inc()
}

// RecordDispatch counts a dispatch result.
func RecordDispatch(result string) {
	DispatchTotal.WithLabelValues(result).Inc()
}

// RecordCallback counts a lifecycle callback.
func RecordCallback(source, status string) {
	CallbacksTotal.WithLabelValues(source, status).Inc()
}
