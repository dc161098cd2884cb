// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the service.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Ad attributes
	AdKindKey      = "ad.kind"
	AdSubdomainKey = "ad.subdomain"
	AdCreativesKey = "ad.creatives"
	AdReadyKey     = "ad.ready"
	AdMissingKey   = "ad.missing"
	AdInFlightKey  = "ad.in_flight"
	AdBlockedKey   = "ad.blocked"

	// Transcode attributes
	CreativeIDKey      = "creative.id"
	TranscodeJobKey    = "transcode.job_id"
	TranscodeStatusKey = "transcode.status"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// PartitionAttributes describes the outcome of partitioning one document.
func PartitionAttributes(kind, subdomain string, creatives, ready, missing, inFlight, blocked int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AdKindKey, kind),
		attribute.Int(AdCreativesKey, creatives),
		attribute.Int(AdReadyKey, ready),
		attribute.Int(AdMissingKey, missing),
		attribute.Int(AdInFlightKey, inFlight),
		attribute.Int(AdBlockedKey, blocked),
	}
	if subdomain != "" {
		attrs = append(attrs, attribute.String(AdSubdomainKey, subdomain))
	}
	return attrs
}

// TranscodeAttributes describes a transcode job.
func TranscodeAttributes(creativeID, jobID, status string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if creativeID != "" {
		attrs = append(attrs, attribute.String(CreativeIDKey, creativeID))
	}
	if jobID != "" {
		attrs = append(attrs, attribute.String(TranscodeJobKey, jobID))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(TranscodeStatusKey, status))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
