// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldCorrelationID = "correlation_id"
	FieldRequestID     = "request_id"
	FieldJobID         = "job_id"
	FieldCreativeID    = "creative_id"
	FieldTraceID       = "trace_id"
	FieldSpanID        = "span_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldKind      = "kind"

	// Ad fields
	FieldSubdomain  = "subdomain"
	FieldSourceURL  = "source_url"
	FieldStatus     = "status"
	FieldReady      = "ready"
	FieldMissing    = "missing"
	FieldDropped    = "dropped"
	FieldBlocked    = "blocked"
	FieldDurationMS = "duration_ms"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
)
