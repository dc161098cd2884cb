// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package transcode holds the persisted state of a creative's transcode and
// packaging lifecycle.
package transcode

import "time"

// Status is the lifecycle state of a creative's transcoded asset.
type Status string

const (
	StatusCompleted   Status = "COMPLETED"
	StatusFailed      Status = "FAILED"
	StatusInProgress  Status = "IN_PROGRESS"
	StatusTranscoding Status = "TRANSCODING"
	StatusPackaging   Status = "PACKAGING"
	StatusUnknown     Status = "UNKNOWN"
)

// Info is the record stored per creative id.
type Info struct {
	URL         string    `json:"url"`
	AspectRatio string    `json:"aspectRatio"`
	FrameRates  []float64 `json:"frameRates"`
	Status      Status    `json:"status"`
	Source      string    `json:"source,omitempty"`
	LastUpdate  int64     `json:"lastUpdate"`
	Error       string    `json:"error,omitempty"`
}

// IsReady reports whether the asset can be served.
func (i Info) IsReady() bool {
	return i.Status == StatusCompleted
}

// Touch stamps LastUpdate with t in unix milliseconds.
func (i *Info) Touch(t time.Time) {
	i.LastUpdate = t.UnixMilli()
}

// LastUpdated returns LastUpdate as a time.
func (i Info) LastUpdated() time.Time {
	return time.UnixMilli(i.LastUpdate)
}
