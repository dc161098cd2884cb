// SPDX-License-Identifier: MIT

package daemon

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Deps contains dependencies required by the daemon Manager.
type Deps struct {
	Logger zerolog.Logger

	// APIAddr is the API listen address, e.g. ":8000".
	APIAddr    string
	APIHandler http.Handler

	// MetricsAddr and MetricsHandler are optional; both must be set to
	// serve metrics.
	MetricsAddr    string
	MetricsHandler http.Handler

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Validate checks if the dependencies are valid.
func (d *Deps) Validate() error {
	if d.Logger.GetLevel() == zerolog.Disabled {
		return ErrMissingLogger
	}
	if d.APIHandler == nil {
		return ErrMissingAPIHandler
	}
	return nil
}
