// SPDX-License-Identifier: MIT

package middleware

import (
	"github.com/go-chi/chi/v5"

	"github.com/ManuGH/ad-normalizer/internal/log"
)

// StackConfig configures the HTTP ingress middleware stack.
type StackConfig struct {
	AllowedOrigins []string

	EnableSecurityHeaders bool

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	// RateLimitRPS is the per client request rate; 0 disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// Compress enables gzip response compression.
	Compress bool
}

// NewRouter constructs a chi router with the middleware stack applied.
func NewRouter(cfg StackConfig) (*chi.Mux, error) {
	r := chi.NewRouter()
	if err := ApplyStack(r, cfg); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyStack applies the middleware stack to r. Order matters: recovery
// wraps everything, request ids exist before logging and tracing.
func ApplyStack(r chi.Router, cfg StackConfig) error {
	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(CORS(cfg.AllowedOrigins))
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders)
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	if cfg.RateLimitRPS > 0 {
		r.Use(RateLimit(RateLimitConfig{RPS: cfg.RateLimitRPS, Burst: cfg.RateLimitBurst}))
	}
	if cfg.Compress {
		gz, err := Compress()
		if err != nil {
			return err
		}
		r.Use(gz)
	}
	return nil
}
