// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"regexp"

	"github.com/ManuGH/ad-normalizer/internal/validate"
)

var (
	httpSchemes   = []string{"http", "https"}
	bucketSchemes = []string{"s3", "gs", "http", "https", "file"}
	redisSchemes  = []string{"redis", "rediss"}
)

// Validate checks cfg and returns the compiled key pattern.
func Validate(cfg AppConfig) (*regexp.Regexp, error) {
	v := validate.New()

	v.URL("AD_SERVER_URL", cfg.AdServer.URL, httpSchemes)
	v.URL("ASSET_SERVER_URL", cfg.Encore.AssetServerURL, httpSchemes)
	v.URL("ENCORE_URL", cfg.Encore.URL, httpSchemes)
	v.URL("REDIS_URL", cfg.Redis.URL, redisSchemes)
	v.URL("OUTPUT_BUCKET_URL", cfg.Encore.OutputBucketURL, bucketSchemes)
	v.URL("ROOT_URL", cfg.Server.RootURL, httpSchemes)
	v.OptionalURL("KPI_POST_URL", cfg.KPI.PostURL, httpSchemes)

	v.Port("PORT", cfg.Server.Port)
	v.ListenAddr("METRICS_ADDR", cfg.Server.MetricsAddr)
	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("LOG_LEVEL", err.Error(), cfg.LogLevel)
	}

	v.NotEmpty("KEY_FIELD", cfg.Normalize.KeyField)
	re := v.Regexp("KEY_REGEX", cfg.Normalize.KeyRegex)
	v.NotEmpty("ENCORE_PROFILE", cfg.Encore.Profile)
	if !cfg.Encore.JITPackage {
		v.NotEmpty("PACKAGING_QUEUE", cfg.Encore.PackagingQueue)
	}

	v.PositiveDuration("IN_FLIGHT_TTL", cfg.Normalize.InFlightTTL)
	v.PositiveDuration("DISPATCH_TIMEOUT", cfg.Normalize.DispatchTimeout)
	v.PositiveDuration("UPSTREAM_TIMEOUT", cfg.AdServer.Timeout)
	v.PositiveDuration("ENCORE_TIMEOUT", cfg.Encore.Timeout)
	v.PositiveDuration("KPI_INTERVAL", cfg.KPI.Interval)
	v.PositiveDuration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	v.PositiveFloat("ENCORE_SUBMIT_RPS", cfg.Encore.SubmitRPS)
	v.Range("ENCORE_MAX_RETRIES", cfg.Encore.MaxRetries, 0, 10)

	if cfg.Server.RateLimitRPS < 0 {
		v.AddError("RATE_LIMIT_RPS", "value cannot be negative", cfg.Server.RateLimitRPS)
	}
	if cfg.Server.RateLimitRPS > 0 {
		v.Positive("RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	}
	if cfg.Redis.LookupCacheTTL < 0 {
		v.AddError("LOOKUP_CACHE_TTL", "duration cannot be negative", cfg.Redis.LookupCacheTTL)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("OTEL_EXPORTER_TYPE", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("OTEL_EXPORTER_ENDPOINT", cfg.Telemetry.Endpoint)
		if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
			v.AddError("OTEL_SAMPLING_RATE", "value must be between 0 and 1", cfg.Telemetry.SamplingRate)
		}
	}

	if err := v.Err(); err != nil {
		return nil, err
	}
	return re, nil
}
