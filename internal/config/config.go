// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads the ad normalizer's immutable runtime configuration
// from defaults, an optional YAML file and the environment.
package config

import (
	"net/url"
	"regexp"
	"time"
)

// AppConfig is the resolved configuration. It is built once by Loader.Load
// and passed by value afterwards.
type AppConfig struct {
	Version     string
	Environment string
	InstanceID  string
	LogLevel    string

	Server    ServerConfig
	AdServer  AdServerConfig
	Encore    EncoreConfig
	Redis     RedisConfig
	Normalize NormalizeConfig
	KPI       KPIConfig
	Telemetry TelemetryConfig

	// KeyPattern is Normalize.KeyRegex compiled.
	KeyPattern *regexp.Regexp
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	MetricsAddr     string        `yaml:"metricsAddr"`
	RootURL         string        `yaml:"rootUrl"`
	RateLimitRPS    float64       `yaml:"rateLimitRps"` // 0 disables ingress rate limiting
	RateLimitBurst  int           `yaml:"rateLimitBurst"`
	CORSOrigins     []string      `yaml:"corsAllowedOrigins"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type AdServerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type EncoreConfig struct {
	URL             string        `yaml:"url"`
	Profile         string        `yaml:"profile"`
	Token           string        `yaml:"token"`
	OutputBucketURL string        `yaml:"outputBucketUrl"`
	AssetServerURL  string        `yaml:"assetServerUrl"`
	JITPackage      bool          `yaml:"jitPackage"`
	PackagingQueue  string        `yaml:"packagingQueue"`
	SubmitRPS       float64       `yaml:"submitRps"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxRetries      int           `yaml:"maxRetries"`
}

type RedisConfig struct {
	URL            string        `yaml:"url"`
	Cluster        bool          `yaml:"cluster"`
	LookupCacheTTL time.Duration `yaml:"lookupCacheTtl"`
}

type NormalizeConfig struct {
	KeyField        string        `yaml:"keyField"`
	KeyRegex        string        `yaml:"keyRegex"`
	InFlightTTL     time.Duration `yaml:"inFlightTtl"`
	DispatchTimeout time.Duration `yaml:"dispatchTimeout"`
}

type KPIConfig struct {
	PostURL  string        `yaml:"postUrl"`
	Interval time.Duration `yaml:"interval"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// FileConfig is the YAML file layout. Unknown keys are rejected.
type FileConfig struct {
	Environment string          `yaml:"environment"`
	LogLevel    string          `yaml:"logLevel"`
	Server      ServerConfig    `yaml:"server"`
	AdServer    AdServerConfig  `yaml:"adServer"`
	Encore      EncoreConfig    `yaml:"encore"`
	Redis       RedisConfig     `yaml:"redis"`
	Normalize   NormalizeConfig `yaml:"normalize"`
	KPI         KPIConfig       `yaml:"kpi"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// URLs holds the parsed service URLs.
type URLs struct {
	AdServer     *url.URL
	AssetServer  *url.URL
	Encore       *url.URL
	OutputBucket *url.URL
	Root         *url.URL
}

// ParsedURLs parses the URL fields. Load has validated them already.
func (c AppConfig) ParsedURLs() (URLs, error) {
	var out URLs
	for _, f := range []struct {
		raw string
		dst **url.URL
	}{
		{c.AdServer.URL, &out.AdServer},
		{c.Encore.AssetServerURL, &out.AssetServer},
		{c.Encore.URL, &out.Encore},
		{c.Encore.OutputBucketURL, &out.OutputBucket},
		{c.Server.RootURL, &out.Root},
	} {
		u, err := url.Parse(f.raw)
		if err != nil {
			return URLs{}, err
		}
		*f.dst = u
	}
	return out, nil
}

// Production reports whether the service runs in the production environment.
func (c AppConfig) Production() bool {
	return c.Environment == "production" || c.Environment == "PRODUCTION"
}
