// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/xid"
	"gopkg.in/yaml.v3"
)

// Loader resolves AppConfig.
type Loader struct {
	configPath string
	envFile    string
	version    string
	lookup     LookupFunc

	// ConsumedEnvKeys lists every environment key Load consulted.
	ConsumedEnvKeys map[string]struct{}
}

// LoaderOption customizes a Loader.
type LoaderOption func(*Loader)

// WithEnvFile loads a dotenv file before reading the environment. Variables
// already present in the process environment win.
func WithEnvFile(path string) LoaderOption {
	return func(l *Loader) { l.envFile = path }
}

// WithLookup replaces os.LookupEnv. Tests use it to avoid touching the
// process environment.
func WithLookup(fn LookupFunc) LoaderOption {
	return func(l *Loader) { l.lookup = fn }
}

// NewLoader creates a loader. configPath may be empty.
func NewLoader(configPath, version string, opts ...LoaderOption) *Loader {
	l := &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load loads configuration with precedence: ENV > File > Defaults.
func (l *Loader) Load() (AppConfig, error) {
	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("load env file %s: %w", l.envFile, err)
		}
	}

	cfg := defaults()
	cfg.Version = l.version

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return AppConfig{}, fmt.Errorf("load config file: %w", err)
		}
		mergeFile(&cfg, fileCfg)
	}

	l.mergeEnv(&cfg)

	if cfg.InstanceID == "" {
		cfg.InstanceID = defaultInstanceID()
	}

	re, err := Validate(cfg)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.KeyPattern = re
	return cfg, nil
}

func defaults() AppConfig {
	return AppConfig{
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8000,
			MetricsAddr:     ":9090",
			RateLimitBurst:  20,
			ShutdownTimeout: 15 * time.Second,
		},
		AdServer: AdServerConfig{Timeout: 10 * time.Second},
		Encore: EncoreConfig{
			Profile:        "program",
			PackagingQueue: "package",
			SubmitRPS:      5,
			Timeout:        10 * time.Second,
			MaxRetries:     3,
		},
		Normalize: NormalizeConfig{
			KeyField:        "universaladid",
			KeyRegex:        "[^a-zA-Z0-9]",
			InFlightTTL:     time.Hour,
			DispatchTimeout: 30 * time.Second,
		},
		KPI: KPIConfig{Interval: time.Minute},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			SamplingRate: 1.0,
		},
	}
}

func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format %q (use .yaml or .yml)", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return &fileCfg, nil
}

// mergeFile copies every non-zero file value over the defaults.
func mergeFile(cfg *AppConfig, f *FileConfig) {
	setString(&cfg.Environment, f.Environment)
	setString(&cfg.LogLevel, f.LogLevel)

	setInt(&cfg.Server.Port, f.Server.Port)
	setString(&cfg.Server.MetricsAddr, f.Server.MetricsAddr)
	setString(&cfg.Server.RootURL, f.Server.RootURL)
	setFloat(&cfg.Server.RateLimitRPS, f.Server.RateLimitRPS)
	setInt(&cfg.Server.RateLimitBurst, f.Server.RateLimitBurst)
	if len(f.Server.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = f.Server.CORSOrigins
	}
	setDuration(&cfg.Server.ShutdownTimeout, f.Server.ShutdownTimeout)

	setString(&cfg.AdServer.URL, f.AdServer.URL)
	setDuration(&cfg.AdServer.Timeout, f.AdServer.Timeout)

	setString(&cfg.Encore.URL, f.Encore.URL)
	setString(&cfg.Encore.Profile, f.Encore.Profile)
	setString(&cfg.Encore.Token, f.Encore.Token)
	setString(&cfg.Encore.OutputBucketURL, f.Encore.OutputBucketURL)
	setString(&cfg.Encore.AssetServerURL, f.Encore.AssetServerURL)
	cfg.Encore.JITPackage = cfg.Encore.JITPackage || f.Encore.JITPackage
	setString(&cfg.Encore.PackagingQueue, f.Encore.PackagingQueue)
	setFloat(&cfg.Encore.SubmitRPS, f.Encore.SubmitRPS)
	setDuration(&cfg.Encore.Timeout, f.Encore.Timeout)
	setInt(&cfg.Encore.MaxRetries, f.Encore.MaxRetries)

	setString(&cfg.Redis.URL, f.Redis.URL)
	cfg.Redis.Cluster = cfg.Redis.Cluster || f.Redis.Cluster
	setDuration(&cfg.Redis.LookupCacheTTL, f.Redis.LookupCacheTTL)

	setString(&cfg.Normalize.KeyField, f.Normalize.KeyField)
	setString(&cfg.Normalize.KeyRegex, f.Normalize.KeyRegex)
	setDuration(&cfg.Normalize.InFlightTTL, f.Normalize.InFlightTTL)
	setDuration(&cfg.Normalize.DispatchTimeout, f.Normalize.DispatchTimeout)

	setString(&cfg.KPI.PostURL, f.KPI.PostURL)
	setDuration(&cfg.KPI.Interval, f.KPI.Interval)

	cfg.Telemetry.Enabled = cfg.Telemetry.Enabled || f.Telemetry.Enabled
	setString(&cfg.Telemetry.Exporter, f.Telemetry.Exporter)
	setString(&cfg.Telemetry.Endpoint, f.Telemetry.Endpoint)
	setFloat(&cfg.Telemetry.SamplingRate, f.Telemetry.SamplingRate)
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	lookup := l.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	e := newEnv(func(key string) (string, bool) {
		l.ConsumedEnvKeys[key] = struct{}{}
		return lookup(key)
	})

	cfg.Version = e.String("VERSION", cfg.Version)
	cfg.Environment = e.String("ENVIRONMENT", cfg.Environment)
	cfg.InstanceID = e.String("INSTANCEID", cfg.InstanceID)
	cfg.LogLevel = e.String("LOG_LEVEL", cfg.LogLevel)

	cfg.Server.Port = e.Int("PORT", cfg.Server.Port)
	cfg.Server.MetricsAddr = e.String("METRICS_ADDR", cfg.Server.MetricsAddr)
	cfg.Server.RootURL = e.String("ROOT_URL", cfg.Server.RootURL)
	cfg.Server.RateLimitRPS = e.Float("RATE_LIMIT_RPS", cfg.Server.RateLimitRPS)
	cfg.Server.RateLimitBurst = e.Int("RATE_LIMIT_BURST", cfg.Server.RateLimitBurst)
	cfg.Server.CORSOrigins = e.List("CORS_ALLOWED_ORIGINS", cfg.Server.CORSOrigins)
	cfg.Server.ShutdownTimeout = e.Duration("SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.AdServer.URL = e.String("AD_SERVER_URL", cfg.AdServer.URL)
	cfg.AdServer.Timeout = e.Duration("UPSTREAM_TIMEOUT", cfg.AdServer.Timeout)

	cfg.Encore.URL = e.String("ENCORE_URL", cfg.Encore.URL)
	cfg.Encore.Profile = e.String("ENCORE_PROFILE", cfg.Encore.Profile)
	cfg.Encore.Token = e.String("ENCORE_TOKEN", cfg.Encore.Token)
	cfg.Encore.OutputBucketURL = e.String("OUTPUT_BUCKET_URL", cfg.Encore.OutputBucketURL)
	cfg.Encore.AssetServerURL = e.String("ASSET_SERVER_URL", cfg.Encore.AssetServerURL)
	cfg.Encore.JITPackage = e.Bool("JIT_PACKAGE", cfg.Encore.JITPackage)
	cfg.Encore.PackagingQueue = e.String("PACKAGING_QUEUE", cfg.Encore.PackagingQueue)
	cfg.Encore.SubmitRPS = e.Float("ENCORE_SUBMIT_RPS", cfg.Encore.SubmitRPS)
	cfg.Encore.Timeout = e.Duration("ENCORE_TIMEOUT", cfg.Encore.Timeout)
	cfg.Encore.MaxRetries = e.Int("ENCORE_MAX_RETRIES", cfg.Encore.MaxRetries)

	cfg.Redis.URL = e.String("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Cluster = e.Bool("REDIS_CLUSTER", cfg.Redis.Cluster)
	cfg.Redis.LookupCacheTTL = e.Duration("LOOKUP_CACHE_TTL", cfg.Redis.LookupCacheTTL)

	cfg.Normalize.KeyField = e.String("KEY_FIELD", cfg.Normalize.KeyField)
	cfg.Normalize.KeyRegex = e.String("KEY_REGEX", cfg.Normalize.KeyRegex)
	cfg.Normalize.InFlightTTL = e.Duration("IN_FLIGHT_TTL", cfg.Normalize.InFlightTTL)
	cfg.Normalize.DispatchTimeout = e.Duration("DISPATCH_TIMEOUT", cfg.Normalize.DispatchTimeout)

	cfg.KPI.PostURL = e.String("KPI_POST_URL", cfg.KPI.PostURL)
	cfg.KPI.Interval = e.Duration("KPI_INTERVAL", cfg.KPI.Interval)

	cfg.Telemetry.Enabled = e.Bool("OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = e.String("OTEL_EXPORTER_TYPE", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = e.String("OTEL_EXPORTER_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = e.Float("OTEL_SAMPLING_RATE", cfg.Telemetry.SamplingRate)
}

func defaultInstanceID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return xid.New().String()
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
