// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ad-normalizer/internal/log"
)

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// env reads typed values through lookup and logs where each came from.
type env struct {
	lookup LookupFunc
	logger zerolog.Logger
}

func newEnv(lookup LookupFunc) env {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return env{lookup: lookup, logger: log.WithComponent("config")}
}

func sensitive(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "token") || strings.Contains(k, "password")
}

// get returns the raw value; empty values count as unset.
func (e env) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// String reads a string or returns def.
func (e env) String(key, def string) string {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	ev := e.logger.Debug().Str("key", key).Str("source", "environment")
	if sensitive(key) {
		ev = ev.Bool("sensitive", true)
	} else {
		ev = ev.Str("value", v)
	}
	ev.Msg("using environment variable")
	return v
}

// Int reads an integer, falling back to def on parse errors.
func (e env) Int(key string, def int) int {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.logger.Warn().
			Str("key", key).
			Str("value", v).
			Int("default", def).
			Msg("invalid integer in environment variable, using default")
		return def
	}
	return i
}

// Duration reads a Go duration ("5s"). A bare integer is taken as seconds.
func (e env) Duration(key string, def time.Duration) time.Duration {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.logger.Warn().
			Str("key", key).
			Str("value", v).
			Dur("default", def).
			Msg("invalid duration in environment variable, using default")
		return def
	}
	return d
}

// Bool accepts true/false, 1/0 and yes/no in any case.
func (e env) Bool(key string, def bool) bool {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		e.logger.Warn().
			Str("key", key).
			Str("value", v).
			Bool("default", def).
			Msg("invalid boolean in environment variable, using default")
		return def
	}
}

// Float reads a float64, falling back to def on parse errors.
func (e env) Float(key string, def float64) float64 {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.logger.Warn().
			Str("key", key).
			Str("value", v).
			Float64("default", def).
			Msg("invalid float in environment variable, using default")
		return def
	}
	return f
}

// List splits a comma separated value, dropping empty items.
func (e env) List(key string, def []string) []string {
	v, ok := e.get(key)
	if !ok {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
