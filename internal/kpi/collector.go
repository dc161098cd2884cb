// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package kpi aggregates per-subdomain ad counts and exports them
// periodically to an external collector.
package kpi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ad-normalizer/internal/log"
)

const (
	defaultInterval = time.Minute
	postTimeout     = 5 * time.Second
	bufferSize      = 1000
)

// Counts are the KPIs of one subdomain for one export window.
type Counts struct {
	Service     string `json:"service"`
	BrokenAds   int    `json:"broken_ads"`
	IngestedAds int    `json:"ingested_ads"`
	ServedAds   int    `json:"served_ads"`
}

// Report is the exported body, keyed by subdomain.
type Report map[string]*Counts

type event struct {
	subdomain                string
	served, ingested, broken int
}

// Collector aggregates counts on a single goroutine and posts a report every
// interval. Events beyond the buffer are dropped rather than blocking the
// request path.
type Collector struct {
	postURL    string
	interval   time.Duration
	httpClient *http.Client
	logger     zerolog.Logger

	events chan event
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once

	current Report
	// posts tracks in-flight exports so Stop can wait for them.
	posts sync.WaitGroup
}

// Option configures a Collector.
type Option func(*Collector)

// WithHTTPClient replaces the client used for exports.
func WithHTTPClient(c *http.Client) Option {
	return func(col *Collector) { col.httpClient = c }
}

// NewCollector starts a collector. An empty postURL keeps aggregating but
// only logs the reports.
func NewCollector(postURL string, interval time.Duration, opts ...Option) *Collector {
	if interval <= 0 {
		interval = defaultInterval
	}
	c := &Collector{
		postURL:    postURL,
		interval:   interval,
		httpClient: &http.Client{Timeout: postTimeout},
		logger:     log.WithComponent("kpi"),
		events:     make(chan event, bufferSize),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		current:    Report{},
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.run()
	return c
}

// Record queues one request's counts.
func (c *Collector) Record(subdomain string, served, ingested, broken int) {
	select {
	case c.events <- event{subdomain: subdomain, served: served, ingested: ingested, broken: broken}:
	default:
		c.logger.Warn().Str(log.FieldSubdomain, subdomain).Msg("kpi buffer full, dropping event")
	}
}

// Stop flushes pending events, exports the final report and waits for
// outstanding posts. It is safe to call more than once.
func (c *Collector) Stop() {
	c.once.Do(func() { close(c.stop) })
	<-c.done
	c.posts.Wait()
}

func (c *Collector) run() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.events:
			c.add(ev)
		case <-ticker.C:
			c.export()
		case <-c.stop:
			c.drain()
			c.export()
			c.logger.Info().Msg("kpi collector stopped")
			return
		}
	}
}

func (c *Collector) drain() {
	for {
		select {
		case ev := <-c.events:
			c.add(ev)
		default:
			return
		}
	}
}

func (c *Collector) add(ev event) {
	counts, ok := c.current[ev.subdomain]
	if !ok {
		counts = &Counts{Service: ev.subdomain}
		c.current[ev.subdomain] = counts
	}
	if ev.broken > 0 {
		counts.BrokenAds += ev.broken
	}
	if ev.ingested > 0 {
		counts.IngestedAds += ev.ingested
	}
	if ev.served > 0 {
		counts.ServedAds += ev.served
	}
}

func (c *Collector) export() {
	if len(c.current) == 0 {
		return
	}
	body, err := json.Marshal(c.current)
	c.current = Report{}
	if err != nil {
		c.logger.Error().Err(err).Msg("could not marshal kpi report")
		return
	}
	c.logger.Debug().RawJSON("report", body).Msg("reporting kpis")
	if c.postURL == "" {
		return
	}
	c.posts.Add(1)
	go func() {
		defer c.posts.Done()
		if err := c.post(body); err != nil {
			c.logger.Error().Err(err).Msg("could not report kpis")
		}
	}()
}

func (c *Collector) post(body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build kpi request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("kpi endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
