// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/metrics"
	"github.com/ManuGH/ad-normalizer/internal/resilience"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
)

const (
	jobsPath     = "/encoreJobs"
	halJSON      = "application/hal+json"
	tokenHeader  = "x-jwt"
	maxErrorBody = 4 << 10

	defaultTimeout     = 10 * time.Second
	defaultRetries     = 2
	defaultBackoff     = 200 * time.Millisecond
	defaultMaxBackoff  = 2 * time.Second
	defaultSubmitRate  = 5
	defaultSubmitBurst = 10
)

// ErrUnexpectedStatus matches every StatusError.
var ErrUnexpectedStatus = errors.New("encore: unexpected status")

// StatusError carries a non-success Encore response.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("encore %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Options configures the Encore client.
type Options struct {
	Token            string // sent as a bearer token in x-jwt
	Timeout          time.Duration
	MaxRetries       int
	Backoff          time.Duration
	MaxBackoff       time.Duration
	SubmitRate       rate.Limit
	SubmitBurst      int
	BreakerThreshold int
	BreakerReset     time.Duration
	Transport        http.RoundTripper
}

// Client is the Encore REST client. Calls are retried with exponential
// backoff on transport errors and 5xx responses and guarded by a circuit
// breaker. Job submissions are rate limited.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
	limiter    *rate.Limiter
	breaker    *resilience.CircuitBreaker
	maxTries   uint
	backoff    time.Duration
	maxBackoff time.Duration
	logger     zerolog.Logger
}

// NewClient creates a client for the Encore instance at baseURL.
func NewClient(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse encore url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("encore url %q: scheme and host required", baseURL)
	}
	opts = normalizeOptions(opts)

	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout:   opts.Timeout,
			Transport: otelhttp.NewTransport(opts.Transport),
		},
		token:   opts.Token,
		limiter: rate.NewLimiter(opts.SubmitRate, opts.SubmitBurst),
		breaker: resilience.NewCircuitBreaker("encore", opts.BreakerThreshold, opts.BreakerReset,
			resilience.WithFailureFilter(countsAgainstBreaker)),
		maxTries:   uint(opts.MaxRetries) + 1,
		backoff:    opts.Backoff,
		maxBackoff: opts.MaxBackoff,
		logger:     log.WithComponent("encore"),
	}, nil
}

func normalizeOptions(opts Options) Options {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	} else if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = defaultMaxBackoff
	}
	if opts.SubmitRate <= 0 {
		opts.SubmitRate = defaultSubmitRate
	}
	if opts.SubmitBurst <= 0 {
		opts.SubmitBurst = defaultSubmitBurst
	}
	if opts.Transport == nil {
		opts.Transport = &http.Transport{
			MaxIdleConns:          100,
			MaxIdleConnsPerHost:   20,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: opts.Timeout,
			TLSHandshakeTimeout:   5 * time.Second,
		}
	}
	return opts
}

// Client errors and cancellations say nothing about Encore's health.
func countsAgainstBreaker(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return !errors.Is(err, context.Canceled)
}

// Breaker exposes the circuit breaker for health reporting.
func (c *Client) Breaker() *resilience.CircuitBreaker { return c.breaker }

// JobURL is the canonical URL of a job.
func (c *Client) JobURL(id string) string {
	return c.baseURL.JoinPath(jobsPath, id).String()
}

// CreateJob submits job and returns Encore's view of it.
func (c *Client) CreateJob(ctx context.Context, job Job) (Job, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return Job{}, fmt.Errorf("encore submit: %w", err)
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, fmt.Errorf("encode job: %w", err)
	}
	var created Job
	err = c.call(ctx, "create_job", http.MethodPost, c.baseURL.JoinPath(jobsPath).String(), body, http.StatusCreated, &created)
	if err != nil {
		return Job{}, err
	}
	c.logger.Info().
		Str(log.FieldJobID, created.ID).
		Str(log.FieldCreativeID, created.ExternalID).
		Msg("submitted encore job")
	return created, nil
}

// GetJob fetches a job by id.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	if strings.TrimSpace(id) == "" {
		return Job{}, errors.New("encore: empty job id")
	}
	var job Job
	if err := c.call(ctx, "get_job", http.MethodGet, c.JobURL(id), nil, http.StatusOK, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (c *Client) call(ctx context.Context, op, method, rawURL string, body []byte, want int, out any) error {
	ctx, span := telemetry.Tracer("encore").Start(ctx, "encore."+op, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	attempt := 0
	operation := func() (struct{}, error) {
		attempt++
		start := time.Now()
		status, err := c.attempt(ctx, op, method, rawURL, body, want, out)
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.ObserveEncoreRequest(op, result, time.Since(start))
		span.SetAttributes(telemetry.HTTPAttributes(method, jobsPath, rawURL, status)...)
		return struct{}{}, err
	}
	notify := func(err error, wait time.Duration) {
		metrics.RecordEncoreRetry(op)
		c.logger.Warn().Err(err).
			Str("operation", op).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Msg("retrying encore request")
	}

	err := c.breaker.Execute(func() error {
		_, err := backoff.Retry(ctx, operation,
			backoff.WithBackOff(c.newBackOff()),
			backoff.WithMaxTries(c.maxTries),
			backoff.WithNotify(notify),
		)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetStatus(codes.Ok, "")
	return nil
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.backoff
	b.MaxInterval = c.maxBackoff
	return b
}

// attempt performs one request. Errors that retrying cannot fix are marked
// permanent.
func (c *Client) attempt(ctx context.Context, op, method, rawURL string, body []byte, want int, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Accept", halJSON)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set(tokenHeader, "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("encore %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != want {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		se := &StatusError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusTooManyRequests {
			return resp.StatusCode, backoff.Permanent(se)
		}
		return resp.StatusCode, se
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("decode encore %s response: %w", op, err))
	}
	return resp.StatusCode, nil
}
