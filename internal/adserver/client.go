// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package adserver fetches VAST and VMAP documents from the upstream ad
// server on behalf of a player request.
package adserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/metrics"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
)

// Headers forwarded from the player request.
const (
	HeaderDeviceUserAgent = "X-Device-User-Agent"
	HeaderForwardedFor    = "X-Forwarded-For"

	subdomainParam  = "subdomain"
	defaultTimeout  = 10 * time.Second
	maxDocumentSize = 10 << 20
)

// StatusError is a non-200 ad server response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ad server returned status %d", e.StatusCode)
}

// Client fetches documents from a single ad server.
type Client struct {
	base       *url.URL
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewClient creates a client for baseURL. A nil transport uses the default.
func NewClient(baseURL string, timeout time.Duration, transport http.RoundTripper) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ad server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("ad server url %q: scheme and host required", baseURL)
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		base: u,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		logger: log.WithComponent("adserver"),
	}, nil
}

// Fetch requests a document for the inbound player request. It never fails:
// on any upstream error the empty document of kind is returned.
func (c *Client) Fetch(ctx context.Context, inbound *http.Request, kind adxml.Kind) []byte {
	start := time.Now()
	body, err := c.fetch(ctx, inbound)
	result := "ok"
	if err != nil {
		result = "error"
		var se *StatusError
		if errors.As(err, &se) {
			result = "status_" + fmt.Sprint(se.StatusCode)
		}
	}
	metrics.UpstreamDuration.WithLabelValues(kind.String(), result).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.RecordFallback("upstream")
		logger := log.WithContext(ctx, c.logger)
		logger.Warn().Err(err).
			Str(log.FieldEvent, "upstream.failed").
			Str(log.FieldKind, kind.String()).
			Msg("ad server request failed, serving empty document")
		return adxml.EmptyDocument(kind)
	}
	return body
}

func (c *Client) fetch(ctx context.Context, inbound *http.Request) ([]byte, error) {
	ctx, span := telemetry.Tracer("adserver").Start(ctx, "adserver.fetch", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	target := c.TargetURL(inbound.URL.Query())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	forwardHeaders(inbound, req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	span.SetAttributes(telemetry.HTTPAttributes(http.MethodGet, target.Path, target.Host, resp.StatusCode)...)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDocumentSize))
		err := &StatusError{StatusCode: resp.StatusCode}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	body, err := readBody(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

// TargetURL builds the upstream URL: the inbound query minus the subdomain
// parameter, with the subdomain replacing the first host label.
func (c *Client) TargetURL(query url.Values) url.URL {
	target := *c.base
	out := url.Values{}
	for k, vs := range c.base.Query() {
		out[k] = vs
	}
	sub := ""
	for k, vs := range query {
		if strings.EqualFold(k, subdomainParam) {
			if len(vs) > 0 {
				sub = vs[0]
			}
			continue
		}
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	if sub != "" {
		target = ReplaceSubdomain(target, sub)
	}
	target.RawQuery = out.Encode()
	return target
}

// Subdomain returns the subdomain query parameter, matched case-insensitively.
func Subdomain(query url.Values) string {
	for k, vs := range query {
		if strings.EqualFold(k, subdomainParam) && len(vs) > 0 {
			return vs[0]
		}
	}
	return ""
}

// ReplaceSubdomain swaps the first label of the host for sub. Hosts with
// two labels or fewer get sub prepended instead.
func ReplaceSubdomain(u url.URL, sub string) url.URL {
	host := u.Hostname()
	port := u.Port()
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels[0] = sub
		host = strings.Join(labels, ".")
	} else {
		host = sub + "." + host
	}
	if port != "" {
		host += ":" + port
	}
	u.Host = host
	return u
}

func forwardHeaders(inbound, out *http.Request) {
	if ua := inbound.Header.Get(HeaderDeviceUserAgent); ua != "" {
		out.Header.Set("User-Agent", ua)
		out.Header.Set(HeaderDeviceUserAgent, ua)
	} else if ua := inbound.UserAgent(); ua != "" {
		out.Header.Set("User-Agent", ua)
	}
	if ff := inbound.Header.Get(HeaderForwardedFor); ff != "" {
		out.Header.Set(HeaderForwardedFor, ff)
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	if strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("open gzip body: %w", err)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	body, err := io.ReadAll(io.LimitReader(r, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("read ad server body: %w", err)
	}
	return body, nil
}
