// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adserver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
)

const vastBody = `<VAST version="4.0"><Ad id="a"/></VAST>`

func TestReplaceSubdomain(t *testing.T) {
	tests := []struct {
		in, sub, want string
	}{
		{"https://ads.example.com/vast", "tenant", "https://tenant.example.com/vast"},
		{"https://example.com/vast", "tenant", "https://tenant.example.com/vast"},
		{"http://localhost:8080/vast", "tenant", "http://tenant.localhost:8080/vast"},
		{"https://a.b.example.com", "x", "https://x.b.example.com"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		require.NoError(t, err)
		got := ReplaceSubdomain(*u, tt.sub)
		assert.Equal(t, tt.want, got.String())
	}
}

func TestSubdomain(t *testing.T) {
	assert.Equal(t, "t1", Subdomain(url.Values{"SubDomain": {"t1"}}))
	assert.Empty(t, Subdomain(url.Values{"other": {"x"}}))
}

func TestTargetURL(t *testing.T) {
	c, err := NewClient("https://ads.example.com/api/vast?fixed=1", 0, nil)
	require.NoError(t, err)

	target := c.TargetURL(url.Values{"dur": {"30"}, "subdomain": {"tenant"}})
	assert.Equal(t, "tenant.example.com", target.Host)
	assert.Equal(t, "/api/vast", target.Path)
	assert.Equal(t, url.Values{"dur": {"30"}, "fixed": {"1"}}, target.Query())
}

func TestNewClient_Invalid(t *testing.T) {
	_, err := NewClient("/relative", 0, nil)
	require.Error(t, err)
}

func TestFetch_ForwardsQueryAndHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "30", r.URL.Query().Get("dur"))
		assert.Equal(t, "SmartTV/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "SmartTV/1.0", r.Header.Get(HeaderDeviceUserAgent))
		assert.Equal(t, "203.0.113.9", r.Header.Get(HeaderForwardedFor))
		assert.Empty(t, r.Header.Get("Cookie"))
		_, _ = w.Write([]byte(vastBody))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0, nil)
	require.NoError(t, err)

	inbound := httptest.NewRequest(http.MethodGet, "/api/v1/vast?dur=30", nil)
	inbound.Header.Set(HeaderDeviceUserAgent, "SmartTV/1.0")
	inbound.Header.Set(HeaderForwardedFor, "203.0.113.9")
	inbound.Header.Set("Cookie", "session=1")

	assert.Equal(t, vastBody, string(c.Fetch(context.Background(), inbound, adxml.KindVAST)))
}

func TestFetch_GzipBody(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte(vastBody))
	require.NoError(t, gz.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		_, _ = w.Write(buf.Bytes())
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0, nil)
	require.NoError(t, err)
	got := c.Fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil), adxml.KindVAST)
	assert.Equal(t, vastBody, string(got))
}

func TestFetch_FailuresYieldEmptyDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0, nil)
	require.NoError(t, err)
	inbound := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.Equal(t, adxml.EmptyDocument(adxml.KindVMAP), c.Fetch(context.Background(), inbound, adxml.KindVMAP))

	srv.Close()
	assert.Equal(t, adxml.EmptyDocument(adxml.KindVAST), c.Fetch(context.Background(), inbound, adxml.KindVAST))
}

func TestFetch_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, 0, nil)
	require.NoError(t, err)
	_, err = c.fetch(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
}
