// SPDX-License-Identifier: MIT
package validate

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name           string
		value          string
		allowedSchemes []string
		wantErr        bool
	}{
		{"valid http", "http://example.com", []string{"http", "https"}, false},
		{"valid https", "https://example.com", []string{"http", "https"}, false},
		{"redis", "redis://cache:6379/0", []string{"redis", "rediss"}, false},
		{"any scheme", "s3://bucket", nil, false},
		{"empty url", "", []string{"http"}, true},
		{"no host", "http://", []string{"http"}, true},
		{"invalid scheme", "ftp://example.com", []string{"http", "https"}, true},
		{"no scheme", "example.com", []string{"http"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("testURL", tt.value, tt.allowedSchemes)

			if tt.wantErr && v.IsValid() {
				t.Errorf("expected error, got none")
			}
			if !tt.wantErr && !v.IsValid() {
				t.Errorf("unexpected error: %v", v.Err())
			}
		})
	}
}

func TestValidator_OptionalURL(t *testing.T) {
	v := New()
	v.OptionalURL("kpi", "", []string{"https"})
	if !v.IsValid() {
		t.Fatalf("empty optional URL should pass: %v", v.Err())
	}
	v.OptionalURL("kpi", "ftp://x", []string{"https"})
	if v.IsValid() {
		t.Fatal("expected scheme error")
	}
}

func TestValidator_Port(t *testing.T) {
	for _, port := range []int{1, 80, 65535} {
		v := New()
		v.Port("port", port)
		if !v.IsValid() {
			t.Errorf("port %d: unexpected error %v", port, v.Err())
		}
	}
	for _, port := range []int{0, -1, 65536} {
		v := New()
		v.Port("port", port)
		if v.IsValid() {
			t.Errorf("port %d: expected error", port)
		}
	}
}

func TestValidator_ListenAddr(t *testing.T) {
	tests := map[string]bool{
		":9090":          false,
		"127.0.0.1:8000": false,
		"9090":           true,
		"":               true,
		"host:":          true,
	}
	for addr, wantErr := range tests {
		v := New()
		v.ListenAddr("addr", addr)
		if wantErr == v.IsValid() {
			t.Errorf("ListenAddr(%q): wantErr=%v, errors=%v", addr, wantErr, v.Err())
		}
	}
}

func TestValidator_Regexp(t *testing.T) {
	v := New()
	if re := v.Regexp("key", "[^a-zA-Z0-9]"); re == nil || !v.IsValid() {
		t.Fatalf("expected valid regexp, got %v", v.Err())
	}
	if re := v.Regexp("key", "[unterminated"); re != nil {
		t.Fatal("expected nil for invalid pattern")
	}
	if v.IsValid() {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestValidator_Numbers(t *testing.T) {
	v := New()
	v.Positive("a", 1)
	v.PositiveDuration("b", time.Second)
	v.PositiveFloat("c", 0.5)
	v.Range("d", 5, 1, 10)
	if !v.IsValid() {
		t.Fatalf("unexpected errors: %v", v.Err())
	}

	v.Positive("a", 0)
	v.PositiveDuration("b", 0)
	v.PositiveFloat("c", -1)
	v.Range("d", 11, 1, 10)
	if got := len(v.Errors()); got != 4 {
		t.Fatalf("expected 4 errors, got %d", got)
	}
}

func TestValidator_NotEmptyAndOneOf(t *testing.T) {
	v := New()
	v.NotEmpty("name", "   ")
	v.OneOf("field", "url", []string{"universaladid", "url", "resolution"})
	v.OneOf("field", "bogus", []string{"universaladid", "url"})
	if got := len(v.Errors()); got != 2 {
		t.Fatalf("expected 2 errors, got %d: %v", got, v.Err())
	}
}

func TestValidator_Custom(t *testing.T) {
	v := New()
	v.Custom("queue", "", func(val any) error {
		if val.(string) == "" {
			return errors.New("queue name required")
		}
		return nil
	})
	if v.IsValid() {
		t.Fatal("expected custom error")
	}
}

func TestValidationError_Message(t *testing.T) {
	v := New()
	if v.Err() != nil {
		t.Fatal("expected nil error for valid validator")
	}
	v.AddError("a", "bad", 1)
	if got := v.Err().Error(); got != "validation failed for a: bad" {
		t.Fatalf("unexpected single message %q", got)
	}
	v.AddError("b", "worse", 2)
	err := v.Err()
	if !strings.Contains(err.Error(), "; ") {
		t.Fatalf("expected joined message, got %q", err.Error())
	}
	var ve ValidationError
	if !errors.As(err, &ve) || len(ve.Errors()) != 2 {
		t.Fatalf("expected ValidationError with 2 entries, got %v", err)
	}
}

func TestParseLogLevel(t *testing.T) {
	for _, s := range []string{"debug", "INFO", " warn ", "trace", "error"} {
		if _, err := ParseLogLevel(s); err != nil {
			t.Errorf("ParseLogLevel(%q): %v", s, err)
		}
	}
	_, err := ParseLogLevel("verbose")
	if !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("expected ErrInvalidLogLevel, got %v", fmt.Sprint(err))
	}
}
