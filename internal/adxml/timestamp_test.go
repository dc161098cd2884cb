// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"00:00:15", 15},
		{"00:01:00", 60},
		{"01:00:00", 3600},
		{"00:01:45", 105},
		{"00:00:10.5", 10.5},
		{" 00:00:30 ", 30},
		{"10:00:00.000", 36000},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, in := range []string{"", "15", "00:15", "aa:00:00", "00:61:00", "00:00:60", "00:00:-1", "00:00:00:00"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseTimestamp(in)
			assert.Error(t, err)
		})
	}
}
