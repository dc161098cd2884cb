// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseTimestamp converts an "HH:MM:SS" or "HH:MM:SS.mmm" duration to seconds.
func ParseTimestamp(s string) (float64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("timestamp %q: expected HH:MM:SS", s)
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 {
		return 0, fmt.Errorf("timestamp %q: invalid hours", s)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("timestamp %q: invalid minutes", s)
	}
	seconds, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || seconds < 0 || seconds >= 60 {
		return 0, fmt.Errorf("timestamp %q: invalid seconds", s)
	}
	return float64(hours*3600+minutes*60) + seconds, nil
}
