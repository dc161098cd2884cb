// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"regexp"
	"strings"
)

// KeyField selects how a creative id is derived from an ad.
type KeyField string

const (
	KeyUniversalAdID KeyField = "universaladid"
	KeyURL           KeyField = "url"
	KeyResolution    KeyField = "resolution"
)

// ParseKeyField maps a configured strategy name to a KeyField. Matching is
// case-insensitive and unknown names fall back to KeyUniversalAdID.
func ParseKeyField(s string) KeyField {
	switch KeyField(strings.ToLower(strings.TrimSpace(s))) {
	case KeyURL:
		return KeyURL
	case KeyResolution:
		return KeyResolution
	default:
		return KeyUniversalAdID
	}
}

// Keyer derives creative ids. Every match of Pattern is removed from
// universalAdId and url keys; a nil Pattern leaves them untouched.
type Keyer struct {
	Field   KeyField
	Pattern *regexp.Regexp
}

// NewKeyer builds a Keyer from a configured strategy name.
func NewKeyer(field string, pattern *regexp.Regexp) Keyer {
	return Keyer{Field: ParseKeyField(field), Pattern: pattern}
}

// Sanitize strips every Pattern match from s.
func (k Keyer) Sanitize(s string) string {
	if k.Pattern == nil {
		return s
	}
	return k.Pattern.ReplaceAllString(s, "")
}

// Key returns the creative id of ad.
func (k Keyer) Key(ad Ad) (string, error) {
	la, err := ad.resolve()
	if err != nil {
		return "", err
	}
	return k.key(la), nil
}

func (k Keyer) key(la linearAd) string {
	switch k.Field {
	case KeyURL:
		return k.Sanitize(la.best.URL)
	case KeyResolution:
		return la.best.Width + "x" + la.best.Height
	default:
		return k.Sanitize(la.universalAdID)
	}
}
