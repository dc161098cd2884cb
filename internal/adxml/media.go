// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// HLSMediaType is the MIME type written on rewritten media files.
const HLSMediaType = "application/x-mpegURL"

// ErrNoRenditions is returned when selecting from an empty rendition list.
var ErrNoRenditions = errors.New("adxml: no media renditions")

// Rendition is one MediaFile of a linear creative.
type Rendition struct {
	URL     string
	Type    string
	Bitrate string
	Width   string
	Height  string

	el *etree.Element
}

func renditionFrom(el *etree.Element) Rendition {
	return Rendition{
		URL:     strings.TrimSpace(el.Text()),
		Type:    el.SelectAttrValue("type", ""),
		Bitrate: el.SelectAttrValue("bitrate", ""),
		Width:   el.SelectAttrValue("width", ""),
		Height:  el.SelectAttrValue("height", ""),
		el:      el,
	}
}

// BitrateValue returns the numeric bitrate, or 0 when absent or unparseable.
func (r Rendition) BitrateValue() float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(r.Bitrate), 64)
	if err != nil || math.IsNaN(v) {
		return 0
	}
	return v
}

// SelectBestRendition returns the rendition with the strictly highest
// bitrate; the earliest one wins a tie.
func SelectBestRendition(renditions []Rendition) (Rendition, error) {
	if len(renditions) == 0 {
		return Rendition{}, ErrNoRenditions
	}
	best := renditions[0]
	bestRate := best.BitrateValue()
	for _, r := range renditions[1:] {
		if rate := r.BitrateValue(); rate > bestRate {
			best, bestRate = r, rate
		}
	}
	return best, nil
}
