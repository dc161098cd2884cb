// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"github.com/ManuGH/ad-normalizer/internal/log"
)

// Rewrite keeps only the ads whose key matches a ready creative and points
// their selected media file at the creative's HLS playlist. VMAP ad breaks
// are kept even when all of their ads are dropped. On any failure the input
// text is returned unchanged.
func Rewrite(text []byte, ready []Creative, keyer Keyer) []byte {
	out, err := rewrite(text, ready, keyer)
	if err != nil {
		logger := log.WithComponent("adxml")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "rewrite.failed").
			Msg("returning original document")
		return text
	}
	return out
}

func rewrite(text []byte, ready []Creative, keyer Keyer) ([]byte, error) {
	doc, err := Parse(text)
	if err != nil {
		return nil, err
	}
	// Resolve every ad before touching the tree so a malformed ad leaves
	// nothing half rewritten.
	ads := doc.Ads()
	resolved := make([]linearAd, 0, len(ads))
	for _, ad := range ads {
		la, err := ad.resolve()
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, la)
	}
	for _, la := range resolved {
		c, ok := findCreative(ready, keyer.key(la))
		if !ok {
			la.remove()
			continue
		}
		la.replaceMedia(c.MasterPlaylistURL)
	}
	return doc.Bytes()
}
