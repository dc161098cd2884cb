// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package adxml

import (
	"github.com/ManuGH/ad-normalizer/internal/log"
)

// Creative pairs a derived creative id with a media URL. Before partitioning
// the URL is the ad's source rendition; for ready creatives it is the
// packaged HLS playlist.
type Creative struct {
	CreativeID        string `json:"creativeId"`
	MasterPlaylistURL string `json:"masterPlaylistUrl"`
}

// Creatives returns one creative per ad in document order. The first
// malformed ad aborts the walk.
func (d *Document) Creatives(keyer Keyer) ([]Creative, error) {
	ads := d.Ads()
	out := make([]Creative, 0, len(ads))
	for _, ad := range ads {
		la, err := ad.resolve()
		if err != nil {
			return nil, err
		}
		out = append(out, Creative{
			CreativeID:        keyer.key(la),
			MasterPlaylistURL: la.best.URL,
		})
	}
	return out, nil
}

// ExtractCreatives is the fail-soft form of Document.Creatives: any error is
// logged and yields an empty list.
func ExtractCreatives(d *Document, keyer Keyer) []Creative {
	creatives, err := d.Creatives(keyer)
	if err != nil {
		logger := log.WithComponent("adxml")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "extract.failed").
			Str(log.FieldKind, d.Kind().String()).
			Msg("could not extract creatives, treating document as empty")
		return []Creative{}
	}
	return creatives
}

// findCreative returns the first creative with the given id.
func findCreative(creatives []Creative, id string) (Creative, bool) {
	for _, c := range creatives {
		if c.CreativeID == id {
			return c, true
		}
	}
	return Creative{}, false
}
