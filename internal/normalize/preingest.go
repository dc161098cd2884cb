// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package normalize

import (
	"context"
	"strings"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
)

// PreIngest schedules transcodes for media URLs ahead of any ad request.
// Creative ids are derived from the URL with the key pattern. It returns how
// many of the URLs are not yet packaged.
func (n *Normalizer) PreIngest(ctx context.Context, mediaURLs []string) int {
	creatives := make([]adxml.Creative, 0, len(mediaURLs))
	for _, u := range mediaURLs {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		creatives = append(creatives, adxml.Creative{
			CreativeID:        n.keyer.Sanitize(u),
			MasterPlaylistURL: u,
		})
	}
	creatives, blocked := n.dropBlacklisted(ctx, creatives)
	p := PartitionCreatives(ctx, creatives, n.lookup)
	n.DispatchMissing(ctx, p.Missing)

	logger := log.WithContext(ctx, n.logger)
	logger.Info().
		Str(log.FieldEvent, "preingest").
		Int(log.FieldReady, len(p.Ready)).
		Int(log.FieldMissing, len(p.Missing)).
		Int(log.FieldBlocked, blocked).
		Msg("pre-ingest scheduled")
	return len(p.Missing) + p.InFlight
}
