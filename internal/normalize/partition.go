// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package normalize

import (
	"context"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

// Lookup resolves the stored transcode state of a creative. A nil Info with
// a nil error means the creative has never been seen.
type Lookup interface {
	Lookup(ctx context.Context, creativeID string) (*transcode.Info, error)
}

// Partition is the classification of a document's creatives.
type Partition struct {
	// Ready creatives carry the packaged playlist URL from the store.
	Ready []adxml.Creative
	// Missing creatives carry their source media URL.
	Missing []adxml.Creative
	// InFlight counts creatives dropped because they are being processed,
	// have failed, or could not be looked up.
	InFlight int
}

// PartitionCreatives looks every creative up in order. Completed creatives
// become Ready, unknown ones Missing, everything else is dropped.
func PartitionCreatives(ctx context.Context, creatives []adxml.Creative, lookup Lookup) Partition {
	p := Partition{
		Ready:   []adxml.Creative{},
		Missing: []adxml.Creative{},
	}
	logger := log.WithComponentFromContext(ctx, "normalize")
	for _, c := range creatives {
		info, err := lookup.Lookup(ctx, c.CreativeID)
		switch {
		case err != nil:
			logger.Warn().Err(err).
				Str(log.FieldCreativeID, c.CreativeID).
				Str(log.FieldEvent, "lookup.failed").
				Msg("dropping creative after lookup error")
			p.InFlight++
		case info == nil:
			p.Missing = append(p.Missing, c)
		case info.IsReady():
			p.Ready = append(p.Ready, adxml.Creative{
				CreativeID:        c.CreativeID,
				MasterPlaylistURL: info.URL,
			})
		default:
			logger.Debug().
				Str(log.FieldCreativeID, c.CreativeID).
				Str(log.FieldStatus, string(info.Status)).
				Msg("creative not ready")
			p.InFlight++
		}
	}
	return p
}
