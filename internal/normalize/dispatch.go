// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package normalize

import (
	"context"
	"fmt"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/metrics"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

// DispatchMissing starts one background dispatch per distinct creative and
// returns immediately. Dispatches outlive ctx's cancellation; each is bounded
// by the dispatch timeout. Concurrent dispatches of the same creative id
// share one submission.
func (n *Normalizer) DispatchMissing(ctx context.Context, missing []adxml.Creative) {
	if n.dispatcher == nil || len(missing) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	seen := make(map[string]struct{}, len(missing))
	for _, c := range missing {
		if _, dup := seen[c.CreativeID]; dup {
			continue
		}
		seen[c.CreativeID] = struct{}{}

		n.wg.Add(1)
		metrics.DispatchInFlight.Inc()
		go n.dispatchOne(detached, c)
	}
}

func (n *Normalizer) dispatchOne(ctx context.Context, c adxml.Creative) {
	defer n.wg.Done()
	defer metrics.DispatchInFlight.Dec()

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	ctx, span := telemetry.Tracer("normalize").Start(ctx, "normalize.dispatch")
	defer span.End()
	span.SetAttributes(telemetry.TranscodeAttributes(c.CreativeID, "", "")...)

	logger := log.WithContext(ctx, n.logger).With().
		Str(log.FieldCreativeID, c.CreativeID).
		Str(log.FieldSourceURL, c.MasterPlaylistURL).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordDispatch("panic")
			n.markSpanError(span, fmt.Errorf("dispatch panic: %v", r))
			logger.Error().
				Str(log.FieldEvent, "dispatch.panic").
				Interface("panic", r).
				Msg("recovered from panic during transcode dispatch")
		}
	}()

	v, err, shared := n.group.Do(c.CreativeID, func() (any, error) {
		return n.dispatcher.Dispatch(ctx, c)
	})
	if err != nil {
		metrics.RecordDispatch("failed")
		n.markSpanError(span, err)
		logger.Error().Err(err).
			Str(log.FieldEvent, "dispatch.failed").
			Msg("transcode dispatch failed")
		return
	}
	info, _ := v.(*transcode.Info)
	switch {
	case shared:
		metrics.RecordDispatch("shared")
	case info == nil:
		metrics.RecordDispatch("skipped")
	default:
		metrics.RecordDispatch("submitted")
	}
	ev := logger.Info().Str(log.FieldEvent, "dispatch.done").Bool("shared", shared)
	if info != nil {
		ev = ev.Str(log.FieldStatus, string(info.Status))
	}
	ev.Msg("transcode dispatched")
}

// Wait blocks until every background dispatch has returned.
func (n *Normalizer) Wait() {
	n.wg.Wait()
}
