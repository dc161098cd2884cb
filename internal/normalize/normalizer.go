// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package normalize turns ad server documents into responses that only
// reference packaged HLS creatives, and schedules transcodes for the rest.
package normalize

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/metrics"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

// DefaultDispatchTimeout bounds a single background dispatch.
const DefaultDispatchTimeout = 30 * time.Second

// Dispatcher submits a transcode for a missing creative. A nil Info with a
// nil error means the submission was skipped.
type Dispatcher interface {
	Dispatch(ctx context.Context, creative adxml.Creative) (*transcode.Info, error)
}

// Blacklist reports source media that must never be served or transcoded.
type Blacklist interface {
	InBlacklist(ctx context.Context, sourceURL string) (bool, error)
}

// Reporter receives per-request ad counts.
type Reporter interface {
	Record(subdomain string, served, ingested, broken int)
}

// Options configures a Normalizer.
type Options struct {
	Keyer           adxml.Keyer
	Lookup          Lookup
	Dispatcher      Dispatcher // optional; nil disables transcoding
	Blacklist       Blacklist  // optional
	Reporter        Reporter   // optional
	DispatchTimeout time.Duration
}

// Normalizer runs the parse, partition and dispatch stages of a request.
type Normalizer struct {
	keyer      adxml.Keyer
	lookup     Lookup
	dispatcher Dispatcher
	blacklist  Blacklist
	reporter   Reporter
	timeout    time.Duration

	group  singleflight.Group
	wg     sync.WaitGroup
	logger zerolog.Logger
}

// New creates a Normalizer.
func New(opts Options) *Normalizer {
	timeout := opts.DispatchTimeout
	if timeout <= 0 {
		timeout = DefaultDispatchTimeout
	}
	return &Normalizer{
		keyer:      opts.Keyer,
		lookup:     opts.Lookup,
		dispatcher: opts.Dispatcher,
		blacklist:  opts.Blacklist,
		reporter:   opts.Reporter,
		timeout:    timeout,
		logger:     log.WithComponent("normalize"),
	}
}

// Keyer returns the key strategy shared by extraction and rendering.
func (n *Normalizer) Keyer() adxml.Keyer { return n.keyer }

// Request is one document to normalize.
type Request struct {
	Kind      adxml.Kind
	Body      []byte
	Subdomain string
}

// Result is the partitioned document. Rendering happens lazily per content
// type from the same partition.
type Result struct {
	Kind adxml.Kind
	// Assets are the ready creatives.
	Assets []adxml.Creative `json:"assets"`
	// XML is the upstream text, or the empty document that replaced it.
	XML []byte `json:"-"`
	// Substituted is set when the upstream text could not be parsed.
	Substituted bool `json:"-"`

	missing []adxml.Creative
	keyer   adxml.Keyer
}

// Missing returns the creatives that were handed to dispatch.
func (r *Result) Missing() []adxml.Creative { return r.missing }

// XMLBody renders the rewritten document.
func (r *Result) XMLBody() []byte {
	return adxml.Rewrite(r.XML, r.Assets, r.keyer)
}

// AssetListBody renders the asset list JSON. When the document cannot be
// walked every ready creative is listed with the default duration.
func (r *Result) AssetListBody() []byte {
	list, err := adxml.BuildAssetList(r.XML, r.Assets, r.keyer)
	if err != nil {
		metrics.RecordFallback("assetlist")
		logger := log.WithComponent("normalize")
		logger.Warn().Err(err).
			Str(log.FieldEvent, "assetlist.fallback").
			Int(log.FieldReady, len(r.Assets)).
			Msg("using default durations for asset list")
		list = adxml.FallbackAssetList(r.Assets)
	}
	out, err := json.Marshal(list)
	if err != nil {
		return []byte(`{"ASSETS":[]}`)
	}
	return out
}

// Normalize parses the document, partitions its creatives and schedules
// transcodes for the missing ones. It never fails: unparseable input is
// replaced by an empty document of the requested kind.
func (n *Normalizer) Normalize(ctx context.Context, req Request) *Result {
	kind := req.Kind.String()
	ctx, span := telemetry.Tracer("normalize").Start(ctx, "normalize."+kind)
	defer span.End()
	logger := log.WithContext(ctx, n.logger)

	doc, text, err := adxml.ParseOrEmpty(req.Body, req.Kind)
	substituted := err != nil
	if substituted {
		logger.Warn().Err(err).
			Str(log.FieldEvent, "parse.failed").
			Str(log.FieldKind, kind).
			Msg("substituting empty document")
		span.RecordError(err)
		metrics.RecordFallback("parse")
	}
	metrics.RecordDocument(kind, substituted)
	span.AddEvent("parsed", trace.WithAttributes(attribute.Bool("substituted", substituted)))

	creatives := adxml.ExtractCreatives(doc, n.keyer)
	creatives, blocked := n.dropBlacklisted(ctx, creatives)
	p := PartitionCreatives(ctx, creatives, n.lookup)
	span.AddEvent("partitioned")
	span.SetAttributes(telemetry.PartitionAttributes(kind, req.Subdomain,
		len(creatives)+blocked, len(p.Ready), len(p.Missing), p.InFlight, blocked)...)

	metrics.RecordAds(kind, "ready", len(p.Ready))
	metrics.RecordAds(kind, "missing", len(p.Missing))
	metrics.RecordAds(kind, "in_flight", p.InFlight)
	metrics.RecordAds(kind, "blocked", blocked)
	if n.reporter != nil {
		n.reporter.Record(req.Subdomain, len(p.Ready), len(p.Missing), blocked)
	}

	logger.Info().
		Str(log.FieldEvent, "document.normalized").
		Str(log.FieldKind, kind).
		Str(log.FieldSubdomain, req.Subdomain).
		Int(log.FieldReady, len(p.Ready)).
		Int(log.FieldMissing, len(p.Missing)).
		Int(log.FieldDropped, p.InFlight).
		Int(log.FieldBlocked, blocked).
		Msg("normalized ad document")

	n.DispatchMissing(ctx, p.Missing)

	return &Result{
		Kind:        req.Kind,
		Assets:      p.Ready,
		XML:         text,
		Substituted: substituted,
		missing:     p.Missing,
		keyer:       n.keyer,
	}
}

// dropBlacklisted removes creatives whose source media is blacklisted.
// Blacklist errors keep the creative.
func (n *Normalizer) dropBlacklisted(ctx context.Context, creatives []adxml.Creative) ([]adxml.Creative, int) {
	if n.blacklist == nil {
		return creatives, 0
	}
	kept := make([]adxml.Creative, 0, len(creatives))
	blocked := 0
	for _, c := range creatives {
		listed, err := n.blacklist.InBlacklist(ctx, c.MasterPlaylistURL)
		if err != nil {
			n.logger.Warn().Err(err).
				Str(log.FieldCreativeID, c.CreativeID).
				Msg("blacklist check failed, keeping creative")
		}
		if listed {
			blocked++
			continue
		}
		kept = append(kept, c)
	}
	return kept, blocked
}

func (n *Normalizer) markSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
