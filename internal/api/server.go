// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api exposes the normalizer over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/api/middleware"
	"github.com/ManuGH/ad-normalizer/internal/encore"
	"github.com/ManuGH/ad-normalizer/internal/health"
	"github.com/ManuGH/ad-normalizer/internal/normalize"
	"github.com/ManuGH/ad-normalizer/internal/store"
)

const (
	apiPrefix     = "/api/v1"
	jobsPath      = apiPrefix + "/jobs"
	blacklistPath = apiPrefix + "/blacklist"
)

// Normalizer is the core ad pipeline.
type Normalizer interface {
	Normalize(ctx context.Context, req normalize.Request) *normalize.Result
	PreIngest(ctx context.Context, mediaURLs []string) int
}

// AdSource fetches documents from the upstream ad server.
type AdSource interface {
	Fetch(ctx context.Context, inbound *http.Request, kind adxml.Kind) []byte
}

// JobStore backs the operator endpoints.
type JobStore interface {
	List(ctx context.Context, page, size int) ([]store.Job, int64, error)
	Blacklist(ctx context.Context, url string) error
	RemoveFromBlacklist(ctx context.Context, url string) error
	ListBlacklist(ctx context.Context, page, size int) ([]store.BlacklistEntry, int64, error)
}

// Callbacks applies transcoder and packager notifications.
type Callbacks interface {
	HandleProgress(ctx context.Context, p encore.Progress) error
	HandlePackagingSuccess(ctx context.Context, body encore.PackagingSuccess) error
	HandlePackagingFailure(ctx context.Context, body encore.PackagingFailure) error
}

// Deps are the collaborators of the HTTP layer.
type Deps struct {
	Normalizer Normalizer
	AdSource   AdSource
	Store      JobStore
	Callbacks  Callbacks
	Health     *health.Manager

	Stack middleware.StackConfig
	// Debug mounts the pprof handlers under /debug.
	Debug bool
}

func (d Deps) validate() error {
	switch {
	case d.Normalizer == nil:
		return errors.New("api: normalizer is required")
	case d.AdSource == nil:
		return errors.New("api: ad source is required")
	case d.Store == nil:
		return errors.New("api: store is required")
	case d.Callbacks == nil:
		return errors.New("api: callbacks are required")
	case d.Health == nil:
		return errors.New("api: health manager is required")
	}
	return nil
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// NewHandler builds the routed handler with the middleware stack applied.
func NewHandler(deps Deps) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	r, err := middleware.NewRouter(deps.Stack)
	if err != nil {
		return nil, err
	}
	s := &Server{deps: deps}
	s.routes(r)
	return r, nil
}

func (s *Server) routes(r chi.Router) {
	r.Get("/ping", handlePing)
	r.Get("/healthz", s.deps.Health.ServeHealth)
	r.Get("/readyz", s.deps.Health.ServeReady)

	r.Route(apiPrefix, func(r chi.Router) {
		r.Get("/vast", s.handleAd(adxml.KindVAST))
		r.Post("/vast", s.handleAd(adxml.KindVAST))
		r.Get("/vmap", s.handleAd(adxml.KindVMAP))
		r.Post("/vmap", s.handleAd(adxml.KindVMAP))

		r.Post("/preingest", s.handlePreIngest)
		r.Get("/jobs", s.handleJobList)

		r.Get("/blacklist", s.handleBlacklistGet)
		r.Post("/blacklist", s.handleBlacklistAdd)
		r.Delete("/blacklist", s.handleBlacklistRemove)
	})

	r.Post("/encoreCallback", s.handleEncoreCallback)
	r.Post("/packagerCallback/success", s.handlePackagingSuccess)
	r.Post("/packagerCallback/failure", s.handlePackagingFailure)

	if s.deps.Debug {
		r.Mount("/debug", chimw.Profiler())
	}
}

func handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("pong"))
}
