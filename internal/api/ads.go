// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"net/http"
	"strings"

	"github.com/ManuGH/ad-normalizer/internal/adserver"
	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/normalize"
)

// handleAd serves a normalized VAST or VMAP document. GET fetches the
// document from the ad server with the inbound query; POST normalizes the
// posted document.
func (s *Server) handleAd(kind adxml.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var body []byte
		if r.Method == http.MethodPost {
			var err error
			body, err = readBody(r)
			if err != nil {
				writeError(w, http.StatusBadRequest, "failed to read request body")
				return
			}
		} else {
			body = s.deps.AdSource.Fetch(ctx, r, kind)
		}

		res := s.deps.Normalizer.Normalize(ctx, normalize.Request{
			Kind:      kind,
			Body:      body,
			Subdomain: adserver.Subdomain(r.URL.Query()),
		})

		if wantsJSON(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(res.AssetListBody())
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(res.XMLBody()); err != nil {
			logger := log.WithComponentFromContext(ctx, "api")
			logger.Debug().Err(err).Msg("client went away while writing document")
		}
	}
}

// wantsJSON reports whether the client asked for the asset list form.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
