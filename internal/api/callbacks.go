// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"errors"
	"net/http"

	"github.com/ManuGH/ad-normalizer/internal/encore"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/resilience"
)

func (s *Server) handleEncoreCallback(w http.ResponseWriter, r *http.Request) {
	var p encore.Progress
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode job progress")
		return
	}
	if err := s.deps.Callbacks.HandleProgress(r.Context(), p); err != nil {
		s.callbackFailed(w, r, "encore", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePackagingSuccess(w http.ResponseWriter, r *http.Request) {
	var body encore.PackagingSuccess
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request body")
		return
	}
	if err := s.deps.Callbacks.HandlePackagingSuccess(r.Context(), body); err != nil {
		s.callbackFailed(w, r, "packager", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePackagingFailure(w http.ResponseWriter, r *http.Request) {
	var body encore.PackagingFailure
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "failed to decode request body")
		return
	}
	if err := s.deps.Callbacks.HandlePackagingFailure(r.Context(), body); err != nil {
		s.callbackFailed(w, r, "packager", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// callbackStatus maps callback errors to HTTP status codes. A job the
// transcoder does not know, or one without a creative, is a 404.
func callbackStatus(err error) int {
	var se *encore.StatusError
	switch {
	case errors.Is(err, encore.ErrInvalidCallback):
		return http.StatusBadRequest
	case errors.Is(err, encore.ErrUnknownJob):
		return http.StatusNotFound
	case errors.As(err, &se) && se.StatusCode == http.StatusNotFound:
		return http.StatusNotFound
	case errors.Is(err, resilience.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) callbackFailed(w http.ResponseWriter, r *http.Request, source string, err error) {
	code := callbackStatus(err)
	logger := log.WithComponentFromContext(r.Context(), "api")
	ev := logger.Warn()
	if code >= http.StatusInternalServerError {
		ev = logger.Error()
	}
	ev.Err(err).
		Str(log.FieldEvent, "callback.failed").
		Str("source", source).
		Int("status", code).
		Msg("callback not applied")
	writeError(w, code, http.StatusText(code))
}
