// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/store"
)

const defaultPageSize = 10

type preIngestRequest struct {
	MediaURLs []string `json:"mediaUrls"`
}

type preIngestResponse struct {
	NotYetProcessed int `json:"notYetProcessed"`
}

type jobListResponse struct {
	Jobs        []store.Job `json:"jobs"`
	Page        int         `json:"page"`
	Size        int         `json:"size"`
	Next        string      `json:"next,omitempty"`
	Prev        string      `json:"prev,omitempty"`
	TotalAmount int64       `json:"totalAmount"`
}

type blacklistRequest struct {
	MediaURL string `json:"mediaUrl"`
}

type blacklistResponse struct {
	MediaURLs  []string `json:"mediaUrls"`
	Page       int      `json:"page"`
	Size       int      `json:"size"`
	Next       string   `json:"next,omitempty"`
	Prev       string   `json:"prev,omitempty"`
	TotalCount int64    `json:"totalCount"`
}

// parsePaging reads page (>= 0) and size (1..MaxPageSize) query values.
func parsePaging(r *http.Request) (page, size int, err error) {
	q := r.URL.Query()
	page, size = 0, defaultPageSize
	if p := q.Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil || page < 0 {
			return 0, 0, fmt.Errorf("invalid page parameter")
		}
	}
	if sz := q.Get("size"); sz != "" {
		size, err = strconv.Atoi(sz)
		if err != nil || size <= 0 || size > store.MaxPageSize {
			return 0, 0, fmt.Errorf("invalid size parameter")
		}
	}
	return page, size, nil
}

// pageLinks builds prev/next links. A full page implies there may be more.
func pageLinks(path string, page, size, got int) (prev, next string) {
	if page > 0 {
		prev = fmt.Sprintf("%s?page=%d&size=%d", path, page-1, size)
	}
	if got == size {
		next = fmt.Sprintf("%s?page=%d&size=%d", path, page+1, size)
	}
	return prev, next
}

func (s *Server) handlePreIngest(w http.ResponseWriter, r *http.Request) {
	var req preIngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	n := s.deps.Normalizer.PreIngest(r.Context(), req.MediaURLs)
	writeJSON(w, http.StatusOK, preIngestResponse{NotYetProcessed: n})
}

func (s *Server) handleJobList(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	jobs, total, err := s.deps.Store.List(r.Context(), page, size)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("failed to list jobs")
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []store.Job{}
	}
	prev, next := pageLinks(jobsPath, page, size, len(jobs))
	writeJSON(w, http.StatusOK, jobListResponse{
		Jobs:        jobs,
		Page:        page,
		Size:        len(jobs),
		Next:        next,
		Prev:        prev,
		TotalAmount: total,
	})
}

func (s *Server) handleBlacklistGet(w http.ResponseWriter, r *http.Request) {
	page, size, err := parsePaging(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, total, err := s.deps.Store.ListBlacklist(r.Context(), page, size)
	if err != nil {
		logger := log.WithComponentFromContext(r.Context(), "api")
		logger.Error().Err(err).Msg("failed to list blacklist")
		writeError(w, http.StatusInternalServerError, "failed to list blacklist")
		return
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		urls = append(urls, e.URL)
	}
	prev, next := pageLinks(blacklistPath, page, size, len(urls))
	writeJSON(w, http.StatusOK, blacklistResponse{
		MediaURLs:  urls,
		Page:       page,
		Size:       len(urls),
		Next:       next,
		Prev:       prev,
		TotalCount: total,
	})
}

func (s *Server) handleBlacklistAdd(w http.ResponseWriter, r *http.Request) {
	s.mutateBlacklist(w, r, "blacklisted", s.deps.Store.Blacklist)
}

func (s *Server) handleBlacklistRemove(w http.ResponseWriter, r *http.Request) {
	s.mutateBlacklist(w, r, "unblacklisted", s.deps.Store.RemoveFromBlacklist)
}

func (s *Server) mutateBlacklist(w http.ResponseWriter, r *http.Request, verb string, apply func(context.Context, string) error) {
	var req blacklistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	mediaURL := strings.TrimSpace(req.MediaURL)
	if mediaURL == "" {
		writeError(w, http.StatusBadRequest, "mediaUrl is required")
		return
	}

	logger := log.WithComponentFromContext(r.Context(), "api")
	if err := apply(r.Context(), mediaURL); err != nil {
		logger.Error().Err(err).Str(log.FieldSourceURL, mediaURL).Msg("blacklist update failed")
		writeError(w, http.StatusInternalServerError, "failed to update blacklist")
		return
	}
	logger.Info().Str(log.FieldSourceURL, mediaURL).Msg(verb + " media URL")
	w.WriteHeader(http.StatusNoContent)
}
