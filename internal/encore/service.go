// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/metrics"
	"github.com/ManuGH/ad-normalizer/internal/store"
	"github.com/ManuGH/ad-normalizer/internal/telemetry"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

const packagedBaseName = "index"

var (
	// ErrUnknownJob is returned when a callback names a job Encore does not
	// associate with a creative.
	ErrUnknownJob = errors.New("encore: job has no external id")
	// ErrInvalidCallback is returned for callback bodies missing required
	// fields.
	ErrInvalidCallback = errors.New("encore: invalid callback")
)

// PackagingSuccess is posted by the packager when an output is ready.
type PackagingSuccess struct {
	URL        string `json:"url"`
	JobID      string `json:"jobId"`
	OutputPath string `json:"outputPath"`
}

// PackagingFailure is posted by the packager when packaging fails. The
// message is either an object or a JSON encoded string holding one.
type PackagingFailure struct {
	Message json.RawMessage `json:"message"`
}

// JobID extracts the job id from the failure message.
func (f PackagingFailure) JobID() (string, error) {
	raw := bytes.TrimSpace(f.Message)
	if len(raw) > 0 && raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalidCallback, err)
		}
		raw = []byte(inner)
	}
	var msg struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}
	if msg.JobID == "" {
		return "", fmt.Errorf("%w: missing jobId", ErrInvalidCallback)
	}
	return msg.JobID, nil
}

// Service applies Encore progress and packager callbacks to the store.
type Service struct {
	api      JobAPI
	store    Store
	settings Settings
	now      func() time.Time
	logger   zerolog.Logger
}

// NewService creates a Service.
func NewService(api JobAPI, st Store, settings Settings) (*Service, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Service{
		api:      api,
		store:    st,
		settings: settings.withDefaults(),
		now:      time.Now,
		logger:   log.WithComponent("lifecycle"),
	}, nil
}

// HandleProgress applies an Encore progress callback.
func (s *Service) HandleProgress(ctx context.Context, p Progress) error {
	if p.JobID == "" || p.ExternalID == "" {
		return fmt.Errorf("%w: jobId and externalId are required", ErrInvalidCallback)
	}
	ctx, span := telemetry.Tracer("encore").Start(ctx, "encore.callback")
	defer span.End()
	span.SetAttributes(telemetry.TranscodeAttributes(p.ExternalID, p.JobID, p.Status)...)
	metrics.RecordCallback("encore", p.Status)

	logger := log.WithContext(ctx, s.logger).With().
		Str(log.FieldJobID, p.JobID).
		Str(log.FieldCreativeID, p.ExternalID).
		Str(log.FieldStatus, p.Status).
		Logger()

	switch p.Status {
	case JobSuccessful:
		return s.transcodeCompleted(ctx, logger, p)
	case JobFailed, JobCancelled:
		logger.Warn().Msg("transcode failed")
		return s.markFailed(ctx, p.ExternalID, "transcode "+p.Status)
	case JobInProgress:
		logger.Debug().Int("progress", p.Progress).Msg("transcode progress")
		return s.markTranscoding(ctx, p.ExternalID)
	default:
		logger.Info().Msg("ignoring unknown job status")
		return nil
	}
}

func (s *Service) transcodeCompleted(ctx context.Context, logger zerolog.Logger, p Progress) error {
	job, err := s.api.GetJob(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("fetch job %s: %w", p.JobID, err)
	}
	info, err := InfoFromJob(job, s.settings.JITPackaging, s.settings.AssetServer, s.now())
	if err != nil {
		// Nothing usable was produced; let the next request resubmit.
		logger.Error().Err(err).Msg("cannot build transcode info, dropping entry")
		return s.store.Delete(ctx, p.ExternalID)
	}

	ttl := time.Duration(0)
	if !info.IsReady() {
		ttl = s.settings.InFlightTTL
	}
	if err := s.store.Set(ctx, p.ExternalID, info, ttl); err != nil {
		_ = s.store.Delete(ctx, p.ExternalID)
		return fmt.Errorf("store %s: %w", p.ExternalID, err)
	}
	if s.settings.JITPackaging {
		logger.Info().Str("url", info.URL).Msg("creative ready")
		return nil
	}

	msg := store.PackagingJob{JobID: p.JobID, URL: s.api.JobURL(p.JobID)}
	if err := s.store.EnqueuePackagingJob(ctx, s.settings.PackagingQueue, msg); err != nil {
		return fmt.Errorf("enqueue packaging for %s: %w", p.JobID, err)
	}
	logger.Info().Str("queue", s.settings.PackagingQueue).Msg("queued packaging job")
	return nil
}

// markFailed keeps the failure visible for the in-flight TTL so broken
// sources are not resubmitted on every request.
func (s *Service) markFailed(ctx context.Context, creativeID, reason string) error {
	info, _, err := s.store.Get(ctx, creativeID)
	if err != nil {
		return err
	}
	info.Status = transcode.StatusFailed
	info.Error = reason
	info.Touch(s.now())
	return s.store.Set(ctx, creativeID, info, s.settings.InFlightTTL)
}

func (s *Service) markTranscoding(ctx context.Context, creativeID string) error {
	info, found, err := s.store.Get(ctx, creativeID)
	if err != nil {
		return err
	}
	if found && info.Status != transcode.StatusInProgress && info.Status != transcode.StatusTranscoding {
		// Late progress after completion or failure.
		return nil
	}
	info.Status = transcode.StatusTranscoding
	info.Touch(s.now())
	return s.store.Set(ctx, creativeID, info, s.settings.InFlightTTL)
}

// HandlePackagingSuccess marks the job's creative as completed with the
// packaged playlist URL.
func (s *Service) HandlePackagingSuccess(ctx context.Context, body PackagingSuccess) error {
	if body.JobID == "" || body.OutputPath == "" {
		return fmt.Errorf("%w: jobId and outputPath are required", ErrInvalidCallback)
	}
	metrics.RecordCallback("packager", "success")
	job, creativeID, err := s.jobCreative(ctx, body.JobID)
	if err != nil {
		return err
	}

	info, err := InfoFromJob(job, s.settings.JITPackaging, s.settings.AssetServer, s.now())
	if err != nil {
		_ = s.store.Delete(ctx, creativeID)
		return fmt.Errorf("build info for job %s: %w", body.JobID, err)
	}
	info.URL = PackageURL(s.settings.AssetServer, body.OutputPath, packagedBaseName)
	info.Status = transcode.StatusCompleted
	if err := s.store.Set(ctx, creativeID, info, 0); err != nil {
		return fmt.Errorf("store %s: %w", creativeID, err)
	}
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str(log.FieldJobID, body.JobID).
		Str(log.FieldCreativeID, creativeID).
		Str("url", info.URL).
		Msg("packaging completed")
	return nil
}

// HandlePackagingFailure marks the job's creative as failed.
func (s *Service) HandlePackagingFailure(ctx context.Context, body PackagingFailure) error {
	jobID, err := body.JobID()
	if err != nil {
		return err
	}
	metrics.RecordCallback("packager", "failure")
	_, creativeID, err := s.jobCreative(ctx, jobID)
	if err != nil {
		return err
	}
	logger := log.WithContext(ctx, s.logger)
	logger.Warn().
		Str(log.FieldJobID, jobID).
		Str(log.FieldCreativeID, creativeID).
		Msg("packaging failed")
	return s.markFailed(ctx, creativeID, "packaging failed")
}

func (s *Service) jobCreative(ctx context.Context, jobID string) (Job, string, error) {
	job, err := s.api.GetJob(ctx, jobID)
	if err != nil {
		return Job{}, "", fmt.Errorf("fetch job %s: %w", jobID, err)
	}
	if job.ExternalID == "" {
		return Job{}, "", fmt.Errorf("job %s: %w", jobID, ErrUnknownJob)
	}
	return job, job.ExternalID, nil
}
