// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ad-normalizer/internal/adxml"
	"github.com/ManuGH/ad-normalizer/internal/log"
	"github.com/ManuGH/ad-normalizer/internal/store"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

const (
	callbackPath       = "/encoreCallback"
	inputAudioVideo    = "AudioVideo"
	defaultProfile     = "program"
	DefaultInFlightTTL = time.Hour
)

// JobAPI is the part of the Encore client used by the lifecycle code.
type JobAPI interface {
	CreateJob(ctx context.Context, job Job) (Job, error)
	GetJob(ctx context.Context, id string) (Job, error)
	JobURL(id string) string
}

// Store persists transcode state.
type Store interface {
	Get(ctx context.Context, key string) (transcode.Info, bool, error)
	Set(ctx context.Context, key string, info transcode.Info, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	EnqueuePackagingJob(ctx context.Context, queue string, job store.PackagingJob) error
}

// Settings are the deployment parameters shared by dispatch and callbacks.
type Settings struct {
	Profile        string
	OutputBucket   *url.URL // object storage root for transcoded output
	CallbackRoot   *url.URL // public base URL of this service
	AssetServer    *url.URL // CDN base serving packaged output
	JITPackaging   bool
	PackagingQueue string
	InFlightTTL    time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.Profile == "" {
		s.Profile = defaultProfile
	}
	if s.InFlightTTL <= 0 {
		s.InFlightTTL = DefaultInFlightTTL
	}
	return s
}

// Validate checks that the URLs needed to build jobs are present.
func (s Settings) Validate() error {
	var errs []error
	if s.OutputBucket == nil {
		errs = append(errs, errors.New("output bucket is required"))
	}
	if s.CallbackRoot == nil {
		errs = append(errs, errors.New("callback root is required"))
	}
	if s.AssetServer == nil {
		errs = append(errs, errors.New("asset server is required"))
	}
	return errors.Join(errs...)
}

// Dispatcher submits transcode jobs for missing creatives.
type Dispatcher struct {
	api      JobAPI
	store    Store
	settings Settings
	now      func() time.Time
	newID    func() string
	logger   zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(api JobAPI, st Store, settings Settings) (*Dispatcher, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &Dispatcher{
		api:      api,
		store:    st,
		settings: settings.withDefaults(),
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   log.WithComponent("dispatcher"),
	}, nil
}

// Dispatch records the creative as in progress and submits a transcode job
// for it. The in-progress entry is written first so a fast completion
// callback can never be overwritten by it; it is removed again when the
// submission fails.
func (d *Dispatcher) Dispatch(ctx context.Context, creative adxml.Creative) (*transcode.Info, error) {
	if creative.CreativeID == "" {
		return nil, nil
	}
	info := transcode.Info{
		Status: transcode.StatusInProgress,
		Source: creative.MasterPlaylistURL,
	}
	info.Touch(d.now())
	if err := d.store.Set(ctx, creative.CreativeID, info, d.settings.InFlightTTL); err != nil {
		return nil, fmt.Errorf("mark %s in progress: %w", creative.CreativeID, err)
	}

	job, err := d.api.CreateJob(ctx, d.jobFor(creative))
	if err != nil {
		if delErr := d.store.Delete(context.WithoutCancel(ctx), creative.CreativeID); delErr != nil {
			d.logger.Warn().Err(delErr).
				Str(log.FieldCreativeID, creative.CreativeID).
				Msg("failed to clear in-progress entry")
		}
		return nil, fmt.Errorf("submit %s: %w", creative.CreativeID, err)
	}

	logger := log.WithContext(ctx, d.logger)
	logger.Debug().
		Str(log.FieldCreativeID, creative.CreativeID).
		Str(log.FieldJobID, job.ID).
		Msg("created encore job")
	return &info, nil
}

func (d *Dispatcher) jobFor(creative adxml.Creative) Job {
	return Job{
		ExternalID:          creative.CreativeID,
		Profile:             d.settings.Profile,
		OutputFolder:        d.outputFolder(creative.CreativeID),
		BaseName:            creative.CreativeID,
		ProgressCallbackURI: d.settings.CallbackRoot.JoinPath(callbackPath).String(),
		Inputs: []Input{{
			URI:       creative.MasterPlaylistURL,
			CopyTS:    true,
			MediaType: inputAudioVideo,
		}},
	}
}

// outputFolder is {bucket}/{creativeID}/{uuid}/ so resubmissions never
// overwrite a previous output.
func (d *Dispatcher) outputFolder(creativeID string) string {
	return d.settings.OutputBucket.JoinPath(creativeID, d.newID()).String() + "/"
}
