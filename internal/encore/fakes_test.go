// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ad-normalizer/internal/store"
)

type fakeAPI struct {
	mu        sync.Mutex
	created   []Job
	jobs      map[string]Job
	createErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{jobs: map[string]Job{}}
}

func (f *fakeAPI) CreateJob(_ context.Context, job Job) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return Job{}, f.createErr
	}
	job.ID = "job-" + job.ExternalID
	f.created = append(f.created, job)
	return job, nil
}

func (f *fakeAPI) GetJob(_ context.Context, id string) (Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	job, ok := f.jobs[id]
	if !ok {
		return Job{}, &StatusError{Op: "get_job", StatusCode: 404}
	}
	return job, nil
}

func (f *fakeAPI) JobURL(id string) string {
	return "http://encore.local/encoreJobs/" + id
}

var errSubmit = errors.New("encore unavailable")

func newRedisStore(t *testing.T) (*store.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := store.New(context.Background(), store.Config{URL: "redis://" + mr.Addr()}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func testSettings(t *testing.T, jit bool) Settings {
	return Settings{
		OutputBucket:   mustURL(t, "s3://out"),
		CallbackRoot:   mustURL(t, "https://normalizer.example.com"),
		AssetServer:    mustURL(t, "https://cdn.example.com"),
		JITPackaging:   jit,
		PackagingQueue: "package",
	}
}
