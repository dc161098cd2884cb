// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package encore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

func successfulJob() Job {
	return Job{
		ID:           "job-1",
		ExternalID:   "AAA111",
		Status:       JobSuccessful,
		BaseName:     "AAA111",
		OutputFolder: "s3://out/AAA111/u1/",
		Inputs:       []Input{{URI: "https://ads.example.com/aaa.mp4"}},
		Outputs:      []Output{{VideoStreams: []VideoStream{{Width: 1920, Height: 1080, FrameRate: "25/1"}}}},
	}
}

func newTestService(t *testing.T, jit bool) (*Service, *fakeAPI) {
	t.Helper()
	api := newFakeAPI()
	api.jobs["job-1"] = successfulJob()
	st, _ := newRedisStore(t)
	svc, err := NewService(api, st, testSettings(t, jit))
	require.NoError(t, err)
	svc.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return svc, api
}

func storedInfo(t *testing.T, svc *Service, key string) (transcode.Info, bool) {
	t.Helper()
	info, found, err := svc.store.Get(context.Background(), key)
	require.NoError(t, err)
	return info, found
}

func TestHandleProgress_Validation(t *testing.T) {
	svc, _ := newTestService(t, true)
	err := svc.HandleProgress(context.Background(), Progress{Status: JobSuccessful})
	require.ErrorIs(t, err, ErrInvalidCallback)
}

func TestHandleProgress_SuccessfulJIT(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: JobSuccessful}))

	info, found := storedInfo(t, svc, "AAA111")
	require.True(t, found)
	assert.True(t, info.IsReady())
	assert.Equal(t, "https://cdn.example.com/out/AAA111/u1/AAA111.m3u8", info.URL)
	assert.Equal(t, "https://ads.example.com/aaa.mp4", info.Source)
}

func TestHandleProgress_SuccessfulQueuesPackaging(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: JobSuccessful}))

	info, found := storedInfo(t, svc, "AAA111")
	require.True(t, found)
	assert.Equal(t, transcode.StatusPackaging, info.Status)
	assert.Empty(t, info.URL)
}

func TestHandleProgress_FailedAndProgress(t *testing.T) {
	svc, _ := newTestService(t, true)
	ctx := context.Background()

	require.NoError(t, svc.store.Set(ctx, "AAA111", transcode.Info{Status: transcode.StatusInProgress, Source: "src"}, time.Hour))
	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: JobInProgress, Progress: 40}))
	info, _ := storedInfo(t, svc, "AAA111")
	assert.Equal(t, transcode.StatusTranscoding, info.Status)
	assert.Equal(t, "src", info.Source)

	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: JobFailed}))
	info, _ = storedInfo(t, svc, "AAA111")
	assert.Equal(t, transcode.StatusFailed, info.Status)
	assert.Equal(t, "transcode FAILED", info.Error)

	// Late progress does not resurrect a failed entry.
	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: JobInProgress}))
	info, _ = storedInfo(t, svc, "AAA111")
	assert.Equal(t, transcode.StatusFailed, info.Status)

	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: "PAUSED"}))
}

func TestHandleProgress_UnknownJob(t *testing.T) {
	svc, _ := newTestService(t, true)
	err := svc.HandleProgress(context.Background(), Progress{JobID: "nope", ExternalID: "X", Status: JobSuccessful})
	require.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestHandleProgress_NoOutputsDropsEntry(t *testing.T) {
	svc, api := newTestService(t, true)
	ctx := context.Background()
	job := successfulJob()
	job.Outputs = nil
	api.jobs["job-1"] = job
	require.NoError(t, svc.store.Set(ctx, "AAA111", transcode.Info{Status: transcode.StatusInProgress}, time.Hour))

	require.NoError(t, svc.HandleProgress(ctx, Progress{JobID: "job-1", ExternalID: "AAA111", Status: JobSuccessful}))
	_, found := storedInfo(t, svc, "AAA111")
	assert.False(t, found)
}

func TestHandlePackagingSuccess(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	err := svc.HandlePackagingSuccess(ctx, PackagingSuccess{JobID: "job-1", OutputPath: "packaged/AAA111/u1"})
	require.NoError(t, err)

	info, found := storedInfo(t, svc, "AAA111")
	require.True(t, found)
	assert.Equal(t, transcode.StatusCompleted, info.Status)
	assert.Equal(t, "https://cdn.example.com/packaged/AAA111/u1/index.m3u8", info.URL)

	err = svc.HandlePackagingSuccess(ctx, PackagingSuccess{JobID: "job-1"})
	require.ErrorIs(t, err, ErrInvalidCallback)
}

func TestHandlePackagingSuccess_NoExternalID(t *testing.T) {
	svc, api := newTestService(t, false)
	api.jobs["orphan"] = Job{ID: "orphan"}
	err := svc.HandlePackagingSuccess(context.Background(), PackagingSuccess{JobID: "orphan", OutputPath: "x"})
	require.ErrorIs(t, err, ErrUnknownJob)
}

func TestHandlePackagingFailure(t *testing.T) {
	svc, _ := newTestService(t, false)
	ctx := context.Background()

	var body PackagingFailure
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"jobId":"job-1"}}`), &body))
	require.NoError(t, svc.HandlePackagingFailure(ctx, body))

	info, found := storedInfo(t, svc, "AAA111")
	require.True(t, found)
	assert.Equal(t, transcode.StatusFailed, info.Status)
}

func TestPackagingFailure_JobID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr bool
	}{
		{"object", `{"message":{"jobId":"j1"}}`, "j1", false},
		{"string", `{"message":"{\"jobId\":\"j2\"}"}`, "j2", false},
		{"missing", `{"message":{}}`, "", true},
		{"garbage", `{"message":"nope"}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body PackagingFailure
			require.NoError(t, json.Unmarshal([]byte(tt.body), &body))
			got, err := body.JobID()
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCallback)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
