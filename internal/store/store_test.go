// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

func newTestStore(t *testing.T, cfg Config) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg.URL = "redis://" + mr.Addr()
	s, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func sampleInfo(status transcode.Status) transcode.Info {
	return transcode.Info{
		URL:         "https://cdn.example.com/aaa/index.m3u8",
		AspectRatio: "16:9",
		FrameRates:  []float64{25},
		Status:      status,
		Source:      "https://ads.example.com/aaa.mp4",
		LastUpdate:  1700000000000,
	}
}

func TestNew_BadURL(t *testing.T) {
	_, err := New(context.Background(), Config{URL: "http://nope"}, zerolog.Nop())
	require.Error(t, err)
}

func TestNew_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err := New(context.Background(), Config{URL: "redis://" + addr}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestOpen_DoesNotDial(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s, err := Open(Config{URL: "redis://" + addr}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	assert.Error(t, s.Ping(context.Background()))
}

func TestSetGet(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	ctx := context.Background()

	_, found, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	want := sampleInfo(transcode.StatusCompleted)
	require.NoError(t, s.Set(ctx, "AAA111", want, 0))

	got, found, err := s.Get(ctx, "AAA111")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, got)

	assert.Zero(t, mr.TTL("AAA111"))
	members, err := mr.ZMembers(TimeIndexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"AAA111"}, members)
}

func TestSet_TTLExpiresAndPersists(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", sampleInfo(transcode.StatusInProgress), time.Minute))
	assert.Equal(t, time.Minute, mr.TTL("k"))

	// Rewriting without a ttl clears the expiry.
	require.NoError(t, s.Set(ctx, "k", sampleInfo(transcode.StatusCompleted), 0))
	assert.Zero(t, mr.TTL("k"))

	require.NoError(t, s.Set(ctx, "gone", sampleInfo(transcode.StatusInProgress), time.Second))
	mr.FastForward(2 * time.Second)
	_, found, err := s.Get(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGet_Undecodable(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	require.NoError(t, mr.Set("bad", "{not json"))
	_, _, err := s.Get(context.Background(), "bad")
	require.Error(t, err)

	require.NoError(t, mr.Set("empty", ""))
	_, _, err = s.Get(context.Background(), "empty")
	require.ErrorIs(t, err, ErrEmptyValue)
}

func TestDelete(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", sampleInfo(transcode.StatusFailed), 0))
	require.NoError(t, s.Delete(ctx, "k"))

	assert.False(t, mr.Exists("k"))
	members, _ := mr.ZMembers(TimeIndexKey)
	assert.Empty(t, members)
}

func TestLookup(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ctx := context.Background()

	info, err := s.Lookup(ctx, "nothing")
	require.NoError(t, err)
	assert.Nil(t, info)

	require.NoError(t, s.Set(ctx, "k", sampleInfo(transcode.StatusTranscoding), 0))
	info, err = s.Lookup(ctx, "k")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, transcode.StatusTranscoding, info.Status)
}

func TestLookup_CachesCompleted(t *testing.T) {
	s, mr := newTestStore(t, Config{LookupCacheTTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "done", sampleInfo(transcode.StatusCompleted), 0))
	info, err := s.Lookup(ctx, "done")
	require.NoError(t, err)
	require.NotNil(t, info)

	// Served from memory even after the key vanishes behind the store's back.
	mr.Del("done")
	info, err = s.Lookup(ctx, "done")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.IsReady())

	// Writes through the store invalidate the cached copy.
	require.NoError(t, s.Set(ctx, "done", sampleInfo(transcode.StatusFailed), 0))
	info, err = s.Lookup(ctx, "done")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, transcode.StatusFailed, info.Status)
}

func TestList_Paging(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	ctx := context.Background()

	base := time.UnixMilli(1700000000000)
	for i, key := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return at }
		require.NoError(t, s.Set(ctx, key, sampleInfo(transcode.StatusCompleted), 0))
	}
	// Stale index member whose key expired.
	_, err := mr.ZAdd(TimeIndexKey, float64(base.Add(time.Hour).UnixMilli()), "expired")
	require.NoError(t, err)

	jobs, total, err := s.List(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, "c", jobs[0].CreativeID)

	jobs, _, err = s.List(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "b", jobs[0].CreativeID)
	assert.Equal(t, "a", jobs[1].CreativeID)

	jobs, _, err = s.List(ctx, 5, 2)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestJob_JSONFlattensInfo(t *testing.T) {
	raw, err := json.Marshal(Job{CreativeID: "x", Info: sampleInfo(transcode.StatusCompleted)})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "x", m["creativeId"])
	assert.Equal(t, "COMPLETED", m["status"])
}

func TestEnqueuePackagingJob(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	require.NoError(t, s.EnqueuePackagingJob(context.Background(), "package", PackagingJob{JobID: "j1", URL: "s3://out/j1/"}))

	members, err := mr.ZMembers("package")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.JSONEq(t, `{"jobId":"j1","url":"s3://out/j1/"}`, members[0])
}

func TestBlacklist(t *testing.T) {
	s, _ := newTestStore(t, Config{})
	ctx := context.Background()
	url := "https://ads.example.com/broken.mp4"

	in, err := s.InBlacklist(ctx, url)
	require.NoError(t, err)
	assert.False(t, in)

	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	require.NoError(t, s.Blacklist(ctx, url))
	in, err = s.InBlacklist(ctx, url)
	require.NoError(t, err)
	assert.True(t, in)

	entries, total, err := s.ListBlacklist(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, entries, 1)
	assert.Equal(t, url, entries[0].URL)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), entries[0].AddedAt)

	require.NoError(t, s.RemoveFromBlacklist(ctx, url))
	in, err = s.InBlacklist(ctx, url)
	require.NoError(t, err)
	assert.False(t, in)
}

func TestClampPage(t *testing.T) {
	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 10, 0, 10},
		{-1, 0, 0, 10},
		{3, 500, 3, MaxPageSize},
	}
	for _, tt := range tests {
		p, s := ClampPage(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, p)
		assert.Equal(t, tt.wantSize, s)
	}
}

func TestNewWithClient_DefaultTimeout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewWithClient(client, Config{}, zerolog.Nop())
	defer s.Close()
	assert.Equal(t, defaultOpTimeout, s.opTimeout)
	require.NoError(t, s.Ping(context.Background()))
}
