// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package store persists transcode state, the source blacklist and the
// packaging queue in Redis.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ManuGH/ad-normalizer/internal/cache"
	"github.com/ManuGH/ad-normalizer/internal/transcode"
)

const (
	// BlacklistKey is the sorted set of blacklisted source URLs scored by
	// insertion time in unix milliseconds.
	BlacklistKey = "blacklist"
	// TimeIndexKey is the sorted set of creative ids scored by last write.
	TimeIndexKey = "job_time_index"

	defaultOpTimeout = 3 * time.Second
	// MaxPageSize caps List and ListBlacklist.
	MaxPageSize = 100
)

// ErrEmptyValue is returned when a key holds an empty string.
var ErrEmptyValue = errors.New("store: empty value")

// Config holds the Redis connection settings.
type Config struct {
	URL            string        // redis:// or rediss:// URL
	Cluster        bool          // connect as a cluster client
	OpTimeout      time.Duration // per-command timeout (default 3s)
	LookupCacheTTL time.Duration // cache completed lookups in memory; 0 disables
}

// PackagingJob is the message queued for the packager.
type PackagingJob struct {
	JobID string `json:"jobId"`
	URL   string `json:"url"`
}

// Job is a stored info together with its creative id.
type Job struct {
	CreativeID string `json:"creativeId"`
	transcode.Info
}

// BlacklistEntry is one blacklisted source URL.
type BlacklistEntry struct {
	URL     string    `json:"url"`
	AddedAt time.Time `json:"addedAt"`
}

// RedisStore is the Redis implementation of the transcode store.
type RedisStore struct {
	client    redis.UniversalClient
	logger    zerolog.Logger
	opTimeout time.Duration
	now       func() time.Time

	lookups  *cache.Memory[transcode.Info]
	cacheTTL time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config, logger zerolog.Logger) (*RedisStore, error) {
	s, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.client.Ping(pingCtx).Err(); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	logger.Info().
		Bool("cluster", cfg.Cluster).
		Msg("connected to Redis")
	return s, nil
}

// Open creates a store without contacting Redis. Connections are made
// lazily; callers wait for readiness with Ping.
func Open(cfg Config, logger zerolog.Logger) (*RedisStore, error) {
	var client redis.UniversalClient
	if cfg.Cluster {
		opts, err := redis.ParseClusterURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis cluster url: %w", err)
		}
		client = redis.NewClusterClient(opts)
	} else {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts.DialTimeout = 5 * time.Second
		opts.ReadTimeout = 3 * time.Second
		opts.WriteTimeout = 3 * time.Second
		client = redis.NewClient(opts)
	}
	return NewWithClient(client, cfg, logger), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, cfg Config, logger zerolog.Logger) *RedisStore {
	timeout := cfg.OpTimeout
	if timeout <= 0 {
		timeout = defaultOpTimeout
	}
	s := &RedisStore{
		client:    client,
		logger:    logger,
		opTimeout: timeout,
		now:       time.Now,
		cacheTTL:  cfg.LookupCacheTTL,
	}
	if cfg.LookupCacheTTL > 0 {
		s.lookups = cache.NewMemory[transcode.Info](time.Minute)
	}
	return s
}

func (s *RedisStore) op(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get returns the stored info for key. found is false when the key does not
// exist.
func (s *RedisStore) Get(ctx context.Context, key string) (info transcode.Info, found bool, err error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return transcode.Info{}, false, nil
	}
	if err != nil {
		return transcode.Info{}, false, fmt.Errorf("get %s: %w", key, err)
	}
	if len(raw) == 0 {
		return transcode.Info{}, false, fmt.Errorf("get %s: %w", key, ErrEmptyValue)
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return transcode.Info{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return info, true, nil
}

// Lookup implements the partitioner's lookup. Completed entries are served
// from the in-memory cache when one is configured.
func (s *RedisStore) Lookup(ctx context.Context, creativeID string) (*transcode.Info, error) {
	if s.lookups != nil {
		if info, ok := s.lookups.Get(creativeID); ok {
			return &info, nil
		}
	}
	info, found, err := s.Get(ctx, creativeID)
	if err != nil || !found {
		return nil, err
	}
	if s.lookups != nil && info.IsReady() {
		s.lookups.Set(creativeID, info, s.cacheTTL)
	}
	return &info, nil
}

// Set stores info under key and records the write in the time index. A zero
// ttl stores the key without expiry.
func (s *RedisStore) Set(ctx context.Context, key string, info transcode.Info, ttl time.Duration) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, key, raw, ttl)
		p.ZAdd(ctx, TimeIndexKey, redis.Z{Score: float64(s.now().UnixMilli()), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	s.invalidate(key)
	s.logger.Debug().
		Str("key", key).
		Str("status", string(info.Status)).
		Dur("ttl", ttl).
		Msg("stored transcode info")
	return nil
}

// Delete removes key and its time index entry.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.ZRem(ctx, TimeIndexKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	s.invalidate(key)
	return nil
}

func (s *RedisStore) invalidate(key string) {
	if s.lookups != nil {
		s.lookups.Delete(key)
	}
}

// List returns one page of stored infos, most recently written first, and
// the total number of indexed keys. Pages are zero based.
func (s *RedisStore) List(ctx context.Context, page, size int) ([]Job, int64, error) {
	start, stop := pageBounds(page, size)
	ctx, cancel := s.op(ctx)
	defer cancel()

	keys, err := s.client.ZRevRange(ctx, TimeIndexKey, start, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("read time index: %w", err)
	}
	total, err := s.client.ZCard(ctx, TimeIndexKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("count time index: %w", err)
	}

	// One GET per key keeps the page working on cluster deployments where
	// keys live in different slots.
	cmds := make([]*redis.StringCmd, len(keys))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.Get(ctx, k)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, fmt.Errorf("read page: %w", err)
	}

	out := make([]Job, 0, len(keys))
	for i, cmd := range cmds {
		raw, err := cmd.Bytes()
		if err != nil {
			// Expired in-flight entries leave stale index members behind.
			continue
		}
		var info transcode.Info
		if err := json.Unmarshal(raw, &info); err != nil {
			s.logger.Warn().Err(err).Str("key", keys[i]).Msg("skipping undecodable entry")
			continue
		}
		out = append(out, Job{CreativeID: keys[i], Info: info})
	}
	return out, total, nil
}

// EnqueuePackagingJob adds job to the packaging queue, scored by enqueue
// time.
func (s *RedisStore) EnqueuePackagingJob(ctx context.Context, queue string, job PackagingJob) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode packaging job %s: %w", job.JobID, err)
	}
	ctx, cancel := s.op(ctx)
	defer cancel()

	err = s.client.ZAdd(ctx, queue, redis.Z{Score: float64(s.now().UnixMilli()), Member: string(raw)}).Err()
	if err != nil {
		return fmt.Errorf("enqueue packaging job %s: %w", job.JobID, err)
	}
	return nil
}

// Blacklist adds a source URL to the blacklist.
func (s *RedisStore) Blacklist(ctx context.Context, url string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	if err := s.client.ZAdd(ctx, BlacklistKey, redis.Z{Score: float64(s.now().UnixMilli()), Member: url}).Err(); err != nil {
		return fmt.Errorf("blacklist %s: %w", url, err)
	}
	s.logger.Info().Str("url", url).Msg("added URL to blacklist")
	return nil
}

// InBlacklist reports whether url is blacklisted.
func (s *RedisStore) InBlacklist(ctx context.Context, url string) (bool, error) {
	ctx, cancel := s.op(ctx)
	defer cancel()

	err := s.client.ZScore(ctx, BlacklistKey, url).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check blacklist %s: %w", url, err)
	}
	return true, nil
}

// RemoveFromBlacklist removes url from the blacklist.
func (s *RedisStore) RemoveFromBlacklist(ctx context.Context, url string) error {
	ctx, cancel := s.op(ctx)
	defer cancel()

	if err := s.client.ZRem(ctx, BlacklistKey, url).Err(); err != nil {
		return fmt.Errorf("unblacklist %s: %w", url, err)
	}
	s.logger.Info().Str("url", url).Msg("removed URL from blacklist")
	return nil
}

// ListBlacklist returns one page of blacklisted URLs, newest first, and the
// total count.
func (s *RedisStore) ListBlacklist(ctx context.Context, page, size int) ([]BlacklistEntry, int64, error) {
	start, stop := pageBounds(page, size)
	ctx, cancel := s.op(ctx)
	defer cancel()

	zs, err := s.client.ZRevRangeWithScores(ctx, BlacklistKey, start, stop).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("read blacklist: %w", err)
	}
	total, err := s.client.ZCard(ctx, BlacklistKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("count blacklist: %w", err)
	}
	out := make([]BlacklistEntry, 0, len(zs))
	for _, z := range zs {
		member, _ := z.Member.(string)
		out = append(out, BlacklistEntry{URL: member, AddedAt: time.UnixMilli(int64(z.Score)).UTC()})
	}
	return out, total, nil
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.op(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool and the lookup cache.
func (s *RedisStore) Close() error {
	if s.lookups != nil {
		s.lookups.Stop()
	}
	return s.client.Close()
}

// ClampPage normalizes paging parameters: negative pages become 0 and sizes
// outside 1..MaxPageSize are clamped.
func ClampPage(page, size int) (int, int) {
	if page < 0 {
		page = 0
	}
	switch {
	case size <= 0:
		size = 10
	case size > MaxPageSize:
		size = MaxPageSize
	}
	return page, size
}

func pageBounds(page, size int) (int64, int64) {
	page, size = ClampPage(page, size)
	start := int64(page) * int64(size)
	return start, start + int64(size) - 1
}
