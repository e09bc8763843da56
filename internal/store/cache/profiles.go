// Package cache puts a Redis read-through cache in front of a ProfileStore.
// A batch sweep reads every job once per candidate page, so caching jobs and
// candidates keeps repeated sweeps off the primary database.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"match-workers/internal/common/logger"
	"match-workers/internal/matching/pipeline"
	"match-workers/internal/models"
)

const (
	candidateKeyPrefix = "match:candidate:"
	jobKeyPrefix       = "match:job:"
)

func CandidateKey(id string) string { return candidateKeyPrefix + id }
func JobKey(id string) string       { return jobKeyPrefix + id }

// ProfileCache implements pipeline.ProfileStore. Redis failures are logged
// and fall through to the backing store; they never fail a lookup.
type ProfileCache struct {
	next   pipeline.ProfileStore
	redis  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewProfileCache(next pipeline.ProfileStore, rdb *redis.Client, ttl time.Duration, log logger.Logger) *ProfileCache {
	return &ProfileCache{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "profile-cache"}),
	}
}

func (c *ProfileCache) GetCandidate(ctx context.Context, id string) (*models.CandidateProfile, error) {
	var cand models.CandidateProfile
	if c.get(ctx, CandidateKey(id), &cand) {
		return &cand, nil
	}

	loaded, err := c.next.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, CandidateKey(id), loaded)
	return loaded, nil
}

func (c *ProfileCache) GetJob(ctx context.Context, id string) (*models.JobPosting, error) {
	var job models.JobPosting
	if c.get(ctx, JobKey(id), &job) {
		return &job, nil
	}

	loaded, err := c.next.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, JobKey(id), loaded)
	return loaded, nil
}

// Id listings always go to the backing store so activation changes show up immediately.
func (c *ProfileCache) ListActiveCandidateIDs(ctx context.Context, after string, limit int) ([]string, error) {
	return c.next.ListActiveCandidateIDs(ctx, after, limit)
}

func (c *ProfileCache) ListActiveJobIDs(ctx context.Context) ([]string, error) {
	return c.next.ListActiveJobIDs(ctx)
}

// Invalidate drops cached entries after a profile or job edit.
func (c *ProfileCache) Invalidate(ctx context.Context, candidateIDs, jobIDs []string) error {
	keys := make([]string, 0, len(candidateIDs)+len(jobIDs))
	for _, id := range candidateIDs {
		keys = append(keys, CandidateKey(id))
	}
	for _, id := range jobIDs {
		keys = append(keys, JobKey(id))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Del(ctx, keys...).Err()
}

func (c *ProfileCache) get(ctx context.Context, key string, dst interface{}) bool {
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
		return false
	}
	if err := json.Unmarshal([]byte(val), dst); err != nil {
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
		return false
	}
	return true
}

func (c *ProfileCache) set(ctx context.Context, key string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
}
