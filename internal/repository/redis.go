package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/midiconv/internal/apperr"
	"github.com/makeasinger/midiconv/internal/model"
)

// RedisJobStore stores jobs as JSON under job:<id>. Records live until
// Delete unless a TTL is set.
type RedisJobStore struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisJobStore creates the store. ttl <= 0 keeps records until Delete,
// which is the only path that also removes the job's files.
func NewRedisJobStore(client *redis.Client, ttl time.Duration) *RedisJobStore {
	if ttl < 0 {
		ttl = 0
	}
	return &RedisJobStore{redis: client, ttl: ttl}
}

func (s *RedisJobStore) Save(ctx context.Context, job *model.Job) error {
	data, err := encodeJob(job)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, jobKey(job.ID), data, s.ttl).Err(); err != nil {
		return apperr.Storage("failed to save job", err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, jobKey(jobID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, apperr.Storage("failed to load job", err)
	}
	return decodeJob(data)
}

func (s *RedisJobStore) Delete(ctx context.Context, jobID string) error {
	if err := s.redis.Del(ctx, jobKey(jobID)).Err(); err != nil {
		return apperr.Storage("failed to delete job", err)
	}
	return nil
}

func (s *RedisJobStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}

// compare-and-delete so a lock that expired and was re-acquired elsewhere
// is not released by the old holder
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a JobLocker shared by every API and worker process
type RedisLocker struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisLocker{redis: client, ttl: ttl}
}

func (l *RedisLocker) TryLock(ctx context.Context, jobID string) (func(), error) {
	owner := uuid.New().String()
	ok, err := l.redis.SetNX(ctx, lockKey(jobID), owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire job lock: %w", err)
	}
	if !ok {
		return nil, apperr.Busy(jobID)
	}
	return func() {
		// the caller's ctx may already be cancelled
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		unlockScript.Run(ctx, l.redis, []string{lockKey(jobID)}, owner)
	}, nil
}
