package services

import (
  "context"
  "fmt"
  "os"
  "strings"
  "time"

  goredis "github.com/redis/go-redis/v9"

  "github.com/essayband/essayband-backend/internal/logger"
)

// GenerationLeaseService suppresses duplicate generation cost when two
// sessions miss the cache for the same step at the same time. Losing the
// lease never blocks a session; the store's fill-if-empty rule stays the
// correctness mechanism.
type GenerationLeaseService interface {
  Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
  Release(ctx context.Context, key string)
}

type redisGenerationLease struct {
  log *logger.Logger
  rdb *goredis.Client
}

func NewRedisGenerationLease(log *logger.Logger) (GenerationLeaseService, error) {
  addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
  if addr == "" {
    return nil, fmt.Errorf("missing REDIS_ADDR")
  }

  rdb := goredis.NewClient(&goredis.Options{
    Addr:        addr,
    DialTimeout: 5 * time.Second,
  })

  ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
  defer cancel()
  if err := rdb.Ping(ctx).Err(); err != nil {
    _ = rdb.Close()
    return nil, fmt.Errorf("redis ping: %w", err)
  }

  return &redisGenerationLease{
    log: log.With("service", "GenerationLeaseService"),
    rdb: rdb,
  }, nil
}

func (l *redisGenerationLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
  ok, err := l.rdb.SetNX(ctx, "genlease:"+key, "1", ttl).Result()
  if err != nil {
    return false, err
  }
  return ok, nil
}

func (l *redisGenerationLease) Release(ctx context.Context, key string) {
  if err := l.rdb.Del(ctx, "genlease:"+key).Err(); err != nil {
    l.log.Debug("Failed to release generation lease", "key", key, "error", err)
  }
}

// noopGenerationLease is used when Redis is not configured; every acquire
// succeeds and concurrent sessions may pay duplicate generation cost.
type noopGenerationLease struct{}

func NewNoopGenerationLease() GenerationLeaseService { return noopGenerationLease{} }

func (noopGenerationLease) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
  return true, nil
}

func (noopGenerationLease) Release(ctx context.Context, key string) {}
