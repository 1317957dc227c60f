package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/prostor/erpsync/internal/domain/catalogsync"
	"github.com/prostor/erpsync/internal/infrastructure/config"
)

// releaseScript deletes the key only while it still holds the caller's token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX PX so that several service
// instances never run the same sync concurrently
type RedisRunLock struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisRunLock creates a lock on an existing client
func NewRedisRunLock(client redis.UniversalClient, keyPrefix string) *RedisRunLock {
	return &RedisRunLock{client: client, keyPrefix: keyPrefix}
}

// Acquire takes key for ttl and returns the holder token
func (l *RedisRunLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("failed to acquire run lock %s: %w", key, err)
	}
	if !ok {
		return "", catalogsync.ErrSyncInProgress
	}
	return token, nil
}

// Release frees key if token still holds it. Releasing an expired or
// stolen lock is a no-op.
func (l *RedisRunLock) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.keyPrefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock %s: %w", key, err)
	}
	return nil
}

var _ catalogsync.RunLock = (*RedisRunLock)(nil)
