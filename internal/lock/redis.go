package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis is a distributed Locker backed by a single SET NX EX, good for
// multi-process deployments where InProcess's in-memory map would not be
// shared across workers.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{client: client, ttl: ttl}
}

func (l *Redis) TryLock(ctx context.Context, key string) (func(), error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, "lock:"+key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if v, err := l.client.Get(releaseCtx, "lock:"+key).Result(); err == nil && v == token {
			l.client.Del(releaseCtx, "lock:"+key)
		}
	}, nil
}
