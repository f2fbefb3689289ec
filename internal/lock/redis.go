package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds keys across service replicas with SET NX PX. Each hold
// carries a random token so a lock that expired and was retaken elsewhere is
// never released by the old holder.
type RedisLocker struct {
	client   redis.UniversalClient
	logger   *zap.Logger
	ttl      time.Duration
	attempts int
	backoff  time.Duration
}

var _ Locker = (*RedisLocker)(nil)

type RedisOption func(*RedisLocker)

func WithTTL(ttl time.Duration) RedisOption {
	return func(l *RedisLocker) { l.ttl = ttl }
}

func WithRetry(attempts int, backoff time.Duration) RedisOption {
	return func(l *RedisLocker) {
		l.attempts = attempts
		l.backoff = backoff
	}
}

func NewRedisLocker(client redis.UniversalClient, logger *zap.Logger, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:   client,
		logger:   logger,
		ttl:      5 * time.Second,
		attempts: 30,
		backoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.attempts < 1 {
		l.attempts = 1
	}
	return l
}

type hold struct {
	key   string
	token string
}

func (l *RedisLocker) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := sortedKeys(keys)
	held := make([]hold, 0, len(ordered))
	for _, key := range ordered {
		token := uuid.NewString()
		if err := l.acquire(ctx, key, token); err != nil {
			l.release(held)
			return nil, err
		}
		held = append(held, hold{key: key, token: token})
	}
	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.release(held)
	}, nil
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	for attempt := 0; attempt < l.attempts; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			l.logger.Error("failed to acquire lock redis error", zap.String("key", key), zap.Error(err))
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.backoff):
		}
	}
	return fmt.Errorf("lock %s: %w", key, ErrBusy)
}

func (l *RedisLocker) release(held []hold) {
	// The caller's context may already be done; releasing must still happen.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.client, []string{held[i].key}, held[i].token).Err(); err != nil {
			l.logger.Warn("failed to release lock", zap.String("key", held[i].key), zap.Error(err))
		}
	}
}
