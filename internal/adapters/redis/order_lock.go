package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// unlockScript deletes the key only if it still holds our token, so an
// expired lock taken over by another replica is never released by us.
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ErrLockNotAcquired is returned when the lock is still held when ctx ends
var ErrLockNotAcquired = errors.New("order lock not acquired")

// OrderLockConfig configures the distributed order lock
type OrderLockConfig struct {
	KeyPrefix     string
	TTL           time.Duration // lock expiry if the holder dies
	RetryInterval time.Duration
}

// DefaultOrderLockConfig returns sensible defaults
func DefaultOrderLockConfig() OrderLockConfig {
	return OrderLockConfig{
		KeyPrefix:     "checkout:order-lock:",
		TTL:           30 * time.Second,
		RetryInterval: 50 * time.Millisecond,
	}
}

// OrderLock serializes callback processing for one order across replicas
// using SET NX with a per-holder token.
type OrderLock struct {
	client goredis.UniversalClient
	config OrderLockConfig
	logger *zap.Logger
}

// NewClient parses a redis URL and verifies connectivity
func NewClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := goredis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewOrderLock creates a distributed order lock
func NewOrderLock(client goredis.UniversalClient, config OrderLockConfig, logger *zap.Logger) *OrderLock {
	if config.TTL <= 0 {
		config.TTL = DefaultOrderLockConfig().TTL
	}
	if config.RetryInterval <= 0 {
		config.RetryInterval = DefaultOrderLockConfig().RetryInterval
	}
	return &OrderLock{client: client, config: config, logger: logger}
}

// Lock blocks until the order lock is acquired or ctx is done
func (l *OrderLock) Lock(ctx context.Context, orderNo string) (func(), error) {
	key := l.config.KeyPrefix + orderNo
	token := uuid.NewString()

	ticker := time.NewTicker(l.config.RetryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.config.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire order lock %s: %w", orderNo, err)
		}
		if ok {
			return l.unlockFunc(key, token, orderNo), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, orderNo, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *OrderLock) unlockFunc(key, token, orderNo string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, goredis.Nil) {
			// The TTL releases the key eventually.
			l.logger.Warn("Failed to release order lock",
				zap.String("order_no", orderNo),
				zap.Error(err))
		}
	}
}

// HealthCheck pings redis
func (l *OrderLock) HealthCheck(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
