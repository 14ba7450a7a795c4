package locker

import (
	"context"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const redisKeyPrefix = "pilotage:lock:"

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	retry  time.Duration
}

// NewRedisLocker returns a Locker shared by every process connected to the
// same redis. ttl bounds how long a crashed holder keeps the key.
func NewRedisLocker(rdb redis.UniversalClient, ttl time.Duration) Locker {
	return &redisLocker{client: redislock.New(rdb), ttl: ttl, retry: 50 * time.Millisecond}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.ttl)
		defer cancel()
	}
	lock, err := l.client.Obtain(ctx, redisKeyPrefix+key, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(l.retry),
	})
	if err != nil {
		return nil, err
	}
	stop := make(chan struct{})
	go l.keepAlive(lock, key, stop)
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			if err := lock.Release(context.Background()); err != nil && err != redislock.ErrLockNotHeld {
				logrus.WithField("key", key).Warnf("failed to release redis lock: %v", err)
			}
		})
	}, nil
}

// keepAlive extends the lock every half ttl until stop is closed.
func (l *redisLocker) keepAlive(lock *redislock.Lock, key string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := lock.Refresh(context.Background(), l.ttl, nil); err != nil {
				logrus.WithField("key", key).Warnf("failed to refresh redis lock: %v", err)
				return
			}
		}
	}
}

// FromEnv builds a redis backed Locker when addr is set, an in-process one otherwise.
func FromEnv(addr, password string) Locker {
	if addr == "" {
		return NewKeyedMutex()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisLocker(rdb, 30*time.Second)
}
