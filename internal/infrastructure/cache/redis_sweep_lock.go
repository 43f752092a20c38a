package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultSweepLockTTL is used when no TTL is given
const DefaultSweepLockTTL = time.Minute

// RedisSweepLock makes reconciliation sweeps mutually exclusive across
// instances. The lock is refreshed every TTL/2 while held, so a crashed
// holder frees it within one TTL.
type RedisSweepLock struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSweepLock creates a sweep lock on the given key
func NewRedisSweepLock(client redis.Scripter, key string, ttl time.Duration, logger *zap.Logger) *RedisSweepLock {
	if ttl <= 0 {
		ttl = DefaultSweepLockTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSweepLock{
		locker: redislock.New(client),
		key:    key,
		ttl:    ttl,
		logger: logger,
	}
}

// TryAcquire obtains the lock without waiting. A lock held by another
// instance yields acquired=false and no error.
func (l *RedisSweepLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	lock, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("obtain redis lock %s: %w", l.key, err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go l.keepAlive(lock, stop, &wg)

	var once sync.Once
	release := func() {
		once.Do(func() {
			close(stop)
			wg.Wait()

			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("Failed to release sweep lock", zap.String("key", l.key), zap.Error(err))
			}
		})
	}
	return release, true, nil
}

func (l *RedisSweepLock) keepAlive(lock *redislock.Lock, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(l.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
			err := lock.Refresh(ctx, l.ttl, nil)
			cancel()
			if err != nil {
				// The sweep keeps running; another instance may start one once the key expires
				l.logger.Warn("Failed to refresh sweep lock", zap.String("key", l.key), zap.Error(err))
				if errors.Is(err, redislock.ErrNotObtained) {
					return
				}
			}
		}
	}
}
