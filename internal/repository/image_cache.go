package repository

import (
	"context"
	"errors"
	"time"

	"FinChart/internal/domain/models"
	domrepo "FinChart/internal/domain/repository"
	"FinChart/pkg/cache"
	applogger "FinChart/pkg/logger"
)

// ImageCache stores encoded charts in a cache.Service.
type ImageCache struct {
	c       cache.Service
	ttl     time.Duration
	lockTTL time.Duration
	l       *applogger.Logger
}

var _ domrepo.ImageCache = (*ImageCache)(nil)

func NewImageCache(c cache.Service, ttl, lockTTL time.Duration, l *applogger.Logger) *ImageCache {
	return &ImageCache{c: c, ttl: ttl, lockTTL: lockTTL, l: l}
}

func (ic *ImageCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	if err := ic.c.Get(ctx, key, &data); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

func (ic *ImageCache) Set(ctx context.Context, key string, data []byte) error {
	return ic.c.Set(ctx, key, data, ic.ttl)
}

func (ic *ImageCache) InvalidateSubject(ctx context.Context, s models.Subject) error {
	pattern := cache.BuildPattern(domrepo.ImageKey(s) + ":")
	if err := ic.c.DeleteByPattern(ctx, pattern); err != nil {
		return err
	}
	ic.l.Debug("chart cache invalidated", applogger.String("pattern", pattern))
	return nil
}

// Lock takes a short lease on key so one replica renders a missing chart.
func (ic *ImageCache) Lock(ctx context.Context, key string) (func(), bool, error) {
	lockKey := "lock:" + key
	ok, err := ic.c.TryLock(ctx, lockKey, ic.lockTTL)
	if err != nil || !ok {
		return nil, ok, err
	}
	return func() {
		// the request context may already be done
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := ic.c.Unlock(ctx, lockKey); err != nil {
			ic.l.Warn("chart cache unlock", applogger.String("key", lockKey), applogger.Error(err))
		}
	}, true, nil
}
