package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/lambda-microservice/controller/pkg/cache"
)

const cacheKeyPrefix = "session:"

// CachedStore mirrors sessions into a Cache best-effort. The underlying
// Store is always authoritative: a cache miss always falls through to the
// store, and a cache read/write failure is logged but never fails the
// call. GetCached additionally reports whether the session came from
// cache, for request-log's cache-hit flag.
type CachedStore struct {
	store  Store
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedStore wraps store with a best-effort cache mirror.
func NewCachedStore(store Store, c cache.Cache, ttlSeconds int, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedStore{store: store, cache: c, ttl: time.Duration(ttlSeconds) * time.Second, logger: logger}
}

func cacheKey(requestID string) string {
	return cacheKeyPrefix + requestID
}

// GetCached returns the session and whether it was served from cache.
func (c *CachedStore) GetCached(ctx context.Context, requestID string) (*Session, bool, error) {
	var cached Session
	err := c.cache.Get(ctx, cacheKey(requestID), &cached)
	if err == nil {
		if cached.IsReachable() {
			return &cached, true, nil
		}
	} else if err != cache.ErrNotFound {
		c.logger.ErrorContext(ctx, "session cache read failed", "request_id", requestID, "error", err)
	}

	s, err := c.store.Get(ctx, requestID)
	if err != nil {
		return nil, false, err
	}

	c.mirror(ctx, s)
	return s, false, nil
}

// Get satisfies Store without reporting the cache-hit flag.
func (c *CachedStore) Get(ctx context.Context, requestID string) (*Session, error) {
	s, _, err := c.GetCached(ctx, requestID)
	return s, err
}

func (c *CachedStore) Create(ctx context.Context, s *Session) error {
	if err := c.store.Create(ctx, s); err != nil {
		return err
	}
	c.mirror(ctx, s)
	return nil
}

func (c *CachedStore) Update(ctx context.Context, s *Session) error {
	if err := c.store.Update(ctx, s); err != nil {
		return err
	}
	c.mirror(ctx, s)
	return nil
}

func (c *CachedStore) Expire(ctx context.Context, requestID string) error {
	if err := c.store.Expire(ctx, requestID); err != nil {
		return err
	}
	if err := c.cache.Delete(ctx, cacheKey(requestID)); err != nil {
		c.logger.ErrorContext(ctx, "session cache invalidate failed", "request_id", requestID, "error", err)
	}
	return nil
}

func (c *CachedStore) CleanupExpired(ctx context.Context) (int64, error) {
	return c.store.CleanupExpired(ctx)
}

func (c *CachedStore) mirror(ctx context.Context, s *Session) {
	if err := c.cache.SetEx(ctx, cacheKey(s.RequestID), s, c.ttl); err != nil {
		c.logger.ErrorContext(ctx, "session cache write failed", "request_id", s.RequestID, "error", err)
	}
}

var _ Store = (*CachedStore)(nil)
