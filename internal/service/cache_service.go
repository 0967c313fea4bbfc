package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/rollcall-api/pkg/errors"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	DeleteByPattern(ctx context.Context, pattern string) error
}

// RosterGenerationKey holds the owner's roster generation. Every roster write
// bumps it, so payloads cached under an older generation are never read again.
func RosterGenerationKey(ownerID string) string {
	return fmt.Sprintf("roster:%s:version", ownerID)
}

// RosterStatsKey is the cache key of an owner's roster statistics.
func RosterStatsKey(ownerID string, generation int64) string {
	return fmt.Sprintf("roster:%s:g%d:stats", ownerID, generation)
}

// RosterClassesKey is the cache key of an owner's class-wise grouping.
func RosterClassesKey(ownerID string, generation int64) string {
	return fmt.Sprintf("roster:%s:g%d:classes", ownerID, generation)
}

// RosterPayloadPattern matches every cached payload of an owner across
// generations, leaving the generation counter alone.
func RosterPayloadPattern(ownerID string) string {
	return fmt.Sprintf("roster:%s:g*", ownerID)
}

// CacheService orchestrates cache operations and related metrics.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry. It returns true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, key, dest)
	s.metrics.RecordCacheOperation(err == nil, time.Since(start))
	if err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return false, nil
		}
		s.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores the value in cache.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	start := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(start))
	if err != nil {
		s.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Generation reads the counter stored at key. A missing counter is
// generation 0. The boolean is false when caching is off or the backend
// failed, in which case callers must neither read nor write payloads.
func (s *CacheService) Generation(ctx context.Context, key string) (int64, bool) {
	if !s.Enabled() {
		return 0, false
	}
	var generation int64
	if err := s.repo.Get(ctx, key, &generation); err != nil {
		if errors.Is(err, appErrors.ErrCacheMiss) {
			return 0, true
		}
		s.logger.Warn("cache generation read failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return generation, true
}

// Bump advances the generation counter stored at key.
func (s *CacheService) Bump(ctx context.Context, key string) error {
	if !s.Enabled() {
		return nil
	}
	if _, err := s.repo.Incr(ctx, key); err != nil {
		s.logger.Warn("cache generation bump failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes cached values for the provided pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
