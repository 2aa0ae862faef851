package services

import (
	"context"
	"errors"
	"time"

	"poolmate/internal/models"
	"poolmate/internal/utils"
	"poolmate/pkg/cache"
	"poolmate/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CacheStore is the subset of pkg/cache.RedisCache the services rely on.
type CacheStore interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Increment(ctx context.Context, key string) (int64, error)
	SetExpire(ctx context.Context, key string, expiration time.Duration) error
	GetTTL(ctx context.Context, key string) (time.Duration, error)
}

type CacheService interface {
	// Ride documents
	GetRide(ctx context.Context, id primitive.ObjectID) (*models.Ride, bool)
	SetRide(ctx context.Context, ride *models.Ride)
	InvalidateRide(ctx context.Context, id primitive.ObjectID)

	// Rate limiting
	CheckRateLimit(ctx context.Context, key string, limit int64) *RateLimitResult
	RecordAttempt(ctx context.Context, key string, window time.Duration)
	ResetRateLimit(ctx context.Context, key string)
}

type RateLimitResult struct {
	Allowed    bool          `json:"allowed"`
	Count      int64         `json:"count"`
	Remaining  int64         `json:"remaining"`
	RetryAfter time.Duration `json:"retry_after"`
}

type cacheService struct {
	store   CacheStore
	logger  *logger.Logger
	rideTTL time.Duration
}

// NewCacheService wraps store. A nil store yields a cache that never hits
// and a rate limiter that always allows.
func NewCacheService(store CacheStore, log *logger.Logger, rideTTL time.Duration) CacheService {
	if log == nil {
		log = logger.NewNop()
	}
	if rideTTL <= 0 {
		rideTTL = utils.RideCacheTTL
	}
	return &cacheService{
		store:   store,
		logger:  log.WithField("component", "cache"),
		rideTTL: rideTTL,
	}
}

func rideKey(id primitive.ObjectID) string {
	return utils.CacheRidePrefix + id.Hex()
}

func rateLimitKey(key string) string {
	return utils.CacheRateLimitPrefix + key
}

func (s *cacheService) GetRide(ctx context.Context, id primitive.ObjectID) (*models.Ride, bool) {
	if s.store == nil {
		return nil, false
	}

	var ride models.Ride
	if err := s.store.Get(ctx, rideKey(id), &ride); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).WithRideID(id).Warn("Ride cache read failed")
		}
		return nil, false
	}

	s.logger.WithField("cache_key", rideKey(id)).Debug("Cache hit")
	return &ride, true
}

func (s *cacheService) SetRide(ctx context.Context, ride *models.Ride) {
	if s.store == nil || ride == nil {
		return
	}

	if err := s.store.Set(ctx, rideKey(ride.ID), ride, s.rideTTL); err != nil {
		s.logger.WithError(err).WithRideID(ride.ID).Warn("Ride cache write failed")
	}
}

func (s *cacheService) InvalidateRide(ctx context.Context, id primitive.ObjectID) {
	if s.store == nil {
		return
	}

	if err := s.store.Delete(ctx, rideKey(id)); err != nil {
		s.logger.WithError(err).WithRideID(id).Warn("Ride cache invalidation failed")
	}
}

func (s *cacheService) CheckRateLimit(ctx context.Context, key string, limit int64) *RateLimitResult {
	result := &RateLimitResult{Allowed: true, Remaining: limit}
	if s.store == nil || limit <= 0 {
		return result
	}

	var count int64
	if err := s.store.Get(ctx, rateLimitKey(key), &count); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.WithError(err).Warn("Rate limit read failed")
		}
		return result
	}

	result.Count = count
	result.Remaining = limit - count
	if result.Remaining <= 0 {
		result.Allowed = false
		result.Remaining = 0
		if ttl, err := s.store.GetTTL(ctx, rateLimitKey(key)); err == nil && ttl > 0 {
			result.RetryAfter = ttl
		}
	}

	return result
}

func (s *cacheService) RecordAttempt(ctx context.Context, key string, window time.Duration) {
	if s.store == nil {
		return
	}

	count, err := s.store.Increment(ctx, rateLimitKey(key))
	if err != nil {
		s.logger.WithError(err).Warn("Rate limit increment failed")
		return
	}

	if count == 1 {
		if err := s.store.SetExpire(ctx, rateLimitKey(key), window); err != nil {
			s.logger.WithError(err).Warn("Rate limit expiry failed")
		}
	}
}

func (s *cacheService) ResetRateLimit(ctx context.Context, key string) {
	if s.store == nil {
		return
	}

	if err := s.store.Delete(ctx, rateLimitKey(key)); err != nil {
		s.logger.WithError(err).Warn("Rate limit reset failed")
	}
}
