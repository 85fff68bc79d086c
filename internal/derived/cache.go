// Package derived serves per-resource details, counters and whole-kind
// indexes out of Redis, rebuilding them from the relational store on a miss.
//
// Every cached index is wrapped in an envelope carrying the generation it
// was built at. Mutations bump the generation, so a stale envelope reads as
// a miss without waiting for the TTL.
package derived

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/metrics"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/pkg/circuitbreaker"
	"github.com/dennis1984/BYWebApp/pkg/logger"
	"github.com/dennis1984/BYWebApp/pkg/retry"
)

// ReadFlushThreshold is how many cached reads accumulate between
// write-backs of the read count.
const ReadFlushThreshold = 50

const configGeneration = "config"

// KV is the subset of the Redis client the cache needs.
type KV interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Generation(ctx context.Context, name string) (int64, error)
	BumpGeneration(ctx context.Context, name string) (int64, error)
	GetCounter(ctx context.Context, key string) (int64, bool, error)
	SeedCounter(ctx context.Context, key string, value int64, genName string, gen int64) (bool, error)
	AdjustCounter(ctx context.Context, key string, delta int64) (int64, bool, error)
}

// Store is the relational source of truth.
type Store interface {
	GetResource(ctx context.Context, kind models.ResourceKind, id int64) (*models.Resource, error)
	ListResources(ctx context.Context, kind models.ResourceKind) ([]*models.Resource, error)
	FilterResources(ctx context.Context, kind models.ResourceKind, f models.ResourceFilter) ([]*models.Resource, error)
	InsertResource(ctx context.Context, r *models.Resource) error
	UpdateResource(ctx context.Context, r *models.Resource) error
	DeleteResource(ctx context.Context, kind models.ResourceKind, id int64) error
	AddCounter(ctx context.Context, kind models.ResourceKind, id int64, col models.CounterColumn, delta int64) (int64, error)
	SetOpinion(ctx context.Context, userID int64, kind models.ResourceKind, id int64, col models.CounterColumn, on bool) (int64, bool, error)
	FlushReadCount(ctx context.Context, kind models.ResourceKind, id int64, value int64) error
	ResourceTagNames(ctx context.Context, ids []int64) (map[int64]string, error)

	ListDimensions(ctx context.Context) ([]*models.Dimension, error)
	ListAttributes(ctx context.Context, dimensionID int64) ([]*models.Attribute, error)
	ListTagConfigures(ctx context.Context, attributeIDs []int64) ([]*models.TagConfigure, error)
	ListTags(ctx context.Context, ids []int64) ([]*models.Tag, error)
	ListAttributeMembers(ctx context.Context, dimensionID, attributeID int64) ([]models.ResourceRef, error)
	GetAdjustCoefficient(ctx context.Context, name string) (float64, error)
}

type Config struct {
	TTL time.Duration
	// BuildTimeout bounds a shared rebuild, which does not stop when the
	// caller that started it goes away.
	BuildTimeout time.Duration
	Retry        retry.Config
}

func DefaultConfig() Config {
	return Config{
		TTL:          24 * time.Hour,
		BuildTimeout: 10 * time.Second,
		Retry:        retry.DefaultConfig(),
	}
}

type Cache struct {
	kv      KV
	store   Store
	breaker *circuitbreaker.CircuitBreaker
	cfg     Config
	group   singleflight.Group
	log     *zap.Logger
}

// BreakerSuccess reports whether a store error should leave the breaker
// alone. Absent rows and bad input say nothing about store health.
func BreakerSuccess(err error) bool {
	return err == nil ||
		errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrInvalidInput) ||
		errors.Is(err, context.Canceled)
}

// New builds a cache over kv and store. A nil breaker gets a default one.
func New(kv KV, store Store, breaker *circuitbreaker.CircuitBreaker, cfg Config) *Cache {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = 10 * time.Second
	}
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker("relational-store", circuitbreaker.Config{
			IsSuccessful: BreakerSuccess,
			Logger:       logger.Named("breaker"),
		})
	}
	return &Cache{
		kv:      kv,
		store:   store,
		breaker: breaker,
		cfg:     cfg,
		log:     logger.Named("derived"),
	}
}

type envelope[T any] struct {
	Generation int64 `json:"generation"`
	Data       T     `json:"data"`
}

// load returns the value cached at key if it was built at the current
// generation of genName, and otherwise builds, caches and returns it.
// Concurrent misses on the same key share one build, which runs detached
// from any single caller's cancellation. Redis failures degrade to building
// from the store on every call.
func load[T any](ctx context.Context, c *Cache, cacheType, key, genName string, build func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	degraded := false
	gen, err := c.kv.Generation(ctx, genName)
	if err != nil {
		c.cacheFailure("generation", key, err)
		degraded = true
	}

	if !degraded {
		var env envelope[T]
		ok, err := c.kv.GetJSON(ctx, key, &env)
		switch {
		case err != nil:
			c.cacheFailure("get", key, err)
			degraded = true
		case ok && env.Generation == gen:
			metrics.CacheHits.WithLabelValues(cacheType).Inc()
			return env.Data, nil
		}
	}
	metrics.CacheMisses.WithLabelValues(cacheType).Inc()

	flightKey := fmt.Sprintf("%s@%d", key, gen)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.BuildTimeout)
		defer cancel()

		data, err := storeCall(buildCtx, c, cacheType, build)
		if err != nil {
			return nil, err
		}
		metrics.CachePopulations.WithLabelValues(cacheType).Inc()

		if !degraded {
			if err := c.kv.SetJSON(buildCtx, key, envelope[T]{Generation: gen, Data: data}, c.cfg.TTL); err != nil {
				c.cacheFailure("set", key, err)
			}
		}
		return data, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// storeCall runs fn through the breaker and classifies its error.
func storeCall[T any](ctx context.Context, c *Cache, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := c.breaker.Execute(ctx, func() error {
		var err error
		out, err = fn(ctx)
		return err
	})
	if err != nil {
		var zero T
		if errors.Is(err, apperr.ErrInvalidInput) {
			return zero, err
		}
		return zero, apperr.Store(op, err)
	}
	return out, nil
}

func (c *Cache) cacheFailure(op, key string, err error) {
	metrics.CacheErrors.WithLabelValues(op).Inc()
	c.log.Warn("Cache store failure, falling back to relational store",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

// bumpGeneration marks every envelope built under name as stale.
func (c *Cache) bumpGeneration(ctx context.Context, name string) {
	if _, err := c.kv.BumpGeneration(ctx, name); err != nil {
		c.cacheFailure("bump", "gen:"+name, err)
	}
}

func detailKey(kind models.ResourceKind, id int64) string {
	return fmt.Sprintf("%s:id:%d", kind, id)
}

func counterKey(kind models.ResourceKind, id int64, col models.CounterColumn) string {
	return fmt.Sprintf("counter:%s:%d:%s", kind, id, col)
}

// counterGeneration names the generation guarding the cached counters of
// one resource.
func counterGeneration(kind models.ResourceKind, id int64) string {
	return fmt.Sprintf("counters:%s:%d", kind, id)
}

func indexKey(kind models.ResourceKind, index string) string {
	return fmt.Sprintf("%s:%s", kind, index)
}

func checkKind(kind models.ResourceKind) error {
	if !kind.Valid() {
		return apperr.InvalidInput("resource_kind", "unknown resource kind %d", int(kind))
	}
	return nil
}
