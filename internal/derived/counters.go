package derived

import (
	"context"

	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/metrics"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/pkg/retry"
)

// GetRelevantCount returns the current value of one counter, seeding the
// cache from the persisted column on a miss.
func (c *Cache) GetRelevantCount(ctx context.Context, kind models.ResourceKind, id int64, col models.CounterColumn) (int64, error) {
	if err := checkCounter(kind, col); err != nil {
		return 0, err
	}

	key := counterKey(kind, id, col)
	v, ok, err := c.kv.GetCounter(ctx, key)
	if err != nil {
		c.cacheFailure("counter", key, err)
		r, err := c.getResource(ctx, kind, id)
		if err != nil {
			return 0, err
		}
		return r.Counter(col), nil
	}
	if ok {
		metrics.CacheHits.WithLabelValues("counter").Inc()
		return v, nil
	}
	metrics.CacheMisses.WithLabelValues("counter").Inc()

	genName := counterGeneration(kind, id)
	gen, genErr := c.kv.Generation(ctx, genName)
	r, err := c.getResource(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	if genErr != nil {
		c.cacheFailure("generation", genName, genErr)
		return r.Counter(col), nil
	}
	return c.seedCounter(ctx, key, r.Counter(col), genName, gen), nil
}

// seedCounter installs value unless another caller got there first or the
// counters were invalidated after gen was read, and returns whatever the
// counter holds afterwards. gen must be read before value.
func (c *Cache) seedCounter(ctx context.Context, key string, value int64, genName string, gen int64) int64 {
	seeded, err := c.kv.SeedCounter(ctx, key, value, genName, gen)
	if err != nil {
		c.cacheFailure("seed", key, err)
		return value
	}
	if seeded {
		return value
	}
	current, ok, err := c.kv.GetCounter(ctx, key)
	if err != nil || !ok {
		return value
	}
	return current
}

// relevantCounts reads all counters of one resource, touching the store at
// most once for the ones that are not cached.
func (c *Cache) relevantCounts(ctx context.Context, kind models.ResourceKind, id int64) (models.Counters, error) {
	var (
		counters models.Counters
		missing  []models.CounterColumn
	)
	for _, col := range models.AllCounterColumns() {
		key := counterKey(kind, id, col)
		v, ok, err := c.kv.GetCounter(ctx, key)
		if err != nil {
			c.cacheFailure("counter", key, err)
		}
		if err != nil || !ok {
			missing = append(missing, col)
			continue
		}
		counters.Set(col, v)
	}
	if len(missing) == 0 {
		return counters, nil
	}

	genName := counterGeneration(kind, id)
	gen, genErr := c.kv.Generation(ctx, genName)
	if genErr != nil {
		c.cacheFailure("generation", genName, genErr)
	}
	r, err := c.getResource(ctx, kind, id)
	if err != nil {
		return counters, err
	}
	for _, col := range missing {
		if genErr != nil {
			counters.Set(col, r.Counter(col))
			continue
		}
		counters.Set(col, c.seedCounter(ctx, counterKey(kind, id, col), r.Counter(col), genName, gen))
	}
	return counters, nil
}

// AdjustRelevantCount adds delta to a counter and returns the new value.
//
// Like, collection and comment counts are written to the store first. The
// resource's counter generation is then bumped and the cached value
// dropped, so the next read reseeds from the store and no seed computed
// before the write can land. Read counts live in the cache and are written
// back each time they cross a multiple of ReadFlushThreshold.
func (c *Cache) AdjustRelevantCount(ctx context.Context, kind models.ResourceKind, id int64, col models.CounterColumn, delta int64) (int64, error) {
	if err := checkCounter(kind, col); err != nil {
		return 0, err
	}

	key := counterKey(kind, id, col)
	if col != models.CounterRead {
		v, err := storeCall(ctx, c, "add_counter", func(ctx context.Context) (int64, error) {
			return c.store.AddCounter(ctx, kind, id, col, delta)
		})
		if err != nil {
			return 0, err
		}
		c.dropCounter(ctx, kind, id, col)
		return v, nil
	}

	v, ok, err := c.kv.AdjustCounter(ctx, key, delta)
	if err != nil {
		c.cacheFailure("adjust_counter", key, err)
		return storeCall(ctx, c, "add_counter", func(ctx context.Context) (int64, error) {
			return c.store.AddCounter(ctx, kind, id, col, delta)
		})
	}
	if !ok {
		if _, err := c.GetRelevantCount(ctx, kind, id, col); err != nil {
			return 0, err
		}
		v, ok, err = c.kv.AdjustCounter(ctx, key, delta)
		if err != nil || !ok {
			if err == nil {
				err = apperr.NotFound("counter", key)
			}
			c.cacheFailure("adjust_counter", key, err)
			return storeCall(ctx, c, "add_counter", func(ctx context.Context) (int64, error) {
				return c.store.AddCounter(ctx, kind, id, col, delta)
			})
		}
	}

	if delta > 0 && v/ReadFlushThreshold > (v-delta)/ReadFlushThreshold {
		c.flushReadCount(ctx, kind, id, v)
	}
	return v, nil
}

// SetOpinion records or withdraws one user's like or collection of a
// resource and returns the new count. Repeating a like, or withdrawing one
// that was never made, fails with ErrConflict and leaves the count alone.
func (c *Cache) SetOpinion(ctx context.Context, userID int64, kind models.ResourceKind, id int64, col models.CounterColumn, on bool) (int64, error) {
	if err := checkCounter(kind, col); err != nil {
		return 0, err
	}
	if userID <= 0 {
		return 0, apperr.InvalidInput("user_id", "must be positive, got %d", userID)
	}

	type result struct {
		value   int64
		changed bool
	}
	res, err := storeCall(ctx, c, "set_opinion", func(ctx context.Context) (result, error) {
		v, changed, err := c.store.SetOpinion(ctx, userID, kind, id, col, on)
		return result{v, changed}, err
	})
	if err != nil {
		return 0, err
	}
	if !res.changed {
		if on {
			return 0, apperr.Conflict("user %d already set %s on %s %d", userID, col, kind, id)
		}
		return 0, apperr.Conflict("user %d has no %s on %s %d", userID, col, kind, id)
	}

	c.dropCounter(ctx, kind, id, col)
	return res.value, nil
}

// dropCounter follows a store write of a durable counter. Bumping the
// generation first voids seeds read before the write; the next read then
// reseeds from the store.
func (c *Cache) dropCounter(ctx context.Context, kind models.ResourceKind, id int64, col models.CounterColumn) {
	c.bumpGeneration(ctx, counterGeneration(kind, id))
	key := counterKey(kind, id, col)
	if err := c.kv.Del(ctx, key); err != nil {
		c.cacheFailure("del", key, err)
	}
}

// flushReadCount writes a cached read count back with retries. A failure
// is logged and counted; the value stays in the cache and the next flush
// carries it.
func (c *Cache) flushReadCount(ctx context.Context, kind models.ResourceKind, id int64, value int64) {
	cfg := c.cfg.Retry
	if cfg.Logger == nil {
		cfg.Logger = c.log
	}
	err := retry.Do(ctx, cfg, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func() error {
			return c.store.FlushReadCount(ctx, kind, id, value)
		})
	})
	if err != nil {
		metrics.CounterFlushFailures.Inc()
		c.log.Error("Failed to flush read count",
			zap.String("kind", kind.String()),
			zap.Int64("id", id),
			zap.Int64("value", value),
			zap.Error(err),
		)
		return
	}
	c.log.Debug("Read count flushed",
		zap.String("kind", kind.String()),
		zap.Int64("id", id),
		zap.Int64("value", value),
	)
}

func (c *Cache) getResource(ctx context.Context, kind models.ResourceKind, id int64) (*models.Resource, error) {
	return storeCall(ctx, c, "get_resource", func(ctx context.Context) (*models.Resource, error) {
		return c.store.GetResource(ctx, kind, id)
	})
}

func checkCounter(kind models.ResourceKind, col models.CounterColumn) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if !col.Valid() {
		return apperr.InvalidInput("column", "unknown counter %q", string(col))
	}
	return nil
}
