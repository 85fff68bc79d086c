package derived

import (
	"context"

	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

// CreateResource stores r and invalidates the indexes of its kind.
func (c *Cache) CreateResource(ctx context.Context, r *models.Resource) error {
	if err := checkKind(r.Kind); err != nil {
		return err
	}
	if _, err := storeCall(ctx, c, "insert_resource", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.InsertResource(ctx, r)
	}); err != nil {
		return err
	}
	c.invalidateResource(ctx, r.Kind, r.ID, false)
	return nil
}

func (c *Cache) UpdateResource(ctx context.Context, r *models.Resource) error {
	if err := checkKind(r.Kind); err != nil {
		return err
	}
	if _, err := storeCall(ctx, c, "update_resource", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.UpdateResource(ctx, r)
	}); err != nil {
		return err
	}
	c.invalidateResource(ctx, r.Kind, r.ID, false)
	return nil
}

// DeleteResource soft-deletes the resource and drops its cached counters.
func (c *Cache) DeleteResource(ctx context.Context, kind models.ResourceKind, id int64) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	if _, err := storeCall(ctx, c, "delete_resource", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.store.DeleteResource(ctx, kind, id)
	}); err != nil {
		return err
	}
	c.invalidateResource(ctx, kind, id, true)
	return nil
}

func (c *Cache) invalidateResource(ctx context.Context, kind models.ResourceKind, id int64, counters bool) {
	keys := []string{detailKey(kind, id)}
	if counters {
		c.bumpGeneration(ctx, counterGeneration(kind, id))
		for _, col := range models.AllCounterColumns() {
			keys = append(keys, counterKey(kind, id, col))
		}
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		c.cacheFailure("del", keys[0], err)
	}
	c.bumpGeneration(ctx, kind.String())

	c.log.Debug("Resource invalidated",
		zap.String("kind", kind.String()),
		zap.Int64("id", id),
	)
}
