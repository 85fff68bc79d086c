package derived

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

// ListDimensions returns the active dimensions in display order.
func (c *Cache) ListDimensions(ctx context.Context) ([]*models.Dimension, error) {
	return load(ctx, c, "dimensions", "dimension:list", configGeneration, func(ctx context.Context) ([]*models.Dimension, error) {
		dims, err := c.store.ListDimensions(ctx)
		if dims == nil && err == nil {
			dims = []*models.Dimension{}
		}
		return dims, err
	})
}

func (c *Cache) GetDimension(ctx context.Context, id int64) (*models.Dimension, error) {
	dims, err := c.ListDimensions(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range dims {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperr.NotFound("dimension", id)
}

// GetDimensionTagConfig joins the dimension's attributes with the tags
// configured under them.
func (c *Cache) GetDimensionTagConfig(ctx context.Context, dimensionID int64) (*models.DimensionTagConfig, error) {
	if _, err := c.GetDimension(ctx, dimensionID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("dimension:%d:tags", dimensionID)
	return load(ctx, c, "tag_config", key, configGeneration, func(ctx context.Context) (*models.DimensionTagConfig, error) {
		attrs, err := c.store.ListAttributes(ctx, dimensionID)
		if err != nil {
			return nil, err
		}
		attrIDs := make([]int64, len(attrs))
		for i, a := range attrs {
			attrIDs[i] = a.ID
		}

		configures, err := c.store.ListTagConfigures(ctx, attrIDs)
		if err != nil {
			return nil, err
		}
		tagIDs := make([]int64, 0, len(configures))
		for _, tc := range configures {
			tagIDs = append(tagIDs, tc.TagID)
		}
		tags, err := c.store.ListTags(ctx, tagIDs)
		if err != nil {
			return nil, err
		}

		cfg := &models.DimensionTagConfig{
			DimensionID:  dimensionID,
			AttributeIDs: attrIDs,
			Tags:         make(map[int64][]models.TagMatch),
			TagNames:     make(map[int64]string, len(tags)),
		}
		for _, t := range tags {
			cfg.TagNames[t.ID] = t.Name
		}
		for _, tc := range configures {
			if _, ok := cfg.TagNames[tc.TagID]; !ok {
				continue
			}
			cfg.Tags[tc.TagID] = append(cfg.Tags[tc.TagID], models.TagMatch{
				AttributeID: tc.AttributeID,
				MatchValue:  tc.MatchValue,
			})
		}
		return cfg, nil
	})
}

// GetAttributeMembers returns the resources associated with an attribute
// under a dimension.
func (c *Cache) GetAttributeMembers(ctx context.Context, dimensionID, attributeID int64) ([]models.ResourceRef, error) {
	key := fmt.Sprintf("dimension:%d:attribute:%d:members", dimensionID, attributeID)
	return load(ctx, c, "members", key, configGeneration, func(ctx context.Context) ([]models.ResourceRef, error) {
		refs, err := c.store.ListAttributeMembers(ctx, dimensionID, attributeID)
		if refs == nil && err == nil {
			refs = []models.ResourceRef{}
		}
		return refs, err
	})
}

// SampleDimensionTags picks up to count distinct tags configured under the
// dimension at random.
func (c *Cache) SampleDimensionTags(ctx context.Context, dimensionID int64, count int) ([]*models.Tag, error) {
	if count <= 0 {
		return nil, apperr.InvalidInput("count", "must be positive, got %d", count)
	}

	cfg, err := c.GetDimensionTagConfig(ctx, dimensionID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(cfg.Tags))
	for id := range cfg.Tags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if len(ids) > count {
		ids = ids[:count]
	}

	tags := make([]*models.Tag, len(ids))
	for i, id := range ids {
		tags[i] = &models.Tag{ID: id, Name: cfg.TagNames[id], Status: models.StatusActive}
	}
	return tags, nil
}

// GetAdjustCoefficient returns a named tuning scalar. It fails with
// apperr.ErrConfigMissing when the store has no active value; picking a
// fallback is up to the caller.
func (c *Cache) GetAdjustCoefficient(ctx context.Context, name string) (float64, error) {
	v, err := load(ctx, c, "coefficient", "coefficient:"+name, configGeneration, func(ctx context.Context) (float64, error) {
		return c.store.GetAdjustCoefficient(ctx, name)
	})
	if errors.Is(err, apperr.ErrNotFound) {
		return 0, apperr.ConfigMissing("adjust coefficient " + name)
	}
	return v, err
}

// InvalidateConfig marks every cached configuration entry stale. Call it
// after dimensions, tags, weights, associations or coefficients change.
func (c *Cache) InvalidateConfig(ctx context.Context) {
	c.bumpGeneration(ctx, configGeneration)
}
