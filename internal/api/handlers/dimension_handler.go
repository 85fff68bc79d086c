package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

type DimensionCache interface {
	ListDimensions(ctx context.Context) ([]*models.Dimension, error)
	SampleDimensionTags(ctx context.Context, dimensionID int64, count int) ([]*models.Tag, error)
}

type DimensionHandler struct {
	cache DimensionCache
}

func NewDimensionHandler(cache DimensionCache) *DimensionHandler {
	return &DimensionHandler{
		cache: cache,
	}
}

func (h *DimensionHandler) List(c *fiber.Ctx) error {
	dims, err := h.cache.ListDimensions(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"dimensions": dims,
	})
}

// SampleTags returns up to count random tags configured under a dimension.
func (h *DimensionHandler) SampleTags(c *fiber.Ctx) error {
	id, err := positiveParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	count, err := positiveQuery(c, "count", 10)
	if err != nil {
		return respondError(c, err)
	}

	tags, err := h.cache.SampleDimensionTags(c.UserContext(), id, count)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"dimension_id": id,
		"tags":         tags,
	})
}
