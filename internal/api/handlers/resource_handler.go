package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

type ResourceCache interface {
	GetDetail(ctx context.Context, kind models.ResourceKind, id int64) (*models.ResourceDetail, error)
	AdjustRelevantCount(ctx context.Context, kind models.ResourceKind, id int64, col models.CounterColumn, delta int64) (int64, error)
	SetOpinion(ctx context.Context, userID int64, kind models.ResourceKind, id int64, col models.CounterColumn, on bool) (int64, error)
	FilterResources(ctx context.Context, kind models.ResourceKind, f models.ResourceFilter) ([]models.SearchEntry, error)
	NextID(ctx context.Context, kind models.ResourceKind, id int64) (int64, bool, error)
	Search(ctx context.Context, kind models.ResourceKind, keyword string) ([]int64, error)
	GetSearchIndex(ctx context.Context, kind models.ResourceKind) (map[int64]models.SearchEntry, error)
	RelatedByTags(ctx context.Context, sourceKind models.ResourceKind, sourceID int64, targetKind models.ResourceKind, limit int) ([]*models.ResourceDetail, error)
}

type ResourceHandler struct {
	cache ResourceCache
}

func NewResourceHandler(cache ResourceCache) *ResourceHandler {
	return &ResourceHandler{
		cache: cache,
	}
}

// GetDetail counts a read and returns the detail with its live counters.
func (h *ResourceHandler) GetDetail(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := positiveParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.UserContext()
	if _, err := h.cache.AdjustRelevantCount(ctx, kind, id, models.CounterRead, 1); err != nil {
		return respondError(c, err)
	}
	detail, err := h.cache.GetDetail(ctx, kind, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(detail)
}

func (h *ResourceHandler) Next(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := positiveParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	next, ok, err := h.cache.NextID(c.UserContext(), kind, id)
	if err != nil {
		return respondError(c, err)
	}
	if !ok {
		return c.JSON(fiber.Map{"next_id": nil})
	}
	return c.JSON(fiber.Map{"next_id": next})
}

func (h *ResourceHandler) Like(c *fiber.Ctx) error {
	return h.opinion(c, models.CounterLike, true)
}

func (h *ResourceHandler) Unlike(c *fiber.Ctx) error {
	return h.opinion(c, models.CounterLike, false)
}

func (h *ResourceHandler) Collect(c *fiber.Ctx) error {
	return h.opinion(c, models.CounterCollection, true)
}

func (h *ResourceHandler) Uncollect(c *fiber.Ctx) error {
	return h.opinion(c, models.CounterCollection, false)
}

// opinion applies the calling user's like or collection once; a repeat is
// answered with 409.
func (h *ResourceHandler) opinion(c *fiber.Ctx, col models.CounterColumn, on bool) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	id, err := positiveParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	userID, err := userHeader(c)
	if err != nil {
		return respondError(c, err)
	}

	count, err := h.cache.SetOpinion(c.UserContext(), userID, kind, id, col, on)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"id":    id,
		"count": count,
	})
}

// List returns the resources of a kind, most recently updated first,
// narrowed by the media_type, theme_type, progress, min_temperature and
// max_temperature query parameters when given.
func (h *ResourceHandler) List(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	filter, err := filterQuery(c)
	if err != nil {
		return respondError(c, err)
	}

	results, err := h.cache.FilterResources(c.UserContext(), kind, filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"results": results})
}

// Search matches q against titles, subtitles and tag names, most recently
// updated first.
func (h *ResourceHandler) Search(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return respondError(c, err)
	}
	keyword, _ := c.Locals("keyword").(string)
	if keyword == "" {
		keyword = c.Query("q")
	}

	ctx := c.UserContext()
	ids, err := h.cache.Search(ctx, kind, keyword)
	if err != nil {
		return respondError(c, err)
	}
	index, err := h.cache.GetSearchIndex(ctx, kind)
	if err != nil {
		return respondError(c, err)
	}

	results := make([]models.SearchEntry, 0, len(ids))
	for _, id := range ids {
		if entry, ok := index[id]; ok {
			results = append(results, entry)
		}
	}
	return c.JSON(fiber.Map{
		"keyword": keyword,
		"results": results,
	})
}

// Related lists resources of the target kind that share tags with a
// media item. The target defaults to cases.
func (h *ResourceHandler) Related(c *fiber.Ctx) error {
	id, err := positiveParam(c, "id")
	if err != nil {
		return respondError(c, err)
	}
	target := models.KindCase
	if raw := c.Query("target"); raw != "" {
		if target, err = models.ParseResourceKind(raw); err != nil {
			return respondError(c, apperr.InvalidInput("target", "unknown resource kind %q", raw))
		}
	}
	limit, err := positiveQuery(c, "limit", 3)
	if err != nil {
		return respondError(c, err)
	}

	related, err := h.cache.RelatedByTags(c.UserContext(), models.KindMedia, id, target, limit)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"results": related,
	})
}
