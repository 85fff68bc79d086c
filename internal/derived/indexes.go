package derived

import (
	"context"
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/pkg/utils"
)

// GetTagsIndex maps each canonical tag key to the ids, ascending, of the
// resources carrying exactly that tag set. Untagged resources are left out.
func (c *Cache) GetTagsIndex(ctx context.Context, kind models.ResourceKind) (map[string][]int64, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return load(ctx, c, "tags_index", indexKey(kind, "tags"), kind.String(), func(ctx context.Context) (map[string][]int64, error) {
		resources, err := c.store.ListResources(ctx, kind)
		if err != nil {
			return nil, err
		}
		return buildTagsIndex(resources), nil
	})
}

func buildTagsIndex(resources []*models.Resource) map[string][]int64 {
	index := make(map[string][]int64)
	for _, r := range resources {
		key := utils.CanonicalTagKey(r.Tags)
		if key == "" {
			continue
		}
		index[key] = append(index[key], r.ID)
	}
	for _, ids := range index {
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return index
}

// GetSortOrderIndex lists ids by descending recency.
func (c *Cache) GetSortOrderIndex(ctx context.Context, kind models.ResourceKind) ([]int64, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return load(ctx, c, "sort_order", indexKey(kind, "sort_order"), kind.String(), func(ctx context.Context) ([]int64, error) {
		resources, err := c.store.ListResources(ctx, kind)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(resources))
		for i, r := range resources {
			ids[i] = r.ID
		}
		return ids, nil
	})
}

// GetSearchIndex maps id to the flattened searchable fields of a resource.
func (c *Cache) GetSearchIndex(ctx context.Context, kind models.ResourceKind) (map[int64]models.SearchEntry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	return load(ctx, c, "search_index", indexKey(kind, "search"), kind.String(), func(ctx context.Context) (map[int64]models.SearchEntry, error) {
		resources, err := c.store.ListResources(ctx, kind)
		if err != nil {
			return nil, err
		}
		entries, err := c.searchEntries(ctx, resources)
		if err != nil {
			return nil, err
		}

		index := make(map[int64]models.SearchEntry, len(entries))
		for _, e := range entries {
			index[e.ID] = e
		}
		return index, nil
	})
}

// searchEntries projects resources, resolving tag names in one store call.
func (c *Cache) searchEntries(ctx context.Context, resources []*models.Resource) ([]models.SearchEntry, error) {
	var allTags []int64
	for _, r := range resources {
		allTags = append(allTags, r.Tags...)
	}
	names, err := c.store.ResourceTagNames(ctx, utils.DistinctSorted(allTags))
	if err != nil {
		return nil, err
	}

	entries := make([]models.SearchEntry, 0, len(resources))
	for _, r := range resources {
		entries = append(entries, models.SearchEntry{
			ID:          r.ID,
			Title:       r.Title,
			Subtitle:    r.Subtitle,
			Tags:        r.Tags,
			TagNames:    tagNames(r.Tags, names),
			Temperature: r.Temperature,
			MediaType:   r.MediaType,
			ThemeType:   r.ThemeType,
			Progress:    r.Progress,
			Updated:     r.Updated.Unix(),
		})
	}
	return entries, nil
}

// FilterResources lists, in recency order, the resources of kind passing f.
// It is served from the cached indexes; while Redis is unavailable the
// filter runs in the store instead.
func (c *Cache) FilterResources(ctx context.Context, kind models.ResourceKind, f models.ResourceFilter) ([]models.SearchEntry, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	if _, err := c.kv.Generation(ctx, kind.String()); err != nil {
		c.cacheFailure("generation", indexKey(kind, "search"), err)
		return storeCall(ctx, c, "filter_resources", func(ctx context.Context) ([]models.SearchEntry, error) {
			resources, err := c.store.FilterResources(ctx, kind, f)
			if err != nil {
				return nil, err
			}
			return c.searchEntries(ctx, resources)
		})
	}

	order, err := c.GetSortOrderIndex(ctx, kind)
	if err != nil {
		return nil, err
	}
	index, err := c.GetSearchIndex(ctx, kind)
	if err != nil {
		return nil, err
	}

	entries := []models.SearchEntry{}
	for _, id := range order {
		if e, ok := index[id]; ok && f.Matches(e) {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// NextID returns the id that follows id in recency order. It reports false
// when id is the last one.
func (c *Cache) NextID(ctx context.Context, kind models.ResourceKind, id int64) (int64, bool, error) {
	ids, err := c.GetSortOrderIndex(ctx, kind)
	if err != nil {
		return 0, false, err
	}
	for i, v := range ids {
		if v != id {
			continue
		}
		if i+1 < len(ids) {
			return ids[i+1], true, nil
		}
		return 0, false, nil
	}
	return 0, false, apperr.NotFound(kind.String(), id)
}

// Search returns, in recency order, the ids whose title, subtitle or tag
// names contain keyword, ignoring case.
func (c *Cache) Search(ctx context.Context, kind models.ResourceKind, keyword string) ([]int64, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil, apperr.InvalidInput("keyword", "must not be empty")
	}

	order, err := c.GetSortOrderIndex(ctx, kind)
	if err != nil {
		return nil, err
	}
	index, err := c.GetSearchIndex(ctx, kind)
	if err != nil {
		return nil, err
	}

	ids := []int64{}
	for _, id := range order {
		entry, ok := index[id]
		if ok && entryMatches(entry, keyword) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func entryMatches(e models.SearchEntry, keyword string) bool {
	if strings.Contains(strings.ToLower(e.Title), keyword) || strings.Contains(strings.ToLower(e.Subtitle), keyword) {
		return true
	}
	for _, name := range e.TagNames {
		if strings.Contains(strings.ToLower(name), keyword) {
			return true
		}
	}
	return false
}

// RelatedByTags returns up to limit resources of targetKind, preferring
// the tag groups that share the most tags with the source resource.
// Candidates that fail to load are skipped.
func (c *Cache) RelatedByTags(ctx context.Context, sourceKind models.ResourceKind, sourceID int64, targetKind models.ResourceKind, limit int) ([]*models.ResourceDetail, error) {
	if limit <= 0 {
		return nil, apperr.InvalidInput("limit", "must be positive, got %d", limit)
	}

	source, err := c.GetDetail(ctx, sourceKind, sourceID)
	if err != nil {
		return nil, err
	}
	index, err := c.GetTagsIndex(ctx, targetKind)
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(source.Tags))
	for _, t := range source.Tags {
		wanted[t] = struct{}{}
	}

	type group struct {
		key    string
		shared int
	}
	groups := make([]group, 0, len(index))
	for key := range index {
		shared := 0
		for _, t := range utils.SplitTagKey(key) {
			if _, ok := wanted[t]; ok {
				shared++
			}
		}
		groups = append(groups, group{key: key, shared: shared})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].shared != groups[j].shared {
			return groups[i].shared > groups[j].shared
		}
		return groups[i].key < groups[j].key
	})

	related := make([]*models.ResourceDetail, 0, limit)
	for _, g := range groups {
		for _, id := range index[g.key] {
			if targetKind == sourceKind && id == sourceID {
				continue
			}
			d, err := c.GetDetail(ctx, targetKind, id)
			if errors.Is(err, apperr.ErrNotFound) {
				c.log.Debug("Skipping related resource", zap.Int64("id", id), zap.Error(err))
				continue
			}
			if err != nil {
				return nil, err
			}
			related = append(related, d)
			if len(related) == limit {
				return related, nil
			}
		}
	}
	return related, nil
}
