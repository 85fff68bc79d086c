package derived

import (
	"context"

	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

// GetDetail returns the enriched record of one resource. The cached part is
// the descriptive fields and tag names; counters are read live so a cached
// detail never serves stale counts.
func (c *Cache) GetDetail(ctx context.Context, kind models.ResourceKind, id int64) (*models.ResourceDetail, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}

	detail, err := load(ctx, c, "detail", detailKey(kind, id), kind.String(), func(ctx context.Context) (*models.ResourceDetail, error) {
		return c.buildDetail(ctx, kind, id)
	})
	if err != nil {
		return nil, err
	}

	out := *detail
	counters, err := c.relevantCounts(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	out.Counters = counters
	return &out, nil
}

func (c *Cache) buildDetail(ctx context.Context, kind models.ResourceKind, id int64) (*models.ResourceDetail, error) {
	r, err := c.store.GetResource(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	names, err := c.store.ResourceTagNames(ctx, r.Tags)
	if err != nil {
		return nil, err
	}
	return newDetail(r, names), nil
}

func newDetail(r *models.Resource, names map[int64]string) *models.ResourceDetail {
	d := &models.ResourceDetail{
		Kind:                 r.Kind,
		ID:                   r.ID,
		Title:                r.Title,
		Subtitle:             r.Subtitle,
		Description:          r.Description,
		Content:              r.Content,
		Tags:                 r.Tags,
		TagNames:             tagNames(r.Tags, names),
		Temperature:          r.Temperature,
		MediaType:            r.MediaType,
		ThemeType:            r.ThemeType,
		Progress:             r.Progress,
		BoxOfficeForecast:    r.BoxOfficeForecast,
		PublicPraiseForecast: r.PublicPraiseForecast,
		AirTime:              r.AirTime,
		Created:              r.Created,
		Updated:              r.Updated,
	}
	for _, col := range models.AllCounterColumns() {
		d.Counters.Set(col, r.Counter(col))
	}
	return d
}

// tagNames keeps the order of ids and drops ids with no active tag.
func tagNames(ids []int64, names map[int64]string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := names[id]; ok {
			out = append(out, name)
		}
	}
	return out
}
