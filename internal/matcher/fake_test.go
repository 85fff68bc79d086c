package matcher

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

// fakeIndex is an in-memory Index.
type fakeIndex struct {
	dims         []*models.Dimension
	tagConfigs   map[int64]*models.DimensionTagConfig
	members      map[[2]int64][]models.ResourceRef
	search       map[models.ResourceKind]map[int64]models.SearchEntry
	coefficients map[string]float64
	missing      map[models.ResourceRef]bool
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		tagConfigs:   make(map[int64]*models.DimensionTagConfig),
		members:      make(map[[2]int64][]models.ResourceRef),
		search:       make(map[models.ResourceKind]map[int64]models.SearchEntry),
		coefficients: make(map[string]float64),
		missing:      make(map[models.ResourceRef]bool),
	}
}

func (f *fakeIndex) addDimension(id int64) {
	f.dims = append(f.dims, &models.Dimension{ID: id, Name: fmt.Sprintf("d%d", id), Status: models.StatusActive})
	f.tagConfigs[id] = &models.DimensionTagConfig{
		DimensionID: id,
		Tags:        make(map[int64][]models.TagMatch),
		TagNames:    make(map[int64]string),
	}
}

func (f *fakeIndex) configure(dim, attr, tag int64, value float64) {
	cfg := f.tagConfigs[dim]
	cfg.AttributeIDs = append(cfg.AttributeIDs, attr)
	cfg.Tags[tag] = append(cfg.Tags[tag], models.TagMatch{AttributeID: attr, MatchValue: value})
	cfg.TagNames[tag] = fmt.Sprintf("t%d", tag)
}

func (f *fakeIndex) associate(ref models.ResourceRef, dim, attr int64) {
	key := [2]int64{dim, attr}
	f.members[key] = append(f.members[key], ref)
}

func (f *fakeIndex) addResource(ref models.ResourceRef, temperature float64) {
	if f.search[ref.Kind] == nil {
		f.search[ref.Kind] = make(map[int64]models.SearchEntry)
	}
	f.search[ref.Kind][ref.ID] = models.SearchEntry{ID: ref.ID, Temperature: temperature}
}

func (f *fakeIndex) ListDimensions(context.Context) ([]*models.Dimension, error) {
	return f.dims, nil
}

func (f *fakeIndex) GetDimension(_ context.Context, id int64) (*models.Dimension, error) {
	for _, d := range f.dims {
		if d.ID == id {
			return d, nil
		}
	}
	return nil, apperr.NotFound("dimension", id)
}

func (f *fakeIndex) GetDimensionTagConfig(_ context.Context, id int64) (*models.DimensionTagConfig, error) {
	cfg, ok := f.tagConfigs[id]
	if !ok {
		return nil, apperr.NotFound("dimension", id)
	}
	return cfg, nil
}

func (f *fakeIndex) GetAttributeMembers(_ context.Context, dim, attr int64) ([]models.ResourceRef, error) {
	return f.members[[2]int64{dim, attr}], nil
}

func (f *fakeIndex) GetSearchIndex(_ context.Context, kind models.ResourceKind) (map[int64]models.SearchEntry, error) {
	return f.search[kind], nil
}

func (f *fakeIndex) GetAdjustCoefficient(_ context.Context, name string) (float64, error) {
	v, ok := f.coefficients[name]
	if !ok {
		return 0, apperr.ConfigMissing(name)
	}
	return v, nil
}

func (f *fakeIndex) GetDetail(_ context.Context, kind models.ResourceKind, id int64) (*models.ResourceDetail, error) {
	ref := models.ResourceRef{Kind: kind, ID: id}
	if f.missing[ref] {
		return nil, apperr.NotFound(kind.String(), id)
	}
	if _, ok := f.search[kind][id]; !ok {
		return nil, apperr.NotFound(kind.String(), id)
	}
	return &models.ResourceDetail{Kind: kind, ID: id, Title: fmt.Sprintf("%s-%d", kind, id)}, nil
}

// group builds a raw tags_list element from a JSON literal.
func group(literal string) RawTagGroup {
	var g RawTagGroup
	if err := json.Unmarshal([]byte(literal), &g); err != nil {
		panic(err)
	}
	return g
}

func media(id int64) models.ResourceRef {
	return models.ResourceRef{Kind: models.KindMedia, ID: id}
}
