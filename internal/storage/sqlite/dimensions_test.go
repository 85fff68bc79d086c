package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

func TestListDimensionsPutsUnsortedLast(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, d := range []*models.Dimension{
		{Name: "unsorted", SortOrder: 0},
		{Name: "second", SortOrder: 2},
		{Name: "first", SortOrder: 1},
	} {
		require.NoError(t, c.InsertDimension(ctx, d))
	}

	dims, err := c.ListDimensions(ctx)
	require.NoError(t, err)
	require.Len(t, dims, 3)
	assert.Equal(t, "first", dims[0].Name)
	assert.Equal(t, "second", dims[1].Name)
	assert.Equal(t, "unsorted", dims[2].Name)
}

func TestGetDimensionNotFound(t *testing.T) {
	c := newTestClient(t)
	_, err := c.GetDimension(context.Background(), 42)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestTagConfigurationJoin(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	dim := &models.Dimension{Name: "mood", SortOrder: 1}
	require.NoError(t, c.InsertDimension(ctx, dim))
	attr := &models.Attribute{Name: "calm", DimensionID: dim.ID}
	require.NoError(t, c.InsertAttribute(ctx, attr))
	tag := &models.Tag{Name: "quiet"}
	require.NoError(t, c.InsertTag(ctx, tag))
	require.NoError(t, c.InsertTagConfigure(ctx, &models.TagConfigure{TagID: tag.ID, AttributeID: attr.ID, MatchValue: 3}))

	attrs, err := c.ListAttributes(ctx, dim.ID)
	require.NoError(t, err)
	require.Len(t, attrs, 1)

	configs, err := c.ListTagConfigures(ctx, []int64{attr.ID})
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, tag.ID, configs[0].TagID)
	assert.InDelta(t, 3.0, configs[0].MatchValue, 1e-9)

	tags, err := c.ListTags(ctx, []int64{tag.ID})
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, "quiet", tags[0].Name)

	// A second active weight for the same (tag, attribute) violates the
	// uniqueness constraint.
	err = c.InsertTagConfigure(ctx, &models.TagConfigure{TagID: tag.ID, AttributeID: attr.ID})
	assert.Error(t, err)
}

func TestListAttributeMembers(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, mc := range []*models.MediaConfigure{
		{SourceType: models.KindCase, MediaID: 4, DimensionID: 1, AttributeID: 7},
		{MediaID: 9, DimensionID: 1, AttributeID: 7},
		{MediaID: 2, DimensionID: 1, AttributeID: 7},
		{MediaID: 2, DimensionID: 1, AttributeID: 8},
	} {
		require.NoError(t, c.InsertMediaConfigure(ctx, mc))
	}

	refs, err := c.ListAttributeMembers(ctx, 1, 7)
	require.NoError(t, err)
	assert.Equal(t, []models.ResourceRef{
		{Kind: models.KindMedia, ID: 2},
		{Kind: models.KindMedia, ID: 9},
		{Kind: models.KindCase, ID: 4},
	}, refs)
}

func TestAdjustCoefficient(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.GetAdjustCoefficient(ctx, "alpha")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	require.NoError(t, c.SetAdjustCoefficient(ctx, "alpha", 2))
	require.NoError(t, c.SetAdjustCoefficient(ctx, "alpha", 2.5))

	v, err := c.GetAdjustCoefficient(ctx, "alpha")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, v, 1e-9)
}
