package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

func ids(ranked []Ranked) []int64 {
	out := make([]int64, len(ranked))
	for i, r := range ranked {
		out[i] = r.ID
	}
	return out
}

func TestScenarioAlphaAdjustment(t *testing.T) {
	idx := newFakeIndex()
	idx.addDimension(1)
	idx.addDimension(2)
	idx.configure(1, 11, 101, 5.0)
	idx.configure(2, 21, 201, 5.0)
	idx.associate(media(1), 1, 11)
	idx.associate(media(1), 2, 21)
	idx.addResource(media(1), 2.0)
	idx.coefficients[CoefficientAlpha] = 1.5
	idx.coefficients[CoefficientBeta] = 1

	// A normalization of 100 makes beta=1 leave the total unchanged.
	m := New(idx, Config{BetaNormalization: 100, Workers: 2})
	ranked, err := m.Match(context.Background(), &Request{
		FirstDimensionID: 1,
		TagsList: []RawTagGroup{
			group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false}`),
			group(`{"dimension_id": 2, "tag_ids": [201], "is_default_tag": false}`),
		},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.InDelta(t, 18.0, ranked[0].Total, 1e-9)
	assert.Equal(t, "18.00", ranked[0].Affinity)
	assert.Equal(t, "media-1", ranked[0].Detail.Title)
}

// anchorFixture has four media. m1 leads on adjusted total but scores low
// on the anchor dimension 1; m2..m4 score high on it.
func anchorFixture() *fakeIndex {
	idx := newFakeIndex()
	idx.addDimension(1)
	idx.addDimension(2)
	idx.configure(1, 11, 101, 5.0)
	idx.configure(1, 12, 102, 1.0)
	idx.configure(2, 21, 201, 5.0)
	idx.configure(2, 22, 202, 1.0)

	idx.associate(media(1), 1, 12)
	idx.associate(media(1), 2, 21)
	idx.addResource(media(1), 9)
	for i, id := range []int64{2, 3, 4} {
		idx.associate(media(id), 1, 11)
		idx.associate(media(id), 2, 22)
		idx.addResource(media(id), float64(i))
	}

	idx.coefficients[CoefficientAlpha] = 1
	idx.coefficients[CoefficientBeta] = 2
	return idx
}

func anchorRequest() *Request {
	return &Request{
		FirstDimensionID: 1,
		TagsList: []RawTagGroup{
			group(`{"dimension_id": 1, "tag_ids": [101, 102], "is_default_tag": false}`),
			group(`{"dimension_id": 2, "tag_ids": [201, 202], "is_default_tag": false}`),
		},
	}
}

func TestBetaAppliesToAnchorLeaders(t *testing.T) {
	m := New(anchorFixture(), Config{BetaNormalization: 100, Workers: 4})

	ranked, err := m.Match(context.Background(), anchorRequest())
	require.NoError(t, err)

	// Totals before beta: m1=15, m2=6, m3=7, m4=8. The anchor order puts
	// m2..m4 first, so they are doubled: m4=16, m3=14, m2=12.
	assert.Equal(t, []int64{4, 1, 3}, ids(ranked))
	assert.InDelta(t, 16.0, ranked[0].Total, 1e-9)
	assert.InDelta(t, 15.0, ranked[1].Total, 1e-9)
	assert.Equal(t, "15.00", ranked[1].Affinity)
}

func TestMatchIsDeterministic(t *testing.T) {
	m := New(anchorFixture(), Config{BetaNormalization: 100, Workers: 3})

	first, err := m.Match(context.Background(), anchorRequest())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := m.Match(context.Background(), anchorRequest())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTiesBreakByKindThenID(t *testing.T) {
	idx := newFakeIndex()
	idx.addDimension(1)
	idx.configure(1, 11, 101, 4.0)
	refs := []models.ResourceRef{
		{Kind: models.KindCase, ID: 1},
		{Kind: models.KindMedia, ID: 9},
		{Kind: models.KindMedia, ID: 3},
		{Kind: models.KindInformation, ID: 2},
	}
	for _, ref := range refs {
		idx.associate(ref, 1, 11)
		idx.addResource(ref, 1)
	}

	m := New(idx, DefaultConfig())
	ranked, err := m.Match(context.Background(), &Request{
		FirstDimensionID: 1,
		TagsList:         []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false}`)},
	})
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, models.ResourceRef{Kind: models.KindMedia, ID: 3}, models.ResourceRef{Kind: ranked[0].Kind, ID: ranked[0].ID})
	assert.Equal(t, models.ResourceRef{Kind: models.KindMedia, ID: 9}, models.ResourceRef{Kind: ranked[1].Kind, ID: ranked[1].ID})
	assert.Equal(t, models.ResourceRef{Kind: models.KindCase, ID: 1}, models.ResourceRef{Kind: ranked[2].Kind, ID: ranked[2].ID})
}

func TestTopTenCutComesBeforeAnchorRerank(t *testing.T) {
	idx := newFakeIndex()
	idx.addDimension(1)
	idx.addDimension(2)
	idx.configure(1, 11, 101, 5.0)
	idx.configure(2, 21, 201, 5.0)

	// Eleven media high on dimension 2; media 99 is best on the anchor but
	// has the lowest adjusted total.
	for id := int64(1); id <= 11; id++ {
		idx.associate(media(id), 2, 21)
		idx.addResource(media(id), 10)
	}
	idx.associate(media(99), 1, 11)
	idx.addResource(media(99), 0)
	idx.coefficients[CoefficientBeta] = 1000

	m := New(idx, DefaultConfig())
	ranked, err := m.Match(context.Background(), &Request{
		FirstDimensionID: 1,
		TagsList: []RawTagGroup{
			group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false}`),
			group(`{"dimension_id": 2, "tag_ids": [201], "is_default_tag": false}`),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids(ranked))
}

func TestKindFilter(t *testing.T) {
	idx := anchorFixture()
	cs := models.ResourceRef{Kind: models.KindCase, ID: 50}
	idx.associate(cs, 1, 11)
	idx.addResource(cs, 0)

	m := New(idx, Config{BetaNormalization: 100})
	req := anchorRequest()
	kind := "case"
	req.ResourceKind = &kind

	ranked, err := m.Match(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, models.KindCase, ranked[0].Kind)
	assert.Equal(t, int64(50), ranked[0].ID)
}

func TestMissingCandidatesAreDropped(t *testing.T) {
	idx := anchorFixture()
	idx.missing[media(4)] = true
	delete(idx.search[models.KindMedia], 3)

	m := New(idx, Config{BetaNormalization: 100})
	ranked, err := m.Match(context.Background(), anchorRequest())
	require.NoError(t, err)

	// m3 is gone from the search index so it is never scored; m4 fails
	// enrichment after ranking and is dropped from the result.
	assert.Equal(t, []int64{1, 2}, ids(ranked))
}

func TestCoefficientFallback(t *testing.T) {
	idx := anchorFixture()
	delete(idx.coefficients, CoefficientAlpha)
	delete(idx.coefficients, CoefficientBeta)

	m := New(idx, Config{CoefficientFallback: 1, BetaNormalization: 100})
	ranked, err := m.Match(context.Background(), anchorRequest())
	require.NoError(t, err)

	// alpha=1 and beta=1 over 100 leave totals as they are.
	assert.Equal(t, []int64{1, 4, 3}, ids(ranked))
	assert.InDelta(t, 15.0, ranked[0].Total, 1e-9)
}

func TestNoCandidates(t *testing.T) {
	idx := newFakeIndex()
	idx.addDimension(1)
	idx.configure(1, 11, 101, 4.0)

	m := New(idx, DefaultConfig())
	ranked, err := m.Match(context.Background(), &Request{
		FirstDimensionID: 1,
		TagsList:         []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false}`)},
	})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestMatchRejectsInvalidRequest(t *testing.T) {
	m := New(anchorFixture(), DefaultConfig())
	_, err := m.Match(context.Background(), &Request{FirstDimensionID: 7, TagsList: anchorRequest().TagsList})
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}
