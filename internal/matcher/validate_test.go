package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

func TestValidateRejects(t *testing.T) {
	kind := "report"
	tests := []struct {
		name  string
		req   *Request
		field string
		msg   string
	}{
		{
			name:  "nil request",
			req:   nil,
			field: "tags_list",
		},
		{
			name:  "unknown first dimension",
			req:   &Request{FirstDimensionID: 9, TagsList: []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false}`)}},
			field: "first_dimension_id",
		},
		{
			name:  "empty tags list",
			req:   &Request{FirstDimensionID: 1},
			field: "tags_list",
		},
		{
			name:  "missing is_default_tag",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [101]}`)}},
			field: "tags_list",
			msg:   "is_default_tag",
		},
		{
			name:  "extra key",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false, "weight": 2}`)}},
			field: "tags_list",
			msg:   "weight",
		},
		{
			name:  "dimension id is not an integer",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": "one", "tag_ids": [101], "is_default_tag": false}`)}},
			field: "tags_list",
		},
		{
			name:  "non-positive tag id",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [0], "is_default_tag": false}`)}},
			field: "tags_list",
		},
		{
			name:  "unknown group dimension",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": 5, "tag_ids": [], "is_default_tag": true}`)}},
			field: "tags_list",
		},
		{
			name:  "tag not configured under dimension",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [201], "is_default_tag": false}`)}},
			field: "tags_list",
			msg:   "tag 201",
		},
		{
			name:  "unknown resource kind",
			req:   &Request{FirstDimensionID: 1, TagsList: []RawTagGroup{group(`{"dimension_id": 1, "tag_ids": [101], "is_default_tag": false}`)}, ResourceKind: &kind},
			field: "resource_kind",
		},
	}

	m := New(anchorFixture(), DefaultConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Validate(context.Background(), tt.req)
			require.ErrorIs(t, err, apperr.ErrInvalidInput)

			var iie *apperr.InvalidInputError
			require.True(t, errors.As(err, &iie))
			assert.Equal(t, tt.field, iie.Field)
			if tt.msg != "" {
				assert.Contains(t, iie.Message, tt.msg)
			}
		})
	}
}

func TestValidateAcceptsDefaultGroupWithUnconfiguredTags(t *testing.T) {
	m := New(anchorFixture(), DefaultConfig())
	kind := "2"

	sel, err := m.Validate(context.Background(), &Request{
		FirstDimensionID: 1,
		TagsList: []RawTagGroup{
			group(`{"dimension_id": 2, "tag_ids": [999], "is_default_tag": true}`),
			group(`{"dimension_id": 1, "tag_ids": [102, 101], "is_default_tag": false}`),
		},
		ResourceKind: &kind,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sel.FirstDimensionID)
	require.Len(t, sel.Groups, 2)
	assert.True(t, sel.Groups[0].IsDefaultTag)
	assert.Equal(t, []int64{102, 101}, sel.Groups[1].TagIDs)
	require.NotNil(t, sel.Kind)
	assert.Equal(t, models.KindCase, *sel.Kind)
}
