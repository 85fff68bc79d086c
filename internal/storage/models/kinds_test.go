package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dennis1984/BYWebApp/internal/apperr"
)

func TestParseResourceKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ResourceKind
		wantErr bool
	}{
		{in: "media", want: KindMedia},
		{in: "Case", want: KindCase},
		{in: "3", want: KindInformation},
		{in: " information ", want: KindInformation},
		{in: "4", wantErr: true},
		{in: "report", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseResourceKind(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCounterColumn(t *testing.T) {
	c, err := ParseCounterColumn("LIKE")
	require.NoError(t, err)
	assert.Equal(t, CounterLike, c)

	_, err = ParseCounterColumn("dislike")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestCountersSetAndResourceCounter(t *testing.T) {
	r := Resource{ReadCount: 1, LikeCount: 2, CollectionCount: 3, CommentCount: 4}
	var c Counters
	for _, col := range AllCounterColumns() {
		c.Set(col, r.Counter(col))
	}
	assert.Equal(t, Counters{Read: 1, Like: 2, Collection: 3, Comment: 4}, c)
}

func TestResourceRefLess(t *testing.T) {
	assert.True(t, ResourceRef{Kind: KindMedia, ID: 9}.Less(ResourceRef{Kind: KindCase, ID: 1}))
	assert.True(t, ResourceRef{Kind: KindCase, ID: 1}.Less(ResourceRef{Kind: KindCase, ID: 2}))
	assert.False(t, ResourceRef{Kind: KindCase, ID: 2}.Less(ResourceRef{Kind: KindCase, ID: 2}))
}
