package matcher

import (
	"github.com/goccy/go-json"

	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

const (
	keyTagIDs       = "tag_ids"
	keyDimensionID  = "dimension_id"
	keyIsDefaultTag = "is_default_tag"
)

// RawTagGroup is one undecoded element of tags_list. Its key set is checked
// before any field is decoded.
type RawTagGroup map[string]json.RawMessage

type Request struct {
	FirstDimensionID int64         `json:"first_dimension_id"`
	TagsList         []RawTagGroup `json:"tags_list"`
	ResourceKind     *string       `json:"resource_kind,omitempty"`
}

type TagGroup struct {
	DimensionID  int64   `json:"dimension_id" validate:"gt=0"`
	TagIDs       []int64 `json:"tag_ids" validate:"omitempty,dive,gt=0"`
	IsDefaultTag bool    `json:"is_default_tag"`
}

// Selection is a request that passed validation.
type Selection struct {
	FirstDimensionID int64
	Groups           []TagGroup
	// Kind is nil when every resource kind is wanted.
	Kind *models.ResourceKind
}

// Ranked is one entry of a match result.
type Ranked struct {
	Kind     models.ResourceKind    `json:"source_type"`
	ID       int64                  `json:"id"`
	Affinity string                 `json:"match_degree"`
	Total    float64                `json:"-"`
	Detail   *models.ResourceDetail `json:"detail"`
}

type candidate struct {
	ref       models.ResourceRef
	dimScores map[int64]float64
	aggregate float64
	total     float64
}
