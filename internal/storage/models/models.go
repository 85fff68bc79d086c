package models

import (
	"time"
)

// StatusActive marks a live row. Any other status is a soft delete.
const (
	StatusActive  = 1
	StatusDeleted = 0
)

type Dimension struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Subtitle    string    `json:"subtitle"`
	Description string    `json:"description"`
	SortOrder   int       `json:"sort_order"`
	Status      int       `json:"status"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

type Attribute struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DimensionID int64  `json:"dimension_id"`
	Status      int    `json:"status"`
}

type Tag struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      int    `json:"status"`
}

// TagConfigure weights how strongly a tag implies an attribute.
type TagConfigure struct {
	ID          int64   `json:"id"`
	TagID       int64   `json:"tag_id"`
	AttributeID int64   `json:"attribute_id"`
	MatchValue  float64 `json:"match_value"`
	Status      int     `json:"status"`
}

// MediaConfigure associates a resource with an attribute under a dimension.
type MediaConfigure struct {
	ID          int64        `json:"id"`
	SourceType  ResourceKind `json:"source_type"`
	MediaID     int64        `json:"media_id"`
	DimensionID int64        `json:"dimension_id"`
	AttributeID int64        `json:"attribute_id"`
	Status      int          `json:"status"`
}

type AdjustCoefficient struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Value  float64 `json:"value"`
	Status int     `json:"status"`
}

type ResourceTag struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Resource is one row of the media, cases or information table. Fields
// that only media carries stay zero for the other kinds.
type Resource struct {
	Kind        ResourceKind
	ID          int64
	Title       string
	Subtitle    string
	Description string
	Content     string
	Tags        []int64
	Temperature float64

	ReadCount       int64
	LikeCount       int64
	CollectionCount int64
	CommentCount    int64

	MediaType            int
	ThemeType            int
	Progress             int
	BoxOfficeForecast    float64
	PublicPraiseForecast float64
	AirTime              *time.Time

	Status  int
	Created time.Time
	Updated time.Time
}

func (r *Resource) Counter(column CounterColumn) int64 {
	switch column {
	case CounterRead:
		return r.ReadCount
	case CounterLike:
		return r.LikeCount
	case CounterCollection:
		return r.CollectionCount
	case CounterComment:
		return r.CommentCount
	}
	return 0
}

type Counters struct {
	Read       int64 `json:"read_count"`
	Like       int64 `json:"like_count"`
	Collection int64 `json:"collection_count"`
	Comment    int64 `json:"comment_count"`
}

func (c *Counters) Set(column CounterColumn, value int64) {
	switch column {
	case CounterRead:
		c.Read = value
	case CounterLike:
		c.Like = value
	case CounterCollection:
		c.Collection = value
	case CounterComment:
		c.Comment = value
	}
}

// ResourceDetail is the enriched record served to clients and cached per id.
type ResourceDetail struct {
	Kind        ResourceKind `json:"source_type"`
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	Subtitle    string       `json:"subtitle"`
	Description string       `json:"description"`
	Content     string       `json:"content,omitempty"`
	Tags        []int64      `json:"tags"`
	TagNames    []string     `json:"tag_names"`
	Temperature float64      `json:"temperature"`
	Counters    Counters     `json:"counters"`

	MediaType            int        `json:"media_type,omitempty"`
	ThemeType            int        `json:"theme_type,omitempty"`
	Progress             int        `json:"progress,omitempty"`
	BoxOfficeForecast    float64    `json:"box_office_forecast,omitempty"`
	PublicPraiseForecast float64    `json:"public_praise_forecast,omitempty"`
	AirTime              *time.Time `json:"air_time,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// SearchEntry is the flattened, searchable projection of a resource.
type SearchEntry struct {
	ID          int64    `json:"id"`
	Title       string   `json:"title"`
	Subtitle    string   `json:"subtitle"`
	Tags        []int64  `json:"tags"`
	TagNames    []string `json:"tag_names"`
	Temperature float64  `json:"temperature"`
	MediaType   int      `json:"media_type,omitempty"`
	ThemeType   int      `json:"theme_type,omitempty"`
	Progress    int      `json:"progress,omitempty"`
	Updated     int64    `json:"updated"`
}


type ResourceRef struct {
	Kind ResourceKind `json:"source_type"`
	ID   int64        `json:"id"`
}

// Less orders refs by kind, then id.
func (r ResourceRef) Less(o ResourceRef) bool {
	if r.Kind != o.Kind {
		return r.Kind < o.Kind
	}
	return r.ID < o.ID
}

type TagMatch struct {
	AttributeID int64   `json:"attribute_id"`
	MatchValue  float64 `json:"match_value"`
}

// DimensionTagConfig is the Attribute→TagConfigure→Tag join for one dimension.
type DimensionTagConfig struct {
	DimensionID  int64                `json:"dimension_id"`
	AttributeIDs []int64              `json:"attribute_ids"`
	Tags         map[int64][]TagMatch `json:"tags"`
	TagNames     map[int64]string     `json:"tag_names"`
}

func (c *DimensionTagConfig) HasTag(tagID int64) bool {
	_, ok := c.Tags[tagID]
	return ok
}

type Score struct {
	UserID  int64     `json:"user_id"`
	Score   int64     `json:"score"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

type ScoreRecord struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Action     int       `json:"action"`
	ScoreCount int64     `json:"score_count"`
	Created    time.Time `json:"created"`
}
