package models

import (
	"strconv"
	"strings"

	"github.com/dennis1984/BYWebApp/internal/apperr"
)

// ResourceKind discriminates the candidate types. The numeric values are
// the source_type codes persisted in association and comment rows.
type ResourceKind int

const (
	KindMedia       ResourceKind = 1
	KindCase        ResourceKind = 2
	KindInformation ResourceKind = 3
)

func AllKinds() []ResourceKind {
	return []ResourceKind{KindMedia, KindCase, KindInformation}
}

func (k ResourceKind) Valid() bool {
	switch k {
	case KindMedia, KindCase, KindInformation:
		return true
	}
	return false
}

func (k ResourceKind) String() string {
	switch k {
	case KindMedia:
		return "media"
	case KindCase:
		return "case"
	case KindInformation:
		return "information"
	}
	return "unknown(" + strconv.Itoa(int(k)) + ")"
}

// ParseResourceKind accepts a kind name or its numeric code.
func ParseResourceKind(s string) (ResourceKind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range AllKinds() {
		if s == k.String() || s == strconv.Itoa(int(k)) {
			return k, nil
		}
	}
	return 0, apperr.InvalidInput("resource_kind", "unknown resource kind %q", s)
}

type CounterColumn string

const (
	CounterRead       CounterColumn = "read"
	CounterLike       CounterColumn = "like"
	CounterCollection CounterColumn = "collection"
	CounterComment    CounterColumn = "comment"
)

func AllCounterColumns() []CounterColumn {
	return []CounterColumn{CounterRead, CounterLike, CounterCollection, CounterComment}
}

func (c CounterColumn) Valid() bool {
	switch c {
	case CounterRead, CounterLike, CounterCollection, CounterComment:
		return true
	}
	return false
}

func ParseCounterColumn(s string) (CounterColumn, error) {
	c := CounterColumn(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", apperr.InvalidInput("column", "unknown counter %q", s)
	}
	return c, nil
}

type ScoreAction string

const (
	ScoreActionComment  ScoreAction = "comment"
	ScoreActionDownload ScoreAction = "download"
)
