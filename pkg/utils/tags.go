package utils

import (
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const tagKeySeparator = ":"

// CanonicalTagKey joins the distinct tag ids in ascending order, so two
// resources share a key exactly when they share a tag set.
func CanonicalTagKey(tagIDs []int64) string {
	ids := DistinctSorted(tagIDs)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, tagKeySeparator)
}

// SplitTagKey is the inverse of CanonicalTagKey. Malformed parts are skipped.
func SplitTagKey(key string) []int64 {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, tagKeySeparator)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func DistinctSorted(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// DecodeTagList parses the serialized tag column. An empty column is an
// empty list.
func DecodeTagList(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return []int64{}, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func EncodeTagList(ids []int64) string {
	if ids == nil {
		ids = []int64{}
	}
	data, _ := json.Marshal(ids)
	return string(data)
}
