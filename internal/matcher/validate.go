package matcher

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks req against the configured dimensions and tags. Every
// failure is an apperr.InvalidInputError naming the offending parameter.
func (m *Matcher) Validate(ctx context.Context, req *Request) (*Selection, error) {
	if req == nil {
		return nil, apperr.InvalidInput("tags_list", "request is empty")
	}

	if err := m.checkDimension(ctx, "first_dimension_id", req.FirstDimensionID); err != nil {
		return nil, err
	}

	if len(req.TagsList) == 0 {
		return nil, apperr.InvalidInput("tags_list", "must contain at least one group")
	}

	sel := &Selection{
		FirstDimensionID: req.FirstDimensionID,
		Groups:           make([]TagGroup, 0, len(req.TagsList)),
	}
	for i, raw := range req.TagsList {
		group, err := decodeGroup(i, raw)
		if err != nil {
			return nil, err
		}
		if err := m.checkDimension(ctx, "tags_list", group.DimensionID); err != nil {
			return nil, err
		}
		if !group.IsDefaultTag {
			if err := m.checkTags(ctx, group); err != nil {
				return nil, err
			}
		}
		sel.Groups = append(sel.Groups, *group)
	}

	if req.ResourceKind != nil {
		kind, err := models.ParseResourceKind(*req.ResourceKind)
		if err != nil {
			return nil, err
		}
		sel.Kind = &kind
	}

	return sel, nil
}

// decodeGroup requires the exact key set before decoding the fields.
func decodeGroup(index int, raw RawTagGroup) (*TagGroup, error) {
	var missing, extra []string
	for _, key := range []string{keyTagIDs, keyDimensionID, keyIsDefaultTag} {
		if _, ok := raw[key]; !ok {
			missing = append(missing, key)
		}
	}
	for key := range raw {
		switch key {
		case keyTagIDs, keyDimensionID, keyIsDefaultTag:
		default:
			extra = append(extra, key)
		}
	}
	if len(missing) > 0 {
		return nil, apperr.InvalidInput("tags_list", "group %d is missing %s", index, strings.Join(missing, ", "))
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, apperr.InvalidInput("tags_list", "group %d has unexpected %s", index, strings.Join(extra, ", "))
	}

	var g TagGroup
	if err := json.Unmarshal(raw[keyDimensionID], &g.DimensionID); err != nil {
		return nil, apperr.InvalidInput("tags_list", "group %d dimension_id must be an integer", index)
	}
	if err := json.Unmarshal(raw[keyTagIDs], &g.TagIDs); err != nil {
		return nil, apperr.InvalidInput("tags_list", "group %d tag_ids must be a list of integers", index)
	}
	if err := json.Unmarshal(raw[keyIsDefaultTag], &g.IsDefaultTag); err != nil {
		return nil, apperr.InvalidInput("tags_list", "group %d is_default_tag must be a boolean", index)
	}

	if err := structValidator().Struct(&g); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return nil, apperr.InvalidInput("tags_list", "group %d %s failed %s=%s", index, fe.Namespace(), fe.Tag(), fe.Param())
		}
		return nil, apperr.InvalidInput("tags_list", "group %d: %v", index, err)
	}
	return &g, nil
}

func (m *Matcher) checkDimension(ctx context.Context, field string, id int64) error {
	if id <= 0 {
		return apperr.InvalidInput(field, "dimension id must be positive, got %d", id)
	}
	_, err := m.index.GetDimension(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return apperr.InvalidInput(field, "dimension %d does not exist", id)
	}
	return err
}

func (m *Matcher) checkTags(ctx context.Context, g *TagGroup) error {
	cfg, err := m.index.GetDimensionTagConfig(ctx, g.DimensionID)
	if err != nil {
		return err
	}
	for _, tagID := range g.TagIDs {
		if !cfg.HasTag(tagID) {
			return apperr.InvalidInput("tags_list", "tag %d is not configured under dimension %d", tagID, g.DimensionID)
		}
	}
	return nil
}
