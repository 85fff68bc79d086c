// Package matcher ranks resources by how well their configured attributes
// match a selection of tags grouped by dimension.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dennis1984/BYWebApp/internal/apperr"
	"github.com/dennis1984/BYWebApp/internal/metrics"
	"github.com/dennis1984/BYWebApp/internal/storage/models"
	"github.com/dennis1984/BYWebApp/pkg/logger"
	"github.com/dennis1984/BYWebApp/pkg/utils"
)

const (
	CoefficientAlpha = "alpha"
	CoefficientBeta  = "beta"
)

// Index is the read side of the derived cache the matcher depends on.
type Index interface {
	ListDimensions(ctx context.Context) ([]*models.Dimension, error)
	GetDimension(ctx context.Context, id int64) (*models.Dimension, error)
	GetDimensionTagConfig(ctx context.Context, dimensionID int64) (*models.DimensionTagConfig, error)
	GetAttributeMembers(ctx context.Context, dimensionID, attributeID int64) ([]models.ResourceRef, error)
	GetSearchIndex(ctx context.Context, kind models.ResourceKind) (map[int64]models.SearchEntry, error)
	GetAdjustCoefficient(ctx context.Context, name string) (float64, error)
	GetDetail(ctx context.Context, kind models.ResourceKind, id int64) (*models.ResourceDetail, error)
}

type Config struct {
	// CoefficientFallback replaces alpha or beta when neither the cache
	// nor the store has a value.
	CoefficientFallback float64
	BetaNormalization   float64
	Workers             int
}

func DefaultConfig() Config {
	return Config{
		CoefficientFallback: 1,
		BetaNormalization:   78.75,
		Workers:             8,
	}
}

type Matcher struct {
	index Index
	cfg   Config
	log   *zap.Logger
}

func New(index Index, cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.BetaNormalization <= 0 {
		cfg.BetaNormalization = def.BetaNormalization
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	return &Matcher{
		index: index,
		cfg:   cfg,
		log:   logger.Named("matcher"),
	}
}

// Match validates req and returns at most three ranked resources.
func (m *Matcher) Match(ctx context.Context, req *Request) ([]Ranked, error) {
	start := time.Now()

	sel, err := m.Validate(ctx, req)
	if err != nil {
		metrics.MatchDuration.WithLabelValues("invalid").Observe(time.Since(start).Seconds())
		return nil, err
	}

	ranked, err := m.Rank(ctx, sel)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.MatchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return ranked, err
}

// Rank scores every resource associated with a touched attribute and
// returns the best three with their details. Candidates whose details
// cannot be loaded are dropped, so fewer than three may come back.
func (m *Matcher) Rank(ctx context.Context, sel *Selection) ([]Ranked, error) {
	t, err := m.collect(ctx, sel.Groups)
	if err != nil {
		return nil, err
	}

	dims, err := m.index.ListDimensions(ctx)
	if err != nil {
		return nil, err
	}
	dimensionIDs := make([]int64, len(dims))
	for i, d := range dims {
		dimensionIDs[i] = d.ID
	}

	refs := t.refs()
	if sel.Kind != nil {
		filtered := refs[:0]
		for _, ref := range refs {
			if ref.Kind == *sel.Kind {
				filtered = append(filtered, ref)
			}
		}
		refs = filtered
	}

	temperatures, err := m.temperatures(ctx, refs)
	if err != nil {
		return nil, err
	}

	alpha, err := m.coefficient(ctx, CoefficientAlpha)
	if err != nil {
		return nil, err
	}
	beta, err := m.coefficient(ctx, CoefficientBeta)
	if err != nil {
		return nil, err
	}

	scored := make([]*candidate, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Workers)
	for i, ref := range refs {
		temp, ok := temperatures[ref]
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dimScores, aggregate := t.score(ref, dimensionIDs)
			scored[i] = &candidate{
				ref:       ref,
				dimScores: dimScores,
				aggregate: aggregate,
				total:     (aggregate + temp) * alpha,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]*candidate, 0, len(scored))
	for _, c := range scored {
		if c != nil {
			candidates = append(candidates, c)
		}
	}
	metrics.MatchCandidates.Observe(float64(len(candidates)))

	top := rerank(candidates, sel.FirstDimensionID, beta, m.cfg.BetaNormalization)
	return m.enrich(ctx, top), nil
}

// collect resolves the selected tags to match values per attribute and
// looks up the resources associated with each touched attribute.
func (m *Matcher) collect(ctx context.Context, groups []TagGroup) (*touched, error) {
	t := newTouched()
	for _, g := range groups {
		cfg, err := m.index.GetDimensionTagConfig(ctx, g.DimensionID)
		if err != nil {
			return nil, err
		}

		if g.IsDefaultTag {
			// One neutral value per attribute, however many tags lead to it.
			for _, matches := range cfg.Tags {
				for _, match := range matches {
					t.addDefault(g.DimensionID, match.AttributeID)
				}
			}
			continue
		}
		for _, tagID := range utils.DistinctSorted(g.TagIDs) {
			for _, match := range cfg.Tags[tagID] {
				t.addValue(g.DimensionID, match.AttributeID, match.MatchValue)
			}
		}
	}

	dims := make([]int64, 0, len(t.values))
	for dim := range t.values {
		dims = append(dims, dim)
	}
	sort.Slice(dims, func(i, j int) bool { return dims[i] < dims[j] })

	for _, dim := range dims {
		attrs := make([]int64, 0, len(t.values[dim]))
		for attr := range t.values[dim] {
			attrs = append(attrs, attr)
		}
		sort.Slice(attrs, func(i, j int) bool { return attrs[i] < attrs[j] })

		for _, attr := range attrs {
			members, err := m.index.GetAttributeMembers(ctx, dim, attr)
			if err != nil {
				return nil, err
			}
			for _, ref := range members {
				t.addMember(ref, dim, attr)
			}
		}
	}
	return t, nil
}

// temperatures looks up each candidate in the search index of its kind.
// Candidates missing from it are no longer live and get no entry.
func (m *Matcher) temperatures(ctx context.Context, refs []models.ResourceRef) (map[models.ResourceRef]float64, error) {
	out := make(map[models.ResourceRef]float64, len(refs))
	indexes := make(map[models.ResourceKind]map[int64]models.SearchEntry)
	for _, ref := range refs {
		index, ok := indexes[ref.Kind]
		if !ok {
			var err error
			index, err = m.index.GetSearchIndex(ctx, ref.Kind)
			if err != nil {
				return nil, err
			}
			indexes[ref.Kind] = index
		}
		if entry, ok := index[ref.ID]; ok {
			out[ref] = entry.Temperature
		}
	}
	return out, nil
}

func (m *Matcher) coefficient(ctx context.Context, name string) (float64, error) {
	v, err := m.index.GetAdjustCoefficient(ctx, name)
	if errors.Is(err, apperr.ErrConfigMissing) {
		m.log.Warn("Adjust coefficient not configured, using fallback",
			zap.String("name", name),
			zap.Float64("fallback", m.cfg.CoefficientFallback),
		)
		return m.cfg.CoefficientFallback, nil
	}
	return v, err
}

func (m *Matcher) enrich(ctx context.Context, top []*candidate) []Ranked {
	ranked := make([]Ranked, 0, len(top))
	for _, c := range top {
		detail, err := m.index.GetDetail(ctx, c.ref.Kind, c.ref.ID)
		if err != nil {
			m.log.Warn("Dropping ranked resource without detail",
				zap.String("kind", c.ref.Kind.String()),
				zap.Int64("id", c.ref.ID),
				zap.Error(err),
			)
			continue
		}
		ranked = append(ranked, Ranked{
			Kind:     c.ref.Kind,
			ID:       c.ref.ID,
			Affinity: fmt.Sprintf("%.2f", c.total),
			Total:    c.total,
			Detail:   detail,
		})
	}
	return ranked
}
