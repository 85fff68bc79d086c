package matcher

import (
	"math"
	"sort"

	"github.com/dennis1984/BYWebApp/internal/storage/models"
)

const (
	// DefaultMatchValue is the neutral weight a default group gives each
	// attribute of its dimension. It is also the score of a dimension in
	// which a resource touches no attribute.
	DefaultMatchValue = 3.0
	// MaxContribution caps what a single attribute adds to a dimension.
	MaxContribution = 5.0

	topK      = 10
	betaTopN  = 3
	resultCap = 3
)

// attributeContribution is the largest value plus a tenth of the rest,
// capped at MaxContribution.
func attributeContribution(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	top := sorted[len(sorted)-1]
	rest := 0.0
	for _, v := range sorted[:len(sorted)-1] {
		rest += v
	}
	return math.Min(top+rest/10, MaxContribution)
}

// dimensionScore averages the contributions of the touched attributes a
// resource is associated with. No such attribute means DefaultMatchValue.
func dimensionScore(attrs []int64, values map[int64][]float64) float64 {
	if len(attrs) == 0 {
		return DefaultMatchValue
	}
	sum := 0.0
	for _, attr := range attrs {
		sum += attributeContribution(values[attr])
	}
	return sum / float64(len(attrs))
}

// byTotal orders candidates by descending total, then by kind and id.
func byTotal(cs []*candidate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].total != cs[j].total {
			return cs[i].total > cs[j].total
		}
		return cs[i].ref.Less(cs[j].ref)
	})
}

// byDimension orders candidates by descending raw score on one dimension,
// then by kind and id.
func byDimension(cs []*candidate, dimensionID int64) {
	sort.Slice(cs, func(i, j int) bool {
		si, sj := cs[i].dimScores[dimensionID], cs[j].dimScores[dimensionID]
		if si != sj {
			return si > sj
		}
		return cs[i].ref.Less(cs[j].ref)
	})
}

// rerank keeps the topK candidates by adjusted total, reorders them by the
// anchor dimension, scales the first betaTopN by beta/betaNormalization*100
// and returns the best resultCap by the resulting totals.
func rerank(cs []*candidate, anchor int64, beta, betaNormalization float64) []*candidate {
	byTotal(cs)
	if len(cs) > topK {
		cs = cs[:topK]
	}

	byDimension(cs, anchor)
	for i := 0; i < len(cs) && i < betaTopN; i++ {
		cs[i].total = cs[i].total * beta / betaNormalization * 100
	}

	byTotal(cs)
	if len(cs) > resultCap {
		cs = cs[:resultCap]
	}
	return cs
}

// touched holds, per dimension and attribute, the match values selected
// for it, and per resource the touched attributes it is associated with.
type touched struct {
	values    map[int64]map[int64][]float64
	members   map[models.ResourceRef]map[int64][]int64
	defaulted map[[2]int64]bool
}

func newTouched() *touched {
	return &touched{
		values:    make(map[int64]map[int64][]float64),
		members:   make(map[models.ResourceRef]map[int64][]int64),
		defaulted: make(map[[2]int64]bool),
	}
}

func (t *touched) addDefault(dimensionID, attributeID int64) {
	key := [2]int64{dimensionID, attributeID}
	if t.defaulted[key] {
		return
	}
	t.defaulted[key] = true
	t.addValue(dimensionID, attributeID, DefaultMatchValue)
}

func (t *touched) addValue(dimensionID, attributeID int64, v float64) {
	if t.values[dimensionID] == nil {
		t.values[dimensionID] = make(map[int64][]float64)
	}
	t.values[dimensionID][attributeID] = append(t.values[dimensionID][attributeID], v)
}

func (t *touched) addMember(ref models.ResourceRef, dimensionID, attributeID int64) {
	if t.members[ref] == nil {
		t.members[ref] = make(map[int64][]int64)
	}
	t.members[ref][dimensionID] = append(t.members[ref][dimensionID], attributeID)
}

// refs lists the candidate resources in (kind, id) order.
func (t *touched) refs() []models.ResourceRef {
	refs := make([]models.ResourceRef, 0, len(t.members))
	for ref := range t.members {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Less(refs[j]) })
	return refs
}

// score computes the per-dimension scores of one resource over every
// active dimension and their sum.
func (t *touched) score(ref models.ResourceRef, dimensions []int64) (map[int64]float64, float64) {
	scores := make(map[int64]float64, len(dimensions))
	aggregate := 0.0
	for _, dim := range dimensions {
		s := dimensionScore(t.members[ref][dim], t.values[dim])
		scores[dim] = s
		aggregate += s
	}
	return scores, aggregate
}
