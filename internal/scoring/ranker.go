package scoring

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/MikeSquared-Agency/EduMate/internal/store"
)

// RankedAssignment pairs an assignment with its assessment for one ranking call.
type RankedAssignment struct {
	Assignment *store.Assignment
	Assessment Assessment
}

// MarshalJSON flattens the assignment and nests the assessment as ai_priority.
func (r RankedAssignment) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		*store.Assignment
		AIPriority Assessment `json:"ai_priority"`
	}{r.Assignment, r.Assessment})
}

// Rank scores every open assignment and orders them by descending score.
// Records that fail to score are dropped. The result is never nil.
//
// Near-equal scores are ranked by earliest deadline. "Within TieTolerance" is
// not transitive (7.00, 7.08 and 7.16 would chain), so ties are grouped from
// the top: a group holds every score less than TieTolerance below its highest
// member. Inside a group earlier deadlines come first, missing deadlines go
// last, and otherwise input order is kept. A record is never placed below one
// that scores TieTolerance or more lower.
func (e *Engine) Rank(assignments []*store.Assignment) []RankedAssignment {
	ranked := make([]RankedAssignment, 0, len(assignments))
	if len(assignments) == 0 {
		return ranked
	}
	now, ok := e.safeNow()
	if !ok {
		return ranked
	}

	var order []int
	for i, a := range assignments {
		if a == nil || a.Status == store.StatusSubmitted {
			continue
		}
		if assessment, ok := e.tryAssess(a, now); ok {
			ranked = append(ranked, RankedAssignment{Assignment: a, Assessment: assessment})
			order = append(order, i)
		}
	}

	idx := make([]int, len(ranked))
	for i := range idx {
		idx[i] = i
	}
	score := func(k int) float64 { return ranked[idx[k]].Assessment.Score }
	sort.SliceStable(idx, func(i, j int) bool { return score(i) > score(j) })

	tol := e.cfg.TieTolerance
	for start := 0; start < len(idx); {
		end := start + 1
		for end < len(idx) && score(start)-score(end) < tol {
			end++
		}
		group := idx[start:end]
		sort.SliceStable(group, func(i, j int) bool {
			di, dj := ranked[group[i]].Assignment.Deadline, ranked[group[j]].Assignment.Deadline
			if deadlineBefore(di, dj) {
				return true
			}
			if deadlineBefore(dj, di) {
				return false
			}
			return order[group[i]] < order[group[j]]
		})
		start = end
	}

	out := make([]RankedAssignment, len(idx))
	for i, k := range idx {
		out[i] = ranked[k]
	}
	return out
}

// Next returns the highest ranked open assignment, or nil.
func (e *Engine) Next(assignments []*store.Assignment) *RankedAssignment {
	ranked := e.Rank(assignments)
	if len(ranked) == 0 {
		return nil
	}
	return &ranked[0]
}

// Focus returns the first maxCount ranked assignments. A non-positive
// maxCount selects nothing.
func (e *Engine) Focus(assignments []*store.Assignment, maxCount int) []RankedAssignment {
	if maxCount <= 0 {
		return []RankedAssignment{}
	}
	ranked := e.Rank(assignments)
	if maxCount >= len(ranked) {
		return ranked
	}
	return ranked[:maxCount]
}

func (e *Engine) safeNow() (now time.Time, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return e.clock.Now(), true
}

func (e *Engine) tryAssess(a *store.Assignment, now time.Time) (result Assessment, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	return e.assess(a, now), true
}

// deadlineBefore orders present deadlines ascending and absent ones last.
func deadlineBefore(a, b *time.Time) bool {
	ha, hb := hasDeadline(a), hasDeadline(b)
	switch {
	case ha && hb:
		return a.Before(*b)
	case ha:
		return true
	default:
		return false
	}
}
