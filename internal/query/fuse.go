package query

import (
	"context"
	"math"
	"sort"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/types"
)

// signalResult is one completed fan-out branch's ranked hits, best match
// first (rank == slice index).
type signalResult struct {
	name string
	hits []rawHit
}

// candidate accumulates, per backtracked origin, the best rank it achieved
// in each signal and the best (smallest) raw vector distance seen for it,
// used to break reciprocal-rank-fusion ties.
type candidate struct {
	origin       types.EntityID
	chain        []types.EntityID
	ranks        map[string]int
	bestDistance float64
}

// backtrackAndFuse walks every hit up to its nearest indexable ancestor,
// groups by that origin, and keeps the best per-signal rank seen for each.
func backtrackAndFuse(ctx context.Context, idx *index.Store, results []signalResult) (map[types.EntityID]*candidate, error) {
	candidates := map[types.EntityID]*candidate{}
	for _, res := range results {
		for rank, hit := range res.hits {
			if err := ctx.Err(); err != nil {
				return nil, cberrors.NewCancelled("query.backtrackAndFuse")
			}
			origin, chain, err := idx.AncestorOrigin(ctx, hit.entity)
			if err != nil {
				return nil, err
			}
			c, ok := candidates[origin]
			if !ok {
				c = &candidate{origin: origin, chain: chain, ranks: map[string]int{}, bestDistance: math.MaxFloat64}
				candidates[origin] = c
			}
			if existing, ok := c.ranks[res.name]; !ok || rank < existing {
				c.ranks[res.name] = rank
			}
			if hit.isVector && hit.distance < c.bestDistance {
				c.bestDistance = hit.distance
			}
		}
	}
	return candidates, nil
}

// scored is one fused, ranked origin awaiting hydration.
type scored struct {
	candidate *candidate
	score     float64
}

// rankScore fuses each candidate's per-signal ranks with reciprocal-rank
// fusion, score(o) = Σ_s 1/(rrf_k + rank_s(o)), using a 1-based rank (the
// stored rank is a 0-based slice index). Ties break by raw vector distance,
// smaller first; candidates with no vector signal at all sort after those
// that have one, since an untied full-text-only match carries no distance
// to compare.
func rankScore(candidates map[types.EntityID]*candidate, rrfConstant int) []scored {
	out := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		var s float64
		for _, rank := range c.ranks {
			s += 1.0 / float64(rrfConstant+rank+1)
		}
		out = append(out, scored{candidate: c, score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].candidate.bestDistance < out[j].candidate.bestDistance
	})
	return out
}
