package query

import (
	"context"

	"golang.org/x/sync/errgroup"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/types"
)

// Engine is the query engine (C8). It holds no per-query state, so one
// Engine safely serves concurrent callers; everything query-specific lives
// on the stack of a single Query/Recommend call.
type Engine struct {
	Index         *index.Store
	RRFConstant   int
	DefaultK      int
	DefaultOffset int
}

// NewEngine builds an Engine, filling in the spec's defaults (rrf_k=60,
// k=10) for non-positive values so a zero-value config.Query still works.
func NewEngine(idx *index.Store, rrfConstant, defaultK, defaultOffset int) *Engine {
	if rrfConstant <= 0 {
		rrfConstant = 60
	}
	if defaultK <= 0 {
		defaultK = 10
	}
	return &Engine{Index: idx, RRFConstant: rrfConstant, DefaultK: defaultK, DefaultOffset: defaultOffset}
}

func (e *Engine) tokensOf(model types.SearchModel) []string {
	switch m := model.(type) {
	case types.TextSearchModel:
		return m.Tokens
	case types.ImageSearchModel:
		if m.PromptSearchModel != nil {
			return m.PromptSearchModel.Tokens
		}
	}
	return nil
}

// Query runs the full fan-out/backtrack/fuse/hydrate pipeline described by
// the query engine's algorithm. k<=0 and offset<0 fall back to the
// engine's configured defaults.
func (e *Engine) Query(ctx context.Context, model types.SearchModel, filter types.SearchFilter, k, offset int) ([]types.HitResult, error) {
	if k <= 0 {
		k = e.DefaultK
	}
	if offset < 0 {
		offset = e.DefaultOffset
	}

	signals := buildSignals(e.Index, model, index.VectorFilter{TimeRange: filter.TimeRange})
	if len(signals) == 0 {
		return nil, nil
	}

	results := make([]signalResult, len(signals))
	g, gctx := errgroup.WithContext(ctx)
	for i, sig := range signals {
		i, sig := i, sig
		g.Go(func() error {
			hits, err := sig.run(gctx)
			if err != nil {
				return err
			}
			results[i] = signalResult{name: sig.name, hits: hits}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates, err := backtrackAndFuse(ctx, e.Index, results)
	if err != nil {
		return nil, err
	}
	if filter.FileIdentifier != nil {
		candidates = filterCandidatesByFile(ctx, e.Index, candidates, *filter.FileIdentifier)
	}

	ranked := rankScore(candidates, e.RRFConstant)
	return hydrate(ctx, e.Index, ranked, filter, e.tokensOf(model), offset, k)
}

// filterCandidatesByFile drops candidates that don't belong to fileID
// before scoring, so pagination isn't thrown off by hits that hydrate
// would discard anyway. hydrate still rechecks this as a cheap belt for
// callers that construct a query without going through this filter.
func filterCandidatesByFile(ctx context.Context, idx *index.Store, candidates map[types.EntityID]*candidate, fileID types.FileIdentifier) map[types.EntityID]*candidate {
	out := map[types.EntityID]*candidate{}
	for origin, c := range candidates {
		root, err := idx.RootOf(ctx, origin)
		if err != nil {
			continue
		}
		payload, _, err := idx.Payload(ctx, root)
		if err != nil || payload == nil {
			continue
		}
		if types.FileIdentifier(payload.ID) == fileID {
			out[origin] = c
		}
	}
	return out
}

// Recommend locates the stored frame/chunk embedding for (fileIdentifier,
// timestampMs) and reruns a vision-vector search excluding the source
// file, per the spec's recommendation algorithm.
func (e *Engine) Recommend(ctx context.Context, fileIdentifier types.FileIdentifier, timestampMs int64, k int) ([]types.HitResult, error) {
	if k <= 0 {
		k = e.DefaultK
	}
	point, err := e.findSourcePoint(ctx, fileIdentifier, timestampMs)
	if err != nil {
		return nil, err
	}
	if point == nil {
		return nil, cberrors.NewNotFound("query.Recommend", "frame or chunk embedding at that position")
	}

	excl := fileIdentifier
	hits, err := e.Index.SearchVectors(ctx, index.CollectionVision, point, vectorOverfetch, index.VectorFilter{ExcludeFileIdentifier: &excl})
	if err != nil {
		return nil, err
	}

	results := []signalResult{{name: "vector.vision", hits: scoredPointsToRawHits(hits, types.TableImageFrame)}}
	candidates, err := backtrackAndFuse(ctx, e.Index, results)
	if err != nil {
		return nil, err
	}
	ranked := rankScore(candidates, e.RRFConstant)
	return hydrate(ctx, e.Index, ranked, types.SearchFilter{}, nil, 0, k)
}

func scoredPointsToRawHits(points []index.ScoredPoint, leafTable types.EntityTable) []rawHit {
	hits := make([]rawHit, len(points))
	for i, p := range points {
		hits[i] = rawHit{entity: types.EntityID{Table: leafTable, ID: p.ID}, distance: p.Distance, isVector: true}
	}
	return hits
}

// findSourcePoint scans the vision collection for the point closest in
// time to timestampMs belonging to fileIdentifier, standing in for a
// direct (file, timestamp) point lookup; the vector collection has no
// secondary time index, so this is a linear scan bounded by one file's
// point count.
func (e *Engine) findSourcePoint(ctx context.Context, fileIdentifier types.FileIdentifier, timestampMs int64) ([]float32, error) {
	return e.Index.VectorAt(ctx, index.CollectionVision, fileIdentifier, timestampMs)
}
