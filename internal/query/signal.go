// Package query implements the query engine (C8): parallel fan-out across
// the index store's vector collections and full-text columns, backtracking
// each hit to its nearest indexable ancestor, reciprocal-rank fusion across
// signals, and payload hydration.
package query

import (
	"context"

	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/types"
)

// vectorOverfetch bounds how many raw points each vector signal pulls
// before backtracking collapses them onto origins; fusion can only ever
// reduce the candidate count from here, so this over-fetches relative to
// the caller's k.
const vectorOverfetch = 50

// rawHit is one fan-out branch's match before backtracking: the leaf
// entity actually matched (a text or image_frame node), its raw vector
// distance when the signal is a vector search (meaningless, left zero, for
// full-text signals).
type rawHit struct {
	entity   types.EntityID
	distance float64
	isVector bool
}

// signal is one fan-out branch: a name (used to key RRF rank tracking) and
// a function producing its ranked hits, best match first.
type signal struct {
	name string
	run  func(ctx context.Context) ([]rawHit, error)
}

// vectorLeafSignal searches one vector collection and reinterprets each
// point id as a graph leaf id under leafTable. This relies on the task
// pipeline giving every vector point the same id as the graph leaf created
// alongside it (see tasks.embedAndIndex / embedVisionAndIndex), which is
// what lets backtracking walk straight from a vector hit into the graph
// without a separate point-id-to-entity lookup table.
func vectorLeafSignal(name, collection string, vec []float32, leafTable types.EntityTable, idx *index.Store, filter index.VectorFilter) signal {
	return signal{name: name, run: func(ctx context.Context) ([]rawHit, error) {
		if len(vec) == 0 {
			return nil, nil
		}
		points, err := idx.SearchVectors(ctx, collection, vec, vectorOverfetch, filter)
		if err != nil {
			return nil, err
		}
		hits := make([]rawHit, len(points))
		for i, p := range points {
			hits[i] = rawHit{entity: types.EntityID{Table: leafTable, ID: p.ID}, distance: p.Distance, isVector: true}
		}
		return hits, nil
	}}
}

// fullTextSignal searches one or more full-text columns together as a
// single ranked signal; Search already returns hits carrying the entity
// they were indexed under, so no id reinterpretation is needed here.
func fullTextSignal(name string, tokens []string, columns []index.FullTextColumn, idx *index.Store) signal {
	return signal{name: name, run: func(ctx context.Context) ([]rawHit, error) {
		if len(tokens) == 0 {
			return nil, nil
		}
		hits, err := idx.SearchFullText(ctx, tokens, columns)
		if err != nil {
			return nil, err
		}
		out := make([]rawHit, len(hits))
		for i, h := range hits {
			out[i] = rawHit{entity: h.Entity}
		}
		return out, nil
	}}
}

// buildSignals maps a SearchModel onto the fan-out branches the index
// store can actually answer. The spec names four vector columns
// (text.vector, text.en_vector, image.vector, image.prompt_vector) and
// three full-text columns (text.data, text.en_data, image.prompt); this
// engine's index store carries two physical vector collections (language,
// vision) and the three full-text columns directly, so the mapping below
// collapses text.vector/image.prompt_vector onto one language-collection
// search (both record types are embedded into the same collection by the
// task pipeline) and drops text.en_vector/text.en_data as a distinct
// signal, since no English-normalized embedding or translation stage
// exists in this pipeline (see DESIGN.md).
func buildSignals(idx *index.Store, model types.SearchModel, filter index.VectorFilter) []signal {
	switch m := model.(type) {
	case types.TextSearchModel:
		return []signal{
			vectorLeafSignal("vector.language", index.CollectionLanguage, m.TextVector, types.TableText, idx, filter),
			vectorLeafSignal("vector.vision", index.CollectionVision, m.VisionVector, types.TableImageFrame, idx, filter),
			fullTextSignal("fulltext.text", m.Tokens, []index.FullTextColumn{index.ColumnTextData, index.ColumnTextEnData}, idx),
			fullTextSignal("fulltext.image_prompt", m.Tokens, []index.FullTextColumn{index.ColumnImagePrompt}, idx),
		}
	case types.ImageSearchModel:
		signals := []signal{
			vectorLeafSignal("vector.vision", index.CollectionVision, m.VisionVector, types.TableImageFrame, idx, filter),
			vectorLeafSignal("vector.language", index.CollectionLanguage, m.TextVector, types.TableText, idx, filter),
		}
		var tokens []string
		if m.PromptSearchModel != nil {
			tokens = m.PromptSearchModel.Tokens
		}
		if len(tokens) > 0 {
			signals = append(signals,
				fullTextSignal("fulltext.image_prompt", tokens, []index.FullTextColumn{index.ColumnImagePrompt}, idx),
				fullTextSignal("fulltext.text", tokens, []index.FullTextColumn{index.ColumnTextData, index.ColumnTextEnData}, idx),
			)
		}
		return signals
	default:
		return nil
	}
}
