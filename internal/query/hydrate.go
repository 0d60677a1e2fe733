package query

import (
	"context"

	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/types"
)

// rootTableKinds is the reverse of tasks.rootTableFor, duplicated here
// (rather than imported) since this package filters by content kind from
// graph table names alone and has no other reason to depend on the task
// registry.
var rootTableKinds = map[types.EntityTable]types.ContentKind{
	types.TableVideo:    types.KindVideo,
	types.TableAudio:    types.KindAudio,
	types.TableImage:    types.KindImage,
	types.TableWeb:      types.KindWebPage,
	types.TableDocument: types.KindRawText,
}

func matchesContentKinds(root types.EntityTable, kinds []types.ContentKind) bool {
	if len(kinds) == 0 {
		return true
	}
	kind, ok := rootTableKinds[root]
	if !ok {
		return false
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// hydrate resolves each surviving candidate's with-payload, applies the
// remaining filters that couldn't be pushed into the fan-out (content
// kind, a single required file_identifier), renders a best-snippet, and
// truncates to the [offset, offset+k) window.
func hydrate(ctx context.Context, idx *index.Store, ranked []scored, filter types.SearchFilter, tokens []string, offset, k int) ([]types.HitResult, error) {
	out := make([]types.HitResult, 0, k)
	for _, r := range ranked {
		if len(out) >= offset+k {
			break
		}
		root, err := idx.RootOf(ctx, r.candidate.origin)
		if err != nil {
			return nil, err
		}
		if !matchesContentKinds(root.Table, filter.ContentKinds) {
			continue
		}
		payloadID, url, err := idx.Payload(ctx, root)
		if err != nil {
			return nil, err
		}
		var fileID types.FileIdentifier
		if payloadID != nil {
			fileID = types.FileIdentifier(payloadID.ID)
		}
		if filter.FileIdentifier != nil && fileID != *filter.FileIdentifier {
			continue
		}

		snippet, _ := bestSnippet(idx, r.candidate.origin, tokens)
		out = append(out, types.HitResult{
			OriginID:       r.candidate.origin,
			FileIdentifier: fileID,
			Score:          r.score,
			HitChain:       r.candidate.chain,
			PayloadURL:     url,
			Snippet:        snippet,
		})
	}
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:], nil
}

// bestSnippet tries every full-text column in turn and keeps the
// highest-scoring highlight, since an origin's text may live under any one
// of them depending on content kind.
func bestSnippet(idx *index.Store, origin types.EntityID, tokens []string) (string, float64) {
	var best string
	var bestScore float64
	for _, col := range []index.FullTextColumn{index.ColumnTextData, index.ColumnTextEnData, index.ColumnImagePrompt} {
		snippet, score := idx.Highlight(origin, col, tokens)
		if score > bestScore {
			best, bestScore = snippet, score
		}
	}
	return best, bestScore
}
