package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/types"
)

func newTestEngine(t *testing.T) (*Engine, *index.Store) {
	t.Helper()
	s, err := index.Open(t.TempDir() + "/index.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewEngine(s, 60, 10, 0), s
}

func TestQueryRanksMultiSignalMatchAboveSingleSignalMatch(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	fileA := types.FileIdentifier("aaaa")
	fileB := types.FileIdentifier("bbbb")
	queryTextVec := []float32{1, 0, 0}
	queryVisionVec := []float32{0, 1, 0}

	rootA, err := s.EnsureRoot(ctx, types.TableDocument, fileA)
	require.NoError(t, err)
	pointA, err := s.UpsertVector(ctx, index.CollectionLanguage, types.VectorPayload{FileIdentifier: fileA, RecordType: types.RecordTextChunkSummarization}, queryTextVec)
	require.NoError(t, err)
	leafA, err := s.AddLeaf(ctx, rootA, types.TableText, pointA, nil)
	require.NoError(t, err)
	require.NoError(t, s.IndexText(ctx, leafA, "text.data", "alpha beta gamma"))

	rootB, err := s.EnsureRoot(ctx, types.TableImage, fileB)
	require.NoError(t, err)
	pointB, err := s.UpsertVector(ctx, index.CollectionVision, types.VectorPayload{FileIdentifier: fileB, RecordType: types.RecordFrame}, queryVisionVec)
	require.NoError(t, err)
	_, err = s.AddLeaf(ctx, rootB, types.TableImageFrame, pointB, nil)
	require.NoError(t, err)

	model := types.TextSearchModel{
		Raw:          "alpha beta",
		Tokens:       index.Tokenize("alpha beta"),
		TextVector:   queryTextVec,
		VisionVector: queryVisionVec,
	}

	hits, err := e.Query(ctx, model, types.SearchFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, fileA, hits[0].FileIdentifier, "a hit matching both the vector and full-text signal should outrank one matching only one signal")
	assert.Equal(t, fileB, hits[1].FileIdentifier)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestQueryFiltersByContentKind(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	fileA := types.FileIdentifier("aaaa")
	queryVec := []float32{1, 0, 0}

	rootA, err := s.EnsureRoot(ctx, types.TableDocument, fileA)
	require.NoError(t, err)
	pointA, err := s.UpsertVector(ctx, index.CollectionLanguage, types.VectorPayload{FileIdentifier: fileA, RecordType: types.RecordTextChunkSummarization}, queryVec)
	require.NoError(t, err)
	_, err = s.AddLeaf(ctx, rootA, types.TableText, pointA, nil)
	require.NoError(t, err)

	model := types.TextSearchModel{TextVector: queryVec}

	hits, err := e.Query(ctx, model, types.SearchFilter{ContentKinds: []types.ContentKind{types.KindImage}}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "a document-root hit must not survive a content_kinds=[image] filter")

	hits, err = e.Query(ctx, model, types.SearchFilter{ContentKinds: []types.ContentKind{types.KindRawText}}, 10, 0)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestRecommendExcludesSourceFileAndLocatesByTimestamp(t *testing.T) {
	ctx := context.Background()
	e, s := newTestEngine(t)

	source := types.FileIdentifier("aaaa")
	other := types.FileIdentifier("bbbb")

	sourceRoot, err := s.EnsureRoot(ctx, types.TableVideo, source)
	require.NoError(t, err)
	ts0 := int64(1000)
	sourcePoint, err := s.UpsertVector(ctx, index.CollectionVision, types.VectorPayload{FileIdentifier: source, RecordType: types.RecordFrame, Timestamp: &ts0}, []float32{1, 0})
	require.NoError(t, err)
	_, err = s.AddLeaf(ctx, sourceRoot, types.TableImageFrame, sourcePoint, nil)
	require.NoError(t, err)

	otherRoot, err := s.EnsureRoot(ctx, types.TableVideo, other)
	require.NoError(t, err)
	otherPoint, err := s.UpsertVector(ctx, index.CollectionVision, types.VectorPayload{FileIdentifier: other, RecordType: types.RecordFrame}, []float32{1, 0})
	require.NoError(t, err)
	_, err = s.AddLeaf(ctx, otherRoot, types.TableImageFrame, otherPoint, nil)
	require.NoError(t, err)

	hits, err := e.Recommend(ctx, source, ts0, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, other, hits[0].FileIdentifier)
}

func TestRecommendNotFoundWhenNoStoredPointAtPosition(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	_, err := e.Recommend(ctx, types.FileIdentifier("missing"), 1000, 10)
	require.Error(t, err)
}
