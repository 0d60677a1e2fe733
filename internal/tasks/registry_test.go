package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/types"
)

func TestRegistryEveryDescriptorHasARunFunction(t *testing.T) {
	r := NewRegistry()
	for _, kind := range []types.ContentKind{types.KindVideo, types.KindAudio, types.KindImage, types.KindRawText, types.KindWebPage} {
		for _, tt := range r.TasksForKind(kind) {
			d, ok := r.Get(tt)
			require.True(t, ok, "%s must be registered", tt)
			assert.NotNil(t, d.Run, "%s must declare a run function", tt)
			assert.NotNil(t, d.Parameters, "%s must declare a parameters function", tt)
		}
	}
}

func TestClosureOrdersDependenciesBeforeDependents(t *testing.T) {
	r := NewRegistry()
	target := types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSumEmbed)
	closure := r.Closure(target)

	pos := map[types.ContentTaskType]int{}
	for i, tt := range closure {
		pos[tt] = i
	}
	chunk := types.NewTaskType(types.KindRawText, types.TaskRawTextChunk)
	chunkSum := types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSum)
	assert.Less(t, pos[chunk], pos[chunkSum])
	assert.Less(t, pos[chunkSum], pos[target])
	assert.Equal(t, target, closure[len(closure)-1])
}

type stubEmbedder struct{}

func (stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return "summary:" + text, nil
}

type stubIndex struct {
	upserts []types.VectorPayload
}

func (s *stubIndex) UpsertVector(ctx context.Context, collection string, payload types.VectorPayload, vector []float32) (string, error) {
	s.upserts = append(s.upserts, payload)
	return fmt.Sprintf("point-%d", len(s.upserts)), nil
}

type stubGraph struct {
	roots   map[types.EntityTable]types.EntityID
	leaves  []types.EntityID
	indexed []string
}

func newStubGraph() *stubGraph { return &stubGraph{roots: map[types.EntityTable]types.EntityID{}} }

func (g *stubGraph) EnsureRoot(ctx context.Context, table types.EntityTable, fileID types.FileIdentifier) (types.EntityID, error) {
	if r, ok := g.roots[table]; ok {
		return r, nil
	}
	r := types.EntityID{Table: table, ID: string(fileID)}
	g.roots[table] = r
	return r, nil
}

func (g *stubGraph) AddLeaf(ctx context.Context, root types.EntityID, table types.EntityTable, leafID string, fields map[string]string) (types.EntityID, error) {
	leaf := types.EntityID{Table: table, ID: leafID}
	g.leaves = append(g.leaves, leaf)
	return leaf, nil
}

func (g *stubGraph) IndexText(ctx context.Context, entity types.EntityID, column string, text string) error {
	g.indexed = append(g.indexed, text)
	return nil
}

func TestRawTextPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	blob := storage.NewFS(t.TempDir())
	records := taskrecord.NewStore(blob)
	idx := &stubIndex{}
	graph := newStubGraph()

	rc := &RunContext{
		Blob:      blob,
		Records:   records,
		TextEmbed: aimodel.NewTextEmbeddingPool(func(ctx context.Context) (aimodel.TextEmbedder, error) { return stubEmbedder{}, nil }, func() int { return 8 }, time.Hour, 16),
		Summarize: aimodel.NewSummarizePool(func(ctx context.Context) (aimodel.Summarizer, error) { return stubSummarizer{}, nil }, func() int { return 8 }, time.Hour, 16),
		Index:     idx,
		Graph:     graph,
		ChunkSize: func(types.ContentKind) int { return 8 },
	}

	file := types.FileInfo{FileID: types.FileIdentifier("aa1234567890")}
	require.NoError(t, blob.Write(ctx, "files/aa1/aa1234567890", []byte("first paragraph here\n\nsecond paragraph follows")))

	r := NewRegistry()
	target := types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSumEmbed)
	for _, tt := range r.Closure(target) {
		d, ok := r.Get(tt)
		require.True(t, ok)

		params := d.Parameters(rc)
		run, err := records.AddTaskRun(ctx, file.FileID, tt, json.RawMessage(params))
		require.NoError(t, err)

		require.NoError(t, d.Run(ctx, rc, file, run))
		run.Status = types.StatusFinished
		require.NoError(t, records.UpdateTaskRun(ctx, file.FileID, run))
	}

	assert.NotEmpty(t, idx.upserts)
	for _, p := range idx.upserts {
		assert.Equal(t, types.RecordTextChunkSummarization, p.RecordType)
	}

	assert.Len(t, graph.leaves, len(idx.upserts), "every embedded chunk should also become a graph leaf")
	assert.Len(t, graph.indexed, len(idx.upserts))
	_, hasDocRoot := graph.roots[types.TableDocument]
	assert.True(t, hasDocRoot)
}
