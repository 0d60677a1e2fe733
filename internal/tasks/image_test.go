package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/types"
)

func TestImageVisionEmbedIndexesFramePoint(t *testing.T) {
	ctx := context.Background()
	blob := storage.NewFS(t.TempDir())
	records := taskrecord.NewStore(blob)
	idx := &stubIndex{}
	graph := newStubGraph()

	rc := &RunContext{
		Blob:       blob,
		Records:    records,
		ImageEmbed: aimodel.NewImageEmbeddingPool(func(ctx context.Context) (aimodel.ImageEmbedder, error) { return stubImageEmbedder{}, nil }, func() int { return 8 }, time.Hour, 16),
		Index:      idx,
		Graph:      graph,
		ChunkSize:  func(types.ContentKind) int { return 8 },
	}

	file := types.FileInfo{FileID: types.FileIdentifier("ee1234567890")}
	require.NoError(t, blob.Write(ctx, "files/ee1/ee1234567890", []byte("image-bytes")))

	r := NewRegistry()
	tt := types.NewTaskType(types.KindImage, types.TaskImageVisionEmbed)
	d, ok := r.Get(tt)
	require.True(t, ok)

	run, err := records.AddTaskRun(ctx, file.FileID, tt, d.Parameters(rc))
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, rc, file, run))

	require.Len(t, idx.upserts, 1)
	assert.Equal(t, types.RecordFrame, idx.upserts[0].RecordType)
	assert.Len(t, graph.leaves, 1)
}
