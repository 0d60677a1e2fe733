package contentbase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/artifact"
	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/query"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskpool"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return "summary: " + text, nil
}

// newTestBase wires a facade over real (non-stub) index/pool/registry, so
// Submit/Query/Delete exercise the actual C4-C8 plumbing end to end; only
// C3's model backends are stubbed, since concrete model code is out of
// scope for this core.
func newTestBase(t *testing.T) (*ContentBase, *tasks.RunContext) {
	t.Helper()
	blob := storage.NewFS(t.TempDir())
	records := taskrecord.NewStore(blob)
	idx, err := index.Open(t.TempDir() + "/index.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	rc := &tasks.RunContext{
		Blob:      blob,
		Records:   records,
		TextEmbed: aimodel.NewTextEmbeddingPool(func(ctx context.Context) (aimodel.TextEmbedder, error) { return stubEmbedder{}, nil }, func() int { return 8 }, time.Hour, 16),
		Summarize: aimodel.NewSummarizePool(func(ctx context.Context) (aimodel.Summarizer, error) { return stubSummarizer{}, nil }, func() int { return 8 }, time.Hour, 16),
		Index:     idx,
		Graph:     idx,
		ChunkSize: func(types.ContentKind) int { return 8 },
	}

	registry := tasks.NewRegistry()
	pool := taskpool.NewPool(registry, records, rc, 4, 64)
	t.Cleanup(pool.Close)

	engine := query.NewEngine(idx, 60, 10, 0)
	return New(blob, records, registry, pool, idx, engine), rc
}

// waitFinished blocks until target has a Finished notification on ch, or
// fails the test after a short timeout; the task pool's scheduler runs on
// its own goroutine so tests must wait rather than poll state directly.
func waitFinished(t *testing.T, ch <-chan taskpool.TaskNotification, fileID types.FileIdentifier, target types.ContentTaskType) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case n := <-ch:
			if n.FileID == string(fileID) && n.TaskType == target.String() && n.Status == taskpool.NotifyFinished {
				return
			}
			if n.FileID == string(fileID) && n.Status == taskpool.NotifyError {
				t.Fatalf("task %s errored: %s", n.TaskType, n.Message)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s/%s to finish", fileID, target)
		}
	}
}

func TestSubmitQueryDeleteEndToEnd(t *testing.T) {
	ctx := context.Background()
	cb, rc := newTestBase(t)

	fileID := types.FileIdentifier("aa1234567890")
	file := types.FileInfo{FileID: fileID}
	require.NoError(t, cb.Blob.Write(ctx, artifact.OriginalBlobPath(fileID), []byte("alpha beta gamma\n\ndelta epsilon zeta")))

	ch, unsubscribe := cb.Pool.Subscribe()
	defer unsubscribe()

	require.NoError(t, cb.Submit(ctx, file, types.KindRawText, types.PriorityNormal))
	waitFinished(t, ch, fileID, types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSumEmbed))

	hits, err := cb.QueryText(ctx, rc, "alpha beta", types.SearchFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, fileID, hits[0].FileIdentifier)

	require.NoError(t, cb.Delete(ctx, fileID))

	hits, err = cb.QueryText(ctx, rc, "alpha beta", types.SearchFilter{}, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, hits, "deleted file must not surface in subsequent queries")

	_, err = cb.Blob.Read(ctx, artifact.RecordPath(fileID))
	assert.Error(t, err, "delete must remove the file's artifact directory")
}

func TestCancelBeforeAndAfterSubmitIsHarmless(t *testing.T) {
	ctx := context.Background()
	cb, _ := newTestBase(t)

	fileID := types.FileIdentifier("bb1234567890")
	file := types.FileInfo{FileID: fileID}

	cb.Cancel(fileID, nil) // cancel-before-submit must be a harmless no-op
	require.NoError(t, cb.Blob.Write(ctx, artifact.OriginalBlobPath(fileID), []byte("content")))
	require.NoError(t, cb.Submit(ctx, file, types.KindRawText, types.PriorityLow))
	cb.Cancel(fileID, nil)
}
