package taskpool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
)

type stubEmbedder struct{}

func (stubEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	return "summary:" + text, nil
}

type stubIndex struct{}

func (stubIndex) UpsertVector(ctx context.Context, collection string, payload types.VectorPayload, vector []float32) (string, error) {
	return "point", nil
}

func newTestPool(t *testing.T, maxInFlight int) (*Pool, *taskrecord.Store, *tasks.Registry) {
	t.Helper()
	blob := storage.NewFS(t.TempDir())
	records := taskrecord.NewStore(blob)
	rc := &tasks.RunContext{
		Blob:      blob,
		Records:   records,
		TextEmbed: aimodel.NewTextEmbeddingPool(func(ctx context.Context) (aimodel.TextEmbedder, error) { return stubEmbedder{}, nil }, func() int { return 8 }, time.Hour, 16),
		Summarize: aimodel.NewSummarizePool(func(ctx context.Context) (aimodel.Summarizer, error) { return stubSummarizer{}, nil }, func() int { return 8 }, time.Hour, 16),
		Index:     stubIndex{},
		ChunkSize: func(types.ContentKind) int { return 8 },
	}
	registry := tasks.NewRegistry()
	pool := NewPool(registry, records, rc, maxInFlight, 32)
	t.Cleanup(pool.Close)
	return pool, records, registry
}

func waitForNotification(t *testing.T, ch <-chan TaskNotification, taskType string, status NotificationStatus, timeout time.Duration) TaskNotification {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case n := <-ch:
			if n.TaskType == taskType && n.Status == status {
				return n
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s/%s", taskType, status)
		}
	}
}

func TestSubmitRunsFullClosureInDependencyOrder(t *testing.T) {
	ctx := context.Background()
	pool, records, _ := newTestPool(t, 2)
	ch, unsubscribe := pool.Subscribe()
	defer unsubscribe()

	file := types.FileInfo{FileID: types.FileIdentifier("aa1234567890")}
	require.NoError(t, pool.rc.Blob.Write(ctx, "files/aa1/aa1234567890", []byte("first paragraph\n\nsecond paragraph")))

	target := types.NewTaskType(types.KindRawText, types.TaskRawTextChunkSumEmbed)
	require.NoError(t, pool.Submit(ctx, file, target, types.PriorityNormal))

	waitForNotification(t, ch, target.String(), NotifyFinished, 5*time.Second)

	rec, err := records.LatestRun(ctx, file.FileID, target)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, types.StatusFinished, rec.Status)
}

func TestSubmitSkipsAlreadyUpToDateTask(t *testing.T) {
	ctx := context.Background()
	pool, records, registry := newTestPool(t, 2)

	file := types.FileInfo{FileID: types.FileIdentifier("bb1234567890")}
	require.NoError(t, pool.rc.Blob.Write(ctx, "files/bb1/bb1234567890", []byte("only paragraph")))

	chunkType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunk)
	d, ok := registry.Get(chunkType)
	require.True(t, ok)
	params := d.Parameters(pool.rc)
	run, err := records.AddTaskRun(ctx, file.FileID, chunkType, params)
	require.NoError(t, err)
	require.NoError(t, d.Run(ctx, pool.rc, file, run))
	run.Status = types.StatusFinished
	require.NoError(t, records.UpdateTaskRun(ctx, file.FileID, run))

	ch, unsubscribe := pool.Subscribe()
	defer unsubscribe()

	require.NoError(t, pool.Submit(ctx, file, chunkType, types.PriorityNormal))

	select {
	case n := <-ch:
		t.Fatalf("expected no notification for an already up-to-date task, got %+v", n)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCancelByIdAndTypeDrainsPendingEntry(t *testing.T) {
	ctx := context.Background()
	pool, _, _ := newTestPool(t, 0)
	pool.maxInFlight = 0 // force every submission to stay pending

	file := types.FileInfo{FileID: types.FileIdentifier("cc1234567890")}
	require.NoError(t, pool.rc.Blob.Write(ctx, "files/cc1/cc1234567890", []byte("text")))

	taskType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunk)
	require.NoError(t, pool.Submit(ctx, file, taskType, types.PriorityNormal))

	pool.mu.Lock()
	found := pool.queue.Find(taskKey{FileID: file.FileID, Task: taskType})
	pool.mu.Unlock()
	require.NotNil(t, found)

	pool.CancelByIdAndType(file.FileID, taskType)

	pool.mu.Lock()
	found = pool.queue.Find(taskKey{FileID: file.FileID, Task: taskType})
	pool.mu.Unlock()
	assert.Nil(t, found)
}

func TestSubmitDedupsAndUpgradesPriority(t *testing.T) {
	ctx := context.Background()
	pool, _, _ := newTestPool(t, 0)
	pool.maxInFlight = 0

	file := types.FileInfo{FileID: types.FileIdentifier("dd1234567890")}
	require.NoError(t, pool.rc.Blob.Write(ctx, "files/dd1/dd1234567890", []byte("text")))

	taskType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunk)
	require.NoError(t, pool.Submit(ctx, file, taskType, types.PriorityLow))
	require.NoError(t, pool.Submit(ctx, file, taskType, types.PriorityHigh))

	pool.mu.Lock()
	entry := pool.queue.Find(taskKey{FileID: file.FileID, Task: taskType})
	qlen := pool.queue.Len()
	pool.mu.Unlock()

	require.NotNil(t, entry)
	assert.Equal(t, 1, qlen, "the second submission must upgrade, not duplicate")
	assert.Equal(t, types.PriorityHigh, entry.priority.Level)
}
