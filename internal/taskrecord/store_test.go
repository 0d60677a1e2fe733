package taskrecord

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewFS(t.TempDir()))
}

func TestLoadOfUnknownFileIsEmpty(t *testing.T) {
	s := newTestStore(t)
	fr, err := s.Load(context.Background(), types.FileIdentifier("aa1234"))
	require.NoError(t, err)
	assert.Empty(t, fr.Runs)
}

func TestAddUpdateAndLatestRun(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fileID := types.FileIdentifier("aa1234567890")
	taskType := types.NewTaskType(types.KindImage, types.TaskImageThumbnail)
	params := json.RawMessage(`{"model":"thumb-v1"}`)

	run, err := s.AddTaskRun(ctx, fileID, taskType, params)
	require.NoError(t, err)
	assert.Equal(t, types.StatusInit, run.Status)

	run.Status = types.StatusFinished
	run.Output = types.FileOutput("thumbnail.jpg")
	require.NoError(t, s.UpdateTaskRun(ctx, fileID, run))

	latest, err := s.LatestRun(ctx, fileID, taskType)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, types.StatusFinished, latest.Status)
	assert.Equal(t, "thumbnail.jpg", latest.Output.Rel)
}

func TestIsUpToDate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fileID := types.FileIdentifier("bb2222222222")
	taskType := types.NewTaskType(types.KindRawText, types.TaskRawTextChunk)
	params := json.RawMessage(`{"chunk_size":512}`)

	upToDate, err := s.IsUpToDate(ctx, fileID, taskType, HashParameters(params))
	require.NoError(t, err)
	assert.False(t, upToDate, "no run yet")

	run, err := s.AddTaskRun(ctx, fileID, taskType, params)
	require.NoError(t, err)

	upToDate, err = s.IsUpToDate(ctx, fileID, taskType, HashParameters(params))
	require.NoError(t, err)
	assert.False(t, upToDate, "run is only Init, not Finished")

	run.Status = types.StatusFinished
	require.NoError(t, s.UpdateTaskRun(ctx, fileID, run))

	upToDate, err = s.IsUpToDate(ctx, fileID, taskType, HashParameters(params))
	require.NoError(t, err)
	assert.True(t, upToDate)

	changedParams := json.RawMessage(`{"chunk_size":1024}`)
	upToDate, err = s.IsUpToDate(ctx, fileID, taskType, HashParameters(changedParams))
	require.NoError(t, err)
	assert.False(t, upToDate, "parameter change invalidates the cached run")
}

func TestPerFileLockSerializesConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	fileID := types.FileIdentifier("cc3333333333")
	taskType := types.NewTaskType(types.KindAudio, types.TaskAudioWaveform)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.AddTaskRun(ctx, fileID, taskType, json.RawMessage(`{}`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	fr, err := s.Load(ctx, fileID)
	require.NoError(t, err)
	assert.Len(t, fr.Runs[taskType], 20, "every concurrent add must survive the read-modify-write")
}
