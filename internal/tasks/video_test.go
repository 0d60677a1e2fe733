package tasks

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/types"
)

type stubMedia struct{}

func (stubMedia) Thumbnail(ctx context.Context, srcPath string, dst io.Writer) error {
	_, err := dst.Write([]byte("thumb-bytes"))
	return err
}

func (s stubMedia) Frames(ctx context.Context, srcPath string, everyMs int64, sink FrameSink) error {
	for i := 0; i < 3; i++ {
		if err := sink.WriteFrame(ctx, i, int64(i)*everyMs, []byte("frame-bytes")); err != nil {
			return err
		}
	}
	return nil
}

func (stubMedia) ExtractAudio(ctx context.Context, videoPath string, dst io.Writer) error {
	_, err := dst.Write([]byte("audio-bytes"))
	return err
}

func (stubMedia) Waveform(ctx context.Context, audioPath string, dst io.Writer) error {
	_, err := dst.Write([]byte("waveform-bytes"))
	return err
}

func (stubMedia) HTMLToMarkdown(ctx context.Context, html string) (string, error) {
	return "# converted", nil
}

type stubCaptioner struct{}

func (stubCaptioner) Caption(ctx context.Context, imagePath string) (string, error) {
	return "a frame", nil
}

type stubImageEmbedder struct{}

func (stubImageEmbedder) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func TestVideoFramePipeline(t *testing.T) {
	ctx := context.Background()
	blob := storage.NewFS(t.TempDir())
	records := taskrecord.NewStore(blob)
	idx := &stubIndex{}

	rc := &RunContext{
		Blob:      blob,
		Records:   records,
		Media:     stubMedia{},
		Caption:   aimodel.NewCaptionPool(func(ctx context.Context) (aimodel.ImageCaptioner, error) { return stubCaptioner{}, nil }, func() int { return 8 }, time.Hour, 16),
		TextEmbed: aimodel.NewTextEmbeddingPool(func(ctx context.Context) (aimodel.TextEmbedder, error) { return stubEmbedder{}, nil }, func() int { return 8 }, time.Hour, 16),
		Index:     idx,
		ChunkSize: func(types.ContentKind) int { return 8 },
	}

	file := types.FileInfo{FileID: types.FileIdentifier("cc1234567890")}
	require.NoError(t, blob.Write(ctx, "files/cc1/cc1234567890", []byte("video-bytes")))

	r := NewRegistry()
	target := types.NewTaskType(types.KindVideo, types.TaskVideoFrameDescEmbed)
	for _, tt := range r.Closure(target) {
		if tt.Name != types.TaskVideoFrame && tt.Name != types.TaskVideoFrameDescription && tt.Name != types.TaskVideoFrameDescEmbed {
			continue
		}
		d, ok := r.Get(tt)
		require.True(t, ok)
		run, err := records.AddTaskRun(ctx, file.FileID, tt, d.Parameters(rc))
		require.NoError(t, err)
		require.NoError(t, d.Run(ctx, rc, file, run))
		run.Status = types.StatusFinished
		require.NoError(t, records.UpdateTaskRun(ctx, file.FileID, run))
	}

	assert.Len(t, idx.upserts, 3)
	for _, p := range idx.upserts {
		assert.Equal(t, types.RecordFrameCaption, p.RecordType)
		require.NotNil(t, p.Timestamp)
	}
}

func TestFrameVisionEmbedPipeline(t *testing.T) {
	ctx := context.Background()
	blob := storage.NewFS(t.TempDir())
	records := taskrecord.NewStore(blob)
	idx := &stubIndex{}

	rc := &RunContext{
		Blob:       blob,
		Records:    records,
		Media:      stubMedia{},
		ImageEmbed: aimodel.NewImageEmbeddingPool(func(ctx context.Context) (aimodel.ImageEmbedder, error) { return stubImageEmbedder{}, nil }, func() int { return 8 }, time.Hour, 16),
		Index:      idx,
		ChunkSize:  func(types.ContentKind) int { return 8 },
	}

	file := types.FileInfo{FileID: types.FileIdentifier("dd1234567890")}
	require.NoError(t, blob.Write(ctx, "files/dd1/dd1234567890", []byte("video-bytes")))

	r := NewRegistry()
	target := types.NewTaskType(types.KindVideo, types.TaskVideoFrameVisionEmbed)
	for _, tt := range r.Closure(target) {
		if tt.Name != types.TaskVideoFrame && tt.Name != types.TaskVideoFrameVisionEmbed {
			continue
		}
		d, ok := r.Get(tt)
		require.True(t, ok)
		run, err := records.AddTaskRun(ctx, file.FileID, tt, d.Parameters(rc))
		require.NoError(t, err)
		require.NoError(t, d.Run(ctx, rc, file, run))
		run.Status = types.StatusFinished
		require.NoError(t, records.UpdateTaskRun(ctx, file.FileID, run))
	}

	assert.Len(t, idx.upserts, 3)
	for _, p := range idx.upserts {
		assert.Equal(t, types.RecordFrame, p.RecordType)
		require.NotNil(t, p.Timestamp)
	}
}
