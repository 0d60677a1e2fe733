package main

import (
	"context"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/config"
	"github.com/standardbeagle/contentbase/internal/contentbase"
	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/query"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskpool"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
)

// app bundles the facade with the run context its task registry needs,
// and the index store so callers can Close it on shutdown.
type app struct {
	cb  *contentbase.ContentBase
	rc  *tasks.RunContext
	idx *index.Store
}

// bootstrap loads configuration from --root and wires every layer the
// facade binds. AI capabilities use the naive, network-free stand-ins
// (internal/aimodel.Naive*); RunContext.Media is left nil, so the video,
// audio, image and web-page tasks that need it (thumbnail, frame, audio,
// waveform, transform) fail with a clear wiring error until a caller supplies a
// real codec backend (see internal/tasks.MediaTools) — the same
// capability-boundary pattern the spec draws around model backends.
func bootstrap(c *cli.Context) (*app, error) {
	root := c.String("root")
	artifactsRoot := c.String("artifacts")
	if !filepath.IsAbs(artifactsRoot) {
		artifactsRoot = filepath.Join(root, artifactsRoot)
	}

	cfg, err := config.Load(root, artifactsRoot)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	blob, err := storage.New(cfg.Storage.Backend, cfg.Storage.FS.Root, storage.S3Config{
		Bucket: cfg.Storage.S3.Bucket,
		Prefix: cfg.Storage.S3.Prefix,
		Region: cfg.Storage.S3.Region,
	})
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(filepath.Join(artifactsRoot, "index.db"))
	if err != nil {
		return nil, err
	}

	records := taskrecord.NewStore(blob)
	registry := tasks.NewRegistry()

	rc := &tasks.RunContext{
		Blob:       blob,
		Records:    records,
		TextEmbed:  aimodel.NewTextEmbeddingPool(func(context.Context) (aimodel.TextEmbedder, error) { return aimodel.NaiveTextEmbedder{}, nil }, batchSizeFunc(cfg, "text_embedding"), cfg.Models.OffloadAfter, cfg.Models.QueueCapacity),
		ImageEmbed: aimodel.NewImageEmbeddingPool(func(context.Context) (aimodel.ImageEmbedder, error) { return aimodel.NaiveImageEmbedder{}, nil }, batchSizeFunc(cfg, "image_embedding"), cfg.Models.OffloadAfter, cfg.Models.QueueCapacity),
		Caption:    aimodel.NewCaptionPool(func(context.Context) (aimodel.ImageCaptioner, error) { return aimodel.NaiveCaptioner{}, nil }, batchSizeFunc(cfg, "image_caption"), cfg.Models.OffloadAfter, cfg.Models.QueueCapacity),
		Transcribe: aimodel.NewTranscribePool(func(context.Context) (aimodel.AudioTranscriber, error) { return aimodel.NaiveTranscriber{}, nil }, batchSizeFunc(cfg, "audio_transcript"), cfg.Models.OffloadAfter, cfg.Models.QueueCapacity),
		Summarize:  aimodel.NewSummarizePool(func(context.Context) (aimodel.Summarizer, error) { return aimodel.NaiveSummarizer{}, nil }, batchSizeFunc(cfg, "llm_chat"), cfg.Models.OffloadAfter, cfg.Models.QueueCapacity),
		Index:      idx,
		Graph:      idx,
		ChunkSize:  func(k types.ContentKind) int { return cfg.Chunking.ChunkSizeFor(k, config.DefaultChunkSize) },
	}

	pool := taskpool.NewPool(registry, records, rc, cfg.Pool.MaxInFlight, cfg.Pool.NotificationBufferSize)
	engine := query.NewEngine(idx, cfg.Query.RRFConstant, cfg.Query.DefaultK, cfg.Query.DefaultOffset)

	cb := contentbase.New(blob, records, registry, pool, idx, engine)
	return &app{cb: cb, rc: rc, idx: idx}, nil
}

func (a *app) shutdown() {
	a.cb.Pool.Close()
	_ = a.idx.Close()
}

func batchSizeFunc(cfg *config.Config, capability string) func() int {
	return func() int { return cfg.Models.BatchSizeFor(capability, config.DefaultBatchSize) }
}
