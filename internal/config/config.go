// Package config loads the recognized options of the content-processing
// core (artifact layout, task pool concurrency, AI handler offload timing,
// per-kind chunk sizes, and query fusion/paging defaults) from a project
// ".contentbase.kdl" file, layered over built-in defaults.
package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/standardbeagle/contentbase/internal/types"
)

// Config is the recognized configuration surface described in the
// specification's external interfaces section.
type Config struct {
	ArtifactsRoot string
	Storage       Storage
	Pool          Pool
	Models        Models
	Chunking      Chunking
	Query         Query
}

// Storage selects and configures the blob-store backend (C1).
type Storage struct {
	Backend string // "fs" or "s3"
	FS      FSStorage
	S3      S3Storage
}

type FSStorage struct {
	Root string
}

type S3Storage struct {
	Bucket string
	Prefix string
	Region string
}

// Pool configures the task pool (C5).
type Pool struct {
	MaxInFlight       int
	NotificationBufferSize int
}

// Models configures per-model-family AI handler batching and idle offload
// (C3). Keyed by capability name: "image_embedding", "text_embedding",
// "image_caption", "audio_transcript", "llm_chat".
type Models struct {
	BatchSize   map[string]int
	OffloadAfter time.Duration
	QueueCapacity int
}

func (m Models) BatchSizeFor(capability string, fallback int) int {
	if v, ok := m.BatchSize[capability]; ok && v > 0 {
		return v
	}
	return fallback
}

// Chunking configures the shared greedy-packing chunker (C4), per content
// kind since video/audio transcripts and raw text/web pages have different
// natural chunk sizes.
type Chunking struct {
	ChunkSize map[types.ContentKind]int
}

func (c Chunking) ChunkSizeFor(kind types.ContentKind, fallback int) int {
	if v, ok := c.ChunkSize[kind]; ok && v > 0 {
		return v
	}
	return fallback
}

// Query configures the query engine's fusion constant and default paging
// (C8).
type Query struct {
	RRFConstant int
	DefaultK    int
	DefaultOffset int
}

const (
	DefaultOffloadAfter       = 30 * time.Second
	DefaultBatchSize          = 8
	DefaultModelQueueCapacity = 64
	DefaultChunkSize          = 512
	DefaultRRFConstant        = 60
	DefaultK                  = 10
	MaxFullTextToken          = 100
)

// Default returns the built-in configuration, equivalent to a project with
// no ".contentbase.kdl" file present.
func Default(artifactsRoot string) *Config {
	return &Config{
		ArtifactsRoot: artifactsRoot,
		Storage: Storage{
			Backend: "fs",
			FS:      FSStorage{Root: artifactsRoot},
		},
		Pool: Pool{
			MaxInFlight:            defaultMaxInFlight(),
			NotificationBufferSize: 256,
		},
		Models: Models{
			BatchSize:     map[string]int{},
			OffloadAfter:  DefaultOffloadAfter,
			QueueCapacity: DefaultModelQueueCapacity,
		},
		Chunking: Chunking{
			ChunkSize: map[types.ContentKind]int{
				types.KindVideo:   DefaultChunkSize,
				types.KindAudio:   DefaultChunkSize,
				types.KindRawText: DefaultChunkSize,
				types.KindWebPage: DefaultChunkSize,
			},
		},
		Query: Query{
			RRFConstant:   DefaultRRFConstant,
			DefaultK:      DefaultK,
			DefaultOffset: 0,
		},
	}
}

// defaultMaxInFlight scales concurrency with logical CPUs, matching the
// spec's "proportional to logical CPUs" guidance.
func defaultMaxInFlight() int {
	n := runtime.NumCPU() * 2
	if n < 2 {
		return 2
	}
	if n > 32 {
		return 32
	}
	return n
}

// Validate checks the configuration for values that would make the core
// misbehave rather than merely underperform.
func (c *Config) Validate() error {
	if c.ArtifactsRoot == "" {
		return fmt.Errorf("config: artifacts_root must not be empty")
	}
	if c.Storage.Backend != "fs" && c.Storage.Backend != "s3" {
		return fmt.Errorf("config: storage backend must be \"fs\" or \"s3\", got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("config: s3 backend requires a bucket")
	}
	if c.Pool.MaxInFlight < 1 {
		return fmt.Errorf("config: pool max_in_flight must be >= 1, got %d", c.Pool.MaxInFlight)
	}
	if c.Query.RRFConstant < 1 {
		return fmt.Errorf("config: query rrf_k must be >= 1, got %d", c.Query.RRFConstant)
	}
	for kind, size := range c.Chunking.ChunkSize {
		if size < 2 {
			return fmt.Errorf("config: chunk_size for %s must be >= 2, got %d", kind, size)
		}
	}
	return nil
}
