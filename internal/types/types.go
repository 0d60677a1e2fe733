// Package types defines the data model shared across the content-processing
// core: file identity, content kinds, the task DAG's typed variant, task run
// records, scheduling priority, and the search models used by the query
// engine. Nothing in this package performs I/O; it is the vocabulary every
// other package speaks.
package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FileIdentifier is the stable content hash (hex) that names a submitted
// file for the lifetime of its indexing.
type FileIdentifier string

// Shard returns the first 3 hex characters used to bound directory fanout.
// Identifiers shorter than 3 characters are returned whole, matching
// single-file test fixtures.
func (f FileIdentifier) Shard() string {
	s := string(f)
	if len(s) >= 3 {
		return s[:3]
	}
	return s
}

// FileInfo describes a content item registered with the engine. It is
// immutable for the lifetime of a submission.
type FileInfo struct {
	FileID              FileIdentifier
	FilePath             string // logical path under the library root
	FileFullPathOnDisk  string // canonical on-disk location
}

// ContentKind is the closed variant set of content categories the engine
// understands. It selects the task-type subtree a submission expands into.
type ContentKind string

const (
	KindVideo   ContentKind = "video"
	KindAudio   ContentKind = "audio"
	KindImage   ContentKind = "image"
	KindRawText ContentKind = "raw_text"
	KindWebPage ContentKind = "web_page"
)

func (k ContentKind) Valid() bool {
	switch k {
	case KindVideo, KindAudio, KindImage, KindRawText, KindWebPage:
		return true
	}
	return false
}

// Task name constants, kebab-case, stable across versions since they are
// embedded in on-disk artifact paths.
const (
	TaskVideoThumbnail       = "thumbnail"
	TaskVideoFrame           = "frame"
	TaskVideoAudio           = "audio"
	TaskVideoTranscript      = "transcript"
	TaskVideoTransChunk      = "trans-chunk"
	TaskVideoTransChunkSum   = "trans-chunk-sum"
	TaskVideoTransChunkSumEmbed = "trans-chunk-sum-embed"

	TaskAudioThumbnail     = "thumbnail"
	TaskAudioWaveform      = "waveform"
	TaskAudioTranscript    = "transcript"
	TaskAudioTransChunk    = "trans-chunk"
	TaskAudioTransChunkSum = "trans-chunk-sum"
	TaskAudioTransChunkSumEmbed = "trans-chunk-sum-embed"

	TaskImageThumbnail   = "thumbnail"
	TaskImageDescription = "description"
	TaskImageDescEmbed   = "desc-embed"
	TaskImageVisionEmbed = "vision-embed"

	TaskRawTextChunk         = "chunk"
	TaskRawTextChunkSum      = "chunk-sum"
	TaskRawTextChunkSumEmbed = "chunk-sum-embed"

	TaskWebPageTransform      = "transform"
	TaskWebPageChunk          = "chunk"
	TaskWebPageChunkSum       = "chunk-sum"
	TaskWebPageChunkSumEmbed  = "chunk-sum-embed"

	// FrameDescription / FrameDescEmbed mirror Image's Description/DescEmbed
	// applied to a video's extracted frames.
	TaskVideoFrameDescription = "frame-description"
	TaskVideoFrameDescEmbed   = "frame-desc-embed"
	TaskVideoFrameVisionEmbed = "frame-vision-embed"
)

// ContentTaskType is the two-level tagged variant naming a task: an outer
// content-kind tag and an inner kebab-case task name unique within that
// kind. It is comparable and usable as a map key.
type ContentTaskType struct {
	Kind ContentKind
	Name string
}

func NewTaskType(kind ContentKind, name string) ContentTaskType {
	return ContentTaskType{Kind: kind, Name: name}
}

// String renders "kind/task-name", the form used in log messages and
// notification payloads.
func (t ContentTaskType) String() string {
	return fmt.Sprintf("%s/%s", t.Kind, t.Name)
}

// MarshalText/UnmarshalText let ContentTaskType serve as a JSON object key
// (encoding/json requires TextMarshaler for non-string map keys) in the
// per-file task record document.
func (t ContentTaskType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *ContentTaskType) UnmarshalText(text []byte) error {
	s := string(text)
	idx := strings.IndexByte(s, '/')
	if idx < 0 {
		return fmt.Errorf("types: invalid ContentTaskType %q", s)
	}
	t.Kind = ContentKind(s[:idx])
	t.Name = s[idx+1:]
	return nil
}

// OutputKind distinguishes a single-file task output from a folder output.
type OutputKind uint8

const (
	OutputFile OutputKind = iota
	OutputFolder
)

// TaskRunOutput is either File(relative_path) or Folder(relative_path),
// always resolved against the task's own artifact directory.
type TaskRunOutput struct {
	Kind OutputKind
	Rel  string
}

func FileOutput(rel string) TaskRunOutput   { return TaskRunOutput{Kind: OutputFile, Rel: rel} }
func FolderOutput(rel string) TaskRunOutput { return TaskRunOutput{Kind: OutputFolder, Rel: rel} }

// TaskRunStatus is the lifecycle state of a single TaskRunRecord.
type TaskRunStatus string

const (
	StatusInit     TaskRunStatus = "init"
	StatusStarted  TaskRunStatus = "started"
	StatusFinished TaskRunStatus = "finished"
	StatusError    TaskRunStatus = "error"
)

// TaskRunRecord is one execution of a task. ParametersHash is the xxhash of
// the canonical JSON in Parameters, cached so record-store comparisons do
// not re-hash on every lookup.
type TaskRunRecord struct {
	TaskType       ContentTaskType `json:"task_type"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	Parameters     json.RawMessage `json:"parameters"`
	ParametersHash uint64          `json:"parameters_hash"`
	Output         TaskRunOutput   `json:"output"`
	Status         TaskRunStatus   `json:"status"`
	Message        string          `json:"message,omitempty"`
}

// IsFinished reports whether the run completed successfully.
func (r *TaskRunRecord) IsFinished() bool {
	return r != nil && r.Status == StatusFinished
}

// PriorityLevel is the coarse scheduling tier of a submission.
type PriorityLevel uint8

const (
	PriorityLow PriorityLevel = iota
	PriorityNormal
	PriorityHigh
)

// ParsePriority maps the CLI/MCP-facing priority names to a PriorityLevel.
// An empty string is treated as "normal".
func ParsePriority(s string) (PriorityLevel, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	default:
		return 0, fmt.Errorf("unrecognized priority %q", s)
	}
}

// PriorityKey is the total order the task pool schedules by: higher level
// first, then earlier submit timestamp, then earlier insert sequence.
type PriorityKey struct {
	Level             PriorityLevel
	SubmitTimestampMs int64
	InsertSeq         uint64
}

// Less reports whether a should be scheduled strictly before b.
func (a PriorityKey) Less(b PriorityKey) bool {
	if a.Level != b.Level {
		return a.Level > b.Level // higher level first
	}
	if a.SubmitTimestampMs != b.SubmitTimestampMs {
		return a.SubmitTimestampMs < b.SubmitTimestampMs
	}
	return a.InsertSeq < b.InsertSeq
}

// Compare returns -1, 0, or 1 following the same total order as Less, so
// that Compare(a,b) == -Compare(b,a) and a==b implies Compare(a,b) == 0.
func (a PriorityKey) Compare(b PriorityKey) int {
	switch {
	case a == b:
		return 0
	case a.Less(b):
		return -1
	default:
		return 1
	}
}
