package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/standardbeagle/contentbase/internal/artifact"
	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

// materializeTemp copies a blob-store path to a local temp file so media
// tools and model capabilities that need a real filesystem path (codec
// libraries, ONNX loaders) can operate regardless of the active blob
// backend. The caller must invoke the returned cleanup once done.
func materializeTemp(ctx context.Context, rc *RunContext, blobPath, suffix string) (localPath string, cleanup func(), err error) {
	data, err := rc.Blob.Read(ctx, blobPath)
	if err != nil {
		return "", nil, err
	}
	f, err := os.CreateTemp("", "contentbase-*"+suffix)
	if err != nil {
		return "", nil, cberrors.Transientf("tasks.materializeTemp", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, cberrors.Transientf("tasks.materializeTemp", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, cberrors.Transientf("tasks.materializeTemp", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

// originalBlobPath is the blob-store path of a file's original uploaded
// content, re-exported here to avoid every task file importing artifact
// directly for this one call.
func originalBlobPath(fileID types.FileIdentifier) string {
	return artifact.OriginalBlobPath(fileID)
}

// splitParagraphs breaks text on blank lines into the items PackChunks
// packs, so a chunk boundary never falls mid-paragraph unless a single
// paragraph alone exceeds chunk_size.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	items := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			items = append(items, p)
		}
	}
	return items
}

// VectorIndexer is the narrow write surface a task needs into the index
// store (C7): upsert one vector point, keyed by its payload, returning the
// point's id so the caller can give the matching graph leaf the same
// identity (the query engine's backtracking step walks from a vector hit
// straight into the entity graph). Defined here rather than imported from
// the index package to keep tasks decoupled from the index store's own
// storage internals; package index's Store satisfies this interface.
type VectorIndexer interface {
	UpsertVector(ctx context.Context, collection string, payload types.VectorPayload, vector []float32) (string, error)
}

// EntityIndexer is the narrow write surface a task needs into the entity
// graph (C7): ensure a file's content root exists, attach a leaf under it,
// and index that leaf's text for full-text search. Same decoupling
// rationale as VectorIndexer; package index's Store satisfies this too.
type EntityIndexer interface {
	EnsureRoot(ctx context.Context, table types.EntityTable, fileID types.FileIdentifier) (types.EntityID, error)
	AddLeaf(ctx context.Context, root types.EntityID, table types.EntityTable, leafID string, fields map[string]string) (types.EntityID, error)
	IndexText(ctx context.Context, entity types.EntityID, column string, text string) error
}

// rootTableFor maps a content kind to the entity-graph root table its
// submissions belong under.
func rootTableFor(kind types.ContentKind) types.EntityTable {
	switch kind {
	case types.KindVideo:
		return types.TableVideo
	case types.KindAudio:
		return types.TableAudio
	case types.KindImage:
		return types.TableImage
	case types.KindWebPage:
		return types.TableWeb
	default:
		return types.TableDocument
	}
}

// writeJSON marshals v and writes it as the named task's single-file
// output, returning the TaskRunOutput to store on the run record.
func writeJSON(ctx context.Context, rc *RunContext, fileID types.FileIdentifier, taskName, rel string, v any) (types.TaskRunOutput, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return types.TaskRunOutput{}, cberrors.Permanentf("tasks.writeJSON", err)
	}
	out := types.FileOutput(rel)
	if err := rc.Blob.Write(ctx, artifact.ResolveOutput(fileID, taskName, out), data); err != nil {
		return types.TaskRunOutput{}, err
	}
	return out, nil
}

func readJSON(ctx context.Context, rc *RunContext, fileID types.FileIdentifier, taskName string, out types.TaskRunOutput, v any) error {
	data, err := rc.Blob.Read(ctx, artifact.ResolveOutput(fileID, taskName, out))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return cberrors.Permanentf("tasks.readJSON", err)
	}
	return nil
}

// latestOutput resolves the most recent Finished run's output for a
// dependency task type, as the input to a downstream task. NotFound is
// returned if the dependency hasn't produced a finished run, which should
// not happen under the pool's dependency-gating but is checked anyway
// since a task's Run must never assume disk state it cannot verify.
func latestOutput(ctx context.Context, rc *RunContext, fileID types.FileIdentifier, dep types.ContentTaskType) (types.TaskRunOutput, error) {
	run, err := rc.Records.LatestRun(ctx, fileID, dep)
	if err != nil {
		return types.TaskRunOutput{}, err
	}
	if run == nil || run.Status != types.StatusFinished {
		return types.TaskRunOutput{}, cberrors.NewNotFound("tasks.latestOutput", dep.String())
	}
	return run.Output, nil
}

func readBytes(ctx context.Context, rc *RunContext, fileID types.FileIdentifier, taskName string, out types.TaskRunOutput) ([]byte, error) {
	return rc.Blob.Read(ctx, artifact.ResolveOutput(fileID, taskName, out))
}

func writeBytes(ctx context.Context, rc *RunContext, fileID types.FileIdentifier, taskName, rel string, data []byte) (types.TaskRunOutput, error) {
	out := types.FileOutput(rel)
	if err := rc.Blob.Write(ctx, artifact.ResolveOutput(fileID, taskName, out), data); err != nil {
		return types.TaskRunOutput{}, err
	}
	return out, nil
}

type captureWriter struct{ buf bytes.Buffer }

func (c *captureWriter) Write(p []byte) (int, error) { return c.buf.Write(p) }

// chunkRecord is the JSON shape written by every *-chunk task: the packed
// chunk text bodies plus cached token counts, consumed by the matching
// *-chunk-sum task.
type chunkRecord struct {
	Chunks []Chunk `json:"chunks"`
}

// chunkSumRecord is the JSON shape written by every *-chunk-sum task: one
// summary string per input chunk, same indexing as chunkRecord.Chunks.
type chunkSumRecord struct {
	Summaries []string `json:"summaries"`
}

// visionEntry pairs one locally materialized image path with the vector
// payload its embedding should carry.
type visionEntry struct {
	localPath string
	payload   types.VectorPayload
}

// embedVisionAndIndex embeds each entry's image pixels into the vision
// collection, and (when rc.Graph is configured) attaches a matching
// image_frame leaf under the file's content root. This is the vision-space
// counterpart of embedAndIndex: that helper embeds a frame or image's
// generated caption text into the language collection, this one embeds the
// frame or image itself.
func embedVisionAndIndex(ctx context.Context, rc *RunContext, file types.FileInfo, kind types.ContentKind, entries []visionEntry) error {
	if rc.Index == nil || rc.ImageEmbed == nil {
		return nil
	}
	var root types.EntityID
	if rc.Graph != nil {
		r, err := rc.Graph.EnsureRoot(ctx, rootTableFor(kind), file.FileID)
		if err != nil {
			return err
		}
		root = r
	}
	for _, e := range entries {
		vec, err := rc.ImageEmbed.Submit(ctx, e.localPath)
		if err != nil {
			return err
		}
		pointID, err := rc.Index.UpsertVector(ctx, "vision", e.payload, vec)
		if err != nil {
			return err
		}
		if rc.Graph != nil {
			if _, err := rc.Graph.AddLeaf(ctx, root, types.TableImageFrame, pointID, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func summarizeAll(ctx context.Context, rc *RunContext, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		s, err := rc.Summarize.Submit(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// embedAndIndex embeds each text, upserts it as a vector point, and (when
// rc.Graph is configured) creates a text leaf under the file's content
// root and indexes that leaf's text for full-text search — the same
// pipeline stage feeds both C7 substores, since every searchable chunk is
// simultaneously a vector point and a graph node.
func embedAndIndex(ctx context.Context, rc *RunContext, file types.FileInfo, kind types.ContentKind, collection string, texts []string, payload func(i int) types.VectorPayload) error {
	if rc.Index == nil {
		return nil
	}
	var root types.EntityID
	if rc.Graph != nil {
		r, err := rc.Graph.EnsureRoot(ctx, rootTableFor(kind), file.FileID)
		if err != nil {
			return err
		}
		root = r
	}
	for i, text := range texts {
		vec, err := rc.TextEmbed.Submit(ctx, text)
		if err != nil {
			return err
		}
		p := payload(i)
		pointID, err := rc.Index.UpsertVector(ctx, collection, p, vec)
		if err != nil {
			return err
		}
		if rc.Graph != nil {
			leaf, err := rc.Graph.AddLeaf(ctx, root, types.TableText, pointID, nil)
			if err != nil {
				return err
			}
			if err := rc.Graph.IndexText(ctx, leaf, "text.data", text); err != nil {
				return err
			}
		}
	}
	return nil
}
