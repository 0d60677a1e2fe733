// Package contentbase implements the content base facade (C9): the single
// entry point that binds the blob store (C1), artifact layout (C2), AI
// handlers (C3), task registry (C4), task pool (C5), task records (C6),
// index store (C7), and query engine (C8) into the four operations a
// caller actually needs — submit, cancel, delete, query.
package contentbase

import (
	"context"

	"github.com/standardbeagle/contentbase/internal/artifact"
	"github.com/standardbeagle/contentbase/internal/index"
	"github.com/standardbeagle/contentbase/internal/query"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskpool"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/tasks"
	"github.com/standardbeagle/contentbase/internal/types"
)

// ContentBase is the facade. Its fields are the already-constructed
// capabilities of every layer below it; New wires them, it does not build
// them, since model construction (C3's concrete ONNX/whisper backends) is
// the caller's responsibility, not the core's.
type ContentBase struct {
	Blob     storage.Storage
	Records  *taskrecord.Store
	Registry *tasks.Registry
	Pool     *taskpool.Pool
	Index    *index.Store
	Engine   *query.Engine
}

// New builds the facade over an already-open index store and task pool.
// Callers typically construct records/registry/pool/index/engine once at
// process startup (see cmd/contentbase) and pass them here unchanged.
func New(blob storage.Storage, records *taskrecord.Store, registry *tasks.Registry, pool *taskpool.Pool, idx *index.Store, engine *query.Engine) *ContentBase {
	return &ContentBase{Blob: blob, Records: records, Registry: registry, Pool: pool, Index: idx, Engine: engine}
}

// Submit enqueues the full task pipeline for kind: every task type the
// registry declares for kind, each expanding to its own dependency closure
// in the task pool. Submission is fire-and-forget; progress surfaces only
// through the pool's notification stream (C5), never as a return value
// here.
func (cb *ContentBase) Submit(ctx context.Context, file types.FileInfo, kind types.ContentKind, priority types.PriorityLevel) error {
	for _, t := range cb.Registry.TasksForKind(kind) {
		if err := cb.Pool.Submit(ctx, file, t, priority); err != nil {
			return err
		}
	}
	return nil
}

// Cancel stops a file's pending/running work. With taskType nil it cancels
// every task for fileID (CancelById); otherwise only that task type's
// pending entry and running instance (CancelByIdAndType).
func (cb *ContentBase) Cancel(fileID types.FileIdentifier, taskType *types.ContentTaskType) {
	if taskType == nil {
		cb.Pool.CancelById(fileID)
		return
	}
	cb.Pool.CancelByIdAndType(fileID, *taskType)
}

// Delete purges fileID from the index (vector points, full-text documents,
// and graph subtrees) and removes its entire artifact directory from blob
// storage, per the spec's delete semantics. It does not cancel in-flight
// tasks for fileID; callers that want both call Cancel first.
func (cb *ContentBase) Delete(ctx context.Context, fileID types.FileIdentifier) error {
	if err := cb.Index.DeleteByFileIdentifier(ctx, fileID); err != nil {
		return err
	}
	return cb.Blob.RemoveDirAll(ctx, artifact.Dir(fileID))
}

// Query runs the query engine's fan-out/backtrack/fuse/hydrate pipeline.
func (cb *ContentBase) Query(ctx context.Context, model types.SearchModel, filter types.SearchFilter, k, offset int) ([]types.HitResult, error) {
	return cb.Engine.Query(ctx, model, filter, k, offset)
}

// Recommend finds content similar to fileIdentifier at a given playback
// position, excluding fileIdentifier itself from the results.
func (cb *ContentBase) Recommend(ctx context.Context, fileIdentifier types.FileIdentifier, timestampMs int64, k int) ([]types.HitResult, error) {
	return cb.Engine.Recommend(ctx, fileIdentifier, timestampMs, k)
}
