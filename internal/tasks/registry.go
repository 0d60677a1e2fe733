// Package tasks is the task registry (C4): the enumerated task types per
// content kind, each with declared dependencies, a canonical parameters
// function, and a run function that produces artifacts. Nothing here
// knows about scheduling, priority, or concurrency limits — that is the
// task pool's job; a descriptor only declares what must run before it and
// what running it does.
package tasks

import (
	"context"
	"encoding/json"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/taskrecord"
	"github.com/standardbeagle/contentbase/internal/types"
)

// RunContext bundles everything a task's Run function needs: storage,
// the record store, the media and AI model capabilities, and the
// configured chunk sizes. It carries no task-specific state.
type RunContext struct {
	Blob    storage.Storage
	Records *taskrecord.Store
	Media   MediaTools

	TextEmbed  *aimodel.TextEmbeddingPool
	ImageEmbed *aimodel.ImageEmbeddingPool
	Caption    *aimodel.CaptionPool
	Transcribe *aimodel.TranscribePool
	Summarize  *aimodel.SummarizePool

	Index VectorIndexer
	Graph EntityIndexer

	ChunkSize func(kind types.ContentKind) int
	Tokenizer Tokenizer
}

func (rc *RunContext) chunkSize(kind types.ContentKind) int {
	if rc.ChunkSize == nil {
		return 512
	}
	return rc.ChunkSize(kind)
}

func (rc *RunContext) tokenizer() Tokenizer {
	if rc.Tokenizer == nil {
		return DefaultTokenizer
	}
	return rc.Tokenizer
}

// RunFunc produces artifacts for one task execution, mutating run in
// place (status, output, message) as it progresses. It must not mark run
// Finished itself; the task pool does that once RunFunc returns nil.
type RunFunc func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error

// ParametersFunc computes the canonical, deterministic parameters JSON for
// a task given the run context. Two calls with equal inputs must return
// byte-identical JSON, since the record store hashes it verbatim.
type ParametersFunc func(rc *RunContext) json.RawMessage

// Descriptor is one task's full declaration: name, direct dependencies
// (the pool computes the transitive closure), its parameters, and its run
// function. Output is computed by Run via run.Output; Descriptor also
// exposes a pure Output accessor so the pool can resolve the artifact path
// of an in-flight or cancelled run without invoking Run.
type Descriptor struct {
	Type         types.ContentTaskType
	Dependencies []types.ContentTaskType
	Parameters   ParametersFunc
	Run          RunFunc
	// Output, when set, returns the TaskRunOutput this descriptor writes
	// before Run completes, letting callers resolve an expected artifact
	// path for cleanup purposes even if Run is still executing.
	Output func(run *types.TaskRunRecord) types.TaskRunOutput
}

// Registry is the closed table of all task descriptors, indexed by type.
type Registry struct {
	descriptors map[types.ContentTaskType]*Descriptor
	byKind      map[types.ContentKind][]types.ContentTaskType
}

// NewRegistry builds the full task table for every content kind.
func NewRegistry() *Registry {
	r := &Registry{
		descriptors: map[types.ContentTaskType]*Descriptor{},
		byKind:      map[types.ContentKind][]types.ContentTaskType{},
	}
	registerVideoTasks(r)
	registerAudioTasks(r)
	registerImageTasks(r)
	registerRawTextTasks(r)
	registerWebPageTasks(r)
	return r
}

func (r *Registry) register(d *Descriptor) {
	r.descriptors[d.Type] = d
	r.byKind[d.Type.Kind] = append(r.byKind[d.Type.Kind], d.Type)
}

// Get returns the descriptor for a task type, or false if unknown.
func (r *Registry) Get(t types.ContentTaskType) (*Descriptor, bool) {
	d, ok := r.descriptors[t]
	return d, ok
}

// TasksForKind returns every task type declared for a content kind, in
// registration order (which is also a valid topological order, leaves
// registered first per kind file).
func (r *Registry) TasksForKind(kind types.ContentKind) []types.ContentTaskType {
	return append([]types.ContentTaskType(nil), r.byKind[kind]...)
}

// Closure computes the transitive dependency closure of a task type in
// topological order (dependencies before dependents), including the task
// itself last. It is exported for the task pool's submission pipeline.
func (r *Registry) Closure(t types.ContentTaskType) []types.ContentTaskType {
	var order []types.ContentTaskType
	visited := map[types.ContentTaskType]bool{}

	var visit func(types.ContentTaskType)
	visit = func(cur types.ContentTaskType) {
		if visited[cur] {
			return
		}
		visited[cur] = true
		d, ok := r.descriptors[cur]
		if !ok {
			return
		}
		for _, dep := range d.Dependencies {
			visit(dep)
		}
		order = append(order, cur)
	}
	visit(t)
	return order
}
