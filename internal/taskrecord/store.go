// Package taskrecord implements the task record store (C6): a persisted
// per-(file_id, task_type) history of runs, used to skip up-to-date work
// and to locate outputs. Every file_id's task-record.json is a single
// read-modify-write document serialized under a per-file_id lock.
package taskrecord

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/contentbase/internal/artifact"
	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/storage"
	"github.com/standardbeagle/contentbase/internal/types"
)

// FileRecord is the JSON document stored at
// artifacts_dir(file_id)/task-record.json: an ordered list of runs per
// task type. The latest (last) finished run is authoritative.
type FileRecord struct {
	FileID types.FileIdentifier                        `json:"file_id"`
	Runs   map[types.ContentTaskType][]*types.TaskRunRecord `json:"runs"`
}

func newFileRecord(fileID types.FileIdentifier) *FileRecord {
	return &FileRecord{FileID: fileID, Runs: map[types.ContentTaskType][]*types.TaskRunRecord{}}
}

// Store is the task record store. It owns no in-memory cache: every
// operation round-trips through the blob store, which is cheap since
// records are small JSON documents and callers serialize per file_id.
type Store struct {
	blob storage.Storage

	locksMu sync.Mutex
	locks   map[types.FileIdentifier]*sync.Mutex
}

func NewStore(blob storage.Storage) *Store {
	return &Store{blob: blob, locks: map[types.FileIdentifier]*sync.Mutex{}}
}

func (s *Store) lockFor(fileID types.FileIdentifier) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[fileID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[fileID] = l
	}
	return l
}

// HashParameters is the canonical hashing of a task's parameters JSON, used
// both when writing a new run and when deciding whether a latest run is
// still up to date.
func HashParameters(parameters json.RawMessage) uint64 {
	return xxhash.Sum64(parameters)
}

// Load reads the file's record document, returning an empty record (not an
// error) if none has been written yet.
func (s *Store) Load(ctx context.Context, fileID types.FileIdentifier) (*FileRecord, error) {
	data, err := s.blob.Read(ctx, artifact.RecordPath(fileID))
	if err != nil {
		if cberrors.IsNotFound(err) {
			return newFileRecord(fileID), nil
		}
		return nil, err
	}
	fr := newFileRecord(fileID)
	if err := json.Unmarshal(data, fr); err != nil {
		return nil, cberrors.Permanentf("taskrecord.Load", err)
	}
	if fr.Runs == nil {
		fr.Runs = map[types.ContentTaskType][]*types.TaskRunRecord{}
	}
	return fr, nil
}

func (s *Store) save(ctx context.Context, fr *FileRecord) error {
	data, err := json.MarshalIndent(fr, "", "  ")
	if err != nil {
		return cberrors.Permanentf("taskrecord.save", err)
	}
	return s.blob.Write(ctx, artifact.RecordPath(fr.FileID), data)
}

// AddTaskRun appends a new run in the Init state and persists it
// immediately, so a concurrent reader sees the task as claimed even before
// it transitions to Started.
func (s *Store) AddTaskRun(ctx context.Context, fileID types.FileIdentifier, taskType types.ContentTaskType, parameters json.RawMessage) (*types.TaskRunRecord, error) {
	lock := s.lockFor(fileID)
	lock.Lock()
	defer lock.Unlock()

	fr, err := s.Load(ctx, fileID)
	if err != nil {
		return nil, err
	}

	run := &types.TaskRunRecord{
		TaskType:       taskType,
		StartedAt:      time.Now(),
		Parameters:     parameters,
		ParametersHash: HashParameters(parameters),
		Status:         types.StatusInit,
	}
	fr.Runs[taskType] = append(fr.Runs[taskType], run)

	if err := s.save(ctx, fr); err != nil {
		return nil, err
	}
	return run, nil
}

// UpdateTaskRun persists mutations to an existing run, identified by task
// type and start time (its natural key within the per-type run list).
func (s *Store) UpdateTaskRun(ctx context.Context, fileID types.FileIdentifier, run *types.TaskRunRecord) error {
	lock := s.lockFor(fileID)
	lock.Lock()
	defer lock.Unlock()

	fr, err := s.Load(ctx, fileID)
	if err != nil {
		return err
	}

	list := fr.Runs[run.TaskType]
	found := false
	for i := range list {
		if list[i].StartedAt.Equal(run.StartedAt) {
			list[i] = run
			found = true
			break
		}
	}
	if !found {
		list = append(list, run)
	}
	fr.Runs[run.TaskType] = list

	return s.save(ctx, fr)
}

// LatestRun returns the most recent run for a task type, or nil if none
// exists.
func (s *Store) LatestRun(ctx context.Context, fileID types.FileIdentifier, taskType types.ContentTaskType) (*types.TaskRunRecord, error) {
	fr, err := s.Load(ctx, fileID)
	if err != nil {
		return nil, err
	}
	list := fr.Runs[taskType]
	if len(list) == 0 {
		return nil, nil
	}
	return list[len(list)-1], nil
}

// IsUpToDate reports whether the latest run for a task type is Finished
// with parameters matching currentParametersHash. A task pool consults
// this to decide whether to skip work.
func (s *Store) IsUpToDate(ctx context.Context, fileID types.FileIdentifier, taskType types.ContentTaskType, currentParametersHash uint64) (bool, error) {
	run, err := s.LatestRun(ctx, fileID, taskType)
	if err != nil {
		return false, err
	}
	if run == nil {
		return false, nil
	}
	return run.Status == types.StatusFinished && run.ParametersHash == currentParametersHash, nil
}
