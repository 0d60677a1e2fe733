// Package artifact implements the deterministic artifact layout (C2):
// every task output lives under
// artifacts/<file_id[0..3]>/<file_id>/<task-name>/..., as either a single
// file or a folder. No other layout is permitted.
package artifact

import (
	"path"

	"github.com/standardbeagle/contentbase/internal/types"
)

const TaskRecordFileName = "task-record.json"

// Dir returns the file's artifact directory, relative to the blob store
// root: <shard>/<file_id>.
func Dir(fileID types.FileIdentifier) string {
	return path.Join(fileID.Shard(), string(fileID))
}

// TaskDir returns the directory a single task owns exclusively while
// running: <shard>/<file_id>/<task-name>.
func TaskDir(fileID types.FileIdentifier, taskName string) string {
	return path.Join(Dir(fileID), taskName)
}

// RecordPath returns the path of the per-file task record JSON document.
func RecordPath(fileID types.FileIdentifier) string {
	return path.Join(Dir(fileID), TaskRecordFileName)
}

// ResolveOutput resolves a TaskRunOutput against the task's own artifact
// directory, producing the blob-store-relative path to read or write.
func ResolveOutput(fileID types.FileIdentifier, taskName string, out types.TaskRunOutput) string {
	return path.Join(TaskDir(fileID, taskName), out.Rel)
}

// OriginalBlobPath returns the path of the original uploaded content
// blob: files/<shard>/<file_id>.
func OriginalBlobPath(fileID types.FileIdentifier) string {
	return path.Join("files", fileID.Shard(), string(fileID))
}
