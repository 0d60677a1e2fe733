// Package storage implements the blob store (C1): a uniform read/write/
// list/delete capability over a root, backed by either the local
// filesystem or an S3 bucket, sharded by the caller's own path scheme.
package storage

import (
	"context"
	"io"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
)

// Entry is a single item returned by List.
type Entry struct {
	Path  string // relative to the storage root
	IsDir bool
	Size  int64
}

// Storage is the capability every backend implements. All paths are
// relative to the backend's root; absolute paths and paths that escape
// the root are rejected with an *errors.PathError.
type Storage interface {
	Read(ctx context.Context, rel string) ([]byte, error)
	Write(ctx context.Context, rel string, data []byte) error
	WriteStream(ctx context.Context, rel string, r io.Reader) error
	List(ctx context.Context, rel string, recursive bool) ([]Entry, error)
	Remove(ctx context.Context, rel string) error
	RemoveDirAll(ctx context.Context, rel string) error

	// UploadDirRecursive pushes a local directory tree already present at
	// rel up to the backend's durable storage. It is a no-op on the FS
	// backend (the directory already is the durable storage) and performs
	// a real multi-object upload on S3.
	UploadDirRecursive(ctx context.Context, rel string) error
}

// New constructs a Storage for the given backend name ("fs" or "s3").
func New(backend string, fsRoot string, s3 S3Config) (Storage, error) {
	switch backend {
	case "fs", "":
		return NewFS(fsRoot), nil
	case "s3":
		return NewS3(s3)
	default:
		return nil, cberrors.Permanentf("storage.New", errUnsupportedBackend(backend))
	}
}

type unsupportedBackendError struct{ backend string }

func (e unsupportedBackendError) Error() string { return "unsupported storage backend: " + e.backend }

func errUnsupportedBackend(backend string) error { return unsupportedBackendError{backend} }
