package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
)

// FS is the local-filesystem blob store backend: every relative path is
// joined directly against root.
type FS struct {
	root string
}

func NewFS(root string) *FS {
	return &FS{root: root}
}

func (f *FS) Root() string { return f.root }

func (f *FS) Read(ctx context.Context, rel string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, cberrors.NewCancelled("storage.fs.Read")
	}
	return f.ReadBlocking(rel)
}

// ReadBlocking performs the read without consulting ctx, for callers that
// must not be interrupted mid-operation (e.g. while holding a record-store
// lock across suspension is forbidden, but a single blocking read is not a
// suspension point in the sense of section 5).
func (f *FS) ReadBlocking(rel string) ([]byte, error) {
	abs, err := resolve(f.root, rel, "storage.fs.Read")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cberrors.NewNotFound("storage.fs.Read", rel)
		}
		return nil, cberrors.Transientf("storage.fs.Read", err)
	}
	return data, nil
}

func (f *FS) Write(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return cberrors.NewCancelled("storage.fs.Write")
	}
	return f.WriteBlocking(rel, data)
}

func (f *FS) WriteBlocking(rel string, data []byte) error {
	abs, err := resolve(f.root, rel, "storage.fs.Write")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return cberrors.Transientf("storage.fs.Write", err)
	}
	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return cberrors.Transientf("storage.fs.Write", err)
	}
	return nil
}

func (f *FS) WriteStream(ctx context.Context, rel string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return cberrors.NewCancelled("storage.fs.WriteStream")
	}
	abs, err := resolve(f.root, rel, "storage.fs.WriteStream")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return cberrors.Transientf("storage.fs.WriteStream", err)
	}
	out, err := os.Create(abs)
	if err != nil {
		return cberrors.Transientf("storage.fs.WriteStream", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return cberrors.Transientf("storage.fs.WriteStream", err)
	}
	return nil
}

func (f *FS) List(ctx context.Context, rel string, recursive bool) ([]Entry, error) {
	abs, err := resolve(f.root, rel, "storage.fs.List")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cberrors.NewNotFound("storage.fs.List", rel)
		}
		return nil, cberrors.Transientf("storage.fs.List", err)
	}
	if !info.IsDir() {
		return []Entry{{Path: relativeTo(f.root, abs), IsDir: false, Size: info.Size()}}, nil
	}

	var entries []Entry
	walk := func(path string, d os.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil {
			return err
		}
		if path == abs {
			return nil
		}
		if d.IsDir() && !recursive {
			entries = append(entries, Entry{Path: relativeTo(f.root, path), IsDir: true})
			return filepath.SkipDir
		}
		size := int64(0)
		if fi, statErr := d.Info(); statErr == nil {
			size = fi.Size()
		}
		entries = append(entries, Entry{Path: relativeTo(f.root, path), IsDir: d.IsDir(), Size: size})
		return nil
	}

	if err := filepath.WalkDir(abs, walk); err != nil {
		if ctx.Err() != nil {
			return nil, cberrors.NewCancelled("storage.fs.List")
		}
		return nil, cberrors.Transientf("storage.fs.List", err)
	}
	return entries, nil
}

func (f *FS) Remove(ctx context.Context, rel string) error {
	abs, err := resolve(f.root, rel, "storage.fs.Remove")
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if os.IsNotExist(err) {
			return cberrors.NewNotFound("storage.fs.Remove", rel)
		}
		return cberrors.Transientf("storage.fs.Remove", err)
	}
	return nil
}

func (f *FS) RemoveDirAll(ctx context.Context, rel string) error {
	abs, err := resolve(f.root, rel, "storage.fs.RemoveDirAll")
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(abs); statErr != nil {
		if os.IsNotExist(statErr) {
			return cberrors.NewNotFound("storage.fs.RemoveDirAll", rel)
		}
	}
	if err := os.RemoveAll(abs); err != nil {
		return cberrors.Transientf("storage.fs.RemoveDirAll", err)
	}
	return nil
}

// UploadDirRecursive is a no-op on FS: the directory already is the
// durable store.
func (f *FS) UploadDirRecursive(ctx context.Context, rel string) error {
	return nil
}
