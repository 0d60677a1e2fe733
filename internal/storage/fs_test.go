package storage

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSWriteReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	fs := NewFS(root)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "aa1/aa1234/thumbnail/thumbnail.jpg", []byte("jpeg-bytes")))

	data, err := fs.Read(ctx, "aa1/aa1234/thumbnail/thumbnail.jpg")
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestFSReadMissingIsNotFound(t *testing.T) {
	fs := NewFS(t.TempDir())
	_, err := fs.Read(context.Background(), "nope.bin")
	require.Error(t, err)
}

func TestFSRejectsAbsoluteAndEscapingPaths(t *testing.T) {
	fs := NewFS(t.TempDir())
	ctx := context.Background()

	_, err := fs.Read(ctx, "/etc/passwd")
	require.Error(t, err)

	_, err = fs.Read(ctx, "../outside")
	require.Error(t, err)

	_, err = fs.Read(ctx, "a/../../outside")
	require.Error(t, err)
}

func TestFSListRecursiveVsShallow(t *testing.T) {
	root := t.TempDir()
	fs := NewFS(root)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "frames/frame-0001.jpg", []byte("1")))
	require.NoError(t, fs.Write(ctx, "frames/frame-0002.jpg", []byte("2")))

	shallow, err := fs.List(ctx, "frames", false)
	require.NoError(t, err)
	for _, e := range shallow {
		assert.False(t, e.IsDir, "regular files only one level deep should not appear as dirs")
	}
	assert.Len(t, shallow, 2)

	deep, err := fs.List(ctx, ".", true)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(deep), 2)
}

func TestFSRemoveDirAll(t *testing.T) {
	root := t.TempDir()
	fs := NewFS(root)
	ctx := context.Background()

	require.NoError(t, fs.Write(ctx, "bb2/bb234/description/description.json", []byte("{}")))
	require.NoError(t, fs.RemoveDirAll(ctx, "bb2/bb234"))

	_, err := fs.List(ctx, "bb2/bb234", false)
	require.Error(t, err)

	_, statErr := filepath.Abs(root)
	require.NoError(t, statErr)
}

func TestFSUploadDirRecursiveIsNoop(t *testing.T) {
	fs := NewFS(t.TempDir())
	require.NoError(t, fs.UploadDirRecursive(context.Background(), "anything"))
}

func TestFSWriteStream(t *testing.T) {
	fs := NewFS(t.TempDir())
	ctx := context.Background()
	require.NoError(t, fs.WriteStream(ctx, "audio/audio.wav", strings.NewReader("riff-data")))

	data, err := fs.Read(ctx, "audio/audio.wav")
	require.NoError(t, err)
	assert.Equal(t, "riff-data", string(data))
}
