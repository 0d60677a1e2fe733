package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/contentbase/internal/types"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default("/tmp/library/artifacts")
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, DefaultRRFConstant, cfg.Query.RRFConstant)
	assert.GreaterOrEqual(t, cfg.Pool.MaxInFlight, 2)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir, filepath.Join(dir, "artifacts"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "artifacts"), cfg.ArtifactsRoot)
}

func TestLoadKDLOverrides(t *testing.T) {
	dir := t.TempDir()
	kdl := `
storage {
    backend "s3"
    s3 {
        bucket "my-library"
        region "us-east-1"
    }
}
pool {
    max_in_flight 4
}
models {
    offload_after_ms 5000
    batch_size {
        image_embedding 32
    }
}
chunking {
    raw_text 256
}
query {
    rrf_k 30
    k 20
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".contentbase.kdl"), []byte(kdl), 0o644))

	cfg, err := Load(dir, filepath.Join(dir, "artifacts"))
	require.NoError(t, err)

	assert.Equal(t, "s3", cfg.Storage.Backend)
	assert.Equal(t, "my-library", cfg.Storage.S3.Bucket)
	assert.Equal(t, 4, cfg.Pool.MaxInFlight)
	assert.Equal(t, 32, cfg.Models.BatchSizeFor("image_embedding", 0))
	assert.Equal(t, 256, cfg.Chunking.ChunkSizeFor(types.KindRawText, 0))
	assert.Equal(t, 30, cfg.Query.RRFConstant)
	assert.Equal(t, 20, cfg.Query.DefaultK)
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadBackend(t *testing.T) {
	cfg := Default("/tmp/artifacts")
	cfg.Storage.Backend = "ftp"
	assert.Error(t, cfg.Validate())
}
