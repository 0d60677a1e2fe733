package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/contentbase/internal/types"
)

func TestDirSharding(t *testing.T) {
	id := types.FileIdentifier("aa1234567890abcdef")
	assert.Equal(t, "aa1/aa1234567890abcdef", Dir(id))
}

func TestResolveOutputFile(t *testing.T) {
	id := types.FileIdentifier("aa1234567890abcdef")
	out := types.FileOutput("thumbnail.jpg")
	assert.Equal(t, "aa1/aa1234567890abcdef/thumbnail/thumbnail.jpg", ResolveOutput(id, "thumbnail", out))
}

func TestResolveOutputFolder(t *testing.T) {
	id := types.FileIdentifier("bb2222222222")
	out := types.FolderOutput("frames")
	assert.Equal(t, "bb2/bb2222222222/frame/frames", ResolveOutput(id, "frame", out))
}

func TestRecordPath(t *testing.T) {
	id := types.FileIdentifier("cc3333333333")
	assert.Equal(t, "cc3/cc3333333333/task-record.json", RecordPath(id))
}
