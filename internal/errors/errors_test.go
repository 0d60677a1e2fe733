package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindPredicates(t *testing.T) {
	tr := Transientf("blob.read", fmt.Errorf("dial tcp: timeout"))
	assert.True(t, IsTransient(tr))
	assert.False(t, IsPermanent(tr))

	pe := Permanentf("task.run", fmt.Errorf("bad parameters"))
	assert.True(t, IsPermanent(pe))

	assert.True(t, IsCancelled(NewCancelled("task.run")))
	assert.True(t, IsNotFound(NewNotFound("record.load", "task-record.json")))
	assert.True(t, IsConflict(NewConflict("pool.submit", "file_id/transcript")))
}

func TestUnwrapAndIs(t *testing.T) {
	base := fmt.Errorf("connection refused")
	wrapped := fmt.Errorf("dial: %w", Transientf("blob.read", base))

	assert.True(t, errors.Is(wrapped, errors.Unwrap(wrapped)))
	assert.True(t, IsTransient(wrapped))
}

func TestPathError(t *testing.T) {
	err := &PathError{Path: "../escape", Operation: "write", Reason: "escapes root"}
	assert.Contains(t, err.Error(), "../escape")
	assert.Contains(t, err.Error(), "escapes root")
}
