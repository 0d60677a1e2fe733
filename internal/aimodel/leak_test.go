//go:build leaktests
// +build leaktests

package aimodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// TestHandlerCloseLeavesNoGoroutines verifies Close() stops the handler's
// worker goroutine, the same goleak-gated check the teacher runs against
// its own long-lived indexer.
func TestHandlerCloseLeavesNoGoroutines(t *testing.T) {
	defer goleak.VerifyNone(t)

	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return &fakeModel{}, nil },
		upperProcess,
		func() int { return 8 },
		time.Hour,
		16,
	)

	_, err := h.Submit(context.Background(), "hi")
	require.NoError(t, err)

	h.Close()
}
