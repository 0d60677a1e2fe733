package aimodel

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
)

type fakeModel struct {
	closed int32
}

func (m *fakeModel) Close() error {
	atomic.AddInt32(&m.closed, 1)
	return nil
}

func upperProcess(ctx context.Context, m *fakeModel, batch []string) ([]Result[string], error) {
	out := make([]Result[string], len(batch))
	for i, s := range batch {
		out[i] = Result[string]{Value: s + "!"}
	}
	return out, nil
}

func TestSubmitLoadsOnFirstUse(t *testing.T) {
	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return &fakeModel{}, nil },
		upperProcess,
		func() int { return 8 },
		time.Hour,
		16,
	)
	defer h.Close()

	assert.Equal(t, int64(0), h.LoadCount())
	out, err := h.Submit(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
	assert.Equal(t, int64(1), h.LoadCount())
}

func TestSubmitBatchesConcurrentRequests(t *testing.T) {
	var batchSizes []int
	var mu sync.Mutex
	process := func(ctx context.Context, m *fakeModel, batch []string) ([]Result[string], error) {
		mu.Lock()
		batchSizes = append(batchSizes, len(batch))
		mu.Unlock()
		// Give concurrent submitters a moment to queue up behind the lock.
		time.Sleep(20 * time.Millisecond)
		return upperProcess(ctx, m, batch)
	}
	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return &fakeModel{}, nil },
		process,
		func() int { return 10 },
		time.Hour,
		16,
	)
	defer h.Close()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := h.Submit(context.Background(), fmt.Sprintf("item-%d", i))
			assert.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("item-%d!", i), out)
		}(i)
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, batchSizes)
	assert.Less(t, len(batchSizes), 5, "at least one batch must have coalesced more than one item")
}

func TestIdleOffloadUnloadsAndReloads(t *testing.T) {
	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return &fakeModel{}, nil },
		upperProcess,
		func() int { return 8 },
		30*time.Millisecond,
		16,
	)
	defer h.Close()

	_, err := h.Submit(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), h.LoadCount())

	time.Sleep(100 * time.Millisecond) // let the idle timer fire

	_, err = h.Submit(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), h.LoadCount(), "idle offload must force a reload on next use")
}

func TestSubmitContextCancellation(t *testing.T) {
	block := make(chan struct{})
	process := func(ctx context.Context, m *fakeModel, batch []string) ([]Result[string], error) {
		<-block
		return upperProcess(ctx, m, batch)
	}
	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return &fakeModel{}, nil },
		process,
		func() int { return 1 },
		time.Hour,
		16,
	)
	defer func() {
		close(block)
		h.Close()
	}()

	// Occupy the worker with a blocked first call.
	go func() { _, _ = h.Submit(context.Background(), "blocker") }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.Submit(ctx, "never runs")
	require.Error(t, err)
	assert.True(t, cberrors.IsCancelled(err))
}

func TestCloseCancelsQueuedWork(t *testing.T) {
	block := make(chan struct{})
	process := func(ctx context.Context, m *fakeModel, batch []string) ([]Result[string], error) {
		<-block
		return upperProcess(ctx, m, batch)
	}
	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return &fakeModel{}, nil },
		process,
		func() int { return 1 },
		time.Hour,
		16,
	)

	go func() { _, _ = h.Submit(context.Background(), "in-flight") }()
	time.Sleep(10 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make([]error, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.Submit(context.Background(), "queued")
		}(i)
	}
	time.Sleep(10 * time.Millisecond)

	h.Close()
	close(block)
	wg.Wait()
	<-h.Done()

	for _, err := range errs {
		require.Error(t, err)
		assert.True(t, cberrors.IsCancelled(err))
	}
}

func TestConstructErrorFailsBatchWithoutLoading(t *testing.T) {
	h := NewHandler(
		func(ctx context.Context) (*fakeModel, error) { return nil, fmt.Errorf("boom") },
		upperProcess,
		func() int { return 8 },
		time.Hour,
		16,
	)
	defer h.Close()

	_, err := h.Submit(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, cberrors.IsPermanent(err))
	assert.Equal(t, int64(0), h.LoadCount())
}
