// Package aimodel implements the AI model handler (C3): a lazy-loaded,
// batch-dispatching, idle-offloading wrapper around a single inference
// model instance, addressed only through a narrow capability interface so
// the concrete ONNX/quantized model code stays outside the core.
//
// State machine: Unloaded -> Loading -> Ready(idle_deadline) -> Offloading
// -> Unloaded. Transitions are driven by (a) the first request after
// Unloaded, (b) a successful load, (c) the idle timer firing with an empty
// queue, (d) offload completing. Exactly one worker goroutine owns the
// model; external callers only ever touch the bounded request channel.
package aimodel

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
)

// Result is the per-item outcome of a batch, preserving input order.
type Result[Output any] struct {
	Value Output
	Err   error
}

// Constructor lazily builds the wrapped model. It is only ever invoked by
// the handler's worker goroutine, never concurrently.
type Constructor[M any] func(ctx context.Context) (M, error)

// Processor executes one dispatch step against an already-loaded model.
// It must return exactly one Result per input, in the same order.
type Processor[M any, Input any, Output any] func(ctx context.Context, model M, batch []Input) ([]Result[Output], error)

type request[Input any, Output any] struct {
	ctx   context.Context
	input Input
	resp  chan Result[Output]
}

// Handler wraps a single model instance of type M behind a bounded request
// channel, batching up to BatchSizeLimit() inputs of type Input per
// dispatch step and returning Output per item.
type Handler[M any, Input any, Output any] struct {
	construct      Constructor[M]
	process        Processor[M, Input, Output]
	batchSizeLimit func() int
	offloadAfter   time.Duration

	in          chan request[Input, Output]
	closeSignal chan struct{}
	closeOnce   sync.Once
	done        chan struct{}

	loadCount int64 // atomic, test/observability hook
}

// NewHandler starts the handler's worker goroutine and returns immediately;
// no model is constructed until the first Submit.
func NewHandler[M any, Input any, Output any](
	construct Constructor[M],
	process Processor[M, Input, Output],
	batchSizeLimit func() int,
	offloadAfter time.Duration,
	queueCapacity int,
) *Handler[M, Input, Output] {
	h := &Handler[M, Input, Output]{
		construct:      construct,
		process:        process,
		batchSizeLimit: batchSizeLimit,
		offloadAfter:   offloadAfter,
		in:             make(chan request[Input, Output], queueCapacity),
		closeSignal:    make(chan struct{}),
		done:           make(chan struct{}),
	}
	go h.loop()
	return h
}

// Submit enqueues a single input and blocks until its output (or an error)
// is available, or ctx is cancelled. Submit may block before the send
// completes: that is the channel's backpressure, by design.
func (h *Handler[M, Input, Output]) Submit(ctx context.Context, input Input) (Output, error) {
	var zero Output
	resp := make(chan Result[Output], 1)
	req := request[Input, Output]{ctx: ctx, input: input, resp: resp}

	select {
	case h.in <- req:
	case <-ctx.Done():
		return zero, cberrors.NewCancelled("aimodel.Submit")
	case <-h.closeSignal:
		return zero, cberrors.NewCancelled("aimodel.Submit")
	}

	select {
	case r := <-resp:
		return r.Value, r.Err
	case <-ctx.Done():
		return zero, cberrors.NewCancelled("aimodel.Submit")
	}
}

// Close signals the handler to stop accepting new work. The batch already
// in flight, if any, completes; everything still queued fails with
// Cancelled. Close does not block; wait on Done to observe full shutdown.
func (h *Handler[M, Input, Output]) Close() {
	h.closeOnce.Do(func() { close(h.closeSignal) })
}

// Done is closed once the worker goroutine has exited.
func (h *Handler[M, Input, Output]) Done() <-chan struct{} { return h.done }

// LoadCount reports how many times the model has been constructed, for
// tests asserting idle-offload behavior (see spec scenario 6).
func (h *Handler[M, Input, Output]) LoadCount() int64 { return atomic.LoadInt64(&h.loadCount) }

func (h *Handler[M, Input, Output]) loop() {
	defer close(h.done)

	var model M
	loaded := false
	offload := func() {
		if !loaded {
			return
		}
		if c, ok := any(model).(io.Closer); ok {
			_ = c.Close()
		}
		var zero M
		model = zero
		loaded = false
	}
	defer offload()

	for {
		req, ok, closed := h.awaitNext(loaded)
		if closed {
			h.drainCancelled()
			return
		}
		if !ok {
			offload()
			continue // idle timer fired; go back to waiting, unloaded
		}

		batch := h.collectBatch(req)

		if !loaded {
			m, err := h.construct(context.Background())
			if err != nil {
				failAll(batch, cberrors.Permanentf("aimodel.load", err))
				continue
			}
			model = m
			loaded = true
			atomic.AddInt64(&h.loadCount, 1)
		}

		h.dispatch(batch, model)
	}
}

// awaitNext waits for the next request. When loaded is true it also races
// the idle-offload timer and the close signal; ok is false when the timer
// fired (caller should offload and keep waiting), closed is true when the
// handler is shutting down. A close signal already raised takes precedence
// over requests still queued, so those are left for drainCancelled.
func (h *Handler[M, Input, Output]) awaitNext(loaded bool) (req request[Input, Output], ok bool, closed bool) {
	select {
	case <-h.closeSignal:
		return req, false, true
	default:
	}
	if !loaded {
		select {
		case req = <-h.in:
			return req, true, false
		case <-h.closeSignal:
			return req, false, true
		}
	}

	timer := time.NewTimer(h.offloadAfter)
	defer timer.Stop()
	select {
	case req = <-h.in:
		return req, true, false
	case <-timer.C:
		return req, false, false
	case <-h.closeSignal:
		return req, false, true
	}
}

// collectBatch greedily drains up to BatchSizeLimit() already-queued
// requests without blocking, so a dispatch step never waits for more work
// than is already pending.
func (h *Handler[M, Input, Output]) collectBatch(first request[Input, Output]) []request[Input, Output] {
	limit := h.batchSizeLimit()
	if limit < 1 {
		limit = 1
	}
	batch := []request[Input, Output]{first}
	for len(batch) < limit {
		select {
		case r := <-h.in:
			batch = append(batch, r)
		default:
			return batch
		}
	}
	return batch
}

func (h *Handler[M, Input, Output]) dispatch(batch []request[Input, Output], model M) {
	inputs := make([]Input, len(batch))
	for i, r := range batch {
		inputs[i] = r.input
	}

	results, err := h.process(context.Background(), model, inputs)
	if err != nil {
		failAll(batch, err)
		return
	}
	for i, r := range batch {
		if i >= len(results) {
			r.resp <- Result[Output]{Err: cberrors.Permanentf("aimodel.process", fmt.Errorf("missing output for batch item %d of %d", i, len(batch)))}
			continue
		}
		r.resp <- results[i]
	}
}

func (h *Handler[M, Input, Output]) drainCancelled() {
	for {
		select {
		case r := <-h.in:
			r.resp <- Result[Output]{Err: cberrors.NewCancelled("aimodel.Submit")}
		default:
			return
		}
	}
}

func failAll[Input any, Output any](batch []request[Input, Output], err error) {
	for _, r := range batch {
		r.resp <- Result[Output]{Err: err}
	}
}
