package aimodel

import (
	"context"
	"time"
)

// The Pool types below are thin, capability-specific instantiations of
// Handler. Each adapts the narrow per-item capability method into the
// Processor shape Handler expects, looping over the drained batch so the
// handler's lazy-load/idle-offload machinery is shared across every model
// family without any family knowing about the others.

// TextEmbeddingPool lazily loads a TextEmbedder and serves EmbedText calls.
type TextEmbeddingPool = Handler[TextEmbedder, string, []float32]

func NewTextEmbeddingPool(construct Constructor[TextEmbedder], batchSizeLimit func() int, offloadAfter time.Duration, queueCapacity int) *TextEmbeddingPool {
	process := func(ctx context.Context, model TextEmbedder, batch []string) ([]Result[[]float32], error) {
		out := make([]Result[[]float32], len(batch))
		for i, text := range batch {
			v, err := model.EmbedText(ctx, text)
			out[i] = Result[[]float32]{Value: v, Err: err}
		}
		return out, nil
	}
	return NewHandler(construct, process, batchSizeLimit, offloadAfter, queueCapacity)
}

// ImageEmbeddingPool lazily loads an ImageEmbedder and serves EmbedImage
// calls.
type ImageEmbeddingPool = Handler[ImageEmbedder, string, []float32]

func NewImageEmbeddingPool(construct Constructor[ImageEmbedder], batchSizeLimit func() int, offloadAfter time.Duration, queueCapacity int) *ImageEmbeddingPool {
	process := func(ctx context.Context, model ImageEmbedder, batch []string) ([]Result[[]float32], error) {
		out := make([]Result[[]float32], len(batch))
		for i, path := range batch {
			v, err := model.EmbedImage(ctx, path)
			out[i] = Result[[]float32]{Value: v, Err: err}
		}
		return out, nil
	}
	return NewHandler(construct, process, batchSizeLimit, offloadAfter, queueCapacity)
}

// CaptionPool lazily loads an ImageCaptioner and serves Caption calls.
type CaptionPool = Handler[ImageCaptioner, string, string]

func NewCaptionPool(construct Constructor[ImageCaptioner], batchSizeLimit func() int, offloadAfter time.Duration, queueCapacity int) *CaptionPool {
	process := func(ctx context.Context, model ImageCaptioner, batch []string) ([]Result[string], error) {
		out := make([]Result[string], len(batch))
		for i, path := range batch {
			v, err := model.Caption(ctx, path)
			out[i] = Result[string]{Value: v, Err: err}
		}
		return out, nil
	}
	return NewHandler(construct, process, batchSizeLimit, offloadAfter, queueCapacity)
}

// SummarizePool lazily loads a Summarizer and serves Summarize calls.
type SummarizePool = Handler[Summarizer, string, string]

func NewSummarizePool(construct Constructor[Summarizer], batchSizeLimit func() int, offloadAfter time.Duration, queueCapacity int) *SummarizePool {
	process := func(ctx context.Context, model Summarizer, batch []string) ([]Result[string], error) {
		out := make([]Result[string], len(batch))
		for i, text := range batch {
			v, err := model.Summarize(ctx, text)
			out[i] = Result[string]{Value: v, Err: err}
		}
		return out, nil
	}
	return NewHandler(construct, process, batchSizeLimit, offloadAfter, queueCapacity)
}

// TranscribeInput is one AudioTranscriber.Transcribe call, bundled into a
// single value so it fits Handler's single-type-parameter Input.
type TranscribeInput struct {
	AudioPath    string
	LanguageHint *string
}

// TranscribePool lazily loads an AudioTranscriber and serves Transcribe
// calls.
type TranscribePool = Handler[AudioTranscriber, TranscribeInput, Transcript]

func NewTranscribePool(construct Constructor[AudioTranscriber], batchSizeLimit func() int, offloadAfter time.Duration, queueCapacity int) *TranscribePool {
	process := func(ctx context.Context, model AudioTranscriber, batch []TranscribeInput) ([]Result[Transcript], error) {
		out := make([]Result[Transcript], len(batch))
		for i, in := range batch {
			v, err := model.Transcribe(ctx, in.AudioPath, in.LanguageHint)
			out[i] = Result[Transcript]{Value: v, Err: err}
		}
		return out, nil
	}
	return NewHandler(construct, process, batchSizeLimit, offloadAfter, queueCapacity)
}

// ChatInput bundles one Chat call's arguments.
type ChatInput struct {
	History []ChatMessage
	Params  ChatParams
	Sink    TokenSink
}

// ChatPool lazily loads a ChatModel and serves streamed Chat calls. Its
// batch size should normally be pinned to 1: streaming output through a
// caller-owned sink does not compose with sharing a dispatch step across
// unrelated callers.
type ChatPool = Handler[ChatModel, ChatInput, struct{}]

func NewChatPool(construct Constructor[ChatModel], offloadAfter time.Duration, queueCapacity int) *ChatPool {
	one := func() int { return 1 }
	process := func(ctx context.Context, model ChatModel, batch []ChatInput) ([]Result[struct{}], error) {
		out := make([]Result[struct{}], len(batch))
		for i, in := range batch {
			err := model.Chat(ctx, in.History, in.Params, in.Sink)
			out[i] = Result[struct{}]{Err: err}
		}
		return out, nil
	}
	return NewHandler(construct, process, one, offloadAfter, queueCapacity)
}
