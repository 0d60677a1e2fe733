package aimodel

import "context"

// The capability interfaces below are what a task implementation depends
// on; nothing in this module or its callers ever names a concrete model
// family (ONNX runtime, whisper.cpp, a hosted API). Swapping a model means
// writing a new Constructor and capability implementation, not touching a
// task.

// TextEmbedder turns text into a fixed-dimension vector for the language
// vector collection.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// ImageEmbedder turns an image file into a fixed-dimension vector for the
// vision vector collection.
type ImageEmbedder interface {
	EmbedImage(ctx context.Context, imagePath string) ([]float32, error)
}

// ImageCaptioner produces a natural-language description of an image,
// which is itself chunked, summarized, and embedded like any other text.
type ImageCaptioner interface {
	Caption(ctx context.Context, imagePath string) (string, error)
}

// Summarizer condenses a chunk of text, used by the *-chunk-sum family of
// tasks ahead of embedding.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// TranscriptSegment is one timed span of an audio/video transcript.
type TranscriptSegment struct {
	StartMs int64
	EndMs   int64
	Text    string
}

// Transcript is the full output of AudioTranscriber.Transcribe.
type Transcript struct {
	Language string
	Segments []TranscriptSegment
}

// AudioTranscriber converts spoken audio into a timed transcript.
// languageHint, when non-nil, is a best-effort ISO 639-1 hint; the model
// may ignore it.
type AudioTranscriber interface {
	Transcribe(ctx context.Context, audioPath string, languageHint *string) (Transcript, error)
}

// ChatRole is one of the canonical chat roles understood by ChatModel.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of conversation history passed to ChatModel.Chat.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// ChatParams controls generation for a single ChatModel.Chat call.
type ChatParams struct {
	Temperature float64
	MaxTokens   int
}

// TokenSink receives streamed completion tokens as they are generated. A
// non-nil error aborts the stream and is returned from Chat.
type TokenSink func(token string) error

// ChatModel is a conversational LLM used for free-form entity/graph
// extraction prompts and similar structured-completion tasks. Unlike the
// other capabilities it streams its output through sink rather than
// returning a single value, so it is wrapped the same way but with an
// empty Output type; side effects happen through the sink.
type ChatModel interface {
	Chat(ctx context.Context, history []ChatMessage, params ChatParams, sink TokenSink) error
}
