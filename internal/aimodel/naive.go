package aimodel

import (
	"context"
	"os"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// naiveVectorDims is the fixed dimensionality every naive embedder below
// produces, chosen arbitrarily; cosine distance only requires both sides
// of a comparison to agree on dimension, which they do since every point
// in a given collection comes from the same embedder.
const naiveVectorDims = 32

// hashEmbed folds data's xxhash stream into a fixed-size float32 vector by
// re-hashing with an incrementing seed per dimension, giving a stable
// pseudo-embedding: same bytes always produce the same vector, and
// unrelated inputs are (with high probability) far apart. It captures no
// real semantic structure; NaiveTextEmbedder/NaiveImageEmbedder
// exist only so the CLI has something runnable end to end with no network
// dependency, documented in DESIGN.md as a placeholder for real model code
// (explicitly out of scope for this core).
func hashEmbed(data []byte) []float32 {
	out := make([]float32, naiveVectorDims)
	for i := range out {
		h := xxhash.New()
		h.Write(data)
		h.Write([]byte{byte(i), byte(i >> 8)})
		// Fold the 64-bit digest into [-1, 1] so the vector has both signs,
		// closer to a real embedding's distribution than an all-positive one.
		out[i] = float32(int64(h.Sum64()%2000001)-1000000) / 1000000
	}
	return out
}

// NaiveTextEmbedder is a hash-based TextEmbedder with no external model
// dependency. See hashEmbed.
type NaiveTextEmbedder struct{}

func (NaiveTextEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return hashEmbed([]byte(text)), nil
}

// NaiveImageEmbedder is a hash-based ImageEmbedder reading the image file's
// raw bytes. See hashEmbed.
type NaiveImageEmbedder struct{}

func (NaiveImageEmbedder) EmbedImage(ctx context.Context, imagePath string) ([]float32, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, err
	}
	return hashEmbed(data), nil
}

// NaiveCaptioner produces a caption from the image's file name alone,
// since describing pixel content requires a real vision model.
type NaiveCaptioner struct{}

func (NaiveCaptioner) Caption(ctx context.Context, imagePath string) (string, error) {
	name := imagePath
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return "image file " + name, nil
}

// NaiveSummarizer truncates text to its first sentence (or maxLen runes,
// whichever comes first) instead of a real abstractive summary.
type NaiveSummarizer struct{ MaxLen int }

func (s NaiveSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	maxLen := s.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	text = strings.TrimSpace(text)
	if end := strings.IndexAny(text, ".!?"); end >= 0 && end+1 < maxLen {
		return text[:end+1], nil
	}
	r := []rune(text)
	if len(r) > maxLen {
		return string(r[:maxLen]), nil
	}
	return text, nil
}

// NaiveTranscriber returns an empty transcript for every audio file. Real
// speech recognition is out of scope for this core; callers that need
// transcripts must supply their own AudioTranscriber.
type NaiveTranscriber struct{}

func (NaiveTranscriber) Transcribe(ctx context.Context, audioPath string, languageHint *string) (Transcript, error) {
	return Transcript{Language: "und"}, nil
}
