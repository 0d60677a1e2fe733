package tasks

import (
	"context"
	"errors"
	"io"
)

// errMediaToolsUnset is surfaced when a task needs MediaTools but
// RunContext.Media is nil, which is a wiring bug, not a runtime failure.
var errMediaToolsUnset = errors.New("tasks: media tools not configured")

// MediaTools is the narrow capability boundary for codec and container
// work that sits outside the core, the same way aimodel's capability
// interfaces keep concrete inference engines out: thumbnailing, frame
// sampling, audio demuxing, waveform rendering, and HTML-to-Markdown
// conversion. Task Run functions call only this interface; they never
// shell out to an external tool themselves.
type MediaTools interface {
	// Thumbnail writes a representative still image for srcPath to dst.
	Thumbnail(ctx context.Context, srcPath string, dst io.Writer) error
	// Frames samples srcPath at the given interval, delivering each frame
	// to sink in timestamp order.
	Frames(ctx context.Context, srcPath string, everyMs int64, sink FrameSink) error
	// ExtractAudio demuxes the audio track of a video file to dst.
	ExtractAudio(ctx context.Context, videoPath string, dst io.Writer) error
	// Waveform renders a visual waveform for audioPath to dst.
	Waveform(ctx context.Context, audioPath string, dst io.Writer) error
	// HTMLToMarkdown converts raw HTML to Markdown for the WebPage
	// Transform task.
	HTMLToMarkdown(ctx context.Context, html string) (string, error)
}

// FrameSink receives video frames as MediaTools.Frames decodes them.
type FrameSink interface {
	WriteFrame(ctx context.Context, index int, timestampMs int64, data []byte) error
}
