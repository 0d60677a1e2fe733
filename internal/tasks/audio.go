package tasks

import (
	"context"
	"encoding/json"

	"github.com/standardbeagle/contentbase/internal/aimodel"
	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

// registerAudioTasks declares Audio.{Thumbnail, Waveform, Transcript,
// TransChunk, TransChunkSum, TransChunkSumEmbed}: Thumbnail and Waveform
// are leaves; the transcript pipeline is a single linear chain.
func registerAudioTasks(r *Registry) {
	thumbnailType := types.NewTaskType(types.KindAudio, types.TaskAudioThumbnail)
	waveformType := types.NewTaskType(types.KindAudio, types.TaskAudioWaveform)
	transcriptType := types.NewTaskType(types.KindAudio, types.TaskAudioTranscript)
	transChunkType := types.NewTaskType(types.KindAudio, types.TaskAudioTransChunk)
	transChunkSumType := types.NewTaskType(types.KindAudio, types.TaskAudioTransChunkSum)
	transChunkSumEmbedType := types.NewTaskType(types.KindAudio, types.TaskAudioTransChunkSumEmbed)

	r.register(&Descriptor{
		Type:       thumbnailType,
		Parameters: func(rc *RunContext) json.RawMessage { return json.RawMessage(`{}`) },
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runThumbnail(ctx, rc, file, run, originalBlobPath(file.FileID))
		},
	})
	r.register(&Descriptor{
		Type:       waveformType,
		Parameters: func(rc *RunContext) json.RawMessage { return json.RawMessage(`{}`) },
		Run:        runWaveform,
	})
	r.register(&Descriptor{
		Type: transcriptType,
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{"capability":"audio_transcript"}`)
		},
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runTranscript(ctx, rc, file, run, originalBlobPath(file.FileID))
		},
	})
	r.register(&Descriptor{
		Type:         transChunkType,
		Dependencies: []types.ContentTaskType{transcriptType},
		Parameters:   chunkSizeParameters(types.KindAudio),
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runTranscriptChunk(ctx, rc, file, run, transcriptType, types.KindAudio)
		},
	})
	r.register(&Descriptor{
		Type:         transChunkSumType,
		Dependencies: []types.ContentTaskType{transChunkType},
		Parameters:   chunkSizeParameters(types.KindAudio),
		Run:          runChunkSum(transChunkType),
	})
	r.register(&Descriptor{
		Type:         transChunkSumEmbedType,
		Dependencies: []types.ContentTaskType{transChunkSumType},
		Parameters:   chunkSizeParameters(types.KindAudio),
		Run:          runChunkSumEmbed(transChunkSumType, "language", types.RecordTranscriptChunkSummarization),
	})
}

func runWaveform(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	if rc.Media == nil {
		return cberrors.Permanentf("tasks.waveform", errMediaToolsUnset)
	}
	localPath, cleanup, err := materializeTemp(ctx, rc, originalBlobPath(file.FileID), "")
	if err != nil {
		return err
	}
	defer cleanup()

	var buf captureWriter
	if err := rc.Media.Waveform(ctx, localPath, &buf); err != nil {
		return err
	}
	out, err := writeBytes(ctx, rc, file.FileID, run.TaskType.Name, "waveform.png", buf.buf.Bytes())
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

// transcriptRecord is the JSON shape written by every Transcript task,
// shared between Audio and Video.
type transcriptRecord struct {
	Language string                    `json:"language"`
	Segments []transcriptSegmentRecord `json:"segments"`
}

type transcriptSegmentRecord struct {
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
	Text    string `json:"text"`
}

func runTranscript(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord, audioBlobPath string) error {
	localPath, cleanup, err := materializeTemp(ctx, rc, audioBlobPath, "")
	if err != nil {
		return err
	}
	defer cleanup()

	transcript, err := rc.Transcribe.Submit(ctx, aimodel.TranscribeInput{AudioPath: localPath})
	if err != nil {
		return err
	}
	rec := transcriptRecord{Language: transcript.Language}
	for _, seg := range transcript.Segments {
		rec.Segments = append(rec.Segments, transcriptSegmentRecord{StartMs: seg.StartMs, EndMs: seg.EndMs, Text: seg.Text})
	}

	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "transcript.json", rec)
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

// runTranscriptChunk packs a Transcript's segment texts into chunks,
// shared by Audio.TransChunk and Video.TransChunk.
func runTranscriptChunk(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord, transcriptType types.ContentTaskType, kind types.ContentKind) error {
	transcriptOut, err := latestOutput(ctx, rc, file.FileID, transcriptType)
	if err != nil {
		return err
	}
	var rec transcriptRecord
	if err := readJSON(ctx, rc, file.FileID, transcriptType.Name, transcriptOut, &rec); err != nil {
		return err
	}
	texts := make([]string, len(rec.Segments))
	for i, seg := range rec.Segments {
		texts[i] = seg.Text
	}
	chunks := PackChunks(texts, rc.chunkSize(kind), rc.tokenizer())
	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "chunks.json", chunkRecord{Chunks: chunks})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}
