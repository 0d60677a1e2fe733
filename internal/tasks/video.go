package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/standardbeagle/contentbase/internal/artifact"
	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

func outputBlobPath(fileID types.FileIdentifier, taskName string, out types.TaskRunOutput) string {
	return artifact.ResolveOutput(fileID, taskName, out)
}

// registerVideoTasks declares Video's three independent sub-trees:
// Thumbnail (leaf); Audio -> Transcript -> TransChunk -> TransChunkSum ->
// TransChunkSumEmbed; and Frame -> FrameDescription -> FrameDescEmbed,
// which mirrors Image's Description -> DescEmbed applied to each
// extracted frame, with Frame -> FrameVisionEmbed as a second branch.
func registerVideoTasks(r *Registry) {
	thumbnailType := types.NewTaskType(types.KindVideo, types.TaskVideoThumbnail)
	audioType := types.NewTaskType(types.KindVideo, types.TaskVideoAudio)
	transcriptType := types.NewTaskType(types.KindVideo, types.TaskVideoTranscript)
	transChunkType := types.NewTaskType(types.KindVideo, types.TaskVideoTransChunk)
	transChunkSumType := types.NewTaskType(types.KindVideo, types.TaskVideoTransChunkSum)
	transChunkSumEmbedType := types.NewTaskType(types.KindVideo, types.TaskVideoTransChunkSumEmbed)
	frameType := types.NewTaskType(types.KindVideo, types.TaskVideoFrame)
	frameDescriptionType := types.NewTaskType(types.KindVideo, types.TaskVideoFrameDescription)
	frameDescEmbedType := types.NewTaskType(types.KindVideo, types.TaskVideoFrameDescEmbed)
	frameVisionEmbedType := types.NewTaskType(types.KindVideo, types.TaskVideoFrameVisionEmbed)

	r.register(&Descriptor{
		Type:       thumbnailType,
		Parameters: func(rc *RunContext) json.RawMessage { return json.RawMessage(`{}`) },
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runThumbnail(ctx, rc, file, run, originalBlobPath(file.FileID))
		},
	})

	r.register(&Descriptor{
		Type:       audioType,
		Parameters: func(rc *RunContext) json.RawMessage { return json.RawMessage(`{}`) },
		Run:        runVideoExtractAudio,
	})
	r.register(&Descriptor{
		Type:         transcriptType,
		Dependencies: []types.ContentTaskType{audioType},
		Parameters:   func(rc *RunContext) json.RawMessage { return json.RawMessage(`{"capability":"audio_transcript"}`) },
		Run:          runVideoTranscript,
	})
	r.register(&Descriptor{
		Type:         transChunkType,
		Dependencies: []types.ContentTaskType{transcriptType},
		Parameters:   chunkSizeParameters(types.KindVideo),
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runTranscriptChunk(ctx, rc, file, run, transcriptType, types.KindVideo)
		},
	})
	r.register(&Descriptor{
		Type:         transChunkSumType,
		Dependencies: []types.ContentTaskType{transChunkType},
		Parameters:   chunkSizeParameters(types.KindVideo),
		Run:          runChunkSum(transChunkType),
	})
	r.register(&Descriptor{
		Type:         transChunkSumEmbedType,
		Dependencies: []types.ContentTaskType{transChunkSumType},
		Parameters:   chunkSizeParameters(types.KindVideo),
		Run:          runChunkSumEmbed(transChunkSumType, "language", types.RecordTranscriptChunkSummarization),
	})

	r.register(&Descriptor{
		Type: frameType,
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{"every_ms":2000}`)
		},
		Run: runVideoFrames,
	})
	r.register(&Descriptor{
		Type:         frameDescriptionType,
		Dependencies: []types.ContentTaskType{frameType},
		Parameters:   func(rc *RunContext) json.RawMessage { return json.RawMessage(`{"capability":"image_caption"}`) },
		Run:          runFrameDescription,
	})
	r.register(&Descriptor{
		Type:         frameDescEmbedType,
		Dependencies: []types.ContentTaskType{frameDescriptionType},
		Parameters:   func(rc *RunContext) json.RawMessage { return json.RawMessage(`{"capability":"text_embedding"}`) },
		Run:          runFrameDescEmbed,
	})
	r.register(&Descriptor{
		Type:         frameVisionEmbedType,
		Dependencies: []types.ContentTaskType{frameType},
		Parameters:   func(rc *RunContext) json.RawMessage { return json.RawMessage(`{"capability":"image_embedding"}`) },
		Run:          runFrameVisionEmbed,
	})
}

const framesEveryMs int64 = 2000

func runVideoExtractAudio(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	if rc.Media == nil {
		return cberrors.Permanentf("tasks.video.audio", errMediaToolsUnset)
	}
	localPath, cleanup, err := materializeTemp(ctx, rc, originalBlobPath(file.FileID), "")
	if err != nil {
		return err
	}
	defer cleanup()

	var buf captureWriter
	if err := rc.Media.ExtractAudio(ctx, localPath, &buf); err != nil {
		return err
	}
	out, err := writeBytes(ctx, rc, file.FileID, run.TaskType.Name, "audio.wav", buf.buf.Bytes())
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

func runVideoTranscript(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	audioType := types.NewTaskType(types.KindVideo, types.TaskVideoAudio)
	audioOut, err := latestOutput(ctx, rc, file.FileID, audioType)
	if err != nil {
		return err
	}
	audioBlobPath := outputBlobPath(file.FileID, audioType.Name, audioOut)
	return runTranscript(ctx, rc, file, run, audioBlobPath)
}

// blobFrameSink writes each decoded frame directly into the frame task's
// own folder output.
type blobFrameSink struct {
	ctx     context.Context
	rc      *RunContext
	fileID  types.FileIdentifier
	dirRel  string
	written []frameManifestEntry
}

type frameManifestEntry struct {
	Index       int    `json:"index"`
	TimestampMs int64  `json:"timestamp_ms"`
	RelPath     string `json:"rel_path"`
}

func (s *blobFrameSink) WriteFrame(ctx context.Context, index int, timestampMs int64, data []byte) error {
	name := fmt.Sprintf("frame-%05d.jpg", index)
	rel := path.Join(s.dirRel, name)
	if err := s.rc.Blob.Write(ctx, rel, data); err != nil {
		return err
	}
	s.written = append(s.written, frameManifestEntry{Index: index, TimestampMs: timestampMs, RelPath: name})
	return nil
}

type frameManifest struct {
	Frames []frameManifestEntry `json:"frames"`
}

func runVideoFrames(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	if rc.Media == nil {
		return cberrors.Permanentf("tasks.video.frame", errMediaToolsUnset)
	}
	localPath, cleanup, err := materializeTemp(ctx, rc, originalBlobPath(file.FileID), "")
	if err != nil {
		return err
	}
	defer cleanup()

	out := types.FolderOutput("frames")
	dirRel := outputBlobPath(file.FileID, run.TaskType.Name, out)
	sink := &blobFrameSink{ctx: ctx, rc: rc, fileID: file.FileID, dirRel: dirRel}
	if err := rc.Media.Frames(ctx, localPath, framesEveryMs, sink); err != nil {
		return err
	}

	manifestData, err := json.Marshal(frameManifest{Frames: sink.written})
	if err != nil {
		return cberrors.Permanentf("tasks.video.frame", err)
	}
	if err := rc.Blob.Write(ctx, path.Join(dirRel, "manifest.json"), manifestData); err != nil {
		return err
	}
	run.Output = out
	return nil
}

type frameDescriptionEntry struct {
	Index       int    `json:"index"`
	TimestampMs int64  `json:"timestamp_ms"`
	Description string `json:"description"`
}

type frameDescriptionRecord struct {
	Frames []frameDescriptionEntry `json:"frames"`
}

func runFrameDescription(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	frameType := types.NewTaskType(types.KindVideo, types.TaskVideoFrame)
	frameOut, err := latestOutput(ctx, rc, file.FileID, frameType)
	if err != nil {
		return err
	}
	dirRel := outputBlobPath(file.FileID, frameType.Name, frameOut)

	var manifest frameManifest
	manifestData, err := rc.Blob.Read(ctx, path.Join(dirRel, "manifest.json"))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return cberrors.Permanentf("tasks.video.frame-description", err)
	}

	rec := frameDescriptionRecord{}
	for _, f := range manifest.Frames {
		localPath, cleanup, err := materializeTemp(ctx, rc, path.Join(dirRel, f.RelPath), ".jpg")
		if err != nil {
			return err
		}
		caption, err := rc.Caption.Submit(ctx, localPath)
		cleanup()
		if err != nil {
			return err
		}
		rec.Frames = append(rec.Frames, frameDescriptionEntry{Index: f.Index, TimestampMs: f.TimestampMs, Description: caption})
	}

	outRec, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "descriptions.json", rec)
	if err != nil {
		return err
	}
	run.Output = outRec
	return nil
}

func runFrameDescEmbed(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	frameDescriptionType := types.NewTaskType(types.KindVideo, types.TaskVideoFrameDescription)
	descOut, err := latestOutput(ctx, rc, file.FileID, frameDescriptionType)
	if err != nil {
		return err
	}
	var rec frameDescriptionRecord
	if err := readJSON(ctx, rc, file.FileID, frameDescriptionType.Name, descOut, &rec); err != nil {
		return err
	}

	texts := make([]string, len(rec.Frames))
	for i, f := range rec.Frames {
		texts[i] = f.Description
	}
	if err := embedAndIndex(ctx, rc, file, run.TaskType.Kind, "language", texts, func(i int) types.VectorPayload {
		ts := rec.Frames[i].TimestampMs
		return types.VectorPayload{FileIdentifier: file.FileID, RecordType: types.RecordFrameCaption, Timestamp: &ts}
	}); err != nil {
		return err
	}

	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "embedded.json", struct {
		Count int `json:"count"`
	}{Count: len(rec.Frames)})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

// runFrameVisionEmbed embeds each extracted frame's own pixels into the
// vision collection, independent of and parallel to the caption->language
// branch (runFrameDescription/runFrameDescEmbed).
func runFrameVisionEmbed(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	frameType := types.NewTaskType(types.KindVideo, types.TaskVideoFrame)
	frameOut, err := latestOutput(ctx, rc, file.FileID, frameType)
	if err != nil {
		return err
	}
	dirRel := outputBlobPath(file.FileID, frameType.Name, frameOut)

	var manifest frameManifest
	manifestData, err := rc.Blob.Read(ctx, path.Join(dirRel, "manifest.json"))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		return cberrors.Permanentf("tasks.video.frame-vision-embed", err)
	}

	var entries []visionEntry
	var cleanups []func()
	defer func() {
		for _, c := range cleanups {
			c()
		}
	}()
	for _, f := range manifest.Frames {
		localPath, cleanup, err := materializeTemp(ctx, rc, path.Join(dirRel, f.RelPath), ".jpg")
		if err != nil {
			return err
		}
		cleanups = append(cleanups, cleanup)
		ts := f.TimestampMs
		entries = append(entries, visionEntry{
			localPath: localPath,
			payload:   types.VectorPayload{FileIdentifier: file.FileID, RecordType: types.RecordFrame, Timestamp: &ts},
		})
	}

	if err := embedVisionAndIndex(ctx, rc, file, run.TaskType.Kind, entries); err != nil {
		return err
	}

	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "embedded.json", struct {
		Count int `json:"count"`
	}{Count: len(entries)})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}
