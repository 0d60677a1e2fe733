package tasks

import (
	"context"
	"encoding/json"

	cberrors "github.com/standardbeagle/contentbase/internal/errors"
	"github.com/standardbeagle/contentbase/internal/types"
)

// registerImageTasks declares Image.{Thumbnail, Description, DescEmbed,
// VisionEmbed}: Thumbnail and VisionEmbed are leaves; Description ->
// DescEmbed is a separate branch.
func registerImageTasks(r *Registry) {
	thumbnailType := types.NewTaskType(types.KindImage, types.TaskImageThumbnail)
	descriptionType := types.NewTaskType(types.KindImage, types.TaskImageDescription)
	descEmbedType := types.NewTaskType(types.KindImage, types.TaskImageDescEmbed)
	visionEmbedType := types.NewTaskType(types.KindImage, types.TaskImageVisionEmbed)

	r.register(&Descriptor{
		Type: thumbnailType,
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{}`)
		},
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runThumbnail(ctx, rc, file, run, originalBlobPath(file.FileID))
		},
	})
	r.register(&Descriptor{
		Type: descriptionType,
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{"capability":"image_caption"}`)
		},
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runImageDescription(ctx, rc, file, run, originalBlobPath(file.FileID))
		},
	})
	r.register(&Descriptor{
		Type:         descEmbedType,
		Dependencies: []types.ContentTaskType{descriptionType},
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{"capability":"text_embedding"}`)
		},
		Run: func(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
			return runDescEmbed(ctx, rc, file, run, descriptionType)
		},
	})
	r.register(&Descriptor{
		Type: visionEmbedType,
		Parameters: func(rc *RunContext) json.RawMessage {
			return json.RawMessage(`{"capability":"image_embedding"}`)
		},
		Run: runImageVisionEmbed,
	})
}

// runThumbnail is shared by Image.Thumbnail, Audio.Thumbnail, and
// Video.Thumbnail: render a still image for the blob at srcBlobPath into
// the calling task's own output directory.
func runThumbnail(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord, srcBlobPath string) error {
	if rc.Media == nil {
		return cberrors.Permanentf("tasks.thumbnail", errMediaToolsUnset)
	}
	localPath, cleanup, err := materializeTemp(ctx, rc, srcBlobPath, "")
	if err != nil {
		return err
	}
	defer cleanup()

	var buf captureWriter
	if err := rc.Media.Thumbnail(ctx, localPath, &buf); err != nil {
		return err
	}
	out, err := writeBytes(ctx, rc, file.FileID, run.TaskType.Name, "thumbnail.jpg", buf.buf.Bytes())
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

type imageDescription struct {
	Description string `json:"description"`
}

func runImageDescription(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord, srcBlobPath string) error {
	localPath, cleanup, err := materializeTemp(ctx, rc, srcBlobPath, "")
	if err != nil {
		return err
	}
	defer cleanup()

	caption, err := rc.Caption.Submit(ctx, localPath)
	if err != nil {
		return err
	}
	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "description.json", imageDescription{Description: caption})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

// runDescEmbed embeds the caption text produced by descriptionType and
// indexes it into the language collection as a FrameCaption, satisfying
// scenario 1 of the end-to-end tests.
func runDescEmbed(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord, descriptionType types.ContentTaskType) error {
	descOut, err := latestOutput(ctx, rc, file.FileID, descriptionType)
	if err != nil {
		return err
	}
	var desc imageDescription
	if err := readJSON(ctx, rc, file.FileID, descriptionType.Name, descOut, &desc); err != nil {
		return err
	}
	if err := embedAndIndex(ctx, rc, file, run.TaskType.Kind, "language", []string{desc.Description}, func(i int) types.VectorPayload {
		return types.VectorPayload{FileIdentifier: file.FileID, RecordType: types.RecordFrameCaption}
	}); err != nil {
		return err
	}
	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "embedded.json", struct {
		Count int `json:"count"`
	}{Count: 1})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}

// runImageVisionEmbed embeds the image's own pixels into the vision
// collection as a Frame point, independent of and parallel to the
// caption->language-embedding branch.
func runImageVisionEmbed(ctx context.Context, rc *RunContext, file types.FileInfo, run *types.TaskRunRecord) error {
	localPath, cleanup, err := materializeTemp(ctx, rc, originalBlobPath(file.FileID), "")
	if err != nil {
		return err
	}
	defer cleanup()

	if err := embedVisionAndIndex(ctx, rc, file, run.TaskType.Kind, []visionEntry{{
		localPath: localPath,
		payload:   types.VectorPayload{FileIdentifier: file.FileID, RecordType: types.RecordFrame},
	}}); err != nil {
		return err
	}

	out, err := writeJSON(ctx, rc, file.FileID, run.TaskType.Name, "embedded.json", struct {
		Count int `json:"count"`
	}{Count: 1})
	if err != nil {
		return err
	}
	run.Output = out
	return nil
}
